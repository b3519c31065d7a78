package api

import (
	"sort"
	"time"

	"reelgate/internal/registry"
	"reelgate/internal/stage"
	"reelgate/internal/status"
)

// FromRecord converts a registry record into its DTO.
func FromRecord(rec *registry.FileRecord) FileRecord {
	if rec == nil {
		return FileRecord{}
	}
	return FileRecord{
		ID:              rec.ID,
		OriginalName:    rec.OriginalName,
		CleanedName:     rec.CleanedName,
		ContentHash:     rec.ContentHash,
		SourcePath:      rec.SourcePath,
		VideoStatus:     string(rec.VideoStatus),
		SubtitleStatus:  string(rec.SubtitleStatus),
		IsLegacy:        rec.IsLegacy,
		FileSize:        rec.FileSize,
		DurationSec:     rec.DurationSec,
		Resolution:      rec.Resolution,
		VideoEncoder:    rec.VideoEncoder,
		HasSubtitle:     rec.HasSubtitle,
		SubtitleFormats: rec.SubtitleFormats,
		CreatedAt:       formatTime(rec.CreatedAt),
		UpdatedAt:       formatTime(rec.UpdatedAt),
	}
}

// FromRecords converts a slice of records, skipping nil entries.
func FromRecords(records []*registry.FileRecord) []FileRecord {
	out := make([]FileRecord, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		out = append(out, FromRecord(rec))
	}
	return out
}

// FromProcessLogs converts process log entries, preserving order.
func FromProcessLogs(entries []registry.ProcessLogEntry) []ProcessLog {
	out := make([]ProcessLog, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ProcessLog{
			ID:          entry.ID,
			Operation:   string(entry.Operation),
			OutputPath:  entry.OutputPath,
			SSIM:        entry.SSIM,
			PSNR:        entry.PSNR,
			ErrorLog:    entry.ErrorLog,
			DurationSec: entry.DurationSec,
			Succeeded:   entry.Succeeded(),
			CreatedAt:   formatTime(entry.CreatedAt),
		})
	}
	return out
}

// FromSnapshot converts a status snapshot.
func FromSnapshot(snap status.Snapshot) Summary {
	return Summary{
		PendingCount:     snap.PendingCount,
		ProcessingActive: snap.ProcessingActive,
		At:               formatTime(snap.At),
	}
}

// StageHealthSlice returns health entries ordered by name.
func StageHealthSlice(health []stage.Health) []StageHealth {
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
