package registry

import (
	"database/sql"
	"errors"
	"time"
)

const recordColumns = "id, original_name, cleaned_name, file_hash, source_path, video_status, subtitle_status, is_legacy, file_size, duration_sec, resolution, video_encoder, has_subtitle, subtitle_formats, created_at, updated_at"

const logColumns = "id, file_id, operation, output_path, ssim_score, psnr_score, error_log, duration_sec, created_at"

type rowScanner interface{ Scan(dest ...any) error }

func scanRecord(scanner rowScanner) (*FileRecord, error) {
	var (
		rec         FileRecord
		hash        sql.NullString
		sourcePath  sql.NullString
		videoStatus string
		subStatus   string
		legacy      int64
		fileSize    sql.NullInt64
		duration    sql.NullFloat64
		resolution  sql.NullString
		encoder     sql.NullString
		hasSubtitle int64
		subFormats  sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.OriginalName,
		&rec.CleanedName,
		&hash,
		&sourcePath,
		&videoStatus,
		&subStatus,
		&legacy,
		&fileSize,
		&duration,
		&resolution,
		&encoder,
		&hasSubtitle,
		&subFormats,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	rec.ContentHash = hash.String
	rec.SourcePath = sourcePath.String
	rec.VideoStatus = VideoStatus(videoStatus)
	rec.SubtitleStatus = SubtitleStatus(subStatus)
	rec.IsLegacy = legacy != 0
	rec.FileSize = fileSize.Int64
	rec.DurationSec = duration.Float64
	rec.Resolution = resolution.String
	rec.VideoEncoder = encoder.String
	rec.HasSubtitle = hasSubtitle != 0
	rec.SubtitleFormats = subFormats.String
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		rec.UpdatedAt = updated
	}
	return &rec, nil
}

func scanLog(scanner rowScanner) (ProcessLogEntry, error) {
	var (
		entry      ProcessLogEntry
		operation  string
		outputPath sql.NullString
		ssim       sql.NullFloat64
		psnr       sql.NullFloat64
		errorLog   sql.NullString
		duration   sql.NullFloat64
		createdRaw string
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.FileID,
		&operation,
		&outputPath,
		&ssim,
		&psnr,
		&errorLog,
		&duration,
		&createdRaw,
	); err != nil {
		return ProcessLogEntry{}, err
	}
	entry.Operation = Track(operation)
	entry.OutputPath = outputPath.String
	if ssim.Valid {
		v := ssim.Float64
		entry.SSIM = &v
	}
	if psnr.Valid {
		v := psnr.Float64
		entry.PSNR = &v
	}
	entry.ErrorLog = errorLog.String
	entry.DurationSec = duration.Float64
	if created, err := parseTimeString(createdRaw); err == nil {
		entry.CreatedAt = created
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
