package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelgate/internal/logging"
	"reelgate/internal/notifications"
	"reelgate/internal/registry"
	"reelgate/internal/services"
	"reelgate/internal/stage"
)

// OperationResult is the outcome of one track operation on a record.
type OperationResult struct {
	Track    registry.Track
	Status   string
	Output   string
	Duration time.Duration
	Err      error
}

// RecordResult collects the operations run for one record during a drain.
type RecordResult struct {
	FileID      int64
	CleanedName string
	Operations  []OperationResult
	Err         error
}

func (r *RecordResult) add(op OperationResult) {
	r.Operations = append(r.Operations, op)
	if op.Err != nil {
		r.Err = errors.Join(r.Err, op.Err)
	}
}

// processRecord runs the outstanding operations of rec: subtitle extraction
// first, then transcoding for non-legacy records. A failure never escapes the
// record; it is reported through the result and the track status.
func (s *Scheduler) processRecord(ctx context.Context, drainLogger *slog.Logger, rec *registry.FileRecord) RecordResult {
	result := RecordResult{FileID: rec.ID, CleanedName: rec.CleanedName}
	ctx = services.WithFileID(ctx, rec.ID)
	logger := logging.WithContext(ctx, drainLogger)

	source, sourceErr := s.locateSource(rec)
	logger.Info("processing file",
		logging.String(logging.FieldEventType, "record_start"),
		logging.String("cleaned_name", rec.CleanedName),
		logging.String("source", source),
		logging.Bool("legacy", rec.IsLegacy),
		logging.String("subtitle_status", string(rec.SubtitleStatus)),
		logging.String("video_status", string(rec.VideoStatus)),
	)

	if rec.NeedsSubtitle() {
		result.add(s.runOperation(ctx, logger, rec, registry.TrackSubtitle, s.subtitles, source, sourceErr))
	}
	if ctx.Err() != nil {
		return result
	}
	if rec.NeedsVideo() {
		result.add(s.runOperation(ctx, logger, rec, registry.TrackVideo, s.video, source, sourceErr))
	}
	return result
}

type operation interface {
	Run(ctx context.Context, job stage.Job) (stage.Result, error)
}

func (s *Scheduler) runOperation(ctx context.Context, parent *slog.Logger, rec *registry.FileRecord, track registry.Track, op operation, source string, sourceErr error) OperationResult {
	ctx = services.WithTrack(ctx, string(track))
	logger := parent.With(logging.String(logging.FieldTrack, string(track)))
	result := OperationResult{Track: track}
	started := time.Now()

	var res stage.Result
	err := sourceErr
	if err == nil && track == registry.TrackVideo {
		if err := s.store.SetStatus(ctx, rec.ID, track, string(registry.VideoProcessing)); err != nil {
			// The record stays pending and is retried on the next drain.
			result.Err = fmt.Errorf("mark video processing: %w", err)
			logging.ErrorWithContext(logger, "failed to mark video processing", "status_write_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check registry database access"),
			)
			return result
		}
	}
	if err == nil {
		job := stage.Job{
			FileID:       rec.ID,
			Track:        track,
			SourcePath:   source,
			CleanedName:  rec.CleanedName,
			OriginalName: rec.OriginalName,
			OutputDir:    s.cfg.Paths.OutputDir,
		}
		res, err = invoke(ctx, op, job)
	}
	result.Duration = time.Since(started)

	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		// Shutdown interrupted the operation; the track is retried on the
		// next start.
		result.Err = err
		logger.Warn("operation interrupted by shutdown",
			logging.String(logging.FieldEventType, "operation_interrupted"),
			logging.String(logging.FieldErrorHint, "the file is retried when the daemon restarts"),
			logging.String(logging.FieldImpact, "no output recorded for this attempt"),
		)
		return result
	}

	writeCtx := context.WithoutCancel(ctx)
	if err == nil && res.Metadata != nil {
		if mergeErr := s.store.MergeMetadata(writeCtx, rec.ID, *res.Metadata, false); mergeErr != nil {
			logging.WarnWithContext(logger, "failed to merge probe metadata", "metadata_merge_failed",
				logging.Error(mergeErr),
				logging.String(logging.FieldImpact, "record keeps its previous metadata"),
			)
		}
	}

	result.Status = successStatus(track)
	if err != nil {
		result.Status = failedStatus(track)
		result.Err = classify(track, err)
	}
	result.Output = res.OutputPath

	if statusErr := s.store.SetStatus(writeCtx, rec.ID, track, result.Status); statusErr != nil {
		logging.ErrorWithContext(logger, "failed to record track status", "status_write_failed",
			logging.Error(statusErr),
			logging.String("status", result.Status),
			logging.String(logging.FieldErrorHint, "check registry database access"),
		)
		result.Err = errors.Join(result.Err, fmt.Errorf("record %s status: %w", track, statusErr))
	}

	entry := registry.ProcessLogEntry{
		FileID:      rec.ID,
		Operation:   track,
		OutputPath:  res.OutputPath,
		SSIM:        res.SSIM,
		PSNR:        res.PSNR,
		DurationSec: result.Duration.Seconds(),
	}
	if result.Err != nil {
		entry.ErrorLog = result.Err.Error()
	}
	if _, logErr := s.store.AppendProcessLog(writeCtx, entry); logErr != nil {
		logger.Warn("failed to append process log",
			logging.Error(logErr),
			logging.String(logging.FieldEventType, "process_log_failed"),
			logging.String(logging.FieldErrorHint, "check registry database access"),
			logging.String(logging.FieldImpact, "history for this attempt is missing"),
		)
	}

	operationDuration.WithLabelValues(string(track)).Observe(result.Duration.Seconds())
	if result.Err != nil {
		operationsTotal.WithLabelValues(string(track), "failed").Inc()
		logging.ErrorWithContext(logger, "operation failed", "operation_failed",
			logging.Error(result.Err),
			logging.String(logging.FieldErrorKind, services.Kind(result.Err)),
			logging.Duration("duration", result.Duration),
			logging.String(logging.FieldErrorHint, "inspect the process log for this file, then reset the track to retry"),
		)
		s.publish(ctx, notifications.EventOperationFailed, notifications.Payload{
			"name":  rec.CleanedName,
			"track": string(track),
			"error": result.Err,
		})
		return result
	}
	operationsTotal.WithLabelValues(string(track), "succeeded").Inc()
	logger.Info("operation finished",
		logging.String(logging.FieldEventType, "operation_complete"),
		logging.String("status", result.Status),
		logging.String("output", res.OutputPath),
		logging.Int("outputs", len(res.Outputs)),
		logging.Duration("duration", result.Duration),
	)
	return result
}

// invoke runs op and converts a panic into an operation failure.
func invoke(ctx context.Context, op operation, job stage.Job) (res stage.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrExternalTool, "scheduler", string(job.Track), fmt.Sprintf("operation panicked: %v", r), nil)
		}
	}()
	return op.Run(ctx, job)
}

func classify(track registry.Track, err error) error {
	if services.Kind(err) != "unknown" {
		return err
	}
	return services.Wrap(services.ErrExternalTool, "scheduler", string(track), "", err)
}

func successStatus(track registry.Track) string {
	if track == registry.TrackSubtitle {
		return string(registry.SubtitleExtracted)
	}
	return string(registry.VideoCompleted)
}

func failedStatus(track registry.Track) string {
	if track == registry.TrackSubtitle {
		return string(registry.SubtitleFailed)
	}
	return string(registry.VideoFailed)
}

// locateSource finds the file to operate on: the path seen at ingestion, then
// the archive copy under its cleaned name, then the drop directory under its
// original name.
func (s *Scheduler) locateSource(rec *registry.FileRecord) (string, error) {
	candidates := make([]string, 0, 3)
	if p := strings.TrimSpace(rec.SourcePath); p != "" {
		candidates = append(candidates, p)
	}
	if dir := strings.TrimSpace(s.cfg.Paths.ArchiveDir); dir != "" {
		candidates = append(candidates, filepath.Join(dir, rec.CleanedName))
	}
	if dir := strings.TrimSpace(s.cfg.Paths.InputDir); dir != "" {
		candidates = append(candidates, filepath.Join(dir, rec.OriginalName))
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && info.Mode().IsRegular() {
			return candidate, nil
		}
	}
	return "", services.Wrap(services.ErrNotFound, "scheduler", "locate source",
		fmt.Sprintf("no source file for %s (tried %s)", rec.CleanedName, strings.Join(candidates, ", ")), nil)
}
