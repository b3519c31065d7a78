package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"reelgate/internal/config"
	"reelgate/internal/logging"
	"reelgate/internal/notifications"
	"reelgate/internal/registry"
	"reelgate/internal/stage"
)

// ErrDrainActive is returned by Drain when another drain is already running.
var ErrDrainActive = errors.New("drain already in progress")

// Settings keys written after every drain.
const (
	SettingLastDrainStarted  = "last_drain_started_at"
	SettingLastDrainFinished = "last_drain_finished_at"
	SettingLastDrainOutcome  = "last_drain_outcome"
)

// Outcome describes how a drain ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCutoff    Outcome = "cutoff"
	OutcomeClosed    Outcome = "closed"
	OutcomeCanceled  Outcome = "canceled"
	OutcomeNoSpace   Outcome = "no_space"
	OutcomeError     Outcome = "error"
)

// Store is the slice of the registry the scheduler depends on.
type Store interface {
	ListNonTerminal(ctx context.Context, limit, offset int) ([]*registry.FileRecord, error)
	SetStatus(ctx context.Context, id int64, track registry.Track, status string) error
	AppendProcessLog(ctx context.Context, entry registry.ProcessLogEntry) (int64, error)
	MergeMetadata(ctx context.Context, id int64, meta registry.Metadata, forceVideoCompleted bool) error
	SetSetting(ctx context.Context, key, value string) error
}

// SubtitleExtractor pulls subtitle streams out of a source file.
type SubtitleExtractor interface {
	Run(ctx context.Context, job stage.Job) (stage.Result, error)
}

// Transcoder re-encodes the video of a source file.
type Transcoder interface {
	Run(ctx context.Context, job stage.Job) (stage.Result, error)
}

// StatusPublisher receives a nudge after every drain so subscribers see the
// new pending count without waiting for the next poll.
type StatusPublisher interface {
	Publish(ctx context.Context)
}

// DrainReport summarizes one call to Drain.
type DrainReport struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    Outcome
	Processed  int
	Failed     int
	Results    []RecordResult
}

// Duration returns the wall time of the drain.
func (r DrainReport) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now for window checks and settings timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithNotifier sets the service receiving drain and failure notifications.
func WithNotifier(n notifications.Service) Option {
	return func(s *Scheduler) { s.notifier = n }
}

// WithPublisher sets the status publisher nudged after each drain.
func WithPublisher(p StatusPublisher) Option {
	return func(s *Scheduler) { s.publisher = p }
}

// WithSpaceCheck installs a probe run before each record. A non-nil error
// stops the drain until the next wake.
func WithSpaceCheck(check func(context.Context) error) Option {
	return func(s *Scheduler) { s.spaceCheck = check }
}

// Scheduler coordinates drains of the registry.
type Scheduler struct {
	cfg        *config.Config
	store      Store
	subtitles  SubtitleExtractor
	video      Transcoder
	window     Window
	batchSize  int
	now        func() time.Time
	notifier   notifications.Service
	publisher  StatusPublisher
	spaceCheck func(context.Context) error
	logger     *slog.Logger

	wake   chan struct{}
	active atomic.Bool
}

// New constructs a Scheduler. A nil operation leaves its track untouched.
func New(cfg *config.Config, store Store, subtitles SubtitleExtractor, video Transcoder, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if cfg == nil {
		return nil, errors.New("scheduler: config is required")
	}
	if store == nil {
		return nil, errors.New("scheduler: store is required")
	}
	// Every record starts with both tracks pending; a missing operation
	// would leave its track pending forever.
	if subtitles == nil || video == nil {
		return nil, errors.New("scheduler: subtitle extractor and transcoder are required")
	}
	window, err := WindowFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	batch := cfg.Scheduler.BatchSize
	if batch <= 0 {
		batch = 50
	}
	s := &Scheduler{
		cfg:       cfg,
		store:     store,
		subtitles: subtitles,
		video:     video,
		window:    window,
		batchSize: batch,
		now:       time.Now,
		notifier:  notifications.NewService(nil),
		logger:    logging.NewComponentLogger(logger, "scheduler"),
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Window returns the configured processing window.
func (s *Scheduler) Window() Window { return s.window }

// Active reports whether a drain is running.
func (s *Scheduler) Active() bool { return s.active.Load() }

// Wake requests a drain. It never blocks; wakes that arrive while one is
// already pending are coalesced.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run drives drains until ctx ends. It drains once at startup, after every
// wake, when the window opens and on the periodic rescan.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		logging.String(logging.FieldEventType, "scheduler_start"),
		logging.String("window", s.window.String()),
		logging.Int("batch_size", s.batchSize),
	)
	s.Wake()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		case <-s.nextTick():
		}

		_, err := s.Drain(ctx)
		switch {
		case err == nil, errors.Is(err, ErrDrainActive):
			continue
		case ctx.Err() != nil:
			return nil
		default:
			s.handleDrainError(ctx, err)
		}
	}
}

// nextTick fires when the window next opens or, inside the window, when the
// periodic rescan is due. A nil channel blocks forever.
func (s *Scheduler) nextTick() <-chan time.Time {
	now := s.now()
	if !s.window.Open(now) {
		return time.After(s.window.NextOpen(now).Sub(now))
	}
	if period := s.cfg.RescanPeriod(); period > 0 {
		return time.After(period)
	}
	return nil
}

func (s *Scheduler) handleDrainError(ctx context.Context, err error) {
	s.logger.Error("drain failed; retrying later",
		logging.Error(err),
		logging.String(logging.FieldEventType, "drain_failed"),
		logging.String(logging.FieldErrorHint, "check registry database access"),
		logging.String(logging.FieldImpact, "pending files wait for the next attempt"),
	)
	s.publish(ctx, notifications.EventError, notifications.Payload{"error": err, "context": "drain"})
	select {
	case <-ctx.Done():
	case <-time.After(s.cfg.ErrorRetryInterval()):
		s.Wake()
	}
}

// Drain processes outstanding records until none remain or the window
// closes. A concurrent call returns ErrDrainActive without doing anything.
func (s *Scheduler) Drain(ctx context.Context) (report DrainReport, err error) {
	if !s.active.CompareAndSwap(false, true) {
		return DrainReport{}, ErrDrainActive
	}
	drainActive.Set(1)
	defer func() {
		drainActive.Set(0)
		s.active.Store(false)
		if s.publisher != nil {
			s.publisher.Publish(context.WithoutCancel(ctx))
		}
	}()

	report = DrainReport{ID: uuid.NewString(), StartedAt: s.now()}
	logger := s.logger.With(logging.String(logging.FieldCorrelationID, report.ID))

	if !s.window.Open(report.StartedAt) {
		report.Outcome = OutcomeClosed
		report.FinishedAt = report.StartedAt
		logger.Debug("drain skipped outside window",
			logging.String("window", s.window.String()),
			logging.String("next_open", s.window.NextOpen(report.StartedAt).Format(time.RFC3339)),
		)
		return report, nil
	}

	s.recordSetting(ctx, logger, SettingLastDrainStarted, report.StartedAt.UTC().Format(time.RFC3339))
	defer func() { s.finishDrain(ctx, logger, &report) }()

	report.Outcome, err = s.sweep(ctx, logger, &report)
	return report, err
}

// sweep repeats passes over the non-terminal records until a pass finds
// nothing new to process.
func (s *Scheduler) sweep(ctx context.Context, logger *slog.Logger, report *DrainReport) (Outcome, error) {
	seen := make(map[int64]struct{})
	for {
		processed := 0
		offset := 0
		for {
			batch, err := s.store.ListNonTerminal(ctx, s.batchSize, offset)
			if err != nil {
				if ctx.Err() != nil {
					return OutcomeCanceled, nil
				}
				return OutcomeError, fmt.Errorf("list non-terminal records: %w", err)
			}
			if len(batch) == 0 {
				break
			}
			for _, rec := range batch {
				if _, ok := seen[rec.ID]; ok {
					// still non-terminal after an earlier attempt
					offset++
					continue
				}
				if outcome, stop := s.gate(ctx, logger); stop {
					return outcome, nil
				}
				seen[rec.ID] = struct{}{}
				result := s.processRecord(ctx, logger, rec)
				report.Results = append(report.Results, result)
				report.Processed++
				if result.Err != nil {
					report.Failed++
				}
				processed++
			}
		}
		if processed == 0 {
			return OutcomeCompleted, nil
		}
	}
}

// gate decides whether the next record may start.
func (s *Scheduler) gate(ctx context.Context, logger *slog.Logger) (Outcome, bool) {
	if ctx.Err() != nil {
		return OutcomeCanceled, true
	}
	if now := s.now(); !s.window.Open(now) {
		logger.Info("daily cutoff reached; remaining files wait for the next window",
			logging.String(logging.FieldEventType, "drain_cutoff"),
			logging.String("next_open", s.window.NextOpen(now).Format(time.RFC3339)),
		)
		return OutcomeCutoff, true
	}
	if s.spaceCheck != nil {
		if err := s.spaceCheck(ctx); err != nil {
			logging.WarnWithContext(logger, "insufficient free space; drain paused", "drain_no_space",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "free space in output_dir or lower scheduler.min_free_space_gib"),
				logging.String(logging.FieldImpact, "pending files wait for the next wake"),
			)
			return OutcomeNoSpace, true
		}
	}
	return "", false
}

func (s *Scheduler) finishDrain(ctx context.Context, logger *slog.Logger, report *DrainReport) {
	report.FinishedAt = s.now()
	drainsTotal.WithLabelValues(string(report.Outcome)).Inc()

	// Bookkeeping must land even when the drain was cut short by shutdown.
	writeCtx := context.WithoutCancel(ctx)
	s.recordSetting(writeCtx, logger, SettingLastDrainFinished, report.FinishedAt.UTC().Format(time.RFC3339))
	s.recordSetting(writeCtx, logger, SettingLastDrainOutcome, string(report.Outcome))

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "drain_finished"),
		logging.String("outcome", string(report.Outcome)),
		logging.Int("processed", report.Processed),
		logging.Int("failed", report.Failed),
		logging.Duration("duration", report.Duration()),
	}
	if report.Processed == 0 {
		logger.Debug("drain finished", logging.Args(attrs...)...)
	} else {
		logger.Info("drain finished", logging.Args(attrs...)...)
		s.publish(ctx, notifications.EventDrainCompleted, notifications.Payload{
			"processed": report.Processed,
			"failed":    report.Failed,
			"duration":  report.Duration(),
			"outcome":   string(report.Outcome),
		})
	}
}

func (s *Scheduler) recordSetting(ctx context.Context, logger *slog.Logger, key, value string) {
	if err := s.store.SetSetting(ctx, key, value); err != nil {
		logger.Warn("failed to record drain setting",
			logging.String("key", key),
			logging.Error(err),
			logging.String(logging.FieldEventType, "setting_write_failed"),
			logging.String(logging.FieldErrorHint, "check registry database access"),
			logging.String(logging.FieldImpact, "status command may show stale drain times"),
		)
	}
}

func (s *Scheduler) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			s.logger.Debug("daemon shutting down, could not send notification", logging.String("event", string(event)))
			return
		}
		s.logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}
