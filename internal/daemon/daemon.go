package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"reelgate/internal/api"
	"reelgate/internal/config"
	"reelgate/internal/ingest"
	"reelgate/internal/logging"
	"reelgate/internal/registry"
	"reelgate/internal/scheduler"
	"reelgate/internal/stage"
	"reelgate/internal/status"
	"reelgate/internal/watcher"
)

// LockPath returns the flock file guarding single-instance execution.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "reelgate.lock")
}

// PIDPath returns the file holding the running daemon's pid.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "reelgate.pid")
}

// Components are the collaborators a daemon runs. Watcher, Gate and
// Scheduler may be nil in web-only mode.
type Components struct {
	Store       *registry.Store
	Watcher     *watcher.Watcher
	Gate        *ingest.Gate
	Scheduler   *scheduler.Scheduler
	Broadcaster *status.Broadcaster
	Files       *api.FileService
	Stages      []stage.Handler
}

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	comps  Components
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	WebOnly      bool
	PID          int
	DrainActive  bool
	Window       string
	WindowOpen   bool
	APIAddress   string
	RegistryPath string
	LockFilePath string
	Stats        registry.Stats
	LastDrain    DrainInfo
	Stages       []stage.Health
}

// DrainInfo is the bookkeeping the scheduler leaves in system_settings.
type DrainInfo struct {
	StartedAt  string
	FinishedAt string
	Outcome    string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, comps Components) (*Daemon, error) {
	if cfg == nil || comps.Store == nil || comps.Broadcaster == nil {
		return nil, errors.New("daemon requires config, registry store, and status broadcaster")
	}
	if (comps.Watcher == nil) != (comps.Gate == nil) {
		return nil, errors.New("daemon requires both watcher and gate, or neither")
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	lockPath := LockPath(cfg)
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		comps:    comps,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	if cfg.API.Enabled {
		d.api = newAPIServer(cfg, d, logger)
	}
	return d, nil
}

// WebOnly reports whether the daemon runs without ingestion and scheduling.
func (d *Daemon) WebOnly() bool {
	return d.comps.Scheduler == nil && d.comps.Watcher == nil
}

// Start acquires the daemon lock, resets interrupted work and launches every
// component. It returns once all goroutines are running.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelgate daemon instance is already running")
	}

	if !d.WebOnly() {
		reset, err := d.comps.Store.ResetInterrupted(ctx)
		if err != nil {
			_ = d.lock.Unlock()
			return fmt.Errorf("reset interrupted records: %w", err)
		}
		if reset > 0 {
			d.logger.Info("interrupted transcodes returned to pending",
				logging.String(logging.FieldEventType, "interrupted_reset"),
				logging.Int64("records", reset),
			)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			cancel()
			_ = d.lock.Unlock()
			return err
		}
	}
	d.cancel = cancel

	d.goRun("status", func() error {
		return d.comps.Broadcaster.Run(runCtx, d.cfg.StatusInterval())
	})
	if d.comps.Watcher != nil {
		events := make(chan watcher.Event, max(d.cfg.Watcher.QueueSize, 1))
		d.goRun("watcher", func() error { return d.comps.Watcher.Run(runCtx, events) })
		d.goRun("ingest", func() error { return d.comps.Gate.Run(runCtx, events) })
	}
	if d.comps.Scheduler != nil {
		d.goRun("scheduler", func() error { return d.comps.Scheduler.Run(runCtx) })
	}

	d.running.Store(true)
	d.logger.Info("reelgate daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.Bool("web_only", d.WebOnly()),
	)
	return nil
}

func (d *Daemon) goRun(name string, run func() error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := run(); err != nil {
			logging.ErrorWithContext(d.logger, "component stopped with error", "component_failed",
				logging.String("component_name", name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "restart the daemon after fixing the cause"),
			)
		}
	}()
}

// Stop cancels every component, waits for them to return and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file if the next start refuses to run"),
			logging.String(logging.FieldImpact, "next start may report another instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("reelgate daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close stops the daemon. The registry store is owned by the caller.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// APIAddress returns the bound dashboard address, or "" when disabled.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	st := Status{
		Running:      d.running.Load(),
		WebOnly:      d.WebOnly(),
		PID:          os.Getpid(),
		APIAddress:   d.APIAddress(),
		RegistryPath: d.comps.Store.Path(),
		LockFilePath: d.lockPath,
		Stages:       d.Health(ctx),
	}
	if sched := d.comps.Scheduler; sched != nil {
		st.DrainActive = sched.Active()
		st.Window = sched.Window().String()
		st.WindowOpen = sched.Window().Open(time.Now())
	}
	if stats, err := d.comps.Store.Stats(ctx); err == nil {
		st.Stats = stats
	} else {
		d.logger.Warn("registry stats unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "status_stats_failed"),
			logging.String(logging.FieldErrorHint, "check registry database access"),
			logging.String(logging.FieldImpact, "status omits record counts"),
		)
	}
	st.LastDrain = LastDrain(ctx, d.comps.Store)
	return st
}

// Health reports readiness of every configured media operation.
func (d *Daemon) Health(ctx context.Context) []stage.Health {
	out := make([]stage.Health, 0, len(d.comps.Stages))
	for _, handler := range d.comps.Stages {
		if handler == nil {
			continue
		}
		out = append(out, handler.HealthCheck(ctx))
	}
	return out
}

type settingsReader interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

// LastDrain reads the drain bookkeeping from system_settings. Missing keys
// are left empty.
func LastDrain(ctx context.Context, store settingsReader) DrainInfo {
	read := func(key string) string {
		value, ok, err := store.GetSetting(ctx, key)
		if err != nil || !ok {
			return ""
		}
		return value
	}
	return DrainInfo{
		StartedAt:  read(scheduler.SettingLastDrainStarted),
		FinishedAt: read(scheduler.SettingLastDrainFinished),
		Outcome:    read(scheduler.SettingLastDrainOutcome),
	}
}
