package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"reelgate/internal/api"
	"reelgate/internal/config"
	"reelgate/internal/daemon"
	"reelgate/internal/deps"
	"reelgate/internal/fingerprint"
	"reelgate/internal/identity"
	"reelgate/internal/ingest"
	"reelgate/internal/logging"
	"reelgate/internal/notifications"
	"reelgate/internal/preflight"
	"reelgate/internal/registry"
	"reelgate/internal/scheduler"
	"reelgate/internal/services/drapto"
	"reelgate/internal/stage"
	"reelgate/internal/status"
	"reelgate/internal/subtitles"
	"reelgate/internal/watcher"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
	// WebOnly serves the dashboard API without ingesting or processing.
	WebOnly bool
}

// Run starts the reelgate daemon and blocks until SIGINT, SIGTERM or
// cancellation of cmdCtx.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	started := time.Now()
	logPath := logging.RunLogPath(cfg.Paths.LogDir, started)
	logger, err := logging.NewFromConfig(cfg, logPath)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := logging.LinkCurrent(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.CurrentLogName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, started,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: logging.RunLogPattern, Exclude: []string{logPath}},
	)
	logEnvironment(signalCtx, logger, cfg)

	store, err := registry.Open(cfg)
	if err != nil {
		logger.Error("open registry", logging.Error(err))
		return err
	}
	defer store.Close()

	comps, err := buildComponents(cfg, store, logger, opts.WebOnly)
	if err != nil {
		return err
	}

	d, err := daemon.New(cfg, logger, comps)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	defer d.Close()

	pidPath := daemon.PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	<-signalCtx.Done()
	logger.Info("reelgate daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// publishFunc lets the scheduler publish through a broadcaster that is
// constructed after it.
type publishFunc func(context.Context)

func (f publishFunc) Publish(ctx context.Context) { f(ctx) }

func buildComponents(cfg *config.Config, store *registry.Store, logger *slog.Logger, webOnly bool) (daemon.Components, error) {
	rules, err := identity.CompileRules(cfg.Identity.Rules)
	if err != nil {
		return daemon.Components{}, fmt.Errorf("compile identity rules: %w", err)
	}
	resolver := identity.NewResolver(rules)

	video := drapto.NewFromConfig(cfg, logger)
	subs := subtitles.NewFromConfig(cfg, logger)

	comps := daemon.Components{Store: store, Stages: []stage.Handler{video, subs}}
	if webOnly {
		comps.Broadcaster = status.NewBroadcaster(status.NewReporter(store, nil), logger)
		comps.Files = api.NewFileService(store, resolver, nil, cfg.API.DefaultPageSize, cfg.API.MaxPageSize)
		return comps, nil
	}

	hasher, err := fingerprint.NewFromConfig(cfg)
	if err != nil {
		return daemon.Components{}, fmt.Errorf("init content hasher: %w", err)
	}

	var broadcaster *status.Broadcaster
	sched, err := scheduler.New(cfg, store, subs, video, logger,
		scheduler.WithNotifier(notifications.NewService(cfg)),
		scheduler.WithPublisher(publishFunc(func(ctx context.Context) { broadcaster.Publish(ctx) })),
		scheduler.WithSpaceCheck(preflight.SpaceGuard(cfg)),
	)
	if err != nil {
		return daemon.Components{}, fmt.Errorf("init scheduler: %w", err)
	}
	broadcaster = status.NewBroadcaster(status.NewReporter(store, sched), logger)

	comps.Scheduler = sched
	comps.Broadcaster = broadcaster
	comps.Watcher = watcher.New(watcher.OptionsFromConfig(cfg), logger)
	comps.Gate = ingest.NewGate(resolver, hasher, store, sched, logger, ingest.WithRetrier(comps.Watcher))
	comps.Files = api.NewFileService(store, resolver, sched, cfg.API.DefaultPageSize, cfg.API.MaxPageSize)
	return comps, nil
}

func logEnvironment(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, dep := range deps.Check(cfg) {
		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "dependency_check"),
			logging.String("dependency", dep.Name),
			logging.String("command", dep.Command),
			logging.Bool("available", dep.Available),
		}
		if dep.Available {
			logger.Debug("dependency available", logging.Args(attrs...)...)
			continue
		}
		impact := "media operations that need it fail"
		if dep.Optional {
			impact = "diagnostics are reduced"
		}
		logging.WarnWithContext(logger, "dependency unavailable", "dependency_missing",
			append(attrs,
				logging.String("detail", dep.Detail),
				logging.String(logging.FieldErrorHint, "install "+dep.Command+" or set its path in the config"),
				logging.String(logging.FieldImpact, impact),
			)...,
		)
	}
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run `reelgate check` for details"),
			logging.String(logging.FieldImpact, "affected operations may fail"),
		)
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
