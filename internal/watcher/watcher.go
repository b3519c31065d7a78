package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"reelgate/internal/config"
	"reelgate/internal/logging"
)

// Event reports a file whose size and modification time held steady for the
// stability window.
type Event struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Name returns the base filename of the event.
func (e Event) Name() string {
	return filepath.Base(e.Path)
}

// Options configures a Watcher.
type Options struct {
	Root           string
	PollInterval   time.Duration
	Stability      time.Duration
	Extensions     []string
	IgnoreDotfiles bool
	Now            func() time.Time
}

// OptionsFromConfig maps the paths and watcher sections onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Root:           cfg.Paths.InputDir,
		PollInterval:   cfg.PollInterval(),
		Stability:      cfg.StabilityWindow(),
		Extensions:     cfg.Watcher.Extensions,
		IgnoreDotfiles: cfg.Watcher.IgnoreDotfiles,
	}
}

type observation struct {
	size     int64
	modTime  time.Time
	since    time.Time
	reported bool
}

// Watcher polls a directory tree and emits one Event per stable file
// version. Files present at startup are reported too. A file that changes
// after being reported is reported again once it settles.
type Watcher struct {
	opts   Options
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]*observation
}

// New constructs a Watcher.
func New(opts Options, logger *slog.Logger) *Watcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	exts := make([]string, 0, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		exts = append(exts, strings.ToLower(ext))
	}
	opts.Extensions = exts
	return &Watcher{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "watcher"),
		seen:   make(map[string]*observation),
	}
}

// Run polls until ctx ends, sending stable events to out. Sends block, so a
// slow consumer throttles polling instead of losing events. Run closes out
// on return.
func (w *Watcher) Run(ctx context.Context, out chan<- Event) error {
	defer close(out)
	w.logger.Info("watcher started",
		logging.String("root", w.opts.Root),
		logging.Duration("poll_interval", w.opts.PollInterval),
		logging.Duration("stability", w.opts.Stability),
	)

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	for {
		for _, event := range w.Poll() {
			select {
			case out <- event:
			case <-ctx.Done():
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll performs one scan and returns the events that became stable. It is
// exported for tests and for single-shot scans.
func (w *Watcher) Poll() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.opts.Now()
	present := make(map[string]struct{}, len(w.seen))
	var events []Event

	err := filepath.WalkDir(w.opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == w.opts.Root {
				return err
			}
			// Entries can vanish between listing and stat on network shares.
			return nil
		}
		if w.opts.IgnoreDotfiles && path != w.opts.Root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !w.matchesExtension(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		present[path] = struct{}{}
		if event, ok := w.observe(path, info, now); ok {
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(w.logger, "watch root missing", "watch_root_missing",
				logging.String("root", w.opts.Root),
				logging.String(logging.FieldErrorHint, "check paths.input_dir and that the share is mounted"),
				logging.String(logging.FieldImpact, "new files are not ingested until the directory returns"),
			)
		} else {
			logging.WarnWithContext(w.logger, "watch scan failed", "watch_scan_failed",
				logging.String("root", w.opts.Root),
				logging.Error(err),
			)
		}
		// Keep prior observations; an unreachable share should not reset
		// stability tracking.
		return nil
	}

	for path := range w.seen {
		if _, ok := present[path]; !ok {
			delete(w.seen, path)
		}
	}
	slices.SortFunc(events, func(a, b Event) int { return strings.Compare(a.Path, b.Path) })
	return events
}

// Retry re-arms a reported path so it is emitted again after another full
// stability window. Consumers call it when an event could not be handled.
// Unknown paths are ignored; they are reported anyway once they appear.
func (w *Watcher) Retry(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	obs, ok := w.seen[path]
	if !ok {
		return
	}
	obs.reported = false
	obs.since = w.opts.Now()
}

func (w *Watcher) observe(path string, info os.FileInfo, now time.Time) (Event, bool) {
	obs, ok := w.seen[path]
	if !ok || obs.size != info.Size() || !obs.modTime.Equal(info.ModTime()) {
		w.seen[path] = &observation{size: info.Size(), modTime: info.ModTime(), since: now}
		if w.opts.Stability > 0 {
			return Event{}, false
		}
		obs = w.seen[path]
	}
	if obs.reported || now.Sub(obs.since) < w.opts.Stability {
		return Event{}, false
	}
	obs.reported = true
	return Event{Path: path, Size: info.Size(), ModTime: info.ModTime()}, true
}

func (w *Watcher) matchesExtension(name string) bool {
	if len(w.opts.Extensions) == 0 {
		return true
	}
	return slices.Contains(w.opts.Extensions, strings.ToLower(filepath.Ext(name)))
}
