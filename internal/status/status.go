package status

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"reelgate/internal/logging"
)

// Snapshot is the summary pushed to dashboard clients.
type Snapshot struct {
	PendingCount     int       `json:"pendingCount"`
	ProcessingActive bool      `json:"processingActive"`
	At               time.Time `json:"at"`
}

// Counter reports how many records still have work.
type Counter interface {
	PendingCount(ctx context.Context) (int, error)
}

// ActivityProbe reports whether a drain is running.
type ActivityProbe interface {
	Active() bool
}

// Reporter builds snapshots from the registry and the scheduler latch.
type Reporter struct {
	counter Counter
	probe   ActivityProbe
	now     func() time.Time
}

// NewReporter constructs a Reporter. probe may be nil when no scheduler runs
// in this process, for example in web-only mode.
func NewReporter(counter Counter, probe ActivityProbe) *Reporter {
	return &Reporter{counter: counter, probe: probe, now: time.Now}
}

// Snapshot reads the current state.
func (r *Reporter) Snapshot(ctx context.Context) (Snapshot, error) {
	if r == nil || r.counter == nil {
		return Snapshot{}, errors.New("status reporter not configured")
	}
	pending, err := r.counter.PendingCount(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{PendingCount: pending, At: r.now().UTC()}
	if r.probe != nil {
		snap.ProcessingActive = r.probe.Active()
	}
	return snap, nil
}

// Broadcaster fans snapshots out to subscribers. Each subscriber channel
// holds one snapshot; a slow reader sees the newest value and misses the
// ones in between.
type Broadcaster struct {
	reporter *Reporter
	logger   *slog.Logger

	// publishMu orders snapshot-then-deliver so an older reading never
	// replaces a newer one.
	publishMu sync.Mutex

	mu     sync.Mutex
	nextID int
	subs   map[int]chan Snapshot
	last   Snapshot
	ready  bool
}

// NewBroadcaster constructs a Broadcaster.
func NewBroadcaster(reporter *Reporter, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		reporter: reporter,
		logger:   logging.NewComponentLogger(logger, "status"),
		subs:     make(map[int]chan Snapshot),
	}
}

// Run publishes a snapshot every interval until ctx ends.
func (b *Broadcaster) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	b.Publish(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.Publish(ctx)
		}
	}
}

// Publish reads a fresh snapshot and delivers it to every subscriber.
// Concurrent calls are serialized.
func (b *Broadcaster) Publish(ctx context.Context) {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	snap, err := b.reporter.Snapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			b.logger.Warn("status snapshot failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "status_snapshot_failed"),
				logging.String(logging.FieldErrorHint, "check registry database access"),
				logging.String(logging.FieldImpact, "dashboards keep showing the previous status"),
			)
		}
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = snap
	b.ready = true
	for _, ch := range b.subs {
		offer(ch, snap)
	}
}

// Latest returns the most recent snapshot, if one was taken.
func (b *Broadcaster) Latest() (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last, b.ready
}

// Subscribe registers a subscriber. The channel receives the latest snapshot
// immediately when one exists. The returned cancel func unregisters and
// closes the channel; it is safe to call more than once.
func (b *Broadcaster) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	if b.ready {
		ch <- b.last
	}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of registered subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// offer replaces any unread snapshot in ch with snap. Callers hold b.mu, so
// ch has no other sender.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
