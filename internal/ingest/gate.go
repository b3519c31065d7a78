package ingest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"reelgate/internal/identity"
	"reelgate/internal/logging"
	"reelgate/internal/registry"
	"reelgate/internal/services"
	"reelgate/internal/watcher"
)

// Decision is the outcome of handling one stable-file event.
type Decision string

const (
	DecisionUnrecognized   Decision = "unrecognized"
	DecisionDeferred       Decision = "deferred"
	DecisionCreated        Decision = "created"
	DecisionAlreadyHandled Decision = "already_handled"
	DecisionRearmed        Decision = "rearmed"
	DecisionFailed         Decision = "failed"
)

var eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "reelgate_ingest_events_total",
	Help: "Stable-file events handled by the ingestion gate, by decision.",
}, []string{"decision"})

// Resolver extracts catalog identities from filenames.
type Resolver interface {
	Resolve(filename string) (identity.Identity, bool)
}

// Hasher computes file content digests.
type Hasher interface {
	Hash(ctx context.Context, path string) (string, error)
}

// Store is the slice of the registry the gate depends on.
type Store interface {
	FindByHash(ctx context.Context, hash string) (*registry.FileRecord, error)
	Insert(ctx context.Context, rec *registry.FileRecord) (int64, error)
}

// Waker is notified when a record gains outstanding work.
type Waker interface {
	Wake()
}

// Retrier re-arms an event source for a path the gate could not handle.
type Retrier interface {
	Retry(path string)
}

// Option configures a Gate.
type Option func(*Gate)

// WithRetrier hands deferred and failed events back to r, typically the
// watcher, so the file is offered again after it settles once more.
func WithRetrier(r Retrier) Option {
	return func(g *Gate) { g.retrier = r }
}

// Gate turns stable-file events into registry records. Run is the only
// consumer of its event channel, so events are handled one at a time in
// arrival order.
type Gate struct {
	resolver Resolver
	hasher   Hasher
	store    Store
	waker    Waker
	retrier  Retrier
	logger   *slog.Logger
}

// NewGate constructs a Gate. waker may be nil.
func NewGate(resolver Resolver, hasher Hasher, store Store, waker Waker, logger *slog.Logger, opts ...Option) *Gate {
	g := &Gate{
		resolver: resolver,
		hasher:   hasher,
		store:    store,
		waker:    waker,
		logger:   logging.NewComponentLogger(logger, "ingest"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run consumes events until the channel closes or ctx ends.
func (g *Gate) Run(ctx context.Context, events <-chan watcher.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			switch g.Handle(ctx, event) {
			case DecisionDeferred, DecisionFailed:
				if g.retrier != nil {
					g.retrier.Retry(event.Path)
				}
			}
		}
	}
}

// Handle processes a single event and reports the decision taken.
func (g *Gate) Handle(ctx context.Context, event watcher.Event) Decision {
	decision := g.decide(ctx, event)
	eventsTotal.WithLabelValues(string(decision)).Inc()
	return decision
}

func (g *Gate) decide(ctx context.Context, event watcher.Event) Decision {
	name := event.Name()
	logger := g.logger.With(logging.String("file", name))

	id, ok := g.resolver.Resolve(name)
	if !ok {
		logger.Info("skipping file with unrecognized name",
			logging.String(logging.FieldEventType, "ingest_unrecognized"),
		)
		return DecisionUnrecognized
	}

	hash, err := g.hasher.Hash(ctx, event.Path)
	if err != nil {
		logging.WarnWithContext(logger, "content hash failed; will retry once the file settles again", "ingest_hash_deferred",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, "check the file is readable and the share is reachable"),
			logging.String(logging.FieldImpact, "file is not registered yet"),
		)
		return DecisionDeferred
	}

	existing, err := g.store.FindByHash(ctx, hash)
	if err != nil {
		return g.storeFailure(logger, "lookup", err)
	}
	if existing == nil {
		rec := &registry.FileRecord{
			OriginalName: name,
			CleanedName:  id.CleanedName(),
			ContentHash:  hash,
			SourcePath:   event.Path,
		}
		fileID, err := g.store.Insert(ctx, rec)
		switch {
		case err == nil:
			logger.Info("file registered",
				logging.Int64(logging.FieldFileID, fileID),
				logging.String("cleaned_name", rec.CleanedName),
				logging.String("rule", id.Rule),
				logging.String(logging.FieldEventType, "ingest_created"),
			)
			g.wake()
			return DecisionCreated
		case errors.Is(err, registry.ErrDuplicateHash):
			// Another writer registered the same content first.
			existing, err = g.store.FindByHash(ctx, hash)
			if err != nil {
				return g.storeFailure(logger, "lookup", err)
			}
			if existing == nil {
				return g.storeFailure(logger, "lookup", errors.New("duplicate hash reported but record not found"))
			}
		default:
			return g.storeFailure(logger, "insert", err)
		}
	}

	logger = logger.With(logging.Int64(logging.FieldFileID, existing.ID))
	if existing.Terminal() {
		logger.Info("content already handled",
			logging.String("video_status", string(existing.VideoStatus)),
			logging.String("subtitle_status", string(existing.SubtitleStatus)),
			logging.String(logging.FieldEventType, "ingest_already_handled"),
		)
		return DecisionAlreadyHandled
	}
	logger.Info("known content has outstanding work",
		logging.String("video_status", string(existing.VideoStatus)),
		logging.String("subtitle_status", string(existing.SubtitleStatus)),
		logging.String(logging.FieldEventType, "ingest_rearmed"),
	)
	g.wake()
	return DecisionRearmed
}

func (g *Gate) storeFailure(logger *slog.Logger, op string, err error) Decision {
	logging.ErrorWithContext(logger, "registry "+op+" failed", "ingest_store_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the registry database is writable"),
	)
	return DecisionFailed
}

func (g *Gate) wake() {
	if g.waker != nil {
		g.waker.Wake()
	}
}
