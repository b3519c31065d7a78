package ingest_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"reelgate/internal/fingerprint"
	"reelgate/internal/identity"
	"reelgate/internal/ingest"
	"reelgate/internal/registry"
	"reelgate/internal/testsupport"
	"reelgate/internal/watcher"
)

type countingWaker struct{ n atomic.Int32 }

func (w *countingWaker) Wake() { w.n.Add(1) }

func newGate(t *testing.T) (*ingest.Gate, *registry.Store, *countingWaker, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRegistry(t, cfg)
	hasher, err := fingerprint.New("sha256", 0, 0)
	if err != nil {
		t.Fatalf("fingerprint.New: %v", err)
	}
	waker := &countingWaker{}
	gate := ingest.NewGate(identity.NewResolver(nil), hasher, store, waker, nil)
	return gate, store, waker, cfg.Paths.InputDir
}

func stableEvent(t *testing.T, dir, name string, size int64, fill byte) watcher.Event {
	t.Helper()
	path := filepath.Join(dir, name)
	testsupport.WritePattern(t, path, size, fill)
	return watcher.Event{Path: path, Size: size}
}

func TestIdempotentIngestion(t *testing.T) {
	gate, store, waker, dir := newGate(t)
	ctx := context.Background()

	first := stableEvent(t, dir, "hhd800.com@FNS-075.mp4", 2048, 0x10)
	second := stableEvent(t, dir, "copy of FNS-075.mp4", 2048, 0x10)

	if got := gate.Handle(ctx, first); got != ingest.DecisionCreated {
		t.Fatalf("first event decision = %s", got)
	}
	if got := gate.Handle(ctx, second); got != ingest.DecisionRearmed {
		t.Fatalf("same content under another name should rearm, got %s", got)
	}
	if got := gate.Handle(ctx, first); got != ingest.DecisionRearmed {
		t.Fatalf("repeated event should rearm pending work, got %s", got)
	}

	result, err := store.Search(ctx, registry.SearchParams{Status: "all"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("expected exactly one record, got %d", result.Total)
	}
	rec := result.Records[0]
	if rec.OriginalName != "hhd800.com@FNS-075.mp4" || rec.CleanedName != "FNS-075.mp4" {
		t.Fatalf("unexpected names %q / %q", rec.OriginalName, rec.CleanedName)
	}
	if rec.SourcePath != first.Path {
		t.Fatalf("source path = %q, want %q", rec.SourcePath, first.Path)
	}
	if waker.n.Load() != 3 {
		t.Fatalf("expected 3 wakes, got %d", waker.n.Load())
	}

	_ = store.SetStatus(ctx, rec.ID, registry.TrackSubtitle, "extracted")
	_ = store.SetStatus(ctx, rec.ID, registry.TrackVideo, "failed")
	if got := gate.Handle(ctx, second); got != ingest.DecisionAlreadyHandled {
		t.Fatalf("terminal record should be already handled, got %s", got)
	}
	if waker.n.Load() != 3 {
		t.Fatal("already handled content must not wake the scheduler")
	}
}

func TestUnrecognizedAndDeferred(t *testing.T) {
	gate, store, waker, dir := newGate(t)
	ctx := context.Background()

	if got := gate.Handle(ctx, stableEvent(t, dir, "holiday.mp4", 10, 0x01)); got != ingest.DecisionUnrecognized {
		t.Fatalf("decision = %s, want unrecognized", got)
	}
	missing := watcher.Event{Path: filepath.Join(dir, "ABC-404.mp4")}
	if got := gate.Handle(ctx, missing); got != ingest.DecisionDeferred {
		t.Fatalf("decision = %s, want deferred", got)
	}
	count, err := store.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount: %v", err)
	}
	if count != 0 || waker.n.Load() != 0 {
		t.Fatalf("no record or wake expected, got count=%d wakes=%d", count, waker.n.Load())
	}
}

func TestLegacyRecordTerminalOnSubtitle(t *testing.T) {
	gate, store, _, dir := newGate(t)
	ctx := context.Background()
	event := stableEvent(t, dir, "OLD-001.mp4", 64, 0x33)

	hasher, _ := fingerprint.New("sha256", 0, 0)
	hash, err := hasher.Hash(ctx, event.Path)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	id, err := store.Insert(ctx, &registry.FileRecord{
		OriginalName: "OLD-001.mp4",
		CleanedName:  "OLD-001.mp4",
		ContentHash:  hash,
		IsLegacy:     true,
		VideoStatus:  registry.VideoPending,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := gate.Handle(ctx, event); got != ingest.DecisionRearmed {
		t.Fatalf("pending subtitle should rearm, got %s", got)
	}
	_ = store.SetStatus(ctx, id, registry.TrackSubtitle, "extracted")
	if got := gate.Handle(ctx, event); got != ingest.DecisionAlreadyHandled {
		t.Fatalf("legacy video status must not keep the record open, got %s", got)
	}
}

type racingStore struct {
	lookups int
	winner  *registry.FileRecord
}

func (s *racingStore) FindByHash(context.Context, string) (*registry.FileRecord, error) {
	s.lookups++
	if s.lookups == 1 {
		return nil, nil
	}
	return s.winner, nil
}

func (s *racingStore) Insert(context.Context, *registry.FileRecord) (int64, error) {
	return 0, registry.ErrDuplicateHash
}

type fixedHasher string

func (h fixedHasher) Hash(context.Context, string) (string, error) { return string(h), nil }

func TestLostInsertRaceCountsAsKnown(t *testing.T) {
	store := &racingStore{winner: &registry.FileRecord{
		ID:             9,
		VideoStatus:    registry.VideoPending,
		SubtitleStatus: registry.SubtitlePending,
	}}
	waker := &countingWaker{}
	gate := ingest.NewGate(identity.NewResolver(nil), fixedHasher("abc"), store, waker, nil)

	got := gate.Handle(context.Background(), watcher.Event{Path: "/drop/ABC-123.mp4"})
	if got != ingest.DecisionRearmed {
		t.Fatalf("decision = %s, want rearmed", got)
	}
	if store.lookups != 2 || waker.n.Load() != 1 {
		t.Fatalf("lookups=%d wakes=%d", store.lookups, waker.n.Load())
	}
}

type brokenStore struct{}

func (brokenStore) FindByHash(context.Context, string) (*registry.FileRecord, error) {
	return nil, errors.New("database is locked")
}

func (brokenStore) Insert(context.Context, *registry.FileRecord) (int64, error) {
	return 0, errors.New("unreachable")
}

func TestStoreFailure(t *testing.T) {
	gate := ingest.NewGate(identity.NewResolver(nil), fixedHasher("abc"), brokenStore{}, nil, nil)
	if got := gate.Handle(context.Background(), watcher.Event{Path: "/drop/ABC-123.mp4"}); got != ingest.DecisionFailed {
		t.Fatalf("decision = %s, want failed", got)
	}
}

func TestRunConsumesUntilClosed(t *testing.T) {
	gate, store, _, dir := newGate(t)
	events := make(chan watcher.Event, 3)
	events <- stableEvent(t, dir, "AAA-001.mp4", 10, 0x01)
	events <- stableEvent(t, dir, "BBB-002.mp4", 10, 0x02)
	events <- stableEvent(t, dir, "CCC-003.mkv", 10, 0x03)
	close(events)

	if err := gate.Run(context.Background(), events); err != nil {
		t.Fatalf("Run: %v", err)
	}
	records, err := store.ListNonTerminal(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("ListNonTerminal: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, want := range []string{"AAA-001.mp4", "BBB-002.mp4", "CCC-003.mkv"} {
		if records[i].CleanedName != want {
			t.Fatalf("record %d = %s, want %s (arrival order)", i, records[i].CleanedName, want)
		}
	}
}
