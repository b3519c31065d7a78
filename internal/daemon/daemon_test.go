package daemon

import (
	"context"
	"strings"
	"testing"
	"time"

	"reelgate/internal/api"
	"reelgate/internal/config"
	"reelgate/internal/logging"
	"reelgate/internal/registry"
	"reelgate/internal/scheduler"
	"reelgate/internal/stage"
	"reelgate/internal/status"
	"reelgate/internal/testsupport"
)

type fakeStage struct {
	health stage.Health
}

func (f fakeStage) Run(context.Context, stage.Job) (stage.Result, error) {
	return stage.Result{}, nil
}

func (f fakeStage) HealthCheck(context.Context) stage.Health { return f.health }

func webOnlyComponents(t *testing.T, cfg *config.Config) (Components, *registry.Store) {
	t.Helper()
	store := testsupport.MustOpenRegistry(t, cfg)
	reporter := status.NewReporter(store, nil)
	return Components{
		Store:       store,
		Broadcaster: status.NewBroadcaster(reporter, logging.NewNop()),
		Files:       api.NewFileService(store, nil, nil, cfg.API.DefaultPageSize, cfg.API.MaxPageSize),
		Stages: []stage.Handler{
			fakeStage{health: stage.Healthy("subtitles")},
			fakeStage{health: stage.Unhealthy("video", "drapto missing")},
		},
	}, store
}

func TestNewRequiresStoreAndBroadcaster(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := New(cfg, logging.NewNop(), Components{}); err == nil {
		t.Fatal("expected error without store")
	}
}

func TestStartStopReleasesLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.API.Enabled = false
	comps, _ := webOnlyComponents(t, cfg)

	d, err := New(cfg, logging.NewNop(), comps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !d.WebOnly() {
		t.Fatal("expected web-only daemon")
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected second Start on same daemon to fail")
	}

	second, err := New(cfg, logging.NewNop(), comps)
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	err = second.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}

	st := d.Status(context.Background())
	if !st.Running || st.LockFilePath != LockPath(cfg) {
		t.Fatalf("unexpected status %+v", st)
	}
	if len(st.Stages) != 2 {
		t.Fatalf("expected 2 stage health entries, got %d", len(st.Stages))
	}

	d.Stop()
	if d.Status(context.Background()).Running {
		t.Fatal("expected daemon stopped")
	}
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("Start after release: %v", err)
	}
	second.Stop()
}

func TestStartResetsInterruptedRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSchedule("01:00", "02:00"))
	cfg.API.Enabled = false
	comps, store := webOnlyComponents(t, cfg)

	id, err := store.Insert(context.Background(), &registry.FileRecord{
		OriginalName: "ABC-123.mp4",
		CleanedName:  "ABC-123.mp4",
		ContentHash:  "hash-abc",
		VideoStatus:  registry.VideoProcessing,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	noon := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	sched, err := scheduler.New(cfg, store, fakeStage{}, fakeStage{}, logging.NewNop(),
		scheduler.WithClock(func() time.Time { return noon }))
	if err != nil {
		t.Fatalf("scheduler.New: %v", err)
	}
	comps.Scheduler = sched

	d, err := New(cfg, logging.NewNop(), comps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	rec, err := store.GetByID(context.Background(), id)
	if err != nil || rec == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec.VideoStatus != registry.VideoPending {
		t.Fatalf("expected pending after reset, got %s", rec.VideoStatus)
	}
	st := d.Status(context.Background())
	if st.WebOnly || st.Window != "01:00-02:00" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestLastDrainReadsSettings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()
	if err := store.SetSetting(ctx, scheduler.SettingLastDrainOutcome, "completed"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	info := LastDrain(ctx, store)
	if info.Outcome != "completed" || info.StartedAt != "" {
		t.Fatalf("unexpected drain info %+v", info)
	}
}
