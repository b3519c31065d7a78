package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"reelgate/internal/config"
	"reelgate/internal/registry"
	"reelgate/internal/scheduler"
	"reelgate/internal/services"
	"reelgate/internal/stage"
	"reelgate/internal/testsupport"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// journal records operation calls across both tracks in order.
type journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	j.calls = append(j.calls, entry)
	j.mu.Unlock()
}

func (j *journal) entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.calls...)
}

type fakeOp struct {
	track   registry.Track
	journal *journal
	fail    map[string]bool
	panics  map[string]bool
	started chan struct{}
	release chan struct{}
	onRun   func(stage.Job)
}

func (f *fakeOp) Run(ctx context.Context, job stage.Job) (stage.Result, error) {
	if f.journal != nil {
		f.journal.add(fmt.Sprintf("%s:%s", f.track, job.CleanedName))
	}
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return stage.Result{}, ctx.Err()
		}
	}
	if f.onRun != nil {
		f.onRun(job)
	}
	if f.panics[job.CleanedName] {
		panic("boom")
	}
	if f.fail[job.CleanedName] {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, string(f.track), "run", "tool exited 1", nil)
	}
	out := filepath.Join(job.OutputDir, job.OutputBase()+"."+string(f.track))
	return stage.Result{OutputPath: out, Outputs: []string{out}}, nil
}

type harness struct {
	cfg       *config.Config
	store     *registry.Store
	journal   *journal
	subtitles *fakeOp
	video     *fakeOp
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	j := &journal{}
	return &harness{
		cfg:       cfg,
		store:     testsupport.MustOpenRegistry(t, cfg),
		journal:   j,
		subtitles: &fakeOp{track: registry.TrackSubtitle, journal: j},
		video:     &fakeOp{track: registry.TrackVideo, journal: j},
	}
}

func (h *harness) scheduler(t *testing.T, opts ...scheduler.Option) *scheduler.Scheduler {
	t.Helper()
	s, err := scheduler.New(h.cfg, h.store, h.subtitles, h.video, nil, opts...)
	if err != nil {
		t.Fatalf("scheduler.New: %v", err)
	}
	return s
}

// add inserts a record whose source file exists in the drop directory.
func (h *harness) add(t *testing.T, name string, legacy bool) int64 {
	t.Helper()
	path := filepath.Join(h.cfg.Paths.InputDir, name)
	testsupport.WriteFile(t, path, 16)
	rec := &registry.FileRecord{
		OriginalName: name,
		CleanedName:  name,
		ContentHash:  "hash-" + name,
		SourcePath:   path,
		IsLegacy:     legacy,
	}
	id, err := h.store.Insert(context.Background(), rec)
	if err != nil {
		t.Fatalf("Insert(%s): %v", name, err)
	}
	return id
}

func (h *harness) record(t *testing.T, id int64) *registry.FileRecord {
	t.Helper()
	rec, err := h.store.GetByID(context.Background(), id)
	if err != nil || rec == nil {
		t.Fatalf("GetByID(%d): %v", id, err)
	}
	return rec
}

func TestDrainRunsSubtitleBeforeVideo(t *testing.T) {
	h := newHarness(t)
	first := h.add(t, "AAA-001.mp4", false)
	second := h.add(t, "AAA-002.mp4", false)

	report, err := h.scheduler(t).Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if report.Outcome != scheduler.OutcomeCompleted || report.Processed != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	want := []string{"subtitle:AAA-001.mp4", "video:AAA-001.mp4", "subtitle:AAA-002.mp4", "video:AAA-002.mp4"}
	got := h.journal.entries()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("call order = %v, want %v", got, want)
	}
	for _, id := range []int64{first, second} {
		rec := h.record(t, id)
		if rec.SubtitleStatus != registry.SubtitleExtracted || rec.VideoStatus != registry.VideoCompleted {
			t.Fatalf("record %d not finished: %+v", id, rec)
		}
		logs, err := h.store.ProcessLogs(context.Background(), id)
		if err != nil {
			t.Fatalf("ProcessLogs: %v", err)
		}
		if len(logs) != 2 {
			t.Fatalf("expected two process log entries for %d, got %d", id, len(logs))
		}
	}
	outcome, ok, err := h.store.GetSetting(context.Background(), scheduler.SettingLastDrainOutcome)
	if err != nil || !ok || outcome != string(scheduler.OutcomeCompleted) {
		t.Fatalf("last drain outcome = %q (ok=%v, err=%v)", outcome, ok, err)
	}
}

func TestDrainIsolatesFailures(t *testing.T) {
	h := newHarness(t)
	ok1 := h.add(t, "BBB-001.mp4", false)
	bad := h.add(t, "BBB-002.mp4", false)
	ok2 := h.add(t, "BBB-003.mp4", false)
	h.video.fail = map[string]bool{"BBB-002.mp4": true}

	report, err := h.scheduler(t).Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if report.Processed != 3 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	failed := h.record(t, bad)
	if failed.VideoStatus != registry.VideoFailed {
		t.Fatalf("expected failed video, got %s", failed.VideoStatus)
	}
	if failed.SubtitleStatus != registry.SubtitleExtracted {
		t.Fatalf("subtitle track must be unaffected, got %s", failed.SubtitleStatus)
	}
	for _, id := range []int64{ok1, ok2} {
		if rec := h.record(t, id); rec.VideoStatus != registry.VideoCompleted {
			t.Fatalf("record %d should complete despite neighbour failure: %+v", id, rec)
		}
	}

	logs, err := h.store.ProcessLogs(context.Background(), bad)
	if err != nil {
		t.Fatalf("ProcessLogs: %v", err)
	}
	var videoErr string
	for _, entry := range logs {
		if entry.Operation == registry.TrackVideo {
			videoErr = entry.ErrorLog
		}
	}
	if videoErr == "" {
		t.Fatal("expected error text in the video process log")
	}
	var result scheduler.RecordResult
	for _, r := range report.Results {
		if r.FileID == bad {
			result = r
		}
	}
	if !errors.Is(result.Err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", result.Err)
	}
}

func TestDrainRecoversOperationPanic(t *testing.T) {
	h := newHarness(t)
	id := h.add(t, "CCC-001.mp4", false)
	h.subtitles.panics = map[string]bool{"CCC-001.mp4": true}

	report, err := h.scheduler(t).Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("expected one failed record, got %+v", report)
	}
	rec := h.record(t, id)
	if rec.SubtitleStatus != registry.SubtitleFailed {
		t.Fatalf("expected subtitle failed after panic, got %s", rec.SubtitleStatus)
	}
	if rec.VideoStatus != registry.VideoCompleted {
		t.Fatalf("video should still run after subtitle panic, got %s", rec.VideoStatus)
	}
}

func TestDrainStopsAtCutoff(t *testing.T) {
	h := newHarness(t, testsupport.WithSchedule("00:00", "08:50"))
	first := h.add(t, "DDD-001.mp4", false)
	second := h.add(t, "DDD-002.mp4", false)
	third := h.add(t, "DDD-003.mp4", false)

	clock := &fakeClock{now: time.Date(2026, 3, 2, 8, 40, 0, 0, time.Local)}
	h.video.onRun = func(stage.Job) { clock.Advance(5 * time.Minute) }

	report, err := h.scheduler(t, scheduler.WithClock(clock.Now)).Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if report.Outcome != scheduler.OutcomeCutoff {
		t.Fatalf("expected cutoff outcome, got %s", report.Outcome)
	}
	if report.Processed != 2 {
		t.Fatalf("expected two records before cutoff, got %d", report.Processed)
	}
	// The record started at 08:45 runs to completion past 08:50.
	for _, id := range []int64{first, second} {
		if rec := h.record(t, id); rec.VideoStatus != registry.VideoCompleted {
			t.Fatalf("record %d should have completed: %+v", id, rec)
		}
	}
	untouched := h.record(t, third)
	if untouched.SubtitleStatus != registry.SubtitlePending || untouched.VideoStatus != registry.VideoPending {
		t.Fatalf("record after cutoff must stay pending: %+v", untouched)
	}
	logs, err := h.store.ProcessLogs(context.Background(), third)
	if err != nil {
		t.Fatalf("ProcessLogs: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("record after cutoff must have no process logs, got %d", len(logs))
	}
}

func TestDrainOutsideWindowDoesNothing(t *testing.T) {
	h := newHarness(t, testsupport.WithSchedule("00:00", "08:50"))
	h.add(t, "EEE-001.mp4", false)
	clock := &fakeClock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.Local)}

	report, err := h.scheduler(t, scheduler.WithClock(clock.Now)).Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if report.Outcome != scheduler.OutcomeClosed || report.Processed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if calls := h.journal.entries(); len(calls) != 0 {
		t.Fatalf("expected no operations, got %v", calls)
	}
}

func TestDrainIsSingleFlight(t *testing.T) {
	h := newHarness(t)
	h.add(t, "FFF-001.mp4", false)
	h.subtitles.started = make(chan struct{}, 1)
	h.subtitles.release = make(chan struct{})
	s := h.scheduler(t)

	done := make(chan error, 1)
	go func() {
		_, err := s.Drain(context.Background())
		done <- err
	}()

	select {
	case <-h.subtitles.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first drain never started its operation")
	}
	if !s.Active() {
		t.Fatal("expected scheduler to report an active drain")
	}
	if _, err := s.Drain(context.Background()); !errors.Is(err, scheduler.ErrDrainActive) {
		t.Fatalf("second drain err = %v, want ErrDrainActive", err)
	}

	close(h.subtitles.release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first drain: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first drain did not finish")
	}
	if s.Active() {
		t.Fatal("latch must be released after the drain")
	}
	if got := len(h.journal.entries()); got != 2 {
		t.Fatalf("expected one subtitle and one video call, got %d", got)
	}
	if _, err := s.Drain(context.Background()); err != nil {
		t.Fatalf("drain after release: %v", err)
	}
}

func TestDrainSkipsVideoForLegacyRecords(t *testing.T) {
	h := newHarness(t)
	legacy := h.add(t, "GGG-001.mp4", true)

	if _, err := h.scheduler(t).Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	calls := h.journal.entries()
	if len(calls) != 1 || calls[0] != "subtitle:GGG-001.mp4" {
		t.Fatalf("legacy record must only run subtitle extraction, got %v", calls)
	}
	rec := h.record(t, legacy)
	if rec.SubtitleStatus != registry.SubtitleExtracted || rec.VideoStatus != registry.VideoCompleted {
		t.Fatalf("unexpected legacy record state %+v", rec)
	}
}

func TestDrainFailsRecordWithMissingSource(t *testing.T) {
	h := newHarness(t)
	id, err := h.store.Insert(context.Background(), &registry.FileRecord{
		OriginalName: "HHH-001.mp4",
		CleanedName:  "HHH-001.mp4",
		ContentHash:  "hash-missing",
		SourcePath:   filepath.Join(h.cfg.Paths.InputDir, "gone.mp4"),
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	report, err := h.scheduler(t).Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("expected missing source to fail the record, got %+v", report)
	}
	if calls := h.journal.entries(); len(calls) != 0 {
		t.Fatalf("operations must not run without a source, got %v", calls)
	}
	rec := h.record(t, id)
	if rec.SubtitleStatus != registry.SubtitleFailed || rec.VideoStatus != registry.VideoFailed {
		t.Fatalf("unexpected record state %+v", rec)
	}
	if !errors.Is(report.Results[0].Err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", report.Results[0].Err)
	}
}

func TestDrainFindsArchivedSource(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteFile(t, filepath.Join(h.cfg.Paths.ArchiveDir, "III-001.mp4"), 8)
	if _, err := h.store.Insert(context.Background(), &registry.FileRecord{
		OriginalName: "site@iii-001.mp4",
		CleanedName:  "III-001.mp4",
		ContentHash:  "hash-archived",
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	report, err := h.scheduler(t).Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if report.Failed != 0 || report.Processed != 1 {
		t.Fatalf("expected archived source to be used, got %+v", report)
	}
}

type countingPublisher struct {
	mu     sync.Mutex
	calls  int
	active []bool
	s      *scheduler.Scheduler
}

func (p *countingPublisher) Publish(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.s != nil {
		p.active = append(p.active, p.s.Active())
	}
}

func TestDrainPublishesStatusAfterRelease(t *testing.T) {
	h := newHarness(t)
	h.add(t, "JJJ-001.mp4", false)
	pub := &countingPublisher{}
	s := h.scheduler(t, scheduler.WithPublisher(pub))
	pub.s = s

	if _, err := s.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.calls != 1 {
		t.Fatalf("expected one publish, got %d", pub.calls)
	}
	if pub.active[0] {
		t.Fatal("publish must observe the released latch")
	}
}

func TestDrainStopsWhenSpaceCheckFails(t *testing.T) {
	h := newHarness(t)
	id := h.add(t, "KKK-001.mp4", false)
	lowSpace := func(context.Context) error { return errors.New("only 1 GiB free") }

	report, err := h.scheduler(t, scheduler.WithSpaceCheck(lowSpace)).Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if report.Outcome != scheduler.OutcomeNoSpace || report.Processed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if rec := h.record(t, id); rec.SubtitleStatus != registry.SubtitlePending {
		t.Fatalf("record must stay pending, got %+v", rec)
	}
}

func TestRunDrainsOnStartupAndWake(t *testing.T) {
	h := newHarness(t)
	first := h.add(t, "LLL-001.mp4", false)
	s := h.scheduler(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitFor(t, func() bool { return h.record(t, first).VideoStatus == registry.VideoCompleted })

	second := h.add(t, "LLL-002.mp4", false)
	s.Wake()
	s.Wake() // coalesced, never blocks
	waitFor(t, func() bool { return h.record(t, second).VideoStatus == registry.VideoCompleted })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNewRequiresBothOperations(t *testing.T) {
	h := newHarness(t)
	if _, err := scheduler.New(h.cfg, h.store, nil, h.video, nil); err == nil {
		t.Fatal("expected an error without a subtitle extractor")
	}
	if _, err := scheduler.New(h.cfg, h.store, h.subtitles, nil, nil); err == nil {
		t.Fatal("expected an error without a transcoder")
	}
}
