package backfill_test

import (
	"context"
	"strings"
	"testing"

	"reelgate/internal/backfill"
	"reelgate/internal/logging"
	"reelgate/internal/registry"
	"reelgate/internal/testsupport"
)

func newImporter(t *testing.T) (*backfill.Importer, *registry.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRegistry(t, cfg)
	return backfill.NewImporter(store, nil, logging.NewNop()), store
}

func TestImportNames(t *testing.T) {
	im, store := newImporter(t)
	ctx := context.Background()

	input := strings.Join([]string{
		"site.com@abc-123.mp4",
		"",
		"xyz-001-pt1.mkv",
		"holiday video.mp4",
		"ABC-123.mp4",
	}, "\n")
	report, err := im.ImportNames(ctx, strings.NewReader(input))
	if err != nil {
		t.Fatalf("ImportNames: %v", err)
	}
	if report.Inserted != 2 || report.Skipped != 1 || len(report.Unrecognized) != 1 || len(report.Errors) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	rec, err := store.FindByCleanedName(ctx, "ABC-123.mp4")
	if err != nil || rec == nil {
		t.Fatalf("FindByCleanedName: %v", err)
	}
	if !rec.IsLegacy || rec.ContentHash != "" {
		t.Fatalf("expected legacy record without hash, got %+v", rec)
	}
	if rec.VideoStatus != registry.VideoCompleted || rec.SubtitleStatus != registry.SubtitlePending {
		t.Fatalf("unexpected statuses %s/%s", rec.VideoStatus, rec.SubtitleStatus)
	}

	if rec, _ := store.FindByCleanedName(ctx, "XYZ-001-pt1.mkv"); rec == nil {
		t.Fatal("expected part suffix kept lowercase")
	}

	again, err := im.ImportNames(ctx, strings.NewReader(input))
	if err != nil {
		t.Fatalf("ImportNames again: %v", err)
	}
	if again.Inserted != 0 || again.Skipped != 3 {
		t.Fatalf("expected idempotent import, got %+v", again)
	}
}

func TestImportCSVInsertsAndMerges(t *testing.T) {
	im, store := newImporter(t)
	ctx := context.Background()

	if _, err := store.Insert(ctx, &registry.FileRecord{
		OriginalName: "abc-123.mp4",
		CleanedName:  "ABC-123.mp4",
		ContentHash:  "sha-real",
		VideoStatus:  registry.VideoFailed,
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	csvData := strings.Join([]string{
		"filename,file_size_byte,duration_sec,resolution,video_encoder,has_subtitle,subtitle_formats",
		"abc-123,1048576,3600,1920x1080,h264,yes,subrip",
		"def-456,2048,120,1280x720,hevc,no,none",
		"not a code,1,1,1x1,h264,no,none",
		"short,row",
	}, "\n")
	report, err := im.ImportCSV(ctx, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if report.Inserted != 1 || report.Merged != 1 || len(report.Unrecognized) != 1 || len(report.Errors) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	merged, err := store.FindByCleanedName(ctx, "ABC-123.mp4")
	if err != nil || merged == nil {
		t.Fatalf("FindByCleanedName: %v", err)
	}
	if merged.VideoStatus != registry.VideoCompleted {
		t.Fatalf("expected merge to settle video, got %s", merged.VideoStatus)
	}
	if merged.FileSize != 1048576 || merged.Resolution != "1920x1080" || !merged.HasSubtitle || merged.SubtitleFormats != "subrip" {
		t.Fatalf("metadata not merged: %+v", merged.Metadata)
	}

	inserted, err := store.FindByHash(ctx, backfill.LegacyCSVHashPrefix+"DEF-456.mp4")
	if err != nil || inserted == nil {
		t.Fatalf("FindByHash: %v", err)
	}
	if !inserted.IsLegacy || inserted.SubtitleFormats != "" || inserted.DurationSec != 120 {
		t.Fatalf("unexpected inserted record %+v", inserted)
	}

	again, err := im.ImportCSV(ctx, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ImportCSV again: %v", err)
	}
	if again.Inserted != 0 || again.Merged != 2 {
		t.Fatalf("expected second import to merge only, got %+v", again)
	}
}
