package subtitles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelgate/internal/media/ffprobe"
	"reelgate/internal/registry"
	"reelgate/internal/services"
	"reelgate/internal/stage"
)

func newJob(t *testing.T) stage.Job {
	t.Helper()
	base := t.TempDir()
	source := filepath.Join(base, "Movie.2021.mkv")
	if err := os.WriteFile(source, []byte("media"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return stage.Job{
		FileID:      7,
		Track:       registry.TrackSubtitle,
		SourcePath:  source,
		CleanedName: "Movie.2021.mkv",
		OutputDir:   filepath.Join(base, "out"),
	}
}

func staticProbe(result ffprobe.Result, err error) prober {
	return func(context.Context, string, string) (ffprobe.Result, error) {
		return result, err
	}
}

// writingRunner emulates ffmpeg by writing content to the last argument.
func writingRunner(calls *[][]string, content string) commandRunner {
	return func(_ context.Context, name string, args ...string) error {
		*calls = append(*calls, append([]string{name}, args...))
		return os.WriteFile(args[len(args)-1], []byte(content), 0o644)
	}
}

func TestExtractorWritesTextAndBitmapStreams(t *testing.T) {
	job := newJob(t)
	probe := ffprobe.Result{
		Streams: []ffprobe.Stream{
			{Index: 0, CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080},
			{Index: 2, CodecType: "subtitle", CodecName: "subrip", Tags: map[string]string{"language": "eng"}},
			{Index: 3, CodecType: "subtitle", CodecName: "hdmv_pgs_subtitle"},
		},
		Format: ffprobe.Format{Duration: "5400.5", Size: "1234"},
	}
	var calls [][]string
	srt := "1\n00:00:01,000 --> 00:00:02,000\nwww.example.com\n\n2\n00:00:03,000 --> 00:00:04,000\nHi\n"
	extractor := New("ffmpeg-test", "ffprobe-test", nil,
		WithProber(staticProbe(probe, nil)),
		WithCommandRunner(writingRunner(&calls, srt)),
	)

	result, err := extractor.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantSRT := filepath.Join(job.OutputDir, "Movie.2021.0.en.srt")
	wantSUP := filepath.Join(job.OutputDir, "Movie.2021.1.sup")
	if len(result.Outputs) != 2 || result.Outputs[0] != wantSRT || result.Outputs[1] != wantSUP {
		t.Fatalf("unexpected outputs %v", result.Outputs)
	}
	if result.OutputPath != wantSRT {
		t.Fatalf("unexpected output path %q", result.OutputPath)
	}
	data, err := os.ReadFile(wantSRT)
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	if strings.Contains(string(data), "example.com") {
		t.Fatalf("expected advertisement removed, got %q", data)
	}
	if len(calls) != 2 || calls[0][0] != "ffmpeg-test" {
		t.Fatalf("unexpected ffmpeg calls %v", calls)
	}
	if !strings.Contains(strings.Join(calls[0], " "), "-map 0:2 -c:s srt") {
		t.Fatalf("expected srt conversion args, got %v", calls[0])
	}
	if !strings.Contains(strings.Join(calls[1], " "), "-map 0:3 -c:s copy") {
		t.Fatalf("expected pgs copy args, got %v", calls[1])
	}
	if _, err := os.Stat(job.PartialDir()); !os.IsNotExist(err) {
		t.Fatalf("expected partial dir removed, stat err=%v", err)
	}

	meta := result.Metadata
	if meta == nil {
		t.Fatal("expected metadata")
	}
	if meta.Resolution != "1920x1080" || meta.VideoEncoder != "h264" || meta.FileSize != 1234 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if !meta.HasSubtitle || meta.SubtitleFormats != "hdmv_pgs_subtitle,subrip" || meta.DurationSec != 5400.5 {
		t.Fatalf("unexpected subtitle metadata %+v", meta)
	}
}

func TestExtractorNoStreamsSucceedsWithoutOutputs(t *testing.T) {
	job := newJob(t)
	probe := ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video", CodecName: "hevc"}}}
	ran := false
	extractor := New("", "", nil,
		WithProber(staticProbe(probe, nil)),
		WithCommandRunner(func(context.Context, string, ...string) error { ran = true; return nil }),
	)
	result, err := extractor.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ran || len(result.Outputs) != 0 {
		t.Fatalf("expected no extraction, ran=%v outputs=%v", ran, result.Outputs)
	}
	if result.Metadata == nil || result.Metadata.HasSubtitle {
		t.Fatalf("unexpected metadata %+v", result.Metadata)
	}
	if result.Metadata.FileSize != int64(len("media")) {
		t.Fatalf("expected stat fallback size, got %d", result.Metadata.FileSize)
	}
}

func TestExtractorSkipsUnsupportedCodecs(t *testing.T) {
	job := newJob(t)
	probe := ffprobe.Result{Streams: []ffprobe.Stream{{Index: 1, CodecType: "subtitle", CodecName: "dvd_subtitle"}}}
	var calls [][]string
	extractor := New("", "", nil, WithProber(staticProbe(probe, nil)), WithCommandRunner(writingRunner(&calls, "")))
	result, err := extractor.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(calls) != 0 || len(result.Outputs) != 0 {
		t.Fatalf("expected unsupported stream skipped, calls=%v outputs=%v", calls, result.Outputs)
	}
}

func TestExtractorWrapsFailures(t *testing.T) {
	job := newJob(t)
	extractor := New("", "", nil, WithProber(staticProbe(ffprobe.Result{}, errors.New("moov atom not found"))))
	if _, err := extractor.Run(context.Background(), job); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error for probe, got %v", err)
	}

	probe := ffprobe.Result{Streams: []ffprobe.Stream{{Index: 1, CodecType: "subtitle", CodecName: "ass"}}}
	extractor = New("", "", nil,
		WithProber(staticProbe(probe, nil)),
		WithCommandRunner(func(context.Context, string, ...string) error { return errors.New("exit status 1") }),
	)
	_, err := extractor.Run(context.Background(), job)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error for ffmpeg, got %v", err)
	}
	entries, _ := os.ReadDir(job.OutputDir)
	for _, entry := range entries {
		if !entry.IsDir() {
			t.Fatalf("expected no outputs after failure, found %s", entry.Name())
		}
	}
}

func TestExtractorValidatesJob(t *testing.T) {
	extractor := New("", "", nil)
	if _, err := extractor.Run(context.Background(), stage.Job{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExtractorHealthCheck(t *testing.T) {
	health := New("definitely-missing-ffmpeg", "", nil).HealthCheck(context.Background())
	if health.Ready {
		t.Fatal("expected unhealthy when ffmpeg is missing")
	}
	if !strings.Contains(health.Detail, "definitely-missing-ffmpeg") {
		t.Fatalf("unexpected detail %q", health.Detail)
	}
}
