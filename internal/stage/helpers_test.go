package stage

import (
	"errors"
	"path/filepath"
	"testing"

	"reelgate/internal/registry"
	"reelgate/internal/services"
)

func TestJobOutputBase(t *testing.T) {
	cases := []struct {
		job  Job
		want string
	}{
		{Job{CleanedName: "FNS-075.mp4"}, "FNS-075"},
		{Job{CleanedName: "VDO-001-pt1.mkv"}, "VDO-001-pt1"},
		{Job{SourcePath: "/in/raw name.mkv"}, "raw name"},
	}
	for _, tc := range cases {
		if got := tc.job.OutputBase(); got != tc.want {
			t.Fatalf("OutputBase(%+v) = %q, want %q", tc.job, got, tc.want)
		}
	}
}

func TestJobPartialDirIsStablePerRecord(t *testing.T) {
	job := Job{FileID: 7, Track: registry.TrackVideo, OutputDir: "/out"}
	want := filepath.Join("/out", ".partial", "7-video")
	if got := job.PartialDir(); got != want {
		t.Fatalf("PartialDir = %q, want %q", got, want)
	}
	if job.PartialDir() != job.PartialDir() {
		t.Fatal("expected deterministic partial dir")
	}
}

func TestJobValidate(t *testing.T) {
	valid := Job{FileID: 1, SourcePath: "/in/a.mp4", OutputDir: "/out"}
	if err := valid.Validate("encoding"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, job := range []Job{
		{SourcePath: "/in/a.mp4", OutputDir: "/out"},
		{FileID: 1, OutputDir: "/out"},
		{FileID: 1, SourcePath: "/in/a.mp4"},
	} {
		err := job.Validate("encoding")
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", job, err)
		}
	}
}

func TestHealthConstructors(t *testing.T) {
	if h := Healthy("ffmpeg"); !h.Ready || h.Name != "ffmpeg" {
		t.Fatalf("unexpected healthy record %+v", h)
	}
	if h := Unhealthy("drapto", "binary missing"); h.Ready || h.Detail != "binary missing" {
		t.Fatalf("unexpected unhealthy record %+v", h)
	}
}

func TestNotReadyKeepsOrder(t *testing.T) {
	checks := []Health{
		Unhealthy("subtitles", "ffprobe missing"),
		Healthy("video"),
		Unhealthy("extra", ""),
	}
	got := NotReady(checks)
	if len(got) != 2 || got[0] != "subtitles" || got[1] != "extra" {
		t.Fatalf("unexpected not-ready list %v", got)
	}
	if NotReady([]Health{Healthy("video")}) != nil {
		t.Fatal("expected nil when every operation is ready")
	}
}
