package ffprobe

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080},
			{CodecType: "audio"},
			{CodecType: "audio"},
			{CodecType: "subtitle", CodecName: "subrip", Tags: map[string]string{"LANGUAGE": "ENG"}},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	subs := result.SubtitleStreams()
	if len(subs) != 1 || subs[0].Language() != "en" {
		t.Fatalf("unexpected subtitle streams %+v", subs)
	}
	if result.Resolution() != "1920x1080" || result.VideoCodec() != "h264" {
		t.Fatalf("unexpected video summary %q %q", result.Resolution(), result.VideoCodec())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
	if result.Resolution() != "" || result.VideoCodec() != "" {
		t.Fatal("expected empty video summary without streams")
	}
}

func TestInspectParsesOutput(t *testing.T) {
	setHelperCommand(t, "ok")
	result, err := Inspect(context.Background(), "", "/in/a.mkv")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.VideoCodec() != "hevc" || len(result.SubtitleStreams()) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.RawJSON()) == 0 {
		t.Fatal("expected raw json retained")
	}
}

func TestInspectReportsFailure(t *testing.T) {
	setHelperCommand(t, "fail")
	if _, err := Inspect(context.Background(), "ffprobe", "/in/a.mkv"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := Inspect(context.Background(), "ffprobe", " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func setHelperCommand(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("FFPROBE_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() { commandContext = original })
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("FFPROBE_HELPER_MODE") {
	case "ok":
		fmt.Println(`{"streams":[{"index":0,"codec_type":"video","codec_name":"hevc","width":3840,"height":2160},{"index":1,"codec_type":"subtitle","codec_name":"hdmv_pgs_subtitle"}],"format":{"duration":"60.0","size":"2048"}}`)
		os.Exit(0)
	default:
		fmt.Fprintln(os.Stderr, "Invalid data found when processing input")
		os.Exit(1)
	}
}
