package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CheckFFmpegForDrapto reports the ffmpeg binary the drapto CLI will run.
// Drapto prefers an ffmpeg sitting next to its own executable and otherwise
// resolves "ffmpeg" from PATH.
func CheckFFmpegForDrapto(draptoCommand string) Status {
	result := Status{
		Name:        "FFmpeg (drapto)",
		Description: "Used by drapto for encoding",
	}
	if sidecar, ok := draptoSidecar(strings.TrimSpace(draptoCommand)); ok {
		result.Command = sidecar
		result.Available = true
		return result
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		result.Command = path
		result.Available = true
		return result
	}
	result.Command = "ffmpeg"
	result.Detail = `binary "ffmpeg" not found next to drapto or on PATH`
	return result
}

func draptoSidecar(drapto string) (string, bool) {
	if drapto == "" {
		return "", false
	}
	resolved, err := exec.LookPath(drapto)
	if err != nil {
		return "", false
	}
	candidate := filepath.Join(filepath.Dir(resolved), "ffmpeg")
	info, err := os.Stat(candidate)
	if err != nil || info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return "", false
	}
	return candidate, true
}

// Describe renders a status as a one-line summary.
func (s Status) Describe() string {
	if s.Available {
		return fmt.Sprintf("%s: ok (%s)", s.Name, s.Command)
	}
	label := "missing"
	if s.Optional {
		label = "missing (optional)"
	}
	return fmt.Sprintf("%s: %s - %s", s.Name, label, s.Detail)
}
