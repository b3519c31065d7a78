// Package deps reports whether the external binaries reelgate shells out to
// are installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"reelgate/internal/config"
)

// Requirement defines an external binary reelgate relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// ForConfig lists the binaries the configured media operations need.
func ForConfig(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	reqs := []Requirement{
		{Name: "FFprobe", Command: cfg.FFprobeBinary(), Description: "Required for subtitle stream discovery"},
		{Name: "FFmpeg", Command: cfg.FFmpegBinary(), Description: "Required for subtitle extraction"},
	}
	if cfg.Encoding.Engine == "cli" {
		reqs = append(reqs, Requirement{Name: "Drapto", Command: cfg.DraptoBinary(), Description: "Required for video encoding"})
	}
	return reqs
}

// Check evaluates ForConfig plus, for the drapto CLI engine, the ffmpeg
// binary drapto will execute.
func Check(cfg *config.Config) []Status {
	results := CheckBinaries(ForConfig(cfg))
	if cfg != nil && cfg.Encoding.Engine == "cli" {
		results = append(results, CheckFFmpegForDrapto(cfg.DraptoBinary()))
	}
	return results
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			out = append(out, status)
		}
	}
	return out
}

// CheckBinaries resolves each requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{
			Name:        req.Name,
			Command:     strings.TrimSpace(req.Command),
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case status.Command == "":
			status.Detail = "command not configured"
		default:
			if _, err := exec.LookPath(status.Command); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", status.Command)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}
