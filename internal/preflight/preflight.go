package preflight

import (
	"context"
	"fmt"
	"strings"

	"reelgate/internal/config"
	"reelgate/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Input directory", cfg.Paths.InputDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
	}
	if strings.TrimSpace(cfg.Paths.ArchiveDir) != "" {
		results = append(results, CheckDirectoryAccess("Archive directory", cfg.Paths.ArchiveDir))
	}
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	if cfg.Scheduler.MinFreeSpaceGiB > 0 {
		results = append(results, CheckFreeSpace("Output free space", cfg.Paths.OutputDir, cfg.Scheduler.MinFreeSpaceGiB))
	}
	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// SpaceGuard returns a check the scheduler runs before each record. It
// returns nil when no minimum is configured.
func SpaceGuard(cfg *config.Config) func(context.Context) error {
	if cfg == nil || cfg.Scheduler.MinFreeSpaceGiB <= 0 {
		return nil
	}
	dir := cfg.Paths.OutputDir
	minGiB := cfg.Scheduler.MinFreeSpaceGiB
	return func(context.Context) error {
		free, err := FreeBytes(dir)
		if err != nil {
			return services.Wrap(services.ErrTransient, "preflight", "free space", "Could not read free space on the output volume", err)
		}
		if free < uint64(minGiB)<<30 {
			return services.Wrap(services.ErrTransient, "preflight", "free space",
				fmt.Sprintf("%s has %s free, below the %d GiB minimum", dir, formatGiB(free), minGiB), nil)
		}
		return nil
	}
}
