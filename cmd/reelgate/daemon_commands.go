package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelgate/internal/daemonctl"
	"reelgate/internal/daemonrun"
	"reelgate/internal/deps"
	"reelgate/internal/registry"
	"reelgate/internal/scheduler"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var webOnly bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the reelgate daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel: ctx.logLevel(),
				WebOnly:  webOnly,
			})
		},
	}
	cmd.Flags().BoolVar(&webOnly, "web-only", false, "Serve the dashboard API without ingesting or processing files")
	return cmd
}

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startWebOnly bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the reelgate daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(ctx.configValue(), exe, launchOptions(ctx, startWebOnly), 10*time.Second)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	startCmd.Flags().BoolVar(&startWebOnly, "web-only", false, "Serve the dashboard API without ingesting or processing files")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the reelgate daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.configValue(), 30*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartWebOnly bool
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the reelgate daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(ctx.configValue(), exe, launchOptions(ctx, restartWebOnly), 30*time.Second, 10*time.Second)
			if err != nil {
				return err
			}
			if result.WasRunning {
				if result.Stop.ForcedKill {
					fmt.Fprintf(stdout, "Killed unresponsive daemon (pid %d)\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintf(stdout, "Daemon running (pid %d)\n", result.Start.PID)
			return nil
		},
	}
	restartCmd.Flags().BoolVar(&restartWebOnly, "web-only", false, "Serve the dashboard API without ingesting or processing files")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency and registry status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.configValue())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snap)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			system := make([]string, 0, len(snap.SystemChecks)+3)
			if snap.Running {
				system = append(system, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", snap.PID), colorize))
			} else {
				system = append(system, renderStatusLine("Daemon", statusWarn, "Not running (run `reelgate start`)", colorize))
			}
			system = append(system, renderStatusLine("Last drain", lastDrainKind(snap.LastDrain.Outcome), lastDrainDetail(snap), colorize))
			for _, check := range snap.SystemChecks {
				kind := statusOK
				if !check.Passed {
					kind = statusError
				}
				system = append(system, renderStatusLine(check.Name, kind, check.Detail, colorize))
			}
			printSection(stdout, "System Status", colorize, system)
			printSection(stdout, "Dependencies", colorize, dependencyLines(snap.Dependencies, snap.DependencySummary, colorize))

			for _, line := range renderSectionHeader("Registry", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if snap.Stats.Total == 0 {
				fmt.Fprintln(stdout, "Registry is empty")
				return nil
			}
			fmt.Fprint(stdout, renderTable(stdout, []string{"Metric", "Count"}, registryRows(snap.Stats, snap.PendingCount), []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Emit the status snapshot as JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func lastDrainKind(outcome string) statusKind {
	switch scheduler.Outcome(outcome) {
	case scheduler.OutcomeCompleted, scheduler.OutcomeCutoff, scheduler.OutcomeClosed:
		return statusOK
	case scheduler.OutcomeError, scheduler.OutcomeNoSpace:
		return statusWarn
	default:
		return statusInfo
	}
}

func lastDrainDetail(snap *daemonctl.Snapshot) string {
	info := snap.LastDrain
	if info.StartedAt == "" {
		return "No drain recorded"
	}
	detail := "started " + info.StartedAt
	if info.FinishedAt != "" {
		detail += ", finished " + info.FinishedAt
	}
	if info.Outcome != "" {
		detail += " (" + info.Outcome + ")"
	}
	return detail
}

func registryRows(stats registry.Stats, pending int) [][]string {
	rows := [][]string{
		{"Total", strconv.Itoa(stats.Total)},
		{"With outstanding work", strconv.Itoa(pending)},
		{"Legacy", strconv.Itoa(stats.Legacy)},
	}
	videoKeys := make([]string, 0, len(stats.Video))
	for status := range stats.Video {
		videoKeys = append(videoKeys, string(status))
	}
	slices.Sort(videoKeys)
	for _, key := range videoKeys {
		rows = append(rows, []string{"Video " + key, strconv.Itoa(stats.Video[registry.VideoStatus(key)])})
	}
	subKeys := make([]string, 0, len(stats.Subtitle))
	for status := range stats.Subtitle {
		subKeys = append(subKeys, string(status))
	}
	slices.Sort(subKeys)
	for _, key := range subKeys {
		rows = append(rows, []string{"Subtitle " + key, strconv.Itoa(stats.Subtitle[registry.SubtitleStatus(key)])})
	}
	return rows
}

func dependencyLines(statuses []deps.Status, summary daemonctl.DependencySummary, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+1)
	lines = append(lines, renderStatusLine("Summary", statusKindFromSeverity(summary.Severity), summary.Detail, colorize))
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
	}
	return lines
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func launchOptions(ctx *commandContext, webOnly bool) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		LogLevel:   ctx.logLevel(),
		WebOnly:    webOnly,
	}
}
