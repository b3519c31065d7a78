package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelgate/internal/fingerprint"
	"reelgate/internal/registry"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check TERM...",
		Short: "Report which catalog codes are already in the registry",
		Long: "Terms may be separated by spaces or commas. Each term matches the first record " +
			"whose cleaned name starts with it; hyphenless codes such as ABC123 also try ABC-123.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *registry.Store) error {
				files, err := ctx.fileService(store)
				if err != nil {
					return err
				}
				resp, err := files.BatchSearch(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				lines := make([]string, 0, len(resp.Found)+len(resp.Missing))
				for _, hit := range resp.Found {
					detail := fmt.Sprintf("%s (id %d, video %s, subtitle %s)", hit.Matches, hit.Data.ID, hit.Data.VideoStatus, hit.Data.SubtitleStatus)
					lines = append(lines, renderStatusLine(hit.Term, statusOK, detail, colorize))
				}
				for _, term := range resp.Missing {
					lines = append(lines, renderStatusLine(term, statusWarn, "not in registry", colorize))
				}
				for _, line := range lines {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintf(out, "\n%d found, %d missing\n", len(resp.Found), len(resp.Missing))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "identify NAME...",
		Short: "Show the cleaned name each filename resolves to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := ctx.resolver()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(args))
			for _, name := range args {
				id, ok := resolver.Resolve(name)
				if !ok {
					rows = append(rows, []string{name, "(no match)", ""})
					continue
				}
				rows = append(rows, []string{name, id.CleanedName(), id.Rule})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable(out, []string{"Filename", "Cleaned Name", "Rule"}, rows, nil))
			return nil
		},
	}
}

func newHashCommand(ctx *commandContext) *cobra.Command {
	var lookup bool
	cmd := &cobra.Command{
		Use:   "hash FILE...",
		Short: "Compute content hashes with the configured algorithm",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			hasher, err := fingerprint.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(args))
			hashes := make([]string, 0, len(args))
			for _, path := range args {
				sum, err := hasher.Hash(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("hash %s: %w", path, err)
				}
				hashes = append(hashes, sum)
				rows = append(rows, []string{path, sum})
			}
			headers := []string{"File", strings.ToUpper(hasher.Algorithm())}
			if lookup {
				headers = append(headers, "Registry")
				err := ctx.withStore(func(store *registry.Store) error {
					for i, sum := range hashes {
						rec, err := store.FindByHash(cmd.Context(), sum)
						if err != nil {
							return err
						}
						match := "new"
						if rec != nil {
							match = rec.CleanedName + " (id " + strconv.FormatInt(rec.ID, 10) + ")"
						}
						rows[i] = append(rows[i], match)
					}
					return nil
				})
				if err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable(out, headers, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&lookup, "lookup", false, "Also report whether the registry already holds each hash")
	return cmd
}
