package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"reelgate/internal/backfill"
	"reelgate/internal/registry"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Load historical inventories as legacy records",
	}
	importCmd.AddCommand(&cobra.Command{
		Use:   "names FILE",
		Short: "Import a plain list of filenames, one per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(ctx, cmd, args[0], (*backfill.Importer).ImportNames)
		},
	})
	importCmd.AddCommand(&cobra.Command{
		Use:   "csv FILE",
		Short: "Import an inventory CSV with size, duration and stream columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(ctx, cmd, args[0], (*backfill.Importer).ImportCSV)
		},
	})
	return importCmd
}

type importFunc func(*backfill.Importer, context.Context, io.Reader) (backfill.Report, error)

func runImport(ctx *commandContext, cmd *cobra.Command, path string, run importFunc) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer file.Close()

	resolver, err := ctx.resolver()
	if err != nil {
		return err
	}
	return ctx.withStore(func(store *registry.Store) error {
		importer := backfill.NewImporter(store, resolver, ctx.cliLogger(cmd))
		report, err := run(importer, cmd.Context(), file)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Inserted: %d\nMerged: %d\nSkipped: %d\nUnrecognized: %d\nErrors: %d\n",
			report.Inserted, report.Merged, report.Skipped, len(report.Unrecognized), len(report.Errors))
		for _, name := range report.Unrecognized {
			fmt.Fprintf(out, "  no match: %s\n", name)
		}
		for _, rowErr := range report.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "  error: %v\n", rowErr)
		}
		return nil
	})
}
