package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelgate/internal/api"
	"reelgate/internal/registry"
	"reelgate/internal/services"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and retry registry records",
	}
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	return queueCmd
}

func (c *commandContext) fileService(store *registry.Store) (*api.FileService, error) {
	resolver, err := c.resolver()
	if err != nil {
		return nil, err
	}
	cfg := c.configValue()
	return api.NewFileService(store, resolver, nil, cfg.API.DefaultPageSize, cfg.API.MaxPageSize), nil
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var status, search, sortBy string
	var limit, page int
	var asc, asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registry records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *registry.Store) error {
				files, err := ctx.fileService(store)
				if err != nil {
					return err
				}
				order := "DESC"
				if asc {
					order = "ASC"
				}
				result, err := files.Page(cmd.Context(), api.PageQuery{
					Page:      page,
					Limit:     limit,
					SortBy:    sortBy,
					SortOrder: order,
					Status:    status,
					Search:    search,
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				if len(result.Pending) == 0 {
					fmt.Fprintln(out, "No matching records")
					return nil
				}
				fmt.Fprint(out, renderTable(out,
					[]string{"ID", "Cleaned Name", "Video", "Subtitle", "Legacy", "Created"},
					recordRows(result.Pending),
					[]columnAlignment{alignRight},
				))
				fmt.Fprintf(out, "Page %d of %d (%d records)\n", result.Page, max(result.TotalPages, 1), result.Total)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", registry.FilterPending, "Status filter: "+strings.Join(registry.StatusFilters(), ", "))
	cmd.Flags().StringVar(&search, "search", "", "Substring of the original or cleaned name")
	cmd.Flags().StringVar(&sortBy, "sort", "created_at", "Sort column")
	cmd.Flags().BoolVar(&asc, "asc", false, "Sort ascending")
	cmd.Flags().IntVar(&limit, "limit", 0, "Rows per page (default api.default_page_size)")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func recordRows(records []api.FileRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			strconv.FormatInt(rec.ID, 10),
			rec.CleanedName,
			rec.VideoStatus,
			rec.SubtitleStatus,
			yesNo(rec.IsLegacy),
			rec.CreatedAt,
		})
	}
	return rows
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, services.Wrap(services.ErrValidation, "cli", "parse id", fmt.Sprintf("invalid record id %q", raw), nil)
	}
	return id, nil
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show a record and its process history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *registry.Store) error {
				files, err := ctx.fileService(store)
				if err != nil {
					return err
				}
				detail, err := files.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, detail)
				}
				printDetail(cmd, detail)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func printDetail(cmd *cobra.Command, detail *api.FileDetail) {
	out := cmd.OutOrStdout()
	f := detail.File
	fields := [][2]string{
		{"ID", strconv.FormatInt(f.ID, 10)},
		{"Original name", f.OriginalName},
		{"Cleaned name", f.CleanedName},
		{"Content hash", f.ContentHash},
		{"Source path", f.SourcePath},
		{"Video", f.VideoStatus},
		{"Subtitle", f.SubtitleStatus},
		{"Legacy", yesNo(f.IsLegacy)},
		{"Resolution", f.Resolution},
		{"Encoder", f.VideoEncoder},
		{"Subtitles", f.SubtitleFormats},
		{"Created", f.CreatedAt},
		{"Updated", f.UpdatedAt},
	}
	for _, field := range fields {
		if field[1] == "" {
			continue
		}
		fmt.Fprintf(out, "%-14s %s\n", field[0]+":", field[1])
	}
	if len(detail.Logs) == 0 {
		fmt.Fprintln(out, "\nNo process history")
		return
	}
	rows := make([][]string, 0, len(detail.Logs))
	for _, entry := range detail.Logs {
		result := "ok"
		if !entry.Succeeded {
			result = entry.ErrorLog
		}
		ssim := ""
		if entry.SSIM != nil {
			ssim = strconv.FormatFloat(*entry.SSIM, 'f', 4, 64)
		}
		rows = append(rows, []string{
			entry.CreatedAt,
			entry.Operation,
			strconv.FormatFloat(entry.DurationSec, 'f', 1, 64) + "s",
			ssim,
			result,
		})
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, renderTable(out, []string{"When", "Operation", "Duration", "SSIM", "Result"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight}))
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	var trackFlag string
	cmd := &cobra.Command{
		Use:   "retry ID",
		Short: "Return a track of a record to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			track, ok := registry.ParseTrack(trackFlag)
			if !ok {
				return services.Wrap(services.ErrValidation, "cli", "retry", fmt.Sprintf("unknown track %q (video or subtitle)", trackFlag), nil)
			}
			return ctx.withStore(func(store *registry.Store) error {
				out := cmd.OutOrStdout()
				if track == registry.TrackVideo {
					files, err := ctx.fileService(store)
					if err != nil {
						return err
					}
					rec, err := files.Reencode(cmd.Context(), id)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Video of %s queued for re-encode\n", rec.CleanedName)
					return nil
				}
				rec, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if rec == nil {
					return services.Wrap(services.ErrNotFound, "cli", "retry", fmt.Sprintf("record %d not found", id), nil)
				}
				if err := store.ResetTrack(cmd.Context(), id, registry.TrackSubtitle); err != nil {
					return err
				}
				fmt.Fprintf(out, "Subtitles of %s queued for extraction\n", rec.CleanedName)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&trackFlag, "track", string(registry.TrackVideo), "Track to retry: video or subtitle")
	return cmd
}
