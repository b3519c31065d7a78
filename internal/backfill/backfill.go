package backfill

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"reelgate/internal/identity"
	"reelgate/internal/logging"
	"reelgate/internal/registry"
)

// LegacyCSVHashPrefix prefixes the synthetic content hash of CSV imports.
const LegacyCSVHashPrefix = "LEGACY_CSV_"

// Store is the slice of the registry the importers use.
type Store interface {
	FindByHash(ctx context.Context, hash string) (*registry.FileRecord, error)
	FindByCleanedName(ctx context.Context, cleanedName string) (*registry.FileRecord, error)
	Insert(ctx context.Context, rec *registry.FileRecord) (int64, error)
	MergeMetadata(ctx context.Context, id int64, meta registry.Metadata, forceVideoCompleted bool) error
}

// Report summarizes one import run.
type Report struct {
	Inserted     int
	Merged       int
	Skipped      int
	Unrecognized []string
	Errors       []error
}

// Importer loads historical inventories into the registry.
type Importer struct {
	store    Store
	resolver *identity.Resolver
	logger   *slog.Logger
}

// NewImporter constructs an Importer. A nil resolver selects the default
// identity rules.
func NewImporter(store Store, resolver *identity.Resolver, logger *slog.Logger) *Importer {
	if resolver == nil {
		resolver = identity.NewResolver(nil)
	}
	return &Importer{
		store:    store,
		resolver: resolver,
		logger:   logging.NewComponentLogger(logger, "backfill"),
	}
}

// ImportNames reads one filename per line. Each recognized name becomes a
// legacy record without a content hash. Names whose cleaned form already
// exists are skipped.
func (im *Importer) ImportNames(ctx context.Context, r io.Reader) (Report, error) {
	var report Report
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		id, ok := im.resolver.Resolve(name)
		if !ok {
			report.Unrecognized = append(report.Unrecognized, name)
			continue
		}
		cleaned := id.CleanedName()
		existing, err := im.store.FindByCleanedName(ctx, cleaned)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if existing != nil {
			report.Skipped++
			continue
		}
		if _, err := im.store.Insert(ctx, legacyRecord(name, cleaned, "", registry.Metadata{})); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("%s: %w", name, err))
			continue
		}
		report.Inserted++
	}
	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("read name list: %w", err)
	}
	im.logReport("names", report)
	return report, nil
}

// ImportCSV reads the inventory export. The header row is optional; columns
// are filename, file_size_byte, duration_sec, resolution, video_encoder,
// has_subtitle and subtitle_formats. Rows matching an existing record merge
// their non-empty fields into it and settle its video track.
func (im *Importer) ImportCSV(ctx context.Context, r io.Reader) (Report, error) {
	var report Report
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "filename") {
			continue
		}
		if len(row) < 5 {
			report.Errors = append(report.Errors, fmt.Errorf("line %d: expected at least 5 columns, got %d", line, len(row)))
			continue
		}
		im.importRow(ctx, row, &report)
	}
	im.logReport("csv", report)
	return report, nil
}

func (im *Importer) importRow(ctx context.Context, row []string, report *Report) {
	name := strings.TrimSpace(row[0])
	if name == "" {
		report.Skipped++
		return
	}
	candidate := name
	if ext := strings.ToLower(filepath.Ext(name)); ext != ".mp4" && ext != ".mkv" {
		candidate += ".mp4"
	}
	id, ok := im.resolver.Resolve(candidate)
	if !ok {
		report.Unrecognized = append(report.Unrecognized, name)
		return
	}
	cleaned := id.CleanedName()
	meta := parseMetadata(row)
	hash := LegacyCSVHashPrefix + cleaned

	existing, err := im.store.FindByHash(ctx, hash)
	if err == nil && existing == nil {
		existing, err = im.store.FindByCleanedName(ctx, cleaned)
	}
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("%s: %w", name, err))
		return
	}
	if existing != nil {
		if meta == (registry.Metadata{}) {
			report.Skipped++
			return
		}
		if err := im.store.MergeMetadata(ctx, existing.ID, meta, true); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("%s: %w", name, err))
			return
		}
		report.Merged++
		return
	}
	if _, err := im.store.Insert(ctx, legacyRecord(name, cleaned, hash, meta)); err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("%s: %w", name, err))
		return
	}
	report.Inserted++
}

func parseMetadata(row []string) registry.Metadata {
	col := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	var meta registry.Metadata
	if size, err := strconv.ParseInt(col(1), 10, 64); err == nil && size > 0 {
		meta.FileSize = size
	}
	if dur, err := strconv.ParseFloat(col(2), 64); err == nil && dur > 0 {
		meta.DurationSec = dur
	}
	meta.Resolution = col(3)
	meta.VideoEncoder = col(4)
	meta.HasSubtitle = strings.EqualFold(col(5), "yes")
	if formats := col(6); !strings.EqualFold(formats, "none") {
		meta.SubtitleFormats = formats
	}
	return meta
}

func legacyRecord(original, cleaned, hash string, meta registry.Metadata) *registry.FileRecord {
	return &registry.FileRecord{
		OriginalName:   original,
		CleanedName:    cleaned,
		ContentHash:    hash,
		VideoStatus:    registry.VideoCompleted,
		SubtitleStatus: registry.SubtitlePending,
		IsLegacy:       true,
		Metadata:       meta,
	}
}

func (im *Importer) logReport(kind string, report Report) {
	im.logger.Info("legacy import finished",
		logging.String(logging.FieldEventType, "backfill_complete"),
		logging.String("source", kind),
		logging.Int("inserted", report.Inserted),
		logging.Int("merged", report.Merged),
		logging.Int("skipped", report.Skipped),
		logging.Int("unrecognized", len(report.Unrecognized)),
		logging.Int("errors", len(report.Errors)),
	)
	for _, name := range report.Unrecognized {
		im.logger.Debug("legacy name not recognized", logging.String("name", name))
	}
}
