package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// AppendProcessLog records one operation attempt. Entries are never updated.
func (s *Store) AppendProcessLog(ctx context.Context, entry ProcessLogEntry) (int64, error) {
	if entry.FileID <= 0 {
		return 0, errors.New("process log requires a file id")
	}
	if entry.Operation != TrackVideo && entry.Operation != TrackSubtitle {
		return 0, fmt.Errorf("unknown operation %q", entry.Operation)
	}
	var duration any
	if entry.DurationSec > 0 {
		duration = entry.DurationSec
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO process_logs (file_id, operation, output_path, ssim_score, psnr_score, error_log, duration_sec, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.FileID,
		string(entry.Operation),
		nullableString(entry.OutputPath),
		nullableFloat(entry.SSIM),
		nullableFloat(entry.PSNR),
		nullableString(strings.TrimSpace(entry.ErrorLog)),
		duration,
		s.timestamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("append process log: %w", err)
	}
	return res.LastInsertId()
}

// ProcessLogs lists the attempts recorded for a file, oldest first.
func (s *Store) ProcessLogs(ctx context.Context, fileID int64) ([]ProcessLogEntry, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT "+logColumns+" FROM process_logs WHERE file_id = ? ORDER BY id", fileID)
	if err != nil {
		return nil, fmt.Errorf("list process logs: %w", err)
	}
	defer rows.Close()

	var entries []ProcessLogEntry
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan process log: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetSetting reads a value from system_settings.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT value FROM system_settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value.String, true, nil
}

// SetSetting upserts a value into system_settings.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("setting key is required")
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO system_settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.timestamp())
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// Stats counts records per track status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	stats := Stats{
		Video:    make(map[VideoStatus]int),
		Subtitle: make(map[SubtitleStatus]int),
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1), COALESCE(SUM(is_legacy), 0) FROM files_registry").Scan(&stats.Total, &stats.Legacy); err != nil {
		return Stats{}, fmt.Errorf("count records: %w", err)
	}
	pending, err := s.PendingCount(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.Pending = pending

	if err := s.countBy(ctx, "video_status", func(status string, count int) {
		stats.Video[VideoStatus(status)] = count
	}); err != nil {
		return Stats{}, err
	}
	if err := s.countBy(ctx, "subtitle_status", func(status string, count int) {
		stats.Subtitle[SubtitleStatus(status)] = count
	}); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (s *Store) countBy(ctx context.Context, column string, fn func(string, int)) error {
	rows, err := s.db.QueryContext(ctx, "SELECT "+column+", COUNT(1) FROM files_registry GROUP BY "+column)
	if err != nil {
		return fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return fmt.Errorf("scan %s count: %w", column, err)
		}
		fn(status, count)
	}
	return rows.Err()
}
