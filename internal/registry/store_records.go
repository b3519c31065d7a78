package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"reelgate/internal/services"
)

// Insert stores a new record and returns its id. The content hash uniqueness
// constraint makes the insert atomic: a concurrent insert of the same hash
// fails with ErrDuplicateHash.
func (s *Store) Insert(ctx context.Context, rec *FileRecord) (int64, error) {
	if rec == nil {
		return 0, services.Wrap(services.ErrValidation, "registry", "insert", "record is required", nil)
	}
	if strings.TrimSpace(rec.OriginalName) == "" || strings.TrimSpace(rec.CleanedName) == "" {
		return 0, services.Wrap(services.ErrValidation, "registry", "insert", "original and cleaned names are required", nil)
	}
	if rec.VideoStatus == "" {
		rec.VideoStatus = VideoPending
		if rec.IsLegacy {
			rec.VideoStatus = VideoCompleted
		}
	}
	if rec.SubtitleStatus == "" {
		rec.SubtitleStatus = SubtitlePending
	}
	if err := ValidateStatus(TrackVideo, string(rec.VideoStatus)); err != nil {
		return 0, services.Wrap(services.ErrValidation, "registry", "insert", "", err)
	}
	if err := ValidateStatus(TrackSubtitle, string(rec.SubtitleStatus)); err != nil {
		return 0, services.Wrap(services.ErrValidation, "registry", "insert", "", err)
	}

	now := s.timestamp()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO files_registry (
			original_name, cleaned_name, file_hash, source_path, video_status, subtitle_status, is_legacy,
			file_size, duration_sec, resolution, video_encoder, has_subtitle, subtitle_formats,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OriginalName,
		rec.CleanedName,
		nullableString(rec.ContentHash),
		nullableString(rec.SourcePath),
		string(rec.VideoStatus),
		string(rec.SubtitleStatus),
		boolToInt(rec.IsLegacy),
		nullablePositiveInt(rec.FileSize),
		nullablePositiveFloat(rec.DurationSec),
		nullableString(rec.Resolution),
		nullableString(rec.VideoEncoder),
		boolToInt(rec.HasSubtitle),
		nullableString(rec.SubtitleFormats),
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateHash
		}
		return 0, fmt.Errorf("insert file record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("fetch insert id: %w", err)
	}
	rec.ID = id
	return id, nil
}

// GetByID fetches a record by id. It returns nil, nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*FileRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+recordColumns+" FROM files_registry WHERE id = ?", id)
	return s.scanOne(row, "get record")
}

// FindByHash fetches the record owning hash. It returns nil, nil when absent.
func (s *Store) FindByHash(ctx context.Context, hash string) (*FileRecord, error) {
	if strings.TrimSpace(hash) == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+recordColumns+" FROM files_registry WHERE file_hash = ?", hash)
	return s.scanOne(row, "find by hash")
}

// FindByCleanedName fetches the oldest record with the exact cleaned name.
func (s *Store) FindByCleanedName(ctx context.Context, cleanedName string) (*FileRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+recordColumns+" FROM files_registry WHERE cleaned_name = ? ORDER BY id LIMIT 1", cleanedName)
	return s.scanOne(row, "find by cleaned name")
}

// FindByCleanedPrefix lists records whose cleaned name starts with prefix.
func (s *Store) FindByCleanedPrefix(ctx context.Context, prefix string, limit int) ([]*FileRecord, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	return s.queryRecords(ctx, "find by prefix",
		"SELECT "+recordColumns+" FROM files_registry WHERE cleaned_name LIKE ? ESCAPE '\\' ORDER BY cleaned_name, id LIMIT ?",
		escapeLike(prefix)+"%", limit)
}

// SetStatus updates one track of a record. The other track is untouched.
func (s *Store) SetStatus(ctx context.Context, id int64, track Track, status string) error {
	if err := ValidateStatus(track, status); err != nil {
		return services.Wrap(services.ErrValidation, "registry", "set status", "", err)
	}
	column := "video_status"
	if track == TrackSubtitle {
		column = "subtitle_status"
	}
	res, err := s.execWithRetry(ctx,
		"UPDATE files_registry SET "+column+" = ?, updated_at = ? WHERE id = ?",
		status, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("set %s status: %w", track, err)
	}
	return requireRow(res, id)
}

// ResetTrack returns a track to pending so the scheduler picks it up again.
func (s *Store) ResetTrack(ctx context.Context, id int64, track Track) error {
	return s.SetStatus(ctx, id, track, "pending")
}

// ResetInterrupted moves video tracks left in processing back to pending. It
// runs at daemon startup before the first drain.
func (s *Store) ResetInterrupted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		"UPDATE files_registry SET video_status = ?, updated_at = ? WHERE video_status = ?",
		string(VideoPending), s.timestamp(), string(VideoProcessing))
	if err != nil {
		return 0, fmt.Errorf("reset interrupted records: %w", err)
	}
	return res.RowsAffected()
}

// ListNonTerminal returns records with outstanding work ordered by id. A
// legacy record only qualifies through its subtitle track.
func (s *Store) ListNonTerminal(ctx context.Context, limit, offset int) ([]*FileRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.queryRecords(ctx, "list non-terminal",
		"SELECT "+recordColumns+" FROM files_registry WHERE "+nonTerminalClause+" ORDER BY id LIMIT ? OFFSET ?",
		limit, offset)
}

// PendingCount returns the number of records with outstanding work.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(1) FROM files_registry WHERE "+nonTerminalClause).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return count, nil
}

// MergeMetadata applies the non-empty fields of meta to the record without
// clearing populated ones. When forceVideoCompleted is set the video track is
// also marked completed, which is how historical imports settle a record.
func (s *Store) MergeMetadata(ctx context.Context, id int64, meta Metadata, forceVideoCompleted bool) error {
	sets := make([]string, 0, 8)
	args := make([]any, 0, 9)
	if meta.FileSize > 0 {
		sets = append(sets, "file_size = ?")
		args = append(args, meta.FileSize)
	}
	if meta.DurationSec > 0 {
		sets = append(sets, "duration_sec = ?")
		args = append(args, meta.DurationSec)
	}
	if v := strings.TrimSpace(meta.Resolution); v != "" {
		sets = append(sets, "resolution = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(meta.VideoEncoder); v != "" {
		sets = append(sets, "video_encoder = ?")
		args = append(args, v)
	}
	if meta.HasSubtitle {
		sets = append(sets, "has_subtitle = 1")
	}
	if v := strings.TrimSpace(meta.SubtitleFormats); v != "" && !strings.EqualFold(v, "none") {
		sets = append(sets, "subtitle_formats = ?")
		args = append(args, v)
	}
	if forceVideoCompleted {
		sets = append(sets, "video_status = ?")
		args = append(args, string(VideoCompleted))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.timestamp(), id)

	res, err := s.execWithRetry(ctx,
		"UPDATE files_registry SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("merge metadata: %w", err)
	}
	return requireRow(res, id)
}

// nonTerminalClause selects records the scheduler still has work for.
const nonTerminalClause = "(subtitle_status = 'pending' OR (is_legacy = 0 AND video_status IN ('pending', 'processing')))"

func (s *Store) scanOne(row *sql.Row, op string) (*FileRecord, error) {
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

func (s *Store) queryRecords(ctx context.Context, op, query string, args ...any) ([]*FileRecord, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var records []*FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return records, nil
}

func requireRow(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "registry", "update", fmt.Sprintf("record %d not found", id), nil)
	}
	return nil
}

func nullablePositiveInt(value int64) any {
	if value <= 0 {
		return nil
	}
	return value
}

func nullablePositiveFloat(value float64) any {
	if value <= 0 {
		return nil
	}
	return value
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
