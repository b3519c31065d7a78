package registry

import (
	"context"
	"fmt"
	"strings"
)

// StatusFilter values accepted by Search.
const (
	FilterAll        = "all"
	FilterPending    = "pending"
	FilterProcessing = "processing"
	FilterCompleted  = "completed"
	FilterSkipped    = "skipped"
	FilterExtracted  = "extracted"
	FilterFailed     = "failed"
	FilterLegacy     = "legacy"
)

// sortColumns is the allow-list for SortBy.
var sortColumns = map[string]string{
	"id":              "id",
	"original_name":   "original_name",
	"cleaned_name":    "cleaned_name",
	"video_status":    "video_status",
	"subtitle_status": "subtitle_status",
	"file_size":       "file_size",
	"duration_sec":    "duration_sec",
	"created_at":      "created_at",
	"updated_at":      "updated_at",
}

// SearchParams drives the paged dashboard query.
type SearchParams struct {
	Status    string
	Search    string
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// SearchResult is one page of records plus the unpaged total.
type SearchResult struct {
	Records []*FileRecord
	Total   int
}

// ValidSortColumn reports whether column may be used as SortBy.
func ValidSortColumn(column string) bool {
	_, ok := sortColumns[strings.ToLower(strings.TrimSpace(column))]
	return ok
}

// ValidStatusFilter reports whether filter is understood by Search.
func ValidStatusFilter(filter string) bool {
	_, ok := statusFilterClause(strings.ToLower(strings.TrimSpace(filter)))
	return ok
}

// StatusFilters lists the accepted filter values.
func StatusFilters() []string {
	return []string{FilterAll, FilterPending, FilterProcessing, FilterCompleted, FilterSkipped, FilterExtracted, FilterFailed, FilterLegacy}
}

// Search lists records filtered by status and a name substring, sorted by an
// allow-listed column. Unknown sort columns fall back to created_at.
func (s *Store) Search(ctx context.Context, params SearchParams) (SearchResult, error) {
	where, args, err := buildSearchWhere(params)
	if err != nil {
		return SearchResult{}, err
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := max(params.Offset, 0)

	query := fmt.Sprintf("SELECT %s FROM files_registry %s %s LIMIT ? OFFSET ?",
		recordColumns, where, buildOrderBy(params.SortBy, params.SortOrder))
	records, err := s.queryRecords(ctx, "search records", query, append(append([]any{}, args...), limit, offset)...)
	if err != nil {
		return SearchResult{}, err
	}

	var total int
	if err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(1) FROM files_registry "+where, args...).Scan(&total); err != nil {
		return SearchResult{}, fmt.Errorf("count records: %w", err)
	}
	return SearchResult{Records: records, Total: total}, nil
}

func buildSearchWhere(params SearchParams) (string, []any, error) {
	var (
		conditions []string
		args       []any
	)
	filter := strings.ToLower(strings.TrimSpace(params.Status))
	if filter == "" {
		filter = FilterPending
	}
	clause, ok := statusFilterClause(filter)
	if !ok {
		return "", nil, fmt.Errorf("unknown status filter %q", params.Status)
	}
	if clause != "" {
		conditions = append(conditions, clause)
	}
	if term := strings.TrimSpace(params.Search); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		conditions = append(conditions, `(original_name LIKE ? ESCAPE '\' OR cleaned_name LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if len(conditions) == 0 {
		return "", args, nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args, nil
}

func statusFilterClause(filter string) (string, bool) {
	switch filter {
	case FilterAll:
		return "", true
	case FilterPending:
		return nonTerminalClause, true
	case FilterProcessing:
		return "video_status = 'processing'", true
	case FilterCompleted:
		return "video_status = 'completed'", true
	case FilterSkipped:
		return "video_status = 'skipped'", true
	case FilterExtracted:
		return "subtitle_status = 'extracted'", true
	case FilterFailed:
		return "(video_status = 'failed' OR subtitle_status = 'failed')", true
	case FilterLegacy:
		return "is_legacy = 1", true
	default:
		return "", false
	}
}

func buildOrderBy(sortBy, sortOrder string) string {
	column, ok := sortColumns[strings.ToLower(strings.TrimSpace(sortBy))]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(strings.TrimSpace(sortOrder), "asc") {
		direction = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s, id %s", column, direction, direction)
}
