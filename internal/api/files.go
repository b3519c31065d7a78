package api

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"reelgate/internal/identity"
	"reelgate/internal/registry"
	"reelgate/internal/services"
)

// FileStore abstracts the registry operations the API needs.
type FileStore interface {
	Search(ctx context.Context, params registry.SearchParams) (registry.SearchResult, error)
	FindByCleanedPrefix(ctx context.Context, prefix string, limit int) ([]*registry.FileRecord, error)
	GetByID(ctx context.Context, id int64) (*registry.FileRecord, error)
	ProcessLogs(ctx context.Context, fileID int64) ([]registry.ProcessLogEntry, error)
	ResetTrack(ctx context.Context, id int64, track registry.Track) error
}

// Waker nudges the scheduler after an action queues new work.
type Waker interface {
	Wake()
}

// PageQuery carries the dashboard listing parameters. Zero values select the
// defaults: page 1, the configured page size, created_at DESC, pending only.
type PageQuery struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
	Status    string
	Search    string
}

// FileService exposes registry queries and actions returning API DTOs.
type FileService struct {
	store        FileStore
	resolver     *identity.Resolver
	waker        Waker
	defaultLimit int
	maxLimit     int
}

// NewFileService constructs a FileService. resolver may be nil, in which case
// the default identity rules normalize search terms. waker may be nil.
func NewFileService(store FileStore, resolver *identity.Resolver, waker Waker, defaultLimit, maxLimit int) *FileService {
	if store == nil {
		return nil
	}
	if resolver == nil {
		resolver = identity.NewResolver(nil)
	}
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &FileService{
		store:        store,
		resolver:     resolver,
		waker:        waker,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// Page returns one page of records. An unknown status filter or sort column
// is a validation error.
func (s *FileService) Page(ctx context.Context, q PageQuery) (StatusPage, error) {
	page := max(q.Page, 1)
	limit := q.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	limit = min(limit, s.maxLimit)

	status := strings.ToLower(strings.TrimSpace(q.Status))
	if status == "" {
		status = registry.FilterPending
	}
	if !registry.ValidStatusFilter(status) {
		return StatusPage{}, services.Wrap(services.ErrValidation, "api", "list files",
			fmt.Sprintf("unknown status filter %q", q.Status), nil)
	}
	sortBy := strings.TrimSpace(q.SortBy)
	if sortBy == "" {
		sortBy = "created_at"
	}
	if !registry.ValidSortColumn(sortBy) {
		return StatusPage{}, services.Wrap(services.ErrValidation, "api", "list files",
			fmt.Sprintf("unknown sort column %q", q.SortBy), nil)
	}
	sortOrder := strings.ToUpper(strings.TrimSpace(q.SortOrder))
	if sortOrder != "ASC" {
		sortOrder = "DESC"
	}

	result, err := s.store.Search(ctx, registry.SearchParams{
		Status:    status,
		Search:    strings.TrimSpace(q.Search),
		SortBy:    sortBy,
		SortOrder: sortOrder,
		Limit:     limit,
		Offset:    (page - 1) * limit,
	})
	if err != nil {
		return StatusPage{}, err
	}
	return StatusPage{
		Pending:    FromRecords(result.Records),
		Total:      result.Total,
		Page:       page,
		Limit:      limit,
		TotalPages: (result.Total + limit - 1) / limit,
	}, nil
}

var termSeparators = regexp.MustCompile(`[\s,]+`)

// SplitTerms splits a batch query on whitespace and commas, uppercasing each
// term.
func SplitTerms(query string) []string {
	var terms []string
	for _, raw := range termSeparators.Split(query, -1) {
		if term := strings.ToUpper(strings.TrimSpace(raw)); term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}

// BatchSearch reports, for every term in query, the first record whose
// cleaned name starts with the normalized term. Hyphenless terms such as
// ABC123 retry as ABC-123.
func (s *FileService) BatchSearch(ctx context.Context, query string) (SearchResponse, error) {
	resp := SearchResponse{Found: []SearchHit{}, Missing: []string{}}
	for _, term := range SplitTerms(query) {
		rec, err := s.lookupTerm(ctx, term)
		if err != nil {
			return SearchResponse{}, err
		}
		if rec == nil {
			resp.Missing = append(resp.Missing, term)
			continue
		}
		resp.Found = append(resp.Found, SearchHit{Term: term, Matches: rec.CleanedName, Data: FromRecord(rec)})
	}
	return resp, nil
}

func (s *FileService) lookupTerm(ctx context.Context, term string) (*registry.FileRecord, error) {
	normalized := s.resolver.NormalizeTerm(term)
	candidates := []string{normalized}
	if compact, ok := identity.CompactFallback(normalized); ok {
		candidates = append(candidates, compact)
	}
	for _, prefix := range candidates {
		matches, err := s.store.FindByCleanedPrefix(ctx, prefix, 1)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			return matches[0], nil
		}
	}
	return nil, nil
}

// Describe fetches a record and its process history.
func (s *FileService) Describe(ctx context.Context, id int64) (*FileDetail, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	logs, err := s.store.ProcessLogs(ctx, id)
	if err != nil {
		return nil, err
	}
	return &FileDetail{File: FromRecord(rec), Logs: FromProcessLogs(logs)}, nil
}

// Reencode resets the video track of a record to pending and wakes the
// scheduler. Legacy records and records being transcoded are rejected.
func (s *FileService) Reencode(ctx context.Context, id int64) (FileRecord, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return FileRecord{}, err
	}
	switch {
	case rec.IsLegacy:
		return FileRecord{}, services.Wrap(services.ErrValidation, "api", "reencode",
			fmt.Sprintf("%s is a legacy record and is never transcoded", rec.CleanedName), nil)
	case rec.VideoStatus == registry.VideoProcessing:
		return FileRecord{}, services.Wrap(services.ErrValidation, "api", "reencode",
			fmt.Sprintf("%s is being transcoded", rec.CleanedName), nil)
	}
	if err := s.store.ResetTrack(ctx, id, registry.TrackVideo); err != nil {
		return FileRecord{}, err
	}
	rec.VideoStatus = registry.VideoPending
	if s.waker != nil {
		s.waker.Wake()
	}
	return FromRecord(rec), nil
}

func (s *FileService) get(ctx context.Context, id int64) (*registry.FileRecord, error) {
	if id <= 0 {
		return nil, services.Wrap(services.ErrValidation, "api", "lookup", fmt.Sprintf("invalid file id %d", id), nil)
	}
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", "lookup", fmt.Sprintf("file %d not found", id), nil)
	}
	return rec, nil
}
