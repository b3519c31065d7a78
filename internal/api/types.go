package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FileRecord describes a registry row in a transport-friendly format.
type FileRecord struct {
	ID              int64   `json:"id"`
	OriginalName    string  `json:"original_name"`
	CleanedName     string  `json:"cleaned_name"`
	ContentHash     string  `json:"content_hash,omitempty"`
	SourcePath      string  `json:"source_path,omitempty"`
	VideoStatus     string  `json:"video_status"`
	SubtitleStatus  string  `json:"subtitle_status"`
	IsLegacy        bool    `json:"is_legacy"`
	FileSize        int64   `json:"file_size,omitempty"`
	DurationSec     float64 `json:"duration_sec,omitempty"`
	Resolution      string  `json:"resolution,omitempty"`
	VideoEncoder    string  `json:"video_encoder,omitempty"`
	HasSubtitle     bool    `json:"has_subtitle"`
	SubtitleFormats string  `json:"subtitle_formats,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
	UpdatedAt       string  `json:"updated_at,omitempty"`
}

// ProcessLog describes one recorded operation attempt.
type ProcessLog struct {
	ID          int64    `json:"id"`
	Operation   string   `json:"operation"`
	OutputPath  string   `json:"output_path,omitempty"`
	SSIM        *float64 `json:"ssim,omitempty"`
	PSNR        *float64 `json:"psnr,omitempty"`
	ErrorLog    string   `json:"error_log,omitempty"`
	DurationSec float64  `json:"duration_sec"`
	Succeeded   bool     `json:"succeeded"`
	CreatedAt   string   `json:"created_at,omitempty"`
}

// StatusPage is one page of the dashboard listing. The rows field keeps the
// name "pending" for dashboard compatibility even when another status filter
// is active.
type StatusPage struct {
	Pending    []FileRecord `json:"pending"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	TotalPages int          `json:"totalPages"`
}

// SearchHit pairs a requested term with the record it matched.
type SearchHit struct {
	Term    string     `json:"term"`
	Matches string     `json:"matches"`
	Data    FileRecord `json:"data"`
}

// SearchResponse answers a batch availability query.
type SearchResponse struct {
	Found   []SearchHit `json:"found"`
	Missing []string    `json:"missing"`
}

// Summary is the compact status pushed to dashboards.
type Summary struct {
	PendingCount     int    `json:"pendingCount"`
	ProcessingActive bool   `json:"processingActive"`
	At               string `json:"at,omitempty"`
}

// FileDetail is a record with its operation history.
type FileDetail struct {
	File FileRecord   `json:"file"`
	Logs []ProcessLog `json:"logs"`
}

// StageHealth mirrors readiness reporting for media operations.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse is served by /health.
type HealthResponse struct {
	Status   string        `json:"status"`
	Registry string        `json:"registry"`
	Stages   []StageHealth `json:"stages,omitempty"`
}

// ActionResponse acknowledges a dashboard action.
type ActionResponse struct {
	Message string     `json:"message"`
	File    FileRecord `json:"file"`
}
