package registry

import (
	"fmt"
	"strings"
	"time"
)

// Track names one of the two independent processing lanes of a file.
type Track string

const (
	TrackVideo    Track = "video"
	TrackSubtitle Track = "subtitle"
)

// ParseTrack converts user input into a Track.
func ParseTrack(value string) (Track, bool) {
	switch Track(strings.ToLower(strings.TrimSpace(value))) {
	case TrackVideo:
		return TrackVideo, true
	case TrackSubtitle:
		return TrackSubtitle, true
	default:
		return "", false
	}
}

// VideoStatus is the lifecycle of the transcoding track.
type VideoStatus string

const (
	VideoPending    VideoStatus = "pending"
	VideoProcessing VideoStatus = "processing"
	VideoCompleted  VideoStatus = "completed"
	VideoFailed     VideoStatus = "failed"
	VideoSkipped    VideoStatus = "skipped"
)

// SubtitleStatus is the lifecycle of the subtitle extraction track.
type SubtitleStatus string

const (
	SubtitlePending   SubtitleStatus = "pending"
	SubtitleExtracted SubtitleStatus = "extracted"
	SubtitleFailed    SubtitleStatus = "failed"
)

var videoStatuses = map[VideoStatus]bool{
	VideoPending:    false,
	VideoProcessing: false,
	VideoCompleted:  true,
	VideoFailed:     true,
	VideoSkipped:    true,
}

var subtitleStatuses = map[SubtitleStatus]bool{
	SubtitlePending:   false,
	SubtitleExtracted: true,
	SubtitleFailed:    true,
}

// Terminal reports whether the video track has ended.
func (s VideoStatus) Terminal() bool { return videoStatuses[s] }

// Valid reports whether s is a known video status.
func (s VideoStatus) Valid() bool {
	_, ok := videoStatuses[s]
	return ok
}

// Terminal reports whether the subtitle track has ended.
func (s SubtitleStatus) Terminal() bool { return subtitleStatuses[s] }

// Valid reports whether s is a known subtitle status.
func (s SubtitleStatus) Valid() bool {
	_, ok := subtitleStatuses[s]
	return ok
}

// ValidateStatus checks that status belongs to the enumeration of track.
func ValidateStatus(track Track, status string) error {
	switch track {
	case TrackVideo:
		if !VideoStatus(status).Valid() {
			return fmt.Errorf("unknown video status %q", status)
		}
	case TrackSubtitle:
		if !SubtitleStatus(status).Valid() {
			return fmt.Errorf("unknown subtitle status %q", status)
		}
	default:
		return fmt.Errorf("unknown track %q", track)
	}
	return nil
}

// Metadata is the optional descriptive data attached to a record. Zero values
// mean "unknown".
type Metadata struct {
	FileSize        int64
	DurationSec     float64
	Resolution      string
	VideoEncoder    string
	HasSubtitle     bool
	SubtitleFormats string
}

// FileRecord is one ingested (or imported) media file.
type FileRecord struct {
	ID             int64
	OriginalName   string
	CleanedName    string
	ContentHash    string
	SourcePath     string
	VideoStatus    VideoStatus
	SubtitleStatus SubtitleStatus
	IsLegacy       bool
	Metadata
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether no track of the record has work left. The video
// track of a legacy record never has work left.
func (r *FileRecord) Terminal() bool {
	if r == nil {
		return true
	}
	if !r.SubtitleStatus.Terminal() {
		return false
	}
	return r.IsLegacy || r.VideoStatus.Terminal()
}

// NeedsSubtitle reports whether subtitle extraction is outstanding.
func (r *FileRecord) NeedsSubtitle() bool {
	return r != nil && r.SubtitleStatus == SubtitlePending
}

// NeedsVideo reports whether transcoding is outstanding.
func (r *FileRecord) NeedsVideo() bool {
	return r != nil && !r.IsLegacy && r.VideoStatus == VideoPending
}

// ProcessLogEntry records one attempt of an operation on a record.
type ProcessLogEntry struct {
	ID          int64
	FileID      int64
	Operation   Track
	OutputPath  string
	SSIM        *float64
	PSNR        *float64
	ErrorLog    string
	DurationSec float64
	CreatedAt   time.Time
}

// Succeeded reports whether the attempt finished without error.
func (e ProcessLogEntry) Succeeded() bool {
	return strings.TrimSpace(e.ErrorLog) == ""
}

// Stats summarizes record counts per track status.
type Stats struct {
	Total    int
	Pending  int
	Legacy   int
	Video    map[VideoStatus]int
	Subtitle map[SubtitleStatus]int
}
