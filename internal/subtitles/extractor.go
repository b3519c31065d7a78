package subtitles

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"reelgate/internal/config"
	"reelgate/internal/fileutil"
	"reelgate/internal/logging"
	"reelgate/internal/media/ffprobe"
	"reelgate/internal/registry"
	"reelgate/internal/services"
	"reelgate/internal/stage"
)

const stageName = "subtitles"

type commandRunner func(ctx context.Context, name string, args ...string) error

type prober func(ctx context.Context, binary, path string) (ffprobe.Result, error)

var textCodecs = map[string]bool{
	"subrip":   true,
	"srt":      true,
	"ass":      true,
	"ssa":      true,
	"mov_text": true,
	"webvtt":   true,
	"text":     true,
}

var bitmapCodecs = map[string]bool{
	"hdmv_pgs_subtitle": true,
	"pgssub":            true,
}

// Extractor writes every supported subtitle stream of a source into the
// output directory.
type Extractor struct {
	ffmpeg  string
	ffprobe string
	run     commandRunner
	probe   prober
	logger  *slog.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithCommandRunner overrides the ffmpeg runner (used in tests).
func WithCommandRunner(r commandRunner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.run = r
		}
	}
}

// WithProber overrides the ffprobe inspection (used in tests).
func WithProber(p prober) Option {
	return func(e *Extractor) {
		if p != nil {
			e.probe = p
		}
	}
}

// New constructs an Extractor using the given binaries.
func New(ffmpegBinary, ffprobeBinary string, logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		ffmpeg:  strings.TrimSpace(ffmpegBinary),
		ffprobe: strings.TrimSpace(ffprobeBinary),
		run:     defaultRunner,
		probe:   ffprobe.Inspect,
		logger:  logging.NewComponentLogger(logger, "subtitles"),
	}
	if e.ffmpeg == "" {
		e.ffmpeg = "ffmpeg"
	}
	if e.ffprobe == "" {
		e.ffprobe = "ffprobe"
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewFromConfig builds an Extractor from the [subtitles] section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Extractor {
	return New(cfg.FFmpegBinary(), cfg.FFprobeBinary(), logger)
}

// Run extracts the subtitles of job.SourcePath. A source without subtitle
// streams succeeds with no outputs.
func (e *Extractor) Run(ctx context.Context, job stage.Job) (stage.Result, error) {
	if err := job.Validate(stageName); err != nil {
		return stage.Result{}, err
	}
	logger := logging.WithContext(ctx, e.logger)

	probe, err := e.probe(ctx, e.ffprobe, job.SourcePath)
	if err != nil {
		if ctx.Err() != nil {
			return stage.Result{}, ctx.Err()
		}
		return stage.Result{}, services.Wrap(services.ErrExternalTool, stageName, "ffprobe",
			"Could not inspect the source; confirm it is a readable media file", err)
	}
	meta := MetadataFrom(probe, job.SourcePath)
	result := stage.Result{Metadata: &meta}

	streams := probe.SubtitleStreams()
	if len(streams) == 0 {
		logger.Info("no subtitle streams",
			logging.String(logging.FieldEventType, "subtitles_none"),
			logging.String("source", job.SourcePath),
		)
		return result, nil
	}

	partial := job.PartialDir()
	if err := os.RemoveAll(partial); err != nil {
		return stage.Result{}, services.Wrap(services.ErrTransient, stageName, "prepare", "Could not clear partial output from an earlier attempt", err)
	}
	if err := os.MkdirAll(partial, 0o755); err != nil {
		return stage.Result{}, services.Wrap(services.ErrTransient, stageName, "prepare", "Could not create partial output directory", err)
	}
	defer os.RemoveAll(partial)

	base := job.OutputBase()
	var staged []string
	for ordinal, stream := range streams {
		ext := extensionFor(stream.CodecName)
		if ext == "" {
			logger.Warn("unsupported subtitle codec",
				logging.String(logging.FieldEventType, "subtitle_codec_unsupported"),
				logging.String("codec", stream.CodecName),
				logging.Int("stream", stream.Index),
				logging.String(logging.FieldErrorHint, "extract this stream manually with mkvextract"),
				logging.String(logging.FieldImpact, "stream is not written to the output directory"),
			)
			continue
		}
		name := outputName(base, ordinal, stream.Language(), ext)
		target := filepath.Join(partial, name)
		if err := e.run(ctx, e.ffmpeg, extractArgs(job.SourcePath, stream, ext, target)...); err != nil {
			if ctx.Err() != nil {
				return stage.Result{}, ctx.Err()
			}
			return stage.Result{}, services.Wrap(services.ErrExternalTool, stageName, "ffmpeg extract",
				fmt.Sprintf("ffmpeg failed to extract subtitle stream %d (%s)", stream.Index, stream.CodecName), err)
		}
		if ext == ".srt" {
			removed, err := cleanFile(target)
			if err != nil {
				return stage.Result{}, services.Wrap(services.ErrExternalTool, stageName, "clean srt",
					fmt.Sprintf("ffmpeg did not produce %s", name), err)
			}
			if removed > 0 {
				logger.Debug("removed advertisement cues", logging.String("file", name), logging.Int("cues", removed))
			}
		}
		staged = append(staged, target)
	}

	for _, path := range staged {
		final := filepath.Join(job.OutputDir, filepath.Base(path))
		if err := fileutil.MoveFile(path, final); err != nil {
			return stage.Result{}, services.Wrap(services.ErrTransient, stageName, "finalize", "Could not move subtitle into the output directory", err)
		}
		result.Outputs = append(result.Outputs, final)
	}
	if len(result.Outputs) > 0 {
		result.OutputPath = result.Outputs[0]
	}
	logger.Info("subtitles extracted",
		logging.String(logging.FieldEventType, "subtitles_extracted"),
		logging.Int("streams", len(streams)),
		logging.Int("written", len(result.Outputs)),
	)
	return result, nil
}

// HealthCheck verifies both binaries resolve on PATH.
func (e *Extractor) HealthCheck(context.Context) stage.Health {
	for _, bin := range []string{e.ffmpeg, e.ffprobe} {
		if _, err := exec.LookPath(bin); err != nil {
			return stage.Unhealthy(stageName, fmt.Sprintf("%q not found", bin))
		}
	}
	return stage.Healthy(stageName)
}

var _ stage.Handler = (*Extractor)(nil)

// MetadataFrom summarizes a probe into the registry metadata columns. The
// file size falls back to stat when ffprobe does not report one.
func MetadataFrom(probe ffprobe.Result, path string) registry.Metadata {
	meta := registry.Metadata{
		FileSize:     probe.SizeBytes(),
		Resolution:   probe.Resolution(),
		VideoEncoder: probe.VideoCodec(),
	}
	if d := probe.DurationSeconds(); d > 0 {
		meta.DurationSec = d
	}
	if meta.FileSize == 0 && path != "" {
		if info, err := os.Stat(path); err == nil {
			meta.FileSize = info.Size()
		}
	}
	formats := map[string]struct{}{}
	for _, stream := range probe.SubtitleStreams() {
		if codec := strings.TrimSpace(stream.CodecName); codec != "" {
			formats[codec] = struct{}{}
		}
	}
	meta.HasSubtitle = len(probe.SubtitleStreams()) > 0
	if len(formats) > 0 {
		list := make([]string, 0, len(formats))
		for codec := range formats {
			list = append(list, codec)
		}
		sort.Strings(list)
		meta.SubtitleFormats = strings.Join(list, ",")
	}
	return meta
}

func extensionFor(codec string) string {
	codec = strings.ToLower(strings.TrimSpace(codec))
	switch {
	case textCodecs[codec]:
		return ".srt"
	case bitmapCodecs[codec]:
		return ".sup"
	default:
		return ""
	}
}

func outputName(base string, ordinal int, language, ext string) string {
	parts := []string{base, fmt.Sprintf("%d", ordinal)}
	if language != "" {
		parts = append(parts, language)
	}
	return strings.Join(parts, ".") + ext
}

func extractArgs(source string, stream ffprobe.Stream, ext, target string) []string {
	codec := "copy"
	if ext == ".srt" {
		codec = "srt"
	}
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", source,
		"-map", fmt.Sprintf("0:%d", stream.Index),
		"-c:s", codec,
		target,
	}
}

func cleanFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	cleaned, stats := CleanSRT(raw)
	if stats.RemovedCues == 0 {
		return 0, nil
	}
	if err := os.WriteFile(path, cleaned, 0o644); err != nil {
		return 0, err
	}
	return stats.RemovedCues, nil
}

func defaultRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
