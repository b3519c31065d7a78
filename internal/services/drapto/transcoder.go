package drapto

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"reelgate/internal/config"
	"reelgate/internal/fileutil"
	"reelgate/internal/logging"
	"reelgate/internal/services"
	"reelgate/internal/stage"
)

const stageName = "encoding"

// Transcoder runs video encodes for the scheduler.
type Transcoder struct {
	client Client
	binary string
	logger *slog.Logger
}

// NewTranscoder wraps client. binary is checked by HealthCheck; leave it
// empty for the in-process library engine.
func NewTranscoder(client Client, binary string, logger *slog.Logger) *Transcoder {
	return &Transcoder{
		client: client,
		binary: strings.TrimSpace(binary),
		logger: logging.NewComponentLogger(logger, "drapto"),
	}
}

// NewFromConfig selects the engine configured in [encoding].
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Transcoder {
	if cfg.Encoding.Engine == "cli" {
		cli := NewCLI(
			WithBinary(cfg.DraptoBinary()),
			WithPreset(cfg.Encoding.Preset),
			WithResponsive(cfg.Encoding.Responsive),
			WithLogDir(filepath.Join(cfg.Paths.LogDir, "drapto")),
		)
		return NewTranscoder(cli, cli.Binary(), logger)
	}
	return NewTranscoder(NewLibrary(cfg.Encoding.Responsive), "", logger)
}

// Run encodes job.SourcePath into job.OutputDir as <cleaned base>.<ext>.
func (t *Transcoder) Run(ctx context.Context, job stage.Job) (stage.Result, error) {
	if err := job.Validate(stageName); err != nil {
		return stage.Result{}, err
	}
	logger := logging.WithContext(ctx, t.logger)

	partial := job.PartialDir()
	if err := os.RemoveAll(partial); err != nil {
		return stage.Result{}, services.Wrap(services.ErrTransient, stageName, "prepare", "Could not clear partial output from an earlier attempt", err)
	}
	if err := os.MkdirAll(partial, 0o755); err != nil {
		return stage.Result{}, services.Wrap(services.ErrTransient, stageName, "prepare", "Could not create partial output directory", err)
	}
	defer os.RemoveAll(partial)

	sampler := logging.NewProgressSampler(10)
	progress := func(update ProgressUpdate) {
		if update.Warning != "" {
			logger.Warn("drapto warning",
				logging.String("message", update.Warning),
				logging.String(logging.FieldEventType, "drapto_warning"),
				logging.String(logging.FieldErrorHint, "review the encode output once it finishes"),
				logging.String(logging.FieldImpact, "encode continues"),
			)
			return
		}
		percent := update.Percent
		if update.Type != "encoding_progress" && update.Type != "stage_progress" {
			percent = -1
		}
		if !sampler.ShouldLog(percent, update.Stage) {
			return
		}
		attrs := []logging.Attr{
			logging.String("stage", update.Stage),
			logging.Float64("percent", update.Percent),
		}
		if update.ETA > 0 {
			attrs = append(attrs, logging.Duration("eta", update.ETA))
		}
		if update.FPS > 0 {
			attrs = append(attrs, logging.Float64("fps", update.FPS))
		}
		if msg := strings.TrimSpace(update.Message); msg != "" {
			attrs = append(attrs, logging.String("message", msg))
		}
		logger.Info("encode progress", logging.Args(attrs...)...)
	}

	logger.Info("encode started",
		logging.String(logging.FieldEventType, "encode_start"),
		logging.String("source", job.SourcePath),
	)
	outcome, err := t.client.Encode(ctx, job.SourcePath, partial, EncodeOptions{Progress: progress})
	if err != nil {
		if ctx.Err() != nil {
			return stage.Result{}, ctx.Err()
		}
		return stage.Result{}, services.Wrap(
			services.ErrExternalTool,
			stageName,
			"drapto encode",
			"Drapto encoding failed; inspect the encoding log output and confirm the engine settings in config",
			err,
		)
	}

	produced := outcome.OutputPath
	if _, err := os.Stat(produced); err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, stageName, "locate output",
			fmt.Sprintf("Drapto reported %s but the file is missing", produced), err)
	}
	ext := filepath.Ext(produced)
	if ext == "" {
		ext = ".mkv"
	}
	final := filepath.Join(job.OutputDir, job.OutputBase()+ext)
	if err := fileutil.MoveFile(produced, final); err != nil {
		return stage.Result{}, services.Wrap(services.ErrTransient, stageName, "finalize", "Could not move encoded file into the output directory", err)
	}

	logger.Info("encode finished",
		logging.String(logging.FieldEventType, "encode_complete"),
		logging.String("output", final),
		logging.Int64("original_size", outcome.OriginalSize),
		logging.Int64("encoded_size", outcome.EncodedSize),
	)
	return stage.Result{
		OutputPath: final,
		Outputs:    []string{final},
		SSIM:       outcome.SSIM,
		PSNR:       outcome.PSNR,
	}, nil
}

// HealthCheck verifies the CLI engine's binary is on PATH.
func (t *Transcoder) HealthCheck(context.Context) stage.Health {
	if t.client == nil {
		return stage.Unhealthy(stageName, "drapto client unavailable")
	}
	if t.binary == "" {
		return stage.Healthy(stageName)
	}
	if _, err := exec.LookPath(t.binary); err != nil {
		return stage.Unhealthy(stageName, fmt.Sprintf("drapto binary %q not found", t.binary))
	}
	return stage.Healthy(stageName)
}

var _ stage.Handler = (*Transcoder)(nil)
