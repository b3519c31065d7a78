package drapto

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// ProgressUpdate captures Drapto progress events.
type ProgressUpdate struct {
	Type    string
	Percent float64
	Stage   string
	Message string
	ETA     time.Duration
	Speed   float64
	FPS     float64
	Bitrate string
	Warning string
}

// EncodeOptions tunes one encode.
type EncodeOptions struct {
	Progress func(ProgressUpdate)
}

// Outcome describes a finished encode.
type Outcome struct {
	OutputPath   string
	OriginalSize int64
	EncodedSize  int64
	SSIM         *float64
	PSNR         *float64
}

// Client defines Drapto encoding behaviour.
type Client interface {
	Encode(ctx context.Context, inputPath, outputDir string, opts EncodeOptions) (Outcome, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithPreset passes an SVT-AV1 preset. Zero keeps Drapto's default.
func WithPreset(preset int) Option {
	return func(c *CLI) { c.preset = preset }
}

// WithResponsive toggles Drapto's reduced-priority mode.
func WithResponsive(enabled bool) Option {
	return func(c *CLI) { c.responsive = enabled }
}

// WithLogDir directs Drapto's own log files.
func WithLogDir(dir string) Option {
	return func(c *CLI) { c.logDir = strings.TrimSpace(dir) }
}

// CLI wraps the drapto command-line encoder.
type CLI struct {
	binary     string
	preset     int
	responsive bool
	logDir     string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "drapto", responsive: true}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Binary returns the executable the client launches.
func (c *CLI) Binary() string { return c.binary }

func (c *CLI) args(inputPath, outputDir string) []string {
	args := []string{"encode", "--input", inputPath, "--output", outputDir}
	if c.responsive {
		args = append(args, "--responsive")
	}
	if c.preset > 0 {
		args = append(args, "--preset", strconv.Itoa(c.preset))
	}
	if c.logDir != "" {
		args = append(args, "--log-dir", c.logDir)
	} else {
		args = append(args, "--no-log")
	}
	return append(args, "--progress-json")
}

// Encode launches drapto encode and returns the outcome.
func (c *CLI) Encode(ctx context.Context, inputPath, outputDir string, opts EncodeOptions) (Outcome, error) {
	if strings.TrimSpace(inputPath) == "" {
		return Outcome{}, errors.New("input path required")
	}
	cleanOutputDir := strings.TrimSpace(outputDir)
	if cleanOutputDir == "" {
		return Outcome{}, errors.New("output directory required")
	}

	outcome := Outcome{OutputPath: defaultOutputPath(inputPath, cleanOutputDir)}

	cmd := commandContext(ctx, c.binary, c.args(inputPath, cleanOutputDir)...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Outcome{}, fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return Outcome{}, fmt.Errorf("start drapto: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var payload progressLine
		if err := json.Unmarshal(scanner.Bytes(), &payload); err != nil {
			continue
		}
		payload.apply(&outcome)
		if opts.Progress != nil {
			opts.Progress(payload.update())
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return Outcome{}, fmt.Errorf("read drapto output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			return Outcome{}, fmt.Errorf("drapto encode failed: %w: %s", err, lastLine(detail))
		}
		return Outcome{}, fmt.Errorf("drapto encode failed: %w", err)
	}
	return outcome, nil
}

// progressLine is one --progress-json record. Only the fields reelgate uses
// are decoded.
type progressLine struct {
	Type         string   `json:"type"`
	Percent      float64  `json:"percent"`
	Stage        string   `json:"stage"`
	Message      string   `json:"message"`
	ETASeconds   float64  `json:"eta_seconds"`
	Speed        float64  `json:"speed"`
	FPS          float64  `json:"fps"`
	Bitrate      string   `json:"bitrate"`
	OutputPath   string   `json:"output_path"`
	OriginalSize int64    `json:"original_size"`
	EncodedSize  int64    `json:"encoded_size"`
	SSIM         *float64 `json:"ssim"`
	PSNR         *float64 `json:"psnr"`
}

func (p progressLine) update() ProgressUpdate {
	update := ProgressUpdate{
		Type:    p.Type,
		Percent: p.Percent,
		Stage:   p.Stage,
		Message: p.Message,
		ETA:     time.Duration(p.ETASeconds * float64(time.Second)),
		Speed:   p.Speed,
		FPS:     p.FPS,
		Bitrate: p.Bitrate,
	}
	if p.Type == "warning" {
		update.Warning = p.Message
	}
	return update
}

func (p progressLine) apply(outcome *Outcome) {
	if path := strings.TrimSpace(p.OutputPath); path != "" {
		outcome.OutputPath = path
	}
	if p.OriginalSize > 0 {
		outcome.OriginalSize = p.OriginalSize
	}
	if p.EncodedSize > 0 {
		outcome.EncodedSize = p.EncodedSize
	}
	if p.SSIM != nil {
		outcome.SSIM = p.SSIM
	}
	if p.PSNR != nil {
		outcome.PSNR = p.PSNR
	}
}

func defaultOutputPath(inputPath, outputDir string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return filepath.Join(outputDir, stem+".mkv")
}

func lastLine(text string) string {
	if idx := strings.LastIndex(text, "\n"); idx >= 0 {
		return strings.TrimSpace(text[idx+1:])
	}
	return text
}

var _ Client = (*CLI)(nil)
