package drapto

import (
	"context"
	"errors"
	"strings"

	draptolib "github.com/five82/drapto"
)

// Library implements Client using the Drapto Go library directly,
// bypassing the CLI shell-out.
type Library struct {
	responsive bool
}

// NewLibrary constructs a Library client.
func NewLibrary(responsive bool) *Library {
	return &Library{responsive: responsive}
}

// Encode encodes a video file using the Drapto library.
func (l *Library) Encode(ctx context.Context, inputPath, outputDir string, opts EncodeOptions) (Outcome, error) {
	if strings.TrimSpace(inputPath) == "" {
		return Outcome{}, errors.New("input path required")
	}
	outputDir = strings.TrimSpace(outputDir)
	if outputDir == "" {
		return Outcome{}, errors.New("output directory required")
	}

	var encoderOpts []draptolib.Option
	if l.responsive {
		encoderOpts = append(encoderOpts, draptolib.WithResponsive())
	}
	encoder, err := draptolib.New(encoderOpts...)
	if err != nil {
		return Outcome{}, err
	}

	rep := newReporter(opts.Progress)
	if _, err := encoder.EncodeWithReporter(ctx, inputPath, outputDir, rep); err != nil {
		return Outcome{}, err
	}

	outcome := rep.outcome
	if strings.TrimSpace(outcome.OutputPath) == "" {
		outcome.OutputPath = defaultOutputPath(inputPath, outputDir)
	}
	return outcome, nil
}

var _ Client = (*Library)(nil)
