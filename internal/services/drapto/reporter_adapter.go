package drapto

import (
	"fmt"
	"strings"

	draptolib "github.com/five82/drapto"
)

// reporter adapts the Drapto Reporter interface to ProgressUpdate callbacks
// and remembers the final outcome.
type reporter struct {
	callback func(ProgressUpdate)
	outcome  Outcome
}

func newReporter(callback func(ProgressUpdate)) *reporter {
	return &reporter{callback: callback}
}

func (r *reporter) emit(update ProgressUpdate) {
	if r.callback != nil {
		r.callback(update)
	}
}

func (r *reporter) Hardware(s draptolib.HardwareSummary) {
	r.emit(ProgressUpdate{Type: "hardware", Message: "host " + s.Hostname})
}

func (r *reporter) Initialization(s draptolib.InitializationSummary) {
	r.emit(ProgressUpdate{
		Type:    "initialization",
		Stage:   "initialization",
		Message: fmt.Sprintf("%s (%s)", s.InputFile, s.Resolution),
	})
}

func (r *reporter) StageProgress(s draptolib.StageProgress) {
	update := ProgressUpdate{
		Type:    "stage_progress",
		Percent: float64(s.Percent),
		Stage:   s.Stage,
		Message: s.Message,
	}
	if s.ETA != nil {
		update.ETA = *s.ETA
	}
	r.emit(update)
}

func (r *reporter) CropResult(s draptolib.CropSummary) {
	message := strings.TrimSpace(s.Message)
	if s.Required && strings.TrimSpace(s.Crop) != "" {
		message = fmt.Sprintf("%s (crop %s)", message, s.Crop)
	}
	r.emit(ProgressUpdate{Type: "crop_result", Stage: "analysis", Message: message})
}

func (r *reporter) EncodingConfig(s draptolib.EncodingConfigSummary) {
	r.emit(ProgressUpdate{
		Type:    "encoding_config",
		Stage:   "encoding",
		Message: fmt.Sprintf("encoder %s preset %s", s.Encoder, s.Preset),
	})
}

func (r *reporter) EncodingStarted(totalFrames uint64) {
	r.emit(ProgressUpdate{
		Type:    "encoding_started",
		Stage:   "encoding",
		Message: fmt.Sprintf("%d frames", totalFrames),
	})
}

func (r *reporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	r.emit(ProgressUpdate{
		Type:    "encoding_progress",
		Percent: float64(s.Percent),
		Stage:   "encoding",
		ETA:     s.ETA,
		Speed:   float64(s.Speed),
		FPS:     float64(s.FPS),
		Bitrate: s.Bitrate,
	})
}

func (r *reporter) ValidationComplete(s draptolib.ValidationSummary) {
	failed := make([]string, 0)
	for _, step := range s.Steps {
		if !step.Passed {
			failed = append(failed, step.Name)
		}
	}
	message := "validation passed"
	if !s.Passed {
		message = "validation failed: " + strings.Join(failed, ", ")
	}
	r.emit(ProgressUpdate{Type: "validation", Stage: "validation", Message: message})
}

func (r *reporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.outcome.OutputPath = s.OutputPath
	r.outcome.OriginalSize = int64(s.OriginalSize)
	r.outcome.EncodedSize = int64(s.EncodedSize)
	r.emit(ProgressUpdate{
		Type:    "encoding_complete",
		Percent: 100,
		Stage:   "complete",
		Message: fmt.Sprintf("finished in %s", s.TotalTime),
	})
}

func (r *reporter) Warning(message string) {
	r.emit(ProgressUpdate{Type: "warning", Message: message, Warning: message})
}

func (r *reporter) Error(e draptolib.ReporterError) {
	message := strings.TrimSpace(e.Title + ": " + e.Message)
	if hint := strings.TrimSpace(e.Suggestion); hint != "" {
		message += " (" + hint + ")"
	}
	r.emit(ProgressUpdate{Type: "error", Message: message})
}

func (r *reporter) OperationComplete(message string) {
	r.emit(ProgressUpdate{Type: "operation_complete", Message: message})
}

func (r *reporter) BatchStarted(s draptolib.BatchStartInfo) {
	r.emit(ProgressUpdate{Type: "batch_started", Message: fmt.Sprintf("%d files", s.TotalFiles)})
}

func (r *reporter) FileProgress(s draptolib.FileProgressContext) {
	r.emit(ProgressUpdate{Type: "file_progress", Message: fmt.Sprintf("file %d of %d", s.CurrentFile, s.TotalFiles)})
}

func (r *reporter) BatchComplete(s draptolib.BatchSummary) {
	r.emit(ProgressUpdate{Type: "batch_complete", Message: fmt.Sprintf("%d of %d files encoded", s.SuccessfulCount, s.TotalFiles)})
}

var _ draptolib.Reporter = (*reporter)(nil)
