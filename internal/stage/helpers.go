package stage

import (
	"fmt"
	"path/filepath"
	"strings"

	"reelgate/internal/services"
)

// Validate checks that a job carries the fields every operation relies on.
// On failure it returns a services.ErrValidation suitable for Run methods.
func (j Job) Validate(stageName string) error {
	switch {
	case j.FileID <= 0:
		return services.Wrap(services.ErrValidation, stageName, "validate job", "Record id missing", nil)
	case strings.TrimSpace(j.SourcePath) == "":
		return services.Wrap(services.ErrValidation, stageName, "validate job", "Source path missing", nil)
	case strings.TrimSpace(j.OutputDir) == "":
		return services.Wrap(services.ErrValidation, stageName, "validate job", "Output directory not configured", nil)
	}
	return nil
}

// OutputBase returns the file name stem used for every output of the job:
// the cleaned name without its extension.
func (j Job) OutputBase() string {
	name := strings.TrimSpace(j.CleanedName)
	if name == "" {
		name = filepath.Base(j.SourcePath)
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// PartialDir returns the staging directory for a job's in-progress output.
// It is keyed by record id so a rerun after a crash reuses it.
func (j Job) PartialDir() string {
	return filepath.Join(j.OutputDir, ".partial", fmt.Sprintf("%d-%s", j.FileID, j.Track))
}
