package stage

import (
	"reelgate/internal/registry"
)

// Job is one unit of work handed to a media operation.
type Job struct {
	FileID       int64
	Track        registry.Track
	SourcePath   string
	CleanedName  string
	OriginalName string
	OutputDir    string
}

// Result describes what an operation produced. Outputs lists every file
// written; OutputPath is the primary one recorded in the process log.
type Result struct {
	OutputPath string
	Outputs    []string
	SSIM       *float64
	PSNR       *float64
	Metadata   *registry.Metadata
}
