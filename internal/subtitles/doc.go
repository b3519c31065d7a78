// Package subtitles extracts embedded subtitle streams with ffmpeg.
//
// Extractor implements stage.Handler for the subtitle track. Text streams are
// converted to SRT and stripped of advertisement cues; PGS streams are copied
// out as .sup. The ffprobe inspection that drives extraction also yields the
// record metadata the scheduler merges into the registry.
package subtitles
