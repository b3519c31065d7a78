// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// This package has no reelgate-specific dependencies.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video/subtitle stream properties
//   - Format: container-level metadata (duration, size, bitrate)
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
//
// Helper methods on Result provide stream selection, duration parsing and
// the resolution/encoder summary stored on registry records.
package ffprobe
