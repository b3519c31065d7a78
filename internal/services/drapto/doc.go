// Package drapto integrates the Drapto AV1 encoder as the video transcoding
// operation.
//
// Two Client engines exist: Library calls the Drapto Go module in process and
// CLI shells out to the drapto binary with --progress-json. Both report
// typed ProgressUpdate values. Transcoder wraps a Client as a media operation:
// it encodes into a per-record partial directory and renames the result into
// the output directory only on success, so an interrupted run never leaves a
// half-written file where a finished one is expected.
package drapto
