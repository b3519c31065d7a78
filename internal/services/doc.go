// Package services holds helpers shared by the media operation adapters and
// the scheduler.
//
// Errors returned by the transcoder, subtitle extractor and registry carry
// one of the exported markers through Wrap, so callers can classify a
// failure with errors.Is or Kind without parsing messages. The context
// helpers stamp the registry file id, the processing track and a request
// correlation id so log lines from nested calls stay attributable.
package services
