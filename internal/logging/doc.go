// Package logging builds the slog loggers used by the daemon and CLI.
//
// Console output is a compact single-line format with the component lifted
// into the prefix; JSON output is one object per line. When a log directory
// is configured every record is also appended to reelgate.log as JSON.
// ContextFields and WithContext tag lines with the registry file id, the
// processing track and the request correlation id carried on a context.
package logging
