// Package logs reads the daemon log file for the `reelgate logs` command.
//
// Last reads the trailing lines of a file with bounded memory and reports the
// byte offset it stopped at; Follow polls from that offset and hands new lines
// to a callback until the context ends. A log that is rotated or truncated
// underneath a follower is reopened from the start.
package logs
