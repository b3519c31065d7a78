// Package main hosts the reelgate CLI.
//
// `reelgate run` is the daemon itself; start, stop, restart and status
// manage it through the lock and pid files in log_dir. The remaining
// commands work directly against the registry: listing and retrying
// records, batch availability checks, identity and hash diagnostics, legacy
// imports and configuration scaffolding. `reelgate logs` tails the current
// daemon log file.
package main
