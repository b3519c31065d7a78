// Package daemon runs the long-lived reelgate process: it holds the
// single-instance lock, returns interrupted transcodes to pending, and drives
// the watcher, ingestion gate, scheduler and status broadcaster until the
// context ends.
//
// When the dashboard API is enabled the daemon also serves a chi router with
// paginated status, batch search, re-encode actions, per-file process logs,
// a server-sent event stream of status snapshots, and Prometheus metrics.
package daemon
