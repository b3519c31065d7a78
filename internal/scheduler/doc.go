// Package scheduler drains the registry of outstanding work inside the daily
// processing window.
//
// A Scheduler owns one background loop (Run) that sleeps until it is woken by
// the ingestion gate, the dashboard, a periodic rescan or the opening of the
// next window, and then calls Drain. Drain is single-flight: an atomic latch
// rejects overlapping calls with ErrDrainActive instead of queueing them.
//
// For each non-terminal record the drain first extracts subtitles and then,
// unless the record is legacy, transcodes the video. Every attempt appends a
// process log entry; a failure marks only the affected track as failed and the
// drain moves on to the next record. The window is consulted before each
// record, never mid-operation, so a file started at 08:49 runs to completion.
package scheduler
