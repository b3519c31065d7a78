// Package ingest decides what happens to a file once the watcher reports it
// stable: ignore it, defer it, register it, or wake the scheduler for work
// already registered under the same content hash. Deferred and failed events
// go back to the watcher, which offers the file again after it settles.
package ingest
