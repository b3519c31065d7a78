// Package fingerprint computes the content hashes that deduplicate ingested
// files. Digests are streamed in 1 MiB reads and memoized per file version
// in an expiring LRU so repeated events for an unchanged file are cheap.
package fingerprint
