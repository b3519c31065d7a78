// Package registry persists ingested media files and their per-track
// processing state in SQLite.
//
// Each FileRecord carries two independent status fields, one for subtitle
// extraction and one for video transcoding, plus optional descriptive
// metadata. The UNIQUE constraint on file_hash is the only deduplication
// guard: Insert reports ErrDuplicateHash when another record already owns the
// content, so concurrent ingestion of the same bytes yields exactly one
// record. Status writes are validated against the closed enumerations in
// models.go before they reach the database.
//
// Schema changes ship as numbered files under migrations/ and are applied by
// golang-migrate when the store opens.
package registry
