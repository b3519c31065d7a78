// Package api defines the wire-format types and read/act services behind the
// dashboard HTTP API and the CLI. It translates registry records into
// transport-friendly DTOs so consumers never couple to internal types.
//
// # Key Types
//
// FileRecord: transport representation of a registry row. Field names follow
// the registry columns (snake_case) so the dashboard can render rows returned
// by both the status listing and batch search unchanged.
//
// StatusPage: one page of the dashboard listing with paging totals.
//
// SearchResponse: batch availability answer, split into found and missing
// terms.
//
// Summary: the compact pending/processing snapshot pushed over server-sent
// events.
//
// # Services
//
// FileService wraps the registry for listing, batch search, detail lookup and
// the re-encode action. Input problems surface as services.ErrValidation and
// unknown ids as services.ErrNotFound so transports can map them to status
// codes.
package api
