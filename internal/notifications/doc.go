// Package notifications delivers daemon events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Callers publish
// an Event with a loosely typed Payload; the service renders the title,
// message, tags and priority so the scheduler and CLI never deal with HTTP.
//
// Drain summaries and per-operation failures can each be silenced through
// the [notifications] section without touching the call sites.
package notifications
