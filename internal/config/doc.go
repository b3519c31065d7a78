// Package config loads, normalizes, and validates reelgate configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files strictly, and honours environment fallbacks for the drop,
// output and archive directories and the ntfy topic. Downstream packages
// receive a Config with absolute paths and range-checked numbers, and use
// the duration helpers instead of converting raw seconds themselves.
package config
