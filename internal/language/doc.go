// Package language normalizes the language tags ffprobe reports on subtitle
// streams so extracted files carry a stable ISO 639-1 suffix.
package language
