package subtitles

import (
	"regexp"
	"strconv"
	"strings"
)

var adPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)opensubtitles`),
	regexp.MustCompile(`(?i)subtitles? by`),
	regexp.MustCompile(`(?i)synced? and corrected`),
	regexp.MustCompile(`(?i)advertise (your|yours?) product`),
	regexp.MustCompile(`(?i)https?://`),
	regexp.MustCompile(`(?i)\bwww\.`),
	regexp.MustCompile(`(?i)\b(subscene|yts|yify|addic7ed)\b`),
}

// CleanStats reports what CleanSRT changed.
type CleanStats struct {
	RemovedCues int
}

// CleanSRT drops advertisement cues, trims trailing whitespace and renumbers
// the remaining cues from 1.
func CleanSRT(raw []byte) ([]byte, CleanStats) {
	normalized := strings.ReplaceAll(string(raw), "\r\n", "\n")
	var stats CleanStats
	var kept []string
	for _, block := range splitBlocks(normalized) {
		lines := strings.Split(block, "\n")
		if isAdvertisement(lines) {
			stats.RemovedCues++
			continue
		}
		if len(lines) > 0 && isNumeric(lines[0]) {
			lines = lines[1:]
		}
		for i := range lines {
			lines[i] = strings.TrimRight(lines[i], " \t")
		}
		kept = append(kept, strconv.Itoa(len(kept)+1)+"\n"+strings.Join(lines, "\n"))
	}
	output := strings.Join(kept, "\n\n")
	if !strings.HasSuffix(output, "\n") {
		output += "\n"
	}
	return []byte(output), stats
}

func splitBlocks(content string) []string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}
	var blocks []string
	for _, block := range strings.Split(trimmed, "\n\n") {
		if block = strings.Trim(block, "\n"); block != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

func isAdvertisement(lines []string) bool {
	payload := strings.TrimSpace(strings.Join(cueText(lines), " "))
	if payload == "" {
		return false
	}
	for _, pattern := range adPatterns {
		if pattern.MatchString(payload) {
			return true
		}
	}
	return false
}

// cueText returns the dialogue lines of a cue, skipping its index and timing.
func cueText(lines []string) []string {
	start := 0
	if start < len(lines) && isNumeric(lines[start]) {
		start++
	}
	if start < len(lines) && strings.Contains(lines[start], "-->") {
		start++
	}
	var text []string
	for _, line := range lines[start:] {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			text = append(text, trimmed)
		}
	}
	return text
}

func isNumeric(value string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(value))
	return err == nil
}
