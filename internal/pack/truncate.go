package pack

import (
	"strings"

	"github.com/kb-labs/mind/internal/hashutil"
)

// Truncation strategies.
const (
	TruncateStart  = "start"
	TruncateMiddle = "middle"
	TruncateEnd    = "end"
)

const truncationMarker = "// ... truncated"

// truncate reduces text to at most capTokens using the chosen strategy.
// Middle truncation keeps both boundaries, cutting at the best break point
// available and preserving at least half of the original when the cap
// allows it.
func truncate(text string, capTokens int, strategy string) string {
	if hashutil.EstimateTokens(text) <= capTokens {
		return text
	}
	capBytes := capTokens * 4

	switch strategy {
	case TruncateStart:
		return truncateStart(text, capBytes)
	case TruncateEnd:
		return truncateEnd(text, capBytes)
	default:
		return truncateMiddle(text, capBytes)
	}
}

func truncateStart(text string, capBytes int) string {
	lines := strings.Split(text, "\n")
	for len(lines) > 1 && len(strings.Join(lines, "\n")) > capBytes {
		lines = lines[1:]
	}
	out := strings.Join(lines, "\n")
	if len(out) > capBytes {
		out = out[len(out)-capBytes:]
	}
	return out
}

func truncateEnd(text string, capBytes int) string {
	lines := strings.Split(text, "\n")
	for len(lines) > 1 && len(strings.Join(lines, "\n")) > capBytes {
		lines = lines[:len(lines)-1]
	}
	out := strings.Join(lines, "\n")
	if len(out) > capBytes {
		out = out[:capBytes]
	}
	return out
}

func truncateMiddle(text string, capBytes int) string {
	budget := capBytes - len(truncationMarker) - 2
	if budget <= 0 {
		if capBytes <= 0 {
			return ""
		}
		return text[:capBytes]
	}

	// Keep at least half of the original when the cap allows it.
	keep := budget
	if keep > len(text) {
		keep = len(text)
	}
	headTarget := keep / 2
	tailTarget := keep - headTarget

	head := breakBefore(text, headTarget)
	tail := breakAfter(text, len(text)-tailTarget)

	return text[:head] + "\n" + truncationMarker + "\n" + text[tail:]
}

// breakBefore finds the best break point at or before limit, walking the
// preference ladder: double newline, closing brace, newline, sentence end,
// comma, space, hard cut.
func breakBefore(text string, limit int) int {
	if limit >= len(text) {
		return len(text)
	}
	window := text[:limit]
	for _, sep := range []string{"\n\n", "}\n", "\n", ". ", ", ", " "} {
		if idx := strings.LastIndex(window, sep); idx > limit/2 {
			return idx + len(sep)
		}
	}
	return limit
}

// breakAfter finds the best break point at or after offset, same ladder.
func breakAfter(text string, offset int) int {
	if offset <= 0 {
		return 0
	}
	window := text[offset:]
	limit := len(window)/2 + 1
	for _, sep := range []string{"\n\n", "}\n", "\n", ". ", ", ", " "} {
		if idx := strings.Index(window, sep); idx >= 0 && idx < limit {
			return offset + idx + len(sep)
		}
	}
	return offset
}
