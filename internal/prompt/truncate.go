package prompt

import (
	"strconv"
	"strings"
)

const (
	// DefaultMaxChars is the page-text budget when none is configured.
	DefaultMaxChars = 30000
	// MinMaxChars is the floor applied to any configured budget.
	MinMaxChars = 1000
	// PreviewChars is how much of the (truncated) text the raw preview shows.
	PreviewChars = 4000
	// TruncatedMarker is appended to text cut at the budget.
	TruncatedMarker = "\n\n[TRUNCATED]"
)

// Budget parses a stored maxChars value. Blank or unparsable values give
// DefaultMaxChars; anything below MinMaxChars is raised to it.
func Budget(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		n = DefaultMaxChars
	}
	if n < MinMaxChars {
		n = MinMaxChars
	}
	return n
}

// Truncate cuts s to maxChars characters and appends TruncatedMarker when
// it was longer. Lengths count runes, not bytes.
func Truncate(s string, maxChars int) string {
	if s == "" {
		return ""
	}
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	return string(r[:maxChars]) + TruncatedMarker
}

// Preview returns the first PreviewChars characters of s.
func Preview(s string) string {
	r := []rune(s)
	if len(r) <= PreviewChars {
		return s
	}
	return string(r[:PreviewChars])
}
