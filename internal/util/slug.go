// Package util provides common utility functions.
package util

import (
	"regexp"
	"strings"
)

var (
	// Matches spaces, underscores, and slashes (for replacement with dashes).
	wordSeparatorRe = regexp.MustCompile(`[\s_/]+`)
	// Matches non-alphanumeric characters (except dashes).
	nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9-]`)
	// Matches multiple consecutive dashes.
	multipleDashRe = regexp.MustCompile(`-+`)
)

// NormalizeTagSlug converts user input to a canonical tag slug.
// The slug is the source of truth for tag identity: lowercase, dash-separated,
// alphanumeric only. "Stoic Philosophy", "stoic_philosophy" and "STOIC-PHILOSOPHY"
// all normalize to "stoic-philosophy".
func NormalizeTagSlug(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = wordSeparatorRe.ReplaceAllString(s, "-")
	s = nonAlphanumericRe.ReplaceAllString(s, "")
	s = multipleDashRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
