// Package strings provides small string helpers shared across packages:
// identifier slugs, filesystem-safe names and single-line truncation for
// table output.
package strings

import (
	"regexp"
	"strings"
)

// DefaultDescriptionMaxLen is the default maximum length for descriptions in
// formatted table output.
const DefaultDescriptionMaxLen = 60

// minTruncateLen leaves room for at least one character plus the ellipsis.
const minTruncateLen = 4

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases the input and collapses every run of non-alphanumeric
// characters into a single underscore. The result is a stable identifier for
// step IDs and similar keys; an input with no usable characters yields an
// empty string.
func Slugify(s string) string {
	return strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

// SanitizePathComponent makes a name safe for use as a single directory or
// file name by replacing path separators and drive separators.
func SanitizePathComponent(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, name)
}

// Truncate collapses the string to a single line and shortens it to maxLen
// runes, appending "..." when content was cut. maxLen values below 4 are
// clamped so the ellipsis always fits.
func Truncate(s string, maxLen int) string {
	if maxLen < minTruncateLen {
		maxLen = minTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
