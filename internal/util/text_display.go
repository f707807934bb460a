package util

import "strings"

// Snippet returns the first maxRunes runes of s, with "..." appended only when
// s was cut.
func Snippet(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}

// Preview collapses whitespace before cutting, for log lines and upload reports.
func Preview(s string, maxRunes int) string {
	return Snippet(strings.Join(strings.Fields(s), " "), maxRunes)
}
