package util

import "strings"

// SanitizeText drops invalid UTF-8, NUL bytes and non-printing control
// characters other than newline, carriage return and tab. Postgres text
// columns reject NUL, and some PDF and spreadsheet readers emit it.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToValidUTF8(s, "")
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		switch {
		case ch == '\n' || ch == '\r' || ch == '\t':
			b.WriteRune(ch)
		case ch < 0x20 || ch == 0x7f:
		default:
			b.WriteRune(ch)
		}
	}
	return strings.TrimSpace(b.String())
}
