// Package textx provides small text utilities used across the project.
package textx

import (
	"strings"
)

// SanitizeText removes control characters except tab/newline/CR and trims spaces.
func SanitizeText(s string) string {
	// strip control chars outside tab/newline/carriage return
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// CollapseWhitespace sanitizes s and collapses every whitespace run to a
// single space. Extracted web pages and PDFs come in with heavy padding.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(SanitizeText(s)), " ")
}

// TruncateRunes limits s to at most n runes, appending an ellipsis when cut.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
