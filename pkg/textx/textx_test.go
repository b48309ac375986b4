// Package textx contains tests for the text utilities.
package textx

import "testing"

func TestSanitizeText(t *testing.T) {
	in := "he\x00llo\nwo\x7frld\t!"
	got := SanitizeText(in)
	if got != "hello\nworld\t!" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	in := "  Senior\n\n  Software\t\tEngineer \r\n "
	if got := CollapseWhitespace(in); got != "Senior Software Engineer" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("hello", 10); got != "hello" {
		t.Fatalf("unexpected: %q", got)
	}
	if got := TruncateRunes("hello", 2); got != "he…" {
		t.Fatalf("unexpected: %q", got)
	}
	if got := TruncateRunes("hello", 0); got != "" {
		t.Fatalf("unexpected: %q", got)
	}
}
