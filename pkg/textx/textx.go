// Package textx provides small text utilities used across the project.
package textx

import (
	"regexp"
	"strings"
)

var (
	manyNewlines = regexp.MustCompile(`\n{3,}`)
	manySpaces   = regexp.MustCompile(` {3,}`)
)

// SanitizeText removes control characters except tab/newline/CR and trims spaces.
func SanitizeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// CleanExtractedText normalizes OCR output: anything outside printable ASCII
// and newline is dropped, runs of 3+ newlines become 2 and runs of 3+ spaces
// become 1.
func CleanExtractedText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || (r >= 0x20 && r <= 0x7e) {
			b.WriteRune(r)
		}
	}
	out := manyNewlines.ReplaceAllString(b.String(), "\n\n")
	out = manySpaces.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
