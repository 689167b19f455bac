// Package textnorm cleans raw text extracted from PDF pages into a single
// flat string suitable for sentence segmentation. Extraction output tends to
// carry layout noise: words hyphenated across line breaks, hard-wrapped
// lines, and runs of repeated whitespace.
package textnorm

import (
	"regexp"
	"strings"
)

var (
	// A word broken across a line by a trailing hyphen is rejoined. Only a
	// hyphen directly between word characters and a newline counts; an
	// isolated dash at end of line is left alone. Word characters are
	// Unicode letters and digits, not just ASCII.
	hyphenBreak = regexp.MustCompile(`([\p{L}\p{N}_]+)-\n([\p{L}\p{N}_]+)`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Normalize flattens raw extracted text: hyphen-broken words are rejoined,
// every run of whitespace (line breaks included) collapses to a single
// space, and the result is trimmed. Empty input yields an empty string.
// Normalize is idempotent.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	s := hyphenBreak.ReplaceAllString(raw, "$1$2")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
