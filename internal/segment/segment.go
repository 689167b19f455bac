// Package segment splits normalized text into bounded-length chunks at
// sentence boundaries. Each chunk is small enough to hand to the remote
// synthesis service in a single call.
package segment

import (
	"strings"
	"unicode/utf8"
)

// Split breaks text into segments of at most maxChars characters. The bound
// counts runes, not bytes, so multi-byte text is never cut mid-character.
//
// Sentences are accumulated greedily into the current segment, joined by a
// single space. A sentence that would overflow the bound starts a new
// segment; a sentence that exceeds the bound even on its own is hard-split
// into consecutive maxChars-rune pieces (whitespace-only pieces dropped).
// Segment order follows text order, so joining the segments with single
// spaces reconstructs the input up to whitespace trimmed at hard-split
// points.
//
// Empty text or a non-positive bound yields nil.
func Split(text string, maxChars int) []string {
	if text == "" || maxChars <= 0 {
		return nil
	}

	var parts []string
	cur := ""
	for _, sentence := range sentences(text) {
		sentLen := utf8.RuneCountInString(sentence)
		if utf8.RuneCountInString(cur)+sentLen+1 > maxChars {
			if cur != "" {
				parts = append(parts, strings.TrimSpace(cur))
			}
			if sentLen > maxChars {
				runes := []rune(sentence)
				for i := 0; i < len(runes); i += maxChars {
					end := i + maxChars
					if end > len(runes) {
						end = len(runes)
					}
					if piece := strings.TrimSpace(string(runes[i:end])); piece != "" {
						parts = append(parts, piece)
					}
				}
				cur = ""
			} else {
				cur = sentence
			}
		} else {
			cur = strings.TrimSpace(cur + " " + sentence)
		}
	}
	if cur != "" {
		parts = append(parts, cur)
	}
	return parts
}

// sentences splits text after any of ". ! ?" followed by whitespace. The
// delimiting whitespace is consumed. Text without terminal punctuation comes
// back as a single sentence.
func sentences(text string) []string {
	var out []string
	start := 0
	i := 0
	for i < len(text) {
		c := text[i]
		if (c == '.' || c == '!' || c == '?') && i+1 < len(text) && isSpace(text[i+1]) {
			out = append(out, text[start:i+1])
			j := i + 1
			for j < len(text) && isSpace(text[j]) {
				j++
			}
			start = j
			i = j
			continue
		}
		i++
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
