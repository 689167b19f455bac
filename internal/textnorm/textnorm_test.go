package textnorm

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "hello world", "hello world"},
		{"hyphen break", "news-\npaper", "newspaper"},
		{"hyphen break mid sentence", "the news-\npaper arrived", "the newspaper arrived"},
		{"hyphen break with accents", "café-\nau lait", "caféau lait"},
		{"hyphen break non-latin word", "Straßen-\nbahn fährt", "Straßenbahn fährt"},
		{"single newline becomes space", "line one\nline two", "line one line two"},
		{"paragraph break collapses", "para one\n\npara two", "para one para two"},
		{"whitespace runs", "a  b\t\tc   d", "a b c d"},
		{"leading and trailing", "  padded text \n", "padded text"},
		{"dash not followed by newline kept", "well-known phrase", "well-known phrase"},
		{"lone dash at line end kept", "odd -\nstart", "odd - start"},
		{"mixed noise", "The quick-\nbrown fox\njumps  over\n\nthe lazy dog.\n", "The quickbrown fox jumps over the lazy dog."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.in)
			if got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"news-\npaper",
		"a  b\nc\n\nd\te",
		"  trailing and leading  ",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}
