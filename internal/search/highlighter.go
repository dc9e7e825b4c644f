package search

import (
	"strings"
	"unicode/utf8"
)

// Snippet returns up to maxLen runes of text centred on the first case-insensitive match
// of query (or of its first matching word). Without a match the start of the text is used.
// Cut ends are marked with "...". Whitespace runs are collapsed.
func Snippet(text, query string, maxLen int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if maxLen <= 0 || len(runes) <= maxLen {
		return text
	}
	pos, matchLen := findMatch(runes, query)
	start := 0
	if pos >= 0 {
		start = pos - (maxLen-matchLen)/2
		if start < 0 {
			start = 0
		}
	}
	end := start + maxLen
	if end > len(runes) {
		end = len(runes)
		start = max(0, end-maxLen)
	}
	out := strings.TrimSpace(string(runes[start:end]))
	if start > 0 {
		out = "..." + out
	}
	if end < len(runes) {
		out += "..."
	}
	return out
}

// findMatch returns the rune offset and rune length of the first match, or -1.
func findMatch(runes []rune, query string) (int, int) {
	lower := []rune(strings.ToLower(string(runes)))
	if len(lower) != len(runes) {
		// Lowercasing changed the rune count; fall back to the start.
		return -1, 0
	}
	candidates := append([]string{strings.TrimSpace(query)}, strings.Fields(query)...)
	for _, c := range candidates {
		c = strings.ToLower(c)
		if c == "" {
			continue
		}
		if i := strings.Index(string(lower), c); i >= 0 {
			return utf8.RuneCountInString(string(lower)[:i]), utf8.RuneCountInString(c)
		}
	}
	return -1, 0
}
