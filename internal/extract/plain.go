package extract

import (
	"strings"
	"unicode/utf8"
)

// CleanText turns raw OCR output into a single searchable string: invalid UTF-8 is
// replaced, form feeds and blank lines are dropped, and runs of spaces collapse.
func CleanText(content []byte) string {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "�"))
	}
	lines := strings.Split(strings.ReplaceAll(string(content), "\f", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
