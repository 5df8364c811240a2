// Package textnorm normalizes whitespace in extracted document text.
package textnorm

import (
	"regexp"
	"strings"
)

var horizontalSpace = regexp.MustCompile(`[ \t]+`)

// Normalize collapses runs of spaces and tabs within every line to a single
// space and trims each line. Line breaks and all other characters, non-ASCII
// included, are preserved. CRLF and CR line endings become LF, and blank
// lines at the start and end of the text are dropped. Normalize is
// idempotent.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for index, line := range lines {
		lines[index] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}

	return strings.Trim(strings.Join(lines, "\n"), "\n")
}
