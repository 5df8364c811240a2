package ocrengine

import "strings"

// SplitPages splits sidecar text into page-aligned chunks. Index 0 is page 1;
// pages without text stay in place as empty strings.
func SplitPages(sidecar string) []string {
	if sidecar == "" {
		return nil
	}

	chunks := strings.Split(normalizeNewlines(sidecar), "\f")

	// The tool terminates every page with a form feed.
	if last := len(chunks) - 1; last > 0 && strings.TrimSpace(chunks[last]) == "" {
		chunks = chunks[:last]
	}

	return chunks
}

func normalizeNewlines(in string) string {
	return strings.ReplaceAll(in, "\r\n", "\n")
}
