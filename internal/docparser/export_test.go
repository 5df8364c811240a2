package docparser

import (
	"github.com/book-expert/ocr-parser-service/internal/ocrparams"
	"github.com/book-expert/ocr-parser-service/internal/textstate"
)

// MergePagesForTest exposes mergePages for tests, returning the full and the
// recognized text.
func MergePagesForTest(
	state textstate.Classification,
	plan ocrparams.PagePlan,
	sidecar string,
	unionOriginal bool,
) (string, string) {
	merged := mergePages(state, plan, sidecar, unionOriginal)

	return merged.full, merged.recognized
}

// DiagnosticSidecarForTest exposes diagnosticSidecar for tests.
func DiagnosticSidecarForTest(sidecar string, skipped []int) string {
	return diagnosticSidecar(sidecar, skipped)
}

// StripSkipMarkersForTest exposes stripSkipMarkers for tests.
func StripSkipMarkersForTest(text string) string { return stripSkipMarkers(text) }
