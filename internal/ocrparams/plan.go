package ocrparams

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/book-expert/ocr-parser-service/internal/textstate"
)

// PagePlan lists which pages an attempt recognizes and which it leaves alone.
type PagePlan struct {
	// OCR holds the 1-based pages to recognize when the page count is known.
	OCR []int
	// Skipped holds the pages left as they are, beyond the limit or already textual.
	Skipped []int
	// All is set when every page is recognized and no page range is passed.
	All bool
	// Limit bounds a document of unknown length; 0 means unbounded.
	Limit int
	// Truncated is set when the page limit excluded pages of the document.
	Truncated bool
}

// NeedsOCR reports whether the plan recognizes at least one page.
func (plan PagePlan) NeedsOCR() bool {
	return plan.All || len(plan.OCR) > 0
}

// Range renders the page selection passed to the engine, "" for every page.
func (plan PagePlan) Range() string {
	if plan.All {
		if plan.Limit > 0 {
			return "1-" + strconv.Itoa(plan.Limit)
		}

		return ""
	}

	return FormatRanges(plan.OCR)
}

// PlanPages decides which pages an attempt recognizes. Pages beyond the page
// limit are never recognized. Outside of a safe fallback the skip family also
// leaves pages that already carry text untouched.
func PlanPages(cfg Config, state textstate.Classification, safeFallback bool) PagePlan {
	limit := max(cfg.PageLimit, 0)

	if state.PageCount <= 0 {
		return PagePlan{OCR: nil, Skipped: nil, All: true, Limit: limit, Truncated: false}
	}

	eligible := state.PageCount
	if limit > 0 && limit < eligible {
		eligible = limit
	}

	keepText := cfg.Mode.SkipFamily() && !safeFallback

	var ocrPages, skipped []int

	for page := 1; page <= state.PageCount; page++ {
		switch {
		case page > eligible:
			skipped = append(skipped, page)
		case keepText && state.PageHasText(page):
			skipped = append(skipped, page)
		default:
			ocrPages = append(ocrPages, page)
		}
	}

	return PagePlan{
		OCR:       ocrPages,
		Skipped:   skipped,
		All:       len(skipped) == 0,
		Limit:     0,
		Truncated: eligible < state.PageCount,
	}
}

// FormatRanges renders sorted 1-based pages as ranges, e.g. "1-3,5".
func FormatRanges(pages []int) string {
	ranges := pageRanges(pages)
	parts := make([]string, 0, len(ranges))

	for _, span := range ranges {
		parts = append(parts, span.String())
	}

	return strings.Join(parts, ",")
}

// Annotations returns one sidecar annotation per contiguous range of skipped pages.
func Annotations(skipped []int) []string {
	ranges := pageRanges(skipped)
	annotations := make([]string, 0, len(ranges))

	for _, span := range ranges {
		annotations = append(annotations, fmt.Sprintf("[OCR skipped on page(s) %s]", span))
	}

	return annotations
}

type pageRange struct {
	first int
	last  int
}

func (span pageRange) String() string {
	if span.first == span.last {
		return strconv.Itoa(span.first)
	}

	return strconv.Itoa(span.first) + "-" + strconv.Itoa(span.last)
}

func pageRanges(pages []int) []pageRange {
	var ranges []pageRange

	for _, page := range pages {
		if count := len(ranges); count > 0 && ranges[count-1].last+1 == page {
			ranges[count-1].last = page

			continue
		}

		ranges = append(ranges, pageRange{first: page, last: page})
	}

	return ranges
}

// KeepArchive decides whether the archive of a successful attempt is retained.
//
// A safe fallback reprocessed the whole document, so its archive is kept,
// except for skip_noarchive sources that already had text.
func KeepArchive(
	cfg Config,
	state textstate.Classification,
	plan PagePlan,
	safeFallback bool,
	ocrText string,
) bool {
	if safeFallback {
		return cfg.Mode != ModeSkipNoArchive || !state.HasText()
	}

	switch cfg.Mode {
	case ModeSkip:
		return strings.TrimSpace(ocrText) != "" || (plan.NeedsOCR() && len(plan.Skipped) > 0)
	case ModeSkipNoArchive:
		return !state.HasText()
	case ModeRedo:
		return state.Kind != textstate.FullText || !plan.Truncated
	case ModeForce:
		return true
	}

	return false
}
