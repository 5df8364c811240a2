package docparser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/book-expert/ocr-parser-service/internal/ocrengine"
	"github.com/book-expert/ocr-parser-service/internal/ocrparams"
	"github.com/book-expert/ocr-parser-service/internal/textnorm"
	"github.com/book-expert/ocr-parser-service/internal/textstate"
)

var skipMarker = regexp.MustCompile(`^\[OCR skipped on page(?:\(s\)|s)? ([0-9, -]+)\]$`)

// mergedText is the text assembled after a successful attempt.
type mergedText struct {
	// full is the document text, every page in order.
	full string
	// recognized is the text of the pages the attempt recognized.
	recognized string
}

// mergePages combines the original text layer with the sidecar of an attempt.
// Recognized pages take the sidecar text; with unionOriginal set the original
// text of those pages is kept in front of it. Every other page keeps its
// original text.
func mergePages(
	state textstate.Classification,
	plan ocrparams.PagePlan,
	sidecar string,
	unionOriginal bool,
) mergedText {
	chunks := ocrengine.SplitPages(sidecar)

	if state.PageCount == 0 {
		recognized := stripSkipMarkers(strings.Join(chunks, "\n"))

		return mergedText{full: recognized, recognized: recognized}
	}

	pageChunk := alignChunks(chunks, plan, state.PageCount)
	recognizedPages := make(map[int]bool, len(plan.OCR))

	for _, page := range plan.OCR {
		recognizedPages[page] = true
	}

	full := make([]string, 0, state.PageCount)
	recognized := make([]string, 0, len(plan.OCR))

	for page := 1; page <= state.PageCount; page++ {
		original := state.PageText(page)

		if !recognizedPages[page] {
			full = append(full, original)

			continue
		}

		ocrText := stripSkipMarkers(pageChunk(page))
		recognized = append(recognized, ocrText)

		if unionOriginal {
			full = append(full, unionText(original, ocrText))
		} else {
			full = append(full, ocrText)
		}
	}

	return mergedText{
		full:       strings.Join(full, "\n"),
		recognized: strings.Join(recognized, "\n"),
	}
}

// alignChunks maps a page number to its sidecar chunk. The engine writes one
// chunk per recognized page and a single skip marker chunk for each run of
// pages it left alone, so a marker advances the page cursor past its run.
// A sidecar without markers that holds only the recognized pages is mapped
// onto them in order.
func alignChunks(chunks []string, plan ocrparams.PagePlan, pageCount int) func(page int) string {
	byPage := make(map[int]string, len(chunks))
	sawMarker := false
	page := 1

	for _, chunk := range chunks {
		count, last, isMarker := markerPages(chunk)
		if isMarker {
			sawMarker = true
			page = max(page+count, last+1)

			continue
		}

		byPage[page] = chunk
		page++
	}

	if !sawMarker && len(chunks) != pageCount && len(chunks) == len(plan.OCR) {
		clear(byPage)

		for index, ocrPage := range plan.OCR {
			byPage[ocrPage] = chunks[index]
		}
	}

	return func(page int) string { return byPage[page] }
}

// markerPages reports whether chunk is a skip marker, how many pages it covers
// and the last of them.
func markerPages(chunk string) (int, int, bool) {
	match := skipMarker.FindStringSubmatch(strings.TrimSpace(chunk))
	if match == nil {
		return 0, 0, false
	}

	count, last := 0, 0

	for _, part := range strings.Split(match[1], ",") {
		first, end, found := strings.Cut(strings.TrimSpace(part), "-")
		if !found {
			end = first
		}

		firstPage, firstErr := strconv.Atoi(strings.TrimSpace(first))
		lastPage, lastErr := strconv.Atoi(strings.TrimSpace(end))

		if firstErr != nil || lastErr != nil || lastPage < firstPage {
			continue
		}

		count += lastPage - firstPage + 1
		last = max(last, lastPage)
	}

	return max(count, 1), last, true
}

func unionText(original, recognized string) string {
	switch {
	case strings.TrimSpace(original) == "":
		return recognized
	case strings.TrimSpace(recognized) == "":
		return original
	case textnorm.Normalize(original) == textnorm.Normalize(recognized):
		return original
	}

	return original + "\n" + recognized
}

// stripSkipMarkers drops the annotation lines the engine writes for pages it
// did not recognize.
func stripSkipMarkers(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]

	for _, line := range lines {
		if skipMarker.MatchString(strings.TrimSpace(line)) {
			continue
		}

		kept = append(kept, line)
	}

	return strings.Join(kept, "\n")
}

// diagnosticSidecar returns the engine sidecar with an annotation for every
// skipped page range the engine did not report itself.
func diagnosticSidecar(sidecar string, skipped []int) string {
	lines := []string{}

	if trimmed := strings.TrimSpace(sidecar); trimmed != "" {
		lines = append(lines, trimmed)
	}

	for _, annotation := range ocrparams.Annotations(skipped) {
		if !strings.Contains(sidecar, annotation) {
			lines = append(lines, annotation)
		}
	}

	return strings.Join(lines, "\n")
}
