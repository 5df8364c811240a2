// Package textstate classifies documents by the text layer they already carry.
//
// A page is textual as soon as it holds any extractable, non-whitespace
// character. The document is then fully textual, image-only, or mixed, and
// that classification decides whether the skip-family OCR modes can avoid an
// OCR pass entirely or must restrict it to the pages lacking text.
package textstate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Kind is the overall text classification of a document.
type Kind int

const (
	// NoText marks documents without any extractable text (scans, images).
	NoText Kind = iota
	// FullText marks documents where every page carries text.
	FullText
	// MixedText marks documents where only some pages carry text.
	MixedText
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case NoText:
		return "no_text"
	case FullText:
		return "full_text"
	case MixedText:
		return "mixed_text"
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

var (
	// ErrNoPages is returned when a PDF reports zero pages.
	ErrNoPages = errors.New("pdf has zero pages")
	// ErrPathRequired is returned when an empty path is inspected.
	ErrPathRequired = errors.New("document path is required")
)

// Classification is the immutable result of inspecting a document.
type Classification struct {
	// pages holds the original text layer, index 0 being page 1.
	pages []string
	// PageCount is the number of pages, 0 when unknown (raster images).
	PageCount int
	Kind      Kind
}

// Classify builds a Classification from per-page text.
func Classify(pages []string) Classification {
	copied := make([]string, len(pages))
	copy(copied, pages)

	withText := 0

	for _, page := range copied {
		if hasText(page) {
			withText++
		}
	}

	kind := MixedText

	switch withText {
	case 0:
		kind = NoText
	case len(copied):
		kind = FullText
	}

	return Classification{
		pages:     copied,
		PageCount: len(copied),
		Kind:      kind,
	}
}

// Unknown returns the classification used for sources without a text layer
// whose page count cannot be determined up front, such as raster images.
func Unknown() Classification {
	return Classification{pages: nil, PageCount: 0, Kind: NoText}
}

// PageHasText reports whether page (1-based) carries text.
func (c Classification) PageHasText(page int) bool {
	return hasText(c.PageText(page))
}

// PageText returns the original text of page (1-based), "" when out of range.
func (c Classification) PageText(page int) string {
	if page < 1 || page > len(c.pages) {
		return ""
	}

	return c.pages[page-1]
}

// TextlessPages lists the 1-based pages that carry no text.
func (c Classification) TextlessPages() []int {
	var textless []int

	for index, page := range c.pages {
		if !hasText(page) {
			textless = append(textless, index+1)
		}
	}

	return textless
}

// HasText reports whether any page carries text.
func (c Classification) HasText() bool {
	return c.Kind != NoText
}

// Text joins the original text layer of every page.
func (c Classification) Text() string {
	return strings.Join(c.pages, "\n")
}

func hasText(page string) bool {
	return strings.IndexFunc(page, func(r rune) bool { return !unicode.IsSpace(r) }) >= 0
}

// Reader extracts the text layer of a PDF page by page.
type Reader interface {
	PageTexts(ctx context.Context, pdfPath string) ([]string, error)
}

// Inspector classifies documents using a Reader for PDFs.
type Inspector struct {
	reader Reader
}

// NewInspector creates an Inspector backed by reader.
func NewInspector(reader Reader) *Inspector {
	return &Inspector{reader: reader}
}

// Inspect classifies the document at path. Only PDFs can carry a text layer;
// every other MIME type is treated as text-free with an unknown page count.
func (inspector *Inspector) Inspect(
	ctx context.Context,
	path, mimeType string,
) (Classification, error) {
	if path == "" {
		return Classification{}, ErrPathRequired
	}

	if mimeType != "application/pdf" {
		return Unknown(), nil
	}

	pages, readErr := inspector.reader.PageTexts(ctx, path)
	if readErr != nil {
		return Classification{}, fmt.Errorf("could not read text layer of %s: %w", path, readErr)
	}

	if len(pages) == 0 {
		return Classification{}, ErrNoPages
	}

	return Classify(pages), nil
}
