package textstate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/book-expert/ocr-parser-service/internal/command"
)

// ErrAllReadersFailed is returned by ChainReader when no reader succeeded.
var ErrAllReadersFailed = errors.New("no reader could extract the text layer")

// LayerReader extracts the text layer in process with github.com/ledongthuc/pdf.
type LayerReader struct{}

// NewLayerReader creates a LayerReader.
func NewLayerReader() *LayerReader {
	return &LayerReader{}
}

// PageTexts returns the plain text of every page. The library panics on some
// malformed files, so panics are turned into errors.
func (reader *LayerReader) PageTexts(ctx context.Context, pdfPath string) (pages []string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			pages = nil
			err = fmt.Errorf("pdf library crashed on %s: %v", pdfPath, recovered)
		}
	}()

	file, pdfReader, openErr := pdf.Open(pdfPath)
	if openErr != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", openErr)
	}
	defer file.Close()

	numPages := pdfReader.NumPage()
	pages = make([]string, 0, numPages)

	for index := 1; index <= numPages; index++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("text layer extraction interrupted: %w", ctxErr)
		}

		pages = append(pages, pagePlainText(pdfReader.Page(index)))
	}

	return pages, nil
}

func pagePlainText(page pdf.Page) string {
	if page.V.IsNull() {
		return ""
	}

	fonts := make(map[string]*pdf.Font)

	for _, name := range page.Fonts() {
		font := page.Font(name)
		fonts[name] = &font
	}

	text, textErr := page.GetPlainText(fonts)
	if textErr != nil {
		return ""
	}

	return text
}

// PopplerReader extracts the text layer with the poppler command line tools:
// pdfinfo for the page count, then pdftotext once per page.
type PopplerReader struct {
	executor command.Executor
}

// NewPopplerReader creates a PopplerReader running binaries through executor.
func NewPopplerReader(executor command.Executor) *PopplerReader {
	return &PopplerReader{executor: executor}
}

// PageTexts returns the text of every page as rendered by pdftotext.
func (reader *PopplerReader) PageTexts(ctx context.Context, pdfPath string) ([]string, error) {
	pageCount, countErr := reader.pageCount(ctx, pdfPath)
	if countErr != nil {
		return nil, countErr
	}

	if pageCount <= 0 {
		return nil, ErrNoPages
	}

	pages := make([]string, 0, pageCount)

	for page := 1; page <= pageCount; page++ {
		pageArg := strconv.Itoa(page)

		outputBytes, execErr := reader.executor.Run(
			ctx,
			"pdftotext",
			"-q", "-layout", "-enc", "UTF-8",
			"-f", pageArg, "-l", pageArg,
			pdfPath, "-",
		)
		if execErr != nil {
			return nil, fmt.Errorf("pdftotext failed on page %d: %w", page, execErr)
		}

		pages = append(pages, strings.TrimRight(string(outputBytes), "\f"))
	}

	return pages, nil
}

// pageCount executes the `pdfinfo` command to determine the number of pages in a PDF.
func (reader *PopplerReader) pageCount(ctx context.Context, pdfPath string) (int, error) {
	if pdfPath == "" {
		return 0, ErrPathRequired
	}

	outputBytes, execErr := reader.executor.Run(ctx, "pdfinfo", pdfPath)
	if execErr != nil {
		return 0, fmt.Errorf(
			"pdfinfo execution failed: %w. Output: %s",
			execErr,
			string(outputBytes),
		)
	}

	return parsePdfInfoOutput(string(outputBytes))
}

// parsePdfInfoOutput scans the text output from the `pdfinfo` command to find and parse
// the page count.
func parsePdfInfoOutput(output string) (int, error) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "Pages:") {
			parts := strings.Fields(line)
			if len(parts) >= 2 {
				pageCount, convErr := strconv.Atoi(parts[1])
				if convErr == nil {
					return pageCount, nil
				}
			}
		}
	}

	return 0, errors.New("could not parse 'Pages:' line from pdfinfo output")
}

// ChainReader tries readers in order and returns the first successful result.
type ChainReader struct {
	readers []Reader
}

// NewChainReader creates a ChainReader over readers.
func NewChainReader(readers ...Reader) *ChainReader {
	return &ChainReader{readers: readers}
}

// PageTexts implements Reader.
func (chain *ChainReader) PageTexts(ctx context.Context, pdfPath string) ([]string, error) {
	failures := make([]error, 0, len(chain.readers))

	for _, reader := range chain.readers {
		pages, readErr := reader.PageTexts(ctx, pdfPath)
		if readErr == nil {
			return pages, nil
		}

		failures = append(failures, readErr)
	}

	return nil, fmt.Errorf("%w: %w", ErrAllReadersFailed, errors.Join(failures...))
}
