package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/book-expert/ocr-parser-service/internal/docparser"
)

const (
	// defaultDirMode is the default permissions for created directories.
	defaultDirMode  = 0o750
	defaultFileMode = 0o644

	textFileName    = "text.txt"
	sidecarFileName = "sidecar.txt"
)

// Document is a file discovered for parsing.
type Document struct {
	Path     string
	MimeType string
}

// DiscoverDocuments finds every supported document in a directory.
// Extensions match case-insensitively and subdirectories are not searched.
func DiscoverDocuments(dirPath string) ([]Document, error) {
	dirEntries, readErr := os.ReadDir(dirPath)
	if readErr != nil {
		return nil, fmt.Errorf(
			"could not read directory %s: %w",
			dirPath,
			readErr,
		)
	}

	var documents []Document

	for _, entry := range dirEntries {
		if entry.IsDir() {
			continue
		}

		mimeType := docparser.MimeTypeForPath(entry.Name())
		if mimeType == "" {
			continue
		}

		documents = append(documents, Document{
			Path:     filepath.Join(dirPath, entry.Name()),
			MimeType: mimeType,
		})
	}

	return documents, nil
}

// setupOutputDirectory creates the output folder of one document.
// For a document named 'mydoc.pdf', it creates '<baseOutputPath>/mydoc_pdf/',
// so 'mydoc.png' in the same input directory gets a folder of its own.
func setupOutputDirectory(baseOutputPath, documentPath string) (string, error) {
	outputDir := filepath.Join(baseOutputPath, outputDirName(documentPath))

	mkdirErr := os.MkdirAll(outputDir, defaultDirMode)
	if mkdirErr != nil {
		return "", fmt.Errorf(
			"failed to create output directory %s: %w",
			outputDir,
			mkdirErr,
		)
	}

	return outputDir, nil
}

func outputDirName(documentPath string) string {
	base := filepath.Base(documentPath)
	ext := filepath.Ext(base)

	return strings.TrimSuffix(base, ext) + "_" + strings.TrimPrefix(ext, ".")
}

// writeResult stores the text and, when present, the sidecar of a parse.
func writeResult(outputDir string, result docparser.Result) error {
	textErr := os.WriteFile(filepath.Join(outputDir, textFileName), []byte(result.Text), defaultFileMode)
	if textErr != nil {
		return fmt.Errorf("failed to write text: %w", textErr)
	}

	if result.Sidecar == "" {
		return nil
	}

	sidecarErr := os.WriteFile(
		filepath.Join(outputDir, sidecarFileName),
		[]byte(result.Sidecar),
		defaultFileMode,
	)
	if sidecarErr != nil {
		return fmt.Errorf("failed to write sidecar: %w", sidecarErr)
	}

	return nil
}
