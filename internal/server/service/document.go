// Package service adapts uploaded files to the document parser.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/ocr-parser-service/internal/docparser"
	"github.com/book-expert/ocr-parser-service/internal/ocrparams"
)

// ErrInvalidOverride is returned when a request override cannot be applied.
var ErrInvalidOverride = errors.New("invalid request override")

// Parser defines the parsing dependency.
type Parser interface {
	Config() ocrparams.Config
	ParseWithConfig(ctx context.Context, cfg ocrparams.Config, src docparser.Source) (docparser.Result, error)
}

// Overrides are optional per-request replacements of the OCR configuration.
// Empty fields keep the configured value.
type Overrides struct {
	Mode     string
	Language string
	Pages    string
}

// DocumentService persists uploads and parses them.
type DocumentService struct {
	parser  Parser
	workDir string
	log     *logger.Logger
}

// NewDocumentService creates a DocumentService. Uploads are staged in workDir,
// the system temp directory when empty.
func NewDocumentService(parser Parser, workDir string, log *logger.Logger) *DocumentService {
	return &DocumentService{parser: parser, workDir: workDir, log: log}
}

// Parse persists the uploaded file and parses it.
func (s *DocumentService) Parse(
	ctx context.Context,
	file io.Reader,
	header *multipart.FileHeader,
	overrides Overrides,
) (docparser.Result, error) {
	cfg, overrideErr := ApplyOverrides(s.parser.Config(), overrides)
	if overrideErr != nil {
		return docparser.Result{}, overrideErr
	}

	mimeType := DetectMimeType(header)
	if !docparser.Supported(mimeType) {
		return docparser.Result{}, fmt.Errorf(
			"%w: %s (%q)",
			docparser.ErrUnsupportedSource,
			header.Filename,
			mimeType,
		)
	}

	tempPath, cleanup, saveErr := SaveUploadedFile(file, s.workDir, filepath.Ext(header.Filename))
	if saveErr != nil {
		return docparser.Result{}, fmt.Errorf("persist upload (%s): %w", header.Filename, saveErr)
	}
	defer cleanup()

	s.log.Info("Parsing upload %s (%s, mode %s)", header.Filename, mimeType, cfg.Mode)

	return s.parser.ParseWithConfig(ctx, cfg, docparser.Source{
		Path:       tempPath,
		MimeType:   mimeType,
		ArchiveDir: "",
	})
}

// ApplyOverrides returns cfg with the non-empty overrides applied.
func ApplyOverrides(cfg ocrparams.Config, overrides Overrides) (ocrparams.Config, error) {
	if overrides.Mode != "" {
		mode, parseErr := ocrparams.ParseMode(overrides.Mode)
		if parseErr != nil {
			return cfg, fmt.Errorf("%w: %w", ErrInvalidOverride, parseErr)
		}

		cfg.Mode = mode
	}

	if language := strings.TrimSpace(overrides.Language); language != "" {
		cfg.Language = language
	}

	if overrides.Pages != "" {
		pages, atoiErr := strconv.Atoi(strings.TrimSpace(overrides.Pages))
		if atoiErr != nil || pages < 0 {
			return cfg, fmt.Errorf("%w: pages %q", ErrInvalidOverride, overrides.Pages)
		}

		cfg.PageLimit = pages
	}

	return cfg, nil
}

// DetectMimeType derives the type from the file name, falling back to the
// Content-Type of the part.
func DetectMimeType(header *multipart.FileHeader) string {
	if mimeType := docparser.MimeTypeForPath(header.Filename); mimeType != "" {
		return mimeType
	}

	return header.Header.Get("Content-Type")
}

// SaveUploadedFile writes r to a temporary file keeping ext, and returns its
// path with a cleanup function.
func SaveUploadedFile(r io.Reader, dir, ext string) (string, func(), error) {
	tmpFile, createErr := os.CreateTemp(dir, "upload-*"+strings.ToLower(ext))
	if createErr != nil {
		return "", nil, fmt.Errorf("create temp file: %w", createErr)
	}

	cleanup := func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
	}

	_, copyErr := io.Copy(tmpFile, r)
	if copyErr != nil {
		cleanup()

		return "", nil, fmt.Errorf("write temp file: %w", copyErr)
	}

	closeErr := tmpFile.Close()
	if closeErr != nil {
		cleanup()

		return "", nil, fmt.Errorf("close temp file: %w", closeErr)
	}

	return tmpFile.Name(), cleanup, nil
}
