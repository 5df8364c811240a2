// Package docparser turns scanned or digital documents into searchable text
// and a normalized PDF archive.
//
// A parse inspects the text layer of PDFs, resolves the DPI of raster images,
// and then drives ocrmypdf through at most two attempts: the first with the
// configured feature set, the second a safe fallback that forces OCR with every
// aggressive option stripped. The configured mode decides whether the archive
// of the successful attempt is kept.
package docparser

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/ocr-parser-service/internal/dpi"
	"github.com/book-expert/ocr-parser-service/internal/ocrengine"
	"github.com/book-expert/ocr-parser-service/internal/ocrparams"
	"github.com/book-expert/ocr-parser-service/internal/textstate"
)

const mimePDF = "application/pdf"

var supportedTypes = map[string]struct{}{
	mimePDF:          {},
	"image/png":      {},
	"image/jpeg":     {},
	"image/tiff":     {},
	"image/bmp":      {},
	"image/x-ms-bmp": {},
	"image/gif":      {},
	"image/webp":     {},
}

// Engine runs one OCR attempt.
type Engine interface {
	Run(ctx context.Context, params ocrparams.Parameters) (ocrengine.Output, error)
}

// Inspector classifies the text layer of a document.
type Inspector interface {
	Inspect(ctx context.Context, path, mimeType string) (textstate.Classification, error)
}

// DPIResolver resolves the DPI of raster images.
type DPIResolver interface {
	Resolve(path string) (dpi.Resolution, error)
}

// Options holds the filesystem locations used by a Parser.
type Options struct {
	// WorkDir is where per-parse workspaces are created.
	WorkDir string
	// ArchiveDir receives retained archives unless a Source names its own.
	ArchiveDir string
}

// Source is one document to parse.
type Source struct {
	Path     string
	MimeType string
	// ArchiveDir overrides Options.ArchiveDir for this document.
	ArchiveDir string
}

// Result is the outcome of a successful parse.
type Result struct {
	Text string
	// ArchivePath is empty when no archive was produced or it was discarded.
	ArchivePath string
	// Sidecar is the engine's raw text plus annotations of skipped pages.
	Sidecar string
	// Attempts is the number of engine invocations, 0 when OCR was not needed.
	Attempts int
	// Parameters are those of the successful attempt, nil without attempts.
	Parameters *ocrparams.Parameters
	State      textstate.Kind
	// DPI is the resolution handed to the engine for raster images.
	DPI int
}

// Parser parses documents. It holds no mutable state, so concurrent Parse
// calls are safe.
type Parser struct {
	config    Options
	ocr       ocrparams.Config
	inspector Inspector
	resolver  DPIResolver
	engine    Engine
	log       *logger.Logger
}

// NewParser creates a Parser.
func NewParser(
	opts Options,
	cfg ocrparams.Config,
	inspector Inspector,
	resolver DPIResolver,
	engine Engine,
	log *logger.Logger,
) *Parser {
	applyDefaultOptions(&opts)

	return &Parser{
		config:    opts,
		ocr:       cfg,
		inspector: inspector,
		resolver:  resolver,
		engine:    engine,
		log:       log,
	}
}

func applyDefaultOptions(opts *Options) {
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}

	if opts.ArchiveDir == "" {
		opts.ArchiveDir = filepath.Join(os.TempDir(), "docparse-archives")
	}
}

// WithConfig returns a copy of the parser using cfg for OCR.
func (parser *Parser) WithConfig(cfg ocrparams.Config) *Parser {
	clone := *parser
	clone.ocr = cfg

	return &clone
}

// ParseWithConfig parses src with cfg in place of the parser's OCR configuration.
func (parser *Parser) ParseWithConfig(ctx context.Context, cfg ocrparams.Config, src Source) (Result, error) {
	return parser.WithConfig(cfg).Parse(ctx, src)
}

// Config returns the OCR configuration of the parser.
func (parser *Parser) Config() ocrparams.Config {
	return parser.ocr
}

// ArchiveDir returns the default archive directory.
func (parser *Parser) ArchiveDir() string {
	return parser.config.ArchiveDir
}

// Supported reports whether mimeType can be parsed.
func Supported(mimeType string) bool {
	_, ok := supportedTypes[baseMediaType(mimeType)]

	return ok
}

// Parse parses one document.
func (parser *Parser) Parse(ctx context.Context, src Source) (Result, error) {
	validateErr := parser.ocr.Validate()
	if validateErr != nil {
		return Result{}, fmt.Errorf("invalid ocr configuration: %w", validateErr)
	}

	mediaType := baseMediaType(src.MimeType)
	if _, ok := supportedTypes[mediaType]; !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedSource, src.MimeType)
	}

	src.MimeType = mediaType

	job := &parseJob{
		parser:    parser,
		src:       src,
		workspace: nil,
		state:     textstate.Classification{},
		input:     src.Path,
		imageDPI:  0,
	}
	defer job.release()

	return job.run(ctx)
}

func baseMediaType(mimeType string) string {
	mediaType, _, parseErr := mime.ParseMediaType(mimeType)
	if parseErr != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}

	return mediaType
}
