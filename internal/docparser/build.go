package docparser

import (
	"github.com/book-expert/logger"

	"github.com/book-expert/ocr-parser-service/internal/command"
	"github.com/book-expert/ocr-parser-service/internal/dpi"
	"github.com/book-expert/ocr-parser-service/internal/ocrengine"
	"github.com/book-expert/ocr-parser-service/internal/ocrparams"
	"github.com/book-expert/ocr-parser-service/internal/textstate"
)

// NewDefaultParser wires a Parser to the production collaborators: the text
// layer is read in process first and through poppler second, image DPI comes
// from file metadata, and OCR runs through ocrmypdf. The engine is returned so
// callers can check that its binary is installed.
func NewDefaultParser(
	opts Options,
	cfg ocrparams.Config,
	engineOpts ocrengine.Options,
	rounding dpi.Rounding,
	log *logger.Logger,
) (*Parser, *ocrengine.OCRmyPDF) {
	executor := command.NewExecutor()

	reader := textstate.NewChainReader(
		textstate.NewLayerReader(),
		textstate.NewPopplerReader(executor),
	)
	engine := ocrengine.New(engineOpts, executor, log)
	resolver := dpi.NewResolver(dpi.NewFileProber(), cfg.ImageDPI, rounding)

	return NewParser(opts, cfg, textstate.NewInspector(reader), resolver, engine, log), engine
}
