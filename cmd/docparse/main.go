// Command docparse parses every supported document of a directory into
// text, a diagnostic sidecar and a searchable PDF archive.
//
// Usage: docparse -input DIR -output DIR [-mode M] [-pages N] [-lang L] [-workers N]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"

	"github.com/book-expert/ocr-parser-service/internal/batch"
	"github.com/book-expert/ocr-parser-service/internal/config"
	"github.com/book-expert/ocr-parser-service/internal/docparser"
	"github.com/book-expert/ocr-parser-service/internal/dpi"
	"github.com/book-expert/ocr-parser-service/internal/ocrengine"
	"github.com/book-expert/ocr-parser-service/internal/ocrparams"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := run(ctx, os.Args[1:])

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main logic function, separated from main to allow for easier
// testing and clean exit handling.
func run(ctx context.Context, args []string) error {
	flgs, parseErr := parseFlags(args)
	if parseErr != nil {
		return parseErr
	}

	projectRoot, configPath, err := configurator.FindProjectRoot(".")
	if err != nil {
		return fmt.Errorf("could not find project root: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	options, err := mergeConfigAndFlags(cfg, flgs)
	if err != nil {
		return err
	}

	return processWithLogger(ctx, options, projectRoot)
}

// flags represents the command-line arguments.
type flags struct {
	inputPath  string
	outputPath string
	mode       string
	language   string
	pages      int
	workers    int
}

// parseFlags defines and parses command-line flags.
func parseFlags(args []string) (flags, error) {
	var flagsVar flags

	flagSet := flag.NewFlagSet("docparse", flag.ContinueOnError)
	flagSet.StringVar(&flagsVar.inputPath, "input", "", "Input directory of documents (required).")
	flagSet.StringVar(&flagsVar.outputPath, "output", "", "Output directory for parse results (required).")
	flagSet.StringVar(&flagsVar.mode, "mode", "", "OCR mode: skip, skip_noarchive, redo or force.")
	flagSet.StringVar(&flagsVar.language, "lang", "", "OCR language(s), e.g. eng+deu.")
	flagSet.IntVar(&flagsVar.pages, "pages", -1, "Limit OCR to the first N pages; 0 means all pages.")
	flagSet.IntVar(&flagsVar.workers, "workers", 0, "Number of documents parsed concurrently.")

	if err := flagSet.Parse(args); err != nil {
		return flags{}, fmt.Errorf("invalid arguments: %w", err)
	}

	return flagsVar, nil
}

// runOptions is everything needed to run one batch.
type runOptions struct {
	batch    batch.Options
	parser   docparser.Options
	ocr      ocrparams.Config
	engine   ocrengine.Options
	rounding dpi.Rounding
	logsDir  string
}

// mergeConfigAndFlags combines settings from the config file and command-line
// flags. Flags take precedence over the config file settings.
func mergeConfigAndFlags(cfg config.Config, flgs flags) (runOptions, error) {
	opts := runOptions{
		batch: batch.Options{
			ProgressBarOutput: nil,
			InputPath:         cfg.Paths.InputDir,
			OutputPath:        cfg.Paths.OutputDir,
			Workers:           cfg.Batch.Workers,
		},
		parser:   docparser.Options{WorkDir: cfg.Paths.WorkDir, ArchiveDir: cfg.Paths.ArchiveDir},
		ocr:      cfg.OCR,
		engine:   ocrengine.Options{Binary: cfg.Engine.Binary, Timeout: cfg.Engine.Timeout.Duration},
		rounding: cfg.Engine.DPIRounding,
		logsDir:  cfg.Paths.BaseLogsDir,
	}

	if flgs.inputPath != "" {
		opts.batch.InputPath = flgs.inputPath
	}

	if flgs.outputPath != "" {
		opts.batch.OutputPath = flgs.outputPath
	}

	if flgs.workers > 0 {
		opts.batch.Workers = flgs.workers
	}

	if flgs.mode != "" {
		mode, err := ocrparams.ParseMode(flgs.mode)
		if err != nil {
			return runOptions{}, err
		}

		opts.ocr.Mode = mode
	}

	if flgs.language != "" {
		opts.ocr.Language = flgs.language
	}

	if flgs.pages >= 0 {
		opts.ocr.PageLimit = flgs.pages
	}

	return opts, nil
}

// processWithLogger sets up the logger and runs the batch.
func processWithLogger(ctx context.Context, opts runOptions, projectRoot string) error {
	log, err := setupLogger(projectRoot, opts.logsDir)
	if err != nil {
		return fmt.Errorf("could not set up logger: %w", err)
	}

	defer func() {
		cerr := log.Close()
		if cerr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to close logger: %v\n", cerr)
		}
	}()

	parser, engine := docparser.NewDefaultParser(
		opts.parser,
		opts.ocr,
		opts.engine,
		opts.rounding,
		log,
	)

	if binaryErr := engine.EnsureBinary(); binaryErr != nil {
		return binaryErr
	}

	processor := batch.NewProcessor(&opts.batch, parser, log)

	summary, procErr := processor.Process(ctx)
	if procErr != nil {
		return fmt.Errorf("document processing failed: %w", procErr)
	}

	log.Info("Parsed %d document(s), %d failed.", summary.Parsed, summary.Failed)

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d document(s) failed", summary.Failed, summary.Parsed+summary.Failed)
	}

	return nil
}

// setupLogger initializes the logger, creating the log directory if needed.
func setupLogger(projectRoot, logDirConfig string) (*logger.Logger, error) {
	logDir := logDirConfig
	if logDir == "" {
		logDir = filepath.Join(projectRoot, "logs", "docparse")
	}

	logFileName := fmt.Sprintf("log_%s.log", time.Now().Format("20060102_150405"))

	log, err := logger.New(logDir, logFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}
