// Package batch parses every supported document of a directory.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/book-expert/logger"
	"github.com/cheggaaa/pb/v3"

	"github.com/book-expert/ocr-parser-service/internal/docparser"
)

var (
	// ErrInputPathRequired is returned when input path is not provided.
	ErrInputPathRequired = errors.New("input path is required")
	// ErrOutputPathRequired is returned when output path is not provided.
	ErrOutputPathRequired = errors.New("output path is required")
	// ErrNoDocuments is returned when the input directory holds nothing to parse.
	ErrNoDocuments = errors.New("no supported documents found")
)

// Parser parses one document.
type Parser interface {
	Parse(ctx context.Context, src docparser.Source) (docparser.Result, error)
}

// Options holds all configurable parameters for a Processor.
type Options struct {
	ProgressBarOutput io.Writer
	InputPath         string
	OutputPath        string
	// Workers is the number of documents parsed concurrently.
	Workers int
}

// Summary counts the outcome of a batch.
type Summary struct {
	Parsed int
	Failed int
}

// Processor parses a directory of documents with a pool of workers.
type Processor struct {
	parser Parser
	log    *logger.Logger
	config Options
}

// NewProcessor creates and initializes a new Processor with the given options,
// parser and logger. Zero-value options get defaults.
func NewProcessor(opts *Options, parser Parser, log *logger.Logger) *Processor {
	applyDefaultOptions(opts)

	return &Processor{
		parser: parser,
		log:    log,
		config: *opts,
	}
}

func applyDefaultOptions(opts *Options) {
	if opts.Workers <= 0 {
		opts.Workers = max(runtime.NumCPU()/2, 1)
	}

	if opts.ProgressBarOutput == nil {
		opts.ProgressBarOutput = os.Stdout
	}
}

// Process discovers the documents of the input directory and parses them.
// A document that fails is logged and counted; the batch goes on.
func (processor *Processor) Process(ctx context.Context) (Summary, error) {
	validateErr := processor.validateConfig()
	if validateErr != nil {
		return Summary{}, validateErr
	}

	documents, discoveryErr := processor.discoverInputDocuments()
	if discoveryErr != nil {
		return Summary{}, discoveryErr
	}

	processor.log.Info("Found %d document(s) to parse.", len(documents))

	return processor.processAll(ctx, documents), nil
}

func (processor *Processor) validateConfig() error {
	if processor.config.InputPath == "" {
		return ErrInputPathRequired
	}

	if processor.config.OutputPath == "" {
		return ErrOutputPathRequired
	}

	return nil
}

func (processor *Processor) discoverInputDocuments() ([]Document, error) {
	documents, discoveryErr := DiscoverDocuments(processor.config.InputPath)
	if discoveryErr != nil {
		return nil, fmt.Errorf("failed to discover documents: %w", discoveryErr)
	}

	if len(documents) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, processor.config.InputPath)
	}

	return documents, nil
}

// processAll distributes documents over the worker pool.
func (processor *Processor) processAll(ctx context.Context, documents []Document) Summary {
	jobs := make(chan Document, len(documents))

	progressBar := pb.New(len(documents)).
		SetTemplateString(`{{ bar . " " "━" "━" " " " "}} {{percent .}} {{rtime .}}`).
		SetWriter(processor.config.ProgressBarOutput).
		Start()
	defer progressBar.Finish()

	var (
		waitGroup sync.WaitGroup
		mu        sync.Mutex
		summary   Summary
	)

	record := func(parseErr error) {
		mu.Lock()
		defer mu.Unlock()

		if parseErr != nil {
			summary.Failed++
		} else {
			summary.Parsed++
		}

		progressBar.Increment()
	}

	for range processor.config.Workers {
		waitGroup.Add(1)

		go processor.worker(ctx, &waitGroup, jobs, record)
	}

	for _, document := range documents {
		jobs <- document
	}

	close(jobs)
	waitGroup.Wait()

	return summary
}

// worker pulls documents until the channel is drained.
func (processor *Processor) worker(
	ctx context.Context,
	waitGroup *sync.WaitGroup,
	jobs <-chan Document,
	record func(error),
) {
	defer waitGroup.Done()

	for document := range jobs {
		if ctx.Err() != nil {
			processor.log.Warn("Context canceled, skipping %s", filepath.Base(document.Path))
			record(ctx.Err())

			continue
		}

		processor.log.Info("Starting processing for: %s", filepath.Base(document.Path))

		processErr := processor.processOne(ctx, document)
		if processErr != nil {
			processor.log.Error("Failed to process %s: %v", filepath.Base(document.Path), processErr)
		} else {
			processor.log.Success("Successfully processed %s", filepath.Base(document.Path))
		}

		record(processErr)
	}
}

// processOne parses a single document into its own output directory.
func (processor *Processor) processOne(ctx context.Context, document Document) error {
	outputDir, setupErr := setupOutputDirectory(processor.config.OutputPath, document.Path)
	if setupErr != nil {
		return fmt.Errorf("could not set up output directory: %w", setupErr)
	}

	result, parseErr := processor.parser.Parse(ctx, docparser.Source{
		Path:       document.Path,
		MimeType:   document.MimeType,
		ArchiveDir: outputDir,
	})
	if parseErr != nil {
		return parseErr
	}

	return writeResult(outputDir, result)
}
