// Package ocrengine invokes ocrmypdf, the external tool that rasterizes pages,
// runs tesseract and writes the archive PDF plus a plain text sidecar.
package ocrengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/ocr-parser-service/internal/command"
	"github.com/book-expert/ocr-parser-service/internal/ocrparams"
)

const (
	defaultBinary  = "ocrmypdf"
	defaultTimeout = 10 * time.Minute
	maxOutputChars = 2000
)

// Failures reported by ocrmypdf through its exit status.
var (
	ErrEngineFailed      = errors.New("ocr engine failed")
	ErrBadArguments      = errors.New("ocr engine rejected its arguments")
	ErrInputFile         = errors.New("ocr engine could not read the input file")
	ErrMissingDependency = errors.New("ocr engine is missing a dependency")
	ErrInvalidOutput     = errors.New("ocr engine produced an invalid pdf")
	ErrFileAccess        = errors.New("ocr engine could not access a file")
	ErrPriorOCRFound     = errors.New("page already contains text")
	ErrChildProcess      = errors.New("ocr engine child process failed")
	ErrEncryptedPDF      = errors.New("input pdf is encrypted")
	ErrInvalidConfig     = errors.New("ocr engine configuration is invalid")
	ErrPDFAConversion    = errors.New("pdf/a conversion failed")
	ErrTimeout           = errors.New("ocr engine timed out")
	ErrMissingArchive    = errors.New("ocr engine did not write the archive")
)

// Output is what a successful engine run leaves behind.
type Output struct {
	ArchivePath string
	// Sidecar is the raw recognized text, pages separated by form feeds.
	Sidecar string
}

// Options configures the ocrmypdf invocation.
type Options struct {
	Binary  string
	Timeout time.Duration
}

// OCRmyPDF runs the ocrmypdf command line tool.
type OCRmyPDF struct {
	config   Options
	executor command.Executor
	log      *logger.Logger
}

// New creates an OCRmyPDF engine. A nil executor selects the os/exec one.
func New(opts Options, executor command.Executor, log *logger.Logger) *OCRmyPDF {
	applyDefaultOptions(&opts)

	if executor == nil {
		executor = command.NewExecutor()
	}

	return &OCRmyPDF{
		config:   opts,
		executor: executor,
		log:      log,
	}
}

func applyDefaultOptions(opts *Options) {
	if opts.Binary == "" {
		opts.Binary = defaultBinary
	}

	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
}

// Binary returns the configured executable name.
func (engine *OCRmyPDF) Binary() string {
	return engine.config.Binary
}

// Run executes one OCR attempt. A timeout is reported as ErrTimeout so the
// caller can treat it like any other failed attempt.
func (engine *OCRmyPDF) Run(ctx context.Context, params ocrparams.Parameters) (Output, error) {
	runCtx, cancel := context.WithTimeout(ctx, engine.config.Timeout)
	defer cancel()

	engine.log.Info(
		"Running %s (safe fallback: %t) on %s",
		engine.config.Binary,
		params.SafeFallback,
		params.InputFile,
	)

	outputBytes, execErr := engine.executor.RunCombined(runCtx, engine.config.Binary, params.Args()...)
	if execErr != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return Output{}, fmt.Errorf("%w after %s", ErrTimeout, engine.config.Timeout)
		}

		return Output{}, interpretExitCode(execErr, outputBytes)
	}

	_, statErr := os.Stat(params.OutputFile)
	if statErr != nil {
		return Output{}, fmt.Errorf("%w: %w", ErrMissingArchive, statErr)
	}

	sidecar := ""

	if params.SidecarFile != "" {
		sidecarBytes, readErr := os.ReadFile(params.SidecarFile)
		if readErr != nil {
			return Output{}, fmt.Errorf("could not read sidecar: %w", readErr)
		}

		sidecar = string(sidecarBytes)
	}

	return Output{ArchivePath: params.OutputFile, Sidecar: sidecar}, nil
}

// interpretExitCode translates a failed ocrmypdf run into one of the sentinel
// errors, keeping the tool output for diagnosis.
func interpretExitCode(execErr error, output []byte) error {
	detail := strings.TrimSpace(string(output))
	if len(detail) > maxOutputChars {
		detail = detail[len(detail)-maxOutputChars:]
	}

	code, exited := command.ExitCode(execErr)
	if !exited {
		return fmt.Errorf("%w: could not run: %w", ErrEngineFailed, execErr)
	}

	return fmt.Errorf("%w (exit code %d): %s", errorForExitCode(code), code, detail)
}

func errorForExitCode(code int) error {
	switch code {
	case 1:
		return ErrBadArguments
	case 2:
		return ErrInputFile
	case 3:
		return ErrMissingDependency
	case 4:
		return ErrInvalidOutput
	case 5:
		return ErrFileAccess
	case 6:
		return ErrPriorOCRFound
	case 7:
		return ErrChildProcess
	case 8:
		return ErrEncryptedPDF
	case 9:
		return ErrInvalidConfig
	case 10:
		return ErrPDFAConversion
	default:
		return ErrEngineFailed
	}
}

// EnsureBinary checks whether the configured binary is available on PATH.
func (engine *OCRmyPDF) EnsureBinary() error {
	_, lookErr := command.LookPath(engine.config.Binary)

	return lookErr
}
