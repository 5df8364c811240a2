package docparser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/book-expert/ocr-parser-service/internal/dpi"
	"github.com/book-expert/ocr-parser-service/internal/ocrengine"
	"github.com/book-expert/ocr-parser-service/internal/ocrparams"
	"github.com/book-expert/ocr-parser-service/internal/textnorm"
	"github.com/book-expert/ocr-parser-service/internal/textstate"
)

const (
	safeFallbackAttempt = 2
	archiveIDLength     = 8
)

type stage int

const (
	stageInit stage = iota
	stageAttempt
	stageSuccess
	stageFatal
)

// runState is one state of the attempt state machine:
// init -> attempt 1 -> {success, attempt 2} -> {success, fatal}.
type runState struct {
	stage stage
	// attempt is the engine invocation in progress or completed, 0 before any.
	attempt  int
	failures []error
	params   ocrparams.Parameters
	output   ocrengine.Output
	// err is a fatal error raised outside of an engine attempt.
	err error
	// textOnly marks a success that keeps the original text layer and no archive.
	textOnly bool
}

func fatal(err error) runState {
	return runState{
		stage:    stageFatal,
		attempt:  0,
		failures: nil,
		params:   ocrparams.Parameters{},
		output:   ocrengine.Output{},
		err:      err,
		textOnly: false,
	}
}

// rejectsInput reports whether the engine refused the document itself, as it
// does for encrypted, signed or form PDFs. The original text layer is all such
// a document can yield.
func rejectsInput(err error) bool {
	return errors.Is(err, ocrengine.ErrEncryptedPDF) ||
		errors.Is(err, ocrengine.ErrInputFile) ||
		errors.Is(err, ocrengine.ErrPriorOCRFound)
}

// parseJob carries the per-document data of one Parse call.
type parseJob struct {
	parser    *Parser
	src       Source
	workspace *workspace
	state     textstate.Classification
	// input is the file handed to the engine, a flattened copy for images with alpha.
	input    string
	imageDPI int
}

func (job *parseJob) run(ctx context.Context) (Result, error) {
	current := runState{stage: stageInit}

	for {
		switch current.stage {
		case stageInit:
			current = job.initialize(ctx)
		case stageAttempt:
			current = job.attempt(ctx, current)
		case stageSuccess:
			return job.succeed(current)
		case stageFatal:
			return Result{}, job.fail(current)
		default:
			return Result{}, fmt.Errorf("unknown parse stage %d", current.stage)
		}
	}
}

func (job *parseJob) release() {
	if job.workspace != nil {
		job.workspace.release()
	}
}

func (job *parseJob) initialize(ctx context.Context) runState {
	log := job.parser.log

	_, statErr := os.Stat(job.src.Path)
	if statErr != nil {
		return fatal(fmt.Errorf("cannot access source: %w", statErr))
	}

	state, inspectErr := job.parser.inspector.Inspect(ctx, job.src.Path, job.src.MimeType)
	if inspectErr != nil {
		return fatal(inspectErr)
	}

	job.state = state

	ws, wsErr := acquireWorkspace(job.parser.config.WorkDir, log)
	if wsErr != nil {
		return fatal(wsErr)
	}

	job.workspace = ws

	if job.src.MimeType != mimePDF {
		prepareErr := job.prepareImage()
		if prepareErr != nil {
			return fatal(prepareErr)
		}
	}

	plan := ocrparams.PlanPages(job.parser.ocr, state, false)
	if !plan.NeedsOCR() {
		log.Info(
			"%s: every page already has text, OCR not needed (mode %s)",
			filepath.Base(job.src.Path),
			job.parser.ocr.Mode,
		)

		return runState{stage: stageSuccess, attempt: 0}
	}

	log.Info(
		"%s: %s, %d page(s), mode %s",
		filepath.Base(job.src.Path),
		state.Kind,
		state.PageCount,
		job.parser.ocr.Mode,
	)

	return runState{stage: stageAttempt, attempt: 1}
}

// prepareImage resolves the DPI of a raster source and strips its alpha
// channel, which the engine rejects.
func (job *parseJob) prepareImage() error {
	resolution, resolveErr := job.parser.resolver.Resolve(job.src.Path)
	if resolveErr != nil {
		return fmt.Errorf("could not resolve dpi of %s: %w", filepath.Base(job.src.Path), resolveErr)
	}

	job.imageDPI = resolution.DPI
	job.parser.log.Info(
		"%s: using %d DPI (%s)",
		filepath.Base(job.src.Path),
		resolution.DPI,
		resolution.Source,
	)

	if !resolution.Image.HasAlpha {
		return nil
	}

	if resolution.Image.Pages > 1 {
		flattened := job.workspace.path("input-flattened.tiff")

		pages, flattenErr := dpi.FlattenTIFF(job.src.Path, flattened, resolution.DPI)
		if flattenErr != nil {
			return fmt.Errorf("could not remove alpha channel: %w", flattenErr)
		}

		job.parser.log.Info("%s: flattened %d page(s)", filepath.Base(job.src.Path), pages)
		job.input = flattened

		return nil
	}

	flattened := job.workspace.path("input-flattened.png")

	flattenErr := dpi.Flatten(job.src.Path, flattened)
	if flattenErr != nil {
		return fmt.Errorf("could not remove alpha channel: %w", flattenErr)
	}

	job.input = flattened

	return nil
}

func (job *parseJob) attempt(ctx context.Context, current runState) runState {
	log := job.parser.log
	number := current.attempt
	safeFallback := number >= safeFallbackAttempt

	files := ocrparams.Files{
		Input:    job.input,
		Output:   job.workspace.path(fmt.Sprintf("archive-%d.pdf", number)),
		Sidecar:  job.workspace.path(fmt.Sprintf("sidecar-%d.txt", number)),
		ImageDPI: job.imageDPI,
	}

	params, buildErr := ocrparams.Build(job.parser.ocr, job.state, files, safeFallback)
	if buildErr != nil {
		return fatal(fmt.Errorf("could not build ocr parameters: %w", buildErr))
	}

	output, runErr := job.parser.engine.Run(ctx, params)
	if runErr == nil && strings.TrimSpace(stripSkipMarkers(output.Sidecar)) == "" {
		if !safeFallback && job.state.Kind == textstate.NoText {
			runErr = ErrNoTextFound
		} else if safeFallback {
			log.Warn("%s: safe fallback produced no text", filepath.Base(job.src.Path))
		}
	}

	if runErr == nil {
		return runState{
			stage:    stageSuccess,
			attempt:  number,
			failures: current.failures,
			params:   params,
			output:   output,
			err:      nil,
			textOnly: false,
		}
	}

	engineErr := &EngineError{Attempt: number, Err: runErr}
	failures := append(current.failures, engineErr)

	// Encryption does not go away with other options.
	if errors.Is(runErr, ocrengine.ErrEncryptedPDF) {
		return job.textOnly(number, failures)
	}

	if safeFallback {
		if job.state.HasText() && slices.ContainsFunc(failures, rejectsInput) {
			return job.textOnly(number, failures)
		}

		return runState{stage: stageFatal, attempt: number, failures: failures}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fatal(fmt.Errorf("parse cancelled after attempt %d: %w: %w", number, ctxErr, engineErr))
	}

	log.Warn(
		"%s: attempt %d failed, retrying with safe fallback: %v",
		filepath.Base(job.src.Path),
		number,
		runErr,
	)

	return runState{stage: stageAttempt, attempt: safeFallbackAttempt, failures: failures}
}

// textOnly settles a parse on the original text layer after the engine
// rejected the document.
func (job *parseJob) textOnly(number int, failures []error) runState {
	job.parser.log.Warn(
		"%s: engine rejected the document, keeping the original text only: %v",
		filepath.Base(job.src.Path),
		errors.Join(failures...),
	)

	return runState{stage: stageSuccess, attempt: number, failures: failures, textOnly: true}
}

func (job *parseJob) fail(current runState) error {
	var failErr error

	switch {
	case current.err != nil:
		failErr = current.err
	case len(current.failures) >= 2:
		failErr = &FatalError{First: current.failures[0], Second: current.failures[1]}
	case len(current.failures) == 1:
		failErr = current.failures[0]
	default:
		failErr = fmt.Errorf("parse of %s failed", job.src.Path)
	}

	job.parser.log.Error("Failed to parse %s: %v", filepath.Base(job.src.Path), failErr)

	return failErr
}

func (job *parseJob) succeed(current runState) (Result, error) {
	cfg := job.parser.ocr

	if current.attempt == 0 || current.textOnly {
		return Result{
			Text:        textnorm.Normalize(job.state.Text()),
			ArchivePath: "",
			Sidecar:     "",
			Attempts:    current.attempt,
			Parameters:  nil,
			State:       job.state.Kind,
			DPI:         job.imageDPI,
		}, nil
	}

	params := current.params
	plan := ocrparams.PlanPages(cfg, job.state, params.SafeFallback)
	merged := mergePages(
		job.state,
		plan,
		current.output.Sidecar,
		cfg.Mode == ocrparams.ModeRedo && !params.SafeFallback,
	)

	archivePath := ""

	if ocrparams.KeepArchive(cfg, job.state, plan, params.SafeFallback, merged.recognized) {
		retained, retainErr := job.retainArchive(current.output.ArchivePath)
		if retainErr != nil {
			return Result{}, retainErr
		}

		archivePath = retained
	}

	job.parser.log.Success(
		"Parsed %s in %d attempt(s), archive retained: %t",
		filepath.Base(job.src.Path),
		current.attempt,
		archivePath != "",
	)

	return Result{
		Text:        textnorm.Normalize(merged.full),
		ArchivePath: archivePath,
		Sidecar:     diagnosticSidecar(current.output.Sidecar, params.Skipped),
		Attempts:    current.attempt,
		Parameters:  &params,
		State:       job.state.Kind,
		DPI:         job.imageDPI,
	}, nil
}

// retainArchive moves the archive out of the workspace before it is released.
func (job *parseJob) retainArchive(archive string) (string, error) {
	dir := job.src.ArchiveDir
	if dir == "" {
		dir = job.parser.config.ArchiveDir
	}

	mkdirErr := os.MkdirAll(dir, archiveDirMode)
	if mkdirErr != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", mkdirErr)
	}

	base := filepath.Base(job.src.Path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	destination := filepath.Join(
		dir,
		fmt.Sprintf("%s-%s.pdf", stem, uuid.NewString()[:archiveIDLength]),
	)

	moveErr := moveFile(archive, destination)
	if moveErr != nil {
		return "", fmt.Errorf("failed to retain archive: %w", moveErr)
	}

	return destination, nil
}
