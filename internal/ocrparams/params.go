package ocrparams

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/book-expert/ocr-parser-service/internal/textstate"
)

// ErrMissingFiles is returned when the input or output file is not set.
var ErrMissingFiles = errors.New("input and output files are required")

// Files names the files of one attempt inside the parse workspace.
type Files struct {
	Input   string
	Output  string
	Sidecar string
	// ImageDPI is the resolved DPI of a raster input, 0 for PDFs.
	ImageDPI int
}

// Parameters is the resolved invocation of one OCR attempt.
type Parameters struct {
	InputFile   string
	OutputFile  string
	SidecarFile string
	Language    string
	OutputType  string
	Jobs        int

	SkipText bool
	RedoOCR  bool
	ForceOCR bool

	Clean                bool
	CleanFinal           bool
	Deskew               bool
	RotatePages          bool
	RotatePagesThreshold float64

	// Pages is the engine page selection, "" for every page.
	Pages string
	// Skipped are the pages this attempt leaves untouched.
	Skipped  []int
	ImageDPI int
	UserArgs []string

	SafeFallback bool
}

// Build computes the parameters of one attempt. With safeFallback set every
// aggressive option is stripped and OCR is forced on all eligible pages,
// whatever mode was requested.
func Build(
	cfg Config,
	state textstate.Classification,
	files Files,
	safeFallback bool,
) (Parameters, error) {
	validateErr := cfg.Validate()
	if validateErr != nil {
		return Parameters{}, validateErr
	}

	if files.Input == "" || files.Output == "" {
		return Parameters{}, ErrMissingFiles
	}

	plan := PlanPages(cfg, state, safeFallback)

	params := Parameters{
		InputFile:            files.Input,
		OutputFile:           files.Output,
		SidecarFile:          files.Sidecar,
		Language:             cfg.Language,
		OutputType:           cfg.OutputType,
		Jobs:                 cfg.Jobs,
		SkipText:             false,
		RedoOCR:              false,
		ForceOCR:             false,
		Clean:                false,
		CleanFinal:           false,
		Deskew:               false,
		RotatePages:          false,
		RotatePagesThreshold: 0,
		Pages:                plan.Range(),
		Skipped:              slices.Clone(plan.Skipped),
		ImageDPI:             files.ImageDPI,
		UserArgs:             nil,
		SafeFallback:         safeFallback,
	}

	if safeFallback {
		params.ForceOCR = true

		return params, nil
	}

	switch cfg.Mode {
	case ModeSkip, ModeSkipNoArchive:
		params.SkipText = true
	case ModeRedo:
		params.RedoOCR = true
	case ModeForce:
		params.ForceOCR = true
	default:
		return Parameters{}, fmt.Errorf("%w: %d", ErrInvalidMode, int(cfg.Mode))
	}

	skipFamily := cfg.Mode.SkipFamily()

	switch cfg.Clean {
	case CleanNone:
	case Clean:
		params.Clean = true
	case CleanFinal:
		if skipFamily {
			params.CleanFinal = true
		} else {
			params.Clean = true
		}
	}

	params.Deskew = cfg.Deskew && skipFamily

	if cfg.RotatePages {
		params.RotatePages = true
		params.RotatePagesThreshold = cfg.RotatePagesThreshold
	}

	params.UserArgs = slices.Clone(cfg.UserArgs)

	return params, nil
}

// Args renders the ocrmypdf command line, input and output last.
func (params Parameters) Args() []string {
	args := make([]string, 0, 24+len(params.UserArgs))

	switch {
	case params.ForceOCR:
		args = append(args, "--force-ocr")
	case params.RedoOCR:
		args = append(args, "--redo-ocr")
	case params.SkipText:
		args = append(args, "--skip-text")
	}

	if params.Language != "" {
		args = append(args, "-l", params.Language)
	}

	if params.OutputType != "" {
		args = append(args, "--output-type", params.OutputType)
	}

	if params.Jobs > 0 {
		args = append(args, "--jobs", strconv.Itoa(params.Jobs))
	}

	if params.Pages != "" {
		args = append(args, "--pages", params.Pages)
	}

	if params.SidecarFile != "" {
		args = append(args, "--sidecar", params.SidecarFile)
	}

	if params.ImageDPI > 0 {
		args = append(args, "--image-dpi", strconv.Itoa(params.ImageDPI))
	}

	if params.Clean {
		args = append(args, "--clean")
	}

	if params.CleanFinal {
		args = append(args, "--clean-final")
	}

	if params.Deskew {
		args = append(args, "--deskew")
	}

	if params.RotatePages {
		args = append(args, "--rotate-pages")

		if params.RotatePagesThreshold > 0 {
			args = append(args,
				"--rotate-pages-threshold",
				strconv.FormatFloat(params.RotatePagesThreshold, 'f', -1, 64),
			)
		}
	}

	args = append(args, params.UserArgs...)

	return append(args, params.InputFile, params.OutputFile)
}
