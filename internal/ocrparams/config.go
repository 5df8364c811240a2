package ocrparams

import (
	"errors"
	"fmt"
)

// ErrNegativePageLimit is returned when the page limit is below zero.
var ErrNegativePageLimit = errors.New("page limit cannot be negative")

const (
	defaultLanguage             = "eng"
	defaultOutputType           = "pdfa"
	defaultRotatePagesThreshold = 12.0
)

// Config is the OCR configuration consumed by Build.
type Config struct {
	Mode Mode `toml:"mode"`
	// PageLimit bounds OCR to pages [1, PageLimit]; 0 means every page.
	PageLimit int    `toml:"pages"`
	Language  string `toml:"language"`
	// ImageDPI is the default resolution for images without metadata; 0 disables it.
	ImageDPI             int       `toml:"image_dpi"`
	Clean                CleanMode `toml:"clean"`
	Deskew               bool      `toml:"deskew"`
	RotatePages          bool      `toml:"rotate_pages"`
	RotatePagesThreshold float64   `toml:"rotate_pages_threshold"`
	OutputType           string    `toml:"output_type"`
	Jobs                 int       `toml:"jobs"`
	// UserArgs are passed verbatim to the engine, except on safe fallback.
	UserArgs []string `toml:"user_args"`
}

// DefaultConfig returns the configuration used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Mode:                 ModeSkip,
		PageLimit:            0,
		Language:             defaultLanguage,
		ImageDPI:             0,
		Clean:                Clean,
		Deskew:               true,
		RotatePages:          true,
		RotatePagesThreshold: defaultRotatePagesThreshold,
		OutputType:           defaultOutputType,
		Jobs:                 0,
		UserArgs:             nil,
	}
}

// Validate checks the enumerations and numeric bounds of cfg.
func (cfg Config) Validate() error {
	if !cfg.Mode.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, int(cfg.Mode))
	}

	if cfg.Clean < CleanNone || cfg.Clean > CleanFinal {
		return fmt.Errorf("%w: %d", ErrInvalidCleanMode, int(cfg.Clean))
	}

	if cfg.PageLimit < 0 {
		return fmt.Errorf("%w: %d", ErrNegativePageLimit, cfg.PageLimit)
	}

	return nil
}
