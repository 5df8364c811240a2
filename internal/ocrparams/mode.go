// Package ocrparams maps an OCR configuration and the detected text state of
// a document onto the parameters of one ocrmypdf invocation.
//
// Build is pure: the same configuration, classification, files and fallback
// flag always produce the same Parameters. A fresh value is built for every
// attempt; the second attempt of a parse rebuilds with safeFallback set.
package ocrparams

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidMode is returned for OCR modes outside the recognized set.
	ErrInvalidMode = errors.New("invalid ocr mode")
	// ErrInvalidCleanMode is returned for unknown clean modes.
	ErrInvalidCleanMode = errors.New("invalid clean mode")
)

// Mode is the policy deciding whether and how OCR is (re)applied.
type Mode int

const (
	// ModeSkip runs OCR only on pages lacking text.
	ModeSkip Mode = iota
	// ModeSkipNoArchive behaves like ModeSkip but keeps an archive only for
	// sources that had no text at all.
	ModeSkipNoArchive
	// ModeRedo replaces the OCR text layer of every eligible page.
	ModeRedo
	// ModeForce rasterizes and recognizes every eligible page.
	ModeForce
)

// ParseMode parses skip, skip_noarchive, redo or force.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "skip":
		return ModeSkip, nil
	case "skip_noarchive", "skip-noarchive":
		return ModeSkipNoArchive, nil
	case "redo":
		return ModeRedo, nil
	case "force":
		return ModeForce, nil
	}

	return ModeSkip, fmt.Errorf("%w: %q", ErrInvalidMode, value)
}

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeSkip:
		return "skip"
	case ModeSkipNoArchive:
		return "skip_noarchive"
	case ModeRedo:
		return "redo"
	case ModeForce:
		return "force"
	}

	return fmt.Sprintf("mode(%d)", int(m))
}

// UnmarshalText lets TOML and JSON decoders read a Mode from a string.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, parseErr := ParseMode(string(text))
	if parseErr != nil {
		return parseErr
	}

	*m = parsed

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(m))
	}

	return []byte(m.String()), nil
}

// SkipFamily reports whether m only fills in pages that lack text.
func (m Mode) SkipFamily() bool {
	return m == ModeSkip || m == ModeSkipNoArchive
}

func (m Mode) valid() bool {
	return m >= ModeSkip && m <= ModeForce
}

// CleanMode controls unpaper cleanup of page images.
type CleanMode int

const (
	// CleanNone disables cleanup.
	CleanNone CleanMode = iota
	// Clean cleans pages for recognition only.
	Clean
	// CleanFinal also writes the cleaned pages into the archive.
	CleanFinal
)

// ParseCleanMode parses none, clean or clean-final.
func ParseCleanMode(value string) (CleanMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none":
		return CleanNone, nil
	case "clean":
		return Clean, nil
	case "clean-final", "clean_final":
		return CleanFinal, nil
	}

	return CleanNone, fmt.Errorf("%w: %q", ErrInvalidCleanMode, value)
}

// String implements fmt.Stringer.
func (c CleanMode) String() string {
	switch c {
	case CleanNone:
		return "none"
	case Clean:
		return "clean"
	case CleanFinal:
		return "clean-final"
	}

	return fmt.Sprintf("clean(%d)", int(c))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CleanMode) UnmarshalText(text []byte) error {
	parsed, parseErr := ParseCleanMode(string(text))
	if parseErr != nil {
		return parseErr
	}

	*c = parsed

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (c CleanMode) MarshalText() ([]byte, error) {
	if c < CleanNone || c > CleanFinal {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCleanMode, int(c))
	}

	return []byte(c.String()), nil
}
