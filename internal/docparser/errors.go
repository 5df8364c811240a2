package docparser

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedSource is returned for MIME types the parser cannot handle.
	ErrUnsupportedSource = errors.New("unsupported source type")
	// ErrNoTextFound marks a first attempt that produced no text for a source
	// without any text layer. It triggers the safe fallback.
	ErrNoTextFound = errors.New("ocr produced no text")
)

// EngineError is a failed OCR attempt.
type EngineError struct {
	Attempt int
	Err     error
}

// Error implements error.
func (e *EngineError) Error() string {
	return fmt.Sprintf("ocr attempt %d failed: %v", e.Attempt, e.Err)
}

// Unwrap returns the engine failure.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// FatalError is returned when the safe fallback could not rescue a parse.
// Both causes stay reachable through errors.Is and errors.As.
type FatalError struct {
	First  error
	Second error
}

// Error implements error.
func (e *FatalError) Error() string {
	return fmt.Sprintf("document could not be parsed: %v; %v", e.First, e.Second)
}

// Unwrap returns both causes.
func (e *FatalError) Unwrap() []error {
	return []error{e.First, e.Second}
}
