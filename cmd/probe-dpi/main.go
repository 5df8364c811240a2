// Command probe-dpi reports the DPI the document parser would use for an image.
//
// Usage: probe-dpi <filepath> [default_dpi] [rounding]
// - default_dpi: positive DPI used when the image carries no resolution, 0 for none
// - rounding: nearest or floor, applied to the A4 width estimate
//
// The result is printed as "<dpi> <source>".
//
// Exit codes:
//
//	0 = DPI resolved
//	2 = error (bad args, unreadable image, no usable DPI)
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/book-expert/ocr-parser-service/internal/dpi"
)

var (
	ErrInvalidArguments  = errors.New("invalid number of arguments")
	ErrInvalidDefaultDPI = errors.New("default dpi must be a non-negative integer")
)

type arguments struct {
	filePath   string
	defaultDPI int
	rounding   dpi.Rounding
}

const (
	exitCodeResolved = 0
	exitCodeError    = 2

	minArgCount = 2
	maxArgCount = 4
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(rawArgs []string, stdout, stderr io.Writer) int {
	args, err := parseAndValidateArguments(rawArgs)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Argument error: %v\n", err)

		return exitCodeError
	}

	resolver := dpi.NewResolver(dpi.NewFileProber(), args.defaultDPI, args.rounding)

	resolution, err := resolver.Resolve(args.filePath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "DPI resolution error: %v\n", err)

		return exitCodeError
	}

	_, _ = fmt.Fprintf(stdout, "%d %s\n", resolution.DPI, resolution.Source)

	return exitCodeResolved
}

// parseAndValidateArguments processes the raw command-line arguments.
func parseAndValidateArguments(args []string) (arguments, error) {
	if len(args) < minArgCount || len(args) > maxArgCount {
		return arguments{}, fmt.Errorf(
			"expected 1 to 3 arguments, but got %d. Usage: <program> <filepath> [default_dpi] [rounding]: %w",
			len(args)-1,
			ErrInvalidArguments,
		)
	}

	parsed := arguments{filePath: args[1], defaultDPI: 0, rounding: dpi.RoundNearest}

	if len(args) > 2 {
		defaultDPI, err := parseDefaultDPI(args[2])
		if err != nil {
			return arguments{}, err
		}

		parsed.defaultDPI = defaultDPI
	}

	if len(args) > 3 {
		rounding, err := dpi.ParseRounding(args[3])
		if err != nil {
			return arguments{}, err
		}

		parsed.rounding = rounding
	}

	return parsed, nil
}

func parseDefaultDPI(value string) (int, error) {
	defaultDPI, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid default dpi '%s': %w", value, ErrInvalidDefaultDPI)
	}

	if defaultDPI < 0 {
		return 0, fmt.Errorf("default dpi %d: %w", defaultDPI, ErrInvalidDefaultDPI)
	}

	return defaultDPI, nil
}
