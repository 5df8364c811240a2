// Package dpi resolves the resolution handed to the OCR engine for raster
// images.
//
// The engine needs a DPI to lay an image out on a PDF page. Embedded metadata
// wins, then the configured default, then an estimate that assumes the image
// spans the width of an A4 portrait page. When none of these yields a value
// the parse fails with ErrNoDPI; there is no silent fallback.
package dpi

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// A4WidthInches is the physical width of an A4 portrait page.
const A4WidthInches = 8.27

// ErrNoDPI is returned when no resolution can be determined for an image.
var ErrNoDPI = errors.New("no dpi information is present in this image")

// Rounding selects how fractional DPI values become integers.
type Rounding int

const (
	// RoundNearest rounds half away from zero.
	RoundNearest Rounding = iota
	// RoundFloor truncates towards zero.
	RoundFloor
)

// ParseRounding parses "nearest" or "floor".
func ParseRounding(value string) (Rounding, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "nearest", "round":
		return RoundNearest, nil
	case "floor":
		return RoundFloor, nil
	}

	return RoundNearest, fmt.Errorf("invalid dpi rounding %q", value)
}

// String implements fmt.Stringer.
func (r Rounding) String() string {
	if r == RoundFloor {
		return "floor"
	}

	return "nearest"
}

// UnmarshalText lets configuration decoders read a Rounding from a string.
func (r *Rounding) UnmarshalText(text []byte) error {
	parsed, parseErr := ParseRounding(string(text))
	if parseErr != nil {
		return parseErr
	}

	*r = parsed

	return nil
}

func (r Rounding) apply(value float64) int {
	if r == RoundFloor {
		return int(math.Floor(value))
	}

	return int(math.Round(value))
}

// Source tells where a resolved DPI came from.
type Source int

const (
	// SourceEmbedded is resolution metadata stored in the image file.
	SourceEmbedded Source = iota
	// SourceDefault is the configured default DPI.
	SourceDefault
	// SourceA4Estimate is derived from the pixel width and an A4 page.
	SourceA4Estimate
)

// String implements fmt.Stringer.
func (s Source) String() string {
	switch s {
	case SourceEmbedded:
		return "embedded"
	case SourceDefault:
		return "default"
	case SourceA4Estimate:
		return "a4-estimate"
	}

	return fmt.Sprintf("source(%d)", int(s))
}

// Resolution is a resolved DPI and its origin.
type Resolution struct {
	// Image is the probed image, zero when probing failed and the default DPI was used.
	Image  ImageInfo
	DPI    int
	Source Source
}

// EstimateA4 computes the DPI of an image assumed to span an A4 page width.
func EstimateA4(width int, rounding Rounding) (int, error) {
	if width <= 0 {
		return 0, fmt.Errorf("pixel width %d: %w", width, ErrNoDPI)
	}

	estimated := rounding.apply(float64(width) / A4WidthInches)
	if estimated <= 0 {
		return 0, fmt.Errorf("pixel width %d is too small: %w", width, ErrNoDPI)
	}

	return estimated, nil
}

// Resolver determines the DPI of raster images.
type Resolver struct {
	prober     Prober
	defaultDPI int
	rounding   Rounding
}

// NewResolver creates a Resolver. defaultDPI <= 0 means no default is configured.
func NewResolver(prober Prober, defaultDPI int, rounding Rounding) *Resolver {
	return &Resolver{
		prober:     prober,
		defaultDPI: defaultDPI,
		rounding:   rounding,
	}
}

// Resolve returns the DPI to use for the image at path.
func (resolver *Resolver) Resolve(path string) (Resolution, error) {
	info, probeErr := resolver.prober.Probe(path)
	if probeErr != nil {
		if resolver.defaultDPI > 0 {
			return Resolution{Image: ImageInfo{}, DPI: resolver.defaultDPI, Source: SourceDefault}, nil
		}

		return Resolution{}, fmt.Errorf("%w: %w", ErrNoDPI, probeErr)
	}

	return resolver.ResolveInfo(info)
}

// ResolveInfo resolves the DPI of an already probed image.
func (resolver *Resolver) ResolveInfo(info ImageInfo) (Resolution, error) {
	if embedded := int(math.Round(info.DPI)); embedded > 0 {
		return Resolution{Image: info, DPI: embedded, Source: SourceEmbedded}, nil
	}

	if resolver.defaultDPI > 0 {
		return Resolution{Image: info, DPI: resolver.defaultDPI, Source: SourceDefault}, nil
	}

	estimated, estimateErr := EstimateA4(info.Width, resolver.rounding)
	if estimateErr != nil {
		return Resolution{}, estimateErr
	}

	return Resolution{Image: info, DPI: estimated, Source: SourceA4Estimate}, nil
}
