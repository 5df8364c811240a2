package dpi

import (
	"fmt"
	"image"
	"image/png"
	"os"
)

const flattenFileMode = 0o600

// Flatten composes the image at srcPath over a white background and writes the
// opaque result as PNG to dstPath. The OCR engine rejects images with an alpha
// channel. Only the first page of a multi-page file is read; see FlattenTIFF.
func Flatten(srcPath, dstPath string) error {
	source, openErr := os.Open(srcPath)
	if openErr != nil {
		return fmt.Errorf("could not open image %s: %w", srcPath, openErr)
	}
	defer source.Close()

	img, _, decodeErr := image.Decode(source)
	if decodeErr != nil {
		return fmt.Errorf("could not decode image %s: %w", srcPath, decodeErr)
	}

	flat := flatten(img)

	output, createErr := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, flattenFileMode)
	if createErr != nil {
		return fmt.Errorf("could not create %s: %w", dstPath, createErr)
	}

	encodeErr := png.Encode(output, flat)
	closeErr := output.Close()

	if encodeErr != nil {
		return fmt.Errorf("could not encode %s: %w", dstPath, encodeErr)
	}

	if closeErr != nil {
		return fmt.Errorf("could not close %s: %w", dstPath, closeErr)
	}

	return nil
}
