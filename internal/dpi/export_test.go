package dpi

import (
	"bytes"
	"image"

	"golang.org/x/image/tiff"
)

// DecodeTIFFPagesForTest decodes every page of a TIFF file in order.
func DecodeTIFFPagesForTest(data []byte) ([]image.Image, error) {
	order, offsets, err := tiffDirectories(data)
	if err != nil {
		return nil, err
	}

	pages := make([]image.Image, 0, len(offsets))

	for _, offset := range offsets {
		page, decodeErr := tiff.Decode(bytes.NewReader(tiffPage(data, order, offset)))
		if decodeErr != nil {
			return nil, decodeErr
		}

		pages = append(pages, page)
	}

	return pages, nil
}
