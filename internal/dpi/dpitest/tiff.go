// Package dpitest builds raster fixtures that the standard encoders cannot.
package dpitest

import (
	"encoding/binary"
	"image"
)

type entry struct {
	tag   uint16
	kind  uint16
	count uint32
	value uint32
}

const (
	typeShort  = 3
	typeLong   = 4
	entryCount = 10
	ifdSize    = 2 + entryCount*12 + 4
)

// AlphaTIFF returns a little-endian TIFF holding one uncompressed page with
// unassociated alpha per image, in order.
func AlphaTIFF(pages ...*image.NRGBA) []byte {
	order := binary.LittleEndian

	out := []byte("II*\x00")
	out = order.AppendUint32(out, 0)
	nextField := 4

	for _, page := range pages {
		bounds := page.Bounds()
		width, height := uint32(bounds.Dx()), uint32(bounds.Dy())
		pixels := rowsOf(page)

		stripOffset := uint32(len(out))
		out = append(out, pixels...)

		ifdOffset := uint32(len(out))
		order.PutUint32(out[nextField:], ifdOffset)

		entries := []entry{
			{tag: 256, kind: typeLong, count: 1, value: width},
			{tag: 257, kind: typeLong, count: 1, value: height},
			{tag: 258, kind: typeShort, count: 4, value: ifdOffset + ifdSize},
			{tag: 259, kind: typeShort, count: 1, value: 1},
			{tag: 262, kind: typeShort, count: 1, value: 2},
			{tag: 273, kind: typeLong, count: 1, value: stripOffset},
			{tag: 277, kind: typeShort, count: 1, value: 4},
			{tag: 278, kind: typeLong, count: 1, value: height},
			{tag: 279, kind: typeLong, count: 1, value: uint32(len(pixels))},
			{tag: 338, kind: typeShort, count: 1, value: 2},
		}

		out = order.AppendUint16(out, entryCount)

		for _, field := range entries {
			out = order.AppendUint16(out, field.tag)
			out = order.AppendUint16(out, field.kind)
			out = order.AppendUint32(out, field.count)

			if field.kind == typeShort && field.count == 1 {
				out = order.AppendUint16(out, uint16(field.value))
				out = order.AppendUint16(out, 0)
			} else {
				out = order.AppendUint32(out, field.value)
			}
		}

		nextField = len(out)
		out = order.AppendUint32(out, 0)

		for range 4 {
			out = order.AppendUint16(out, 8)
		}
	}

	return out
}

func rowsOf(page *image.NRGBA) []byte {
	bounds := page.Bounds()
	rows := make([]byte, 0, bounds.Dx()*bounds.Dy()*4)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		rows = append(rows, page.Pix[page.PixOffset(bounds.Min.X, y):page.PixOffset(bounds.Max.X, y)]...)
	}

	return rows
}
