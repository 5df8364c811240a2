package dpi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// ErrMalformedTIFF is returned when the directory chain of a TIFF file is broken.
var ErrMalformedTIFF = errors.New("malformed tiff directory chain")

const (
	tiffHeaderLength = 8
	ifdEntryLength   = 12
	maxTIFFPages     = 10000

	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagPhotometric      = 262
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
	tagXResolution      = 282
	tagYResolution      = 283
	tagPlanarConfig     = 284
	tagResolutionUnit   = 296
	typeShort           = 3
	typeLong            = 4
	typeRational        = 5
	rgbSamples          = 3
	resolutionUnitInch  = 2
	photometricRGB      = 2
	compressionNone     = 1
	planarChunky        = 1
	fallbackResolution  = 72
	ifdEntriesPerPage   = 13
	ifdExtraBytes       = 8 + 8 + 8
	ifdLength           = 2 + ifdEntriesPerPage*ifdEntryLength + 4
	bitsPerSampleOffset = 0
	xResolutionOffset   = 8
	yResolutionOffset   = 16
)

// tiffDirectories returns the byte order of a TIFF file and the offset of
// each of its image file directories, one per page.
func tiffDirectories(data []byte) (binary.ByteOrder, []uint32, error) {
	if len(data) < tiffHeaderLength {
		return nil, nil, ErrMalformedTIFF
	}

	var order binary.ByteOrder

	switch string(data[:4]) {
	case "II*\x00":
		order = binary.LittleEndian
	case "MM\x00*":
		order = binary.BigEndian
	default:
		return nil, nil, fmt.Errorf("%w: bad header", ErrMalformedTIFF)
	}

	var offsets []uint32

	seen := make(map[uint32]bool)

	for offset := order.Uint32(data[4:8]); offset != 0; {
		if seen[offset] || len(offsets) >= maxTIFFPages {
			return nil, nil, fmt.Errorf("%w: directory loop", ErrMalformedTIFF)
		}

		start := int(offset)
		if start+2 > len(data) {
			return nil, nil, fmt.Errorf("%w: directory past end of file", ErrMalformedTIFF)
		}

		entries := int(order.Uint16(data[start : start+2]))
		next := start + 2 + entries*ifdEntryLength

		if next+4 > len(data) {
			return nil, nil, fmt.Errorf("%w: directory past end of file", ErrMalformedTIFF)
		}

		seen[offset] = true
		offsets = append(offsets, offset)
		offset = order.Uint32(data[next : next+4])
	}

	if len(offsets) == 0 {
		return nil, nil, fmt.Errorf("%w: no directories", ErrMalformedTIFF)
	}

	return order, offsets, nil
}

// tiffPage returns a copy of data whose header points at the directory at
// offset, which the single-page decoder then reads as the first page.
func tiffPage(data []byte, order binary.ByteOrder, offset uint32) []byte {
	page := bytes.Clone(data)
	order.PutUint32(page[4:8], offset)

	return page
}

// tiffPagesHaveAlpha reports whether any page of a TIFF file can be translucent.
func tiffPagesHaveAlpha(data []byte, order binary.ByteOrder, offsets []uint32) bool {
	for _, offset := range offsets {
		config, configErr := tiff.DecodeConfig(bytes.NewReader(tiffPage(data, order, offset)))
		if configErr == nil && modelHasAlpha(config.ColorModel) {
			return true
		}
	}

	return false
}

// FlattenTIFF composes every page of the TIFF file at srcPath over a white
// background and writes the opaque pages as an uncompressed RGB TIFF to
// dstPath, tagged with dpi. It returns the number of pages written.
func FlattenTIFF(srcPath, dstPath string, dpi int) (int, error) {
	data, readErr := os.ReadFile(srcPath)
	if readErr != nil {
		return 0, fmt.Errorf("could not read image %s: %w", srcPath, readErr)
	}

	order, offsets, dirErr := tiffDirectories(data)
	if dirErr != nil {
		return 0, fmt.Errorf("could not read pages of %s: %w", srcPath, dirErr)
	}

	pages := make([]*image.RGBA, 0, len(offsets))

	for index, offset := range offsets {
		img, decodeErr := tiff.Decode(bytes.NewReader(tiffPage(data, order, offset)))
		if decodeErr != nil {
			return 0, fmt.Errorf("could not decode page %d of %s: %w", index+1, srcPath, decodeErr)
		}

		pages = append(pages, flatten(img))
	}

	output, createErr := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, flattenFileMode)
	if createErr != nil {
		return 0, fmt.Errorf("could not create %s: %w", dstPath, createErr)
	}

	writeErr := writeRGBTIFF(output, pages, dpi)
	closeErr := output.Close()

	if writeErr != nil {
		return 0, fmt.Errorf("could not encode %s: %w", dstPath, writeErr)
	}

	if closeErr != nil {
		return 0, fmt.Errorf("could not close %s: %w", dstPath, closeErr)
	}

	return len(pages), nil
}

func flatten(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, bounds.Min, draw.Over)

	return flat
}

type ifdEntry struct {
	tag   uint16
	kind  uint16
	value uint32
}

// writeRGBTIFF writes pages as a little-endian baseline TIFF, one uncompressed
// strip per page. The single-page encoder of x/image cannot chain directories.
func writeRGBTIFF(w io.Writer, pages []*image.RGBA, dpi int) error {
	if dpi <= 0 {
		dpi = fallbackResolution
	}

	var buf bytes.Buffer

	order := binary.LittleEndian
	strips := make([][]byte, len(pages))
	pixelOffsets := make([]uint32, len(pages))
	ifdOffsets := make([]uint32, len(pages))
	position := uint32(tiffHeaderLength)

	for index, page := range pages {
		strips[index] = rgbSamplesOf(page)
		pixelOffsets[index] = position
		position += uint32(len(strips[index]))
		position += position % 2
		ifdOffsets[index] = position
		position += ifdLength + ifdExtraBytes
	}

	buf.WriteString("II*\x00")
	_ = binary.Write(&buf, order, ifdOffsets[0])

	for index, page := range pages {
		samples := strips[index]
		buf.Write(samples)

		if buf.Len()%2 == 1 {
			buf.WriteByte(0)
		}

		extra := ifdOffsets[index] + ifdLength
		bounds := page.Bounds()
		entries := []ifdEntry{
			{tag: tagImageWidth, kind: typeLong, value: uint32(bounds.Dx())},
			{tag: tagImageLength, kind: typeLong, value: uint32(bounds.Dy())},
			{tag: tagBitsPerSample, kind: typeShort, value: extra + bitsPerSampleOffset},
			{tag: tagCompression, kind: typeShort, value: compressionNone},
			{tag: tagPhotometric, kind: typeShort, value: photometricRGB},
			{tag: tagStripOffsets, kind: typeLong, value: pixelOffsets[index]},
			{tag: tagSamplesPerPixel, kind: typeShort, value: rgbSamples},
			{tag: tagRowsPerStrip, kind: typeLong, value: uint32(bounds.Dy())},
			{tag: tagStripByteCounts, kind: typeLong, value: uint32(len(samples))},
			{tag: tagXResolution, kind: typeRational, value: extra + xResolutionOffset},
			{tag: tagYResolution, kind: typeRational, value: extra + yResolutionOffset},
			{tag: tagPlanarConfig, kind: typeShort, value: planarChunky},
			{tag: tagResolutionUnit, kind: typeShort, value: resolutionUnitInch},
		}

		next := uint32(0)
		if index+1 < len(pages) {
			next = ifdOffsets[index+1]
		}

		writeIFD(&buf, order, entries, next)

		// BitsPerSample (8, 8, 8) padded to a word, then both resolutions.
		_ = binary.Write(&buf, order, []uint16{8, 8, 8, 0})
		_ = binary.Write(&buf, order, []uint32{uint32(dpi), 1, uint32(dpi), 1})
	}

	_, err := w.Write(buf.Bytes())

	return err
}

func writeIFD(buf *bytes.Buffer, order binary.ByteOrder, entries []ifdEntry, next uint32) {
	_ = binary.Write(buf, order, uint16(len(entries)))

	for _, entry := range entries {
		count := uint32(1)
		if entry.tag == tagBitsPerSample {
			count = rgbSamples
		}

		_ = binary.Write(buf, order, entry.tag)
		_ = binary.Write(buf, order, entry.kind)
		_ = binary.Write(buf, order, count)

		// Short values sit left-justified in the value field.
		if entry.kind == typeShort && count == 1 {
			_ = binary.Write(buf, order, []uint16{uint16(entry.value), 0})
		} else {
			_ = binary.Write(buf, order, entry.value)
		}
	}

	_ = binary.Write(buf, order, next)
}

func rgbSamplesOf(page *image.RGBA) []byte {
	bounds := page.Bounds()
	samples := make([]byte, 0, bounds.Dx()*bounds.Dy()*rgbSamples)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := page.Pix[page.PixOffset(bounds.Min.X, y):page.PixOffset(bounds.Max.X, y)]
		for x := 0; x < len(row); x += 4 {
			samples = append(samples, row[x], row[x+1], row[x+2])
		}
	}

	return samples
}
