package dpi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // Register the GIF decoder.
	_ "image/jpeg" // Register the JPEG decoder.
	_ "image/png"  // Register the PNG decoder.
	"os"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"  // Register the BMP decoder.
	_ "golang.org/x/image/tiff" // Register the TIFF decoder.
	_ "golang.org/x/image/webp" // Register the WebP decoder.
)

const (
	metersPerInch      = 0.0254
	centimetersPerInch = 2.54
	pngSignatureLength = 8
	chunkHeaderLength  = 8
	chunkCRCLength     = 4
	physChunkLength    = 9
	physUnitMeter      = 1
	jfifUnitInch       = 1
	jfifUnitCentimeter = 2
	exifUnitInch       = 2
	exifUnitCentimeter = 3
	bmpInfoHeaderStart = 14
	bmpInfoHeaderMin   = 40
	bmpXPelsOffset     = 38
)

// ImageInfo describes a raster image without decoding its pixels.
type ImageInfo struct {
	Format string
	Width  int
	Height int
	// DPI is the embedded horizontal resolution, 0 when the file carries none.
	DPI      float64
	HasAlpha bool
	// Pages is the number of images in the file, above 1 only for multi-page TIFF.
	Pages int
}

// Prober reads image dimensions and resolution metadata.
type Prober interface {
	Probe(path string) (ImageInfo, error)
}

// FileProber probes images on disk with the registered image decoders.
type FileProber struct{}

// NewFileProber creates a FileProber.
func NewFileProber() *FileProber {
	return &FileProber{}
}

// Probe implements Prober.
func (prober *FileProber) Probe(path string) (ImageInfo, error) {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return ImageInfo{}, fmt.Errorf("could not read image %s: %w", path, readErr)
	}

	config, format, decodeErr := image.DecodeConfig(bytes.NewReader(data))
	if decodeErr != nil {
		return ImageInfo{}, fmt.Errorf("could not decode image %s: %w", path, decodeErr)
	}

	info := ImageInfo{
		Format:   format,
		Width:    config.Width,
		Height:   config.Height,
		DPI:      0,
		HasAlpha: modelHasAlpha(config.ColorModel),
		Pages:    1,
	}

	switch format {
	case "png":
		info.DPI = pngDPI(data)
	case "jpeg":
		info.DPI = jfifDPI(data)
		if info.DPI == 0 {
			info.DPI = exifDPI(data)
		}
	case "tiff":
		info.DPI = exifDPI(data)

		if order, offsets, dirErr := tiffDirectories(data); dirErr == nil {
			info.Pages = len(offsets)
			info.HasAlpha = info.HasAlpha || tiffPagesHaveAlpha(data, order, offsets)
		}
	case "bmp":
		info.DPI = bmpDPI(data)
	}

	return info, nil
}

// modelHasAlpha reports whether decoded pixels can be translucent. RGBAModel is
// left out on purpose: the PNG and TIFF decoders report it for opaque RGB too.
func modelHasAlpha(model color.Model) bool {
	switch model {
	case color.NRGBAModel, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model:
		return true
	}

	palette, isPalette := model.(color.Palette)
	if !isPalette {
		return false
	}

	for _, entry := range palette {
		_, _, _, alpha := entry.RGBA()
		if alpha != 0xffff {
			return true
		}
	}

	return false
}

// pngDPI reads the pHYs chunk. Only the metre unit carries a physical size.
func pngDPI(data []byte) float64 {
	offset := pngSignatureLength

	for offset+chunkHeaderLength <= len(data) {
		length := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		chunkType := string(data[offset+4 : offset+chunkHeaderLength])
		start := offset + chunkHeaderLength

		if length < 0 || start+length > len(data) || chunkType == "IDAT" {
			return 0
		}

		if chunkType == "pHYs" && length == physChunkLength {
			pixelsPerUnit := binary.BigEndian.Uint32(data[start : start+4])
			if data[start+8] != physUnitMeter {
				return 0
			}

			return float64(pixelsPerUnit) * metersPerInch
		}

		offset = start + length + chunkCRCLength
	}

	return 0
}

// jfifDPI reads the density fields of the JFIF APP0 segment.
func jfifDPI(data []byte) float64 {
	const (
		markerPrefix = 0xFF
		markerSOI    = 0xD8
		markerAPP0   = 0xE0
		markerSOS    = 0xDA
	)

	if len(data) < 4 || data[0] != markerPrefix || data[1] != markerSOI {
		return 0
	}

	offset := 2

	for offset+4 <= len(data) && data[offset] == markerPrefix {
		marker := data[offset+1]
		length := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		payloadStart := offset + 4
		payloadEnd := offset + 2 + length

		if marker == markerSOS || length < 2 || payloadEnd > len(data) {
			return 0
		}

		payload := data[payloadStart:payloadEnd]
		if marker == markerAPP0 && len(payload) >= 12 && string(payload[:5]) == "JFIF\x00" {
			density := float64(binary.BigEndian.Uint16(payload[8:10]))

			switch payload[7] {
			case jfifUnitInch:
				return density
			case jfifUnitCentimeter:
				return density * centimetersPerInch
			}

			return 0
		}

		offset = payloadEnd
	}

	return 0
}

// exifDPI reads XResolution and ResolutionUnit from the EXIF block of a JPEG
// or from the first directory of a TIFF file. A missing unit means inches.
func exifDPI(data []byte) float64 {
	metadata, decodeErr := exif.Decode(bytes.NewReader(data))
	if metadata == nil || (decodeErr != nil && exif.IsCriticalError(decodeErr)) {
		return 0
	}

	tag, tagErr := metadata.Get(exif.XResolution)
	if tagErr != nil {
		return 0
	}

	numerator, denominator, ratErr := tag.Rat2(0)
	if ratErr != nil || numerator <= 0 || denominator <= 0 {
		return 0
	}

	resolution := float64(numerator) / float64(denominator)

	unit := exifUnitInch
	if unitTag, unitErr := metadata.Get(exif.ResolutionUnit); unitErr == nil {
		if value, intErr := unitTag.Int(0); intErr == nil {
			unit = value
		}
	}

	switch unit {
	case exifUnitInch:
		return resolution
	case exifUnitCentimeter:
		return resolution * centimetersPerInch
	}

	return 0
}

// bmpDPI reads the horizontal pixels per metre of a BITMAPINFOHEADER.
func bmpDPI(data []byte) float64 {
	if len(data) < bmpInfoHeaderStart+bmpInfoHeaderMin {
		return 0
	}

	headerSize := binary.LittleEndian.Uint32(data[bmpInfoHeaderStart : bmpInfoHeaderStart+4])
	if headerSize < bmpInfoHeaderMin {
		return 0
	}

	pixelsPerMeter := int32(binary.LittleEndian.Uint32(data[bmpXPelsOffset : bmpXPelsOffset+4]))
	if pixelsPerMeter <= 0 {
		return 0
	}

	return float64(pixelsPerMeter) * metersPerInch
}
