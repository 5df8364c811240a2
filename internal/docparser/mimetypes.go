package docparser

import (
	"path/filepath"
	"strings"
)

var extensionTypes = map[string]string{
	".pdf":  mimePDF,
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".bmp":  "image/bmp",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// MimeTypeForPath returns the MIME type implied by the file extension of path,
// "" when the extension is not supported. The match is case-insensitive.
func MimeTypeForPath(path string) string {
	return extensionTypes[strings.ToLower(filepath.Ext(path))]
}
