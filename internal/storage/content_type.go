package storage

import (
	"mime"
	"path/filepath"
	"strings"
)

// contentTypes covers the formats the converter reads and writes, so lookups
// don't depend on the host's mime.types.
var contentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".pdf":  "application/pdf",
}

// DetectContentType determines the MIME type of a stored object.
//
// Detection priority:
// 1. providedType, if non-empty
// 2. the built-in table for image and PDF extensions
// 3. mime.TypeByExtension
// 4. "application/octet-stream"
func DetectContentType(providedType, filename string) string {
	if providedType != "" {
		return providedType
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}

	return "application/octet-stream"
}
