// Package domain contains core business types and interfaces.
//
// This file defines the conversion kinds supported by the converter and the
// upload/result types passed between the handler and the conversion service.
package domain

import (
	"io"
	"path"
	"strings"
	"time"
	"unicode/utf8"
)

// =============================================================================
// Conversion Kind
// =============================================================================

// ConversionKind is the requested output format.
type ConversionKind string

const (
	ConversionPNG  ConversionKind = "png"
	ConversionJPEG ConversionKind = "jpeg"
	ConversionPDF  ConversionKind = "pdf"
)

// kindAliases maps accepted form values to kinds. The *_to_* spellings are
// what the original upload form posted and are kept for old bookmarks.
var kindAliases = map[string]ConversionKind{
	"png":        ConversionPNG,
	"jpg_to_png": ConversionPNG,
	"jpeg":       ConversionJPEG,
	"jpg":        ConversionJPEG,
	"png_to_jpg": ConversionJPEG,
	"pdf":        ConversionPDF,
	"img_to_pdf": ConversionPDF,
}

// ParseConversionKind resolves a form value to a ConversionKind.
func ParseConversionKind(s string) (ConversionKind, bool) {
	kind, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	return kind, ok
}

// AllConversionKinds lists the kinds in display order.
func AllConversionKinds() []ConversionKind {
	return []ConversionKind{ConversionPNG, ConversionJPEG, ConversionPDF}
}

// String returns the string representation of the kind.
func (k ConversionKind) String() string {
	return string(k)
}

// IsValid returns true if the kind is a recognized value.
func (k ConversionKind) IsValid() bool {
	switch k {
	case ConversionPNG, ConversionJPEG, ConversionPDF:
		return true
	}
	return false
}

// Extension returns the file extension for the output, without a dot.
func (k ConversionKind) Extension() string {
	switch k {
	case ConversionPNG:
		return "png"
	case ConversionJPEG:
		return "jpg"
	case ConversionPDF:
		return "pdf"
	}
	return ""
}

// ContentType returns the MIME type of the output.
func (k ConversionKind) ContentType() string {
	switch k {
	case ConversionPNG:
		return "image/png"
	case ConversionJPEG:
		return "image/jpeg"
	case ConversionPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Label returns a human-readable label for forms.
func (k ConversionKind) Label() string {
	switch k {
	case ConversionPNG:
		return "Image to PNG"
	case ConversionJPEG:
		return "Image to JPEG"
	case ConversionPDF:
		return "Image to PDF"
	}
	return string(k)
}

// =============================================================================
// Upload / Result Types
// =============================================================================

const (
	// MaxUploadSize is the default maximum size for uploaded images (20MB).
	MaxUploadSize = 20 * 1024 * 1024

	// JPEGQuality is the quality used for JPEG output and PDF page images.
	JPEGQuality = 90
)

// Upload is a file received from the client. Present is false when the
// request carried no file part at all.
type Upload struct {
	Present  bool
	Filename string
	Size     int64
	Data     io.Reader
}

// ConvertedImage is the encoded output of the image converter.
type ConvertedImage struct {
	Kind         ConversionKind
	Data         []byte
	Width        int
	Height       int
	SourceFormat string
}

// ConversionResult is returned to the handler for the download response.
type ConversionResult struct {
	ID          string
	Filename    string
	ContentType string
	Data        []byte
}

// Conversion is a persisted record of a produced file, kept so retention can
// delete the stored objects later.
type Conversion struct {
	ID        string
	IP        string
	Kind      ConversionKind
	UploadKey string
	OutputKey string
	CreatedAt time.Time
}

// MaxFilenameBytes caps sanitized names well under the 255-byte limit most
// filesystems and object stores put on a path component.
const MaxFilenameBytes = 200

// SanitizeFilename replaces spaces with underscores, drops any directory
// components the client sent and shortens the name to MaxFilenameBytes.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return truncateFilename(strings.ReplaceAll(name, " ", "_"), MaxFilenameBytes)
}

// truncateFilename shortens the stem so the whole name fits in limit bytes,
// keeping the extension and never splitting a UTF-8 sequence.
func truncateFilename(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	ext := path.Ext(name)
	if len(ext) > limit/4 {
		ext = ""
	}
	stem := name[:len(name)-len(ext)]
	n := limit - len(ext)
	for n > 0 && !utf8.RuneStart(stem[n]) {
		n--
	}
	return stem[:n] + ext
}

// OutputFilename derives the download name: everything before the last dot
// of the sanitized upload name, plus the kind's extension.
func OutputFilename(sanitized string, kind ConversionKind) string {
	stem := sanitized
	if i := strings.LastIndex(stem, "."); i > 0 {
		stem = stem[:i]
	}
	if stem == "" {
		stem = "converted"
	}
	return stem + "." + kind.Extension()
}
