package utils

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const defaultImageExt = "jpg"

// IsImageContentType reports whether ct is an image/* media type.
func IsImageContentType(ct string) bool {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mediaType = strings.TrimSpace(ct)
	}
	return strings.HasPrefix(strings.ToLower(mediaType), "image/")
}

// ImageExtension picks the object extension from the uploaded filename,
// then from the content type, falling back to jpg.
func ImageExtension(filename, contentType string) string {
	if ext := strings.TrimPrefix(filepath.Ext(filename), "."); ext != "" {
		return strings.ToLower(ext)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return defaultImageExt
	}
	if m := mimetype.Lookup(mediaType); m != nil {
		if ext := strings.TrimPrefix(m.Extension(), "."); ext != "" {
			return ext
		}
	}
	return defaultImageExt
}

// NormalizeRFID trims surrounding whitespace. Card ids are compared verbatim otherwise.
func NormalizeRFID(id string) string {
	return strings.TrimSpace(id)
}
