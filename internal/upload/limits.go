// Package upload defines the accepted file types and size limits for
// message attachments. The frontend fetches these values from
// /api/upload/config instead of duplicating them.
package upload

import (
	"sort"

	"github.com/knowsee/knowsee/internal/convert"
)

// Per-file size limit and files-per-message limit.
const (
	MaxFileSizeBytes = 10 * 1024 * 1024
	MaxFiles         = 5
)

// Types the model consumes directly, without conversion.
var nativeMIMETypes = map[string]struct{}{
	"image/png":       {},
	"image/jpeg":      {},
	"image/gif":       {},
	"image/webp":      {},
	"application/pdf": {},
	"text/plain":      {},
	"text/csv":        {},
	"text/markdown":   {},
	"text/html":       {},
}

// IsSupported reports whether a MIME type is accepted for upload,
// either natively or via document conversion.
func IsSupported(mimeType string) bool {
	if _, ok := nativeMIMETypes[mimeType]; ok {
		return true
	}
	return convert.NeedsConversion(mimeType)
}

// SupportedTypes returns the sorted list of accepted MIME types, used
// in error messages and the upload config endpoint.
func SupportedTypes() []string {
	types := make([]string, 0, len(nativeMIMETypes))
	for t := range nativeMIMETypes {
		types = append(types, t)
	}
	types = append(types, convert.ConvertibleTypes()...)
	sort.Strings(types)
	return types
}

// Config is the payload served by /api/upload/config.
type Config struct {
	MaxFileSizeBytes int      `json:"max_file_size_bytes"`
	MaxFiles         int      `json:"max_files"`
	SupportedTypes   []string `json:"supported_mime_types"`
}

// CurrentConfig returns the active upload constraints.
func CurrentConfig() Config {
	return Config{
		MaxFileSizeBytes: MaxFileSizeBytes,
		MaxFiles:         MaxFiles,
		SupportedTypes:   SupportedTypes(),
	}
}
