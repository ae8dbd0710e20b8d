// Package convert turns office document uploads into Markdown the
// model can read directly. Modern zip-based formats (OpenXML and
// OpenDocument) are parsed from their XML parts; RTF is stripped of
// control codes.
package convert

import (
	"errors"
	"fmt"
	"strings"
)

// Result is a converted file ready for upload storage.
type Result struct {
	Content  []byte
	MIMEType string
	Filename string
}

// ErrUnsupported is returned for MIME types that need conversion but
// have no converter, such as legacy binary Office formats.
var ErrUnsupported = errors.New("unsupported document format")

const markdownMIME = "text/markdown"

// MIME types accepted for upload that are not model-readable as-is.
const (
	MIMEDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEXlsx = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEPptx = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

	MIMEDoc = "application/msword"
	MIMEXls = "application/vnd.ms-excel"
	MIMEPpt = "application/vnd.ms-powerpoint"

	MIMEOdt = "application/vnd.oasis.opendocument.text"
	MIMEOds = "application/vnd.oasis.opendocument.spreadsheet"
	MIMEOdp = "application/vnd.oasis.opendocument.presentation"

	MIMERtf     = "application/rtf"
	MIMETextRtf = "text/rtf"
)

var convertibleMIMETypes = map[string]struct{}{
	MIMEDocx:    {},
	MIMEXlsx:    {},
	MIMEPptx:    {},
	MIMEDoc:     {},
	MIMEXls:     {},
	MIMEPpt:     {},
	MIMEOdt:     {},
	MIMEOds:     {},
	MIMEOdp:     {},
	MIMERtf:     {},
	MIMETextRtf: {},
}

// NeedsConversion reports whether a MIME type must be converted before
// the model can consume it.
func NeedsConversion(mimeType string) bool {
	_, ok := convertibleMIMETypes[mimeType]
	return ok
}

// ConvertibleTypes returns the MIME types this package accepts,
// including the legacy formats that convert to an error message.
func ConvertibleTypes() []string {
	types := make([]string, 0, len(convertibleMIMETypes))
	for t := range convertibleMIMETypes {
		types = append(types, t)
	}
	return types
}

// Convert dispatches to the converter for the MIME type. Legacy binary
// Office formats return ErrUnsupported; callers should ask the user to
// re-save as the modern format.
func Convert(mimeType string, data []byte, filename string) (*Result, error) {
	switch mimeType {
	case MIMEDocx:
		return ConvertDocx(data, filename)
	case MIMEXlsx:
		return ConvertXlsx(data, filename)
	case MIMEPptx:
		return ConvertPptx(data, filename)
	case MIMEOdt:
		return ConvertOdt(data, filename)
	case MIMEOds:
		return ConvertOds(data, filename)
	case MIMEOdp:
		return ConvertOdp(data, filename)
	case MIMERtf, MIMETextRtf:
		return ConvertRtf(data, filename)
	case MIMEDoc, MIMEXls, MIMEPpt:
		return nil, fmt.Errorf("%w: %s (re-save in the modern Office format)", ErrUnsupported, mimeType)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, mimeType)
	}
}

// StripExtension removes the final extension from a filename.
func StripExtension(filename string) string {
	if idx := strings.LastIndex(filename, "."); idx >= 0 {
		return filename[:idx]
	}
	return filename
}

func markdownResult(content, filename string) *Result {
	return &Result{
		Content:  []byte(content),
		MIMEType: markdownMIME,
		Filename: StripExtension(filename) + ".md",
	}
}
