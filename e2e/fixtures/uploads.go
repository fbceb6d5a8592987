// Package fixtures builds evidence uploads that pass the intake's media type checks.
package fixtures

import "fmt"

const (
	FieldAadhaar     = "aadhaar"
	FieldPAN         = "pan"
	FieldVoiceSample = "voiceSample"
)

// Upload is one file part of a multipart request.
type Upload struct {
	Field       string
	ContentType string
	Data        []byte
}

var (
	pngHeader = []byte("\x89PNG\r\n\x1a\n")
	pdfHeader = []byte("%PDF-1.7\n")
	wavHeader = []byte("RIFF\x24\x00\x00\x00WAVEfmt ")
)

// For wraps content in the file format expected for field. Equal content yields
// equal bytes, hence an equal fingerprint.
func For(field string, content []byte) (Upload, error) {
	switch field {
	case FieldAadhaar:
		return Upload{Field: field, ContentType: "image/png", Data: concat(pngHeader, content)}, nil
	case FieldPAN:
		return Upload{Field: field, ContentType: "application/pdf", Data: concat(pdfHeader, content)}, nil
	case FieldVoiceSample:
		return Upload{Field: field, ContentType: "audio/wav", Data: concat(wavHeader, content)}, nil
	default:
		return Upload{}, fmt.Errorf("unknown upload field %q", field)
	}
}

func concat(header, content []byte) []byte {
	out := make([]byte, 0, len(header)+len(content))
	out = append(out, header...)
	return append(out, content...)
}
