package onepage

import (
	"bytes"
	"encoding/base64"
	"io"
	"os"
)

// Result holds the single-page PDF found by a search together with the
// height it was rendered at and the trace of renders that led there.
//
// It is safe to call its methods multiple times; the underlying data is
// never modified.
type Result struct {
	data   []byte
	width  float64
	height int
	probes []Probe
}

// Height returns the page height, in renderer paper units, of the returned
// document. It is the smallest height confirmed to render as one page.
func (r *Result) Height() int {
	return r.height
}

// Width returns the paper width the document was rendered at.
func (r *Result) Width() float64 {
	return r.width
}

// Probes returns the renders performed, in order.
func (r *Result) Probes() []Probe {
	return append([]Probe(nil), r.probes...)
}

// Renders returns how many times the oracle was called.
func (r *Result) Renders() int {
	return len(r.probes)
}

// Bytes returns the raw PDF content.
func (r *Result) Bytes() []byte {
	return r.data
}

// Base64 returns the PDF encoded as a standard base64 string (RFC 4648).
func (r *Result) Base64() string {
	return base64.StdEncoding.EncodeToString(r.data)
}

// Reader returns an [*bytes.Reader] over the PDF content.
func (r *Result) Reader() *bytes.Reader {
	return bytes.NewReader(r.data)
}

// WriteTo writes the full PDF content to w. It implements [io.WriterTo].
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.data)
	return int64(n), err
}

// WriteToFile writes the PDF to the file at path, creating it if needed.
func (r *Result) WriteToFile(path string, perm os.FileMode) error {
	return os.WriteFile(path, r.data, perm)
}

// Len returns the size of the PDF in bytes.
func (r *Result) Len() int {
	return len(r.data)
}
