package core

// streaming.go decodes CSV input as a stream without loading the file.
//
// Spreadsheet applications write CSV in a few encodings: plain UTF-8, UTF-8
// with a BOM (Excel's "CSV UTF-8"), and UTF-16 with a BOM ("Unicode text").
// NewTextReader accepts all three and yields UTF-8, replacing invalid bytes
// with U+FFFD so the CSV parser never sees broken sequences.

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NewTextReader wraps r so that a leading UTF-8 or UTF-16 BOM selects the
// decoding and is dropped; input without a BOM is read as UTF-8.
func NewTextReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// CountingReader counts the bytes read through it.
type CountingReader struct {
	r io.Reader
	n int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{r: r}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Count returns the bytes read so far.
func (c *CountingReader) Count() int64 {
	return c.n
}
