package extract

import (
	"bytes"
	"unicode/utf8"
)

// PlainText extracts .txt and .md files.
type PlainText struct{}

// Extract decodes the file as UTF-8, falling back to Latin-1 when the bytes
// are not valid UTF-8. A UTF-8 BOM is stripped.
func (p *PlainText) Extract(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	if utf8.Valid(data) {
		return string(data), nil
	}

	// Latin-1: every byte maps to the code point of the same value, so
	// decoding cannot fail.
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes), nil
}
