package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDocx assembles a minimal .docx archive around the given
// word/document.xml payload.
func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(documentXML))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	return buf.Bytes()
}

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second</w:t></w:r><w:r><w:t xml:space="preserve"> paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestDocx_Extract(t *testing.T) {
	d := &Docx{}

	text, err := d.Extract(buildDocx(t, docxBody))
	require.NoError(t, err)
	assert.Contains(t, text, "First paragraph.")
	assert.Contains(t, text, "Second paragraph.")
	assert.Less(t, bytes.IndexByte([]byte(text), 'F'), bytes.IndexByte([]byte(text), 'S'))
}

func TestDocx_ParagraphsSeparated(t *testing.T) {
	d := &Docx{}

	text, err := d.Extract(buildDocx(t, docxBody))
	require.NoError(t, err)
	assert.Contains(t, text, "First paragraph.\n")
}

func TestDocx_TabsAndBreaks(t *testing.T) {
	d := &Docx{}
	body := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>a</w:t><w:tab/><w:t>b</w:t><w:br/><w:t>c</w:t></w:r></w:p>
  </w:body>
</w:document>`

	text, err := d.Extract(buildDocx(t, body))
	require.NoError(t, err)
	assert.Contains(t, text, "a\tb\nc")
}

func TestDocx_NotAZip(t *testing.T) {
	d := &Docx{}

	_, err := d.Extract([]byte("this is not a zip archive"))
	assert.True(t, errors.Is(err, ErrCorruptFile))
}

func TestDocx_MissingDocumentXML(t *testing.T) {
	d := &Docx{}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/styles.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte("<styles/>"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = d.Extract(buf.Bytes())
	assert.True(t, errors.Is(err, ErrCorruptFile))
}

func TestManager_ExtractDocx(t *testing.T) {
	m := NewManager()

	text, format, err := m.Extract("report.docx", buildDocx(t, docxBody))
	require.NoError(t, err)
	assert.Equal(t, ".docx", format)
	assert.Contains(t, text, "First paragraph.")
}
