package textextract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		".PDF":                      "pdf",
		"application/pdf":           "pdf",
		"text/plain; charset=utf-8": "txt",
		"docx":                      "docx",
		".md":                       "md",
		"image/png":                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), in)
	}
	assert.Equal(t, "pdf", TypeFromPath("/tmp/reports/q3.pdf"))
	assert.Equal(t, "", TypeFromPath("/tmp/archive.tar.gz"))
}

func TestExtractTXT(t *testing.T) {
	data := []byte("  refund policy: 30 days\n\n")
	got, err := Extract(bytes.NewReader(data), int64(len(data)), ".txt")
	require.NoError(t, err)
	assert.Equal(t, "refund policy: 30 days", got.Content)
	assert.Equal(t, "txt", got.Metadata["type"])
}

func TestExtractDOCX(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<w:document><w:body><w:p><w:r><w:t>Hello</w:t></w:r></w:p><w:p><w:r><w:t>world</w:t></w:r></w:p></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	data := buf.Bytes()
	got, err := Extract(bytes.NewReader(data), int64(len(data)), "docx")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", got.Content)
}

func TestExtractDOCXWithoutBody(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	data := buf.Bytes()
	_, err = Extract(bytes.NewReader(data), int64(len(data)), "docx")
	assert.ErrorContains(t, err, "document.xml not found")
}

func TestExtractRejectsUnknownType(t *testing.T) {
	_, err := Extract(bytes.NewReader(nil), 0, "image/png")
	assert.ErrorContains(t, err, "unsupported file type")
}

func TestExtractInvalidPDF(t *testing.T) {
	data := []byte("not a pdf at all")
	_, err := Extract(bytes.NewReader(data), int64(len(data)), "pdf")
	assert.Error(t, err)
}
