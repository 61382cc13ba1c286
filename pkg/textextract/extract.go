package textextract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

type ExtractedText struct {
	Content  string
	Pages    int
	Metadata map[string]string
}

// Normalize maps a file extension or MIME type onto one of the supported type names.
func Normalize(fileType string) string {
	ft := strings.ToLower(strings.TrimSpace(fileType))
	if i := strings.Index(ft, ";"); i >= 0 {
		ft = strings.TrimSpace(ft[:i])
	}
	switch ft {
	case ".pdf", "pdf", "application/pdf":
		return "pdf"
	case ".docx", "docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx"
	case ".txt", "txt", "text/plain":
		return "txt"
	case ".md", "md", ".markdown", "text/markdown":
		return "md"
	default:
		return ""
	}
}

// TypeFromPath returns the supported type name for path's extension, or "".
func TypeFromPath(path string) string {
	return Normalize(filepath.Ext(path))
}

func Supported(fileType string) bool {
	return Normalize(fileType) != ""
}

func Extract(data io.ReaderAt, size int64, fileType string) (*ExtractedText, error) {
	switch Normalize(fileType) {
	case "pdf":
		return extractPDF(data, size)
	case "docx":
		return extractDOCX(data, size)
	case "txt", "md":
		return extractTXT(data, size, Normalize(fileType))
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
}

func SupportedTypes() []string {
	return []string{".pdf", ".docx", ".txt", ".md"}
}

func extractPDF(data io.ReaderAt, size int64) (*ExtractedText, error) {
	// pdfcpu validates the structure and gives a reliable page count;
	// ledongthuc/pdf does the text layout.
	pageCount, err := api.PageCount(io.NewSectionReader(data, 0, size), nil)
	if err != nil {
		return nil, fmt.Errorf("read PDF structure: %w", err)
	}

	reader, err := pdf.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}

	return &ExtractedText{
		Content: strings.TrimSpace(buf.String()),
		Pages:   pageCount,
		Metadata: map[string]string{
			"type":  "pdf",
			"pages": strconv.Itoa(pageCount),
		},
	}, nil
}

func extractDOCX(data io.ReaderAt, size int64) (*ExtractedText, error) {
	reader, err := zip.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}

	var text string
	found := false
	for _, f := range reader.File {
		if f.Name != "word/document.xml" && filepath.Base(f.Name) != "document.xml" {
			continue
		}
		text, err = readZipText(f)
		if err != nil {
			return nil, err
		}
		found = true
		break
	}
	if !found {
		return nil, fmt.Errorf("open DOCX: document.xml not found")
	}

	return &ExtractedText{
		Content: text,
		Pages:   1,
		Metadata: map[string]string{
			"type": "docx",
		},
	}, nil
}

func readZipText(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Name, err)
	}
	return stripXMLTags(string(content)), nil
}

func extractTXT(data io.ReaderAt, size int64, kind string) (*ExtractedText, error) {
	buf := make([]byte, size)
	_, err := data.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read %s: %w", kind, err)
	}

	return &ExtractedText{
		Content: string(bytes.TrimSpace(buf)),
		Pages:   1,
		Metadata: map[string]string{
			"type": kind,
		},
	}, nil
}

func stripXMLTags(s string) string {
	var result strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			result.WriteRune(' ')
		case !inTag:
			result.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(result.String()), " ")
}
