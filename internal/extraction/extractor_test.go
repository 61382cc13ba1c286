package extraction

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodneygagnon/qckstrt/internal/errs"
	"github.com/rodneygagnon/qckstrt/internal/storage"
)

func TestParseInput(t *testing.T) {
	tests := []struct {
		locator string
		kind    SourceKind
		bucket  string
		key     string
		path    string
	}{
		{locator: "https://example.com/policy", kind: KindURL},
		{locator: "file:///srv/docs/a.txt", kind: KindFile, path: filepath.FromSlash("/srv/docs/a.txt")},
		{locator: "/srv/docs/a.pdf", kind: KindFile, path: "/srv/docs/a.pdf"},
		{locator: "./a.md", kind: KindFile, path: "a.md"},
		{locator: "s3://uploads/u1/a.pdf", kind: KindStorageObject, bucket: "uploads", key: "u1/a.pdf"},
		{locator: "gs://uploads/a.docx", kind: KindStorageObject, bucket: "uploads", key: "a.docx"},
		{locator: "uploads/u1/a.txt", kind: KindStorageObject, bucket: "uploads", key: "u1/a.txt"},
		{locator: "a.txt", kind: KindStorageObject, bucket: "documents", key: "a.txt"},
	}

	for _, tt := range tests {
		in := ParseInput(tt.locator, "documents")
		assert.Equal(t, tt.kind, in.Kind, tt.locator)
		assert.Equal(t, tt.bucket, in.Bucket, tt.locator)
		assert.Equal(t, tt.key, in.Key, tt.locator)
		assert.Equal(t, tt.path, in.Path, tt.locator)
	}
}

type stubExtractor struct {
	name     string
	supports func(Input) bool
}

func (s stubExtractor) Name() string            { return s.name }
func (s stubExtractor) Supports(in Input) bool { return s.supports(in) }
func (s stubExtractor) ExtractText(context.Context, Input) (*Result, error) {
	return &Result{Text: s.name}, nil
}

func TestRegistrySelectFirstMatchWins(t *testing.T) {
	always := func(Input) bool { return true }
	never := func(Input) bool { return false }

	r := NewRegistry(stubExtractor{"a", never}, stubExtractor{"b", always})
	r.Register(stubExtractor{"c", always})

	e, err := r.Select(Input{Locator: "x"})
	require.NoError(t, err)
	assert.Equal(t, "b", e.Name())
	assert.Equal(t, []string{"a", "b", "c"}, r.Names())
}

func TestRegistryNoExtractor(t *testing.T) {
	r := NewRegistry(NewFileExtractor())

	_, err := r.Select(ParseInput("ftp://example.com/a.bin", ""))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindExtraction))
	assert.ErrorIs(t, err, errs.ErrNoExtractor)
}

func TestFileExtractor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("refunds within 30 days\n"), 0o600))

	e := NewFileExtractor()
	in := ParseInput(path, "")
	require.True(t, e.Supports(in))
	assert.False(t, e.Supports(ParseInput(filepath.Join(t.TempDir(), "image.png"), "")))

	res, err := e.ExtractText(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "refunds within 30 days", res.Text)
	assert.Equal(t, "file", res.Metadata["extractor"])
}

type memStorage map[string]string

func (m memStorage) Name() string { return "mem" }

func (m memStorage) Open(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	v, ok := m[bucket+"/"+key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(v)), nil
}

func TestObjectExtractor(t *testing.T) {
	e := NewObjectExtractor(memStorage{"uploads/u1/a.txt": "object body"})

	in := ParseInput("s3://uploads/u1/a.txt", "")
	require.True(t, e.Supports(in))
	assert.False(t, e.Supports(ParseInput("s3://uploads/u1/a.exe", "")))

	res, err := e.ExtractText(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "object body", res.Text)
	assert.Equal(t, "uploads", res.Metadata["bucket"])

	_, err = e.ExtractText(context.Background(), ParseInput("uploads/missing.txt", ""))
	assert.True(t, errors.Is(err, storage.ErrObjectNotFound))
}

func TestURLExtractorHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Refunds</title><script>track()</script></head>
<body><nav>Home | About</nav><main><h1>Refund policy</h1><p>Refunds are issued within <b>30 days</b>.</p></main></body></html>`))
	}))
	defer srv.Close()

	e := NewURLExtractor(0)
	in := ParseInput(srv.URL+"/refunds", "")
	require.True(t, e.Supports(in))

	res, err := e.ExtractText(context.Background(), in)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "# Refund policy")
	assert.Contains(t, res.Text, "**30 days**")
	assert.NotContains(t, res.Text, "track()")
	assert.NotContains(t, res.Text, "Home | About")
	assert.Equal(t, "Refunds", res.Metadata["title"])
}

func TestURLExtractorPlainTextAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("  just text  "))
		case "/image":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte{0x89, 0x50})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	e := NewURLExtractor(100)

	res, err := e.ExtractText(context.Background(), ParseInput(srv.URL+"/plain", ""))
	require.NoError(t, err)
	assert.Equal(t, "just text", res.Text)

	_, err = e.ExtractText(context.Background(), ParseInput(srv.URL+"/image", ""))
	assert.ErrorContains(t, err, "unsupported content type")

	_, err = e.ExtractText(context.Background(), ParseInput(srv.URL+"/gone", ""))
	assert.ErrorContains(t, err, "status 404")
}
