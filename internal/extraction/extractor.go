package extraction

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/rodneygagnon/qckstrt/internal/errs"
)

// SourceKind is the shape of a document's source locator.
type SourceKind string

const (
	KindFile          SourceKind = "file"
	KindURL           SourceKind = "url"
	KindStorageObject SourceKind = "storage-object"
)

// Input describes where a document's raw bytes live.
type Input struct {
	Locator string
	Kind    SourceKind
	Path    string   // KindFile
	URL     *url.URL // KindURL
	Scheme  string   // KindStorageObject: "s3", "gs" or ""
	Bucket  string   // KindStorageObject
	Key     string   // KindStorageObject
}

// ParseInput classifies a source locator. Bare "bucket/key" locators are storage
// objects; a locator without a slash is a key in defaultBucket. Unknown URL
// schemes leave Kind empty, which no extractor supports.
func ParseInput(locator, defaultBucket string) Input {
	in := Input{Locator: locator}

	if u, err := url.Parse(locator); err == nil && u.Scheme != "" {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			in.Kind = KindURL
			in.URL = u
			return in
		case "file":
			in.Kind = KindFile
			in.Path = filepath.FromSlash(u.Path)
			return in
		case "s3", "gs":
			in.Kind = KindStorageObject
			in.Scheme = strings.ToLower(u.Scheme)
			in.Bucket = u.Host
			in.Key = strings.TrimPrefix(u.Path, "/")
			return in
		default:
			if len(u.Scheme) > 1 {
				return in
			}
		}
	}

	if filepath.IsAbs(locator) || strings.HasPrefix(locator, "./") || strings.HasPrefix(locator, "../") {
		in.Kind = KindFile
		in.Path = filepath.Clean(locator)
		return in
	}

	in.Kind = KindStorageObject
	if bucket, key, ok := strings.Cut(locator, "/"); ok && bucket != "" {
		in.Bucket, in.Key = bucket, key
	} else {
		in.Bucket, in.Key = defaultBucket, strings.TrimPrefix(locator, "/")
	}
	return in
}

// Result is the text pulled from a source plus provider metadata.
type Result struct {
	Text     string
	Metadata map[string]string
}

// Extractor turns one kind of source into text.
type Extractor interface {
	Name() string
	Supports(in Input) bool
	ExtractText(ctx context.Context, in Input) (*Result, error)
}

// Registry picks the first registered extractor that supports an input.
// Order of registration is the only priority.
type Registry struct {
	extractors []Extractor
}

func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors}
}

func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.extractors))
	for i, e := range r.extractors {
		names[i] = e.Name()
	}
	return names
}

// Select returns the extractor for in, or a NoExtractorFound ExtractionError.
func (r *Registry) Select(in Input) (Extractor, error) {
	for _, e := range r.extractors {
		if e.Supports(in) {
			return e, nil
		}
	}
	return nil, errs.NoExtractorFound(in.Locator)
}
