package extraction

import (
	"context"
	"fmt"
	"os"

	"github.com/rodneygagnon/qckstrt/pkg/textextract"
)

// FileExtractor reads documents from the local filesystem.
type FileExtractor struct{}

func NewFileExtractor() *FileExtractor {
	return &FileExtractor{}
}

func (e *FileExtractor) Name() string { return "file" }

func (e *FileExtractor) Supports(in Input) bool {
	return in.Kind == KindFile && textextract.TypeFromPath(in.Path) != ""
}

func (e *FileExtractor) ExtractText(ctx context.Context, in Input) (*Result, error) {
	f, err := os.Open(in.Path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	extracted, err := textextract.Extract(f, info.Size(), textextract.TypeFromPath(in.Path))
	if err != nil {
		return nil, err
	}

	meta := extracted.Metadata
	meta["extractor"] = e.Name()
	meta["size_bytes"] = fmt.Sprint(info.Size())
	return &Result{Text: extracted.Content, Metadata: meta}, nil
}
