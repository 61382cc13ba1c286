package extraction

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/rodneygagnon/qckstrt/internal/storage"
	"github.com/rodneygagnon/qckstrt/pkg/textextract"
)

const maxObjectBytes = 64 << 20

// ObjectExtractor downloads storage objects and parses them by key extension.
type ObjectExtractor struct {
	store storage.Storage
}

func NewObjectExtractor(store storage.Storage) *ObjectExtractor {
	return &ObjectExtractor{store: store}
}

func (e *ObjectExtractor) Name() string { return "storage:" + e.store.Name() }

func (e *ObjectExtractor) Supports(in Input) bool {
	return in.Kind == KindStorageObject && in.Bucket != "" && in.Key != "" &&
		textextract.TypeFromPath(in.Key) != ""
}

func (e *ObjectExtractor) ExtractText(ctx context.Context, in Input) (*Result, error) {
	rc, err := e.store.Open(ctx, in.Bucket, in.Key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	if len(data) > maxObjectBytes {
		return nil, fmt.Errorf("object %s/%s exceeds %d bytes", in.Bucket, in.Key, maxObjectBytes)
	}

	extracted, err := textextract.Extract(bytes.NewReader(data), int64(len(data)), textextract.TypeFromPath(in.Key))
	if err != nil {
		return nil, err
	}

	meta := extracted.Metadata
	meta["extractor"] = e.Name()
	meta["bucket"] = in.Bucket
	meta["key"] = in.Key
	return &Result{Text: extracted.Content, Metadata: meta}, nil
}
