package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Open when the bucket has no such key.
var ErrObjectNotFound = errors.New("object not found")

// Storage reads raw uploaded objects. Writes happen outside this service.
type Storage interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Name() string
}
