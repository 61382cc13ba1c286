package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
)

// GCSStorage reads objects from Google Cloud Storage using application default credentials.
type GCSStorage struct {
	client *gcs.Client
}

func NewGCSStorage(ctx context.Context) (*GCSStorage, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStorage{client: client}, nil
}

func (s *GCSStorage) Name() string { return "gcs" }

func (s *GCSStorage) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
			return nil, fmt.Errorf("gs://%s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("open gs://%s/%s: %w", bucket, key, err)
	}
	return r, nil
}

func (s *GCSStorage) Close() error {
	return s.client.Close()
}
