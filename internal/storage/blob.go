package storage

import (
	"context"
	"io"
)

// BlobStore is the subset of object storage the messaging core consumes.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	// List returns every key under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// URL returns a URL a client can fetch the object from.
	URL(ctx context.Context, key string) (string, error)
}
