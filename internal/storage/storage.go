// Package storage defines the blob store used to persist shop session state
// between runs.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by GetObject for a path that was never written.
var ErrNotFound = errors.New("object not found")

// BlobStore reads and writes opaque objects by path.
type BlobStore interface {
	// PutObject stores data at path and returns a URI describing its location.
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	// GetObject returns the bytes stored at path or ErrNotFound.
	GetObject(ctx context.Context, path string) ([]byte, error)
}
