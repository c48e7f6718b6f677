// Package objstore provides a minimal key/value object storage abstraction
// with in-memory, filesystem and S3 backends. It backs the optional remote
// tier for encounter records and raw audio uploads.
package objstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no object exists under the given key.
var ErrNotFound = errors.New("object not found")

// ObjectStore reads and writes opaque byte objects addressed by key. Keys
// use forward slashes as path separators regardless of backend.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
