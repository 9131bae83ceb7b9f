// Package objstore is a thin bucket abstraction over Google Cloud Storage,
// with an in-memory implementation for tests.
package objstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("object not found")

// ObjectInfo describes a stored object without its contents.
type ObjectInfo struct {
	Name    string
	Updated time.Time
}

// Store reads and writes whole objects. Batch jobs work file-at-a-time, so
// there is no streaming surface.
type Store interface {
	// List returns info for all objects in the bucket under prefix.
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	Download(ctx context.Context, bucket, name string) ([]byte, error)
	Upload(ctx context.Context, bucket, name, contentType string, data []byte) error
}
