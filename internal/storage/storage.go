// Package storage persists receipt files and hands back a durable path.
package storage

import (
	"context"
	"io"
)

// FileStore writes objects under a key. Put must not return until the object is durable.
type FileStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}
