// Package storage keeps uploaded application documents and hands out
// time-limited download links for them.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore stores documents by key.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	// SignedURL returns a GET link for key valid for ttl.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
