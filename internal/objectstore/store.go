// Package objectstore issues time-limited retrieval URLs for stored objects
// and writes new objects.
package objectstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Ping when the bucket does not exist.
var ErrNotFound = errors.New("bucket not found")

// Store is the object storage collaborator.
type Store interface {
	// RetrievalURL returns a URL that downloads bucket/key for ttl. When
	// filename is set the download is served as an attachment with that name.
	RetrievalURL(ctx context.Context, bucket, key string, ttl time.Duration, filename string) (string, error)
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Ping(ctx context.Context, bucket string) error
}
