package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound means the blob behind a storage key is gone.
var ErrNotFound = errors.New("blob not found")

// Store is the blob backend the service writes uploads to and streams
// downloads from. Durability, replication and scanning are the
// backend's problem; callers only get these three operations.
type Store interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
