// Package remote defines the object-storage backend the streaming and sync
// layers pull from. The backend's own protocol and authentication are out of
// scope here; implementations only need listing and the two download shapes.
package remote

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrNotConnected = errors.New("remote storage not connected")

// FileInfo describes one object in the remote store.
type FileInfo struct {
	Name     string
	Path     string
	Size     int64
	Modified time.Time
}

// Storage is the opaque remote backend.
type Storage interface {
	// List returns objects under prefix, optionally descending into
	// sub-prefixes.
	List(ctx context.Context, prefix string, recursive bool) ([]FileInfo, error)

	// OpenStream opens a chunked read handle for the object at path. The
	// caller reads until exhaustion and must close the handle.
	OpenStream(ctx context.Context, path string) (io.ReadCloser, error)

	// Download fetches the complete object content.
	Download(ctx context.Context, path string) ([]byte, error)
}
