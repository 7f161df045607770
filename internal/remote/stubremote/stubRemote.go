// Package stubremote provides an in-memory remote.Storage for tests and
// local development.
package stubremote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"sync"
	"time"

	"github.com/soundmesh/streambox/internal/remote"
)

var ErrObjectNotFound = errors.New("object not found")

type object struct {
	data     []byte
	modified time.Time
}

// Storage keeps objects in memory and records access so tests can assert on
// network activity. Error injection covers both download shapes.
type Storage struct {
	mu      sync.Mutex
	objects map[string]object

	// Injected failures; returned verbatim when set
	StreamErr   error
	DownloadErr error
	// Readers fail with ReadErr after ReadErrAfter bytes when ReadErr is set
	ReadErr      error
	ReadErrAfter int
	// Cap on bytes returned per stream read; unlimited when 0
	MaxReadSize int

	streamOpens   int
	downloadCalls int
}

func NewStorage() *Storage {
	return &Storage{
		objects: make(map[string]object),
	}
}

func (s *Storage) Put(remotePath string, data []byte, modified time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[remotePath] = object{data: data, modified: modified}
}

func (s *Storage) StreamOpens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamOpens
}

func (s *Storage) DownloadCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloadCalls
}

func (s *Storage) List(ctx context.Context, prefix string, recursive bool) ([]remote.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var files []remote.FileInfo
	for remotePath, obj := range s.objects {
		if len(prefix) > 0 && !hasPrefix(remotePath, prefix) {
			continue
		}
		files = append(files, remote.FileInfo{
			Name:     path.Base(remotePath),
			Path:     remotePath,
			Size:     int64(len(obj.data)),
			Modified: obj.modified,
		})
	}
	return files, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func (s *Storage) OpenStream(ctx context.Context, remotePath string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.streamOpens++
	if s.StreamErr != nil {
		return nil, s.StreamErr
	}

	obj, exists := s.objects[remotePath]
	if !exists {
		return nil, ErrObjectNotFound
	}

	return &stubReader{
		reader:    bytes.NewReader(obj.data),
		maxRead:   s.MaxReadSize,
		failErr:   s.ReadErr,
		failAfter: s.ReadErrAfter,
	}, nil
}

func (s *Storage) Download(ctx context.Context, remotePath string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.downloadCalls++
	if s.DownloadErr != nil {
		return nil, s.DownloadErr
	}

	obj, exists := s.objects[remotePath]
	if !exists {
		return nil, ErrObjectNotFound
	}

	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, nil
}

type stubReader struct {
	reader    *bytes.Reader
	maxRead   int
	failErr   error
	failAfter int
	read      int
}

func (r *stubReader) Read(p []byte) (int, error) {
	if r.failErr != nil && r.read >= r.failAfter {
		return 0, r.failErr
	}
	if r.maxRead > 0 && len(p) > r.maxRead {
		p = p[:r.maxRead]
	}
	n, err := r.reader.Read(p)
	r.read += n
	return n, err
}

func (r *stubReader) Close() error {
	return nil
}
