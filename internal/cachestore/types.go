package cachestore

import (
	"errors"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

var (
	ErrInvalidStoreOptions = errors.New("invalid store settings")
	ErrStoreLocked         = errors.New("cache directory is locked by another process")
	ErrEntryNotFound       = errors.New("entry not found")
)

// Entry describes one cached remote object. Entries are owned exclusively by
// the Store; the index and the backing files are kept consistent on every
// mutation.
type Entry struct {
	LocalName    string    `json:"local_name"`
	Size         int64     `json:"size"`
	LastAccessed time.Time `json:"last_accessed"`
}

type Options struct {
	// Directory holding cached files and the index
	Dir string
	// Max total size of cached files in bytes
	MaxSize int64
}

// Store is a capacity-bounded persistent cache of remote objects, keyed by
// their remote path. Cached files are named after a prefix of their content
// digest plus the original extension. When the total size exceeds MaxSize,
// least-recently-accessed entries are evicted until the total drops to
// evictTargetRatio of MaxSize.
type Store struct {
	mu      sync.Mutex
	dir     string
	maxSize int64
	entries map[string]Entry
	// Sum of all entry sizes; kept in step with entries
	size     int64
	fileLock *flock.Flock
}

const (
	indexFileName = "index.json"
	lockFileName  = ".lock"

	// Digest prefix length for cached filenames, enough to make collisions
	// between distinct contents practically impossible
	localNamePrefixLen = 16

	// Eviction drains to 90% of MaxSize instead of exactly 100%, so a write
	// near the boundary does not evict on every subsequent add
	evictTargetRatio = 0.9
)
