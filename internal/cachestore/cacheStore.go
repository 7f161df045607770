// Package cachestore implements the persistent, capacity-bounded local store
// for remote objects. The index maps remote paths to content-named local
// files and is rewritten wholesale after every mutation.
package cachestore

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"

	"github.com/soundmesh/streambox/pkg/contenthash"
)

func NewStore(options *Options) (*Store, error) {
	if options.MaxSize <= 0 || options.Dir == "" {
		return nil, ErrInvalidStoreOptions
	}

	if err := os.MkdirAll(options.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed creating cache dir: %w", err)
	}

	fileLock := flock.New(filepath.Join(options.Dir, lockFileName))
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed locking cache dir: %w", err)
	}
	if !locked {
		return nil, ErrStoreLocked
	}

	store := &Store{
		dir:      options.Dir,
		maxSize:  options.MaxSize,
		entries:  make(map[string]Entry),
		fileLock: fileLock,
	}

	// A corrupt or missing index is never fatal; start empty and let the
	// directory scan below clean up whatever is left on disk.
	store.loadIndex()
	store.pruneDanglingEntries()
	store.removeOrphanFiles()

	if store.size > store.maxSize {
		store.evict()
	}
	if err := store.persistIndex(); err != nil {
		fileLock.Unlock()
		return nil, fmt.Errorf("failed persisting index after load: %w", err)
	}

	return store, nil
}

// Close releases the cache directory lock. The store must not be used after.
func (s *Store) Close() error {
	if err := s.fileLock.Unlock(); err != nil {
		return fmt.Errorf("failed unlocking cache dir: %w", err)
	}
	return nil
}

// CachedPath returns the local path for key if the index has an entry and the
// backing file still exists. A dangling entry (file removed externally) is
// pruned from the index and reported as a miss. A hit refreshes the entry's
// last-access time.
func (s *Store) CachedPath(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if !exists {
		return "", false
	}

	localPath := filepath.Join(s.dir, entry.LocalName)
	if _, err := os.Stat(localPath); err != nil {
		slog.Warn("Cached file missing, pruning index entry", "key", key, "localName", entry.LocalName)
		s.dropEntry(key)
		if err := s.persistIndex(); err != nil {
			slog.Error("Failed persisting index after prune", "error", err)
		}
		return "", false
	}

	entry.LastAccessed = now()
	s.entries[key] = entry
	if err := s.persistIndex(); err != nil {
		slog.Error("Failed persisting index after access", "error", err)
	}

	return localPath, true
}

// Stat returns the index entry for key, if any.
func (s *Store) Stat(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	return entry, exists
}

// Add stores data under key. The local filename derives from a digest of the
// content, not the key, so re-uploads of identical bytes share a file. After
// the write, oversized stores evict least-recently-accessed entries and the
// index is persisted; if persisting fails the new entry is rolled back so the
// index never references state that was not committed.
func (s *Store) Add(key string, data []byte) error {
	localName := contenthash.SumBytes(data)[:localNamePrefixLen] + path.Ext(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeFile(localName, data); err != nil {
		return fmt.Errorf("failed writing cache file for %s: %w", key, err)
	}

	// Replacing a key whose content changed also retires the old file
	if old, exists := s.entries[key]; exists && old.LocalName != localName {
		s.dropEntry(key)
	} else if exists {
		s.size -= old.Size
		delete(s.entries, key)
	}

	s.entries[key] = Entry{
		LocalName:    localName,
		Size:         int64(len(data)),
		LastAccessed: now(),
	}
	s.size += int64(len(data))

	s.evict()

	if err := s.persistIndex(); err != nil {
		// Roll back so the on-disk index stays authoritative
		s.dropEntry(key)
		if retryErr := s.persistIndex(); retryErr != nil {
			slog.Error("Failed persisting index during rollback", "error", retryErr)
		}
		return fmt.Errorf("failed persisting index after add: %w", err)
	}

	return nil
}

// Remove deletes the entry and, unless shared with another key, its file.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists {
		return ErrEntryNotFound
	}

	s.dropEntry(key)
	if err := s.persistIndex(); err != nil {
		return fmt.Errorf("failed persisting index after remove: %w", err)
	}
	return nil
}

// Size returns the total bytes currently accounted to cached files.
func (s *Store) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// writeFile writes data to a temporary file in the cache dir and renames it
// into place, so a crash mid-write never leaves a half-written cached file.
func (s *Store) writeFile(localName string, data []byte) error {
	tmpFile, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed writing temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed syncing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(s.dir, localName)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed renaming temp file: %w", err)
	}
	return nil
}

// evict removes least-recently-accessed entries until the total size is at or
// below evictTargetRatio of MaxSize. Only runs when the budget is exceeded.
// A file that is already gone is logged and the entry still dropped.
func (s *Store) evict() {
	if s.size <= s.maxSize {
		return
	}

	target := int64(float64(s.maxSize) * evictTargetRatio)

	type keyedEntry struct {
		key   string
		entry Entry
	}
	sorted := make([]keyedEntry, 0, len(s.entries))
	for key, entry := range s.entries {
		sorted = append(sorted, keyedEntry{key, entry})
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].entry.LastAccessed.Before(sorted[j].entry.LastAccessed)
	})

	for _, candidate := range sorted {
		if s.size <= target {
			break
		}
		slog.Debug("Evicting cache entry", "key", candidate.key, "size", candidate.entry.Size)
		s.dropEntry(candidate.key)
	}
}

// dropEntry removes key from the index and deletes its backing file unless
// another key still references the same content file. Callers must hold mu.
func (s *Store) dropEntry(key string) {
	entry, exists := s.entries[key]
	if !exists {
		return
	}

	delete(s.entries, key)
	s.size -= entry.Size

	for _, other := range s.entries {
		if other.LocalName == entry.LocalName {
			return
		}
	}
	if err := os.Remove(filepath.Join(s.dir, entry.LocalName)); err != nil && !os.IsNotExist(err) {
		slog.Error("Failed removing cached file", "localName", entry.LocalName, "error", err)
	}
}
