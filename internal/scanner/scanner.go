// Package scanner finds files with identical content by hashing them
// concurrently and grouping paths by digest.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/soundmesh/streambox/pkg/contenthash"
)

const DefaultWorkers = 4

// File identifies one library file to scan.
type File struct {
	ID   string
	Path string
}

type Options struct {
	// Concurrent hashing workers; DefaultWorkers when unset
	Workers int
	// Directory for the digest memoization store; disabled when empty
	DigestCacheDir string
}

// Scanner hashes file sets on a bounded worker pool sized at construction.
// One Scanner is meant to be long-lived and reused across scans.
type Scanner struct {
	workers int
	digests *digestCache
}

func NewScanner(options *Options) *Scanner {
	workers := options.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	scanner := &Scanner{workers: workers}
	if options.DigestCacheDir != "" {
		scanner.digests = newDigestCache(options.DigestCacheDir)
	}
	return scanner
}

// FindDuplicates hashes every file concurrently and returns digest -> paths
// for digests shared by more than one file. An unreadable file is logged and
// excluded; it never aborts the scan. Path order within a group follows task
// completion and is not stable across runs, so callers must treat groups as
// sets.
func (s *Scanner) FindDuplicates(ctx context.Context, files []File) (map[string][]string, error) {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)

	var mu sync.Mutex
	byDigest := make(map[string][]string)

	for _, file := range files {
		file := file
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			digest, err := s.digestFile(file.Path)
			if err != nil {
				slog.Warn("Skipping unreadable file in duplicate scan", "id", file.ID, "path", file.Path, "error", err)
				return nil
			}

			mu.Lock()
			byDigest[digest] = append(byDigest[digest], file.Path)
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("duplicate scan aborted: %w", err)
	}

	duplicates := make(map[string][]string)
	for digest, paths := range byDigest {
		if len(paths) > 1 {
			duplicates[digest] = paths
		}
	}
	return duplicates, nil
}

// digestFile returns the content digest for path, consulting the memoization
// store first when one is configured.
func (s *Scanner) digestFile(path string) (string, error) {
	if s.digests == nil {
		return contenthash.Sum(path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed stating file: %w", err)
	}

	if digest, ok := s.digests.lookup(path, info); ok {
		return digest, nil
	}

	digest, err := contenthash.Sum(path)
	if err != nil {
		return "", err
	}
	s.digests.remember(path, info, digest)
	return digest, nil
}
