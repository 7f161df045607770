// Package syncservice downloads remote library objects into the local cache
// ahead of playback, so a whole library can be made available offline.
package syncservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/soundmesh/streambox/internal/cachestore"
	"github.com/soundmesh/streambox/internal/remote"
)

const DefaultWorkers = 4

var ErrNoRemote = errors.New("no remote storage configured")

// Progress is invoked after each file is handled, with how many of the listed
// files are done so far.
type Progress func(done, total int)

// Summary reports the outcome of one library sync.
type Summary struct {
	Synced  int
	Skipped int
	Failed  int
}

type Service struct {
	remote  remote.Storage
	cache   *cachestore.Store
	workers int
}

func NewService(storage remote.Storage, cache *cachestore.Store, workers int) *Service {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Service{
		remote:  storage,
		cache:   cache,
		workers: workers,
	}
}

// SyncLibrary lists every object under prefix and downloads the ones that are
// not cached yet, or whose remote copy is newer than the cached entry. Files
// download on a bounded worker pool; a per-file failure is logged and counted
// but never aborts the sync.
func (s *Service) SyncLibrary(ctx context.Context, prefix string, progress Progress) (Summary, error) {
	if s.remote == nil {
		return Summary{}, ErrNoRemote
	}

	files, err := s.remote.List(ctx, prefix, true)
	if err != nil {
		return Summary{}, fmt.Errorf("failed listing remote library: %w", err)
	}

	var (
		mu      sync.Mutex
		summary Summary
		done    int
	)
	report := func(update func()) {
		mu.Lock()
		update()
		done++
		current := done
		mu.Unlock()
		if progress != nil {
			progress(current, len(files))
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)

	for _, file := range files {
		file := file
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			if !s.needsSync(file) {
				report(func() { summary.Skipped++ })
				return nil
			}

			data, err := s.remote.Download(ctx, file.Path)
			if err != nil {
				slog.Error("Failed downloading file during sync", "path", file.Path, "error", err)
				report(func() { summary.Failed++ })
				return nil
			}
			if err := s.cache.Add(file.Path, data); err != nil {
				slog.Error("Failed caching file during sync", "path", file.Path, "error", err)
				report(func() { summary.Failed++ })
				return nil
			}

			report(func() { summary.Synced++ })
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return summary, fmt.Errorf("sync aborted: %w", err)
	}

	slog.Info("Library sync complete", "synced", summary.Synced, "skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

// needsSync reports whether file is absent from the cache or remotely newer
// than the cached entry's last access. Comparing against last access mirrors
// the index's data model; a remote object modified after the last local touch
// is re-fetched.
func (s *Service) needsSync(file remote.FileInfo) bool {
	entry, exists := s.cache.Stat(file.Path)
	if !exists {
		return true
	}
	if _, ok := s.cache.CachedPath(file.Path); !ok {
		// Stat hit but backing file gone; CachedPath pruned it
		return true
	}
	return file.Modified.After(entry.LastAccessed)
}
