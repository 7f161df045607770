package syncservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundmesh/streambox/internal/cachestore"
	"github.com/soundmesh/streambox/internal/remote/stubremote"
)

func newTestCache(t *testing.T) *cachestore.Store {
	t.Helper()

	cache, err := cachestore.NewStore(&cachestore.Options{
		Dir:     t.TempDir(),
		MaxSize: 1024 * 1024,
	})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	return cache
}

func TestSyncLibraryDownloadsMissingFiles(t *testing.T) {
	storage := stubremote.NewStorage()
	storage.Put("/music/a.mp3", []byte("track a"), time.Now())
	storage.Put("/music/b.mp3", []byte("track b"), time.Now())
	cache := newTestCache(t)

	svc := NewService(storage, cache, 2)
	summary, err := svc.SyncLibrary(context.Background(), "/music/", nil)
	require.NoError(t, err)

	assert.Equal(t, Summary{Synced: 2}, summary)
	_, ok := cache.CachedPath("/music/a.mp3")
	assert.True(t, ok)
	_, ok = cache.CachedPath("/music/b.mp3")
	assert.True(t, ok)
}

func TestSyncLibrarySkipsCachedFiles(t *testing.T) {
	storage := stubremote.NewStorage()
	storage.Put("/music/a.mp3", []byte("track a"), time.Now().Add(-time.Hour))
	cache := newTestCache(t)

	svc := NewService(storage, cache, 2)
	_, err := svc.SyncLibrary(context.Background(), "/music/", nil)
	require.NoError(t, err)

	summary, err := svc.SyncLibrary(context.Background(), "/music/", nil)
	require.NoError(t, err)

	assert.Equal(t, Summary{Skipped: 1}, summary)
	assert.Equal(t, 1, storage.DownloadCalls(), "cached file must not be re-downloaded")
}

func TestSyncLibraryRefetchesStaleFiles(t *testing.T) {
	storage := stubremote.NewStorage()
	storage.Put("/music/a.mp3", []byte("old bytes"), time.Now().Add(-time.Hour))
	cache := newTestCache(t)

	svc := NewService(storage, cache, 2)
	_, err := svc.SyncLibrary(context.Background(), "/music/", nil)
	require.NoError(t, err)

	// Remote copy modified after the cached entry was last touched
	storage.Put("/music/a.mp3", []byte("new bytes longer"), time.Now().Add(time.Hour))

	summary, err := svc.SyncLibrary(context.Background(), "/music/", nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{Synced: 1}, summary)

	entry, ok := cache.Stat("/music/a.mp3")
	require.True(t, ok)
	assert.Equal(t, int64(len("new bytes longer")), entry.Size)
}

func TestSyncLibraryCountsFailures(t *testing.T) {
	storage := stubremote.NewStorage()
	storage.Put("/music/a.mp3", []byte("track a"), time.Now())
	storage.DownloadErr = errors.New("throttled")
	cache := newTestCache(t)

	svc := NewService(storage, cache, 2)
	summary, err := svc.SyncLibrary(context.Background(), "/music/", nil)
	require.NoError(t, err, "per-file failures must not abort the sync")

	assert.Equal(t, Summary{Failed: 1}, summary)
}

func TestSyncLibraryReportsProgress(t *testing.T) {
	storage := stubremote.NewStorage()
	storage.Put("/a.mp3", []byte("a"), time.Now())
	storage.Put("/b.mp3", []byte("b"), time.Now())
	storage.Put("/c.mp3", []byte("c"), time.Now())
	cache := newTestCache(t)

	var calls int
	var lastDone, lastTotal int
	svc := NewService(storage, cache, 1)
	_, err := svc.SyncLibrary(context.Background(), "", func(done, total int) {
		calls++
		lastDone, lastTotal = done, total
	})
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, lastDone)
	assert.Equal(t, 3, lastTotal)
}

func TestSyncLibraryNoRemote(t *testing.T) {
	cache := newTestCache(t)

	svc := NewService(nil, cache, 2)
	_, err := svc.SyncLibrary(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrNoRemote)
}
