package main

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/soundmesh/streambox/internal/cachestore"
	"github.com/soundmesh/streambox/internal/playback/pipesink"
	"github.com/soundmesh/streambox/internal/remote"
	"github.com/soundmesh/streambox/internal/remote/s3remote"
	"github.com/soundmesh/streambox/internal/scanner"
	"github.com/soundmesh/streambox/internal/service/streamservice"
	"github.com/soundmesh/streambox/internal/service/syncservice"
	"github.com/soundmesh/streambox/pkg/shutdownmanager"
)

var audioExtensions = map[string]struct{}{
	".mp3": {}, ".flac": {}, ".ogg": {}, ".m4a": {}, ".wav": {}, ".aac": {}, ".opus": {},
}

func main() {
	manager := shutdownmanager.NewManager(10 * time.Second)
	ctx := manager.Context()

	var config Config
	if err := envconfig.Process(ctx, &config); err != nil {
		slog.Error("Failed loading config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.Logging.Level,
	})))

	cache, err := cachestore.NewStore(&cachestore.Options{
		Dir:     config.Cache.Path,
		MaxSize: config.Cache.MaxSize,
	})
	if err != nil {
		slog.Error("Failed opening cache store", "path", config.Cache.Path, "error", err)
		os.Exit(1)
	}
	defer cache.Close()

	var storage remote.Storage
	if config.Remote.Bucket != "" {
		s3Storage, err := s3remote.NewStorage(ctx, config.Remote.Bucket, config.Remote.Prefix)
		if err != nil {
			slog.Error("Failed connecting to remote storage", "bucket", config.Remote.Bucket, "error", err)
			os.Exit(1)
		}
		storage = s3Storage
		slog.Info("Connected to remote storage", "bucket", config.Remote.Bucket, "prefix", config.Remote.Prefix)
	}

	if config.Scanner.LibraryPath != "" {
		reportDuplicates(manager, &config)
	}

	if config.Sync.OnStart {
		syncLibrary(manager, &config, storage, cache)
	}

	if config.Stream.PlayKey != "" {
		playToStdout(manager, &config, storage, cache)
	}

	manager.Shutdown()
}

// reportDuplicates scans the local library and logs groups of files with
// identical content.
func reportDuplicates(manager *shutdownmanager.Manager, config *Config) {
	files, err := collectAudioFiles(config.Scanner.LibraryPath)
	if err != nil {
		slog.Error("Failed walking library", "path", config.Scanner.LibraryPath, "error", err)
		return
	}
	slog.Info("Scanning library for duplicates", "files", len(files))

	libraryScanner := scanner.NewScanner(&scanner.Options{
		Workers:        config.Scanner.Workers,
		DigestCacheDir: config.Scanner.DigestCachePath,
	})
	groups, err := libraryScanner.FindDuplicates(manager.Context(), files)
	if err != nil {
		slog.Error("Duplicate scan failed", "error", err)
		return
	}

	for digest, paths := range groups {
		slog.Info("Duplicate content", "digest", digest[:16], "count", len(paths), "paths", strings.Join(paths, ", "))
	}
	slog.Info("Duplicate scan complete", "groups", len(groups))
}

func collectAudioFiles(root string) ([]scanner.File, error) {
	var files []scanner.File
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if _, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]; ok {
			files = append(files, scanner.File{ID: path, Path: path})
		}
		return nil
	})
	return files, err
}

func syncLibrary(manager *shutdownmanager.Manager, config *Config, storage remote.Storage, cache *cachestore.Store) {
	sync := syncservice.NewService(storage, cache, config.Sync.Workers)
	summary, err := sync.SyncLibrary(manager.Context(), config.Sync.Prefix, func(done, total int) {
		slog.Debug("Sync progress", "done", done, "total", total)
	})
	if err != nil {
		slog.Error("Library sync failed", "error", err)
		return
	}
	slog.Info("Library sync finished", "synced", summary.Synced, "skipped", summary.Skipped, "failed", summary.Failed)
}

// playToStdout streams one object to stdout, for piping into an external
// player. Starts from cache when possible, otherwise streams while the
// background download fills the cache.
func playToStdout(manager *shutdownmanager.Manager, config *Config, storage remote.Storage, cache *cachestore.Store) {
	sink := pipesink.NewSink(os.Stdout)
	streamer := streamservice.NewService(storage, cache, sink, &streamservice.Options{
		BufferSize:   config.Stream.BufferSize,
		ChunkSize:    config.Stream.ChunkSize,
		PollInterval: config.Stream.PollInterval,
	})
	defer streamer.Shutdown()

	if err := streamer.Start(manager.Context(), config.Stream.PlayKey); err != nil {
		slog.Error("Failed starting stream", "key", config.Stream.PlayKey, "error", err)
		return
	}

	manager.Defer(sink.Stop)
	sink.Wait()
}
