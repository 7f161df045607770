package main

import (
	"log/slog"
	"time"
)

type RemoteConfig struct {
	Bucket string `env:"REMOTE_BUCKET"`           // S3 bucket holding the music library; remote features disabled when unset
	Prefix string `env:"REMOTE_PREFIX, default="` // Key prefix inside the bucket, e.g. music/
}

type CacheConfig struct {
	Path    string `env:"CACHE_PATH, default=.cache"`          // Directory for cached remote files and the index
	MaxSize int64  `env:"CACHE_MAX_SIZE, default=10737418240"` // Maximum total cache size in bytes (default 10 GiB)
}

type StreamConfig struct {
	BufferSize   int           `env:"STREAM_BUFFER_SIZE, default=10485760"` // Ring buffer capacity in bytes (default 10 MiB)
	ChunkSize    int           `env:"STREAM_CHUNK_SIZE, default=65536"`     // Remote read chunk size in bytes
	PollInterval time.Duration `env:"STREAM_POLL_INTERVAL, default=100ms"`  // Buffer top-up poll interval
	PlayKey      string        `env:"PLAY_KEY"`                             // Remote path to stream to stdout, then exit; Disabled when unset
}

type SyncConfig struct {
	OnStart bool   `env:"SYNC_ON_START, default=false"` // Sync the remote library into the cache at startup
	Prefix  string `env:"SYNC_PREFIX, default="`        // Remote prefix to sync
	Workers int    `env:"SYNC_WORKERS, default=4"`      // Concurrent download workers
}

type ScannerConfig struct {
	LibraryPath     string `env:"LIBRARY_PATH"`                                // Local library to scan for duplicate files; Disabled when unset
	Workers         int    `env:"SCANNER_WORKERS, default=4"`                  // Concurrent hashing workers
	DigestCachePath string `env:"SCANNER_DIGEST_CACHE_PATH, default=.digests"` // Directory for the digest memoization store; separate from CACHE_PATH
}

type LoggingConfig struct {
	Level slog.Level `env:"LOGLEVEL, default=INFO"` // Logging level, one of {DEBUG, INFO, WARN, ERROR}
}

type Config struct {
	Remote  RemoteConfig
	Cache   CacheConfig
	Stream  StreamConfig
	Sync    SyncConfig
	Scanner ScannerConfig
	Logging LoggingConfig
}
