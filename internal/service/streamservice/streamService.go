// Package streamservice orchestrates playback of remote objects: cache
// lookup, ring-buffer pre-fill from a chunked remote read, top-up while the
// sink consumes, and a concurrent full download that populates the cache for
// the next play.
package streamservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/soundmesh/streambox/internal/cachestore"
	"github.com/soundmesh/streambox/internal/playback"
	"github.com/soundmesh/streambox/internal/remote"
	"github.com/soundmesh/streambox/pkg/ringbuffer"
)

var ErrNoRemote = errors.New("no remote storage configured")

const (
	DefaultBufferSize   = 10 * 1024 * 1024
	DefaultChunkSize    = 64 * 1024
	DefaultPollInterval = 100 * time.Millisecond

	// Buffer occupancy thresholds steering producer activity
	highWaterRatio = 0.8
	lowWaterRatio  = 0.2
)

type Options struct {
	// Ring buffer capacity in bytes; DefaultBufferSize when unset
	BufferSize int
	// Remote read granularity in bytes; DefaultChunkSize when unset
	ChunkSize int
	// Top-up poll interval; DefaultPollInterval when unset. Stopping a
	// session wakes the top-up loop immediately via context cancellation, so
	// shutdown latency is bounded by one in-flight chunk read, not by this
	// interval.
	PollInterval time.Duration
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return opts
}

type Service struct {
	mu      sync.Mutex
	remote  remote.Storage
	cache   *cachestore.Store
	sink    playback.Sink
	opts    Options
	session *session
	// Background full downloads outlive their session: a skipped track still
	// gets cached for the next play
	downloads sync.WaitGroup
}

func NewService(storage remote.Storage, cache *cachestore.Store, sink playback.Sink, options *Options) *Service {
	return &Service{
		remote: storage,
		cache:  cache,
		sink:   sink,
		opts:   options.withDefaults(),
	}
}

// session is the state of one playback stream. Exactly one may be live at a
// time; starting a new one stops its predecessor.
type session struct {
	key    string
	buffer *ringbuffer.RingBuffer
	reader *ringbuffer.Reader
	// Chunked remote handle; owned by the top-up goroutine once one is
	// spawned, otherwise closed during Start
	stream      io.ReadCloser
	streamEnded bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	stopOnce    sync.Once
}

// Start begins playback for key. A cache hit plays the local file directly
// and engages neither buffer nor network. On a miss the ring buffer is
// pre-filled to the high-water mark before the sink is handed the stream;
// afterwards a top-up loop keeps the buffer filled and a background download
// caches the complete object for subsequent plays.
func (s *Service) Start(ctx context.Context, key string) error {
	if s.remote == nil {
		return ErrNoRemote
	}

	// Single-session invariant
	s.Stop()

	if path, ok := s.cache.CachedPath(key); ok {
		slog.Info("Cache hit, playing local file", "key", key, "path", path)
		if err := s.sink.PlayFile(path); err != nil {
			return fmt.Errorf("failed starting cached playback for %s: %w", key, err)
		}
		return nil
	}

	slog.Debug("Cache miss, opening remote stream", "key", key)
	stream, err := s.remote.OpenStream(ctx, key)
	if err != nil {
		return fmt.Errorf("failed opening remote stream for %s: %w", key, err)
	}

	buffer, err := ringbuffer.New(s.opts.BufferSize)
	if err != nil {
		stream.Close()
		return fmt.Errorf("failed creating stream buffer: %w", err)
	}

	sess := &session{
		key:    key,
		buffer: buffer,
		reader: buffer.Reader(),
		stream: stream,
	}

	if err := s.prefill(sess); err != nil {
		stream.Close()
		return fmt.Errorf("failed pre-filling buffer for %s: %w", key, err)
	}

	if err := s.sink.PlayStream(sess.reader); err != nil {
		stream.Close()
		return fmt.Errorf("failed starting stream playback for %s: %w", key, err)
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	sess.cancel = cancel

	if sess.streamEnded {
		// Whole object fit into the buffer during pre-fill
		stream.Close()
		sess.stream = nil
	} else {
		sess.wg.Add(1)
		go s.topUp(sessionCtx, sess)
	}

	s.downloads.Add(1)
	go s.backgroundDownload(sess.key)

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	slog.Info("Streaming started", "key", key, "buffered", buffer.Available())
	return nil
}

// prefill pulls chunks from the remote handle until the buffer reaches the
// high-water mark or the handle is exhausted. Any read error here aborts the
// session start.
func (s *Service) prefill(sess *session) error {
	highWater := int(float64(sess.buffer.Capacity()) * highWaterRatio)
	chunk := make([]byte, s.opts.ChunkSize)

	for sess.buffer.Available() < highWater {
		// Bound each read by the free space so nothing read is ever dropped;
		// only this goroutine shrinks the free space
		limit := sess.buffer.Free()
		if limit == 0 {
			break
		}
		if limit > len(chunk) {
			limit = len(chunk)
		}

		n, err := sess.stream.Read(chunk[:limit])
		if n > 0 {
			if _, writeErr := sess.buffer.Write(chunk[:n]); writeErr != nil {
				return fmt.Errorf("failed buffering chunk: %w", writeErr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				sess.streamEnded = true
				sess.reader.CloseSource()
				return nil
			}
			return fmt.Errorf("failed reading remote chunk: %w", err)
		}
	}
	return nil
}

// topUp keeps the buffer filled while the sink consumes. It polls occupancy
// and refills toward the high-water mark whenever it drops below the
// low-water mark. Remote errors degrade to buffer starvation and are logged;
// they never terminate the process.
func (s *Service) topUp(ctx context.Context, sess *session) {
	defer sess.wg.Done()
	defer func() {
		if sess.stream != nil {
			sess.stream.Close()
		}
	}()

	highWater := int(float64(sess.buffer.Capacity()) * highWaterRatio)
	lowWater := int(float64(sess.buffer.Capacity()) * lowWaterRatio)
	chunk := make([]byte, s.opts.ChunkSize)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !s.sink.IsActive() {
			continue
		}
		if sess.buffer.Available() >= lowWater {
			continue
		}

		for sess.buffer.Available() < highWater {
			limit := sess.buffer.Free()
			if limit == 0 {
				break
			}
			if limit > len(chunk) {
				limit = len(chunk)
			}

			n, err := sess.stream.Read(chunk[:limit])
			if n > 0 {
				if _, writeErr := sess.buffer.Write(chunk[:n]); writeErr != nil {
					slog.Error("Failed buffering top-up chunk", "key", sess.key, "error", writeErr)
					break
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					slog.Debug("Remote stream exhausted", "key", sess.key)
					sess.reader.CloseSource()
					return
				}
				slog.Error("Top-up read failed, playback may stall", "key", sess.key, "error", err)
				break
			}
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// backgroundDownload fetches the complete object and adds it to the cache so
// the next play of key is a cache hit, regardless of whether the current
// stream finishes or is skipped. Failure skips caching for this play and
// nothing else. Runs detached from the session so stopping playback does not
// abort it.
func (s *Service) backgroundDownload(key string) {
	defer s.downloads.Done()

	data, err := s.remote.Download(context.Background(), key)
	if err != nil {
		slog.Error("Background download failed, skipping cache", "key", key, "error", err)
		return
	}

	if err := s.cache.Add(key, data); err != nil {
		slog.Error("Failed caching downloaded object", "key", key, "error", err)
		return
	}
	slog.Debug("Cached object for future plays", "key", key, "size", len(data))
}

// Stop terminates the live session, if any. It is idempotent, releases the
// remote handle and leaves the buffer empty. The sink itself is not touched;
// the caller owns playback controls.
func (s *Service) Stop() {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()

	if sess == nil {
		return
	}

	sess.stopOnce.Do(func() {
		sess.cancel()
		sess.wg.Wait()
		sess.buffer.Reset()
		sess.reader.CloseSource()
		slog.Info("Streaming stopped", "key", sess.key)
	})
}

// Streaming reports whether a session is currently live.
func (s *Service) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// Shutdown stops the live session and waits for detached background
// downloads to finish, so index writes are never cut off mid-persist.
func (s *Service) Shutdown() {
	s.Stop()
	s.downloads.Wait()
}
