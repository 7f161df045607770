// Package pipesink implements playback.Sink by copying audio bytes to an
// io.Writer, typically stdout for piping into an external player.
package pipesink

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

type Sink struct {
	w io.Writer

	mu      sync.Mutex
	active  bool
	stopped bool
	done    chan struct{}
}

func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

func (s *Sink) PlayFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed opening local file: %w", err)
	}
	s.begin()
	go func() {
		defer file.Close()
		s.pump(file)
	}()
	return nil
}

func (s *Sink) PlayStream(src io.Reader) error {
	s.begin()
	go s.pump(src)
	return nil
}

func (s *Sink) begin() {
	s.mu.Lock()
	s.active = true
	s.stopped = false
	s.done = make(chan struct{})
	s.mu.Unlock()
}

// pump drains src into the writer until EOF, a write error or Stop. A
// zero-length read means the producer has fallen behind; keep pulling.
func (s *Sink) pump(src io.Reader) {
	defer func() {
		s.mu.Lock()
		s.active = false
		close(s.done)
		s.mu.Unlock()
	}()

	buf := make([]byte, 32*1024)
	for {
		s.mu.Lock()
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return
		}

		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := s.w.Write(buf[:n]); werr != nil {
				slog.Error("Playback write failed", "error", werr)
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				slog.Error("Playback read failed", "error", err)
			}
			return
		}
		if n == 0 {
			// Producer has not buffered anything yet
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (s *Sink) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Sink) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

// Wait blocks until the current playback finishes or is stopped.
func (s *Sink) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}
