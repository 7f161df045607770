// Package ringbuffer provides a fixed-capacity circular byte buffer for
// decoupling a chunked producer from a consumer that drains at its own pace.
//
// The buffer is safe for exactly one producer goroutine calling Write and one
// consumer goroutine calling Read. All cursor updates and copies happen under
// a single mutex; copies are bounded by the capacity, so lock hold times are
// short. It is not intended for high-fan-in use.
package ringbuffer

import (
	"errors"
	"io"
	"sync"
)

var ErrInvalidCapacity = errors.New("capacity must be positive")

type RingBuffer struct {
	mu       sync.Mutex
	buffer   []byte
	readPos  int
	writePos int
	// Unread bytes currently in the buffer; always <= len(buffer)
	size int
}

func New(capacity int) (*RingBuffer, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &RingBuffer{
		buffer: make([]byte, capacity),
	}, nil
}

func (rb *RingBuffer) Capacity() int {
	return len(rb.buffer)
}

// Available returns the number of unread bytes buffered.
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size
}

// Free returns how many bytes can be written without overwriting unread data.
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return len(rb.buffer) - rb.size
}

// Write copies as much of data into the buffer as fits without overwriting
// unread bytes and returns how much was written. A full buffer yields a
// zero-length write, never an error; the caller is expected to retry once the
// consumer has drained.
func (rb *RingBuffer) Write(data []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	free := len(rb.buffer) - rb.size
	n := len(data)
	if n > free {
		n = free
	}
	if n == 0 {
		return 0, nil
	}

	writeEnd := rb.writePos + n
	if writeEnd <= len(rb.buffer) {
		copy(rb.buffer[rb.writePos:], data[:n])
	} else {
		// Wrap-around write in two parts
		part1 := len(rb.buffer) - rb.writePos
		copy(rb.buffer[rb.writePos:], data[:part1])
		copy(rb.buffer[:writeEnd%len(rb.buffer)], data[part1:n])
	}

	rb.writePos = (rb.writePos + n) % len(rb.buffer)
	rb.size += n

	return n, nil
}

// Read copies up to len(p) of the oldest unread bytes into p. An empty buffer
// yields a zero-length read, never an error. Bytes are returned in the exact
// order they were written.
func (rb *RingBuffer) Read(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(p)
	if n > rb.size {
		n = rb.size
	}
	if n == 0 {
		return 0, nil
	}

	readEnd := rb.readPos + n
	if readEnd <= len(rb.buffer) {
		copy(p, rb.buffer[rb.readPos:readEnd])
	} else {
		part1 := len(rb.buffer) - rb.readPos
		copy(p, rb.buffer[rb.readPos:])
		copy(p[part1:n], rb.buffer[:readEnd%len(rb.buffer)])
	}

	rb.readPos = (rb.readPos + n) % len(rb.buffer)
	rb.size -= n

	return n, nil
}

// Reset discards all unread data and rewinds both cursors, leaving the buffer
// reusable for a new stream.
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.readPos = 0
	rb.writePos = 0
	rb.size = 0
}

// Reader wraps the buffer as an io.Reader for handing to a playback sink.
// Read never returns io.EOF on an empty buffer unless the source has been
// marked finished via CloseSource; an empty but live buffer reports a
// zero-length read instead.
type Reader struct {
	rb *RingBuffer

	mu     sync.Mutex
	closed bool
}

func (rb *RingBuffer) Reader() *Reader {
	return &Reader{rb: rb}
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.rb.Read(p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		r.mu.Lock()
		closed := r.closed
		r.mu.Unlock()
		if closed {
			return 0, io.EOF
		}
	}
	return n, nil
}

// CloseSource marks the producing stream as finished. Once the remaining
// buffered bytes are drained, Read reports io.EOF.
func (r *Reader) CloseSource() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}
