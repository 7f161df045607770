package ringbuffer

import (
	"bytes"
	"io"
	"sync"
	"testing"
)

func TestWrite(t *testing.T) {
	rb, err := New(10)
	if err != nil {
		t.Fatalf("unexpected error creating buffer: %v", err)
	}

	data := []byte("hello")
	n, err := rb.Write(data)
	if err != nil {
		t.Errorf("unexpected error writing data: %v", err)
	}
	if n != len(data) {
		t.Errorf("expected to write %d bytes, wrote %d", len(data), n)
	}
	if rb.Available() != len(data) {
		t.Errorf("expected %d bytes available, got %d", len(data), rb.Available())
	}
}

func TestWriteTruncatesAtCapacity(t *testing.T) {
	rb, _ := New(8)

	n, err := rb.Write([]byte("hello world"))
	if err != nil {
		t.Errorf("unexpected error writing data: %v", err)
	}
	if n != 8 {
		t.Errorf("expected truncated write of 8 bytes, wrote %d", n)
	}
	if rb.Available() != 8 {
		t.Errorf("expected 8 bytes available, got %d", rb.Available())
	}

	// Full buffer accepts nothing more
	n, err = rb.Write([]byte("x"))
	if err != nil {
		t.Errorf("unexpected error writing to full buffer: %v", err)
	}
	if n != 0 {
		t.Errorf("expected zero-length write on full buffer, wrote %d", n)
	}
}

func TestReadEmpty(t *testing.T) {
	rb, _ := New(4)

	buf := make([]byte, 4)
	n, err := rb.Read(buf)
	if err != nil {
		t.Errorf("unexpected error reading empty buffer: %v", err)
	}
	if n != 0 {
		t.Errorf("expected zero-length read on empty buffer, read %d", n)
	}
}

func TestWrappedWriteRead(t *testing.T) {
	rb, _ := New(6)

	data := []byte("hello")
	if n, _ := rb.Write(data); n != len(data) {
		t.Fatalf("expected to write %d bytes, wrote %d", len(data), n)
	}

	readData := make([]byte, len(data))
	if n, _ := rb.Read(readData); n != len(data) {
		t.Fatalf("expected to read %d bytes, read %d", len(data), n)
	}

	// Second round wraps both cursors around the end of the buffer
	if n, _ := rb.Write(data); n != len(data) {
		t.Errorf("expected wrapped write of %d bytes, wrote %d", len(data), n)
	}
	readData = make([]byte, len(data))
	if n, _ := rb.Read(readData); n != len(data) {
		t.Errorf("expected wrapped read of %d bytes, read %d", len(data), n)
	}
	if !bytes.Equal(readData, data) {
		t.Errorf("expected wrapped read %q, got %q", data, readData)
	}
}

func TestFIFOOrder(t *testing.T) {
	rb, _ := New(16)

	writes := [][]byte{
		[]byte("abc"),
		[]byte("defgh"),
		[]byte("ij"),
	}
	var want []byte
	for _, w := range writes {
		if n, _ := rb.Write(w); n != len(w) {
			t.Fatalf("expected to write %d bytes, wrote %d", len(w), n)
		}
		want = append(want, w...)
	}

	var got []byte
	buf := make([]byte, 4)
	for rb.Available() > 0 {
		n, err := rb.Read(buf)
		if err != nil {
			t.Fatalf("unexpected error reading data: %v", err)
		}
		got = append(got, buf[:n]...)
	}

	if !bytes.Equal(got, want) {
		t.Errorf("expected FIFO order %q, got %q", want, got)
	}
}

func TestAvailableNeverExceedsCapacity(t *testing.T) {
	rb, _ := New(32)

	for i := 0; i < 100; i++ {
		rb.Write([]byte("0123456789"))
		if rb.Available() > rb.Capacity() {
			t.Fatalf("available %d exceeds capacity %d", rb.Available(), rb.Capacity())
		}
		if i%3 == 0 {
			buf := make([]byte, 7)
			rb.Read(buf)
		}
	}
}

func TestReset(t *testing.T) {
	rb, _ := New(8)
	rb.Write([]byte("data"))

	rb.Reset()

	if rb.Available() != 0 {
		t.Errorf("expected empty buffer after reset, got %d bytes", rb.Available())
	}
	if rb.Free() != rb.Capacity() {
		t.Errorf("expected full free space after reset, got %d", rb.Free())
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	rb, _ := New(64)

	payload := make([]byte, 64*1024)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	var got []byte
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		remaining := payload
		for len(remaining) > 0 {
			n, err := rb.Write(remaining)
			if err != nil {
				t.Errorf("unexpected producer error: %v", err)
				return
			}
			remaining = remaining[n:]
		}
	}()

	go func() {
		defer wg.Done()
		buf := make([]byte, 48)
		for len(got) < len(payload) {
			n, err := rb.Read(buf)
			if err != nil {
				t.Errorf("unexpected consumer error: %v", err)
				return
			}
			got = append(got, buf[:n]...)
		}
	}()

	wg.Wait()

	if !bytes.Equal(got, payload) {
		t.Error("consumer bytes differ from producer bytes")
	}
}

func TestReaderEOFAfterCloseSource(t *testing.T) {
	rb, _ := New(8)
	reader := rb.Reader()

	rb.Write([]byte("end"))

	buf := make([]byte, 8)
	n, err := reader.Read(buf)
	if err != nil {
		t.Errorf("unexpected error reading data: %v", err)
	}
	if n != 3 {
		t.Errorf("expected to read 3 bytes, read %d", n)
	}

	// Empty but live source: zero-length read, no EOF
	n, err = reader.Read(buf)
	if n != 0 || err != nil {
		t.Errorf("expected empty live read, got n=%d err=%v", n, err)
	}

	reader.CloseSource()
	_, err = reader.Read(buf)
	if err != io.EOF {
		t.Errorf("expected io.EOF after source closed, got %v", err)
	}
}
