package contenthash

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestSumMatchesSumBytes(t *testing.T) {
	// Larger than one chunk so the streaming path wraps at least once
	content := bytes.Repeat([]byte("0123456789abcdef"), 8192)

	path := filepath.Join(t.TempDir(), "file.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("unexpected error writing test file: %v", err)
	}

	fromFile, err := Sum(path)
	if err != nil {
		t.Fatalf("unexpected error hashing file: %v", err)
	}

	if fromBytes := SumBytes(content); fromFile != fromBytes {
		t.Errorf("expected file digest %s to equal byte digest %s", fromFile, fromBytes)
	}
	if len(fromFile) != 64 {
		t.Errorf("expected 64 hex chars for a 256-bit digest, got %d", len(fromFile))
	}
}

func TestSumDeterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.bin")
	if err := os.WriteFile(path, []byte("stable content"), 0o644); err != nil {
		t.Fatalf("unexpected error writing test file: %v", err)
	}

	first, err := Sum(path)
	if err != nil {
		t.Fatalf("unexpected error hashing file: %v", err)
	}
	second, err := Sum(path)
	if err != nil {
		t.Fatalf("unexpected error hashing file: %v", err)
	}

	if first != second {
		t.Errorf("expected identical digests, got %s and %s", first, second)
	}
}

func TestSumUnreadableFile(t *testing.T) {
	if _, err := Sum(filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSumBytesDiffersForDifferentContent(t *testing.T) {
	if SumBytes([]byte("one")) == SumBytes([]byte("two")) {
		t.Error("expected different digests for different content")
	}
}
