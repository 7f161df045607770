// Package contenthash computes stable content digests for files and byte
// streams. Digests are SHA-256, hex-encoded, and are used both for duplicate
// detection and for deriving cache filenames.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ChunkSize is the read granularity when hashing files, so memory use stays
// independent of file size.
const ChunkSize = 64 * 1024

// Sum returns the hex-encoded SHA-256 digest of the file at path, streaming
// its content in ChunkSize chunks.
func Sum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed opening file %s: %w", path, err)
	}
	defer file.Close()

	digest, err := SumReader(file)
	if err != nil {
		return "", fmt.Errorf("failed hashing file %s: %w", path, err)
	}
	return digest, nil
}

// SumReader returns the hex-encoded SHA-256 digest of everything readable
// from reader.
func SumReader(reader io.Reader) (string, error) {
	hash := sha256.New()

	buf := make([]byte, ChunkSize)
	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			// sha256.Write never returns an error
			hash.Write(buf[:n])
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return "", fmt.Errorf("failed reading: %w", readErr)
		}
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// SumBytes returns the hex-encoded SHA-256 digest of data.
func SumBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
