// Package playback defines the sink interface the streaming layer hands
// audio to. The actual audio engine lives with the UI and is out of scope.
package playback

import "io"

// Sink consumes audio either from a local file or from a pull-based byte
// stream. Implementations must be safe to call from the streaming goroutines.
type Sink interface {
	// PlayFile starts playback from a local file path.
	PlayFile(path string) error

	// PlayStream starts playback pulling bytes from src at the sink's own
	// pace. src reports io.EOF once the producing stream has ended and all
	// buffered bytes are drained.
	PlayStream(src io.Reader) error

	// IsActive reports whether the sink is currently consuming.
	IsActive() bool

	// Stop halts playback.
	Stop()
}
