// Package audio opens microphone capture streams that push fixed-size PCM frames.
package audio

import (
	"context"
	"errors"
)

// Encoding is the only sample encoding produced by capture streams.
const Encoding = "s16le"

// ErrBackendUnavailable reports a capture backend compiled out of this binary.
var ErrBackendUnavailable = errors.New("audio backend unavailable")

// Frame is one fixed-size block of mono s16le samples.
type Frame struct {
	PCM     []byte
	Samples int
	Seq     uint64
}

// StreamConfig describes the capture format requested from a Source.
type StreamConfig struct {
	SampleRate int
	BlockSize  int
	Device     string
}

// FrameBytes returns the byte length of one full frame.
func (c StreamConfig) FrameBytes() int {
	return c.BlockSize * 2
}

// Source opens capture streams. onFrame is called from the backend's own
// goroutine and must not block.
type Source interface {
	Open(ctx context.Context, cfg StreamConfig, onFrame func(Frame)) (Stream, error)
}

// Stream is one open capture stream.
type Stream interface {
	// Done is closed when the stream terminates without Close being called.
	Done() <-chan struct{}
	// Err reports why Done was closed.
	Err() error
	Close() error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, cfg StreamConfig, onFrame func(Frame)) (Stream, error)

func (f SourceFunc) Open(ctx context.Context, cfg StreamConfig, onFrame func(Frame)) (Stream, error) {
	return f(ctx, cfg, onFrame)
}

// framer cuts an arbitrary PCM byte stream into full frames.
type framer struct {
	frameBytes int
	pending    []byte
	seq        uint64
}

func (f *framer) push(buffer []byte) []Frame {
	f.pending = append(f.pending, buffer...)
	frames := make([]Frame, 0, len(f.pending)/f.frameBytes)
	for len(f.pending) >= f.frameBytes {
		pcm := make([]byte, f.frameBytes)
		copy(pcm, f.pending[:f.frameBytes])
		f.pending = f.pending[f.frameBytes:]
		f.seq++
		frames = append(frames, Frame{PCM: pcm, Samples: f.frameBytes / 2, Seq: f.seq})
	}
	return frames
}
