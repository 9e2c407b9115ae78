//go:build !portaudio

package audio

import (
	"context"
	"fmt"
)

// PortAudioAvailable reports whether this binary was built with PortAudio support.
const PortAudioAvailable = false

// PortAudioSource is unavailable without the portaudio build tag.
type PortAudioSource struct{}

func (PortAudioSource) Open(context.Context, StreamConfig, func(Frame)) (Stream, error) {
	return nil, fmt.Errorf("portaudio: %w (rebuild with -tags portaudio)", ErrBackendUnavailable)
}
