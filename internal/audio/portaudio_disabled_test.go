//go:build !portaudio

package audio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPortAudioSourceUnavailableWithoutBuildTag(t *testing.T) {
	require.False(t, PortAudioAvailable)

	_, err := PortAudioSource{}.Open(context.Background(), StreamConfig{SampleRate: 16000, BlockSize: 4000}, nil)
	require.ErrorIs(t, err, ErrBackendUnavailable)
}
