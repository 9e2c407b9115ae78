package recognizer

import (
	"context"
	"fmt"
)

// MockTranscriber reports utterance sizes instead of words. It needs no
// model and is useful for exercising the capture path end to end.
type MockTranscriber struct{}

func (MockTranscriber) Transcribe(_ context.Context, pcm []byte, sampleRate int) (string, error) {
	return fmt.Sprintf("utterance of %d samples at %d Hz", len(pcm)/2, sampleRate), nil
}
