//go:build !whisper

package recognizer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// WhisperAvailable reports whether this binary links whisper.cpp.
const WhisperAvailable = false

// WhisperTranscriber is a placeholder in builds without the whisper tag.
type WhisperTranscriber struct{}

// NewWhisperTranscriber validates the model path and then reports that the
// backend is not compiled in.
func NewWhisperTranscriber(modelPath string, _ string, _ *slog.Logger) (*WhisperTranscriber, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, fmt.Errorf("%w: model path is empty", ErrModelNotFound)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelNotFound, modelPath, err)
	}
	return nil, fmt.Errorf("%w: whisper (rebuild with -tags whisper)", ErrUnknownBackend)
}

func (*WhisperTranscriber) Transcribe(context.Context, []byte, int) (string, error) {
	return "", fmt.Errorf("%w: whisper", ErrUnknownBackend)
}
