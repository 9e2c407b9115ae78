//go:build whisper

package recognizer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperAvailable reports whether this binary links whisper.cpp.
const WhisperAvailable = true

// WhisperTranscriber runs whisper.cpp in-process. The model is loaded once;
// each utterance gets a fresh context.
type WhisperTranscriber struct {
	model    whisperlib.Model
	language string
	logger   *slog.Logger

	mu sync.Mutex
}

// NewWhisperTranscriber loads the ggml model at modelPath.
func NewWhisperTranscriber(modelPath string, language string, logger *slog.Logger) (*WhisperTranscriber, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, fmt.Errorf("%w: model path is empty", ErrModelNotFound)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelNotFound, modelPath, err)
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	if language == "" {
		language = "en"
	}
	return &WhisperTranscriber{model: model, language: language, logger: logger}, nil
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, pcm []byte, _ int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(w.language); err != nil {
		w.logger.Warn("whisper: failed to set language", "language", w.language, "error", err)
	}
	if err := wctx.Process(pcmToFloat32(pcm), nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

func (w *WhisperTranscriber) Close() error {
	return w.model.Close()
}

// pcmToFloat32 converts s16le samples to floats in [-1, 1].
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return samples
}
