// Package recognizer turns audio frames into finalized utterances.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rbright/hark/internal/audio"
	"github.com/rbright/hark/internal/observe"
	"github.com/rbright/hark/internal/transcript"
)

// Backend names accepted by Config.Backend.
const (
	BackendExec    = "exec"
	BackendWhisper = "whisper"
	BackendYandex  = "yandex"
	BackendMock    = "mock"
)

// Init failures. These are fatal: a listener must not start without its
// recognition resource.
var (
	ErrModelNotFound      = errors.New("recognizer model not found")
	ErrCommandNotFound    = errors.New("recognizer command not found")
	ErrCredentialsMissing = errors.New("recognizer credentials missing")
	ErrUnknownBackend     = errors.New("unknown recognizer backend")
)

// Result is one decode outcome. The zero value means nothing was decoded.
type Result struct {
	Text  string
	Final bool
}

// Finalized reports whether r carries text that should be delivered.
func (r Result) Finalized() bool {
	return r.Final && strings.TrimSpace(r.Text) != ""
}

// Adapter converts frames into results.
type Adapter interface {
	Accept(ctx context.Context, frame audio.Frame) (Result, error)
	// Flush forces finalization of any pending partial decode.
	Flush(ctx context.Context) (Result, error)
}

// Transcriber converts one complete utterance of s16le mono PCM into text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, pcm []byte, sampleRate int) (string, error)

func (f TranscriberFunc) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	return f(ctx, pcm, sampleRate)
}

// Config selects and configures a backend.
type Config struct {
	Backend    string
	SampleRate int
	Language   string
	ModelPath  string
	Command    string
	// Capitalize applies sentence case to utterances from local backends.
	Capitalize bool

	Endpoint EndpointConfig
	Yandex   YandexConfig
}

// New builds the configured adapter. Missing resources fail here, never
// during decode. The returned adapter implements io.Closer when it holds
// resources.
func New(ctx context.Context, cfg Config, logger *slog.Logger, metrics *observe.Metrics) (Adapter, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	segmented := func(t Transcriber) Adapter {
		return NewSegmenter(t, cfg.SampleRate, cfg.Endpoint, WithLogger(logger), WithMetrics(metrics),
			WithTextOptions(transcript.Options{CapitalizeSentences: cfg.Capitalize}))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendExec:
		t, err := NewExecTranscriber(cfg.Command, cfg.ModelPath, cfg.Language)
		if err != nil {
			return nil, err
		}
		return segmented(t), nil
	case BackendWhisper:
		t, err := NewWhisperTranscriber(cfg.ModelPath, cfg.Language, logger)
		if err != nil {
			return nil, err
		}
		return segmented(t), nil
	case BackendYandex:
		return NewYandexAdapter(ctx, cfg.Yandex, cfg.SampleRate, cfg.Language, logger)
	case BackendMock:
		return segmented(MockTranscriber{}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// IsInitFailure reports whether err is a fatal construction error.
func IsInitFailure(err error) bool {
	return errors.Is(err, ErrModelNotFound) ||
		errors.Is(err, ErrCommandNotFound) ||
		errors.Is(err, ErrCredentialsMissing) ||
		errors.Is(err, ErrUnknownBackend)
}

// Close releases a if it holds resources.
func Close(a Adapter) error {
	if c, ok := a.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
