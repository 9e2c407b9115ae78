package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/hark/internal/audio"
	"github.com/rbright/hark/internal/bus"
	"github.com/rbright/hark/internal/capture"
	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/observe"
	"github.com/rbright/hark/internal/recognizer"
)

// CaptureConfig maps file configuration onto the capture session.
func CaptureConfig(cfg config.Config) capture.Config {
	return capture.Config{
		SampleRate:   cfg.Capture.SampleRate,
		BlockSize:    cfg.Capture.BlockSize,
		Device:       cfg.Audio.Input,
		QueueFrames:  cfg.Capture.QueueFrames,
		FrameTimeout: time.Duration(cfg.Capture.FrameTimeoutMS) * time.Millisecond,
		Backoff:      time.Duration(cfg.Capture.BackoffMS) * time.Millisecond,
	}
}

// RecognizerConfig maps file configuration onto the recognizer factory.
func RecognizerConfig(cfg config.Config) recognizer.Config {
	r := cfg.Recognizer
	return recognizer.Config{
		Backend:    r.Backend,
		SampleRate: cfg.Capture.SampleRate,
		Language:   r.Language,
		ModelPath:  r.ModelPath,
		Command:    r.Command,
		Capitalize: r.Capitalize,
		Endpoint: recognizer.EndpointConfig{
			SilenceMs:      r.SilenceMS,
			MaxUtteranceMs: r.MaxUtteranceMS,
			RMSThreshold:   r.RMSThreshold,
		},
		Yandex: recognizer.YandexConfig{
			Endpoint: r.Yandex.Endpoint,
			APIKey:   r.Yandex.APIKey,
			IAMToken: r.Yandex.IAMToken,
			FolderID: r.Yandex.FolderID,
		},
	}
}

// NewSource returns the configured capture backend.
func NewSource(cfg config.AudioConfig, logger *slog.Logger) audio.Source {
	if strings.EqualFold(cfg.Backend, "portaudio") {
		return audio.PortAudioSource{}
	}
	return audio.PulseSource{Fallback: cfg.Fallback, Logger: logger}
}

// Build constructs a Daemon from configuration. Recognizer init failures are
// returned unwrapped enough for recognizer.IsInitFailure to match them.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics *observe.Metrics) (*Daemon, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	adapter, err := recognizer.New(ctx, RecognizerConfig(cfg), logger.With("component", "recognizer"), metrics)
	if err != nil {
		return nil, fmt.Errorf("init recognizer: %w", err)
	}

	session := capture.New(
		CaptureConfig(cfg),
		NewSource(cfg.Audio, logger.With("component", "audio")),
		adapter,
		capture.WithLogger(logger.With("component", "capture")),
		capture.WithMetrics(metrics),
	)

	opts := []Option{
		WithLogger(logger.With("component", "daemon")),
		WithMetrics(metrics),
		WithCloser(closerFunc(func() error { return recognizer.Close(adapter) })),
	}

	if cfg.Bus.Enable {
		publisher, err := bus.Connect(bus.Config{
			URL:     cfg.Bus.URL,
			Subject: cfg.Bus.Subject,
			Source:  cfg.Bus.Source,
		}, logger.With("component", "bus"))
		if err != nil {
			_ = recognizer.Close(adapter)
			return nil, err
		}
		opts = append(opts,
			WithCallback(publisher.Callback()),
			WithCloser(closerFunc(func() error { publisher.Close(); return nil })),
		)
	}

	return New(session, opts...), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
