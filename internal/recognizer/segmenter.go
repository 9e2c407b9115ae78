package recognizer

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/rbright/hark/internal/audio"
	"github.com/rbright/hark/internal/observe"
	"github.com/rbright/hark/internal/transcript"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/rbright/hark/internal/recognizer"

// EndpointConfig controls energy-based utterance endpointing.
type EndpointConfig struct {
	// SilenceMs of consecutive quiet audio after speech ends an utterance.
	SilenceMs int
	// MaxUtteranceMs forces an endpoint on long speech.
	MaxUtteranceMs int
	// RMSThreshold is the 16-bit RMS energy below which audio is silent.
	RMSThreshold float64
}

// DefaultEndpointConfig returns the endpointing defaults.
func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{
		SilenceMs:      600,
		MaxUtteranceMs: 15_000,
		RMSThreshold:   300,
	}
}

// Segmenter buffers speech frames until an energy endpoint and hands each
// utterance to a Transcriber. Leading silence is discarded.
// A Segmenter is driven by one goroutine.
type Segmenter struct {
	transcriber Transcriber
	sampleRate  int
	cfg         EndpointConfig

	text    transcript.Options
	logger  *slog.Logger
	metrics *observe.Metrics
	tracer  trace.Tracer

	buffer    []byte
	hadSpeech bool
	silenceMs int
}

// Option configures a Segmenter.
type Option func(*Segmenter)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Segmenter) { s.logger = logger }
}

func WithMetrics(metrics *observe.Metrics) Option {
	return func(s *Segmenter) { s.metrics = metrics }
}

// WithTextOptions sets how transcribed text is normalized.
func WithTextOptions(opts transcript.Options) Option {
	return func(s *Segmenter) { s.text = opts }
}

// NewSegmenter wraps t. Zero endpoint fields take their defaults.
func NewSegmenter(t Transcriber, sampleRate int, cfg EndpointConfig, opts ...Option) *Segmenter {
	defaults := DefaultEndpointConfig()
	if cfg.SilenceMs <= 0 {
		cfg.SilenceMs = defaults.SilenceMs
	}
	if cfg.MaxUtteranceMs <= 0 {
		cfg.MaxUtteranceMs = defaults.MaxUtteranceMs
	}
	if cfg.RMSThreshold <= 0 {
		cfg.RMSThreshold = defaults.RMSThreshold
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	s := &Segmenter{
		transcriber: t,
		sampleRate:  sampleRate,
		cfg:         cfg,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:     observe.DefaultMetrics(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Accept adds one frame and returns a final result when it closes an utterance.
func (s *Segmenter) Accept(ctx context.Context, frame audio.Frame) (Result, error) {
	if len(frame.PCM) == 0 {
		return Result{}, nil
	}

	frameMs := durationMs(len(frame.PCM), s.sampleRate)
	if computeRMS(frame.PCM) < s.cfg.RMSThreshold {
		if !s.hadSpeech {
			return Result{}, nil
		}
		s.silenceMs += frameMs
		s.buffer = append(s.buffer, frame.PCM...)
		if s.silenceMs >= s.cfg.SilenceMs {
			return s.finalize(ctx, "silence")
		}
		return Result{}, nil
	}

	s.hadSpeech = true
	s.silenceMs = 0
	s.buffer = append(s.buffer, frame.PCM...)
	if durationMs(len(s.buffer), s.sampleRate) >= s.cfg.MaxUtteranceMs {
		return s.finalize(ctx, "max_length")
	}
	return Result{}, nil
}

// Flush transcribes whatever speech is buffered.
func (s *Segmenter) Flush(ctx context.Context) (Result, error) {
	return s.finalize(ctx, "flush")
}

// Pending reports whether speech is buffered.
func (s *Segmenter) Pending() bool {
	return s.hadSpeech
}

func (s *Segmenter) finalize(ctx context.Context, reason string) (Result, error) {
	pcm := s.buffer
	hadSpeech := s.hadSpeech
	s.buffer = nil
	s.hadSpeech = false
	s.silenceMs = 0

	if !hadSpeech || len(pcm) == 0 {
		return Result{}, nil
	}

	ctx, span := s.tracer.Start(ctx, "recognizer.transcribe", trace.WithAttributes(
		attribute.String("endpoint", reason),
		attribute.Int("samples", len(pcm)/2),
	))
	defer span.End()

	started := time.Now()
	text, err := s.transcriber.Transcribe(ctx, pcm, s.sampleRate)
	s.metrics.RecognizerDuration.Record(ctx, time.Since(started).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, fmt.Errorf("transcribe utterance: %w", err)
	}

	text = transcript.Assemble([]string{text}, s.text)
	s.logger.Debug("utterance transcribed",
		slog.String("endpoint", reason),
		slog.Int("samples", len(pcm)/2),
		slog.Int("chars", len(text)),
		slog.Int64("latency_ms", time.Since(started).Milliseconds()),
	)
	return Result{Text: text, Final: true}, nil
}

// Close releases the wrapped transcriber when it holds resources.
func (s *Segmenter) Close() error {
	if c, ok := s.transcriber.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// computeRMS returns the root-mean-square energy of s16le samples.
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		sample := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += sample * sample
	}
	return math.Sqrt(sum / float64(n))
}

func durationMs(bytes int, sampleRate int) int {
	if sampleRate <= 0 {
		return 0
	}
	return bytes / 2 * 1000 / sampleRate
}
