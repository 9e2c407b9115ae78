// Package observe wires OpenTelemetry metrics and traces for hark.
//
// Components take a *Metrics explicitly; [DefaultMetrics] resolves
// instruments against the global meter provider so values recorded before
// [InitProvider] runs are delegated once it does.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope used for all hark instruments.
const meterName = "github.com/rbright/hark"

// Metrics holds the instruments recorded by the listener pipeline.
type Metrics struct {
	// Utterances counts finalized utterances delivered to the bridge.
	Utterances metric.Int64Counter

	// CaptureFailures counts capture or decode failures. Use with
	// attribute.String("stage", "open"|"stream"|"timeout"|"decode").
	CaptureFailures metric.Int64Counter

	// CaptureRestarts counts stream reopenings after a backoff.
	CaptureRestarts metric.Int64Counter

	// DroppedFrames counts frames discarded by the bounded frame queue or
	// by a generation boundary (pause, failure or a finished Run). Use with attribute.String("reason", ...).
	DroppedFrames metric.Int64Counter

	BridgePushes metric.Int64Counter
	BridgeDrains metric.Int64Counter

	// RecognizerDuration tracks per-utterance transcription latency in seconds.
	RecognizerDuration metric.Float64Histogram

	// Listening is 1 while a listener execution is active.
	Listening metric.Int64UpDownCounter
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.Utterances, err = meter.Int64Counter("hark.utterances",
		metric.WithDescription("Finalized utterances delivered."),
	); err != nil {
		return nil, err
	}
	if m.CaptureFailures, err = meter.Int64Counter("hark.capture.failures",
		metric.WithDescription("Capture or decode failures."),
	); err != nil {
		return nil, err
	}
	if m.CaptureRestarts, err = meter.Int64Counter("hark.capture.restarts",
		metric.WithDescription("Capture stream restarts after backoff."),
	); err != nil {
		return nil, err
	}
	if m.DroppedFrames, err = meter.Int64Counter("hark.capture.dropped_frames",
		metric.WithDescription("Audio frames dropped before decode."),
	); err != nil {
		return nil, err
	}
	if m.BridgePushes, err = meter.Int64Counter("hark.bridge.pushes",
		metric.WithDescription("Messages accepted by the bridge."),
	); err != nil {
		return nil, err
	}
	if m.BridgeDrains, err = meter.Int64Counter("hark.bridge.drains",
		metric.WithDescription("Non-empty bridge drains."),
	); err != nil {
		return nil, err
	}
	if m.RecognizerDuration, err = meter.Float64Histogram("hark.recognizer.duration",
		metric.WithDescription("Utterance transcription latency."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.Listening, err = meter.Int64UpDownCounter("hark.listening",
		metric.WithDescription("Active listener executions."),
	); err != nil {
		return nil, err
	}
	return m, nil
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// DefaultMetrics returns instruments bound to the global meter provider.
func DefaultMetrics() *Metrics {
	defaultOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			otel.Handle(err)
			m, _ = NewMetrics(noopProvider())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// RecordFailure counts one failure at stage.
func (m *Metrics) RecordFailure(ctx context.Context, stage string) {
	m.CaptureFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordDropped counts n dropped frames for reason.
func (m *Metrics) RecordDropped(ctx context.Context, reason string, n int) {
	if n <= 0 {
		return
	}
	m.DroppedFrames.Add(ctx, int64(n), metric.WithAttributes(attribute.String("reason", reason)))
}
