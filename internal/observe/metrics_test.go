package observe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is %T", m.Name, m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRecordFailureAndDropped(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFailure(ctx, "stream")
	m.RecordFailure(ctx, "decode")
	m.RecordDropped(ctx, "queue_full", 3)
	m.RecordDropped(ctx, "resume", 0)

	rm := collect(t, reader)
	require.Equal(t, int64(2), sumValue(t, findMetric(rm, "hark.capture.failures")))
	require.Equal(t, int64(3), sumValue(t, findMetric(rm, "hark.capture.dropped_frames")))
}

func TestCountersAndHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.Utterances.Add(ctx, 2)
	m.BridgePushes.Add(ctx, 2)
	m.BridgeDrains.Add(ctx, 1)
	m.RecognizerDuration.Record(ctx, 0.25)

	rm := collect(t, reader)
	require.Equal(t, int64(2), sumValue(t, findMetric(rm, "hark.utterances")))
	require.Equal(t, int64(1), sumValue(t, findMetric(rm, "hark.bridge.drains")))

	hist := findMetric(rm, "hark.recognizer.duration")
	require.NotNil(t, hist)
	data, ok := hist.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	require.Equal(t, uint64(1), data.DataPoints[0].Count)
}

func TestDefaultMetricsIsSingleton(t *testing.T) {
	require.Same(t, DefaultMetrics(), DefaultMetrics())
}
