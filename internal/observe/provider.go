package observe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Trace exporter names accepted by ProviderConfig.TraceExporter.
const (
	TraceExporterNone   = "none"
	TraceExporterStdout = "stdout"
	TraceExporterOTLP   = "otlp"
)

// ProviderConfig configures the OpenTelemetry SDK providers.
type ProviderConfig struct {
	ServiceName    string
	ServiceVersion string

	TraceExporter string
	OTLPEndpoint  string
	OTLPInsecure  bool
}

// Provider owns the SDK providers and the Prometheus scrape handler.
type Provider struct {
	Metrics *Metrics
	Handler http.Handler

	shutdownFuncs []func(context.Context) error
}

// InitProvider installs a Prometheus-backed meter provider and a tracer
// provider as the otel globals. Metrics are served by Provider.Handler.
func InitProvider(ctx context.Context, cfg ProviderConfig, logger *slog.Logger) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "hark"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	p := &Provider{}

	registry := prometheus.NewRegistry()
	promExp, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)
	p.shutdownFuncs = append(p.shutdownFuncs, mp.Shutdown)
	p.Handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	metrics, err := NewMetrics(mp)
	if err != nil {
		return nil, err
	}
	p.Metrics = metrics

	exporter, err := newTraceExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	p.shutdownFuncs = append(p.shutdownFuncs, tp.Shutdown)

	if logger != nil {
		logger.Info("telemetry initialized",
			slog.String("trace_exporter", traceExporterName(cfg)),
			slog.String("otlp_endpoint", cfg.OTLPEndpoint),
		)
	}
	return p, nil
}

func newTraceExporter(ctx context.Context, cfg ProviderConfig) (sdktrace.SpanExporter, error) {
	switch traceExporterName(cfg) {
	case TraceExporterNone:
		return nil, nil
	case TraceExporterStdout:
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		return exporter, nil
	case TraceExporterOTLP:
		endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
		if endpoint == "" {
			return nil, errors.New("otlp trace exporter requires an endpoint")
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp trace exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.TraceExporter)
	}
}

func traceExporterName(cfg ProviderConfig) string {
	name := strings.ToLower(strings.TrimSpace(cfg.TraceExporter))
	if name == "" {
		return TraceExporterNone
	}
	return name
}

// Shutdown flushes and closes every provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func noopProvider() metric.MeterProvider {
	return noop.NewMeterProvider()
}
