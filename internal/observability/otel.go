// Package observability wires OpenTelemetry tracing and metrics for the
// pipeline, the HTTP server and the generation backend.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"betterats/internal/errors"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Manager owns the tracer and meter providers of the process.
type Manager struct {
	settings         Settings
	resource         *resource.Resource
	tracerProvider   *trace.TracerProvider
	meterProvider    *sdkmetric.MeterProvider
	metrics          *Metrics
	shutdownFuncs    []func(context.Context) error
	prometheusServer *http.Server
	logger           *errors.Logger
}

// NewManager sets up tracing and metrics according to settings. A disabled
// manager hands out no-op tracers and nil metrics.
func NewManager(settings Settings, logger *errors.Logger) (*Manager, error) {
	if logger == nil {
		logger = errors.NewLoggerWithWriter(io.Discard, slog.LevelError)
	}
	m := &Manager{settings: settings, logger: logger}
	if !settings.Enabled {
		return m, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(settings.ServiceName),
			semconv.ServiceVersion(settings.ServiceVersion),
			attribute.String("service.instance.id", settings.ServiceInstance),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	m.resource = res

	if settings.TracingEnabled {
		if err := m.initTracing(); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}
	if settings.MetricsEnabled {
		if err := m.initMetrics(); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	return m, nil
}

func (m *Manager) initTracing() error {
	var exporter trace.SpanExporter
	var err error

	switch {
	case m.settings.ConsoleOutput:
		opts := []stdouttrace.Option{}
		if m.settings.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		exporter, err = stdouttrace.New(opts...)
	case m.settings.OTLP.Enabled:
		exporter, err = m.createOTLPTraceExporter()
	default:
		exporter = &noOpSpanExporter{}
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(m.resource),
		trace.WithSampler(trace.TraceIDRatioBased(m.settings.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	m.tracerProvider = tp
	m.shutdownFuncs = append(m.shutdownFuncs, tp.Shutdown)
	return nil
}

func (m *Manager) initMetrics() error {
	readers, err := m.setupMetricReaders()
	if err != nil {
		return err
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(m.resource)}
	for _, reader := range readers {
		opts = append(opts, sdkmetric.WithReader(reader))
	}
	mp := sdkmetric.NewMeterProvider(opts...)

	otel.SetMeterProvider(mp)
	m.meterProvider = mp
	m.shutdownFuncs = append(m.shutdownFuncs, mp.Shutdown)

	metrics, err := NewMetrics(mp.Meter(m.settings.ServiceName))
	if err != nil {
		return err
	}
	m.metrics = metrics
	return nil
}

func (m *Manager) setupMetricReaders() ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader
	interval := m.collectionInterval()

	if m.settings.ConsoleOutput {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	}

	if m.settings.OTLP.Enabled {
		exporter, err := otlpmetrichttp.New(context.Background(), m.otlpMetricOptions()...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	}

	if m.settings.Prometheus.Enabled {
		reader, mux, err := SetupPrometheusExporter(m.settings.Prometheus)
		if err != nil {
			return nil, err
		}
		readers = append(readers, reader)
		m.prometheusServer = StartPrometheusServer(mux, m.settings.Prometheus.Port, m.logger)
	}

	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}
	return readers, nil
}

func (m *Manager) collectionInterval() time.Duration {
	if m.settings.CollectionInterval > 0 {
		return m.settings.CollectionInterval
	}
	return 15 * time.Second
}

// otlpEndpoint reports whether the configured endpoint is a full URL or a
// bare host:port, as both forms appear in OTEL_EXPORTER_OTLP_ENDPOINT.
func (m *Manager) otlpEndpoint() (string, bool) {
	endpoint := m.settings.OTLP.Endpoint
	return endpoint, strings.Contains(endpoint, "://")
}

func (m *Manager) createOTLPTraceExporter() (trace.SpanExporter, error) {
	var opts []otlptracehttp.Option
	if endpoint, isURL := m.otlpEndpoint(); isURL {
		opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
	} else if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
	}
	if m.settings.OTLP.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(m.settings.OTLP.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(m.settings.OTLP.Headers))
	}
	return otlptracehttp.New(context.Background(), opts...)
}

func (m *Manager) otlpMetricOptions() []otlpmetrichttp.Option {
	var opts []otlpmetrichttp.Option
	if endpoint, isURL := m.otlpEndpoint(); isURL {
		opts = append(opts, otlpmetrichttp.WithEndpointURL(endpoint))
	} else if endpoint != "" {
		opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
	}
	if m.settings.OTLP.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(m.settings.OTLP.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(m.settings.OTLP.Headers))
	}
	return opts
}

// Metrics returns the custom instruments, or nil when metrics are disabled.
// All Metrics methods accept a nil receiver.
func (m *Manager) Metrics() *Metrics {
	if m == nil {
		return nil
	}
	return m.metrics
}

// HTTPMiddleware returns HTTP middleware with OpenTelemetry instrumentation
func (m *Manager) HTTPMiddleware() func(http.Handler) http.Handler {
	if m == nil || !m.settings.Enabled {
		return func(h http.Handler) http.Handler { return h }
	}

	opts := []otelhttp.Option{}
	if m.tracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(m.tracerProvider))
	}
	if m.meterProvider != nil {
		opts = append(opts, otelhttp.WithMeterProvider(m.meterProvider))
	}
	return otelhttp.NewMiddleware(m.settings.ServiceName, opts...)
}

// Tracer returns a tracer for the service
func (m *Manager) Tracer(name string) oteltrace.Tracer {
	if m == nil || m.tracerProvider == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return m.tracerProvider.Tracer(name)
}

// Shutdown flushes exporters and stops the Prometheus listener.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	if m.prometheusServer != nil {
		if err := m.prometheusServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	for _, shutdown := range m.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// noOpSpanExporter drops spans when no exporter is configured
type noOpSpanExporter struct{}

func (n *noOpSpanExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	return nil
}

func (n *noOpSpanExporter) Shutdown(ctx context.Context) error {
	return nil
}
