package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resumeform/internal/config"
	"resumeform/internal/errors"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Submission outcomes recorded on resumeform_submissions_total
const (
	OutcomeSuccess         = "success"
	OutcomeValidationError = "validation_error"
	OutcomeSubmissionError = "submission_error"
)

// Metrics holds the application's instruments
type Metrics struct {
	Submissions      metric.Int64Counter
	AnalysisDuration metric.Float64Histogram
	AnalysisErrors   metric.Int64Counter
	RateLimitHits    metric.Int64Counter
	ActiveSessions   metric.Int64UpDownCounter
}

// ObservabilityManager manages OpenTelemetry setup
type ObservabilityManager struct {
	config         config.ObservabilityConfig
	serviceVersion string
	logger         *errors.Logger

	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	extraReaders   []sdkmetric.Reader
	metrics        *Metrics
	shutdownFuncs  []func(context.Context) error
}

// Option configures an ObservabilityManager
type Option func(*ObservabilityManager)

// WithReader adds a metric reader, e.g. a manual reader in tests
func WithReader(r sdkmetric.Reader) Option {
	return func(om *ObservabilityManager) { om.extraReaders = append(om.extraReaders, r) }
}

// WithLogger sets the logger
func WithLogger(l *errors.Logger) Option {
	return func(om *ObservabilityManager) { om.logger = l }
}

// NewObservabilityManager creates a new observability manager. When disabled
// it returns a manager whose instruments are no-ops.
func NewObservabilityManager(cfg config.ObservabilityConfig, version string, opts ...Option) (*ObservabilityManager, error) {
	om := &ObservabilityManager{
		config:         cfg,
		serviceVersion: cfg.ServiceVersion,
	}
	if om.serviceVersion == "" {
		om.serviceVersion = version
	}
	for _, opt := range opts {
		opt(om)
	}
	if om.logger == nil {
		om.logger = errors.Discard()
	}

	if !cfg.Enabled {
		return om, nil
	}

	res, err := om.createResource()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize resource: %w", err)
	}

	if err := om.initTracing(res); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := om.initMetrics(res); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return om, nil
}

func (om *ObservabilityManager) createResource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(om.config.ServiceName),
			semconv.ServiceVersion(om.serviceVersion),
			attribute.String("service.instance.id", om.config.ServiceInstance),
		),
	)
}

// initTracing sets up OpenTelemetry tracing
func (om *ObservabilityManager) initTracing(res *resource.Resource) error {
	var exporter trace.SpanExporter
	var err error

	switch {
	case om.config.ConsoleOutput:
		opts := []stdouttrace.Option{}
		if om.config.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		exporter, err = stdouttrace.New(opts...)
	case om.config.OTLP.Enabled:
		exporter, err = om.createOTLPExporter()
	default:
		exporter = &noOpSpanExporter{}
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(om.config.SampleRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	om.tracerProvider = tp
	om.shutdownFuncs = append(om.shutdownFuncs, tp.Shutdown)
	return nil
}

// initMetrics sets up OpenTelemetry metrics
func (om *ObservabilityManager) initMetrics(res *resource.Resource) error {
	readers, err := om.setupMetricReaders()
	if err != nil {
		return err
	}

	options := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, reader := range readers {
		options = append(options, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(options...)
	otel.SetMeterProvider(mp)
	om.meterProvider = mp
	om.shutdownFuncs = append(om.shutdownFuncs, mp.Shutdown)

	metrics, err := newMetrics(mp.Meter(om.config.ServiceName))
	if err != nil {
		return err
	}
	om.metrics = metrics
	return nil
}

// setupMetricReaders builds every reader enabled in configuration
func (om *ObservabilityManager) setupMetricReaders() ([]sdkmetric.Reader, error) {
	readers := append([]sdkmetric.Reader(nil), om.extraReaders...)
	interval := om.collectionInterval()

	if om.config.ConsoleOutput {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	}

	if om.config.OTLP.Enabled {
		reader, err := om.createOTLPMetricsReader(interval)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics reader: %w", err)
		}
		readers = append(readers, reader)
	}

	if om.config.Prometheus.Enabled {
		reader, err := om.startPrometheus()
		if err != nil {
			return nil, err
		}
		readers = append(readers, reader)
	}

	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}

	return readers, nil
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	m.Submissions, err = meter.Int64Counter(
		"resumeform_submissions_total",
		metric.WithDescription("Form submissions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create submissions metric: %w", err)
	}

	m.AnalysisDuration, err = meter.Float64Histogram(
		"resumeform_analysis_duration_seconds",
		metric.WithDescription("Time spent waiting for the analysis service"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis duration metric: %w", err)
	}

	m.AnalysisErrors, err = meter.Int64Counter(
		"resumeform_analysis_errors_total",
		metric.WithDescription("Failed calls to the analysis service by error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis errors metric: %w", err)
	}

	m.RateLimitHits, err = meter.Int64Counter(
		"resumeform_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	m.ActiveSessions, err = meter.Int64UpDownCounter(
		"resumeform_sessions_active",
		metric.WithDescription("Browser form sessions currently held in memory"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active sessions metric: %w", err)
	}

	return &m, nil
}

// GetMetrics returns the metrics instance; nil-safe when observability is disabled
func (om *ObservabilityManager) GetMetrics() *Metrics {
	if om == nil || om.metrics == nil {
		return &Metrics{}
	}
	return om.metrics
}

// HTTPMiddleware returns HTTP middleware with OpenTelemetry instrumentation
func (om *ObservabilityManager) HTTPMiddleware() func(http.Handler) http.Handler {
	if om == nil || !om.config.Enabled {
		return func(h http.Handler) http.Handler { return h }
	}

	return otelhttp.NewMiddleware(
		om.config.ServiceName,
		otelhttp.WithTracerProvider(om.tracerProvider),
		otelhttp.WithMeterProvider(om.meterProvider),
	)
}

// Tracer returns a tracer for the service
func (om *ObservabilityManager) Tracer(name string) oteltrace.Tracer {
	if om == nil || !om.config.Enabled {
		return noop.NewTracerProvider().Tracer(name)
	}
	return om.tracerProvider.Tracer(name)
}

// Shutdown gracefully shuts down all observability components
func (om *ObservabilityManager) Shutdown(ctx context.Context) error {
	if om == nil {
		return nil
	}
	for _, shutdown := range om.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RecordSubmission counts a finished form submission
func (m *Metrics) RecordSubmission(ctx context.Context, err error, surface string) {
	if m == nil || m.Submissions == nil {
		return
	}
	m.Submissions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", Outcome(err)),
		attribute.String("surface", surface),
	))
}

// RecordRateLimitHit counts a rejected request
func (m *Metrics) RecordRateLimitHit(ctx context.Context, limiterType string) {
	if m == nil || m.RateLimitHits == nil {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("limiter", limiterType)))
}

// SessionOpened and SessionClosed track the in-memory session count
func (m *Metrics) SessionOpened(ctx context.Context) {
	if m != nil && m.ActiveSessions != nil {
		m.ActiveSessions.Add(ctx, 1)
	}
}

func (m *Metrics) SessionClosed(ctx context.Context) {
	if m != nil && m.ActiveSessions != nil {
		m.ActiveSessions.Add(ctx, -1)
	}
}

// Outcome classifies a Submit error
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.IsType(err, errors.ErrorTypeValidation):
		return OutcomeValidationError
	default:
		return OutcomeSubmissionError
	}
}

type noOpSpanExporter struct{}

func (n *noOpSpanExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	return nil
}

func (n *noOpSpanExporter) Shutdown(ctx context.Context) error {
	return nil
}

// createOTLPExporter creates an OTLP HTTP trace exporter
func (om *ObservabilityManager) createOTLPExporter() (trace.SpanExporter, error) {
	otlpConfig := om.config.OTLP

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(otlpConfig.Endpoint),
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	return exporter, nil
}

// createOTLPMetricsReader creates an OTLP HTTP metrics reader
func (om *ObservabilityManager) createOTLPMetricsReader(interval time.Duration) (sdkmetric.Reader, error) {
	otlpConfig := om.config.OTLP

	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpointURL(otlpConfig.Endpoint),
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), nil
}

func (om *ObservabilityManager) collectionInterval() time.Duration {
	if om.config.Metrics.CollectionInterval > 0 {
		return om.config.Metrics.CollectionInterval
	}
	return 15 * time.Second
}
