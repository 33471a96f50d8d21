package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"pollcli/internal/config"
	"pollcli/pkg/contracts"
)

const (
	// InstrumentationName scopes every tracer and meter of the pipeline
	InstrumentationName = "pollcli/pipeline"
	metricNamespace     = "pollcli"
)

// Telemetry bundles the tracer and pipeline metrics for one process.
// Metrics are collected on a private Prometheus registry and can be dumped
// to a node-exporter textfile at the end of a run.
type Telemetry struct {
	Tracer   trace.Tracer
	Metrics  *PipelineMetrics
	Registry *prometheus.Registry

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	textfile       string
}

// PipelineMetrics holds the pipeline's counters and histograms
type PipelineMetrics struct {
	RecordsProcessed  metric.Int64Counter
	Imputations       metric.Int64Counter
	DuplicatesDropped metric.Int64Counter
	PointsEmitted     metric.Int64Counter
	StageDuration     metric.Float64Histogram
}

// InitializeTelemetry sets up tracing and metrics from configuration
func InitializeTelemetry(cfg config.TelemetryConfig, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = GetLogger()
	}
	logger = WithComponent(logger, "telemetry")
	ctx := context.Background()

	res, err := createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	t := &Telemetry{
		Registry: prometheus.NewRegistry(),
		textfile: cfg.MetricsTextfile,
	}

	switch cfg.TraceExporter {
	case config.TraceExporterStdout:
		exporter, err := stdouttrace.New(
			stdouttrace.WithWriter(os.Stderr),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		t.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
		)
		t.Tracer = t.tracerProvider.Tracer(InstrumentationName, trace.WithInstrumentationVersion(contracts.Version))
	case config.TraceExporterNone, "":
		t.Tracer = tracenoop.NewTracerProvider().Tracer(InstrumentationName)
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	exporter, err := otelprom.New(
		otelprom.WithRegisterer(t.Registry),
		otelprom.WithNamespace(metricNamespace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	t.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	t.Metrics, err = CreatePipelineMetrics(t.meterProvider.Meter(InstrumentationName,
		metric.WithInstrumentationVersion(contracts.Version)))
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	logger.InfoContext(ctx, "Telemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.String("metrics_textfile", cfg.MetricsTextfile))

	return t, nil
}

// NewNoopTelemetry returns telemetry that records nothing
func NewNoopTelemetry() *Telemetry {
	metrics, _ := CreatePipelineMetrics(metricnoop.NewMeterProvider().Meter(InstrumentationName))
	return &Telemetry{
		Tracer:   tracenoop.NewTracerProvider().Tracer(InstrumentationName),
		Metrics:  metrics,
		Registry: prometheus.NewRegistry(),
	}
}

func createResource(cfg config.TelemetryConfig) (*resource.Resource, error) {
	hostname, _ := os.Hostname()
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(contracts.Version),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", fmt.Sprintf("%s-%d", hostname, os.Getpid())),
	), nil
}

// CreatePipelineMetrics registers the pipeline instruments on meter
func CreatePipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	recordsProcessed, err := meter.Int64Counter(
		"records_processed",
		metric.WithDescription("Records that finished validation, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	imputations, err := meter.Int64Counter(
		"imputations",
		metric.WithDescription("Missing percentages filled, by imputation method"),
	)
	if err != nil {
		return nil, err
	}

	duplicatesDropped, err := meter.Int64Counter(
		"duplicates_dropped",
		metric.WithDescription("Records discarded as duplicates"),
	)
	if err != nil {
		return nil, err
	}

	pointsEmitted, err := meter.Int64Counter(
		"points_emitted",
		metric.WithDescription("Aggregated points written to the dataset"),
	)
	if err != nil {
		return nil, err
	}

	stageDuration, err := meter.Float64Histogram(
		"stage_duration",
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		RecordsProcessed:  recordsProcessed,
		Imputations:       imputations,
		DuplicatesDropped: duplicatesDropped,
		PointsEmitted:     pointsEmitted,
		StageDuration:     stageDuration,
	}, nil
}

// TraceStage opens a span for a pipeline stage. The returned function ends
// the span and records the stage duration; a non-nil error marks the span
// as failed.
func (t *Telemetry) TraceStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if t == nil {
		return ctx, func(error) {}
	}

	start := time.Now()
	ctx, span := t.Tracer.Start(ctx, "pipeline."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(append(attrs, attribute.String("pipeline.stage", stage))...),
	)
	if runID := GetRunID(ctx); runID != "" {
		span.SetAttributes(attribute.String("pipeline.run_id", runID))
	}

	return ctx, func(err error) {
		elapsed := time.Since(start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		if t.Metrics != nil {
			t.Metrics.StageDuration.Record(ctx, elapsed.Seconds(),
				metric.WithAttributes(attribute.String("stage", stage)))
		}
	}
}

// RecordOutcome counts n records with the given outcome tag
func (t *Telemetry) RecordOutcome(ctx context.Context, outcome string, n int) {
	if t == nil || t.Metrics == nil || n == 0 {
		return
	}
	t.Metrics.RecordsProcessed.Add(ctx, int64(n), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordImputation counts one filled percentage
func (t *Telemetry) RecordImputation(ctx context.Context, method string) {
	if t == nil || t.Metrics == nil {
		return
	}
	t.Metrics.Imputations.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
}

// RecordDuplicates counts dropped duplicate records
func (t *Telemetry) RecordDuplicates(ctx context.Context, n int) {
	if t == nil || t.Metrics == nil || n == 0 {
		return
	}
	t.Metrics.DuplicatesDropped.Add(ctx, int64(n))
}

// RecordPoints counts emitted aggregated points
func (t *Telemetry) RecordPoints(ctx context.Context, n int) {
	if t == nil || t.Metrics == nil || n == 0 {
		return
	}
	t.Metrics.PointsEmitted.Add(ctx, int64(n))
}

// WriteMetricsTextfile dumps the registry in Prometheus text format to the
// configured textfile. It is a no-op when no textfile is configured.
func (t *Telemetry) WriteMetricsTextfile() error {
	if t == nil || t.textfile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(t.textfile), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(t.textfile, t.Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error

	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	return errors.Join(errs...)
}
