package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Sweep names for maintenance metrics.
const (
	SweepArtifacts  = "artifacts"
	SweepCache      = "cache"
	SweepTokenizers = "tokenizers"
)

// Metrics holds all application metrics covering the golden signals:
// - Latency: run and delivery durations
// - Traffic: run and event throughput
// - Errors: failed runs and deliveries
// - Saturation: active runs, dispatcher queue depth
type Metrics struct {
	meter metric.Meter

	// Run metrics (Latency, Traffic, Errors, Saturation)
	RunDuration metric.Float64Histogram
	RunsTotal   metric.Int64Counter
	RunsActive  metric.Int64UpDownCounter

	// Maintenance metrics
	SweepBytesFreed   metric.Int64Counter
	SweepFilesDeleted metric.Int64Counter

	// Dispatcher metrics (Latency, Traffic, Errors, Saturation)
	DispatcherDuration   metric.Float64Histogram
	DispatcherDelivered  metric.Int64Counter
	DispatcherFailed     metric.Int64Counter
	DispatcherDropped    metric.Int64Counter
	DispatcherRequeued   metric.Int64Counter
	DispatcherQueueSize  metric.Int64Gauge
	DispatcherBufferSize int64 // config value for saturation calculation
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("trainer")
	m := &Metrics{meter: meter}

	// Run metrics
	m.RunDuration, err = meter.Float64Histogram(
		"run_duration_seconds",
		metric.WithDescription("Training run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(10, 30, 60, 300, 600, 1800, 3600, 7200, 14400, 28800),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunsTotal, err = meter.Int64Counter(
		"runs_total",
		metric.WithDescription("Total number of runs by terminal status"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunsActive, err = meter.Int64UpDownCounter(
		"runs_active",
		metric.WithDescription("Number of currently executing runs (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Maintenance metrics
	m.SweepBytesFreed, err = meter.Int64Counter(
		"sweep_bytes_freed_total",
		metric.WithDescription("Bytes freed by maintenance sweeps"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SweepFilesDeleted, err = meter.Int64Counter(
		"sweep_files_deleted_total",
		metric.WithDescription("Files or directories deleted by maintenance sweeps"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Dispatcher metrics
	m.DispatcherDuration, err = meter.Float64Histogram(
		"dispatcher_duration_seconds",
		metric.WithDescription("Callback delivery latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DispatcherDelivered, err = meter.Int64Counter(
		"dispatcher_delivered_total",
		metric.WithDescription("Total events successfully delivered"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DispatcherFailed, err = meter.Int64Counter(
		"dispatcher_failed_total",
		metric.WithDescription("Total events failed after retries"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DispatcherDropped, err = meter.Int64Counter(
		"dispatcher_dropped_total",
		metric.WithDescription("Total events dropped (buffer full or max requeues)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DispatcherRequeued, err = meter.Int64Counter(
		"dispatcher_requeued_total",
		metric.WithDescription("Total events requeued due to open circuit"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DispatcherQueueSize, err = meter.Int64Gauge(
		"dispatcher_queue_size",
		metric.WithDescription("Current number of events in dispatcher queue (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordRunStarted records a run beginning execution.
func (m *Metrics) RecordRunStarted(ctx context.Context, modelFamily string) {
	m.RunsActive.Add(ctx, 1, metric.WithAttributes(modelFamilyAttr(modelFamily)))
}

// RecordRunFinished records a run reaching a terminal status.
func (m *Metrics) RecordRunFinished(ctx context.Context, modelFamily, status string, durationSeconds float64) {
	attrs := metric.WithAttributes(modelFamilyAttr(modelFamily), statusAttr(status))
	m.RunsTotal.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, durationSeconds, attrs)
	m.RunsActive.Add(ctx, -1, metric.WithAttributes(modelFamilyAttr(modelFamily)))
}

// RecordArtifactCleanup records a per-run artifact deletion.
func (m *Metrics) RecordArtifactCleanup(ctx context.Context, bytesFreed, filesDeleted int64) {
	m.recordSweep(ctx, SweepArtifacts, bytesFreed, filesDeleted)
}

// RecordCacheEviction records a cache eviction sweep's effect.
func (m *Metrics) RecordCacheEviction(ctx context.Context, bytesFreed, filesDeleted int64) {
	m.recordSweep(ctx, SweepCache, bytesFreed, filesDeleted)
}

// RecordTokenizerCleanup records a tokenizer sweep's effect.
func (m *Metrics) RecordTokenizerCleanup(ctx context.Context, bytesFreed, deleted int64) {
	m.recordSweep(ctx, SweepTokenizers, bytesFreed, deleted)
}

func (m *Metrics) recordSweep(ctx context.Context, sweep string, bytesFreed, deleted int64) {
	attrs := metric.WithAttributes(sweepAttr(sweep))
	m.SweepBytesFreed.Add(ctx, bytesFreed, attrs)
	m.SweepFilesDeleted.Add(ctx, deleted, attrs)
}

// RecordDispatcherDelivered records a successful event delivery with its duration.
func (m *Metrics) RecordDispatcherDelivered(ctx context.Context, durationSeconds float64) {
	m.DispatcherDelivered.Add(ctx, 1)
	m.DispatcherDuration.Record(ctx, durationSeconds)
}

// RecordDispatcherFailed records a failed event delivery.
func (m *Metrics) RecordDispatcherFailed(ctx context.Context) {
	m.DispatcherFailed.Add(ctx, 1)
}

// RecordDispatcherDropped records a dropped event.
func (m *Metrics) RecordDispatcherDropped(ctx context.Context) {
	m.DispatcherDropped.Add(ctx, 1)
}

// RecordDispatcherRequeued records a requeued event.
func (m *Metrics) RecordDispatcherRequeued(ctx context.Context) {
	m.DispatcherRequeued.Add(ctx, 1)
}

// RecordDispatcherQueueSize records the current queue size.
func (m *Metrics) RecordDispatcherQueueSize(ctx context.Context, size int64) {
	m.DispatcherQueueSize.Record(ctx, size)
}
