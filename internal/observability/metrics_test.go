package observability

import (
	"context"
	"testing"

	"trainer/internal/cleanup"
	"trainer/internal/dispatcher"
	"trainer/internal/worker"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, handler, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	if metrics == nil {
		t.Fatal("Expected metrics to be non-nil")
	}

	if handler == nil {
		t.Fatal("Expected handler to be non-nil")
	}
}

func TestRecordRunMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordRunStarted(ctx, "gpt2")
	metrics.RecordRunStarted(ctx, "llama")
	metrics.RecordRunFinished(ctx, "gpt2", "completed", 120.5)
	metrics.RecordRunFinished(ctx, "llama", "failed", 30.0)
	metrics.RecordRunFinished(ctx, "gpt2", "canceled", 10.0)
}

func TestRecordSweepMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordArtifactCleanup(ctx, 1<<20, 12)
	metrics.RecordCacheEviction(ctx, 5<<20, 3)
	metrics.RecordTokenizerCleanup(ctx, 2<<10, 1)
}

func TestRecordDispatcherMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordDispatcherDelivered(ctx, 0.05)
	metrics.RecordDispatcherFailed(ctx)
	metrics.RecordDispatcherDropped(ctx)
	metrics.RecordDispatcherRequeued(ctx)
	metrics.RecordDispatcherQueueSize(ctx, 7)
}

// Metrics must satisfy every consumer-side recorder interface.
var (
	_ dispatcher.MetricsRecorder = (*Metrics)(nil)
	_ cleanup.MetricsRecorder    = (*Metrics)(nil)
	_ worker.MetricsRecorder     = (*Metrics)(nil)
)
