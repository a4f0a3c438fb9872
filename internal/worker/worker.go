// Package worker drives training runs end to end: status transitions,
// heartbeats, cooperative cancellation, artifact upload, and lifecycle
// events, in the contract's required order.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"trainer/internal/apperrors"
	"trainer/internal/artifact"
	"trainer/internal/cleanup"
	"trainer/internal/event"
	"trainer/internal/manifest"
	"trainer/internal/queue"
	"trainer/internal/run"
	"trainer/pkg/backoff"
)

// TrainResult is what a backend reports when training ends.
type TrainResult struct {
	Loss       float64
	Perplexity float64
	Steps      int
	Canceled   bool // backend observed the cancel flag and stopped early
}

// Callbacks are handed to the backend so it can report liveness and progress
// and poll for cancellation between steps without knowing about the store.
type Callbacks struct {
	Heartbeat func()
	Progress  func(epoch, step int, loss float64)
	Canceled  func() bool
}

// Trainer is the opaque training backend. It must write model output under
// outDir and poll Canceled between steps; it never touches the state store.
type Trainer interface {
	Train(ctx context.Context, job *queue.TrainJob, outDir string, cb Callbacks) (*TrainResult, error)
}

// MetricsRecorder is an optional interface for recording run metrics.
type MetricsRecorder interface {
	RecordRunStarted(ctx context.Context, modelFamily string)
	RecordRunFinished(ctx context.Context, modelFamily, status string, durationSeconds float64)
}

// Runner executes train jobs one at a time.
//
// The ordering contract for terminal transitions: the terminal status (and
// artifact pointer, on success) is written to the store before the terminal
// event is published, so any observer reacting to the event sees a store
// that already agrees with it.
type Runner struct {
	store         run.Store
	publisher     event.Publisher
	trainer       Trainer
	uploader      artifact.Uploader // nil disables upload and pointer writes
	cleaner       *cleanup.Engine   // nil disables post-run cleanup
	metrics       MetricsRecorder
	artifactsRoot string
	hbInterval    time.Duration
	logger        *slog.Logger

	now func() time.Time
}

// Config assembles a Runner. Store, Publisher, and Trainer are required.
type Config struct {
	Store             run.Store
	Publisher         event.Publisher
	Trainer           Trainer
	Uploader          artifact.Uploader
	Cleaner           *cleanup.Engine
	Metrics           MetricsRecorder
	ArtifactsRoot     string
	HeartbeatInterval time.Duration
}

// NewRunner creates a runner from cfg.
func NewRunner(cfg Config) *Runner {
	interval := cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Runner{
		store:         cfg.Store,
		publisher:     cfg.Publisher,
		trainer:       cfg.Trainer,
		uploader:      cfg.Uploader,
		cleaner:       cfg.Cleaner,
		metrics:       cfg.Metrics,
		artifactsRoot: cfg.ArtifactsRoot,
		hbInterval:    interval,
		logger:        slog.With("component", "worker"),
		now:           time.Now,
	}
}

// Run consumes jobs from q until ctx is canceled. Individual job failures
// are recorded against their run and do not stop the loop; dequeue errors
// back off exponentially so a queue outage does not spin the loop hot.
func (r *Runner) Run(ctx context.Context, q queue.Queue) error {
	dequeueFailures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		job, err := q.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			dequeueFailures++
			wait := backoff.Exponential(dequeueFailures, nil)
			r.logger.Error("Dequeue failed", "error", err, "retryIn", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		dequeueFailures = 0
		if job == nil {
			continue
		}
		if err := r.Execute(ctx, job); err != nil {
			r.logger.Error("Run failed", "runId", job.RunID, "error", err)
		}
	}
}

// Execute drives one run. The returned error reflects the run outcome; by
// the time it returns, the store already holds the terminal state.
func (r *Runner) Execute(ctx context.Context, job *queue.TrainJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	runID := job.RunID
	logger := r.logger.With("runId", runID)
	started := r.now()

	if err := r.store.SetStatus(ctx, runID, run.StatusRunning); err != nil {
		return err
	}
	if err := r.store.SetHeartbeat(ctx, runID, r.now()); err != nil {
		logger.Warn("Initial heartbeat failed", "error", err)
	}
	if r.metrics != nil {
		r.metrics.RecordRunStarted(ctx, job.Request.ModelFamily)
	}
	r.publisher.Publish(event.Started(runID, job.Request.ModelFamily, job.Request.ModelSize, job.Request.NumEpochs))
	logger.Info("Training started",
		"modelFamily", job.Request.ModelFamily,
		"modelSize", job.Request.ModelSize,
		"numEpochs", job.Request.NumEpochs,
		"tokenizerId", job.Request.TokenizerID)

	stopHB := r.startHeartbeats(ctx, runID)
	token := run.NewCancelToken(r.store, runID)

	outDir := filepath.Join(r.artifactsRoot, "models", runID)
	cb := Callbacks{
		Heartbeat: func() {
			if err := r.store.SetHeartbeat(ctx, runID, r.now()); err != nil {
				logger.Warn("Heartbeat failed", "error", err)
			}
		},
		Progress: func(epoch, step int, loss float64) {
			r.publisher.Publish(event.Progress(runID, epoch, job.Request.NumEpochs, step, loss))
		},
		Canceled: func() bool { return token.Requested(ctx) },
	}

	result, trainErr := r.trainer.Train(ctx, job, outDir, cb)
	if trainErr == nil && result == nil {
		trainErr = apperrors.Internal("worker.train", errors.New("backend returned no result"))
	}

	// No liveness signals once we start writing terminal state. The store
	// would ignore late heartbeats anyway; stopping first keeps logs quiet.
	stopHB()

	status := run.StatusCompleted
	switch {
	case trainErr != nil:
		status = run.StatusFailed
		r.finishFailed(ctx, job, trainErr)
	case result.Canceled:
		status = run.StatusCanceled
		r.finishCanceled(ctx, job, result)
	default:
		if err := r.finishCompleted(ctx, job, outDir, result); err != nil {
			status = run.StatusFailed
			trainErr = err
		}
	}

	if r.metrics != nil {
		r.metrics.RecordRunFinished(ctx, job.Request.ModelFamily, string(status), r.now().Sub(started).Seconds())
	}
	logger.Info("Training finished", "status", status, "duration", r.now().Sub(started))
	return trainErr
}

// startHeartbeats refreshes the run's heartbeat on a ticker until the
// returned stop function is called.
func (r *Runner) startHeartbeats(ctx context.Context, runID string) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(r.hbInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.store.SetHeartbeat(ctx, runID, r.now()); err != nil {
					r.logger.Warn("Heartbeat failed", "runId", runID, "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}

// finishCompleted uploads artifacts, records the pointer, and writes the
// completed status, then publishes the completion event. An upload failure
// converts the run into a failure.
func (r *Runner) finishCompleted(ctx context.Context, job *queue.TrainJob, outDir string, result *TrainResult) error {
	runID := job.RunID

	m := &manifest.RunManifest{
		RunID:       runID,
		CreatedAt:   r.now().Unix(),
		ModelFamily: job.Request.ModelFamily,
		ModelSize:   job.Request.ModelSize,
		TokenizerID: job.Request.TokenizerID,
		CorpusPath:  job.Request.CorpusPath,
	}
	if err := manifest.Write(outDir, m); err != nil {
		r.finishFailed(ctx, job, err)
		return err
	}

	var pointer run.ArtifactPointer
	if r.uploader != nil {
		ptr, err := r.uploader.Upload(ctx, runID, outDir)
		if err != nil {
			r.finishFailed(ctx, job, err)
			return err
		}
		pointer = ptr
		if err := r.store.SetArtifactPointer(ctx, runID, pointer); err != nil {
			r.finishFailed(ctx, job, err)
			return err
		}
	}

	if err := r.store.SetMessage(ctx, runID, fmt.Sprintf("completed: loss=%.4f perplexity=%.4f", result.Loss, result.Perplexity)); err != nil {
		r.logger.Warn("Terminal message write failed", "runId", runID, "error", err)
	}
	if err := r.store.SetStatus(ctx, runID, run.StatusCompleted); err != nil {
		r.finishFailed(ctx, job, err)
		return err
	}

	// Store is terminal and pointer recorded; only now may observers hear
	// about completion.
	r.publisher.Publish(event.Completed(runID, result.Loss, result.Perplexity, pointer.Encode()))

	if r.cleaner != nil {
		if res, err := r.cleaner.CleanupRun(ctx, runID, outDir); err != nil {
			r.logger.Error("Post-run cleanup failed", "runId", runID, "error", err)
		} else if !res.Deleted {
			r.logger.Info("Post-run cleanup skipped", "runId", runID, "reason", res.Reason)
		}
	}
	return nil
}

// finishCanceled records the cooperative cancellation as its own terminal
// status; a canceled run is not a failed run.
func (r *Runner) finishCanceled(ctx context.Context, job *queue.TrainJob, result *TrainResult) {
	runID := job.RunID
	if err := r.store.SetMessage(ctx, runID, "canceled by request"); err != nil {
		r.logger.Warn("Terminal message write failed", "runId", runID, "error", err)
	}
	if err := r.store.SetStatus(ctx, runID, run.StatusCanceled); err != nil {
		r.logger.Error("Terminal status write failed", "runId", runID, "error", err)
		return
	}
	r.publisher.Publish(event.Failed(runID, "canceled", "canceled by request", string(run.StatusCanceled)))
}

// finishFailed records the failure and publishes the failure event, in that
// order.
func (r *Runner) finishFailed(ctx context.Context, job *queue.TrainJob, cause error) {
	runID := job.RunID
	if err := r.store.SetMessage(ctx, runID, cause.Error()); err != nil {
		r.logger.Warn("Terminal message write failed", "runId", runID, "error", err)
	}
	if err := r.store.SetStatus(ctx, runID, run.StatusFailed); err != nil {
		r.logger.Error("Terminal status write failed", "runId", runID, "error", err)
		return
	}
	r.publisher.Publish(event.Failed(runID, errorKind(cause), cause.Error(), string(run.StatusFailed)))
}

// errorKind maps an error to the coarse kind carried in failure events.
func errorKind(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrUpload):
		return "upload"
	case errors.Is(err, apperrors.ErrValidation):
		return "validation"
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "interrupted"
	default:
		return "internal"
	}
}
