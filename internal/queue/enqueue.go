package queue

import (
	"context"
	"log/slog"

	"trainer/internal/run"
)

// Enqueuer admits new training runs. It assigns the run ID when the caller
// did not, records the run as queued in the state store, and only then pushes
// the job, so a worker can never pick up a job whose run the store does not
// know about.
type Enqueuer struct {
	store  run.Store
	queue  Queue
	logger *slog.Logger
}

// NewEnqueuer creates an enqueuer over the given store and queue.
func NewEnqueuer(store run.Store, q Queue) *Enqueuer {
	return &Enqueuer{
		store:  store,
		queue:  q,
		logger: slog.With("component", "enqueuer"),
	}
}

// Enqueue admits one training request and returns its run ID. An empty runID
// gets a generated one derived from the model family and size. The queued
// status is written before the push; a push failure leaves the run queued in
// the store with no job behind it, which a later re-enqueue under the same
// run ID resolves.
func (e *Enqueuer) Enqueue(ctx context.Context, req TrainRequest, runID string) (string, error) {
	if runID == "" {
		runID = run.NewRunID(req.ModelFamily, req.ModelSize)
	}
	job := &TrainJob{RunID: runID, Request: req}
	if err := job.Validate(); err != nil {
		return "", err
	}
	if err := e.store.SetStatus(ctx, runID, run.StatusQueued); err != nil {
		return "", err
	}
	if err := e.queue.Enqueue(ctx, job); err != nil {
		return "", err
	}
	e.logger.Info("Run enqueued",
		"runId", runID,
		"modelFamily", req.ModelFamily,
		"modelSize", req.ModelSize)
	return runID, nil
}
