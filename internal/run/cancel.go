package run

import (
	"context"
	"log/slog"
)

// CancelToken is the cooperative cancellation capability handed to a
// long-running unit of work. The work polls Requested at its own checkpoints
// (e.g., between training steps); nothing interrupts a worker that does not
// poll.
type CancelToken struct {
	store  Store
	runID  string
	logger *slog.Logger
}

// NewCancelToken creates a token polling the cancel flag for runID.
func NewCancelToken(store Store, runID string) *CancelToken {
	return &CancelToken{
		store:  store,
		runID:  runID,
		logger: slog.With("component", "cancel", "runId", runID),
	}
}

// Requested reports whether cancellation has been requested. A store read
// failure is logged and treated as "not requested": cancellation is advisory
// and a transient store error must not abort training by itself.
func (t *CancelToken) Requested(ctx context.Context) bool {
	requested, err := t.store.IsCancelRequested(ctx, t.runID)
	if err != nil {
		t.logger.Warn("Cancel poll failed", "error", err)
		return false
	}
	return requested
}

// RunID returns the run this token belongs to.
func (t *CancelToken) RunID() string { return t.runID }
