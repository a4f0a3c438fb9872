// Package event defines the versioned run lifecycle events and the
// fire-and-forget publishing contract.
//
// Events are a low-latency notification overlay, not a source of truth:
// observers must treat the run state store as authoritative. Each type and
// version pair is a closed, append-only schema; new fields may be added, no
// field is ever removed or repurposed within a version.
package event

import (
	"maps"
)

// Event type identifiers. The trailing version is part of the contract.
const (
	TypeStartedV1   = "trainer.run.started.v1"
	TypeProgressV1  = "trainer.run.progress.v1"
	TypeCompletedV1 = "trainer.run.completed.v1"
	TypeFailedV1    = "trainer.run.failed.v1"
)

// SchemaVersion is the current payload schema version.
const SchemaVersion = "v1"

// Event is one lifecycle notification. RequestID always equals RunID,
// giving trivial cross-service correlation.
type Event struct {
	Type      string         `json:"type"`
	Version   string         `json:"version"`
	RunID     string         `json:"run_id"`
	RequestID string         `json:"request_id"`
	Payload   map[string]any `json:"payload"`
}

func newEvent(eventType, runID string, payload map[string]any) *Event {
	return &Event{
		Type:      eventType,
		Version:   SchemaVersion,
		RunID:     runID,
		RequestID: runID,
		Payload:   payload,
	}
}

// Started builds the event preceding any progress for a run.
func Started(runID, modelFamily, modelSize string, totalEpochs int) *Event {
	return newEvent(TypeStartedV1, runID, map[string]any{
		"status":       "running",
		"model_family": modelFamily,
		"model_size":   modelSize,
		"total_epochs": totalEpochs,
	})
}

// Progress builds a training progress event. The payload is self-describing;
// observers must not rely on delivery order across subscribers.
func Progress(runID string, epoch, totalEpochs, step int, loss float64) *Event {
	return newEvent(TypeProgressV1, runID, map[string]any{
		"status":       "running",
		"epoch":        epoch,
		"total_epochs": totalEpochs,
		"step":         step,
		"loss":         loss,
	})
}

// Completed builds the terminal success event. The worker must have written
// status=completed to the store before publishing this.
func Completed(runID string, loss, perplexity float64, artifactPointer string) *Event {
	return newEvent(TypeCompletedV1, runID, map[string]any{
		"status":           "completed",
		"loss":             loss,
		"perplexity":       perplexity,
		"artifact_pointer": artifactPointer,
	})
}

// Failed builds the terminal failure event. status distinguishes a genuine
// failure from a cooperative cancellation.
func Failed(runID, errorKind, message, status string) *Event {
	return newEvent(TypeFailedV1, runID, map[string]any{
		"status":     status,
		"error_kind": errorKind,
		"message":    message,
	})
}

// Data renders the envelope fields plus payload as a single flat map for
// transport encoding.
func (e *Event) Data() map[string]any {
	data := make(map[string]any, len(e.Payload)+3)
	maps.Copy(data, e.Payload)
	data["run_id"] = e.RunID
	data["request_id"] = e.RequestID
	data["version"] = e.Version
	return data
}

// Terminal reports whether this event is the last one for its run.
func (e *Event) Terminal() bool {
	return e.Type == TypeCompletedV1 || e.Type == TypeFailedV1
}
