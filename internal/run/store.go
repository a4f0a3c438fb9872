package run

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ArtifactPointer identifies a durable copy of a run's artifacts outside the
// local filesystem. Absence means "not yet durable".
type ArtifactPointer struct {
	StorageKind string `json:"storage_kind"`
	ExternalID  string `json:"external_id"`
}

// Encode renders the pointer as the single-string store value.
func (p ArtifactPointer) Encode() string {
	if p.StorageKind == "" {
		return p.ExternalID
	}
	return p.StorageKind + ":" + p.ExternalID
}

// DecodePointer parses a store value written by Encode. A value without a
// storage kind prefix is treated as a bare external ID.
func DecodePointer(value string) ArtifactPointer {
	kind, id, ok := strings.Cut(value, ":")
	if !ok {
		return ArtifactPointer{ExternalID: value}
	}
	return ArtifactPointer{StorageKind: kind, ExternalID: id}
}

// Store is typed access to per-run state in the shared key-value store.
//
// The store is the durable source of truth for observers; events are only a
// notification overlay. One worker owns status/heartbeat/message writes for a
// given run while it is non-terminal; cancel and artifact-pointer writes may
// come from other actors concurrently, so those operations are idempotent or
// last-write-wins by contract.
//
// All reads return ok=false (not an error) for an unrecognized run_id,
// distinguishing "never existed" from "exists but field unset".
type Store interface {
	// SetStatus writes the run status. Returns an InvalidTransition error if
	// a different terminal status is already recorded. Two writers racing to
	// set the same terminal status is benign and succeeds.
	SetStatus(ctx context.Context, runID string, status Status) error
	GetStatus(ctx context.Context, runID string) (Status, bool, error)

	// SetHeartbeat records worker liveness. It is a no-op once a terminal
	// status is stored, so a stale worker that has not yet observed
	// completion cannot make a frozen run look alive.
	SetHeartbeat(ctx context.Context, runID string, ts time.Time) error
	GetHeartbeat(ctx context.Context, runID string) (time.Time, bool, error)

	// RequestCancel sets the write-once-true cancellation flag. Idempotent,
	// never fails on repeat calls, and never resets to false.
	RequestCancel(ctx context.Context, runID string) error
	IsCancelRequested(ctx context.Context, runID string) (bool, error)

	// SetMessage stores the human-readable terminal message. The "exactly
	// once, at terminal transition" rule is caller discipline, not enforced
	// here.
	SetMessage(ctx context.Context, runID string, text string) error
	GetMessage(ctx context.Context, runID string) (string, bool, error)

	// SetArtifactPointer records the durable-upload pointer. A later call
	// overwrites, so callers must call it at most once per run.
	SetArtifactPointer(ctx context.Context, runID string, ptr ArtifactPointer) error
	GetArtifactPointer(ctx context.Context, runID string) (ArtifactPointer, bool, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}

// Shared-store key schema. String keys, string values.
func statusKey(runID string) string    { return "status:" + runID }
func heartbeatKey(runID string) string { return "heartbeat:" + runID }
func cancelKey(runID string) string    { return "cancel:" + runID }
func messageKey(runID string) string   { return "message:" + runID }
func artifactKey(runID string) string  { return "artifact:" + runID }

// NewRunID generates a run identifier for callers that do not supply one.
func NewRunID(modelFamily, modelSize string) string {
	return fmt.Sprintf("%s-%s-%s", modelFamily, modelSize, uuid.NewString()[:8])
}
