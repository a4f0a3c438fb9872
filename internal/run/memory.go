package run

import (
	"context"
	"sync"
	"time"

	"trainer/internal/apperrors"
)

// record holds the stored fields for one run.
type record struct {
	status       Status
	hasStatus    bool
	heartbeat    time.Time
	hasHeartbeat bool
	cancel       bool
	message      string
	hasMessage   bool
	pointer      ArtifactPointer
	hasPointer   bool
}

// MemoryStore is an in-process Store with the same semantics as RedisStore.
// Used in tests and in single-process deployments without a shared store.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*record)}
}

// rec returns the record for runID, creating it under the write lock.
func (s *MemoryStore) rec(runID string) *record {
	r, ok := s.runs[runID]
	if !ok {
		r = &record{}
		s.runs[runID] = r
	}
	return r
}

func (s *MemoryStore) SetStatus(_ context.Context, runID string, status Status) error {
	if !status.Valid() {
		return apperrors.Validation("status", "unknown status "+string(status))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.rec(runID)
	if r.hasStatus && r.status.IsTerminal() {
		if r.status == status {
			return nil
		}
		return apperrors.InvalidTransition(runID, string(r.status), string(status))
	}
	r.status = status
	r.hasStatus = true
	return nil
}

func (s *MemoryStore) GetStatus(_ context.Context, runID string) (Status, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[runID]
	if !ok || !r.hasStatus {
		return "", false, nil
	}
	return r.status, true, nil
}

func (s *MemoryStore) SetHeartbeat(_ context.Context, runID string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.rec(runID)
	if r.hasStatus && r.status.IsTerminal() {
		return nil
	}
	r.heartbeat = ts
	r.hasHeartbeat = true
	return nil
}

func (s *MemoryStore) GetHeartbeat(_ context.Context, runID string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[runID]
	if !ok || !r.hasHeartbeat {
		return time.Time{}, false, nil
	}
	return r.heartbeat, true, nil
}

func (s *MemoryStore) RequestCancel(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec(runID).cancel = true
	return nil
}

func (s *MemoryStore) IsCancelRequested(_ context.Context, runID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[runID]
	if !ok {
		return false, nil
	}
	return r.cancel, nil
}

func (s *MemoryStore) SetMessage(_ context.Context, runID string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rec(runID)
	r.message = text
	r.hasMessage = true
	return nil
}

func (s *MemoryStore) GetMessage(_ context.Context, runID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[runID]
	if !ok || !r.hasMessage {
		return "", false, nil
	}
	return r.message, true, nil
}

func (s *MemoryStore) SetArtifactPointer(_ context.Context, runID string, ptr ArtifactPointer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rec(runID)
	r.pointer = ptr
	r.hasPointer = true
	return nil
}

func (s *MemoryStore) GetArtifactPointer(_ context.Context, runID string) (ArtifactPointer, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[runID]
	if !ok || !r.hasPointer {
		return ArtifactPointer{}, false, nil
	}
	return r.pointer, true, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// Verify MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
