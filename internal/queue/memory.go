package queue

import (
	"context"
	"time"
)

// MemoryQueue is a channel-backed queue for tests and single-process use.
type MemoryQueue struct {
	jobs       chan *TrainJob
	popTimeout time.Duration
}

// NewMemoryQueue creates an in-process queue holding up to size jobs.
func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{
		jobs:       make(chan *TrainJob, size),
		popTimeout: 50 * time.Millisecond,
	}
}

// Enqueue validates and pushes the job. A full buffer blocks until there is
// room or ctx expires.
func (q *MemoryQueue) Enqueue(ctx context.Context, job *TrainJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue waits briefly for the next job, returning (nil, nil) when none
// arrives inside the window.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*TrainJob, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-time.After(q.popTimeout):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var _ Queue = (*MemoryQueue)(nil)
