// Package queue provides job delivery from the enqueue side to training
// workers. Delivery mechanics stop at push and blocking pop; retry policy,
// visibility timeouts, and dead-lettering belong to the queue operator, not
// this package.
package queue

import (
	"context"

	"trainer/internal/apperrors"
)

// TrainRequest carries the caller-supplied training parameters.
type TrainRequest struct {
	ModelFamily  string  `json:"model_family"`
	ModelSize    string  `json:"model_size"`
	MaxSeqLen    int     `json:"max_seq_len"`
	NumEpochs    int     `json:"num_epochs"`
	BatchSize    int     `json:"batch_size"`
	LearningRate float64 `json:"learning_rate"`
	CorpusPath   string  `json:"corpus_path"`
	TokenizerID  string  `json:"tokenizer_id"`
}

// TrainJob is one unit of work. RunID is assigned before enqueue so the run
// is observable in the state store from the moment it is queued.
type TrainJob struct {
	RunID   string       `json:"run_id"`
	Request TrainRequest `json:"request"`
}

// Validate checks the fields a worker cannot proceed without.
func (j *TrainJob) Validate() error {
	if j.RunID == "" {
		return apperrors.Validation("run_id", "must not be empty")
	}
	if j.Request.ModelFamily == "" {
		return apperrors.Validation("model_family", "must not be empty")
	}
	if j.Request.NumEpochs <= 0 {
		return apperrors.Validation("num_epochs", "must be positive")
	}
	return nil
}

// Queue moves train jobs between processes.
type Queue interface {
	// Enqueue pushes a job. The job must validate.
	Enqueue(ctx context.Context, job *TrainJob) error

	// Dequeue blocks for the next job, up to an implementation-defined poll
	// window. A (nil, nil) return means the window elapsed with no job; the
	// caller is expected to loop.
	Dequeue(ctx context.Context) (*TrainJob, error)
}
