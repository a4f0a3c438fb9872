package worker

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"time"

	"trainer/internal/apperrors"
	"trainer/internal/queue"
)

// SimulatedTrainer is a deterministic backend that exercises the full run
// lifecycle without a model runtime: it ticks through epochs and steps,
// reports a decaying loss, honors cancellation between steps, and writes a
// placeholder weights file. Used when no real backend is configured and for
// end-to-end verification.
type SimulatedTrainer struct {
	StepsPerEpoch int
	StepDelay     time.Duration
}

func (s *SimulatedTrainer) Train(ctx context.Context, job *queue.TrainJob, outDir string, cb Callbacks) (*TrainResult, error) {
	stepsPerEpoch := s.StepsPerEpoch
	if stepsPerEpoch <= 0 {
		stepsPerEpoch = 10
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, apperrors.Internal("sim.mkdir", err)
	}

	loss := 4.0
	step := 0
	for epoch := 1; epoch <= job.Request.NumEpochs; epoch++ {
		for i := 0; i < stepsPerEpoch; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if cb.Canceled != nil && cb.Canceled() {
				return &TrainResult{Loss: loss, Perplexity: math.Exp(loss), Steps: step, Canceled: true}, nil
			}
			if s.StepDelay > 0 {
				time.Sleep(s.StepDelay)
			}
			step++
			loss = 4.0 / (1.0 + 0.05*float64(step))
			if cb.Heartbeat != nil {
				cb.Heartbeat()
			}
		}
		if cb.Progress != nil {
			cb.Progress(epoch, step, loss)
		}
	}

	if err := os.WriteFile(filepath.Join(outDir, "weights.bin"), []byte("simulated"), 0o644); err != nil {
		return nil, apperrors.Internal("sim.save", err)
	}
	return &TrainResult{Loss: loss, Perplexity: math.Exp(loss), Steps: step}, nil
}

var _ Trainer = (*SimulatedTrainer)(nil)
