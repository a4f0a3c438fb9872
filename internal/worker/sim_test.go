package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSimulatedTrainerCompletes(t *testing.T) {
	t.Parallel()
	outDir := filepath.Join(t.TempDir(), "models", "r1")
	sim := &SimulatedTrainer{StepsPerEpoch: 5}

	var progress int
	res, err := sim.Train(context.Background(), trainJob("r1"), outDir, Callbacks{
		Progress: func(epoch, step int, loss float64) { progress++ },
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if res.Canceled {
		t.Error("unexpected cancellation")
	}
	if res.Steps != 10 {
		t.Errorf("steps = %d, want 10 (2 epochs x 5 steps)", res.Steps)
	}
	if progress != 2 {
		t.Errorf("progress callbacks = %d, want one per epoch", progress)
	}
	if _, err := os.Stat(filepath.Join(outDir, "weights.bin")); err != nil {
		t.Errorf("expected weights written: %v", err)
	}
}

func TestSimulatedTrainerStopsOnCancel(t *testing.T) {
	t.Parallel()
	outDir := filepath.Join(t.TempDir(), "models", "r1")
	sim := &SimulatedTrainer{StepsPerEpoch: 100}

	polls := 0
	res, err := sim.Train(context.Background(), trainJob("r1"), outDir, Callbacks{
		Canceled: func() bool {
			polls++
			return polls > 3
		},
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if !res.Canceled {
		t.Fatal("expected a canceled result")
	}
	if res.Steps >= 100 {
		t.Errorf("expected early stop, got %d steps", res.Steps)
	}
	if _, err := os.Stat(filepath.Join(outDir, "weights.bin")); !os.IsNotExist(err) {
		t.Error("no weights may be written for a canceled run")
	}
}
