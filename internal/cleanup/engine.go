// Package cleanup implements the safety-gated maintenance engines: per-run
// artifact cleanup, corpus cache eviction, and reference-counted tokenizer
// cleanup.
//
// All three are explicit, single-shot operations with no internal locking;
// terminal-status gating, grace periods, and age thresholds substitute for
// mutual exclusion. Running two sweeps concurrently against the same
// directory is unsupported. Unlike event publishing, failures here always
// propagate as typed errors, never log-and-swallow.
package cleanup

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"trainer/internal/apperrors"
	"trainer/internal/config"
	"trainer/internal/run"
)

// Non-delete reason codes, in gate order.
const (
	ReasonDisabled          = "cleanup_disabled"
	ReasonDirectoryNotFound = "directory_not_found"
	ReasonUploadNotVerified = "upload_not_verified"
	ReasonRunNotTerminal    = "run_not_terminal"
	ReasonDryRun            = "dry_run"
)

// Result describes what a cleanup invocation did and why. Reason is empty
// iff Deleted is true.
type Result struct {
	RunID        string `json:"run_id"`
	Deleted      bool   `json:"deleted"`
	BytesFreed   int64  `json:"bytes_freed"`
	FilesDeleted int64  `json:"files_deleted"`
	Reason       string `json:"reason,omitempty"`
}

// MetricsRecorder is an optional interface for recording maintenance metrics.
type MetricsRecorder interface {
	RecordArtifactCleanup(ctx context.Context, bytesFreed, filesDeleted int64)
	RecordCacheEviction(ctx context.Context, bytesFreed, filesDeleted int64)
	RecordTokenizerCleanup(ctx context.Context, bytesFreed, deleted int64)
}

// Engine deletes a single run's local artifact directory after confirmed
// durable upload.
//
// Five gates are evaluated strictly in order; each yields a non-deleting
// Result with a reason code, and only a run that passes all of them is
// physically deleted:
//
//  1. feature flag disabled            -> cleanup_disabled
//  2. artifact directory absent        -> directory_not_found
//  3. durable-upload pointer absent    -> upload_not_verified (when verification required)
//  4. run status not terminal          -> run_not_terminal
//  5. dry-run flag set                 -> dry_run
type Engine struct {
	cfg     config.CleanupConfig
	store   run.Store
	metrics MetricsRecorder
	logger  *slog.Logger

	// sleep is swapped in tests to skip the real grace wait.
	sleep func(time.Duration)
}

// NewEngine creates a cleanup engine consulting store for gates 3 and 4.
// metrics may be nil.
func NewEngine(cfg config.CleanupConfig, store run.Store, metrics MetricsRecorder) *Engine {
	return &Engine{
		cfg:     cfg,
		store:   store,
		metrics: metrics,
		logger:  slog.With("component", "cleanup"),
		sleep:   time.Sleep,
	}
}

// CleanupRun evaluates the gates for runID and deletes artifactDir when they
// all pass. A policy "don't delete yet" outcome is a non-error Result; only
// genuine I/O or store failures return an error.
func (e *Engine) CleanupRun(ctx context.Context, runID, artifactDir string) (*Result, error) {
	logger := e.logger.With("runId", runID, "path", artifactDir)
	skipped := func(reason string) *Result {
		return &Result{RunID: runID, Reason: reason}
	}

	// Gate 1: feature flag.
	if !e.cfg.Enabled {
		return skipped(ReasonDisabled), nil
	}

	// Gate 2: directory must exist.
	if _, err := os.Stat(artifactDir); err != nil {
		if os.IsNotExist(err) {
			return skipped(ReasonDirectoryNotFound), nil
		}
		return nil, e.wrap("cleanup.stat", err)
	}

	// Gate 3: durable upload must be confirmed, when verification is on.
	if e.cfg.VerifyUpload {
		ptr, ok, err := e.store.GetArtifactPointer(ctx, runID)
		if err != nil {
			return nil, err
		}
		if !ok || ptr.ExternalID == "" {
			logger.Warn("Cleanup skipped: upload not verified")
			return skipped(ReasonUploadNotVerified), nil
		}
	}

	// Gate 4: run must be terminal.
	status, ok, err := e.store.GetStatus(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok || !status.IsTerminal() {
		logger.Info("Cleanup skipped: run not terminal", "status", status)
		return skipped(ReasonRunNotTerminal), nil
	}

	// Grace delay absorbs clock-skew races between pointer write and delete.
	// Pure wait: the gates above are not re-checked afterwards.
	if grace := e.cfg.GracePeriod(); grace > 0 {
		e.sleep(grace)
	}

	// Counting is advisory telemetry; a walk failure degrades to a logged
	// partial count, deletion is the operation of record.
	bytesTotal, filesTotal, partial := measureTree(artifactDir)
	if partial {
		logger.Warn("Cleanup size count incomplete, reporting partial totals",
			"bytes", bytesTotal, "files", filesTotal)
	}

	// Gate 5: dry run logs what would happen and deletes nothing.
	if e.cfg.DryRun {
		logger.Info("Cleanup dry-run: would delete", "bytes", bytesTotal, "files", filesTotal)
		return skipped(ReasonDryRun), nil
	}

	if err := os.RemoveAll(artifactDir); err != nil {
		logger.Error("Cleanup failed", "error", err)
		return nil, e.wrap("cleanup.removeAll", err)
	}

	logger.Info("Cleanup completed", "bytesFreed", bytesTotal, "filesDeleted", filesTotal)
	if e.metrics != nil {
		e.metrics.RecordArtifactCleanup(ctx, bytesTotal, filesTotal)
	}

	return &Result{
		RunID:        runID,
		Deleted:      true,
		BytesFreed:   bytesTotal,
		FilesDeleted: filesTotal,
	}, nil
}

func (e *Engine) wrap(op string, cause error) error {
	return &apperrors.Error{
		Sentinel: apperrors.ErrCleanup,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// measureTree walks root recursively, summing file sizes and counts.
// Errors do not abort the walk; partial reports whether any entry was skipped.
func measureTree(root string) (bytes int64, files int64, partial bool) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			partial = true
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			partial = true
			return nil
		}
		bytes += info.Size()
		files++
		return nil
	})
	return bytes, files, partial
}
