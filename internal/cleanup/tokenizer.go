package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"trainer/internal/apperrors"
	"trainer/internal/config"
	"trainer/internal/manifest"
)

// ReferenceScanner collects tokenizer IDs referenced by run manifests under
// the run-artifact tree. A malformed manifest is a hard failure, not skipped:
// an unparseable manifest could hide a live reference.
type ReferenceScanner struct {
	modelsRoot string
}

// NewReferenceScanner scans modelsRoot (the models/ directory containing one
// subdirectory per run).
func NewReferenceScanner(modelsRoot string) *ReferenceScanner {
	return &ReferenceScanner{modelsRoot: modelsRoot}
}

// InUseIDs returns every tokenizer_id referenced by any run manifest.
func (s *ReferenceScanner) InUseIDs() (map[string]struct{}, error) {
	inUse := make(map[string]struct{})

	dirents, err := os.ReadDir(s.modelsRoot)
	if os.IsNotExist(err) {
		return inUse, nil
	}
	if err != nil {
		return nil, &apperrors.Error{
			Sentinel: apperrors.ErrTokenizerCleanup,
			Message:  fmt.Sprintf("scan.readDir: %v", err),
			Op:       "scan.readDir",
			Cause:    err,
		}
	}

	for _, dirent := range dirents {
		if !dirent.IsDir() {
			continue
		}
		path := filepath.Join(s.modelsRoot, dirent.Name(), manifest.FileName)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		m, err := manifest.Parse(path)
		if err != nil {
			return nil, err
		}
		if m.TokenizerID != "" {
			inUse[m.TokenizerID] = struct{}{}
		}
	}
	return inUse, nil
}

// TokenizerCleanupResult reports what one tokenizer sweep removed.
type TokenizerCleanupResult struct {
	DeletedTokenizers int64    `json:"deleted_tokenizers"`
	BytesFreed        int64    `json:"bytes_freed"`
	DeletedIDs        []string `json:"deleted_ids,omitempty"`
}

// TokenizerCleanupError is raised on the first deletion failure. Partial
// progress (tokenizers already deleted) is reported in Partial, not retried.
type TokenizerCleanupError struct {
	Partial TokenizerCleanupResult
	Op      string
	Cause   error
}

func (e *TokenizerCleanupError) Error() string {
	return fmt.Sprintf("%s: %v (deleted %d before failure)", e.Op, e.Cause, e.Partial.DeletedTokenizers)
}

func (e *TokenizerCleanupError) Unwrap() []error {
	return []error{apperrors.ErrTokenizerCleanup, e.Cause}
}

// TokenizerCleanup deletes tokenizer directories that no manifest references
// and that have been unmodified for at least MinUnusedDays.
//
// These deletions are not recoverable by re-fetch; the age window is the
// sole safety margin against an incomplete reference scan.
type TokenizerCleanup struct {
	cfg            config.TokenizerCleanupConfig
	tokenizersRoot string
	scanner        *ReferenceScanner
	metrics        MetricsRecorder
	logger         *slog.Logger

	// ExtraInUse supplements the manifest scan with tokenizer IDs referenced
	// by queued or running job payloads, supplied by the caller.
	ExtraInUse []string

	// now is swapped in tests.
	now func() time.Time
}

// NewTokenizerCleanup creates a sweep over tokenizersRoot, consulting
// scanner before any deletion. metrics may be nil.
func NewTokenizerCleanup(cfg config.TokenizerCleanupConfig, tokenizersRoot string, scanner *ReferenceScanner, metrics MetricsRecorder) *TokenizerCleanup {
	return &TokenizerCleanup{
		cfg:            cfg,
		tokenizersRoot: tokenizersRoot,
		scanner:        scanner,
		metrics:        metrics,
		logger:         slog.With("component", "tokenizer-cleanup", "path", tokenizersRoot),
		now:            time.Now,
	}
}

// Clean scans references and deletes unreferenced, sufficiently old
// tokenizer directories. Stops at the first deletion failure.
func (t *TokenizerCleanup) Clean(ctx context.Context) (*TokenizerCleanupResult, error) {
	if !t.cfg.Enabled {
		t.logger.Info("Tokenizer cleanup skipped: disabled")
		return &TokenizerCleanupResult{}, nil
	}

	dirents, err := os.ReadDir(t.tokenizersRoot)
	if os.IsNotExist(err) {
		t.logger.Info("Tokenizer cleanup: directory missing")
		return &TokenizerCleanupResult{}, nil
	}
	if err != nil {
		return nil, &TokenizerCleanupError{Op: "tokenizer.readDir", Cause: err}
	}

	inUse, err := t.scanner.InUseIDs()
	if err != nil {
		return nil, err
	}
	for _, id := range t.ExtraInUse {
		inUse[id] = struct{}{}
	}

	minAge := time.Duration(t.cfg.MinUnusedDays) * 24 * time.Hour
	now := t.now()

	t.logger.Info("Tokenizer cleanup started",
		"minUnusedDays", t.cfg.MinUnusedDays, "inUseCount", len(inUse))

	// Deterministic candidate order.
	names := make([]string, 0, len(dirents))
	for _, dirent := range dirents {
		if dirent.IsDir() {
			names = append(names, dirent.Name())
		}
	}
	sort.Strings(names)

	result := &TokenizerCleanupResult{}
	for _, tokenizerID := range names {
		if _, used := inUse[tokenizerID]; used {
			continue
		}
		dir := filepath.Join(t.tokenizersRoot, tokenizerID)
		info, err := os.Stat(dir)
		if err != nil {
			return nil, &TokenizerCleanupError{Partial: *result, Op: "tokenizer.stat", Cause: err}
		}
		if now.Sub(info.ModTime()) < minAge {
			continue
		}

		size, _, _ := measureTree(dir)
		if err := os.RemoveAll(dir); err != nil {
			t.logger.Error("Failed to delete tokenizer directory",
				"tokenizerId", tokenizerID, "error", err)
			return nil, &TokenizerCleanupError{Partial: *result, Op: "tokenizer.removeAll", Cause: err}
		}
		result.DeletedTokenizers++
		result.BytesFreed += size
		result.DeletedIDs = append(result.DeletedIDs, tokenizerID)
	}

	t.logger.Info("Tokenizer cleanup completed",
		"deletedTokenizers", result.DeletedTokenizers, "bytesFreed", result.BytesFreed)
	if t.metrics != nil {
		t.metrics.RecordTokenizerCleanup(ctx, result.BytesFreed, result.DeletedTokenizers)
	}
	return result, nil
}
