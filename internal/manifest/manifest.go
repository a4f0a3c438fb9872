// Package manifest reads and writes per-run manifest files.
//
// A manifest is written into a run's artifact directory at creation time and
// is the reference source consulted before tokenizer assets may be deleted.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"trainer/internal/apperrors"
)

// FileName is the manifest file name inside a run's artifact directory.
const FileName = "manifest.json"

// RunManifest cross-links a run with the assets it was trained from.
// Unknown fields are ignored on parse so manifests can grow additively.
type RunManifest struct {
	RunID       string `json:"run_id"`
	CreatedAt   int64  `json:"created_at"`
	ModelFamily string `json:"model_family"`
	ModelSize   string `json:"model_size"`
	TokenizerID string `json:"tokenizer_id"`
	CorpusPath  string `json:"corpus_path,omitempty"`
}

// Parse reads and decodes a manifest file. A missing, unreadable, or
// malformed manifest fails with an ErrManifestParse error: an unparseable
// manifest could hide a live tokenizer reference, so callers must not skip it.
func Parse(path string) (*RunManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &apperrors.Error{
			Sentinel: apperrors.ErrManifestParse,
			Message:  fmt.Sprintf("read manifest %s: %v", path, err),
			Op:       "manifest.parse",
			Cause:    err,
		}
	}
	var m RunManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &apperrors.Error{
			Sentinel: apperrors.ErrManifestParse,
			Message:  fmt.Sprintf("decode manifest %s: %v", path, err),
			Op:       "manifest.parse",
			Cause:    err,
		}
	}
	return &m, nil
}

// Write encodes the manifest into dir/manifest.json, creating dir if needed.
func Write(dir string, m *RunManifest) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Internal("manifest.write", err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return apperrors.Internal("manifest.write", err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), data, 0o644); err != nil {
		return apperrors.Internal("manifest.write", err)
	}
	return nil
}
