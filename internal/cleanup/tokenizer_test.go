package cleanup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trainer/internal/apperrors"
	"trainer/internal/config"
	"trainer/internal/manifest"
)

type tokenizerFixture struct {
	artifactsRoot  string
	modelsRoot     string
	tokenizersRoot string
}

func newTokenizerFixture(t *testing.T) *tokenizerFixture {
	t.Helper()
	root := t.TempDir()
	f := &tokenizerFixture{
		artifactsRoot:  root,
		modelsRoot:     filepath.Join(root, "models"),
		tokenizersRoot: filepath.Join(root, "tokenizers"),
	}
	for _, dir := range []string{f.modelsRoot, f.tokenizersRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func (f *tokenizerFixture) addManifest(t *testing.T, runID, tokenizerID string) {
	t.Helper()
	dir := filepath.Join(f.modelsRoot, runID)
	if err := manifest.Write(dir, &manifest.RunManifest{RunID: runID, TokenizerID: tokenizerID}); err != nil {
		t.Fatal(err)
	}
}

func (f *tokenizerFixture) addTokenizer(t *testing.T, tokenizerID string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(f.tokenizersRoot, tokenizerID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tokenizer.json"), make([]byte, 64), 0o644); err != nil {
		t.Fatal(err)
	}
	ts := time.Now().Add(-age)
	if err := os.Chtimes(dir, ts, ts); err != nil {
		t.Fatal(err)
	}
	return dir
}

func (f *tokenizerFixture) cleanup(cfg config.TokenizerCleanupConfig) *TokenizerCleanup {
	return NewTokenizerCleanup(cfg, f.tokenizersRoot, NewReferenceScanner(f.modelsRoot), nil)
}

// Referenced tokenizer survives, unreferenced old tokenizer goes.
func TestTokenizerCleanupDeletesOnlyUnreferenced(t *testing.T) {
	t.Parallel()
	f := newTokenizerFixture(t)
	f.addManifest(t, "r1", "t1")
	kept := f.addTokenizer(t, "t1", 90*24*time.Hour)
	deleted := f.addTokenizer(t, "t2", 60*24*time.Hour)

	res, err := f.cleanup(config.TokenizerCleanupConfig{Enabled: true, MinUnusedDays: 30}).Clean(context.Background())
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if res.DeletedTokenizers != 1 {
		t.Fatalf("expected 1 deletion, got %+v", res)
	}
	if len(res.DeletedIDs) != 1 || res.DeletedIDs[0] != "t2" {
		t.Errorf("expected t2 deleted, got %v", res.DeletedIDs)
	}
	if _, err := os.Stat(kept); err != nil {
		t.Error("referenced tokenizer must survive regardless of age")
	}
	if _, err := os.Stat(deleted); !os.IsNotExist(err) {
		t.Error("unreferenced old tokenizer must be deleted")
	}
}

func TestTokenizerCleanupRespectsAgeWindow(t *testing.T) {
	t.Parallel()
	f := newTokenizerFixture(t)
	young := f.addTokenizer(t, "t-young", 10*24*time.Hour)

	res, err := f.cleanup(config.TokenizerCleanupConfig{Enabled: true, MinUnusedDays: 30}).Clean(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.DeletedTokenizers != 0 {
		t.Errorf("expected no deletions inside the age window, got %+v", res)
	}
	if _, err := os.Stat(young); err != nil {
		t.Error("young tokenizer must survive even when unreferenced")
	}
}

// An unparseable manifest could hide a live reference: hard failure.
func TestTokenizerCleanupMalformedManifestFails(t *testing.T) {
	t.Parallel()
	f := newTokenizerFixture(t)
	runDir := filepath.Join(f.modelsRoot, "r1")
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(runDir, manifest.FileName), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	victim := f.addTokenizer(t, "t1", 60*24*time.Hour)

	_, err := f.cleanup(config.TokenizerCleanupConfig{Enabled: true, MinUnusedDays: 30}).Clean(context.Background())
	if !errors.Is(err, apperrors.ErrManifestParse) {
		t.Errorf("expected ErrManifestParse, got %v", err)
	}
	if _, statErr := os.Stat(victim); statErr != nil {
		t.Error("no tokenizer may be deleted when the scan fails")
	}
}

func TestTokenizerCleanupExtraInUse(t *testing.T) {
	t.Parallel()
	f := newTokenizerFixture(t)
	kept := f.addTokenizer(t, "t-queued", 60*24*time.Hour)

	tc := f.cleanup(config.TokenizerCleanupConfig{Enabled: true, MinUnusedDays: 30})
	tc.ExtraInUse = []string{"t-queued"} // e.g. referenced by a queued job payload

	res, err := tc.Clean(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.DeletedTokenizers != 0 {
		t.Errorf("expected ExtraInUse to protect the tokenizer, got %+v", res)
	}
	if _, err := os.Stat(kept); err != nil {
		t.Error("tokenizer protected by ExtraInUse must survive")
	}
}

func TestTokenizerCleanupDisabled(t *testing.T) {
	t.Parallel()
	f := newTokenizerFixture(t)
	f.addTokenizer(t, "t1", 60*24*time.Hour)

	res, err := f.cleanup(config.TokenizerCleanupConfig{Enabled: false, MinUnusedDays: 30}).Clean(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.DeletedTokenizers != 0 {
		t.Errorf("expected no deletions when disabled, got %+v", res)
	}
}

func TestTokenizerCleanupMissingRootIsNoop(t *testing.T) {
	t.Parallel()
	f := newTokenizerFixture(t)
	if err := os.RemoveAll(f.tokenizersRoot); err != nil {
		t.Fatal(err)
	}

	res, err := f.cleanup(config.TokenizerCleanupConfig{Enabled: true, MinUnusedDays: 30}).Clean(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.DeletedTokenizers != 0 {
		t.Errorf("expected zero result, got %+v", res)
	}
}

func TestReferenceScannerCollectsIDs(t *testing.T) {
	t.Parallel()
	f := newTokenizerFixture(t)
	f.addManifest(t, "r1", "t1")
	f.addManifest(t, "r2", "t2")
	f.addManifest(t, "r3", "") // empty reference ignored

	ids, err := NewReferenceScanner(f.modelsRoot).InUseIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 IDs, got %v", ids)
	}
	for _, want := range []string{"t1", "t2"} {
		if _, ok := ids[want]; !ok {
			t.Errorf("missing %s in %v", want, ids)
		}
	}
}
