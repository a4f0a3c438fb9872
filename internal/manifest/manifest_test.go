package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"trainer/internal/apperrors"
)

func TestWriteParseRoundTrip(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "models", "r1")

	m := &RunManifest{
		RunID:       "r1",
		CreatedAt:   1700000000,
		ModelFamily: "gpt2",
		ModelSize:   "small",
		TokenizerID: "tok-1",
	}
	if err := Write(dir, m); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Parse(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if *got != *m {
		t.Errorf("got %+v, want %+v", got, m)
	}
}

func TestParseIgnoresUnknownFields(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), FileName)
	body := `{"run_id":"r1","tokenizer_id":"tok-1","future_field":true}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.TokenizerID != "tok-1" {
		t.Errorf("expected tokenizer_id 'tok-1', got %q", m.TokenizerID)
	}
}

func TestParseMalformedIsHardFailure(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Parse(path)
	if !errors.Is(err, apperrors.ErrManifestParse) {
		t.Errorf("expected ErrManifestParse, got %v", err)
	}
}

func TestParseMissingFileIsHardFailure(t *testing.T) {
	t.Parallel()
	_, err := Parse(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, apperrors.ErrManifestParse) {
		t.Errorf("expected ErrManifestParse, got %v", err)
	}
}
