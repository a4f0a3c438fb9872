package artifact

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"trainer/internal/apperrors"
)

func writeRunDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "r1")
	if err := os.MkdirAll(filepath.Join(dir, "weights"), 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"manifest.json":     `{"run_id":"r1"}`,
		"weights/model.bin": "weights-bytes",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestArchiveDirPrefixesEntries(t *testing.T) {
	t.Parallel()
	dir := writeRunDir(t)
	dest := filepath.Join(t.TempDir(), "out.tar.gz")

	if err := archiveDir(dir, dest, "r1"); err != nil {
		t.Fatalf("archiveDir: %v", err)
	}

	f, err := os.Open(dest)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	tr := tar.NewReader(gz)

	names := map[string]bool{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		names[hdr.Name] = true
	}
	for _, want := range []string{"r1/manifest.json", "r1/weights", "r1/weights/model.bin"} {
		if !names[want] {
			t.Errorf("missing archive entry %q in %v", want, names)
		}
	}
}

func TestUploadReturnsPointer(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("X-Request-ID") != "r1" {
			t.Errorf("missing request id header")
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing multipart file: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"file_id":"f-123","size":42}`))
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.URL, "secret")
	ptr, err := u.Upload(context.Background(), "r1", writeRunDir(t))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if ptr.StorageKind != StorageKind || ptr.ExternalID != "f-123" {
		t.Errorf("unexpected pointer: %+v", ptr)
	}
}

func TestUploadRetriesServerErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"file_id":"f-1"}`))
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.URL, "")
	ptr, err := u.Upload(context.Background(), "r1", writeRunDir(t))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if ptr.ExternalID != "f-1" {
		t.Errorf("unexpected pointer: %+v", ptr)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestUploadClientErrorNoRetry(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.URL, "")
	_, err := u.Upload(context.Background(), "r1", writeRunDir(t))
	if !errors.Is(err, apperrors.ErrUpload) {
		t.Fatalf("expected ErrUpload, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single attempt on 4xx, got %d", calls.Load())
	}
}

func TestUploadMissingDirectory(t *testing.T) {
	t.Parallel()
	u := NewHTTPUploader("http://localhost:0", "")
	_, err := u.Upload(context.Background(), "r1", filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, apperrors.ErrUpload) {
		t.Errorf("expected ErrUpload, got %v", err)
	}
}

func TestUploadEmptyURL(t *testing.T) {
	t.Parallel()
	u := NewHTTPUploader("", "")
	_, err := u.Upload(context.Background(), "r1", writeRunDir(t))
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
