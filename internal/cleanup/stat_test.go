package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAccessTimeTracksChtimes(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "corpus.bin")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	ts := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	got := accessTime(info)
	if got.Sub(ts) > time.Second || ts.Sub(got) > time.Second {
		t.Errorf("accessTime = %v, want %v", got, ts)
	}
}

func TestStatfsFreeReportsPositive(t *testing.T) {
	t.Parallel()
	free, err := statfsFree(t.TempDir())
	if err != nil {
		t.Fatalf("statfsFree: %v", err)
	}
	if free <= 0 {
		t.Errorf("free bytes = %d, want positive", free)
	}
}
