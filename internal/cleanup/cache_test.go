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
)

// writeCacheFile creates a file with both atime and mtime set to ts.
func writeCacheFile(t *testing.T, dir, name string, size int, ts time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatal(err)
	}
	return path
}

func newEviction(cfg config.CacheEvictionConfig, dir string) *CacheEviction {
	c := NewCacheEviction(cfg, dir, nil)
	// Plenty of free disk in tests unless a test overrides this.
	c.freeBytes = func(string) (int64, error) { return 1 << 40, nil }
	return c
}

// Three files of equal size with access times t1<t2<t3 and max_bytes holding
// two of them: exactly the least recently used file goes.
func TestEvictRemovesLeastRecentlyUsedFirst(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	oldest := writeCacheFile(t, dir, "corpus-a.txt", 5, base)
	writeCacheFile(t, dir, "corpus-b.txt", 5, base.Add(time.Minute))
	writeCacheFile(t, dir, "corpus-c.txt", 5, base.Add(2*time.Minute))

	c := newEviction(config.CacheEvictionConfig{
		Enabled:  true,
		MaxBytes: 10,
		Policy:   PolicyLRU,
	}, dir)

	res, err := c.Evict(context.Background())
	if err != nil {
		t.Fatalf("Evict: %v", err)
	}
	if res.DeletedFiles != 1 || res.BytesFreed != 5 {
		t.Errorf("got %+v, want exactly one 5-byte deletion", res)
	}
	if _, err := os.Stat(oldest); !os.IsNotExist(err) {
		t.Error("expected the least recently used file deleted")
	}
}

// Running the sweep twice with identical thresholds: the second run is a
// no-op because the invariant already holds.
func TestEvictIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"a", "b", "c", "d"} {
		writeCacheFile(t, dir, name, 10, base.Add(time.Duration(i)*time.Minute))
	}

	cfg := config.CacheEvictionConfig{Enabled: true, MaxBytes: 20, Policy: PolicyLRU}
	first, err := newEviction(cfg, dir).Evict(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first.DeletedFiles != 2 {
		t.Fatalf("expected 2 deletions, got %d", first.DeletedFiles)
	}

	second, err := newEviction(cfg, dir).Evict(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second.DeletedFiles != 0 || second.BytesFreed != 0 {
		t.Errorf("expected zero-effect second run, got %+v", second)
	}
}

func TestEvictDisabled(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeCacheFile(t, dir, "a", 100, time.Now())

	c := newEviction(config.CacheEvictionConfig{Enabled: false, MaxBytes: 1}, dir)
	res, err := c.Evict(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.DeletedFiles != 0 {
		t.Errorf("expected no deletions when disabled, got %+v", res)
	}
}

func TestEvictMissingDirectoryIsNoop(t *testing.T) {
	t.Parallel()
	c := newEviction(config.CacheEvictionConfig{Enabled: true, MaxBytes: 1},
		filepath.Join(t.TempDir(), "absent"))
	res, err := c.Evict(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.DeletedFiles != 0 {
		t.Errorf("expected zero result, got %+v", res)
	}
}

func TestEvictPathNotDirectoryFails(t *testing.T) {
	t.Parallel()
	path := writeCacheFile(t, t.TempDir(), "file", 1, time.Now())

	c := newEviction(config.CacheEvictionConfig{Enabled: true}, path)
	_, err := c.Evict(context.Background())
	if !errors.Is(err, apperrors.ErrCacheCleanup) {
		t.Errorf("expected ErrCacheCleanup, got %v", err)
	}
}

// min_free_bytes alone can force eviction even under max_bytes.
func TestEvictForFreeSpace(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	writeCacheFile(t, dir, "a", 10, base)
	writeCacheFile(t, dir, "b", 10, base.Add(time.Minute))

	c := NewCacheEviction(config.CacheEvictionConfig{
		Enabled:      true,
		MaxBytes:     1000,
		MinFreeBytes: 105,
		Policy:       PolicyLRU,
	}, dir, nil)
	c.freeBytes = func(string) (int64, error) { return 100, nil }

	res, err := c.Evict(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// free starts at 100, each deletion credits 10; one deletion reaches 110.
	if res.DeletedFiles != 1 {
		t.Errorf("expected 1 deletion for free-space recovery, got %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dir, "a")); !os.IsNotExist(err) {
		t.Error("expected LRU file deleted first")
	}
}

func TestEvictOldestPolicyUsesModTime(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	writeCacheFile(t, dir, "newer", 5, base.Add(time.Minute))
	oldest := writeCacheFile(t, dir, "older", 5, base)

	c := newEviction(config.CacheEvictionConfig{
		Enabled:  true,
		MaxBytes: 5,
		Policy:   PolicyOldest,
	}, dir)

	res, err := c.Evict(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.DeletedFiles != 1 {
		t.Fatalf("expected 1 deletion, got %+v", res)
	}
	if _, err := os.Stat(oldest); !os.IsNotExist(err) {
		t.Error("expected oldest-mtime file deleted")
	}
}

func TestSortForEvictionTiesBrokenByPath(t *testing.T) {
	t.Parallel()
	ts := time.Unix(1000, 0)
	entries := []cacheEntry{
		{path: "b", accessed: ts},
		{path: "a", accessed: ts},
		{path: "c", accessed: ts.Add(-time.Second)},
	}
	sortForEviction(entries, PolicyLRU)
	if entries[0].path != "c" || entries[1].path != "a" || entries[2].path != "b" {
		t.Errorf("unexpected order: %v %v %v", entries[0].path, entries[1].path, entries[2].path)
	}
}
