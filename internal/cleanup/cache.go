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
)

// Eviction policies.
const (
	PolicyLRU    = "lru"    // least recently accessed first
	PolicyOldest = "oldest" // oldest modification time first
)

// CacheEvictionResult reports what one eviction sweep removed.
type CacheEvictionResult struct {
	DeletedFiles int64 `json:"deleted_files"`
	BytesFreed   int64 `json:"bytes_freed"`
}

// cacheEntry is derived live from the filesystem; there is no persisted
// index, the filesystem IS the index.
type cacheEntry struct {
	path     string
	size     int64
	accessed time.Time
	modified time.Time
}

// CacheEviction is the bounded-size maintenance sweep over one cache
// directory. Safety rests entirely on the invariant that every cached file
// is independently re-fetchable from its upstream source; this is the only
// engine allowed to delete files whose origin it does not track.
//
// A non-error return guarantees total size <= MaxBytes and free space >=
// MinFreeBytes: any filesystem error while enumerating or deleting fails the
// whole sweep, with no partial silent continuation.
type CacheEviction struct {
	cfg     config.CacheEvictionConfig
	dir     string
	metrics MetricsRecorder
	logger  *slog.Logger

	// freeBytes is swapped in tests to simulate disk pressure.
	freeBytes func(dir string) (int64, error)
}

// NewCacheEviction creates a sweep over dir. metrics may be nil.
func NewCacheEviction(cfg config.CacheEvictionConfig, dir string, metrics MetricsRecorder) *CacheEviction {
	return &CacheEviction{
		cfg:       cfg,
		dir:       dir,
		metrics:   metrics,
		logger:    slog.With("component", "cache-eviction", "path", dir),
		freeBytes: statfsFree,
	}
}

// Evict enumerates the cache and deletes files in eviction order until both
// thresholds hold.
func (c *CacheEviction) Evict(ctx context.Context) (*CacheEvictionResult, error) {
	if !c.cfg.Enabled {
		c.logger.Info("Cache eviction skipped: disabled")
		return &CacheEvictionResult{}, nil
	}

	info, err := os.Stat(c.dir)
	if os.IsNotExist(err) {
		c.logger.Info("Cache eviction: directory missing")
		return &CacheEvictionResult{}, nil
	}
	if err != nil {
		return nil, c.wrap("cache.stat", err)
	}
	if !info.IsDir() {
		return nil, c.wrap("cache.stat", fmt.Errorf("not a directory: %s", c.dir))
	}

	free, err := c.freeBytes(c.dir)
	if err != nil {
		return nil, c.wrap("cache.diskFree", err)
	}

	entries, total, err := c.scan()
	if err != nil {
		return nil, err
	}

	if total <= c.cfg.MaxBytes && free >= c.cfg.MinFreeBytes {
		c.logger.Info("Cache eviction no-op: thresholds satisfied",
			"totalBytes", total, "freeBytes", free)
		return &CacheEvictionResult{}, nil
	}

	c.logger.Info("Cache eviction started",
		"totalBytes", total, "freeBytes", free,
		"maxBytes", c.cfg.MaxBytes, "minFreeBytes", c.cfg.MinFreeBytes,
		"policy", c.cfg.Policy)

	sortForEviction(entries, c.cfg.Policy)

	result := &CacheEvictionResult{}
	for _, entry := range entries {
		if total <= c.cfg.MaxBytes && free >= c.cfg.MinFreeBytes {
			break
		}
		if err := os.Remove(entry.path); err != nil {
			c.logger.Error("Cache eviction failed", "file", entry.path, "error", err)
			return nil, c.wrap("cache.remove", err)
		}
		result.DeletedFiles++
		result.BytesFreed += entry.size
		total -= entry.size
		free += entry.size
	}

	c.logger.Info("Cache eviction completed",
		"deletedFiles", result.DeletedFiles, "bytesFreed", result.BytesFreed,
		"totalBytesAfter", total, "freeBytesAfter", free)
	if c.metrics != nil {
		c.metrics.RecordCacheEviction(ctx, result.BytesFreed, result.DeletedFiles)
	}
	return result, nil
}

// scan enumerates the cache directory's files with size and timestamps.
func (c *CacheEviction) scan() ([]cacheEntry, int64, error) {
	dirents, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, 0, c.wrap("cache.readDir", err)
	}

	entries := make([]cacheEntry, 0, len(dirents))
	var total int64
	for _, dirent := range dirents {
		if dirent.IsDir() {
			continue
		}
		info, err := dirent.Info()
		if err != nil {
			return nil, 0, c.wrap("cache.stat", err)
		}
		entries = append(entries, cacheEntry{
			path:     filepath.Join(c.dir, dirent.Name()),
			size:     info.Size(),
			accessed: accessTime(info),
			modified: info.ModTime(),
		})
		total += info.Size()
	}
	return entries, total, nil
}

func (c *CacheEviction) wrap(op string, cause error) error {
	return &apperrors.Error{
		Sentinel: apperrors.ErrCacheCleanup,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// sortForEviction orders entries eviction-first, ties broken by path for
// determinism.
func sortForEviction(entries []cacheEntry, policy string) {
	key := func(e cacheEntry) time.Time { return e.accessed }
	if policy == PolicyOldest {
		key = func(e cacheEntry) time.Time { return e.modified }
	}
	sort.Slice(entries, func(i, j int) bool {
		ti, tj := key(entries[i]), key(entries[j])
		if ti.Equal(tj) {
			return entries[i].path < entries[j].path
		}
		return ti.Before(tj)
	})
}
