package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"trainer/internal/cleanup"
)

var (
	evictDir          string
	evictMaxBytes     int64
	evictMinFreeBytes int64
	evictPolicy       string
)

var evictCacheCmd = &cobra.Command{
	Use:   "evict-cache",
	Short: "Shrink the corpus cache to its configured bounds",
	Long: `Deletes cached corpus files in eviction order (least recently used first,
or oldest first with --policy oldest) until total size fits max_bytes and the
filesystem has at least min_free_bytes free. A cache already within bounds is
left untouched.

Examples:
  trainer-maintenance evict-cache
  trainer-maintenance evict-cache --max-bytes 10737418240
  trainer-maintenance evict-cache --policy oldest --json`,
	Args: cobra.NoArgs,
	RunE: runEvictCache,
}

func init() {
	rootCmd.AddCommand(evictCacheCmd)

	evictCacheCmd.Flags().StringVar(&evictDir, "dir", "", "cache directory (default: <data_root>/corpus_cache)")
	evictCacheCmd.Flags().Int64Var(&evictMaxBytes, "max-bytes", 0, "override the max cache size in bytes")
	evictCacheCmd.Flags().Int64Var(&evictMinFreeBytes, "min-free-bytes", 0, "override the required free space in bytes")
	evictCacheCmd.Flags().StringVar(&evictPolicy, "policy", "", "eviction policy: lru or oldest")
}

func runEvictCache(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if evictMaxBytes > 0 {
		cfg.Cache.MaxBytes = evictMaxBytes
	}
	if evictMinFreeBytes > 0 {
		cfg.Cache.MinFreeBytes = evictMinFreeBytes
	}
	if evictPolicy != "" {
		cfg.Cache.Policy = evictPolicy
	}

	dir := evictDir
	if dir == "" {
		dir = filepath.Join(cfg.DataRoot, "corpus_cache")
	}

	eviction := cleanup.NewCacheEviction(cfg.Cache, dir, nil)
	result, err := eviction.Evict(cmd.Context())
	if err != nil {
		return err
	}

	return printResult(result, func() {
		fmt.Printf("Evicted %d files, %d bytes freed from %s\n", result.DeletedFiles, result.BytesFreed, dir)
	})
}
