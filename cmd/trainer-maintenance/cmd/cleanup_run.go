package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"trainer/internal/cleanup"
	"trainer/internal/run"
)

var (
	cleanupRunDir    string
	cleanupRunDryRun bool
)

var cleanupRunCmd = &cobra.Command{
	Use:   "cleanup-run <run-id>",
	Short: "Delete one run's local artifact directory after verified upload",
	Long: `Deletes the local artifact directory for a single run, guarded by the
safety gates: the feature flag, directory existence, a recorded durable-upload
pointer, and a terminal run status. A gate that does not pass skips the
deletion and reports why; it is not an error.

Examples:
  trainer-maintenance cleanup-run gpt2-small-1a2b3c4d
  trainer-maintenance cleanup-run gpt2-small-1a2b3c4d --dry-run
  trainer-maintenance cleanup-run gpt2-small-1a2b3c4d --dir /data/artifacts/models/gpt2-small-1a2b3c4d`,
	Args: cobra.ExactArgs(1),
	RunE: runCleanupRun,
}

func init() {
	rootCmd.AddCommand(cleanupRunCmd)

	cleanupRunCmd.Flags().StringVar(&cleanupRunDir, "dir", "", "artifact directory (default: <artifacts_root>/models/<run-id>)")
	cleanupRunCmd.Flags().BoolVar(&cleanupRunDryRun, "dry-run", false, "evaluate the gates without deleting")
}

func runCleanupRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cleanupRunDryRun {
		cfg.Cleanup.DryRun = true
	}

	store, err := run.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer store.Close()

	dir := cleanupRunDir
	if dir == "" {
		dir = filepath.Join(cfg.ArtifactsRoot, "models", runID)
	}

	engine := cleanup.NewEngine(cfg.Cleanup, store, nil)
	result, err := engine.CleanupRun(cmd.Context(), runID, dir)
	if err != nil {
		return err
	}

	return printResult(result, func() {
		if result.Deleted {
			fmt.Printf("Deleted %s: %d files, %d bytes freed\n", dir, result.FilesDeleted, result.BytesFreed)
			return
		}
		fmt.Printf("Skipped %s: %s\n", runID, result.Reason)
	})
}
