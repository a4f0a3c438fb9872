package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"trainer/internal/cleanup"
)

var (
	tokenizersMinUnusedDays int
	tokenizersInUse         []string
)

var cleanupTokenizersCmd = &cobra.Command{
	Use:   "cleanup-tokenizers",
	Short: "Delete unreferenced tokenizers past the age window",
	Long: `Scans every run manifest under <artifacts_root>/models for tokenizer
references, then deletes tokenizer directories that nothing references and
that have been unmodified for at least min_unused_days. A manifest that fails
to parse aborts the sweep; an unreadable manifest could hide a live reference.

Tokenizers referenced only by queued or running jobs are invisible to the
manifest scan; pass their IDs with --in-use to protect them.

Examples:
  trainer-maintenance cleanup-tokenizers
  trainer-maintenance cleanup-tokenizers --min-unused-days 60
  trainer-maintenance cleanup-tokenizers --in-use tok-1 --in-use tok-2`,
	Args: cobra.NoArgs,
	RunE: runCleanupTokenizers,
}

func init() {
	rootCmd.AddCommand(cleanupTokenizersCmd)

	cleanupTokenizersCmd.Flags().IntVar(&tokenizersMinUnusedDays, "min-unused-days", 0, "override the age window in days")
	cleanupTokenizersCmd.Flags().StringArrayVar(&tokenizersInUse, "in-use", nil, "tokenizer IDs to protect in addition to the manifest scan (repeatable)")
}

func runCleanupTokenizers(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if tokenizersMinUnusedDays > 0 {
		cfg.Tokenizers.MinUnusedDays = tokenizersMinUnusedDays
	}

	modelsRoot := filepath.Join(cfg.ArtifactsRoot, "models")
	tokenizersRoot := filepath.Join(cfg.ArtifactsRoot, "tokenizers")

	sweep := cleanup.NewTokenizerCleanup(cfg.Tokenizers, tokenizersRoot, cleanup.NewReferenceScanner(modelsRoot), nil)
	sweep.ExtraInUse = tokenizersInUse

	result, err := sweep.Clean(cmd.Context())
	if err != nil {
		return err
	}

	return printResult(result, func() {
		if result.DeletedTokenizers == 0 {
			fmt.Println("No tokenizers deleted")
			return
		}
		fmt.Printf("Deleted %d tokenizers (%s), %d bytes freed\n",
			result.DeletedTokenizers, strings.Join(result.DeletedIDs, ", "), result.BytesFreed)
	})
}
