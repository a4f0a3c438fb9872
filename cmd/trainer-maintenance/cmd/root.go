package cmd

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"trainer/internal/config"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"

	// Global flags
	configPath string
	jsonOut    bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "trainer-maintenance",
	Short: "Operator commands for run admission and storage maintenance",
	Long: `trainer-maintenance runs the explicit, operator-triggered commands:

  enqueue             admit a new training run (queued record, then job push)
  cleanup-run         delete one run's local artifacts after verified upload
  evict-cache         shrink the corpus cache to its configured bounds
  cleanup-tokenizers  delete unreferenced tokenizers past the age window

Thresholds and feature flags come from environment variables, optionally
overlaid by a TOML config file (--config). Every sweep prints what it did;
nothing runs on a schedule from here.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file overlaying the env defaults")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose engine logging")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("trainer-maintenance {{.Version}}\n")
}

// loadConfig loads the maintenance configuration honoring --config.
func loadConfig() (*config.MaintenanceConfig, error) {
	return config.LoadMaintenanceConfig(configPath)
}

// printResult renders a sweep result honoring --json.
func printResult(v any, plain func()) error {
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	plain()
	return nil
}
