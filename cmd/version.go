package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meetnote/meetnote/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("meetnote %s (%s)\n", AppVersion, GitCommit)

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		fmt.Println()
		fmt.Println("Configuration:")
		fmt.Printf("  Model: %s\n", cfg.FullModelName())
		if cfg.Endpoint != "" {
			fmt.Printf("  Endpoint: %s\n", cfg.Endpoint)
		}
		fmt.Printf("  Max steps: %d\n", cfg.MaxSteps)
		fmt.Printf("  Database: %s\n", cfg.DatabasePath)
		fmt.Printf("  Tool providers: %d enabled\n", len(cfg.EnabledProviders()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
