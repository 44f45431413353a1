package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/config"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/logger"
)

var (
	// Global flags
	verbose bool
	timeout time.Duration

	cfg *config.Config
	log *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kioskctl",
	Short: "Operator tool for the Only At The Kiosk backend",
	Long: `kioskctl drives a storefront cart session through the cart proxy,
runs the Airtable catalog sync against the database and lists Airtable records.

Settings are read from config.toml and KIOSK_* environment variables, the same
way the server reads them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		level := "warn"
		if verbose {
			level = "debug"
		}
		log, err = logger.New(&logger.Config{Level: level, Format: "console", Output: "stderr"})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	rootCmd.AddCommand(cartCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(airtableCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
