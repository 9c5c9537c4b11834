// Package main is the entry point for the habisnooze CLI.
package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/Jayphen/habisnooze/internal/config"
	"github.com/Jayphen/habisnooze/internal/logging"
)

// Version is set at build time.
var Version = "dev"

var (
	configPath string
	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "habisnooze",
		Short: "Snooze Habitica dailies into todos",
		Long: `habisnooze watches your Habitica dailies and, for every due and unfinished
daily carrying the snooze tag, creates a todo for the next day so the daily
can cycle without breaking anything.

It runs on a timer ('habisnooze serve') or on demand ('habisnooze run').`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: search ~/.config/habisnooze and ~/.habisnooze.yaml)")

	// Add subcommands
	rootCmd.AddCommand(
		newServeCmd(),
		newRunCmd(),
		newPreviewCmd(),
		newStatusCmd(),
		newWebhookEventCmd(),
		newWatchCmd(),
		newVersionCmd(),
		newConfigCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and initializes logging from it.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		// Logging is still usable with defaults
		_ = logging.Init(nil)
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = loaded

	initLogging(cfg)
	return nil
}

// initLogging initializes the logger from config.
func initLogging(cfg *config.Config) {
	lc, err := logging.ConfigFromSettings(cfg.LoggingSettings())
	if err != nil {
		// Fall back to defaults on error
		_ = logging.Init(nil)
		logging.Get().WithError(err).Warn("invalid logging config, using defaults")
		return
	}

	if err := logging.Init(lc); err != nil {
		_ = logging.Init(nil)
		logging.Get().WithError(err).Warn("failed to initialize logging, using defaults")
	}
}
