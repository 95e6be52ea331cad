// Package cmd implements the CLI commands for recapd.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/recapd/recapd/internal/config"
	"github.com/recapd/recapd/internal/observability"
	"github.com/recapd/recapd/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// cfg and logger are populated by PersistentPreRunE before any subcommand
// runs.
var (
	cfg    *config.Config
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "recapd",
	Short:   "Meeting recording summarization pipeline",
	Version: version.Short(),
	Long: `recapd turns meeting recordings into structured summaries.

A staged pipeline extracts the audio track from video, conditions it,
transcribes it with speaker diarization, and summarizes the transcript
with an LLM. Transcript files can be fed in directly to skip straight
to summarization.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initConfig()
	}

	// Global flags are not bound to viper; explicitly set flags override the
	// config/env values after loading. This preserves the priority:
	// CLI flag > env var > config > default.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., ./configs, /etc/recapd, $HOME/.recapd)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// initConfig loads configuration and builds the process logger.
func initConfig() error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if rootCmd.PersistentFlags().Changed("log-level") {
		loaded.Logging.Level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		loaded.Logging.Format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}

	cfg = loaded
	logger = observability.NewLogger(cfg.Logging)
	observability.SetDefault(logger)
	return nil
}
