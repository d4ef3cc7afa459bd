// Package cmd implements the CLI commands for toolsy.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shtefko55/toolsy/internal/config"
	"github.com/shtefko55/toolsy/internal/observability"
	"github.com/shtefko55/toolsy/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "toolsy",
	Short:   "Media transform and capture job server",
	Version: version.Short(),
	Long: `toolsy is a self-hosted server for asynchronous media conversion.

It accepts uploaded audio/video files for format and quality transforms,
captures remote videos as local audio or video files, and exposes job
progress over a REST API with server-sent events.`,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// Flags are not bound to viper. Explicitly set flags override
	// config/env values in loadConfig, which preserves the priority:
	// CLI flag > env var > config file > default.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., ./configs, /etc/toolsy, $HOME/.toolsy)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
}

// loadConfig loads configuration and applies CLI flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if rootCmd.PersistentFlags().Changed("log-level") {
		level, _ := rootCmd.PersistentFlags().GetString("log-level")
		cfg.Logging.Level = normalizeLevel(level)
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		format, _ := rootCmd.PersistentFlags().GetString("log-format")
		cfg.Logging.Format = strings.ToLower(format)
	}

	return cfg, nil
}

func normalizeLevel(level string) string {
	level = strings.ToLower(level)
	if level == "warning" {
		level = "warn"
	}
	return level
}

// setupLogger builds the process logger from config and installs it as
// the slog default.
func setupLogger(cfg *config.Config) *slog.Logger {
	logger := observability.NewLoggerWithWriter(cfg.Logging, os.Stderr)
	observability.SetDefault(logger)
	return logger
}
