// Package main is the entry point for the pbxprobe CLI
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/btafoya/pbxprobe/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "pbxprobe",
	Short: "Active SIP health probing for PBX infrastructure",
	Long: "pbxprobe drives an external SIP traffic generator through register,\n" +
		"options and invite stages against a PBX, classifies failures and keeps\n" +
		"a history with per-hour baselines for deviation alerting.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(runOnceCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(peersCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

// initRuntime sets up structured logging and loads the validated
// configuration. Logs go to stderr so --json output on stdout stays
// machine-readable.
func initRuntime() (*config.Config, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
