package main

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/btafoya/pbxprobe/internal/history"
	"github.com/btafoya/pbxprobe/internal/probe"
)

var runOnceFlags struct {
	jsonOut bool
}

var runOnceCmd = &cobra.Command{
	Use:          "run-once",
	Short:        "Execute one probe cycle and print the result",
	RunE:         runRunOnce,
	SilenceUsage: true,
}

func init() {
	runOnceCmd.Flags().BoolVar(&runOnceFlags.jsonOut, "json", false, "Print the full run as JSON")
}

func runRunOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := initRuntime()
	if err != nil {
		return cliError(runOnceFlags.jsonOut, err)
	}

	store, err := history.Open(cfg)
	if err != nil {
		return cliError(runOnceFlags.jsonOut, err)
	}
	defer store.Close()

	ctx := cmd.Context()
	run := probe.New(cfg).Run(ctx, "manual")

	// Stamp the deviation verdict before persisting so the stored payload
	// carries it; the baseline query excludes the run being judged.
	if err := store.CheckDeviation(ctx, run); err != nil {
		slog.Warn("Deviation check failed", "error", err)
	}
	if err := store.Insert(ctx, run); err != nil {
		return cliError(runOnceFlags.jsonOut, err)
	}

	// A failed probe is the command doing its job: the verdict travels in
	// the printed result, not the exit code. Exit 1 is reserved for
	// configuration and execution errors.
	if runOnceFlags.jsonOut {
		return printJSON(run)
	}
	printRunLine(cmd.OutOrStdout(), run)
	return nil
}

// cliError reports a hard failure; with --json it also emits a structured
// error document on stdout for scripted callers.
func cliError(jsonOut bool, err error) error {
	if jsonOut {
		json.NewEncoder(os.Stdout).Encode(map[string]string{"error": err.Error()})
	}
	return err
}
