package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/btafoya/pbxprobe/internal/history"
	"github.com/btafoya/pbxprobe/internal/models"
)

var logsFlags struct {
	limit   int
	jsonOut bool
}

var logsCmd = &cobra.Command{
	Use:          "logs",
	Short:        "List recent probe runs, newest first",
	RunE:         runLogs,
	SilenceUsage: true,
}

func init() {
	f := logsCmd.Flags()
	f.IntVar(&logsFlags.limit, "limit", 10, "Maximum number of runs to list")
	f.BoolVar(&logsFlags.jsonOut, "json", false, "Print runs as JSON")
}

func runLogs(cmd *cobra.Command, _ []string) error {
	cfg, err := initRuntime()
	if err != nil {
		return cliError(logsFlags.jsonOut, err)
	}
	if logsFlags.limit <= 0 {
		return cliError(logsFlags.jsonOut, fmt.Errorf("--limit must be positive, got %d", logsFlags.limit))
	}

	store, err := history.Open(cfg)
	if err != nil {
		return cliError(logsFlags.jsonOut, err)
	}
	defer store.Close()

	runs, err := store.Recent(cmd.Context(), logsFlags.limit)
	if err != nil {
		return cliError(logsFlags.jsonOut, err)
	}

	if logsFlags.jsonOut {
		if runs == nil {
			runs = []*models.ProbeRun{}
		}
		return printJSON(runs)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No probe runs recorded yet.")
		return nil
	}
	for i, run := range runs {
		if i > 0 {
			fmt.Fprintln(out)
		}
		printRun(out, run)
	}
	return nil
}
