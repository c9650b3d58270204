package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/btafoya/pbxprobe/internal/models"
)

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRunLine renders a one-line human summary of a run.
func printRunLine(w io.Writer, run *models.ProbeRun) {
	verdict := "OK"
	if !run.OK {
		verdict = "FAIL"
	}
	line := fmt.Sprintf("%s %d/%d destinations ok in %s",
		verdict, run.Summary.Succeeded, run.Summary.Total,
		run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	if run.FailureStage != nil && run.FailureDestinationNumber != nil {
		line += fmt.Sprintf(" (stage=%s destination=%s", *run.FailureStage, *run.FailureDestinationNumber)
		if d := primaryFailure(run); d != nil && d.Category != nil {
			line += fmt.Sprintf(" categoria=%s", *d.Category)
		}
		line += ")"
	}
	if run.Summary.DeviationAlert {
		line += fmt.Sprintf("  DEVIATION: %s", strings.Join(run.Summary.DeviationReasons, "; "))
	}
	fmt.Fprintln(w, line)
}

func primaryFailure(run *models.ProbeRun) *models.DestinationResult {
	if run.FailureDestinationNumber == nil {
		return nil
	}
	for i := range run.Destinations {
		if run.Destinations[i].Number == *run.FailureDestinationNumber {
			return &run.Destinations[i]
		}
	}
	return nil
}

// printRun renders one probe run for humans.
func printRun(w io.Writer, run *models.ProbeRun) {
	verdict := "OK"
	if !run.OK {
		verdict = "FAIL"
	}
	fmt.Fprintf(w, "run %s  %s  mode=%s  started=%s  duration=%s\n",
		run.RunID, verdict, run.Mode,
		run.StartedAt.Format("2006-01-02 15:04:05 MST"),
		run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))

	if run.Prechecks != nil {
		fmt.Fprintf(w, "  register: %s\n", stageLine(run.Prechecks))
	}
	for _, d := range run.Destinations {
		fmt.Fprintf(w, "  %s (%s): %s\n", d.Key, d.Number, destLine(&d))
	}

	s := run.Summary
	fmt.Fprintf(w, "  summary: %d/%d ok", s.Succeeded, s.Total)
	for cat, n := range s.FailuresByCategory {
		fmt.Fprintf(w, "  %s=%d", cat, n)
	}
	fmt.Fprintln(w)

	if s.DeviationAlert {
		fmt.Fprintln(w, "  deviation alert:")
		for _, reason := range s.DeviationReasons {
			fmt.Fprintf(w, "    - %s\n", reason)
		}
	}
	if run.FailureStage != nil && run.FailureDestinationNumber != nil {
		fmt.Fprintf(w, "  primary failure: stage=%s destination=%s\n",
			*run.FailureStage, *run.FailureDestinationNumber)
	}
}

func stageLine(st *models.StageResult) string {
	out := "OK"
	if !st.OK {
		out = "FAIL"
	}
	if st.SIPFinalCode != nil {
		out += fmt.Sprintf("  %d", *st.SIPFinalCode)
	}
	if st.SetupLatencyMs != nil {
		out += fmt.Sprintf("  latency=%dms", *st.SetupLatencyMs)
	}
	if st.Category != nil {
		out += fmt.Sprintf("  categoria=%s", *st.Category)
	}
	if st.Reason != nil {
		out += "  " + *st.Reason
	}
	return out
}

func destLine(d *models.DestinationResult) string {
	out := "OK"
	if !d.NoIssues {
		out = "FAIL"
	}
	if d.SIPFinalCode != nil {
		out += fmt.Sprintf("  %d", *d.SIPFinalCode)
	}
	if d.SetupLatencyMs != nil {
		out += fmt.Sprintf("  latency=%dms", *d.SetupLatencyMs)
	}
	if d.Category != nil {
		out += fmt.Sprintf("  categoria=%s", *d.Category)
	}
	if d.Reason != nil {
		out += "  " + *d.Reason
	}
	return out
}
