package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/btafoya/pbxprobe/internal/models"
	"github.com/btafoya/pbxprobe/internal/trace"
)

// Runner executes the external SIP tool once inside dir and returns its
// captured output. Injected so orchestration tests can fake the tool.
type Runner func(ctx context.Context, dir, bin string, args []string) (stdout, stderr string, exitCode int, err error)

// execRunner is the production Runner: exec.CommandContext kills the child
// on deadline expiry, which is the only cancellation signal a stage has.
func execRunner(ctx context.Context, dir, bin string, args []string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			err = nil
		}
	}
	return stdout.String(), stderr.String(), exitCode, err
}

// traceGlobs are the tool's emission patterns, concatenated in this order.
var traceGlobs = []string{
	"*_messages.log",
	"*_shortmessages.log",
	"*_errors.log",
	"*.log",
}

// collectTraces concatenates every trace file the tool left in dir.
func collectTraces(dir string) string {
	var sb strings.Builder
	seen := make(map[string]bool)
	for _, pattern := range traceGlobs {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		for _, path := range matches {
			if seen[path] {
				continue
			}
			seen[path] = true
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			sb.Write(data)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// runStage executes one protocol stage against one destination and folds
// every possible failure (timeout, missing binary, bad exit) into the
// returned StageResult. Stage failures never cross this boundary as
// errors; the probe's job is to report them as data.
func (o *Orchestrator) runStage(ctx context.Context, stage models.Stage, destination string) models.StageResult {
	result := models.StageResult{Stage: stage}
	started := time.Now()

	fail := func(errText string) models.StageResult {
		result.OK = false
		result.Error = models.StrPtr(errText)
		result.TotalDurationMs = int(time.Since(started).Milliseconds())
		result.Category = trace.Classify(false, stage, result.SIPFinalCode, errText)
		if result.Category != nil {
			result.Reason = models.StrPtr(trace.BuildReason(*result.Category, destination, result.SIPStatusText, errText))
		}
		return result
	}

	workDir, err := os.MkdirTemp("", "pbxprobe-"+string(stage)+"-")
	if err != nil {
		return fail(fmt.Sprintf("create work directory: %v", err))
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			o.logger.Warn("Failed to remove stage work directory", "dir", workDir, "error", rmErr)
		}
	}()

	scenarioPath, err := writeScenario(workDir, stage, o.cfg)
	if err != nil {
		return fail(err.Error())
	}

	args := buildArgs(o.cfg, scenarioPath, destination)
	stageCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout())
	defer cancel()

	o.logger.Debug("Running probe stage", "stage", stage, "destination", destination)
	stdout, stderr, exitCode, runErr := o.runner(stageCtx, workDir, o.cfg.SIPPBinary, args)

	combined := collectTraces(workDir) + "\n" + stdout + "\n" + stderr
	result.SIPFinalCode, result.SIPStatusText = trace.SelectStatusCode(combined, stage)

	timedOut := stageCtx.Err() == context.DeadlineExceeded
	if timedOut {
		result.TotalDurationMs = int(time.Since(started).Milliseconds())
		result.OK = false
		result.Error = models.StrPtr("timeout")
		result.Category = models.CatPtr(models.CategoryNetwork)
		result.Reason = models.StrPtr(trace.BuildReason(models.CategoryNetwork, destination, result.SIPStatusText, "timeout"))
		return result
	}

	if runErr != nil {
		if errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, fs.ErrNotExist) {
			return fail(fmt.Sprintf("%s binary not found: %s", filepath.Base(o.cfg.SIPPBinary), o.cfg.SIPPBinary))
		}
		return fail(fmt.Sprintf("spawn %s: %v", o.cfg.SIPPBinary, runErr))
	}

	result.OK = stageSuccess(stage, exitCode, result.SIPFinalCode)
	if stage == models.StageInvite {
		result.SetupLatencyMs = trace.ExtractSetupLatency(combined)
	}

	if !result.OK {
		errText := trace.ExtractErrorLine(stdout + "\n" + stderr)
		if errText == "" {
			errText = fmt.Sprintf("%s exited with code %d", filepath.Base(o.cfg.SIPPBinary), exitCode)
		}
		result.Error = models.StrPtr(errText)
		result.Category = trace.Classify(false, stage, result.SIPFinalCode, errText)
		if result.Category == nil {
			result.Category = models.CatPtr(models.CategoryUnknown)
		}
		result.Reason = models.StrPtr(trace.BuildReason(*result.Category, destination, result.SIPStatusText, errText))
	}

	result.TotalDurationMs = int(time.Since(started).Milliseconds())
	if stage == models.StageInvite && result.SetupLatencyMs == nil {
		result.SetupLatencyMs = trace.FallbackSetupLatency(result.TotalDurationMs, o.cfg.HoldSeconds)
	}
	return result
}

// stageSuccess applies the per-stage success rule. OPTIONS is deliberately
// lenient: a parsed 200 wins even when the tool exits non-zero, because
// stray retransmissions routinely poison its exit code.
func stageSuccess(stage models.Stage, exitCode int, code *int) bool {
	switch stage {
	case models.StageOptions:
		if code != nil && *code == 200 {
			return true
		}
		return exitCode == 0
	case models.StageInvite:
		if exitCode != 0 || code == nil {
			return false
		}
		switch *code {
		case 180, 183, 200:
			return true
		}
		return false
	default: // register
		return exitCode == 0 && code != nil && *code == 200
	}
}
