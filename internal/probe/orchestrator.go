// Package probe drives the external SIP traffic generator through a
// multi-stage call-setup probe and assembles the structured run result.
package probe

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/btafoya/pbxprobe/internal/config"
	"github.com/btafoya/pbxprobe/internal/models"
)

// destination pairs a fixed key with the number it dials.
type destination struct {
	key    models.DestinationKey
	number string
}

// Orchestrator runs one probe at a time: a register precheck, then an
// options and an invite stage per destination, strictly in sequence.
// Concurrent destinations would share one SIP identity and make the
// results ambiguous, so there is no parallelism here.
type Orchestrator struct {
	cfg    *config.Config
	runner Runner
	now    func() time.Time
	logger *slog.Logger
}

// New creates an Orchestrator using the real subprocess runner.
func New(cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		runner: execRunner,
		now:    time.Now,
		logger: slog.Default().With("component", "probe"),
	}
}

// destinations returns the probe targets in their fixed priority-relevant
// order: self, target, external.
func (o *Orchestrator) destinations() []destination {
	return []destination{
		{key: models.DestSelf, number: o.cfg.SIPLogin},
		{key: models.DestTarget, number: o.cfg.TargetNumber},
		{key: models.DestExternal, number: o.cfg.ExternalNumber},
	}
}

// Run executes one full probe and returns the assembled run. Stage
// failures are data, not errors; Run itself cannot fail.
func (o *Orchestrator) Run(ctx context.Context, mode string) *models.ProbeRun {
	run := &models.ProbeRun{
		RunID:     uuid.NewString(),
		StartedAt: o.now().UTC(),
		Mode:      mode,
	}

	register := o.runStage(ctx, models.StageRegister, o.cfg.SIPLogin)
	run.Prechecks = &register

	dests := o.destinations()
	if !register.OK {
		// A dead registration makes every downstream call meaningless;
		// synthesize the failures instead of dialing.
		o.logger.Warn("Register precheck failed, skipping call stages",
			"error", deref(register.Error), "category", derefCat(register.Category))
		for _, d := range dests {
			run.Destinations = append(run.Destinations, synthesizeRegisterFailure(d, &register))
		}
	} else {
		for _, d := range dests {
			options := o.runStage(ctx, models.StageOptions, d.number)
			invite := o.runStage(ctx, models.StageInvite, d.number)
			run.Destinations = append(run.Destinations, assembleDestination(d, &options, &invite))
		}
	}

	run.FinishedAt = o.now().UTC()
	o.assemble(run, register.OK)

	o.logger.Info("Probe run finished",
		"run_id", run.RunID,
		"ok", run.OK,
		"destinations", len(run.Destinations),
		"failed", run.Summary.Failed)
	return run
}

// synthesizeRegisterFailure marks a destination failed with the register
// stage's signals so downstream consumers see a uniform shape.
func synthesizeRegisterFailure(d destination, register *models.StageResult) models.DestinationResult {
	return models.DestinationResult{
		Key:          d.key,
		Number:       d.number,
		SIPFinalCode: register.SIPFinalCode,
		Error:        register.Error,
		Category:     register.Category,
		Reason:       register.Reason,
	}
}

// assembleDestination folds the two stages into one destination result,
// denormalizing invite-first with options as fallback.
func assembleDestination(d destination, options, invite *models.StageResult) models.DestinationResult {
	res := models.DestinationResult{
		Key:     d.key,
		Number:  d.number,
		Options: options,
		Invite:  invite,
	}

	res.CompletedCall = invite.SIPFinalCode != nil && *invite.SIPFinalCode == 200
	res.NoIssues = invite.OK && invite.Error == nil

	res.SetupLatencyMs = invite.SetupLatencyMs
	res.SIPFinalCode = firstInt(invite.SIPFinalCode, options.SIPFinalCode)
	res.Error = firstStr(invite.Error, options.Error)
	res.Category = firstCat(invite.Category, options.Category)
	res.Reason = firstStr(invite.Reason, options.Reason)
	return res
}

// failurePriority is the explicit, ordered policy for picking the primary
// failure. Never derived from map iteration.
var failurePriority = []models.DestinationKey{models.DestTarget, models.DestExternal, models.DestSelf}

// assemble fills the run-level summary, primary failure and the legacy
// flattened target fields.
func (o *Orchestrator) assemble(run *models.ProbeRun, registerOK bool) {
	summary := models.RunSummary{Total: len(run.Destinations)}
	for _, d := range run.Destinations {
		if d.NoIssues {
			summary.Succeeded++
			continue
		}
		summary.Failed++
		cat := models.CategoryUnknown
		if d.Category != nil {
			cat = *d.Category
		}
		if summary.FailuresByCategory == nil {
			summary.FailuresByCategory = make(map[models.Category]int)
		}
		summary.FailuresByCategory[cat]++
	}
	run.Summary = summary
	run.OK = summary.Failed == 0 && summary.Total > 0

	if summary.Failed > 0 {
		var primary *models.DestinationResult
		for _, key := range failurePriority {
			if d := run.Destination(key); d != nil && !d.NoIssues {
				primary = d
				break
			}
		}
		if primary != nil {
			if !registerOK {
				run.FailureDestinationNumber = models.StrPtr(o.cfg.SIPLogin)
				stage := models.StageRegister
				run.FailureStage = &stage
			} else {
				run.FailureDestinationNumber = models.StrPtr(primary.Number)
				stage := models.StageInvite
				if primary.Invite != nil && primary.Invite.OK && primary.Options != nil && !primary.Options.OK {
					stage = models.StageOptions
				}
				run.FailureStage = &stage
			}
		}
	}

	run.TargetNumber = o.cfg.TargetNumber
	if target := run.Destination(models.DestTarget); target != nil {
		run.SetupLatencyMs = target.SetupLatencyMs
		run.SIPFinalCode = target.SIPFinalCode
		run.NoIssues = target.NoIssues
		run.Error = target.Error
	}
}

func firstInt(a, b *int) *int {
	if a != nil {
		return a
	}
	return b
}

func firstStr(a, b *string) *string {
	if a != nil {
		return a
	}
	return b
}

func firstCat(a, b *models.Category) *models.Category {
	if a != nil {
		return a
	}
	return b
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefCat(c *models.Category) string {
	if c == nil {
		return ""
	}
	return string(*c)
}
