package history

import (
	"context"
	"fmt"

	"github.com/btafoya/pbxprobe/internal/models"
)

// CheckDeviation compares each destination of the run against its hourly
// baseline and stamps the run's summary with any deviations found. A
// destination with fewer baseline samples than the configured minimum is
// skipped: a thin baseline is noise, not an expectation.
//
// Two rules fire independently per destination: a success-rate drop larger
// than the configured threshold (percentage points), and a setup latency
// above the baseline average times the configured multiplier.
func (s *Store) CheckDeviation(ctx context.Context, run *models.ProbeRun) error {
	hourLocal := run.StartedAt.In(s.cfg.Location).Hour()

	for _, d := range run.Destinations {
		base, err := s.Baseline(ctx, d.Number, hourLocal, run.RunID)
		if err != nil {
			return err
		}
		if base.Samples < s.cfg.BaselineMinSamples {
			continue
		}

		current := 0.0
		if d.NoIssues {
			current = 100.0
		}
		if drop := base.SuccessRatePct - current; drop > s.cfg.SuccessDropPct {
			run.Summary.DeviationReasons = append(run.Summary.DeviationReasons, fmt.Sprintf(
				"destino %s: taxa de sucesso %.1f%% abaixo da base de %.1f%% (hora %02d)",
				d.Number, current, base.SuccessRatePct, hourLocal))
		}

		if d.SetupLatencyMs != nil && base.AvgLatencyMs > 0 {
			threshold := base.AvgLatencyMs * s.cfg.LatencyMultiplier
			if float64(*d.SetupLatencyMs) > threshold {
				run.Summary.DeviationReasons = append(run.Summary.DeviationReasons, fmt.Sprintf(
					"destino %s: latencia %dms acima de %.0fms (base %.0fms x%.1f, hora %02d)",
					d.Number, *d.SetupLatencyMs, threshold, base.AvgLatencyMs, s.cfg.LatencyMultiplier, hourLocal))
			}
		}
	}

	run.Summary.DeviationAlert = len(run.Summary.DeviationReasons) > 0
	return nil
}
