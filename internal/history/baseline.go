package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/btafoya/pbxprobe/internal/models"
)

// Baseline computes the historical expectation for one destination number
// at the given local hour over the configured rolling window: sample
// count, success rate, and average setup latency among the successful
// samples only (a failed probe's fallback latency is not an expectation). Runs listed in excludeRunID
// (typically the run being judged) are left out. Returns a snapshot with
// Samples == 0 when no history exists.
func (s *Store) Baseline(ctx context.Context, number string, hourLocal int, excludeRunID string) (*models.BaselineSnapshot, error) {
	windowStart := time.Now().UTC().AddDate(0, 0, -s.cfg.BaselineWindowDays)

	var (
		samples    int
		successPct sql.NullFloat64
		avgLatency sql.NullFloat64
	)
	err := s.conn.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       AVG(CASE WHEN no_issues THEN 100.0 ELSE 0.0 END),
		       AVG(CASE WHEN no_issues THEN setup_latency_ms END)
		FROM probe_results
		WHERE number = ? AND local_hour = ? AND started_at >= ? AND run_id != ?
	`, number, hourLocal, windowStart, excludeRunID).
		Scan(&samples, &successPct, &avgLatency)
	if err != nil {
		return nil, fmt.Errorf("failed to compute baseline: %w", err)
	}

	snap := &models.BaselineSnapshot{
		Number:    number,
		HourLocal: hourLocal,
		Samples:   samples,
	}
	if successPct.Valid {
		snap.SuccessRatePct = successPct.Float64
	}
	if avgLatency.Valid {
		snap.AvgLatencyMs = avgLatency.Float64
	}
	return snap, nil
}
