package history

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/btafoya/pbxprobe/internal/config"
	"github.com/btafoya/pbxprobe/internal/models"
)

// setupTestStore creates a Store backed by a throwaway database file.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	cfg := &config.Config{
		DataDir:            t.TempDir(),
		RetentionDays:      90,
		BaselineWindowDays: 30,
		BaselineMinSamples: 5,
		SuccessDropPct:     20.0,
		LatencyMultiplier:  2.0,
		Location:           time.UTC,
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// makeRun builds a three-destination run where the target carries the given
// latency and outcome and the other destinations succeed.
func makeRun(id string, started time.Time, targetLatencyMs int, targetOK bool) *models.ProbeRun {
	dest := func(key models.DestinationKey, number string, latency int, ok bool) models.DestinationResult {
		d := models.DestinationResult{
			Key:            key,
			Number:         number,
			CompletedCall:  ok,
			NoIssues:       ok,
			SetupLatencyMs: models.IntPtr(latency),
		}
		if !ok {
			d.Error = models.StrPtr("call failed")
			d.Category = models.CatPtr(models.CategoryUnknown)
		}
		return d
	}

	run := &models.ProbeRun{
		RunID:      id,
		StartedAt:  started,
		FinishedAt: started.Add(15 * time.Second),
		Mode:       "manual",
		Destinations: []models.DestinationResult{
			dest(models.DestSelf, "9000", 500, true),
			dest(models.DestTarget, "1001", targetLatencyMs, targetOK),
			dest(models.DestExternal, "551100000000", 800, true),
		},
		TargetNumber: "1001",
		OK:           targetOK,
	}
	run.Summary = models.RunSummary{Total: 3, Succeeded: 3}
	if !targetOK {
		run.Summary.Succeeded = 2
		run.Summary.Failed = 1
		run.Summary.FailuresByCategory = map[models.Category]int{models.CategoryUnknown: 1}
	}
	return run
}

// dayAt14 returns daysAgo days before today at 14:00 UTC, keeping every
// fixture inside the retention window with a stable local hour.
func dayAt14(daysAgo int) time.Time {
	now := time.Now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 14, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -daysAgo)
}

func TestOpenAppliesEmbeddedMigrations(t *testing.T) {
	cfg := &config.Config{
		DataDir:            t.TempDir(),
		RetentionDays:      90,
		BaselineWindowDays: 30,
		BaselineMinSamples: 5,
		SuccessDropPct:     20.0,
		LatencyMultiplier:  2.0,
		Location:           time.UTC,
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open store against embedded migrations: %v", err)
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Failed to ping migrated store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	// Reopen against the same file: applied migrations are recorded and
	// must not run again.
	store, err = Open(cfg)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	store.Close()
}

func TestStripSQLComments(t *testing.T) {
	in := "-- leading comment; with a semicolon\nCREATE TABLE t (id INTEGER);\n-- another note\n"
	out := stripSQLComments(in)

	if strings.Contains(out, "--") {
		t.Errorf("Expected comment lines removed, got %q", out)
	}
	if strings.Count(out, ";") != 1 {
		t.Errorf("Expected exactly one statement terminator, got %q", out)
	}
	if !strings.Contains(out, "CREATE TABLE t (id INTEGER);") {
		t.Errorf("Expected SQL preserved, got %q", out)
	}
}

func TestInsertAndRecent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := makeRun("run-1", dayAt14(2), 1000, true)
	second := makeRun("run-2", dayAt14(1), 1200, false)

	if err := store.Insert(ctx, first); err != nil {
		t.Fatalf("Failed to insert run: %v", err)
	}
	if err := store.Insert(ctx, second); err != nil {
		t.Fatalf("Failed to insert run: %v", err)
	}

	runs, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != "run-2" || runs[1].RunID != "run-1" {
		t.Errorf("Expected newest-first order, got %s, %s", runs[0].RunID, runs[1].RunID)
	}

	got := runs[0]
	if len(got.Destinations) != 3 {
		t.Fatalf("Expected 3 destinations round-tripped, got %d", len(got.Destinations))
	}
	target := got.Destination(models.DestTarget)
	if target == nil || target.SetupLatencyMs == nil || *target.SetupLatencyMs != 1200 {
		t.Errorf("Expected target latency 1200 round-tripped, got %+v", target)
	}
	if target.Error == nil || *target.Error != "call failed" {
		t.Errorf("Expected target error round-tripped, got %v", target.Error)
	}
	if got.Summary.FailuresByCategory[models.CategoryUnknown] != 1 {
		t.Errorf("Expected failure histogram round-tripped, got %v", got.Summary.FailuresByCategory)
	}
}

func TestRecentLimit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		run := makeRun("run-"+string(rune('a'+i)), dayAt14(5-i), 1000, true)
		if err := store.Insert(ctx, run); err != nil {
			t.Fatalf("Failed to insert run: %v", err)
		}
	}

	runs, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("Expected limit of 2 runs, got %d", len(runs))
	}
}

func TestLatestEmpty(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Latest(context.Background())
	if err != ErrRunNotFound {
		t.Errorf("Expected ErrRunNotFound on empty store, got %v", err)
	}
}

func TestPurgeOlderThan(t *testing.T) {
	store := setupTestStore(t)
	store.cfg.RetentionDays = 0 // disable the insert-time purge for this test
	ctx := context.Background()

	old := makeRun("run-old", time.Now().UTC().AddDate(0, 0, -100), 1000, true)
	fresh := makeRun("run-fresh", time.Now().UTC().AddDate(0, 0, -1), 1000, true)
	// Started before the cutoff but finished after it: retention judges
	// the finish time, so this one survives.
	straddle := makeRun("run-straddle", time.Now().UTC().AddDate(0, 0, -91), 1000, true)
	straddle.FinishedAt = time.Now().UTC().AddDate(0, 0, -89)
	for _, run := range []*models.ProbeRun{old, fresh, straddle} {
		if err := store.Insert(ctx, run); err != nil {
			t.Fatalf("Failed to insert run: %v", err)
		}
	}

	n, err := store.PurgeOlderThan(ctx, 90)
	if err != nil {
		t.Fatalf("Failed to purge: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 purged run, got %d", n)
	}

	runs, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-fresh" || runs[1].RunID != "run-straddle" {
		t.Errorf("Expected the fresh and straddling runs to survive, got %+v", runs)
	}

	if n, err := store.PurgeOlderThan(ctx, 0); err != nil || n != 0 {
		t.Errorf("Expected zero-day purge to be a no-op, got n=%d err=%v", n, err)
	}
}

func TestBaseline(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	latencies := []int{900, 950, 1000, 1100, 1050}
	for i, ms := range latencies {
		run := makeRun("run-"+string(rune('a'+i)), dayAt14(i+1), ms, true)
		if err := store.Insert(ctx, run); err != nil {
			t.Fatalf("Failed to insert run: %v", err)
		}
	}
	// Same hour but outside the rolling window: must not count.
	stale := makeRun("run-stale", dayAt14(40), 5000, false)
	if err := store.Insert(ctx, stale); err != nil {
		t.Fatalf("Failed to insert run: %v", err)
	}
	// Different hour: must not count either.
	offHour := makeRun("run-offhour", dayAt14(1).Add(time.Hour), 5000, false)
	if err := store.Insert(ctx, offHour); err != nil {
		t.Fatalf("Failed to insert run: %v", err)
	}

	base, err := store.Baseline(ctx, "1001", 14, "run-current")
	if err != nil {
		t.Fatalf("Failed to compute baseline: %v", err)
	}
	if base.Samples != 5 {
		t.Errorf("Expected 5 samples, got %d", base.Samples)
	}
	if base.SuccessRatePct != 100.0 {
		t.Errorf("Expected 100.0%% success rate, got %.1f", base.SuccessRatePct)
	}
	if base.AvgLatencyMs != 1000.0 {
		t.Errorf("Expected average latency 1000.0, got %.1f", base.AvgLatencyMs)
	}
}

func TestBaselineLatencyIgnoresFailedSamples(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	insertBaselineRuns(t, store, 4) // successful target samples at 1000ms

	// A failed probe still carries a (fallback) latency; it must count
	// against the success rate but never feed the latency expectation.
	failed := makeRun("base-failed", dayAt14(5), 25000, false)
	if err := store.Insert(ctx, failed); err != nil {
		t.Fatalf("Failed to insert run: %v", err)
	}

	base, err := store.Baseline(ctx, "1001", 14, "run-current")
	if err != nil {
		t.Fatalf("Failed to compute baseline: %v", err)
	}
	if base.Samples != 5 {
		t.Errorf("Expected 5 samples, got %d", base.Samples)
	}
	if base.SuccessRatePct != 80.0 {
		t.Errorf("Expected 80.0%% success rate, got %.1f", base.SuccessRatePct)
	}
	if base.AvgLatencyMs != 1000.0 {
		t.Errorf("Expected average latency 1000.0 from successful samples only, got %.1f", base.AvgLatencyMs)
	}
}

func TestBaselineExcludesCurrentRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run := makeRun("run-current", dayAt14(1), 1000, true)
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Failed to insert run: %v", err)
	}

	base, err := store.Baseline(ctx, "1001", 14, "run-current")
	if err != nil {
		t.Fatalf("Failed to compute baseline: %v", err)
	}
	if base.Samples != 0 {
		t.Errorf("Expected the judged run to be excluded, got %d samples", base.Samples)
	}
}

func insertBaselineRuns(t *testing.T, store *Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		run := makeRun("base-"+string(rune('a'+i)), dayAt14(i+1), 1000, true)
		if err := store.Insert(context.Background(), run); err != nil {
			t.Fatalf("Failed to insert baseline run: %v", err)
		}
	}
}

func TestCheckDeviationMinSamplesGate(t *testing.T) {
	store := setupTestStore(t)
	insertBaselineRuns(t, store, 4) // one short of the minimum

	failing := makeRun("run-current", dayAt14(0), 1000, false)
	if err := store.CheckDeviation(context.Background(), failing); err != nil {
		t.Fatalf("Failed to check deviation: %v", err)
	}
	if failing.Summary.DeviationAlert {
		t.Errorf("Expected no alert below the sample minimum, got %v", failing.Summary.DeviationReasons)
	}
}

func TestCheckDeviationSuccessDrop(t *testing.T) {
	store := setupTestStore(t)
	insertBaselineRuns(t, store, 5)

	failing := makeRun("run-current", dayAt14(0), 1000, false)
	if err := store.CheckDeviation(context.Background(), failing); err != nil {
		t.Fatalf("Failed to check deviation: %v", err)
	}
	if !failing.Summary.DeviationAlert {
		t.Fatal("Expected a deviation alert for the failed target")
	}
	if len(failing.Summary.DeviationReasons) != 1 {
		t.Fatalf("Expected exactly 1 reason, got %v", failing.Summary.DeviationReasons)
	}
	if !strings.Contains(failing.Summary.DeviationReasons[0], "1001") {
		t.Errorf("Expected the reason to name the target, got %q", failing.Summary.DeviationReasons[0])
	}
}

func TestCheckDeviationLatencyMultiplier(t *testing.T) {
	store := setupTestStore(t)
	insertBaselineRuns(t, store, 5) // target baseline latency 1000ms

	slow := makeRun("run-current", dayAt14(0), 2500, true)
	if err := store.CheckDeviation(context.Background(), slow); err != nil {
		t.Fatalf("Failed to check deviation: %v", err)
	}
	if !slow.Summary.DeviationAlert {
		t.Fatal("Expected a latency deviation alert")
	}
	if !strings.Contains(slow.Summary.DeviationReasons[0], "2500ms") {
		t.Errorf("Expected the reason to carry the observed latency, got %q", slow.Summary.DeviationReasons[0])
	}

	// At exactly the multiplier boundary no alert fires.
	edge := makeRun("run-edge", dayAt14(0), 2000, true)
	if err := store.CheckDeviation(context.Background(), edge); err != nil {
		t.Fatalf("Failed to check deviation: %v", err)
	}
	if edge.Summary.DeviationAlert {
		t.Errorf("Expected no alert at the exact threshold, got %v", edge.Summary.DeviationReasons)
	}
}
