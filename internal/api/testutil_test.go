package api

import (
	"context"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/btafoya/pbxprobe/internal/config"
	"github.com/btafoya/pbxprobe/internal/history"
	"github.com/btafoya/pbxprobe/internal/models"
)

// fakeAMI is a canned manager-interface client for handler tests.
type fakeAMI struct {
	peers []models.PeerEntry
	err   error
}

func (f *fakeAMI) SIPPeers(ctx context.Context) ([]models.PeerEntry, error) {
	return f.peers, f.err
}

// setupTestRouter builds a router over a throwaway store and the given
// fake manager client.
func setupTestRouter(t *testing.T, amiClient *fakeAMI) (chi.Router, *history.Store) {
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
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})

	deps := NewDependencies(cfg, store, amiClient)
	return NewRouter(deps, "test"), store
}

// storedRun inserts a minimal successful run and returns it.
func storedRun(t *testing.T, store *history.Store, id string) *models.ProbeRun {
	t.Helper()

	started := time.Now().UTC().Add(-time.Minute)
	run := &models.ProbeRun{
		RunID:      id,
		StartedAt:  started,
		FinishedAt: started.Add(12 * time.Second),
		Mode:       "manual",
		Destinations: []models.DestinationResult{
			{
				Key:            models.DestTarget,
				Number:         "1001",
				CompletedCall:  true,
				NoIssues:       true,
				SetupLatencyMs: models.IntPtr(950),
			},
		},
		Summary:      models.RunSummary{Total: 1, Succeeded: 1},
		TargetNumber: "1001",
		OK:           true,
		NoIssues:     true,
	}
	if err := store.Insert(context.Background(), run); err != nil {
		t.Fatalf("Failed to insert run: %v", err)
	}
	return run
}
