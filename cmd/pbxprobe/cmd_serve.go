package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/btafoya/pbxprobe/internal/ami"
	"github.com/btafoya/pbxprobe/internal/api"
	"github.com/btafoya/pbxprobe/internal/history"
	"github.com/btafoya/pbxprobe/internal/probe"
)

var serveCmd = &cobra.Command{
	Use:          "serve",
	Short:        "Run the HTTP API and, if scheduled, periodic probes",
	RunE:         runServe,
	SilenceUsage: true,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := initRuntime()
	if err != nil {
		return err
	}

	store, err := history.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// One probe at a time: a tick that fires while the previous probe is
	// still running is skipped, not stacked.
	var scheduler *cron.Cron
	if cfg.ProbeSchedule != "" {
		orch := probe.New(cfg)
		scheduler = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
		_, err := scheduler.AddFunc(cfg.ProbeSchedule, func() {
			run := orch.Run(ctx, "scheduled")
			if err := store.CheckDeviation(ctx, run); err != nil {
				slog.Warn("Deviation check failed", "error", err)
			}
			if err := store.Insert(ctx, run); err != nil {
				slog.Error("Failed to persist scheduled run", "error", err, "run_id", run.RunID)
				return
			}
			if run.Summary.DeviationAlert {
				slog.Warn("Probe deviation detected",
					"run_id", run.RunID, "reasons", run.Summary.DeviationReasons)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid PBXPROBE_SCHEDULE %q: %w", cfg.ProbeSchedule, err)
		}
		scheduler.Start()
		slog.Info("Probe scheduler started", "schedule", cfg.ProbeSchedule)
	}

	router := api.NewRouter(api.NewDependencies(cfg, store, ami.New(cfg)), version)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("HTTP server started", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		slog.Info("Shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if scheduler != nil {
		// Stop returns a context that completes when running jobs finish.
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			slog.Warn("Timed out waiting for scheduled probe to finish")
		}
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	slog.Info("Shutdown complete")
	return nil
}
