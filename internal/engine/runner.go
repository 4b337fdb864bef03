/*
PURPOSE:
  Run Coordinator: drives the whole benchmark run. Pre-flight checks
  the backend, iterates the requested models in order, continues past
  model-level failures, and assembles the final BenchmarkReport.

REQUIREMENTS:
  User-specified:
  - A single unavailable model must never prevent reporting results
    for the others. "Continue on partial failure" is the defining
    reliability property.
  - Wall-clock duration spans first trial to last trial.

  Implementation-discovered:
  - The existence check reuses /api/tags, so a missing model is caught
    before any generation request is spent on it.
  - An unreachable backend on pre-flight is the one run-fatal network
    condition; afterwards the connection is assumed healthy enough to
    let per-trial classification do its job.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/engine/{client,trial,orchestrator}.go,
    internal/stats, internal/config

ERROR HANDLING:
  - Only configuration and pre-flight problems return an error.
    Everything below model granularity is captured as data.

IMPLEMENTATION RULES:
  - Models run in caller-supplied order; summaries keep that order.
  - The report is a value once returned. No further mutation.

USAGE:
  report, err := engine.Run(ctx, cfg, observer)

RELATED FILES:
  - internal/engine/orchestrator.go
  - internal/stats/aggregate.go

MAINTENANCE:
  - Update if multi-host fleets are ever needed (one coordinator per
    backend URL).
*/

package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/daryltucker/canopy-bench/internal/config"
	"github.com/daryltucker/canopy-bench/internal/model"
	"github.com/daryltucker/canopy-bench/internal/output"
	"github.com/daryltucker/canopy-bench/internal/stats"
)

// Run executes the full benchmark and returns the completed report.
// cfg must already be validated; obs may be nil.
func Run(ctx context.Context, cfg *config.Config, obs Observer) (*model.BenchmarkReport, error) {
	client := NewClient(cfg)
	return run(ctx, cfg, client, obs)
}

// run is the testable core, decoupled from client construction.
func run(ctx context.Context, cfg *config.Config, client *Client, obs Observer) (*model.BenchmarkReport, error) {
	exec := NewTrialExecutor(client, cfg)
	orch := NewOrchestrator(exec, cfg, obs)

	// Pre-flight: one cheap listing call confirms the backend is up
	// and tells us which requested models are actually servable.
	output.Logger.Info("Checking backend", "target", client.String())
	available, err := client.ListModels(ctx)
	if err != nil {
		return nil, err // carries kind + hint (start the backend)
	}

	servable := make(map[string]bool, len(available))
	for _, name := range available {
		servable[name] = true
	}

	start := time.Now()
	trialsByModel := make(map[string][]model.TrialRecord, len(cfg.Models))
	var allTrials []model.TrialRecord

	for i, modelName := range cfg.Models {
		var records []model.TrialRecord
		if !isServable(servable, modelName) {
			// Model-level catastrophic condition: record total failure
			// for this model and move on. No generation requests spent.
			notFound := errf(KindModelNotFound, modelName, "not present in /api/tags")
			output.Logger.Error("Model not servable, skipping its trials",
				"model", modelName, "hint", KindModelNotFound.Hint())
			records = orch.FailedSet(modelName, notFound)
		} else {
			records = orch.BenchmarkModel(ctx, modelName, i+1, len(cfg.Models))
		}

		trialsByModel[modelName] = records
		allTrials = append(allTrials, records...)
	}

	wallClock := time.Since(start)

	summaries := stats.Summarize(cfg.Models, trialsByModel)
	winner := stats.PickWinner(summaries)

	return &model.BenchmarkReport{
		RunID:       uuid.NewString(),
		Timestamp:   start,
		Config:      cfg.Snapshot(),
		WallClockMs: wallClock.Milliseconds(),
		Trials:      allTrials,
		Summaries:   summaries,
		Winner:      winner,
	}, nil
}

// isServable matches a requested name against /api/tags entries.
// "llama3.1" matches the installed "llama3.1:latest", mirroring how
// the Ollama CLI resolves untagged names.
func isServable(servable map[string]bool, requested string) bool {
	return servable[requested] || servable[requested+":latest"]
}
