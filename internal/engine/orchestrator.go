/*
PURPOSE:
  Model Benchmark Orchestrator: runs the full trial matrix for one
  model (iterations x prompts) with an optional discarded warm-up
  trial and a bounded number of trials in flight.

REQUIREMENTS:
  User-specified:
  - Warm-up absorbs the cold-start cost (model load) so it does not
    pollute measured trials.
  - At most `concurrency` trials in flight simultaneously.
  - An all-failed trial set is returned, not raised. Failure is data.

  Implementation-discovered:
  - Records are merged by a single collector loop (single-writer
    append discipline); trial goroutines only send on a channel, so
    progress emission never blocks a trial.
  - Record order is completion order, which is the execution order
    the report documents.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go
  - Uses: internal/engine/trial.go

ERROR HANDLING:
  - None to propagate; every trial yields a record.

IMPLEMENTATION RULES:
  - Semaphore-gated goroutine spawn ("spawn up to N, collect as they
    finish"). No ordering constraint between trials.
  - Run-level cancellation stops issuing new trials; in-flight trials
    finish (or time out) and their records are still collected.

USAGE:
  orch := engine.NewOrchestrator(exec, cfg, obs)
  records := orch.BenchmarkModel(ctx, "llama3.1:8b", 1, len(models))

RELATED FILES:
  - internal/engine/trial.go
  - internal/engine/observer.go

MAINTENANCE:
  - Update if per-prompt scheduling policies are ever needed.
*/

package engine

import (
	"context"
	"time"

	"github.com/daryltucker/canopy-bench/internal/config"
	"github.com/daryltucker/canopy-bench/internal/model"
	"github.com/daryltucker/canopy-bench/internal/output"
)

// Orchestrator schedules all trials for a single model.
type Orchestrator struct {
	exec *TrialExecutor
	cfg  *config.Config
	obs  Observer
}

// NewOrchestrator creates an Orchestrator. A nil observer is replaced
// with NopObserver.
func NewOrchestrator(exec *TrialExecutor, cfg *config.Config, obs Observer) *Orchestrator {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Orchestrator{exec: exec, cfg: cfg, obs: obs}
}

// TotalTrials is the measured trial count per model.
func (o *Orchestrator) TotalTrials() int {
	return o.cfg.Iterations * len(o.cfg.Prompts)
}

// BenchmarkModel runs the warm-up plus the full trial matrix for one
// model and returns every measured record, failed trials included.
// modelIndex and modelTotal are only used for progress events.
func (o *Orchestrator) BenchmarkModel(ctx context.Context, modelName string, modelIndex, modelTotal int) []model.TrialRecord {
	o.obs.ModelStart(modelName, modelIndex, modelTotal)

	if o.cfg.Warmup {
		output.Logger.Info("Warm-up trial", "model", modelName)
		// Discarded: its only purpose is to pay the model-load cost.
		_ = o.exec.Run(ctx, modelName, o.cfg.Prompts[0])
	}

	total := o.TotalTrials()
	results := make(chan model.TrialRecord, total)
	sem := make(chan struct{}, o.cfg.Concurrency)

	spawned := 0
	for _, prompt := range o.cfg.Prompts {
		for i := 0; i < o.cfg.Iterations; i++ {
			if ctx.Err() != nil {
				break // stop issuing new trials; in-flight ones finish
			}
			spawned++
			go func(prompt string) {
				sem <- struct{}{}
				defer func() { <-sem }()
				results <- o.exec.Run(ctx, modelName, prompt)
			}(prompt)
		}
	}

	// Single-writer merge. Progress events fire here, after the trial
	// task has already completed, so they cannot block a measurement.
	records := make([]model.TrialRecord, 0, spawned)
	for i := 0; i < spawned; i++ {
		rec := <-results
		records = append(records, rec)
		o.obs.TrialComplete(modelName, len(records), total, rec)
	}

	o.obs.ModelComplete(modelName)
	return records
}

// FailedSet fabricates the all-failed record set used when a model
// flunks the pre-flight existence check: the trials were never issued,
// but success-rate accounting still needs one record per planned trial.
func (o *Orchestrator) FailedSet(modelName string, trialErr *Error) []model.TrialRecord {
	records := make([]model.TrialRecord, 0, o.TotalTrials())
	for _, prompt := range o.cfg.Prompts {
		for i := 0; i < o.cfg.Iterations; i++ {
			records = append(records, o.exec.failed(modelName, prompt, time.Now(), trialErr))
		}
	}
	return records
}
