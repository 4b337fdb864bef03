/*
PURPOSE:
  Trial Executor: runs one (model, prompt) trial through the generation
  client with a hard per-request timeout and a bounded retry policy,
  producing a TrialRecord whether the trial succeeded or not.

REQUIREMENTS:
  User-specified:
  - Retry only transient kinds (timeout, unreachable, generic HTTP).
  - Non-transient kinds (model not found, malformed response) perform
    exactly one attempt.
  - A trial that exhausts its retries is still recorded, with its
    terminal error kind, so success-rate accounting stays correct.

  Implementation-discovered:
  - A fixed short delay between attempts is enough; no backoff curve.
  - The memory probe after a successful trial is best-effort and must
    never fail the trial.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/orchestrator.go
  - Uses: internal/engine/client.go (via the generator interface),
    internal/config, internal/model

ERROR HANDLING:
  - Failures become data. Nothing propagates past the TrialRecord.

IMPLEMENTATION RULES:
  - Attempts on a transient failure = 1 + MaxRetries, exactly.
  - tokens/second = completion_tokens / (total_duration_ms / 1000);
    the client guarantees total duration > 0 on success.

USAGE:
  exec := engine.NewTrialExecutor(client, cfg)
  rec := exec.Run(ctx, "llama3.1:8b", prompt)

RELATED FILES:
  - internal/engine/client.go
  - internal/engine/errors.go

MAINTENANCE:
  - Keep the retryability branch on Kind.Transient(), never on
    error-message strings.
*/

package engine

import (
	"context"
	"errors"
	"time"

	"github.com/daryltucker/canopy-bench/internal/config"
	"github.com/daryltucker/canopy-bench/internal/model"
	"github.com/daryltucker/canopy-bench/internal/output"
)

// generator is the slice of Client the executor needs. Tests substitute
// a scripted implementation.
type generator interface {
	Generate(ctx context.Context, modelName, prompt string, opts model.GenerationOptions) (TrialOutcome, error)
	RunningModelMemory(ctx context.Context, modelName string) (int64, error)
}

// TrialExecutor owns timeout and retry policy for single trials.
type TrialExecutor struct {
	gen generator
	cfg *config.Config
}

// NewTrialExecutor creates a TrialExecutor backed by the given client.
func NewTrialExecutor(gen generator, cfg *config.Config) *TrialExecutor {
	return &TrialExecutor{gen: gen, cfg: cfg}
}

// Run executes one trial and always returns a record. The context may
// carry run-level cancellation; each attempt additionally gets the
// configured per-request deadline.
func (t *TrialExecutor) Run(ctx context.Context, modelName, prompt string) model.TrialRecord {
	started := time.Now()
	attempts := 1 + t.cfg.MaxRetries

	var lastErr *Error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			output.Logger.Info("Retrying trial", "model", modelName, "attempt", attempt+1)
			select {
			case <-ctx.Done():
				return t.failed(modelName, prompt, started, lastErr)
			case <-time.After(t.cfg.RetryDelay()):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, t.cfg.RequestTimeout())
		outcome, err := t.gen.Generate(attemptCtx, modelName, prompt, t.cfg.Options())
		cancel()

		if err == nil {
			return t.succeeded(attemptCtx, modelName, prompt, started, outcome)
		}

		var trialErr *Error
		if !errors.As(err, &trialErr) {
			// Unclassified errors should not happen; treat as generic
			// transport failure so the retry policy still applies.
			trialErr = &Error{Kind: KindHTTP, Model: modelName, Err: err}
		}
		lastErr = trialErr

		if !trialErr.Kind.Transient() {
			break // retrying cannot change the outcome
		}
		if ctx.Err() != nil {
			break
		}
	}

	return t.failed(modelName, prompt, started, lastErr)
}

func (t *TrialExecutor) succeeded(ctx context.Context, modelName, prompt string, started time.Time, outcome TrialOutcome) model.TrialRecord {
	totalMs := outcome.TotalDuration.Milliseconds()
	if totalMs == 0 {
		totalMs = 1 // sub-millisecond response; client guarantees > 0 duration
	}
	tps := float64(outcome.CompletionTokens) / (float64(totalMs) / 1000.0)

	rec := model.TrialRecord{
		Model:              modelName,
		Prompt:             prompt,
		Timestamp:          started,
		Success:            true,
		TimingMode:         outcome.TimingMode,
		TokensPerSecond:    tps,
		TimeToFirstTokenMs: outcome.TimeToFirstToken.Milliseconds(),
		TotalDurationMs:    totalMs,
		PromptTokens:       outcome.PromptTokens,
		CompletionTokens:   outcome.CompletionTokens,
	}

	// Memory probe while the model is likely still loaded. Failures
	// here do not affect the trial.
	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if size, err := t.gen.RunningModelMemory(probeCtx, modelName); err == nil && size > 0 {
		rec.MemoryBytes = size
	}

	return rec
}

func (t *TrialExecutor) failed(modelName, prompt string, started time.Time, trialErr *Error) model.TrialRecord {
	rec := model.TrialRecord{
		Model:      modelName,
		Prompt:     prompt,
		Timestamp:  started,
		Success:    false,
		TimingMode: t.timingMode(),
	}
	if trialErr != nil {
		rec.ErrorKind = string(trialErr.Kind)
		rec.Error = trialErr.Error()
	}
	return rec
}

func (t *TrialExecutor) timingMode() model.TimingMode {
	if t.cfg.Stream {
		return model.TimingStream
	}
	return model.TimingAggregate
}
