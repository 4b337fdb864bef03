/*
PURPOSE:
  Defines the core data structures used throughout Canopy Bench.
  These models represent individual trial measurements, per-model
  aggregates, and the final benchmark report.

REQUIREMENTS:
  User-specified:
  - Record tokens/second, TTFT, total duration, token counts per trial.
  - Aggregate per model: success rate, avg/min/max speed, avg TTFT.
  - Rank models and report a winner with a percentage advantage.

  Implementation-discovered:
  - Failed trials still need a record (success rate accounting).
  - Aggregate fields must be ABSENT (not zero) when a model had no
    successful trials. Modeled with a nil *PerfStats.
  - Streamed vs non-streamed timing is not comparable 1:1, so every
    trial carries a TimingMode tag.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine, internal/stats, internal/output
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs).

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - Values are immutable once produced; nobody mutates a TrialRecord
    after the Trial Executor returns it.

USAGE:
  rec := model.TrialRecord{...}
  sum := model.ModelSummary{...}

RELATED FILES:
  - internal/stats/aggregate.go
  - internal/output/formats.go

MAINTENANCE:
  - Update CSV/JSON/Markdown writers when adding new metrics.
*/

package model

import (
	"time"
)

// TimingMode describes how TTFT was obtained for a trial.
type TimingMode string

const (
	// TimingStream means TTFT was measured at the first streamed content
	// fragment. This is the precise measurement.
	TimingStream TimingMode = "stream"
	// TimingAggregate means the backend returned a single envelope, so
	// TTFT equals total duration. Degraded but consistent.
	TimingAggregate TimingMode = "aggregate"
)

// GenerationOptions carries the sampling parameters sent with every
// generation request.
type GenerationOptions struct {
	Temperature float64 `json:"temperature" yaml:"temperature"`
	TopP        float64 `json:"top_p" yaml:"top_p"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
}

// TrialRecord is one measured generation attempt, success or failure.
// If Success is false the numeric fields are zero-filled and must not
// be fed into aggregation.
type TrialRecord struct {
	Model              string     `json:"model"`
	Prompt             string     `json:"prompt"`
	Timestamp          time.Time  `json:"timestamp"`
	Success            bool       `json:"success"`
	TimingMode         TimingMode `json:"timing_mode"`
	TokensPerSecond    float64    `json:"tokens_per_second"`
	TimeToFirstTokenMs int64      `json:"time_to_first_token_ms"`
	TotalDurationMs    int64      `json:"total_duration_ms"`
	PromptTokens       int        `json:"prompt_tokens"`
	CompletionTokens   int        `json:"completion_tokens"`

	// MemoryBytes comes from /api/ps after a successful trial. Zero when
	// the probe failed or the model had already unloaded.
	MemoryBytes int64 `json:"memory_bytes,omitempty"`

	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PerfStats holds the speed statistics of a model, computed over its
// successful trials only.
type PerfStats struct {
	AvgTokensPerSecond float64 `json:"avg_tokens_per_second"`
	MinTokensPerSecond float64 `json:"min_tokens_per_second"`
	MaxTokensPerSecond float64 `json:"max_tokens_per_second"`
	AvgTTFTMs          float64 `json:"avg_ttft_ms"`
	FastestPrompt      string  `json:"fastest_prompt"`
	SlowestPrompt      string  `json:"slowest_prompt"`
}

// ModelSummary aggregates all trials of one model.
// Perf is nil when the model had zero successful trials.
type ModelSummary struct {
	Model          string     `json:"model"`
	TotalTrials    int        `json:"total_trials"`
	SuccessRate    float64    `json:"success_rate"`
	Perf           *PerfStats `json:"perf,omitempty"`
	AvgMemoryBytes int64      `json:"avg_memory_bytes,omitempty"`
}

// Winner names the fastest model of a run. AdvantagePercent is the
// speed advantage over the runner-up, nil when there is no second
// model with a valid summary to compare against.
type Winner struct {
	Model            string   `json:"model"`
	AdvantagePercent *float64 `json:"advantage_percent,omitempty"`
}

// RunConfig is the configuration snapshot embedded in a report, so a
// saved report is self-describing.
type RunConfig struct {
	BaseURL     string            `json:"base_url"`
	Models      []string          `json:"models"`
	Prompts     []string          `json:"prompts"`
	Iterations  int               `json:"iterations"`
	Concurrency int               `json:"concurrency"`
	Warmup      bool              `json:"warmup"`
	Stream      bool              `json:"stream"`
	Options     GenerationOptions `json:"options"`
	TimeoutSecs int               `json:"timeout_seconds"`
	MaxRetries  int               `json:"max_retries"`
}

// BenchmarkReport is the top-level artifact of a run. It is assembled
// once by the Run Coordinator and handed to output as a value.
type BenchmarkReport struct {
	RunID       string         `json:"run_id"`
	Timestamp   time.Time      `json:"timestamp"`
	Config      RunConfig      `json:"config"`
	WallClockMs int64          `json:"wall_clock_ms"`
	Trials      []TrialRecord  `json:"trials"`
	Summaries   []ModelSummary `json:"summaries"`
	Winner      *Winner        `json:"winner,omitempty"`
}
