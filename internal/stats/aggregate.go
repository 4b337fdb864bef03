/*
PURPOSE:
  Aggregator: reduces raw trial records into per-model summaries and
  determines the overall fastest model with its percentage advantage.
  Pure, synchronous reduction over already-collected data.

REQUIREMENTS:
  User-specified:
  - Success rate = successes/total, stored exact (rounding is a
    presentation concern).
  - Speed/TTFT aggregates computed over successful trials only and
    ABSENT when there are none (never zero or NaN).
  - Fastest/slowest prompt ties break by earliest execution order.
  - Winner = highest average tokens/second among success rate > 0;
    advantage over the runner-up, absent without a runner-up.

  Implementation-discovered:
  - Ties between models on average speed break by requested model
    order, keeping the pick deterministic and reproducible.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go
  - Consumes: internal/model.TrialRecord
  - Produces: internal/model.ModelSummary, model.Winner

ERROR HANDLING:
  - None. Inputs are already-validated data.

IMPLEMENTATION RULES:
  - No suspension, no I/O, no shared state. Re-running over the same
    input yields the same output.

USAGE:
  summaries := stats.Summarize(models, trialsByModel)
  winner := stats.PickWinner(summaries)

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Extend here if percentile stats are ever wanted.
*/

package stats

import (
	"github.com/daryltucker/canopy-bench/internal/model"
)

// Summarize reduces each model's trial set into a summary. The result
// keeps the caller-supplied model order. Models with no entry in
// trialsByModel get an empty (all-absent) summary.
func Summarize(models []string, trialsByModel map[string][]model.TrialRecord) []model.ModelSummary {
	summaries := make([]model.ModelSummary, 0, len(models))
	for _, name := range models {
		summaries = append(summaries, summarizeModel(name, trialsByModel[name]))
	}
	return summaries
}

func summarizeModel(name string, trials []model.TrialRecord) model.ModelSummary {
	summary := model.ModelSummary{
		Model:       name,
		TotalTrials: len(trials),
	}
	if len(trials) == 0 {
		return summary
	}

	var (
		successes  int
		sumTPS     float64
		sumTTFT    float64
		perf       model.PerfStats
		memSum     int64
		memSamples int64
	)

	for _, t := range trials {
		if !t.Success {
			continue
		}
		successes++
		sumTPS += t.TokensPerSecond
		sumTTFT += float64(t.TimeToFirstTokenMs)

		// Strict comparisons keep the earliest trial on ties.
		if successes == 1 || t.TokensPerSecond > perf.MaxTokensPerSecond {
			perf.MaxTokensPerSecond = t.TokensPerSecond
			perf.FastestPrompt = t.Prompt
		}
		if successes == 1 || t.TokensPerSecond < perf.MinTokensPerSecond {
			perf.MinTokensPerSecond = t.TokensPerSecond
			perf.SlowestPrompt = t.Prompt
		}

		if t.MemoryBytes > 0 {
			memSum += t.MemoryBytes
			memSamples++
		}
	}

	summary.SuccessRate = float64(successes) / float64(len(trials))
	if successes == 0 {
		// No successful trials: speed fields stay absent. A zero here
		// would read as a measured zero-speed run.
		return summary
	}

	perf.AvgTokensPerSecond = sumTPS / float64(successes)
	perf.AvgTTFTMs = sumTTFT / float64(successes)
	summary.Perf = &perf

	if memSamples > 0 {
		summary.AvgMemoryBytes = memSum / memSamples
	}
	return summary
}

// PickWinner selects the summary with the highest average tokens/second
// among those with at least one successful trial. Ties break toward the
// earliest summary in slice order (= requested model order). The
// advantage percentage compares against the best other valid summary
// and is nil when none exists.
func PickWinner(summaries []model.ModelSummary) *model.Winner {
	winnerIdx := -1
	for i, s := range summaries {
		if s.Perf == nil {
			continue
		}
		if winnerIdx == -1 || s.Perf.AvgTokensPerSecond > summaries[winnerIdx].Perf.AvgTokensPerSecond {
			winnerIdx = i
		}
	}
	if winnerIdx == -1 {
		return nil
	}

	winner := &model.Winner{Model: summaries[winnerIdx].Model}

	runnerUpIdx := -1
	for i, s := range summaries {
		if i == winnerIdx || s.Perf == nil {
			continue
		}
		if runnerUpIdx == -1 || s.Perf.AvgTokensPerSecond > summaries[runnerUpIdx].Perf.AvgTokensPerSecond {
			runnerUpIdx = i
		}
	}
	if runnerUpIdx != -1 {
		winnerAvg := summaries[winnerIdx].Perf.AvgTokensPerSecond
		runnerAvg := summaries[runnerUpIdx].Perf.AvgTokensPerSecond
		advantage := (winnerAvg - runnerAvg) / runnerAvg * 100.0
		winner.AdvantagePercent = &advantage
	}
	return winner
}
