/*
PURPOSE:
  Machine-readable renderings of a completed BenchmarkReport:
  pretty JSON, summary CSV, and a Markdown report with the winner
  comparison.

REQUIREMENTS:
  User-specified:
  - `-o json|csv|markdown` on stdout, same data as the table.

  Implementation-discovered:
  - CSV carries summaries only (one row per model); the full trial
    log has its own NDJSON writer.
  - Absent statistics render as empty CSV cells / "-" in Markdown,
    never as 0.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli/run.go, internal/output/export.go
  - Consumes: internal/model.BenchmarkReport (read-only)

ERROR HANDLING:
  - Only JSON marshalling can fail, and only on exotic inputs.

IMPLEMENTATION RULES:
  - Use encoding/json and encoding/csv; build strings, let the caller
    decide the destination (stdout or file).

USAGE:
  s, err := output.RenderJSON(report)

RELATED FILES:
  - internal/output/table.go
  - internal/output/export.go

MAINTENANCE:
  - Update all three renderers when ModelSummary grows fields.
*/

package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/daryltucker/canopy-bench/internal/model"
)

// RenderJSON marshals the full report, trials included.
func RenderJSON(report model.BenchmarkReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

// RenderCSV emits one summary row per model. Speed columns are empty
// for models without a successful trial.
func RenderCSV(report model.BenchmarkReport) string {
	var b strings.Builder
	w := csv.NewWriter(&b)

	_ = w.Write([]string{
		"model", "total_trials", "success_rate",
		"avg_tokens_per_second", "min_tokens_per_second", "max_tokens_per_second",
		"avg_ttft_ms", "fastest_prompt", "slowest_prompt", "avg_memory_bytes",
	})

	for _, s := range report.Summaries {
		row := []string{
			s.Model,
			fmt.Sprintf("%d", s.TotalTrials),
			fmt.Sprintf("%.4f", s.SuccessRate),
			"", "", "", "", "", "", "",
		}
		if s.Perf != nil {
			row[3] = fmt.Sprintf("%.2f", s.Perf.AvgTokensPerSecond)
			row[4] = fmt.Sprintf("%.2f", s.Perf.MinTokensPerSecond)
			row[5] = fmt.Sprintf("%.2f", s.Perf.MaxTokensPerSecond)
			row[6] = fmt.Sprintf("%.0f", s.Perf.AvgTTFTMs)
			row[7] = s.Perf.FastestPrompt
			row[8] = s.Perf.SlowestPrompt
		}
		if s.AvgMemoryBytes > 0 {
			row[9] = fmt.Sprintf("%d", s.AvgMemoryBytes)
		}
		_ = w.Write(row)
	}

	w.Flush()
	return b.String()
}

// RenderMarkdown produces a report section suitable for pasting into
// docs or a PR description.
func RenderMarkdown(report model.BenchmarkReport) string {
	var b strings.Builder

	b.WriteString("# Benchmark Results\n\n")
	b.WriteString("| Model | Success Rate | Avg Speed | Min Speed | Max Speed | Avg TTFT |\n")
	b.WriteString("|-------|--------------|-----------|-----------|-----------|----------|\n")

	for _, s := range report.Summaries {
		if s.Perf == nil {
			b.WriteString(fmt.Sprintf("| %s | %.1f%% | - | - | - | - |\n",
				s.Model, s.SuccessRate*100))
			continue
		}
		b.WriteString(fmt.Sprintf("| %s | %.1f%% | %.1f tok/s | %.1f tok/s | %.1f tok/s | %.0fms |\n",
			s.Model,
			s.SuccessRate*100,
			s.Perf.AvgTokensPerSecond,
			s.Perf.MinTokensPerSecond,
			s.Perf.MaxTokensPerSecond,
			s.Perf.AvgTTFTMs))
	}

	if report.Winner != nil {
		b.WriteString(fmt.Sprintf("\n## Winner: %s 🏆\n", report.Winner.Model))
		if report.Winner.AdvantagePercent != nil {
			b.WriteString(fmt.Sprintf("\n- %.1f%% faster than the runner-up\n",
				*report.Winner.AdvantagePercent))
		}
	}

	b.WriteString(fmt.Sprintf("\n*Total duration: %s*\n", formatDuration(report.WallClockMs)))
	return b.String()
}
