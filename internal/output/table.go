/*
PURPOSE:
  Renders the completed BenchmarkReport as a colored terminal table,
  plus the winner line and the total run duration.

REQUIREMENTS:
  User-specified:
  - Default human-readable output format.
  - Absent statistics (models with zero successful trials) must show
    as "-", never as a misleading 0.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli/run.go
  - Consumes: internal/model.BenchmarkReport (read-only)

ERROR HANDLING:
  - None; rendering a value cannot fail.

IMPLEMENTATION RULES:
  - lipgloss for styling; plain string assembly for layout.

USAGE:
  fmt.Print(output.RenderTable(report))

RELATED FILES:
  - internal/output/formats.go

MAINTENANCE:
  - Keep column set in sync with ModelSummary.
*/

package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/daryltucker/canopy-bench/internal/model"
)

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true)
	winnerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	missStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// RenderTable builds the default terminal view of a report.
func RenderTable(report model.BenchmarkReport) string {
	var b strings.Builder

	if len(report.Summaries) == 0 {
		return "No results to display.\n"
	}

	header := fmt.Sprintf("%-24s %12s %12s %12s %10s %9s %9s",
		"MODEL", "AVG TOK/S", "MIN TOK/S", "MAX TOK/S", "TTFT", "SUCCESS", "MEM")
	b.WriteString(tableHeaderStyle.Render(header))
	b.WriteString("\n")

	for _, s := range report.Summaries {
		name := s.Model
		if len(name) > 24 {
			name = name[:23] + "…"
		}
		if s.Perf == nil {
			b.WriteString(fmt.Sprintf("%-24s %12s %12s %12s %10s %8.1f%% %9s\n",
				name, "-", "-", "-", "-", s.SuccessRate*100, "-"))
			continue
		}
		mem := "-"
		if s.AvgMemoryBytes > 0 {
			mem = fmt.Sprintf("%.1fGB", float64(s.AvgMemoryBytes)/(1<<30))
		}
		b.WriteString(fmt.Sprintf("%-24s %12.1f %12.1f %12.1f %8.0fms %8.1f%% %9s\n",
			name,
			s.Perf.AvgTokensPerSecond,
			s.Perf.MinTokensPerSecond,
			s.Perf.MaxTokensPerSecond,
			s.Perf.AvgTTFTMs,
			s.SuccessRate*100,
			mem))
	}

	if report.Winner != nil {
		line := "Winner: " + report.Winner.Model
		if report.Winner.AdvantagePercent != nil {
			line += fmt.Sprintf(" (%.1f%% faster than the runner-up)", *report.Winner.AdvantagePercent)
		}
		b.WriteString("\n")
		b.WriteString(winnerStyle.Render("🏆 " + line))
		b.WriteString("\n")
	} else {
		b.WriteString("\n")
		b.WriteString(missStyle.Render("No model produced a successful trial."))
		b.WriteString("\n")
	}

	b.WriteString(footerStyle.Render("Completed in " + formatDuration(report.WallClockMs)))
	b.WriteString("\n")
	return b.String()
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d >= time.Minute {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
