/*
PURPOSE:
  Terminal progress rendering for a live benchmark run. Implements the
  engine's observer contract: per-model start/complete lines and an
  in-place progress bar per trial completion.

REQUIREMENTS:
  User-specified:
  - Live progress while trials run; silent in quiet mode.

  Implementation-discovered:
  - Events arrive from the orchestrator's collector goroutine, so the
    renderer needs no locking of its own, but writes must be cheap.
  - The bar redraws in place with \r; model transitions print a
    newline first so completed bars stay visible.

ARCHITECTURE INTEGRATION:
  - Implements: the engine Observer contract (structurally; this
    package does not import internal/engine).
  - Used by: internal/cli/run.go

ERROR HANDLING:
  - Write errors to the terminal are ignored.

IMPLEMENTATION RULES:
  - Colors via lipgloss; no raw ANSI sequences.

USAGE:
  p := output.NewProgress(os.Stderr, quiet)
  report, err := engine.Run(ctx, cfg, p)

RELATED FILES:
  - internal/engine/observer.go

MAINTENANCE:
  - Keep method signatures in sync with engine.Observer.
*/

package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/daryltucker/canopy-bench/internal/model"
)

const progressBarWidth = 32

var (
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))  // cyan
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))  // green
	failMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("1")). // red
			Render("!")
	headerStyle = lipgloss.NewStyle().Bold(true)
)

// Progress renders run progress to a terminal writer.
type Progress struct {
	w        io.Writer
	quiet    bool
	failures int
}

// NewProgress creates a Progress renderer. With quiet=true all events
// are swallowed.
func NewProgress(w io.Writer, quiet bool) *Progress {
	return &Progress{w: w, quiet: quiet}
}

// ModelStart announces the next model under test.
func (p *Progress) ModelStart(modelName string, index, total int) {
	if p.quiet {
		return
	}
	p.failures = 0
	fmt.Fprintf(p.w, "\n%s\n", headerStyle.Render(
		fmt.Sprintf("Testing %s (%d/%d)...", modelName, index, total)))
}

// TrialComplete redraws the bar after each merged trial record.
func (p *Progress) TrialComplete(modelName string, trial, totalTrials int, rec model.TrialRecord) {
	if p.quiet {
		return
	}
	if !rec.Success {
		p.failures++
	}

	filled := 0
	if totalTrials > 0 {
		filled = progressBarWidth * trial / totalTrials
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled)

	line := fmt.Sprintf("\r%s %s %d/%d", modelName, barStyle.Render(bar), trial, totalTrials)
	if p.failures > 0 {
		line += fmt.Sprintf("  %s %d failed", failMark, p.failures)
	}
	fmt.Fprint(p.w, line)
}

// ModelComplete finishes the model's progress line.
func (p *Progress) ModelComplete(modelName string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.w, "\r%s %s\n", modelName, doneStyle.Render("✓ complete"))
}
