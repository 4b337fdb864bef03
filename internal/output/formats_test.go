package output

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/canopy-bench/internal/model"
)

func sampleReport() model.BenchmarkReport {
	advantage := 18.4
	return model.BenchmarkReport{
		RunID:       "run-123",
		WallClockMs: 83_500,
		Summaries: []model.ModelSummary{
			{
				Model:       "llama3.1:8b",
				TotalTrials: 10,
				SuccessRate: 1.0,
				Perf: &model.PerfStats{
					AvgTokensPerSecond: 42.5,
					MinTokensPerSecond: 38.1,
					MaxTokensPerSecond: 47.9,
					AvgTTFTMs:          180,
					FastestPrompt:      "short prompt",
					SlowestPrompt:      "long prompt",
				},
				AvgMemoryBytes: 6 << 30,
			},
			{
				Model:       "broken:7b",
				TotalTrials: 10,
				SuccessRate: 0,
			},
		},
		Winner: &model.Winner{Model: "llama3.1:8b", AdvantagePercent: &advantage},
	}
}

func TestRenderJSONRoundTrips(t *testing.T) {
	rendered, err := RenderJSON(sampleReport())
	require.NoError(t, err)

	var decoded model.BenchmarkReport
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))

	assert.Equal(t, "run-123", decoded.RunID)
	require.Len(t, decoded.Summaries, 2)
	assert.Nil(t, decoded.Summaries[1].Perf, "absent stats stay absent through JSON")
	require.NotNil(t, decoded.Winner)
	assert.InDelta(t, 18.4, *decoded.Winner.AdvantagePercent, 0.001)
}

func TestRenderCSVEmitsOneRowPerModel(t *testing.T) {
	rows, err := csv.NewReader(strings.NewReader(RenderCSV(sampleReport()))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus one row per model")

	assert.Equal(t, "model", rows[0][0])
	assert.Equal(t, "llama3.1:8b", rows[1][0])
	assert.Equal(t, "42.50", rows[1][3])
	assert.Equal(t, "short prompt", rows[1][7])

	assert.Equal(t, "broken:7b", rows[2][0])
	assert.Equal(t, "0.0000", rows[2][2])
	assert.Empty(t, rows[2][3], "no speed figure for a model without a successful trial")
	assert.Empty(t, rows[2][9])
}

func TestRenderMarkdownShowsWinnerAndDashes(t *testing.T) {
	md := RenderMarkdown(sampleReport())

	assert.Contains(t, md, "# Benchmark Results")
	assert.Contains(t, md, "| llama3.1:8b | 100.0% | 42.5 tok/s |")
	assert.Contains(t, md, "| broken:7b | 0.0% | - | - | - | - |")
	assert.Contains(t, md, "## Winner: llama3.1:8b")
	assert.Contains(t, md, "18.4% faster than the runner-up")
	assert.Contains(t, md, "1m 23s")
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(sampleReport())

	assert.Contains(t, out, "MODEL")
	assert.Contains(t, out, "llama3.1:8b")
	assert.Contains(t, out, "42.5")
	assert.Contains(t, out, "6.0GB")
	assert.Contains(t, out, "Winner: llama3.1:8b (18.4% faster than the runner-up)")
	assert.Contains(t, out, "Completed in 1m 23s")

	// The failed model renders placeholders, not zeros.
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "broken:7b") {
			assert.Contains(t, line, "-")
			assert.NotContains(t, line, "0.0GB")
		}
	}
}

func TestRenderTableWithoutWinner(t *testing.T) {
	report := sampleReport()
	report.Winner = nil
	report.Summaries = report.Summaries[1:]

	out := RenderTable(report)
	assert.Contains(t, out, "No model produced a successful trial.")
	assert.NotContains(t, out, "🏆")
}

func TestExportPicksFormatByExtension(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "report.json")
	require.NoError(t, Export(sampleReport(), jsonPath))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	mdPath := filepath.Join(dir, "report.MD")
	require.NoError(t, Export(sampleReport(), mdPath))
	data, err = os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Benchmark Results")

	err = Export(sampleReport(), filepath.Join(dir, "report.xml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".json, .csv, or .md")
}

func TestTrialWriterAppendsNDJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trials.jsonl")
	tw, err := NewTrialWriter(path)
	require.NoError(t, err)

	recs := []model.TrialRecord{
		{Model: "a:latest", Prompt: "p1", Success: true, TokensPerSecond: 31.5},
		{Model: "a:latest", Prompt: "p2", Success: false, ErrorKind: "timeout", Error: "deadline exceeded"},
	}
	tw.TrialComplete("a:latest", 1, 2, recs[0])
	tw.TrialComplete("a:latest", 2, 2, recs[1])
	require.NoError(t, tw.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first, second model.TrialRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, recs[0].TokensPerSecond, first.TokensPerSecond)
	assert.Equal(t, "timeout", second.ErrorKind)
	assert.False(t, second.Success)
}
