package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/canopy-bench/internal/config"
)

// fakeBackend imitates the generation API closely enough for an
// end-to-end run: model listing, NDJSON generation, running-model
// memory. Per-model eval counts let tests force a speed ranking
// without depending on wall-clock precision.
func fakeBackend(t *testing.T, installed []string, evalCounts map[string]int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		type entry struct {
			Name string `json:"name"`
		}
		var payload struct {
			Models []entry `json:"models"`
		}
		for _, name := range installed {
			payload.Models = append(payload.Models, entry{Name: name})
		}
		json.NewEncoder(w).Encode(payload)
	})

	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		evalCount, ok := evalCounts[req.Model]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `{"error":"model %q not found"}`, req.Model)
			return
		}
		fmt.Fprintln(w, `{"model":"`+req.Model+`","response":"benchmark, haiku","done":false}`)
		fmt.Fprintf(w, `{"model":%q,"response":"","done":true,"prompt_eval_count":8,"eval_count":%d}`+"\n",
			req.Model, evalCount)
	})

	mux.HandleFunc("/api/ps", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"models":[{"name":%q,"size":1073741824}]}`, installed[0])
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runConfig(baseURL string, models ...string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Models = models
	cfg.Iterations = 2
	cfg.Concurrency = 2
	cfg.Warmup = false
	cfg.MaxRetries = 0
	cfg.TimeoutSeconds = 5
	return cfg
}

func TestRunContinuesPastMissingModel(t *testing.T) {
	srv := fakeBackend(t, []string{"fast:latest", "slow:latest"}, map[string]int{
		"fast:latest": 400,
		"slow:latest": 4,
	})
	cfg := runConfig(srv.URL, "fast:latest", "ghost:7b", "slow:latest")

	report, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, report.Summaries, 3, "every requested model gets a summary")
	require.Len(t, report.Trials, 6, "planned trials are recorded even for the missing model")

	fast, ghost, slow := report.Summaries[0], report.Summaries[1], report.Summaries[2]

	assert.Equal(t, "fast:latest", fast.Model)
	assert.Equal(t, 1.0, fast.SuccessRate)
	require.NotNil(t, fast.Perf)

	assert.Equal(t, "ghost:7b", ghost.Model)
	assert.Zero(t, ghost.SuccessRate)
	assert.Nil(t, ghost.Perf, "an all-failed model carries no performance stats")

	assert.Equal(t, "slow:latest", slow.Model)
	assert.Equal(t, 1.0, slow.SuccessRate)
	require.NotNil(t, slow.Perf)

	require.NotNil(t, report.Winner)
	assert.Equal(t, "fast:latest", report.Winner.Model)
	require.NotNil(t, report.Winner.AdvantagePercent)
	assert.Greater(t, *report.Winner.AdvantagePercent, 0.0)
}

func TestRunResolvesUntaggedModelNames(t *testing.T) {
	srv := fakeBackend(t, []string{"tiny:latest"}, map[string]int{"tiny": 40, "tiny:latest": 40})
	cfg := runConfig(srv.URL, "tiny")
	cfg.Iterations = 1

	report, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, report.Summaries, 1)
	assert.Equal(t, 1.0, report.Summaries[0].SuccessRate,
		"\"tiny\" must resolve against the installed \"tiny:latest\"")
}

func TestRunFailsPreFlightWhenBackendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // nothing listening anymore
	cfg := runConfig(srv.URL, "any:model")

	report, err := Run(context.Background(), cfg, nil)
	assert.Nil(t, report)
	require.Error(t, err)

	var benchErr *Error
	require.ErrorAs(t, err, &benchErr)
	assert.Equal(t, KindUnreachable, benchErr.Kind)
	assert.Contains(t, benchErr.Kind.Hint(), "ollama serve")
}

func TestRunReportMetadata(t *testing.T) {
	srv := fakeBackend(t, []string{"tiny:latest"}, map[string]int{"tiny:latest": 40})
	cfg := runConfig(srv.URL, "tiny:latest")
	cfg.Iterations = 1

	before := time.Now()
	report, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.Timestamp.Before(before.Add(-time.Second)))
	assert.GreaterOrEqual(t, report.WallClockMs, int64(0))
	assert.Equal(t, cfg.Iterations, report.Config.Iterations)
	assert.Equal(t, []string{"tiny:latest"}, report.Config.Models)
}

func TestRunObserverSeesEveryServableModel(t *testing.T) {
	srv := fakeBackend(t, []string{"a:latest"}, map[string]int{"a:latest": 40})
	cfg := runConfig(srv.URL, "a:latest", "missing:1b")
	cfg.Iterations = 1

	obs := &recordingObserver{}
	_, err := Run(context.Background(), cfg, obs)
	require.NoError(t, err)

	assert.Equal(t, []string{"a:latest"}, obs.starts,
		"a model that flunks pre-flight never starts benchmarking")
	assert.Equal(t, 1, obs.trials)
}
