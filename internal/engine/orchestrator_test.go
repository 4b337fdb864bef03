package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/canopy-bench/internal/config"
	"github.com/daryltucker/canopy-bench/internal/model"
)

// countingGenerator tracks in-flight parallelism and total call count.
type countingGenerator struct {
	calls     atomic.Int64
	inFlight  atomic.Int64
	maxSeen   atomic.Int64
	delay     time.Duration
	failEvery int64 // every Nth call fails with a timeout; 0 = never
}

func (g *countingGenerator) Generate(_ context.Context, modelName, _ string, _ model.GenerationOptions) (TrialOutcome, error) {
	n := g.calls.Add(1)
	cur := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		max := g.maxSeen.Load()
		if cur <= max || g.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if g.failEvery > 0 && n%g.failEvery == 0 {
		return TrialOutcome{}, errf(KindTimeout, modelName, "scripted timeout")
	}
	return TrialOutcome{
		TimingMode:       model.TimingStream,
		TimeToFirstToken: 10 * time.Millisecond,
		TotalDuration:    100 * time.Millisecond,
		PromptTokens:     5,
		CompletionTokens: 20,
	}, nil
}

func (g *countingGenerator) RunningModelMemory(context.Context, string) (int64, error) {
	return 0, nil
}

// recordingObserver captures events for assertions.
type recordingObserver struct {
	mu        sync.Mutex
	starts    []string
	completes []string
	trials    int
}

func (o *recordingObserver) ModelStart(name string, _, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.starts = append(o.starts, name)
}

func (o *recordingObserver) TrialComplete(string, int, int, model.TrialRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.trials++
}

func (o *recordingObserver) ModelComplete(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completes = append(o.completes, name)
}

func orchConfig(iterations, concurrency int, prompts []string, warmup bool) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Iterations = iterations
	cfg.Concurrency = concurrency
	cfg.Prompts = prompts
	cfg.Warmup = warmup
	cfg.MaxRetries = 0
	cfg.RetryDelayMs = 1
	cfg.TimeoutSeconds = 5
	return cfg
}

func TestBenchmarkModelRunsFullTrialMatrix(t *testing.T) {
	gen := &countingGenerator{}
	cfg := orchConfig(3, 1, []string{"a", "b"}, false)
	orch := NewOrchestrator(NewTrialExecutor(gen, cfg), cfg, nil)

	records := orch.BenchmarkModel(context.Background(), "test:model", 1, 1)
	assert.Len(t, records, 6, "iterations x prompts")
	assert.EqualValues(t, 6, gen.calls.Load())

	perPrompt := map[string]int{}
	for _, r := range records {
		require.True(t, r.Success)
		perPrompt[r.Prompt]++
	}
	assert.Equal(t, map[string]int{"a": 3, "b": 3}, perPrompt)
}

func TestBenchmarkModelWarmupIsDiscarded(t *testing.T) {
	gen := &countingGenerator{}
	cfg := orchConfig(2, 1, []string{"p"}, true)
	orch := NewOrchestrator(NewTrialExecutor(gen, cfg), cfg, nil)

	records := orch.BenchmarkModel(context.Background(), "test:model", 1, 1)
	assert.Len(t, records, 2, "warm-up record must not appear in the trial set")
	assert.EqualValues(t, 3, gen.calls.Load(), "warm-up still issues one request")
}

func TestBenchmarkModelHonorsConcurrencyBound(t *testing.T) {
	gen := &countingGenerator{delay: 20 * time.Millisecond}
	cfg := orchConfig(4, 2, []string{"a", "b"}, false)
	orch := NewOrchestrator(NewTrialExecutor(gen, cfg), cfg, nil)

	records := orch.BenchmarkModel(context.Background(), "test:model", 1, 1)
	assert.Len(t, records, 8)
	assert.LessOrEqual(t, gen.maxSeen.Load(), int64(2),
		"no more than `concurrency` trials in flight")
	assert.Greater(t, gen.maxSeen.Load(), int64(1),
		"concurrency 2 should actually overlap trials")
}

func TestBenchmarkModelAllFailedStillReturnsRecords(t *testing.T) {
	gen := &countingGenerator{failEvery: 1} // every call fails
	cfg := orchConfig(2, 1, []string{"p"}, false)
	orch := NewOrchestrator(NewTrialExecutor(gen, cfg), cfg, nil)

	records := orch.BenchmarkModel(context.Background(), "test:model", 1, 1)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.False(t, r.Success)
		assert.Equal(t, string(KindTimeout), r.ErrorKind)
	}
}

func TestBenchmarkModelEmitsProgressEvents(t *testing.T) {
	gen := &countingGenerator{}
	obs := &recordingObserver{}
	cfg := orchConfig(3, 2, []string{"a", "b"}, false)
	orch := NewOrchestrator(NewTrialExecutor(gen, cfg), cfg, obs)

	orch.BenchmarkModel(context.Background(), "test:model", 2, 3)

	assert.Equal(t, []string{"test:model"}, obs.starts)
	assert.Equal(t, []string{"test:model"}, obs.completes)
	assert.Equal(t, 6, obs.trials)
}

func TestFailedSetCoversThePlannedMatrix(t *testing.T) {
	gen := &countingGenerator{}
	cfg := orchConfig(2, 1, []string{"a", "b"}, true)
	orch := NewOrchestrator(NewTrialExecutor(gen, cfg), cfg, nil)

	records := orch.FailedSet("ghost:model", errf(KindModelNotFound, "ghost:model", "missing"))
	require.Len(t, records, 4)
	for _, r := range records {
		assert.False(t, r.Success)
		assert.Equal(t, string(KindModelNotFound), r.ErrorKind)
	}
	assert.Zero(t, gen.calls.Load(), "no generation requests for a missing model")
}
