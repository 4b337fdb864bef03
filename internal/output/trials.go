/*
PURPOSE:
  Streams trial records to a JSON Lines file (NDJSON) as they finish.
  Optimized for machine parsing and append-friendly crash resilience:
  a run killed halfway still leaves every completed trial on disk.

REQUIREMENTS:
  User-specified:
  - `--trials-out` raw per-trial log next to the summary output.

  Implementation-discovered:
  - JSON Lines beats a single array for streaming/logging (append
    per record, no trailing-bracket bookkeeping).
  - Implements the engine observer contract so records are written
    the moment they are merged.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli/run.go (combined with the progress observer)
  - Consumes: internal/model.TrialRecord

ERROR HANDLING:
  - Write failures are logged, not fatal; losing the raw log must not
    kill the benchmark.

IMPLEMENTATION RULES:
  - Use encoding/json.NewEncoder. Thread-safe via mutex; observer
    events arrive on one goroutine today, but that is a detail of the
    current orchestrator, not a contract.

USAGE:
  tw, err := output.NewTrialWriter("trials.jsonl")
  defer tw.Close()

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Update if we switch to plain JSON array (not recommended).
*/

package output

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/daryltucker/canopy-bench/internal/model"
)

// TrialWriter appends trial records to an NDJSON file.
type TrialWriter struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewTrialWriter creates the file, truncating any previous run's log.
func NewTrialWriter(path string) (*TrialWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &TrialWriter{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// Write appends a single record as one JSON line.
func (tw *TrialWriter) Write(rec model.TrialRecord) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.encoder.Encode(rec)
}

// Close closes the underlying file.
func (tw *TrialWriter) Close() error {
	return tw.file.Close()
}

// Observer contract: only TrialComplete does work.

func (tw *TrialWriter) ModelStart(string, int, int) {}

func (tw *TrialWriter) TrialComplete(modelName string, trial, totalTrials int, rec model.TrialRecord) {
	if err := tw.Write(rec); err != nil {
		Logger.Error("Failed to write trial record", "model", modelName, "error", err)
	}
}

func (tw *TrialWriter) ModelComplete(string) {}
