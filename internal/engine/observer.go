package engine

import "github.com/daryltucker/canopy-bench/internal/model"

// Observer receives benchmark lifecycle events for progress rendering
// or per-trial logging. Implementations must be fast: events are
// emitted from the orchestrator's collector goroutine, never from the
// trial goroutines themselves, but a slow observer still delays
// collection. No return values; events are fire-and-forget.
type Observer interface {
	// ModelStart fires before a model's first measured trial.
	// index is 1-based, total is the number of requested models.
	ModelStart(modelName string, index, total int)
	// TrialComplete fires after each measured trial is merged.
	// trial is 1-based, totalTrials = iterations x prompts.
	TrialComplete(modelName string, trial, totalTrials int, rec model.TrialRecord)
	// ModelComplete fires after all of a model's trials are merged.
	ModelComplete(modelName string)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) ModelStart(string, int, int)                       {}
func (NopObserver) TrialComplete(string, int, int, model.TrialRecord) {}
func (NopObserver) ModelComplete(string)                              {}

// multiObserver fans events out to several observers in order.
type multiObserver []Observer

// MultiObserver combines observers; nil entries are dropped.
func MultiObserver(obs ...Observer) Observer {
	var combined multiObserver
	for _, o := range obs {
		if o != nil {
			combined = append(combined, o)
		}
	}
	if len(combined) == 1 {
		return combined[0]
	}
	return combined
}

func (m multiObserver) ModelStart(name string, index, total int) {
	for _, o := range m {
		o.ModelStart(name, index, total)
	}
}

func (m multiObserver) TrialComplete(name string, trial, totalTrials int, rec model.TrialRecord) {
	for _, o := range m {
		o.TrialComplete(name, trial, totalTrials, rec)
	}
}

func (m multiObserver) ModelComplete(name string) {
	for _, o := range m {
		o.ModelComplete(name)
	}
}
