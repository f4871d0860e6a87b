package conductor

import (
	"time"

	"github.com/Stealthii/orquesta/engine/workflow"
)

// FlowEntry is one record of the flow sequence (§4.4/§6): the task it names,
// its current state, an attempt counter for retried tasks, and an index
// into the conductor's contexts array once a terminal context has been
// recorded.
type FlowEntry struct {
	Task    string
	State   TaskState
	Attempt int
	CtxIdx  *int
	Errors  []string
	// RetryDelay is the backoff a driver should wait before running this
	// entry, computed from the task's RetryPolicy (falling back to the
	// conductor's config defaults) when the retry was requested. Zero for a
	// task's first attempt.
	RetryDelay time.Duration
}

// Flow is the conductor's append-mostly history: an ordered sequence of
// flow entries and the contexts array they index into.
type Flow struct {
	Sequence []FlowEntry
	Contexts []workflow.Context
}

// lastEntryIndex returns the index of the most recent flow entry for
// taskID, or -1 if none exists yet.
func (f *Flow) lastEntryIndex(taskID string) int {
	for i := len(f.Sequence) - 1; i >= 0; i-- {
		if f.Sequence[i].Task == taskID {
			return i
		}
	}
	return -1
}

// pushContext appends ctx to the contexts array and returns its index.
func (f *Flow) pushContext(ctx workflow.Context) int {
	f.Contexts = append(f.Contexts, ctx)
	return len(f.Contexts) - 1
}

// contextAt returns the context at idx, or an empty context if idx is nil.
func (f *Flow) contextAt(idx *int) workflow.Context {
	if idx == nil || *idx < 0 || *idx >= len(f.Contexts) {
		return workflow.Context{}
	}
	return f.Contexts[*idx]
}
