package conductor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Stealthii/orquesta/engine/compose"
	"github.com/Stealthii/orquesta/engine/core"
	"github.com/Stealthii/orquesta/engine/expr"
	"github.com/Stealthii/orquesta/engine/graph"
	"github.com/Stealthii/orquesta/engine/workflow"
	"github.com/Stealthii/orquesta/pkg/config"
	"github.com/Stealthii/orquesta/pkg/logger"
)

// RunnableTask is a task descriptor the external driver is told it may
// execute.
type RunnableTask struct {
	ID   string
	Name string
	Ctx  workflow.Context
}

// barrierState tracks a pending join task's accumulated union context and
// arrival counts until it releases (§4.2/§4.4).
type barrierState struct {
	ctx      workflow.Context
	fired    int
	resolved int
	total    int
	required int
	released bool
}

// Conductor is the stateful orchestrator (C4). Not safe for concurrent
// mutation by itself; see SafeConductor for a mutex-guarded wrapper.
type Conductor struct {
	spec  *workflow.Workflow
	g     *graph.Graph
	ev    expr.Evaluator
	flow  Flow
	state ConductorState

	input  workflow.Context
	output workflow.Context

	barriers map[string]*barrierState
	log      logger.Logger
	cfg      *config.Config
}

// Option configures optional Conductor construction parameters for New and
// Deserialize.
type Option func(*Conductor)

// WithConfig overrides the conductor's runtime configuration (retry
// attempt/backoff defaults); New and Deserialize otherwise fall back to
// config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(c *Conductor) {
		if cfg != nil {
			c.cfg = cfg
		}
	}
}

// New validates spec, composes its graph, and returns a fresh conductor
// seeded with input as the workflow's initial context.
func New(spec *workflow.Workflow, ev expr.Evaluator, input workflow.Context, opts ...Option) (*Conductor, error) {
	g, err := compose.Compose(spec)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		ev, _ = expr.Default.Get("cel")
	}
	if input == nil {
		input = workflow.Context{}
	}
	c := &Conductor{
		spec:     spec,
		g:        g,
		ev:       ev,
		state:    ConductorRequested,
		input:    input.Clone(),
		barriers: map[string]*barrierState{},
		log:      logger.FromContext(context.Background()),
		cfg:      config.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State returns the conductor's current overall state.
func (c *Conductor) State() ConductorState { return c.state }

// GetStartTasks returns every task with no predecessors as a runnable
// descriptor seeded with the workflow's initial input (§4.4).
func (c *Conductor) GetStartTasks() []RunnableTask {
	starts := c.spec.GetStartTasks()
	out := make([]RunnableTask, 0, len(starts))
	for _, st := range starts {
		out = append(out, RunnableTask{ID: st.Name, Name: st.Name, Ctx: c.input.Clone()})
	}
	if len(starts) > 0 {
		c.state = ConductorRunning
	}
	return out
}

// UpdateTaskFlowEntry appends or updates the current flow entry for taskID
// with newState (§4.4). When newState is terminal and ctx is non-nil, ctx is
// recorded as the task's finalize-context input for the subsequent
// GetNextTasks call.
func (c *Conductor) UpdateTaskFlowEntry(taskID string, newState TaskState, ctx workflow.Context) error {
	task, err := c.spec.GetTask(taskID)
	if err != nil {
		return err
	}

	idx := c.flow.lastEntryIndex(taskID)
	if idx < 0 {
		c.flow.Sequence = append(c.flow.Sequence, FlowEntry{Task: taskID, State: newState})
		idx = len(c.flow.Sequence) - 1
		c.log.Debug("task flow entry created", "task", taskID, "state", string(newState))
	} else {
		last := &c.flow.Sequence[idx]
		if last.State.IsTerminal() {
			if newState != TaskRequested {
				return core.NewWorkflowStateError(fmt.Sprintf(
					"task %q is already terminal (%s); a new attempt must start at REQUESTED", taskID, last.State))
			}
			attempt := last.Attempt + 1
			if max := maxAttempts(task.Retry, c.cfg); max > 0 && attempt >= max {
				return core.NewWorkflowStateError(fmt.Sprintf(
					"task %q: retry attempts exhausted (%d/%d)", taskID, attempt, max))
			}
			delay := computeBackoff(task.Retry, attempt, c.cfg)
			c.flow.Sequence = append(c.flow.Sequence, FlowEntry{
				Task: taskID, State: newState, Attempt: attempt, RetryDelay: delay,
			})
			idx = len(c.flow.Sequence) - 1
			c.log.Debug("task retry scheduled", "task", taskID, "attempt", attempt, "delay", delay)
		} else {
			if !isValidTaskTransition(last.State, newState) {
				return core.NewWorkflowStateError(fmt.Sprintf(
					"task %q: illegal transition %s -> %s", taskID, last.State, newState))
			}
			c.log.Debug("task flow entry transitioned", "task", taskID, "from", string(last.State), "to", string(newState))
			last.State = newState
		}
	}

	if newState.IsTerminal() && ctx != nil {
		i := c.flow.pushContext(ctx.Clone())
		c.flow.Sequence[idx].CtxIdx = &i
	}

	if c.allTerminal() {
		c.finalizeConductorState()
	}
	return nil
}

// GetNextTasks returns the successors of taskID that are runnable as a
// result of its latest terminal flow entry: non-barrier successors whose
// criteria evaluates truthy fire immediately; barrier successors accumulate
// a unioned context until their join releases: an all-join once every
// inbound edge has resolved, a counted join once enough have fired (see
// resolveBarrier) (§4.2/§4.4).
func (c *Conductor) GetNextTasks(taskID string) ([]RunnableTask, error) {
	idx := c.flow.lastEntryIndex(taskID)
	if idx < 0 {
		return nil, core.NewInvalidTaskError(taskID)
	}
	entry := c.flow.Sequence[idx]
	if !entry.State.IsTerminal() {
		return nil, core.NewWorkflowStateError(fmt.Sprintf("task %q has not reached a terminal state", taskID))
	}

	task, err := c.spec.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	baseCtx := c.flow.contextAt(entry.CtxIdx)

	clauses := clausesForTerminal(entry.State)
	if len(clauses) == 0 {
		return nil, nil
	}
	transitions, err := c.spec.GetNextTasks(taskID, clauses)
	if err != nil {
		return nil, err
	}

	var runnable []RunnableTask
	for _, tr := range transitions {
		finalCtx, ferrs := task.FinalizeContext(taskID, tr.Criteria, baseCtx, c.ev)
		for _, e := range ferrs {
			c.flow.Sequence[idx].Errors = append(c.flow.Sequence[idx].Errors, e.Error())
		}

		fired := true
		if tr.Criteria != nil {
			val, err := c.ev.Evaluate(*tr.Criteria, finalCtx)
			if err != nil {
				c.flow.Sequence[idx].Errors = append(c.flow.Sequence[idx].Errors,
					core.NewExpressionError(*tr.Criteria, err).Error())
				fired = false
			} else {
				fired = truthy(val)
			}
		}

		if c.spec.IsJoinTask(tr.Task) {
			if released, unionCtx := c.resolveBarrier(tr.Task, fired, finalCtx); released {
				runnable = append(runnable, RunnableTask{ID: tr.Task, Name: tr.Task, Ctx: unionCtx})
			}
			continue
		}
		if fired {
			runnable = append(runnable, RunnableTask{ID: tr.Task, Name: tr.Task, Ctx: finalCtx})
		}
	}

	sort.Slice(runnable, func(i, j int) bool { return runnable[i].ID < runnable[j].ID })
	return runnable, nil
}

// resolveBarrier folds one predecessor's result into taskID's pending
// barrier state, returning (true, unionCtx) exactly once, the moment the
// barrier releases.
func (c *Conductor) resolveBarrier(taskID string, fired bool, ctx workflow.Context) (bool, workflow.Context) {
	b, ok := c.barriers[taskID]
	if !ok {
		prev, _ := c.spec.GetPrevTasks(taskID, nil)
		join := c.spec.Tasks[taskID].Join
		b = &barrierState{ctx: workflow.Context{}, total: len(prev), required: join.RequiredCount(len(prev))}
		c.barriers[taskID] = b
	}
	if b.released {
		return false, nil
	}
	b.resolved++
	if fired {
		b.fired++
		for k, v := range ctx {
			b.ctx[k] = v
		}
	}
	// A counted join (required < total) releases as soon as enough
	// predecessors have fired, without waiting on the rest. An all-join
	// (required == total) must wait for every predecessor to resolve, so a
	// late-arriving non-firing predecessor can't be missed.
	var release bool
	if b.required < b.total {
		release = b.fired >= b.required
	} else {
		release = b.resolved >= b.total && b.fired >= b.required
	}
	if release {
		b.released = true
		return true, b.ctx.Clone()
	}
	return false, nil
}

// rebuildBarriers replays every predecessor's recorded terminal flow entry
// against resolveBarrier, reconstructing c.barriers exactly as it would have
// accumulated live. It's the counterpart Deserialize needs: a join's
// pending-arrival bookkeeping lives only in c.barriers, never in the
// serialized flow sequence itself, so a barrier mid-resolution when
// Serialize was called would otherwise start over from zero on restore
// (§4.4, round-trip preserves behavior).
func (c *Conductor) rebuildBarriers() {
	done := map[string]bool{}
	for _, e := range c.flow.Sequence {
		if done[e.Task] {
			continue
		}
		done[e.Task] = true

		idx := c.flow.lastEntryIndex(e.Task)
		entry := c.flow.Sequence[idx]
		if !entry.State.IsTerminal() {
			continue
		}
		task, err := c.spec.GetTask(e.Task)
		if err != nil {
			continue
		}
		clauses := clausesForTerminal(entry.State)
		if len(clauses) == 0 {
			continue
		}
		transitions, err := c.spec.GetNextTasks(e.Task, clauses)
		if err != nil {
			continue
		}
		baseCtx := c.flow.contextAt(entry.CtxIdx)
		for _, tr := range transitions {
			if !c.spec.IsJoinTask(tr.Task) {
				continue
			}
			finalCtx, _ := task.FinalizeContext(e.Task, tr.Criteria, baseCtx, c.ev)
			fired := true
			if tr.Criteria != nil {
				val, err := c.ev.Evaluate(*tr.Criteria, finalCtx)
				if err != nil {
					fired = false
				} else {
					fired = truthy(val)
				}
			}
			c.resolveBarrier(tr.Task, fired, finalCtx)
		}
	}
}

func (c *Conductor) allTerminal() bool {
	latest := map[string]TaskState{}
	for _, e := range c.flow.Sequence {
		latest[e.Task] = e.State
	}
	if len(latest) < len(c.spec.Tasks) {
		return false
	}
	for _, s := range latest {
		if !s.IsTerminal() {
			return false
		}
	}
	return true
}

func (c *Conductor) finalizeConductorState() {
	for _, e := range c.flow.Sequence {
		if e.State == TaskFailed || e.State == TaskErrored {
			c.state = ConductorFailed
			return
		}
	}
	c.state = ConductorSucceeded
}

// maxAttempts resolves a task's retry ceiling: its own RetryPolicy.MaxAttempts
// if set, otherwise the conductor's configured default. A result of 0 means
// unlimited retries.
func maxAttempts(policy *workflow.RetryPolicy, cfg *config.Config) int {
	if policy != nil && policy.MaxAttempts != nil {
		return *policy.MaxAttempts
	}
	if cfg != nil {
		return cfg.RetryMaxAttempts
	}
	return 0
}

// computeBackoff returns the delay before the attempt-th retry (1-based: the
// first retry after the original attempt is attempt=1), exponential on
// policy.BackoffFactor starting at policy.BackoffInitial and clamped to
// policy.BackoffMax. When the task's policy leaves a field unset, BackoffMax
// falls back to the conductor's config RetryBackoffMax, BackoffInitial to one
// second and BackoffFactor to 2.
func computeBackoff(policy *workflow.RetryPolicy, attempt int, cfg *config.Config) time.Duration {
	initial := time.Second
	var maxDelay time.Duration
	if cfg != nil {
		maxDelay = cfg.RetryBackoffMax
	}
	factor := 2.0
	if policy != nil {
		if policy.BackoffInitial != nil {
			if d, err := time.ParseDuration(*policy.BackoffInitial); err == nil {
				initial = d
			}
		}
		if policy.BackoffMax != nil {
			if d, err := time.ParseDuration(*policy.BackoffMax); err == nil {
				maxDelay = d
			}
		}
		if policy.BackoffFactor != nil {
			factor = *policy.BackoffFactor
		}
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * factor)
		if maxDelay > 0 && delay > maxDelay {
			delay = maxDelay
			break
		}
	}
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case nil:
		return false
	case string:
		return val != ""
	default:
		return true
	}
}
