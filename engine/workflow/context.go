package workflow

import (
	"fmt"
	"maps"
	"regexp"
	"sort"
	"strings"

	"github.com/Stealthii/orquesta/engine/expr"
)

// Context is the rolling data context threaded through a workflow
// execution: an unordered mapping from variable name to any
// JSON-representable value. Names starting with "__" are reserved/internal
// (§3) and stripped on publish.
type Context map[string]any

// Clone returns a shallow copy of ctx.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	maps.Copy(out, c)
	return out
}

// Names returns the context's keys.
func (c Context) Names() []string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// StripReserved removes every "__"-prefixed key, matching the reserved-key
// rule in §3.
func (c Context) StripReserved() Context {
	out := make(Context, len(c))
	for k, v := range c {
		if strings.HasPrefix(k, "__") {
			continue
		}
		out[k] = v
	}
	return out
}

// publishGate matches the single literal criteria form that triggers publish
// evaluation (§4.2/§9's Open Question): `<% task_state(<ID>) in ['succeeded'] %>`.
// Logically equivalent expressions do not match; this is intentional — see
// DESIGN.md.
var publishGate = regexp.MustCompile(`^<%\s*task_state\(([A-Za-z0-9_]+)\)\s+in\s+\['succeeded'\]\s*%>$`)

// IsPublishGate reports whether criteria is the literal publish-gating
// expression for taskID.
func IsPublishGate(criteria *string, taskID string) bool {
	if criteria == nil {
		return false
	}
	m := publishGate.FindStringSubmatch(strings.TrimSpace(*criteria))
	return m != nil && m[1] == taskID
}

// FinalizeContext implements §4.2's finalize_context: if criteria is the
// literal publish gate for this task, every (var, expr) in t.Publish is
// evaluated against inCtx with evaluator ev; evaluation errors are collected
// but don't abort the remaining evaluations, successful results overwrite
// inCtx, and "__"-prefixed keys are stripped from the result. A non-matching
// criteria returns inCtx unchanged.
func (t *Task) FinalizeContext(taskID string, criteria *string, inCtx Context, ev expr.Evaluator) (Context, []error) {
	if !IsPublishGate(criteria, taskID) {
		return inCtx, nil
	}
	out := inCtx.Clone()
	var errs []error
	names := make([]string, 0, len(t.Publish))
	for name := range t.Publish {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value, err := ev.Evaluate(t.Publish[name], inCtx)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to publish %q: %w", name, err))
			continue
		}
		out[name] = value
	}
	return out.StripReserved(), errs
}

// contextQueueItem is a (task, ctx-or-nil) work item for InspectContext's BFS.
type contextQueueItem struct {
	task  string
	ctxIn Context // nil means "substitute the accumulated join context"
}

// InspectContextResult is the outcome of a BFS over the workflow computing,
// per task, the set of variable names visible when it runs.
type InspectContextResult struct {
	PerTask    map[string][]string
	RollingCtx Context
	Errors     []error
}

// InspectContext implements §4.2's inspect_context algorithm: a BFS from the
// start tasks threading a running union of visible variable names, folding
// inbound contexts at join tasks until every predecessor has arrived.
func (w *Workflow) InspectContext(parent Context) (*InspectContextResult, error) {
	result := &InspectContextResult{
		PerTask:    map[string][]string{},
		RollingCtx: parent.Clone(),
	}
	joinAccum := map[string]Context{}
	joinArrivals := map[string]int{}

	queue := []contextQueueItem{}
	for _, st := range w.GetStartTasks() {
		queue = append(queue, contextQueueItem{task: st.Name, ctxIn: parent.Clone()})
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		ctxIn := item.ctxIn
		if ctxIn == nil {
			ctxIn = joinAccum[item.task]
		}
		if ctxIn == nil {
			ctxIn = Context{}
		}

		produced := publishedNames(w.Tasks[item.task])
		ctxOut := ctxIn.Clone()
		for _, name := range produced {
			ctxOut[name] = struct{}{}
		}
		for k := range ctxOut {
			result.RollingCtx[k] = ctxOut[k]
		}
		result.PerTask[item.task] = ctxOut.Names()

		next, err := w.GetNextTasks(item.task, nil)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		seen := map[string]bool{}
		for _, tr := range next {
			if seen[tr.Task] {
				continue
			}
			seen[tr.Task] = true
			if w.IsJoinTask(tr.Task) {
				mergeJoinContext(joinAccum, tr.Task, ctxOut)
				joinArrivals[tr.Task]++
				prevCount, _ := w.GetPrevTasks(tr.Task, nil)
				if joinArrivals[tr.Task] >= len(prevCount) {
					queue = append(queue, contextQueueItem{task: tr.Task, ctxIn: nil})
				}
				continue
			}
			queue = append(queue, contextQueueItem{task: tr.Task, ctxIn: ctxOut.Clone()})
		}
	}
	return result, nil
}

func publishedNames(t *Task) []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.Publish))
	for name := range t.Publish {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func mergeJoinContext(accum map[string]Context, task string, ctxOut Context) {
	if accum[task] == nil {
		accum[task] = Context{}
	}
	maps.Copy(accum[task], ctxOut)
}
