// Package compose implements the Composer (C3): translation of a validated
// Spec Model workflow into a Workflow Graph ready for the conductor to drive.
package compose

import (
	"context"
	"fmt"
	"sort"

	"github.com/Stealthii/orquesta/engine/core"
	"github.com/Stealthii/orquesta/engine/graph"
	"github.com/Stealthii/orquesta/engine/workflow"
	"github.com/Stealthii/orquesta/pkg/logger"
)

// barrierAttr is the node attribute the conductor and graph.HasBarrier read
// to recognize a join task (§4.1).
const barrierAttr = "barrier"

// Compose validates w and, if it passes, builds the corresponding
// *graph.Graph: one node per task (carrying its join kind as the barrier
// attribute) and one edge per clause entry across every clause, in
// DefaultClauseOrder. Compose changes w only through w.Validate, which
// merges w's task-defaults into its tasks.
func Compose(w *workflow.Workflow) (*graph.Graph, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}
	return ComposeUnchecked(w)
}

// ComposeUnchecked builds the graph without re-validating w, for callers
// that already validated (e.g. after applying task-defaults themselves).
func ComposeUnchecked(w *workflow.Workflow) (*graph.Graph, error) {
	log := logger.FromContext(context.Background())
	g := graph.New()
	for _, id := range sortedTaskIDs(w) {
		t := w.Tasks[id]
		attrs := map[string]any{}
		if t.IsJoinTask() {
			attrs[barrierAttr] = joinBarrierValue(t)
			log.Debug("assigned barrier attribute", "task", id, "barrier", attrs[barrierAttr])
		}
		g.AddTask(id, attrs)
	}
	for _, id := range sortedTaskIDs(w) {
		t := w.Tasks[id]
		for _, clauseName := range workflow.DefaultClauseOrder {
			for _, entry := range t.Clause(clauseName) {
				if !g.HasTask(entry.Task) {
					return nil, core.NewInvalidTaskError(entry.Task)
				}
				if _, err := g.AddTransition(id, entry.Task, entry.Criteria); err != nil {
					return nil, fmt.Errorf("compose: task %q -> %q: %w", id, entry.Task, err)
				}
			}
		}
	}
	return g, nil
}

// joinBarrierValue renders a task's join specifier as the graph's barrier
// attribute value: "*" for an all-join, or the numeric threshold for a
// counted join, matching the "*" convention the conductor checks for via
// graph.HasBarrier.
func joinBarrierValue(t *workflow.Task) any {
	if t.Join.Kind == workflow.JoinCount {
		return t.Join.Count
	}
	return "*"
}

func sortedTaskIDs(w *workflow.Workflow) []string {
	ids := make([]string, 0, len(w.Tasks))
	for id := range w.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
