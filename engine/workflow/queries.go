package workflow

import "sort"

// Transition is one (task, criteria, clause) triple, as returned by
// GetNextTasks/GetPrevTasks.
type Transition struct {
	Task     string
	Criteria *string
	Clause   ClauseName
}

// StartTask is a task with no predecessors, as returned by GetStartTasks.
type StartTask struct {
	Name string
}

func normalizeConditions(conditions []ClauseName) []ClauseName {
	if len(conditions) == 0 {
		return DefaultClauseOrder
	}
	return conditions
}

// GetNextTasks enumerates outgoing (dst, criteria, clause) triples for name
// across the given clauses (defaulting to DefaultClauseOrder), sorted
// ascending by destination task id (§4.2).
func (w *Workflow) GetNextTasks(name string, conditions []ClauseName) ([]Transition, error) {
	t, err := w.GetTask(name)
	if err != nil {
		return nil, err
	}
	conditions = normalizeConditions(conditions)
	var out []Transition
	for _, clause := range conditions {
		for _, entry := range t.Clause(clause) {
			out = append(out, Transition{Task: entry.Task, Criteria: entry.Criteria, Clause: clause})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Task < out[j].Task })
	return out, nil
}

// GetPrevTasks enumerates incoming (src, criteria, clause) triples for name,
// scanning every task's clauses, sorted ascending by source task id.
func (w *Workflow) GetPrevTasks(name string, conditions []ClauseName) ([]Transition, error) {
	if _, err := w.GetTask(name); err != nil {
		return nil, err
	}
	conditions = normalizeConditions(conditions)
	ids := w.sortedTaskIDs()
	var out []Transition
	for _, srcID := range ids {
		src := w.Tasks[srcID]
		for _, clause := range conditions {
			for _, entry := range src.Clause(clause) {
				if entry.Task == name {
					out = append(out, Transition{Task: srcID, Criteria: entry.Criteria, Clause: clause})
				}
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Task < out[j].Task })
	return out, nil
}

// GetStartTasks returns every task with no predecessors, sorted by name.
func (w *Workflow) GetStartTasks() []StartTask {
	var out []StartTask
	for _, id := range w.sortedTaskIDs() {
		prev, err := w.GetPrevTasks(id, nil)
		if err != nil {
			continue
		}
		if len(prev) == 0 {
			out = append(out, StartTask{Name: id})
		}
	}
	return out
}

// IsJoinTask reports whether name carries a join attribute.
func (w *Workflow) IsJoinTask(name string) bool {
	t, ok := w.Tasks[name]
	return ok && t.IsJoinTask()
}

// IsSplitTask reports whether name is reachable from more than one
// predecessor without being a barrier (§4.2/glossary).
func (w *Workflow) IsSplitTask(name string) bool {
	if w.IsJoinTask(name) {
		return false
	}
	prev, err := w.GetPrevTasks(name, nil)
	if err != nil {
		return false
	}
	return len(prev) >= 2
}

// InCycle reports whether name is reachable from itself along on-* edges.
func (w *Workflow) InCycle(name string) bool {
	if _, err := w.GetTask(name); err != nil {
		return false
	}
	visited := map[string]bool{}
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		next, err := w.GetNextTasks(cur, nil)
		if err != nil {
			continue
		}
		for _, tr := range next {
			if tr.Task == name {
				return true
			}
			if !visited[tr.Task] {
				visited[tr.Task] = true
				queue = append(queue, tr.Task)
			}
		}
	}
	return false
}

// HasCycles reports whether any task in the workflow participates in a cycle.
func (w *Workflow) HasCycles() bool {
	for _, id := range w.sortedTaskIDs() {
		if w.InCycle(id) {
			return true
		}
	}
	return false
}

func (w *Workflow) sortedTaskIDs() []string {
	ids := make([]string, 0, len(w.Tasks))
	for id := range w.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
