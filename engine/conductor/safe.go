package conductor

import (
	"sync"

	"github.com/Stealthii/orquesta/engine/workflow"
)

// SafeConductor wraps a *Conductor with a mutex so a driver that does not
// want to serialize its own calls can still use one conductor instance
// concurrently. The underlying Conductor remains single-writer internally;
// this wrapper only adds the lock (§5).
type SafeConductor struct {
	mu sync.Mutex
	c  *Conductor
}

// NewSafe wraps an existing conductor.
func NewSafe(c *Conductor) *SafeConductor {
	return &SafeConductor{c: c}
}

func (s *SafeConductor) State() ConductorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.State()
}

func (s *SafeConductor) GetStartTasks() []RunnableTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.GetStartTasks()
}

func (s *SafeConductor) UpdateTaskFlowEntry(taskID string, newState TaskState, ctx workflow.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.UpdateTaskFlowEntry(taskID, newState, ctx)
}

func (s *SafeConductor) GetNextTasks(taskID string) ([]RunnableTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.GetNextTasks(taskID)
}

func (s *SafeConductor) Serialize() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Serialize()
}
