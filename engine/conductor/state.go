// Package conductor implements the Conductor (C4): a stateful orchestrator
// that drives a composed workflow graph one task completion at a time,
// maintaining a flow-sequence history and a rolling data context.
package conductor

import "github.com/Stealthii/orquesta/engine/workflow"

// TaskState is one node of the per-task state machine (§4.4):
//
//	(none) -> REQUESTED -> RUNNING -> { SUCCEEDED | FAILED | ERRORED | CANCELED }
//	                    \-> PAUSED -/
type TaskState string

const (
	TaskRequested TaskState = "REQUESTED"
	TaskRunning   TaskState = "RUNNING"
	TaskPaused    TaskState = "PAUSED"
	TaskSucceeded TaskState = "SUCCEEDED"
	TaskFailed    TaskState = "FAILED"
	TaskErrored   TaskState = "ERRORED"
	TaskCanceled  TaskState = "CANCELED"
)

// IsTerminal reports whether s is an absorbing state; re-entry requires a
// new flow entry (a fresh retry attempt), not a further transition.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskSucceeded, TaskFailed, TaskErrored, TaskCanceled:
		return true
	default:
		return false
	}
}

// validTaskTransitions enumerates the legal transitions out of each
// non-terminal state. Every terminal state is a valid destination from
// RUNNING; from REQUESTED and PAUSED the only terminal destination is
// CANCELED.
var validTaskTransitions = map[TaskState]map[TaskState]bool{
	TaskRequested: {TaskRunning: true, TaskCanceled: true},
	TaskRunning:   {TaskPaused: true, TaskSucceeded: true, TaskFailed: true, TaskErrored: true, TaskCanceled: true},
	TaskPaused:    {TaskRunning: true, TaskCanceled: true},
}

func isValidTaskTransition(from, to TaskState) bool {
	allowed, ok := validTaskTransitions[from]
	return ok && allowed[to]
}

// ConductorState is the overall workflow-execution state.
type ConductorState string

const (
	ConductorRequested ConductorState = "REQUESTED"
	ConductorRunning   ConductorState = "RUNNING"
	ConductorSucceeded ConductorState = "SUCCEEDED"
	ConductorFailed    ConductorState = "FAILED"
)

// clausesForTerminal maps a terminal task state to the clauses the
// conductor evaluates outgoing transitions from, per §4.4:
//
//	SUCCEEDED       -> on-success, on-complete
//	FAILED/ERRORED  -> on-error, on-complete
//	CANCELED        -> none
func clausesForTerminal(s TaskState) []workflow.ClauseName {
	switch s {
	case TaskSucceeded:
		return []workflow.ClauseName{workflow.ClauseOnSuccess, workflow.ClauseOnComplete}
	case TaskFailed, TaskErrored:
		return []workflow.ClauseName{workflow.ClauseOnError, workflow.ClauseOnComplete}
	default:
		return nil
	}
}
