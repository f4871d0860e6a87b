package workflow

import (
	"context"

	"dario.cat/mergo"

	"github.com/Stealthii/orquesta/engine/core"
	"github.com/Stealthii/orquesta/engine/schema"
)

// RetryPolicy mirrors the teacher's RetryPolicyConfig shape (§4.4): a task's
// retry block, consulted by the conductor when a task enters a failed
// terminal state.
type RetryPolicy struct {
	MaxAttempts    *int     `json:"max_attempts,omitempty"`
	BackoffInitial *string  `json:"backoff_initial,omitempty"`
	BackoffMax     *string  `json:"backoff_max,omitempty"`
	BackoffFactor  *float64 `json:"backoff_factor,omitempty"`
}

// Task is one entry of a workflow's task mapping (§3).
type Task struct {
	ID          string            `json:"id"`
	Join        *Join             `json:"join,omitempty"`
	WithItems   *string           `json:"with-items,omitempty"`
	Concurrency *int              `json:"concurrency,omitempty"`
	Action      *string           `json:"action,omitempty"`
	Workflow    *string           `json:"workflow,omitempty"`
	Input       map[string]any    `json:"input,omitempty"`
	Publish     map[string]string `json:"publish,omitempty"`
	Retry       *RetryPolicy      `json:"retry,omitempty"`
	WaitBefore  *string           `json:"wait-before,omitempty"`
	WaitAfter   *string           `json:"wait-after,omitempty"`
	PauseBefore *string           `json:"pause-before,omitempty"`
	Timeout     *string           `json:"timeout,omitempty"`
	InputSchema *schema.Schema    `json:"input_schema,omitempty"`

	OnComplete Clause `json:"on-complete,omitempty"`
	OnSuccess  Clause `json:"on-success,omitempty"`
	OnError    Clause `json:"on-error,omitempty"`
}

// Clause returns the task's reading of the named clause, or nil if absent.
func (t *Task) Clause(name ClauseName) Clause {
	switch name {
	case ClauseOnComplete:
		return t.OnComplete
	case ClauseOnSuccess:
		return t.OnSuccess
	case ClauseOnError:
		return t.OnError
	default:
		return nil
	}
}

// IsJoinTask reports whether the task declares a join attribute (§4.2).
func (t *Task) IsJoinTask() bool {
	return t.Join != nil && t.Join.IsJoin()
}

// HasActionOrWorkflow reports which of the mutually exclusive action/workflow
// fields (§3) is set, used by Validate.
func (t *Task) HasActionOrWorkflow() (hasAction, hasWorkflow bool) {
	return t.Action != nil, t.Workflow != nil
}

// Validate checks the task's own shape against taskSchema, returning every
// schema issue found (with SpecPath/SchemaPath intact, per §6) rather than
// folding them into one message. Cross-task constraints (undefined
// transition targets, action/workflow exclusivity) are enforced by
// Workflow.Validate, which has the full task mapping. The returned error is
// non-nil only when the schema itself failed to compile.
func (t *Task) Validate(id string) ([]core.ValidationIssue, error) {
	doc := map[string]any{"id": id}
	result, err := taskSchema.Validate(context.Background(), doc)
	if err != nil {
		return nil, err
	}
	if result == nil || result.Valid {
		return nil, nil
	}
	issues := make([]core.ValidationIssue, 0, len(result.Issues))
	for _, iss := range result.Issues {
		specPath := "tasks." + id
		if iss.SpecPath != "" {
			specPath = specPath + "." + iss.SpecPath
		}
		issues = append(issues, core.ValidationIssue{
			Message:    iss.Message,
			SpecPath:   specPath,
			SchemaPath: iss.SchemaPath,
		})
	}
	return issues, nil
}

// TaskDefaults is merged into every task via mergo by Workflow.Validate,
// filling only the fields a task leaves unset, matching the teacher's
// dario.cat/mergo usage for TaskDefaults-style merges.
type TaskDefaults struct {
	Retry       *RetryPolicy `json:"retry,omitempty"`
	WaitBefore  *string      `json:"wait-before,omitempty"`
	WaitAfter   *string      `json:"wait-after,omitempty"`
	PauseBefore *string      `json:"pause-before,omitempty"`
	Timeout     *string      `json:"timeout,omitempty"`
	Concurrency *int         `json:"concurrency,omitempty"`
}

// ApplyDefaults merges td's non-zero fields onto t, leaving explicit task
// values untouched: mergo.Merge without WithOverride only fills destination
// fields that are zero, and here the task's own values are the destination,
// so they win.
func (td *TaskDefaults) ApplyDefaults(t *Task) error {
	if td == nil {
		return nil
	}
	shadow := &Task{
		Retry:       t.Retry,
		WaitBefore:  t.WaitBefore,
		WaitAfter:   t.WaitAfter,
		PauseBefore: t.PauseBefore,
		Timeout:     t.Timeout,
		Concurrency: t.Concurrency,
	}
	defaults := &Task{
		Retry:       td.Retry,
		WaitBefore:  td.WaitBefore,
		WaitAfter:   td.WaitAfter,
		PauseBefore: td.PauseBefore,
		Timeout:     td.Timeout,
		Concurrency: td.Concurrency,
	}
	if err := mergo.Merge(shadow, defaults); err != nil {
		return err
	}
	t.Retry = shadow.Retry
	t.WaitBefore = shadow.WaitBefore
	t.WaitAfter = shadow.WaitAfter
	t.PauseBefore = shadow.PauseBefore
	t.Timeout = shadow.Timeout
	t.Concurrency = shadow.Concurrency
	return nil
}
