// Package workflow implements the Spec Model (C2): a tree of schema-validated
// spec objects providing the structural queries the composer and conductor
// are built on (start tasks, next/prev tasks, join/split/cycle detection,
// context inspection).
package workflow

import (
	"context"
	"fmt"

	"github.com/Stealthii/orquesta/engine/core"
	"github.com/Stealthii/orquesta/engine/schema"
	"github.com/Stealthii/orquesta/pkg/logger"
)

// Workflow is the root spec object (§3): a mapping from task identifier to
// task spec, plus optional top-level sections. Validate merges task-defaults
// into the tasks; callers should treat a *Workflow as read-only after
// Validate succeeds.
type Workflow struct {
	ID           string            `json:"id"`
	Tasks        map[string]*Task  `json:"tasks"`
	TaskDefaults *TaskDefaults     `json:"task-defaults,omitempty"`
	Input        map[string]any    `json:"input,omitempty"`
	Vars         map[string]any    `json:"vars,omitempty"`
	Output       map[string]any    `json:"output,omitempty"`
	InputSchema  *schema.Schema    `json:"input_schema,omitempty"`
}

// taskSchema is the JSON-Schema enforced on a parsed task spec document, per
// §4.2 ("each spec object has an associated JSON-Schema").
var taskSchema = &schema.Schema{
	"type": "object",
	"properties": map[string]any{
		"id": map[string]any{"type": "string", "minLength": 1},
	},
	"required": []string{"id"},
}

// workflowSchema enforces the minimum-1-task rule from §3.
var workflowSchema = &schema.Schema{
	"type": "object",
	"properties": map[string]any{
		"id":    map[string]any{"type": "string", "minLength": 1},
		"tasks": map[string]any{"type": "object", "minProperties": 1},
	},
	"required": []string{"id", "tasks"},
}

// Validate enforces the schema and the structural constraints §3/§4.2
// describe: at least one task, mutually exclusive action/workflow per task,
// and that every transition target names a real task.
func (w *Workflow) Validate() error {
	doc := map[string]any{"id": w.ID, "tasks": map[string]any{}}
	tasksDoc := doc["tasks"].(map[string]any)
	for id := range w.Tasks {
		tasksDoc[id] = map[string]any{"id": id}
	}
	result, err := workflowSchema.Validate(context.Background(), doc)
	if err != nil {
		return err
	}

	var issues []core.ValidationIssue
	if result != nil && !result.Valid {
		for _, iss := range result.Issues {
			issues = append(issues, core.ValidationIssue{
				Message:    iss.Message,
				SpecPath:   iss.SpecPath,
				SchemaPath: iss.SchemaPath,
			})
		}
	}
	for id, t := range w.Tasks {
		if t == nil {
			issues = append(issues, core.ValidationIssue{Message: "task is nil", SpecPath: "tasks." + id})
			continue
		}
		taskIssues, err := t.Validate(id)
		if err != nil {
			issues = append(issues, core.ValidationIssue{Message: err.Error(), SpecPath: "tasks." + id})
		} else {
			issues = append(issues, taskIssues...)
		}
		hasAction, hasWorkflow := t.HasActionOrWorkflow()
		if hasAction && hasWorkflow {
			issues = append(issues, core.ValidationIssue{
				Message:  fmt.Sprintf("task %q cannot set both action and workflow", id),
				SpecPath: "tasks." + id,
			})
		}
		if w.TaskDefaults != nil {
			if err := w.TaskDefaults.ApplyDefaults(t); err != nil {
				issues = append(issues, core.ValidationIssue{
					Message:  fmt.Sprintf("task %q: failed to apply task-defaults: %v", id, err),
					SpecPath: "tasks." + id,
				})
			}
		}
		for _, clauseName := range DefaultClauseOrder {
			for _, entry := range t.Clause(clauseName) {
				if _, ok := w.Tasks[entry.Task]; !ok {
					issues = append(issues, core.ValidationIssue{
						Message:    fmt.Sprintf("task %q transitions to undefined task %q", id, entry.Task),
						SpecPath:   fmt.Sprintf("tasks.%s.%s", id, clauseName),
						SchemaPath: "#/properties/tasks",
					})
				}
			}
		}
	}
	if len(issues) > 0 {
		logger.FromContext(context.Background()).Warn("workflow validation accumulated issues",
			"workflow", w.ID, "count", len(issues))
	}
	return core.NewSchemaValidationError(issues)
}

// GetTask looks up a task by id, failing with ErrInvalidTask if absent.
func (w *Workflow) GetTask(name string) (*Task, error) {
	t, ok := w.Tasks[name]
	if !ok {
		return nil, core.NewInvalidTaskError(name)
	}
	return t, nil
}
