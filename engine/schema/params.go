package schema

import (
	"context"
	"fmt"
	"strings"
)

// ParamsValidator validates a task/workflow's runtime parameters against its
// declared input schema, tagging error messages with an id (task or
// workflow name) so multi-task validation failures are attributable.
type ParamsValidator[T any] struct {
	params T
	schema *Schema
	id     string
}

// NewParamsValidator builds a validator for params against schema, labeled id.
func NewParamsValidator[T any](params T, schema *Schema, id string) *ParamsValidator[T] {
	return &ParamsValidator[T]{params: params, schema: schema, id: id}
}

// Validate fails if params is nil while a schema is defined, or if params
// doesn't satisfy the schema. A nil schema always validates successfully.
func (v *ParamsValidator[T]) Validate(ctx context.Context) error {
	if v.schema == nil {
		return nil
	}
	if isNilParams(v.params) {
		return fmt.Errorf("parameters are nil but a schema is defined for %q", v.id)
	}
	result, err := v.schema.Validate(ctx, v.params)
	if err != nil {
		return fmt.Errorf("validation error for %q: %w", v.id, err)
	}
	if result != nil && !result.Valid {
		msgs := make([]string, 0, len(result.Issues))
		for _, iss := range result.Issues {
			msgs = append(msgs, iss.Message)
		}
		return fmt.Errorf("validation error for %q: %s", v.id, strings.Join(msgs, "; "))
	}
	return nil
}

// Issues runs the schema check Validate runs but returns the full issue
// list (with SpecPath/SchemaPath intact) instead of folding it into an
// error, for callers that want to report every failure rather than the
// first. Unlike Validate, nil params yield no issues and no error.
func (v *ParamsValidator[T]) Issues(ctx context.Context) ([]Issue, error) {
	if v.schema == nil || isNilParams(v.params) {
		return nil, nil
	}
	result, err := v.schema.Validate(ctx, v.params)
	if err != nil {
		return nil, err
	}
	if result == nil || result.Valid {
		return nil, nil
	}
	return result.Issues, nil
}

func isNilParams(v any) bool {
	switch p := v.(type) {
	case nil:
		return true
	case map[string]any:
		return p == nil
	default:
		return false
	}
}
