// Package schema wraps kaptinlin/jsonschema to give every spec object in the
// Spec Model (C2) a uniform Validate/ApplyDefaults/Compile surface, matching
// the teacher's engine/schema package.
package schema

import (
	"context"
	"encoding/json"
	"fmt"

	jsonschema "github.com/kaptinlin/jsonschema"
)

// Schema is a raw JSON-Schema document, kept as a plain map so spec authors
// can build it with Go map literals (as the teacher's tests do) without a
// dedicated builder API.
type Schema map[string]any

// Result is the outcome of validating a value against a Schema.
type Result struct {
	Valid  bool
	Issues []Issue
}

// Issue is one schema validation failure, in the {message, spec_path,
// schema_path} shape described in §6.
type Issue struct {
	Message    string
	SpecPath   string
	SchemaPath string
}

var compiler = jsonschema.NewCompiler()

// Compile compiles the schema once so repeated Validate calls reuse the
// compiled form. Returns (nil, nil) for a nil schema.
func (s *Schema) Compile() (*jsonschema.Schema, error) {
	if s == nil {
		return nil, nil
	}
	raw, err := json.Marshal(map[string]any(*s))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	compiled, err := compiler.Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return compiled, nil
}

// Validate checks value against the schema. A nil schema always validates
// successfully (with a nil Result, matching "no constraint configured").
// The returned error reports only a failure to compile the schema itself;
// a value that fails validation is reported through Result.Issues (every
// issue, with its SpecPath/SchemaPath intact, per §6's flat issue-list
// shape) rather than collapsed into the error.
func (s *Schema) Validate(_ context.Context, value any) (*Result, error) {
	if s == nil {
		return nil, nil
	}
	compiled, err := s.Compile()
	if err != nil {
		return nil, err
	}
	evalResult := compiled.Validate(value)
	if evalResult.IsValid() {
		return &Result{Valid: true}, nil
	}
	issues := make([]Issue, 0, len(evalResult.Errors))
	for path, detail := range evalResult.Errors {
		issues = append(issues, Issue{
			Message:    fmt.Sprint(detail),
			SpecPath:   path,
			SchemaPath: path,
		})
	}
	if len(issues) == 0 {
		issues = append(issues, Issue{Message: "schema validation failed"})
	}
	return &Result{Valid: false, Issues: issues}, nil
}

// ApplyDefaults merges input over the schema's declared property defaults:
// user-provided values win, missing properties are filled from their
// "default" entry. kaptinlin/jsonschema doesn't expose a public
// defaults-merge API, so this walks "properties" directly — the one piece
// of this package built on plain Go rather than the schema library (see
// DESIGN.md).
func (s *Schema) ApplyDefaults(input map[string]any) (map[string]any, error) {
	if s == nil {
		return input, nil
	}
	result := make(map[string]any, len(input))
	for k, v := range input {
		result[k] = v
	}
	props, _ := (*s)["properties"].(map[string]any)
	for name, rawProp := range props {
		if _, provided := result[name]; provided {
			continue
		}
		prop, ok := rawProp.(map[string]any)
		if !ok {
			continue
		}
		if def, hasDefault := prop["default"]; hasDefault {
			result[name] = def
		}
	}
	return result, nil
}
