// Package expr defines the pluggable expression-evaluator boundary described
// in §6: a criteria/publish expression language is registered by name and
// exposes ValidateExpr/Evaluate as pure functions over a context map. The
// conductor and spec model only depend on the Evaluator interface; this
// package additionally ships a default CEL-backed implementation
// (google/cel-go), since the teacher already exercises CEL for task
// criteria (engine/task/cel_evaluator_test.go).
package expr

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// Evaluator is the boundary the conductor delegates non-literal criteria and
// publish expressions to.
type Evaluator interface {
	// ValidateExpr reports any errors found compiling expr, without
	// evaluating it.
	ValidateExpr(expr string) []error
	// Evaluate compiles and evaluates expr against ctx, returning its value.
	Evaluate(expr string, ctx map[string]any) (any, error)
}

// Registry holds evaluators keyed by language name, as described by the
// "expression dialect boundary" in §6.
type Registry struct {
	mu         sync.RWMutex
	evaluators map[string]Evaluator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{evaluators: make(map[string]Evaluator)}
}

// Register associates lang with ev, overwriting any prior registration.
func (r *Registry) Register(lang string, ev Evaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluators[lang] = ev
}

// Get returns the evaluator registered for lang, if any.
func (r *Registry) Get(lang string) (Evaluator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ev, ok := r.evaluators[lang]
	return ev, ok
}

// Default is the process-wide registry, pre-populated with the "cel"
// evaluator. Callers that want full isolation (e.g. tests registering
// fakes) should build their own Registry instead.
var Default = func() *Registry {
	r := NewRegistry()
	r.Register("cel", NewCELEvaluator())
	return r
}()

// -----------------------------------------------------------------------------
// CEL evaluator
// -----------------------------------------------------------------------------

// CELEvaluator evaluates `<% ... %>`-wrapped CEL expressions against a
// rolling context. Every context key other than the reserved "task_states"
// is exposed to the expression as a dynamically-typed top-level variable,
// and also reachable through the
// helper call-forms `ctx().foo` (the whole context as a map) and
// `task_state("id")` (another task's last-recorded state, looked up from
// the reserved "task_states" context entry), matching §6.
type CELEvaluator struct{}

// NewCELEvaluator constructs the default evaluator.
func NewCELEvaluator() *CELEvaluator {
	return &CELEvaluator{}
}

// StripDelimiters removes the `<% ... %>` expression wrapper, if present.
func StripDelimiters(raw string) string {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "<%")
	trimmed = strings.TrimSuffix(trimmed, "%>")
	return strings.TrimSpace(trimmed)
}

func (e *CELEvaluator) buildEnv(ctx map[string]any) (*cel.Env, error) {
	opts := make([]cel.EnvOption, 0, len(ctx)+3)
	for k := range ctx {
		if k == "task_states" {
			continue
		}
		opts = append(opts, cel.Variable(k, cel.DynType))
	}
	opts = append(opts, cel.Variable("task_states", cel.MapType(cel.StringType, cel.StringType)))
	opts = append(opts,
		cel.Function("ctx",
			cel.Overload("ctx_map", []*cel.Type{}, cel.MapType(cel.StringType, cel.DynType),
				cel.FunctionBinding(func(_ ...ref.Val) ref.Val {
					return types.DefaultTypeAdapter.NativeToValue(contextWithoutReserved(ctx))
				}),
			),
		),
		cel.Function("task_state",
			cel.Overload("task_state_string", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(arg ref.Val) ref.Val {
					id, ok := arg.Value().(string)
					if !ok {
						return types.NewErr("task_state: expected a string task id")
					}
					states, _ := ctx["task_states"].(map[string]string)
					return types.String(states[id])
				}),
			),
		),
	)
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build evaluation environment: %w", err)
	}
	return env, nil
}

// contextWithoutReserved strips the reserved "task_states" entry out of ctx
// before it's exposed as the ctx() helper's map value; task_states has its
// own accessor (task_state) and its own bound variable.
func contextWithoutReserved(ctx map[string]any) map[string]any {
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		if k == "task_states" {
			continue
		}
		out[k] = v
	}
	return out
}

// ValidateExpr compiles expr against an environment with no bound
// variables, surfacing syntax errors without requiring a live context.
func (e *CELEvaluator) ValidateExpr(rawExpr string) []error {
	env, err := e.buildEnv(nil)
	if err != nil {
		return []error{err}
	}
	if _, iss := env.Compile(StripDelimiters(rawExpr)); iss != nil && iss.Err() != nil {
		return []error{iss.Err()}
	}
	return nil
}

// Evaluate compiles and runs expr against ctx.
func (e *CELEvaluator) Evaluate(rawExpr string, ctx map[string]any) (any, error) {
	env, err := e.buildEnv(ctx)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(StripDelimiters(rawExpr))
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build evaluation program: %w", err)
	}
	vars := make(map[string]any, len(ctx)+1)
	for k, v := range ctx {
		vars[k] = v
	}
	if _, ok := vars["task_states"]; !ok {
		vars["task_states"] = map[string]string{}
	}
	out, _, err := prg.Eval(vars)
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}
