package conductor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Stealthii/orquesta/engine/core"
	"github.com/Stealthii/orquesta/engine/expr"
	"github.com/Stealthii/orquesta/engine/graph"
	"github.com/Stealthii/orquesta/engine/workflow"
	"github.com/Stealthii/orquesta/pkg/config"
	"github.com/Stealthii/orquesta/pkg/logger"
)

// serializedFlowEntry is one flow-sequence record on the wire (§6).
type serializedFlowEntry struct {
	ID         string        `json:"id"`
	State      string        `json:"state"`
	Attempt    int           `json:"attempt,omitempty"`
	CtxIdx     *int          `json:"ctx_idx,omitempty"`
	Errors     []string      `json:"errors,omitempty"`
	RetryDelay time.Duration `json:"retry_delay,omitempty"`
}

// serializedFlow is the `flow` section of the serialized conductor (§6).
type serializedFlow struct {
	Sequence []serializedFlowEntry `json:"sequence"`
	Contexts []workflow.Context    `json:"contexts"`
}

// Document is the full serialized conductor shape described in §6: the spec
// (embedded by full value, not by reference), the composed graph, the flow
// history, the overall state, and the workflow's input/output contexts.
type Document struct {
	Spec   *workflow.Workflow `json:"spec"`
	Graph  *graph.Serialized  `json:"graph"`
	Flow   serializedFlow     `json:"flow"`
	State  ConductorState     `json:"state"`
	Input  workflow.Context   `json:"input"`
	Output workflow.Context   `json:"output,omitempty"`
}

// Serialize renders the conductor's state as a Document, suitable for
// json.Marshal and later round-tripping via Deserialize.
func (c *Conductor) Serialize() (*Document, error) {
	sg, err := c.g.Serialize()
	if err != nil {
		return nil, err
	}
	seq := make([]serializedFlowEntry, 0, len(c.flow.Sequence))
	for _, e := range c.flow.Sequence {
		seq = append(seq, serializedFlowEntry{
			ID: e.Task, State: string(e.State), Attempt: e.Attempt, CtxIdx: e.CtxIdx, Errors: e.Errors,
			RetryDelay: e.RetryDelay,
		})
	}
	return &Document{
		Spec:   c.spec,
		Graph:  sg,
		Flow:   serializedFlow{Sequence: seq, Contexts: c.flow.Contexts},
		State:  c.state,
		Input:  c.input,
		Output: c.output,
	}, nil
}

// MarshalJSON implements json.Marshaler via Serialize.
func (c *Conductor) MarshalJSON() ([]byte, error) {
	doc, err := c.Serialize()
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// Deserialize reconstructs a Conductor from a Document produced by
// Serialize, re-validating internal consistency between the flow sequence
// and the embedded spec/graph (§4.4, §7: an internally inconsistent state
// fails InvalidWorkflowState). ev supplies the expression evaluator, which
// is never itself serialized. Every join task's pending-barrier bookkeeping
// is replayed from the flow sequence before returning, so a conductor
// restored mid-join resumes exactly as the original would have (§4.4,
// §8 property 8).
func Deserialize(doc *Document, ev expr.Evaluator, opts ...Option) (*Conductor, error) {
	if doc == nil || doc.Spec == nil || doc.Graph == nil {
		return nil, core.NewWorkflowStateError("missing spec or graph in serialized conductor")
	}
	g, err := graph.Deserialize(doc.Graph)
	if err != nil {
		return nil, core.NewWorkflowStateError(fmt.Sprintf("deserialize graph: %v", err))
	}
	seq := make([]FlowEntry, 0, len(doc.Flow.Sequence))
	for _, e := range doc.Flow.Sequence {
		if _, err := doc.Spec.GetTask(e.ID); err != nil {
			return nil, core.NewWorkflowStateError(fmt.Sprintf("flow entry references undefined task %q", e.ID))
		}
		seq = append(seq, FlowEntry{
			Task: e.ID, State: TaskState(e.State), Attempt: e.Attempt, CtxIdx: e.CtxIdx, Errors: e.Errors,
			RetryDelay: e.RetryDelay,
		})
	}
	if ev == nil {
		ev, _ = expr.Default.Get("cel")
	}
	c := &Conductor{
		spec:     doc.Spec,
		g:        g,
		ev:       ev,
		flow:     Flow{Sequence: seq, Contexts: doc.Flow.Contexts},
		state:    doc.State,
		input:    doc.Input,
		output:   doc.Output,
		barriers: map[string]*barrierState{},
		log:      logger.FromContext(context.Background()),
		cfg:      config.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rebuildBarriers()
	return c, nil
}

// UnmarshalJSON is intentionally not implemented: reconstructing a Conductor
// requires an expr.Evaluator that JSON cannot carry. Callers should
// json.Unmarshal into a Document and call Deserialize directly.
