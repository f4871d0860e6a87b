// Package specdoc is the ambient I/O seam between a workflow spec document
// on disk and the Spec Model: it reads YAML or JSON and decodes it either
// into a raw tree (Load) or directly into a *workflow.Workflow
// (LoadWorkflow). It performs no ref-resolution, templating, or remote
// fetch.
package specdoc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/Stealthii/orquesta/engine/workflow"
)

// RawDoc is the undifferentiated tree decoded from a spec document, before
// it's handed to the Spec Model for schema validation and typing.
type RawDoc map[string]any

// Load reads the YAML or JSON file at path and decodes it into a RawDoc.
// Every file is decoded with the YAML parser whatever its extension, since
// YAML is a superset of JSON.
func Load(path string) (RawDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("specdoc: failed to read %q: %w", path, err)
	}
	var doc RawDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("specdoc: failed to decode %q: %w", path, err)
	}
	return doc, nil
}

// LoadWorkflow reads the spec document at path and decodes it into a
// *workflow.Workflow. It goes through an intermediate generic tree and
// encoding/json rather than yaml.Unmarshal directly, so that Workflow's
// custom json.Unmarshaler fields (Clause, Join) run regardless of whether
// the source document was YAML or JSON.
func LoadWorkflow(path string) (*workflow.Workflow, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("specdoc: failed to re-encode %q as JSON: %w", path, err)
	}
	w := &workflow.Workflow{}
	if err := json.Unmarshal(asJSON, w); err != nil {
		return nil, fmt.Errorf("specdoc: failed to decode %q: %w", path, err)
	}
	return w, nil
}

// IsJSON reports whether path's extension marks it as JSON rather than
// YAML; Load doesn't need this distinction (YAML parses JSON directly), but
// callers building diagnostics sometimes want to know which dialect a file
// was authored in.
func IsJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
