package workflow

import (
	"encoding/json"
	"fmt"
)

// ClauseName is one of the three transition clauses a task spec can carry.
type ClauseName string

const (
	ClauseOnComplete ClauseName = "on-complete"
	ClauseOnSuccess  ClauseName = "on-success"
	ClauseOnError    ClauseName = "on-error"
)

// DefaultClauseOrder is the order get_next_tasks/get_prev_tasks scan clauses
// in when the caller doesn't pick a subset (§4.2).
var DefaultClauseOrder = []ClauseName{ClauseOnComplete, ClauseOnError, ClauseOnSuccess}

// ClauseEntry is one item of a clause: either a bare task identifier or a
// single-key {identifier: criteria} mapping.
type ClauseEntry struct {
	Task     string
	Criteria *string
}

// Clause is the normalized reading of an on-* field: nil when absent, one
// entry for a bare identifier, or several for a list.
type Clause []ClauseEntry

// UnmarshalJSON accepts every legal clause shape: absent (handled by
// encoding/json leaving the field nil), a single bare identifier string, a
// single {id: criteria} mapping, or a list mixing both entry forms.
func (c *Clause) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*c = Clause{{Task: asString}}
		return nil
	}

	var asSingletonMap map[string]string
	if err := json.Unmarshal(data, &asSingletonMap); err == nil {
		entries, err := singletonMapEntries(asSingletonMap)
		if err != nil {
			return err
		}
		*c = entries
		return nil
	}

	var asList []json.RawMessage
	if err := json.Unmarshal(data, &asList); err != nil {
		return fmt.Errorf("clause must be a string, a single-key mapping, or a list: %w", err)
	}
	entries := make(Clause, 0, len(asList))
	for _, raw := range asList {
		var item string
		if err := json.Unmarshal(raw, &item); err == nil {
			entries = append(entries, ClauseEntry{Task: item})
			continue
		}
		var itemMap map[string]string
		if err := json.Unmarshal(raw, &itemMap); err != nil {
			return fmt.Errorf("clause entry must be a string or a single-key mapping: %w", err)
		}
		sub, err := singletonMapEntries(itemMap)
		if err != nil {
			return err
		}
		entries = append(entries, sub...)
	}
	*c = entries
	return nil
}

// MarshalJSON renders a single bare-identifier clause back as a plain string
// and multi-entry clauses as a list, mirroring the input shapes accepted by
// UnmarshalJSON.
func (c Clause) MarshalJSON() ([]byte, error) {
	if len(c) == 1 && c[0].Criteria == nil {
		return json.Marshal(c[0].Task)
	}
	list := make([]any, 0, len(c))
	for _, entry := range c {
		if entry.Criteria == nil {
			list = append(list, entry.Task)
			continue
		}
		list = append(list, map[string]string{entry.Task: *entry.Criteria})
	}
	return json.Marshal(list)
}

func singletonMapEntries(m map[string]string) (Clause, error) {
	if len(m) != 1 {
		return nil, fmt.Errorf("clause entry mapping must have exactly one key, got %d", len(m))
	}
	entries := make(Clause, 0, 1)
	for k, v := range m {
		criteria := v
		entries = append(entries, ClauseEntry{Task: k, Criteria: &criteria})
	}
	return entries, nil
}
