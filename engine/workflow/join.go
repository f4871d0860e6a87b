package workflow

import (
	"encoding/json"
	"fmt"
)

// JoinKind distinguishes the three legal shapes of a task's join attribute.
type JoinKind int

const (
	JoinNone JoinKind = iota
	JoinAll
	JoinCount
)

// Join is a task's barrier specifier: absent, "all" (wait for every inbound
// edge), or a positive count (wait for that many inbound firings).
type Join struct {
	Kind  JoinKind
	Count int
}

// IsJoin reports whether the task carrying this Join is a barrier task.
func (j Join) IsJoin() bool {
	return j.Kind != JoinNone
}

// RequiredCount returns how many distinct inbound firings must arrive before
// the barrier releases, given predecessorCount inbound edges.
func (j Join) RequiredCount(predecessorCount int) int {
	switch j.Kind {
	case JoinAll:
		return predecessorCount
	case JoinCount:
		return j.Count
	default:
		return 0
	}
}

// UnmarshalJSON accepts the legal join shapes from §3: absent, the literal
// string "all", or a positive integer.
func (j *Join) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		if asString != "all" {
			return fmt.Errorf("join string value must be \"all\", got %q", asString)
		}
		*j = Join{Kind: JoinAll}
		return nil
	}
	var asInt int
	if err := json.Unmarshal(data, &asInt); err == nil {
		if asInt <= 0 {
			return fmt.Errorf("join count must be a positive integer, got %d", asInt)
		}
		*j = Join{Kind: JoinCount, Count: asInt}
		return nil
	}
	return fmt.Errorf("join must be \"all\" or a positive integer")
}

// MarshalJSON renders the join back to its wire shape.
func (j Join) MarshalJSON() ([]byte, error) {
	switch j.Kind {
	case JoinAll:
		return json.Marshal("all")
	case JoinCount:
		return json.Marshal(j.Count)
	default:
		return json.Marshal(nil)
	}
}
