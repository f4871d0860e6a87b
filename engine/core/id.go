// Package core holds the small value types shared across the graph, spec model,
// composer and conductor packages.
package core

import (
	"fmt"

	"github.com/segmentio/ksuid"
)

// ID is a k-sortable unique identifier backed by ksuid.
type ID string

func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the ID is the zero value ("").
func (id ID) IsZero() bool {
	return id == ""
}

// NewID generates a new random, k-sortable ID.
func NewID() (ID, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate new ID: %w", err)
	}
	return ID(id.String()), nil
}

// MustNewID generates a new ID, panicking on failure. Only use at program
// construction time, never on a request path.
func MustNewID() ID {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}

// ParseID validates that s is a well-formed ID.
func ParseID(s string) (ID, error) {
	if s == "" {
		return "", fmt.Errorf("empty ID")
	}
	if _, err := ksuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid ID format: %w", err)
	}
	return ID(s), nil
}
