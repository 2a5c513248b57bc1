package graph

import (
	"fmt"
	"strings"
)

// CycleError is returned when an edge would make the topology cyclic.
type CycleError struct {
	From NodeID
	To   NodeID
	// Path is an existing path from To back to From.
	Path []NodeID
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("cycle between nodes %d and %d", e.From, e.To)
	}
	s := make([]string, 0, len(e.Path)+1)
	for _, id := range e.Path {
		s = append(s, fmt.Sprint(id))
	}
	s = append(s, fmt.Sprint(e.To))
	return fmt.Sprintf("edge %d -> %d closes cycle %s", e.From, e.To, strings.Join(s, " -> "))
}

// nodeErrors wraps errors that might occur when multiple nodes are
// failing.
type nodeErrors []error

func (e nodeErrors) Error() string {
	s := []string{}
	for _, se := range e {
		s = append(s, se.Error())
	}
	return strings.Join(s, ",")
}

func (e nodeErrors) Unwrap() []error {
	return e
}

// ret returns untyped nil if error is list is empty.
func (e nodeErrors) ret() error {
	if len(e) > 0 {
		return e
	}
	return nil
}
