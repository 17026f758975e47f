package scenetree

import (
	"errors"
	"fmt"
	"strings"
)

/*
Errors that can be returned by the scenetree package. None of them indicate a
broken tree object; they describe the data loaded so far.
*/

////////////////////////////////////////////////////////////////////////////////

// ErrNoRoot is returned by Root when no loaded node lacks a parent.
var ErrNoRoot = errors.New("no root node loaded")

// ErrNoParent is returned by ParentOf for a root node.
var ErrNoParent = errors.New("node has no parent")

// ErrCycle is returned when following parent links revisits a node.
var ErrCycle = errors.New("parent links form a cycle")

// MultipleRootsError is returned by Root when more than one loaded node lacks
// a parent.
type MultipleRootsError struct {
	Indices []uint64
}

// Error returns a string representation of the error.
func (e MultipleRootsError) Error() string {
	strs := make([]string, len(e.Indices))
	for i, index := range e.Indices {
		strs[i] = fmt.Sprint(index)
	}
	return fmt.Sprintf("multiple root nodes: [%s]", strings.Join(strs, " "))
}

// Is returns true if the target error is a MultipleRootsError.
func (e MultipleRootsError) Is(target error) bool {
	_, ok := target.(MultipleRootsError)
	return ok
}

// PendingError is returned when a relationship refers to a node that is not
// loaded yet. It is a signal to fetch the page holding Index.
type PendingError struct {
	Index uint64
}

// Error returns a string representation of the error.
func (e PendingError) Error() string {
	return fmt.Sprintf("node %d is not loaded", e.Index)
}

// Is returns true if the target error is a PendingError.
func (e PendingError) Is(target error) bool {
	_, ok := target.(PendingError)
	return ok
}

// LinkKind classifies a LinkError.
type LinkKind int

const (
	// ParentMismatch means a child names a different parent than the node
	// listing it.
	ParentMismatch LinkKind = iota
	// MissingChild means a node names a loaded parent that does not list it.
	MissingChild
	// SelfReference means a node lists itself as parent or child.
	SelfReference
)

func (k LinkKind) String() string {
	switch k {
	case ParentMismatch:
		return "parent mismatch"
	case MissingChild:
		return "missing child"
	case SelfReference:
		return "self reference"
	default:
		return "unknown"
	}
}

// LinkError describes one inconsistent parent/child link found by Check.
type LinkError struct {
	Kind   LinkKind
	Parent uint64
	Child  uint64
}

// Error returns a string representation of the error.
func (e LinkError) Error() string {
	switch e.Kind {
	case ParentMismatch:
		return fmt.Sprintf("node %d lists child %d, whose parent is not %d", e.Parent, e.Child, e.Parent)
	case MissingChild:
		return fmt.Sprintf("node %d names parent %d, which does not list it", e.Child, e.Parent)
	default:
		return fmt.Sprintf("node %d links to itself", e.Child)
	}
}

// Is returns true if the target error is a LinkError.
func (e LinkError) Is(target error) bool {
	_, ok := target.(LinkError)
	return ok
}
