package scenetree

import (
	"context"
	"slices"
	"sync"

	"github.com/wkalt/i3s/layer"
	"github.com/wkalt/i3s/util/log"
	"golang.org/x/exp/maps"
)

/*
Package scenetree assembles node pages into one scene graph. Nodes live in an
arena keyed by global index; parent and child relationships are lookups against
the arena by index, never pointers between nodes. That lets the tree be loaded
one page at a time in any order, with relationships into unloaded pages
reported as pending.

Insert takes the write lock, so pages may be merged from any number of
goroutines in whatever order their fetches complete. Readers receive pointers
into the arena and must not modify them.

Traversal policy is not implemented here. Callers combine ChildrenOf with the
node's LODThreshold to decide when to descend.
*/

////////////////////////////////////////////////////////////////////////////////

// Tree is an arena of loaded nodes.
type Tree struct {
	mtx   *sync.RWMutex
	nodes map[uint64]*layer.Node
}

// Child is one entry of a node's child list. Node is nil when the child has not
// been loaded.
type Child struct {
	Index uint64
	Node  *layer.Node
}

// Pending reports whether the child still needs to be fetched.
func (c Child) Pending() bool {
	return c.Node == nil
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{
		mtx:   &sync.RWMutex{},
		nodes: make(map[uint64]*layer.Node),
	}
}

// Insert merges every node of the page into the arena and returns the number
// of nodes that replaced one already present. Replacements are logged. A nil
// page inserts nothing.
func (t *Tree) Insert(ctx context.Context, page *layer.NodePage) int {
	if page == nil {
		return 0
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()
	conflicts := 0
	for i := range page.Nodes {
		node := page.Nodes[i]
		if _, ok := t.nodes[node.Index]; ok {
			log.Warnw(ctx, "replacing node already in tree", "index", node.Index)
			conflicts++
		}
		t.nodes[node.Index] = &node
	}
	return conflicts
}

// Get returns the node with the given index, if loaded.
func (t *Tree) Get(index uint64) (*layer.Node, bool) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	node, ok := t.nodes[index]
	return node, ok
}

// Len returns the number of loaded nodes.
func (t *Tree) Len() int {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return len(t.nodes)
}

// Indices returns the indices of all loaded nodes in ascending order.
func (t *Tree) Indices() []uint64 {
	t.mtx.RLock()
	indices := maps.Keys(t.nodes)
	t.mtx.RUnlock()
	slices.Sort(indices)
	return indices
}

// Root returns the single loaded node without a parent.
func (t *Tree) Root() (*layer.Node, error) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	var roots []uint64
	for index, node := range t.nodes {
		if node.IsRoot() {
			roots = append(roots, index)
		}
	}
	switch len(roots) {
	case 0:
		return nil, ErrNoRoot
	case 1:
		return t.nodes[roots[0]], nil
	default:
		slices.Sort(roots)
		return nil, MultipleRootsError{Indices: roots}
	}
}

// ParentOf returns the parent of node. It returns ErrNoParent for a root and a
// PendingError if the parent is not loaded.
func (t *Tree) ParentOf(node *layer.Node) (*layer.Node, error) {
	if node.IsRoot() {
		return nil, ErrNoParent
	}
	parent, ok := t.Get(*node.ParentIndex)
	if !ok {
		return nil, PendingError{Index: *node.ParentIndex}
	}
	return parent, nil
}

// ChildrenOf returns the node's children in listed order. Children that are not
// loaded are included as pending entries.
func (t *Tree) ChildrenOf(node *layer.Node) []Child {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	children := make([]Child, len(node.Children))
	for i, index := range node.Children {
		children[i] = Child{Index: index, Node: t.nodes[index]}
	}
	return children
}

// Depth returns the number of parent links between node and its root.
func (t *Tree) Depth(node *layer.Node) (int, error) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	depth := 0
	for current := node; !current.IsRoot(); depth++ {
		if depth > len(t.nodes) {
			return 0, ErrCycle
		}
		parent, ok := t.nodes[*current.ParentIndex]
		if !ok {
			return 0, PendingError{Index: *current.ParentIndex}
		}
		current = parent
	}
	return depth, nil
}

// Pending returns, in ascending order, the indices referenced as a parent or
// child by some loaded node but not loaded themselves.
func (t *Tree) Pending() []uint64 {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	missing := map[uint64]struct{}{}
	for _, node := range t.nodes {
		if node.ParentIndex != nil {
			if _, ok := t.nodes[*node.ParentIndex]; !ok {
				missing[*node.ParentIndex] = struct{}{}
			}
		}
		for _, child := range node.Children {
			if _, ok := t.nodes[child]; !ok {
				missing[child] = struct{}{}
			}
		}
	}
	pending := maps.Keys(missing)
	slices.Sort(pending)
	return pending
}

// Check verifies that parent and child links agree among loaded nodes. Links
// into unloaded nodes are not checked. Problems are returned, never repaired,
// ordered by the index of the node they were found on.
func (t *Tree) Check() []LinkError {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	indices := maps.Keys(t.nodes)
	slices.Sort(indices)
	var problems []LinkError
	for _, index := range indices {
		node := t.nodes[index]
		if node.ParentIndex != nil {
			parent := *node.ParentIndex
			switch p, ok := t.nodes[parent]; {
			case parent == index:
				problems = append(problems, LinkError{Kind: SelfReference, Parent: index, Child: index})
			case ok && !slices.Contains(p.Children, index):
				problems = append(problems, LinkError{Kind: MissingChild, Parent: parent, Child: index})
			}
		}
		for _, childIndex := range node.Children {
			if childIndex == index {
				problems = append(problems, LinkError{Kind: SelfReference, Parent: index, Child: index})
				continue
			}
			child, ok := t.nodes[childIndex]
			if !ok {
				continue
			}
			if child.ParentIndex == nil || *child.ParentIndex != index {
				problems = append(problems, LinkError{Kind: ParentMismatch, Parent: index, Child: childIndex})
			}
		}
	}
	return problems
}
