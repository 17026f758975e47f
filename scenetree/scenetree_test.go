package scenetree_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/i3s/layer"
	"github.com/wkalt/i3s/scenetree"
	"github.com/wkalt/i3s/util/testutils"
)

func page(t *testing.T, nodes ...string) *layer.NodePage {
	t.Helper()
	p, err := layer.ParseNodePage([]byte(testutils.PageJSON(nodes...)))
	require.NoError(t, err)
	return p
}

func get(t *testing.T, tree *scenetree.Tree, index uint64) *layer.Node {
	t.Helper()
	node, ok := tree.Get(index)
	require.True(t, ok, "node %d not loaded", index)
	return node
}

func TestStructure(t *testing.T) {
	ctx := context.Background()
	tree := scenetree.New()
	conflicts := tree.Insert(ctx, page(t,
		testutils.NodeJSON(0, -1, 0, 1, 2),
		testutils.NodeJSON(1, 0, 10),
		testutils.NodeJSON(2, 0, 10),
	))
	require.Zero(t, conflicts)

	t.Run("root", func(t *testing.T) {
		root, err := tree.Root()
		require.NoError(t, err)
		assert.Equal(t, uint64(0), root.Index)
		assert.True(t, root.IsRoot())
	})
	t.Run("classification", func(t *testing.T) {
		assert.True(t, get(t, tree, 1).IsLeaf())
		assert.True(t, get(t, tree, 2).IsLeaf())
		assert.False(t, get(t, tree, 1).IsRoot())
		assert.False(t, get(t, tree, 0).IsLeaf())
	})
	t.Run("children in listed order", func(t *testing.T) {
		children := tree.ChildrenOf(get(t, tree, 0))
		require.Len(t, children, 2)
		assert.Equal(t, uint64(1), children[0].Index)
		assert.Equal(t, uint64(2), children[1].Index)
		assert.False(t, children[0].Pending())
		assert.Equal(t, uint64(1), children[0].Node.Index)
	})
	t.Run("parent", func(t *testing.T) {
		parent, err := tree.ParentOf(get(t, tree, 2))
		require.NoError(t, err)
		assert.Equal(t, uint64(0), parent.Index)

		_, err = tree.ParentOf(get(t, tree, 0))
		require.ErrorIs(t, err, scenetree.ErrNoParent)
	})
	t.Run("depth", func(t *testing.T) {
		depth, err := tree.Depth(get(t, tree, 2))
		require.NoError(t, err)
		assert.Equal(t, 1, depth)
	})
	t.Run("listing", func(t *testing.T) {
		assert.Equal(t, 3, tree.Len())
		assert.Equal(t, []uint64{0, 1, 2}, tree.Indices())
		assert.Empty(t, tree.Pending())
		assert.Empty(t, tree.Check())
	})
}

func TestRoot(t *testing.T) {
	ctx := context.Background()
	t.Run("empty tree has no root", func(t *testing.T) {
		_, err := scenetree.New().Root()
		require.ErrorIs(t, err, scenetree.ErrNoRoot)
	})
	t.Run("only children loaded", func(t *testing.T) {
		tree := scenetree.New()
		tree.Insert(ctx, page(t, testutils.NodeJSON(5, 0, 10)))
		_, err := tree.Root()
		require.ErrorIs(t, err, scenetree.ErrNoRoot)
	})
	t.Run("multiple roots", func(t *testing.T) {
		tree := scenetree.New()
		tree.Insert(ctx, page(t,
			testutils.NodeJSON(7, -1, 0),
			testutils.NodeJSON(3, -1, 0),
		))
		_, err := tree.Root()
		require.ErrorIs(t, err, scenetree.MultipleRootsError{})
		var rootsErr scenetree.MultipleRootsError
		require.ErrorAs(t, err, &rootsErr)
		assert.Equal(t, []uint64{3, 7}, rootsErr.Indices)
	})
}

func TestPending(t *testing.T) {
	ctx := context.Background()
	tree := scenetree.New()
	tree.Insert(ctx, page(t,
		testutils.NodeJSON(0, -1, 0, 1, 64),
		testutils.NodeJSON(1, 0, 10),
	))

	children := tree.ChildrenOf(get(t, tree, 0))
	require.Len(t, children, 2)
	assert.False(t, children[0].Pending())
	assert.True(t, children[1].Pending())
	assert.Equal(t, uint64(64), children[1].Index)
	assert.Equal(t, []uint64{64}, tree.Pending())

	orphan := scenetree.New()
	orphan.Insert(ctx, page(t, testutils.NodeJSON(70, 64, 10)))
	_, err := orphan.ParentOf(get(t, orphan, 70))
	var pendingErr scenetree.PendingError
	require.ErrorAs(t, err, &pendingErr)
	assert.Equal(t, uint64(64), pendingErr.Index)
	_, err = orphan.Depth(get(t, orphan, 70))
	require.ErrorIs(t, err, scenetree.PendingError{})

	tree.Insert(ctx, page(t, testutils.NodeJSON(64, 0, 10)))
	children = tree.ChildrenOf(get(t, tree, 0))
	assert.False(t, children[1].Pending())
	assert.Empty(t, tree.Pending())
}

func TestInsertReplaces(t *testing.T) {
	ctx := context.Background()
	tree := scenetree.New()
	tree.Insert(ctx, page(t,
		testutils.NodeJSON(0, -1, 0, 1),
		testutils.NodeJSON(1, 0, 10),
	))
	conflicts := tree.Insert(ctx, page(t, testutils.NodeJSON(1, 0, 25)))
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 2, tree.Len())
	require.NotNil(t, get(t, tree, 1).LODThreshold)
	assert.InDelta(t, 25.0, *get(t, tree, 1).LODThreshold, 0)
}

func TestInsertNilPage(t *testing.T) {
	ctx := context.Background()
	tree := scenetree.New()
	assert.Zero(t, tree.Insert(ctx, nil))
	assert.Zero(t, tree.Len())

	tree.Insert(ctx, page(t, testutils.NodeJSON(0, -1, 0)))
	assert.Zero(t, tree.Insert(ctx, nil))
	assert.Equal(t, 1, tree.Len())
}

func TestPartialFailureIsolation(t *testing.T) {
	ctx := context.Background()
	tree := scenetree.New()
	tree.Insert(ctx, page(t,
		testutils.NodeJSON(0, -1, 0, 1, 2),
		testutils.NodeJSON(1, 0, 10),
	))
	_, err := layer.ParseNodePage([]byte(`{"nodes": [{"index": 2, "children": {}}]}`))
	require.ErrorIs(t, err, layer.DecodeError{})

	assert.Equal(t, []uint64{0, 1}, tree.Indices())
	root, err := tree.Root()
	require.NoError(t, err)
	children := tree.ChildrenOf(root)
	assert.False(t, children[0].Pending())
	assert.True(t, children[1].Pending())
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		assertion string
		nodes     []string
		expected  []scenetree.LinkError
	}{
		{
			"consistent",
			[]string{testutils.NodeJSON(0, -1, 0, 1), testutils.NodeJSON(1, 0, 1)},
			nil,
		},
		{
			"child names another parent",
			[]string{
				testutils.NodeJSON(0, -1, 0, 1, 2),
				testutils.NodeJSON(1, 0, 1, 2),
				testutils.NodeJSON(2, 1, 1),
			},
			[]scenetree.LinkError{{Kind: scenetree.ParentMismatch, Parent: 0, Child: 2}},
		},
		{
			"parent does not list child",
			[]string{testutils.NodeJSON(0, -1, 0), testutils.NodeJSON(1, 0, 1)},
			[]scenetree.LinkError{{Kind: scenetree.MissingChild, Parent: 0, Child: 1}},
		},
		{
			"self reference",
			[]string{testutils.NodeJSON(0, -1, 0, 0)},
			[]scenetree.LinkError{{Kind: scenetree.SelfReference, Parent: 0, Child: 0}},
		},
		{
			"links into unloaded nodes are not checked",
			[]string{testutils.NodeJSON(0, -1, 0, 9), testutils.NodeJSON(10, 4, 1)},
			nil,
		},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			tree := scenetree.New()
			tree.Insert(ctx, page(t, c.nodes...))
			assert.Equal(t, c.expected, tree.Check())
		})
	}
}

func TestConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	pages, count := testutils.BalancedTree(4, 3, 8)
	tree := scenetree.New()
	wg := &sync.WaitGroup{}
	for _, doc := range pages {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := layer.ParseNodePage([]byte(doc))
			assert.NoError(t, err)
			tree.Insert(ctx, p)
		}()
	}
	wg.Wait()
	assert.Equal(t, int(count), tree.Len())
	assert.Empty(t, tree.Pending())
	assert.Empty(t, tree.Check())
	root, err := tree.Root()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), root.Index)
}
