package catalog_test

import (
	"bytes"
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/i3s/catalog"
	"github.com/wkalt/i3s/ql"
	"github.com/wkalt/i3s/session"
	"github.com/wkalt/i3s/source"
	"github.com/wkalt/i3s/util/testutils"
)

func loadedSession(t *testing.T, pages map[uint64]string, nodesPerPage uint64) *session.Session {
	t.Helper()
	ctx := context.Background()
	data := testutils.BuildSLPK(t, testutils.SLPK{
		Descriptor: testutils.DescriptorJSON(nodesPerPage, 0),
		Pages:      pages,
	})
	archive, err := source.NewArchiveSource(bytes.NewReader(data), int64(len(data)), t.Name())
	require.NoError(t, err)
	s, err := session.Open(ctx, archive)
	require.NoError(t, err)
	require.NoError(t, s.LoadAll(ctx))
	return s
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	c, err := catalog.New(db)
	require.NoError(t, err)

	pages, count := testutils.BalancedTree(2, 3, 4)
	s := loadedSession(t, pages, 4)

	t.Run("export everything", func(t *testing.T) {
		n, err := c.Export(ctx, "city.slpk", s, nil)
		require.NoError(t, err)
		assert.Equal(t, int(count), n)

		nodes, err := c.Nodes(ctx, "city.slpk")
		require.NoError(t, err)
		require.Len(t, nodes, int(count))

		root := nodes[0]
		assert.Equal(t, uint64(0), root.Index)
		assert.Nil(t, root.Parent)
		assert.Equal(t, 3, root.Children)
		require.NotNil(t, root.Depth)
		assert.Equal(t, 0, *root.Depth)

		last := nodes[len(nodes)-1]
		assert.Equal(t, uint64(12), last.Index)
		assert.Equal(t, uint64(3), last.Page)
		require.NotNil(t, last.Parent)
		assert.Equal(t, uint64(3), *last.Parent)
		assert.Equal(t, 2, *last.Depth)
		require.NotNil(t, last.LOD)
		assert.InDelta(t, 200.0, *last.LOD, 0)
		assert.Equal(t, [3]float64{1, 1, 1}, last.HalfSize)
	})

	t.Run("export with a filter replaces the previous export", func(t *testing.T) {
		filter, err := ql.Compile("leaf = true and page >= 2")
		require.NoError(t, err)
		n, err := c.Export(ctx, "city.slpk", s, filter)
		require.NoError(t, err)
		assert.Equal(t, 5, n)

		nodes, err := c.Nodes(ctx, "city.slpk")
		require.NoError(t, err)
		assert.Len(t, nodes, 5)
		for _, node := range nodes {
			assert.GreaterOrEqual(t, node.Page, uint64(2))
			assert.Zero(t, node.Children)
		}
	})

	t.Run("unknown depth is null", func(t *testing.T) {
		orphans := loadedSession(t, map[uint64]string{
			1: testutils.PageJSON(testutils.NodeJSON(4, 2, 10)),
		}, 4)
		_, err := c.Export(ctx, "orphans.slpk", orphans, nil)
		require.NoError(t, err)
		nodes, err := c.Nodes(ctx, "orphans.slpk")
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		assert.Nil(t, nodes[0].Depth)
	})

	t.Run("layers", func(t *testing.T) {
		layers, err := c.Layers(ctx)
		require.NoError(t, err)
		require.Len(t, layers, 2)
		assert.Equal(t, "city.slpk", layers[0].Location)
		assert.Equal(t, "test layer", layers[0].Name)
		assert.Equal(t, uint64(4), layers[0].NodesPerPage)
		assert.Equal(t, 5, layers[0].NodeCount)
		assert.Equal(t, "orphans.slpk", layers[1].Location)
	})

	t.Run("missing layer", func(t *testing.T) {
		_, err := c.Nodes(ctx, "nowhere.slpk")
		require.ErrorIs(t, err, catalog.ErrLayerNotFound)
	})

	t.Run("reopening does not migrate again", func(t *testing.T) {
		_, err := catalog.New(db)
		require.NoError(t, err)
	})
}

func TestMigrations(t *testing.T) {
	cases := []struct {
		assertion string
		setup     string
	}{
		{"fresh database", ""},
		{"empty migrations table", "create table schema_migrations(version bigint not null)"},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			db, err := sql.Open("sqlite3", ":memory:")
			require.NoError(t, err)
			defer db.Close()
			db.SetMaxOpenConns(1)
			if c.setup != "" {
				_, err = db.Exec(c.setup)
				require.NoError(t, err)
			}

			_, err = catalog.New(db)
			require.NoError(t, err)
			_, err = catalog.New(db)
			require.NoError(t, err)

			var versions int
			require.NoError(t, db.QueryRow("select count(*) from schema_migrations").Scan(&versions))
			assert.Equal(t, 1, versions)
		})
	}
}
