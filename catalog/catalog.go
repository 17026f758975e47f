package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wkalt/i3s/layer"
	"github.com/wkalt/i3s/ql"
	"github.com/wkalt/i3s/session"
)

/*
Package catalog exports loaded scene trees into a SQL database, one row per
layer and one row per node, so that layers can be inspected with ordinary SQL
tooling. It is written against database/sql and tested with sqlite.

Exporting a location again replaces everything previously exported for it.
*/

////////////////////////////////////////////////////////////////////////////////

// ErrLayerNotFound is returned when a layer has not been exported.
var ErrLayerNotFound = errors.New("layer not found")

// Catalog is a handle to an export database.
type Catalog struct {
	db *sql.DB
}

// Layer is one exported layer.
type Layer struct {
	ID           int64
	Location     string
	Name         string
	LayerType    string
	NodesPerPage uint64
	RootIndex    uint64
	NodeCount    int
	ExportedAt   string
}

// Node is one exported node. Depth is nil when the path to the root was not
// loaded.
type Node struct {
	Index       uint64
	Page        uint64
	Depth       *int
	Parent      *uint64
	Children    int
	LOD         *float64
	Center      [3]float64
	HalfSize    [3]float64
	VertexCount uint64
}

// New migrates the database if needed and returns a catalog over it.
func New(db *sql.DB) (*Catalog, error) {
	c := &Catalog{db: db}
	if err := c.initialize(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) initialize() error {
	// max(version) is null when the migrations table exists but is empty.
	var maxApplied sql.NullInt64
	err := c.db.QueryRow("select max(version) from schema_migrations").Scan(&maxApplied)
	if err == nil && maxApplied.Valid && maxApplied.Int64 >= 1 {
		return nil
	}
	if _, err := c.db.Exec(`
	create table if not exists layers (
		id integer primary key autoincrement,
		location text not null unique,
		name text not null,
		layer_type text not null,
		nodes_per_page bigint not null,
		root_index bigint not null,
		exported_at text not null default current_timestamp
	);

	create table if not exists nodes (
		layer_id integer not null references layers(id),
		idx bigint not null,
		page bigint not null,
		depth integer,
		parent bigint,
		children integer not null,
		lod double precision,
		center_x double precision not null,
		center_y double precision not null,
		center_z double precision not null,
		half_x double precision not null,
		half_y double precision not null,
		half_z double precision not null,
		vertex_count bigint not null,
		primary key (layer_id, idx)
	);

	create table if not exists schema_migrations(
		version bigint not null,
		timestamp text not null default current_timestamp
	);

	insert into schema_migrations(version) values (1);
	`); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Export writes every node of the session's tree that matches filter, or every
// node if filter is nil. It returns the number of nodes written.
func (c *Catalog) Export(ctx context.Context, location string, s *session.Session, filter *ql.Filter) (int, error) {
	tree := s.Tree()
	var nodes []Node
	for _, index := range tree.Indices() {
		node, ok := tree.Get(index)
		if !ok {
			continue
		}
		target := ql.Target{Node: node, Page: s.PageOf(index), Depth: -1}
		row := newNode(node, target.Page)
		if depth, err := tree.Depth(node); err == nil {
			row.Depth = &depth
			target.Depth = depth
		}
		if filter != nil && !filter.Match(target) {
			continue
		}
		nodes = append(nodes, row)
	}
	if err := c.put(ctx, location, s.Descriptor(), nodes); err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func newNode(node *layer.Node, page uint64) Node {
	row := Node{
		Index:    node.Index,
		Page:     page,
		Parent:   node.ParentIndex,
		Children: len(node.Children),
		LOD:      node.LODThreshold,
		Center:   node.OBB.Center,
		HalfSize: node.OBB.HalfSize,
	}
	if node.Mesh != nil {
		row.VertexCount = node.Mesh.Geometry.VertexCount
	}
	return row
}

func (c *Catalog) put(ctx context.Context, location string, descriptor *layer.Descriptor, nodes []Node) (err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `
	delete from nodes where layer_id in (select id from layers where location = $1)`, location,
	); err != nil {
		return fmt.Errorf("failed to clear nodes: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `delete from layers where location = $1`, location); err != nil {
		return fmt.Errorf("failed to clear layer: %w", err)
	}
	result, err := tx.ExecContext(ctx, `
	insert into layers (location, name, layer_type, nodes_per_page, root_index) values ($1, $2, $3, $4, $5)`,
		location, descriptor.Name, descriptor.LayerType,
		descriptor.NodePages.NodesPerPage, descriptor.NodePages.RootIndex,
	)
	if err != nil {
		return fmt.Errorf("failed to insert layer: %w", err)
	}
	layerID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read layer id: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
	insert into nodes (
		layer_id, idx, page, depth, parent, children, lod,
		center_x, center_y, center_z, half_x, half_y, half_z, vertex_count
	) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`)
	if err != nil {
		return fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer stmt.Close()
	for _, n := range nodes {
		if _, err = stmt.ExecContext(ctx,
			layerID, n.Index, n.Page, n.Depth, n.Parent, n.Children, n.LOD,
			n.Center[0], n.Center[1], n.Center[2],
			n.HalfSize[0], n.HalfSize[1], n.HalfSize[2],
			n.VertexCount,
		); err != nil {
			return fmt.Errorf("failed to insert node %d: %w", n.Index, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export: %w", err)
	}
	return nil
}

// Layers lists exported layers ordered by location.
func (c *Catalog) Layers(ctx context.Context) ([]Layer, error) {
	rows, err := c.db.QueryContext(ctx, `
	select l.id, l.location, l.name, l.layer_type, l.nodes_per_page, l.root_index, l.exported_at,
		(select count(*) from nodes n where n.layer_id = l.id)
	from layers l order by l.location`)
	if err != nil {
		return nil, fmt.Errorf("failed to list layers: %w", err)
	}
	defer rows.Close()
	layers := []Layer{}
	for rows.Next() {
		var l Layer
		if err := rows.Scan(
			&l.ID, &l.Location, &l.Name, &l.LayerType, &l.NodesPerPage, &l.RootIndex, &l.ExportedAt, &l.NodeCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan layer: %w", err)
		}
		layers = append(layers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list layers: %w", err)
	}
	return layers, nil
}

// Nodes returns the exported nodes of a location ordered by index.
func (c *Catalog) Nodes(ctx context.Context, location string) ([]Node, error) {
	var layerID int64
	err := c.db.QueryRowContext(ctx, `select id from layers where location = $1`, location).Scan(&layerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", location, ErrLayerNotFound)
		}
		return nil, fmt.Errorf("failed to look up layer: %w", err)
	}
	rows, err := c.db.QueryContext(ctx, `
	select idx, page, depth, parent, children, lod,
		center_x, center_y, center_z, half_x, half_y, half_z, vertex_count
	from nodes where layer_id = $1 order by idx`, layerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	defer rows.Close()
	nodes := []Node{}
	for rows.Next() {
		var n Node
		var depth, parent sql.NullInt64
		var lod sql.NullFloat64
		if err := rows.Scan(
			&n.Index, &n.Page, &depth, &parent, &n.Children, &lod,
			&n.Center[0], &n.Center[1], &n.Center[2],
			&n.HalfSize[0], &n.HalfSize[1], &n.HalfSize[2],
			&n.VertexCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		if depth.Valid {
			d := int(depth.Int64)
			n.Depth = &d
		}
		if parent.Valid {
			p := uint64(parent.Int64)
			n.Parent = &p
		}
		if lod.Valid {
			n.LOD = &lod.Float64
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	return nodes, nil
}
