package layer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/i3s/layer"
)

func TestParseDescriptor(t *testing.T) {
	t.Run("absent optional fields take defaults", func(t *testing.T) {
		descriptor, err := layer.ParseDescriptor([]byte(`{"id": 0, "layerType": "IntegratedMesh"}`))
		require.NoError(t, err)
		assert.Equal(t, uint64(64), descriptor.NodePages.NodesPerPage)
		assert.Equal(t, uint64(0), descriptor.NodePages.RootIndex)
		assert.Equal(t, "./nodes/root", descriptor.Store.RootNode)
		assert.Nil(t, descriptor.FullExtent)
		require.NoError(t, descriptor.Validate())
	})
	t.Run("partial node page definition keeps remaining defaults", func(t *testing.T) {
		descriptor, err := layer.ParseDescriptor([]byte(`{"nodePages": {"lodSelectionMetricType": "maxScreenThresholdSQ"}}`))
		require.NoError(t, err)
		assert.Equal(t, uint64(64), descriptor.NodePages.NodesPerPage)
		assert.Equal(t, "maxScreenThresholdSQ", descriptor.NodePages.LODSelectionMetricType)
	})
	t.Run("present fields override defaults", func(t *testing.T) {
		descriptor, err := layer.ParseDescriptor([]byte(`{
			"id": 3,
			"name": "city",
			"capabilities": ["View", "Query"],
			"store": {"profile": "meshpyramids", "version": "1.8", "rootNode": "./nodes/0"},
			"nodePages": {"nodesPerPage": 16, "rootIndex": 5, "lodSelectionMetricType": "maxScreenThresholdSQ"},
			"fullExtent": {"xmin": 1, "xmax": 2, "ymin": 3, "ymax": 4, "zmin": 5, "zmax": 6},
			"spatialReference": {"wkid": 4326},
			"heightModelInfo": {"heightModel": "gravity_related_height", "vertCRS": "EGM96_Geoid", "heightUnit": "meter"}
		}`))
		require.NoError(t, err)
		assert.Equal(t, uint64(3), descriptor.ID)
		assert.Equal(t, []string{"View", "Query"}, descriptor.Capabilities)
		assert.Equal(t, "meshpyramids", descriptor.Store.Profile)
		assert.Equal(t, "./nodes/0", descriptor.Store.RootNode)
		assert.Equal(t, uint64(16), descriptor.NodePages.NodesPerPage)
		assert.Equal(t, uint64(5), descriptor.NodePages.RootIndex)
		require.NotNil(t, descriptor.SpatialReference.WKID)
		assert.Equal(t, 4326, *descriptor.SpatialReference.WKID)
		assert.Equal(t, "EGM96_Geoid", descriptor.HeightModelInfo.VertCRS)
		assert.True(t, descriptor.FullExtent.WellFormed())
	})
	t.Run("unknown fields are ignored", func(t *testing.T) {
		descriptor, err := layer.ParseDescriptor([]byte(`{"id": 1, "someFutureField": {"nested": [1, 2, 3]}}`))
		require.NoError(t, err)
		assert.Equal(t, uint64(1), descriptor.ID)
	})
	t.Run("descriptive fields are kept raw", func(t *testing.T) {
		descriptor, err := layer.ParseDescriptor([]byte(`{"materialDefinitions": [{"doubleSided": true}]}`))
		require.NoError(t, err)
		assert.JSONEq(t, `[{"doubleSided": true}]`, string(descriptor.MaterialDefinitions))
	})
	t.Run("malformed extent is surfaced, not corrected", func(t *testing.T) {
		descriptor, err := layer.ParseDescriptor([]byte(`{"fullExtent": {"xmin": 10, "xmax": 2, "ymin": 0, "ymax": 1, "zmin": 0, "zmax": 1}}`))
		require.NoError(t, err)
		assert.False(t, descriptor.FullExtent.WellFormed())
		assert.InDelta(t, 10.0, descriptor.FullExtent.XMin, 0)
	})
	t.Run("timestamp defaults to unknown", func(t *testing.T) {
		descriptor, err := layer.ParseDescriptor([]byte(`{"serviceUpdateTimeStamp": {}}`))
		require.NoError(t, err)
		assert.Equal(t, int64(-1), descriptor.ServiceUpdateTimeStamp.LastUpdate)
	})
	t.Run("schema mismatch is a decode error", func(t *testing.T) {
		_, err := layer.ParseDescriptor([]byte(`{"nodePages": {"nodesPerPage": "lots"}}`))
		require.ErrorIs(t, err, layer.DecodeError{})
	})
	t.Run("negative capacity is a decode error", func(t *testing.T) {
		_, err := layer.ParseDescriptor([]byte(`{"nodePages": {"nodesPerPage": -1}}`))
		require.ErrorIs(t, err, layer.DecodeError{})
	})
	t.Run("truncated document is a decode error", func(t *testing.T) {
		_, err := layer.ParseDescriptor([]byte(`{"id": 1, "name": "ci`))
		require.ErrorIs(t, err, layer.DecodeError{})
	})
}

func TestValidate(t *testing.T) {
	descriptor, err := layer.ParseDescriptor([]byte(`{"nodePages": {"nodesPerPage": 0}}`))
	require.NoError(t, err)
	require.ErrorIs(t, descriptor.Validate(), layer.ErrInvalidNodesPerPage)
}

func TestParseNodePage(t *testing.T) {
	t.Run("nodes", func(t *testing.T) {
		page, err := layer.ParseNodePage([]byte(`{"nodes": [
			{"index": 0, "obb": {"center": [1, 2, 3], "halfSize": [4, 5, 6], "quaternion": [0, 0, 0, 1]},
			 "children": [1, 2], "lodThreshold": 100.5,
			 "mesh": {"geometry": {"definition": 0, "resource": 0, "vertexCount": 12}}},
			{"index": 1, "parentIndex": 0, "obb": {"center": [0, 0, 0], "halfSize": [1, 1, 1]}},
			{"index": 2, "parentIndex": 0, "obb": {"center": [0, 0, 0], "halfSize": [1, 1, 1]}, "futureField": true}
		]}`))
		require.NoError(t, err)
		require.Equal(t, 3, page.NodeCount())

		root := page.Nodes[0]
		assert.True(t, root.IsRoot())
		assert.False(t, root.IsLeaf())
		assert.Equal(t, []uint64{1, 2}, root.Children)
		require.NotNil(t, root.LODThreshold)
		assert.InDelta(t, 100.5, *root.LODThreshold, 0)
		assert.Equal(t, [3]float64{1, 2, 3}, root.OBB.Center)
		assert.Equal(t, &[4]float64{0, 0, 0, 1}, root.OBB.Quaternion)
		require.NotNil(t, root.Mesh)
		assert.Equal(t, uint64(12), root.Mesh.Geometry.VertexCount)
		assert.Equal(t, int64(-1), root.Mesh.Material.TexelCountHint)

		child := page.Nodes[1]
		assert.False(t, child.IsRoot())
		assert.True(t, child.IsLeaf())
		assert.Equal(t, uint64(0), *child.ParentIndex)
		assert.Nil(t, child.OBB.Quaternion)
		assert.Nil(t, child.LODThreshold)
		assert.Nil(t, child.Mesh)
	})
	t.Run("misspelled quaternion is accepted", func(t *testing.T) {
		page, err := layer.ParseNodePage([]byte(`{"nodes": [{"index": 0, "obb": {"center": [0, 0, 0], "halfSize": [1, 1, 1], "quanternion": [1, 0, 0, 0]}}]}`))
		require.NoError(t, err)
		assert.Equal(t, &[4]float64{1, 0, 0, 0}, page.Nodes[0].OBB.Quaternion)
	})
	t.Run("explicit texel hint overrides default", func(t *testing.T) {
		page, err := layer.ParseNodePage([]byte(`{"nodes": [{"index": 0, "obb": {"center": [0, 0, 0], "halfSize": [1, 1, 1]}, "mesh": {"material": {"definition": 2, "texelCountHint": 4096}}}]}`))
		require.NoError(t, err)
		assert.Equal(t, int64(4096), page.Nodes[0].Mesh.Material.TexelCountHint)
		assert.Equal(t, uint64(2), page.Nodes[0].Mesh.Material.Definition)
	})
	t.Run("bad children type is a decode error", func(t *testing.T) {
		_, err := layer.ParseNodePage([]byte(`{"nodes": [{"index": 0, "obb": {"center": [0, 0, 0], "halfSize": [1, 1, 1]}, "children": "1,2"}]}`))
		require.ErrorIs(t, err, layer.DecodeError{})
	})
	cases := []struct {
		assertion string
		input     string
		contains  string
	}{
		{
			"missing index",
			`{"nodes": [{"obb": {"center": [0, 0, 0], "halfSize": [1, 1, 1]}, "parentIndex": 1}]}`,
			"index",
		},
		{
			"missing obb",
			`{"nodes": [{"index": 3, "children": [9]}]}`,
			"obb",
		},
		{
			"null obb",
			`{"nodes": [{"index": 3, "obb": null}]}`,
			"obb",
		},
		{
			"missing center",
			`{"nodes": [{"index": 0, "obb": {"halfSize": [1, 1, 1]}}]}`,
			"center",
		},
		{
			"wrong array lengths",
			`{"nodes": [{"index": 0, "obb": {"center": [1, 2, 3, 4, 5], "halfSize": [1], "quaternion": [1, 2]}}]}`,
			"center",
		},
		{
			"short half size",
			`{"nodes": [{"index": 0, "obb": {"center": [1, 2, 3], "halfSize": [1]}}]}`,
			"halfSize",
		},
		{
			"short quaternion",
			`{"nodes": [{"index": 0, "obb": {"center": [1, 2, 3], "halfSize": [1, 1, 1], "quaternion": [1, 2]}}]}`,
			"quaternion",
		},
		{
			"short misspelled quaternion",
			`{"nodes": [{"index": 0, "obb": {"center": [1, 2, 3], "halfSize": [1, 1, 1], "quanternion": [0, 0, 0, 1, 0]}}]}`,
			"quaternion",
		},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			page, err := layer.ParseNodePage([]byte(c.input))
			require.ErrorIs(t, err, layer.DecodeError{})
			require.ErrorContains(t, err, c.contains)
			assert.Nil(t, page)
		})
	}
}

func TestParseMetadata(t *testing.T) {
	metadata, err := layer.ParseMetadata([]byte(`{"I3SVersion": "1.8", "nodeCount": 421, "folder": "slpk"}`))
	require.NoError(t, err)
	assert.Equal(t, "1.8", metadata.I3SVersion)
	assert.Equal(t, uint64(421), metadata.NodeCount)

	_, err = layer.ParseMetadata([]byte(`[]`))
	require.ErrorIs(t, err, layer.DecodeError{})
}
