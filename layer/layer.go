package layer

import (
	"github.com/goccy/go-json"
)

/*
Package layer holds the I3S records this module understands: the scene layer
descriptor, its node-page definition, node pages and the nodes inside them.
They are plain values. Fields that only matter to renderers or UIs (materials,
textures, popups, statistics, symbology) are kept as raw JSON so that they
round-trip without being interpreted.
*/

////////////////////////////////////////////////////////////////////////////////

// Descriptor is the 3dSceneLayer document. It is fetched once per session.
type Descriptor struct {
	ID                     uint64                  `json:"id"`
	Name                   string                  `json:"name"`
	Alias                  string                  `json:"alias"`
	LayerType              string                  `json:"layerType"`
	Version                string                  `json:"version,omitempty"`
	Capabilities           []string                `json:"capabilities"`
	Store                  Store                   `json:"store"`
	SpatialReference       *SpatialReference       `json:"spatialReference,omitempty"`
	FullExtent             *FullExtent             `json:"fullExtent,omitempty"`
	HeightModelInfo        *HeightModelInfo        `json:"heightModelInfo,omitempty"`
	NodePages              NodePageDefinition      `json:"nodePages"`
	Description            string                  `json:"description,omitempty"`
	CopyrightText          string                  `json:"copyrightText,omitempty"`
	Href                   string                  `json:"href,omitempty"`
	ZFactor                *float64                `json:"zFactor,omitempty"`
	ServiceUpdateTimeStamp *ServiceUpdateTimeStamp `json:"serviceUpdateTimeStamp,omitempty"`
	ElevationInfo          *ElevationInfo          `json:"elevationInfo,omitempty"`

	GeometryDefinitions   json.RawMessage `json:"geometryDefinitions,omitempty"`
	MaterialDefinitions   json.RawMessage `json:"materialDefinitions,omitempty"`
	TextureSetDefinitions json.RawMessage `json:"textureSetDefinitions,omitempty"`
	AttributeStorageInfo  json.RawMessage `json:"attributeStorageInfo,omitempty"`
	StatisticsInfo        json.RawMessage `json:"statisticsInfo,omitempty"`
	DrawingInfo           json.RawMessage `json:"drawingInfo,omitempty"`
	PopupInfo             json.RawMessage `json:"popupInfo,omitempty"`
	Fields                json.RawMessage `json:"fields,omitempty"`
}

// NodePageDefinition describes how nodes are split into pages.
type NodePageDefinition struct {
	NodesPerPage           uint64 `json:"nodesPerPage"`
	LODSelectionMetricType string `json:"lodSelectionMetricType"`
	RootIndex              uint64 `json:"rootIndex"`
}

// Store describes the physical layout of the layer.
type Store struct {
	ID                    string          `json:"id,omitempty"`
	Profile               string          `json:"profile"`
	Version               string          `json:"version"`
	RootNode              string          `json:"rootNode,omitempty"`
	ResourcePattern       []string        `json:"resourcePattern,omitempty"`
	Extent                []float64       `json:"extent,omitempty"`
	IndexCRS              string          `json:"indexCRS,omitempty"`
	VertexCRS             string          `json:"vertexCRS,omitempty"`
	NormalReferenceFrame  string          `json:"normalReferenceFrame,omitempty"`
	DefaultGeometrySchema json.RawMessage `json:"defaultGeometrySchema,omitempty"`
}

// SpatialReference identifies a coordinate system by WKID or WKT.
type SpatialReference struct {
	WKID          *int   `json:"wkid,omitempty"`
	LatestWKID    *int   `json:"latestWkid,omitempty"`
	VCSWKID       *int   `json:"vcsWkid,omitempty"`
	LatestVCSWKID *int   `json:"latestVcsWkid,omitempty"`
	WKT           string `json:"wkt,omitempty"`
}

// FullExtent is the axis-aligned extent of the whole layer. Malformed extents
// are kept as delivered; see WellFormed.
type FullExtent struct {
	XMin             float64           `json:"xmin"`
	XMax             float64           `json:"xmax"`
	YMin             float64           `json:"ymin"`
	YMax             float64           `json:"ymax"`
	ZMin             float64           `json:"zmin"`
	ZMax             float64           `json:"zmax"`
	SpatialReference *SpatialReference `json:"spatialReference,omitempty"`
}

// WellFormed reports whether every axis has min <= max.
func (e FullExtent) WellFormed() bool {
	return e.XMin <= e.XMax && e.YMin <= e.YMax && e.ZMin <= e.ZMax
}

// HeightModelInfo describes the vertical model of the layer.
type HeightModelInfo struct {
	HeightModel string `json:"heightModel,omitempty"`
	VertCRS     string `json:"vertCRS,omitempty"`
	HeightUnit  string `json:"heightUnit,omitempty"`
}

// ElevationInfo describes how the layer is placed relative to the ground.
type ElevationInfo struct {
	Mode   string   `json:"mode,omitempty"`
	Offset *float64 `json:"offset,omitempty"`
	Unit   string   `json:"unit,omitempty"`
}

// ServiceUpdateTimeStamp carries the last update time in epoch milliseconds.
type ServiceUpdateTimeStamp struct {
	LastUpdate int64 `json:"lastUpdate"`
}

// Metadata is the metadata.json entry found in SLPK archives.
type Metadata struct {
	I3SVersion              string `json:"I3SVersion"`
	NodeCount               uint64 `json:"nodeCount"`
	Folder                  string `json:"folder,omitempty"`
	ResourceCompressionType string `json:"resourceCompressionType,omitempty"`
}

// NodePage is one fetched batch of nodes. Once merged into a tree it is
// discarded.
type NodePage struct {
	Nodes []Node `json:"nodes"`
}

// Node is one scene-graph node.
type Node struct {
	Index        uint64   `json:"index"`
	OBB          OBB      `json:"obb"`
	LODThreshold *float64 `json:"lodThreshold,omitempty"`
	ParentIndex  *uint64  `json:"parentIndex,omitempty"`
	Children     []uint64 `json:"children,omitempty"`
	Mesh         *Mesh    `json:"mesh,omitempty"`
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool {
	return n.ParentIndex == nil
}

// IsLeaf reports whether the node lists no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// OBB is an oriented bounding box. A nil Quaternion means axis-aligned.
type OBB struct {
	Center     [3]float64  `json:"center"`
	HalfSize   [3]float64  `json:"halfSize"`
	Quaternion *[4]float64 `json:"quaternion,omitempty"`
}

// Mesh references the resources holding a node's geometry, material and
// attributes. The resources themselves are not decoded here.
type Mesh struct {
	Material  MeshMaterial  `json:"material"`
	Geometry  MeshGeometry  `json:"geometry"`
	Attribute MeshAttribute `json:"attribute"`
}

// MeshMaterial references a material definition and texture resource.
type MeshMaterial struct {
	Definition     uint64 `json:"definition"`
	Resource       uint64 `json:"resource"`
	TexelCountHint int64  `json:"texelCountHint"`
}

// MeshGeometry references a geometry definition and buffer resource.
type MeshGeometry struct {
	Definition   uint64 `json:"definition"`
	Resource     uint64 `json:"resource"`
	VertexCount  uint64 `json:"vertexCount"`
	FeatureCount uint64 `json:"featureCount"`
}

// MeshAttribute references the attribute resource of a node.
type MeshAttribute struct {
	Resource uint64 `json:"resource"`
}
