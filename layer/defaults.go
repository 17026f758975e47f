package layer

import (
	"fmt"

	"github.com/goccy/go-json"
)

/*
Schema defaults. Each record type with a non-zero default for an absent field
has one constructor below, and its decoder starts from that value before reading
the document. Absent fields therefore keep the default and present fields
override it. Record types not listed here default to their zero value.
*/

////////////////////////////////////////////////////////////////////////////////

const (
	// DefaultNodesPerPage is the page capacity used when a layer does not
	// declare one.
	DefaultNodesPerPage = 64

	// DefaultRootNode is the legacy root node path.
	DefaultRootNode = "./nodes/root"
)

// DefaultDescriptor returns a descriptor holding only schema defaults.
func DefaultDescriptor() Descriptor {
	return Descriptor{
		Store:     DefaultStore(),
		NodePages: DefaultNodePageDefinition(),
	}
}

// DefaultNodePageDefinition returns nodesPerPage 64 and rootIndex 0.
func DefaultNodePageDefinition() NodePageDefinition {
	return NodePageDefinition{
		NodesPerPage: DefaultNodesPerPage,
		RootIndex:    0,
	}
}

// DefaultStore returns a store with the legacy root node path.
func DefaultStore() Store {
	return Store{RootNode: DefaultRootNode}
}

// DefaultMesh returns a mesh whose material carries the default texel hint.
func DefaultMesh() Mesh {
	return Mesh{Material: DefaultMeshMaterial()}
}

// DefaultMeshMaterial returns a material with texelCountHint -1 (unknown).
func DefaultMeshMaterial() MeshMaterial {
	return MeshMaterial{TexelCountHint: -1}
}

// DefaultServiceUpdateTimeStamp returns lastUpdate -1 (unknown).
func DefaultServiceUpdateTimeStamp() ServiceUpdateTimeStamp {
	return ServiceUpdateTimeStamp{LastUpdate: -1}
}

// decodeWithDefaults decodes data into a copy of defaults. The plain type
// parameter must be a method-free alias of the record so decoding does not
// recurse into UnmarshalJSON.
func decodeWithDefaults[T any](data []byte, defaults T) (T, error) {
	value := defaults
	if err := json.Unmarshal(data, &value); err != nil {
		return defaults, err //nolint:wrapcheck
	}
	return value, nil
}

// UnmarshalJSON applies descriptor defaults before decoding.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	type plain Descriptor
	value, err := decodeWithDefaults(data, plain(DefaultDescriptor()))
	if err != nil {
		return err
	}
	*d = Descriptor(value)
	return nil
}

// UnmarshalJSON applies node page definition defaults before decoding.
func (d *NodePageDefinition) UnmarshalJSON(data []byte) error {
	type plain NodePageDefinition
	value, err := decodeWithDefaults(data, plain(DefaultNodePageDefinition()))
	if err != nil {
		return err
	}
	*d = NodePageDefinition(value)
	return nil
}

// UnmarshalJSON applies store defaults before decoding.
func (s *Store) UnmarshalJSON(data []byte) error {
	type plain Store
	value, err := decodeWithDefaults(data, plain(DefaultStore()))
	if err != nil {
		return err
	}
	*s = Store(value)
	return nil
}

// UnmarshalJSON applies mesh defaults before decoding.
func (m *Mesh) UnmarshalJSON(data []byte) error {
	type plain Mesh
	value, err := decodeWithDefaults(data, plain(DefaultMesh()))
	if err != nil {
		return err
	}
	*m = Mesh(value)
	return nil
}

// UnmarshalJSON applies material defaults before decoding.
func (m *MeshMaterial) UnmarshalJSON(data []byte) error {
	type plain MeshMaterial
	value, err := decodeWithDefaults(data, plain(DefaultMeshMaterial()))
	if err != nil {
		return err
	}
	*m = MeshMaterial(value)
	return nil
}

// UnmarshalJSON applies timestamp defaults before decoding.
func (s *ServiceUpdateTimeStamp) UnmarshalJSON(data []byte) error {
	type plain ServiceUpdateTimeStamp
	value, err := decodeWithDefaults(data, plain(DefaultServiceUpdateTimeStamp()))
	if err != nil {
		return err
	}
	*s = ServiceUpdateTimeStamp(value)
	return nil
}

// UnmarshalJSON requires index and obb; the remaining node fields are
// optional.
func (n *Node) UnmarshalJSON(data []byte) error {
	var value struct {
		Index        *uint64  `json:"index"`
		OBB          *OBB     `json:"obb"`
		LODThreshold *float64 `json:"lodThreshold"`
		ParentIndex  *uint64  `json:"parentIndex"`
		Children     []uint64 `json:"children"`
		Mesh         *Mesh    `json:"mesh"`
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return err //nolint:wrapcheck
	}
	if value.Index == nil {
		return fmt.Errorf("node: %w: index", ErrMissingField)
	}
	if value.OBB == nil {
		return fmt.Errorf("node %d: %w: obb", *value.Index, ErrMissingField)
	}
	*n = Node{
		Index:        *value.Index,
		OBB:          *value.OBB,
		LODThreshold: value.LODThreshold,
		ParentIndex:  value.ParentIndex,
		Children:     value.Children,
		Mesh:         value.Mesh,
	}
	return nil
}

// vector checks that a required array has exactly n elements.
func vector(name string, values []float64, n int) error {
	if values == nil {
		return fmt.Errorf("obb: %w: %s", ErrMissingField, name)
	}
	if len(values) != n {
		return fmt.Errorf("obb %s: %w: expected %d values, got %d", name, ErrInvalidLength, n, len(values))
	}
	return nil
}

// UnmarshalJSON requires three-element center and halfSize arrays and, when
// present, a four-element quaternion. "quanternion" is accepted as a spelling
// of "quaternion"; some writers emit it.
func (o *OBB) UnmarshalJSON(data []byte) error {
	var value struct {
		Center      []float64 `json:"center"`
		HalfSize    []float64 `json:"halfSize"`
		Quaternion  []float64 `json:"quaternion"`
		Quanternion []float64 `json:"quanternion"`
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return err //nolint:wrapcheck
	}
	if err := vector("center", value.Center, 3); err != nil {
		return err
	}
	if err := vector("halfSize", value.HalfSize, 3); err != nil {
		return err
	}
	quaternion := value.Quaternion
	if quaternion == nil {
		quaternion = value.Quanternion
	}
	obb := OBB{
		Center:   [3]float64(value.Center),
		HalfSize: [3]float64(value.HalfSize),
	}
	if quaternion != nil {
		if err := vector("quaternion", quaternion, 4); err != nil {
			return err
		}
		q := [4]float64(quaternion)
		obb.Quaternion = &q
	}
	*o = obb
	return nil
}
