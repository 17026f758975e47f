package layer

import (
	"fmt"

	"github.com/goccy/go-json"
)

// ParseDescriptor decodes a 3dSceneLayer document. Unknown fields are ignored
// and absent fields take their schema defaults.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	descriptor := &Descriptor{}
	if err := json.Unmarshal(data, descriptor); err != nil {
		return nil, NewDecodeError("layer descriptor", err)
	}
	return descriptor, nil
}

// ParseNodePage decodes a node page document.
func ParseNodePage(data []byte) (*NodePage, error) {
	page := &NodePage{}
	if err := json.Unmarshal(data, page); err != nil {
		return nil, NewDecodeError("node page", err)
	}
	return page, nil
}

// ParseMetadata decodes an SLPK metadata.json document.
func ParseMetadata(data []byte) (*Metadata, error) {
	metadata := &Metadata{}
	if err := json.Unmarshal(data, metadata); err != nil {
		return nil, NewDecodeError("metadata", err)
	}
	return metadata, nil
}

// Validate rejects descriptors that cannot drive node paging.
func (d *Descriptor) Validate() error {
	if d.NodePages.NodesPerPage == 0 {
		return fmt.Errorf("layer %d: %w", d.ID, ErrInvalidNodesPerPage)
	}
	return nil
}

// NodeCount returns the number of nodes in the page.
func (p *NodePage) NodeCount() int {
	return len(p.Nodes)
}
