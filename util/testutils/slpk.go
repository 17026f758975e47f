package testutils

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

/*
Fixtures for scene layer packages. Tests describe a layer as JSON strings and
get back the bytes of an SLPK archive laid out the way real packages are.
*/

////////////////////////////////////////////////////////////////////////////////

// SLPK describes the contents of a test archive.
type SLPK struct {
	// Descriptor is the 3dSceneLayer document. Omitted when empty.
	Descriptor string
	// Metadata is the metadata.json document. Omitted when empty.
	Metadata string
	// Pages maps page numbers to node page documents.
	Pages map[uint64]string
	// Entries are written verbatim under their names.
	Entries map[string][]byte
	// Plain stores documents without gzip and without the .gz suffix.
	Plain bool
}

// Gzip compresses data.
func Gzip(t *testing.T, data []byte) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	w := gzip.NewWriter(buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// BuildSLPK writes the described archive and returns its bytes. Entries are
// stored uncompressed in the zip, as the SLPK format requires.
func BuildSLPK(t *testing.T, spec SLPK) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	put := func(name string, data []byte) {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	document := func(name, body string) {
		if spec.Plain {
			put(name, []byte(body))
			return
		}
		put(name+".gz", Gzip(t, []byte(body)))
	}
	if spec.Metadata != "" {
		put("metadata.json", []byte(spec.Metadata))
	}
	if spec.Descriptor != "" {
		document("3dSceneLayer.json", spec.Descriptor)
	}
	for page, body := range spec.Pages {
		document(fmt.Sprintf("nodepages/%d.json", page), body)
	}
	for name, data := range spec.Entries {
		put(name, data)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// DescriptorJSON returns a minimal descriptor document.
func DescriptorJSON(nodesPerPage, rootIndex uint64) string {
	return fmt.Sprintf(`{
		"id": 0,
		"name": "test layer",
		"layerType": "IntegratedMesh",
		"store": {"profile": "meshpyramids", "version": "1.8"},
		"nodePages": {"nodesPerPage": %d, "rootIndex": %d, "lodSelectionMetricType": "maxScreenThresholdSQ"}
	}`, nodesPerPage, rootIndex)
}

// NodeJSON returns one node document. A negative parent means none.
func NodeJSON(index uint64, parent int64, lod float64, children ...uint64) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, `{"index": %d, "obb": {"center": [0, 0, 0], "halfSize": [1, 1, 1]}, "lodThreshold": %g`, index, lod)
	if parent >= 0 {
		fmt.Fprintf(sb, `, "parentIndex": %d`, parent)
	}
	if len(children) > 0 {
		strs := make([]string, len(children))
		for i, c := range children {
			strs[i] = fmt.Sprint(c)
		}
		fmt.Fprintf(sb, `, "children": [%s]`, strings.Join(strs, ", "))
	}
	sb.WriteString("}")
	return sb.String()
}

// PageJSON wraps node documents in a node page document.
func PageJSON(nodes ...string) string {
	return `{"nodes": [` + strings.Join(nodes, ", ") + `]}`
}

// BalancedTree lays out a complete tree of the given depth and fanout in
// breadth-first index order and splits it into pages. Node lodThreshold is
// 100 times the node's depth. It returns the pages and the node count.
func BalancedTree(depth, fanout int, nodesPerPage uint64) (map[uint64]string, uint64) {
	type item struct {
		index  uint64
		parent int64
		depth  int
	}
	queue := []item{{index: 0, parent: -1, depth: 0}}
	next := uint64(1)
	nodes := map[uint64][]string{}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		var children []uint64
		if it.depth < depth {
			for range fanout {
				children = append(children, next)
				queue = append(queue, item{index: next, parent: int64(it.index), depth: it.depth + 1})
				next++
			}
		}
		page := it.index / nodesPerPage
		nodes[page] = append(nodes[page], NodeJSON(it.index, it.parent, float64(100*it.depth), children...))
	}
	pages := make(map[uint64]string, len(nodes))
	for page, docs := range nodes {
		pages[page] = PageJSON(docs...)
	}
	return pages, next
}
