package nodepage

import "fmt"

/*
Node-page addressing. A node's global index determines which page holds it and
where in that page it sits. All arithmetic is on unsigned integers; a capacity
of zero is a programming error and panics. Layers declaring zero are rejected
when their descriptor is validated, before any of these functions run.
*/

////////////////////////////////////////////////////////////////////////////////

// Location identifies a node slot within the paged node list.
type Location struct {
	Page   uint64
	Offset uint64
}

// String returns a string representation of the location.
func (l Location) String() string {
	return fmt.Sprintf("page %d offset %d", l.Page, l.Offset)
}

func mustCapacity(nodesPerPage uint64) {
	if nodesPerPage == 0 {
		panic("nodepage: nodesPerPage must be positive")
	}
}

// PageOf returns the page holding the node with the given global index.
func PageOf(index, nodesPerPage uint64) uint64 {
	mustCapacity(nodesPerPage)
	return index / nodesPerPage
}

// OffsetInPage returns the position of the node within its page.
func OffsetInPage(index, nodesPerPage uint64) uint64 {
	mustCapacity(nodesPerPage)
	return index % nodesPerPage
}

// Locate returns both the page and offset of a global index.
func Locate(index, nodesPerPage uint64) Location {
	return Location{
		Page:   PageOf(index, nodesPerPage),
		Offset: OffsetInPage(index, nodesPerPage),
	}
}

// FirstIndex returns the global index of the first slot in a page.
func FirstIndex(page, nodesPerPage uint64) uint64 {
	mustCapacity(nodesPerPage)
	return page * nodesPerPage
}

// Index reverses Locate.
func (l Location) Index(nodesPerPage uint64) uint64 {
	return FirstIndex(l.Page, nodesPerPage) + l.Offset
}
