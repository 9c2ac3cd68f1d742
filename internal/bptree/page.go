package bptree

import "github.com/mooncake-db/bptreeidx/internal/storage"

// Node kinds tagged into a page's generic header flags field.
const (
	KindHeader uint16 = iota
	KindIndex
	KindLeaf
)

// nodeKind returns the kind tag stamped on p by formatHeaderPage,
// formatIndexPage, or formatLeafPage.
func nodeKind(p *storage.Page) uint16 { return p.Flags() }

// countLive returns the number of slots on p that still hold a live tuple.
func countLive(p *storage.Page) int {
	n := 0
	for i := 0; i < p.NumSlots(); i++ {
		if _, err := p.ReadTuple(i); err == nil {
			n++
		}
	}
	return n
}
