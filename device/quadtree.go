package device

import (
	"github.com/wudi/pdfcore/coords"
)

// quadTree indexes display-list commands by device-space bounds.
type quadTree struct {
	bounds   coords.Rect
	capacity int
	depth    int
	items    []quadItem
	nodes    []*quadTree
}

type quadItem struct {
	rect  coords.Rect
	index int
}

const maxQuadDepth = 12

func newQuadTree(bounds coords.Rect, capacity int) *quadTree {
	return &quadTree{bounds: bounds, capacity: capacity}
}

func (qt *quadTree) insert(r coords.Rect, index int) bool {
	if !overlaps(qt.bounds, r) {
		return false
	}
	if qt.nodes != nil {
		for _, n := range qt.nodes {
			if contains(n.bounds, r) && n.insert(r, index) {
				return true
			}
		}
		// Straddles children; kept at this level.
		qt.items = append(qt.items, quadItem{rect: r, index: index})
		return true
	}
	if len(qt.items) < qt.capacity || qt.depth >= maxQuadDepth {
		qt.items = append(qt.items, quadItem{rect: r, index: index})
		return true
	}
	qt.subdivide()
	old := qt.items
	qt.items = nil
	for _, it := range old {
		qt.insert(it.rect, it.index)
	}
	return qt.insert(r, index)
}

func (qt *quadTree) subdivide() {
	b := qt.bounds
	xm, ym := (b.X0+b.X1)/2, (b.Y0+b.Y1)/2
	child := func(r coords.Rect) *quadTree {
		n := newQuadTree(r, qt.capacity)
		n.depth = qt.depth + 1
		return n
	}
	qt.nodes = []*quadTree{
		child(coords.Rect{X0: b.X0, Y0: ym, X1: xm, Y1: b.Y1}),
		child(coords.Rect{X0: xm, Y0: ym, X1: b.X1, Y1: b.Y1}),
		child(coords.Rect{X0: b.X0, Y0: b.Y0, X1: xm, Y1: ym}),
		child(coords.Rect{X0: xm, Y0: b.Y0, X1: b.X1, Y1: ym}),
	}
}

// query calls fn with the index of every item overlapping r.
func (qt *quadTree) query(r coords.Rect, fn func(index int)) {
	if !overlaps(qt.bounds, r) {
		return
	}
	for _, it := range qt.items {
		if overlaps(it.rect, r) {
			fn(it.index)
		}
	}
	for _, n := range qt.nodes {
		n.query(r, fn)
	}
}

func overlaps(a, b coords.Rect) bool {
	return !(b.X0 > a.X1 || b.X1 < a.X0 || b.Y0 > a.Y1 || b.Y1 < a.Y0)
}

func contains(outer, inner coords.Rect) bool {
	return inner.X0 >= outer.X0 && inner.X1 <= outer.X1 &&
		inner.Y0 >= outer.Y0 && inner.Y1 <= outer.Y1
}
