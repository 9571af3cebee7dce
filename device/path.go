package device

import (
	"math"

	"github.com/wudi/pdfcore/coords"
)

// SegmentKind identifies a path segment.
type SegmentKind int

const (
	SegMoveTo SegmentKind = iota
	SegLineTo
	SegCurveTo
	SegClose
)

// Segment is one path element. Curves carry two control points in C1 and
// C2; P is the end point.
type Segment struct {
	Kind   SegmentKind
	P      coords.Point
	C1, C2 coords.Point
}

// Subpath is a connected run of segments starting with a move.
type Subpath struct {
	Segments []Segment
	Closed   bool
}

// Path is a sequence of subpaths in user space.
type Path struct {
	Subpaths []Subpath
	current  coords.Point
	start    coords.Point
	open     bool
}

func (p *Path) last() *Subpath { return &p.Subpaths[len(p.Subpaths)-1] }

// Current returns the current point and whether one exists.
func (p *Path) Current() (coords.Point, bool) { return p.current, p.open }

func (p *Path) MoveTo(x, y float64) {
	pt := coords.Point{X: x, Y: y}
	// A move directly after a move replaces it.
	if p.open && len(p.Subpaths) > 0 {
		if sp := p.last(); len(sp.Segments) == 1 && !sp.Closed {
			sp.Segments[0].P = pt
			p.current, p.start = pt, pt
			return
		}
	}
	p.Subpaths = append(p.Subpaths, Subpath{Segments: []Segment{{Kind: SegMoveTo, P: pt}}})
	p.current, p.start, p.open = pt, pt, true
}

// ensure starts an implicit subpath at the current point, as l/c after h
// do.
func (p *Path) ensure() {
	if !p.open {
		p.MoveTo(p.current.X, p.current.Y)
		return
	}
	if sp := p.last(); sp.Closed {
		p.Subpaths = append(p.Subpaths, Subpath{Segments: []Segment{{Kind: SegMoveTo, P: p.current}}})
	}
}

func (p *Path) LineTo(x, y float64) {
	p.ensure()
	pt := coords.Point{X: x, Y: y}
	sp := p.last()
	sp.Segments = append(sp.Segments, Segment{Kind: SegLineTo, P: pt})
	p.current = pt
}

func (p *Path) CurveTo(x1, y1, x2, y2, x3, y3 float64) {
	p.ensure()
	pt := coords.Point{X: x3, Y: y3}
	sp := p.last()
	sp.Segments = append(sp.Segments, Segment{
		Kind: SegCurveTo,
		C1:   coords.Point{X: x1, Y: y1},
		C2:   coords.Point{X: x2, Y: y2},
		P:    pt,
	})
	p.current = pt
}

// Close closes the current subpath; the current point returns to its
// start.
func (p *Path) Close() {
	if !p.open || len(p.Subpaths) == 0 {
		return
	}
	sp := p.last()
	if sp.Closed {
		return
	}
	sp.Segments = append(sp.Segments, Segment{Kind: SegClose, P: p.start})
	sp.Closed = true
	p.current = p.start
}

// Rect appends a closed rectangle, as the re operator does.
func (p *Path) Rect(x, y, w, h float64) {
	p.MoveTo(x, y)
	p.LineTo(x+w, y)
	p.LineTo(x+w, y+h)
	p.LineTo(x, y+h)
	p.Close()
}

// IsEmpty reports whether the path has no drawing segments.
func (p *Path) IsEmpty() bool {
	if p == nil {
		return true
	}
	for _, sp := range p.Subpaths {
		if len(sp.Segments) > 1 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of p.
func (p *Path) Clone() *Path {
	if p == nil {
		return nil
	}
	out := &Path{current: p.current, start: p.start, open: p.open}
	out.Subpaths = make([]Subpath, len(p.Subpaths))
	for i, sp := range p.Subpaths {
		out.Subpaths[i] = Subpath{Segments: append([]Segment(nil), sp.Segments...), Closed: sp.Closed}
	}
	return out
}

// Bounds returns the bounding box of the path's points under ctm. Curve
// control points are included, which over-approximates curves.
func (p *Path) Bounds(ctm coords.Matrix) coords.Rect {
	r := coords.EmptyRect
	if p == nil {
		return r
	}
	for _, sp := range p.Subpaths {
		if len(sp.Segments) < 2 {
			continue
		}
		for _, s := range sp.Segments {
			r = r.IncludePoint(ctm.Transform(s.P))
			if s.Kind == SegCurveTo {
				r = r.IncludePoint(ctm.Transform(s.C1))
				r = r.IncludePoint(ctm.Transform(s.C2))
			}
		}
	}
	return r
}

// StrokeBounds widens Bounds by the line width, miter joins included.
func (p *Path) StrokeBounds(st *StrokeState, ctm coords.Matrix) coords.Rect {
	r := p.Bounds(ctm)
	if r.IsEmpty() || st == nil {
		return r
	}
	half := st.LineWidth / 2
	if half == 0 {
		// Zero-width lines are one device pixel wide.
		half = 0.5
	} else {
		half *= ctm.Expansion()
	}
	if st.Join == JoinMiter && st.MiterLimit > 1 {
		half *= st.MiterLimit
	} else if st.Cap == CapSquare {
		half *= math.Sqrt2
	}
	return r.Expand(half)
}

// Flatten calls fn with polylines approximating each subpath in device
// space, curves split until flat within tol.
func (p *Path) Flatten(ctm coords.Matrix, tol float64, fn func(pts []coords.Point, closed bool)) {
	if p == nil {
		return
	}
	if tol <= 0 {
		tol = 0.25
	}
	for _, sp := range p.Subpaths {
		var pts []coords.Point
		var cur coords.Point
		for _, s := range sp.Segments {
			switch s.Kind {
			case SegMoveTo, SegLineTo:
				cur = ctm.Transform(s.P)
				pts = append(pts, cur)
			case SegCurveTo:
				c1, c2, end := ctm.Transform(s.C1), ctm.Transform(s.C2), ctm.Transform(s.P)
				pts = flattenCubic(pts, cur, c1, c2, end, tol, 0)
				cur = end
			case SegClose:
			}
		}
		if len(pts) > 1 {
			fn(pts, sp.Closed)
		}
	}
}

func flattenCubic(out []coords.Point, p0, p1, p2, p3 coords.Point, tol float64, depth int) []coords.Point {
	// Distance of the control points from the chord bounds the error.
	d1 := distToLine(p1, p0, p3)
	d2 := distToLine(p2, p0, p3)
	if depth >= 16 || math.Max(d1, d2) <= tol {
		return append(out, p3)
	}
	mid := func(a, b coords.Point) coords.Point { return coords.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2} }
	p01, p12, p23 := mid(p0, p1), mid(p1, p2), mid(p2, p3)
	p012, p123 := mid(p01, p12), mid(p12, p23)
	m := mid(p012, p123)
	out = flattenCubic(out, p0, p01, p012, m, tol, depth+1)
	return flattenCubic(out, m, p123, p23, p3, tol, depth+1)
}

func distToLine(p, a, b coords.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	return math.Abs((p.X-a.X)*dy-(p.Y-a.Y)*dx) / l
}
