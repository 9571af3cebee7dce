// Package coords provides affine matrices, points and rectangles in PDF
// user space.
package coords

import (
	"errors"
	"math"
)

// Matrix is the PDF row-vector affine matrix [a b c d e f].
type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// Multiply returns m × o: apply m first, then o.
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

// Concat is the pre-multiplication used by the cm operator.
func (m Matrix) Concat(by Matrix) Matrix { return by.Multiply(m) }

func (m Matrix) IsIdentity() bool { return m == Identity() }

// Expansion is the geometric mean scale factor of m.
func (m Matrix) Expansion() float64 {
	return math.Sqrt(math.Abs(m[0]*m[3] - m[1]*m[2]))
}

type Point struct{ X, Y float64 }

func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

// TransformVector ignores translation.
func (m Matrix) TransformVector(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y, Y: m[1]*p.X + m[3]*p.Y}
}

func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, errors.New("matrix singular")
	}
	return Matrix{
		m[3] / det, -m[1] / det, -m[2] / det, m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det, (m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }
func Scale(sx, sy float64) Matrix     { return Matrix{sx, 0, 0, sy, 0, 0} }
func Rotate(angle float64) Matrix {
	c := math.Cos(angle)
	s := math.Sin(angle)
	return Matrix{c, s, -s, c, 0, 0}
}

// FromSlice builds a matrix from six numbers; ok is false otherwise.
func FromSlice(v []float64) (Matrix, bool) {
	if len(v) != 6 {
		return Identity(), false
	}
	return Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}, true
}

// Rect is an axis-aligned rectangle with X0 <= X1 and Y0 <= Y1 once
// normalized. The zero Rect is empty.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// EmptyRect is the identity element for Union.
var EmptyRect = Rect{X0: math.Inf(1), Y0: math.Inf(1), X1: math.Inf(-1), Y1: math.Inf(-1)}

// InfiniteRect is the identity element for Intersect.
var InfiniteRect = Rect{X0: math.Inf(-1), Y0: math.Inf(-1), X1: math.Inf(1), Y1: math.Inf(1)}

func NewRect(x0, y0, x1, y1 float64) Rect {
	return Rect{X0: x0, Y0: y0, X1: x1, Y1: y1}.Normalize()
}

// Normalize orders the corners.
func (r Rect) Normalize() Rect {
	if r.X0 > r.X1 {
		r.X0, r.X1 = r.X1, r.X0
	}
	if r.Y0 > r.Y1 {
		r.Y0, r.Y1 = r.Y1, r.Y0
	}
	return r
}

func (r Rect) IsEmpty() bool    { return !(r.X0 <= r.X1 && r.Y0 <= r.Y1) }
func (r Rect) IsInfinite() bool { return math.IsInf(r.X0, -1) && math.IsInf(r.X1, 1) }
func (r Rect) Width() float64   { return r.X1 - r.X0 }
func (r Rect) Height() float64  { return r.Y1 - r.Y0 }

// Union returns the smallest rectangle containing r and o.
func (r Rect) Union(o Rect) Rect {
	if o.IsEmpty() {
		return r
	}
	if r.IsEmpty() {
		return o
	}
	return Rect{math.Min(r.X0, o.X0), math.Min(r.Y0, o.Y0), math.Max(r.X1, o.X1), math.Max(r.Y1, o.Y1)}
}

// IncludePoint grows r to contain p.
func (r Rect) IncludePoint(p Point) Rect {
	if r.IsEmpty() {
		return Rect{p.X, p.Y, p.X, p.Y}
	}
	return Rect{math.Min(r.X0, p.X), math.Min(r.Y0, p.Y), math.Max(r.X1, p.X), math.Max(r.Y1, p.Y)}
}

func (r Rect) Intersect(o Rect) Rect {
	out := Rect{math.Max(r.X0, o.X0), math.Max(r.Y0, o.Y0), math.Min(r.X1, o.X1), math.Min(r.Y1, o.Y1)}
	if out.IsEmpty() {
		return EmptyRect
	}
	return out
}

// Expand grows the rectangle by d on every side.
func (r Rect) Expand(d float64) Rect {
	if r.IsEmpty() || r.IsInfinite() {
		return r
	}
	return Rect{r.X0 - d, r.Y0 - d, r.X1 + d, r.Y1 + d}
}

// Transform returns the bounding box of r's corners under m.
func (r Rect) Transform(m Matrix) Rect {
	if r.IsEmpty() || r.IsInfinite() {
		return r
	}
	out := EmptyRect
	for _, p := range [4]Point{{r.X0, r.Y0}, {r.X1, r.Y0}, {r.X0, r.Y1}, {r.X1, r.Y1}} {
		out = out.IncludePoint(m.Transform(p))
	}
	return out
}

// RectFromSlice builds a normalized rectangle from four numbers.
func RectFromSlice(v []float64) (Rect, bool) {
	if len(v) != 4 {
		return Rect{}, false
	}
	return NewRect(v[0], v[1], v[2], v[3]), true
}
