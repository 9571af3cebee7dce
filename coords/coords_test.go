package coords

import (
	"math"
	"testing"
)

func TestMatrixMultiplyAndInverse(t *testing.T) {
	m := Scale(2, 3).Multiply(Translate(10, 20))
	p := m.Transform(Point{1, 1})
	if p.X != 12 || p.Y != 23 {
		t.Fatalf("expected (12,23), got %+v", p)
	}
	inv, err := m.Inverse()
	if err != nil {
		t.Fatalf("inverse: %v", err)
	}
	back := inv.Transform(p)
	if math.Abs(back.X-1) > 1e-9 || math.Abs(back.Y-1) > 1e-9 {
		t.Fatalf("expected (1,1), got %+v", back)
	}
	if _, err := (Matrix{}).Inverse(); err == nil {
		t.Fatalf("expected singular matrix error")
	}
}

func TestConcatMatchesCm(t *testing.T) {
	ctm := Scale(2, 2)
	got := ctm.Concat(Translate(5, 0))
	if p := got.Transform(Point{0, 0}); p.X != 10 {
		t.Fatalf("cm should translate in user space before scaling, got %+v", p)
	}
}

func TestRectOps(t *testing.T) {
	r := EmptyRect.IncludePoint(Point{100, 100}).IncludePoint(Point{200, 200})
	if r != (Rect{100, 100, 200, 200}) {
		t.Fatalf("unexpected rect %+v", r)
	}
	if !EmptyRect.IsEmpty() || r.IsEmpty() {
		t.Fatalf("emptiness wrong")
	}
	u := r.Union(Rect{0, 0, 10, 10})
	if u != (Rect{0, 0, 200, 200}) {
		t.Fatalf("unexpected union %+v", u)
	}
	if !r.Intersect(Rect{300, 300, 400, 400}).IsEmpty() {
		t.Fatalf("disjoint rects should not intersect")
	}
	tr := Rect{0, 0, 1, 1}.Transform(Rotate(math.Pi / 2))
	if math.Abs(tr.X0+1) > 1e-9 || math.Abs(tr.X1) > 1e-9 {
		t.Fatalf("unexpected rotated rect %+v", tr)
	}
}
