package device

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfcore/coords"
	"github.com/wudi/pdfcore/observability"
)

func square(x0, y0, x1, y1 float64) *Path {
	p := &Path{}
	p.MoveTo(x0, y0)
	p.LineTo(x1, y0)
	p.LineTo(x1, y1)
	p.LineTo(x0, y1)
	p.Close()
	return p
}

var black = Paint{Space: DeviceGray, Color: []float64{0}, Alpha: 1}

func TestPathBounds(t *testing.T) {
	p := square(100, 100, 200, 200)
	got := p.Bounds(coords.Identity())
	if want := coords.NewRect(100, 100, 200, 200); got != want {
		t.Fatalf("bounds = %v, want %v", got, want)
	}
	got = p.Bounds(coords.Scale(2, 2))
	if want := coords.NewRect(200, 200, 400, 400); got != want {
		t.Fatalf("scaled bounds = %v, want %v", got, want)
	}
	if (&Path{}).IsEmpty() != true {
		t.Fatalf("empty path not empty")
	}
}

func TestPathLineAfterCloseStartsSubpath(t *testing.T) {
	p := &Path{}
	p.MoveTo(0, 0)
	p.LineTo(10, 0)
	p.Close()
	p.LineTo(0, 10)
	if len(p.Subpaths) != 2 {
		t.Fatalf("subpaths = %d, want 2", len(p.Subpaths))
	}
	if got := p.Subpaths[1].Segments[0]; got.Kind != SegMoveTo || got.P != (coords.Point{}) {
		t.Fatalf("implicit move = %+v", got)
	}
}

func TestBBoxDeviceClip(t *testing.T) {
	d := NewBBoxDevice()
	d.ClipPath(square(0, 0, 50, 50), NonZero, coords.Identity(), coords.InfiniteRect)
	d.FillPath(square(25, 25, 100, 100), NonZero, coords.Identity(), black)
	d.PopClip()
	d.FillPath(square(200, 200, 210, 210), NonZero, coords.Identity(), black)
	want := coords.NewRect(25, 25, 210, 210)
	if d.Result != want {
		t.Fatalf("bbox = %v, want %v", d.Result, want)
	}
	if d.Events != 2 {
		t.Fatalf("events = %d", d.Events)
	}
}

func TestBBoxDeviceIgnoresMaskContent(t *testing.T) {
	d := NewBBoxDevice()
	d.BeginMask(Mask{Luminosity: true})
	d.FillPath(square(0, 0, 500, 500), NonZero, coords.Identity(), black)
	d.EndMask()
	d.FillPath(square(10, 10, 20, 20), NonZero, coords.Identity(), black)
	d.PopClip()
	if want := coords.NewRect(10, 10, 20, 20); d.Result != want {
		t.Fatalf("bbox = %v, want %v", d.Result, want)
	}
}

func TestListReplay(t *testing.T) {
	l := NewListDevice()
	l.FillPath(square(0, 0, 10, 10), NonZero, coords.Identity(), black)
	l.StrokePath(square(100, 100, 110, 110), &StrokeState{LineWidth: 2}, coords.Identity(), black)
	l.ClipPath(square(0, 0, 1000, 1000), EvenOdd, coords.Identity(), coords.InfiniteRect)
	l.FillPath(square(500, 500, 510, 510), EvenOdd, coords.Identity(), black)
	l.PopClip()
	l.Close()

	want := []string{"fill_path", "stroke_path", "clip_path", "fill_path", "pop_clip"}
	if diff := cmp.Diff(want, l.Ops()); diff != "" {
		t.Fatalf("ops (-want +got):\n%s", diff)
	}

	full := NewBBoxDevice()
	if err := l.Replay(full, coords.Identity(), coords.InfiniteRect, nil); err != nil {
		t.Fatal(err)
	}
	if want := coords.NewRect(0, 0, 510, 510); full.Result != want {
		t.Fatalf("replayed bbox = %v, want %v", full.Result, want)
	}

	// Replaying only the top-left corner skips the far commands.
	part := NewListDevice()
	if err := l.Replay(part, coords.Identity(), coords.NewRect(0, 0, 50, 50), nil); err != nil {
		t.Fatal(err)
	}
	want = []string{"fill_path", "clip_path", "pop_clip"}
	if diff := cmp.Diff(want, part.Ops()); diff != "" {
		t.Fatalf("culled ops (-want +got):\n%s", diff)
	}

	scaled := NewBBoxDevice()
	l.Replay(scaled, coords.Scale(2, 2), coords.InfiniteRect, nil)
	if want := coords.NewRect(0, 0, 1020, 1020); scaled.Result != want {
		t.Fatalf("scaled bbox = %v, want %v", scaled.Result, want)
	}
}

func TestQuadTreeQuery(t *testing.T) {
	qt := newQuadTree(coords.NewRect(0, 0, 100, 100), 2)
	rects := []coords.Rect{
		coords.NewRect(1, 1, 2, 2),
		coords.NewRect(60, 60, 70, 70),
		coords.NewRect(10, 80, 12, 90),
		coords.NewRect(40, 40, 60, 60),
		coords.NewRect(90, 5, 95, 8),
	}
	for i, r := range rects {
		if !qt.insert(r, i) {
			t.Fatalf("insert %d failed", i)
		}
	}
	found := map[int]bool{}
	qt.query(coords.NewRect(50, 50, 100, 100), func(i int) { found[i] = true })
	if diff := cmp.Diff(map[int]bool{1: true, 3: true}, found); diff != "" {
		t.Fatalf("query (-want +got):\n%s", diff)
	}
}

func white(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}

func TestDrawDeviceFill(t *testing.T) {
	dst := white(20, 20)
	d := NewDrawDevice(dst)
	red := Paint{Space: DeviceRGB, Color: []float64{1, 0, 0}, Alpha: 1}
	if err := d.FillPath(square(5, 5, 15, 15), NonZero, coords.Identity(), red); err != nil {
		t.Fatal(err)
	}
	if got := dst.RGBAAt(10, 10); got != (color.RGBA{255, 0, 0, 255}) {
		t.Fatalf("inside = %v", got)
	}
	if got := dst.RGBAAt(1, 1); got != (color.RGBA{255, 255, 255, 255}) {
		t.Fatalf("outside = %v", got)
	}
}

func TestDrawDeviceEvenOdd(t *testing.T) {
	dst := white(40, 40)
	d := NewDrawDevice(dst)
	p := square(0, 0, 40, 40)
	inner := square(10, 10, 30, 30)
	p.Subpaths = append(p.Subpaths, inner.Subpaths...)
	d.FillPath(p, EvenOdd, coords.Identity(), black)
	if got := dst.RGBAAt(20, 20); got != (color.RGBA{255, 255, 255, 255}) {
		t.Fatalf("hole = %v, want white", got)
	}
	if got := dst.RGBAAt(5, 5); got != (color.RGBA{0, 0, 0, 255}) {
		t.Fatalf("ring = %v, want black", got)
	}
}

func TestDrawDeviceClip(t *testing.T) {
	dst := white(20, 20)
	d := NewDrawDevice(dst)
	d.ClipPath(square(0, 0, 10, 20), NonZero, coords.Identity(), coords.InfiniteRect)
	d.FillPath(square(0, 0, 20, 20), NonZero, coords.Identity(), black)
	d.PopClip()
	if got := dst.RGBAAt(5, 5); got.R != 0 {
		t.Fatalf("clipped inside = %v", got)
	}
	if got := dst.RGBAAt(15, 5); got.R != 255 {
		t.Fatalf("clipped outside = %v", got)
	}
}

func TestDrawDeviceImage(t *testing.T) {
	dst := white(4, 4)
	d := NewDrawDevice(dst)
	// 2x1 RGB image: red then blue, stretched over the pixmap.
	img := &Image{Width: 2, Height: 1, BPC: 8, Space: DeviceRGB, Data: []byte{255, 0, 0, 0, 0, 255}}
	ctm := coords.Matrix{4, 0, 0, 4, 0, 0}
	if err := d.FillImage(img, ctm, 1); err != nil {
		t.Fatal(err)
	}
	if got := dst.RGBAAt(0, 2); got != (color.RGBA{255, 0, 0, 255}) {
		t.Fatalf("left = %v", got)
	}
	if got := dst.RGBAAt(3, 2); got != (color.RGBA{0, 0, 255, 255}) {
		t.Fatalf("right = %v", got)
	}
}

func TestDashRuns(t *testing.T) {
	pts := []coords.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}
	runs := dashRuns(pts, []float64{3, 2}, 0)
	want := [][]coords.Point{
		{{X: 0, Y: 0}, {X: 3, Y: 0}},
		{{X: 5, Y: 0}, {X: 8, Y: 0}},
		{{X: 10, Y: 0}, {X: 10, Y: 0}},
	}
	if len(runs) < 2 {
		t.Fatalf("runs = %v", runs)
	}
	if diff := cmp.Diff(want[:2], runs[:2]); diff != "" {
		t.Fatalf("runs (-want +got):\n%s", diff)
	}
}

func TestImageAlphaStencil(t *testing.T) {
	img := &Image{Width: 8, Height: 1, BPC: 1, ImageMask: true, Data: []byte{0x0f}}
	a, err := img.Alpha(true)
	if err != nil {
		t.Fatal(err)
	}
	if a.Pix[0] != 255 || a.Pix[7] != 0 {
		t.Fatalf("stencil = %v", a.Pix)
	}
	if err := (&Image{Width: 8, Height: 2, BPC: 8, Space: DeviceGray, Data: []byte{1}}).Validate(); err == nil {
		t.Fatalf("short data accepted")
	}
}

type swapRB struct{}

func (swapRB) RGB(v []float64) (r, g, b float64) { return v[2], v[1], v[0] }

func TestColorSpaceRGB(t *testing.T) {
	tests := []struct {
		cs      *ColorSpace
		v       []float64
		r, g, b float64
	}{
		{DeviceGray, []float64{0.5}, 0.5, 0.5, 0.5},
		{DeviceCMYK, []float64{1, 0, 0, 0}, 0, 1, 1},
		{&ColorSpace{Family: Indexed, N: 1, Base: DeviceRGB, HiVal: 1, Lookup: []byte{0, 0, 0, 255, 0, 0}}, []float64{1}, 1, 0, 0},
		{&ColorSpace{Family: ICC, N: 3, Base: DeviceRGB}, []float64{0, 1, 0}, 0, 1, 0},
		{&ColorSpace{Family: ICC, N: 3, Base: DeviceRGB, Profile: swapRB{}}, []float64{1, 0, 0}, 0, 0, 1},
	}
	for _, tt := range tests {
		r, g, b := tt.cs.RGB(tt.v)
		if r != tt.r || g != tt.g || b != tt.b {
			t.Errorf("%s %v = %g %g %g", tt.cs.Family, tt.v, r, g, b)
		}
	}
}

func TestTraceDevice(t *testing.T) {
	log := observability.NewMemoryLogger()
	bbox := NewBBoxDevice()
	d := NewTraceDevice(log, bbox)
	d.FillPath(square(0, 0, 1, 1), NonZero, coords.Identity(), black)
	d.Close()
	entries := log.Entries()
	if len(entries) != 2 || entries[0].Msg != "fill_path" || entries[1].Msg != "close" {
		t.Fatalf("entries = %+v", entries)
	}
	if bbox.Events != 1 {
		t.Fatalf("event not forwarded")
	}
}
