package device

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/vector"

	"github.com/wudi/pdfcore/coords"
)

// maxTiles bounds the cells drawn for one tiling pattern.
const maxTiles = 10000

// DrawDevice rasterizes events into an RGBA pixmap whose pixel grid is
// the device space. Glyph outlines are not rendered: text paints nothing
// and text clips use glyph boxes. Blend modes other than Normal composite
// as Normal.
type DrawDevice struct {
	dst    *image.RGBA
	layers []*layer
	clips  []*image.Alpha
	// Tiling pattern contents are recorded and replayed per cell.
	rec      *ListDevice
	recDepth int
	tile     Tile
}

type layer struct {
	img      *image.RGBA
	alpha    float64
	mask     bool
	lum      bool
	backdrop color.NRGBA
}

// NewDrawDevice draws into dst. Callers usually fill dst with white first.
func NewDrawDevice(dst *image.RGBA) *DrawDevice {
	return &DrawDevice{dst: dst}
}

// Image returns the destination pixmap.
func (d *DrawDevice) Image() *image.RGBA { return d.dst }

func (d *DrawDevice) bounds() image.Rectangle { return d.dst.Bounds() }

func (d *DrawDevice) target() *image.RGBA {
	if n := len(d.layers); n > 0 {
		return d.layers[n-1].img
	}
	return d.dst
}

func (d *DrawDevice) clip() *image.Alpha {
	if n := len(d.clips); n > 0 {
		return d.clips[n-1]
	}
	return nil
}

func (d *DrawDevice) newRasterizer() *vector.Rasterizer {
	b := d.bounds()
	r := vector.NewRasterizer(b.Dx(), b.Dy())
	r.DrawOp = draw.Src
	return r
}

func (d *DrawDevice) finish(r *vector.Rasterizer) *image.Alpha {
	b := d.bounds()
	a := image.NewAlpha(b)
	r.Draw(a, b, image.Opaque, image.Point{})
	return a
}

// polygon adds pts with positive orientation so overlapping pieces
// accumulate instead of cancelling.
func polygon(r *vector.Rasterizer, pts []coords.Point, min image.Point) {
	if len(pts) < 3 {
		return
	}
	area := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		area += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	n := len(pts)
	at := func(i int) coords.Point {
		if area < 0 {
			return pts[n-1-i]
		}
		return pts[i]
	}
	p := at(0)
	r.MoveTo(float32(p.X-float64(min.X)), float32(p.Y-float64(min.Y)))
	for i := 1; i < n; i++ {
		p = at(i)
		r.LineTo(float32(p.X-float64(min.X)), float32(p.Y-float64(min.Y)))
	}
	r.ClosePath()
}

func (d *DrawDevice) fillCoverage(p *Path, rule FillRule, ctm coords.Matrix) *image.Alpha {
	min := d.bounds().Min
	if rule == NonZero {
		r := d.newRasterizer()
		p.Flatten(ctm, 0.25, func(pts []coords.Point, _ bool) {
			r.MoveTo(float32(pts[0].X-float64(min.X)), float32(pts[0].Y-float64(min.Y)))
			for _, pt := range pts[1:] {
				r.LineTo(float32(pt.X-float64(min.X)), float32(pt.Y-float64(min.Y)))
			}
			r.ClosePath()
		})
		return d.finish(r)
	}
	// Even-odd: subpaths are rasterized one by one and combined with
	// exclusive-or coverage.
	var acc *image.Alpha
	p.Flatten(ctm, 0.25, func(pts []coords.Point, _ bool) {
		r := d.newRasterizer()
		polygon(r, pts, min)
		a := d.finish(r)
		if acc == nil {
			acc = a
			return
		}
		for i, v := range a.Pix {
			x, y := int(acc.Pix[i]), int(v)
			acc.Pix[i] = uint8(x + y - 2*x*y/255)
		}
	})
	if acc == nil {
		acc = image.NewAlpha(d.bounds())
	}
	return acc
}

func (d *DrawDevice) strokeCoverage(p *Path, st *StrokeState, ctm coords.Matrix) *image.Alpha {
	r := d.newRasterizer()
	min := d.bounds().Min
	scale := ctm.Expansion()
	hw := st.LineWidth * scale / 2
	if hw < 0.5 {
		hw = 0.5
	}
	var dash []float64
	for _, v := range st.Dash {
		dash = append(dash, v*scale)
	}
	p.Flatten(ctm, 0.25, func(pts []coords.Point, closed bool) {
		if closed && len(pts) > 1 && pts[0] != pts[len(pts)-1] {
			pts = append(pts, pts[0])
		}
		for _, run := range dashRuns(pts, dash, st.DashPhase*scale) {
			strokeRun(r, run, hw, st, closed && len(dash) == 0, min)
		}
	})
	return d.finish(r)
}

// dashRuns splits a polyline into the "on" pieces of a dash pattern.
func dashRuns(pts []coords.Point, dash []float64, phase float64) [][]coords.Point {
	total := 0.0
	for _, v := range dash {
		total += math.Max(v, 0)
	}
	if len(dash) == 0 || total <= 0 {
		return [][]coords.Point{pts}
	}
	idx, on := 0, true
	left := dash[0]
	for phase = math.Mod(phase, total); phase > 0; {
		if phase < left {
			left -= phase
			break
		}
		phase -= left
		idx = (idx + 1) % len(dash)
		left, on = dash[idx], !on
	}
	var runs [][]coords.Point
	var cur []coords.Point
	if on {
		cur = []coords.Point{pts[0]}
	}
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		seg := math.Hypot(b.X-a.X, b.Y-a.Y)
		pos := 0.0
		for seg-pos > left {
			pos += left
			t := pos / seg
			pt := coords.Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
			if on {
				runs = append(runs, append(cur, pt))
				cur = nil
			} else {
				cur = []coords.Point{pt}
			}
			idx = (idx + 1) % len(dash)
			left, on = dash[idx], !on
		}
		left -= seg - pos
		if on {
			cur = append(cur, b)
		}
	}
	if on && len(cur) > 1 {
		runs = append(runs, cur)
	}
	return runs
}

func strokeRun(r *vector.Rasterizer, pts []coords.Point, hw float64, st *StrokeState, closed bool, min image.Point) {
	normal := func(a, b coords.Point) (coords.Point, bool) {
		dx, dy := b.X-a.X, b.Y-a.Y
		l := math.Hypot(dx, dy)
		if l == 0 {
			return coords.Point{}, false
		}
		return coords.Point{X: -dy / l * hw, Y: dx / l * hw}, true
	}
	add := func(a, b coords.Point) coords.Point { return coords.Point{X: a.X + b.X, Y: a.Y + b.Y} }
	sub := func(a, b coords.Point) coords.Point { return coords.Point{X: a.X - b.X, Y: a.Y - b.Y} }
	circle := func(c coords.Point) {
		pts := make([]coords.Point, 16)
		for i := range pts {
			a := float64(i) * math.Pi / 8
			pts[i] = coords.Point{X: c.X + hw*math.Cos(a), Y: c.Y + hw*math.Sin(a)}
		}
		polygon(r, pts, min)
	}
	var prev coords.Point
	hasPrev := false
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		n, ok := normal(a, b)
		if !ok {
			continue
		}
		polygon(r, []coords.Point{add(a, n), add(b, n), sub(b, n), sub(a, n)}, min)
		if hasPrev {
			switch st.Join {
			case JoinRound:
				circle(a)
			default:
				polygon(r, []coords.Point{a, add(a, prev), add(a, n)}, min)
				polygon(r, []coords.Point{a, sub(a, prev), sub(a, n)}, min)
			}
		}
		prev, hasPrev = n, true
	}
	if closed || len(pts) < 2 {
		return
	}
	switch st.Cap {
	case CapRound:
		circle(pts[0])
		circle(pts[len(pts)-1])
	case CapSquare:
		for _, e := range [][2]coords.Point{{pts[1], pts[0]}, {pts[len(pts)-2], pts[len(pts)-1]}} {
			n, ok := normal(e[0], e[1])
			if !ok {
				continue
			}
			// Direction along the segment, length hw.
			dir := coords.Point{X: n.Y, Y: -n.X}
			end := e[1]
			polygon(r, []coords.Point{add(end, n), add(add(end, n), dir), add(sub(end, n), dir), sub(end, n)}, min)
		}
	}
}

// paint composites color through cov and the current clip.
func (d *DrawDevice) paint(cov *image.Alpha, c color.NRGBA) {
	if clip := d.clip(); clip != nil {
		mulAlpha(cov, clip)
	}
	b := d.bounds()
	draw.DrawMask(d.target(), b, image.NewUniform(c), image.Point{}, cov, b.Min, draw.Over)
}

func mulAlpha(dst, by *image.Alpha) {
	for i := range dst.Pix {
		dst.Pix[i] = uint8(int(dst.Pix[i]) * int(by.Pix[i]) / 255)
	}
}

func (d *DrawDevice) pushClip(cov *image.Alpha) {
	if clip := d.clip(); clip != nil {
		mulAlpha(cov, clip)
	}
	d.clips = append(d.clips, cov)
}

func (d *DrawDevice) FillPath(p *Path, rule FillRule, ctm coords.Matrix, paint Paint) error {
	if d.rec != nil {
		return d.rec.FillPath(p, rule, ctm, paint)
	}
	d.paint(d.fillCoverage(p, rule, ctm), paint.NRGBA())
	return nil
}

func (d *DrawDevice) StrokePath(p *Path, st *StrokeState, ctm coords.Matrix, paint Paint) error {
	if d.rec != nil {
		return d.rec.StrokePath(p, st, ctm, paint)
	}
	d.paint(d.strokeCoverage(p, st, ctm), paint.NRGBA())
	return nil
}

func (d *DrawDevice) ClipPath(p *Path, rule FillRule, ctm coords.Matrix, scissor coords.Rect) error {
	if d.rec != nil {
		return d.rec.ClipPath(p, rule, ctm, scissor)
	}
	d.pushClip(d.fillCoverage(p, rule, ctm))
	return nil
}

func (d *DrawDevice) ClipStrokePath(p *Path, st *StrokeState, ctm coords.Matrix, scissor coords.Rect) error {
	if d.rec != nil {
		return d.rec.ClipStrokePath(p, st, ctm, scissor)
	}
	d.pushClip(d.strokeCoverage(p, st, ctm))
	return nil
}

func (d *DrawDevice) FillText(t *Text, ctm coords.Matrix, paint Paint) error {
	if d.rec != nil {
		return d.rec.FillText(t, ctm, paint)
	}
	return nil
}

func (d *DrawDevice) StrokeText(t *Text, st *StrokeState, ctm coords.Matrix, paint Paint) error {
	if d.rec != nil {
		return d.rec.StrokeText(t, st, ctm, paint)
	}
	return nil
}

func (d *DrawDevice) ClipText(t *Text, ctm coords.Matrix, scissor coords.Rect) error {
	if d.rec != nil {
		return d.rec.ClipText(t, ctm, scissor)
	}
	p := &Path{}
	for _, s := range t.Spans {
		for _, g := range s.Glyphs {
			r := s.GlyphBounds(g, coords.Identity())
			p.Rect(r.X0, r.Y0, r.Width(), r.Height())
		}
	}
	d.pushClip(d.fillCoverage(p, NonZero, ctm))
	return nil
}

func (d *DrawDevice) IgnoreText(t *Text, ctm coords.Matrix) error {
	if d.rec != nil {
		return d.rec.IgnoreText(t, ctm)
	}
	return nil
}

// imageToDevice maps image pixel space, origin top-left, through the unit
// square and ctm.
func (d *DrawDevice) imageToDevice(w, h int, ctm coords.Matrix) f64.Aff3 {
	min := d.bounds().Min
	a, b, c, dd, e, f := ctm[0], ctm[1], ctm[2], ctm[3], ctm[4]-float64(min.X), ctm[5]-float64(min.Y)
	W, H := float64(w), float64(h)
	return f64.Aff3{a / W, -c / H, c + e, b / W, -dd / H, dd + f}
}

func interpolator(img *Image) draw.Transformer {
	if img.Interpolate {
		return draw.ApproxBiLinear
	}
	return draw.NearestNeighbor
}

func (d *DrawDevice) FillImage(img *Image, ctm coords.Matrix, alpha float64) error {
	if d.rec != nil {
		return d.rec.FillImage(img, ctm, alpha)
	}
	src, err := img.NRGBA()
	if err != nil {
		return err
	}
	opts := &draw.Options{}
	if clip := d.clip(); clip != nil {
		opts.DstMask = clip
		opts.DstMaskP = d.bounds().Min
	}
	if alpha < 1 {
		opts.SrcMask = image.NewUniform(color.Alpha{A: uint8(clamp01(alpha) * 255)})
	}
	interpolator(img).Transform(d.target(), d.imageToDevice(img.Width, img.Height, ctm), src, src.Bounds(), draw.Over, opts)
	return nil
}

func (d *DrawDevice) maskCoverage(img *Image, ctm coords.Matrix) (*image.Alpha, error) {
	mask, err := img.Alpha(true)
	if err != nil {
		return nil, err
	}
	cov := image.NewAlpha(d.bounds())
	interpolator(img).Transform(cov, d.imageToDevice(img.Width, img.Height, ctm), mask, mask.Bounds(), draw.Over, nil)
	return cov, nil
}

func (d *DrawDevice) FillImageMask(img *Image, ctm coords.Matrix, paint Paint) error {
	if d.rec != nil {
		return d.rec.FillImageMask(img, ctm, paint)
	}
	cov, err := d.maskCoverage(img, ctm)
	if err != nil {
		return err
	}
	d.paint(cov, paint.NRGBA())
	return nil
}

func (d *DrawDevice) ClipImageMask(img *Image, ctm coords.Matrix, scissor coords.Rect) error {
	if d.rec != nil {
		return d.rec.ClipImageMask(img, ctm, scissor)
	}
	cov, err := d.maskCoverage(img, ctm)
	if err != nil {
		return err
	}
	d.pushClip(cov)
	return nil
}

func (d *DrawDevice) FillShade(sh *Shade, ctm coords.Matrix, alpha float64) error {
	if d.rec != nil {
		return d.rec.FillShade(sh, ctm, alpha)
	}
	inv, err := sh.Matrix.Multiply(ctm).Inverse()
	if err != nil {
		return nil
	}
	b := d.bounds()
	area := sh.Bounds(ctm)
	clip := d.clip()
	out := d.target()
	comp := make([]float64, sh.Space.Components())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5
			if !area.IsInfinite() && (px < area.X0 || px > area.X1 || py < area.Y0 || py > area.Y1) {
				continue
			}
			cov := 255
			if clip != nil {
				cov = int(clip.Pix[clip.PixOffset(x, y)])
				if cov == 0 {
					continue
				}
			}
			t, ok := sh.param(inv.Transform(coords.Point{X: px, Y: py}))
			if !ok {
				continue
			}
			for i := range comp {
				comp[i] = sh.at(i, t)
			}
			r, g, bl := sh.Space.RGB(comp)
			a := clamp01(alpha) * float64(cov) / 255
			blendPixel(out, x, y, r, g, bl, a)
		}
	}
	return nil
}

func blendPixel(img *image.RGBA, x, y int, r, g, b, a float64) {
	i := img.PixOffset(x, y)
	px := img.Pix[i : i+4 : i+4]
	for k, c := range [3]float64{r, g, b} {
		px[k] = uint8(c*255*a + float64(px[k])*(1-a) + 0.5)
	}
	px[3] = uint8(255*a + float64(px[3])*(1-a) + 0.5)
}

// param returns the interpolation parameter of an axial or radial shading
// at p, in shading space.
func (sh *Shade) param(p coords.Point) (float64, bool) {
	c := sh.Coords
	var t float64
	switch {
	case sh.Type == 2 && len(c) >= 4:
		dx, dy := c[2]-c[0], c[3]-c[1]
		den := dx*dx + dy*dy
		if den == 0 {
			return 0, false
		}
		t = ((p.X-c[0])*dx + (p.Y-c[1])*dy) / den
	case sh.Type == 3 && len(c) >= 6:
		cdx, cdy, dr := c[3]-c[0], c[4]-c[1], c[5]-c[2]
		pdx, pdy := p.X-c[0], p.Y-c[1]
		a := cdx*cdx + cdy*cdy - dr*dr
		b := pdx*cdx + pdy*cdy + c[2]*dr
		cc := pdx*pdx + pdy*pdy - c[2]*c[2]
		if a == 0 {
			if b == 0 {
				return 0, false
			}
			t = cc / (2 * b)
		} else {
			disc := b*b - a*cc
			if disc < 0 {
				return 0, false
			}
			s := math.Sqrt(disc)
			t = (b + s) / a
			if c[2]+t*dr < 0 {
				t = (b - s) / a
			}
		}
	default:
		// Other shading types fill with their first color.
		return 0, len(sh.C0) > 0
	}
	if t < 0 {
		if !sh.Extend[0] {
			return 0, false
		}
		t = 0
	}
	if t > 1 {
		if !sh.Extend[1] {
			return 0, false
		}
		t = 1
	}
	return t, true
}

func (sh *Shade) at(i int, t float64) float64 {
	var c0, c1 float64
	if i < len(sh.C0) {
		c0 = sh.C0[i]
	}
	c1 = c0
	if i < len(sh.C1) {
		c1 = sh.C1[i]
	}
	return c0 + t*(c1-c0)
}

func (d *DrawDevice) PopClip() error {
	if d.rec != nil {
		return d.rec.PopClip()
	}
	if n := len(d.clips); n > 0 {
		d.clips = d.clips[:n-1]
	}
	return nil
}

func (d *DrawDevice) BeginMask(m Mask) error {
	if d.rec != nil {
		return d.rec.BeginMask(m)
	}
	l := &layer{img: image.NewRGBA(d.bounds()), mask: true, lum: m.Luminosity}
	if m.Luminosity {
		space := m.Space
		if space == nil {
			space = DeviceGray
		}
		bg := Paint{Space: space, Color: m.Backdrop, Alpha: 1}
		if len(m.Backdrop) == 0 {
			bg.Color = make([]float64, space.Components())
		}
		l.backdrop = bg.NRGBA()
		draw.Draw(l.img, l.img.Bounds(), image.NewUniform(l.backdrop), image.Point{}, draw.Src)
	}
	d.layers = append(d.layers, l)
	return nil
}

func (d *DrawDevice) EndMask() error {
	if d.rec != nil {
		return d.rec.EndMask()
	}
	n := len(d.layers)
	if n == 0 || !d.layers[n-1].mask {
		return nil
	}
	l := d.layers[n-1]
	d.layers = d.layers[:n-1]
	cov := image.NewAlpha(d.bounds())
	for i := range cov.Pix {
		px := l.img.Pix[i*4 : i*4+4]
		if l.lum {
			cov.Pix[i] = uint8((299*int(px[0]) + 587*int(px[1]) + 114*int(px[2])) / 1000)
		} else {
			cov.Pix[i] = px[3]
		}
	}
	d.pushClip(cov)
	return nil
}

func (d *DrawDevice) BeginGroup(g Group) error {
	if d.rec != nil {
		return d.rec.BeginGroup(g)
	}
	a := g.Alpha
	if a == 0 {
		a = 1
	}
	d.layers = append(d.layers, &layer{img: image.NewRGBA(d.bounds()), alpha: a})
	return nil
}

func (d *DrawDevice) EndGroup() error {
	if d.rec != nil {
		return d.rec.EndGroup()
	}
	n := len(d.layers)
	if n == 0 || d.layers[n-1].mask {
		return nil
	}
	l := d.layers[n-1]
	d.layers = d.layers[:n-1]
	b := d.bounds()
	// Group content was clipped as it was painted.
	mask := image.NewUniform(color.Alpha{A: uint8(clamp01(l.alpha) * 255)})
	draw.DrawMask(d.target(), b, l.img, b.Min, mask, b.Min, draw.Over)
	return nil
}

func (d *DrawDevice) BeginTile(t Tile) error {
	if d.rec != nil {
		d.recDepth++
		return d.rec.BeginTile(t)
	}
	d.rec = NewListDevice()
	d.recDepth = 1
	d.tile = t
	return nil
}

func (d *DrawDevice) EndTile() error {
	if d.rec == nil {
		return nil
	}
	d.recDepth--
	if d.recDepth > 0 {
		return d.rec.EndTile()
	}
	list, t := d.rec, d.tile
	d.rec = nil
	defer list.Drop()
	return d.replayTiles(list, t)
}

// replayTiles draws every cell of the pattern whose area meets the view.
func (d *DrawDevice) replayTiles(list *ListDevice, t Tile) error {
	if t.XStep == 0 || t.YStep == 0 {
		return nil
	}
	inv, err := t.CTM.Inverse()
	if err != nil {
		return nil
	}
	view := t.View
	if view.IsInfinite() || view.IsEmpty() {
		dev := d.bounds()
		view = coords.NewRect(float64(dev.Min.X), float64(dev.Min.Y), float64(dev.Max.X), float64(dev.Max.Y)).Transform(inv)
	}
	xs, ys := math.Abs(t.XStep), math.Abs(t.YStep)
	x0 := math.Floor((view.X0 - t.Area.X1) / xs)
	x1 := math.Ceil((view.X1 - t.Area.X0) / xs)
	y0 := math.Floor((view.Y0 - t.Area.Y1) / ys)
	y1 := math.Ceil((view.Y1 - t.Area.Y0) / ys)
	if (x1-x0+1)*(y1-y0+1) > maxTiles {
		return nil
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			shift := inv.Multiply(coords.Translate(x*xs, y*ys)).Multiply(t.CTM)
			if err := list.Replay(d, shift, coords.InfiniteRect, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *DrawDevice) Close() error { return nil }

func (d *DrawDevice) Drop() {
	d.layers, d.clips, d.rec = nil, nil, nil
}

var _ Device = (*DrawDevice)(nil)
