package device

import (
	"github.com/wudi/pdfcore/coords"
)

// BBoxDevice accumulates the area marked by painting events, clipped to
// the current clip. Mask and tile contents do not mark the page directly;
// a tile marks its whole view.
type BBoxDevice struct {
	NullDevice
	// Result is the accumulated rectangle, coords.EmptyRect until
	// something is painted.
	Result coords.Rect
	clips  []coords.Rect
	ignore int
	// Events counts the painting events that marked the result.
	Events int
}

func NewBBoxDevice() *BBoxDevice {
	return &BBoxDevice{Result: coords.EmptyRect}
}

func (d *BBoxDevice) clip() coords.Rect {
	if n := len(d.clips); n > 0 {
		return d.clips[n-1]
	}
	return coords.InfiniteRect
}

func (d *BBoxDevice) add(r coords.Rect) {
	if d.ignore > 0 {
		return
	}
	r = r.Intersect(d.clip())
	if r.IsEmpty() || r.IsInfinite() {
		return
	}
	d.Result = d.Result.Union(r)
	d.Events++
}

func (d *BBoxDevice) push(r coords.Rect) {
	d.clips = append(d.clips, r.Intersect(d.clip()))
}

func (d *BBoxDevice) FillPath(p *Path, _ FillRule, ctm coords.Matrix, _ Paint) error {
	d.add(p.Bounds(ctm))
	return nil
}

func (d *BBoxDevice) StrokePath(p *Path, st *StrokeState, ctm coords.Matrix, _ Paint) error {
	d.add(p.StrokeBounds(st, ctm))
	return nil
}

func (d *BBoxDevice) ClipPath(p *Path, _ FillRule, ctm coords.Matrix, scissor coords.Rect) error {
	d.push(p.Bounds(ctm).Intersect(scissor))
	return nil
}

func (d *BBoxDevice) ClipStrokePath(p *Path, st *StrokeState, ctm coords.Matrix, scissor coords.Rect) error {
	d.push(p.StrokeBounds(st, ctm).Intersect(scissor))
	return nil
}

func (d *BBoxDevice) FillText(t *Text, ctm coords.Matrix, _ Paint) error {
	d.add(t.Bounds(ctm))
	return nil
}

func (d *BBoxDevice) StrokeText(t *Text, st *StrokeState, ctm coords.Matrix, _ Paint) error {
	r := t.Bounds(ctm)
	if st != nil {
		r = r.Expand(st.LineWidth / 2 * ctm.Expansion())
	}
	d.add(r)
	return nil
}

func (d *BBoxDevice) ClipText(t *Text, ctm coords.Matrix, scissor coords.Rect) error {
	d.push(t.Bounds(ctm).Intersect(scissor))
	return nil
}

func (d *BBoxDevice) FillImage(img *Image, ctm coords.Matrix, _ float64) error {
	d.add(img.Bounds(ctm))
	return nil
}

func (d *BBoxDevice) FillImageMask(img *Image, ctm coords.Matrix, _ Paint) error {
	d.add(img.Bounds(ctm))
	return nil
}

func (d *BBoxDevice) ClipImageMask(img *Image, ctm coords.Matrix, scissor coords.Rect) error {
	d.push(img.Bounds(ctm).Intersect(scissor))
	return nil
}

func (d *BBoxDevice) FillShade(sh *Shade, ctm coords.Matrix, _ float64) error {
	r := sh.Bounds(ctm)
	if r.IsInfinite() {
		// An unbounded shading covers the clip.
		r = d.clip()
	}
	d.add(r)
	return nil
}

func (d *BBoxDevice) PopClip() error {
	if n := len(d.clips); n > 0 {
		d.clips = d.clips[:n-1]
	}
	return nil
}

func (d *BBoxDevice) BeginMask(m Mask) error {
	d.ignore++
	return nil
}

// EndMask leaves the mask content; the mask itself clips to its area.
func (d *BBoxDevice) EndMask() error {
	if d.ignore > 0 {
		d.ignore--
	}
	d.push(coords.InfiniteRect)
	return nil
}

func (d *BBoxDevice) BeginTile(t Tile) error {
	d.add(t.View.Transform(t.CTM))
	d.ignore++
	return nil
}

func (d *BBoxDevice) EndTile() error {
	if d.ignore > 0 {
		d.ignore--
	}
	return nil
}

var _ Device = (*BBoxDevice)(nil)
