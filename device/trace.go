package device

import (
	"fmt"

	"github.com/wudi/pdfcore/coords"
	"github.com/wudi/pdfcore/observability"
)

// TraceDevice logs every event at debug level and forwards it to Next
// when set.
type TraceDevice struct {
	Logger observability.Logger
	Next   Device
	depth  int
}

func NewTraceDevice(logger observability.Logger, next Device) *TraceDevice {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &TraceDevice{Logger: logger, Next: next}
}

func rectString(r coords.Rect) string {
	switch {
	case r.IsEmpty():
		return "empty"
	case r.IsInfinite():
		return "infinite"
	}
	return fmt.Sprintf("%g %g %g %g", r.X0, r.Y0, r.X1, r.Y1)
}

func (d *TraceDevice) log(event string, fields ...observability.Field) {
	fields = append(fields, observability.Int("depth", d.depth))
	d.Logger.Debug(event, fields...)
}

func paintFields(p Paint) []observability.Field {
	name := "none"
	if p.Space != nil {
		name = p.Space.Name
	}
	return []observability.Field{
		observability.String("colorspace", name),
		observability.Any("color", p.Color),
		observability.Any("alpha", p.Alpha),
	}
}

func (d *TraceDevice) FillPath(p *Path, rule FillRule, ctm coords.Matrix, paint Paint) error {
	d.log("fill_path", append(paintFields(paint),
		observability.String("rule", rule.String()),
		observability.String("bbox", rectString(p.Bounds(ctm))))...)
	if d.Next != nil {
		return d.Next.FillPath(p, rule, ctm, paint)
	}
	return nil
}

func (d *TraceDevice) StrokePath(p *Path, st *StrokeState, ctm coords.Matrix, paint Paint) error {
	d.log("stroke_path", append(paintFields(paint),
		observability.Any("linewidth", st.LineWidth),
		observability.String("bbox", rectString(p.StrokeBounds(st, ctm))))...)
	if d.Next != nil {
		return d.Next.StrokePath(p, st, ctm, paint)
	}
	return nil
}

func (d *TraceDevice) ClipPath(p *Path, rule FillRule, ctm coords.Matrix, scissor coords.Rect) error {
	d.log("clip_path", observability.String("rule", rule.String()), observability.String("bbox", rectString(p.Bounds(ctm))))
	d.depth++
	if d.Next != nil {
		return d.Next.ClipPath(p, rule, ctm, scissor)
	}
	return nil
}

func (d *TraceDevice) ClipStrokePath(p *Path, st *StrokeState, ctm coords.Matrix, scissor coords.Rect) error {
	d.log("clip_stroke_path", observability.String("bbox", rectString(p.StrokeBounds(st, ctm))))
	d.depth++
	if d.Next != nil {
		return d.Next.ClipStrokePath(p, st, ctm, scissor)
	}
	return nil
}

func (d *TraceDevice) FillText(t *Text, ctm coords.Matrix, paint Paint) error {
	d.log("fill_text", append(paintFields(paint), observability.String("text", t.String()))...)
	if d.Next != nil {
		return d.Next.FillText(t, ctm, paint)
	}
	return nil
}

func (d *TraceDevice) StrokeText(t *Text, st *StrokeState, ctm coords.Matrix, paint Paint) error {
	d.log("stroke_text", append(paintFields(paint), observability.String("text", t.String()))...)
	if d.Next != nil {
		return d.Next.StrokeText(t, st, ctm, paint)
	}
	return nil
}

func (d *TraceDevice) ClipText(t *Text, ctm coords.Matrix, scissor coords.Rect) error {
	d.log("clip_text", observability.String("text", t.String()))
	d.depth++
	if d.Next != nil {
		return d.Next.ClipText(t, ctm, scissor)
	}
	return nil
}

func (d *TraceDevice) IgnoreText(t *Text, ctm coords.Matrix) error {
	d.log("ignore_text", observability.String("text", t.String()))
	if d.Next != nil {
		return d.Next.IgnoreText(t, ctm)
	}
	return nil
}

func (d *TraceDevice) FillImage(img *Image, ctm coords.Matrix, alpha float64) error {
	d.log("fill_image", observability.Int("width", img.Width), observability.Int("height", img.Height),
		observability.String("bbox", rectString(img.Bounds(ctm))))
	if d.Next != nil {
		return d.Next.FillImage(img, ctm, alpha)
	}
	return nil
}

func (d *TraceDevice) FillImageMask(img *Image, ctm coords.Matrix, paint Paint) error {
	d.log("fill_image_mask", append(paintFields(paint), observability.String("bbox", rectString(img.Bounds(ctm))))...)
	if d.Next != nil {
		return d.Next.FillImageMask(img, ctm, paint)
	}
	return nil
}

func (d *TraceDevice) ClipImageMask(img *Image, ctm coords.Matrix, scissor coords.Rect) error {
	d.log("clip_image_mask", observability.String("bbox", rectString(img.Bounds(ctm))))
	d.depth++
	if d.Next != nil {
		return d.Next.ClipImageMask(img, ctm, scissor)
	}
	return nil
}

func (d *TraceDevice) FillShade(sh *Shade, ctm coords.Matrix, alpha float64) error {
	d.log("fill_shade", observability.Int("type", sh.Type), observability.String("bbox", rectString(sh.Bounds(ctm))))
	if d.Next != nil {
		return d.Next.FillShade(sh, ctm, alpha)
	}
	return nil
}

func (d *TraceDevice) PopClip() error {
	if d.depth > 0 {
		d.depth--
	}
	d.log("pop_clip")
	if d.Next != nil {
		return d.Next.PopClip()
	}
	return nil
}

func (d *TraceDevice) BeginMask(m Mask) error {
	d.log("begin_mask", observability.Any("luminosity", m.Luminosity), observability.String("area", rectString(m.Area)))
	d.depth++
	if d.Next != nil {
		return d.Next.BeginMask(m)
	}
	return nil
}

func (d *TraceDevice) EndMask() error {
	d.log("end_mask")
	if d.Next != nil {
		return d.Next.EndMask()
	}
	return nil
}

func (d *TraceDevice) BeginGroup(g Group) error {
	d.log("begin_group", observability.Any("isolated", g.Isolated), observability.Any("knockout", g.Knockout),
		observability.String("blend", g.Blend), observability.Any("alpha", g.Alpha))
	d.depth++
	if d.Next != nil {
		return d.Next.BeginGroup(g)
	}
	return nil
}

func (d *TraceDevice) EndGroup() error {
	if d.depth > 0 {
		d.depth--
	}
	d.log("end_group")
	if d.Next != nil {
		return d.Next.EndGroup()
	}
	return nil
}

func (d *TraceDevice) BeginTile(t Tile) error {
	d.log("begin_tile", observability.Any("xstep", t.XStep), observability.Any("ystep", t.YStep),
		observability.String("view", rectString(t.View)))
	d.depth++
	if d.Next != nil {
		return d.Next.BeginTile(t)
	}
	return nil
}

func (d *TraceDevice) EndTile() error {
	if d.depth > 0 {
		d.depth--
	}
	d.log("end_tile")
	if d.Next != nil {
		return d.Next.EndTile()
	}
	return nil
}

func (d *TraceDevice) Close() error {
	d.log("close")
	if d.Next != nil {
		return d.Next.Close()
	}
	return nil
}

func (d *TraceDevice) Drop() {
	if d.Next != nil {
		d.Next.Drop()
	}
}

var _ Device = (*TraceDevice)(nil)
