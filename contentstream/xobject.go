package contentstream

import (
	"fmt"

	"github.com/wudi/pdfcore/coords"
	"github.com/wudi/pdfcore/device"
	"github.com/wudi/pdfcore/fonts"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/observability"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/resources"
)

// xobject implements Do.
func (p *Processor) xobject(name raw.Object) error {
	id, ok := raw.AsName(name)
	if !ok {
		return fmt.Errorf("XObject name is a %s", name.Type())
	}
	res, err := p.res.Lookup(resources.CategoryXObject, id)
	if err != nil {
		return err
	}
	st, ok := raw.AsStream(res.Object)
	if !ok {
		return recovery.Errorf(recovery.KindSemantic, "xobject", "/%s is a %s", names.Default().String(id), res.Object.Type())
	}
	if res.Ref.Num > 0 && st.Ref.Num == 0 {
		st.Ref = res.Ref
	}
	subtype, _ := raw.AsName(p.doc.Resolve(get(st.Dict, names.Subtype)))
	switch subtype {
	case names.Image:
		img, err := p.loadImage(st)
		if err != nil {
			return err
		}
		return p.paintImage(img)
	case names.Form:
		return p.runForm(st, formGroup)
	case names.PS:
		return nil
	}
	return recovery.Errorf(recovery.KindSemantic, "xobject", "/%s has subtype /%s", names.Default().String(id), names.Default().String(subtype))
}

// inline implements BI ... ID ... EI.
func (p *Processor) inline(img *InlineImage) error {
	if img == nil {
		return fmt.Errorf("inline image without data")
	}
	saved := p.state
	p.state = StateInlineImage
	defer func() { p.state = saved }()
	st := raw.NewStream(expandInline(img.Dict), img.Data)
	dimg, err := p.decodeImage(st, false)
	if err != nil {
		return err
	}
	return p.paintImage(dimg)
}

func (p *Processor) paintImage(img *device.Image) error {
	g := p.top()
	ctm := g.ctm
	area := img.Bounds(ctm)
	return p.scoped(area, func() error {
		if !img.ImageMask {
			return p.dev.FillImage(img, ctm, g.fillAlpha)
		}
		if pat := g.fill.pattern; pat != nil {
			if err := p.dev.ClipImageMask(img, ctm, coords.InfiniteRect); err != nil {
				return err
			}
			return joinErr(p.paintPattern(pat, g.fill, area, g.fillAlpha), p.dev.PopClip())
		}
		return p.dev.FillImageMask(img, ctm, g.fill.paint(g.fillAlpha))
	})
}

// shade implements sh.
func (p *Processor) shade(name raw.Object) error {
	id, ok := raw.AsName(name)
	if !ok {
		return fmt.Errorf("shading name is a %s", name.Type())
	}
	res, err := p.res.Lookup(resources.CategoryShading, id)
	if err != nil {
		return err
	}
	sh, err := p.loadShade(res.Ref, res.Object)
	if err != nil {
		return err
	}
	g := p.top()
	ctm := g.ctm
	area := sh.Bounds(ctm)
	return p.scoped(area, func() error {
		return p.dev.FillShade(sh, ctm, g.fillAlpha)
	})
}

// formMode selects what runForm does with a /Group entry.
type formMode int

const (
	formGroup formMode = iota
	formMask
	formPattern
	formGlyph
)

// runForm executes a form-like stream: a Form XObject, a soft mask group,
// a tiling pattern cell or a Type 3 glyph procedure.
func (p *Processor) runForm(st *raw.StreamObj, mode formMode) error {
	return p.runStream(st, mode, nil, nil)
}

// runStream is runForm with explicit resources and matrix. A nil matrix
// means the stream's /Matrix concatenated to the CTM.
func (p *Processor) runStream(st *raw.StreamObj, mode formMode, res *raw.DictObj, ctm *coords.Matrix) error {
	ref := st.Ref
	if ref.Num > 0 {
		if p.forms.Test(uint(ref.Num)) {
			return recovery.Errorf(recovery.KindReference, "xobject", "form %s invokes itself", ref)
		}
		p.forms.Set(uint(ref.Num))
		defer p.forms.Clear(uint(ref.Num))
	}
	if limit := p.doc.Config().Limits.MaxXObjectDepth; limit > 0 && p.depth >= limit {
		return recovery.Errorf(recovery.KindLimit, "xobject", "forms nested deeper than %d", limit)
	}
	p.depth++
	defer func() { p.depth-- }()

	data, err := p.doc.DecodeStream(p.ctx, st)
	if err != nil {
		return err
	}
	d := st.Dict
	if res == nil && mode != formGlyph {
		res, _ = raw.AsDict(p.doc.Resolve(get(d, names.Resources)))
	}
	p.logger.Debug("form", observability.Object(ref.Num, ref.Gen), observability.Int("depth", p.depth))

	p.save()
	level := len(p.gs) - 1
	g := p.top()
	if ctm != nil {
		g.ctm = *ctm
	} else {
		g.ctm = g.ctm.Concat(p.matrixOf(d))
	}
	bbox, hasBBox := p.rectOf(d, names.BBox)
	if mode != formGlyph && hasBBox {
		clip := &device.Path{}
		clip.Rect(bbox.X0, bbox.Y0, bbox.Width(), bbox.Height())
		if err := p.dev.ClipPath(clip, device.NonZero, g.ctm, coords.InfiniteRect); err != nil {
			p.restore()
			return err
		}
		g.clips++
	}

	area := coords.InfiniteRect
	if hasBBox {
		area = bbox.Transform(g.ctm)
	}
	grp, grouped := p.transparencyGroup(d)
	if grouped && mode == formGroup {
		// The group itself carries alpha, blend and mask; its content
		// starts from a clean transparency state.
		err = p.scoped(area, func() error {
			grp.Area = area
			grp.Blend, grp.Alpha = "Normal", p.top().fillAlpha
			if err := p.dev.BeginGroup(grp); err != nil {
				return err
			}
			g := p.top()
			g.fillAlpha, g.strokeAlpha, g.blend, g.mask = 1, 1, "Normal", nil
			return joinErr(p.nested(data, res, g.ctm, level), p.dev.EndGroup())
		})
	} else {
		err = p.nested(data, res, g.ctm, level)
	}
	p.unwind(level)
	return joinErr(err, p.restore())
}

// nested runs content as a child stream at gstate level, with res pushed
// and the pattern space set to base.
func (p *Processor) nested(content []byte, res *raw.DictObj, base coords.Matrix, level int) error {
	type saved struct {
		floor    int
		base     coords.Matrix
		path     *device.Path
		clip     bool
		state    State
		tm, tlm  coords.Matrix
		clipText *device.Text
		compat   int
	}
	s := saved{p.floor, p.base, p.path, p.clip, p.state, p.tm, p.tlm, p.clipText, p.compat}
	p.floor, p.base, p.path, p.clip, p.state = level, base, &device.Path{}, false, StatePage
	p.clipText, p.compat = nil, 0
	p.res.Push(res)
	defer func() {
		p.res.Pop()
		p.floor, p.base, p.path, p.clip, p.state = s.floor, s.base, s.path, s.clip, s.state
		p.tm, p.tlm, p.clipText, p.compat = s.tm, s.tlm, s.clipText, s.compat
	}()
	err := p.run(content, false)
	p.unwind(level)
	return err
}

// runGlyph executes a Type 3 glyph procedure with the given matrix.
func (p *Processor) runGlyph(st *raw.StreamObj, res *raw.DictObj, m coords.Matrix) error {
	return p.runStream(st, formGlyph, res, &m)
}

// transparencyGroup reads a /Group entry with /S /Transparency.
func (p *Processor) transparencyGroup(d *raw.DictObj) (device.Group, bool) {
	gd, ok := raw.AsDict(p.doc.Resolve(get(d, names.Group)))
	if !ok || !raw.IsName(p.doc.Resolve(get(gd, names.S)), names.Transparency) {
		return device.Group{}, false
	}
	g := device.Group{Blend: "Normal", Alpha: 1}
	g.Isolated, _ = raw.AsBool(p.doc.Resolve(get(gd, names.I)))
	g.Knockout, _ = raw.AsBool(p.doc.Resolve(get(gd, names.K)))
	if cs, ok := gd.Get(names.CS); ok {
		if space, err := p.parseSpace(cs, 0); err == nil {
			g.Space = space
		}
	}
	return g, true
}

// runMask sends a soft mask: its group content between BeginMask and
// EndMask. The caller pops the mask with PopClip after painting.
func (p *Processor) runMask(m *softMask, area coords.Rect) error {
	mask := device.Mask{Area: area, Luminosity: m.luminosity, Backdrop: m.backdrop}
	if g, ok := p.transparencyGroup(m.group.Dict); ok {
		mask.Space = g.Space
	}
	if err := p.dev.BeginMask(mask); err != nil {
		return err
	}
	// The mask content runs from the state gs captured, unmasked.
	p.save()
	level := len(p.gs) - 1
	g := p.top()
	g.ctm, g.mask = m.ctm, nil
	g.fillAlpha, g.strokeAlpha, g.blend = 1, 1, "Normal"
	oldFloor := p.floor
	p.floor = level
	err := p.runForm(m.group, formMask)
	p.unwind(level)
	p.floor = oldFloor
	err = joinErr(err, p.restore())
	return joinErr(err, p.dev.EndMask())
}

// paintPattern covers area, already clipped by the caller, with pat.
func (p *Processor) paintPattern(pat *pattern, m material, area coords.Rect, alpha float64) error {
	if pat.shade != nil {
		sh := *pat.shade
		sh.Matrix = pat.matrix
		if pat.gs != nil {
			if ca, ok := raw.AsFloat(p.doc.Resolve(get(pat.gs, names.FillAlpha))); ok {
				alpha *= clamp01(ca)
			}
		}
		return p.dev.FillShade(&sh, p.base, alpha)
	}
	ctm := pat.matrix.Multiply(p.base)
	inv, err := ctm.Inverse()
	if err != nil {
		return nil
	}
	view := area
	if !view.IsInfinite() {
		view = area.Transform(inv)
	}
	tile := device.Tile{Area: pat.bbox, View: view, XStep: pat.xstep, YStep: pat.ystep, CTM: ctm}
	if err := p.dev.BeginTile(tile); err != nil {
		return err
	}
	p.save()
	level := len(p.gs) - 1
	g := p.top()
	g.ctm = ctm
	g.mask, g.fillAlpha, g.strokeAlpha, g.blend = nil, alpha, alpha, "Normal"
	if pat.uncolored {
		base := m.space.Base
		if base == nil {
			base = device.DeviceGray
		}
		g.fill = material{space: base, color: m.color}
		g.line = g.fill
		g.locked = true
	} else {
		g.fill = deviceMaterial(device.DeviceGray)
		g.line = deviceMaterial(device.DeviceGray)
	}
	oldFloor := p.floor
	p.floor = level
	err = p.runStream(pat.stream, formPattern, pat.resources, &ctm)
	p.unwind(level)
	p.floor = oldFloor
	err = joinErr(err, p.restore())
	return joinErr(err, p.dev.EndTile())
}

// extGState implements gs.
func (p *Processor) extGState(name raw.Object) error {
	id, ok := raw.AsName(name)
	if !ok {
		return fmt.Errorf("ExtGState name is a %s", name.Type())
	}
	d, _, err := p.res.LookupDict(resources.CategoryExtGState, id)
	if err != nil {
		return err
	}
	g := p.top()
	var firstErr error
	d.Each(func(k names.ID, v raw.Object) bool {
		v = p.doc.Resolve(v)
		switch k {
		case names.LW:
			g.stroke.LineWidth = max(num(v), 0)
		case names.LC:
			g.stroke.Cap = device.LineCap(min(max(int(num(v)), 0), 2))
		case names.LJ:
			g.stroke.Join = device.LineJoin(min(max(int(num(v)), 0), 2))
		case names.ML:
			g.stroke.MiterLimit = max(num(v), 1)
		case names.D:
			if arr, ok := raw.AsArray(v); ok && arr.Len() == 2 {
				if err := p.setDash(g, arr.At(0), p.doc.Resolve(arr.At(1))); err != nil && firstErr == nil {
					firstErr = err
				}
			}
		case names.FL:
			g.flatness = min(max(num(v), 0), 100)
		case names.Font:
			if arr, ok := raw.AsArray(v); ok && arr.Len() == 2 {
				p.fontFromRef(g, arr.At(0), num(p.doc.Resolve(arr.At(1))))
			}
		case names.CA:
			g.strokeAlpha = clamp01(num(v))
		case names.FillAlpha:
			g.fillAlpha = clamp01(num(v))
		case names.BM:
			if arr, ok := raw.AsArray(v); ok && arr.Len() > 0 {
				v = p.doc.Resolve(arr.At(0))
			}
			if bm, ok := raw.AsName(v); ok {
				g.blend = names.Default().String(bm)
				if g.blend == "Compatible" {
					g.blend = "Normal"
				}
			}
		case names.SMask:
			g.mask = p.softMask(v, g.ctm)
		}
		return true
	})
	return firstErr
}

// fontFromRef sets the font of an ExtGState /Font entry.
func (p *Processor) fontFromRef(g *gstate, o raw.Object, size float64) {
	ref, _ := raw.AsRef(o)
	f, err := fonts.Load(p.ctx, p.doc, ref, o)
	if err != nil {
		p.warn("ExtGState font: %v", err)
		return
	}
	g.text.font, g.text.size = f, size
}

func (p *Processor) softMask(v raw.Object, ctm coords.Matrix) *softMask {
	d, ok := raw.AsDict(v)
	if !ok {
		// /None or anything unusable clears the mask.
		return nil
	}
	group, ok := raw.AsStream(p.doc.Resolve(get(d, names.G)))
	if !ok {
		p.warn("soft mask without group")
		return nil
	}
	m := &softMask{group: group, ctm: ctm}
	m.luminosity = raw.IsName(p.doc.Resolve(get(d, names.S)), names.Luminosity)
	if arr, ok := raw.AsArray(p.doc.Resolve(get(d, names.BC))); ok {
		m.backdrop, _ = raw.Floats(arr)
	}
	return m
}

func clamp01(v float64) float64 { return min(max(v, 0), 1) }
