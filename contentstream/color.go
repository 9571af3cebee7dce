package contentstream

import (
	"fmt"
	"math"

	"github.com/wudi/pdfcore/cmm"
	"github.com/wudi/pdfcore/coords"
	"github.com/wudi/pdfcore/device"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/observability"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/resources"
)

// maxSpaceNesting bounds color spaces built on other color spaces.
const maxSpaceNesting = 8

var patternSpace = &device.ColorSpace{Family: device.PatternSpace, Name: "Pattern"}

func deviceSpace(id names.ID) (*device.ColorSpace, bool) {
	switch id {
	case names.DeviceGray, names.G:
		return device.DeviceGray, true
	case names.DeviceRGB, names.RGB:
		return device.DeviceRGB, true
	case names.DeviceCMYK, names.CMYK:
		return device.DeviceCMYK, true
	case names.Pattern:
		return patternSpace, true
	}
	return nil, false
}

// namedSpace resolves the operand of CS/cs or an image /ColorSpace: a
// device family name, a resource name, or an inline array.
func (p *Processor) namedSpace(o raw.Object) (*device.ColorSpace, error) {
	id, ok := raw.AsName(o)
	if !ok {
		return p.parseSpace(o, 0)
	}
	if cs, ok := deviceSpace(id); ok {
		return cs, nil
	}
	res, err := p.res.Lookup(resources.CategoryColorSpace, id)
	if err != nil {
		return nil, err
	}
	v, err := p.doc.Memo(res.Ref, func() (any, int64, error) {
		cs, err := p.parseSpace(res.Object, 0)
		if err != nil {
			return nil, 0, err
		}
		return cs, int64(64 + len(cs.Lookup)), nil
	})
	if err != nil {
		return nil, err
	}
	if cs, ok := v.(*device.ColorSpace); ok {
		return cs, nil
	}
	return p.parseSpace(res.Object, 0)
}

func (p *Processor) parseSpace(o raw.Object, depth int) (*device.ColorSpace, error) {
	if depth > maxSpaceNesting {
		return nil, recovery.Errorf(recovery.KindLimit, "colorspace", "color spaces nested too deeply")
	}
	o = p.doc.Resolve(o)
	if id, ok := raw.AsName(o); ok {
		if cs, ok := deviceSpace(id); ok {
			return cs, nil
		}
		return nil, recovery.Errorf(recovery.KindSemantic, "colorspace", "unknown color space /%s", names.Default().String(id))
	}
	arr, ok := raw.AsArray(o)
	if !ok || arr.Len() == 0 {
		return nil, recovery.Errorf(recovery.KindSemantic, "colorspace", "color space is a %s", o.Type())
	}
	family, _ := raw.AsName(p.doc.Resolve(arr.At(0)))
	arg := func(i int) raw.Object {
		if i < arr.Len() {
			return p.doc.Resolve(arr.At(i))
		}
		return raw.Null
	}
	switch family {
	case names.CalGray:
		return &device.ColorSpace{Family: device.Gray, N: 1, Name: "CalGray"}, nil
	case names.CalRGB:
		return &device.ColorSpace{Family: device.RGB, N: 3, Name: "CalRGB"}, nil
	case names.Lab:
		return &device.ColorSpace{Family: device.Lab, N: 3, Name: "Lab"}, nil
	case names.ICCBased:
		st, ok := raw.AsStream(arg(1))
		if !ok {
			return nil, recovery.Errorf(recovery.KindSemantic, "colorspace", "ICCBased without profile stream")
		}
		n, _ := raw.AsInt(p.doc.Resolve(get(st.Dict, names.N)))
		cs := &device.ColorSpace{Family: device.ICC, N: int(n), Name: "ICCBased"}
		if alt, ok := st.Dict.Get(names.Alternate); ok {
			if base, err := p.parseSpace(alt, depth+1); err == nil {
				cs.Base = base
			}
		}
		if cs.N != 1 && cs.N != 3 && cs.N != 4 {
			if cs.Base == nil {
				return nil, recovery.Errorf(recovery.KindSemantic, "colorspace", "ICCBased with %d components", n)
			}
			cs.N = cs.Base.Components()
		}
		if tr := p.iccProfile(st); tr != nil && tr.Components() == cs.N {
			cs.Profile = tr
		}
		return cs, nil
	case names.Indexed, names.I:
		base, err := p.parseSpace(arr.At(1), depth+1)
		if err != nil {
			return nil, err
		}
		hival, _ := raw.AsInt(arg(2))
		if hival < 0 || hival > 255 {
			return nil, recovery.Errorf(recovery.KindSemantic, "colorspace", "Indexed hival %d", hival)
		}
		cs := &device.ColorSpace{Family: device.Indexed, N: 1, Name: "Indexed", Base: base, HiVal: int(hival)}
		switch v := arg(3).(type) {
		case raw.StringObj:
			cs.Lookup = v.Bytes
		case *raw.StreamObj:
			data, err := p.doc.DecodeStream(p.ctx, v)
			if err != nil {
				return nil, err
			}
			cs.Lookup = data
		}
		return cs, nil
	case names.Separation:
		base, err := p.parseSpace(arr.At(2), depth+1)
		if err != nil {
			return nil, err
		}
		name := "Separation"
		if id, ok := raw.AsName(arg(1)); ok {
			name = names.Default().String(id)
		}
		return &device.ColorSpace{Family: device.Separation, N: 1, Name: name, Base: base}, nil
	case names.DeviceN:
		colorants, ok := raw.AsArray(arg(1))
		if !ok || colorants.Len() == 0 {
			return nil, recovery.Errorf(recovery.KindSemantic, "colorspace", "DeviceN without colorants")
		}
		base, err := p.parseSpace(arr.At(2), depth+1)
		if err != nil {
			return nil, err
		}
		return &device.ColorSpace{Family: device.DeviceN, N: colorants.Len(), Name: "DeviceN", Base: base}, nil
	case names.Pattern:
		cs := &device.ColorSpace{Family: device.PatternSpace, Name: "Pattern"}
		if arr.Len() > 1 {
			base, err := p.parseSpace(arr.At(1), depth+1)
			if err != nil {
				return nil, err
			}
			cs.Base, cs.N = base, base.Components()
		}
		return cs, nil
	}
	if cs, ok := deviceSpace(family); ok {
		return cs, nil
	}
	return nil, recovery.Errorf(recovery.KindSemantic, "colorspace", "unknown color space family /%s", names.Default().String(family))
}

// setSpace implements CS and cs.
func (p *Processor) setSpace(m *material, o raw.Object) error {
	cs, err := p.namedSpace(o)
	if err != nil {
		return err
	}
	*m = material{space: cs, color: cs.Initial()}
	return nil
}

// setColor implements SC, SCN, sc and scn: numeric components, followed by
// a pattern name in Pattern spaces.
func (p *Processor) setColor(m *material, operands []raw.Object) error {
	if m.space.Family == device.PatternSpace {
		if len(operands) == 0 {
			return fmt.Errorf("pattern color without a name")
		}
		id, ok := raw.AsName(operands[len(operands)-1])
		if !ok {
			return fmt.Errorf("pattern color without a name")
		}
		pat, err := p.loadPattern(id)
		if err != nil {
			return err
		}
		m.pattern = pat
		m.color = floats(operands[:len(operands)-1])
		return nil
	}
	v := floats(operands)
	if n := m.space.Components(); len(v) != n {
		return fmt.Errorf("%d color components for %s, want %d", len(v), m.space.Name, n)
	}
	m.color, m.pattern = v, nil
	return nil
}

// setDevice implements g, rg and k.
func setDevice(m *material, cs *device.ColorSpace, operands []raw.Object) {
	*m = material{space: cs, color: floats(operands)}
}

func floats(objs []raw.Object) []float64 {
	out := make([]float64, 0, len(objs))
	for _, o := range objs {
		if f, ok := raw.AsFloat(o); ok {
			out = append(out, f)
		}
	}
	return out
}

// pattern is a loaded tiling or shading pattern.
type pattern struct {
	ref    raw.ObjectRef
	matrix coords.Matrix

	// Tiling patterns.
	tiling    bool
	uncolored bool
	stream    *raw.StreamObj
	bbox      coords.Rect
	xstep     float64
	ystep     float64
	resources *raw.DictObj

	// Shading patterns.
	shade *device.Shade
	gs    *raw.DictObj
}

func (p *Processor) loadPattern(id names.ID) (*pattern, error) {
	res, err := p.res.Lookup(resources.CategoryPattern, id)
	if err != nil {
		return nil, err
	}
	v, err := p.doc.Memo(res.Ref, func() (any, int64, error) {
		pat, err := p.parsePattern(res)
		if err != nil {
			return nil, 0, err
		}
		return pat, 256, nil
	})
	if err != nil {
		return nil, err
	}
	if pat, ok := v.(*pattern); ok {
		return pat, nil
	}
	return p.parsePattern(res)
}

func (p *Processor) parsePattern(res resources.Resource) (*pattern, error) {
	obj := p.doc.Resolve(res.Object)
	d, ok := raw.AsDict(obj)
	if !ok {
		return nil, recovery.Errorf(recovery.KindSemantic, "pattern", "pattern is a %s", obj.Type())
	}
	pat := &pattern{ref: res.Ref, matrix: p.matrixOf(d)}
	kind, _ := raw.AsInt(p.doc.Resolve(get(d, names.PatternType)))
	switch kind {
	case 1:
		st, ok := raw.AsStream(obj)
		if !ok {
			return nil, recovery.Errorf(recovery.KindSemantic, "pattern", "tiling pattern is not a stream")
		}
		pat.tiling, pat.stream = true, st
		paint, _ := raw.AsInt(p.doc.Resolve(get(d, names.PaintType)))
		pat.uncolored = paint == 2
		bbox, ok := p.rectOf(d, names.BBox)
		if !ok || bbox.IsEmpty() {
			return nil, recovery.Errorf(recovery.KindSemantic, "pattern", "tiling pattern without /BBox")
		}
		pat.bbox = bbox
		pat.xstep, _ = raw.AsFloat(p.doc.Resolve(get(d, names.XStep)))
		pat.ystep, _ = raw.AsFloat(p.doc.Resolve(get(d, names.YStep)))
		if pat.xstep == 0 || pat.ystep == 0 {
			return nil, recovery.Errorf(recovery.KindSemantic, "pattern", "tiling pattern with zero step")
		}
		pat.resources, _ = raw.AsDict(p.doc.Resolve(get(d, names.Resources)))
	case 2:
		ref, _ := raw.AsRef(get(d, names.Shading))
		sh, err := p.loadShade(ref, get(d, names.Shading))
		if err != nil {
			return nil, err
		}
		pat.shade = sh
		pat.gs, _ = raw.AsDict(p.doc.Resolve(get(d, names.ExtGState)))
	default:
		return nil, recovery.Errorf(recovery.KindSemantic, "pattern", "unknown pattern type %d", kind)
	}
	return pat, nil
}

func (p *Processor) matrixOf(d *raw.DictObj) coords.Matrix {
	if arr, ok := raw.AsArray(p.doc.Resolve(get(d, names.Matrix))); ok {
		if v, ok := raw.Floats(arr); ok {
			if m, ok := coords.FromSlice(v); ok {
				return m
			}
		}
	}
	return coords.Identity()
}

func (p *Processor) rectOf(d *raw.DictObj, key names.ID) (coords.Rect, bool) {
	arr, ok := raw.AsArray(p.doc.Resolve(get(d, key)))
	if !ok {
		return coords.Rect{}, false
	}
	v, ok := raw.Floats(arr)
	if !ok {
		return coords.Rect{}, false
	}
	return coords.RectFromSlice(v)
}

// loadShade builds a shading from its dictionary or stream. Function-based
// colors are reduced to the two end colors.
func (p *Processor) loadShade(ref raw.ObjectRef, o raw.Object) (*device.Shade, error) {
	v, err := p.doc.Memo(ref, func() (any, int64, error) {
		sh, err := p.parseShade(ref, o)
		if err != nil {
			return nil, 0, err
		}
		return sh, 512, nil
	})
	if err != nil {
		return nil, err
	}
	if sh, ok := v.(*device.Shade); ok {
		return sh, nil
	}
	return p.parseShade(ref, o)
}

func (p *Processor) parseShade(ref raw.ObjectRef, o raw.Object) (*device.Shade, error) {
	d, ok := raw.AsDict(p.doc.Resolve(o))
	if !ok {
		return nil, recovery.Errorf(recovery.KindSemantic, "shading", "shading is a %s", p.doc.Resolve(o).Type())
	}
	kind, _ := raw.AsInt(p.doc.Resolve(get(d, names.ShadingType)))
	if kind < 1 || kind > 7 {
		return nil, recovery.Errorf(recovery.KindSemantic, "shading", "unknown shading type %d", kind)
	}
	cs, err := p.parseSpace(get(d, names.ColorSpace), 0)
	if err != nil {
		return nil, err
	}
	sh := &device.Shade{Ref: ref, Type: int(kind), Space: cs, Dict: d, Matrix: coords.Identity()}
	if r, ok := p.rectOf(d, names.BBox); ok {
		sh.BBox, sh.HasBBox = r, true
	}
	if arr, ok := raw.AsArray(p.doc.Resolve(get(d, names.Background))); ok {
		sh.Background, _ = raw.Floats(arr)
	}
	if arr, ok := raw.AsArray(p.doc.Resolve(get(d, names.Coords))); ok {
		sh.Coords, _ = raw.Floats(arr)
	}
	if arr, ok := raw.AsArray(p.doc.Resolve(get(d, names.Extend))); ok && arr.Len() == 2 {
		sh.Extend[0], _ = raw.AsBool(p.doc.Resolve(arr.At(0)))
		sh.Extend[1], _ = raw.AsBool(p.doc.Resolve(arr.At(1)))
	}
	n := cs.Components()
	if fn, ok := d.Get(names.Function); ok {
		sh.C0, sh.C1 = p.functionEnds(fn, n)
	} else {
		sh.C0, sh.C1 = cs.Initial(), cs.Initial()
	}
	return sh, nil
}

// functionEnds evaluates a shading function, or an array of one-output
// functions, at the two ends of its domain.
func (p *Processor) functionEnds(o raw.Object, n int) (c0, c1 []float64) {
	o = p.doc.Resolve(o)
	if arr, ok := raw.AsArray(o); ok {
		for _, f := range arr.Items {
			a, b := p.evalEnds(f, 0)
			c0 = append(c0, first(a))
			c1 = append(c1, first(b))
		}
		return c0, c1
	}
	c0, c1 = p.evalEnds(o, 0)
	for len(c0) < n {
		c0 = append(c0, 0)
	}
	for len(c1) < n {
		c1 = append(c1, 0)
	}
	return c0, c1
}

func first(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return v[0]
}

func (p *Processor) evalEnds(o raw.Object, depth int) (c0, c1 []float64) {
	o = p.doc.Resolve(o)
	d, ok := raw.AsDict(o)
	if !ok || depth > maxSpaceNesting {
		return nil, nil
	}
	kind, _ := raw.AsInt(p.doc.Resolve(get(d, names.FunctionType)))
	arrayOf := func(key names.ID, def []float64) []float64 {
		if arr, ok := raw.AsArray(p.doc.Resolve(get(d, key))); ok {
			if v, ok := raw.Floats(arr); ok {
				return v
			}
		}
		return def
	}
	switch kind {
	case 2:
		return arrayOf(names.C0, []float64{0}), arrayOf(names.C1, []float64{1})
	case 3:
		fns, ok := raw.AsArray(p.doc.Resolve(get(d, names.Functions)))
		if !ok || fns.Len() == 0 {
			return nil, nil
		}
		c0, _ = p.evalEnds(fns.At(0), depth+1)
		_, c1 = p.evalEnds(fns.At(fns.Len()-1), depth+1)
		return c0, c1
	case 0:
		st, ok := raw.AsStream(o)
		if !ok {
			return nil, nil
		}
		data, err := p.doc.DecodeStream(p.ctx, st)
		if err != nil {
			return nil, nil
		}
		return sampledEnds(data, arrayOf(names.Size, nil), arrayOf(names.Range, nil), arrayOf(names.Decode, nil), int(intOf(p.doc.Resolve(get(d, names.BitsPerSample)))))
	}
	p.warnOnce(fmt.Sprintf("function type %d", kind), "function type %d approximated by its range", kind)
	r := arrayOf(names.Range, nil)
	for i := 0; i+1 < len(r); i += 2 {
		c0 = append(c0, r[i])
		c1 = append(c1, r[i+1])
	}
	return c0, c1
}

// sampledEnds reads the first and last sample of a one-input sampled
// function.
func sampledEnds(data []byte, size, rng, decode []float64, bps int) (c0, c1 []float64) {
	if len(size) == 0 || size[0] < 1 || len(rng) < 2 || bps <= 0 || bps > 32 {
		return nil, nil
	}
	if len(decode) < len(rng) {
		decode = rng
	}
	outs := len(rng) / 2
	maxv := math.Pow(2, float64(bps)) - 1
	read := func(idx int) []float64 {
		out := make([]float64, outs)
		for j := 0; j < outs; j++ {
			bit := (idx*outs + j) * bps
			var v uint64
			for k := 0; k < bps; k++ {
				byteIdx := (bit + k) / 8
				if byteIdx >= len(data) {
					return out
				}
				v = v<<1 | uint64(data[byteIdx]>>(7-uint((bit+k)%8))&1)
			}
			f := decode[2*j] + float64(v)/maxv*(decode[2*j+1]-decode[2*j])
			out[j] = math.Max(rng[2*j], math.Min(rng[2*j+1], f))
		}
		return out
	}
	return read(0), read(int(size[0]) - 1)
}

func intOf(o raw.Object) int64 {
	v, _ := raw.AsInt(o)
	return v
}

// get returns d[key] or null.
// iccProfile returns the embedded profile's conversion, or nil when the
// profile cannot be decoded and the alternate space has to serve.
func (p *Processor) iccProfile(st *raw.StreamObj) *cmm.Transform {
	v, err := p.doc.Memo(st.Ref, func() (any, int64, error) {
		data, err := p.doc.DecodeStream(p.ctx, st)
		if err == nil {
			var prof *cmm.Profile
			if prof, err = cmm.Parse(data); err == nil {
				var tr *cmm.Transform
				if tr, err = prof.Transform(); err == nil {
					return tr, int64(len(data)), nil
				}
			}
		}
		p.logger.Debug("icc profile", observability.Object(st.Ref.Num, st.Ref.Gen), observability.Error("error", err))
		return (*cmm.Transform)(nil), 16, nil
	})
	if err != nil {
		return nil
	}
	tr, _ := v.(*cmm.Transform)
	return tr
}

func get(d *raw.DictObj, key names.ID) raw.Object {
	if v, ok := d.Get(key); ok {
		return v
	}
	return raw.Null
}
