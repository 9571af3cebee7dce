// Package contentstream interprets page and form content streams and
// reports what they paint to a device.Device.
//
// The processor keeps the graphics-state stack, the text state and the
// current path, resolves named resources through a resources.Resolver and
// recurses into Form XObjects, tiling patterns, soft masks and (on request)
// Type 3 glyph procedures. Malformed content is reported as document
// warnings and skipped; only cancellation and strict-mode syntax errors end
// a run early.
package contentstream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bits-and-blooms/bitset"

	"github.com/wudi/pdfcore/cookie"
	"github.com/wudi/pdfcore/coords"
	"github.com/wudi/pdfcore/device"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/observability"
	"github.com/wudi/pdfcore/pdf"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/resources"
)

// Config controls one run.
type Config struct {
	// Cookie is polled before every operator. Nil never aborts.
	Cookie *cookie.Cookie
	// Logger and Tracer default to the document's.
	Logger observability.Logger
	Tracer observability.Tracer
	// Type3Glyphs runs the glyph procedures of Type 3 fonts after the
	// text event, so devices that do not rasterize text still see the
	// glyph shapes.
	Type3Glyphs bool
}

// Processor executes content streams against a device. A Processor is
// used for one run and is not safe for concurrent use.
type Processor struct {
	ctx    context.Context
	doc    *pdf.Document
	dev    device.Device
	res    *resources.Resolver
	cfg    Config
	logger observability.Logger

	gs []gstate
	// floor is the level of the innermost form; Q never pops below it.
	floor int
	// base is the CTM at the start of the current stream; patterns are
	// defined in that space.
	base coords.Matrix

	path     *device.Path
	clip     bool
	clipRule device.FillRule
	state    State

	tm, tlm  coords.Matrix
	clipText *device.Text
	// textMarked is the marked-content depth at BT.
	textMarked int

	marked int
	compat int
	warned map[string]bool
	forms  bitset.BitSet
	depth  int
	ops    int64
}

// RunPage processes the content of page. ctm maps page space to device
// space; page.Transform() gives the usual top-left view.
func RunPage(ctx context.Context, page *pdf.Page, dev device.Device, ctm coords.Matrix, cfg Config) error {
	doc := page.Document()
	p := newProcessor(ctx, doc, page, dev, cfg)
	ctx, span := p.startSpan(ctx, "contentstream.Run")
	defer span.Finish()
	span.SetTag("page", page.Index)

	content, err := page.Contents(ctx)
	if err != nil {
		span.SetError(err)
		return err
	}
	err = p.runTop(content, ctm, page.Dict)
	if err != nil {
		span.SetError(err)
	}
	span.SetTag("operators", p.ops)
	return err
}

// RunContents processes a bare content stream with res as its resources.
// page may be nil; when set, its inherited resources are searched after
// res.
func RunContents(ctx context.Context, doc *pdf.Document, page *pdf.Page, res *raw.DictObj, content []byte, dev device.Device, ctm coords.Matrix, cfg Config) error {
	p := newProcessor(ctx, doc, page, dev, cfg)
	ctx, span := p.startSpan(ctx, "contentstream.Run")
	defer span.Finish()
	if res != nil {
		p.res.Push(res)
	}
	err := p.runTop(content, ctm, nil)
	if err != nil {
		span.SetError(err)
	}
	span.SetTag("operators", p.ops)
	return err
}

func newProcessor(ctx context.Context, doc *pdf.Document, page *pdf.Page, dev device.Device, cfg Config) *Processor {
	if cfg.Logger == nil {
		cfg.Logger = doc.Logger()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = doc.Tracer()
	}
	return &Processor{
		ctx:    ctx,
		doc:    doc,
		dev:    dev,
		res:    resources.NewResolver(doc, page),
		cfg:    cfg,
		logger: cfg.Logger.With(observability.String("component", "contentstream")),
		warned: map[string]bool{},
	}
}

func (p *Processor) startSpan(ctx context.Context, name string) (context.Context, observability.Span) {
	ctx, span := p.cfg.Tracer.StartSpan(ctx, name)
	p.ctx = ctx
	return ctx, span
}

// runTop runs a page-level stream, wrapping it in the page group when
// pageDict has a transparency /Group.
func (p *Processor) runTop(content []byte, ctm coords.Matrix, pageDict *raw.DictObj) error {
	p.gs = []gstate{newGState(ctm)}
	p.base = ctm
	p.path = &device.Path{}
	p.cfg.Cookie.SetProgress(0, int64(len(content)))

	var grouped bool
	if pageDict != nil {
		if g, ok := p.transparencyGroup(pageDict); ok {
			g.Area = coords.InfiniteRect
			if err := p.dev.BeginGroup(g); err != nil {
				return err
			}
			grouped = true
		}
	}
	err := p.run(content, true)
	p.unwind(0)
	if grouped {
		if gerr := p.dev.EndGroup(); err == nil {
			err = gerr
		}
	}
	return err
}

// run executes one content stream. The reader is fresh per stream so a
// syntax error in a form never leaks into its caller.
func (p *Processor) run(content []byte, top bool) error {
	r := NewReader(content, p.doc.ParserConfig())
	strict := p.doc.Config().Strict
	for {
		if err := p.poll(); err != nil {
			return err
		}
		op, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if strict || recovery.KindOf(err) == recovery.KindAborted {
				return err
			}
			p.warn("%v", err)
			continue
		}
		p.ops++
		if top {
			p.cfg.Cookie.SetProgress(r.Position(), int64(len(content)))
		}
		if err := p.exec(op); err != nil {
			if fatal(err) {
				return err
			}
			p.warn("%s: %v", op.Keyword, err)
		}
	}
	if p.state == StateText {
		p.warn("missing ET at end of stream")
		if err := p.endText(); err != nil && fatal(err) {
			return err
		}
	}
	return nil
}

func fatal(err error) bool {
	return recovery.KindOf(err) == recovery.KindAborted || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// poll reports cancellation through the cookie or the context.
func (p *Processor) poll() error {
	if err := p.cfg.Cookie.Err("contentstream"); err != nil {
		return err
	}
	if err := p.ctx.Err(); err != nil {
		return recovery.New(recovery.KindAborted, "contentstream", err)
	}
	return nil
}

func (p *Processor) warn(format string, args ...any) {
	p.doc.Warnf("contentstream", format, args...)
}

// warnOnce warns the first time key is seen in this run.
func (p *Processor) warnOnce(key, format string, args ...any) {
	if p.warned[key] {
		return
	}
	p.warned[key] = true
	p.warn(format, args...)
}

func (p *Processor) top() *gstate { return &p.gs[len(p.gs)-1] }

// save implements q.
func (p *Processor) save() {
	g := p.top().clone()
	g.marked = p.marked
	p.gs = append(p.gs, g)
}

// restore implements Q.
func (p *Processor) restore() error {
	if len(p.gs) <= p.floor+1 {
		return fmt.Errorf("Q without matching q")
	}
	g := p.top()
	for g.marked < p.marked {
		p.warn("unbalanced marked content closed at Q")
		if err := p.endMarked(); err != nil {
			return err
		}
	}
	if err := p.popClips(g); err != nil {
		return err
	}
	p.gs = p.gs[:len(p.gs)-1]
	return nil
}

func (p *Processor) popClips(g *gstate) error {
	for ; g.clips > 0; g.clips-- {
		if err := p.dev.PopClip(); err != nil {
			return err
		}
	}
	return nil
}

// unwind pops the stack back to level, closing what the stream left
// open.
func (p *Processor) unwind(level int) {
	for len(p.gs) > level+1 {
		p.warnOnce("unbalanced q", "unbalanced q at end of content")
		if p.restore() != nil {
			break
		}
	}
	if level == 0 {
		for p.marked > 0 {
			p.warn("unbalanced marked content closed at end of content")
			p.endMarked()
		}
		p.popClips(p.top())
	}
}

// exec dispatches one operation.
func (p *Processor) exec(op Operation) error {
	if op.Op == OpUnknown {
		if p.compat == 0 {
			p.warnOnce("op "+op.Keyword, "unknown operator %q", op.Keyword)
		}
		return nil
	}
	if n := int(arity[op.Op]); n > 0 && len(op.Operands) < n {
		return fmt.Errorf("%d operands, want %d", len(op.Operands), n)
	}
	if p.state == StateMaskedClip && op.Op != OpClip && op.Op != OpClipEvenOdd && !op.Op.paints() {
		if op.Op < OpMoveTo || op.Op > OpRect {
			p.warnOnce("clip without paint", "W not followed by a painting operator")
			p.clip, p.state = false, StatePage
		}
	}
	args := op.Operands
	if n := int(arity[op.Op]); n > 0 {
		args = args[len(args)-n:]
	}
	g := p.top()
	switch op.Op {
	case OpSave:
		p.save()
	case OpRestore:
		return p.restore()
	case OpConcat:
		m, ok := matrixArgs(args)
		if !ok {
			return fmt.Errorf("non-numeric matrix")
		}
		g.ctm = g.ctm.Concat(m)
	case OpLineWidth:
		g.stroke.LineWidth = max(num(args[0]), 0)
	case OpLineCap:
		g.stroke.Cap = device.LineCap(min(max(int(num(args[0])), 0), 2))
	case OpLineJoin:
		g.stroke.Join = device.LineJoin(min(max(int(num(args[0])), 0), 2))
	case OpMiterLimit:
		g.stroke.MiterLimit = max(num(args[0]), 1)
	case OpDash:
		return p.setDash(g, args[0], args[1])
	case OpIntent:
	case OpFlatness:
		g.flatness = min(max(num(args[0]), 0), 100)
	case OpExtGState:
		return p.extGState(args[0])

	case OpMoveTo, OpLineTo, OpCurveTo, OpCurveToV, OpCurveToY, OpClosePath, OpRect:
		return p.construct(op.Op, args)
	case OpStroke, OpCloseStroke, OpFill, OpFillCompat, OpFillEvenOdd,
		OpFillStroke, OpFillStrokeEO, OpCloseFillStroke, OpCloseFillStrokeEO, OpEndPath:
		return p.paintPath(op.Op)
	case OpClip, OpClipEvenOdd:
		p.clip, p.state = true, StateMaskedClip
		p.clipRule = device.NonZero
		if op.Op == OpClipEvenOdd {
			p.clipRule = device.EvenOdd
		}

	case OpBeginText:
		return p.beginText()
	case OpEndText:
		if p.state != StateText {
			return fmt.Errorf("ET outside text object")
		}
		return p.endText()
	case OpCharSpace:
		g.text.charSpace = num(args[0])
	case OpWordSpace:
		g.text.wordSpace = num(args[0])
	case OpHScale:
		g.text.scale = num(args[0]) / 100
	case OpLeading:
		g.text.leading = num(args[0])
	case OpFont:
		return p.setFont(args[0], num(args[1]))
	case OpRender:
		g.text.mode = device.TextMode(min(max(int(num(args[0])), 0), 7))
	case OpRise:
		g.text.rise = num(args[0])
	case OpMoveText, OpMoveTextTL, OpTextMatrix, OpNextLine:
		return p.position(op.Op, args)
	case OpShow, OpShowArray, OpNextShow, OpSpaceShow:
		return p.show(op.Op, args)
	case OpGlyphWidth, OpGlyphBBox:
		if op.Op == OpGlyphBBox {
			g.locked = true
		}

	case OpStrokeSpace, OpFillSpace, OpStrokeColor, OpStrokeColorN, OpFillColor, OpFillColorN,
		OpStrokeGray, OpFillGray, OpStrokeRGB, OpFillRGB, OpStrokeCMYK, OpFillCMYK:
		if g.locked {
			return nil
		}
		return p.color(g, op.Op, args)

	case OpXObject:
		return p.xobject(args[0])
	case OpBeginImage:
		return p.inline(op.Image)
	case OpImageData, OpEndImage:
		return fmt.Errorf("%s outside inline image", op.Keyword)
	case OpShade:
		return p.shade(args[0])

	case OpMarkPoint, OpMarkPointDict:
	case OpBeginMarked:
		return p.beginMarked(args[0], nil)
	case OpBeginMarkedDict:
		return p.beginMarked(args[0], args[1])
	case OpEndMarked:
		if p.marked == 0 {
			return fmt.Errorf("EMC without BMC")
		}
		return p.endMarked()

	case OpBeginCompat:
		p.compat++
	case OpEndCompat:
		if p.compat == 0 {
			return fmt.Errorf("EX without BX")
		}
		p.compat--
	}
	return nil
}

func num(o raw.Object) float64 {
	f, _ := raw.AsFloat(o)
	return f
}

func matrixArgs(args []raw.Object) (coords.Matrix, bool) {
	var m coords.Matrix
	for i := range m {
		f, ok := raw.AsFloat(args[i])
		if !ok {
			return m, false
		}
		m[i] = f
	}
	return m, true
}

func (p *Processor) setDash(g *gstate, arr, phase raw.Object) error {
	a, ok := raw.AsArray(p.doc.Resolve(arr))
	if !ok {
		return fmt.Errorf("dash array is a %s", arr.Type())
	}
	dash, _ := raw.Floats(a)
	total := 0.0
	for _, d := range dash {
		if d < 0 {
			return fmt.Errorf("negative dash length")
		}
		total += d
	}
	if total == 0 {
		dash = nil
	}
	g.stroke.Dash, g.stroke.DashPhase = dash, num(phase)
	return nil
}

// construct implements the path construction operators.
func (p *Processor) construct(op Op, args []raw.Object) error {
	v := floats(args)
	if len(v) != len(args) {
		return fmt.Errorf("non-numeric operand")
	}
	path := p.path
	switch op {
	case OpMoveTo:
		path.MoveTo(v[0], v[1])
	case OpLineTo:
		if _, ok := path.Current(); !ok {
			p.warnOnce("l without point", "l without current point")
			path.MoveTo(v[0], v[1])
			return nil
		}
		path.LineTo(v[0], v[1])
	case OpCurveTo:
		path.CurveTo(v[0], v[1], v[2], v[3], v[4], v[5])
	case OpCurveToV:
		cur, ok := path.Current()
		if !ok {
			return fmt.Errorf("v without current point")
		}
		path.CurveTo(cur.X, cur.Y, v[0], v[1], v[2], v[3])
	case OpCurveToY:
		path.CurveTo(v[0], v[1], v[2], v[3], v[2], v[3])
	case OpClosePath:
		path.Close()
	case OpRect:
		path.Rect(v[0], v[1], v[2], v[3])
	}
	return nil
}

// paintPath implements the path painting operators, consuming a pending
// clip.
func (p *Processor) paintPath(op Op) error {
	path := p.path
	p.path = &device.Path{}
	clip, rule := p.clip, p.clipRule
	p.clip = false
	if p.state == StateMaskedClip {
		p.state = StatePage
	}
	if op == OpCloseStroke || op == OpCloseFillStroke || op == OpCloseFillStrokeEO {
		path.Close()
	}
	fill, stroke := false, false
	fillRule := device.NonZero
	switch op {
	case OpStroke, OpCloseStroke:
		stroke = true
	case OpFill, OpFillCompat:
		fill = true
	case OpFillEvenOdd:
		fill, fillRule = true, device.EvenOdd
	case OpFillStroke, OpCloseFillStroke:
		fill, stroke = true, true
	case OpFillStrokeEO, OpCloseFillStrokeEO:
		fill, stroke, fillRule = true, true, device.EvenOdd
	}
	if !path.IsEmpty() {
		if fill {
			if err := p.fillPath(path, fillRule); err != nil {
				return err
			}
		}
		if stroke {
			if err := p.strokePath(path); err != nil {
				return err
			}
		}
	}
	if clip {
		// Painting may have run nested streams; take the level afresh.
		g := p.top()
		if err := p.dev.ClipPath(path, rule, g.ctm, coords.InfiniteRect); err != nil {
			return err
		}
		g.clips++
	}
	return nil
}

func (p *Processor) fillPath(path *device.Path, rule device.FillRule) error {
	g := p.top()
	area := path.Bounds(g.ctm)
	return p.scoped(area, func() error {
		if pat := g.fill.pattern; pat != nil {
			if err := p.dev.ClipPath(path, rule, g.ctm, coords.InfiniteRect); err != nil {
				return err
			}
			err := p.paintPattern(pat, g.fill, area, g.fillAlpha)
			return joinErr(err, p.dev.PopClip())
		}
		if g.fill.space.Family == device.PatternSpace {
			return nil
		}
		return p.dev.FillPath(path, rule, g.ctm, g.fill.paint(g.fillAlpha))
	})
}

func (p *Processor) strokePath(path *device.Path) error {
	g := p.top()
	st := g.stroke
	area := path.StrokeBounds(&st, g.ctm)
	return p.scoped(area, func() error {
		if pat := g.line.pattern; pat != nil {
			if err := p.dev.ClipStrokePath(path, &st, g.ctm, coords.InfiniteRect); err != nil {
				return err
			}
			err := p.paintPattern(pat, g.line, area, g.strokeAlpha)
			return joinErr(err, p.dev.PopClip())
		}
		if g.line.space.Family == device.PatternSpace {
			return nil
		}
		return p.dev.StrokePath(path, &st, g.ctm, g.line.paint(g.strokeAlpha))
	})
}

func joinErr(err, next error) error {
	if err != nil {
		return err
	}
	return next
}

// scoped brackets a painting call with the soft mask and blend group of
// the current graphics state.
func (p *Processor) scoped(area coords.Rect, paint func() error) error {
	g := p.top()
	masked := g.mask != nil
	blended := g.blend != "" && g.blend != "Normal"
	if !masked && !blended {
		return paint()
	}
	if masked {
		if err := p.runMask(g.mask, area); err != nil {
			if fatal(err) {
				return err
			}
			p.warn("soft mask: %v", err)
			masked = false
		}
	}
	if blended {
		if err := p.dev.BeginGroup(device.Group{Area: area, Blend: g.blend, Alpha: 1}); err != nil {
			return err
		}
	}
	err := paint()
	if blended {
		err = joinErr(err, p.dev.EndGroup())
	}
	if masked {
		err = joinErr(err, p.dev.PopClip())
	}
	return err
}

// color implements the color operators.
func (p *Processor) color(g *gstate, op Op, args []raw.Object) error {
	switch op {
	case OpStrokeSpace:
		return p.setSpace(&g.line, args[0])
	case OpFillSpace:
		return p.setSpace(&g.fill, args[0])
	case OpStrokeColor, OpStrokeColorN:
		return p.setColor(&g.line, args)
	case OpFillColor, OpFillColorN:
		return p.setColor(&g.fill, args)
	case OpStrokeGray:
		setDevice(&g.line, device.DeviceGray, args)
	case OpFillGray:
		setDevice(&g.fill, device.DeviceGray, args)
	case OpStrokeRGB:
		setDevice(&g.line, device.DeviceRGB, args)
	case OpFillRGB:
		setDevice(&g.fill, device.DeviceRGB, args)
	case OpStrokeCMYK:
		setDevice(&g.line, device.DeviceCMYK, args)
	case OpFillCMYK:
		setDevice(&g.fill, device.DeviceCMYK, args)
	}
	return nil
}

// beginMarked implements BMC and BDC. A BDC property list may be a name in
// the Properties resources.
func (p *Processor) beginMarked(tag raw.Object, props raw.Object) error {
	p.marked++
	m, ok := p.dev.(device.Marker)
	if !ok {
		return nil
	}
	id, _ := raw.AsName(tag)
	var dict *raw.DictObj
	if props != nil {
		if name, ok := raw.AsName(props); ok {
			if d, _, err := p.res.LookupDict(resources.CategoryProperties, name); err == nil {
				dict = d
			}
		} else {
			dict, _ = raw.AsDict(p.doc.Resolve(props))
		}
	}
	return m.BeginMarked(names.Default().String(id), dict)
}

func (p *Processor) endMarked() error {
	if p.marked == 0 {
		return nil
	}
	p.marked--
	if m, ok := p.dev.(device.Marker); ok {
		return m.EndMarked()
	}
	return nil
}
