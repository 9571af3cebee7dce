package contentstream

import (
	"fmt"

	"github.com/wudi/pdfcore/coords"
	"github.com/wudi/pdfcore/device"
	"github.com/wudi/pdfcore/fonts"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/resources"
)

func (p *Processor) beginText() error {
	if p.state == StateText {
		p.warn("BT inside text object")
		if err := p.endText(); err != nil {
			return err
		}
	}
	p.state = StateText
	p.tm, p.tlm = coords.Identity(), coords.Identity()
	p.textMarked = p.marked
	return nil
}

// endText closes the text object and applies the glyphs shown in a
// clipping render mode.
func (p *Processor) endText() error {
	p.state = StatePage
	for p.marked > p.textMarked {
		p.warn("unbalanced marked content closed at ET")
		if err := p.endMarked(); err != nil {
			return err
		}
	}
	text := p.clipText
	p.clipText = nil
	if text == nil {
		return nil
	}
	if err := p.dev.ClipText(text, coords.Identity(), coords.InfiniteRect); err != nil {
		return err
	}
	p.top().clips++
	return nil
}

// setFont implements Tf.
func (p *Processor) setFont(name raw.Object, size float64) error {
	g := p.top()
	g.text.size = size
	id, ok := raw.AsName(name)
	if !ok {
		return fmt.Errorf("font name is a %s", name.Type())
	}
	res, err := p.res.Lookup(resources.CategoryFont, id)
	if err != nil {
		g.text.font = nil
		return err
	}
	f, err := fonts.Load(p.ctx, p.doc, res.Ref, res.Object)
	if err != nil {
		g.text.font = nil
		return err
	}
	g.text.font = f
	return nil
}

// position implements Td, TD, Tm and T*.
func (p *Processor) position(op Op, args []raw.Object) error {
	if p.state != StateText {
		p.warnOnce("text outside BT", "text operator outside BT")
	}
	g := p.top()
	switch op {
	case OpMoveText, OpMoveTextTL:
		tx, ty := num(args[0]), num(args[1])
		if op == OpMoveTextTL {
			g.text.leading = -ty
		}
		p.tlm = coords.Translate(tx, ty).Multiply(p.tlm)
		p.tm = p.tlm
	case OpTextMatrix:
		m, ok := matrixArgs(args)
		if !ok {
			return fmt.Errorf("non-numeric text matrix")
		}
		p.tm, p.tlm = m, m
	case OpNextLine:
		p.nextLine()
	}
	return nil
}

func (p *Processor) nextLine() {
	p.tlm = coords.Translate(0, -p.top().text.leading).Multiply(p.tlm)
	p.tm = p.tlm
}

// show implements Tj, TJ, ' and ".
func (p *Processor) show(op Op, args []raw.Object) error {
	if p.state != StateText {
		p.warnOnce("text outside BT", "text operator outside BT")
	}
	g := p.top()
	switch op {
	case OpNextShow:
		p.nextLine()
	case OpSpaceShow:
		g.text.wordSpace = num(args[0])
		g.text.charSpace = num(args[1])
		p.nextLine()
		args = args[2:]
	}
	if g.text.font == nil {
		p.warnOnce("show without font", "text shown without a font (Tf)")
		return nil
	}
	span := p.newSpan()
	switch op {
	case OpShowArray:
		arr, ok := raw.AsArray(args[0])
		if !ok {
			return fmt.Errorf("TJ operand is a %s", args[0].Type())
		}
		for _, it := range arr.Items {
			switch v := it.(type) {
			case raw.StringObj:
				p.showString(span, v.Bytes)
			case raw.NumberObj:
				t := g.text
				tx := -v.Float() / 1000 * t.size * t.scale
				p.tm = coords.Translate(tx, 0).Multiply(p.tm)
			}
		}
	default:
		s, ok := raw.AsString(args[0])
		if !ok {
			return fmt.Errorf("%s operand is a %s", op, args[0].Type())
		}
		p.showString(span, s)
	}
	if len(span.Glyphs) == 0 {
		return nil
	}
	return p.paintText(span)
}

func (p *Processor) newSpan() *device.TextSpan {
	t := p.top().text
	return &device.TextSpan{
		Font:   t.font,
		Size:   t.size,
		HScale: t.scale,
		Rise:   t.rise,
		Mode:   t.mode,
		Matrix: p.tm,
	}
}

// showString appends the glyphs of s to span and advances the text
// matrix.
func (p *Processor) showString(span *device.TextSpan, s []byte) {
	t := p.top().text
	f := t.font
	for _, ch := range f.Decode(s) {
		w := ch.Width / 1000
		if f.Type3 {
			w = ch.Width * f.FontMatrix[0]
		}
		tx := w*t.size + t.charSpace
		if ch.IsSpace() {
			tx += t.wordSpace
		}
		tx *= t.scale
		span.Glyphs = append(span.Glyphs, device.Glyph{
			Code:    ch.Code,
			CID:     ch.CID,
			Unicode: ch.Unicode,
			Matrix:  p.tm,
			Advance: tx,
			Width:   w,
		})
		p.tm = coords.Translate(tx, 0).Multiply(p.tm)
	}
}

// paintText sends span to the device according to its render mode.
func (p *Processor) paintText(span *device.TextSpan) error {
	g := p.top()
	text := &device.Text{Spans: []*device.TextSpan{span}}
	ctm := g.ctm
	area := text.Bounds(ctm)
	mode := span.Mode
	err := p.scoped(area, func() error {
		if mode == device.TextInvisible || mode == device.TextClip {
			return p.dev.IgnoreText(text, ctm)
		}
		if mode.Fills() {
			if err := p.fillText(text, ctm, area); err != nil {
				return err
			}
		}
		if mode.Strokes() {
			st := g.stroke
			if pat := g.line.pattern; pat != nil {
				if err := p.dev.ClipText(text, ctm, coords.InfiniteRect); err != nil {
					return err
				}
				return joinErr(p.paintPattern(pat, g.line, area, g.strokeAlpha), p.dev.PopClip())
			}
			return p.dev.StrokeText(text, &st, ctm, g.line.paint(g.strokeAlpha))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if mode.Clips() {
		p.accumulateClip(span, ctm)
	}
	if span.Font.Type3 && p.cfg.Type3Glyphs && mode != device.TextInvisible {
		return p.runType3(span, ctm)
	}
	return nil
}

func (p *Processor) fillText(text *device.Text, ctm coords.Matrix, area coords.Rect) error {
	g := p.top()
	if pat := g.fill.pattern; pat != nil {
		if err := p.dev.ClipText(text, ctm, coords.InfiniteRect); err != nil {
			return err
		}
		return joinErr(p.paintPattern(pat, g.fill, area, g.fillAlpha), p.dev.PopClip())
	}
	if g.fill.space.Family == device.PatternSpace {
		return nil
	}
	return p.dev.FillText(text, ctm, g.fill.paint(g.fillAlpha))
}

// accumulateClip keeps span for the clip applied at ET, with the CTM
// folded in because cm may change it before then.
func (p *Processor) accumulateClip(span *device.TextSpan, ctm coords.Matrix) {
	c := *span
	c.Matrix = span.Matrix.Multiply(ctm)
	c.Glyphs = make([]device.Glyph, len(span.Glyphs))
	for i, gl := range span.Glyphs {
		gl.Matrix = gl.Matrix.Multiply(ctm)
		c.Glyphs[i] = gl
	}
	if p.clipText == nil {
		p.clipText = &device.Text{}
	}
	p.clipText.Spans = append(p.clipText.Spans, &c)
}

// runType3 executes the glyph procedures of a Type 3 span.
func (p *Processor) runType3(span *device.TextSpan, ctm coords.Matrix) error {
	f := span.Font
	if f.CharProcs == nil {
		return nil
	}
	for _, gl := range span.Glyphs {
		name, ok := f.GlyphName(gl.Code)
		if !ok {
			continue
		}
		proc, ok := f.CharProcs.GetKey(name)
		if !ok {
			continue
		}
		st, ok := raw.AsStream(p.doc.Resolve(proc))
		if !ok {
			continue
		}
		m := f.FontMatrix.Multiply(span.Render(gl)).Multiply(ctm)
		if err := p.runGlyph(st, f.Resources, m); err != nil {
			if fatal(err) {
				return err
			}
			p.warn("type3 glyph %s: %v", name, err)
		}
	}
	return nil
}
