// Package stext builds structured text from content-stream events: pages
// of blocks of lines of characters with their positions, and renders them
// as plain text or HTML.
package stext

import (
	"context"
	"math"

	"github.com/wudi/pdfcore/contentstream"
	"github.com/wudi/pdfcore/coords"
	"github.com/wudi/pdfcore/device"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/pdf"
)

// Options control text assembly and output.
type Options struct {
	// Normalize applies NFKC on output so ligatures and compatibility
	// forms read as plain characters.
	Normalize bool
	// Dehyphenate joins a line ending in a hyphen with the next line of
	// the same block.
	Dehyphenate bool
	// SkipInvisible drops text drawn in render mode 3.
	SkipInvisible bool
}

// Char is one extracted character. Origin is the pen position on the
// baseline; Box the glyph area. Both are in the device space of the run.
type Char struct {
	Text   string
	Origin coords.Point
	Box    coords.Rect
	Size   float64
	Font   string
}

type Line struct {
	Chars []Char
	Box   coords.Rect
	// Dir is the unit baseline direction.
	Dir coords.Point
}

func (l *Line) String() string {
	n := 0
	for _, c := range l.Chars {
		n += len(c.Text)
	}
	b := make([]byte, 0, n)
	for _, c := range l.Chars {
		b = append(b, c.Text...)
	}
	return string(b)
}

type Block struct {
	Lines []*Line
	Box   coords.Rect
}

// Page is the structured text of one page.
type Page struct {
	MediaBox coords.Rect
	Blocks   []*Block
}

// Device is a device.Device collecting characters into a Page. It follows
// marked content so /ActualText replaces the glyphs it spans.
type Device struct {
	device.NullDevice
	opt  Options
	page *Page

	last  *device.Text
	line  *Line
	block *Block
	pen   coords.Point

	// marks mirrors the marked-content nesting; entries without
	// replacement text are nil.
	marks  []*actualText
	active *actualText
}

type actualText struct {
	text   string
	seen   bool
	origin coords.Point
	dir    coords.Point
	size   float64
	box    coords.Rect
	font   string
}

var _ device.Marker = (*Device)(nil)

// NewDevice returns a device that fills page.
func NewDevice(page *Page, opt Options) *Device {
	return &Device{page: page, opt: opt}
}

// FromPage runs page through a new Device in the page's top-down space.
func FromPage(ctx context.Context, page *pdf.Page, opt Options, cfg contentstream.Config) (*Page, error) {
	out := &Page{MediaBox: page.Bound()}
	dev := NewDevice(out, opt)
	if err := contentstream.RunPage(ctx, page, dev, page.Transform(), cfg); err != nil {
		return out, err
	}
	return out, dev.Close()
}

func (d *Device) FillText(t *device.Text, ctm coords.Matrix, _ device.Paint) error {
	d.text(t, ctm)
	return nil
}

// StrokeText skips the stroke pass of text that was just filled.
func (d *Device) StrokeText(t *device.Text, _ *device.StrokeState, ctm coords.Matrix, _ device.Paint) error {
	if t != d.last {
		d.text(t, ctm)
	}
	return nil
}

func (d *Device) IgnoreText(t *device.Text, ctm coords.Matrix) error {
	if !d.opt.SkipInvisible {
		d.text(t, ctm)
	}
	return nil
}

// ClipText is not collected: clipping text is also shown through FillText
// or IgnoreText.
func (d *Device) ClipText(*device.Text, coords.Matrix, coords.Rect) error { return nil }

func (d *Device) BeginMarked(_ string, props *raw.DictObj) error {
	var at *actualText
	if v, ok := props.Get(names.ActualText); ok {
		if s, ok := raw.AsString(v); ok {
			at = &actualText{text: raw.DecodeTextString(s), box: coords.EmptyRect}
		}
	}
	d.marks = append(d.marks, at)
	if d.active == nil && at != nil {
		d.active = at
	}
	return nil
}

func (d *Device) EndMarked() error {
	if len(d.marks) == 0 {
		return nil
	}
	at := d.marks[len(d.marks)-1]
	d.marks = d.marks[:len(d.marks)-1]
	if at == nil || at != d.active {
		return nil
	}
	d.active = nil
	if !at.seen {
		return nil
	}
	runes := []rune(at.text)
	w := 0.0
	if len(runes) > 0 {
		w = (math.Abs(at.dir.X)*at.box.Width() + math.Abs(at.dir.Y)*at.box.Height()) / float64(len(runes))
	}
	for i, r := range runes {
		o := coords.Point{X: at.origin.X + at.dir.X*w*float64(i), Y: at.origin.Y + at.dir.Y*w*float64(i)}
		end := coords.Point{X: o.X + at.dir.X*w, Y: o.Y + at.dir.Y*w}
		d.add(Char{Text: string(r), Origin: o, Box: at.box, Size: at.size, Font: at.font}, end, at.dir)
	}
	return nil
}

// Close ends open replacement text. Marked content left open by the
// stream still yields its text.
func (d *Device) Close() error {
	for len(d.marks) > 0 {
		d.EndMarked()
	}
	return nil
}

func (d *Device) text(t *device.Text, ctm coords.Matrix) {
	d.last = t
	for _, span := range t.Spans {
		font := ""
		if span.Font != nil {
			font = span.Font.BaseFont
		}
		for _, g := range span.Glyphs {
			trm := span.Render(g).Multiply(ctm)
			origin := trm.Transform(coords.Point{})
			end := trm.Transform(coords.Point{X: g.Advance / max(span.Size*hscale(span), 1e-9)})
			dir := unit(trm.TransformVector(coords.Point{X: 1}))
			size := trm.Expansion()
			box := span.GlyphBounds(g, ctm)
			if at := d.active; at != nil {
				if !at.seen {
					at.seen, at.origin, at.dir, at.size, at.font = true, origin, dir, size, font
				}
				at.box = at.box.Union(box)
				continue
			}
			s := g.Unicode
			if s == "" {
				s = "�"
			}
			d.add(Char{Text: s, Origin: origin, Box: box, Size: size, Font: font}, end, dir)
		}
	}
}

func hscale(s *device.TextSpan) float64 {
	if s.HScale == 0 {
		return 1
	}
	return s.HScale
}

func unit(p coords.Point) coords.Point {
	n := math.Hypot(p.X, p.Y)
	if n == 0 {
		return coords.Point{X: 1}
	}
	return coords.Point{X: p.X / n, Y: p.Y / n}
}

// add places c on the current line or starts a new line or block. end is
// where the pen stands after c.
func (d *Device) add(c Char, end, dir coords.Point) {
	size := max(c.Size, 1e-3)
	switch {
	case d.line == nil:
		d.newLine(dir, false)
	case dir.X*d.line.Dir.X+dir.Y*d.line.Dir.Y < 0.95:
		d.newLine(dir, true)
	default:
		dx, dy := c.Origin.X-d.pen.X, c.Origin.Y-d.pen.Y
		along := dx*dir.X + dy*dir.Y
		across := math.Abs(dir.X*dy - dir.Y*dx)
		switch {
		case across > size*2:
			d.newLine(dir, true)
		case across > size*0.5 || along < -size*0.5:
			d.newLine(dir, false)
		case along > size*0.2 && c.Text != " " && !endsWithSpace(d.line):
			d.line.Chars = append(d.line.Chars, Char{Text: " ", Origin: d.pen, Box: coords.NewRect(d.pen.X, d.pen.Y, c.Origin.X, c.Origin.Y).Normalize(), Size: c.Size, Font: c.Font})
		}
	}
	d.line.Chars = append(d.line.Chars, c)
	d.line.Box = d.line.Box.Union(c.Box)
	d.block.Box = d.block.Box.Union(c.Box)
	d.pen = end
}

func endsWithSpace(l *Line) bool {
	return len(l.Chars) > 0 && l.Chars[len(l.Chars)-1].Text == " "
}

func (d *Device) newLine(dir coords.Point, newBlock bool) {
	if d.block == nil || newBlock {
		d.block = &Block{Box: coords.EmptyRect}
		d.page.Blocks = append(d.page.Blocks, d.block)
	}
	d.line = &Line{Dir: dir, Box: coords.EmptyRect}
	d.block.Lines = append(d.block.Lines, d.line)
}
