package device

import (
	"strings"

	"github.com/wudi/pdfcore/coords"
	"github.com/wudi/pdfcore/fonts"
)

// TextMode is the text rendering mode set by Tr.
type TextMode int

const (
	TextFill TextMode = iota
	TextStroke
	TextFillStroke
	TextInvisible
	TextFillClip
	TextStrokeClip
	TextFillStrokeClip
	TextClip
)

// Fills reports whether the mode paints glyph interiors.
func (m TextMode) Fills() bool {
	return m == TextFill || m == TextFillStroke || m == TextFillClip || m == TextFillStrokeClip
}

// Strokes reports whether the mode strokes glyph outlines.
func (m TextMode) Strokes() bool {
	return m == TextStroke || m == TextFillStroke || m == TextStrokeClip || m == TextFillStrokeClip
}

// Clips reports whether the mode adds glyphs to the clip.
func (m TextMode) Clips() bool { return m >= TextFillClip }

// Glyph is one shown character. Matrix is the text matrix at the glyph
// origin, before the CTM.
type Glyph struct {
	Code    uint32
	CID     uint32
	Unicode string
	Matrix  coords.Matrix
	// Advance is the horizontal displacement in text space, spacing
	// included.
	Advance float64
	// Width is the glyph width in text space units per unit font size.
	Width float64
}

// TextSpan is a run of glyphs sharing font and text state.
type TextSpan struct {
	Font   *fonts.Font
	Size   float64
	HScale float64
	Rise   float64
	Mode   TextMode
	// Matrix is the text matrix at the first glyph, before the CTM.
	Matrix coords.Matrix
	Glyphs []Glyph
}

// Text is the content of one text-showing operator.
type Text struct {
	Spans []*TextSpan
}

// Render returns the text rendering matrix of g: font size, horizontal
// scale and rise applied in text space.
func (s *TextSpan) Render(g Glyph) coords.Matrix {
	h := s.HScale
	if h == 0 {
		h = 1
	}
	return coords.Matrix{s.Size * h, 0, 0, s.Size, 0, s.Rise}.Multiply(g.Matrix)
}

// GlyphBounds returns the box of g in user space mapped by ctm, using the
// font's ascent and descent.
func (s *TextSpan) GlyphBounds(g Glyph, ctm coords.Matrix) coords.Rect {
	asc, desc := 0.8, -0.2
	if s.Font != nil {
		asc, desc = s.Font.Ascent/1000, s.Font.Descent/1000
	}
	w := g.Width
	if w == 0 {
		w = 0.5
	}
	return coords.NewRect(0, desc, w, asc).Transform(s.Render(g).Multiply(ctm))
}

// Bounds returns the union of the glyph boxes under ctm.
func (t *Text) Bounds(ctm coords.Matrix) coords.Rect {
	r := coords.EmptyRect
	if t == nil {
		return r
	}
	for _, s := range t.Spans {
		for _, g := range s.Glyphs {
			r = r.Union(s.GlyphBounds(g, ctm))
		}
	}
	return r
}

// String returns the Unicode text of all spans.
func (t *Text) String() string {
	if t == nil {
		return ""
	}
	var b strings.Builder
	for _, s := range t.Spans {
		for _, g := range s.Glyphs {
			b.WriteString(g.Unicode)
		}
	}
	return b.String()
}

// Len returns the number of glyphs.
func (t *Text) Len() int {
	n := 0
	if t != nil {
		for _, s := range t.Spans {
			n += len(s.Glyphs)
		}
	}
	return n
}
