package fonts

import (
	"fmt"
	"math"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Program holds metrics read from an embedded TrueType or OpenType font
// file, in glyph space units of 1/1000 em.
type Program struct {
	Name    string
	Ascent  float64
	Descent float64
	Bounds  [4]float64
	// Advances by glyph id.
	Advances []float64

	font *sfnt.Font
}

// ParseProgram reads the metrics of an embedded TrueType/OpenType font.
func ParseProgram(data []byte) (*Program, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("font program is empty")
	}
	font, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font program: %w", err)
	}
	unitsPerEm := font.UnitsPerEm()
	if unitsPerEm == 0 {
		return nil, fmt.Errorf("invalid unitsPerEm")
	}
	buf := &sfnt.Buffer{}
	ppem := fixed.Int26_6(unitsPerEm << 6)

	p := &Program{font: font}
	if ps, _ := font.Name(buf, sfnt.NameIDPostScript); ps != "" {
		p.Name = ps
	}
	p.Advances = glyphAdvances(font, buf, unitsPerEm, ppem)
	if metrics, err := font.Metrics(buf, ppem, xfont.HintingNone); err == nil {
		p.Ascent = scaleFixed(metrics.Ascent, unitsPerEm)
		p.Descent = -scaleFixed(metrics.Descent, unitsPerEm)
	}
	if b, err := font.Bounds(buf, ppem, xfont.HintingNone); err == nil {
		// sfnt bounds are y-down.
		p.Bounds = [4]float64{
			scaleFixed(b.Min.X, unitsPerEm),
			-scaleFixed(b.Max.Y, unitsPerEm),
			scaleFixed(b.Max.X, unitsPerEm),
			-scaleFixed(b.Min.Y, unitsPerEm),
		}
	}
	return p, nil
}

// GlyphIndex maps a rune through the font's cmap; zero means notdef.
func (p *Program) GlyphIndex(r rune) int {
	if p == nil || p.font == nil {
		return 0
	}
	gid, err := p.font.GlyphIndex(&sfnt.Buffer{}, r)
	if err != nil {
		return 0
	}
	return int(gid)
}

// Advance returns the advance of glyph gid, or 0 when unknown.
func (p *Program) Advance(gid int) float64 {
	if p == nil || gid < 0 || gid >= len(p.Advances) {
		return 0
	}
	return p.Advances[gid]
}

func glyphAdvances(font *sfnt.Font, buf *sfnt.Buffer, unitsPerEm sfnt.Units, ppem fixed.Int26_6) []float64 {
	n := font.NumGlyphs()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		adv, err := font.GlyphAdvance(buf, sfnt.GlyphIndex(i), ppem, xfont.HintingNone)
		if err != nil {
			continue
		}
		out[i] = math.Round(scaleFixed(adv, unitsPerEm))
	}
	return out
}

func scaleFixed(val fixed.Int26_6, unitsPerEm sfnt.Units) float64 {
	return float64(val) * 1000.0 / (64.0 * float64(unitsPerEm))
}
