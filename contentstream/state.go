package contentstream

import (
	"github.com/wudi/pdfcore/coords"
	"github.com/wudi/pdfcore/device"
	"github.com/wudi/pdfcore/fonts"
	"github.com/wudi/pdfcore/ir/raw"
)

// State is the lexical state of the processor.
type State int

const (
	StatePage State = iota
	StateText
	StateInlineImage
	StateMaskedClip
)

func (s State) String() string {
	switch s {
	case StatePage:
		return "page"
	case StateText:
		return "in_text"
	case StateInlineImage:
		return "inline_image"
	case StateMaskedClip:
		return "masked_clip"
	}
	return "unknown"
}

// material is what a fill or stroke paints with: a color, or a pattern
// with the color used by uncolored tiling patterns.
type material struct {
	space   *device.ColorSpace
	color   []float64
	pattern *pattern
}

func deviceMaterial(cs *device.ColorSpace) material {
	return material{space: cs, color: cs.Initial()}
}

type textState struct {
	charSpace float64
	wordSpace float64
	scale     float64
	leading   float64
	font      *fonts.Font
	size      float64
	mode      device.TextMode
	rise      float64
}

// softMask is an ExtGState /SMask captured with the CTM in force when gs
// ran.
type softMask struct {
	group      *raw.StreamObj
	luminosity bool
	backdrop   []float64
	ctm        coords.Matrix
}

// gstate is one level of the q/Q stack.
type gstate struct {
	ctm    coords.Matrix
	stroke device.StrokeState

	fill, line             material
	fillAlpha, strokeAlpha float64
	blend                  string
	mask                   *softMask
	flatness               float64
	text                   textState

	// clips counts device clips pushed at this level; Q pops them.
	clips int
	// marked is the marked-content depth when the level was saved.
	marked int
	// locked ignores color operators, inside uncolored patterns and the
	// glyphs of Type 3 fonts declared with d1.
	locked bool
}

func newGState(ctm coords.Matrix) gstate {
	return gstate{
		ctm:         ctm,
		stroke:      device.DefaultStroke(),
		fill:        deviceMaterial(device.DeviceGray),
		line:        deviceMaterial(device.DeviceGray),
		fillAlpha:   1,
		strokeAlpha: 1,
		blend:       "Normal",
		flatness:    1,
		text:        textState{scale: 1},
	}
}

// paint returns m as a device paint with alpha.
func (m material) paint(alpha float64) device.Paint {
	return device.Paint{Space: m.space, Color: m.color, Alpha: alpha}
}

// clone copies the parts of a level that operators mutate in place.
func (g gstate) clone() gstate {
	g.stroke.Dash = append([]float64(nil), g.stroke.Dash...)
	g.clips = 0
	return g
}
