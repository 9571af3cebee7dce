// Package device defines the consumer side of content-stream processing:
// the Device interface that receives graphical events and the reference
// devices shipped with the module.
package device

import (
	"github.com/wudi/pdfcore/coords"
	"github.com/wudi/pdfcore/ir/raw"
)

// FillRule selects how the interior of a path is decided.
type FillRule int

const (
	NonZero FillRule = iota
	EvenOdd
)

func (r FillRule) String() string {
	if r == EvenOdd {
		return "even-odd"
	}
	return "non-zero"
}

// LineCap is the J operator value.
type LineCap int

const (
	CapButt LineCap = iota
	CapRound
	CapSquare
)

// LineJoin is the j operator value.
type LineJoin int

const (
	JoinMiter LineJoin = iota
	JoinRound
	JoinBevel
)

// StrokeState carries the line parameters of a stroke.
type StrokeState struct {
	LineWidth  float64
	Cap        LineCap
	Join       LineJoin
	MiterLimit float64
	Dash       []float64
	DashPhase  float64
}

// DefaultStroke is the stroke state at the start of a page.
func DefaultStroke() StrokeState {
	return StrokeState{LineWidth: 1, MiterLimit: 10}
}

// Paint is the color a shape is filled or stroked with.
type Paint struct {
	Space *ColorSpace
	Color []float64
	Alpha float64
}

// Group describes a transparency group.
type Group struct {
	Area     coords.Rect
	Space    *ColorSpace
	Isolated bool
	Knockout bool
	Blend    string
	Alpha    float64
}

// Mask describes a soft mask. The mask content is sent between BeginMask
// and EndMask; what follows EndMask up to the matching PopClip is drawn
// through it.
type Mask struct {
	Area       coords.Rect
	Luminosity bool
	Space      *ColorSpace
	Backdrop   []float64
}

// Tile describes one cell of a tiling pattern. View is the area to cover
// and Area the pattern cell, both in pattern space mapped by CTM.
type Tile struct {
	Area         coords.Rect
	View         coords.Rect
	XStep, YStep float64
	CTM          coords.Matrix
}

// Device consumes the events produced by running a content stream. Paths,
// text and images passed to a device belong to the caller once the call
// returns unless the device copies them; the processor never reuses them.
type Device interface {
	FillPath(p *Path, rule FillRule, ctm coords.Matrix, paint Paint) error
	StrokePath(p *Path, st *StrokeState, ctm coords.Matrix, paint Paint) error
	ClipPath(p *Path, rule FillRule, ctm coords.Matrix, scissor coords.Rect) error
	ClipStrokePath(p *Path, st *StrokeState, ctm coords.Matrix, scissor coords.Rect) error

	FillText(t *Text, ctm coords.Matrix, paint Paint) error
	StrokeText(t *Text, st *StrokeState, ctm coords.Matrix, paint Paint) error
	ClipText(t *Text, ctm coords.Matrix, scissor coords.Rect) error
	IgnoreText(t *Text, ctm coords.Matrix) error

	FillImage(img *Image, ctm coords.Matrix, alpha float64) error
	FillImageMask(img *Image, ctm coords.Matrix, paint Paint) error
	ClipImageMask(img *Image, ctm coords.Matrix, scissor coords.Rect) error
	FillShade(sh *Shade, ctm coords.Matrix, alpha float64) error

	// PopClip undoes the most recent clip or soft mask.
	PopClip() error

	BeginMask(m Mask) error
	EndMask() error
	BeginGroup(g Group) error
	EndGroup() error
	BeginTile(t Tile) error
	EndTile() error

	// Close flushes pending output. Drop releases resources; it is safe to
	// call after Close.
	Close() error
	Drop()
}

// Marker is implemented by devices that follow marked content. Tag is the
// BMC/BDC tag; props is the property list, nil for BMC.
type Marker interface {
	BeginMarked(tag string, props *raw.DictObj) error
	EndMarked() error
}

// NullDevice ignores every event. Embed it to implement a subset of
// Device.
type NullDevice struct{}

func (NullDevice) FillPath(*Path, FillRule, coords.Matrix, Paint) error                 { return nil }
func (NullDevice) StrokePath(*Path, *StrokeState, coords.Matrix, Paint) error           { return nil }
func (NullDevice) ClipPath(*Path, FillRule, coords.Matrix, coords.Rect) error           { return nil }
func (NullDevice) ClipStrokePath(*Path, *StrokeState, coords.Matrix, coords.Rect) error { return nil }
func (NullDevice) FillText(*Text, coords.Matrix, Paint) error                           { return nil }
func (NullDevice) StrokeText(*Text, *StrokeState, coords.Matrix, Paint) error           { return nil }
func (NullDevice) ClipText(*Text, coords.Matrix, coords.Rect) error                     { return nil }
func (NullDevice) IgnoreText(*Text, coords.Matrix) error                                { return nil }
func (NullDevice) FillImage(*Image, coords.Matrix, float64) error                       { return nil }
func (NullDevice) FillImageMask(*Image, coords.Matrix, Paint) error                     { return nil }
func (NullDevice) ClipImageMask(*Image, coords.Matrix, coords.Rect) error               { return nil }
func (NullDevice) FillShade(*Shade, coords.Matrix, float64) error                       { return nil }
func (NullDevice) PopClip() error                                                       { return nil }
func (NullDevice) BeginMask(Mask) error                                                 { return nil }
func (NullDevice) EndMask() error                                                       { return nil }
func (NullDevice) BeginGroup(Group) error                                               { return nil }
func (NullDevice) EndGroup() error                                                      { return nil }
func (NullDevice) BeginTile(Tile) error                                                 { return nil }
func (NullDevice) EndTile() error                                                       { return nil }
func (NullDevice) Close() error                                                         { return nil }
func (NullDevice) Drop()                                                                {}

var _ Device = NullDevice{}
