package device

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/wudi/pdfcore/cookie"
	"github.com/wudi/pdfcore/coords"
)

type cmdKind uint8

const (
	cmdFillPath cmdKind = iota
	cmdStrokePath
	cmdClipPath
	cmdClipStrokePath
	cmdFillText
	cmdStrokeText
	cmdClipText
	cmdIgnoreText
	cmdFillImage
	cmdFillImageMask
	cmdClipImageMask
	cmdFillShade
	cmdPopClip
	cmdBeginMask
	cmdEndMask
	cmdBeginGroup
	cmdEndGroup
	cmdBeginTile
	cmdEndTile
)

var cmdNames = [...]string{
	"fill_path", "stroke_path", "clip_path", "clip_stroke_path",
	"fill_text", "stroke_text", "clip_text", "ignore_text",
	"fill_image", "fill_image_mask", "clip_image_mask", "fill_shade",
	"pop_clip", "begin_mask", "end_mask", "begin_group", "end_group",
	"begin_tile", "end_tile",
}

func (k cmdKind) String() string { return cmdNames[k] }

type command struct {
	kind    cmdKind
	path    *Path
	rule    FillRule
	stroke  *StrokeState
	ctm     coords.Matrix
	paint   Paint
	text    *Text
	image   *Image
	shade   *Shade
	alpha   float64
	scissor coords.Rect
	mask    Mask
	group   Group
	tile    Tile
	bounds  coords.Rect
	// drawing marks painting commands outside masks and tiles; only those
	// are culled on replay.
	drawing bool
}

// ListDevice records events into a display list that can be replayed into
// any other device.
type ListDevice struct {
	cmds   []command
	nested int
	index  *quadTree
	closed bool
}

func NewListDevice() *ListDevice { return &ListDevice{} }

// Len returns the number of recorded commands.
func (l *ListDevice) Len() int { return len(l.cmds) }

// Ops returns the recorded event names in order.
func (l *ListDevice) Ops() []string {
	out := make([]string, len(l.cmds))
	for i, c := range l.cmds {
		out[i] = c.kind.String()
	}
	return out
}

// Bounds returns the union of the painting commands' bounds.
func (l *ListDevice) Bounds() coords.Rect {
	r := coords.EmptyRect
	for _, c := range l.cmds {
		if c.drawing && !c.bounds.IsInfinite() {
			r = r.Union(c.bounds)
		}
	}
	return r
}

func (l *ListDevice) record(c command, draws bool) {
	c.drawing = draws && l.nested == 0
	l.cmds = append(l.cmds, c)
	l.index = nil
}

func copyPaint(p Paint) Paint {
	p.Color = append([]float64(nil), p.Color...)
	return p
}

func copyStroke(st *StrokeState) *StrokeState {
	if st == nil {
		return nil
	}
	c := *st
	c.Dash = append([]float64(nil), st.Dash...)
	return &c
}

func (l *ListDevice) FillPath(p *Path, rule FillRule, ctm coords.Matrix, paint Paint) error {
	l.record(command{kind: cmdFillPath, path: p, rule: rule, ctm: ctm, paint: copyPaint(paint), bounds: p.Bounds(ctm)}, true)
	return nil
}

func (l *ListDevice) StrokePath(p *Path, st *StrokeState, ctm coords.Matrix, paint Paint) error {
	l.record(command{kind: cmdStrokePath, path: p, stroke: copyStroke(st), ctm: ctm, paint: copyPaint(paint), bounds: p.StrokeBounds(st, ctm)}, true)
	return nil
}

func (l *ListDevice) ClipPath(p *Path, rule FillRule, ctm coords.Matrix, scissor coords.Rect) error {
	l.record(command{kind: cmdClipPath, path: p, rule: rule, ctm: ctm, scissor: scissor}, false)
	return nil
}

func (l *ListDevice) ClipStrokePath(p *Path, st *StrokeState, ctm coords.Matrix, scissor coords.Rect) error {
	l.record(command{kind: cmdClipStrokePath, path: p, stroke: copyStroke(st), ctm: ctm, scissor: scissor}, false)
	return nil
}

func (l *ListDevice) FillText(t *Text, ctm coords.Matrix, paint Paint) error {
	l.record(command{kind: cmdFillText, text: t, ctm: ctm, paint: copyPaint(paint), bounds: t.Bounds(ctm)}, true)
	return nil
}

func (l *ListDevice) StrokeText(t *Text, st *StrokeState, ctm coords.Matrix, paint Paint) error {
	l.record(command{kind: cmdStrokeText, text: t, stroke: copyStroke(st), ctm: ctm, paint: copyPaint(paint), bounds: t.Bounds(ctm)}, true)
	return nil
}

func (l *ListDevice) ClipText(t *Text, ctm coords.Matrix, scissor coords.Rect) error {
	l.record(command{kind: cmdClipText, text: t, ctm: ctm, scissor: scissor}, false)
	return nil
}

func (l *ListDevice) IgnoreText(t *Text, ctm coords.Matrix) error {
	l.record(command{kind: cmdIgnoreText, text: t, ctm: ctm, bounds: t.Bounds(ctm)}, true)
	return nil
}

func (l *ListDevice) FillImage(img *Image, ctm coords.Matrix, alpha float64) error {
	l.record(command{kind: cmdFillImage, image: img, ctm: ctm, alpha: alpha, bounds: img.Bounds(ctm)}, true)
	return nil
}

func (l *ListDevice) FillImageMask(img *Image, ctm coords.Matrix, paint Paint) error {
	l.record(command{kind: cmdFillImageMask, image: img, ctm: ctm, paint: copyPaint(paint), bounds: img.Bounds(ctm)}, true)
	return nil
}

func (l *ListDevice) ClipImageMask(img *Image, ctm coords.Matrix, scissor coords.Rect) error {
	l.record(command{kind: cmdClipImageMask, image: img, ctm: ctm, scissor: scissor}, false)
	return nil
}

func (l *ListDevice) FillShade(sh *Shade, ctm coords.Matrix, alpha float64) error {
	l.record(command{kind: cmdFillShade, shade: sh, ctm: ctm, alpha: alpha, bounds: sh.Bounds(ctm)}, true)
	return nil
}

func (l *ListDevice) PopClip() error {
	l.record(command{kind: cmdPopClip}, false)
	return nil
}

func (l *ListDevice) BeginMask(m Mask) error {
	m.Backdrop = append([]float64(nil), m.Backdrop...)
	l.record(command{kind: cmdBeginMask, mask: m}, false)
	l.nested++
	return nil
}

func (l *ListDevice) EndMask() error {
	if l.nested > 0 {
		l.nested--
	}
	l.record(command{kind: cmdEndMask}, false)
	return nil
}

func (l *ListDevice) BeginGroup(g Group) error {
	l.record(command{kind: cmdBeginGroup, group: g}, false)
	return nil
}

func (l *ListDevice) EndGroup() error {
	l.record(command{kind: cmdEndGroup}, false)
	return nil
}

func (l *ListDevice) BeginTile(t Tile) error {
	l.record(command{kind: cmdBeginTile, tile: t}, false)
	l.nested++
	return nil
}

func (l *ListDevice) EndTile() error {
	if l.nested > 0 {
		l.nested--
	}
	l.record(command{kind: cmdEndTile}, false)
	return nil
}

func (l *ListDevice) Close() error {
	l.closed = true
	return nil
}

func (l *ListDevice) Drop() {
	l.cmds = nil
	l.index = nil
}

func (l *ListDevice) buildIndex() {
	root := l.Bounds()
	if root.IsEmpty() {
		root = coords.Rect{}
	}
	l.index = newQuadTree(root, 16)
	for i, c := range l.cmds {
		if c.drawing && !c.bounds.IsInfinite() && !c.bounds.IsEmpty() {
			l.index.insert(c.bounds, i)
		}
	}
}

// Replay sends the recorded events to dev with every matrix post-multiplied
// by ctm. Painting commands whose bounds miss area, given in the replayed
// space, are skipped; pass coords.InfiniteRect to replay everything. The
// cookie is polled between commands.
func (l *ListDevice) Replay(dev Device, ctm coords.Matrix, area coords.Rect, ck *cookie.Cookie) error {
	var keep *bitset.BitSet
	if !area.IsInfinite() {
		inv, err := ctm.Inverse()
		if err == nil {
			if l.index == nil {
				l.buildIndex()
			}
			keep = bitset.New(uint(len(l.cmds)))
			l.index.query(area.Transform(inv), func(i int) { keep.Set(uint(i)) })
		}
	}
	ck.SetProgress(0, int64(len(l.cmds)))
	for i, c := range l.cmds {
		if err := ck.Err("replay"); err != nil {
			return err
		}
		ck.Advance()
		if keep != nil && c.drawing && !c.bounds.IsInfinite() && !keep.Test(uint(i)) {
			continue
		}
		if err := c.replay(dev, ctm); err != nil {
			return err
		}
	}
	return nil
}

func (c *command) replay(dev Device, ctm coords.Matrix) error {
	m := c.ctm.Multiply(ctm)
	scissor := c.scissor.Transform(ctm)
	switch c.kind {
	case cmdFillPath:
		return dev.FillPath(c.path, c.rule, m, c.paint)
	case cmdStrokePath:
		return dev.StrokePath(c.path, c.stroke, m, c.paint)
	case cmdClipPath:
		return dev.ClipPath(c.path, c.rule, m, scissor)
	case cmdClipStrokePath:
		return dev.ClipStrokePath(c.path, c.stroke, m, scissor)
	case cmdFillText:
		return dev.FillText(c.text, m, c.paint)
	case cmdStrokeText:
		return dev.StrokeText(c.text, c.stroke, m, c.paint)
	case cmdClipText:
		return dev.ClipText(c.text, m, scissor)
	case cmdIgnoreText:
		return dev.IgnoreText(c.text, m)
	case cmdFillImage:
		return dev.FillImage(c.image, m, c.alpha)
	case cmdFillImageMask:
		return dev.FillImageMask(c.image, m, c.paint)
	case cmdClipImageMask:
		return dev.ClipImageMask(c.image, m, scissor)
	case cmdFillShade:
		return dev.FillShade(c.shade, m, c.alpha)
	case cmdPopClip:
		return dev.PopClip()
	case cmdBeginMask:
		mk := c.mask
		mk.Area = mk.Area.Transform(ctm)
		return dev.BeginMask(mk)
	case cmdEndMask:
		return dev.EndMask()
	case cmdBeginGroup:
		g := c.group
		g.Area = g.Area.Transform(ctm)
		return dev.BeginGroup(g)
	case cmdEndGroup:
		return dev.EndGroup()
	case cmdBeginTile:
		t := c.tile
		t.CTM = t.CTM.Multiply(ctm)
		return dev.BeginTile(t)
	case cmdEndTile:
		return dev.EndTile()
	}
	return nil
}

var _ Device = (*ListDevice)(nil)
