package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/wudi/pdfcore/coords"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/store"
)

// letter is the MediaBox used when a page has none.
var letter = coords.NewRect(0, 0, 612, 792)

// Page is a leaf of the page tree with its inherited attributes applied.
type Page struct {
	Index     int
	Ref       raw.ObjectRef
	Dict      *raw.DictObj
	MediaBox  coords.Rect
	CropBox   coords.Rect
	Rotate    int
	Resources *raw.DictObj

	doc *Document
}

// inherited holds the attributes a page takes from its ancestors.
type inherited struct {
	mediaBox, cropBox, rotate, resources raw.Object
}

func (in inherited) from(node *raw.DictObj) inherited {
	if v, ok := node.Get(names.MediaBox); ok {
		in.mediaBox = v
	}
	if v, ok := node.Get(names.CropBox); ok {
		in.cropBox = v
	}
	if v, ok := node.Get(names.Rotate); ok {
		in.rotate = v
	}
	if v, ok := node.Get(names.Resources); ok {
		in.resources = v
	}
	return in
}

type leaf struct {
	ref  raw.ObjectRef
	dict *raw.DictObj
	inh  inherited
}

var errPageTree = errors.New("page tree is inconsistent")

// pageRoot returns the /Pages node of the catalog.
func (d *Document) pageRoot() (raw.Object, *raw.DictObj, error) {
	cat, ok := d.Catalog()
	if !ok {
		return nil, nil, recovery.Errorf(recovery.KindSemantic, "pages", "document has no catalog")
	}
	ref := get(cat, names.Pages)
	root, ok := raw.AsDict(d.Resolve(ref))
	if !ok {
		return nil, nil, recovery.Errorf(recovery.KindSemantic, "pages", "catalog has no /Pages dictionary")
	}
	return ref, root, nil
}

// CountPages returns the number of pages. A missing or negative /Count is
// recovered by walking the tree.
func (d *Document) CountPages() int {
	d.sync()
	_, root, err := d.pageRoot()
	if err != nil {
		d.fail(err)
		return 0
	}
	if n, ok := raw.AsInt(d.Resolve(get(root, names.Count))); ok && n >= 0 {
		return int(n)
	}
	d.warnf("pages", "page tree root has no usable /Count")
	leaves, err := d.leaves()
	if err != nil {
		d.fail(err)
	}
	return len(leaves)
}

// LoadPage returns page k counting from zero. Results are cached per
// handle.
func (d *Document) LoadPage(k int) (*Page, error) {
	d.sync()
	n := d.CountPages()
	if k < 0 || k >= n {
		return nil, d.fail(recovery.New(recovery.KindSemantic, "load page", fmt.Errorf("page %d of %d: %w", k, n, ErrOutOfRange)))
	}
	key := store.Key{Type: store.TypePage, Num: k}
	if v, ok := d.cache.Get(key); ok {
		return v.(*Page), nil
	}
	lf, err := d.descend(k)
	if err != nil {
		if errors.Is(err, recovery.ErrLimit) {
			return nil, d.fail(err)
		}
		d.warnf("pages", "%v; enumerating the page tree", err)
		leaves, lerr := d.leaves()
		if lerr != nil && len(leaves) <= k {
			return nil, d.fail(lerr)
		}
		if k >= len(leaves) {
			return nil, d.fail(recovery.New(recovery.KindSemantic, "load page", fmt.Errorf("page %d: %w", k, ErrOutOfRange)))
		}
		lf = leaves[k]
	}
	p := d.newPage(k, lf)
	d.cache.Put(key, p, sizeOf(p.Dict)+128)
	return p, nil
}

// descend walks from the root to page k using the /Count of each node.
func (d *Document) descend(k int) (leaf, error) {
	rootRef, node, err := d.pageRoot()
	if err != nil {
		return leaf{}, err
	}
	var visited bitset.BitSet
	mark := func(o raw.Object) bool {
		r, ok := raw.AsRef(o)
		if !ok {
			return true
		}
		if visited.Test(uint(r.Num)) {
			return false
		}
		visited.Set(uint(r.Num))
		return true
	}
	mark(rootRef)
	inh := inherited{}.from(node)
	for depth := 0; ; depth++ {
		if depth > d.cfg.Limits.MaxPageTreeDepth {
			return leaf{}, recovery.Errorf(recovery.KindLimit, "pages", "page tree deeper than %d", d.cfg.Limits.MaxPageTreeDepth)
		}
		kids, ok := raw.AsArray(d.Resolve(get(node, names.Kids)))
		if !ok {
			return leaf{}, fmt.Errorf("%w: node without /Kids", errPageTree)
		}
		var next *raw.DictObj
		for _, kid := range kids.Items {
			kd, ok := raw.AsDict(d.Resolve(kid))
			if !ok {
				continue
			}
			if isPageNode(kd) {
				c, ok := raw.AsInt(d.Resolve(get(kd, names.Count)))
				if !ok || c < 0 {
					return leaf{}, fmt.Errorf("%w: node without /Count", errPageTree)
				}
				if k < int(c) {
					if !mark(kid) {
						return leaf{}, fmt.Errorf("%w: cycle through %v", errPageTree, kid)
					}
					next = kd
					break
				}
				k -= int(c)
				continue
			}
			if k == 0 {
				r, _ := raw.AsRef(kid)
				return leaf{ref: r, dict: kd, inh: inh.from(kd)}, nil
			}
			k--
		}
		if next == nil {
			return leaf{}, fmt.Errorf("%w: counts do not cover the page", errPageTree)
		}
		node = next
		inh = inh.from(node)
	}
}

// isPageNode reports whether d is an intermediate /Pages node.
func isPageNode(d *raw.DictObj) bool {
	if t, ok := d.Get(names.Type); ok {
		return raw.IsName(t, names.Pages)
	}
	return d.Has(names.Kids)
}

// leaves enumerates every page of the tree in order, ignoring /Count.
func (d *Document) leaves() ([]leaf, error) {
	key := store.Key{Type: store.TypePage, Num: -1}
	if v, ok := d.cache.Get(key); ok {
		return v.([]leaf), nil
	}
	rootRef, root, err := d.pageRoot()
	if err != nil {
		return nil, err
	}
	var (
		out     []leaf
		visited bitset.BitSet
		walkErr error
	)
	var walk func(ref raw.Object, node *raw.DictObj, inh inherited, depth int)
	walk = func(ref raw.Object, node *raw.DictObj, inh inherited, depth int) {
		if walkErr != nil {
			return
		}
		if depth > d.cfg.Limits.MaxPageTreeDepth {
			walkErr = recovery.Errorf(recovery.KindLimit, "pages", "page tree deeper than %d", d.cfg.Limits.MaxPageTreeDepth)
			return
		}
		if r, ok := raw.AsRef(ref); ok {
			if visited.Test(uint(r.Num)) {
				d.warnf("pages", "page tree cycle through %s", r)
				return
			}
			visited.Set(uint(r.Num))
		}
		inh = inh.from(node)
		if !isPageNode(node) {
			r, _ := raw.AsRef(ref)
			out = append(out, leaf{ref: r, dict: node, inh: inh})
			return
		}
		kids, _ := raw.AsArray(d.Resolve(get(node, names.Kids)))
		if kids == nil {
			return
		}
		for _, kid := range kids.Items {
			if kd, ok := raw.AsDict(d.Resolve(kid)); ok {
				walk(kid, kd, inh, depth+1)
			}
		}
	}
	walk(rootRef, root, inherited{}, 0)
	d.cache.Put(key, out, int64(len(out))*64)
	return out, walkErr
}

func (d *Document) newPage(k int, lf leaf) *Page {
	p := &Page{Index: k, Ref: lf.ref, Dict: lf.dict, doc: d}
	if r, ok := d.rect(lf.inh.mediaBox); ok && !r.IsEmpty() && r.Width() > 0 && r.Height() > 0 {
		p.MediaBox = r
	} else {
		d.warnf("pages", "page %d has no valid /MediaBox; using Letter", k)
		p.MediaBox = letter
	}
	p.CropBox = p.MediaBox
	if r, ok := d.rect(lf.inh.cropBox); ok {
		if c := r.Intersect(p.MediaBox); !c.IsEmpty() {
			p.CropBox = c
		}
	}
	if rot, ok := raw.AsInt(d.Resolve(lf.inh.rotate)); ok {
		p.Rotate = normalizeRotation(rot)
	}
	p.Resources, _ = raw.AsDict(d.Resolve(lf.inh.resources))
	if p.Resources == nil {
		p.Resources = raw.NewDict()
	}
	return p
}

func (d *Document) rect(o raw.Object) (coords.Rect, bool) {
	arr, ok := raw.AsArray(d.Resolve(o))
	if !ok {
		return coords.Rect{}, false
	}
	vals := make([]float64, 0, 4)
	for _, it := range arr.Items {
		f, ok := raw.AsFloat(d.Resolve(it))
		if !ok {
			return coords.Rect{}, false
		}
		vals = append(vals, f)
	}
	return coords.RectFromSlice(vals)
}

// normalizeRotation maps any multiple of 90 into 0, 90, 180 or 270; other
// values become 0.
func normalizeRotation(r int64) int {
	r %= 360
	if r < 0 {
		r += 360
	}
	if r%90 != 0 {
		return 0
	}
	return int(r)
}

// quarterTurn is the exact clockwise rotation by deg in a y-down space.
func quarterTurn(deg int) coords.Matrix {
	switch deg {
	case 90:
		return coords.Matrix{0, 1, -1, 0, 0, 0}
	case 180:
		return coords.Matrix{-1, 0, 0, -1, 0, 0}
	case 270:
		return coords.Matrix{0, -1, 1, 0, 0, 0}
	}
	return coords.Identity()
}

// Document returns the handle the page was loaded from.
func (p *Page) Document() *Document { return p.doc }

// Transform maps page space to a top-left origin space over the rotated
// crop box, one unit per point.
func (p *Page) Transform() coords.Matrix {
	c := p.CropBox
	m := coords.Translate(-c.X0, -c.Y1).Multiply(coords.Scale(1, -1))
	m = m.Multiply(quarterTurn(p.Rotate))
	b := c.Transform(m)
	return m.Multiply(coords.Translate(-b.X0, -b.Y0))
}

// Bound returns the page rectangle in the space of Transform.
func (p *Page) Bound() coords.Rect {
	return p.CropBox.Transform(p.Transform())
}

// Contents returns the concatenated decoded content streams of the page.
// Streams that fail to decode are skipped with a warning.
func (p *Page) Contents(ctx context.Context) ([]byte, error) {
	d := p.doc
	var parts []raw.Object
	switch v := d.Resolve(get(p.Dict, names.Contents)).(type) {
	case *raw.StreamObj:
		parts = []raw.Object{v}
	case *raw.ArrayObj:
		parts = v.Items
	case raw.NullObj:
		return nil, nil
	default:
		d.warnf("pages", "page %d /Contents is a %s", p.Index, v.Type())
		return nil, nil
	}
	var buf bytes.Buffer
	for _, part := range parts {
		st, ok := raw.AsStream(d.Resolve(part))
		if !ok {
			continue
		}
		data, err := d.DecodeStream(ctx, st)
		if err != nil {
			if recovery.KindOf(err) != recovery.KindSyntax {
				return nil, err
			}
			d.warnf("pages", "page %d content stream %s: %v", p.Index, st.Ref, err)
			d.IgnoreError()
			continue
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
