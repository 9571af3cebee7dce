// Package fonts loads PDF font dictionaries far enough to split shown
// strings into character codes, measure their advances and map them to
// Unicode. Glyph outlines and rasterization are left to devices.
package fonts

import (
	"context"
	"fmt"

	"github.com/wudi/pdfcore/coords"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/pdf"
	"github.com/wudi/pdfcore/recovery"
)

// defaultWidth is used when a font has neither /Widths nor a usable
// program, in 1/1000 em.
const defaultWidth = 500

// Font is a loaded font resource.
type Font struct {
	Ref      raw.ObjectRef
	BaseFont string
	Subtype  names.ID
	Dict     *raw.DictObj

	// Composite fonts (Type0) take their codes from an encoding CMap.
	Composite bool
	// Type3 fonts carry glyph procedures and their own matrix.
	Type3      bool
	FontMatrix coords.Matrix
	CharProcs  *raw.DictObj
	Resources  *raw.DictObj

	Ascent, Descent float64

	encoding  Encoding
	hasEnc    bool
	codes     *CMap
	identity  bool
	toUnicode *CMap
	widths    map[uint32]float64
	glyphs    map[uint32]string
	missing   float64
	program   *Program
}

// Char is one character code split off a shown string.
type Char struct {
	Code    uint32
	CID     uint32
	Bytes   int
	Unicode string
	// Width in 1/1000 text space units (glyph space for Type3 fonts is
	// mapped through FontMatrix by the caller).
	Width float64
}

// Load builds a Font from the dictionary obj found under ref.
func Load(ctx context.Context, doc *pdf.Document, ref raw.ObjectRef, obj raw.Object) (*Font, error) {
	v, err := doc.Memo(ref, func() (any, int64, error) {
		f, err := load(ctx, doc, ref, obj)
		if err != nil {
			return nil, 0, err
		}
		return f, int64(256 + 16*len(f.widths)), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Font), nil
}

func load(ctx context.Context, doc *pdf.Document, ref raw.ObjectRef, obj raw.Object) (*Font, error) {
	d, ok := raw.AsDict(doc.Resolve(obj))
	if !ok {
		return nil, recovery.Errorf(recovery.KindSemantic, "font", "font %v is not a dictionary", ref)
	}
	f := &Font{Ref: ref, Dict: d, FontMatrix: coords.Scale(0.001, 0.001), Ascent: 800, Descent: -200}
	f.Subtype, _ = raw.AsName(doc.Resolve(get(d, names.Subtype)))
	if n, ok := raw.AsName(doc.Resolve(get(d, names.BaseFont))); ok {
		f.BaseFont = names.Default().String(n)
	}
	f.toUnicode = loadCMap(ctx, doc, get(d, names.ToUnicode))

	switch f.Subtype {
	case names.Type0:
		f.Composite = true
		err := f.loadComposite(ctx, doc, d)
		if err != nil {
			return nil, err
		}
	case names.Type3:
		f.Type3 = true
		if arr, ok := raw.AsArray(doc.Resolve(get(d, names.FontMatrix))); ok {
			if vals, ok := raw.Floats(arr); ok {
				if m, ok := coords.FromSlice(vals); ok {
					f.FontMatrix = m
				}
			}
		}
		f.CharProcs, _ = raw.AsDict(doc.Resolve(get(d, names.CharProcs)))
		f.Resources, _ = raw.AsDict(doc.Resolve(get(d, names.Resources)))
		f.loadSimple(ctx, doc, d)
	default:
		f.loadSimple(ctx, doc, d)
	}
	return f, nil
}

func (f *Font) loadSimple(ctx context.Context, doc *pdf.Document, d *raw.DictObj) {
	f.widths = map[uint32]float64{}
	first, _ := raw.AsInt(doc.Resolve(get(d, names.FirstChar)))
	if arr, ok := raw.AsArray(doc.Resolve(get(d, names.Widths))); ok {
		for i, it := range arr.Items {
			if w, ok := raw.AsFloat(doc.Resolve(it)); ok {
				f.widths[uint32(first)+uint32(i)] = w
			}
		}
	}
	desc, _ := raw.AsDict(doc.Resolve(get(d, names.FontDescriptor)))
	f.readDescriptor(ctx, doc, desc)

	switch enc := doc.Resolve(get(d, names.Encoding)).(type) {
	case raw.NameObj:
		f.encoding, f.hasEnc = BaseEncoding(enc.ID)
	case *raw.DictObj:
		f.encoding, f.hasEnc = standardEncoding, true
		if base, ok := raw.AsName(doc.Resolve(get(enc, names.BaseEncoding))); ok {
			if e, ok := BaseEncoding(base); ok {
				f.encoding = e
			}
		}
		if diffs, ok := raw.AsArray(doc.Resolve(get(enc, names.Differences))); ok {
			code := 0
			for _, it := range diffs.Items {
				switch v := doc.Resolve(it).(type) {
				case raw.NumberObj:
					code = int(v.Int())
				case raw.NameObj:
					if code >= 0 && code < 256 {
						if f.glyphs == nil {
							f.glyphs = map[uint32]string{}
						}
						f.glyphs[uint32(code)] = v.Value()
						if r, ok := GlyphRune(v.Value()); ok {
							f.encoding[code] = r
						}
					}
					code++
				}
			}
		}
	default:
		if !f.Type3 {
			f.encoding, f.hasEnc = standardEncoding, true
		}
	}
}

func (f *Font) loadComposite(ctx context.Context, doc *pdf.Document, d *raw.DictObj) error {
	switch enc := doc.Resolve(get(d, names.Encoding)).(type) {
	case raw.NameObj:
		// Predefined CMaps other than Identity are read as two-byte
		// identity encodings.
		f.identity = true
		if enc.ID != names.IdentityH && enc.Value() != "Identity-V" {
			doc.Warnf("font", "%s uses predefined cmap /%s; reading codes as two-byte CIDs", f.BaseFont, enc.Value())
		}
	case *raw.StreamObj:
		f.codes = loadCMap(ctx, doc, enc)
		if f.codes == nil {
			f.identity = true
		}
	default:
		f.identity = true
	}

	kids, _ := raw.AsArray(doc.Resolve(get(d, names.DescendantFonts)))
	if kids == nil || kids.Len() == 0 {
		return recovery.Errorf(recovery.KindSemantic, "font", "Type0 font %s has no descendant", f.BaseFont)
	}
	cid, ok := raw.AsDict(doc.Resolve(kids.Items[0]))
	if !ok {
		return recovery.Errorf(recovery.KindSemantic, "font", "Type0 font %s descendant is not a dictionary", f.BaseFont)
	}
	f.missing = 1000
	if dw, ok := raw.AsFloat(doc.Resolve(get(cid, names.DW))); ok {
		f.missing = dw
	}
	f.widths = map[uint32]float64{}
	if w, ok := raw.AsArray(doc.Resolve(get(cid, names.W))); ok {
		readCIDWidths(doc, w, f.widths)
	}
	desc, _ := raw.AsDict(doc.Resolve(get(cid, names.FontDescriptor)))
	f.readDescriptor(ctx, doc, desc)
	return nil
}

// readCIDWidths reads the "c [w1 w2 ...]" and "c1 c2 w" forms of /W.
func readCIDWidths(doc *pdf.Document, w *raw.ArrayObj, out map[uint32]float64) {
	items := w.Items
	for i := 0; i+1 < len(items); {
		first, ok := raw.AsInt(doc.Resolve(items[i]))
		if !ok {
			return
		}
		switch next := doc.Resolve(items[i+1]).(type) {
		case *raw.ArrayObj:
			for j, it := range next.Items {
				if v, ok := raw.AsFloat(doc.Resolve(it)); ok {
					out[uint32(first)+uint32(j)] = v
				}
			}
			i += 2
		case raw.NumberObj:
			if i+2 >= len(items) {
				return
			}
			v, _ := raw.AsFloat(doc.Resolve(items[i+2]))
			for c := first; c <= next.Int() && c-first < 1<<16; c++ {
				out[uint32(c)] = v
			}
			i += 3
		default:
			return
		}
	}
}

func (f *Font) readDescriptor(ctx context.Context, doc *pdf.Document, desc *raw.DictObj) {
	if desc == nil {
		return
	}
	if v, ok := raw.AsFloat(doc.Resolve(get(desc, names.MissingWidth))); ok && !f.Composite {
		f.missing = v
	}
	if v, ok := desc.Get(names.Ascent); ok {
		if a, ok := raw.AsFloat(doc.Resolve(v)); ok && a != 0 {
			f.Ascent = a
		}
	}
	if v, ok := desc.Get(names.Descent); ok {
		if a, ok := raw.AsFloat(doc.Resolve(v)); ok && a != 0 {
			f.Descent = a
		}
	}
	for _, key := range []names.ID{names.FontFile2, names.FontFile3} {
		v, ok := desc.Get(key)
		if !ok {
			continue
		}
		data, _, err := doc.StreamOf(ctx, v)
		if err != nil {
			doc.Warnf("font", "%s: /%s: %v", f.BaseFont, names.Default().String(key), err)
			doc.IgnoreError()
			continue
		}
		if p, err := ParseProgram(data); err == nil {
			f.program = p
		}
		break
	}
}

func loadCMap(ctx context.Context, doc *pdf.Document, o raw.Object) *CMap {
	if raw.IsNull(o) {
		return nil
	}
	data, _, err := doc.StreamOf(ctx, o)
	if err != nil {
		doc.Warnf("font", "cmap: %v", err)
		doc.IgnoreError()
		return nil
	}
	m, err := ParseCMap(data)
	if err != nil {
		doc.Warnf("font", "cmap: %v", err)
		return nil
	}
	return m
}

// Decode splits a shown string into characters.
func (f *Font) Decode(b []byte) []Char {
	out := make([]Char, 0, len(b))
	for len(b) > 0 {
		var ch Char
		switch {
		case f.codes != nil:
			ch.Code, ch.Bytes = f.codes.Next(b, 2)
			if cid, ok := f.codes.CID(ch.Code); ok {
				ch.CID = cid
			} else {
				ch.CID = ch.Code
			}
		case f.Composite:
			ch.Code, ch.Bytes = f.toUnicode.Next(b, 2)
			if f.identity && ch.Bytes != 2 && len(b) >= 2 {
				ch.Code, ch.Bytes = codeOf(b[:2]), 2
			}
			ch.CID = ch.Code
		default:
			ch.Code, ch.Bytes = uint32(b[0]), 1
			ch.CID = ch.Code
		}
		ch.Unicode = f.unicode(ch.Code)
		ch.Width = f.Width(ch)
		out = append(out, ch)
		b = b[ch.Bytes:]
	}
	return out
}

func (f *Font) unicode(code uint32) string {
	if s, ok := f.toUnicode.Unicode(code); ok {
		return s
	}
	if f.hasEnc && code < 256 {
		if r := f.encoding[code]; r != 0 {
			return string(r)
		}
	}
	if !f.Composite && code >= 32 && code < 127 {
		return string(rune(code))
	}
	return ""
}

// Width returns the advance of ch in 1/1000 text space units.
func (f *Font) Width(ch Char) float64 {
	key := ch.Code
	if f.Composite {
		key = ch.CID
	}
	if w, ok := f.widths[key]; ok {
		return w
	}
	if f.program != nil && !f.Composite && ch.Unicode != "" {
		if gid := f.program.GlyphIndex([]rune(ch.Unicode)[0]); gid > 0 {
			return f.program.Advance(gid)
		}
	}
	if f.missing > 0 {
		return f.missing
	}
	if f.Type3 {
		return 0
	}
	return defaultWidth
}

// GlyphName returns the glyph name /Differences assigns to code.
func (f *Font) GlyphName(code uint32) (string, bool) {
	name, ok := f.glyphs[code]
	return name, ok
}

// IsSpace reports whether ch is the single-byte code 32, which receives
// word spacing.
func (ch Char) IsSpace() bool { return ch.Bytes == 1 && ch.Code == 32 }

func (f *Font) String() string {
	if f.BaseFont != "" {
		return f.BaseFont
	}
	return fmt.Sprintf("font %v", f.Ref)
}

func get(d *raw.DictObj, key names.ID) raw.Object {
	if d == nil {
		return raw.Null
	}
	v, ok := d.Get(key)
	if !ok {
		return raw.Null
	}
	return v
}
