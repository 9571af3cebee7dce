package writer

import (
	"bytes"
	"context"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/parser"
	"github.com/wudi/pdfcore/pdf"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/security"
	"github.com/wudi/pdfcore/xref"
)

// writeIncremental appends the objects of the local layer and a new
// cross-reference section to the original bytes. The section uses the
// same form as the one it links to through /Prev.
func writeIncremental(ctx context.Context, doc *pdf.Document, opt Options) ([]byte, error) {
	if doc.Repaired() {
		return nil, recovery.New(recovery.KindSemantic, "incremental", ErrRepaired)
	}
	data := doc.Data()
	prev, err := parser.FindStartXRef(data)
	if err != nil {
		return nil, err
	}

	type change struct {
		num, gen int
		live     bool
	}
	var changes []change
	size := 0
	doc.View(func(t *xref.Table) error {
		size = t.Size()
		for _, num := range t.LocalNums() {
			e, ok := t.Lookup(num)
			if !ok {
				continue
			}
			changes = append(changes, change{num: num, gen: int(e.Gen), live: e.Live()})
		}
		return nil
	})
	out := append([]byte(nil), data...)
	if len(changes) == 0 {
		return out, nil
	}
	if n := len(out); n > 0 && out[n-1] != '\n' && out[n-1] != '\r' {
		out = append(out, '\n')
	}

	p := &plan{
		doc:    doc,
		byNum:  map[int]*object{},
		size:   size,
		format: raw.FormatOptions{Pretty: opt.Pretty, ASCII: opt.ASCII},
	}
	if h := doc.SecurityHandler(); h != nil {
		p.crypt = h
	}
	slots := make(map[int]slot, len(changes))
	var sections [][2]int
	for _, c := range changes {
		if err := checkpoint(ctx, opt.Cookie); err != nil {
			return nil, err
		}
		if len(sections) > 0 && sections[len(sections)-1][0]+sections[len(sections)-1][1] == c.num {
			sections[len(sections)-1][1]++
		} else {
			sections = append(sections, [2]int{c.num, 1})
		}
		if !c.live {
			slots[c.num] = slot{kind: 0, gen: c.gen}
			continue
		}
		o, err := doc.Load(c.num)
		if err != nil {
			return nil, err
		}
		ob := &object{num: c.num, gen: c.gen, obj: raw.Copy(o), class: security.DataClassStream}
		if st, ok := o.(*raw.StreamObj); ok {
			payload, err := doc.StreamBytes(st)
			if err != nil {
				return nil, err
			}
			cp := raw.NewStream(raw.CopyDict(st.Dict), append([]byte(nil), payload...))
			if raw.IsName(doc.Resolve(get(st.Dict, names.Type)), names.Metadata) {
				ob.class = security.DataClassMetadataStream
			}
			enc, err := p.encode(cp, opt)
			if err != nil {
				return nil, err
			}
			cp.SetData(enc)
			ob.obj = cp
		}
		slots[c.num] = slot{kind: 1, offset: int64(len(out)), gen: c.gen}
		if out, err = p.appendObject(out, ob); err != nil {
			return nil, err
		}
	}

	tr := doc.Trailer()
	for _, k := range []names.ID{names.Prev, names.XRefStm, names.Type, names.W, names.Index,
		names.Filter, names.DecodeParms, names.Length} {
		tr.Delete(k)
	}
	tr.Set(names.Prev, raw.Int(prev))

	at := int64(len(out))
	if opt.ObjectStreams || !bytes.HasPrefix(bytes.TrimLeft(data[prev:], " \t\r\n\f\x00"), []byte("xref")) {
		num := size
		size++
		slots[num] = slot{kind: 1, offset: at}
		if len(sections) > 0 && sections[len(sections)-1][0]+sections[len(sections)-1][1] == num {
			sections[len(sections)-1][1]++
		} else {
			sections = append(sections, [2]int{num, 1})
		}
		tr.Set(names.Size, raw.Int(int64(size)))
		if out, err = p.appendXRefStream(out, num, tr, sections, slots); err != nil {
			return nil, err
		}
		return appendStartXRef(out, at), nil
	}
	tr.Set(names.Size, raw.Int(int64(size)))
	out = appendIncrementalTable(out, sections, slots)
	out = append(out, "trailer\n"...)
	out = raw.Append(out, tr, p.format)
	return appendStartXRef(out, at), nil
}

// appendIncrementalTable writes an update section. Unlike a full table it
// leaves object 0 and the free list of earlier sections alone.
func appendIncrementalTable(dst []byte, sections [][2]int, slots map[int]slot) []byte {
	dst = append(dst, "xref\n"...)
	for _, s := range sections {
		dst = appendSubsection(dst, s, slots, nil)
	}
	return dst
}
