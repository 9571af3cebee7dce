package writer

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/wudi/pdfcore/filters"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/recovery"
)

// objStmCapacity bounds the members of one object stream.
const objStmCapacity = 100

// slot is the cross-reference record of one object number in the output.
type slot struct {
	kind   byte // 0 free, 1 offset, 2 compressed
	offset int64
	gen    int
	host   int
	index  int
}

// emitClassic writes the objects in number order followed by a classic
// xref table.
func (p *plan) emitClassic(ctx context.Context, opt Options) ([]byte, error) {
	buf := appendHeader(nil, p.version)
	slots := make(map[int]slot, len(p.objs))
	for i, o := range p.objs {
		if i%64 == 0 {
			if err := checkpoint(ctx, opt.Cookie); err != nil {
				return nil, err
			}
		}
		slots[o.num] = slot{kind: 1, offset: int64(len(buf)), gen: o.gen}
		var err error
		if buf, err = p.appendObject(buf, o); err != nil {
			return nil, err
		}
	}
	xrefAt := len(buf)
	buf = appendXRefTable(buf, [][2]int{{0, p.size}}, slots)
	buf = append(buf, "trailer\n"...)
	buf = raw.Append(buf, p.trailer(p.size), p.format)
	return appendStartXRef(buf, int64(xrefAt)), nil
}

// emitPacked writes stream objects directly and packs every other gen-0
// object into object streams, closed by a cross-reference stream.
func (p *plan) emitPacked(ctx context.Context, opt Options) ([]byte, error) {
	var direct, packable []*object
	for _, o := range p.objs {
		if _, ok := o.stream(); ok || o.gen != 0 || o.plain {
			direct = append(direct, o)
			continue
		}
		packable = append(packable, o)
	}

	slots := make(map[int]slot, len(p.objs))
	size := p.size
	for start := 0; start < len(packable); start += objStmCapacity {
		end := min(start+objStmCapacity, len(packable))
		host := size
		size++
		stm, err := p.objectStream(host, packable[start:end])
		if err != nil {
			return nil, err
		}
		for i, o := range packable[start:end] {
			slots[o.num] = slot{kind: 2, host: host, index: i}
		}
		direct = append(direct, stm)
	}

	buf := appendHeader(nil, p.version)
	for i, o := range direct {
		if i%64 == 0 {
			if err := checkpoint(ctx, opt.Cookie); err != nil {
				return nil, err
			}
		}
		slots[o.num] = slot{kind: 1, offset: int64(len(buf)), gen: o.gen}
		var err error
		if buf, err = p.appendObject(buf, o); err != nil {
			return nil, err
		}
	}

	xrefNum := size
	size++
	xrefAt := int64(len(buf))
	slots[xrefNum] = slot{kind: 1, offset: xrefAt}
	tr := p.trailer(size)
	buf, err := p.appendXRefStream(buf, xrefNum, tr, [][2]int{{0, size}}, slots)
	if err != nil {
		return nil, err
	}
	return appendStartXRef(buf, xrefAt), nil
}

// objectStream packs members into a new /ObjStm stream object numbered
// host.
func (p *plan) objectStream(host int, members []*object) (*object, error) {
	var head, body []byte
	for _, o := range members {
		head = strconv.AppendInt(head, int64(o.num), 10)
		head = append(head, ' ')
		head = strconv.AppendInt(head, int64(len(body)), 10)
		head = append(head, ' ')
		body = raw.Append(body, o.obj, p.format)
		body = append(body, '\n')
	}
	data := append(head, body...)
	enc, err := p.doc.Pipeline().Encode(data, []filters.Stage{{Name: "FlateDecode"}})
	if err != nil {
		return nil, recovery.New(recovery.KindResource, "objstm", err)
	}
	d := raw.DictOf(
		names.Type, raw.NameID(names.ObjStm),
		names.N, raw.Int(int64(len(members))),
		names.First, raw.Int(int64(len(head))),
		names.Filter, raw.NameID(names.FlateDecode),
	)
	st := raw.NewStream(d, enc)
	st.Ref = raw.ObjectRef{Num: host}
	return &object{num: host, obj: st}, nil
}

// freeChain links the free slots of sections into the free list headed
// by object 0.
func freeChain(sections [][2]int, slots map[int]slot) map[int]int {
	var free []int
	for _, s := range sections {
		for num := s[0]; num < s[0]+s[1]; num++ {
			if sl, ok := slots[num]; !ok || sl.kind == 0 {
				free = append(free, num)
			}
		}
	}
	sort.Ints(free)
	next := make(map[int]int, len(free))
	for i, num := range free {
		if i+1 < len(free) {
			next[num] = free[i+1]
		} else {
			next[num] = 0
		}
	}
	return next
}

// appendXRefTable writes a complete classic table with one subsection
// per section {start, count}.
func appendXRefTable(dst []byte, sections [][2]int, slots map[int]slot) []byte {
	next := freeChain(sections, slots)
	dst = append(dst, "xref\n"...)
	for _, s := range sections {
		dst = appendSubsection(dst, s, slots, next)
	}
	return dst
}

func appendSubsection(dst []byte, s [2]int, slots map[int]slot, next map[int]int) []byte {
	dst = fmt.Appendf(dst, "%d %d\n", s[0], s[1])
	for num := s[0]; num < s[0]+s[1]; num++ {
		sl, ok := slots[num]
		switch {
		case num == 0:
			dst = fmt.Appendf(dst, "%010d %05d f\r\n", next[0], 65535)
		case !ok || sl.kind == 0:
			dst = fmt.Appendf(dst, "%010d %05d f\r\n", next[num], sl.gen)
		default:
			dst = fmt.Appendf(dst, "%010d %05d n\r\n", sl.offset, sl.gen)
		}
	}
	return dst
}

// appendXRefStream writes the cross-reference stream object num with the
// trailer entries of tr. Cross-reference streams are never encrypted.
func (p *plan) appendXRefStream(dst []byte, num int, tr *raw.DictObj, sections [][2]int, slots map[int]slot) ([]byte, error) {
	next := freeChain(sections, slots)
	var rows []byte
	index := raw.NewArray()
	for _, s := range sections {
		index.Items = append(index.Items, raw.Int(int64(s[0])), raw.Int(int64(s[1])))
		for n := s[0]; n < s[0]+s[1]; n++ {
			sl, ok := slots[n]
			switch {
			case n == 0:
				rows = appendRow(rows, 0, int64(next[0]), 65535)
			case !ok || sl.kind == 0:
				rows = appendRow(rows, 0, int64(next[n]), sl.gen)
			case sl.kind == 2:
				rows = appendRow(rows, 2, int64(sl.host), sl.index)
			default:
				rows = appendRow(rows, 1, sl.offset, sl.gen)
			}
		}
	}
	enc, err := p.doc.Pipeline().Encode(rows, []filters.Stage{{Name: "FlateDecode"}})
	if err != nil {
		return nil, recovery.New(recovery.KindResource, "xref stream", err)
	}
	d := raw.CopyDict(tr)
	d.Set(names.Type, raw.NameID(names.XRef))
	d.Set(names.W, raw.NewArray(raw.Int(1), raw.Int(4), raw.Int(2)))
	d.Set(names.Index, index)
	d.Set(names.Filter, raw.NameID(names.FlateDecode))
	return appendIndirect(dst, num, 0, raw.NewStream(d, enc), enc, p.format), nil
}

// appendRow writes one W [1 4 2] cross-reference stream row.
func appendRow(dst []byte, kind byte, f2 int64, f3 int) []byte {
	return append(dst, kind,
		byte(f2>>24), byte(f2>>16), byte(f2>>8), byte(f2),
		byte(f3>>8), byte(f3))
}

func appendStartXRef(dst []byte, at int64) []byte {
	return fmt.Appendf(dst, "\nstartxref\n%d\n%%%%EOF\n", at)
}
