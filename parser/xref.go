package parser

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wudi/pdfcore/filters"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/scanner"
	"github.com/wudi/pdfcore/xref"
)

const probeWindow = 1024

// Header locates "%PDF-x.y" within the first 1024 bytes and returns the
// version and the header offset.
func Header(data []byte) (version string, offset int64, err error) {
	window := data
	if len(window) > probeWindow {
		window = window[:probeWindow]
	}
	i := bytes.Index(window, []byte("%PDF-"))
	if i < 0 {
		return "", -1, recovery.Errorf(recovery.KindSyntax, "header", "no %%PDF header in the first %d bytes", probeWindow)
	}
	rest := data[i+5:]
	n := 0
	for n < len(rest) && n < 8 && (rest[n] == '.' || (rest[n] >= '0' && rest[n] <= '9')) {
		n++
	}
	if n == 0 {
		return "", int64(i), recovery.Errorf(recovery.KindSyntax, "header", "malformed version").At(int64(i))
	}
	return string(rest[:n]), int64(i), nil
}

// HasBinaryMarker reports whether the line after the header is a comment
// with at least four bytes >= 0x80.
func HasBinaryMarker(data []byte) bool {
	_, off, err := Header(data)
	if err != nil {
		return false
	}
	i := off
	for i < int64(len(data)) && data[i] != '\n' && data[i] != '\r' {
		i++
	}
	for i < int64(len(data)) && (data[i] == '\n' || data[i] == '\r') {
		i++
	}
	if i >= int64(len(data)) || data[i] != '%' {
		return false
	}
	high := 0
	for i++; i < int64(len(data)) && data[i] != '\n' && data[i] != '\r'; i++ {
		if data[i] >= 0x80 {
			high++
		}
	}
	return high >= 4
}

// FindStartXRef returns the offset named by the last startxref keyword in
// the final 1024 bytes.
func FindStartXRef(data []byte) (int64, error) {
	from := len(data) - probeWindow
	if from < 0 {
		from = 0
	}
	i := bytes.LastIndex(data[from:], []byte("startxref"))
	if i < 0 {
		return -1, recovery.Errorf(recovery.KindSyntax, "startxref", "startxref not found")
	}
	s := scanner.New(data, scanner.Config{})
	s.Seek(int64(from + i + len("startxref")))
	tok, err := s.Next()
	if err != nil || tok.Kind != scanner.Int || tok.Int < 0 || tok.Int >= int64(len(data)) {
		return -1, recovery.Errorf(recovery.KindSyntax, "startxref", "invalid startxref offset").At(int64(from + i))
	}
	return tok.Int, nil
}

// ParseXRef reads the cross-reference chain starting at offset: classic
// tables, cross-reference streams, hybrid /XRefStm sections and /Prev
// links. headerOffset compensates for junk before the header.
func (p *Parser) ParseXRef(ctx context.Context, offset, headerOffset int64) (*xref.Table, error) {
	t := xref.New()
	visited := map[int64]bool{}
	next := offset
	for depth := 0; next >= 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, recovery.New(recovery.KindAborted, "xref", err)
		}
		if depth >= p.cfg.Limits.MaxXRefDepth {
			return nil, recovery.Errorf(recovery.KindLimit, "xref", "xref chain deeper than %d", p.cfg.Limits.MaxXRefDepth)
		}
		if visited[next] {
			p.report(syntaxError(next, "xref /Prev loop"), next, "xref")
			break
		}
		visited[next] = true
		sec, err := p.parseSectionAt(ctx, next, headerOffset)
		if err != nil {
			return nil, err
		}
		// Hybrid entries override the free slots of their classic table.
		if stm, ok := raw.AsInt(get(sec.Trailer, names.XRefStm)); ok && !sec.Stream && !visited[stm] {
			visited[stm] = true
			hybrid, err := p.parseSectionAt(ctx, stm, headerOffset)
			if err != nil {
				if !p.report(err, stm, "xref") {
					return nil, err
				}
			} else {
				t.AddSection(hybrid)
			}
		}
		t.AddSection(sec)
		next = -1
		if prev, ok := raw.AsInt(get(sec.Trailer, names.Prev)); ok {
			next = prev
		}
	}
	t.Build()
	if _, ok := t.Trailer().Get(names.Root); !ok {
		return nil, recovery.Errorf(recovery.KindSyntax, "xref", "trailer has no /Root")
	}
	return t, nil
}

func get(d *raw.DictObj, key names.ID) raw.Object {
	if d == nil {
		return nil
	}
	v, _ := d.Get(key)
	return v
}

// parseSectionAt reads one section, retrying with the header offset added
// when the plain offset does not point at a section.
func (p *Parser) parseSectionAt(ctx context.Context, off, headerOffset int64) (*xref.Section, error) {
	sec, err := p.parseSection(ctx, off)
	if err != nil && headerOffset > 0 {
		if sec2, err2 := p.parseSection(ctx, off+headerOffset); err2 == nil {
			return sec2, nil
		}
	}
	return sec, err
}

func (p *Parser) parseSection(ctx context.Context, off int64) (*xref.Section, error) {
	if err := p.s.Seek(off); err != nil {
		return nil, err
	}
	tok, err := p.s.Peek()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case scanner.XRef:
		return p.parseClassic(off)
	case scanner.Int:
		return p.parseXRefStream(ctx, off)
	}
	return nil, syntaxError(off, "no cross-reference section at offset %d", off)
}

func (p *Parser) parseClassic(off int64) (*xref.Section, error) {
	p.s.Next() // xref
	sec := &xref.Section{Offset: off}
	for {
		tok, err := p.s.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == scanner.Trailer {
			break
		}
		if tok.Kind != scanner.Int {
			return nil, syntaxError(tok.Pos, "expected subsection header, got %s", tok.Kind)
		}
		cnt, err := p.s.Next()
		if err != nil || cnt.Kind != scanner.Int || cnt.Int < 0 {
			return nil, syntaxError(tok.Pos, "malformed subsection header")
		}
		if tok.Int < 0 || tok.Int+cnt.Int > int64(p.cfg.Limits.MaxArraySize)*100 {
			return nil, recovery.Errorf(recovery.KindLimit, "xref", "subsection %d+%d out of range", tok.Int, cnt.Int).At(tok.Pos)
		}
		sub := xref.Subsection{Start: int(tok.Int), Entries: make([]xref.Entry, 0, cnt.Int)}
		for i := int64(0); i < cnt.Int; i++ {
			e, err := p.classicEntry()
			if err != nil {
				return nil, err
			}
			sub.Entries = append(sub.Entries, e)
		}
		sec.Subsections = append(sec.Subsections, sub)
	}
	obj, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("trailer: %w", err)
	}
	d, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, syntaxError(off, "trailer is not a dictionary")
	}
	sec.Trailer = d
	return sec, nil
}

// classicEntry reads "offset gen n|f". Separators are read as tokens, so
// malformed line endings are tolerated.
func (p *Parser) classicEntry() (xref.Entry, error) {
	o, err := p.s.Next()
	if err != nil || o.Kind != scanner.Int {
		return xref.Entry{}, syntaxError(o.Pos, "malformed xref entry")
	}
	g, err := p.s.Next()
	if err != nil || g.Kind != scanner.Int {
		return xref.Entry{}, syntaxError(o.Pos, "malformed xref entry")
	}
	k, err := p.s.Next()
	if err != nil || k.Kind != scanner.Keyword || len(k.Bytes) != 1 {
		return xref.Entry{}, syntaxError(o.Pos, "malformed xref entry")
	}
	gen := g.Int
	if gen < 0 || gen > xref.MaxGeneration {
		gen = xref.MaxGeneration
	}
	switch k.Bytes[0] {
	case 'n':
		if o.Int <= 0 {
			// An in-use entry at offset 0 points nowhere.
			return xref.Entry{Kind: xref.Free, Gen: uint16(gen)}, nil
		}
		return xref.Entry{Kind: xref.InUse, Gen: uint16(gen), Offset: o.Int}, nil
	case 'f':
		return xref.Entry{Kind: xref.Free, Gen: uint16(gen), Offset: o.Int}, nil
	}
	return xref.Entry{}, syntaxError(k.Pos, "xref entry type %q", k.Bytes)
}

func (p *Parser) parseXRefStream(ctx context.Context, off int64) (*xref.Section, error) {
	ind, err := p.ParseIndirect(nil)
	if err != nil {
		return nil, err
	}
	st, ok := ind.Obj.(*raw.StreamObj)
	if !ok || !raw.IsName(get(st.Dict, names.Type), names.XRef) {
		return nil, syntaxError(off, "object %d is not a cross-reference stream", ind.Num)
	}
	data, err := p.cfg.Pipeline.Decode(ctx, Payload(p.s.Data(), st), filters.ExtractFilters(st.Dict, nil))
	if err != nil {
		return nil, fmt.Errorf("decode xref stream %d: %w", ind.Num, err)
	}
	return p.xrefStreamSection(off, st.Dict, data)
}

func (p *Parser) xrefStreamSection(off int64, d *raw.DictObj, data []byte) (*xref.Section, error) {
	warr, _ := raw.AsArray(get(d, names.W))
	w, ok := raw.Floats(warr)
	if !ok || len(w) < 3 {
		return nil, syntaxError(off, "xref stream /W must hold three widths")
	}
	widths := [3]int{int(w[0]), int(w[1]), int(w[2])}
	rowLen := 0
	for _, n := range widths {
		if n < 0 || n > 8 {
			return nil, syntaxError(off, "xref stream width %d out of range", n)
		}
		rowLen += n
	}
	if rowLen == 0 {
		return nil, syntaxError(off, "xref stream rows are empty")
	}
	size, _ := raw.AsInt(get(d, names.Size))
	index := []int64{0, size}
	if arr, ok := raw.AsArray(get(d, names.Index)); ok {
		index = index[:0]
		for _, it := range arr.Items {
			n, _ := raw.AsInt(it)
			index = append(index, n)
		}
	}
	sec := &xref.Section{Offset: off, Stream: true, Trailer: d}
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		start, count := index[i], index[i+1]
		if start < 0 || count < 0 {
			return nil, syntaxError(off, "negative xref stream subsection")
		}
		sub := xref.Subsection{Start: int(start)}
		for j := int64(0); j < count; j++ {
			if pos+rowLen > len(data) {
				p.report(syntaxError(off, "xref stream truncated"), off, "xref")
				break
			}
			row := data[pos : pos+rowLen]
			pos += rowLen
			f1 := field(row[:widths[0]], 1)
			f2 := field(row[widths[0]:widths[0]+widths[1]], 0)
			f3 := field(row[widths[0]+widths[1]:], 0)
			var e xref.Entry
			switch f1 {
			case 0:
				e = xref.Entry{Kind: xref.Free, Gen: clampGen(f3), Offset: int64(f2)}
			case 1:
				e = xref.Entry{Kind: xref.InUse, Gen: clampGen(f3), Offset: int64(f2)}
			case 2:
				e = xref.Entry{Kind: xref.Compressed, Offset: int64(f2), Index: int(f3)}
			default:
				// Unknown types read as references to null.
				e = xref.Entry{Kind: xref.Free}
			}
			sub.Entries = append(sub.Entries, e)
		}
		sec.Subsections = append(sec.Subsections, sub)
	}
	return sec, nil
}

func clampGen(v uint64) uint16 {
	if v > xref.MaxGeneration {
		return xref.MaxGeneration
	}
	return uint16(v)
}

// field decodes a big-endian field; empty fields take def.
func field(b []byte, def uint64) uint64 {
	if len(b) == 0 {
		return def
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// Linearization returns the linearization dictionary when the first object
// after the header carries /Linearized.
func (p *Parser) Linearization() (*raw.DictObj, bool) {
	_, off, err := Header(p.s.Data())
	if err != nil {
		return nil, false
	}
	p.s.Seek(off)
	// Skip the header and binary marker comments.
	tok, err := p.s.Peek()
	if err != nil || tok.Kind != scanner.Int {
		return nil, false
	}
	ind, err := p.ParseIndirect(nil)
	if err != nil {
		return nil, false
	}
	d, ok := raw.AsDict(ind.Obj)
	if !ok || !d.Has(names.Linearized) {
		return nil, false
	}
	return d, true
}
