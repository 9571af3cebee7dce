package parser

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/wudi/pdfcore/filters"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/observability"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/xref"
)

// maxObjectNumber bounds object numbers accepted while scanning.
const maxObjectNumber = 8388607

var (
	objHeader  = regexp.MustCompile(`(?:^|[^0-9])([0-9]{1,10})[\x00\t\n\f\r ]+([0-9]{1,5})[\x00\t\n\f\r ]+obj(?:[\x00\t\n\f\r ()<>\[\]{}/%]|$)`)
	trailerKey = regexp.MustCompile(`trailer[\x00\t\n\f\r ]*<<`)
)

// Repair rebuilds a cross-reference table by scanning the whole file for
// object headers and trailer dictionaries. Objects held in object streams
// found on the way get compressed entries. When no usable trailer exists
// one is synthesized around the first /Catalog object.
func (p *Parser) Repair(ctx context.Context) (*xref.Table, error) {
	data := p.s.Data()
	// Damage found while scanning is expected; only the rebuild itself is
	// reported.
	quiet := p.cfg
	quiet.Recovery = &recovery.Lenient{}
	q := New(data, quiet)
	entries := map[int]xref.Entry{}
	var (
		trailer  *raw.DictObj
		catalog  = -1
		info     = -1
		objStms  []int
		maxNum   int
		scanFrom int
	)
	for scanFrom < len(data) {
		if err := ctx.Err(); err != nil {
			return nil, recovery.New(recovery.KindAborted, "repair", err)
		}
		m := objHeader.FindSubmatchIndex(data[scanFrom:])
		if m == nil {
			break
		}
		numStart := scanFrom + m[2]
		num, err1 := strconv.Atoi(string(data[scanFrom+m[2] : scanFrom+m[3]]))
		gen, err2 := strconv.Atoi(string(data[scanFrom+m[4] : scanFrom+m[5]]))
		next := scanFrom + m[1]
		if err1 != nil || err2 != nil || num > maxObjectNumber || gen > xref.MaxGeneration {
			scanFrom = next
			continue
		}
		entries[num] = xref.Entry{Kind: xref.InUse, Gen: uint16(gen), Offset: int64(numStart)}
		if num > maxNum {
			maxNum = num
		}

		// Parse the object to skip stream payloads and classify it.
		q.Seek(int64(numStart))
		ind, err := q.ParseIndirect(nil)
		if err != nil {
			scanFrom = next
			continue
		}
		if ind.End > int64(next) {
			next = int(ind.End)
		}
		scanFrom = next
		d, ok := raw.AsDict(ind.Obj)
		if !ok {
			continue
		}
		switch {
		case raw.IsName(get(d, names.Type), names.Catalog):
			if catalog < 0 {
				catalog = num
			}
		case raw.IsName(get(d, names.Type), names.ObjStm):
			objStms = append(objStms, num)
		case raw.IsName(get(d, names.Type), names.XRef):
			if d.Has(names.Root) {
				trailer = trailerFrom(d)
			}
		}
		if d.Has(names.Producer) || d.Has(names.Creator) || d.Has(names.Title) {
			if _, isStream := ind.Obj.(*raw.StreamObj); !isStream && info < 0 {
				info = num
			}
		}
	}

	for _, loc := range trailerKey.FindAllIndex(data, -1) {
		q.Seek(int64(loc[1] - 2))
		obj, err := q.ParseObject()
		if err != nil {
			continue
		}
		if d, ok := obj.(*raw.DictObj); ok && d.Has(names.Root) {
			trailer = trailerFrom(d)
		}
	}

	for _, host := range objStms {
		if c := q.indexObjStm(ctx, host, entries, &maxNum); catalog < 0 {
			catalog = c
		}
	}

	if len(entries) == 0 {
		return nil, recovery.Errorf(recovery.KindSyntax, "repair", "no objects found")
	}
	if trailer == nil {
		trailer = raw.NewDict()
	}
	if root, ok := raw.AsRef(get(trailer, names.Root)); !ok || !entryLive(entries, root.Num) {
		if catalog < 0 {
			return nil, recovery.Errorf(recovery.KindSyntax, "repair", "no document catalog found")
		}
		trailer.Set(names.Root, raw.Ref(catalog, int(entries[catalog].Gen)))
	}
	if ref, ok := raw.AsRef(get(trailer, names.Info)); ok && !entryLive(entries, ref.Num) {
		trailer.Delete(names.Info)
	}
	if !trailer.Has(names.Info) && info >= 0 {
		trailer.Set(names.Info, raw.Ref(info, int(entries[info].Gen)))
	}
	trailer.Set(names.Size, raw.Int(int64(maxNum+1)))

	sub := xref.Subsection{Start: 0, Entries: make([]xref.Entry, maxNum+1)}
	for num, e := range entries {
		sub.Entries[num] = e
	}
	rebuilt := recovery.New(recovery.KindSyntax, "", fmt.Errorf("rebuilt cross-reference table from %d objects", len(entries)))
	if !p.report(rebuilt, 0, "repair") {
		return nil, rebuilt
	}
	p.cfg.Logger.Warn("rebuilt cross-reference table", observability.Int("objects", len(entries)))

	t := xref.New()
	t.AddSection(&xref.Section{Offset: -1, Subsections: []xref.Subsection{sub}, Trailer: trailer})
	t.Build()
	t.SetRepaired(true)
	return t, nil
}

func entryLive(entries map[int]xref.Entry, num int) bool {
	e, ok := entries[num]
	return ok && e.Kind != xref.Free
}

// trailerFrom keeps the document-level keys of a trailer or xref stream
// dictionary.
func trailerFrom(d *raw.DictObj) *raw.DictObj {
	out := raw.NewDict()
	for _, k := range []names.ID{names.Root, names.Info, names.IDKey, names.Encrypt} {
		if v, ok := d.Get(k); ok {
			out.Set(k, v)
		}
	}
	return out
}

// indexObjStm adds compressed entries for the members of object stream
// host and returns the number of the first member that is a /Catalog, or
// -1.
func (p *Parser) indexObjStm(ctx context.Context, host int, entries map[int]xref.Entry, maxNum *int) int {
	catalog := -1
	p.s.Seek(entries[host].Offset)
	ind, err := p.ParseIndirect(nil)
	if err != nil {
		return catalog
	}
	st, ok := ind.Obj.(*raw.StreamObj)
	if !ok {
		return catalog
	}
	data, err := p.cfg.Pipeline.Decode(ctx, Payload(p.s.Data(), st), filters.ExtractFilters(st.Dict, nil))
	if err != nil {
		return catalog
	}
	n, _ := raw.AsInt(get(st.Dict, names.N))
	first, _ := raw.AsInt(get(st.Dict, names.First))
	idx, err := ParseObjStmIndex(data, int(n), int(first), p.cfg.Limits.MaxObjStmObjects)
	if err != nil {
		return catalog
	}
	for i, m := range idx {
		if _, direct := entries[m.Num]; direct || m.Num <= 0 {
			continue
		}
		entries[m.Num] = xref.Entry{Kind: xref.Compressed, Offset: int64(host), Index: i}
		if m.Num > *maxNum {
			*maxNum = m.Num
		}
		if catalog >= 0 {
			continue
		}
		obj, err := ParseObjStmObject(data, int(first), m.Offset, p.cfg)
		if err != nil {
			continue
		}
		if d, ok := obj.(*raw.DictObj); ok && raw.IsName(get(d, names.Type), names.Catalog) {
			catalog = m.Num
		}
	}
	e := entries[host]
	e.Kind = xref.ObjStm
	entries[host] = e
	return catalog
}
