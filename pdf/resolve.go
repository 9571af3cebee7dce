package pdf

import (
	"context"
	"errors"

	"github.com/bits-and-blooms/bitset"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/observability"
	"github.com/wudi/pdfcore/parser"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/store"
	"github.com/wudi/pdfcore/xref"
)

// objStm is the decoded payload and header of an object stream host.
type objStm struct {
	data    []byte
	first   int
	members []parser.ObjStmMember
}

// entry returns a copy of the table entry for num.
func (d *Document) entry(num int) (xref.Entry, bool) {
	d.rlock()
	defer d.runlock()
	e, ok := d.sh.table.Lookup(num)
	if !ok {
		return xref.Entry{}, false
	}
	return *e, true
}

// Resolve follows references until a direct object is reached. Missing,
// freed and cyclic references resolve to null with a warning.
func (d *Document) Resolve(o raw.Object) raw.Object {
	r, ok := o.(raw.RefObj)
	if !ok {
		if o == nil {
			return raw.Null
		}
		return o
	}
	var chain bitset.BitSet
	for depth := 0; ; depth++ {
		if depth >= d.cfg.Limits.MaxIndirectDepth {
			d.fail(recovery.Errorf(recovery.KindLimit, "resolve", "indirection deeper than %d at %s", d.cfg.Limits.MaxIndirectDepth, r.R))
			return raw.Null
		}
		if r.R.Num < 0 {
			d.warnf("reference", "invalid object number in %s", r.R)
			return raw.Null
		}
		if chain.Test(uint(r.R.Num)) {
			d.warnf("reference", "reference cycle through %s", r.R)
			return raw.Null
		}
		chain.Set(uint(r.R.Num))
		obj := d.fetch(r.R)
		next, ok := obj.(raw.RefObj)
		if !ok {
			return obj
		}
		r = next
	}
}

// Object loads object (num, gen).
func (d *Document) Object(num, gen int) raw.Object {
	return d.Resolve(raw.Ref(num, gen))
}

// Load returns object num at its current generation.
func (d *Document) Load(num int) (raw.Object, error) {
	e, ok := d.entry(num)
	if !ok || !e.Live() {
		return raw.Null, nil
	}
	gen := int(e.Gen)
	if e.Kind == xref.Compressed {
		gen = 0
	}
	before := d.state.Count()
	obj := d.fetch(raw.ObjectRef{Num: num, Gen: gen})
	if err := d.state.Caught(); d.state.Count() > before && isFatal(err) {
		return obj, err
	}
	return obj, nil
}

func isFatal(err error) bool {
	return errors.Is(err, recovery.ErrLimit) || errors.Is(err, recovery.ErrAborted)
}

// fetch returns the object a single reference points at without following
// further references.
func (d *Document) fetch(ref raw.ObjectRef) raw.Object {
	d.sync()
	e, ok := d.entry(ref.Num)
	if !ok || ref.Num == 0 {
		d.warnf("reference", "object %s not found", ref)
		return raw.Null
	}
	if !e.Live() {
		d.warnf("reference", "object %s is free", ref)
		return raw.Null
	}
	wantGen := int(e.Gen)
	if e.Kind == xref.Compressed {
		wantGen = 0
	}
	if ref.Gen != wantGen {
		d.warnf("reference", "object %s has generation %d", ref, wantGen)
		return raw.Null
	}
	if e.Obj != nil {
		return e.Obj
	}

	key := store.Key{Type: store.TypeObject, Num: ref.Num, Gen: ref.Gen}
	if v, ok := d.cache.Get(key); ok {
		return v.(raw.Object)
	}
	if d.active.Test(uint(ref.Num)) {
		d.warnf("reference", "object %s refers to itself while loading", ref)
		return raw.Null
	}
	d.active.Set(uint(ref.Num))
	defer d.active.Clear(uint(ref.Num))

	var obj raw.Object
	if e.Kind == xref.Compressed {
		obj = d.loadCompressed(ref, e)
	} else {
		obj = d.loadIndirect(ref, e)
	}
	if obj == nil {
		return raw.Null
	}
	d.cache.Put(key, obj, sizeOf(obj))
	return obj
}

// loadIndirect parses the "num gen obj" definition at the entry's offset.
func (d *Document) loadIndirect(ref raw.ObjectRef, e xref.Entry) raw.Object {
	ind, err := d.parseAt(e.Offset, ref)
	if err != nil && !isFatal(err) && d.canRepair() {
		d.logger.Warn("object not at its xref offset", observability.Object(ref.Num, ref.Gen), observability.Error("error", err))
		if rerr := d.repair(context.Background()); rerr == nil {
			ne, ok := d.entry(ref.Num)
			if ok && ne.Live() && ne.Kind != xref.Compressed && int(ne.Gen) == ref.Gen {
				ind, err = d.parseAt(ne.Offset, ref)
			} else if ok && ne.Kind == xref.Compressed && ref.Gen == 0 {
				return d.loadCompressed(ref, ne)
			}
		}
	}
	if err != nil {
		if isFatal(err) {
			d.fail(err)
		} else {
			d.warnf("reference", "cannot load %s: %v", ref, err)
		}
		return nil
	}
	obj := ind.Obj
	if st, ok := obj.(*raw.StreamObj); ok {
		st.Ref = ref
	}
	d.decryptStrings(ref, obj)
	return obj
}

func (d *Document) canRepair() bool {
	if d.cfg.Strict || d.holding {
		return false
	}
	d.rlock()
	defer d.runlock()
	t := d.sh.table
	return !t.Repaired() && !t.HasLocal() && !t.Rewritten()
}

// parseAt parses the indirect object at off, retrying relative to the
// header for files with leading garbage.
func (d *Document) parseAt(off int64, ref raw.ObjectRef) (*parser.Indirect, error) {
	try := func(at int64) (*parser.Indirect, error) {
		if at < 0 || at >= int64(len(d.sh.data)) {
			return nil, recovery.Errorf(recovery.KindSyntax, "load", "offset %d outside file", at).At(at)
		}
		p := parser.New(d.sh.data, d.parserConfig())
		p.Seek(at)
		ind, err := p.ParseIndirect(d.lengthOf)
		if err != nil {
			return nil, err
		}
		if ind.Num != ref.Num || ind.Gen != ref.Gen {
			return nil, recovery.Errorf(recovery.KindSyntax, "load", "found object %d %d at offset %d, want %s", ind.Num, ind.Gen, at, ref).At(at)
		}
		return ind, nil
	}
	ind, err := try(off)
	if err != nil && d.sh.headerOffset > 0 && !isFatal(err) {
		if alt, aerr := try(off + d.sh.headerOffset); aerr == nil {
			return alt, nil
		}
	}
	return ind, err
}

// lengthOf resolves an indirect stream /Length.
func (d *Document) lengthOf(ref raw.ObjectRef) (int64, bool) {
	return raw.AsInt(d.Resolve(raw.RefObj{R: ref}))
}

// loadCompressed parses member ref of its host object stream.
func (d *Document) loadCompressed(ref raw.ObjectRef, e xref.Entry) raw.Object {
	host := int(e.Offset)
	os, err := d.objectStream(host)
	if err != nil {
		if isFatal(err) {
			d.fail(err)
		} else {
			d.warnf("objstm", "object %s in stream %d: %v", ref, host, err)
		}
		return nil
	}
	idx := -1
	if e.Index >= 0 && e.Index < len(os.members) && os.members[e.Index].Num == ref.Num {
		idx = e.Index
	} else {
		for i, m := range os.members {
			if m.Num == ref.Num {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		d.warnf("objstm", "object %d not in object stream %d", ref.Num, host)
		return nil
	}
	cfg := d.parserConfig()
	obj, err := parser.ParseObjStmObject(os.data, os.first, os.members[idx].Offset, cfg)
	if err != nil {
		d.warnf("objstm", "object %d in stream %d: %v", ref.Num, host, err)
		return nil
	}
	return obj
}

// objectStream decodes and indexes host, caching the result.
func (d *Document) objectStream(host int) (*objStm, error) {
	key := store.Key{Type: store.TypeStream, Num: host, Gen: -1}
	if v, ok := d.cache.Get(key); ok {
		return v.(*objStm), nil
	}
	he, ok := d.entry(host)
	if !ok || !he.Live() || he.Kind == xref.Compressed {
		return nil, recovery.Errorf(recovery.KindReference, "objstm", "object stream %d is missing", host)
	}
	st, ok := raw.AsStream(d.fetch(raw.ObjectRef{Num: host, Gen: int(he.Gen)}))
	if !ok {
		return nil, recovery.Errorf(recovery.KindSemantic, "objstm", "object %d is not a stream", host)
	}
	if !raw.IsName(d.Resolve(get(st.Dict, names.Type)), names.ObjStm) {
		d.warnf("objstm", "object %d lacks /Type /ObjStm", host)
	}
	n, _ := raw.AsInt(d.Resolve(get(st.Dict, names.N)))
	first, _ := raw.AsInt(d.Resolve(get(st.Dict, names.First)))
	data, err := d.DecodeStream(context.Background(), st)
	if err != nil {
		return nil, err
	}
	members, err := parser.ParseObjStmIndex(data, int(n), int(first), d.cfg.Limits.MaxObjStmObjects)
	if err != nil {
		if isFatal(err) || len(members) == 0 {
			return nil, err
		}
		d.warnf("objstm", "%v", err)
	}
	if len(members) != int(n) {
		d.warnf("objstm", "object stream %d declares %d objects, header lists %d", host, n, len(members))
	}
	os := &objStm{data: data, first: int(first), members: members}
	d.cache.Put(key, os, int64(len(data))+int64(len(members))*16)
	return os, nil
}

func get(dict *raw.DictObj, key names.ID) raw.Object {
	if dict == nil {
		return raw.Null
	}
	v, ok := dict.Get(key)
	if !ok {
		return raw.Null
	}
	return v
}

// sizeOf estimates the memory held by o for cache accounting. File-backed
// stream payloads are not counted.
func sizeOf(o raw.Object) int64 {
	switch v := o.(type) {
	case raw.StringObj:
		return 24 + int64(len(v.Bytes))
	case *raw.ArrayObj:
		n := int64(24)
		for _, it := range v.Items {
			n += sizeOf(it)
		}
		return n
	case *raw.DictObj:
		n := int64(48)
		v.Each(func(_ names.ID, val raw.Object) bool {
			n += 8 + sizeOf(val)
			return true
		})
		return n
	case *raw.StreamObj:
		return 48 + sizeOf(v.Dict) + int64(len(v.Data))
	}
	return 16
}
