package optimize

import (
	"fmt"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/xref"
)

// Renumber loads every live object into memory and renumbers them densely
// from 1 in ascending order of their old numbers, rewriting references.
// Object and cross-reference streams are dropped. It returns the old to
// new number mapping. The table can no longer be written incrementally.
func Renumber(g Graph) (map[int]int, error) {
	t := g.Table()
	type live struct {
		num int
		gen int
		obj raw.Object
	}
	var order []live
	var loadErr error
	t.Each(func(num int, e *xref.Entry) bool {
		if num == 0 || !e.Live() {
			return true
		}
		obj, err := g.Load(num)
		if err != nil {
			loadErr = fmt.Errorf("load object %d: %w", num, err)
			return false
		}
		if structural(obj) {
			return true
		}
		gen := int(e.Gen)
		if e.Kind == xref.Compressed {
			gen = 0
		}
		order = append(order, live{num: num, gen: gen, obj: obj})
		return true
	})
	if loadErr != nil {
		return nil, loadErr
	}

	mapping := make(map[int]int, len(order))
	gens := make(map[int]int, len(order))
	for i, l := range order {
		mapping[l.num] = i + 1
		gens[l.num] = l.gen
	}
	remap := func(r raw.ObjectRef) raw.Object {
		if n, ok := mapping[r.Num]; ok && gens[r.Num] == r.Gen {
			return raw.Ref(n, 0)
		}
		return raw.Null
	}

	entries := make([]xref.Entry, len(order)+1)
	for i, l := range order {
		entries[i+1] = xref.Entry{Kind: xref.InUse, Obj: raw.Rewrite(raw.Copy(l.obj), remap)}
	}
	trailer := raw.CopyDict(t.Trailer())
	trailer.Delete(names.Prev)
	trailer.Delete(names.XRefStm)
	raw.Rewrite(trailer, remap)
	trailer.Set(names.Size, raw.Int(int64(len(entries))))
	t.Reset(entries, trailer)
	return mapping, nil
}
