package optimize

import (
	"bytes"
	"fmt"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/xref"
)

// Deduplicate merges objects with equal canonical forms into the one with
// the lowest number and rewrites references to the survivor. Rewritten
// objects move to the local layer. Merging repeats until no two objects
// are equal, so containers that only differed by merged references merge
// too. It returns the number of merged objects.
func Deduplicate(g Graph) (int, error) {
	t := g.Table()
	total := 0
	for {
		repl, err := findDuplicates(g)
		if err != nil {
			return total, err
		}
		if len(repl) == 0 {
			return total, nil
		}
		if err := applyReplacements(g, repl); err != nil {
			return total, err
		}
		for dup := range repl {
			if err := t.Delete(dup); err != nil {
				return total, err
			}
		}
		total += len(repl)
	}
}

type candidate struct {
	num     int
	obj     raw.Object
	payload []byte
}

func findDuplicates(g Graph) (map[int]int, error) {
	t := g.Table()
	seen := map[digest][]candidate{}
	repl := map[int]int{}
	var err error
	t.Each(func(num int, e *xref.Entry) bool {
		if num == 0 || !e.Live() {
			return true
		}
		var obj raw.Object
		if obj, err = g.Load(num); err != nil {
			err = fmt.Errorf("load object %d: %w", num, err)
			return false
		}
		if structural(obj) {
			return true
		}
		var payload []byte
		if st, ok := obj.(*raw.StreamObj); ok {
			if payload, err = g.StreamBytes(st); err != nil {
				err = fmt.Errorf("stream %d: %w", num, err)
				return false
			}
			if payload == nil {
				payload = []byte{}
			}
		}
		d := hashObject(obj, payload)
		for _, c := range seen[d] {
			if sameObject(c, obj, payload) {
				repl[num] = c.num
				return true
			}
		}
		seen[d] = append(seen[d], candidate{num: num, obj: obj, payload: payload})
		return true
	})
	return repl, err
}

func sameObject(c candidate, obj raw.Object, payload []byte) bool {
	a, aStream := c.obj.(*raw.StreamObj)
	b, bStream := obj.(*raw.StreamObj)
	if aStream != bStream {
		return false
	}
	if aStream {
		return raw.Equal(a.Dict, b.Dict) && bytes.Equal(c.payload, payload)
	}
	return raw.Equal(c.obj, obj)
}

func applyReplacements(g Graph, repl map[int]int) error {
	t := g.Table()
	hits := func(o raw.Object) bool {
		found := false
		raw.Refs(o, func(r raw.ObjectRef) {
			if _, ok := repl[r.Num]; ok {
				found = true
			}
		})
		return found
	}
	remap := func(r raw.ObjectRef) raw.Object {
		if to, ok := repl[r.Num]; ok {
			e, _ := t.Lookup(to)
			gen := 0
			if e != nil && e.Kind != xref.Compressed {
				gen = int(e.Gen)
			}
			return raw.Ref(to, gen)
		}
		return raw.RefObj{R: r}
	}

	var err error
	t.Each(func(num int, e *xref.Entry) bool {
		if num == 0 || !e.Live() {
			return true
		}
		if _, dup := repl[num]; dup {
			return true
		}
		var obj raw.Object
		if obj, err = g.Load(num); err != nil {
			return false
		}
		if hits(obj) {
			err = t.Update(num, raw.Rewrite(raw.Copy(obj), remap))
		}
		return err == nil
	})
	if err != nil {
		return err
	}
	if hits(t.Trailer()) {
		t.SetTrailer(raw.Rewrite(raw.CopyDict(t.Trailer()), remap).(*raw.DictObj))
	}
	return nil
}
