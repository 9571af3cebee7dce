package raw

import (
	"bytes"

	"github.com/wudi/pdfcore/names"
)

// Equal compares two objects structurally without resolving references.
// Streams compare their dictionaries and in-memory data.
func Equal(a, b Object) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case BoolObj:
		return x.V == b.(BoolObj).V
	case NumberObj:
		y := b.(NumberObj)
		if x.IsInt {
			return x.I == y.I
		}
		return x.F == y.F
	case NameObj:
		return x.ID == b.(NameObj).ID
	case StringObj:
		return bytes.Equal(x.Bytes, b.(StringObj).Bytes)
	case RefObj:
		return x.R == b.(RefObj).R
	case *ArrayObj:
		y := b.(*ArrayObj)
		if x.Len() != y.Len() {
			return false
		}
		for i := range x.Items {
			if !Equal(x.Items[i], y.Items[i]) {
				return false
			}
		}
		return true
	case *DictObj:
		return dictEqual(x, b.(*DictObj))
	case *StreamObj:
		y := b.(*StreamObj)
		return dictEqual(x.Dict, y.Dict) && bytes.Equal(x.Data, y.Data)
	}
	return false
}

func dictEqual(x, y *DictObj) bool {
	if x.Len() != y.Len() {
		return false
	}
	eq := true
	x.Each(func(k names.ID, v Object) bool {
		w, ok := y.Get(k)
		if !ok || !Equal(v, w) {
			eq = false
		}
		return eq
	})
	return eq
}

// Copy returns a deep copy of o. Stream payload bytes are shared.
func Copy(o Object) Object {
	switch x := o.(type) {
	case *ArrayObj:
		out := &ArrayObj{Items: make([]Object, len(x.Items))}
		for i, it := range x.Items {
			out.Items[i] = Copy(it)
		}
		return out
	case *DictObj:
		return CopyDict(x)
	case *StreamObj:
		cp := *x
		cp.Dict = CopyDict(x.Dict)
		return &cp
	case StringObj:
		return StringObj{Bytes: append([]byte(nil), x.Bytes...), Hex: x.Hex}
	}
	return o
}

// CopyDict deep copies a dictionary keeping key order.
func CopyDict(d *DictObj) *DictObj {
	out := NewDict()
	d.Each(func(k names.ID, v Object) bool {
		out.Set(k, Copy(v))
		return true
	})
	return out
}

// Rewrite replaces every reference reachable inside o (without crossing
// references) with fn's result. Containers are modified in place; the
// possibly replaced top-level object is returned.
func Rewrite(o Object, fn func(ObjectRef) Object) Object {
	switch x := o.(type) {
	case RefObj:
		return fn(x.R)
	case *ArrayObj:
		for i, it := range x.Items {
			x.Items[i] = Rewrite(it, fn)
		}
	case *DictObj:
		rewriteDict(x, fn)
	case *StreamObj:
		rewriteDict(x.Dict, fn)
	}
	return o
}

func rewriteDict(d *DictObj, fn func(ObjectRef) Object) {
	if d == nil {
		return
	}
	for i := range d.ents {
		d.ents[i].val = Rewrite(d.ents[i].val, fn)
	}
	// A rewrite to null must still delete the key.
	for _, k := range d.Keys() {
		if v, _ := d.Get(k); IsNull(v) {
			d.Delete(k)
		}
	}
}

// Refs calls fn for every reference directly contained in o.
func Refs(o Object, fn func(ObjectRef)) {
	switch x := o.(type) {
	case RefObj:
		fn(x.R)
	case *ArrayObj:
		for _, it := range x.Items {
			Refs(it, fn)
		}
	case *DictObj:
		x.Each(func(_ names.ID, v Object) bool { Refs(v, fn); return true })
	case *StreamObj:
		Refs(x.Dict, fn)
	}
}
