package raw

import (
	"math"

	"github.com/wudi/pdfcore/names"
)

// Name interns s in the process table.
func Name(s string) NameObj { return NameObj{ID: names.Default().Intern(s)} }

// NameID wraps an already interned id.
func NameID(id names.ID) NameObj { return NameObj{ID: id} }

func Int(i int64) NumberObj { return NumberObj{I: i, IsInt: true} }

func Real(f float64) NumberObj {
	if f > math.MaxFloat32 {
		f = math.MaxFloat32
	} else if f < -math.MaxFloat32 {
		f = -math.MaxFloat32
	}
	return NumberObj{F: float32(f)}
}

func Bool(v bool) BoolObj { return BoolObj{V: v} }

func Str(b []byte) StringObj    { return StringObj{Bytes: b} }
func HexStr(b []byte) StringObj { return StringObj{Bytes: b, Hex: true} }

func NewArray(items ...Object) *ArrayObj { return &ArrayObj{Items: items} }

func Ref(num, gen int) RefObj { return RefObj{R: ObjectRef{Num: num, Gen: gen}} }

// NewStream builds an in-memory stream; Length is kept consistent with data.
func NewStream(dict *DictObj, data []byte) *StreamObj {
	s := &StreamObj{Dict: dict, Offset: -1}
	s.SetData(data)
	return s
}

// DictOf builds a dictionary from alternating name and value arguments.
func DictOf(kv ...any) *DictObj {
	d := NewDict()
	for i := 0; i+1 < len(kv); i += 2 {
		var key names.ID
		switch k := kv[i].(type) {
		case names.ID:
			key = k
		case string:
			key = names.Default().Intern(k)
		default:
			continue
		}
		if v, ok := kv[i+1].(Object); ok {
			d.Set(key, v)
		}
	}
	return d
}

// IsNull reports whether o is nil or the null object.
func IsNull(o Object) bool { return o == nil || o.Kind() == KindNull }

// AsInt extracts an integer, truncating reals.
func AsInt(o Object) (int64, bool) {
	if n, ok := o.(NumberObj); ok {
		return n.Int(), true
	}
	return 0, false
}

// AsFloat extracts a number as float64.
func AsFloat(o Object) (float64, bool) {
	if n, ok := o.(NumberObj); ok {
		return n.Float(), true
	}
	return 0, false
}

func AsName(o Object) (names.ID, bool) {
	if n, ok := o.(NameObj); ok {
		return n.ID, true
	}
	return 0, false
}

func AsBool(o Object) (bool, bool) {
	if b, ok := o.(BoolObj); ok {
		return b.V, true
	}
	return false, false
}

func AsString(o Object) ([]byte, bool) {
	if s, ok := o.(StringObj); ok {
		return s.Bytes, true
	}
	return nil, false
}

func AsArray(o Object) (*ArrayObj, bool) {
	a, ok := o.(*ArrayObj)
	return a, ok && a != nil
}

// AsDict returns the dictionary of a dict or stream object.
func AsDict(o Object) (*DictObj, bool) {
	switch v := o.(type) {
	case *DictObj:
		return v, v != nil
	case *StreamObj:
		return v.Dict, v != nil && v.Dict != nil
	}
	return nil, false
}

func AsStream(o Object) (*StreamObj, bool) {
	s, ok := o.(*StreamObj)
	return s, ok && s != nil
}

func AsRef(o Object) (ObjectRef, bool) {
	if r, ok := o.(RefObj); ok {
		return r.R, true
	}
	return ObjectRef{}, false
}

// IsName reports whether o is the name id.
func IsName(o Object, id names.ID) bool {
	n, ok := o.(NameObj)
	return ok && n.ID == id
}

// Floats converts an array of numbers; ok is false on any non-number.
func Floats(a *ArrayObj) ([]float64, bool) {
	if a == nil {
		return nil, false
	}
	out := make([]float64, len(a.Items))
	for i, it := range a.Items {
		f, ok := AsFloat(it)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
