package raw

import (
	"github.com/wudi/pdfcore/names"
)

// NullObj is the PDF null object.
type NullObj struct{}

func (NullObj) Kind() Kind       { return KindNull }
func (NullObj) Type() string     { return "null" }
func (NullObj) IsIndirect() bool { return false }

// BoolObj is a PDF boolean.
type BoolObj struct{ V bool }

func (BoolObj) Kind() Kind       { return KindBool }
func (BoolObj) Type() string     { return "boolean" }
func (BoolObj) IsIndirect() bool { return false }
func (b BoolObj) Value() bool    { return b.V }

// NumberObj is a PDF integer (64-bit) or real (32-bit IEEE).
type NumberObj struct {
	I     int64
	F     float32
	IsInt bool
}

func (n NumberObj) Kind() Kind {
	if n.IsInt {
		return KindInt
	}
	return KindReal
}
func (n NumberObj) Type() string {
	if n.IsInt {
		return "integer"
	}
	return "real"
}
func (NumberObj) IsIndirect() bool { return false }
func (n NumberObj) Int() int64 {
	if n.IsInt {
		return n.I
	}
	return int64(n.F)
}
func (n NumberObj) Float() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return float64(n.F)
}
func (n NumberObj) IsInteger() bool { return n.IsInt }

// NameObj is an interned PDF name. Ids come from names.Default.
type NameObj struct{ ID names.ID }

func (NameObj) Kind() Kind       { return KindName }
func (NameObj) Type() string     { return "name" }
func (NameObj) IsIndirect() bool { return false }
func (n NameObj) Value() string  { return names.Default().String(n.ID) }

// StringObj is a literal or hex string.
type StringObj struct {
	Bytes []byte
	Hex   bool
}

func (StringObj) Kind() Kind       { return KindString }
func (StringObj) Type() string     { return "string" }
func (StringObj) IsIndirect() bool { return false }
func (s StringObj) Value() []byte  { return s.Bytes }
func (s StringObj) IsHex() bool    { return s.Hex }

// Text decodes the string as a PDF text string.
func (s StringObj) Text() string { return DecodeTextString(s.Bytes) }

// ArrayObj is an ordered sequence of objects.
type ArrayObj struct{ Items []Object }

func (*ArrayObj) Kind() Kind       { return KindArray }
func (*ArrayObj) Type() string     { return "array" }
func (*ArrayObj) IsIndirect() bool { return false }
func (a *ArrayObj) Get(i int) (Object, bool) {
	if a == nil || i < 0 || i >= len(a.Items) {
		return nil, false
	}
	return a.Items[i], true
}

// At returns item i, or null when i is out of range.
func (a *ArrayObj) At(i int) Object {
	if a == nil || i < 0 || i >= len(a.Items) {
		return Null
	}
	return a.Items[i]
}

func (a *ArrayObj) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Items)
}
func (a *ArrayObj) Append(o ...Object) { a.Items = append(a.Items, o...) }

// RefObj is an unresolved indirect reference.
type RefObj struct{ R ObjectRef }

func (RefObj) Kind() Kind           { return KindRef }
func (RefObj) Type() string         { return "ref" }
func (RefObj) IsIndirect() bool     { return true }
func (r RefObj) Ref() ObjectRef     { return r.R }
func (r RefObj) String() string     { return r.R.String() }

// StreamObj is a dictionary plus a handle to its encoded bytes. Data holds
// the bytes when they live in memory; otherwise they are Length bytes at
// Offset in the owning document's source. In-memory data is never
// encrypted.
type StreamObj struct {
	Dict   *DictObj
	Data   []byte
	Offset int64
	Length int64
	Ref    ObjectRef
}

func (*StreamObj) Kind() Kind       { return KindStream }
func (*StreamObj) Type() string     { return "stream" }
func (*StreamObj) IsIndirect() bool { return false }

// InMemory reports whether the encoded bytes are held in Data.
func (s *StreamObj) InMemory() bool { return s.Data != nil || s.Offset < 0 }

// SetData replaces the encoded payload and keeps /Length consistent.
func (s *StreamObj) SetData(b []byte) {
	if b == nil {
		b = []byte{}
	}
	s.Data = b
	s.Offset = -1
	s.Length = int64(len(b))
	if s.Dict == nil {
		s.Dict = NewDict()
	}
	s.Dict.Set(names.Length, Int(int64(len(b))))
}
