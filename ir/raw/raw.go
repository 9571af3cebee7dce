// Package raw holds the PDF object model: scalars, strings, names,
// arrays, insertion-ordered dictionaries, indirect references and streams.
package raw

import (
	"fmt"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Kind tags the variant of an Object.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindReal
	KindName
	KindString
	KindArray
	KindDict
	KindRef
	KindStream
)

var kindNames = [...]string{"null", "boolean", "integer", "real", "name", "string", "array", "dict", "ref", "stream"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Object is implemented by every PDF value.
type Object interface {
	Kind() Kind
	Type() string
	IsIndirect() bool
}

// Null is the shared null value.
var Null Object = NullObj{}
