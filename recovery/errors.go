package recovery

import (
	"errors"
	"fmt"
)

// Kind is the error taxonomy of the engine.
type Kind int

const (
	KindUnknown Kind = iota
	// KindSyntax is malformed bytes; it triggers repair unless strict.
	KindSyntax
	// KindReference is a dangling or cyclic indirect reference.
	KindReference
	// KindSemantic is a type mismatch.
	KindSemantic
	// KindResource is an unservable cache miss or an I/O failure.
	KindResource
	// KindLimit is an exceeded size or depth limit.
	KindLimit
	// KindAborted is cookie-triggered cancellation.
	KindAborted
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindReference:
		return "reference"
	case KindSemantic:
		return "semantic"
	case KindResource:
		return "resource"
	case KindLimit:
		return "limit"
	case KindAborted:
		return "aborted"
	}
	return "unknown"
}

// Sentinels usable with errors.Is.
var (
	ErrSyntax    = &Error{Kind: KindSyntax}
	ErrReference = &Error{Kind: KindReference}
	ErrSemantic  = &Error{Kind: KindSemantic}
	ErrResource  = &Error{Kind: KindResource}
	ErrLimit     = &Error{Kind: KindLimit}
	ErrAborted   = &Error{Kind: KindAborted}
)

// Error carries a Kind, the failing operation and an optional byte offset.
type Error struct {
	Kind   Kind
	Op     string
	Offset int64
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Offset > 0 {
		msg += fmt.Sprintf(" at offset %d", e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrSyntax) works
// for every syntax error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// New wraps err with a kind and operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf formats a message into a classified error.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// At returns a copy of e annotated with a byte offset.
func (e *Error) At(offset int64) *Error {
	cp := *e
	cp.Offset = offset
	return &cp
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
