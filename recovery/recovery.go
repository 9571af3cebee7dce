// Package recovery classifies engine errors and decides how the parser
// reacts to malformed input.
package recovery

import "strconv"

// Strategy decides what a reader does about a problem found at a
// location in the file.
type Strategy interface {
	OnError(err error, at Location) Action
}

// Location is where a problem was found. Offset is -1 when unknown.
type Location struct {
	Offset    int64
	Component string
}

func (l Location) String() string {
	if l.Offset < 0 {
		return l.Component
	}
	return l.Component + "@" + strconv.FormatInt(l.Offset, 10)
}

// Action is a strategy's verdict.
type Action int

const (
	// ActionFail stops the operation and returns the error.
	ActionFail Action = iota
	// ActionSkip drops the damaged item.
	ActionSkip
	// ActionFix continues with a best-effort repair.
	ActionFix
)

func (a Action) String() string {
	switch a {
	case ActionFail:
		return "fail"
	case ActionSkip:
		return "skip"
	case ActionFix:
		return "fix"
	}
	return "action(" + strconv.Itoa(int(a)) + ")"
}
