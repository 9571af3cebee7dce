package recovery

import (
	"errors"
	"fmt"
)

// Strict fails on every error.
type Strict struct{}

func (Strict) OnError(error, Location) Action { return ActionFail }

// maxRecorded bounds the errors a Lenient strategy keeps.
const maxRecorded = 64

// Lenient repairs everything except limit, abort and resource errors and
// keeps the first errors it saw for inspection.
type Lenient struct {
	Errors  []error
	Dropped int
}

func (l *Lenient) OnError(err error, at Location) Action {
	if len(l.Errors) < maxRecorded {
		l.Errors = append(l.Errors, fmt.Errorf("%s: %w", at, err))
	} else {
		l.Dropped++
	}
	if !repairable(err) {
		return ActionFail
	}
	return ActionFix
}

func repairable(err error) bool {
	return !errors.Is(err, ErrLimit) && !errors.Is(err, ErrAborted) && !errors.Is(err, ErrResource)
}
