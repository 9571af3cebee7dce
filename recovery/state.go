package recovery

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultMaxWarnings bounds the warning buffer of a State.
const DefaultMaxWarnings = 256

// State is the per-context error holder: the most recent error, a count of
// errors and a bounded, deduplicated warning buffer. It also acts as a
// Strategy so parsers can report straight into it.
type State struct {
	mu          sync.Mutex
	last        error
	count       int
	warnings    []string
	seen        map[string]struct{}
	dropped     int
	Strict      bool
	MaxWarnings int
}

// NewState returns an empty State. A strict state fails syntax errors
// instead of repairing them.
func NewState(strict bool) *State {
	return &State{Strict: strict, MaxWarnings: DefaultMaxWarnings, seen: make(map[string]struct{})}
}

// OnError implements Strategy. Repairable errors become warnings.
func (s *State) OnError(err error, loc Location) Action {
	switch {
	case !repairable(err):
		return ActionFail
	case s.Strict && errors.Is(err, ErrSyntax):
		return ActionFail
	}
	if loc.Component != "" {
		s.Warn(fmt.Sprintf("%s: %v", loc.Component, err))
	} else {
		s.Warn(err.Error())
	}
	return ActionFix
}

// Warn appends msg unless an identical warning is already buffered.
func (s *State) Warn(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, dup := s.seen[msg]; dup {
		return
	}
	max := s.MaxWarnings
	if max <= 0 {
		max = DefaultMaxWarnings
	}
	if len(s.warnings) >= max {
		s.dropped++
		return
	}
	s.seen[msg] = struct{}{}
	s.warnings = append(s.warnings, msg)
}

// Warnings returns a copy of the buffered warnings.
func (s *State) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.warnings...)
}

// Record stores err as the most recent error. Nil is ignored.
func (s *State) Record(err error) error {
	if err == nil {
		return nil
	}
	s.mu.Lock()
	s.last = err
	s.count++
	s.mu.Unlock()
	return err
}

// HasError reports whether an error is pending.
func (s *State) HasError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last != nil
}

// CaughtMessage returns the message of the pending error, or "".
func (s *State) CaughtMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return ""
	}
	return s.last.Error()
}

// Caught returns the pending error.
func (s *State) Caught() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Count returns how many errors were recorded since creation.
func (s *State) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Ignore clears the pending error.
func (s *State) Ignore() {
	s.mu.Lock()
	s.last = nil
	s.mu.Unlock()
}

// Rethrow returns the pending error and clears it so it surfaces exactly
// once at the next call boundary.
func (s *State) Rethrow() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.last
	s.last = nil
	return err
}

// ClearWarnings empties the warning buffer.
func (s *State) ClearWarnings() {
	s.mu.Lock()
	s.warnings = nil
	s.seen = make(map[string]struct{})
	s.dropped = 0
	s.mu.Unlock()
}
