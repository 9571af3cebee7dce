// Package names interns PDF name strings into small integer ids.
//
// A Table is shared by every document context in the process. The standard
// names are pinned at construction and keep a permanent reference; dynamic
// names are reference counted and recycled once the last reference is
// released.
package names

import (
	"fmt"
	"sync"
)

// ID identifies an interned name. The zero ID is never assigned.
type ID uint32

type entry struct {
	s      string
	refs   int32
	pinned bool
}

// Table maps name strings to ids. Interning and release are the only
// writers; lookups take the read lock.
type Table struct {
	mu     sync.RWMutex
	byName map[string]ID
	ents   []entry
	free   []ID
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the process-wide table.
func Default() *Table {
	defaultOnce.Do(func() { defaultTable = NewTable() })
	return defaultTable
}

// NewTable returns a table with the standard names pinned at their fixed ids.
func NewTable() *Table {
	t := &Table{
		byName: make(map[string]ID, len(standard)*2),
		ents:   make([]entry, len(standard), len(standard)+256),
	}
	for i, s := range standard {
		if i == 0 {
			continue
		}
		t.ents[i] = entry{s: s, refs: 1, pinned: true}
		t.byName[s] = ID(i)
	}
	return t
}

// Intern returns the id for s, adding a reference.
func (t *Table) Intern(s string) ID {
	t.mu.RLock()
	id, ok := t.byName[s]
	if ok && t.ents[id].pinned {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byName[s]; ok {
		if !t.ents[id].pinned {
			t.ents[id].refs++
		}
		return id
	}
	if n := len(t.free); n > 0 {
		id = t.free[n-1]
		t.free = t.free[:n-1]
		t.ents[id] = entry{s: s, refs: 1}
	} else {
		id = ID(len(t.ents))
		t.ents = append(t.ents, entry{s: s, refs: 1})
	}
	t.byName[s] = id
	return id
}

// Find returns the id of s without adding a reference.
func (t *Table) Find(s string) (ID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byName[s]
	return id, ok
}

// Lookup returns the string for id.
func (t *Table) Lookup(id ID) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id == 0 || int(id) >= len(t.ents) || t.ents[id].refs == 0 {
		return "", false
	}
	return t.ents[id].s, true
}

// String is Lookup without the presence flag; unknown ids render as "#id".
func (t *Table) String(id ID) string {
	if s, ok := t.Lookup(id); ok {
		return s
	}
	return fmt.Sprintf("#%d", id)
}

// Retain adds a reference to a live id.
func (t *Table) Retain(id ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(id) < len(t.ents) && t.ents[id].refs > 0 && !t.ents[id].pinned {
		t.ents[id].refs++
	}
}

// Release drops a reference. Dynamic names are freed at zero; pinned names
// are never freed.
func (t *Table) Release(id ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == 0 || int(id) >= len(t.ents) {
		return
	}
	e := &t.ents[id]
	if e.pinned || e.refs == 0 {
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(t.byName, e.s)
		e.s = ""
		t.free = append(t.free, id)
	}
}

// Refs reports the reference count of id.
func (t *Table) Refs(id ID) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.ents) {
		return 0
	}
	return int(t.ents[id].refs)
}

// IsStandard reports whether id is one of the pinned standard names.
func IsStandard(id ID) bool { return id > 0 && int(id) < len(standard) }

// Len reports the number of live names.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byName)
}

// Scope tracks the references one owner took on a table so they can be
// released together.
type Scope struct {
	mu    sync.Mutex
	table *Table
	held  map[ID]int32
}

// NewScope returns a scope over t.
func NewScope(t *Table) *Scope {
	return &Scope{table: t, held: make(map[ID]int32)}
}

// Table returns the underlying table.
func (s *Scope) Table() *Table { return s.table }

// Intern interns name and records the reference unless it is standard.
func (s *Scope) Intern(name string) ID {
	id := s.table.Intern(name)
	if !IsStandard(id) {
		s.mu.Lock()
		s.held[id]++
		s.mu.Unlock()
	}
	return id
}

// ReleaseAll drops every reference taken through the scope.
func (s *Scope) ReleaseAll() {
	s.mu.Lock()
	held := s.held
	s.held = make(map[ID]int32)
	s.mu.Unlock()
	for id, n := range held {
		for ; n > 0; n-- {
			s.table.Release(id)
		}
	}
}
