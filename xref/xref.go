// Package xref holds the cross-reference table: one entry per object number
// locating the object in the file, inside an object stream, or in memory,
// layered by revision.
package xref

import (
	"fmt"
	"sort"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
)

// Kind is the state of an entry.
type Kind uint8

const (
	Free Kind = iota
	InUse
	// ObjStm marks an in-use entry known to host an object stream.
	ObjStm
	// Compressed entries live inside an object stream.
	Compressed
)

func (k Kind) String() string {
	switch k {
	case Free:
		return "free"
	case InUse:
		return "inuse"
	case ObjStm:
		return "objstm"
	case Compressed:
		return "compressed"
	}
	return fmt.Sprintf("kind(%d)", k)
}

// MaxGeneration is the highest generation number; a slot reaching it is
// never reused.
const MaxGeneration = 65535

// Entry is the record for one object number.
type Entry struct {
	Kind Kind
	// Gen is the generation. For free entries it is the generation the
	// next use of the slot receives.
	Gen uint16
	// Offset is the file offset for in-use entries and the host object
	// stream number for compressed entries.
	Offset int64
	// StmOffset is the offset of the stream payload once known.
	StmOffset int64
	// Index is the position inside the host object stream.
	Index int
	// Obj is the in-memory object for local or materialized entries.
	Obj raw.Object
	// Stream caches decoded bytes of an object stream host.
	Stream []byte
	Marked bool
	// Local marks entries that belong to the incremental update layer.
	Local bool
}

// Live reports whether the entry addresses an object.
func (e *Entry) Live() bool { return e != nil && e.Kind != Free }

// Subsection is a dense run of entries starting at Start.
type Subsection struct {
	Start   int
	Entries []Entry
}

// Section is one cross-reference section as found in the file.
type Section struct {
	Offset      int64
	Stream      bool
	Subsections []Subsection
	Trailer     *raw.DictObj
}

// Entry returns the entry for num in this section.
func (s *Section) Entry(num int) (*Entry, bool) {
	for i := range s.Subsections {
		sub := &s.Subsections[i]
		if num >= sub.Start && num < sub.Start+len(sub.Entries) {
			return &sub.Entries[num-sub.Start], true
		}
	}
	return nil, false
}

// Table is the merged view over every section plus the local layer.
type Table struct {
	sections  []*Section
	entries   []Entry
	local     map[int]*Entry
	trailer   *raw.DictObj
	free      []int
	rewritten bool
	repaired  bool
}

// New returns an empty table.
func New() *Table {
	return &Table{local: make(map[int]*Entry), trailer: raw.NewDict()}
}

// AddSection appends a section older than every section added so far.
// Parsers add the newest section first and follow /Prev.
func (t *Table) AddSection(s *Section) {
	t.sections = append(t.sections, s)
}

// Sections returns the sections, newest first.
func (t *Table) Sections() []*Section { return t.sections }

// Build merges the sections into the dense entry vector. Newer sections
// shadow older ones; the newest trailer wins key by key.
func (t *Table) Build() {
	size := 0
	for _, s := range t.sections {
		for _, sub := range s.Subsections {
			if end := sub.Start + len(sub.Entries); end > size {
				size = end
			}
		}
	}
	t.entries = make([]Entry, size)
	seen := make([]bool, size)
	trailer := raw.NewDict()
	for _, s := range t.sections {
		for _, sub := range s.Subsections {
			for i, e := range sub.Entries {
				num := sub.Start + i
				if seen[num] {
					continue
				}
				seen[num] = true
				t.entries[num] = e
			}
		}
		s.Trailer.Each(func(k names.ID, v raw.Object) bool {
			if s.Stream && !documentKey(k) {
				return true
			}
			if !trailer.Has(k) && k != names.Prev && k != names.XRefStm {
				trailer.Set(k, v)
			}
			return true
		})
	}
	if size > 0 {
		t.entries[0] = Entry{Kind: Free, Gen: MaxGeneration}
	}
	t.trailer = trailer
	t.rebuildFree()
}

// documentKey reports whether k belongs in the merged trailer when it comes
// from a cross-reference stream dictionary.
func documentKey(k names.ID) bool {
	switch k {
	case names.Size, names.Root, names.Info, names.IDKey, names.Encrypt, names.Prev:
		return true
	}
	return false
}

func (t *Table) rebuildFree() {
	t.free = t.free[:0]
	for num := len(t.entries) - 1; num > 0; num-- {
		if e := t.lookup(num); e.Kind == Free && e.Gen < MaxGeneration {
			t.free = append(t.free, num)
		}
	}
}

// Trailer returns the merged trailer dictionary.
func (t *Table) Trailer() *raw.DictObj { return t.trailer }

// SetTrailer replaces the trailer dictionary.
func (t *Table) SetTrailer(d *raw.DictObj) { t.trailer = d }

// Size is one more than the highest object number in use or allocated.
func (t *Table) Size() int {
	n := len(t.entries)
	for num := range t.local {
		if num+1 > n {
			n = num + 1
		}
	}
	return n
}

func (t *Table) lookup(num int) *Entry {
	if e, ok := t.local[num]; ok {
		return e
	}
	if num >= 0 && num < len(t.entries) {
		return &t.entries[num]
	}
	return nil
}

// Lookup returns the entry for num. Free entries are returned too; use
// Live to test for an addressable object.
func (t *Table) Lookup(num int) (*Entry, bool) {
	e := t.lookup(num)
	return e, e != nil
}

func (t *Table) localEntry(num int) *Entry {
	if e, ok := t.local[num]; ok {
		return e
	}
	e := &Entry{}
	if base := t.lookup(num); base != nil {
		*e = *base
	}
	e.Local = true
	t.local[num] = e
	return e
}

// Update stores obj as the new value of num in the local layer.
func (t *Table) Update(num int, obj raw.Object) error {
	if num <= 0 {
		return fmt.Errorf("update object %d: invalid object number", num)
	}
	e := t.localEntry(num)
	if e.Kind == Free {
		t.removeFree(num)
	}
	e.Kind = InUse
	e.Obj = obj
	e.Stream = nil
	e.Offset = 0
	e.Index = 0
	return nil
}

// BumpGeneration increments the generation of num.
func (t *Table) BumpGeneration(num int) error {
	e := t.lookup(num)
	if e == nil || num <= 0 {
		return fmt.Errorf("bump generation %d: no such object", num)
	}
	if e.Gen >= MaxGeneration {
		return fmt.Errorf("bump generation %d: generation exhausted", num)
	}
	t.localEntry(num).Gen++
	return nil
}

// Create allocates an object number holding null, preferring freed slots.
func (t *Table) Create() (num int, gen int) {
	for len(t.free) > 0 {
		num = t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
		e := t.lookup(num)
		if e == nil || e.Kind != Free || e.Gen >= MaxGeneration {
			continue
		}
		le := t.localEntry(num)
		le.Kind = InUse
		le.Obj = raw.Null
		return num, int(le.Gen)
	}
	num = t.Size()
	if num == 0 {
		num = 1
		t.local[0] = &Entry{Kind: Free, Gen: MaxGeneration, Local: true}
	}
	t.local[num] = &Entry{Kind: InUse, Obj: raw.Null, Local: true}
	return num, 0
}

// Delete frees num and bumps its generation for the next use.
func (t *Table) Delete(num int) error {
	e := t.lookup(num)
	if num <= 0 || e == nil || e.Kind == Free {
		return fmt.Errorf("delete object %d: not in use", num)
	}
	le := t.localEntry(num)
	t.freeEntry(num, le)
	t.free = append(t.free, num)
	return nil
}

func (t *Table) freeEntry(num int, e *Entry) {
	e.Kind = Free
	if e.Gen < MaxGeneration {
		e.Gen++
	}
	e.Obj = nil
	e.Stream = nil
	e.Offset = 0
	e.StmOffset = 0
	e.Marked = false
}

func (t *Table) removeFree(num int) {
	for i, n := range t.free {
		if n == num {
			t.free = append(t.free[:i], t.free[i+1:]...)
			return
		}
	}
}

// FreeList returns the free object numbers in allocation order (the last
// element is handed out first).
func (t *Table) FreeList() []int { return append([]int(nil), t.free...) }

// Each visits entries 0..Size-1 in ascending order until fn returns false.
func (t *Table) Each(fn func(num int, e *Entry) bool) {
	size := t.Size()
	for num := 0; num < size; num++ {
		e := t.lookup(num)
		if e == nil {
			continue
		}
		if !fn(num, e) {
			return
		}
	}
}

// LocalNums returns the object numbers of the local layer, ascending.
func (t *Table) LocalNums() []int {
	out := make([]int, 0, len(t.local))
	for num := range t.local {
		out = append(out, num)
	}
	sort.Ints(out)
	return out
}

// HasLocal reports whether the local layer holds changes.
func (t *Table) HasLocal() bool { return len(t.local) > 0 }

// CountLive returns the number of entries that address an object.
func (t *Table) CountLive() int {
	n := 0
	t.Each(func(num int, e *Entry) bool {
		if num > 0 && e.Live() {
			n++
		}
		return true
	})
	return n
}

// ClearMarks resets every mark.
func (t *Table) ClearMarks() {
	t.Each(func(_ int, e *Entry) bool {
		e.Marked = false
		return true
	})
}

// Sweep frees every live, unmarked entry except 0 and returns how many
// were freed. Freed numbers join the free list in descending order.
func (t *Table) Sweep() int {
	var freed []int
	t.Each(func(num int, e *Entry) bool {
		if num > 0 && e.Live() && !e.Marked {
			freed = append(freed, num)
		}
		return true
	})
	for i := len(freed) - 1; i >= 0; i-- {
		num := freed[i]
		t.freeEntry(num, t.localEntry(num))
		t.free = append(t.free, num)
	}
	return len(freed)
}

// Reset replaces the whole table with in-memory entries, e.g. after
// renumbering. The result cannot be written incrementally.
func (t *Table) Reset(entries []Entry, trailer *raw.DictObj) {
	t.sections = nil
	t.local = make(map[int]*Entry)
	t.entries = entries
	for i := range t.entries {
		t.entries[i].Local = false
	}
	if len(t.entries) > 0 {
		t.entries[0] = Entry{Kind: Free, Gen: MaxGeneration}
	}
	t.trailer = trailer
	t.rewritten = true
	t.rebuildFree()
}

// Rewritten reports whether the table no longer mirrors the file layout.
func (t *Table) Rewritten() bool { return t.rewritten }

// SetRepaired flags a table rebuilt by scanning the file.
func (t *Table) SetRepaired(v bool) { t.repaired = v }

// Repaired reports whether the table was rebuilt by scanning the file.
func (t *Table) Repaired() bool { return t.repaired }

// Validate reports compressed entries whose host is not an in-use object.
func (t *Table) Validate() []error {
	var errs []error
	t.Each(func(num int, e *Entry) bool {
		if e.Kind != Compressed {
			return true
		}
		host := t.lookup(int(e.Offset))
		if host == nil || (host.Kind != InUse && host.Kind != ObjStm) {
			errs = append(errs, fmt.Errorf("object %d: host object stream %d is not in use", num, e.Offset))
		}
		return true
	})
	return errs
}
