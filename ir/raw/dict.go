package raw

import (
	"github.com/wudi/pdfcore/names"
)

// indexThreshold is the entry count above which a dictionary keeps a hash
// index next to its ordered slice.
const indexThreshold = 16

type dictEntry struct {
	key names.ID
	val Object
}

// DictObj is a PDF dictionary. Keys keep their insertion order so a parsed
// dictionary reserializes byte for byte. Setting a key to null removes it.
type DictObj struct {
	ents  []dictEntry
	index map[names.ID]int
}

// NewDict returns an empty dictionary.
func NewDict() *DictObj { return &DictObj{} }

func (*DictObj) Kind() Kind       { return KindDict }
func (*DictObj) Type() string     { return "dict" }
func (*DictObj) IsIndirect() bool { return false }

func (d *DictObj) find(key names.ID) int {
	if d == nil {
		return -1
	}
	if d.index != nil {
		if i, ok := d.index[key]; ok {
			return i
		}
		return -1
	}
	for i := range d.ents {
		if d.ents[i].key == key {
			return i
		}
	}
	return -1
}

// Get returns the value stored under key.
func (d *DictObj) Get(key names.ID) (Object, bool) {
	if i := d.find(key); i >= 0 {
		return d.ents[i].val, true
	}
	return nil, false
}

// GetKey looks a key up by string without interning it.
func (d *DictObj) GetKey(key string) (Object, bool) {
	id, ok := names.Default().Find(key)
	if !ok {
		return nil, false
	}
	return d.Get(id)
}

// Has reports whether key is present.
func (d *DictObj) Has(key names.ID) bool { return d.find(key) >= 0 }

// Set stores value under key. A nil or null value deletes the key.
func (d *DictObj) Set(key names.ID, value Object) {
	if value == nil || value.Kind() == KindNull {
		d.Delete(key)
		return
	}
	if i := d.find(key); i >= 0 {
		d.ents[i].val = value
		return
	}
	d.ents = append(d.ents, dictEntry{key: key, val: value})
	if d.index != nil {
		d.index[key] = len(d.ents) - 1
	} else if len(d.ents) > indexThreshold {
		d.reindex()
	}
}

// SetKey interns key in the process table and stores value.
func (d *DictObj) SetKey(key string, value Object) {
	d.Set(names.Default().Intern(key), value)
}

// Delete removes key, keeping the order of the remaining entries.
func (d *DictObj) Delete(key names.ID) {
	i := d.find(key)
	if i < 0 {
		return
	}
	d.ents = append(d.ents[:i], d.ents[i+1:]...)
	if d.index != nil {
		if len(d.ents) > indexThreshold {
			d.reindex()
		} else {
			d.index = nil
		}
	}
}

func (d *DictObj) reindex() {
	d.index = make(map[names.ID]int, len(d.ents))
	for i, e := range d.ents {
		d.index[e.key] = i
	}
}

// Len returns the number of entries.
func (d *DictObj) Len() int {
	if d == nil {
		return 0
	}
	return len(d.ents)
}

// Keys returns the keys in insertion order.
func (d *DictObj) Keys() []names.ID {
	if d == nil {
		return nil
	}
	keys := make([]names.ID, len(d.ents))
	for i, e := range d.ents {
		keys[i] = e.key
	}
	return keys
}

// Each calls fn for every entry in insertion order until fn returns false.
func (d *DictObj) Each(fn func(key names.ID, value Object) bool) {
	if d == nil {
		return
	}
	for _, e := range d.ents {
		if !fn(e.key, e.val) {
			return
		}
	}
}

// Indexed reports whether the dictionary has switched to a hash index.
func (d *DictObj) Indexed() bool { return d != nil && d.index != nil }
