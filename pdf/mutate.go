package pdf

import (
	"fmt"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/xref"
)

// Update stores obj as the new value of object num. The generation is
// unchanged; use BumpGeneration to retire references to the old value.
func (d *Document) Update(num int, obj raw.Object) error {
	if obj == nil {
		obj = raw.Null
	}
	d.retain(obj)
	return d.mutate(func(t *xref.Table) error {
		if err := t.Update(num, obj); err != nil {
			return recovery.New(recovery.KindSemantic, "update", err)
		}
		return nil
	})
}

// Create allocates an object number holding null and returns a reference
// to it. Freed slots are reused with their bumped generation.
func (d *Document) Create() raw.ObjectRef {
	var ref raw.ObjectRef
	d.mutate(func(t *xref.Table) error {
		ref.Num, ref.Gen = t.Create()
		return nil
	})
	return ref
}

// NewObject creates an object holding obj and returns its reference.
func (d *Document) NewObject(obj raw.Object) (raw.RefObj, error) {
	ref := d.Create()
	if err := d.Update(ref.Num, obj); err != nil {
		return raw.RefObj{}, err
	}
	if st, ok := obj.(*raw.StreamObj); ok {
		st.Ref = ref
	}
	return raw.RefObj{R: ref}, nil
}

// NewStream creates a stream object with an in-memory payload. Length is
// set from data.
func (d *Document) NewStream(dict *raw.DictObj, data []byte) (raw.RefObj, error) {
	if dict == nil {
		dict = raw.NewDict()
	}
	return d.NewObject(raw.NewStream(dict, data))
}

// UpdateStream replaces the payload of stream num with data, encoded with
// the stream's existing filter chain.
func (d *Document) UpdateStream(num int, data []byte) error {
	obj, err := d.Load(num)
	if err != nil {
		return err
	}
	st, ok := raw.AsStream(obj)
	if !ok {
		return d.fail(recovery.Errorf(recovery.KindSemantic, "update stream", "object %d is not a stream", num))
	}
	enc, err := d.pipeline.Encode(data, d.Filters(st))
	if err != nil {
		return d.fail(recovery.New(recovery.KindSemantic, "update stream", fmt.Errorf("object %d: %w", num, err)))
	}
	cp := raw.NewStream(raw.CopyDict(st.Dict), enc)
	cp.Ref = st.Ref
	cp.Dict.Set(names.Length, raw.Int(int64(len(enc))))
	return d.Update(num, cp)
}

// Delete frees object num. Its generation is bumped for the next use.
func (d *Document) Delete(num int) error {
	return d.mutate(func(t *xref.Table) error {
		if err := t.Delete(num); err != nil {
			return recovery.New(recovery.KindReference, "delete", err)
		}
		return nil
	})
}

// BumpGeneration increments the generation of object num.
func (d *Document) BumpGeneration(num int) error {
	return d.mutate(func(t *xref.Table) error {
		if err := t.BumpGeneration(num); err != nil {
			return recovery.New(recovery.KindLimit, "bump generation", err)
		}
		return nil
	})
}

// CountObjects returns the number of live objects.
func (d *Document) CountObjects() int {
	d.rlock()
	defer d.runlock()
	return d.sh.table.CountLive()
}

// Size returns the trailer /Size the table would be written with.
func (d *Document) Size() int {
	d.rlock()
	defer d.runlock()
	return d.sh.table.Size()
}

// retain takes references on the non-standard names in obj for the
// lifetime of the handle.
func (d *Document) retain(obj raw.Object) {
	var walk func(o raw.Object)
	walk = func(o raw.Object) {
		switch v := o.(type) {
		case raw.NameObj:
			d.keepName(v.ID)
		case *raw.ArrayObj:
			for _, it := range v.Items {
				walk(it)
			}
		case *raw.DictObj:
			v.Each(func(k names.ID, val raw.Object) bool {
				d.keepName(k)
				walk(val)
				return true
			})
		case *raw.StreamObj:
			walk(v.Dict)
		}
	}
	walk(obj)
}

func (d *Document) keepName(id names.ID) {
	if names.IsStandard(id) {
		return
	}
	d.scope.Intern(names.Default().String(id))
}
