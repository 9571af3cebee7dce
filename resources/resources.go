// Package resources resolves named resources for a page being processed.
//
// Names are looked up in the resources of the innermost Form XObject being
// executed, then in the page's own resources, then in the resources of the
// page-tree ancestors.
package resources

import (
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/pdf"
	"github.com/wudi/pdfcore/recovery"
)

// Category is a resource dictionary subcategory.
type Category int

const (
	CategoryFont Category = iota
	CategoryXObject
	CategoryColorSpace
	CategoryPattern
	CategoryShading
	CategoryExtGState
	CategoryProperties
	CategoryProcSet
)

var categoryKeys = [...]names.ID{
	CategoryFont:       names.Font,
	CategoryXObject:    names.XObject,
	CategoryColorSpace: names.ColorSpace,
	CategoryPattern:    names.Pattern,
	CategoryShading:    names.Shading,
	CategoryExtGState:  names.ExtGState,
	CategoryProperties: names.Properties,
	CategoryProcSet:    names.ProcSet,
}

// Key returns the resource dictionary key of c.
func (c Category) Key() names.ID { return categoryKeys[c] }

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryKeys) {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return names.Default().String(categoryKeys[c])
}

// ErrNotFound is wrapped when a name is missing from every scope.
var ErrNotFound = errors.New("resource not found")

// Resource is a resolved entry. Ref is zero for direct objects.
type Resource struct {
	Ref    raw.ObjectRef
	Object raw.Object
}

// Dict returns the entry as a dictionary (or the dictionary of a stream).
func (r Resource) Dict() (*raw.DictObj, bool) { return raw.AsDict(r.Object) }

// Resolver walks the resource chain of one page. The stack grows only when
// a Form XObject is entered.
type Resolver struct {
	doc  *pdf.Document
	page *pdf.Page

	stack     []*raw.DictObj
	ancestors []*raw.DictObj
	walked    bool
}

// NewResolver returns a resolver for page. page may be nil when a bare
// content stream is processed; only pushed scopes are searched then.
func NewResolver(doc *pdf.Document, page *pdf.Page) *Resolver {
	return &Resolver{doc: doc, page: page}
}

// Push enters the resources of a Form XObject. A nil dict is pushed too so
// Pop stays balanced; lookups fall through it.
func (r *Resolver) Push(res *raw.DictObj) { r.stack = append(r.stack, res) }

// Pop leaves the innermost form scope.
func (r *Resolver) Pop() {
	if n := len(r.stack); n > 0 {
		r.stack = r.stack[:n-1]
	}
}

// Depth returns the number of pushed form scopes.
func (r *Resolver) Depth() int { return len(r.stack) }

// Scopes returns the dictionaries searched, innermost first.
func (r *Resolver) Scopes() []*raw.DictObj {
	out := make([]*raw.DictObj, 0, len(r.stack)+2)
	for i := len(r.stack) - 1; i >= 0; i-- {
		if r.stack[i] != nil {
			out = append(out, r.stack[i])
		}
	}
	if r.page != nil && r.page.Resources != nil {
		out = append(out, r.page.Resources)
	}
	return append(out, r.inherited()...)
}

// inherited collects /Resources of the page-tree ancestors above the one
// the page already took its resources from.
func (r *Resolver) inherited() []*raw.DictObj {
	if r.walked || r.page == nil || r.doc == nil {
		return r.ancestors
	}
	r.walked = true
	var seen bitset.BitSet
	node := r.page.Dict
	for depth := 0; node != nil && depth <= r.doc.Config().Limits.MaxPageTreeDepth; depth++ {
		if res, ok := raw.AsDict(r.doc.Resolve(field(node, names.Resources))); ok && res != r.page.Resources && !r.has(res) {
			r.ancestors = append(r.ancestors, res)
		}
		parent := field(node, names.Parent)
		if ref, ok := raw.AsRef(parent); ok {
			if seen.Test(uint(ref.Num)) {
				break
			}
			seen.Set(uint(ref.Num))
		}
		node, _ = raw.AsDict(r.doc.Resolve(parent))
	}
	return r.ancestors
}

func (r *Resolver) has(d *raw.DictObj) bool {
	for _, a := range r.ancestors {
		if a == d {
			return true
		}
	}
	return false
}

// Lookup returns the entry name of category cat from the innermost scope
// that defines it.
func (r *Resolver) Lookup(cat Category, name names.ID) (Resource, error) {
	for _, scope := range r.Scopes() {
		sub, ok := raw.AsDict(r.resolve(field(scope, cat.Key())))
		if !ok {
			continue
		}
		v, ok := sub.Get(name)
		if !ok {
			continue
		}
		res := Resource{Object: r.resolve(v)}
		if ref, ok := raw.AsRef(v); ok {
			res.Ref = ref
		}
		if raw.IsNull(res.Object) {
			continue
		}
		return res, nil
	}
	return Resource{}, recovery.New(recovery.KindSemantic, "resources",
		fmt.Errorf("%s /%s: %w", cat, names.Default().String(name), ErrNotFound))
}

// LookupDict is Lookup for entries that must be dictionaries or streams.
func (r *Resolver) LookupDict(cat Category, name names.ID) (*raw.DictObj, Resource, error) {
	res, err := r.Lookup(cat, name)
	if err != nil {
		return nil, res, err
	}
	d, ok := res.Dict()
	if !ok {
		return nil, res, recovery.Errorf(recovery.KindSemantic, "resources", "%s /%s is a %s",
			cat, names.Default().String(name), res.Object.Type())
	}
	return d, res, nil
}

// ProcSets returns the procedure set names of the innermost scope that has
// a /ProcSet array.
func (r *Resolver) ProcSets() []names.ID {
	for _, scope := range r.Scopes() {
		arr, ok := raw.AsArray(r.resolve(field(scope, names.ProcSet)))
		if !ok {
			continue
		}
		out := make([]names.ID, 0, arr.Len())
		for _, it := range arr.Items {
			if id, ok := raw.AsName(it); ok {
				out = append(out, id)
			}
		}
		return out
	}
	return nil
}

func (r *Resolver) resolve(o raw.Object) raw.Object {
	if r.doc == nil {
		if _, ok := o.(raw.RefObj); ok {
			return raw.Null
		}
		return o
	}
	return r.doc.Resolve(o)
}

func field(d *raw.DictObj, key names.ID) raw.Object {
	if d == nil {
		return raw.Null
	}
	v, ok := d.Get(key)
	if !ok {
		return raw.Null
	}
	return v
}
