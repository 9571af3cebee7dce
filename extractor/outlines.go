package extractor

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
)

// Bookmark describes a PDF outline entry. Page is -1 when the target is
// not a page of this document.
type Bookmark struct {
	Title    string
	Page     int
	Children []Bookmark
}

// TOCEntry is a flattened bookmark entry augmented with labels and depth.
type TOCEntry struct {
	Title string
	Page  int
	Label string
	Depth int
}

// Bookmarks walks the document outline tree. Items reached twice end
// their branch.
func (e *Extractor) Bookmarks() []Bookmark {
	root := e.dict(e.catalog, "Outlines")
	if root == nil {
		return nil
	}
	var seen bitset.BitSet
	first, _ := root.GetKey("First")
	return e.outlineBranch(first, &seen, 0)
}

// TableOfContents flattens bookmarks and attaches page labels.
func (e *Extractor) TableOfContents() []TOCEntry {
	var entries []TOCEntry
	var walk func(items []Bookmark, depth int)
	walk = func(items []Bookmark, depth int) {
		for _, item := range items {
			label := ""
			if item.Page >= 0 && item.Page < len(e.labels) {
				label = e.labels[item.Page]
			}
			entries = append(entries, TOCEntry{Title: item.Title, Page: item.Page, Label: label, Depth: depth})
			walk(item.Children, depth+1)
		}
	}
	walk(e.Bookmarks(), 0)
	return entries
}

func (e *Extractor) outlineBranch(obj raw.Object, seen *bitset.BitSet, depth int) []Bookmark {
	if depth > maxTreeDepth {
		return nil
	}
	var list []Bookmark
	for obj != nil {
		ref, ok := raw.AsRef(obj)
		if !ok || ref.Num < 0 || seen.Test(uint(ref.Num)) {
			break
		}
		seen.Set(uint(ref.Num))
		item, ok := raw.AsDict(e.doc.Resolve(obj))
		if !ok {
			break
		}
		title, _ := e.text(item, "Title")
		page := -1
		if dest, ok := item.GetKey("Dest"); ok {
			page = e.destPage(dest)
		} else if action := e.dict(item, "A"); action != nil && e.name(action, "S") == "GoTo" {
			d, _ := action.GetKey("D")
			page = e.destPage(d)
		}
		first, _ := item.GetKey("First")
		list = append(list, Bookmark{Title: title, Page: page, Children: e.outlineBranch(first, seen, depth+1)})
		obj, _ = item.GetKey("Next")
	}
	return list
}

// destPage returns the page index of an explicit or named destination.
func (e *Extractor) destPage(dest raw.Object) int {
	v := e.doc.Resolve(dest)
	switch t := v.(type) {
	case raw.NameObj:
		v = e.doc.Resolve(get(e.dict(e.catalog, "Dests"), t.ID))
	case raw.StringObj:
		v = e.namedDest(raw.DecodeTextString(t.Bytes))
	}
	// A named destination may be a dictionary holding /D.
	if d, ok := raw.AsDict(v); ok {
		v = e.value(d, "D")
	}
	arr, ok := raw.AsArray(v)
	if !ok || arr.Len() == 0 {
		return -1
	}
	switch first := arr.At(0).(type) {
	case raw.RefObj:
		if k, ok := e.byRef[first.R]; ok {
			return k
		}
	case raw.NumberObj:
		// Remote destinations use page numbers.
		if first.IsInt && first.I >= 0 && int(first.I) < len(e.pages) {
			return int(first.I)
		}
	}
	return -1
}

func (e *Extractor) namedDest(name string) raw.Object {
	tree := e.dict(e.dict(e.catalog, "Names"), "Dests")
	var found raw.Object = raw.Null
	e.walkNameTree(tree, 0, func(key string, v raw.Object) {
		if key == name && raw.IsNull(found) {
			found = e.doc.Resolve(v)
		}
	})
	return found
}

func get(d *raw.DictObj, key names.ID) raw.Object {
	v, _ := d.Get(key)
	return v
}
