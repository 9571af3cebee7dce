// Package extractor pulls document-level structure out of an open
// document: metadata, page labels, outlines, fonts, annotations, image
// XObjects and embedded files.
package extractor

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/pdf"
	"github.com/wudi/pdfcore/security"
)

// maxTreeDepth bounds recursion through name trees and outlines.
const maxTreeDepth = 64

// Extractor exposes helper routines over one document handle.
type Extractor struct {
	doc     *pdf.Document
	catalog *raw.DictObj
	// pages holds nil for pages that failed to load.
	pages  []*pdf.Page
	byRef  map[raw.ObjectRef]int
	labels []string
}

// New loads the page list of doc. Pages that fail to load are skipped
// with a warning on the document.
func New(doc *pdf.Document) (*Extractor, error) {
	if doc == nil {
		return nil, errors.New("document is required")
	}
	catalog, ok := doc.Catalog()
	if !ok {
		return nil, errors.New("pdf catalog not found in trailer")
	}
	n := doc.CountPages()
	e := &Extractor{
		doc:     doc,
		catalog: catalog,
		pages:   make([]*pdf.Page, n),
		byRef:   make(map[raw.ObjectRef]int, n),
	}
	for k := range n {
		p, err := doc.LoadPage(k)
		if err != nil {
			doc.IgnoreError()
			doc.Warnf("extractor", "page %d: %v", k, err)
			continue
		}
		e.pages[k] = p
		e.byRef[p.Ref] = k
	}
	e.labels = e.collectPageLabels()
	return e, nil
}

// Metadata holds high-level document metadata and flags.
type Metadata struct {
	Version     string
	Info        map[string]string
	Lang        string
	Marked      bool
	Encrypted   bool
	Permissions security.Permissions
	PageCount   int
	XMP         []byte
}

// Metadata aggregates the Info dictionary, language, tagging flag and the
// decoded XMP packet.
func (e *Extractor) Metadata(ctx context.Context) Metadata {
	meta := Metadata{
		Version:     e.doc.Version(),
		Info:        make(map[string]string),
		Encrypted:   e.doc.Encrypted(),
		Permissions: e.doc.Permissions(),
		PageCount:   len(e.pages),
	}
	if info, ok := e.doc.Info(); ok {
		info.Each(func(key names.ID, v raw.Object) bool {
			if s, ok := raw.AsString(e.doc.Resolve(v)); ok {
				meta.Info[names.Default().String(key)] = raw.DecodeTextString(s)
			}
			return true
		})
	}
	meta.Lang, _ = e.text(e.catalog, "Lang")
	if mark := e.dict(e.catalog, "MarkInfo"); mark != nil {
		meta.Marked, _ = raw.AsBool(e.value(mark, "Marked"))
	}
	if st, ok := raw.AsStream(e.value(e.catalog, "Metadata")); ok {
		data, err := e.doc.DecodeStream(ctx, st)
		if err != nil {
			e.doc.Warnf("extractor", "metadata stream: %v", err)
		} else {
			meta.XMP = data
		}
	}
	return meta
}

// PageLabels returns the label of every page, indexed from zero. Pages
// outside any label range get their decimal page number.
func (e *Extractor) PageLabels() []string {
	return append([]string(nil), e.labels...)
}

func (e *Extractor) collectPageLabels() []string {
	labels := make([]string, len(e.pages))
	for k := range labels {
		labels[k] = strconv.Itoa(k + 1)
	}
	tree := e.dict(e.catalog, "PageLabels")
	if tree == nil {
		return labels
	}
	type rng struct {
		start int
		entry *raw.DictObj
	}
	var ranges []rng
	e.walkNumberTree(tree, 0, func(key int64, v raw.Object) {
		if d, ok := raw.AsDict(e.doc.Resolve(v)); ok && key >= 0 {
			ranges = append(ranges, rng{int(key), d})
		}
	})
	for i, r := range ranges {
		end := len(labels)
		if i+1 < len(ranges) && ranges[i+1].start > r.start {
			end = min(end, ranges[i+1].start)
		}
		prefix, _ := e.text(r.entry, "P")
		first := int64(1)
		if st, ok := raw.AsInt(e.value(r.entry, "St")); ok && st > 0 {
			first = st
		}
		style := ""
		if id, ok := raw.AsName(e.value(r.entry, "S")); ok {
			style = names.Default().String(id)
		}
		for k := r.start; k < end; k++ {
			labels[k] = prefix + formatLabel(style, int(first)+k-r.start)
		}
	}
	return labels
}

func formatLabel(style string, n int) string {
	switch style {
	case "D":
		return strconv.Itoa(n)
	case "R":
		return roman(n)
	case "r":
		return strings.ToLower(roman(n))
	case "A":
		return letters(n, 'A')
	case "a":
		return letters(n, 'a')
	}
	return ""
}

func roman(n int) string {
	if n <= 0 || n >= 4000 {
		return strconv.Itoa(n)
	}
	vals := []int{1000, 900, 500, 400, 100, 90, 50, 40, 10, 9, 5, 4, 1}
	syms := []string{"M", "CM", "D", "CD", "C", "XC", "L", "XL", "X", "IX", "V", "IV", "I"}
	var b strings.Builder
	for i, v := range vals {
		for n >= v {
			b.WriteString(syms[i])
			n -= v
		}
	}
	return b.String()
}

// letters repeats the letter: 1..26 are A..Z, 27 is AA, 28 BB.
func letters(n int, base byte) string {
	if n <= 0 {
		return ""
	}
	c := base + byte((n-1)%26)
	return strings.Repeat(string(c), (n-1)/26+1)
}

func (e *Extractor) value(d *raw.DictObj, key string) raw.Object {
	v, ok := d.GetKey(key)
	if !ok {
		return raw.Null
	}
	return e.doc.Resolve(v)
}

func (e *Extractor) dict(d *raw.DictObj, key string) *raw.DictObj {
	out, _ := raw.AsDict(e.value(d, key))
	return out
}

func (e *Extractor) array(d *raw.DictObj, key string) *raw.ArrayObj {
	out, _ := raw.AsArray(e.value(d, key))
	return out
}

func (e *Extractor) text(d *raw.DictObj, key string) (string, bool) {
	s, ok := raw.AsString(e.value(d, key))
	if !ok {
		return "", false
	}
	return raw.DecodeTextString(s), true
}

func (e *Extractor) name(d *raw.DictObj, key string) string {
	id, ok := raw.AsName(e.value(d, key))
	if !ok {
		return ""
	}
	return names.Default().String(id)
}

// walkNameTree visits the leaves of a name tree in order.
func (e *Extractor) walkNameTree(node *raw.DictObj, depth int, fn func(key string, v raw.Object)) {
	if node == nil || depth > maxTreeDepth {
		return
	}
	if leaves := e.array(node, "Names"); leaves != nil {
		for i := 0; i+1 < leaves.Len(); i += 2 {
			if k, ok := raw.AsString(e.doc.Resolve(leaves.At(i))); ok {
				fn(raw.DecodeTextString(k), leaves.At(i+1))
			}
		}
	}
	if kids := e.array(node, "Kids"); kids != nil {
		for i := range kids.Len() {
			kid, _ := raw.AsDict(e.doc.Resolve(kids.At(i)))
			e.walkNameTree(kid, depth+1, fn)
		}
	}
}

// walkNumberTree visits the leaves of a number tree in order.
func (e *Extractor) walkNumberTree(node *raw.DictObj, depth int, fn func(key int64, v raw.Object)) {
	if node == nil || depth > maxTreeDepth {
		return
	}
	if leaves := e.array(node, "Nums"); leaves != nil {
		for i := 0; i+1 < leaves.Len(); i += 2 {
			if k, ok := raw.AsInt(e.doc.Resolve(leaves.At(i))); ok {
				fn(k, leaves.At(i+1))
			}
		}
	}
	if kids := e.array(node, "Kids"); kids != nil {
		for i := range kids.Len() {
			kid, _ := raw.AsDict(e.doc.Resolve(kids.At(i)))
			e.walkNumberTree(kid, depth+1, fn)
		}
	}
}
