package extractor

import (
	"github.com/wudi/pdfcore/coords"
	"github.com/wudi/pdfcore/ir/raw"
)

// AnnotationInfo summarizes a page annotation.
type AnnotationInfo struct {
	Page     int
	Subtype  string
	Rect     coords.Rect
	Contents string
	URI      string
	Flags    int
	Color    []float64
}

// Annotations returns the annotations of every page in page order.
func (e *Extractor) Annotations() []AnnotationInfo {
	var annots []AnnotationInfo
	for k, p := range e.pages {
		if p == nil {
			continue
		}
		arr := e.array(p.Dict, "Annots")
		for i := range arr.Len() {
			dict, ok := raw.AsDict(e.doc.Resolve(arr.At(i)))
			if !ok {
				continue
			}
			info := AnnotationInfo{Page: k, Subtype: e.name(dict, "Subtype")}
			if r := e.array(dict, "Rect"); r != nil {
				if v, ok := raw.Floats(r); ok {
					info.Rect, _ = coords.RectFromSlice(v)
				}
			}
			info.Contents, _ = e.text(dict, "Contents")
			if f, ok := raw.AsInt(e.value(dict, "F")); ok {
				info.Flags = int(f)
			}
			if c := e.array(dict, "C"); c != nil {
				info.Color, _ = raw.Floats(c)
			}
			info.URI = e.annotationURI(dict)
			annots = append(annots, info)
		}
	}
	return annots
}

func (e *Extractor) annotationURI(dict *raw.DictObj) string {
	if uri, ok := raw.AsString(e.value(dict, "URI")); ok {
		return string(uri)
	}
	action := e.dict(dict, "A")
	if action == nil || e.name(action, "S") != "URI" {
		return ""
	}
	uri, _ := raw.AsString(e.value(action, "URI"))
	return string(uri)
}
