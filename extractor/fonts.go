package extractor

import (
	"slices"
	"sort"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
)

// FontInfo groups font dictionaries referenced throughout the document.
type FontInfo struct {
	ResourceName string
	BaseFont     string
	Subtype      string
	Encoding     string
	HasToUnicode bool
	Embedded     bool
	Pages        []int
}

// Fonts reports the distinct fonts referenced by page resources and the
// pages using them. Direct font dictionaries count once per page.
func (e *Extractor) Fonts() []FontInfo {
	byRef := make(map[raw.ObjectRef]*FontInfo)
	var all []*FontInfo
	for k, p := range e.pages {
		if p == nil {
			continue
		}
		fonts := e.dict(p.Resources, "Font")
		fonts.Each(func(key names.ID, v raw.Object) bool {
			ref, indirect := raw.AsRef(v)
			if indirect {
				if info, ok := byRef[ref]; ok {
					if !slices.Contains(info.Pages, k) {
						info.Pages = append(info.Pages, k)
					}
					return true
				}
			}
			dict, ok := raw.AsDict(e.doc.Resolve(v))
			if !ok {
				return true
			}
			info := e.fontInfo(dict)
			info.ResourceName = names.Default().String(key)
			info.Pages = []int{k}
			if indirect {
				byRef[ref] = info
			}
			all = append(all, info)
			return true
		})
	}
	out := make([]FontInfo, 0, len(all))
	for _, info := range all {
		sort.Ints(info.Pages)
		out = append(out, *info)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BaseFont == out[j].BaseFont {
			return out[i].ResourceName < out[j].ResourceName
		}
		return out[i].BaseFont < out[j].BaseFont
	})
	return out
}

func (e *Extractor) fontInfo(dict *raw.DictObj) *FontInfo {
	info := &FontInfo{
		BaseFont: e.name(dict, "BaseFont"),
		Subtype:  e.name(dict, "Subtype"),
		Encoding: e.name(dict, "Encoding"),
	}
	if info.Encoding == "" && e.dict(dict, "Encoding") != nil {
		info.Encoding = "custom"
	}
	_, info.HasToUnicode = raw.AsStream(e.value(dict, "ToUnicode"))
	desc := e.dict(dict, "FontDescriptor")
	if desc == nil {
		if kids := e.array(dict, "DescendantFonts"); kids != nil && kids.Len() > 0 {
			if cid, ok := raw.AsDict(e.doc.Resolve(kids.At(0))); ok {
				desc = e.dict(cid, "FontDescriptor")
			}
		}
	}
	for _, key := range []string{"FontFile", "FontFile2", "FontFile3"} {
		if _, ok := raw.AsStream(e.value(desc, key)); ok {
			info.Embedded = true
		}
	}
	return info
}
