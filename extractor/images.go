package extractor

import (
	"context"
	"sort"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
)

// ImageAsset describes an image XObject named in a page's resources.
type ImageAsset struct {
	Page             int
	ResourceName     string
	Ref              raw.ObjectRef
	Width            int
	Height           int
	BitsPerComponent int
	ColorSpace       string
	Filters          []string
	ImageMask        bool

	stream *raw.StreamObj
}

// Images lists the image XObjects of every page. Images inside form
// XObjects are not listed.
func (e *Extractor) Images() []ImageAsset {
	var assets []ImageAsset
	for k, p := range e.pages {
		if p == nil {
			continue
		}
		var page []ImageAsset
		e.dict(p.Resources, "XObject").Each(func(key names.ID, v raw.Object) bool {
			st, ok := raw.AsStream(e.doc.Resolve(v))
			if !ok || e.name(st.Dict, "Subtype") != "Image" {
				return true
			}
			a := ImageAsset{Page: k, ResourceName: names.Default().String(key), stream: st}
			a.Ref, _ = raw.AsRef(v)
			if w, ok := raw.AsInt(e.value(st.Dict, "Width")); ok {
				a.Width = int(w)
			}
			if h, ok := raw.AsInt(e.value(st.Dict, "Height")); ok {
				a.Height = int(h)
			}
			if bpc, ok := raw.AsInt(e.value(st.Dict, "BitsPerComponent")); ok {
				a.BitsPerComponent = int(bpc)
			}
			a.ImageMask, _ = raw.AsBool(e.value(st.Dict, "ImageMask"))
			switch cs := e.value(st.Dict, "ColorSpace").(type) {
			case raw.NameObj:
				a.ColorSpace = names.Default().String(cs.ID)
			case *raw.ArrayObj:
				if id, ok := raw.AsName(cs.At(0)); ok {
					a.ColorSpace = names.Default().String(id)
				}
			}
			for _, s := range e.doc.Filters(st) {
				a.Filters = append(a.Filters, s.Name)
			}
			page = append(page, a)
			return true
		})
		sort.Slice(page, func(i, j int) bool { return page[i].ResourceName < page[j].ResourceName })
		assets = append(assets, page...)
	}
	return assets
}

// ImageData returns the decoded samples of a. DCT, JPX and JBIG2 data
// need a codec registered in the document's Config.
func (e *Extractor) ImageData(ctx context.Context, a ImageAsset) ([]byte, error) {
	if a.stream == nil {
		return nil, nil
	}
	return e.doc.DecodeStream(ctx, a.stream)
}
