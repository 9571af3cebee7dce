package extractor

import (
	"context"
	"fmt"

	"github.com/wudi/pdfcore/ir/raw"
)

// EmbeddedFile captures an attached file spec surfaced via the Names tree.
type EmbeddedFile struct {
	Name         string
	FileName     string
	Description  string
	Relationship string
	Subtype      string
	Data         []byte
}

// EmbeddedFiles walks the EmbeddedFiles name tree and decodes the attached
// streams. A stream that fails to decode is reported with empty Data and
// a warning on the document.
func (e *Extractor) EmbeddedFiles(ctx context.Context) ([]EmbeddedFile, error) {
	tree := e.dict(e.dict(e.catalog, "Names"), "EmbeddedFiles")
	var files []EmbeddedFile
	var err error
	e.walkNameTree(tree, 0, func(key string, v raw.Object) {
		if err != nil {
			return
		}
		if err = ctx.Err(); err != nil {
			return
		}
		spec, ok := raw.AsDict(e.doc.Resolve(v))
		if !ok {
			return
		}
		f := EmbeddedFile{Name: key}
		if s, ok := e.text(spec, "UF"); ok {
			f.FileName = s
		} else {
			f.FileName, _ = e.text(spec, "F")
		}
		f.Description, _ = e.text(spec, "Desc")
		f.Relationship = e.name(spec, "AFRelationship")
		if st, ok := e.embeddedStream(spec); ok {
			f.Subtype = e.name(st.Dict, "Subtype")
			data, derr := e.doc.DecodeStream(ctx, st)
			if derr != nil {
				e.doc.IgnoreError()
				e.doc.Warnf("extractor", "embedded file %q: %v", key, derr)
			}
			f.Data = data
		}
		files = append(files, f)
	})
	if err != nil {
		return files, fmt.Errorf("embedded files: %w", err)
	}
	return files, nil
}

func (e *Extractor) embeddedStream(spec *raw.DictObj) (*raw.StreamObj, bool) {
	ef := e.dict(spec, "EF")
	for _, key := range []string{"UF", "F"} {
		if st, ok := raw.AsStream(e.value(ef, key)); ok {
			return st, true
		}
	}
	return nil, false
}
