package filters

import (
	"io"

	"github.com/hhrutter/lzw"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
)

type lzwFilter struct{}

func (lzwFilter) Name() string { return "LZWDecode" }

func (lzwFilter) NewReader(r io.Reader, params *raw.DictObj) (io.Reader, error) {
	early := intParam(params, names.EarlyChange, 1) == 1
	return withPredictor(lzw.NewReader(r, early), params)
}

func (lzwFilter) NewWriter(w io.Writer, params *raw.DictObj) (io.WriteCloser, error) {
	early := intParam(params, names.EarlyChange, 1) == 1
	return withPredictorWriter(lzw.NewWriter(w, early), params)
}
