package filters

import (
	"io"

	"github.com/andybalholm/brotli"
	"github.com/wudi/pdfcore/ir/raw"
)

type brotliFilter struct{}

func (brotliFilter) Name() string { return "BrotliDecode" }

func (brotliFilter) NewReader(r io.Reader, params *raw.DictObj) (io.Reader, error) {
	return withPredictor(brotli.NewReader(r), params)
}

func (brotliFilter) NewWriter(w io.Writer, params *raw.DictObj) (io.WriteCloser, error) {
	return withPredictorWriter(brotli.NewWriterLevel(w, brotli.BestCompression), params)
}
