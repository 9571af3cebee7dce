package filters

import (
	"bufio"
	"compress/flate"
	"compress/zlib"
	"errors"
	"io"

	"github.com/wudi/pdfcore/ir/raw"
)

type flateFilter struct{}

func (flateFilter) Name() string { return "FlateDecode" }

// NewReader accepts zlib-wrapped data (the normal case) and falls back to
// raw deflate when the zlib header is missing. Truncated or checksum-broken
// streams end at the last byte that inflated cleanly.
func (flateFilter) NewReader(r io.Reader, params *raw.DictObj) (io.Reader, error) {
	br := bufio.NewReader(r)
	var inner io.Reader
	hdr, err := br.Peek(2)
	if err == nil && hdr[0]&0x0F == 8 && (uint16(hdr[0])<<8|uint16(hdr[1]))%31 == 0 {
		zr, zerr := zlib.NewReader(br)
		if zerr != nil {
			return nil, zerr
		}
		inner = zr
	} else {
		inner = flate.NewReader(br)
	}
	return withPredictor(&lenientInflater{r: inner}, params)
}

func (flateFilter) NewWriter(w io.Writer, params *raw.DictObj) (io.WriteCloser, error) {
	zw, err := zlib.NewWriterLevel(w, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	return withPredictorWriter(zw, params)
}

type lenientInflater struct {
	r io.Reader
}

func (l *lenientInflater) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	if err != nil && (errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, zlib.ErrChecksum)) {
		err = io.EOF
	}
	return n, err
}
