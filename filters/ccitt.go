package filters

import (
	"io"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"golang.org/x/image/ccitt"
)

type ccittFilter struct{}

func (ccittFilter) Name() string { return "CCITTFaxDecode" }

// NewReader maps /DecodeParms onto x/image/ccitt: K < 0 selects Group 4,
// otherwise Group 3. Rows of 0 let the decoder find the height itself.
// EndOfLine and EndOfBlock are detected by the decoder and need no switch.
func (ccittFilter) NewReader(r io.Reader, params *raw.DictObj) (io.Reader, error) {
	k := intParam(params, names.K, 0)
	columns := intParam(params, names.Columns, 1728)
	rows := intParam(params, names.Rows, 0)
	blackIs1 := boolParam(params, names.BlackIs1, false)
	align := boolParam(params, names.EncodedByteAlign, false)

	sf := ccitt.Group3
	if k < 0 {
		sf = ccitt.Group4
	}
	if rows <= 0 {
		rows = ccitt.AutoDetectHeight
	}
	if err := checkRaster("ccittfax", columns, max(rows, 1)); err != nil {
		return nil, err
	}
	return ccitt.NewReader(r, ccitt.MSB, sf, columns, rows, &ccitt.Options{Align: align, Invert: blackIs1}), nil
}
