package filters

import (
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
)

type predictorParams struct {
	predictor int
	colors    int
	bpc       int
	columns   int
}

func readPredictorParams(params *raw.DictObj) (predictorParams, error) {
	p := predictorParams{
		predictor: intParam(params, names.Predictor, 1),
		colors:    intParam(params, names.Colors, 1),
		bpc:       intParam(params, names.BitsPerComponent, 8),
		columns:   intParam(params, names.Columns, 1),
	}
	if p.predictor == 1 {
		return p, nil
	}
	if p.predictor != 2 && (p.predictor < 10 || p.predictor > 15) {
		return p, fmt.Errorf("unsupported predictor %d", p.predictor)
	}
	switch p.bpc {
	case 1, 2, 4, 8, 16:
	default:
		return p, fmt.Errorf("invalid BitsPerComponent %d for predictor", p.bpc)
	}
	if p.colors < 1 || p.colors > 32 || p.columns < 1 || p.columns > 1<<24 {
		return p, fmt.Errorf("invalid predictor geometry colors=%d columns=%d", p.colors, p.columns)
	}
	return p, nil
}

func (p predictorParams) rowLen() int { return (p.colors*p.bpc*p.columns + 7) / 8 }
func (p predictorParams) bpp() int {
	if n := (p.colors*p.bpc + 7) / 8; n > 0 {
		return n
	}
	return 1
}

// withPredictor wraps r with a predictor reader when params ask for one.
func withPredictor(r io.Reader, params *raw.DictObj) (io.Reader, error) {
	p, err := readPredictorParams(params)
	if err != nil {
		return nil, err
	}
	if p.predictor == 1 {
		return r, nil
	}
	return &predictorReader{r: r, p: p, prev: make([]byte, p.rowLen()), cur: make([]byte, p.rowLen())}, nil
}

// predictorReader undoes PNG (10-15) or TIFF (2) prediction one row at a
// time.
type predictorReader struct {
	r    io.Reader
	p    predictorParams
	prev []byte
	cur  []byte
	out  []byte
	err  error
}

func (pr *predictorReader) Read(b []byte) (int, error) {
	for len(pr.out) == 0 {
		if pr.err != nil {
			return 0, pr.err
		}
		pr.fill()
	}
	n := copy(b, pr.out)
	pr.out = pr.out[n:]
	return n, nil
}

func (pr *predictorReader) fill() {
	if pr.p.predictor == 2 {
		n, err := io.ReadFull(pr.r, pr.cur)
		if n > 0 {
			row := pr.cur[:n]
			undoTIFF(row, pr.p)
			pr.out = row
		}
		pr.setErr(err)
		return
	}
	var tag [1]byte
	if _, err := io.ReadFull(pr.r, tag[:]); err != nil {
		pr.setErr(err)
		return
	}
	n, err := io.ReadFull(pr.r, pr.cur)
	if n > 0 {
		row := pr.cur[:n]
		if uerr := undoPNG(tag[0], row, pr.prev[:n], pr.p.bpp()); uerr != nil {
			pr.err = uerr
			return
		}
		copy(pr.prev, row)
		// prev and cur alternate so out stays valid while the caller drains it.
		pr.out = append(pr.out[:0], row...)
	}
	pr.setErr(err)
}

func (pr *predictorReader) setErr(err error) {
	switch {
	case err == nil:
	case errors.Is(err, io.ErrUnexpectedEOF):
		pr.err = io.EOF
	default:
		pr.err = err
	}
}

func undoPNG(tag byte, row, prev []byte, bpp int) error {
	switch tag {
	case 0:
	case 1:
		for i := bpp; i < len(row); i++ {
			row[i] += row[i-bpp]
		}
	case 2:
		for i := range row {
			row[i] += prev[i]
		}
	case 3:
		for i := range row {
			var left int
			if i >= bpp {
				left = int(row[i-bpp])
			}
			row[i] += byte((left + int(prev[i])) / 2)
		}
	case 4:
		for i := range row {
			var a, c byte
			if i >= bpp {
				a = row[i-bpp]
				c = prev[i-bpp]
			}
			row[i] += paeth(a, prev[i], c)
		}
	default:
		return fmt.Errorf("invalid PNG predictor tag %d", tag)
	}
	return nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func undoTIFF(row []byte, p predictorParams) {
	switch p.bpc {
	case 8:
		for i := p.colors; i < len(row); i++ {
			row[i] += row[i-p.colors]
		}
	case 16:
		step := 2 * p.colors
		for i := step; i+1 < len(row); i += 2 {
			v := uint16(row[i])<<8 | uint16(row[i+1])
			prev := uint16(row[i-step])<<8 | uint16(row[i-step+1])
			v += prev
			row[i], row[i+1] = byte(v>>8), byte(v)
		}
	default:
		tiffBits(row, p, true)
	}
}

// tiffBits applies (decode) or removes (encode) horizontal differencing
// for sub-byte samples.
func tiffBits(row []byte, p predictorParams, decode bool) {
	mask := 1<<p.bpc - 1
	get := func(i int) int {
		bit := i * p.bpc
		return int(row[bit/8]>>(8-p.bpc-bit%8)) & mask
	}
	set := func(i, v int) {
		bit := i * p.bpc
		shift := 8 - p.bpc - bit%8
		row[bit/8] = row[bit/8]&^byte(mask<<shift) | byte((v&mask)<<shift)
	}
	samples := p.columns * p.colors
	if max := len(row) * 8 / p.bpc; samples > max {
		samples = max
	}
	if decode {
		for i := p.colors; i < samples; i++ {
			set(i, get(i)+get(i-p.colors))
		}
		return
	}
	for i := samples - 1; i >= p.colors; i-- {
		set(i, get(i)-get(i-p.colors))
	}
}

// predictorWriter applies prediction before the wrapped encoder. PNG
// predictors always use the Up tag, which every decoder accepts.
type predictorWriter struct {
	w    io.WriteCloser
	p    predictorParams
	row  []byte
	prev []byte
}

func withPredictorWriter(w io.WriteCloser, params *raw.DictObj) (io.WriteCloser, error) {
	p, err := readPredictorParams(params)
	if err != nil {
		return nil, err
	}
	if p.predictor == 1 {
		return w, nil
	}
	return &predictorWriter{w: w, p: p, prev: make([]byte, p.rowLen())}, nil
}

func (pw *predictorWriter) Write(b []byte) (int, error) {
	n := len(b)
	rl := pw.p.rowLen()
	for len(b) > 0 {
		take := rl - len(pw.row)
		if take > len(b) {
			take = len(b)
		}
		pw.row = append(pw.row, b[:take]...)
		b = b[take:]
		if len(pw.row) == rl {
			if err := pw.flushRow(); err != nil {
				return 0, err
			}
		}
	}
	return n, nil
}

func (pw *predictorWriter) flushRow() error {
	row := pw.row
	out := make([]byte, 0, len(row)+1)
	if pw.p.predictor == 2 {
		enc := append([]byte(nil), row...)
		switch pw.p.bpc {
		case 8:
			for i := len(enc) - 1; i >= pw.p.colors; i-- {
				enc[i] -= row[i-pw.p.colors]
			}
		case 16:
			step := 2 * pw.p.colors
			for i := len(enc) - 2; i >= step; i -= 2 {
				v := uint16(row[i])<<8 | uint16(row[i+1])
				prev := uint16(row[i-step])<<8 | uint16(row[i-step+1])
				v -= prev
				enc[i], enc[i+1] = byte(v>>8), byte(v)
			}
		default:
			tiffBits(enc, pw.p, false)
		}
		out = append(out, enc...)
	} else {
		out = append(out, 2)
		for i := range row {
			out = append(out, row[i]-pw.prev[i])
		}
		copy(pw.prev, row)
	}
	pw.row = pw.row[:0]
	_, err := pw.w.Write(out)
	return err
}

func (pw *predictorWriter) Close() error {
	// A short final row is written as is; the reader accepts it.
	if len(pw.row) > 0 {
		if err := pw.flushRow(); err != nil {
			return err
		}
	}
	return pw.w.Close()
}
