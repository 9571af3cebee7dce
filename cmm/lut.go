package cmm

import (
	"encoding/binary"
	"fmt"
)

const maxLUTInputs = 8

// lut is an mft1 or mft2 pipeline: optional matrix, input curves, a
// multidimensional table and output curves. All values are on [0,1].
type lut struct {
	in, out int
	grid    int
	wide    bool // mft2
	matrix  [9]float64
	inputs  [][]float64
	clut    []float64
	outputs [][]float64
}

func readLUT(b []byte) (*lut, error) {
	if len(b) < 48 {
		return nil, fmt.Errorf("cmm: lut of %d bytes: %w", len(b), ErrShortProfile)
	}
	l := &lut{in: int(b[8]), out: int(b[9]), grid: int(b[10])}
	switch string(b[:4]) {
	case "mft1":
	case "mft2":
		l.wide = true
	default:
		return nil, fmt.Errorf("cmm: unsupported lut type %q", b[:4])
	}
	if l.in < 1 || l.in > maxLUTInputs || l.out < 1 || l.out > 15 || l.grid < 2 {
		return nil, fmt.Errorf("cmm: lut %dx%d with grid %d", l.in, l.out, l.grid)
	}
	for i := range l.matrix {
		l.matrix[i] = s15Fixed16(binary.BigEndian.Uint32(b[12+4*i:]))
	}
	inEntries, outEntries, off, width := 256, 256, 48, 1
	if l.wide {
		if len(b) < 52 {
			return nil, ErrShortProfile
		}
		inEntries = int(binary.BigEndian.Uint16(b[48:]))
		outEntries = int(binary.BigEndian.Uint16(b[50:]))
		off, width = 52, 2
		if inEntries < 2 || outEntries < 2 {
			return nil, fmt.Errorf("cmm: lut tables of %d and %d entries", inEntries, outEntries)
		}
	}
	read := func(n int) ([]float64, error) {
		if n > (len(b)-off)/width {
			return nil, ErrShortProfile
		}
		v := make([]float64, n)
		for i := range v {
			if l.wide {
				v[i] = float64(binary.BigEndian.Uint16(b[off:])) / 65535
			} else {
				v[i] = float64(b[off]) / 255
			}
			off += width
		}
		return v, nil
	}
	var err error
	l.inputs = make([][]float64, l.in)
	for c := range l.inputs {
		if l.inputs[c], err = read(inEntries); err != nil {
			return nil, fmt.Errorf("cmm: lut input tables: %w", err)
		}
	}
	points := l.out
	for i := 0; i < l.in; i++ {
		points *= l.grid
		if points > len(b) {
			return nil, fmt.Errorf("cmm: lut table: %w", ErrShortProfile)
		}
	}
	if l.clut, err = read(points); err != nil {
		return nil, fmt.Errorf("cmm: lut table: %w", err)
	}
	l.outputs = make([][]float64, l.out)
	for c := range l.outputs {
		if l.outputs[c], err = read(outEntries); err != nil {
			return nil, fmt.Errorf("cmm: lut output tables: %w", err)
		}
	}
	return l, nil
}

// eval runs the pipeline. The matrix applies only to XYZ input, which
// device to PCS tables never have, so it is skipped here.
func (l *lut) eval(in []float64) []float64 {
	x := make([]float64, l.in)
	for c := range x {
		v := 0.0
		if c < len(in) {
			v = in[c]
		}
		x[c] = interp1D(v, l.inputs[c])
	}
	y := interpCLUT(x, l.clut, l.out, l.grid)
	for c := range y {
		y[c] = interp1D(y[c], l.outputs[c])
	}
	return y
}

// interpCLUT interpolates multilinearly between the 2^n grid corners
// around in. The first input varies slowest in the table.
func interpCLUT(in, table []float64, outCh, grid int) []float64 {
	n := len(in)
	base := make([]int, n)
	frac := make([]float64, n)
	for i, v := range in {
		v = min(max(v, 0), 1) * float64(grid-1)
		b := min(int(v), grid-2)
		base[i], frac[i] = b, v-float64(b)
	}
	out := make([]float64, outCh)
	for corner := 0; corner < 1<<n; corner++ {
		w, idx := 1.0, 0
		for i := 0; i < n; i++ {
			bit := corner >> (n - 1 - i) & 1
			if bit == 1 {
				w *= frac[i]
			} else {
				w *= 1 - frac[i]
			}
			idx = idx*grid + base[i] + bit
		}
		if w == 0 {
			continue
		}
		for c := range out {
			out[c] += w * table[idx*outCh+c]
		}
	}
	return out
}
