package cmm

import (
	"encoding/binary"
	"fmt"
	"math"
)

// curve is a one-dimensional transfer function on [0,1].
type curve interface {
	eval(x float64) float64
}

type gammaCurve float64

func (g gammaCurve) eval(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Pow(x, float64(g))
}

type tableCurve []float64

func (t tableCurve) eval(x float64) float64 { return interp1D(x, t) }

// paraCurve is a parametricCurveType function of kind 0 to 4.
type paraCurve struct {
	kind int
	p    [7]float64
}

func (c paraCurve) eval(x float64) float64 {
	g, a, b, cc, d, e, f := c.p[0], c.p[1], c.p[2], c.p[3], c.p[4], c.p[5], c.p[6]
	pow := func(v float64) float64 {
		if v <= 0 {
			return 0
		}
		return math.Pow(v, g)
	}
	switch c.kind {
	case 0:
		return pow(x)
	case 1:
		if a != 0 && x >= -b/a {
			return pow(a*x + b)
		}
		return 0
	case 2:
		if a != 0 && x >= -b/a {
			return pow(a*x+b) + cc
		}
		return cc
	case 3:
		if x >= d {
			return pow(a*x + b)
		}
		return cc * x
	case 4:
		if x >= d {
			return pow(a*x+b) + e
		}
		return cc*x + f
	}
	return x
}

var paraCount = [...]int{1, 3, 4, 5, 7}

// readCurve decodes a curv or para tag.
func readCurve(b []byte) (curve, error) {
	if len(b) < 12 {
		return nil, fmt.Errorf("cmm: curve of %d bytes: %w", len(b), ErrShortProfile)
	}
	switch string(b[:4]) {
	case "curv":
		n := int(binary.BigEndian.Uint32(b[8:12]))
		switch {
		case n == 0:
			return gammaCurve(1), nil
		case n == 1:
			if len(b) < 14 {
				return nil, ErrShortProfile
			}
			return gammaCurve(float64(binary.BigEndian.Uint16(b[12:])) / 256), nil
		case n > (len(b)-12)/2:
			return nil, fmt.Errorf("cmm: curve of %d entries: %w", n, ErrShortProfile)
		}
		t := make(tableCurve, n)
		for i := range t {
			t[i] = float64(binary.BigEndian.Uint16(b[12+2*i:])) / 65535
		}
		return t, nil
	case "para":
		kind := int(binary.BigEndian.Uint16(b[8:10]))
		if kind >= len(paraCount) {
			return nil, fmt.Errorf("cmm: parametric curve kind %d", kind)
		}
		n := paraCount[kind]
		if len(b) < 12+4*n {
			return nil, ErrShortProfile
		}
		c := paraCurve{kind: kind}
		for i := 0; i < n; i++ {
			c.p[i] = s15Fixed16(binary.BigEndian.Uint32(b[12+4*i:]))
		}
		return c, nil
	}
	return nil, fmt.Errorf("cmm: unsupported curve type %q", b[:4])
}

func interp1D(v float64, table []float64) float64 {
	switch {
	case len(table) == 0:
		return v
	case len(table) == 1:
		return table[0]
	case v <= 0:
		return table[0]
	case v >= 1:
		return table[len(table)-1]
	}
	f := v * float64(len(table)-1)
	i := int(f)
	frac := f - float64(i)
	return table[i]*(1-frac) + table[i+1]*frac
}
