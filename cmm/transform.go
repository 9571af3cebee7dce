package cmm

import (
	"fmt"
	"math"
)

// D50 is the profile connection space white point.
var D50 = [3]float64{0.9642, 1.0, 0.8249}

// Transform converts colors of a profile's device space to sRGB.
type Transform struct {
	n      int
	lab    bool
	lut    *lut
	curves []curve
	matrix [9]float64 // columns are the red, green and blue colorants
}

// Transform builds the device to sRGB conversion. A2B0 tables are
// preferred; RGB and gray profiles fall back to their TRC tags.
func (p *Profile) Transform() (*Transform, error) {
	n := p.Components()
	if n == 0 {
		return nil, fmt.Errorf("cmm: color space %q: %w", p.ColorSpace, ErrNoTransform)
	}
	t := &Transform{n: n, lab: p.PCS == "Lab "}
	if b, ok := p.tags["A2B0"]; ok {
		l, err := readLUT(b)
		if err == nil && l.in == n && l.out == 3 {
			t.lut = l
			return t, nil
		}
	}
	switch p.ColorSpace {
	case "GRAY":
		b, ok := p.tags["kTRC"]
		if !ok {
			break
		}
		c, err := readCurve(b)
		if err != nil {
			return nil, err
		}
		t.curves = []curve{c}
		t.lab = false
		return t, nil
	case "RGB ":
		var cols [3][3]float64
		for i, sig := range []string{"rXYZ", "gXYZ", "bXYZ"} {
			v, ok := p.xyz(sig)
			if !ok {
				return nil, fmt.Errorf("cmm: missing %s: %w", sig, ErrNoTransform)
			}
			cols[i] = v
		}
		for _, sig := range []string{"rTRC", "gTRC", "bTRC"} {
			b, ok := p.tags[sig]
			if !ok {
				return nil, fmt.Errorf("cmm: missing %s: %w", sig, ErrNoTransform)
			}
			c, err := readCurve(b)
			if err != nil {
				return nil, err
			}
			t.curves = append(t.curves, c)
		}
		for row := 0; row < 3; row++ {
			for col := 0; col < 3; col++ {
				t.matrix[row*3+col] = cols[col][row]
			}
		}
		t.lab = false
		return t, nil
	}
	return nil, fmt.Errorf("cmm: %q profile: %w", p.ColorSpace, ErrNoTransform)
}

// Components returns the number of device components the transform takes.
func (t *Transform) Components() int { return t.n }

// RGB converts device components in [0,1] to sRGB in [0,1].
func (t *Transform) RGB(v []float64) (r, g, b float64) {
	return SRGB(t.XYZ(v))
}

// XYZ converts device components to D50 XYZ.
func (t *Transform) XYZ(v []float64) [3]float64 {
	at := func(i int) float64 {
		if i < len(v) {
			return min(max(v[i], 0), 1)
		}
		return 0
	}
	switch {
	case t.lut != nil:
		in := make([]float64, t.n)
		for i := range in {
			in[i] = at(i)
		}
		pcs := t.lut.eval(in)
		if t.lab {
			scale := 1.0
			if t.lut.wide {
				scale = 65535.0 / 65280
			}
			return LabToXYZ(pcs[0]*100*scale, pcs[1]*255*scale-128, pcs[2]*255*scale-128)
		}
		const xyzScale = 65535.0 / 32768
		return [3]float64{pcs[0] * xyzScale, pcs[1] * xyzScale, pcs[2] * xyzScale}
	case len(t.curves) == 1:
		y := t.curves[0].eval(at(0))
		return [3]float64{D50[0] * y, y, D50[2] * y}
	}
	lin := [3]float64{t.curves[0].eval(at(0)), t.curves[1].eval(at(1)), t.curves[2].eval(at(2))}
	m := t.matrix
	return [3]float64{
		m[0]*lin[0] + m[1]*lin[1] + m[2]*lin[2],
		m[3]*lin[0] + m[4]*lin[1] + m[5]*lin[2],
		m[6]*lin[0] + m[7]*lin[1] + m[8]*lin[2],
	}
}

// LabToXYZ converts CIE L*a*b* relative to D50 to XYZ.
func LabToXYZ(l, a, b float64) [3]float64 {
	fy := (l + 16) / 116
	fx := fy + a/500
	fz := fy - b/200
	inv := func(t float64) float64 {
		if t > 6.0/29 {
			return t * t * t
		}
		return 3 * (6.0 / 29) * (6.0 / 29) * (t - 4.0/29)
	}
	return [3]float64{D50[0] * inv(fx), inv(fy), D50[2] * inv(fz)}
}

// SRGB converts D50 XYZ to gamma-encoded sRGB, adapting the white point
// with the Bradford transform and clipping out of gamut values.
func SRGB(xyz [3]float64) (r, g, b float64) {
	x, y, z := xyz[0], xyz[1], xyz[2]
	r = 3.1338561*x - 1.6168667*y - 0.4906146*z
	g = -0.9787684*x + 1.9161415*y + 0.0334540*z
	b = 0.0719453*x - 0.2289914*y + 1.4052427*z
	return encode(r), encode(g), encode(b)
}

func encode(c float64) float64 {
	c = min(max(c, 0), 1)
	if c <= 0.0031308 {
		return 12.92 * c
	}
	return 1.055*math.Pow(c, 1/2.4) - 0.055
}
