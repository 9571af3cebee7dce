package cmm

import (
	"encoding/binary"
	"errors"
	"math"
	"sort"
	"testing"
)

type tag struct {
	sig  string
	data []byte
}

func buildProfile(t *testing.T, space, pcs string, tags ...tag) []byte {
	t.Helper()
	sort.Slice(tags, func(i, j int) bool { return tags[i].sig < tags[j].sig })
	b := make([]byte, headerSize+4+12*len(tags))
	copy(b[12:], "scnr")
	copy(b[16:], space)
	copy(b[20:], pcs)
	copy(b[36:], "acsp")
	binary.BigEndian.PutUint32(b[8:], 0x02100000)
	binary.BigEndian.PutUint32(b[headerSize:], uint32(len(tags)))
	for i, tg := range tags {
		for len(b)%4 != 0 {
			b = append(b, 0)
		}
		entry := b[headerSize+4+12*i:]
		copy(entry, tg.sig)
		binary.BigEndian.PutUint32(entry[4:], uint32(len(b)))
		binary.BigEndian.PutUint32(entry[8:], uint32(len(tg.data)))
		b = append(b, tg.data...)
	}
	binary.BigEndian.PutUint32(b, uint32(len(b)))
	return b
}

func fixed(v float64) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(int32(math.Round(v*65536))))
}

func xyzTag(x, y, z float64) []byte {
	b := append([]byte("XYZ \x00\x00\x00\x00"), fixed(x)...)
	b = append(b, fixed(y)...)
	return append(b, fixed(z)...)
}

func gammaTag(g float64) []byte {
	b := []byte("curv\x00\x00\x00\x00\x00\x00\x00\x01")
	return binary.BigEndian.AppendUint16(b, uint16(math.Round(g*256)))
}

func near(t *testing.T, what string, got, want []float64) {
	t.Helper()
	for i := range want {
		if math.Abs(got[i]-want[i]) > 0.02 {
			t.Fatalf("%s = %.4f, want %.4f", what, got, want)
		}
	}
}

func rgbOf(tr *Transform, v ...float64) []float64 {
	r, g, b := tr.RGB(v)
	return []float64{r, g, b}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse(make([]byte, 40)); !errors.Is(err, ErrShortProfile) {
		t.Fatalf("short profile: %v", err)
	}
	if _, err := Parse(make([]byte, 200)); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("unsigned profile: %v", err)
	}
	b := buildProfile(t, "GRAY", "XYZ ", tag{"kTRC", gammaTag(1)})
	binary.BigEndian.PutUint32(b[headerSize+4+8:], 1<<20)
	if _, err := Parse(b); !errors.Is(err, ErrShortProfile) {
		t.Fatalf("oversized tag: %v", err)
	}
}

func TestGrayProfile(t *testing.T) {
	p, err := Parse(buildProfile(t, "GRAY", "XYZ ", tag{"kTRC", gammaTag(1)}))
	if err != nil {
		t.Fatal(err)
	}
	if p.Components() != 1 || p.Class != "scnr" {
		t.Fatalf("profile = %+v", p)
	}
	tr, err := p.Transform()
	if err != nil {
		t.Fatal(err)
	}
	near(t, "white", rgbOf(tr, 1), []float64{1, 1, 1})
	near(t, "black", rgbOf(tr, 0), []float64{0, 0, 0})
	mid := rgbOf(tr, 0.5)
	near(t, "mid", mid, []float64{0.735, 0.735, 0.735})
}

func TestRGBMatrixProfile(t *testing.T) {
	p, err := Parse(buildProfile(t, "RGB ", "XYZ ",
		tag{"rXYZ", xyzTag(0.4361, 0.2225, 0.0139)},
		tag{"gXYZ", xyzTag(0.3851, 0.7169, 0.0971)},
		tag{"bXYZ", xyzTag(0.1431, 0.0606, 0.7141)},
		tag{"rTRC", gammaTag(2.2)},
		tag{"gTRC", gammaTag(2.2)},
		tag{"bTRC", gammaTag(2.2)},
	))
	if err != nil {
		t.Fatal(err)
	}
	tr, err := p.Transform()
	if err != nil {
		t.Fatal(err)
	}
	near(t, "red", rgbOf(tr, 1, 0, 0), []float64{1, 0, 0})
	near(t, "green", rgbOf(tr, 0, 1, 0), []float64{0, 1, 0})
	near(t, "white", rgbOf(tr, 1, 1, 1), []float64{1, 1, 1})
}

func TestMissingColorant(t *testing.T) {
	p, err := Parse(buildProfile(t, "RGB ", "XYZ ", tag{"rTRC", gammaTag(1)}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Transform(); !errors.Is(err, ErrNoTransform) {
		t.Fatalf("transform: %v", err)
	}
}

// mft2 from one gray input to legacy 16-bit Lab.
func grayLabLUT() []byte {
	b := []byte("mft2\x00\x00\x00\x00")
	b = append(b, 1, 3, 2, 0)
	for i := 0; i < 9; i++ {
		v := 0.0
		if i%4 == 0 {
			v = 1
		}
		b = append(b, fixed(v)...)
	}
	b = binary.BigEndian.AppendUint16(b, 2)
	b = binary.BigEndian.AppendUint16(b, 2)
	b = binary.BigEndian.AppendUint16(b, 0)
	b = binary.BigEndian.AppendUint16(b, 0xffff)
	for _, v := range []uint16{0, 0x8000, 0x8000, 0xff00, 0x8000, 0x8000} {
		b = binary.BigEndian.AppendUint16(b, v)
	}
	for c := 0; c < 3; c++ {
		b = binary.BigEndian.AppendUint16(b, 0)
		b = binary.BigEndian.AppendUint16(b, 0xffff)
	}
	return b
}

func TestLUTProfile(t *testing.T) {
	p, err := Parse(buildProfile(t, "GRAY", "Lab ", tag{"A2B0", grayLabLUT()}))
	if err != nil {
		t.Fatal(err)
	}
	tr, err := p.Transform()
	if err != nil {
		t.Fatal(err)
	}
	near(t, "white", rgbOf(tr, 1), []float64{1, 1, 1})
	near(t, "black", rgbOf(tr, 0), []float64{0, 0, 0})
}

func TestTruncatedLUT(t *testing.T) {
	b := grayLabLUT()
	if _, err := readLUT(b[:len(b)-4]); !errors.Is(err, ErrShortProfile) {
		t.Fatalf("truncated lut: %v", err)
	}
}

func TestInterpCLUT(t *testing.T) {
	// out = 10x + 20y + 40z on a 2x2x2 grid.
	table := make([]float64, 8)
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			for z := 0; z < 2; z++ {
				table[x*4+y*2+z] = float64(x*10 + y*20 + z*40)
			}
		}
	}
	tests := []struct {
		in   []float64
		want float64
	}{
		{[]float64{0, 0, 0}, 0},
		{[]float64{1, 0, 0}, 10},
		{[]float64{0, 0, 1}, 40},
		{[]float64{1, 1, 1}, 70},
		{[]float64{0.5, 0.5, 0}, 15},
		{[]float64{0.5, 0.5, 0.5}, 35},
		{[]float64{2, -1, 0}, 10},
	}
	for _, tt := range tests {
		got := interpCLUT(tt.in, table, 1, 2)
		if math.Abs(got[0]-tt.want) > 1e-9 {
			t.Errorf("interpCLUT(%v) = %v, want %v", tt.in, got[0], tt.want)
		}
	}
	// Four inputs use the same corner walk.
	four := make([]float64, 16)
	for i := range four {
		four[i] = float64(i >> 3 & 1)
	}
	if got := interpCLUT([]float64{0.25, 0, 0, 0}, four, 1, 2); math.Abs(got[0]-0.25) > 1e-9 {
		t.Errorf("4D interpolation = %v, want 0.25", got[0])
	}
}

func TestParametricCurve(t *testing.T) {
	// sRGB style type 3 curve.
	c := paraCurve{kind: 3, p: [7]float64{2.4, 1 / 1.055, 0.055 / 1.055, 1 / 12.92, 0.04045}}
	if got := c.eval(1); math.Abs(got-1) > 1e-6 {
		t.Fatalf("eval(1) = %v", got)
	}
	if got := c.eval(0.02); math.Abs(got-0.02/12.92) > 1e-9 {
		t.Fatalf("eval(0.02) = %v", got)
	}
	b := []byte("para\x00\x00\x00\x00\x00\x00\x00\x00")
	b = append(b, fixed(2)...)
	cv, err := readCurve(b)
	if err != nil {
		t.Fatal(err)
	}
	if got := cv.eval(0.5); math.Abs(got-0.25) > 1e-6 {
		t.Fatalf("gamma 2 at 0.5 = %v", got)
	}
}
