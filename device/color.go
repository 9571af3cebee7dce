package device

import (
	"image/color"
	"math"

	"github.com/wudi/pdfcore/cmm"
)

// Family is the kind of a color space.
type Family int

const (
	Gray Family = iota
	RGB
	CMYK
	Lab
	ICC
	Indexed
	Separation
	DeviceN
	PatternSpace
)

var familyNames = [...]string{"DeviceGray", "DeviceRGB", "DeviceCMYK", "Lab", "ICCBased", "Indexed", "Separation", "DeviceN", "Pattern"}

func (f Family) String() string {
	if int(f) < len(familyNames) {
		return familyNames[f]
	}
	return "unknown"
}

// ColorSpace is a resolved color space. Indexed spaces carry their base
// and lookup table; ICC spaces their alternate; Separation and DeviceN
// spaces their alternate with the tint transform left unevaluated.
type ColorSpace struct {
	Family Family
	N      int
	Name   string
	Base   *ColorSpace
	HiVal  int
	Lookup []byte

	// Profile converts ICC spaces when the embedded profile was usable.
	Profile Converter
}

// Converter maps device components to sRGB.
type Converter interface {
	RGB(v []float64) (r, g, b float64)
}

var (
	DeviceGray = &ColorSpace{Family: Gray, N: 1, Name: "DeviceGray"}
	DeviceRGB  = &ColorSpace{Family: RGB, N: 3, Name: "DeviceRGB"}
	DeviceCMYK = &ColorSpace{Family: CMYK, N: 4, Name: "DeviceCMYK"}
)

// Components returns the number of color components, 1 when unknown.
func (cs *ColorSpace) Components() int {
	if cs == nil || cs.N <= 0 {
		return 1
	}
	return cs.N
}

// Initial returns the initial color of the space: black for device
// spaces, index 0 for Indexed and full tint for Separation and DeviceN.
func (cs *ColorSpace) Initial() []float64 {
	n := cs.Components()
	v := make([]float64, n)
	switch {
	case cs == nil:
	case cs.Family == CMYK:
		v[3] = 1
	case cs.Family == Separation || cs.Family == DeviceN:
		for i := range v {
			v[i] = 1
		}
	case cs.Family == Lab:
		v = v[:3]
	}
	return v
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// RGB converts v to RGB components in [0,1].
func (cs *ColorSpace) RGB(v []float64) (r, g, b float64) {
	at := func(i int) float64 {
		if i < len(v) {
			return clamp01(v[i])
		}
		return 0
	}
	if cs == nil {
		cs = DeviceGray
	}
	switch cs.Family {
	case Gray:
		x := at(0)
		return x, x, x
	case RGB:
		return at(0), at(1), at(2)
	case CMYK:
		k := at(3)
		return (1 - at(0)) * (1 - k), (1 - at(1)) * (1 - k), (1 - at(2)) * (1 - k)
	case Lab:
		return labToRGB(v)
	case ICC:
		if cs.Profile != nil {
			return cs.Profile.RGB(v)
		}
		if cs.Base != nil {
			return cs.Base.RGB(v)
		}
		switch cs.N {
		case 4:
			return DeviceCMYK.RGB(v)
		case 3:
			return DeviceRGB.RGB(v)
		}
		return DeviceGray.RGB(v)
	case Indexed:
		if cs.Base == nil || len(v) == 0 {
			return 0, 0, 0
		}
		idx := int(math.Round(v[0]))
		idx = max(0, min(idx, cs.HiVal))
		n := cs.Base.Components()
		comp := make([]float64, n)
		for i := range comp {
			if off := idx*n + i; off < len(cs.Lookup) {
				comp[i] = float64(cs.Lookup[off]) / 255
			}
		}
		return cs.Base.RGB(comp)
	case Separation, DeviceN:
		// Without the tint transform a full tint reads as black.
		t := 0.0
		for i := range v {
			t = math.Max(t, at(i))
		}
		return 1 - t, 1 - t, 1 - t
	}
	return 0, 0, 0
}

// labToRGB converts a D50 L*a*b* triple to sRGB.
func labToRGB(v []float64) (float64, float64, float64) {
	if len(v) < 3 {
		return 0, 0, 0
	}
	return cmm.SRGB(cmm.LabToXYZ(v[0], v[1], v[2]))
}

// NRGBA returns the paint as a non-premultiplied color.
func (p Paint) NRGBA() color.NRGBA {
	r, g, b := p.Space.RGB(p.Color)
	return color.NRGBA{
		R: uint8(math.Round(r * 255)),
		G: uint8(math.Round(g * 255)),
		B: uint8(math.Round(b * 255)),
		A: uint8(math.Round(clamp01(p.Alpha) * 255)),
	}
}
