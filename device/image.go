package device

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/wudi/pdfcore/coords"
	"github.com/wudi/pdfcore/ir/raw"
)

// Image is a decoded image XObject or inline image. Data holds the
// samples row by row, each row padded to a whole byte.
type Image struct {
	Ref         raw.ObjectRef
	Width       int
	Height      int
	BPC         int
	Space       *ColorSpace
	Decode      []float64
	ImageMask   bool
	Interpolate bool
	Data        []byte
	// SMask is the decoded soft mask, a one-component image.
	SMask *Image
}

// Bounds returns the image's unit square under ctm.
func (img *Image) Bounds(ctm coords.Matrix) coords.Rect {
	return coords.NewRect(0, 0, 1, 1).Transform(ctm)
}

func (img *Image) stride() int {
	n := 1
	if !img.ImageMask {
		n = img.Space.Components()
	}
	return (img.Width*n*img.BPC + 7) / 8
}

// Validate checks the sample buffer against the image geometry.
func (img *Image) Validate() error {
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("image has size %dx%d", img.Width, img.Height)
	}
	switch img.BPC {
	case 1, 2, 4, 8, 16:
	default:
		return fmt.Errorf("image has %d bits per component", img.BPC)
	}
	if need := img.stride() * img.Height; len(img.Data) < need {
		return fmt.Errorf("image data is %d bytes, want %d", len(img.Data), need)
	}
	return nil
}

// sample reads component c of pixel x in row as a value in [0,1] with
// /Decode applied.
func (img *Image) sample(row []byte, x, c, n int) float64 {
	bit := (x*n + c) * img.BPC
	var v, maxv uint32
	switch img.BPC {
	case 8:
		v, maxv = uint32(row[bit/8]), 255
	case 16:
		v, maxv = uint32(row[bit/8])<<8|uint32(row[bit/8+1]), 65535
	default:
		b := row[bit/8]
		shift := 8 - img.BPC - bit%8
		maxv = 1<<img.BPC - 1
		v = uint32(b>>shift) & maxv
	}
	f := float64(v) / float64(maxv)
	if len(img.Decode) >= 2*(c+1) {
		lo, hi := img.Decode[2*c], img.Decode[2*c+1]
		return lo + f*(hi-lo)
	}
	if img.Space != nil && img.Space.Family == Indexed {
		return float64(v)
	}
	return f
}

var errImageMask = errors.New("image is a stencil mask")

// NRGBA converts a color image to 8-bit RGBA, applying the soft mask when
// it has the same size.
func (img *Image) NRGBA() (*image.NRGBA, error) {
	if img.ImageMask {
		return nil, errImageMask
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	n := img.Space.Components()
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	stride := img.stride()
	comp := make([]float64, n)
	for y := 0; y < img.Height; y++ {
		row := img.Data[y*stride : (y+1)*stride]
		for x := 0; x < img.Width; x++ {
			for c := 0; c < n; c++ {
				comp[c] = img.sample(row, x, c, n)
			}
			r, g, b := img.Space.RGB(comp)
			out.SetNRGBA(x, y, color.NRGBA{R: uint8(r*255 + 0.5), G: uint8(g*255 + 0.5), B: uint8(b*255 + 0.5), A: 255})
		}
	}
	if m := img.SMask; m != nil && m.Width == img.Width && m.Height == img.Height {
		if alpha, err := m.Alpha(false); err == nil {
			for i := range alpha.Pix {
				out.Pix[i*4+3] = alpha.Pix[i]
			}
		}
	}
	return out, nil
}

// Alpha converts a stencil mask or one-component image to coverage. For
// stencil masks a sample of 0 paints unless /Decode is [1 0].
func (img *Image) Alpha(stencil bool) (*image.Alpha, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	out := image.NewAlpha(image.Rect(0, 0, img.Width, img.Height))
	stride := img.stride()
	n := 1
	if !img.ImageMask {
		n = img.Space.Components()
	}
	for y := 0; y < img.Height; y++ {
		row := img.Data[y*stride : (y+1)*stride]
		for x := 0; x < img.Width; x++ {
			v := img.sample(row, x, 0, n)
			if stencil {
				v = 1 - v
			}
			out.Pix[y*out.Stride+x] = uint8(clamp01(v)*255 + 0.5)
		}
	}
	return out, nil
}

// Shade is a shading dictionary ready for painting.
type Shade struct {
	Ref        raw.ObjectRef
	Type       int
	Space      *ColorSpace
	Dict       *raw.DictObj
	Matrix     coords.Matrix
	BBox       coords.Rect
	HasBBox    bool
	Background []float64
	// Coords holds /Coords for axial and radial shadings.
	Coords []float64
	Extend [2]bool
	// C0 and C1 are the end colors sampled from the shading function,
	// when it is an exponential interpolation.
	C0, C1 []float64
}

// Bounds returns the area painted under ctm, infinite without /BBox.
func (sh *Shade) Bounds(ctm coords.Matrix) coords.Rect {
	if !sh.HasBBox {
		return coords.InfiniteRect
	}
	return sh.BBox.Transform(sh.Matrix.Multiply(ctm))
}
