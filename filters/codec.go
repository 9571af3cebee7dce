package filters

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	"github.com/wudi/pdfcore/ir/raw"
)

// ImageCodec decodes an image filter (DCT, JPX, JBIG2) to raw samples. The
// core hands over the encoded bytes and /DecodeParms untouched.
type ImageCodec interface {
	Decode(data []byte, params *raw.DictObj) ([]byte, error)
}

// CodecFunc adapts a function to ImageCodec.
type CodecFunc func(data []byte, params *raw.DictObj) ([]byte, error)

func (f CodecFunc) Decode(data []byte, params *raw.DictObj) ([]byte, error) { return f(data, params) }

type codecDecoder struct {
	name  string
	codec ImageCodec
}

func (c codecDecoder) Name() string { return c.name }

func (c codecDecoder) NewReader(r io.Reader, params *raw.DictObj) (io.Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	out, err := c.codec.Decode(data, params)
	if err != nil {
		return nil, fmt.Errorf("%s codec: %w", c.name, err)
	}
	return bytes.NewReader(out), nil
}

// JPEGCodec decodes DCTDecode data with image/jpeg into interleaved 8-bit
// Gray, RGB or CMYK samples.
type JPEGCodec struct{}

func (JPEGCodec) Decode(data []byte, _ *raw.DictObj) ([]byte, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := checkRaster("dct", cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return Samples(img), nil
}

// Samples flattens a decoded image into PDF sample order.
func Samples(img image.Image) []byte {
	b := img.Bounds()
	switch m := img.(type) {
	case *image.Gray:
		out := make([]byte, 0, b.Dx()*b.Dy())
		for y := b.Min.Y; y < b.Max.Y; y++ {
			i := m.PixOffset(b.Min.X, y)
			out = append(out, m.Pix[i:i+b.Dx()]...)
		}
		return out
	case *image.CMYK:
		out := make([]byte, 0, b.Dx()*b.Dy()*4)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			i := m.PixOffset(b.Min.X, y)
			out = append(out, m.Pix[i:i+4*b.Dx()]...)
		}
		return out
	}
	out := make([]byte, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out = append(out, byte(r>>8), byte(g>>8), byte(bl>>8))
		}
	}
	return out
}
