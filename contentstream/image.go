package contentstream

import (
	"github.com/wudi/pdfcore/device"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/recovery"
)

// inlineKeys maps the abbreviated keys of inline image dictionaries.
var inlineKeys = map[names.ID]names.ID{
	names.BPC: names.BitsPerComponent,
	names.CS:  names.ColorSpace,
	names.D:   names.Decode,
	names.DP:  names.DecodeParms,
	names.F:   names.Filter,
	names.H:   names.Height,
	names.W:   names.Width,
	names.IM:  names.ImageMask,
	names.I:   names.Interpolate,
	names.L:   names.Length,
}

// maxImagePixels bounds the sample area of one image.
const maxImagePixels = 1 << 28

// expandInline returns a stream dictionary with the full key names.
func expandInline(d *raw.DictObj) *raw.DictObj {
	out := raw.NewDict()
	d.Each(func(k names.ID, v raw.Object) bool {
		if full, ok := inlineKeys[k]; ok {
			k = full
		}
		out.Set(k, v)
		return true
	})
	return out
}

// loadImage decodes an image XObject or an expanded inline image.
func (p *Processor) loadImage(st *raw.StreamObj) (*device.Image, error) {
	if st.Ref.Num > 0 {
		v, err := p.doc.Memo(st.Ref, func() (any, int64, error) {
			img, err := p.decodeImage(st, false)
			if err != nil {
				return nil, 0, err
			}
			return img, int64(len(img.Data) + 128), nil
		})
		if err != nil {
			return nil, err
		}
		if img, ok := v.(*device.Image); ok {
			return img, nil
		}
	}
	return p.decodeImage(st, false)
}

func (p *Processor) decodeImage(st *raw.StreamObj, smask bool) (*device.Image, error) {
	d := st.Dict
	num := func(key names.ID) int64 {
		v, _ := raw.AsInt(p.doc.Resolve(get(d, key)))
		return v
	}
	img := &device.Image{
		Ref:    st.Ref,
		Width:  int(num(names.Width)),
		Height: int(num(names.Height)),
		BPC:    int(num(names.BitsPerComponent)),
	}
	img.ImageMask, _ = raw.AsBool(p.doc.Resolve(get(d, names.ImageMask)))
	img.Interpolate, _ = raw.AsBool(p.doc.Resolve(get(d, names.Interpolate)))
	if arr, ok := raw.AsArray(p.doc.Resolve(get(d, names.Decode))); ok {
		img.Decode, _ = raw.Floats(arr)
	}
	if img.Width <= 0 || img.Height <= 0 || int64(img.Width)*int64(img.Height) > maxImagePixels {
		return nil, recovery.Errorf(recovery.KindLimit, "image", "image size %dx%d", img.Width, img.Height)
	}
	data, err := p.doc.DecodeStream(p.ctx, st)
	if err != nil {
		return nil, err
	}
	img.Data = data
	switch {
	case img.ImageMask:
		img.BPC = 1
	case smask:
		img.Space = device.DeviceGray
	default:
		csObj, ok := d.Get(names.ColorSpace)
		if !ok {
			img.Space = guessSpace(img, len(data))
			break
		}
		cs, err := p.namedSpace(csObj)
		if err != nil {
			return nil, err
		}
		img.Space = cs
	}
	if img.BPC == 0 {
		// Codec output without /BitsPerComponent (JPX) is 8-bit.
		img.BPC = 8
	}
	if err := img.Validate(); err != nil {
		return nil, recovery.New(recovery.KindSemantic, "image", err)
	}
	if !smask && !img.ImageMask {
		if ms, ok := raw.AsStream(p.doc.Resolve(get(d, names.SMask))); ok {
			if m, err := p.decodeImage(ms, true); err == nil {
				img.SMask = m
			} else {
				p.warn("image soft mask: %v", err)
			}
		}
	}
	return img, nil
}

// guessSpace picks a device space from the sample count.
func guessSpace(img *device.Image, n int) *device.ColorSpace {
	bpc := max(img.BPC, 8)
	switch n * 8 / bpc / max(img.Width*img.Height, 1) {
	case 4:
		return device.DeviceCMYK
	case 3:
		return device.DeviceRGB
	}
	return device.DeviceGray
}
