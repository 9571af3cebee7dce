package writer

import (
	"fmt"
	"strconv"

	"github.com/wudi/pdfcore/filters"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/security"
)

const header = "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n"

func appendHeader(dst []byte, version string) []byte {
	return fmt.Appendf(dst, header, version)
}

// encode applies the compress and ascii options to a stream payload and
// updates the filter entries of its dictionary.
func (p *plan) encode(st *raw.StreamObj, opt Options) ([]byte, error) {
	data := st.Data
	pipe := p.doc.Pipeline()
	if opt.Compress && raw.IsNull(get(st.Dict, names.Filter)) && len(data) > 0 {
		out, err := pipe.Encode(data, []filters.Stage{{Name: "FlateDecode"}})
		if err != nil {
			return nil, recovery.New(recovery.KindResource, "compress", err)
		}
		data = out
		st.Dict.Set(names.Filter, raw.NameID(names.FlateDecode))
	}
	if opt.ASCII && !isASCII(data) {
		out, err := pipe.Encode(data, []filters.Stage{{Name: "ASCIIHexDecode"}})
		if err != nil {
			return nil, recovery.New(recovery.KindResource, "ascii", err)
		}
		data = out
		prependFilter(st.Dict, names.ASCIIHexDecode)
	}
	return data, nil
}

// prependFilter makes f the first decode stage, keeping /DecodeParms
// aligned with /Filter.
func prependFilter(d *raw.DictObj, f names.ID) {
	name := raw.NameID(f)
	switch cur := get(d, names.Filter).(type) {
	case raw.NameObj:
		d.Set(names.Filter, raw.NewArray(name, cur))
		if parms := get(d, names.DecodeParms); !raw.IsNull(parms) {
			d.Set(names.DecodeParms, raw.NewArray(raw.Null, parms))
		}
	case *raw.ArrayObj:
		d.Set(names.Filter, raw.NewArray(append([]raw.Object{name}, cur.Items...)...))
		if parms, ok := raw.AsArray(get(d, names.DecodeParms)); ok {
			d.Set(names.DecodeParms, raw.NewArray(append([]raw.Object{raw.Null}, parms.Items...)...))
		}
	default:
		d.Set(names.Filter, name)
	}
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 || (c < 0x20 && c != '\n' && c != '\r' && c != '\t') {
			return false
		}
	}
	return true
}

// appendObject serializes o as an indirect object, encrypting strings and
// stream data when the plan carries a security handler.
func (p *plan) appendObject(dst []byte, o *object) ([]byte, error) {
	obj := o.obj
	var data []byte
	st, isStream := o.stream()
	if isStream {
		data = st.Data
	}
	if p.crypt != nil && !o.plain {
		var err error
		obj, err = encryptStrings(p.crypt, o.num, o.gen, raw.Copy(obj))
		if err != nil {
			return nil, err
		}
		if isStream {
			data, err = p.crypt.Encrypt(o.num, o.gen, data, o.class, "")
			if err != nil {
				return nil, recovery.New(recovery.KindSemantic, "encrypt", fmt.Errorf("object %d: %w", o.num, err))
			}
		}
	}
	return appendIndirect(dst, o.num, o.gen, obj, data, p.format), nil
}

func appendIndirect(dst []byte, num, gen int, obj raw.Object, data []byte, f raw.FormatOptions) []byte {
	dst = strconv.AppendInt(dst, int64(num), 10)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(gen), 10)
	dst = append(dst, " obj\n"...)
	if st, ok := obj.(*raw.StreamObj); ok {
		d := raw.CopyDict(st.Dict)
		d.Set(names.Length, raw.Int(int64(len(data))))
		dst = raw.Append(dst, d, f)
		dst = append(dst, "\nstream\n"...)
		dst = append(dst, data...)
		dst = append(dst, "\nendstream"...)
	} else {
		dst = raw.Append(dst, obj, f)
	}
	return append(dst, "\nendobj\n"...)
}

// encryptStrings replaces every string inside o with its encryption under
// the key of object (num, gen). o must be a private copy.
func encryptStrings(h *security.Handler, num, gen int, o raw.Object) (raw.Object, error) {
	var walk func(o raw.Object) (raw.Object, error)
	walk = func(o raw.Object) (raw.Object, error) {
		switch x := o.(type) {
		case raw.StringObj:
			b, err := h.Encrypt(num, gen, x.Bytes, security.DataClassString, "")
			if err != nil {
				return nil, recovery.New(recovery.KindSemantic, "encrypt", fmt.Errorf("object %d: %w", num, err))
			}
			return raw.StringObj{Bytes: b, Hex: true}, nil
		case *raw.ArrayObj:
			for i, it := range x.Items {
				v, err := walk(it)
				if err != nil {
					return nil, err
				}
				x.Items[i] = v
			}
		case *raw.DictObj:
			for _, k := range x.Keys() {
				v, _ := x.Get(k)
				nv, err := walk(v)
				if err != nil {
					return nil, err
				}
				x.Set(k, nv)
			}
		case *raw.StreamObj:
			if _, err := walk(x.Dict); err != nil {
				return nil, err
			}
		}
		return o, nil
	}
	return walk(o)
}
