package contentstream

import (
	"io"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
)

// Append serializes ops onto dst, one operator per line.
func Append(dst []byte, ops []Operation) []byte {
	for _, op := range ops {
		for _, o := range op.Operands {
			dst = raw.Append(dst, o, raw.FormatOptions{})
			dst = append(dst, ' ')
		}
		dst = append(dst, op.Keyword...)
		if op.Image != nil {
			op.Image.Dict.Each(func(k names.ID, v raw.Object) bool {
				dst = append(dst, ' ')
				dst = raw.Append(dst, raw.NameID(k), raw.FormatOptions{})
				dst = append(dst, ' ')
				dst = raw.Append(dst, v, raw.FormatOptions{})
				return true
			})
			dst = append(dst, " ID "...)
			dst = append(dst, op.Image.Data...)
			dst = append(dst, "\nEI"...)
		}
		dst = append(dst, '\n')
	}
	return dst
}

// Write serializes ops to w.
func Write(w io.Writer, ops []Operation) error {
	_, err := w.Write(Append(nil, ops))
	return err
}
