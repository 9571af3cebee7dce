package raw

import (
	"strconv"
	"strings"

	"github.com/wudi/pdfcore/names"
)

// FormatOptions controls object serialization.
type FormatOptions struct {
	// Pretty puts dictionary entries and long arrays on their own lines.
	Pretty bool
	// ASCII writes strings holding bytes outside printable ASCII as hex.
	ASCII bool
}

// Append serializes o onto dst. Streams contribute their dictionary only;
// the payload is the caller's business.
func Append(dst []byte, o Object, opt FormatOptions) []byte {
	return appendObject(dst, o, opt, 0)
}

// Format returns o serialized compactly.
func Format(o Object) string {
	return string(Append(nil, o, FormatOptions{}))
}

func appendObject(dst []byte, o Object, opt FormatOptions, depth int) []byte {
	switch v := o.(type) {
	case nil, NullObj:
		return append(dst, "null"...)
	case BoolObj:
		return strconv.AppendBool(dst, v.V)
	case NumberObj:
		if v.IsInt {
			return strconv.AppendInt(dst, v.I, 10)
		}
		return AppendReal(dst, float64(v.F))
	case NameObj:
		return AppendName(dst, v.Value())
	case StringObj:
		if v.Hex || (opt.ASCII && !printable(v.Bytes)) {
			return appendHex(dst, v.Bytes)
		}
		return AppendLiteral(dst, v.Bytes)
	case RefObj:
		dst = strconv.AppendInt(dst, int64(v.R.Num), 10)
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, int64(v.R.Gen), 10)
		return append(dst, " R"...)
	case *ArrayObj:
		dst = append(dst, '[')
		for i, it := range v.Items {
			if i > 0 {
				if opt.Pretty && i%16 == 0 {
					dst = appendIndent(dst, depth+1)
				} else {
					dst = append(dst, ' ')
				}
			}
			dst = appendObject(dst, it, opt, depth+1)
		}
		return append(dst, ']')
	case *DictObj:
		return appendDict(dst, v, opt, depth)
	case *StreamObj:
		return appendDict(dst, v.Dict, opt, depth)
	default:
		return append(dst, "null"...)
	}
}

func appendDict(dst []byte, d *DictObj, opt FormatOptions, depth int) []byte {
	dst = append(dst, "<<"...)
	d.Each(func(k names.ID, val Object) bool {
		if opt.Pretty {
			dst = appendIndent(dst, depth+1)
		}
		dst = AppendName(dst, names.Default().String(k))
		if needsSpace(val) {
			dst = append(dst, ' ')
		}
		dst = appendObject(dst, val, opt, depth+1)
		return true
	})
	if opt.Pretty && d.Len() > 0 {
		dst = appendIndent(dst, depth)
	}
	return append(dst, ">>"...)
}

// needsSpace reports whether val must be separated from a preceding name.
func needsSpace(val Object) bool {
	switch val.(type) {
	case NameObj, StringObj, *ArrayObj, *DictObj, *StreamObj:
		return false
	}
	return true
}

func appendIndent(dst []byte, depth int) []byte {
	dst = append(dst, '\n')
	for i := 0; i < depth; i++ {
		dst = append(dst, ' ', ' ')
	}
	return dst
}

// AppendReal writes f in plain decimal notation; PDF has no exponents.
func AppendReal(dst []byte, f float64) []byte {
	s := strconv.FormatFloat(f, 'f', -1, 32)
	if strings.ContainsRune(s, '.') {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	if s == "-0" || s == "" {
		s = "0"
	}
	return append(dst, s...)
}

// AppendName writes /value, escaping delimiters, whitespace and bytes
// outside the printable range as #xx.
func AppendName(dst []byte, value string) []byte {
	const hexDigits = "0123456789ABCDEF"
	dst = append(dst, '/')
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c < '!' || c > '~' || c == '#' || isDelimiter(c) {
			dst = append(dst, '#', hexDigits[c>>4], hexDigits[c&15])
			continue
		}
		dst = append(dst, c)
	}
	return dst
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// AppendLiteral writes b as a literal string with the minimal escapes.
func AppendLiteral(dst []byte, b []byte) []byte {
	dst = append(dst, '(')
	for _, c := range b {
		switch c {
		case '\\', '(', ')':
			dst = append(dst, '\\', c)
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		default:
			dst = append(dst, c)
		}
	}
	return append(dst, ')')
}

func appendHex(dst []byte, b []byte) []byte {
	const hexDigits = "0123456789ABCDEF"
	dst = append(dst, '<')
	for _, c := range b {
		dst = append(dst, hexDigits[c>>4], hexDigits[c&15])
	}
	return append(dst, '>')
}

func printable(b []byte) bool {
	for _, c := range b {
		if (c < 0x20 && c != '\n' && c != '\r' && c != '\t') || c >= 0x7f {
			return false
		}
	}
	return true
}
