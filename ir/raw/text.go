package raw

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"
)

var (
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
)

// pdfDocEncoding covers the code points of PDFDocEncoding that differ from
// Latin-1.
var pdfDocEncoding = map[byte]rune{
	0x18: '˘', 0x19: 'ˇ', 0x1A: 'ˆ', 0x1B: '˙', 0x1C: '˝', 0x1D: '˛', 0x1E: '˚', 0x1F: '˜',
	0x80: '•', 0x81: '†', 0x82: '‡', 0x83: '…', 0x84: '—', 0x85: '–', 0x86: 'ƒ', 0x87: '⁄',
	0x88: '‹', 0x89: '›', 0x8A: '−', 0x8B: '‰', 0x8C: '„', 0x8D: '“', 0x8E: '”', 0x8F: '‘',
	0x90: '’', 0x91: '‚', 0x92: '™', 0x93: 'ﬁ', 0x94: 'ﬂ', 0x95: 'Ł', 0x96: 'Œ', 0x97: 'Š',
	0x98: 'Ÿ', 0x99: 'Ž', 0x9A: 'ı', 0x9B: 'ł', 0x9C: 'œ', 0x9D: 'š', 0x9E: 'ž', 0xA0: '€',
}

// DecodeTextString converts a PDF text string (UTF-16BE with BOM, UTF-8 with
// BOM, or PDFDocEncoding) to NFC-normalized UTF-8.
func DecodeTextString(b []byte) string {
	switch {
	case bytes.HasPrefix(b, bomUTF16BE):
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		out, err := dec.Bytes(b)
		if err != nil {
			return string(b)
		}
		return norm.NFC.String(string(out))
	case bytes.HasPrefix(b, bomUTF8):
		return norm.NFC.String(string(b[3:]))
	}
	var sb bytes.Buffer
	for _, c := range b {
		if r, ok := pdfDocEncoding[c]; ok {
			sb.WriteRune(r)
			continue
		}
		sb.WriteRune(rune(c))
	}
	return norm.NFC.String(sb.String())
}

// EncodeTextString encodes s as PDFDocEncoding when every rune is Latin-1
// and as UTF-16BE with a byte order mark otherwise.
func EncodeTextString(s string) []byte {
	latin := true
	for _, r := range s {
		if r > 0xFF || r == utf8.RuneError {
			latin = false
			break
		}
	}
	if latin {
		out := make([]byte, 0, len(s))
		for _, r := range s {
			out = append(out, byte(r))
		}
		return out
	}
	enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
	out, err := enc.Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}
