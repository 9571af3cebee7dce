package fonts

import (
	"errors"

	"golang.org/x/text/encoding/unicode"

	"github.com/wudi/pdfcore/scanner"
)

type codeRange struct {
	lo, hi uint32
	n      int
}

type bfRange struct {
	lo, hi uint32
	n      int
	dst    []byte
	dsts   [][]byte
}

type cidRange struct {
	lo, hi uint32
	n      int
	cid    uint32
}

// CMap is a parsed character map: codespace ranges plus either code to
// Unicode mappings (ToUnicode) or code to CID mappings (encoding CMaps).
type CMap struct {
	Name  string
	space []codeRange
	chars map[uint32]string
	bf    []bfRange
	cids  []cidRange
}

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

func decodeUTF16(b []byte) string {
	if len(b) == 1 {
		return string(rune(b[0]))
	}
	s, err := utf16be.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return string(s)
}

func codeOf(b []byte) uint32 {
	var c uint32
	for _, x := range b {
		c = c<<8 | uint32(x)
	}
	return c
}

var errCMap = errors.New("malformed cmap")

// ParseCMap reads the PostScript-like CMap syntax. Unknown operators are
// ignored; malformed sections are skipped.
func ParseCMap(data []byte) (*CMap, error) {
	m := &CMap{chars: map[uint32]string{}}
	s := scanner.New(data, scanner.Config{})
	var stack []scanner.Token
	var arr [][]byte
	inArray := false
	for {
		before := s.Position()
		tok, err := s.Next()
		if err != nil {
			if s.Position() == before {
				s.Seek(before + 1)
			}
			continue
		}
		switch tok.Kind {
		case scanner.EOF:
			if len(m.space) == 0 && len(m.chars) == 0 && len(m.bf) == 0 && len(m.cids) == 0 {
				return nil, errCMap
			}
			return m, nil
		case scanner.OpenArray:
			inArray, arr = true, nil
			continue
		case scanner.CloseArray:
			inArray = false
			stack = append(stack, scanner.Token{Kind: scanner.CloseArray})
			continue
		case scanner.String, scanner.Int, scanner.Name:
			tok.Bytes = append([]byte(nil), tok.Bytes...)
			if inArray {
				if tok.Kind == scanner.String {
					arr = append(arr, tok.Bytes)
				}
				continue
			}
			if tok.Kind == scanner.Name && len(stack) > 0 && stack[len(stack)-1].Kind == scanner.Name &&
				string(stack[len(stack)-1].Bytes) == "CMapName" {
				m.Name = string(tok.Bytes)
			}
			stack = append(stack, tok)
			continue
		case scanner.Keyword:
		default:
			continue
		}
		switch string(tok.Bytes) {
		case "endcodespacerange":
			for i := 0; i+1 < len(stack); i += 2 {
				lo, hi := stack[i], stack[i+1]
				if lo.Kind != scanner.String || hi.Kind != scanner.String || len(lo.Bytes) != len(hi.Bytes) || len(lo.Bytes) == 0 || len(lo.Bytes) > 4 {
					continue
				}
				m.space = append(m.space, codeRange{lo: codeOf(lo.Bytes), hi: codeOf(hi.Bytes), n: len(lo.Bytes)})
			}
		case "endbfchar":
			for i := 0; i+1 < len(stack); i += 2 {
				src, dst := stack[i], stack[i+1]
				if src.Kind != scanner.String {
					continue
				}
				switch dst.Kind {
				case scanner.String:
					m.chars[codeOf(src.Bytes)] = decodeUTF16(dst.Bytes)
				case scanner.Name:
					if r, ok := GlyphRune(string(dst.Bytes)); ok {
						m.chars[codeOf(src.Bytes)] = string(r)
					}
				}
			}
		case "endbfrange":
			for i := 0; i+2 < len(stack); i += 3 {
				lo, hi, dst := stack[i], stack[i+1], stack[i+2]
				if lo.Kind != scanner.String || hi.Kind != scanner.String {
					continue
				}
				r := bfRange{lo: codeOf(lo.Bytes), hi: codeOf(hi.Bytes), n: len(lo.Bytes)}
				switch dst.Kind {
				case scanner.String:
					r.dst = dst.Bytes
				case scanner.CloseArray:
					r.dsts = arr
				default:
					continue
				}
				if r.hi >= r.lo {
					m.bf = append(m.bf, r)
				}
			}
		case "endcidchar":
			for i := 0; i+1 < len(stack); i += 2 {
				src, cid := stack[i], stack[i+1]
				if src.Kind == scanner.String && cid.Kind == scanner.Int {
					c := codeOf(src.Bytes)
					m.cids = append(m.cids, cidRange{lo: c, hi: c, n: len(src.Bytes), cid: uint32(cid.Int)})
				}
			}
		case "endcidrange":
			for i := 0; i+2 < len(stack); i += 3 {
				lo, hi, cid := stack[i], stack[i+1], stack[i+2]
				if lo.Kind == scanner.String && hi.Kind == scanner.String && cid.Kind == scanner.Int {
					m.cids = append(m.cids, cidRange{lo: codeOf(lo.Bytes), hi: codeOf(hi.Bytes), n: len(lo.Bytes), cid: uint32(cid.Int)})
				}
			}
		}
		stack = stack[:0]
	}
}

// Next splits the first character code off b using the codespace ranges
// and returns the code and its length in bytes. Without codespace ranges
// codes are fallback bytes long.
func (m *CMap) Next(b []byte, fallback int) (uint32, int) {
	if m != nil {
		for n := 1; n <= 4 && n <= len(b); n++ {
			c := codeOf(b[:n])
			for _, r := range m.space {
				if r.n == n && c >= r.lo && c <= r.hi {
					return c, n
				}
			}
		}
	}
	n := min(max(fallback, 1), len(b))
	return codeOf(b[:n]), n
}

// Unicode returns the text mapped to code.
func (m *CMap) Unicode(code uint32) (string, bool) {
	if m == nil {
		return "", false
	}
	if s, ok := m.chars[code]; ok {
		return s, true
	}
	for _, r := range m.bf {
		if code < r.lo || code > r.hi {
			continue
		}
		off := code - r.lo
		if r.dsts != nil {
			if int(off) < len(r.dsts) {
				return decodeUTF16(r.dsts[off]), true
			}
			return "", false
		}
		dst := append([]byte(nil), r.dst...)
		if len(dst) == 0 {
			return "", false
		}
		// Increment the last code unit.
		last := uint32(dst[len(dst)-1]) + off
		dst[len(dst)-1] = byte(last)
		if len(dst) >= 2 {
			dst[len(dst)-2] += byte(last >> 8)
		}
		return decodeUTF16(dst), true
	}
	return "", false
}

// CID maps code through cidchar/cidrange entries.
func (m *CMap) CID(code uint32) (uint32, bool) {
	if m == nil {
		return 0, false
	}
	for _, r := range m.cids {
		if code >= r.lo && code <= r.hi {
			return r.cid + code - r.lo, true
		}
	}
	return 0, false
}
