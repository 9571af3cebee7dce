package filters

import (
	"bufio"
	"encoding/ascii85"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/wudi/pdfcore/ir/raw"
)

type asciiHexFilter struct{}

func (asciiHexFilter) Name() string { return "ASCIIHexDecode" }

func (asciiHexFilter) NewReader(r io.Reader, _ *raw.DictObj) (io.Reader, error) {
	return &asciiHexReader{r: bufio.NewReader(r)}, nil
}

func (asciiHexFilter) NewWriter(w io.Writer, _ *raw.DictObj) (io.WriteCloser, error) {
	return &asciiHexWriter{w: w}, nil
}

// asciiHexReader skips whitespace, stops at '>' and pads an odd final
// nibble with 0.
type asciiHexReader struct {
	r    *bufio.Reader
	done bool
	hi   byte
	half bool
}

func (h *asciiHexReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && !h.done {
		c, err := h.r.ReadByte()
		if err == io.EOF {
			h.done = true
			break
		}
		if err != nil {
			return n, err
		}
		switch {
		case c == '>':
			h.done = true
		case isPDFWhitespace(c):
		case isHexDigit(c):
			if !h.half {
				h.hi = hexVal(c)
				h.half = true
				continue
			}
			p[n] = h.hi<<4 | hexVal(c)
			n++
			h.half = false
		default:
			return n, fmt.Errorf("ASCIIHexDecode: invalid character %q", c)
		}
	}
	if h.done && h.half && n < len(p) {
		p[n] = h.hi << 4
		n++
		h.half = false
	}
	if n == 0 && h.done && !h.half {
		return 0, io.EOF
	}
	return n, nil
}

type asciiHexWriter struct {
	w   io.Writer
	col int
}

func (h *asciiHexWriter) Write(p []byte) (int, error) {
	buf := make([]byte, 0, len(p)*2+len(p)/32+1)
	for _, b := range p {
		buf = hex.AppendEncode(buf, []byte{b})
		h.col += 2
		if h.col >= 64 {
			buf = append(buf, '\n')
			h.col = 0
		}
	}
	if _, err := h.w.Write(buf); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (h *asciiHexWriter) Close() error {
	_, err := h.w.Write([]byte{'>'})
	return err
}

type ascii85Filter struct{}

func (ascii85Filter) Name() string { return "ASCII85Decode" }

// NewReader feeds the standard ascii85 decoder with the bytes before the
// "~>" end-of-data marker; a leading "<~" is dropped.
func (ascii85Filter) NewReader(r io.Reader, _ *raw.DictObj) (io.Reader, error) {
	br := bufio.NewReader(r)
	for {
		head, err := br.Peek(1)
		if err != nil {
			break
		}
		if isPDFWhitespace(head[0]) {
			br.Discard(1)
			continue
		}
		if head, _ = br.Peek(2); len(head) == 2 && head[0] == '<' && head[1] == '~' {
			br.Discard(2)
		}
		break
	}
	return ascii85.NewDecoder(&eodReader{r: br}), nil
}

func (ascii85Filter) NewWriter(w io.Writer, _ *raw.DictObj) (io.WriteCloser, error) {
	return &ascii85Writer{w: w, enc: ascii85.NewEncoder(w)}, nil
}

// eodReader ends at "~", the first byte of the ASCII85 end marker.
type eodReader struct {
	r    *bufio.Reader
	done bool
}

func (e *eodReader) Read(p []byte) (int, error) {
	if e.done {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) {
		c, err := e.r.ReadByte()
		if err != nil {
			e.done = true
			break
		}
		if c == '~' {
			e.done = true
			break
		}
		p[n] = c
		n++
	}
	if n == 0 && e.done {
		return 0, io.EOF
	}
	return n, nil
}

type ascii85Writer struct {
	w   io.Writer
	enc io.WriteCloser
}

func (a *ascii85Writer) Write(p []byte) (int, error) { return a.enc.Write(p) }

func (a *ascii85Writer) Close() error {
	if err := a.enc.Close(); err != nil {
		return err
	}
	_, err := a.w.Write([]byte("~>"))
	return err
}

func isPDFWhitespace(c byte) bool {
	return c == 0 || c == '\t' || c == '\n' || c == '\f' || c == '\r' || c == ' '
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	}
	return c - 'A' + 10
}
