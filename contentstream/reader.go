package contentstream

import (
	"bytes"
	"io"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/parser"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/scanner"
)

// Operation is one operator together with the operands that preceded it.
type Operation struct {
	Op Op
	// Keyword is the operator as written; it is the only record of
	// operators Op does not know.
	Keyword  string
	Operands []raw.Object
	// Image holds the dictionary and data of an inline image (BI).
	Image  *InlineImage
	Offset int64
}

// InlineImage is the body of a BI ... ID ... EI sequence. Dict keeps the
// keys as written, abbreviations included.
type InlineImage struct {
	Dict *raw.DictObj
	Data []byte
}

// maxOperands bounds the operand stack; no operator takes more than a
// DeviceN color.
const maxOperands = 64

// Reader splits a content stream into operations.
type Reader struct {
	s     *scanner.Scanner
	p     *parser.Parser
	stack []raw.Object
}

// NewReader returns a reader over data. cfg.Recovery is ignored: syntax
// errors come back from Next and the caller decides.
func NewReader(data []byte, cfg parser.Config) *Reader {
	cfg.Recovery = nil
	s := scanner.New(data, scanner.Config{MaxTokenLength: cfg.Limits.MaxTokenLength})
	return &Reader{s: s, p: parser.NewFromScanner(s, cfg)}
}

// Position returns the offset of the next unread byte.
func (r *Reader) Position() int64 { return r.s.Position() }

// Next returns the next operation or io.EOF. After a syntax error the
// pending operands are dropped and the reader has moved past the bad
// input, so reading may continue.
func (r *Reader) Next() (Operation, error) {
	for {
		pos := r.s.Position()
		tok, err := r.s.Next()
		if err != nil {
			r.skip(pos)
			return Operation{}, err
		}
		switch tok.Kind {
		case scanner.EOF:
			if len(r.stack) > 0 {
				n := len(r.stack)
				r.stack = r.stack[:0]
				return Operation{}, recovery.Errorf(recovery.KindSyntax, "content", "%d operands without operator at end of stream", n).At(tok.Pos)
			}
			return Operation{}, io.EOF
		case scanner.Int:
			err = r.push(raw.Int(tok.Int), tok.Pos)
		case scanner.Real:
			err = r.push(raw.Real(tok.Real), tok.Pos)
		case scanner.True:
			err = r.push(raw.Bool(true), tok.Pos)
		case scanner.False:
			err = r.push(raw.Bool(false), tok.Pos)
		case scanner.Null:
			err = r.push(raw.Null, tok.Pos)
		case scanner.Name, scanner.String, scanner.OpenArray, scanner.OpenDict:
			var obj raw.Object
			obj, err = r.p.ObjectFrom(tok)
			if err == nil {
				err = r.push(obj, tok.Pos)
			} else {
				r.stack = r.stack[:0]
				r.skip(pos)
			}
		case scanner.CloseArray, scanner.CloseDict, scanner.OpenBrace, scanner.CloseBrace, scanner.Error:
			r.stack = r.stack[:0]
			return Operation{}, recovery.Errorf(recovery.KindSyntax, "content", "unexpected %q", tok.Bytes).At(tok.Pos)
		default:
			return r.operator(tok)
		}
		if err != nil {
			return Operation{}, err
		}
	}
}

// skip guarantees progress after an error at pos.
func (r *Reader) skip(pos int64) {
	if r.s.Position() <= pos {
		r.s.Seek(pos + 1)
	}
}

func (r *Reader) push(o raw.Object, pos int64) error {
	if len(r.stack) >= maxOperands {
		r.stack = r.stack[:0]
		return recovery.Errorf(recovery.KindSyntax, "content", "operand stack overflow").At(pos)
	}
	r.stack = append(r.stack, o)
	return nil
}

func (r *Reader) operator(tok scanner.Token) (Operation, error) {
	op := Operation{
		Op:      lookupOp(tok.Bytes),
		Keyword: string(tok.Bytes),
		Offset:  tok.Pos,
	}
	if len(r.stack) > 0 {
		op.Operands = append([]raw.Object(nil), r.stack...)
		r.stack = r.stack[:0]
	}
	if op.Op == OpBeginImage {
		img, err := r.inlineImage(tok.Pos)
		if err != nil {
			return Operation{}, err
		}
		op.Image = img
	}
	return op, nil
}

// inlineImage reads the key/value pairs after BI, then the data up to EI.
func (r *Reader) inlineImage(start int64) (*InlineImage, error) {
	dict := raw.NewDict()
	for {
		tok, err := r.s.Next()
		if err != nil {
			return nil, err
		}
		switch {
		case tok.Kind == scanner.EOF:
			return nil, recovery.Errorf(recovery.KindSyntax, "inline image", "unterminated inline image").At(start)
		case tok.Kind == scanner.Keyword && string(tok.Bytes) == "ID":
			data, err := r.imageData(dict)
			if err != nil {
				return nil, err
			}
			return &InlineImage{Dict: dict, Data: data}, nil
		case tok.Kind == scanner.Name:
			key := names.Default().Intern(string(tok.Bytes))
			vtok, err := r.s.Next()
			if err != nil {
				return nil, err
			}
			val, err := r.p.ObjectFrom(vtok)
			if err != nil {
				return nil, err
			}
			dict.Set(key, val)
		default:
			return nil, recovery.Errorf(recovery.KindSyntax, "inline image", "unexpected %q in image dictionary", tok.Bytes).At(tok.Pos)
		}
	}
}

// imageData reads the bytes between ID and EI. Unfiltered images have a
// computable length, which lets data that happens to contain "EI" through.
func (r *Reader) imageData(dict *raw.DictObj) ([]byte, error) {
	if n, ok := rawImageLength(dict); ok {
		pos := r.s.Position()
		r.s.Bytes(1)
		data := r.s.Bytes(int64(n))
		if len(data) == n && endsWithEI(r.s) {
			return data, nil
		}
		r.s.Seek(pos)
	}
	return r.s.ReadInlineImage()
}

// endsWithEI consumes the EI that must follow fixed-length data.
func endsWithEI(s *scanner.Scanner) bool {
	pos := s.Position()
	tok, err := s.Next()
	if err == nil && tok.Kind == scanner.Keyword && bytes.Equal(tok.Bytes, []byte("EI")) {
		return true
	}
	s.Seek(pos)
	return false
}

func rawImageLength(d *raw.DictObj) (int, bool) {
	if d.Has(names.Filter) || d.Has(names.F) {
		return 0, false
	}
	w, _ := raw.AsInt(field(d, names.Width, names.W))
	h, _ := raw.AsInt(field(d, names.Height, names.H))
	if w <= 0 || h <= 0 || w > 1<<16 || h > 1<<16 {
		return 0, false
	}
	bpc, n := int64(1), int64(1)
	if mask, _ := raw.AsBool(field(d, names.ImageMask, names.IM)); !mask {
		bpc, _ = raw.AsInt(field(d, names.BitsPerComponent, names.BPC))
		switch cs, _ := raw.AsName(field(d, names.ColorSpace, names.CS)); cs {
		case names.DeviceGray, names.G, names.CalGray:
			n = 1
		case names.DeviceRGB, names.RGB, names.CalRGB:
			n = 3
		case names.DeviceCMYK, names.CMYK:
			n = 4
		default:
			n = 0
		}
	}
	if n == 0 || bpc <= 0 {
		return 0, false
	}
	return int((w*n*bpc + 7) / 8 * h), true
}

// field returns the value stored under the full key or its inline-image
// abbreviation.
func field(d *raw.DictObj, full, short names.ID) raw.Object {
	if v, ok := d.Get(full); ok {
		return v
	}
	if v, ok := d.Get(short); ok {
		return v
	}
	return raw.Null
}

// Parse splits a whole content stream into operations, stopping at the
// first syntax error.
func Parse(data []byte) ([]Operation, error) {
	r := NewReader(data, parser.Config{})
	var ops []Operation
	for {
		op, err := r.Next()
		if err == io.EOF {
			return ops, nil
		}
		if err != nil {
			return ops, err
		}
		ops = append(ops, op)
	}
}
