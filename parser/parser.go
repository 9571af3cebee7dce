// Package parser turns scanner tokens into objects: direct objects,
// indirect objects with their stream payloads, cross-reference sections
// and object-stream indexes. It also rebuilds a cross-reference table by
// scanning a damaged file.
package parser

import (
	"fmt"

	"github.com/wudi/pdfcore/filters"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/observability"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/scanner"
	"github.com/wudi/pdfcore/security"
)

// maxNesting bounds array and dictionary nesting.
const maxNesting = 512

// Config controls parsing.
type Config struct {
	// Recovery decides what happens on malformed input. Nil fails.
	Recovery recovery.Strategy
	Limits   security.Limits
	// Names receives the references taken while interning keys. Nil interns
	// into the process table without tracking.
	Names    *names.Scope
	Pipeline *filters.Pipeline
	Logger   observability.Logger
}

func (c Config) withDefaults() Config {
	c.Limits = c.Limits.WithDefaults()
	if c.Pipeline == nil {
		c.Pipeline = filters.NewPipeline(nil, filters.Limits{
			MaxDecompressedSize: c.Limits.MaxDecompressedSize,
			MaxDecodeTime:       c.Limits.MaxDecodeTime,
		})
	}
	if c.Logger == nil {
		c.Logger = observability.NopLogger{}
	}
	return c
}

// LengthResolver returns the value of an indirect /Length.
type LengthResolver func(ref raw.ObjectRef) (int64, bool)

// Parser reads objects from a byte slice.
type Parser struct {
	s     *scanner.Scanner
	cfg   Config
	depth int
}

// New returns a parser over data.
func New(data []byte, cfg Config) *Parser {
	cfg = cfg.withDefaults()
	return &Parser{
		s:   scanner.New(data, scanner.Config{MaxTokenLength: cfg.Limits.MaxTokenLength, Recovery: cfg.Recovery}),
		cfg: cfg,
	}
}

// NewFromScanner returns a parser sharing s, e.g. for content-stream
// operands.
func NewFromScanner(s *scanner.Scanner, cfg Config) *Parser {
	return &Parser{s: s, cfg: cfg.withDefaults()}
}

// Scanner exposes the underlying lexer.
func (p *Parser) Scanner() *scanner.Scanner { return p.s }

// Seek moves the cursor to off.
func (p *Parser) Seek(off int64) error { return p.s.Seek(off) }

// Position returns the cursor offset.
func (p *Parser) Position() int64 { return p.s.Position() }

func (p *Parser) intern(b []byte) names.ID {
	if p.cfg.Names != nil {
		return p.cfg.Names.Intern(string(b))
	}
	return names.Default().Intern(string(b))
}

// report passes err to the recovery strategy and reports whether parsing
// may continue.
func (p *Parser) report(err error, offset int64, component string) bool {
	if p.cfg.Recovery == nil {
		return false
	}
	switch p.cfg.Recovery.OnError(err, recovery.Location{Offset: offset, Component: component}) {
	case recovery.ActionFix, recovery.ActionSkip:
		return true
	}
	return false
}

func syntaxError(offset int64, format string, args ...any) error {
	return recovery.Errorf(recovery.KindSyntax, "parse", format, args...).At(offset)
}

// ParseObject consumes exactly one object. A dictionary followed by the
// stream keyword becomes a stream whose /Length must be direct.
func (p *Parser) ParseObject() (raw.Object, error) {
	tok, err := p.s.Next()
	if err != nil {
		return nil, err
	}
	obj, err := p.parseFrom(tok)
	if err != nil {
		return nil, err
	}
	if d, ok := obj.(*raw.DictObj); ok {
		if next, err := p.s.Peek(); err == nil && next.Kind == scanner.Stream {
			p.s.Next()
			return p.readStream(d, raw.ObjectRef{}, nil)
		}
	}
	return obj, nil
}

// ObjectFrom builds the object starting at tok, which the caller has
// already taken from the scanner. Content-stream operands are read this
// way.
func (p *Parser) ObjectFrom(tok scanner.Token) (raw.Object, error) {
	return p.parseFrom(tok)
}

func (p *Parser) parseFrom(tok scanner.Token) (raw.Object, error) {
	switch tok.Kind {
	case scanner.EOF:
		return nil, syntaxError(tok.Pos, "unexpected end of data")
	case scanner.Int:
		if ref, ok := p.tryRef(tok); ok {
			return ref, nil
		}
		return raw.Int(tok.Int), nil
	case scanner.Real:
		return raw.Real(tok.Real), nil
	case scanner.Name:
		return raw.NameID(p.intern(tok.Bytes)), nil
	case scanner.String:
		b := append([]byte(nil), tok.Bytes...)
		if tok.Hex {
			return raw.HexStr(b), nil
		}
		return raw.Str(b), nil
	case scanner.True:
		return raw.Bool(true), nil
	case scanner.False:
		return raw.Bool(false), nil
	case scanner.Null:
		return raw.Null, nil
	case scanner.OpenArray:
		return p.parseArray(tok.Pos)
	case scanner.OpenDict:
		return p.parseDict(tok.Pos)
	}
	return nil, syntaxError(tok.Pos, "unexpected token %s", tok.Kind)
}

// tryRef looks ahead for "gen R" after an integer.
func (p *Parser) tryRef(first scanner.Token) (raw.Object, bool) {
	if first.Int < 0 {
		return nil, false
	}
	save := p.s.Position()
	gen, err := p.s.Next()
	if err != nil || gen.Kind != scanner.Int || gen.Int < 0 || gen.Int > 65535 {
		p.s.Seek(save)
		return nil, false
	}
	r, err := p.s.Next()
	if err != nil || r.Kind != scanner.R {
		p.s.Seek(save)
		return nil, false
	}
	return raw.Ref(int(first.Int), int(gen.Int)), true
}

func (p *Parser) enter(offset int64) error {
	p.depth++
	if p.depth > maxNesting {
		return recovery.Errorf(recovery.KindLimit, "parse", "nesting deeper than %d", maxNesting).At(offset)
	}
	return nil
}

func (p *Parser) parseArray(start int64) (raw.Object, error) {
	if err := p.enter(start); err != nil {
		return nil, err
	}
	defer func() { p.depth-- }()
	arr := raw.NewArray()
	for {
		tok, err := p.s.Next()
		if err != nil {
			if p.report(err, tok.Pos, "parser") {
				continue
			}
			return nil, err
		}
		switch tok.Kind {
		case scanner.CloseArray:
			return arr, nil
		case scanner.EOF, scanner.EndObj, scanner.Stream, scanner.EndStream:
			err := syntaxError(start, "unterminated array")
			if !p.report(err, tok.Pos, "parser") {
				return nil, err
			}
			p.s.Seek(tok.Pos)
			return arr, nil
		}
		item, err := p.parseFrom(tok)
		if err != nil {
			if recovery.KindOf(err) == recovery.KindSyntax && p.report(err, tok.Pos, "parser") {
				continue
			}
			return nil, err
		}
		if arr.Len() >= p.cfg.Limits.MaxArraySize {
			return nil, recovery.Errorf(recovery.KindLimit, "parse", "array larger than %d", p.cfg.Limits.MaxArraySize).At(start)
		}
		arr.Append(item)
	}
}

func (p *Parser) parseDict(start int64) (raw.Object, error) {
	if err := p.enter(start); err != nil {
		return nil, err
	}
	defer func() { p.depth-- }()
	d := raw.NewDict()
	for {
		tok, err := p.s.Next()
		if err != nil {
			if p.report(err, tok.Pos, "parser") {
				continue
			}
			return nil, err
		}
		switch tok.Kind {
		case scanner.CloseDict:
			return d, nil
		case scanner.Name:
		case scanner.EOF, scanner.EndObj, scanner.Stream, scanner.EndStream:
			err := syntaxError(tok.Pos, "unterminated dictionary (missing >>?)")
			if !p.report(err, tok.Pos, "parser") {
				return nil, err
			}
			p.s.Seek(tok.Pos)
			return d, nil
		default:
			err := syntaxError(tok.Pos, "expected name in dictionary, got %s", tok.Kind)
			if !p.report(err, tok.Pos, "parser") {
				return nil, err
			}
			if _, err := p.parseFrom(tok); err != nil && recovery.KindOf(err) != recovery.KindSyntax {
				return nil, err
			}
			continue
		}
		key := p.intern(tok.Bytes)
		next, err := p.s.Next()
		if err != nil {
			return nil, err
		}
		if next.Kind == scanner.CloseDict {
			// A key without value reads as null.
			return d, nil
		}
		val, err := p.parseFrom(next)
		if err != nil {
			return nil, err
		}
		if d.Len() >= p.cfg.Limits.MaxDictSize {
			return nil, recovery.Errorf(recovery.KindLimit, "parse", "dictionary larger than %d", p.cfg.Limits.MaxDictSize).At(start)
		}
		d.Set(key, val)
	}
}

// Indirect is one "num gen obj ... endobj" definition.
type Indirect struct {
	Num, Gen int
	Obj      raw.Object
	// StreamOffset is the payload offset of a stream object, or -1.
	StreamOffset int64
	// End is the offset after endobj (or after the object when endobj is
	// missing).
	End int64
}

// ParseIndirect parses the indirect object at the cursor. lengths resolves
// an indirect /Length; it may be nil.
func (p *Parser) ParseIndirect(lengths LengthResolver) (*Indirect, error) {
	start := p.s.Position()
	num, err := p.s.Next()
	if err != nil {
		return nil, err
	}
	gen, err := p.s.Next()
	if err != nil {
		return nil, err
	}
	kw, err := p.s.Next()
	if err != nil {
		return nil, err
	}
	if num.Kind != scanner.Int || gen.Kind != scanner.Int || kw.Kind != scanner.Obj || num.Int < 0 {
		return nil, syntaxError(start, "expected object header")
	}
	ind := &Indirect{Num: int(num.Int), Gen: int(gen.Int), StreamOffset: -1}
	ref := raw.ObjectRef{Num: ind.Num, Gen: ind.Gen}

	tok, err := p.s.Next()
	if err != nil {
		return nil, err
	}
	if tok.Kind == scanner.EndObj {
		// "1 0 obj endobj" holds null.
		ind.Obj = raw.Null
		ind.End = p.s.Position()
		return ind, nil
	}
	obj, err := p.parseFrom(tok)
	if err != nil {
		return nil, fmt.Errorf("object %d %d: %w", ind.Num, ind.Gen, err)
	}
	if d, ok := obj.(*raw.DictObj); ok {
		if next, err := p.s.Peek(); err == nil && next.Kind == scanner.Stream {
			p.s.Next()
			st, err := p.readStream(d, ref, lengths)
			if err != nil {
				return nil, fmt.Errorf("object %d %d: %w", ind.Num, ind.Gen, err)
			}
			ind.StreamOffset = st.Offset
			obj = st
		}
	}
	ind.Obj = obj

	end, err := p.s.Peek()
	if err == nil && end.Kind == scanner.EndObj {
		p.s.Next()
	} else {
		p.cfg.Logger.Debug("missing endobj", observability.Object(ind.Num, ind.Gen), observability.Int64("offset", p.s.Position()))
	}
	ind.End = p.s.Position()
	return ind, nil
}

var endstream = []byte("endstream")

// readStream reads the payload after the stream keyword; the scanner sits
// on its first byte.
func (p *Parser) readStream(d *raw.DictObj, ref raw.ObjectRef, lengths LengthResolver) (*raw.StreamObj, error) {
	start := p.s.Position()
	data := p.s.Data()
	size := int64(len(data))

	length := int64(-1)
	switch v, _ := d.Get(names.Length); l := v.(type) {
	case raw.NumberObj:
		length = l.Int()
	case raw.RefObj:
		if lengths != nil {
			if n, ok := lengths(l.R); ok {
				length = n
			}
		}
	}
	if length > p.cfg.Limits.MaxStreamLength {
		return nil, recovery.Errorf(recovery.KindLimit, "parse", "stream length %d exceeds limit", length).At(start)
	}
	if length < 0 || start+length > size || !endstreamAt(data, start+length) {
		found := p.s.IndexFrom(start, endstream)
		if found < 0 {
			err := syntaxError(start, "stream without endstream")
			if !p.report(err, start, "repair") {
				return nil, err
			}
			found = size
		} else if length >= 0 {
			if !p.report(syntaxError(start, "wrong stream length %d for object %d", length, ref.Num), start, "repair") {
				return nil, syntaxError(start, "wrong stream length %d", length)
			}
		}
		end := found
		if end > start && data[end-1] == '\n' {
			end--
		}
		if end > start && data[end-1] == '\r' {
			end--
		}
		length = end - start
		d.Set(names.Length, raw.Int(length))
	}
	p.s.Seek(start + length)
	if tok, err := p.s.Peek(); err == nil && tok.Kind == scanner.EndStream {
		p.s.Next()
	}
	return &raw.StreamObj{Dict: d, Offset: start, Length: length, Ref: ref}, nil
}

// endstreamAt reports whether the endstream keyword follows off after
// optional whitespace.
func endstreamAt(data []byte, off int64) bool {
	for off < int64(len(data)) && scanner.IsWhitespace(data[off]) {
		off++
	}
	return int64(len(data))-off >= int64(len(endstream)) && string(data[off:off+int64(len(endstream))]) == string(endstream)
}

// Payload returns the raw bytes of a file-backed stream.
func Payload(data []byte, st *raw.StreamObj) []byte {
	if st.InMemory() {
		return st.Data
	}
	start, end := st.Offset, st.Offset+st.Length
	if start < 0 || start > int64(len(data)) {
		return nil
	}
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[start:end]
}
