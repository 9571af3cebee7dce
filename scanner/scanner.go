// Package scanner tokenizes PDF bytes.
//
// The scanner works over an in-memory (or memory-mapped) byte slice and
// never copies stream payloads: after a "stream" keyword it leaves the
// cursor on the first payload byte and the caller decides how many bytes
// to take.
package scanner

import (
	"bytes"
	"math"
	"strconv"

	"github.com/wudi/pdfcore/recovery"
)

type TokenKind int

const (
	EOF TokenKind = iota
	OpenArray
	CloseArray
	OpenDict
	CloseDict
	OpenBrace
	CloseBrace
	Name
	Int
	Real
	String
	Keyword
	R
	True
	False
	Null
	Obj
	EndObj
	Stream
	EndStream
	XRef
	Trailer
	StartXRef
	Error
)

var kindNames = [...]string{
	"eof", "[", "]", "<<", ">>", "{", "}", "name", "int", "real", "string", "keyword",
	"R", "true", "false", "null", "obj", "endobj", "stream", "endstream", "xref", "trailer", "startxref", "error",
}

func (k TokenKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "token(" + strconv.Itoa(int(k)) + ")"
}

var keywords = map[string]TokenKind{
	"R":         R,
	"true":      True,
	"false":     False,
	"null":      Null,
	"obj":       Obj,
	"endobj":    EndObj,
	"stream":    Stream,
	"endstream": EndStream,
	"xref":      XRef,
	"trailer":   Trailer,
	"startxref": StartXRef,
}

// Token is one lexical unit. Bytes holds the decoded payload of names,
// strings and keywords; it aliases the scanner's token buffer and is only
// valid until the next call to Next.
type Token struct {
	Kind  TokenKind
	Pos   int64
	Int   int64
	Real  float64
	Bytes []byte
	Hex   bool
}

// Str returns the payload as a string.
func (t Token) Str() string { return string(t.Bytes) }

// IsKeyword reports whether t is the keyword kw.
func (t Token) IsKeyword(kw string) bool {
	return t.Kind == Keyword && string(t.Bytes) == kw
}

// Number returns the numeric value of an Int or Real token.
func (t Token) Number() (float64, bool) {
	switch t.Kind {
	case Int:
		return float64(t.Int), true
	case Real:
		return t.Real, true
	}
	return 0, false
}

type Config struct {
	// InitialBuffer is the starting capacity of the token buffer.
	InitialBuffer int
	// MaxTokenLength bounds the token buffer; longer tokens are errors.
	MaxTokenLength int
	Recovery       recovery.Strategy
}

const (
	defaultInitialBuffer = 256
	defaultMaxToken      = 10 << 20
)

// Scanner is the lexer state: the byte source, the cursor, the growable
// token buffer and the last token produced.
type Scanner struct {
	data       []byte
	pos        int64
	buf        []byte
	cfg        Config
	last       Token
	lastAction recovery.Action
}

// New returns a scanner over data starting at offset 0.
func New(data []byte, cfg Config) *Scanner {
	if cfg.InitialBuffer <= 0 {
		cfg.InitialBuffer = defaultInitialBuffer
	}
	if cfg.MaxTokenLength <= 0 {
		cfg.MaxTokenLength = defaultMaxToken
	}
	return &Scanner{data: data, cfg: cfg, buf: make([]byte, 0, cfg.InitialBuffer)}
}

func (s *Scanner) Position() int64 { return s.pos }

// Len returns the size of the underlying data.
func (s *Scanner) Len() int64 { return int64(len(s.data)) }

// Data exposes the underlying bytes.
func (s *Scanner) Data() []byte { return s.data }

// Last returns the most recent token.
func (s *Scanner) Last() Token { return s.last }

// BufferCap reports the current capacity of the token buffer.
func (s *Scanner) BufferCap() int { return cap(s.buf) }

func (s *Scanner) Seek(offset int64) error {
	if offset < 0 || offset > int64(len(s.data)) {
		return recovery.Errorf(recovery.KindSyntax, "seek", "offset %d out of range", offset)
	}
	s.pos = offset
	return nil
}

// Bytes returns up to n raw bytes from the cursor and advances past them.
func (s *Scanner) Bytes(n int64) []byte {
	end := s.pos + n
	if end > int64(len(s.data)) || n < 0 {
		end = int64(len(s.data))
	}
	out := s.data[s.pos:end]
	s.pos = end
	return out
}

// Peek returns the next token without consuming it. The payload is copied.
func (s *Scanner) Peek() (Token, error) {
	pos, last := s.pos, s.last
	tok, err := s.Next()
	tok.Bytes = append([]byte(nil), tok.Bytes...)
	s.pos, s.last = pos, last
	return tok, err
}

func (s *Scanner) fail(start int64, kind recovery.Kind, msg string) (Token, error) {
	s.last = Token{Kind: Error, Pos: start}
	return s.last, recovery.Errorf(kind, "lex", "%s", msg).At(start)
}

// recover consults the recovery strategy. A nil result means the caller
// may continue with a best-effort token.
func (s *Scanner) recover(err error, component string) error {
	s.lastAction = recovery.ActionFail
	if s.cfg.Recovery == nil {
		return err
	}
	s.lastAction = s.cfg.Recovery.OnError(err, recovery.Location{Offset: s.pos, Component: component})
	switch s.lastAction {
	case recovery.ActionFix, recovery.ActionSkip:
		return nil
	}
	return err
}

func (s *Scanner) push(c byte) bool {
	if len(s.buf) == cap(s.buf) {
		if cap(s.buf) >= s.cfg.MaxTokenLength {
			return false
		}
		n := cap(s.buf) * 2
		if n > s.cfg.MaxTokenLength {
			n = s.cfg.MaxTokenLength
		}
		grown := make([]byte, len(s.buf), n)
		copy(grown, s.buf)
		s.buf = grown
	}
	s.buf = append(s.buf, c)
	return true
}

func (s *Scanner) emit(tok Token) (Token, error) {
	s.last = tok
	return tok, nil
}

// Next returns the next token. At the end of data it returns an EOF token
// and a nil error; lexical failures return an Error token and a syntax
// error.
func (s *Scanner) Next() (Token, error) {
	s.skipWSAndComments()
	if s.pos >= int64(len(s.data)) {
		return s.emit(Token{Kind: EOF, Pos: s.pos})
	}
	start := s.pos
	s.buf = s.buf[:0]
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peekAhead(1) == '<' {
			s.pos += 2
			return s.emit(Token{Kind: OpenDict, Pos: start})
		}
		return s.scanHexString()
	case '>':
		if s.peekAhead(1) == '>' {
			s.pos += 2
			return s.emit(Token{Kind: CloseDict, Pos: start})
		}
		s.pos++
		return s.fail(start, recovery.KindSyntax, "unexpected '>'")
	case '[':
		s.pos++
		return s.emit(Token{Kind: OpenArray, Pos: start})
	case ']':
		s.pos++
		return s.emit(Token{Kind: CloseArray, Pos: start})
	case '{':
		s.pos++
		return s.emit(Token{Kind: OpenBrace, Pos: start})
	case '}':
		s.pos++
		return s.emit(Token{Kind: CloseBrace, Pos: start})
	case '(':
		return s.scanLiteralString()
	case ')':
		s.pos++
		return s.fail(start, recovery.KindSyntax, "unbalanced ')'")
	case '/':
		return s.scanName()
	}
	if isNumberStart(c) {
		return s.scanNumber()
	}
	return s.scanKeyword()
}

func (s *Scanner) peekAhead(n int64) byte {
	if s.pos+n < int64(len(s.data)) {
		return s.data[s.pos+n]
	}
	return 0
}

func (s *Scanner) skipWSAndComments() {
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < int64(len(s.data)) && !isEOL(s.data[s.pos]) {
				s.pos++
			}
			continue
		}
		return
	}
}

func (s *Scanner) scanName() (Token, error) {
	start := s.pos
	s.pos++
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		if c == '#' && s.pos+2 < int64(len(s.data)) && isHex(s.data[s.pos+1]) && isHex(s.data[s.pos+2]) {
			c = fromHex(s.data[s.pos+1])<<4 | fromHex(s.data[s.pos+2])
			s.pos += 2
		}
		if !s.push(c) {
			return s.fail(start, recovery.KindLimit, "name too long")
		}
		s.pos++
	}
	return s.emit(Token{Kind: Name, Pos: start, Bytes: s.buf})
}

func (s *Scanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++
	depth := 1
	n := int64(len(s.data))
	for s.pos < n {
		c := s.data[s.pos]
		switch c {
		case '\\':
			s.pos++
			if s.pos >= n {
				continue
			}
			esc := s.data[s.pos]
			switch {
			case esc == '\r':
				s.pos++
				if s.pos < n && s.data[s.pos] == '\n' {
					s.pos++
				}
				continue
			case esc == '\n':
				s.pos++
				continue
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				s.pos++
				for k := 0; k < 2 && s.pos < n; k++ {
					d := s.data[s.pos]
					if d < '0' || d > '7' {
						break
					}
					val = val<<3 + int(d-'0')
					s.pos++
				}
				c = byte(val)
			default:
				c = translateEscape(esc)
				s.pos++
			}
		case '(':
			depth++
			s.pos++
		case ')':
			depth--
			s.pos++
			if depth == 0 {
				return s.emit(Token{Kind: String, Pos: start, Bytes: s.buf})
			}
		case '\r':
			// An unescaped end-of-line in a string reads as a single LF.
			s.pos++
			if s.pos < n && s.data[s.pos] == '\n' {
				s.pos++
			}
			c = '\n'
		default:
			s.pos++
		}
		if !s.push(c) {
			return s.fail(start, recovery.KindLimit, "string too long")
		}
	}
	if err := s.recover(recovery.Errorf(recovery.KindSyntax, "lex", "unbalanced parentheses in string").At(start), "lexer"); err != nil {
		s.last = Token{Kind: Error, Pos: start}
		return s.last, err
	}
	return s.emit(Token{Kind: String, Pos: start, Bytes: s.buf})
}

func (s *Scanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++
	var hi byte
	odd := false
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		s.pos++
		if isWhitespace(c) {
			continue
		}
		if c == '>' {
			if odd && !s.push(hi<<4) {
				return s.fail(start, recovery.KindLimit, "string too long")
			}
			return s.emit(Token{Kind: String, Pos: start, Bytes: s.buf, Hex: true})
		}
		if !isHex(c) {
			return s.fail(start, recovery.KindSyntax, "non-hex character in hex string")
		}
		if !odd {
			hi = fromHex(c)
			odd = true
			continue
		}
		odd = false
		if !s.push(hi<<4 | fromHex(c)) {
			return s.fail(start, recovery.KindLimit, "string too long")
		}
	}
	if err := s.recover(recovery.Errorf(recovery.KindSyntax, "lex", "unterminated hex string").At(start), "lexer"); err != nil {
		s.last = Token{Kind: Error, Pos: start}
		return s.last, err
	}
	if odd {
		s.push(hi << 4)
	}
	return s.emit(Token{Kind: String, Pos: start, Bytes: s.buf, Hex: true})
}

// scanNumber reads [+-]?digits*(.digits*)? and stops at the first byte that
// cannot continue the literal.
func (s *Scanner) scanNumber() (Token, error) {
	start := s.pos
	n := int64(len(s.data))
	if c := s.data[s.pos]; c == '+' || c == '-' {
		s.pos++
	}
	// PDF producers sometimes emit "--5"; the extra signs are ignored.
	for s.pos < n && (s.data[s.pos] == '-' || s.data[s.pos] == '+') && s.pos > start {
		s.pos++
	}
	frac := false
	for s.pos < n {
		c := s.data[s.pos]
		if c == '.' && !frac {
			frac = true
			s.pos++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		s.pos++
	}
	lit := s.data[start:s.pos]
	neg := lit[0] == '-'
	digits := bytes.TrimLeft(lit, "+-")
	if len(digits) == 0 || bytes.Equal(digits, []byte(".")) {
		return s.emit(Token{Kind: Int, Pos: start})
	}
	if !frac {
		signed := string(digits)
		if neg {
			signed = "-" + signed
		}
		if v, err := strconv.ParseInt(signed, 10, 64); err == nil {
			return s.emit(Token{Kind: Int, Pos: start, Int: v})
		}
	}
	f, err := strconv.ParseFloat(string(digits), 64)
	if err != nil || f > math.MaxFloat32 {
		return s.fail(start, recovery.KindSyntax, "numeric literal overflows")
	}
	if neg {
		f = -f
	}
	return s.emit(Token{Kind: Real, Pos: start, Real: f})
}

func (s *Scanner) scanKeyword() (Token, error) {
	start := s.pos
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		if !s.push(c) {
			return s.fail(start, recovery.KindLimit, "keyword too long")
		}
		s.pos++
	}
	if kind, ok := keywords[string(s.buf)]; ok {
		tok := Token{Kind: kind, Pos: start, Bytes: s.buf}
		if kind == Stream {
			s.skipStreamEOL()
		}
		return s.emit(tok)
	}
	return s.emit(Token{Kind: Keyword, Pos: start, Bytes: s.buf})
}

// skipStreamEOL consumes the single LF or CR-LF after "stream". A bare CR
// is tolerated.
func (s *Scanner) skipStreamEOL() {
	n := int64(len(s.data))
	// Some writers put spaces before the end of line.
	p := s.pos
	for p < n && (s.data[p] == ' ' || s.data[p] == '\t') {
		p++
	}
	if p < n && s.data[p] == '\r' {
		p++
		if p < n && s.data[p] == '\n' {
			p++
		}
		s.pos = p
		return
	}
	if p < n && s.data[p] == '\n' {
		s.pos = p + 1
	}
}

// ReadInlineImage returns the bytes between "ID" and "EI" of an inline
// image. It expects the cursor right after the ID keyword.
func (s *Scanner) ReadInlineImage() ([]byte, error) {
	n := int64(len(s.data))
	if s.pos < n && isWhitespace(s.data[s.pos]) {
		s.pos++
	}
	start := s.pos
	for p := start; p+1 < n; p++ {
		if s.data[p] != 'E' || s.data[p+1] != 'I' {
			continue
		}
		if p > start && !isWhitespace(s.data[p-1]) {
			continue
		}
		if p+2 < n && !isWhitespace(s.data[p+2]) && !isDelimiter(s.data[p+2]) {
			continue
		}
		end := p
		if end > start && isWhitespace(s.data[end-1]) {
			end--
		}
		s.pos = p + 2
		return s.data[start:end], nil
	}
	s.pos = n
	return nil, recovery.Errorf(recovery.KindSyntax, "lex", "inline image without EI").At(start)
}

// IndexFrom returns the offset of the next occurrence of sep at or after
// from, or -1.
func (s *Scanner) IndexFrom(from int64, sep []byte) int64 {
	if from < 0 || from >= int64(len(s.data)) {
		return -1
	}
	i := bytes.Index(s.data[from:], sep)
	if i < 0 {
		return -1
	}
	return from + int64(i)
}

func isNumberStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

// IsWhitespace reports PDF whitespace.
func IsWhitespace(c byte) bool { return isWhitespace(c) }

func isEOL(c byte) bool { return c == '\n' || c == '\r' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// IsDelimiter reports PDF delimiter characters.
func IsDelimiter(c byte) bool { return isDelimiter(c) }

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	}
	return c
}
