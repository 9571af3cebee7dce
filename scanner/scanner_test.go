package scanner

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/wudi/pdfcore/recovery"
)

func newScanner(t *testing.T, data string, cfg Config) *Scanner {
	t.Helper()
	return New([]byte(data), cfg)
}

func nextToken(t *testing.T, s *Scanner) Token {
	t.Helper()
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tok
}

func kinds(t *testing.T, data string) []TokenKind {
	t.Helper()
	s := newScanner(t, data, Config{})
	var out []TokenKind
	for {
		tok := nextToken(t, s)
		out = append(out, tok.Kind)
		if tok.Kind == EOF {
			return out
		}
	}
}

func TestScanner_BasicTokens(t *testing.T) {
	s := newScanner(t, "%PDF-1.7\n1 0 obj\n<< /Name /Value /Nums [1 2 3] /Flag true /Null null >>\nendobj", Config{})

	if tok := nextToken(t, s); tok.Kind != Int || tok.Int != 1 {
		t.Fatalf("expected first token number 1, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Kind != Int || tok.Int != 0 {
		t.Fatalf("expected generation number 0, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Kind != Obj {
		t.Fatalf("expected obj keyword, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Kind != OpenDict {
		t.Fatalf("expected dict start, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Kind != Name || tok.Str() != "Name" {
		t.Fatalf("expected Name key, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Kind != Name || tok.Str() != "Value" {
		t.Fatalf("expected Name value, got %+v", tok)
	}
	nextToken(t, s)
	if tok := nextToken(t, s); tok.Kind != OpenArray {
		t.Fatalf("expected array start, got %+v", tok)
	}
	for i := int64(1); i <= 3; i++ {
		if tok := nextToken(t, s); tok.Kind != Int || tok.Int != i {
			t.Fatalf("expected array number %d, got %+v", i, tok)
		}
	}
	want := []TokenKind{CloseArray, Name, True, Name, Null, CloseDict, EndObj, EOF}
	for _, k := range want {
		if tok := nextToken(t, s); tok.Kind != k {
			t.Fatalf("expected %v, got %v", k, tok.Kind)
		}
	}
}

func TestScanner_KeywordAlphabet(t *testing.T) {
	got := kinds(t, "xref trailer startxref R false endstream { } BT T* ' \"")
	want := []TokenKind{XRef, Trailer, StartXRef, R, False, EndStream, OpenBrace, CloseBrace, Keyword, Keyword, Keyword, Keyword, EOF}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestScanner_NameEscapes(t *testing.T) {
	s := newScanner(t, "/A#20B /#2Fslash /Bad#zz /", Config{})
	for _, want := range []string{"A B", "/slash", "Bad#zz", ""} {
		if tok := nextToken(t, s); tok.Kind != Name || tok.Str() != want {
			t.Fatalf("expected name %q, got %q", want, tok.Str())
		}
	}
}

func TestScanner_LiteralStrings(t *testing.T) {
	cases := map[string]string{
		`(plain)`:             "plain",
		`(a (nested) b)`:      "a (nested) b",
		`(esc \n\r\t\b\f\(\))`: "esc \n\r\t\b\f()",
		`(\101\102\7)`:        "AB\a",
		"(line\\\ncont)":      "linecont",
		"(cr\r\nlf)":          "cr\nlf",
		`(\q)`:                "q",
	}
	for in, want := range cases {
		s := newScanner(t, in, Config{})
		tok := nextToken(t, s)
		if tok.Kind != String || tok.Str() != want {
			t.Fatalf("%q: expected %q, got %q", in, want, tok.Str())
		}
	}
}

func TestScanner_HexStrings(t *testing.T) {
	s := newScanner(t, "<48 65 6C6C 6F> <ABC>", Config{})
	if tok := nextToken(t, s); tok.Str() != "Hello" || !tok.Hex {
		t.Fatalf("expected Hello, got %+v", tok)
	}
	if tok := nextToken(t, s); string(tok.Bytes) != "\xAB\xC0" {
		t.Fatalf("expected odd nibble padded, got %x", tok.Bytes)
	}
}

func TestScanner_Errors(t *testing.T) {
	for _, in := range []string{"(unbalanced", "<4G>", "1" + strings.Repeat("0", 60), "<abc"} {
		s := newScanner(t, in, Config{})
		tok, err := s.Next()
		if err == nil || tok.Kind != Error {
			t.Fatalf("%q: expected error token, got %+v", in, tok)
		}
		if !errors.Is(err, recovery.ErrSyntax) {
			t.Fatalf("%q: expected syntax error, got %v", in, err)
		}
	}
}

func TestScanner_RecoveryClosesStrings(t *testing.T) {
	s := newScanner(t, "(unterminated", Config{Recovery: &recovery.Lenient{}})
	tok := nextToken(t, s)
	if tok.Kind != String || tok.Str() != "unterminated" {
		t.Fatalf("expected repaired string, got %+v", tok)
	}
}

func TestScanner_Numbers(t *testing.T) {
	s := newScanner(t, "42 -17 +3 3.5 -.25 9223372036854775808 4. --2", Config{})
	ints := []int64{42, -17, 3}
	for _, want := range ints {
		if tok := nextToken(t, s); tok.Kind != Int || tok.Int != want {
			t.Fatalf("expected int %d, got %+v", want, tok)
		}
	}
	reals := []float64{3.5, -0.25, 9223372036854775808, 4}
	for _, want := range reals {
		if tok := nextToken(t, s); tok.Kind != Real || tok.Real != want {
			t.Fatalf("expected real %v, got %+v", want, tok)
		}
	}
	if tok := nextToken(t, s); tok.Kind != Int || tok.Int != -2 {
		t.Fatalf("expected -2, got %+v", tok)
	}
}

func TestScanner_Int64Bounds(t *testing.T) {
	s := newScanner(t, "-9223372036854775808 9223372036854775807 --9223372036854775808", Config{})
	for _, want := range []int64{math.MinInt64, math.MaxInt64, math.MinInt64} {
		if tok := nextToken(t, s); tok.Kind != Int || tok.Int != want {
			t.Fatalf("expected int %d, got %+v", want, tok)
		}
	}
}

func TestScanner_StreamPositionsCursor(t *testing.T) {
	data := "<< /Length 5 >>\nstream\r\nHELLO\nendstream"
	s := newScanner(t, data, Config{})
	for {
		tok := nextToken(t, s)
		if tok.Kind == Stream {
			break
		}
	}
	if got := string(s.Bytes(5)); got != "HELLO" {
		t.Fatalf("expected payload HELLO, got %q", got)
	}
	if tok := nextToken(t, s); tok.Kind != EndStream {
		t.Fatalf("expected endstream, got %+v", tok)
	}
}

func TestScanner_BufferGrowsToBound(t *testing.T) {
	long := "(" + strings.Repeat("x", 1000) + ")"
	s := newScanner(t, long, Config{InitialBuffer: 8, MaxTokenLength: 4096})
	tok := nextToken(t, s)
	if len(tok.Bytes) != 1000 {
		t.Fatalf("expected 1000 bytes, got %d", len(tok.Bytes))
	}
	if c := s.BufferCap(); c != 1024 {
		t.Fatalf("expected geometric growth to 1024, got %d", c)
	}
	s = newScanner(t, long, Config{InitialBuffer: 8, MaxTokenLength: 100})
	if _, err := s.Next(); !errors.Is(err, recovery.ErrLimit) {
		t.Fatalf("expected limit error, got %v", err)
	}
}

func TestScanner_InlineImage(t *testing.T) {
	s := newScanner(t, "BI /W 2 /H 1 ID \x00EI\xff EI Q", Config{})
	for {
		tok := nextToken(t, s)
		if tok.IsKeyword("ID") {
			break
		}
	}
	data, err := s.ReadInlineImage()
	if err != nil {
		t.Fatalf("inline image: %v", err)
	}
	if string(data) != "\x00EI\xff" {
		t.Fatalf("unexpected inline data %q", data)
	}
	if tok := nextToken(t, s); !tok.IsKeyword("Q") {
		t.Fatalf("expected Q after EI, got %+v", tok)
	}
}

func TestScanner_PeekDoesNotConsume(t *testing.T) {
	s := newScanner(t, "/A /B", Config{})
	p, _ := s.Peek()
	n := nextToken(t, s)
	if p.Str() != "A" || n.Str() != "A" {
		t.Fatalf("peek consumed token: %q %q", p.Str(), n.Str())
	}
}
