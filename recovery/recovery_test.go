package recovery

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKindsMatch(t *testing.T) {
	err := fmt.Errorf("load object 4: %w", Errorf(KindSyntax, "lex", "unbalanced parentheses").At(120))
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected syntax error, got %v", err)
	}
	if errors.Is(err, ErrLimit) {
		t.Fatalf("syntax error matched limit")
	}
	if KindOf(err) != KindSyntax {
		t.Fatalf("expected KindSyntax, got %v", KindOf(err))
	}
	want := "load object 4: lex: syntax error at offset 120: unbalanced parentheses"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestStrategies(t *testing.T) {
	syntax := New(KindSyntax, "parse", errors.New("bad token"))
	if (Strict{}).OnError(syntax, Location{}) != ActionFail {
		t.Fatalf("strict strategy must fail")
	}
	lenient := &Lenient{}
	if lenient.OnError(syntax, Location{Component: "parser", Offset: 7}) != ActionFix {
		t.Fatalf("lenient strategy should repair syntax errors")
	}
	if lenient.OnError(New(KindLimit, "decode", nil), Location{Offset: -1}) != ActionFail {
		t.Fatalf("limit errors are never repaired")
	}
	if len(lenient.Errors) != 2 {
		t.Fatalf("expected 2 recorded errors, got %d", len(lenient.Errors))
	}
	if want := "parser@7: parse: syntax error: bad token"; lenient.Errors[0].Error() != want {
		t.Fatalf("recorded %q, want %q", lenient.Errors[0], want)
	}
	for i := 0; i < 2*maxRecorded; i++ {
		lenient.OnError(syntax, Location{})
	}
	if len(lenient.Errors) != maxRecorded || lenient.Dropped != maxRecorded+2 {
		t.Fatalf("recorded %d, dropped %d", len(lenient.Errors), lenient.Dropped)
	}
}

func TestStateLifecycle(t *testing.T) {
	st := NewState(false)
	if st.HasError() {
		t.Fatalf("fresh state has error")
	}
	st.Record(New(KindSemantic, "load page", errors.New("expected dict")))
	if !st.HasError() || st.Count() != 1 {
		t.Fatalf("expected one pending error")
	}
	if msg := st.CaughtMessage(); msg != "load page: semantic error: expected dict" {
		t.Fatalf("unexpected message %q", msg)
	}
	err := st.Rethrow()
	if err == nil || st.HasError() {
		t.Fatalf("rethrow should return and clear the error")
	}
	st.Record(err)
	st.Ignore()
	if st.HasError() || st.Count() != 2 {
		t.Fatalf("ignore should clear but keep the count")
	}
}

func TestStateWarningsAreDeduplicatedAndBounded(t *testing.T) {
	st := NewState(false)
	st.MaxWarnings = 3
	st.Warn("repair: rebuilt xref")
	st.Warn("repair: rebuilt xref")
	for i := 0; i < 5; i++ {
		st.Warn(fmt.Sprintf("w%d", i))
	}
	if got := st.Warnings(); len(got) != 3 || got[0] != "repair: rebuilt xref" {
		t.Fatalf("unexpected warnings %v", got)
	}
}

func TestStateAsStrategy(t *testing.T) {
	st := NewState(true)
	if st.OnError(ErrSyntax, Location{}) != ActionFail {
		t.Fatalf("strict state must fail syntax errors")
	}
	st = NewState(false)
	if st.OnError(New(KindSyntax, "", errors.New("x")), Location{Component: "lexer"}) != ActionFix {
		t.Fatalf("lenient state should fix")
	}
	if w := st.Warnings(); len(w) != 1 || w[0] != "lexer: syntax error: x" {
		t.Fatalf("unexpected warnings %v", w)
	}
	if st.HasError() {
		t.Fatalf("warnings must not set the error flag")
	}
}
