package contentstream

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfcore/ir/raw"
)

func summarize(ops []Operation) []string {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		s := op.Keyword
		for _, o := range op.Operands {
			s += " " + raw.Format(o)
		}
		if op.Image != nil {
			s += " " + raw.Format(op.Image.Dict) + " " + string(op.Image.Data)
		}
		out = append(out, s)
	}
	return out
}

func TestParseOperators(t *testing.T) {
	ops, err := Parse([]byte("q 1 0 0 1 10 20 cm/F1 12 Tf[(a)-20(b)]TJ <</MCID 3>>BDC EMC Q"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []Op{OpSave, OpConcat, OpFont, OpShowArray, OpBeginMarkedDict, OpEndMarked, OpRestore}
	var got []Op
	for _, op := range ops {
		got = append(got, op.Op)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ops (-want +got):\n%s", diff)
	}
	if n := len(ops[1].Operands); n != 6 {
		t.Fatalf("cm operands = %d", n)
	}
}

func TestParseKeepsUnknownOperators(t *testing.T) {
	ops, err := Parse([]byte("1 2 zz"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ops) != 1 || ops[0].Op != OpUnknown || ops[0].Keyword != "zz" || len(ops[0].Operands) != 2 {
		t.Fatalf("ops = %+v", ops)
	}
}

func TestInlineImageWithEIInData(t *testing.T) {
	ops, err := Parse([]byte("BI /W 4 /H 1 /BPC 8 /CS /G ID xEIx EI 0 g"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ops) != 2 || ops[0].Image == nil {
		t.Fatalf("ops = %+v", ops)
	}
	if got := string(ops[0].Image.Data); got != "xEIx" {
		t.Fatalf("data = %q", got)
	}
}

func TestParseAppendRoundTrip(t *testing.T) {
	src := "q 0.5 0 0 0.5 0 0 cm /GS0 gs BT /F1 9 Tf [(x\\)) -3 <00ff>] TJ ET " +
		"BI /W 2 /H 1 /BPC 8 /CS /G ID ab EI /Span <</ActualText (y)>> BDC EMC Q"
	first, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out := Append(nil, first)
	second, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse %q: %v", out, err)
	}
	if diff := cmp.Diff(summarize(first), summarize(second)); diff != "" {
		t.Fatalf("round trip (-first +second):\n%s\n%s", diff, out)
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{"1 2", "] f", "[1 2"} {
		if _, err := Parse([]byte(src)); err == nil {
			t.Errorf("Parse(%q) succeeded", src)
		}
	}
}
