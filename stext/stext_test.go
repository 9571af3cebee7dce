package stext

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfcore/contentstream"
	"github.com/wudi/pdfcore/internal/pdftest"
)

const fontRes = "/Resources<</Font<</F1 5 0 R>>>>"

func withFont(b *pdftest.Builder) {
	b.Obj(5, "<</Type/Font/Subtype/Type1/BaseFont/Helvetica/FirstChar 32/LastChar 126/Widths["+
		strings.Repeat("500 ", 95)+"]>>")
}

func extract(t *testing.T, content string, opt Options) *Page {
	t.Helper()
	data := pdftest.SinglePage(content, fontRes, withFont)
	_, page := pdftest.Page(t, data, 0)
	out, err := FromPage(context.Background(), page, opt, contentstream.Config{})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	return out
}

func TestLinesAndBlocks(t *testing.T) {
	page := extract(t, "BT /F1 12 Tf 72 720 Td [(Hello) -500 (World)] TJ 0 -14 Td (Next) Tj 0 -100 Td (Far) Tj ET", Options{})
	if diff := cmp.Diff("Hello World\nNext\n\nFar\n\n", page.Text(Options{})); diff != "" {
		t.Fatalf("text (-want +got):\n%s", diff)
	}
	if n := len(page.Blocks); n != 2 {
		t.Fatalf("blocks = %d", n)
	}
	first := page.Blocks[0].Lines[0]
	if o := first.Chars[0].Origin; o.X != 72 || o.Y != 792-720 {
		t.Fatalf("origin = %+v", o)
	}
	if s := first.Chars[0].Size; s != 12 {
		t.Fatalf("size = %g", s)
	}
}

func TestActualTextReplacesGlyphs(t *testing.T) {
	page := extract(t, "BT /F1 12 Tf 72 720 Td /Span <</ActualText (fi)>> BDC (X) Tj EMC (n) Tj ET", Options{})
	if got := page.Text(Options{}); got != "fin\n\n" {
		t.Fatalf("text = %q", got)
	}
}

func TestNestedActualTextUsesOutermost(t *testing.T) {
	page := extract(t, "BT /F1 12 Tf /Span <</ActualText (A)>> BDC /Span <</ActualText (B)>> BDC (x) Tj EMC EMC ET", Options{})
	if got := page.Text(Options{}); got != "A\n\n" {
		t.Fatalf("text = %q", got)
	}
}

func TestFillStrokeTextCountedOnce(t *testing.T) {
	page := extract(t, "BT 2 Tr /F1 12 Tf (AB) Tj ET", Options{})
	if got := page.Text(Options{}); got != "AB\n\n" {
		t.Fatalf("text = %q", got)
	}
}

func TestInvisibleText(t *testing.T) {
	const content = "BT 3 Tr /F1 12 Tf (A) Tj ET"
	if got := extract(t, content, Options{}).Text(Options{}); got != "A\n\n" {
		t.Fatalf("text = %q", got)
	}
	if got := extract(t, content, Options{SkipInvisible: true}).Text(Options{}); got != "" {
		t.Fatalf("skipped text = %q", got)
	}
}

func TestNormalizeLigature(t *testing.T) {
	page := extract(t, "BT /F1 12 Tf /Span <</ActualText <FEFFFB01>>> BDC (x) Tj EMC ET", Options{})
	if got := page.Text(Options{}); got != "\ufb01\n\n" {
		t.Fatalf("raw text = %q", got)
	}
	if got := page.Text(Options{Normalize: true}); got != "fi\n\n" {
		t.Fatalf("normalized text = %q", got)
	}
}

func TestDehyphenate(t *testing.T) {
	page := extract(t, "BT /F1 12 Tf 72 720 Td (exam-) Tj 0 -14 Td (ple) Tj ET", Options{})
	if got := page.Text(Options{Dehyphenate: true}); got != "example\n\n" {
		t.Fatalf("text = %q", got)
	}
	if got := page.Text(Options{}); got != "exam-\nple\n\n" {
		t.Fatalf("text = %q", got)
	}
}

func TestWriteHTML(t *testing.T) {
	page := extract(t, "BT /F1 12 Tf 72 720 Td (a<b) Tj ET", Options{})
	var buf bytes.Buffer
	if err := WriteHTML(&buf, Options{}, page); err != nil {
		t.Fatalf("html: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"<!DOCTYPE html>", `class="page"`, "<p style=", "a&lt;b", "font-size:12.0pt"} {
		if !strings.Contains(out, want) {
			t.Errorf("html lacks %q:\n%s", want, out)
		}
	}
}

func TestWriteTextSeparatesPages(t *testing.T) {
	a := extract(t, "BT /F1 12 Tf (A) Tj ET", Options{})
	b := extract(t, "BT /F1 12 Tf (B) Tj ET", Options{})
	var buf bytes.Buffer
	if err := WriteText(&buf, Options{}, a, b); err != nil {
		t.Fatalf("text: %v", err)
	}
	if got := buf.String(); got != "A\n\n\fB\n\n" {
		t.Fatalf("text = %q", got)
	}
}
