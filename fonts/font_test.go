package fonts

import (
	"context"
	"testing"

	"github.com/wudi/pdfcore/internal/pdftest"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/pdf"
)

const toUnicode = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CMapName /Adobe-Identity-UCS def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
2 beginbfchar
<0003> <0020>
<0011> <00660069>
endbfchar
1 beginbfrange
<0024> <0026> <0041>
endbfrange
endcmap
CMapName currentdict /CMap defineresource pop
end
end`

func fontFile(t *testing.T) *pdf.Document {
	t.Helper()
	b := pdftest.New("1.7")
	b.Obj(1, "<</Type/Catalog/Pages 2 0 R>>")
	b.Obj(2, "<</Type/Pages/Kids[]/Count 0>>")
	b.Obj(5, "<</Type/Font/Subtype/Type1/BaseFont/Helvetica/FirstChar 65/LastChar 66/Widths[722 667]/Encoding 6 0 R>>")
	b.Obj(6, "<</Type/Encoding/BaseEncoding/WinAnsiEncoding/Differences[66/eacute/uni263A]>>")
	b.Obj(7, "<</Type/Font/Subtype/Type0/BaseFont/Noto/Encoding/Identity-H/DescendantFonts[8 0 R]/ToUnicode 9 0 R>>")
	b.Obj(8, "<</Type/Font/Subtype/CIDFontType2/BaseFont/Noto/DW 1000/W[3[250] 36 38 600]>>")
	b.Stream(9, "", []byte(toUnicode))
	return pdftest.Open(t, b.Finish("/Root 1 0 R"), pdf.Config{})
}

func loadFont(t *testing.T, doc *pdf.Document, num int) *Font {
	t.Helper()
	ref := raw.ObjectRef{Num: num}
	f, err := Load(context.Background(), doc, ref, raw.Ref(num, 0))
	if err != nil {
		t.Fatalf("load font %d: %v", num, err)
	}
	return f
}

func TestSimpleFontDifferences(t *testing.T) {
	doc := fontFile(t)
	f := loadFont(t, doc, 5)
	if f.BaseFont != "Helvetica" || f.Composite {
		t.Fatalf("font = %+v", f)
	}
	chars := f.Decode([]byte("AB\x80C"))
	if len(chars) != 4 {
		t.Fatalf("decoded %d chars", len(chars))
	}
	want := []struct {
		text  string
		width float64
	}{{"A", 722}, {"é", 667}, {"€", 500}, {"☺", 500}}
	for i, w := range want {
		if chars[i].Unicode != w.text || chars[i].Width != w.width {
			t.Errorf("char %d = %q/%v, want %q/%v", i, chars[i].Unicode, chars[i].Width, w.text, w.width)
		}
	}
}

func TestCompositeFontIdentity(t *testing.T) {
	doc := fontFile(t)
	f := loadFont(t, doc, 7)
	if !f.Composite {
		t.Fatal("Type0 font not composite")
	}
	chars := f.Decode([]byte{0x00, 0x24, 0x00, 0x26, 0x00, 0x03, 0x00, 0x11, 0x00, 0x99})
	got := ""
	for _, c := range chars {
		got += c.Unicode
	}
	if got != "AC fi" {
		t.Fatalf("text = %q", got)
	}
	widths := []float64{600, 600, 250, 1000, 1000}
	for i, w := range widths {
		if chars[i].Width != w {
			t.Errorf("width %d = %v, want %v", i, chars[i].Width, w)
		}
	}
}

func TestFontIsCachedPerReference(t *testing.T) {
	doc := fontFile(t)
	if loadFont(t, doc, 5) != loadFont(t, doc, 5) {
		t.Fatalf("font loaded twice")
	}
}

func TestGlyphRune(t *testing.T) {
	for name, want := range map[string]rune{
		"A":          'A',
		"eacute":     'é',
		"Ccedilla":   'Ç',
		"uni00E9":    'é',
		"u1F600":     '😀',
		"quoteright": '’',
		"a.sc":       'a',
	} {
		if got, ok := GlyphRune(name); !ok || got != want {
			t.Errorf("%s = %q, %v", name, got, ok)
		}
	}
	if _, ok := GlyphRune("g123"); ok {
		t.Errorf("unknown glyph name mapped")
	}
}

func TestParseCMapRejectsGarbage(t *testing.T) {
	if _, err := ParseCMap([]byte("not a cmap ) at all")); err == nil {
		t.Fatal("garbage accepted")
	}
}
