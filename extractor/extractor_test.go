package extractor

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/wudi/pdfcore/coords"
	"github.com/wudi/pdfcore/internal/pdftest"
	"github.com/wudi/pdfcore/pdf"
)

func fixture(t *testing.T) *Extractor {
	t.Helper()
	b := pdftest.New("1.7")
	b.Obj(1, "<</Type/Catalog/Pages 2 0 R/Outlines 8 0 R/Lang(en-US)/MarkInfo<</Marked true>>"+
		"/PageLabels<</Nums[0<</S/r>>1<</S/D/P(A-)/St 5>>]>>/Metadata 10 0 R"+
		"/Names<</EmbeddedFiles<</Names[(attachment.txt)12 0 R]>>/Dests<</Kids[17 0 R]>>>>>>")
	b.Obj(2, "<</Type/Pages/Kids[3 0 R 13 0 R]/Count 2>>")
	b.Obj(3, "<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]/Contents 4 0 R"+
		"/Resources<</Font<</F1 6 0 R>>/XObject<</Im0 5 0 R>>>>/Annots[7 0 R]>>")
	b.Stream(4, "", []byte("BT /F1 12 Tf (Hello) Tj ET"))
	b.Stream(5, "/Type/XObject/Subtype/Image/Width 1/Height 1/BitsPerComponent 8/ColorSpace/DeviceGray", []byte{0xff})
	b.Obj(6, "<</Type/Font/Subtype/Type1/BaseFont/Helvetica/Encoding/WinAnsiEncoding>>")
	b.Obj(7, "<</Type/Annot/Subtype/Link/Rect[10 0 0 10]/Contents(see site)/A<</S/URI/URI(https://example.com)>>>>")
	b.Obj(8, "<</Type/Outlines/First 9 0 R/Last 9 0 R/Count 1>>")
	b.Obj(9, "<</Title(Intro)/Parent 8 0 R/Dest[3 0 R/Fit]/First 14 0 R/Last 15 0 R>>")
	b.Stream(10, "/Type/Metadata/Subtype/XML", []byte("<x:xmpmeta/>"))
	b.Stream(11, "/Type/EmbeddedFile", []byte("embedded"))
	b.Obj(12, "<</Type/Filespec/F(attachment.txt)/Desc(fixture)/AFRelationship/Data/EF<</F 11 0 R>>>>")
	b.Obj(13, "<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]"+
		"/Resources<</Font<</F1 6 0 R/F2<</Type/Font/Subtype/Type1/BaseFont/Times-Roman>>>>>>>>")
	b.Obj(14, "<</Title(Named)/Parent 9 0 R/Dest(chap2)/Next 15 0 R>>")
	// The last item loops back to the first; the walk must stop there.
	b.Obj(15, "<</Title(Action)/Parent 9 0 R/A<</S/GoTo/D[13 0 R/XYZ null null null]>>/Next 9 0 R>>")
	b.Obj(16, "<</Title(Fixture)/Author(Tester)>>")
	b.Obj(17, "<</Limits[(chap1)(chap2)]/Names[(chap1)[3 0 R/Fit](chap2)<</D[13 0 R/Fit]>>]>>")
	doc := pdftest.Open(t, b.Finish("/Root 1 0 R/Info 16 0 R"), pdf.Config{})

	e, err := New(doc)
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	return e
}

func TestMetadata(t *testing.T) {
	meta := fixture(t).Metadata(context.Background())
	want := Metadata{
		Version:     "1.7",
		Info:        map[string]string{"Title": "Fixture", "Author": "Tester"},
		Lang:        "en-US",
		Marked:      true,
		Permissions: meta.Permissions,
		PageCount:   2,
		XMP:         []byte("<x:xmpmeta/>"),
	}
	if diff := cmp.Diff(want, meta); diff != "" {
		t.Fatalf("metadata (-want +got):\n%s", diff)
	}
}

func TestPageLabels(t *testing.T) {
	if diff := cmp.Diff([]string{"i", "A-5"}, fixture(t).PageLabels()); diff != "" {
		t.Fatalf("labels (-want +got):\n%s", diff)
	}
}

func TestFormatLabel(t *testing.T) {
	tests := []struct {
		style string
		n     int
		want  string
	}{
		{"D", 12, "12"},
		{"R", 1994, "MCMXCIV"},
		{"r", 4, "iv"},
		{"A", 1, "A"},
		{"A", 28, "BB"},
		{"a", 53, "aaa"},
		{"", 3, ""},
	}
	for _, tt := range tests {
		if got := formatLabel(tt.style, tt.n); got != tt.want {
			t.Errorf("formatLabel(%q, %d) = %q, want %q", tt.style, tt.n, got, tt.want)
		}
	}
}

func TestBookmarksAndTOC(t *testing.T) {
	e := fixture(t)
	want := []Bookmark{{
		Title: "Intro",
		Page:  0,
		Children: []Bookmark{
			{Title: "Named", Page: 1},
			{Title: "Action", Page: 1},
		},
	}}
	if diff := cmp.Diff(want, e.Bookmarks()); diff != "" {
		t.Fatalf("bookmarks (-want +got):\n%s", diff)
	}
	toc := []TOCEntry{
		{Title: "Intro", Page: 0, Label: "i", Depth: 0},
		{Title: "Named", Page: 1, Label: "A-5", Depth: 1},
		{Title: "Action", Page: 1, Label: "A-5", Depth: 1},
	}
	if diff := cmp.Diff(toc, e.TableOfContents()); diff != "" {
		t.Fatalf("toc (-want +got):\n%s", diff)
	}
}

func TestFonts(t *testing.T) {
	want := []FontInfo{
		{ResourceName: "F1", BaseFont: "Helvetica", Subtype: "Type1", Encoding: "WinAnsiEncoding", Pages: []int{0, 1}},
		{ResourceName: "F2", BaseFont: "Times-Roman", Subtype: "Type1", Pages: []int{1}},
	}
	if diff := cmp.Diff(want, fixture(t).Fonts()); diff != "" {
		t.Fatalf("fonts (-want +got):\n%s", diff)
	}
}

func TestAnnotations(t *testing.T) {
	want := []AnnotationInfo{{
		Page:     0,
		Subtype:  "Link",
		Rect:     coords.NewRect(0, 0, 10, 10),
		Contents: "see site",
		URI:      "https://example.com",
	}}
	if diff := cmp.Diff(want, fixture(t).Annotations()); diff != "" {
		t.Fatalf("annotations (-want +got):\n%s", diff)
	}
}

func TestImages(t *testing.T) {
	e := fixture(t)
	images := e.Images()
	want := []ImageAsset{{
		Page:             0,
		ResourceName:     "Im0",
		Width:            1,
		Height:           1,
		BitsPerComponent: 8,
		ColorSpace:       "DeviceGray",
	}}
	want[0].Ref.Num = 5
	if diff := cmp.Diff(want, images, cmpopts.IgnoreUnexported(ImageAsset{})); diff != "" {
		t.Fatalf("images (-want +got):\n%s", diff)
	}
	data, err := e.ImageData(context.Background(), images[0])
	if err != nil || len(data) != 1 || data[0] != 0xff {
		t.Fatalf("image data = %v, %v", data, err)
	}
}

func TestEmbeddedFiles(t *testing.T) {
	files, err := fixture(t).EmbeddedFiles(context.Background())
	if err != nil {
		t.Fatalf("embedded files: %v", err)
	}
	want := []EmbeddedFile{{
		Name:         "attachment.txt",
		FileName:     "attachment.txt",
		Description:  "fixture",
		Relationship: "Data",
		Data:         []byte("embedded"),
	}}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Fatalf("files (-want +got):\n%s", diff)
	}
}

func TestEmbeddedFilesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fixture(t).EmbeddedFiles(ctx); err == nil {
		t.Fatalf("canceled walk succeeded")
	}
}
