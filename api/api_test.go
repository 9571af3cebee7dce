package api

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfcore/coords"
	"github.com/wudi/pdfcore/internal/pdftest"
	"github.com/wudi/pdfcore/pdf"
	"github.com/wudi/pdfcore/security"
	"github.com/wudi/pdfcore/writer"
)

func textFile() []byte {
	return pdftest.SinglePage("BT /F1 12 Tf 72 720 Td (Hello) Tj ET", "/Resources<</Font<</F1 5 0 R>>>>", func(b *pdftest.Builder) {
		b.Obj(5, "<</Type/Font/Subtype/Type1/BaseFont/Helvetica>>")
	})
}

func open(t *testing.T, c *Context, data []byte) Handle {
	t.Helper()
	var h Handle
	if code := c.OpenMemory(context.Background(), data, &h); code != OK {
		t.Fatalf("open: %v: %s", code, c.CaughtMessage())
	}
	t.Cleanup(func() { c.DropDocument(h) })
	return h
}

func loadPage(t *testing.T, c *Context, doc Handle, k int) Handle {
	t.Helper()
	var h Handle
	if code := c.LoadPage(doc, k, &h); code != OK {
		t.Fatalf("load page %d: %v: %s", k, code, c.CaughtMessage())
	}
	return h
}

func TestOpenAndMediaBox(t *testing.T) {
	c := NewContext(pdf.Config{})
	doc := open(t, c, textFile())
	if n := c.CountPages(doc); n != 1 {
		t.Fatalf("count_pages = %d", n)
	}
	var box coords.Rect
	if code := c.PageMediaBox(loadPage(t, c, doc, 0), &box); code != OK {
		t.Fatalf("mediabox: %v", code)
	}
	if diff := cmp.Diff(coords.NewRect(0, 0, 612, 792), box); diff != "" {
		t.Fatalf("mediabox (-want +got):\n%s", diff)
	}
	if c.HasError() {
		t.Fatalf("unexpected error: %s", c.CaughtMessage())
	}
}

func TestCodes(t *testing.T) {
	c := NewContext(pdf.Config{})
	doc := open(t, c, textFile())
	var h Handle
	var text string

	tests := []struct {
		name string
		call func() Code
		want Code
	}{
		{"zero document", func() Code { return c.LoadPage(0, 0, &h) }, NullParameter},
		{"unknown document", func() Code { return c.LoadPage(99, 0, &h) }, NullParameter},
		{"nil out", func() Code { return c.LoadPage(doc, 0, nil) }, OutParameterNull},
		{"page past end", func() Code { return c.LoadPage(doc, 1, &h) }, OutOfRange},
		{"negative page", func() Code { return c.LoadPage(doc, -1, &h) }, OutOfRange},
		{"missing file", func() Code {
			return c.OpenDocument(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), &h)
		}, FileOpenFailed},
		{"not a pdf", func() Code { return c.OpenMemory(context.Background(), []byte("hello"), &h) }, FileOpenFailed},
		{"empty path", func() Code { return c.OpenDocument(context.Background(), "", &h) }, NullParameter},
		{"zero page", func() Code { return c.ExtractText(context.Background(), 0, &text) }, NullParameter},
		{"gc level", func() Code { return c.GarbageCollect(doc, 7) }, OutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.IgnoreError()
			if got := tt.call(); got != tt.want {
				t.Fatalf("code = %v, want %v", got, tt.want)
			}
			if tt.want != OutParameterNull && !c.HasError() {
				t.Fatalf("no error recorded")
			}
		})
	}
	if n := c.CountPages(0); n != -1 {
		t.Fatalf("count_pages(0) = %d", n)
	}
}

func TestRethrowOnce(t *testing.T) {
	c := NewContext(pdf.Config{})
	var h Handle
	c.LoadPage(0, 0, &h)
	if !strings.Contains(c.CaughtMessage(), "null handle") {
		t.Fatalf("message = %q", c.CaughtMessage())
	}
	if c.Rethrow() == nil {
		t.Fatalf("rethrow returned nil")
	}
	if c.HasError() || c.Rethrow() != nil {
		t.Fatalf("error surfaced twice")
	}
}

func TestExtractTextNeedsPassword(t *testing.T) {
	plain := pdftest.Open(t, textFile(), pdf.Config{})
	var buf bytes.Buffer
	err := writer.Write(context.Background(), plain, &buf, writer.Options{
		Encrypt:       true,
		EncryptMethod: security.MethodAES128,
		UserPassword:  "test",
		OwnerPassword: "owner",
	})
	if err != nil {
		t.Fatalf("write encrypted: %v", err)
	}

	c := NewContext(pdf.Config{})
	doc := open(t, c, buf.Bytes())
	if c.NeedsPassword(doc) != 1 {
		t.Fatalf("document does not need a password")
	}
	page := loadPage(t, c, doc, 0)

	text := "stale"
	if code := c.ExtractText(context.Background(), page, &text); code != OperationFailed {
		t.Fatalf("extract before auth: %v", code)
	}
	if text != "" {
		t.Fatalf("text before auth = %q", text)
	}
	c.IgnoreError()

	if code := c.AuthenticatePassword(doc, "wrong"); code != OperationFailed {
		t.Fatalf("wrong password: %v", code)
	}
	if code := c.AuthenticatePassword(doc, "test"); code != OK {
		t.Fatalf("authenticate: %v", code)
	}
	if code := c.ExtractText(context.Background(), page, &text); code != OK {
		t.Fatalf("extract after auth: %v: %s", code, c.CaughtMessage())
	}
	if !strings.Contains(text, "Hello") {
		t.Fatalf("text = %q", text)
	}
}

func TestGarbageCollect(t *testing.T) {
	b := pdftest.New("1.7")
	b.Obj(1, "<</Type/Catalog/Pages 2 0 R/Extra 4 0 R>>")
	b.Obj(2, "<</Type/Pages/Kids[3 0 R]/Count 1>>")
	b.Obj(3, "<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]>>")
	var refs strings.Builder
	for n := 5; n <= 100; n++ {
		if n%10 >= 7 {
			continue
		}
		fmt.Fprintf(&refs, "%d 0 R ", n)
	}
	b.Obj(4, "["+refs.String()+"]")
	for n := 5; n <= 100; n++ {
		b.Obj(n, fmt.Sprintf("(object %d)", n))
	}
	data := b.Finish("/Root 1 0 R")

	c := NewContext(pdf.Config{})
	doc := open(t, c, data)
	if n := c.CountObjects(doc); n != 100 {
		t.Fatalf("count_objects = %d", n)
	}
	if code := c.GarbageCollect(doc, 1); code != OK {
		t.Fatalf("gc(1): %v", code)
	}
	if n := c.CountObjects(doc); n != 70 {
		t.Fatalf("count_objects after gc(1) = %d, want 70", n)
	}
	if code := c.GarbageCollect(doc, 2); code != OK {
		t.Fatalf("gc(2): %v", code)
	}
	d, _ := c.Document(doc)
	if got := d.Size(); got != 71 {
		t.Fatalf("size after gc(2) = %d, want 71", got)
	}
	if c.CountPages(doc) != 1 {
		t.Fatalf("page tree lost")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	c := NewContext(pdf.Config{})
	doc := open(t, c, textFile())

	var out []byte
	if code := c.SaveMemory(context.Background(), doc, writer.Options{Garbage: 1, Compress: true}, nil); code != OutParameterNull {
		t.Fatalf("nil out: %v", code)
	}
	if code := c.SaveMemory(context.Background(), doc, writer.Options{Garbage: 1, Compress: true}, &out); code != OK {
		t.Fatalf("save: %v: %s", code, c.CaughtMessage())
	}
	path := filepath.Join(t.TempDir(), "out.pdf")
	if code := c.Save(context.Background(), doc, path, writer.Options{}); code != OK {
		t.Fatalf("save file: %v: %s", code, c.CaughtMessage())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat: %v", err)
	}

	var again Handle
	if code := c.OpenDocument(context.Background(), path, &again); code != OK {
		t.Fatalf("reopen: %v: %s", code, c.CaughtMessage())
	}
	defer c.DropDocument(again)
	for _, h := range []Handle{again, open(t, c, out)} {
		var text string
		if code := c.ExtractText(context.Background(), loadPage(t, c, h, 0), &text); code != OK {
			t.Fatalf("extract: %v", code)
		}
		if !strings.Contains(text, "Hello") {
			t.Fatalf("text = %q", text)
		}
	}
}

func TestCloneAndDrop(t *testing.T) {
	c := NewContext(pdf.Config{})
	var doc Handle
	if code := c.OpenMemory(context.Background(), textFile(), &doc); code != OK {
		t.Fatalf("open: %v", code)
	}
	var clone Handle
	if code := c.CloneDocument(doc, &clone); code != OK {
		t.Fatalf("clone: %v", code)
	}
	page := loadPage(t, c, doc, 0)
	if code := c.DropDocument(doc); code != OK {
		t.Fatalf("drop: %v", code)
	}
	var box coords.Rect
	if code := c.PageBounds(page, &box); code != NullParameter {
		t.Fatalf("page of dropped document: %v", code)
	}
	if n := c.CountPages(clone); n != 1 {
		t.Fatalf("clone pages = %d", n)
	}
	if code := c.DropDocument(clone); code != OK {
		t.Fatalf("drop clone: %v", code)
	}
	if code := c.DropDocument(clone); code != NullParameter {
		t.Fatalf("double drop: %v", code)
	}
}
