// Package pdftest builds small PDF files with correct xref offsets for
// tests.
package pdftest

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/wudi/pdfcore/pdf"
)

// Builder writes numbered objects followed by a classic xref table.
type Builder struct {
	buf     bytes.Buffer
	offsets map[int]int64
	max     int
}

// New starts a file with the given header version.
func New(version string) *Builder {
	b := &Builder{offsets: map[int]int64{}}
	fmt.Fprintf(&b.buf, "%%PDF-%s\n", version)
	return b
}

// Obj writes "num 0 obj body endobj".
func (b *Builder) Obj(num int, body string) {
	b.offsets[num] = int64(b.buf.Len())
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
	b.max = max(b.max, num)
}

// Stream writes a stream object. dict holds extra entries; /Length is
// added.
func (b *Builder) Stream(num int, dict string, data []byte) {
	b.offsets[num] = int64(b.buf.Len())
	fmt.Fprintf(&b.buf, "%d 0 obj\n<<%s/Length %d>>\nstream\n", num, dict, len(data))
	b.buf.Write(data)
	b.buf.WriteString("\nendstream\nendobj\n")
	b.max = max(b.max, num)
}

// Finish appends the xref table and the trailer entries, which should
// include /Root, and returns the file.
func (b *Builder) Finish(trailer string) []byte {
	off := b.buf.Len()
	fmt.Fprintf(&b.buf, "xref\n0 %d\n0000000000 65535 f \n", b.max+1)
	for i := 1; i <= b.max; i++ {
		if o, ok := b.offsets[i]; ok {
			fmt.Fprintf(&b.buf, "%010d 00000 n \n", o)
		} else {
			b.buf.WriteString("0000000000 00001 f \n")
		}
	}
	if trailer == "" {
		trailer = "/Root 1 0 R"
	}
	fmt.Fprintf(&b.buf, "trailer\n<</Size %d%s>>\nstartxref\n%d\n%%%%EOF\n", b.max+1, trailer, off)
	return b.buf.Bytes()
}

// SinglePage returns a one-page document whose page content is content and
// whose page dictionary carries extra entries. Objects 1..4 are used;
// further objects may be appended by more.
func SinglePage(content string, extra string, more func(b *Builder)) []byte {
	b := New("1.7")
	b.Obj(1, "<</Type/Catalog/Pages 2 0 R>>")
	b.Obj(2, "<</Type/Pages/Kids[3 0 R]/Count 1>>")
	b.Obj(3, "<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]/Contents 4 0 R"+extra+">>")
	b.Stream(4, "", []byte(content))
	if more != nil {
		more(b)
	}
	return b.Finish("/Root 1 0 R")
}

// Open opens data and drops the document when the test ends.
func Open(t testing.TB, data []byte, cfg pdf.Config) *pdf.Document {
	t.Helper()
	doc, err := pdf.OpenBytes(context.Background(), data, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { doc.Drop() })
	return doc
}

// Page opens data and loads page k.
func Page(t testing.TB, data []byte, k int) (*pdf.Document, *pdf.Page) {
	t.Helper()
	doc := Open(t, data, pdf.Config{})
	p, err := doc.LoadPage(k)
	if err != nil {
		t.Fatalf("load page %d: %v", k, err)
	}
	return doc, p
}
