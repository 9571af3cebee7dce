package writer

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfcore/cookie"
	"github.com/wudi/pdfcore/internal/pdftest"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/pdf"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/security"
)

// sample is a two-page file with a shared font, a binary stream, an info
// dictionary and one unreferenced object (9).
func sample() []byte {
	b := pdftest.New("1.4")
	b.Obj(1, "<</Type/Catalog/Pages 2 0 R>>")
	b.Obj(2, "<</Type/Pages/Kids[3 0 R 6 0 R]/Count 2>>")
	b.Obj(3, "<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]/Contents 4 0 R/Resources<</Font<</F1 5 0 R>>>>>>")
	b.Stream(4, "", []byte("BT /F1 12 Tf (Hello) Tj ET"))
	b.Obj(5, "<</Type/Font/Subtype/Type1/BaseFont/Helvetica>>")
	b.Obj(6, "<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]/Contents 7 0 R/Resources<</Font<</F1 5 0 R>>>>>>")
	b.Stream(7, "", []byte{'q', 0x00, 0xff, 0x10, '\n', 'Q'})
	b.Obj(8, "<</Title(Sample \\(one\\))/Producer<feff0041>>>")
	b.Obj(9, "(orphan)")
	return b.Finish("/Root 1 0 R/Info 8 0 R")
}

// canonical renders the graph reachable from the trailer with references
// replaced by their breadth-first visit order and streams by their decoded
// bytes, so two documents compare equal modulo renumbering.
func canonical(t *testing.T, doc *pdf.Document) []string {
	t.Helper()
	ctx := context.Background()
	order := map[raw.ObjectRef]int{}
	var queue []raw.ObjectRef
	visit := func(r raw.ObjectRef) raw.Object {
		k, ok := order[r]
		if !ok {
			k = len(order)
			order[r] = k
			queue = append(queue, r)
		}
		return raw.Name(fmt.Sprintf("ref%d", k))
	}
	tr := doc.Trailer()
	for _, key := range []names.ID{names.Root, names.Info} {
		if v, ok := tr.Get(key); ok {
			if r, ok := raw.AsRef(v); ok {
				visit(r)
			}
		}
	}
	var out []string
	for i := 0; i < len(queue); i++ {
		orig := doc.Resolve(raw.RefObj{R: queue[i]})
		obj := plainStrings(raw.Rewrite(raw.Copy(orig), visit))
		st, ok := obj.(*raw.StreamObj)
		if !ok {
			out = append(out, raw.Format(obj))
			continue
		}
		data, err := doc.DecodeStream(ctx, orig.(*raw.StreamObj))
		if err != nil {
			t.Fatalf("decode %s: %v", queue[i], err)
		}
		for _, k := range []names.ID{names.Length, names.Filter, names.DecodeParms} {
			st.Dict.Delete(k)
		}
		out = append(out, raw.Format(st.Dict)+" stream "+hex.EncodeToString(data))
	}
	return out
}

// plainStrings drops the literal/hex distinction, which is an encoding
// choice of the writer.
func plainStrings(o raw.Object) raw.Object {
	switch x := o.(type) {
	case raw.StringObj:
		return raw.Str(x.Bytes)
	case *raw.ArrayObj:
		for i, it := range x.Items {
			x.Items[i] = plainStrings(it)
		}
	case *raw.DictObj:
		for _, k := range x.Keys() {
			v, _ := x.Get(k)
			x.Set(k, plainStrings(v))
		}
	case *raw.StreamObj:
		plainStrings(x.Dict)
	}
	return o
}

func write(t *testing.T, doc *pdf.Document, opt Options) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := Write(context.Background(), doc, &buf, opt); err != nil {
		t.Fatalf("write %+v: %v", opt, err)
	}
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		opt  Options
	}{
		{"plain", Options{}},
		{"compress", Options{Compress: true}},
		{"pretty", Options{Pretty: true}},
		{"ascii", Options{ASCII: true}},
		{"compress+ascii", Options{Compress: true, ASCII: true}},
		{"objstm", Options{ObjectStreams: true}},
		{"collect", Options{Garbage: 1}},
		{"renumber", Options{Garbage: 2, Compress: true}},
		{"dedup", Options{Garbage: 3, ObjectStreams: true}},
		{"linearize", Options{Linearize: true}},
		{"linearize+compress", Options{Linearize: true, Compress: true, Garbage: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := pdftest.Open(t, sample(), pdf.Config{})
			want := canonical(t, src)
			out := write(t, src, tt.opt)
			if line, _, _ := bytes.Cut(out, []byte("\n")); !bytes.HasPrefix(line, []byte("%PDF-1.")) || len(line) != 8 {
				t.Fatalf("header line = %q", line)
			}
			if !bytes.Contains(out[:20], []byte("\n%\xE2\xE3\xCF\xD3\n")) {
				t.Fatalf("missing binary comment: %q", out[:20])
			}
			if !bytes.HasSuffix(out, []byte("%%EOF\n")) {
				t.Fatalf("output does not end with %%%%EOF: %q", out[max(0, len(out)-20):])
			}
			got := pdftest.Open(t, out, pdf.Config{Strict: true})
			if got.Repaired() {
				t.Fatalf("written file needed repair: %v", got.Warnings())
			}
			if diff := cmp.Diff(want, canonical(t, got)); diff != "" {
				t.Fatalf("graph changed (-want +got):\n%s", diff)
			}
			if n := got.CountPages(); n != 2 {
				t.Fatalf("pages = %d", n)
			}
		})
	}
}

func TestGarbageDropsUnreachable(t *testing.T) {
	src := pdftest.Open(t, sample(), pdf.Config{})
	before := src.CountObjects()
	out := write(t, src, Options{Garbage: 2})
	got := pdftest.Open(t, out, pdf.Config{})
	if n := got.CountObjects(); n != before-1 {
		t.Fatalf("objects = %d, want %d", n, before-1)
	}
	if bytes.Contains(out, []byte("orphan")) {
		t.Fatal("unreachable object was written")
	}
}

func TestFilterComposition(t *testing.T) {
	payload := []byte{0, 1, 2, 0xfe, 0xff, 'a', 'b', 'c', '\n'}
	data := pdftest.SinglePage("0 0 m", "/Thumb 5 0 R", func(b *pdftest.Builder) {
		b.Stream(5, "", payload)
	})
	src := pdftest.Open(t, data, pdf.Config{})
	out := write(t, src, Options{Compress: true, ASCII: true})
	got := pdftest.Open(t, out, pdf.Config{})

	page, err := got.LoadPage(0)
	if err != nil {
		t.Fatalf("load page: %v", err)
	}
	thumb, ok := page.Dict.GetKey("Thumb")
	if !ok {
		t.Fatal("thumbnail lost")
	}
	st, ok := raw.AsStream(got.Resolve(thumb))
	if !ok {
		t.Fatalf("thumbnail is %T", got.Resolve(thumb))
	}
	if f := raw.Format(got.Resolve(get(st.Dict, names.Filter))); f != "[/ASCIIHexDecode /FlateDecode]" {
		t.Fatalf("filters = %s", f)
	}
	dec, err := got.DecodeStream(context.Background(), st)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(dec, payload) {
		t.Fatalf("decoded %x, want %x", dec, payload)
	}
}

func TestPrependFilterKeepsParms(t *testing.T) {
	d := raw.DictOf(names.Filter, raw.NameID(names.FlateDecode),
		names.DecodeParms, raw.DictOf(names.Predictor, raw.Int(12)))
	prependFilter(d, names.ASCIIHexDecode)
	if got := raw.Format(d); got != "<</Filter[/ASCIIHexDecode /FlateDecode]/DecodeParms[null <</Predictor 12>>]>>" {
		t.Fatalf("dict = %s", got)
	}
}

func TestEncryptRoundTrip(t *testing.T) {
	for _, m := range []security.Method{security.MethodRC4_40, security.MethodRC4_128, security.MethodAES128, security.MethodAES256} {
		t.Run(m.String(), func(t *testing.T) {
			src := pdftest.Open(t, sample(), pdf.Config{})
			want := canonical(t, src)
			out := write(t, src, Options{Encrypt: true, EncryptMethod: m, UserPassword: "test", OwnerPassword: "owner", Compress: true})
			if bytes.Contains(out, []byte("Hello")) {
				t.Fatal("content stream written in clear")
			}
			got := pdftest.Open(t, out, pdf.Config{})
			if !got.NeedsPassword() {
				t.Fatal("written file does not need a password")
			}
			if !got.Authenticate("test") {
				t.Fatal("user password rejected")
			}
			if diff := cmp.Diff(want, canonical(t, got)); diff != "" {
				t.Fatalf("graph changed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncryptedSourceIsWrittenDecrypted(t *testing.T) {
	src := pdftest.Open(t, sample(), pdf.Config{})
	enc := write(t, src, Options{Encrypt: true, UserPassword: "pw"})

	locked := pdftest.Open(t, enc, pdf.Config{})
	var buf bytes.Buffer
	if err := Write(context.Background(), locked, &buf, Options{}); err == nil {
		t.Fatal("wrote a document that was never authenticated")
	}
	opened := pdftest.Open(t, enc, pdf.Config{Password: "pw"})
	plain := write(t, opened, Options{})
	got := pdftest.Open(t, plain, pdf.Config{})
	if got.Encrypted() {
		t.Fatal("output still encrypted")
	}
	if diff := cmp.Diff(canonical(t, src), canonical(t, got)); diff != "" {
		t.Fatalf("graph changed (-want +got):\n%s", diff)
	}
}

func TestIncrementalAppends(t *testing.T) {
	data := sample()
	doc := pdftest.Open(t, data, pdf.Config{})
	if err := doc.Update(5, raw.DictOf(names.Type, raw.NameID(names.Font),
		names.Subtype, raw.Name("Type1"), names.BaseFont, raw.Name("Courier"))); err != nil {
		t.Fatalf("update: %v", err)
	}
	added, err := doc.NewObject(raw.Str([]byte("added")))
	if err != nil {
		t.Fatalf("new object: %v", err)
	}
	if err := doc.Delete(9); err != nil {
		t.Fatalf("delete: %v", err)
	}

	out := write(t, doc, Options{Incremental: true})
	if !bytes.HasPrefix(out, data) {
		t.Fatal("original bytes were not preserved")
	}
	if n := bytes.Count(out, []byte("startxref")); n != 2 {
		t.Fatalf("startxref count = %d", n)
	}
	got := pdftest.Open(t, out, pdf.Config{Strict: true})
	font, _ := raw.AsDict(got.Object(5, 0))
	if bf := raw.Format(get(font, names.BaseFont)); bf != "/Courier" {
		t.Fatalf("BaseFont = %s", bf)
	}
	if s, _ := raw.AsString(got.Resolve(added)); string(s) != "added" {
		t.Fatalf("new object = %q", s)
	}
	if o, _ := got.Load(9); !raw.IsNull(o) {
		t.Fatalf("deleted object = %s", raw.Format(o))
	}
}

func TestIncrementalAfterXRefStream(t *testing.T) {
	src := pdftest.Open(t, sample(), pdf.Config{})
	packed := write(t, src, Options{ObjectStreams: true})
	doc := pdftest.Open(t, packed, pdf.Config{})
	if _, err := doc.NewObject(raw.Int(42)); err != nil {
		t.Fatalf("new object: %v", err)
	}
	out := write(t, doc, Options{Incremental: true})
	if n := bytes.Count(out, []byte("/Type /XRef")) + bytes.Count(out, []byte("/Type/XRef")); n != 2 {
		t.Fatalf("xref streams = %d", n)
	}
	got := pdftest.Open(t, out, pdf.Config{Strict: true})
	if diff := cmp.Diff(canonical(t, src), canonical(t, got)); diff != "" {
		t.Fatalf("graph changed (-want +got):\n%s", diff)
	}
}

func TestIncrementalWithoutChangesCopies(t *testing.T) {
	data := sample()
	doc := pdftest.Open(t, data, pdf.Config{})
	if out := write(t, doc, Options{Incremental: true}); !bytes.Equal(out, data) {
		t.Fatal("unchanged document was modified")
	}
}

func TestIncrementalRejectsRepaired(t *testing.T) {
	data := sample()
	doc := pdftest.Open(t, data[:bytes.Index(data, []byte("xref"))], pdf.Config{})
	if !doc.Repaired() {
		t.Fatal("truncated file was not repaired")
	}
	var buf bytes.Buffer
	err := Write(context.Background(), doc, &buf, Options{Incremental: true})
	if !errors.Is(err, ErrRepaired) {
		t.Fatalf("err = %v", err)
	}
}

func TestIncompatibleOptions(t *testing.T) {
	doc := pdftest.Open(t, sample(), pdf.Config{})
	for _, opt := range []Options{
		{Incremental: true, Linearize: true},
		{Incremental: true, Garbage: 1},
		{Incremental: true, Encrypt: true},
		{Garbage: 4},
	} {
		var buf bytes.Buffer
		if err := Write(context.Background(), doc, &buf, opt); !errors.Is(err, ErrIncompatible) {
			t.Errorf("Write(%+v) err = %v", opt, err)
		}
	}
}

func TestObjectStreamsPack(t *testing.T) {
	src := pdftest.Open(t, sample(), pdf.Config{})
	out := write(t, src, Options{ObjectStreams: true, Garbage: 1})
	if !bytes.Contains(out, []byte("/ObjStm")) {
		t.Fatal("no object stream written")
	}
	if bytes.Contains(out, []byte("/Catalog")) {
		t.Fatal("catalog written outside the object stream")
	}
	if !bytes.HasPrefix(out, []byte("%PDF-1.5")) {
		t.Fatalf("header = %q", out[:8])
	}
}

func TestLinearizedLayout(t *testing.T) {
	src := pdftest.Open(t, sample(), pdf.Config{})
	out := write(t, src, Options{Linearize: true, Garbage: 1})
	got := pdftest.Open(t, out, pdf.Config{Strict: true})
	if !got.Linearized() {
		t.Fatal("output not recognized as linearized")
	}
	first, err := got.Load(1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	lin, ok := raw.AsDict(first)
	if !ok {
		t.Fatalf("object 1 is %s", raw.Format(first))
	}
	num := func(key names.ID) int64 {
		n, _ := raw.AsInt(get(lin, key))
		return n
	}
	if l := num(names.L); l != int64(len(out)) {
		t.Fatalf("/L = %d, file is %d bytes", l, len(out))
	}
	if n := num(names.N); n != 2 {
		t.Fatalf("/N = %d", n)
	}
	h, _ := raw.AsArray(get(lin, names.H))
	hintAt, _ := raw.AsInt(h.At(0))
	if e := num(names.E); e != hintAt {
		t.Fatalf("/E = %d, hint stream at %d", e, hintAt)
	}
	if !bytes.Contains(out[hintAt:hintAt+16], []byte(" 0 obj")) {
		t.Fatalf("/H does not point at an object: %q", out[hintAt:hintAt+16])
	}
	page, _ := raw.AsDict(got.Object(int(num(names.O)), 0))
	if !raw.IsName(get(page, names.Type), names.Page) {
		t.Fatalf("/O names %s", raw.Format(page))
	}
	if main := num(names.T); !bytes.HasPrefix(out[main:], []byte("xref")) {
		t.Fatalf("/T = %d does not point at the main xref", main)
	}
}

func TestDanglingReferencesBecomeNull(t *testing.T) {
	data := pdftest.SinglePage("0 0 m", "/Thumb 40 0 R", nil)
	src := pdftest.Open(t, data, pdf.Config{})
	out := write(t, src, Options{})
	if bytes.Contains(out, []byte("40 0 R")) {
		t.Fatal("reference to a missing object was written")
	}
}

func TestCookieAbort(t *testing.T) {
	src := pdftest.Open(t, sample(), pdf.Config{})
	c := cookie.New()
	c.Abort()
	var buf bytes.Buffer
	err := Write(context.Background(), src, &buf, Options{Cookie: c})
	if recovery.KindOf(err) != recovery.KindAborted {
		t.Fatalf("err = %v", err)
	}
	if buf.Len() != 0 {
		t.Fatal("partial output written")
	}
}

func TestDeterministicID(t *testing.T) {
	a := write(t, pdftest.Open(t, sample(), pdf.Config{}), Options{Deterministic: true})
	b := write(t, pdftest.Open(t, sample(), pdf.Config{}), Options{Deterministic: true})
	if !bytes.Equal(a, b) {
		t.Fatal("deterministic writes differ")
	}
}
