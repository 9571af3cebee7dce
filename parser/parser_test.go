package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/xref"
)

// pdfBuilder writes numbered objects and a classic xref with real offsets.
type pdfBuilder struct {
	buf     bytes.Buffer
	offsets map[int]int64
	max     int
}

func newBuilder(t *testing.T) *pdfBuilder {
	t.Helper()
	b := &pdfBuilder{offsets: map[int]int64{}}
	b.buf.WriteString("%PDF-1.7\n")
	return b
}

func (b *pdfBuilder) obj(num int, body string) {
	b.offsets[num] = int64(b.buf.Len())
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
	if num > b.max {
		b.max = num
	}
}

// xref writes a table covering 0..max and returns its offset.
func (b *pdfBuilder) xref(trailer string) int64 {
	off := int64(b.buf.Len())
	fmt.Fprintf(&b.buf, "xref\n0 %d\n0000000000 65535 f \n", b.max+1)
	for i := 1; i <= b.max; i++ {
		if o, ok := b.offsets[i]; ok {
			fmt.Fprintf(&b.buf, "%010d 00000 n \n", o)
		} else {
			b.buf.WriteString("0000000000 00001 f \n")
		}
	}
	fmt.Fprintf(&b.buf, "trailer\n<<%s>>\n", trailer)
	return off
}

func (b *pdfBuilder) finish(startxref int64) []byte {
	fmt.Fprintf(&b.buf, "startxref\n%d\n%%%%EOF\n", startxref)
	return b.buf.Bytes()
}

func simplePDF(t *testing.T) []byte {
	t.Helper()
	b := newBuilder(t)
	b.obj(1, "<</Type/Catalog/Pages 2 0 R>>")
	b.obj(2, "<</Type/Pages/Kids[3 0 R]/Count 1>>")
	b.obj(3, "<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]>>")
	off := b.xref("/Size 4/Root 1 0 R")
	return b.finish(off)
}

func parseOne(t *testing.T, src string) raw.Object {
	t.Helper()
	obj, err := New([]byte(src), Config{}).ParseObject()
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return obj
}

func TestParseObjectKinds(t *testing.T) {
	arr, ok := parseOne(t, "[1 2 0 R /Name (str) <414243> true null 3.5 -7]").(*raw.ArrayObj)
	if !ok {
		t.Fatalf("expected array")
	}
	if arr.Len() != 9 {
		t.Fatalf("got %d items, want 9", arr.Len())
	}
	if n, _ := raw.AsInt(arr.Items[0]); n != 1 {
		t.Errorf("item 0 = %v", arr.Items[0])
	}
	if ref, ok := raw.AsRef(arr.Items[1]); !ok || ref.Num != 2 || ref.Gen != 0 {
		t.Errorf("item 1 = %v, want 2 0 R", arr.Items[1])
	}
	if !raw.IsName(arr.Items[2], names.Default().Intern("Name")) {
		t.Errorf("item 2 = %v", arr.Items[2])
	}
	if s, _ := raw.AsString(arr.Items[3]); string(s) != "str" {
		t.Errorf("item 3 = %q", s)
	}
	if s, _ := arr.Items[4].(raw.StringObj); string(s.Bytes) != "ABC" || !s.Hex {
		t.Errorf("item 4 = %+v", arr.Items[4])
	}
	if b, _ := raw.AsBool(arr.Items[5]); !b {
		t.Errorf("item 5 = %v", arr.Items[5])
	}
	if !raw.IsNull(arr.Items[6]) {
		t.Errorf("item 6 = %v", arr.Items[6])
	}
	if f, _ := raw.AsFloat(arr.Items[7]); f != 3.5 {
		t.Errorf("item 7 = %v", f)
	}
	if n, _ := raw.AsInt(arr.Items[8]); n != -7 {
		t.Errorf("item 8 = %v", n)
	}
}

func TestParseDictKeepsKeyOrder(t *testing.T) {
	d, ok := parseOne(t, "<</Zeta 1/Alpha 2/Mid<</Inner[1 2]>>>>").(*raw.DictObj)
	if !ok {
		t.Fatalf("expected dict")
	}
	var got []string
	for _, k := range d.Keys() {
		got = append(got, names.Default().String(k))
	}
	if strings.Join(got, ",") != "Zeta,Alpha,Mid" {
		t.Fatalf("key order = %v", got)
	}
}

func TestParseIntegerNotReference(t *testing.T) {
	arr := parseOne(t, "[1 2 3]").(*raw.ArrayObj)
	if arr.Len() != 3 {
		t.Fatalf("got %d items, want 3", arr.Len())
	}
	for _, it := range arr.Items {
		if _, isRef := it.(raw.RefObj); isRef {
			t.Fatalf("unexpected reference in %v", arr.Items)
		}
	}
}

func TestNestingLimit(t *testing.T) {
	src := strings.Repeat("[", maxNesting+10)
	_, err := New([]byte(src), Config{}).ParseObject()
	if !errors.Is(err, recovery.ErrLimit) {
		t.Fatalf("got %v, want limit error", err)
	}
}

func TestArraySizeLimit(t *testing.T) {
	cfg := Config{}
	cfg.Limits.MaxArraySize = 3
	_, err := New([]byte("[1 2 3 4 5]"), cfg).ParseObject()
	if !errors.Is(err, recovery.ErrLimit) {
		t.Fatalf("got %v, want limit error", err)
	}
}

func TestParseIndirectStream(t *testing.T) {
	src := "7 0 obj\n<</Length 5>>\nstream\nhello\nendstream\nendobj\n"
	p := New([]byte(src), Config{})
	ind, err := p.ParseIndirect(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ind.Num != 7 || ind.Gen != 0 {
		t.Fatalf("header = %d %d", ind.Num, ind.Gen)
	}
	st, ok := ind.Obj.(*raw.StreamObj)
	if !ok {
		t.Fatalf("expected stream, got %T", ind.Obj)
	}
	if got := string(Payload([]byte(src), st)); got != "hello" {
		t.Fatalf("payload = %q", got)
	}
	if st.Ref.Num != 7 {
		t.Fatalf("stream ref = %v", st.Ref)
	}
	if ind.End != int64(len(src)-1) {
		t.Fatalf("end = %d, want %d", ind.End, len(src)-1)
	}
}

func TestIndirectLengthResolved(t *testing.T) {
	src := "4 0 obj\n<</Length 9 0 R>>\nstream\nabcd\nendstream\nendobj\n"
	lengths := func(ref raw.ObjectRef) (int64, bool) {
		if ref.Num == 9 {
			return 4, true
		}
		return 0, false
	}
	state := recovery.NewState(false)
	ind, err := New([]byte(src), Config{Recovery: state}).ParseIndirect(lengths)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := string(Payload([]byte(src), ind.Obj.(*raw.StreamObj))); got != "abcd" {
		t.Fatalf("payload = %q", got)
	}
	if w := state.Warnings(); len(w) != 0 {
		t.Fatalf("unexpected warnings %v", w)
	}
}

func TestWrongStreamLengthRepaired(t *testing.T) {
	src := "1 0 obj\n<</Length 100>>\nstream\nabc\nendstream\nendobj\n"
	state := recovery.NewState(false)
	ind, err := New([]byte(src), Config{Recovery: state}).ParseIndirect(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	st := ind.Obj.(*raw.StreamObj)
	if got := string(Payload([]byte(src), st)); got != "abc" {
		t.Fatalf("payload = %q", got)
	}
	if n, _ := raw.AsInt(get(st.Dict, names.Length)); n != 3 {
		t.Fatalf("/Length = %d, want 3", n)
	}
	w := state.Warnings()
	if len(w) != 1 || !strings.HasPrefix(w[0], "repair:") {
		t.Fatalf("warnings = %v", w)
	}

	_, err = New([]byte(src), Config{Recovery: recovery.NewState(true)}).ParseIndirect(nil)
	if !errors.Is(err, recovery.ErrSyntax) {
		t.Fatalf("strict parse: got %v, want syntax error", err)
	}
}

func TestHeaderAndStartXRef(t *testing.T) {
	data := simplePDF(t)
	v, off, err := Header(data)
	if err != nil || v != "1.7" || off != 0 {
		t.Fatalf("header = %q %d %v", v, off, err)
	}
	junk := append([]byte("garbage\n"), data...)
	if _, off, err := Header(junk); err != nil || off != 8 {
		t.Fatalf("header after junk = %d %v", off, err)
	}
	if _, _, err := Header([]byte("not a pdf")); !errors.Is(err, recovery.ErrSyntax) {
		t.Fatalf("missing header: %v", err)
	}
	sx, err := FindStartXRef(data)
	if err != nil {
		t.Fatalf("startxref: %v", err)
	}
	if !bytes.HasPrefix(data[sx:], []byte("xref")) {
		t.Fatalf("startxref %d does not point at xref", sx)
	}
	if _, err := FindStartXRef([]byte("%PDF-1.4\n")); err == nil {
		t.Fatalf("expected error without startxref")
	}
}

func TestHasBinaryMarker(t *testing.T) {
	if !HasBinaryMarker([]byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")) {
		t.Fatalf("marker not detected")
	}
	if HasBinaryMarker([]byte("%PDF-1.7\n1 0 obj\n")) {
		t.Fatalf("false marker")
	}
}

func TestParseClassicXRef(t *testing.T) {
	data := simplePDF(t)
	sx, _ := FindStartXRef(data)
	tbl, err := New(data, Config{}).ParseXRef(context.Background(), sx, 0)
	if err != nil {
		t.Fatalf("xref: %v", err)
	}
	if tbl.Size() != 4 {
		t.Fatalf("size = %d", tbl.Size())
	}
	for num := 1; num <= 3; num++ {
		e, ok := tbl.Lookup(num)
		if !ok || e.Kind != xref.InUse {
			t.Fatalf("entry %d = %+v", num, e)
		}
		p := New(data, Config{})
		p.Seek(e.Offset)
		ind, err := p.ParseIndirect(nil)
		if err != nil || ind.Num != num {
			t.Fatalf("object %d at %d: %v", num, e.Offset, err)
		}
	}
	if e, _ := tbl.Lookup(0); e.Kind != xref.Free {
		t.Fatalf("entry 0 = %+v", e)
	}
	if ref, ok := raw.AsRef(get(tbl.Trailer(), names.Root)); !ok || ref.Num != 1 {
		t.Fatalf("root = %v", get(tbl.Trailer(), names.Root))
	}
	if tbl.Repaired() {
		t.Fatalf("table marked repaired")
	}
}

func TestParseXRefPrevChain(t *testing.T) {
	b := newBuilder(t)
	b.obj(1, "<</Type/Catalog/Pages 2 0 R>>")
	b.obj(2, "<</Type/Pages/Kids[]/Count 0>>")
	first := b.xref("/Size 3/Root 1 0 R")
	fmt.Fprintf(&b.buf, "startxref\n%d\n%%%%EOF\n", first)

	// Incremental update replacing object 2.
	off2 := int64(b.buf.Len())
	b.buf.WriteString("2 0 obj\n<</Type/Pages/Kids[]/Count 0/Updated true>>\nendobj\n")
	second := int64(b.buf.Len())
	fmt.Fprintf(&b.buf, "xref\n2 1\n%010d 00000 n \ntrailer\n<</Size 3/Root 1 0 R/Prev %d>>\n", off2, first)
	data := b.finish(second)

	tbl, err := New(data, Config{}).ParseXRef(context.Background(), second, 0)
	if err != nil {
		t.Fatalf("xref: %v", err)
	}
	if len(tbl.Sections()) != 2 {
		t.Fatalf("sections = %d", len(tbl.Sections()))
	}
	e, _ := tbl.Lookup(2)
	if e.Offset != off2 {
		t.Fatalf("object 2 offset = %d, want %d", e.Offset, off2)
	}
	if e, _ := tbl.Lookup(1); e.Offset != b.offsets[1] {
		t.Fatalf("object 1 offset = %d, want %d", e.Offset, b.offsets[1])
	}
	if tbl.Trailer().Has(names.Prev) {
		t.Fatalf("merged trailer keeps /Prev")
	}
}

func TestParseXRefPrevLoop(t *testing.T) {
	b := newBuilder(t)
	b.obj(1, "<</Type/Catalog>>")
	off := int64(b.buf.Len())
	fmt.Fprintf(&b.buf, "xref\n0 2\n0000000000 65535 f \n%010d 00000 n \ntrailer\n<</Size 2/Root 1 0 R/Prev %d>>\n", b.offsets[1], off)
	data := b.finish(off)

	state := recovery.NewState(false)
	tbl, err := New(data, Config{Recovery: state}).ParseXRef(context.Background(), off, 0)
	if err != nil {
		t.Fatalf("xref: %v", err)
	}
	if len(tbl.Sections()) != 1 || len(state.Warnings()) != 1 {
		t.Fatalf("sections = %d warnings = %v", len(tbl.Sections()), state.Warnings())
	}
}

// xrefRow encodes one /W [1 2 1] row.
func xrefRow(typ byte, f2 int, f3 byte) string {
	return string([]byte{typ, byte(f2 >> 8), byte(f2), f3})
}

func objStmBody(members map[int]string, order []int) (string, int) {
	var header, body strings.Builder
	for _, num := range order {
		fmt.Fprintf(&header, "%d %d ", num, body.Len())
		body.WriteString(members[num])
		body.WriteString(" ")
	}
	first := header.Len()
	return header.String() + body.String(), first
}

func TestParseXRefStreamWithObjStm(t *testing.T) {
	b := newBuilder(t)
	b.obj(1, "<</Type/Catalog/Pages 2 0 R>>")
	content, first := objStmBody(map[int]string{2: "<</Type/Pages/Kids[]/Count 0>>", 3: "[1 2 3]"}, []int{2, 3})
	b.obj(4, fmt.Sprintf("<</Type/ObjStm/N 2/First %d/Length %d>>\nstream\n%s\nendstream", first, len(content), content))

	rows := xrefRow(0, 0, 0xff) +
		xrefRow(1, int(b.offsets[1]), 0) +
		xrefRow(2, 4, 0) +
		xrefRow(2, 4, 1) +
		xrefRow(1, int(b.offsets[4]), 0)
	xoff := int64(b.buf.Len())
	b.obj(5, fmt.Sprintf("<</Type/XRef/Size 6/W[1 2 1]/Index[0 5]/Root 1 0 R/Length %d>>\nstream\n%s\nendstream", len(rows), rows))
	data := b.finish(xoff)

	tbl, err := New(data, Config{}).ParseXRef(context.Background(), xoff, 0)
	if err != nil {
		t.Fatalf("xref: %v", err)
	}
	e, _ := tbl.Lookup(3)
	if e.Kind != xref.Compressed || e.Offset != 4 || e.Index != 1 {
		t.Fatalf("entry 3 = %+v", e)
	}
	if e, _ := tbl.Lookup(1); e.Kind != xref.InUse || e.Offset != b.offsets[1] {
		t.Fatalf("entry 1 = %+v", e)
	}

	// Load the compressed member through the object stream.
	p := New(data, Config{})
	p.Seek(b.offsets[4])
	ind, err := p.ParseIndirect(nil)
	if err != nil {
		t.Fatalf("objstm: %v", err)
	}
	payload := Payload(data, ind.Obj.(*raw.StreamObj))
	idx, err := ParseObjStmIndex(payload, 2, first, 0)
	if err != nil || len(idx) != 2 || idx[1].Num != 3 {
		t.Fatalf("index = %v %v", idx, err)
	}
	obj, err := ParseObjStmObject(payload, first, idx[1].Offset, Config{})
	if err != nil {
		t.Fatalf("member: %v", err)
	}
	if arr, ok := obj.(*raw.ArrayObj); !ok || arr.Len() != 3 {
		t.Fatalf("member = %v", obj)
	}
}

func TestParseHybridXRef(t *testing.T) {
	b := newBuilder(t)
	b.obj(1, "<</Type/Catalog/Pages 2 0 R>>")
	b.obj(2, "<</Type/Pages/Kids[]/Count 0>>")
	content, first := objStmBody(map[int]string{3: "(hidden)"}, []int{3})
	b.obj(4, fmt.Sprintf("<</Type/ObjStm/N 1/First %d/Length %d>>\nstream\n%s\nendstream", first, len(content), content))
	rows := xrefRow(2, 4, 0)
	stmOff := int64(b.buf.Len())
	b.obj(5, fmt.Sprintf("<</Type/XRef/Size 6/W[1 2 1]/Index[3 1]/Length %d>>\nstream\n%s\nendstream", len(rows), rows))
	off := b.xref(fmt.Sprintf("/Size 6/Root 1 0 R/XRefStm %d", stmOff))
	data := b.finish(off)

	tbl, err := New(data, Config{}).ParseXRef(context.Background(), off, 0)
	if err != nil {
		t.Fatalf("xref: %v", err)
	}
	// The classic table lists 3 as free; the hybrid stream takes over.
	e, _ := tbl.Lookup(3)
	if e.Kind != xref.Compressed || e.Offset != 4 {
		t.Fatalf("entry 3 = %+v", e)
	}
}

func TestParseXRefMissingRoot(t *testing.T) {
	b := newBuilder(t)
	b.obj(1, "<</Type/Catalog>>")
	off := b.xref("/Size 2")
	data := b.finish(off)
	if _, err := New(data, Config{}).ParseXRef(context.Background(), off, 0); !errors.Is(err, recovery.ErrSyntax) {
		t.Fatalf("got %v, want syntax error", err)
	}
}

func TestRepairTruncatedFile(t *testing.T) {
	data := simplePDF(t)
	// Cut inside the endobj of object 2; the xref and trailer are gone.
	cut := bytes.Index(data, []byte("3 0 obj")) - 5
	truncated := data[:cut]

	state := recovery.NewState(false)
	tbl, err := New(truncated, Config{Recovery: state}).Repair(context.Background())
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if !tbl.Repaired() {
		t.Fatalf("table not marked repaired")
	}
	for _, num := range []int{1, 2} {
		if e, ok := tbl.Lookup(num); !ok || e.Kind != xref.InUse {
			t.Fatalf("entry %d = %+v", num, e)
		}
	}
	if e, _ := tbl.Lookup(3); e.Live() {
		t.Fatalf("entry 3 should be missing: %+v", e)
	}
	if ref, ok := raw.AsRef(get(tbl.Trailer(), names.Root)); !ok || ref.Num != 1 {
		t.Fatalf("synthesized root = %v", get(tbl.Trailer(), names.Root))
	}
	w := state.Warnings()
	if len(w) != 1 || !strings.HasPrefix(w[0], "repair:") {
		t.Fatalf("warnings = %v", w)
	}
	if state.HasError() {
		t.Fatalf("repair recorded an error")
	}
}

func TestRepairPrefersLaterDefinitionAndTrailer(t *testing.T) {
	src := "%PDF-1.4\n" +
		"1 0 obj\n<</Type/Catalog/Pages 2 0 R>>\nendobj\n" +
		"2 0 obj\n<</Type/Pages/Count 0>>\nendobj\n" +
		"2 0 obj\n<</Type/Pages/Count 0/Second true>>\nendobj\n" +
		"9 0 obj\n<</Length 20>>\nstream\n5 0 obj fake endobj\nendstream\nendobj\n" +
		"trailer\n<</Size 10/Root 1 0 R/Info 8 0 R>>\n"
	data := []byte(src)
	tbl, err := New(data, Config{Recovery: recovery.NewState(false)}).Repair(context.Background())
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	e, _ := tbl.Lookup(2)
	if want := int64(strings.LastIndex(src, "2 0 obj")); e.Offset != want {
		t.Fatalf("object 2 offset = %d, want %d", e.Offset, want)
	}
	if e, _ := tbl.Lookup(5); e.Live() {
		t.Fatalf("header inside stream data was indexed: %+v", e)
	}
	if tbl.Trailer().Has(names.Info) {
		t.Fatalf("dangling /Info kept")
	}
	if n, _ := raw.AsInt(get(tbl.Trailer(), names.Size)); n != 10 {
		t.Fatalf("/Size = %d, want 10", n)
	}
}

func TestRepairIndexesObjectStreams(t *testing.T) {
	content, first := objStmBody(map[int]string{6: "<</Type/Catalog/Pages 7 0 R>>", 7: "<</Type/Pages/Count 0>>"}, []int{6, 7})
	src := fmt.Sprintf("%%PDF-1.5\n3 0 obj\n<</Type/ObjStm/N 2/First %d/Length %d>>\nstream\n%s\nendstream\nendobj\n", first, len(content), content)
	tbl, err := New([]byte(src), Config{Recovery: recovery.NewState(false)}).Repair(context.Background())
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	e, _ := tbl.Lookup(7)
	if e.Kind != xref.Compressed || e.Offset != 3 || e.Index != 1 {
		t.Fatalf("entry 7 = %+v", e)
	}
	if e, _ := tbl.Lookup(3); e.Kind != xref.ObjStm {
		t.Fatalf("host entry = %+v", e)
	}
	if ref, ok := raw.AsRef(get(tbl.Trailer(), names.Root)); !ok || ref.Num != 6 {
		t.Fatalf("root = %v, want the compressed catalog", get(tbl.Trailer(), names.Root))
	}
}

func TestRepairStrictFails(t *testing.T) {
	data := simplePDF(t)[:100]
	_, err := New(data, Config{Recovery: recovery.NewState(true)}).Repair(context.Background())
	if !errors.Is(err, recovery.ErrSyntax) {
		t.Fatalf("got %v, want syntax error", err)
	}
}

func TestRepairNoObjects(t *testing.T) {
	_, err := New([]byte("%PDF-1.4\nnothing here"), Config{Recovery: recovery.NewState(false)}).Repair(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestObjStmIndexShortHeader(t *testing.T) {
	data := []byte("10 0 11 4 (a) (b)")
	idx, err := ParseObjStmIndex(data, 5, 10, 0)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if len(idx) != 2 {
		t.Fatalf("got %d members, want 2", len(idx))
	}
	if _, err := ParseObjStmIndex(data, 5, 10, 3); !errors.Is(err, recovery.ErrLimit) {
		t.Fatalf("limit: %v", err)
	}
}

func TestLinearization(t *testing.T) {
	src := "%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<</Linearized 1/L 1000/N 1>>\nendobj\n"
	d, ok := New([]byte(src), Config{}).Linearization()
	if !ok {
		t.Fatalf("linearization dict not found")
	}
	if n, _ := raw.AsInt(get(d, names.N)); n != 1 {
		t.Fatalf("/N = %d", n)
	}
	if _, ok := New(simplePDF(t), Config{}).Linearization(); ok {
		t.Fatalf("plain file reported linearized")
	}
}
