package raw

import (
	"fmt"
	"testing"

	"github.com/wudi/pdfcore/names"
)

func TestDictKeepsInsertionOrder(t *testing.T) {
	d := NewDict()
	d.Set(names.Type, Name("Page"))
	d.SetKey("Zeta", Int(1))
	d.SetKey("Alpha", Int(2))
	keys := d.Keys()
	want := []string{"Type", "Zeta", "Alpha"}
	for i, k := range keys {
		if got := names.Default().String(k); got != want[i] {
			t.Fatalf("key %d: expected %s, got %s", i, want[i], got)
		}
	}
}

func TestDictNullDeletes(t *testing.T) {
	d := DictOf("A", Int(1), "B", Int(2))
	d.SetKey("A", Null)
	if _, ok := d.GetKey("A"); ok {
		t.Fatalf("expected A removed")
	}
	if d.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", d.Len())
	}
}

func TestDictSwitchesToIndex(t *testing.T) {
	d := NewDict()
	for i := 0; i < 20; i++ {
		d.SetKey(fmt.Sprintf("K%d", i), Int(int64(i)))
	}
	if !d.Indexed() {
		t.Fatalf("expected hash index above threshold")
	}
	v, ok := d.GetKey("K17")
	if n, _ := AsInt(v); !ok || n != 17 {
		t.Fatalf("expected 17, got %v", v)
	}
	for i := 0; i < 10; i++ {
		d.SetKey(fmt.Sprintf("K%d", i), Null)
	}
	if d.Indexed() {
		t.Fatalf("expected index dropped below threshold")
	}
	if v, _ := d.GetKey("K12"); v == nil {
		t.Fatalf("lost K12 after deletions")
	}
	if first := names.Default().String(d.Keys()[0]); first != "K10" {
		t.Fatalf("expected K10 first, got %s", first)
	}
}

func TestRealIsFloat32(t *testing.T) {
	n := Real(0.1)
	if n.Float() == 0.1 {
		t.Fatalf("expected float32 rounding, got exact %v", n.Float())
	}
	if n.Kind() != KindReal {
		t.Fatalf("expected real kind")
	}
}

func TestEqualAndCopy(t *testing.T) {
	a := DictOf("Kids", NewArray(Ref(3, 0), Ref(4, 0)), "Count", Int(2))
	b := Copy(a)
	if !Equal(a, b) {
		t.Fatalf("copy not equal")
	}
	b.(*DictObj).SetKey("Count", Int(3))
	if Equal(a, b) {
		t.Fatalf("mutating copy changed original comparison")
	}
}

func TestRewriteRefs(t *testing.T) {
	a := DictOf("P", Ref(1, 0), "K", NewArray(Ref(2, 0), Ref(9, 0)))
	Rewrite(a, func(r ObjectRef) Object {
		if r.Num == 9 {
			return Null
		}
		return Ref(r.Num+10, 0)
	})
	var got []ObjectRef
	Refs(a, func(r ObjectRef) { got = append(got, r) })
	if len(got) != 2 || got[0].Num != 11 || got[1].Num != 12 {
		t.Fatalf("unexpected refs %+v", got)
	}
}

func TestDecodeTextString(t *testing.T) {
	if got := DecodeTextString([]byte{0xFE, 0xFF, 0x00, 'H', 0x00, 'i'}); got != "Hi" {
		t.Fatalf("utf16: got %q", got)
	}
	if got := DecodeTextString([]byte{0x80, 'x'}); got != "•x" {
		t.Fatalf("pdfdoc: got %q", got)
	}
	enc := EncodeTextString("Ωmega")
	if DecodeTextString(enc) != "Ωmega" {
		t.Fatalf("round trip failed: %x", enc)
	}
}
