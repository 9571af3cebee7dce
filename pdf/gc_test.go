package pdf

import (
	"fmt"
	"strings"
	"testing"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
)

// hundredObjects builds a file of 100 objects: a catalog, a page tree with
// one page referencing 4..40 and 71..100, and 30 unreferenced objects
// 41..70.
func hundredObjects(t *testing.T) []byte {
	t.Helper()
	b := newBuilder(t, "1.7")
	b.obj(1, "<</Type/Catalog/Pages 2 0 R>>")
	b.obj(2, "<</Type/Pages/Kids[3 0 R]/Count 1>>")
	var refs strings.Builder
	for n := 4; n <= 100; n++ {
		if n <= 40 || n > 70 {
			fmt.Fprintf(&refs, "%d 0 R ", n)
		}
	}
	b.obj(3, fmt.Sprintf("<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]/PieceInfo[%s]>>", refs.String()))
	for n := 4; n <= 100; n++ {
		b.obj(n, fmt.Sprintf("[%d]", n))
	}
	return b.finish("/Size 101/Root 1 0 R")
}

func TestGarbageCollectCountsAndRenumbers(t *testing.T) {
	doc := openBytes(t, hundredObjects(t), Config{})
	if n := doc.CountObjects(); n != 100 {
		t.Fatalf("count_objects before gc = %d", n)
	}

	res, err := doc.GarbageCollect(1)
	if err != nil {
		t.Fatalf("gc(1): %v", err)
	}
	if res.Freed != 30 {
		t.Fatalf("freed %d, want 30", res.Freed)
	}
	if n := doc.CountObjects(); n != 70 {
		t.Fatalf("count_objects after gc(1) = %d, want 70", n)
	}

	if _, err := doc.GarbageCollect(2); err != nil {
		t.Fatalf("gc(2): %v", err)
	}
	if n := doc.CountObjects(); n != 70 {
		t.Fatalf("count_objects after gc(2) = %d", n)
	}
	if size := doc.Size(); size != 71 {
		t.Fatalf("size after renumber = %d, want 71", size)
	}
	for num := 1; num <= 70; num++ {
		if raw.IsNull(doc.Object(num, 0)) {
			t.Fatalf("object %d missing after renumber", num)
		}
	}
	page, err := doc.LoadPage(0)
	if err != nil {
		t.Fatalf("load page after renumber: %v", err)
	}
	info, _ := raw.AsArray(mustGet(t, page.Dict, "PieceInfo"))
	last, _ := raw.AsRef(info.Items[len(info.Items)-1])
	if last.Num != 70 {
		t.Fatalf("last reference renumbered to %d", last.Num)
	}
	arr, ok := raw.AsArray(doc.Resolve(info.Items[len(info.Items)-1]))
	if !ok || arr.Len() != 1 {
		t.Fatalf("object 70 = %v", doc.Object(70, 0))
	}
	if v, _ := raw.AsInt(arr.Items[0]); v != 100 {
		t.Fatalf("object 70 holds %d, want the old object 100", v)
	}
}

func TestGarbageCollectIsIdempotent(t *testing.T) {
	doc := openBytes(t, hundredObjects(t), Config{})
	if _, err := doc.GarbageCollect(1); err != nil {
		t.Fatal(err)
	}
	rev := doc.Revision()
	res, err := doc.GarbageCollect(1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Freed != 0 || doc.CountObjects() != 70 {
		t.Fatalf("second gc = %+v, live %d", res, doc.CountObjects())
	}
	if doc.Revision() != rev {
		t.Fatalf("no-op gc bumped the revision")
	}
}

func TestGarbageCollectKeepsNewObjects(t *testing.T) {
	doc := openBytes(t, hundredObjects(t), Config{})
	ref, err := doc.NewObject(raw.DictOf(names.Title, raw.Str([]byte("orphan"))))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := doc.GarbageCollect(1); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw.AsDict(doc.Resolve(ref)); !ok {
		t.Fatalf("locally created object was collected")
	}
}

func TestGarbageCollectDeduplicates(t *testing.T) {
	b := newBuilder(t, "1.7")
	b.obj(1, "<</Type/Catalog/Pages 2 0 R>>")
	b.obj(2, "<</Type/Pages/Kids[3 0 R 4 0 R]/Count 2>>")
	b.obj(3, "<</Type/Page/Parent 2 0 R/MediaBox 5 0 R>>")
	b.obj(4, "<</Type/Page/Parent 2 0 R/MediaBox 6 0 R/Rotate 90>>")
	b.obj(5, "[0 0 612 792]")
	b.obj(6, "[0 0 612 792]")
	doc := openBytes(t, b.finish("/Size 7/Root 1 0 R"), Config{})

	res, err := doc.GarbageCollect(3)
	if err != nil {
		t.Fatalf("gc(3): %v", err)
	}
	if res.Merged != 1 {
		t.Fatalf("merged %d, want 1", res.Merged)
	}
	if n := doc.CountObjects(); n != 5 {
		t.Fatalf("count_objects = %d, want 5", n)
	}
	for k := 0; k < 2; k++ {
		p, err := doc.LoadPage(k)
		if err != nil || p.MediaBox.X1 != 612 {
			t.Fatalf("page %d = %+v, %v", k, p, err)
		}
	}
}

func TestGarbageCollectLevelOutOfRange(t *testing.T) {
	doc := openBytes(t, s1File(t), Config{})
	if _, err := doc.GarbageCollect(4); err == nil {
		t.Fatalf("level 4 accepted")
	}
}

func mustGet(t *testing.T, d *raw.DictObj, key string) raw.Object {
	t.Helper()
	v, ok := d.GetKey(key)
	if !ok {
		t.Fatalf("missing /%s", key)
	}
	return v
}
