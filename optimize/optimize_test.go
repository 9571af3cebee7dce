package optimize

import (
	"testing"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/xref"
)

type memGraph struct {
	t *xref.Table
}

func (g *memGraph) Table() *xref.Table { return g.t }

func (g *memGraph) Load(num int) (raw.Object, error) {
	e, ok := g.t.Lookup(num)
	if !ok || !e.Live() || e.Obj == nil {
		return raw.Null, nil
	}
	return e.Obj, nil
}

func (g *memGraph) StreamBytes(st *raw.StreamObj) ([]byte, error) { return st.Data, nil }

// newGraph builds a table whose object i+1 is objs[i].
func newGraph(t *testing.T, objs []raw.Object) *memGraph {
	t.Helper()
	entries := make([]xref.Entry, len(objs)+1)
	for i, o := range objs {
		entries[i+1] = xref.Entry{Kind: xref.InUse, Obj: o}
	}
	tbl := xref.New()
	tbl.Reset(entries, raw.DictOf(names.Root, raw.Ref(1, 0), names.Size, raw.Int(int64(len(entries)))))
	return &memGraph{t: tbl}
}

// hundredObjects: 1 catalog, 2 pages node referencing 3..70, 71..100
// unreferenced.
func hundredObjects(t *testing.T) *memGraph {
	t.Helper()
	objs := make([]raw.Object, 100)
	objs[0] = raw.DictOf(names.Type, raw.NameID(names.Catalog), names.Pages, raw.Ref(2, 0))
	kids := raw.NewArray()
	for n := 3; n <= 70; n++ {
		kids.Append(raw.Ref(n, 0))
	}
	objs[1] = raw.DictOf(names.Type, raw.NameID(names.Pages), names.Kids, kids)
	for i := 2; i < 100; i++ {
		objs[i] = raw.NewArray(raw.Int(int64(i + 1)))
	}
	return newGraph(t, objs)
}

func TestMarkAndSweepFreesUnreachable(t *testing.T) {
	g := hundredObjects(t)
	freed, err := MarkAndSweep(g)
	if err != nil {
		t.Fatalf("gc: %v", err)
	}
	if freed != 30 {
		t.Fatalf("freed %d, want 30", freed)
	}
	if n := g.t.CountLive(); n != 70 {
		t.Fatalf("live = %d, want 70", n)
	}
	free := g.t.FreeList()
	if len(free) != 30 || free[0] != 100 || free[29] != 71 {
		t.Fatalf("free list = %v", free)
	}

	again, err := MarkAndSweep(g)
	if err != nil || again != 0 {
		t.Fatalf("second gc freed %d (%v)", again, err)
	}
	if n := g.t.CountLive(); n != 70 {
		t.Fatalf("live after second gc = %d", n)
	}
}

func TestMarkAndSweepSurvivorsResolve(t *testing.T) {
	g := hundredObjects(t)
	if _, err := MarkAndSweep(g); err != nil {
		t.Fatalf("gc: %v", err)
	}
	g.t.Each(func(num int, e *xref.Entry) bool {
		if num == 0 || !e.Live() {
			return true
		}
		raw.Refs(e.Obj, func(r raw.ObjectRef) {
			if target, _ := g.t.Lookup(r.Num); !target.Live() {
				t.Errorf("object %d references freed %d", num, r.Num)
			}
		})
		return true
	})
}

func TestMarkAndSweepCycles(t *testing.T) {
	g := newGraph(t, []raw.Object{
		raw.DictOf(names.Type, raw.NameID(names.Catalog), names.Pages, raw.Ref(2, 0)),
		raw.DictOf(names.Parent, raw.Ref(3, 0)),
		raw.DictOf(names.Parent, raw.Ref(2, 0)),
		raw.DictOf(names.Parent, raw.Ref(4, 0)),
	})
	freed, err := MarkAndSweep(g)
	if err != nil {
		t.Fatalf("gc: %v", err)
	}
	if freed != 1 {
		t.Fatalf("freed %d, want 1 (the self-loop)", freed)
	}
}

func TestMarkAndSweepKeepsLocalEntries(t *testing.T) {
	g := hundredObjects(t)
	if err := g.t.Update(90, raw.Int(1)); err != nil {
		t.Fatal(err)
	}
	freed, err := MarkAndSweep(g)
	if err != nil {
		t.Fatalf("gc: %v", err)
	}
	if freed != 29 {
		t.Fatalf("freed %d, want 29", freed)
	}
}

func TestRenumberIsDense(t *testing.T) {
	g := hundredObjects(t)
	if _, err := MarkAndSweep(g); err != nil {
		t.Fatal(err)
	}
	mapping, err := Renumber(g)
	if err != nil {
		t.Fatalf("renumber: %v", err)
	}
	if len(mapping) != 70 {
		t.Fatalf("mapping has %d entries", len(mapping))
	}
	if g.t.Size() != 71 || g.t.CountLive() != 70 {
		t.Fatalf("size %d live %d", g.t.Size(), g.t.CountLive())
	}
	for num := 1; num <= 70; num++ {
		if e, _ := g.t.Lookup(num); !e.Live() {
			t.Fatalf("object %d missing after renumber", num)
		}
	}
	if !g.t.Rewritten() {
		t.Fatalf("table not flagged as rewritten")
	}
}

func TestRenumberRewritesReferences(t *testing.T) {
	objs := []raw.Object{
		raw.DictOf(names.Type, raw.NameID(names.Catalog), names.Pages, raw.Ref(5, 0)),
		raw.Int(2), raw.Int(3), raw.Int(4),
		raw.DictOf(names.Kids, raw.NewArray(raw.Ref(7, 0), raw.Ref(9, 0))),
		raw.Int(6),
		raw.Str([]byte("seven")),
		raw.Int(8),
		raw.Str([]byte("nine")),
	}
	g := newGraph(t, objs)
	if _, err := Run(g, LevelRenumber); err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := g.t.CountLive(); n != 4 {
		t.Fatalf("live = %d, want 4", n)
	}
	root, _ := raw.AsRef(mustGet(t, g.t.Trailer(), names.Root))
	cat, _ := g.Load(root.Num)
	pagesRef, _ := raw.AsRef(mustGet(t, cat.(*raw.DictObj), names.Pages))
	if pagesRef.Num != 2 {
		t.Fatalf("/Pages renumbered to %d, want 2", pagesRef.Num)
	}
	pages, _ := g.Load(pagesRef.Num)
	kids, _ := raw.AsArray(mustGet(t, pages.(*raw.DictObj), names.Kids))
	k0, _ := raw.AsRef(kids.Items[0])
	k1, _ := raw.AsRef(kids.Items[1])
	if k0.Num != 3 || k1.Num != 4 {
		t.Fatalf("kids = %v", kids.Items)
	}
	if s, _ := g.Load(4); string(s.(raw.StringObj).Bytes) != "nine" {
		t.Fatalf("object 4 = %v", s)
	}
}

func TestDeduplicateMergesAndCascades(t *testing.T) {
	objs := []raw.Object{
		raw.DictOf(names.Type, raw.NameID(names.Catalog), names.Pages, raw.Ref(2, 0)),
		raw.DictOf(names.Kids, raw.NewArray(raw.Ref(5, 0), raw.Ref(6, 0))),
		raw.NewArray(raw.Int(1), raw.Int(2)),
		raw.NewArray(raw.Int(1), raw.Int(2)),
		raw.DictOf(names.Contents, raw.Ref(3, 0)),
		raw.DictOf(names.Contents, raw.Ref(4, 0)),
	}
	g := newGraph(t, objs)
	merged, err := Deduplicate(g)
	if err != nil {
		t.Fatalf("dedup: %v", err)
	}
	if merged != 2 {
		t.Fatalf("merged %d, want 2", merged)
	}
	for _, num := range []int{4, 6} {
		if e, _ := g.t.Lookup(num); e.Live() {
			t.Fatalf("duplicate %d still live", num)
		}
	}
	pages, _ := g.Load(2)
	kids, _ := raw.AsArray(mustGet(t, pages.(*raw.DictObj), names.Kids))
	for _, k := range kids.Items {
		if r, _ := raw.AsRef(k); r.Num != 5 {
			t.Fatalf("kids = %v", kids.Items)
		}
	}
}

func TestDeduplicateStreamsComparePayload(t *testing.T) {
	objs := []raw.Object{
		raw.DictOf(names.Type, raw.NameID(names.Catalog), names.Contents, raw.NewArray(raw.Ref(2, 0), raw.Ref(3, 0), raw.Ref(4, 0))),
		raw.NewStream(raw.NewDict(), []byte("q Q")),
		raw.NewStream(raw.NewDict(), []byte("q Q")),
		raw.NewStream(raw.NewDict(), []byte("0 g")),
	}
	g := newGraph(t, objs)
	res, err := Run(g, LevelDeduplicate)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Merged != 1 || !res.Renumbered {
		t.Fatalf("result = %+v", res)
	}
	if n := g.t.CountLive(); n != 3 {
		t.Fatalf("live = %d, want 3", n)
	}
}

func TestRunLevelNone(t *testing.T) {
	g := hundredObjects(t)
	if res, err := Run(g, LevelNone); err != nil || res.Freed != 0 {
		t.Fatalf("run = %+v %v", res, err)
	}
	if n := g.t.CountLive(); n != 100 {
		t.Fatalf("live = %d", n)
	}
}

func TestHashIgnoresKeyOrder(t *testing.T) {
	a := raw.DictOf(names.Type, raw.NameID(names.Page), names.Rotate, raw.Int(90))
	b := raw.DictOf(names.Rotate, raw.Int(90), names.Type, raw.NameID(names.Page))
	if hashObject(a, nil) != hashObject(b, nil) {
		t.Fatalf("hash depends on key order")
	}
	if hashObject(raw.Int(1), nil) == hashObject(raw.Real(1), nil) {
		t.Fatalf("int and real hash equal")
	}
}

func mustGet(t *testing.T, d *raw.DictObj, k names.ID) raw.Object {
	t.Helper()
	v, ok := d.Get(k)
	if !ok {
		t.Fatalf("missing key %s", names.Default().String(k))
	}
	return v
}
