package writer

import (
	"bytes"
	"context"
	"sort"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/recovery"
)

// maxLayoutPasses bounds the fixpoint iteration that settles the offsets
// quoted by the linearization dictionary and the hint stream.
const maxLayoutPasses = 8

// linearizer reorders a plan into the Fast Web View layout: the
// linearization dictionary, the first-page cross-reference section, the
// catalog and first page objects, the hint stream, then the rest.
type linearizer struct {
	p     *plan
	pages []int
	// first holds the objects of the first-page section in output order.
	first []int
	// private[k] holds the objects only page k uses, k >= 1.
	private [][]int
	shared  []int
	rest    []int

	renum   map[int]int
	linNum  int
	hintNum int
	size    int
}

// layout is what one emission pass measured.
type layout struct {
	fileLen   int64
	hintOff   int64
	hintLen   int64
	firstEnd  int64
	mainXRef  int64
	firstXRef int64
	offsets   map[int]int64
	lengths   map[int]int64
	hint      []byte
	hintShare int64
}

func (p *plan) linearize(ctx context.Context, opt Options) ([]byte, error) {
	l, ok := p.newLinearizer()
	if !ok {
		p.doc.Warnf("writer", "no pages to linearize, writing a plain file")
		return p.emitClassic(ctx, opt)
	}
	l.renumber()

	var prev *layout
	for pass := 0; pass < maxLayoutPasses; pass++ {
		if err := checkpoint(ctx, opt.Cookie); err != nil {
			return nil, err
		}
		buf, cur, err := l.emit(prev)
		if err != nil {
			return nil, err
		}
		if prev != nil && cur.settled(prev) {
			return buf, nil
		}
		prev = cur
	}
	return nil, recovery.Errorf(recovery.KindLimit, "linearize", "layout did not settle in %d passes", maxLayoutPasses)
}

func (p *plan) newLinearizer() (*linearizer, bool) {
	l := &linearizer{p: p, renum: map[int]int{}}
	root, ok := raw.AsRef(p.root)
	if !ok {
		return nil, false
	}
	cat, ok := p.dict(root.Num)
	if !ok {
		return nil, false
	}
	if pages, ok := raw.AsRef(get(cat, names.Pages)); ok {
		l.collectPages(pages.Num, map[int]bool{})
	}
	if len(l.pages) == 0 {
		return nil, false
	}

	closures := make([]map[int]bool, len(l.pages))
	users := map[int]int{}
	for k, pg := range l.pages {
		closures[k] = l.closure(pg)
		for num := range closures[k] {
			users[num]++
		}
	}

	placed := map[int]bool{root.Num: true}
	l.first = append(l.first, root.Num)
	for _, num := range sortedKeys(closures[0]) {
		if !placed[num] {
			l.first = append(l.first, num)
			placed[num] = true
		}
	}
	if p.crypt != nil {
		l.first = append(l.first, p.cryptNum)
		placed[p.cryptNum] = true
	}

	l.private = make([][]int, len(l.pages))
	for k := 1; k < len(l.pages); k++ {
		for _, num := range sortedKeys(closures[k]) {
			if !placed[num] && users[num] == 1 {
				l.private[k] = append(l.private[k], num)
				placed[num] = true
			}
		}
	}
	for _, num := range sortedKeys(users) {
		if !placed[num] {
			l.shared = append(l.shared, num)
			placed[num] = true
		}
	}
	for _, o := range p.objs {
		if !placed[o.num] {
			l.rest = append(l.rest, o.num)
		}
	}
	return l, true
}

func (p *plan) dict(num int) (*raw.DictObj, bool) {
	o, ok := p.byNum[num]
	if !ok {
		return nil, false
	}
	return raw.AsDict(o.obj)
}

func (l *linearizer) collectPages(num int, seen map[int]bool) {
	if seen[num] {
		return
	}
	seen[num] = true
	d, ok := l.p.dict(num)
	if !ok {
		return
	}
	t := get(d, names.Type)
	if raw.IsName(t, names.Page) {
		l.pages = append(l.pages, num)
		return
	}
	kids, ok := raw.AsArray(get(d, names.Kids))
	if !ok {
		return
	}
	for _, k := range kids.Items {
		if r, ok := raw.AsRef(k); ok {
			l.collectPages(r.Num, seen)
		}
	}
}

// closure returns the objects reachable from page without climbing to
// /Parent or entering another page tree node.
func (l *linearizer) closure(page int) map[int]bool {
	seen := map[int]bool{}
	var visit func(num int)
	visit = func(num int) {
		if seen[num] {
			return
		}
		o, ok := l.p.byNum[num]
		if !ok {
			return
		}
		if num != page {
			if d, ok := raw.AsDict(o.obj); ok {
				t := get(d, names.Type)
				if raw.IsName(t, names.Page) || raw.IsName(t, names.Pages) {
					return
				}
			}
		}
		seen[num] = true
		refsSkippingParent(o.obj, func(r raw.ObjectRef) { visit(r.Num) })
	}
	visit(page)
	return seen
}

func refsSkippingParent(o raw.Object, fn func(raw.ObjectRef)) {
	var d *raw.DictObj
	switch x := o.(type) {
	case *raw.DictObj:
		d = x
	case *raw.StreamObj:
		d = x.Dict
	default:
		raw.Refs(o, fn)
		return
	}
	d.Each(func(k names.ID, v raw.Object) bool {
		if k != names.Parent {
			raw.Refs(v, fn)
		}
		return true
	})
}

func sortedKeys[V any](m map[int]V) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// renumber assigns 1 to the linearization dictionary, then the first-page
// section, the hint stream and the remaining objects in output order.
func (l *linearizer) renumber() {
	next := 1
	l.linNum = next
	next++
	for _, num := range l.first {
		l.renum[num] = next
		next++
	}
	l.hintNum = next
	next++
	for _, group := range l.tail() {
		for _, num := range group {
			l.renum[num] = next
			next++
		}
	}
	l.size = next

	p := l.p
	fix := func(r raw.ObjectRef) raw.Object {
		if n, ok := l.renum[r.Num]; ok {
			return raw.Ref(n, 0)
		}
		return raw.Null
	}
	byNum := make(map[int]*object, len(p.objs))
	for _, o := range p.objs {
		o.obj = raw.Rewrite(o.obj, fix)
		if st, ok := o.stream(); ok {
			st.Ref = raw.ObjectRef{Num: l.renum[o.num]}
		}
		o.num, o.gen = l.renum[o.num], 0
		byNum[o.num] = o
	}
	p.byNum = byNum
	p.root = raw.Rewrite(p.root, fix)
	p.info = raw.Rewrite(p.info, fix)
	if p.crypt != nil {
		p.cryptNum = l.renum[p.cryptNum]
	}
	for _, list := range append([][]int{l.first, l.shared, l.rest}, l.private...) {
		for i, num := range list {
			list[i] = l.renum[num]
		}
	}
	for i, num := range l.pages {
		l.pages[i] = l.renum[num]
	}
}

// tail returns the groups written after the hint stream, in order.
func (l *linearizer) tail() [][]int {
	var out [][]int
	for k := 1; k < len(l.private); k++ {
		out = append(out, l.private[k])
	}
	return append(out, l.shared, l.rest)
}

// emit writes the whole file using the offsets measured by the previous
// pass and returns what this pass measured.
func (l *linearizer) emit(prev *layout) ([]byte, *layout, error) {
	p := l.p
	if prev == nil {
		prev = &layout{offsets: map[int]int64{}, lengths: map[int]int64{}}
	}
	cur := &layout{offsets: map[int]int64{}, lengths: map[int]int64{}}

	buf := appendHeader(nil, p.version)
	lin := raw.DictOf(
		names.Linearized, raw.Int(1),
		names.L, raw.Int(prev.fileLen),
		names.H, raw.NewArray(raw.Int(prev.hintOff), raw.Int(prev.hintLen)),
		names.O, raw.Int(int64(l.pages[0])),
		names.E, raw.Int(prev.firstEnd),
		names.N, raw.Int(int64(len(l.pages))),
		names.T, raw.Int(prev.mainXRef),
	)
	cur.offsets[l.linNum] = int64(len(buf))
	buf = appendIndirect(buf, l.linNum, 0, lin, nil, p.format)

	cur.firstXRef = int64(len(buf))
	slots := map[int]slot{}
	for num, off := range prev.offsets {
		slots[num] = slot{kind: 1, offset: off}
	}
	buf = appendXRefTable(buf, [][2]int{{0, l.hintNum + 1}}, slots)
	buf = append(buf, "trailer\n"...)
	buf = raw.Append(buf, raw.DictOf(names.Size, raw.Int(int64(l.size)),
		names.IDKey, raw.NewArray(raw.HexStr(p.id[0]), raw.HexStr(p.id[1]))), p.format)
	buf = append(buf, '\n')

	var err error
	put := func(num int) error {
		o := p.byNum[num]
		start := len(buf)
		cur.offsets[num] = int64(start)
		buf, err = p.appendObject(buf, o)
		cur.lengths[num] = int64(len(buf) - start)
		return err
	}
	for _, num := range l.first {
		if err := put(num); err != nil {
			return nil, nil, err
		}
	}
	cur.firstEnd = int64(len(buf))

	cur.hint, cur.hintShare = l.hintTables(prev)
	hint := raw.NewStream(raw.DictOf(names.S, raw.Int(cur.hintShare)), cur.hint)
	hint.Ref = raw.ObjectRef{Num: l.hintNum}
	cur.hintOff = int64(len(buf))
	cur.offsets[l.hintNum] = cur.hintOff
	buf, err = p.appendObject(buf, &object{num: l.hintNum, obj: hint})
	if err != nil {
		return nil, nil, err
	}
	cur.hintLen = int64(len(buf)) - cur.hintOff

	for _, group := range l.tail() {
		for _, num := range group {
			if err := put(num); err != nil {
				return nil, nil, err
			}
		}
	}

	cur.mainXRef = int64(len(buf))
	mainSlots := map[int]slot{}
	for num, off := range cur.offsets {
		mainSlots[num] = slot{kind: 1, offset: off}
	}
	buf = appendSubsectionTable(buf, [2]int{l.hintNum + 1, l.size - l.hintNum - 1}, mainSlots)
	tr := p.trailer(l.size)
	tr.Set(names.Prev, raw.Int(cur.firstXRef))
	buf = append(buf, "trailer\n"...)
	buf = raw.Append(buf, tr, p.format)
	buf = appendStartXRef(buf, cur.mainXRef)
	cur.fileLen = int64(len(buf))
	return buf, cur, nil
}

// appendSubsectionTable writes a table holding the single section s.
func appendSubsectionTable(dst []byte, s [2]int, slots map[int]slot) []byte {
	dst = append(dst, "xref\n"...)
	return appendSubsection(dst, s, slots, nil)
}

func (cur *layout) settled(prev *layout) bool {
	if cur.fileLen != prev.fileLen || cur.hintOff != prev.hintOff || cur.hintLen != prev.hintLen ||
		cur.firstEnd != prev.firstEnd || cur.mainXRef != prev.mainXRef || !bytes.Equal(cur.hint, prev.hint) {
		return false
	}
	if len(cur.offsets) != len(prev.offsets) {
		return false
	}
	for num, off := range cur.offsets {
		if prev.offsets[num] != off {
			return false
		}
	}
	return true
}

// hintTables builds the page offset and shared object hint tables from the
// previous pass and returns them with the offset of the shared table.
func (l *linearizer) hintTables(prev *layout) ([]byte, int64) {
	type pageInfo struct {
		objects int
		length  int64
	}
	infos := make([]pageInfo, len(l.pages))
	sum := func(nums []int) int64 {
		var n int64
		for _, num := range nums {
			n += prev.lengths[num]
		}
		return n
	}
	infos[0] = pageInfo{objects: len(l.first), length: sum(l.first)}
	for k := 1; k < len(l.pages); k++ {
		infos[k] = pageInfo{objects: len(l.private[k]), length: sum(l.private[k])}
	}

	minObjs, maxObjs := infos[0].objects, infos[0].objects
	minLen, maxLen := infos[0].length, infos[0].length
	for _, in := range infos {
		minObjs, maxObjs = min(minObjs, in.objects), max(maxObjs, in.objects)
		minLen, maxLen = min(minLen, in.length), max(maxLen, in.length)
	}
	bitsObjs := bitsNeeded(int64(maxObjs - minObjs))
	bitsLen := bitsNeeded(maxLen - minLen)

	var buf bytes.Buffer
	bw := newBitWriter(&buf)
	bw.write(uint64(minObjs), 32)
	bw.write(uint64(prev.offsets[l.pages[0]]), 32)
	bw.write(uint64(bitsObjs), 16)
	bw.write(uint64(minLen), 32)
	bw.write(uint64(bitsLen), 16)
	bw.write(0, 32) // least content stream offset
	bw.write(0, 16)
	bw.write(0, 32) // least content stream length
	bw.write(0, 16)
	bw.write(0, 16) // shared reference count bits
	bw.write(0, 16) // shared identifier bits
	bw.write(0, 16) // fraction numerator bits
	bw.write(0, 16) // fraction denominator
	for _, in := range infos {
		bw.write(uint64(in.objects-minObjs), uint(bitsObjs))
	}
	for _, in := range infos {
		bw.write(uint64(in.length-minLen), uint(bitsLen))
	}
	bw.flush()
	shareAt := int64(buf.Len())

	var firstShared int64
	if len(l.shared) > 0 {
		firstShared = prev.offsets[l.shared[0]]
	}
	var maxShared int64
	for _, num := range l.shared {
		maxShared = max(maxShared, prev.lengths[num])
	}
	bitsShared := bitsNeeded(maxShared)
	bw.write(uint64(l.first[0]), 32)
	bw.write(uint64(prev.offsets[l.first[0]]), 32)
	bw.write(0, 32) // entries for first-page objects
	bw.write(uint64(len(l.shared)), 32)
	bw.write(0, 16) // group size bits
	bw.write(uint64(firstShared), 32)
	bw.write(uint64(bitsShared), 16)
	for _, num := range l.shared {
		bw.write(uint64(prev.lengths[num]), uint(bitsShared))
	}
	bw.flush()
	return buf.Bytes(), shareAt
}

func bitsNeeded(val int64) int {
	bits := 0
	for val > 0 {
		bits++
		val >>= 1
	}
	return bits
}

// bitWriter packs big-endian bit fields.
type bitWriter struct {
	buf  *bytes.Buffer
	acc  uint64
	bits uint
}

func newBitWriter(buf *bytes.Buffer) *bitWriter {
	return &bitWriter{buf: buf}
}

func (w *bitWriter) write(val uint64, n uint) {
	if n == 0 {
		return
	}
	w.acc = (w.acc << n) | (val & ((1 << n) - 1))
	w.bits += n
	for w.bits >= 8 {
		w.bits -= 8
		w.buf.WriteByte(byte(w.acc >> w.bits))
	}
}

func (w *bitWriter) flush() {
	if w.bits > 0 {
		w.buf.WriteByte(byte(w.acc << (8 - w.bits)))
		w.bits, w.acc = 0, 0
	}
}
