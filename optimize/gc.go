package optimize

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/xref"
)

// MarkAndSweep frees every entry that is not reachable from the trailer or
// from the live entries of the local layer. It returns the number of freed
// entries.
func MarkAndSweep(g Graph) (int, error) {
	t := g.Table()
	t.ClearMarks()

	visited := bitset.New(uint(t.Size()))
	var stack []int
	push := func(r raw.ObjectRef) { stack = append(stack, r.Num) }

	raw.Refs(t.Trailer(), push)
	for _, num := range t.LocalNums() {
		if e, _ := t.Lookup(num); e.Live() {
			stack = append(stack, num)
		}
	}

	for len(stack) > 0 {
		num := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if num <= 0 || visited.Test(uint(num)) {
			continue
		}
		e, ok := t.Lookup(num)
		if !ok || !e.Live() {
			continue
		}
		visited.Set(uint(num))
		e.Marked = true
		if e.Kind == xref.Compressed {
			// The host must survive while any member does.
			if host, ok := t.Lookup(int(e.Offset)); ok && host.Live() {
				host.Marked = true
			}
		}
		obj, err := g.Load(num)
		if err != nil {
			return 0, fmt.Errorf("mark object %d: %w", num, err)
		}
		raw.Refs(obj, push)
	}
	return t.Sweep(), nil
}
