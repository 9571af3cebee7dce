package pdf

import (
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/observability"
	"github.com/wudi/pdfcore/optimize"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/xref"
)

// graph exposes a locked document to the optimize passes.
type graph struct{ d *Document }

func (g graph) Table() *xref.Table { return g.d.sh.table }

func (g graph) Load(num int) (raw.Object, error) { return g.d.Load(num) }

func (g graph) StreamBytes(st *raw.StreamObj) ([]byte, error) { return g.d.StreamBytes(st) }

// GarbageCollect frees unreachable objects. Level 2 also renumbers the
// survivors densely and level 3 merges duplicates first.
func (d *Document) GarbageCollect(level int) (optimize.Result, error) {
	if level < 0 || level > int(optimize.LevelDeduplicate) {
		return optimize.Result{}, d.fail(recovery.Errorf(recovery.KindSemantic, "garbage collect", "level %d out of range", level))
	}
	var (
		res optimize.Result
		err error
	)
	// GC reads objects while holding the write lock.
	d.sh.mu.Lock()
	d.holding = true
	func() {
		defer func() {
			d.holding = false
			d.sh.mu.Unlock()
		}()
		d.sync()
		res, err = optimize.Run(graph{d}, optimize.Level(level))
		if res.Freed > 0 || res.Merged > 0 || res.Renumbered {
			d.sh.revision.Add(1)
		}
	}()
	d.sync()
	if err != nil {
		return res, d.fail(err)
	}
	d.logger.Debug("garbage collected",
		observability.Int("level", level),
		observability.Int("freed", res.Freed),
		observability.Int("merged", res.Merged),
		observability.Int("live", d.CountObjects()))
	return res, nil
}
