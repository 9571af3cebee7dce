// Package optimize rewrites the cross-reference table of a document:
// garbage collection, renumbering and deduplication of equal objects.
package optimize

import (
	"fmt"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/xref"
)

// Graph is the object graph being optimized. Load returns the current value
// of an object number, in memory or parsed from the file.
type Graph interface {
	Table() *xref.Table
	Load(num int) (raw.Object, error)
	// StreamBytes returns the encoded payload of st with any file-level
	// encryption removed.
	StreamBytes(st *raw.StreamObj) ([]byte, error)
}

// Level is a garbage-collection level: 0 none, 1 collect, 2 renumber,
// 3 deduplicate.
type Level int

const (
	LevelNone Level = iota
	LevelCollect
	LevelRenumber
	LevelDeduplicate
)

// Result summarizes a Run.
type Result struct {
	Freed      int
	Merged     int
	Renumbered bool
}

// Run applies the passes selected by level: collection first, then
// deduplication and a second collection, then renumbering.
func Run(g Graph, level Level) (Result, error) {
	var res Result
	if level <= LevelNone {
		return res, nil
	}
	freed, err := MarkAndSweep(g)
	if err != nil {
		return res, fmt.Errorf("collect: %w", err)
	}
	res.Freed = freed
	if level >= LevelDeduplicate {
		merged, err := Deduplicate(g)
		if err != nil {
			return res, fmt.Errorf("deduplicate: %w", err)
		}
		res.Merged = merged
		if merged > 0 {
			more, err := MarkAndSweep(g)
			if err != nil {
				return res, fmt.Errorf("collect: %w", err)
			}
			res.Freed += more
		}
	}
	if level >= LevelRenumber {
		if _, err := Renumber(g); err != nil {
			return res, fmt.Errorf("renumber: %w", err)
		}
		res.Renumbered = true
	}
	return res, nil
}

// structural reports objects that only describe the file layout: object
// streams and cross-reference streams. They are rebuilt by the writer.
func structural(o raw.Object) bool {
	st, ok := o.(*raw.StreamObj)
	if !ok {
		return false
	}
	t, _ := st.Dict.Get(names.Type)
	return raw.IsName(t, names.ObjStm) || raw.IsName(t, names.XRef)
}
