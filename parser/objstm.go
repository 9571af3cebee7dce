package parser

import (
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/scanner"
)

// ObjStmMember is one (object number, offset) pair of an object stream
// header. Offset is relative to /First.
type ObjStmMember struct {
	Num    int
	Offset int64
}

// ParseObjStmIndex parses up to n header pairs from decoded object-stream
// data. It returns fewer pairs when the header is shorter than n.
func ParseObjStmIndex(data []byte, n, first, limit int) ([]ObjStmMember, error) {
	if n < 0 || first < 0 || first > len(data) {
		return nil, recovery.Errorf(recovery.KindSyntax, "objstm", "invalid /N %d or /First %d", n, first)
	}
	if limit > 0 && n > limit {
		return nil, recovery.Errorf(recovery.KindLimit, "objstm", "object stream holds %d objects, limit %d", n, limit)
	}
	s := scanner.New(data[:first], scanner.Config{})
	out := make([]ObjStmMember, 0, n)
	for len(out) < n {
		num, err := s.Next()
		if err != nil || num.Kind != scanner.Int {
			break
		}
		off, err := s.Next()
		if err != nil || off.Kind != scanner.Int {
			break
		}
		if num.Int < 0 || off.Int < 0 || int(off.Int)+first > len(data) {
			return out, recovery.Errorf(recovery.KindSyntax, "objstm", "member %d offset %d out of range", num.Int, off.Int)
		}
		out = append(out, ObjStmMember{Num: int(num.Int), Offset: off.Int})
	}
	return out, nil
}

// ParseObjStmObject parses the member at first+offset. Members carry no
// obj/endobj wrapper and never hold streams.
func ParseObjStmObject(data []byte, first int, offset int64, cfg Config) (raw.Object, error) {
	pos := int64(first) + offset
	if pos < 0 || pos > int64(len(data)) {
		return nil, recovery.Errorf(recovery.KindSyntax, "objstm", "member offset %d out of range", offset)
	}
	p := New(data, cfg)
	p.Seek(pos)
	tok, err := p.s.Next()
	if err != nil {
		return nil, err
	}
	return p.parseFrom(tok)
}
