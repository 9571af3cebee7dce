package optimize

import (
	"encoding/binary"
	"hash"
	"math"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
)

type digest [blake2b.Size256]byte

// hashObject hashes the canonical form of o: dictionary keys sorted by
// name, references by number, stream payloads by their encoded bytes.
func hashObject(o raw.Object, payload []byte) digest {
	h, _ := blake2b.New256(nil)
	writeHash(h, o)
	if payload != nil {
		h.Write([]byte{'S'})
		h.Write(payload)
	}
	var d digest
	copy(d[:], h.Sum(nil))
	return d
}

func writeHash(h hash.Hash, o raw.Object) {
	var buf [8]byte
	putInt := func(v uint64) {
		binary.BigEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	switch x := o.(type) {
	case nil, raw.NullObj:
		h.Write([]byte{'n'})
	case raw.BoolObj:
		if x.V {
			h.Write([]byte{'t'})
		} else {
			h.Write([]byte{'f'})
		}
	case raw.NumberObj:
		if x.IsInt {
			h.Write([]byte{'i'})
			putInt(uint64(x.I))
		} else {
			h.Write([]byte{'r'})
			putInt(uint64(math.Float32bits(x.F)))
		}
	case raw.NameObj:
		h.Write([]byte{'/'})
		h.Write([]byte(names.Default().String(x.ID)))
		h.Write([]byte{0})
	case raw.StringObj:
		h.Write([]byte{'('})
		putInt(uint64(len(x.Bytes)))
		h.Write(x.Bytes)
	case raw.RefObj:
		h.Write([]byte{'R'})
		putInt(uint64(x.R.Num))
		putInt(uint64(x.R.Gen))
	case *raw.ArrayObj:
		h.Write([]byte{'['})
		putInt(uint64(x.Len()))
		for _, it := range x.Items {
			writeHash(h, it)
		}
	case *raw.DictObj:
		keys := x.Keys()
		sort.Slice(keys, func(i, j int) bool {
			return names.Default().String(keys[i]) < names.Default().String(keys[j])
		})
		h.Write([]byte{'<'})
		putInt(uint64(len(keys)))
		for _, k := range keys {
			v, _ := x.Get(k)
			h.Write([]byte(names.Default().String(k)))
			h.Write([]byte{0})
			writeHash(h, v)
		}
	case *raw.StreamObj:
		h.Write([]byte{'s'})
		writeHash(h, x.Dict)
	}
}
