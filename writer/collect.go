package writer

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"sort"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/pdf"
	"github.com/wudi/pdfcore/security"
	"github.com/wudi/pdfcore/xref"
)

// object is one indirect object scheduled for output. Streams carry their
// final encoded payload in Data.
type object struct {
	num, gen int
	obj      raw.Object
	class    security.DataClass
	// plain objects are never encrypted (the /Encrypt dictionary).
	plain bool
}

func (o *object) stream() (*raw.StreamObj, bool) {
	st, ok := o.obj.(*raw.StreamObj)
	return st, ok
}

// plan is a detached snapshot of the document graph being written.
type plan struct {
	doc     *pdf.Document
	version string
	objs    []*object
	byNum   map[int]*object
	size    int
	root    raw.Object
	info    raw.Object
	id      [2][]byte

	crypt    *security.Handler
	cryptNum int

	format raw.FormatOptions
}

func get(d *raw.DictObj, key names.ID) raw.Object {
	if d == nil {
		return raw.Null
	}
	v, ok := d.Get(key)
	if !ok {
		return raw.Null
	}
	return v
}

// collect loads every live object outside the table lock and drops the
// structures the writer regenerates: xref streams, object streams, the
// old linearization dictionary and the old /Encrypt dictionary.
func collect(ctx context.Context, doc *pdf.Document, opt Options) (*plan, error) {
	tr := doc.Trailer()
	skip := -1
	if r, ok := raw.AsRef(get(tr, names.Encrypt)); ok {
		skip = r.Num
	}
	gens := map[int]int{}
	var nums []int
	size := 0
	doc.View(func(t *xref.Table) error {
		size = t.Size()
		t.Each(func(num int, e *xref.Entry) bool {
			if num == 0 || !e.Live() || num == skip {
				return true
			}
			gen := int(e.Gen)
			if e.Kind == xref.Compressed {
				gen = 0
			}
			nums = append(nums, num)
			gens[num] = gen
			return true
		})
		return nil
	})

	p := &plan{
		doc:     doc,
		version: doc.Version(),
		byNum:   make(map[int]*object, len(nums)),
		size:    size,
		format:  raw.FormatOptions{Pretty: opt.Pretty, ASCII: opt.ASCII},
	}
	opt.Cookie.SetProgress(0, int64(len(nums)))
	for i, num := range nums {
		if i%64 == 0 {
			if err := checkpoint(ctx, opt.Cookie); err != nil {
				return nil, err
			}
		}
		opt.Cookie.Advance()
		o, err := doc.Load(num)
		if err != nil {
			return nil, err
		}
		if raw.IsNull(o) || regenerated(o) {
			continue
		}
		ob := &object{num: num, gen: gens[num], class: security.DataClassStream}
		if st, ok := o.(*raw.StreamObj); ok {
			data, err := doc.StreamBytes(st)
			if err != nil {
				doc.Warnf("writer", "object %d: stream payload unreadable, writing it empty: %v", num, err)
				data = []byte{}
			}
			cp := raw.NewStream(raw.CopyDict(st.Dict), append([]byte(nil), data...))
			cp.Ref = raw.ObjectRef{Num: num, Gen: ob.gen}
			if raw.IsName(doc.Resolve(get(st.Dict, names.Type)), names.Metadata) {
				ob.class = security.DataClassMetadataStream
			}
			ob.obj = cp
		} else {
			ob.obj = raw.Copy(o)
		}
		p.objs = append(p.objs, ob)
		p.byNum[num] = ob
	}
	sort.Slice(p.objs, func(i, j int) bool { return p.objs[i].num < p.objs[j].num })

	p.root = raw.Copy(get(tr, names.Root))
	p.info = raw.Copy(get(tr, names.Info))
	if ids, ok := raw.AsArray(get(tr, names.IDKey)); ok && ids.Len() == 2 {
		a, okA := raw.AsString(ids.At(0))
		b, okB := raw.AsString(ids.At(1))
		if okA && okB {
			p.id = [2][]byte{a, b}
		}
	}
	p.dropDangling()
	return p, nil
}

// regenerated reports structures the writer rebuilds rather than copies.
func regenerated(o raw.Object) bool {
	var d *raw.DictObj
	switch x := o.(type) {
	case *raw.DictObj:
		d = x
	case *raw.StreamObj:
		d = x.Dict
	default:
		return false
	}
	if d.Has(names.Linearized) {
		return true
	}
	t := get(d, names.Type)
	return raw.IsName(t, names.XRef) || raw.IsName(t, names.ObjStm)
}

// dropDangling replaces references to objects that are not written with
// null so every reference in the output has a target.
func (p *plan) dropDangling() {
	fix := func(r raw.ObjectRef) raw.Object {
		if o, ok := p.byNum[r.Num]; ok && o.gen == r.Gen {
			return raw.RefObj{R: r}
		}
		return raw.Null
	}
	for _, o := range p.objs {
		o.obj = raw.Rewrite(o.obj, fix)
	}
	p.root = raw.Rewrite(p.root, fix)
	p.info = raw.Rewrite(p.info, fix)
}

// prepare settles the header version, file identifier, encryption and
// stream encodings.
func (p *plan) prepare(opt Options) error {
	if opt.ObjectStreams && !opt.Linearize {
		p.version = atLeast(p.version, "1.5")
	}
	if p.id[0] == nil {
		p.id = p.fileID(opt.Deterministic)
	}
	for _, o := range p.objs {
		st, ok := o.stream()
		if !ok {
			continue
		}
		data, err := p.encode(st, opt)
		if err != nil {
			return err
		}
		st.SetData(data)
	}
	if opt.Encrypt {
		if err := p.setupEncryption(opt); err != nil {
			return err
		}
	}
	return nil
}

func (p *plan) setupEncryption(opt Options) error {
	method := opt.EncryptMethod
	if method == security.MethodNone {
		method = security.MethodAES128
	}
	perms := security.AllPermissions()
	if opt.Permissions != nil {
		perms = *opt.Permissions
	}
	h, err := security.New(method, opt.UserPassword, opt.OwnerPassword, perms, p.id[0])
	if err != nil {
		return err
	}
	switch method {
	case security.MethodRC4_128:
		p.version = atLeast(p.version, "1.4")
	case security.MethodAES128:
		p.version = atLeast(p.version, "1.6")
	case security.MethodAES256:
		p.version = atLeast(p.version, "1.7")
	}
	p.crypt = h
	p.cryptNum = p.size
	p.size++
	enc := &object{num: p.cryptNum, obj: h.Dict(), plain: true}
	p.objs = append(p.objs, enc)
	p.byNum[enc.num] = enc
	return nil
}

// fileID returns the two halves of a new /ID. Deterministic identifiers
// hash the serialized catalog and object count.
func (p *plan) fileID(deterministic bool) [2][]byte {
	h := sha256.New()
	h.Write([]byte(p.version))
	h.Write(raw.Append(nil, p.doc.Resolve(p.root), raw.FormatOptions{}))
	h.Write(raw.Append(nil, p.doc.Resolve(p.info), raw.FormatOptions{}))
	h.Write([]byte{byte(len(p.objs)), byte(len(p.objs) >> 8), byte(len(p.objs) >> 16)})
	seed := h.Sum(nil)[:16]
	if deterministic {
		return [2][]byte{seed, append([]byte(nil), seed...)}
	}
	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		id = seed
	}
	return [2][]byte{id, append([]byte(nil), id...)}
}

// trailer builds the trailer dictionary shared by every layout.
func (p *plan) trailer(size int) *raw.DictObj {
	d := raw.NewDict()
	d.Set(names.Size, raw.Int(int64(size)))
	if !raw.IsNull(p.root) {
		d.Set(names.Root, p.root)
	}
	if !raw.IsNull(p.info) {
		d.Set(names.Info, p.info)
	}
	if p.crypt != nil {
		d.Set(names.Encrypt, raw.Ref(p.cryptNum, 0))
	}
	d.Set(names.IDKey, raw.NewArray(raw.HexStr(p.id[0]), raw.HexStr(p.id[1])))
	return d
}

// atLeast returns the higher of two "major.minor" versions.
func atLeast(have, want string) string {
	if have == "" || have < want {
		return want
	}
	return have
}
