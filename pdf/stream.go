package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/wudi/pdfcore/filters"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/parser"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/security"
	"github.com/wudi/pdfcore/store"
)

// Filters returns the decode chain of st with indirect entries resolved.
func (d *Document) Filters(st *raw.StreamObj) []filters.Stage {
	return filters.ExtractFilters(st.Dict, d.Resolve)
}

// StreamBytes returns the still-encoded payload of st, decrypted when the
// document is encrypted.
func (d *Document) StreamBytes(st *raw.StreamObj) ([]byte, error) {
	if st.InMemory() {
		return st.Data, nil
	}
	payload := parser.Payload(d.sh.data, st)
	if !d.needsDecrypt(st.Ref) || raw.IsName(d.Resolve(get(st.Dict, names.Type)), names.XRef) {
		return payload, nil
	}
	for _, s := range d.Filters(st) {
		if s.Name == "Crypt" {
			return payload, nil
		}
	}
	h := d.sh.crypt
	if !h.Authenticated() {
		return nil, recovery.New(recovery.KindSemantic, "stream", security.ErrNotAuthenticated)
	}
	out, err := h.Decrypt(st.Ref.Num, st.Ref.Gen, payload, streamClass(d, st), "")
	if err != nil {
		return nil, recovery.New(recovery.KindSyntax, "decrypt", fmt.Errorf("stream %s: %w", st.Ref, err))
	}
	return out, nil
}

func streamClass(d *Document, st *raw.StreamObj) security.DataClass {
	if raw.IsName(d.Resolve(get(st.Dict, names.Type)), names.Metadata) {
		return security.DataClassMetadataStream
	}
	return security.DataClassStream
}

// DecodeStream returns the fully decoded payload of st. Decoded file
// streams are cached per handle.
func (d *Document) DecodeStream(ctx context.Context, st *raw.StreamObj) ([]byte, error) {
	d.sync()
	cacheable := !st.InMemory() && st.Ref.Num > 0
	key := store.Key{Type: store.TypeStream, Num: st.Ref.Num, Gen: st.Ref.Gen}
	if cacheable {
		if v, ok := d.cache.Get(key); ok {
			return v.([]byte), nil
		}
	}
	payload, err := d.StreamBytes(st)
	if err != nil {
		return nil, d.fail(err)
	}
	stages := d.Filters(st)
	pipeline := d.pipeline
	if d.needsDecrypt(st.Ref) && !st.InMemory() {
		h, ref, class := d.sh.crypt, st.Ref, streamClass(d, st)
		pipeline = pipeline.WithCrypt(func(name string, r io.Reader) (io.Reader, error) {
			b, err := io.ReadAll(r)
			if err != nil {
				return nil, err
			}
			out, err := h.Decrypt(ref.Num, ref.Gen, b, class, name)
			if err != nil {
				return nil, err
			}
			return bytes.NewReader(out), nil
		})
	}
	out, err := pipeline.Decode(ctx, payload, stages)
	if err != nil {
		if recovery.KindOf(err) == recovery.KindUnknown {
			err = recovery.New(recovery.KindSyntax, "decode", fmt.Errorf("stream %s: %w", st.Ref, err))
		}
		return nil, d.fail(err)
	}
	if cacheable {
		d.cache.Put(key, out, int64(len(out)))
	}
	return out, nil
}

// StreamOf resolves o to a stream and decodes it.
func (d *Document) StreamOf(ctx context.Context, o raw.Object) ([]byte, *raw.StreamObj, error) {
	st, ok := raw.AsStream(d.Resolve(o))
	if !ok {
		return nil, nil, recovery.Errorf(recovery.KindSemantic, "stream", "%s is not a stream", o.Type())
	}
	data, err := d.DecodeStream(ctx, st)
	return data, st, err
}

// Memo returns the value cached for the resource object ref, calling load
// on a miss. Direct objects (a zero ref) are never cached.
func (d *Document) Memo(ref raw.ObjectRef, load func() (any, int64, error)) (any, error) {
	d.sync()
	key := store.Key{Type: store.TypeResource, Num: ref.Num, Gen: ref.Gen}
	if ref.Num > 0 {
		if v, ok := d.cache.Get(key); ok {
			return v, nil
		}
	}
	v, size, err := load()
	if err != nil {
		return nil, err
	}
	if ref.Num > 0 {
		d.cache.Put(key, v, size)
	}
	return v, nil
}
