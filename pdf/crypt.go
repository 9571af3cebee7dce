package pdf

import (
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/observability"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/security"
	"github.com/wudi/pdfcore/xref"
)

// initSecurity builds the security handler from the trailer /Encrypt entry
// and tries the configured password, then the empty one.
func (d *Document) initSecurity() error {
	tr := d.sh.table.Trailer()
	enc := get(tr, names.Encrypt)
	if raw.IsNull(enc) {
		return nil
	}
	if r, ok := raw.AsRef(enc); ok {
		d.sh.encryptNum = r.Num
	}
	dict, ok := raw.AsDict(d.Resolve(enc))
	if !ok {
		if d.cfg.Strict {
			return recovery.Errorf(recovery.KindSemantic, "open", "/Encrypt is not a dictionary")
		}
		d.warnf("security", "/Encrypt is not a dictionary; treating file as unencrypted")
		return nil
	}
	var id []byte
	if arr, ok := raw.AsArray(d.Resolve(get(tr, names.IDKey))); ok && arr.Len() > 0 {
		id, _ = raw.AsString(d.Resolve(arr.Items[0]))
	}
	h, err := security.NewHandler(dict, id, d.Resolve)
	if err != nil {
		return recovery.New(recovery.KindSemantic, "open", err)
	}
	d.sh.crypt = h
	if d.cfg.Password == "" || !h.Authenticate(d.cfg.Password) {
		h.Authenticate("")
	}
	d.logger.Debug("encrypted document",
		observability.String("method", h.Method().String()),
		observability.Int("revision", h.Revision()),
		observability.Any("authenticated", h.Authenticated()))
	// Objects resolved while reading /Encrypt were not decrypted.
	d.cache.Flush()
	return nil
}

// Encrypted reports whether the document has a security handler.
func (d *Document) Encrypted() bool { return d.sh.crypt != nil }

// NeedsPassword reports whether a password is required to read content.
func (d *Document) NeedsPassword() bool {
	return d.sh.crypt != nil && !d.sh.crypt.Authenticated()
}

// Authenticate tries password as user or owner password. Success is
// visible to every handle.
func (d *Document) Authenticate(password string) bool {
	h := d.sh.crypt
	if h == nil {
		return true
	}
	ok := false
	d.mutate(func(_ *xref.Table) error {
		ok = h.Authenticate(password)
		return nil
	})
	return ok
}

// Permissions returns the granted permissions; unencrypted documents and
// owner access grant everything.
func (d *Document) Permissions() security.Permissions {
	h := d.sh.crypt
	if h == nil || h.IsOwner() {
		return security.AllPermissions()
	}
	return h.Permissions()
}

// SecurityHandler returns the handler, or nil for unencrypted files.
func (d *Document) SecurityHandler() *security.Handler { return d.sh.crypt }

// needsDecrypt reports whether data of object ref is encrypted in the file.
func (d *Document) needsDecrypt(ref raw.ObjectRef) bool {
	return d.sh.crypt != nil && ref.Num > 0 && ref.Num != d.sh.encryptNum
}

// decryptStrings decrypts, in place, the strings of a freshly parsed
// object.
func (d *Document) decryptStrings(ref raw.ObjectRef, o raw.Object) {
	if !d.needsDecrypt(ref) || !d.sh.crypt.Authenticated() {
		return
	}
	if st, ok := o.(*raw.StreamObj); ok && raw.IsName(get(st.Dict, names.Type), names.XRef) {
		return
	}
	h := d.sh.crypt
	var walk func(o raw.Object) raw.Object
	walk = func(o raw.Object) raw.Object {
		switch v := o.(type) {
		case raw.StringObj:
			out, err := h.Decrypt(ref.Num, ref.Gen, v.Bytes, security.DataClassString, "")
			if err != nil {
				d.warnf("security", "string in %s: %v", ref, err)
				return v
			}
			v.Bytes = out
			return v
		case *raw.ArrayObj:
			for i, it := range v.Items {
				v.Items[i] = walk(it)
			}
		case *raw.DictObj:
			for _, k := range v.Keys() {
				val, _ := v.Get(k)
				v.Set(k, walk(val))
			}
		case *raw.StreamObj:
			walk(v.Dict)
		}
		return o
	}
	walk(o)
}
