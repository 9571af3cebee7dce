// Package security implements the standard security handler: RC4-40,
// RC4-128, AES-128 and AES-256 key derivation, password authentication,
// per-object encryption and the resource limits applied while parsing.
package security

import (
	"crypto/aes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
)

// ErrPassword is returned when neither the user nor the owner password
// matches.
var ErrPassword = errors.New("invalid password")

// ErrNotAuthenticated is returned when decrypting before authentication.
var ErrNotAuthenticated = errors.New("document is encrypted and not authenticated")

type Permissions struct{ Print, Modify, Copy, ModifyAnnotations, FillForms, ExtractAccessible, Assemble, PrintHighQuality bool }

// AllPermissions grants everything.
func AllPermissions() Permissions {
	return Permissions{true, true, true, true, true, true, true, true}
}

// DataClass identifies the kind of payload being encrypted or decrypted.
type DataClass int

const (
	DataClassStream DataClass = iota
	DataClassString
	DataClassMetadataStream
)

// Method names an encryption algorithm family.
type Method int

const (
	MethodNone Method = iota
	MethodRC4_40
	MethodRC4_128
	MethodAES128
	MethodAES256
)

func (m Method) String() string {
	switch m {
	case MethodRC4_40:
		return "rc4-40"
	case MethodRC4_128:
		return "rc4-128"
	case MethodAES128:
		return "aes-128"
	case MethodAES256:
		return "aes-256"
	}
	return "none"
}

// ParseMethod accepts the names returned by Method.String.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return MethodNone, nil
	case "rc4-40", "rc4":
		return MethodRC4_40, nil
	case "rc4-128":
		return MethodRC4_128, nil
	case "aes-128", "aes":
		return MethodAES128, nil
	case "aes-256":
		return MethodAES256, nil
	}
	return MethodNone, fmt.Errorf("unknown encryption method %q", s)
}

type cryptAlgo int

const (
	algoUnset cryptAlgo = iota
	algoNone
	algoRC4
	algoAES
)

// Handler is the standard security handler of one document.
type Handler struct {
	dict         *raw.DictObj
	v, r         int
	keyLen       int
	o, u, oe, ue []byte
	perms        []byte
	p            int32
	id           []byte
	encryptMeta  bool
	stmF, strF   cryptAlgo
	cryptFilters map[string]cryptAlgo

	key    []byte
	authed bool
	owner  bool
}

// NewHandler reads an /Encrypt dictionary. resolve, when non-nil, loads
// indirect values inside it. fileID is the first element of the trailer /ID.
func NewHandler(dict *raw.DictObj, fileID []byte, resolve func(raw.Object) raw.Object) (*Handler, error) {
	if dict == nil {
		return nil, errors.New("missing encryption dictionary")
	}
	if resolve == nil {
		resolve = func(o raw.Object) raw.Object { return o }
	}
	get := func(d *raw.DictObj, key names.ID) raw.Object {
		v, _ := d.Get(key)
		return resolve(v)
	}
	if f, ok := raw.AsName(get(dict, names.Filter)); ok && names.Default().String(f) != "Standard" {
		return nil, fmt.Errorf("unsupported security handler %s", names.Default().String(f))
	}
	h := &Handler{dict: dict, id: fileID, encryptMeta: true, cryptFilters: map[string]cryptAlgo{}}
	v, _ := raw.AsInt(get(dict, names.V))
	r, _ := raw.AsInt(get(dict, names.R))
	if v == 0 {
		v = 1
	}
	if r == 0 {
		r = 2
	}
	if v > 6 || r > 6 || r < 2 {
		return nil, fmt.Errorf("unsupported encryption V=%d R=%d", v, r)
	}
	h.v, h.r = int(v), int(r)
	h.keyLen = 5
	if n, ok := raw.AsInt(get(dict, names.Length)); ok && n >= 40 && n%8 == 0 {
		h.keyLen = int(n / 8)
	}
	if h.v >= 4 && h.keyLen < 16 {
		h.keyLen = 16
	}
	if h.r >= 5 {
		h.keyLen = 32
	}
	if h.keyLen > 16 && h.r < 5 {
		h.keyLen = 16
	}
	h.o, _ = raw.AsString(get(dict, names.O))
	h.u, _ = raw.AsString(get(dict, names.U))
	h.oe, _ = raw.AsString(get(dict, names.OE))
	h.ue, _ = raw.AsString(get(dict, names.UE))
	h.perms, _ = raw.AsString(get(dict, names.Perms))
	p, _ := raw.AsInt(get(dict, names.P))
	h.p = int32(p)
	if b, ok := raw.AsBool(get(dict, names.EncryptMetadata)); ok {
		h.encryptMeta = b
	}
	if h.r >= 5 && (len(h.o) < 48 || len(h.u) < 48) {
		return nil, errors.New("encryption /O or /U entry too short")
	}
	if h.r < 5 && (len(h.o) < 32 || len(h.u) < 16) {
		return nil, errors.New("encryption /O or /U entry too short")
	}

	base := algoRC4
	if h.v < 4 {
		h.stmF, h.strF = base, base
		return h, nil
	}
	if cf, ok := raw.AsDict(get(dict, names.CF)); ok {
		cf.Each(func(k names.ID, val raw.Object) bool {
			entry, ok := raw.AsDict(resolve(val))
			if !ok {
				return true
			}
			algo := base
			if m, ok := raw.AsName(get(entry, names.CFM)); ok {
				switch m {
				case names.V2:
					algo = algoRC4
				case names.AESV2, names.AESV3:
					algo = algoAES
				case names.None:
					algo = algoNone
				}
			}
			h.cryptFilters[names.Default().String(k)] = algo
			return true
		})
	}
	var err error
	if h.stmF, err = h.filterAlgo(get(dict, names.StmF)); err != nil {
		return nil, err
	}
	if h.strF, err = h.filterAlgo(get(dict, names.StrF)); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handler) filterAlgo(o raw.Object) (cryptAlgo, error) {
	id, ok := raw.AsName(o)
	if !ok || id == names.Identity {
		return algoNone, nil
	}
	name := names.Default().String(id)
	if algo, ok := h.cryptFilters[name]; ok {
		return algo, nil
	}
	return algoUnset, fmt.Errorf("crypt filter %s not defined", name)
}

// Dict returns the /Encrypt dictionary.
func (h *Handler) Dict() *raw.DictObj { return h.dict }

// Revision returns /R.
func (h *Handler) Revision() int { return h.r }

// Method reports the algorithm used for streams.
func (h *Handler) Method() Method {
	switch {
	case h.r >= 5:
		return MethodAES256
	case h.stmF == algoAES:
		return MethodAES128
	case h.keyLen > 5:
		return MethodRC4_128
	}
	return MethodRC4_40
}

// Authenticated reports whether a password was accepted.
func (h *Handler) Authenticated() bool { return h.authed }

// IsOwner reports whether the owner password was accepted.
func (h *Handler) IsOwner() bool { return h.owner }

// EncryptMetadata reports the /EncryptMetadata flag.
func (h *Handler) EncryptMetadata() bool { return h.encryptMeta }

// FileID returns the document identifier the keys are bound to.
func (h *Handler) FileID() []byte { return h.id }

// Authenticate tries password as the user password, then as the owner
// password. It reports whether either matched.
func (h *Handler) Authenticate(password string) bool {
	pwd := preparePassword(password, h.r)
	if h.r >= 5 {
		return h.authenticateAES256(pwd)
	}
	if key, ok := h.checkUser(pwd); ok {
		h.key, h.authed, h.owner = key, true, false
		return true
	}
	user := userPasswordFromOwner(pwd, h.o[:32], h.keyLen, h.r)
	if key, ok := h.checkUser(user); ok {
		h.key, h.authed, h.owner = key, true, true
		return true
	}
	return false
}

func (h *Handler) checkUser(pwd []byte) ([]byte, bool) {
	key := fileKey(pwd, h.o[:32], h.p, h.id, h.keyLen, h.r, h.encryptMeta)
	return key, matchU(computeU(key, h.id, h.r), h.u, h.r)
}

func (h *Handler) authenticateAES256(pwd []byte) bool {
	u := h.u[:48]
	if string(hardenedHash(pwd, u[32:40], nil, h.r)) == string(u[:32]) {
		if key, err := aesCBCRaw(hardenedHash(pwd, u[40:48], nil, h.r), nil, pad32(h.ue), false); err == nil {
			h.key, h.authed, h.owner = key, true, false
			return true
		}
	}
	o := h.o[:48]
	if string(hardenedHash(pwd, o[32:40], u, h.r)) == string(o[:32]) {
		if key, err := aesCBCRaw(hardenedHash(pwd, o[40:48], u, h.r), nil, pad32(h.oe), false); err == nil {
			h.key, h.authed, h.owner = key, true, true
			return true
		}
	}
	return false
}

func pad32(b []byte) []byte {
	if len(b) >= 32 {
		return b[:32]
	}
	return append(append([]byte{}, b...), make([]byte, 32-len(b))...)
}

// PermsValid checks the encrypted /Perms entry of revision 6 against /P.
func (h *Handler) PermsValid() bool {
	if h.r < 5 || !h.authed || len(h.perms) < 16 {
		return true
	}
	block, err := aes.NewCipher(h.key)
	if err != nil {
		return false
	}
	out := make([]byte, 16)
	block.Decrypt(out, h.perms[:16])
	return string(out[9:12]) == "adb" && int32(binary.LittleEndian.Uint32(out[:4])) == h.p
}

// Permissions decodes /P.
func (h *Handler) Permissions() Permissions {
	return Permissions{
		Print:             h.p&(1<<2) != 0,
		Modify:            h.p&(1<<3) != 0,
		Copy:              h.p&(1<<4) != 0,
		ModifyAnnotations: h.p&(1<<5) != 0,
		FillForms:         h.p&(1<<8) != 0,
		ExtractAccessible: h.p&(1<<9) != 0,
		Assemble:          h.p&(1<<10) != 0,
		PrintHighQuality:  h.p&(1<<11) != 0,
	}
}

func (h *Handler) algoFor(class DataClass, filter string) (cryptAlgo, error) {
	if class == DataClassMetadataStream && !h.encryptMeta {
		return algoNone, nil
	}
	switch filter {
	case "Identity":
		return algoNone, nil
	case "":
		if class == DataClassString {
			return h.strF, nil
		}
		return h.stmF, nil
	}
	if algo, ok := h.cryptFilters[filter]; ok {
		return algo, nil
	}
	return algoUnset, fmt.Errorf("crypt filter %s not defined", filter)
}

// Decrypt decrypts data of object (num, gen). filter names a crypt filter
// from /CF; "" selects /StmF or /StrF by class.
func (h *Handler) Decrypt(num, gen int, data []byte, class DataClass, filter string) ([]byte, error) {
	return h.crypt(num, gen, data, class, filter, false)
}

// Encrypt is the inverse of Decrypt.
func (h *Handler) Encrypt(num, gen int, data []byte, class DataClass, filter string) ([]byte, error) {
	return h.crypt(num, gen, data, class, filter, true)
}

func (h *Handler) crypt(num, gen int, data []byte, class DataClass, filter string, encrypt bool) ([]byte, error) {
	if !h.authed {
		return nil, ErrNotAuthenticated
	}
	algo, err := h.algoFor(class, filter)
	if err != nil {
		return nil, err
	}
	if algo == algoNone || (len(data) == 0 && !encrypt) {
		return data, nil
	}
	key := objectKey(h.key, num, gen, h.r, algo == algoAES)
	if algo == algoAES {
		return aesCrypt(key, data, encrypt)
	}
	return rc4Crypt(key, data)
}
