package security

import (
	"crypto/aes"
	"encoding/binary"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
)

// PermissionsValue builds the /P flags for p. Reserved bits are set.
func PermissionsValue(p Permissions) int32 {
	val := int32(-3904) // 0xFFFFF0C0
	set := func(ok bool, bit uint) {
		if ok {
			val |= 1 << bit
		}
	}
	set(p.Print, 2)
	set(p.Modify, 3)
	set(p.Copy, 4)
	set(p.ModifyAnnotations, 5)
	set(p.FillForms, 8)
	set(p.ExtractAccessible, 9)
	set(p.Assemble, 10)
	set(p.PrintHighQuality, 11)
	return val
}

// New creates an authenticated handler and its /Encrypt dictionary for
// writing a document encrypted with method. An empty owner password
// defaults to the user password.
func New(method Method, user, owner string, perms Permissions, fileID []byte) (*Handler, error) {
	if owner == "" {
		owner = user
	}
	h := &Handler{id: fileID, encryptMeta: true, p: PermissionsValue(perms), cryptFilters: map[string]cryptAlgo{}}
	d := raw.NewDict()
	d.Set(names.Filter, raw.Name("Standard"))
	switch method {
	case MethodRC4_40:
		h.v, h.r, h.keyLen = 1, 2, 5
	case MethodRC4_128:
		h.v, h.r, h.keyLen = 2, 3, 16
	case MethodAES128:
		h.v, h.r, h.keyLen = 4, 4, 16
	case MethodAES256:
		h.v, h.r, h.keyLen = 5, 6, 32
	default:
		h.v, h.r, h.keyLen = 1, 2, 5
	}
	h.stmF, h.strF = algoRC4, algoRC4
	if h.v >= 4 {
		h.stmF, h.strF = algoAES, algoAES
		h.cryptFilters["StdCF"] = algoAES
		cfm := names.AESV2
		if h.r >= 5 {
			cfm = names.AESV3
		}
		std := raw.DictOf(names.Type, raw.Name("CryptFilter"), names.CFM, raw.NameID(cfm), names.Length, raw.Int(int64(h.keyLen)))
		d.Set(names.CF, raw.DictOf(names.StdCF, std))
		d.Set(names.StmF, raw.NameID(names.StdCF))
		d.Set(names.StrF, raw.NameID(names.StdCF))
	}
	d.Set(names.V, raw.Int(int64(h.v)))
	d.Set(names.R, raw.Int(int64(h.r)))
	d.Set(names.Length, raw.Int(int64(h.keyLen*8)))

	upwd := preparePassword(user, h.r)
	opwd := preparePassword(owner, h.r)
	if h.r >= 5 {
		if err := h.initAES256(upwd, opwd); err != nil {
			return nil, err
		}
		d.Set(names.OE, raw.Str(h.oe))
		d.Set(names.UE, raw.Str(h.ue))
		d.Set(names.Perms, raw.Str(h.perms))
	} else {
		h.o = computeO(opwd, upwd, h.keyLen, h.r)
		h.key = fileKey(upwd, h.o, h.p, h.id, h.keyLen, h.r, h.encryptMeta)
		h.u = computeU(h.key, h.id, h.r)
	}
	d.Set(names.O, raw.Str(h.o))
	d.Set(names.U, raw.Str(h.u))
	d.Set(names.P, raw.Int(int64(h.p)))
	h.dict = d
	h.authed, h.owner = true, true
	return h, nil
}

func (h *Handler) initAES256(upwd, opwd []byte) error {
	key, err := randomBytes(32)
	if err != nil {
		return err
	}
	salts, err := randomBytes(32)
	if err != nil {
		return err
	}
	uvs, uks, ovs, oks := salts[0:8], salts[8:16], salts[16:24], salts[24:32]

	h.u = append(append(hardenedHash(upwd, uvs, nil, h.r), uvs...), uks...)
	if h.ue, err = aesCBCRaw(hardenedHash(upwd, uks, nil, h.r), nil, key, true); err != nil {
		return err
	}
	h.o = append(append(hardenedHash(opwd, ovs, h.u, h.r), ovs...), oks...)
	if h.oe, err = aesCBCRaw(hardenedHash(opwd, oks, h.u, h.r), nil, key, true); err != nil {
		return err
	}

	perms := make([]byte, 16)
	binary.LittleEndian.PutUint32(perms[0:4], uint32(h.p))
	binary.LittleEndian.PutUint32(perms[4:8], 0xFFFFFFFF)
	perms[8] = 'T'
	if !h.encryptMeta {
		perms[8] = 'F'
	}
	copy(perms[9:12], "adb")
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	h.perms = make([]byte, 16)
	block.Encrypt(h.perms, perms)
	h.key = key
	return nil
}
