package security

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"hash"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/secure/precis"
)

// preparePassword converts a password to the bytes fed to key derivation.
// Revisions 5 and 6 take SASLprep'd UTF-8 truncated to 127 bytes; older
// revisions take PDFDocEncoding, approximated by Latin-1.
func preparePassword(pwd string, r int) []byte {
	if r >= 5 {
		if p, err := precis.OpaqueString.String(pwd); err == nil {
			pwd = p
		}
		b := []byte(pwd)
		if len(b) > 127 {
			b = b[:127]
		}
		return b
	}
	if s, err := charmap.ISO8859_1.NewEncoder().String(pwd); err == nil {
		return []byte(s)
	}
	return []byte(pwd)
}

// fileKey computes the file encryption key from a user password
// (revisions 2-4).
func fileKey(pwd, owner []byte, p int32, id []byte, n, r int, encryptMeta bool) []byte {
	h := md5.New()
	h.Write(padPassword(pwd))
	h.Write(owner)
	var pb [4]byte
	binary.LittleEndian.PutUint32(pb[:], uint32(p))
	h.Write(pb[:])
	h.Write(id)
	if r >= 4 && !encryptMeta {
		h.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	}
	key := h.Sum(nil)
	if r >= 3 {
		for i := 0; i < 50; i++ {
			sum := md5.Sum(key[:n])
			key = sum[:]
		}
	}
	return key[:n]
}

// ownerRC4Key is the RC4 key derived from the owner password that wraps
// the padded user password in /O.
func ownerRC4Key(owner []byte, n, r int) []byte {
	sum := md5.Sum(padPassword(owner))
	key := sum[:]
	if r >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key)
			key = sum[:]
		}
	}
	return key[:n]
}

func xorKey(key []byte, i byte) []byte {
	out := make([]byte, len(key))
	for j := range key {
		out[j] = key[j] ^ i
	}
	return out
}

// computeO builds the /O entry for revisions 2-4.
func computeO(owner, user []byte, n, r int) []byte {
	key := ownerRC4Key(owner, n, r)
	out := rc4Simple(key, padPassword(user))
	if r >= 3 {
		for i := byte(1); i <= 19; i++ {
			out = rc4Simple(xorKey(key, i), out)
		}
	}
	return out
}

// computeU builds the /U entry for revisions 2-4 from the file key.
func computeU(key, id []byte, r int) []byte {
	if r == 2 {
		return rc4Simple(key, passwordPadding)
	}
	h := md5.New()
	h.Write(passwordPadding)
	h.Write(id)
	out := rc4Simple(key, h.Sum(nil))
	for i := byte(1); i <= 19; i++ {
		out = rc4Simple(xorKey(key, i), out)
	}
	return append(out, make([]byte, 16)...)
}

// userPasswordFromOwner unwraps /O with the owner password, yielding the
// padded user password.
func userPasswordFromOwner(owner, o []byte, n, r int) []byte {
	key := ownerRC4Key(owner, n, r)
	if r == 2 {
		return rc4Simple(key, o)
	}
	out := append([]byte{}, o...)
	for i := 19; i >= 0; i-- {
		out = rc4Simple(xorKey(key, byte(i)), out)
	}
	return out
}

func matchU(computed, u []byte, r int) bool {
	n := 32
	if r >= 3 {
		n = 16
	}
	if len(computed) < n || len(u) < n {
		return false
	}
	return string(computed[:n]) == string(u[:n])
}

// hardenedHash is the password hash of revisions 5 and 6. Revision 5 is a
// single SHA-256; revision 6 iterates AES-128-CBC and SHA-2 rounds until
// at least 64 rounds ran and the last encrypted byte allows stopping.
func hardenedHash(pwd, salt, udata []byte, r int) []byte {
	h := sha256.New()
	h.Write(pwd)
	h.Write(salt)
	h.Write(udata)
	k := h.Sum(nil)
	if r < 6 {
		return k
	}
	for round := 0; ; round++ {
		seq := make([]byte, 0, len(pwd)+len(k)+len(udata))
		seq = append(append(append(seq, pwd...), k...), udata...)
		k1 := make([]byte, 0, 64*len(seq))
		for i := 0; i < 64; i++ {
			k1 = append(k1, seq...)
		}
		e, err := aesCBCRaw(k[:16], k[16:32], k1, true)
		if err != nil {
			return k[:32]
		}
		sum := 0
		for _, b := range e[:16] {
			sum += int(b)
		}
		var next hash.Hash
		switch sum % 3 {
		case 0:
			next = sha256.New()
		case 1:
			next = sha512.New384()
		default:
			next = sha512.New()
		}
		next.Write(e)
		k = next.Sum(nil)
		if round >= 63 && int(e[len(e)-1]) <= round-32 {
			break
		}
	}
	return k[:32]
}
