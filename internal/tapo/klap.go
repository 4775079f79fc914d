package tapo

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	seedLen      = 16
	signatureLen = sha256.Size
)

var errBadPadding = errors.New("invalid PKCS#7 padding")

// authHash is the KLAP v2 credential digest: sha256(sha1(user) || sha1(pass)).
func authHash(username, password string) []byte {
	u := sha1.Sum([]byte(username))
	p := sha1.Sum([]byte(password))
	return sha256Sum(u[:], p[:])
}

func sha256Sum(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// klapCipher holds the per-session keys derived from both seeds and the
// auth hash. Every request uses a fresh sequence number; the response to
// that request is encrypted with the same one.
type klapCipher struct {
	key    []byte
	ivBase []byte
	sigKey []byte
	seq    int32
}

func newKlapCipher(local, remote, auth []byte) *klapCipher {
	seeds := make([]byte, 0, len(local)+len(remote)+len(auth))
	seeds = append(seeds, local...)
	seeds = append(seeds, remote...)
	seeds = append(seeds, auth...)

	iv := sha256Sum([]byte("iv"), seeds)
	return &klapCipher{
		key:    sha256Sum([]byte("lsk"), seeds)[:16],
		ivBase: iv[:12],
		sigKey: sha256Sum([]byte("ldk"), seeds)[:28],
		seq:    int32(binary.BigEndian.Uint32(iv[28:32])),
	}
}

// encrypt advances the sequence and returns the signed payload with the
// sequence number it was sealed under.
func (c *klapCipher) encrypt(plaintext []byte) ([]byte, int32, error) {
	c.seq++
	payload, err := c.seal(c.seq, plaintext)
	return payload, c.seq, err
}

// seal returns signature || AES-CBC(plaintext) for seq.
func (c *klapCipher) seal(seq int32, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.ivFor(seq)).CryptBlocks(ct, padded)

	out := make([]byte, 0, signatureLen+len(ct))
	out = append(out, c.signature(seq, ct)...)
	return append(out, ct...), nil
}

// open decrypts a payload sealed under seq. The hub's signature is not
// checked.
func (c *klapCipher) open(seq int32, payload []byte) ([]byte, error) {
	if len(payload) < signatureLen+aes.BlockSize || (len(payload)-signatureLen)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("encrypted payload has invalid length %d", len(payload))
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	ct := payload[signatureLen:]
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, c.ivFor(seq)).CryptBlocks(plain, ct)
	return pkcs7Unpad(plain, aes.BlockSize)
}

func (c *klapCipher) signature(seq int32, ct []byte) []byte {
	return sha256Sum(c.sigKey, seqBytes(seq), ct)
}

func (c *klapCipher) ivFor(seq int32) []byte {
	iv := make([]byte, aes.BlockSize)
	copy(iv, c.ivBase)
	binary.BigEndian.PutUint32(iv[12:], uint32(seq))
	return iv
}

func seqBytes(seq int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(seq))
	return b
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append([]byte{}, b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, errBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, errBadPadding
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errBadPadding
		}
	}
	return b[:len(b)-n], nil
}
