// Package calldata implements the fixed-width public hash that binds the
// effects of a rollup for external settlement and accumulates log digests.
// It is plain sha256 so any L1 contract can recompute it.
package calldata

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/minio/sha256-simd"
)

// Size is the length in bytes of a calldata digest.
const Size = sha256.Size

// Digest is a calldata hash.
type Digest [Size]byte

// Hash returns sha256 over the concatenation of the chunks provided.
func Hash(chunks ...[]byte) Digest {
	h := sha256.New()
	for _, c := range chunks {
		h.Write(c)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// Pair returns sha256(left ‖ right), the node of the calldata merge tree.
func Pair(left, right Digest) Digest {
	return Hash(left[:], right[:])
}

// Accumulate folds a new digest into a running one: acc' = sha256(acc ‖ d).
// A zero digest is treated as "nothing to fold" and leaves acc unchanged.
func Accumulate(acc, d Digest) Digest {
	if d.IsZero() {
		return acc
	}
	return Pair(acc, d)
}

// IsZero reports whether every byte of the digest is zero.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Fields splits the digest into two field elements (high and low 16 bytes)
// so it can be committed to by the field-native hash.
func (d Digest) Fields() (hi, lo fr.Element) {
	hi.SetBytes(d[:16])
	lo.SetBytes(d[16:])
	return hi, lo
}

// Encoder appends 32-byte big-endian words to a calldata buffer.
type Encoder struct {
	buf []byte
}

// Field appends the canonical 32-byte encoding of a field element.
func (e *Encoder) Field(v fr.Element) *Encoder {
	b := v.Bytes()
	e.buf = append(e.buf, b[:]...)
	return e
}

// Fields appends every element in order.
func (e *Encoder) Fields(vs ...fr.Element) *Encoder {
	for _, v := range vs {
		e.Field(v)
	}
	return e
}

// Word appends a raw 32-byte word.
func (e *Encoder) Word(w [32]byte) *Encoder {
	e.buf = append(e.buf, w[:]...)
	return e
}

// Bytes returns the encoded buffer.
func (e *Encoder) Bytes() []byte { return e.buf }

// Digest returns the hash of the encoded buffer.
func (e *Encoder) Digest() Digest { return Hash(e.buf) }
