package utils

import (
	"encoding/binary"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
)

// FromUint64 returns v as a field element.
func FromUint64(v uint64) fr.Element {
	return fr.NewElement(v)
}

// FromBool returns 1 or 0.
func FromBool(b bool) fr.Element {
	if b {
		return fr.One()
	}
	return fr.Element{}
}

// FromBigInt reduces v into the scalar field.
func FromBigInt(v *big.Int) fr.Element {
	var e fr.Element
	e.SetBigInt(v)
	return e
}

// FromBytes interprets b as a big-endian integer reduced into the field.
func FromBytes(b []byte) fr.Element {
	var e fr.Element
	e.SetBytes(b)
	return e
}

// FromAddress encodes an L1 address as a field element.
func FromAddress(a common.Address) fr.Element {
	return FromBytes(a.Bytes())
}

// BigInt returns the canonical integer of e.
func BigInt(e fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}

// BigInts converts every element.
func BigInts(es []fr.Element) []*big.Int {
	res := make([]*big.Int, len(es))
	for i, e := range es {
		res[i] = BigInt(e)
	}
	return res
}

// Less reports whether a < b as canonical integers.
func Less(a, b fr.Element) bool {
	return a.Cmp(&b) < 0
}

// Equal reports whether a == b.
func Equal(a, b fr.Element) bool {
	return a.Equal(&b)
}

// Uint64Bytes encodes v as 8 big-endian bytes.
func Uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Log2 returns the base-2 logarithm of n and whether n is a power of two.
func Log2(n int) (int, bool) {
	if n <= 0 || n&(n-1) != 0 {
		return 0, false
	}
	d := 0
	for n > 1 {
		n >>= 1
		d++
	}
	return d, true
}
