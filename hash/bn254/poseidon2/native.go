package poseidon2

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
)

// Tag is the domain separator absorbed as the first limb of every hash, so
// that the same inputs hashed for two different purposes never collide.
type Tag uint32

var (
	// TypeHashPoseidon2 identifies the Poseidon2-BN254 hash
	TypeHashPoseidon2 = []byte("poseidon2")
	// BN254BaseField is the base field for the BN254 curve.
	BN254BaseField = fr.Modulus()
)

var perm2 = poseidon2.NewPermutation(2 /*t*/, 6 /*rF*/, 50 /*rP*/)

// Hash computes H(tag, limbs...) natively. The tag and every limb are
// absorbed one at a time with Merkle–Damgård chaining over the width-2
// Poseidon-2 permutation, which keeps it compatible with HashGnark.
func Hash(tag Tag, limbs ...fr.Element) fr.Element {
	var cv fr.Element // CV₀ := 0
	absorb := func(m *fr.Element) {
		st := [...]fr.Element{cv, *m}
		// the state width is fixed, the permutation cannot fail
		if err := perm2.Permutation(st[:]); err != nil {
			panic(err)
		}
		cv.Add(&st[1], m) // CVᵢ₊₁ = S₁ + mᵢ
	}
	t := fr.NewElement(uint64(tag))
	absorb(&t)
	for i := range limbs {
		absorb(&limbs[i])
	}
	return cv
}

// HashBigInt is Hash over big.Int limbs, reduced into the scalar field.
func HashBigInt(tag Tag, limbs ...*big.Int) *big.Int {
	elems := make([]fr.Element, len(limbs))
	for i, l := range limbs {
		elems[i].SetBigInt(BigToFF(BN254BaseField, l))
	}
	res := Hash(tag, elems...)
	return res.BigInt(new(big.Int))
}

func BigToFF(baseField, iv *big.Int) *big.Int {
	return new(big.Int).Mod(iv, baseField)
}
