package utils

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
)

func TestFieldConversions(t *testing.T) {
	c := qt.New(t)
	c.Assert(BigInt(FromUint64(42)).Int64(), qt.Equals, int64(42))
	yes, no := FromBool(true), FromBool(false)
	c.Assert(yes.IsOne(), qt.IsTrue)
	c.Assert(no.IsZero(), qt.IsTrue)

	over := new(big.Int).Add(fr.Modulus(), big.NewInt(5))
	c.Assert(Equal(FromBigInt(over), FromUint64(5)), qt.IsTrue)

	addr := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	c.Assert(Equal(FromAddress(addr), FromUint64(255)), qt.IsTrue)
	c.Assert(BigInts([]fr.Element{FromUint64(1), FromUint64(2)}), qt.HasLen, 2)
}

func TestLess(t *testing.T) {
	c := qt.New(t)
	c.Assert(Less(FromUint64(1), FromUint64(2)), qt.IsTrue)
	c.Assert(Less(FromUint64(2), FromUint64(2)), qt.IsFalse)
	// -1 is the largest canonical value
	var minusOne fr.Element
	one := fr.One()
	minusOne.Neg(&one)
	c.Assert(Less(FromUint64(1<<62), minusOne), qt.IsTrue)
}

func TestLog2(t *testing.T) {
	c := qt.New(t)
	for n, want := range map[int]int{1: 0, 2: 1, 8: 3, 128: 7} {
		d, ok := Log2(n)
		c.Assert(ok, qt.IsTrue)
		c.Assert(d, qt.Equals, want)
	}
	for _, n := range []int{0, 3, 6, -4} {
		_, ok := Log2(n)
		c.Assert(ok, qt.IsFalse)
	}
	c.Assert(Uint64Bytes(258), qt.DeepEquals, []byte{0, 0, 0, 0, 0, 0, 1, 2})
}
