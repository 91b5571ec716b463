package oracle

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	qt "github.com/frankban/quicktest"
	"github.com/rs/zerolog"
	"github.com/vocdoni/private-rollup/abis"
)

type squareCircuit struct {
	Square frontend.Variable `gnark:",public"`
	Root   frontend.Variable
}

func (c *squareCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(api.Mul(c.Root, c.Root), c.Square)
	return nil
}

func square(root, sq uint64) Claim {
	return Claim{Key: "square", Circuit: &squareCircuit{}, Assignment: &squareCircuit{Square: sq, Root: root}}
}

func TestGnarkCheck(t *testing.T) {
	c := qt.New(t)
	g := NewGnark(zerolog.Nop())
	c.Assert(g.Check(nil), qt.IsNil)
	c.Assert(g.Check([]Claim{square(3, 9), square(4, 16)}), qt.IsNil)
	c.Assert(g.compiled, qt.HasLen, 1)

	err := g.Check([]Claim{square(3, 9), square(3, 10)})
	c.Assert(err, qt.ErrorMatches, `claim 1 \(square\): .*`)

	_, err = Prove(g, abis.StageBaseRollup, fr.NewElement(1), []Claim{square(2, 5)})
	c.Assert(err, qt.IsNotNil)
}

func TestProofBinding(t *testing.T) {
	c := qt.New(t)
	hash := fr.NewElement(42)
	for _, o := range []Oracle{NewGnark(zerolog.Nop()), Trusted{}} {
		proof, err := Prove(o, abis.StageMergeRollup, hash, []Claim{square(5, 25)})
		c.Assert(err, qt.IsNil)
		c.Assert(Bound(proof, abis.StageMergeRollup, hash), qt.IsTrue)
		c.Assert(Bound(proof, abis.StageBaseRollup, hash), qt.IsFalse)
		c.Assert(Bound(proof, abis.StageMergeRollup, fr.NewElement(43)), qt.IsFalse)
	}
	// keys of different backends never verify each other
	c.Assert(NewGnark(zerolog.Nop()).VerificationKey(abis.StageRootRollup), qt.Not(qt.DeepEquals),
		Trusted{}.VerificationKey(abis.StageRootRollup))
	c.Assert(Trusted{}.Check([]Claim{square(3, 10)}), qt.IsNil)
}
