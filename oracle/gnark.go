package oracle

import (
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/rs/zerolog"
	"github.com/vocdoni/private-rollup/abis"
)

// Gnark checks claims by compiling their shapes to R1CS over BN254 and
// solving them with the assignment. Compiled shapes are cached by key, and
// it is safe for concurrent use.
type Gnark struct {
	log      zerolog.Logger
	mu       sync.Mutex
	compiled map[string]constraint.ConstraintSystem
}

// NewGnark returns a gnark backed oracle.
func NewGnark(log zerolog.Logger) *Gnark {
	return &Gnark{log: log, compiled: map[string]constraint.ConstraintSystem{}}
}

func (g *Gnark) compile(c Claim) (constraint.ConstraintSystem, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ccs, ok := g.compiled[c.Key]; ok {
		return ccs, nil
	}
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, c.Circuit)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", c.Key, err)
	}
	g.log.Debug().Str("claim", c.Key).Int("constraints", ccs.GetNbConstraints()).Msg("compiled")
	g.compiled[c.Key] = ccs
	return ccs, nil
}

// Check solves every claim.
func (g *Gnark) Check(claims []Claim) error {
	for i, c := range claims {
		ccs, err := g.compile(c)
		if err != nil {
			return err
		}
		w, err := frontend.NewWitness(c.Assignment, ecc.BN254.ScalarField())
		if err != nil {
			return fmt.Errorf("claim %d (%s): witness: %w", i, c.Key, err)
		}
		if err := ccs.IsSolved(w); err != nil {
			return fmt.Errorf("claim %d (%s): %w", i, c.Key, err)
		}
	}
	return nil
}

func (g *Gnark) Finalize(stage abis.Stage, publicInputsHash fr.Element) (abis.Proof, error) {
	return finalize("gnark", stage, publicInputsHash), nil
}

func (g *Gnark) VerificationKey(stage abis.Stage) abis.VerificationKey {
	return verificationKey("gnark", stage)
}
