// Package oracle is the boundary with the proving engine. Stages never see
// a proving backend: they hand claims to an Oracle and ask it to finalize a
// proof over the commitment to their public inputs.
package oracle

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/vocdoni/private-rollup/abis"
)

// Claim is a constraint system shape and an assignment that must satisfy
// it. Claims sharing a Key share the same compiled shape.
type Claim struct {
	Key        string
	Circuit    frontend.Circuit
	Assignment frontend.Circuit
}

// Oracle checks constraints and produces opaque proofs.
type Oracle interface {
	// Check returns an error if any claim is not satisfied.
	Check(claims []Claim) error
	// Finalize returns the proof of stage over its public inputs hash.
	Finalize(stage abis.Stage, publicInputsHash fr.Element) (abis.Proof, error)
	// VerificationKey returns the key proofs of stage verify against.
	VerificationKey(stage abis.Stage) abis.VerificationKey
}

// Bound reports whether proof was produced by stage for the public inputs
// whose hash is given.
func Bound(proof abis.Proof, stage abis.Stage, publicInputsHash fr.Element) bool {
	return proof.Stage == stage && proof.PublicInputsHash.Equal(&publicInputsHash)
}

func finalize(scheme string, stage abis.Stage, publicInputsHash fr.Element) abis.Proof {
	b := publicInputsHash.Bytes()
	return abis.Proof{
		Stage:            stage,
		PublicInputsHash: publicInputsHash,
		Data:             append([]byte(fmt.Sprintf("%s/%s/", scheme, stage)), b[:]...),
	}
}

func verificationKey(scheme string, stage abis.Stage) abis.VerificationKey {
	return abis.VerificationKey{Stage: stage, Data: []byte(fmt.Sprintf("%s/bn254/%s", scheme, stage))}
}

// Trusted accepts every claim. It is meant for simulation, where the
// native checks of the stages are the only ones that run.
type Trusted struct{}

func (Trusted) Check([]Claim) error { return nil }

func (Trusted) Finalize(stage abis.Stage, publicInputsHash fr.Element) (abis.Proof, error) {
	return finalize("trusted", stage, publicInputsHash), nil
}

func (Trusted) VerificationKey(stage abis.Stage) abis.VerificationKey {
	return verificationKey("trusted", stage)
}

// Prove checks claims with o and, when they all hold, finalizes the proof
// of stage over publicInputsHash.
func Prove(o Oracle, stage abis.Stage, publicInputsHash fr.Element, claims []Claim) (abis.Proof, error) {
	if err := o.Check(claims); err != nil {
		return abis.Proof{}, fmt.Errorf("%s: %w", stage, err)
	}
	return o.Finalize(stage, publicInputsHash)
}
