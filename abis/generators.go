// Package abis defines the data exchanged between the kernel and rollup
// stages and the domain-separated hashing over it.
package abis

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/private-rollup/hash/bn254/poseidon2"
)

// Domain tags of H, one per use site.
const (
	GeneratorNoteHash poseidon2.Tag = iota + 1
	GeneratorNoteHashNonce
	GeneratorUniqueNoteHash
	GeneratorSiloNoteHash
	GeneratorNullifier
	GeneratorSiloNullifier
	GeneratorTxRequest
	GeneratorTxContext
	GeneratorCallContext
	GeneratorCallStackItem
	GeneratorFunctionData
	GeneratorFunctionLeaf
	GeneratorContractDeploymentData
	GeneratorContractLeaf
	GeneratorContractAddress
	GeneratorL2ToL1Msg
	GeneratorPrivateCircuitPublicInputs
	GeneratorMerkleNode
	GeneratorNullifierLeaf
	GeneratorKernelPublicInputs
	GeneratorRollupPublicInputs
	GeneratorRootRollupPublicInputs
	GeneratorSignature
	GeneratorConstructor
)

// EmptyNullifiedNoteHash marks a nullifier that does not consume a note hash
// created in the same transaction.
var EmptyNullifiedNoteHash = fr.NewElement(1000000)

// H is the domain-separated field hash.
func H(tag poseidon2.Tag, inputs ...fr.Element) fr.Element {
	return poseidon2.Hash(tag, inputs...)
}
