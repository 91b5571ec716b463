package abis

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Stage names a kernel or rollup circuit. Verification keys are indexed by
// stage in the verification key tree.
type Stage uint8

const (
	StageUnknown Stage = iota
	StageKernelInit
	StageKernelInner
	StageKernelOrdering
	StageEmptyKernel
	StageBaseRollup
	StageMergeRollup
	StageRootRollup
)

var stageNames = map[Stage]string{
	StageUnknown:        "unknown",
	StageKernelInit:     "kernel-init",
	StageKernelInner:    "kernel-inner",
	StageKernelOrdering: "kernel-ordering",
	StageEmptyKernel:    "empty-kernel",
	StageBaseRollup:     "base-rollup",
	StageMergeRollup:    "merge-rollup",
	StageRootRollup:     "root-rollup",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return stageNames[StageUnknown]
}

// Stages lists every stage that owns a verification key.
func Stages() []Stage {
	return []Stage{
		StageKernelInit, StageKernelInner, StageKernelOrdering, StageEmptyKernel,
		StageBaseRollup, StageMergeRollup, StageRootRollup,
	}
}

// Proof is an opaque proof artifact. Only its stage and the commitment to
// the public inputs it proves are ever inspected.
type Proof struct {
	Stage            Stage
	PublicInputsHash fr.Element
	Data             []byte
}

// VerificationKey is an opaque verification key of one stage.
type VerificationKey struct {
	Stage Stage
	Data  []byte
}

// VerificationKeyWitness proves a key belongs to the verification key tree.
// Siblings are packed the way the key tree packs them.
type VerificationKeyWitness struct {
	Key      VerificationKey
	Index    uint64
	Siblings []byte
}

// CombinedConstantData is fixed for the whole life of a transaction.
type CombinedConstantData struct {
	HistoricTreeRoots HistoricTreeRoots
	TxContext         TxContext
}

// Equal reports whether both constant sets are identical.
func (c CombinedConstantData) Equal(o CombinedConstantData) bool {
	return c.HistoricTreeRoots.Equal(o.HistoricTreeRoots) && c.TxContext.Equal(o.TxContext)
}

// KernelPublicInputs are the public outputs of every kernel stage.
type KernelPublicInputs struct {
	End       AccumulatedData
	Constants CombinedConstantData
	IsPrivate bool
}

// Hash commits to every public input. Proofs are bound to it.
func (k KernelPublicInputs) Hash() fr.Element {
	var w fieldWriter
	k.End.write(&w)
	w.add(k.Constants.HistoricTreeRoots.fields()...)
	w.add(k.Constants.TxContext.Hash())
	w.bool(k.IsPrivate)
	return w.hash(GeneratorKernelPublicInputs)
}

// PreviousKernelData is a kernel output with its proof and key, consumed
// exactly once by the next kernel stage or by a base rollup.
type PreviousKernelData struct {
	PublicInputs KernelPublicInputs
	Proof        Proof
	VK           VerificationKeyWitness
}
