package abis

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/private-rollup/hash/calldata"
)

// RollupType tells base and merge outputs apart.
type RollupType uint8

const (
	RollupTypeBase RollupType = iota
	RollupTypeMerge
)

func (t RollupType) String() string {
	if t == RollupTypeBase {
		return "base"
	}
	return "merge"
}

// ConstantRollupData is shared by every rollup of a block.
type ConstantRollupData struct {
	StartHistoricNoteHashTreeRootsSnapshot Snapshot
	StartHistoricContractTreeRootsSnapshot Snapshot
	StartHistoricL1ToL2TreeRootsSnapshot   Snapshot
	ChainID                                fr.Element
	Version                                fr.Element
}

// Equal reports whether both constant sets are identical.
func (c ConstantRollupData) Equal(o ConstantRollupData) bool {
	return c.StartHistoricNoteHashTreeRootsSnapshot.Equal(o.StartHistoricNoteHashTreeRootsSnapshot) &&
		c.StartHistoricContractTreeRootsSnapshot.Equal(o.StartHistoricContractTreeRootsSnapshot) &&
		c.StartHistoricL1ToL2TreeRootsSnapshot.Equal(o.StartHistoricL1ToL2TreeRootsSnapshot) &&
		c.ChainID.Equal(&o.ChainID) && c.Version.Equal(&o.Version)
}

func (c ConstantRollupData) write(w *fieldWriter) {
	w.snapshot(c.StartHistoricNoteHashTreeRootsSnapshot)
	w.snapshot(c.StartHistoricContractTreeRootsSnapshot)
	w.snapshot(c.StartHistoricL1ToL2TreeRootsSnapshot)
	w.add(c.ChainID, c.Version)
}

// BaseOrMergeRollupPublicInputs are the outputs of base and merge rollups.
type BaseOrMergeRollupPublicInputs struct {
	RollupType          RollupType
	RollupSubtreeHeight uint32
	AggregationObject   AggregationObject
	Constants           ConstantRollupData

	StartNoteHashTreeSnapshot  Snapshot
	EndNoteHashTreeSnapshot    Snapshot
	StartNullifierTreeSnapshot Snapshot
	EndNullifierTreeSnapshot   Snapshot
	StartContractTreeSnapshot  Snapshot
	EndContractTreeSnapshot    Snapshot

	CalldataHash calldata.Digest
}

// Hash commits to every public input. Proofs are bound to it.
func (p BaseOrMergeRollupPublicInputs) Hash() fr.Element {
	var w fieldWriter
	w.u64(uint64(p.RollupType))
	w.u64(uint64(p.RollupSubtreeHeight))
	w.add(p.AggregationObject.fields()...)
	p.Constants.write(&w)
	for _, s := range []Snapshot{
		p.StartNoteHashTreeSnapshot, p.EndNoteHashTreeSnapshot,
		p.StartNullifierTreeSnapshot, p.EndNullifierTreeSnapshot,
		p.StartContractTreeSnapshot, p.EndContractTreeSnapshot,
	} {
		w.snapshot(s)
	}
	w.digest(p.CalldataHash)
	return w.hash(GeneratorRollupPublicInputs)
}

// PreviousRollupData is a base or merge output with its proof and key.
type PreviousRollupData struct {
	PublicInputs BaseOrMergeRollupPublicInputs
	Proof        Proof
	VK           VerificationKeyWitness
}

// BaseRollupInputs are two finalized transactions and every witness needed
// to insert their effects into the note hash, nullifier and contract trees.
type BaseRollupInputs struct {
	Kernels [2]PreviousKernelData

	StartNoteHashTreeSnapshot  Snapshot
	StartNullifierTreeSnapshot Snapshot
	StartContractTreeSnapshot  Snapshot

	NoteHashSubtreeSiblingPath []fr.Element
	ContractSubtreeSiblingPath []fr.Element
	// one per occupied nullifier, left kernel first
	LowNullifierWitnesses []LowLeafWitness

	HistoricNoteHashRootWitnesses [2]MembershipWitness
	HistoricContractRootWitnesses [2]MembershipWitness
	HistoricL1ToL2RootWitnesses   [2]MembershipWitness

	Constants ConstantRollupData
}

// MergeRollupInputs are two base or merge outputs.
type MergeRollupInputs struct {
	Rollups [2]PreviousRollupData
}

// RootRollupInputs are the final pair of the block plus the L1 to L2
// messages and the witnesses to append the new roots to the historic trees.
type RootRollupInputs struct {
	Rollups [2]PreviousRollupData

	L1ToL2Messages                   []fr.Element
	StartL1ToL2MessagesTreeSnapshot  Snapshot
	L1ToL2MessagesSubtreeSiblingPath []fr.Element

	HistoricNoteHashRootsAppendPath []fr.Element
	HistoricContractRootsAppendPath []fr.Element
	HistoricL1ToL2RootsAppendPath   []fr.Element
}

// RootRollupPublicInputs are the block outputs published to L1.
type RootRollupPublicInputs struct {
	AggregationObject AggregationObject

	StartNoteHashTreeSnapshot       Snapshot
	EndNoteHashTreeSnapshot         Snapshot
	StartNullifierTreeSnapshot      Snapshot
	EndNullifierTreeSnapshot        Snapshot
	StartContractTreeSnapshot       Snapshot
	EndContractTreeSnapshot         Snapshot
	StartL1ToL2MessagesTreeSnapshot Snapshot
	EndL1ToL2MessagesTreeSnapshot   Snapshot

	StartHistoricNoteHashTreeRootsSnapshot Snapshot
	EndHistoricNoteHashTreeRootsSnapshot   Snapshot
	StartHistoricContractTreeRootsSnapshot Snapshot
	EndHistoricContractTreeRootsSnapshot   Snapshot
	StartHistoricL1ToL2TreeRootsSnapshot   Snapshot
	EndHistoricL1ToL2TreeRootsSnapshot     Snapshot

	CalldataHash       calldata.Digest
	L1ToL2MessagesHash calldata.Digest
}

// Hash commits to every public input. Proofs are bound to it.
func (p RootRollupPublicInputs) Hash() fr.Element {
	var w fieldWriter
	w.add(p.AggregationObject.fields()...)
	for _, s := range []Snapshot{
		p.StartNoteHashTreeSnapshot, p.EndNoteHashTreeSnapshot,
		p.StartNullifierTreeSnapshot, p.EndNullifierTreeSnapshot,
		p.StartContractTreeSnapshot, p.EndContractTreeSnapshot,
		p.StartL1ToL2MessagesTreeSnapshot, p.EndL1ToL2MessagesTreeSnapshot,
		p.StartHistoricNoteHashTreeRootsSnapshot, p.EndHistoricNoteHashTreeRootsSnapshot,
		p.StartHistoricContractTreeRootsSnapshot, p.EndHistoricContractTreeRootsSnapshot,
		p.StartHistoricL1ToL2TreeRootsSnapshot, p.EndHistoricL1ToL2TreeRootsSnapshot,
	} {
		w.snapshot(s)
	}
	w.digest(p.CalldataHash)
	w.digest(p.L1ToL2MessagesHash)
	return w.hash(GeneratorRootRollupPublicInputs)
}
