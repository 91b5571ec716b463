package abis

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Snapshot is the whole externally observable state of an append-only tree.
type Snapshot struct {
	Root                   fr.Element
	NextAvailableLeafIndex uint32
}

// Equal reports whether both snapshots describe the same tree state.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.Root.Equal(&o.Root) && s.NextAvailableLeafIndex == o.NextAvailableLeafIndex
}

func (s Snapshot) String() string {
	return fmt.Sprintf("{root: %s, next: %d}", s.Root.String(), s.NextAvailableLeafIndex)
}

func (s Snapshot) fields() []fr.Element {
	return []fr.Element{s.Root, fr.NewElement(uint64(s.NextAvailableLeafIndex))}
}

// MembershipWitness is a leaf index and its sibling path, bottom-up.
type MembershipWitness struct {
	LeafIndex   uint64
	SiblingPath []fr.Element
}

// ReadRequestMembershipWitness proves a read request. Non-transient reads
// are checked against the historic note hash root; transient reads carry
// the index of the note hash they are expected to match at ordering.
type ReadRequestMembershipWitness struct {
	MembershipWitness
	IsTransient    bool
	HintToNoteHash uint32
}

// NullifierLeafPreimage is a leaf of the indexed nullifier tree. A zero
// NextValue means the leaf holds the greatest value inserted so far.
type NullifierLeafPreimage struct {
	Value     fr.Element
	NextIndex uint64
	NextValue fr.Element
}

// Hash returns the tree leaf of the preimage. It is never zero, the value
// of an unused slot, not even for the all-zero genesis leaf.
func (p NullifierLeafPreimage) Hash() fr.Element {
	return H(GeneratorNullifierLeaf, p.Value, fr.NewElement(p.NextIndex), p.NextValue)
}

// LowLeafWitness is supplied for every nullifier inserted by a base rollup:
// the low leaf preimage with its index and path against the current root,
// and the path of the empty slot receiving the new leaf once the low leaf
// has been updated.
type LowLeafWitness struct {
	LowLeaf     NullifierLeafPreimage
	LowIndex    uint64
	LowPath     []fr.Element
	NewLeafPath []fr.Element
}
