package indexed

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/array"
	"github.com/vocdoni/private-rollup/failure"
	"github.com/vocdoni/private-rollup/tree/merkle"
	"github.com/vocdoni/private-rollup/utils"
)

// Brackets reports whether low proves that v is absent: low.Value < v and
// either low is the greatest leaf or its next value is greater than v.
func Brackets(low abis.NullifierLeafPreimage, v fr.Element) bool {
	if !utils.Less(low.Value, v) {
		return false
	}
	return low.NextValue.IsZero() || utils.Less(v, low.NextValue)
}

// VerifyInsert replays, from witnesses only, the insertion of values into
// the tree described by start, and returns the resulting snapshot. Values
// are processed strictly in order: each witness must be the post-mutation
// one left by the previous insertion. Empty slots consume a zero leaf and
// take no witness. Every failed check is recorded in col, the snapshot is
// only meaningful when nothing was recorded.
func VerifyInsert(col *failure.Collector, depth int, start abis.Snapshot, values []array.Slot[fr.Element], witnesses []abis.LowLeafWitness) abis.Snapshot {
	occupied := 0
	for _, v := range values {
		if v.Occupied {
			occupied++
		}
	}
	if !col.Check(occupied == len(witnesses), failure.ErrLowLeafWitnesses,
		"%d values, %d witnesses", occupied, len(witnesses)) {
		return start
	}

	capacity := uint64(1) << depth
	root, next := start.Root, uint64(start.NextAvailableLeafIndex)
	w := 0
	for i, slot := range values {
		if !col.Check(next < capacity, failure.ErrTreeFull, "value %d at index %d", i, next) {
			break
		}
		if !slot.Occupied {
			// a zero leaf over a zero leaf leaves the root unchanged
			next++
			continue
		}
		v, wit := slot.Value, witnesses[w]
		w++
		if !col.Check(len(wit.LowPath) == depth && len(wit.NewLeafPath) == depth, failure.ErrWitnessShape,
			"value %d: paths of %d and %d siblings, depth %d", i, len(wit.LowPath), len(wit.NewLeafPath), depth) {
			next++
			continue
		}
		col.Check(!v.IsZero(), failure.ErrZeroNullifier, "value %d", i)
		col.Check(Brackets(wit.LowLeaf, v), failure.ErrLowLeafBracket,
			"value %d: %s not in (%s, %s)", i, v.String(), wit.LowLeaf.Value.String(), wit.LowLeaf.NextValue.String())
		lowRoot := merkle.RootFromPath(wit.LowLeaf.Hash(), wit.LowIndex, wit.LowPath)
		col.Check(lowRoot.Equal(&root), failure.ErrLowLeafMembership, "value %d: low leaf %d", i, wit.LowIndex)

		updated := abis.NullifierLeafPreimage{Value: wit.LowLeaf.Value, NextIndex: next, NextValue: v}
		root = merkle.RootFromPath(updated.Hash(), wit.LowIndex, wit.LowPath)

		emptyRoot := merkle.RootFromPath(fr.Element{}, next, wit.NewLeafPath)
		col.Check(emptyRoot.Equal(&root), failure.ErrLeafSlotNotEmpty, "value %d: index %d", i, next)

		leaf := abis.NullifierLeafPreimage{Value: v, NextIndex: wit.LowLeaf.NextIndex, NextValue: wit.LowLeaf.NextValue}
		root = merkle.RootFromPath(leaf.Hash(), next, wit.NewLeafPath)
		next++
	}
	return abis.Snapshot{Root: root, NextAvailableLeafIndex: uint32(next)}
}
