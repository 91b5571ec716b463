// Package rollup implements the base, merge and root rollups: Base inserts
// the effects of two finalized transactions into the note hash, nullifier
// and contract trees, Merge chains two rollups covering consecutive tree
// ranges, and Root closes the block by inserting the L1 to L2 messages and
// recording the new roots in the historic trees.
//
// Like the kernel stages, every rollup stage checks every assertion and
// always returns its output. The output is only usable when the returned
// error is nil.
package rollup

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/array"
	"github.com/vocdoni/private-rollup/circuits"
	"github.com/vocdoni/private-rollup/config"
	"github.com/vocdoni/private-rollup/failure"
	"github.com/vocdoni/private-rollup/kernel"
	"github.com/vocdoni/private-rollup/oracle"
	"github.com/vocdoni/private-rollup/tree/merkle"
	"github.com/vocdoni/private-rollup/vktree"
)

// Output is the result of a base or merge rollup.
type Output struct {
	Stage        abis.Stage
	PublicInputs abis.BaseOrMergeRollupPublicInputs
	Claims       []oracle.Claim
}

// Prove checks the claims of the output and returns the rollup data the
// next merge or root rollup consumes.
func (o *Output) Prove(orc oracle.Oracle, vks kernel.VerificationKeys) (abis.PreviousRollupData, error) {
	proof, err := oracle.Prove(orc, o.Stage, o.PublicInputs.Hash(), o.Claims)
	if err != nil {
		return abis.PreviousRollupData{}, err
	}
	vk, err := vks.Witness(o.Stage)
	if err != nil {
		return abis.PreviousRollupData{}, err
	}
	return abis.PreviousRollupData{PublicInputs: o.PublicInputs, Proof: proof, VK: vk}, nil
}

func acceptedStage(stage abis.Stage, stages []abis.Stage) bool {
	for _, s := range stages {
		if s == stage {
			return true
		}
	}
	return false
}

// validateKey checks a previous proof: its key is in the key tree, belongs
// to one of the given stages and the proof is bound to the public inputs.
func validateKey(ctx *config.Context, col *failure.Collector, name string, vk abis.VerificationKeyWitness,
	proof abis.Proof, publicInputsHash fr.Element, stages ...abis.Stage,
) {
	if err := vktree.Verify(ctx.VKRoot, ctx.Config.VerificationKeyTreeLevels, vk); err != nil {
		col.Add(failure.ErrVerificationKeyMembership, "%s: %v", name, err)
	}
	col.Check(acceptedStage(vk.Key.Stage, stages), failure.ErrVerificationKeyStage,
		"%s: got %s, expected %v", name, vk.Key.Stage, stages)
	col.Check(oracle.Bound(proof, vk.Key.Stage, publicInputsHash), failure.ErrProofBinding,
		"%s: proof of %s", name, proof.Stage)
}

// validatePair checks two base or merge outputs can be merged: both proofs
// are valid, they are of the same type and height, share their constants,
// and the left end snapshots are the right start snapshots.
func validatePair(ctx *config.Context, col *failure.Collector, pair *[2]abis.PreviousRollupData) {
	names := [2]string{"left", "right"}
	for i := range pair {
		r := &pair[i]
		validateKey(ctx, col, names[i], r.VK, r.Proof, r.PublicInputs.Hash(),
			abis.StageBaseRollup, abis.StageMergeRollup)
		expected := abis.StageBaseRollup
		if r.PublicInputs.RollupType == abis.RollupTypeMerge {
			expected = abis.StageMergeRollup
		}
		col.Check(r.VK.Key.Stage == expected, failure.ErrVerificationKeyStage,
			"%s: %s rollup with a key of %s", names[i], r.PublicInputs.RollupType, r.VK.Key.Stage)
	}

	left, right := &pair[0].PublicInputs, &pair[1].PublicInputs
	col.Check(left.RollupType == right.RollupType, failure.ErrRollupType,
		"left %s, right %s", left.RollupType, right.RollupType)
	col.Check(left.RollupSubtreeHeight == right.RollupSubtreeHeight, failure.ErrRollupHeight,
		"left %d, right %d", left.RollupSubtreeHeight, right.RollupSubtreeHeight)
	col.Check(left.Constants.Equal(right.Constants), failure.ErrConstants, "")

	for _, t := range []struct {
		name       string
		end, start abis.Snapshot
	}{
		{"note hash", left.EndNoteHashTreeSnapshot, right.StartNoteHashTreeSnapshot},
		{"nullifier", left.EndNullifierTreeSnapshot, right.StartNullifierTreeSnapshot},
		{"contract", left.EndContractTreeSnapshot, right.StartContractTreeSnapshot},
	} {
		col.Check(t.end.Equal(t.start), failure.ErrSnapshotChaining,
			"%s tree: left end %s, right start %s", t.name, t.end, t.start)
	}
}

// insertSubtree replays the insertion of leaves as a subtree of the given
// height at the next free index of start, proving with path that the slot
// was empty. It returns the resulting snapshot and the claim for the
// emptiness proof, nil when a check failed.
func insertSubtree(col *failure.Collector, name string, depth int, start abis.Snapshot, height int,
	leaves []fr.Element, path []fr.Element,
) (abis.Snapshot, *oracle.Claim) {
	size := uint64(1) << height
	next := uint64(start.NextAvailableLeafIndex)
	if !col.Check(len(path) == depth-height, failure.ErrWitnessShape,
		"%s subtree: path of %d siblings, expected %d", name, len(path), depth-height) {
		return start, nil
	}
	if !col.Check(next%size == 0, failure.ErrSubtreeAlignment, "%s subtree: next %d, size %d", name, next, size) {
		return start, nil
	}
	w := abis.MembershipWitness{LeafIndex: next >> height, SiblingPath: path}
	empty := merkle.EmptySubtreeRoot(height)
	if !col.Check(merkle.IsMember(start.Root, empty, w), failure.ErrSubtreeNotEmpty,
		"%s subtree at %d", name, next) {
		return start, nil
	}
	claim := circuits.MembershipClaim(start.Root, empty, w)
	return abis.Snapshot{
		Root:                   merkle.RootFromPath(merkle.ComputeRoot(leaves), w.LeafIndex, path),
		NextAvailableLeafIndex: uint32(next + size),
	}, &claim
}

// appendLeaf replays appending leaf to the append-only tree of start,
// proving with path that the next slot was empty.
func appendLeaf(col *failure.Collector, name string, depth int, start abis.Snapshot, leaf fr.Element,
	path []fr.Element,
) (abis.Snapshot, *oracle.Claim) {
	if !col.Check(len(path) == depth, failure.ErrWitnessShape,
		"%s: path of %d siblings, expected %d", name, len(path), depth) {
		return start, nil
	}
	next := uint64(start.NextAvailableLeafIndex)
	empty := merkle.RootFromPath(fr.Element{}, next, path)
	if !col.Check(empty.Equal(&start.Root), failure.ErrHistoricAppend, "%s at %d", name, next) {
		return start, nil
	}
	claim := circuits.EmptySlotClaim(start.Root, next, path)
	return abis.Snapshot{
		Root:                   merkle.RootFromPath(leaf, next, path),
		NextAvailableLeafIndex: uint32(next + 1),
	}, &claim
}

// shapeFailure maps an array shape error to its failure code.
func shapeFailure(err error) *failure.Code {
	if errors.Is(err, array.ErrNotPadded) {
		return failure.ErrArrayNotPadded
	}
	return failure.ErrWitnessShape
}
