package rollup

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/config"
	"github.com/vocdoni/private-rollup/failure"
	"github.com/vocdoni/private-rollup/hash/calldata"
	"github.com/vocdoni/private-rollup/oracle"
)

// RootOutput is the result of the root rollup, published to L1.
type RootOutput struct {
	PublicInputs abis.RootRollupPublicInputs
	Claims       []oracle.Claim
}

// Prove checks the claims of the output and finalizes the block proof.
func (o *RootOutput) Prove(orc oracle.Oracle) (abis.Proof, error) {
	return oracle.Prove(orc, abis.StageRootRollup, o.PublicInputs.Hash(), o.Claims)
}

// Root closes a block: it merges the last pair of rollups, inserts the L1
// to L2 messages as one subtree and appends the new note hash, contract and
// L1 to L2 message tree roots to their historic trees.
func Root(ctx *config.Context, in *abis.RootRollupInputs) (*RootOutput, error) {
	log := ctx.Logger(abis.StageRootRollup.String())
	col := failure.NewCollector(log)
	cfg := ctx.Config

	validatePair(ctx, col, &in.Rollups)
	left, right := &in.Rollups[0].PublicInputs, &in.Rollups[1].PublicInputs
	col.Check(left.RollupSubtreeHeight == uint32(cfg.MergeDepth()), failure.ErrRollupHeight,
		"height %d, expected %d", left.RollupSubtreeHeight, cfg.MergeDepth())
	constants := left.Constants

	out := &RootOutput{PublicInputs: abis.RootRollupPublicInputs{
		AggregationObject: right.AggregationObject,

		StartNoteHashTreeSnapshot:       left.StartNoteHashTreeSnapshot,
		EndNoteHashTreeSnapshot:         right.EndNoteHashTreeSnapshot,
		StartNullifierTreeSnapshot:      left.StartNullifierTreeSnapshot,
		EndNullifierTreeSnapshot:        right.EndNullifierTreeSnapshot,
		StartContractTreeSnapshot:       left.StartContractTreeSnapshot,
		EndContractTreeSnapshot:         right.EndContractTreeSnapshot,
		StartL1ToL2MessagesTreeSnapshot: in.StartL1ToL2MessagesTreeSnapshot,

		StartHistoricNoteHashTreeRootsSnapshot: constants.StartHistoricNoteHashTreeRootsSnapshot,
		StartHistoricContractTreeRootsSnapshot: constants.StartHistoricContractTreeRootsSnapshot,
		StartHistoricL1ToL2TreeRootsSnapshot:   constants.StartHistoricL1ToL2TreeRootsSnapshot,

		CalldataHash: calldata.Pair(left.CalldataHash, right.CalldataHash),
	}}
	pi := &out.PublicInputs
	claim := func(c *oracle.Claim) {
		if c != nil {
			out.Claims = append(out.Claims, *c)
		}
	}

	messages := make([]fr.Element, cfg.L1ToL2MsgsPerRollup)
	if col.Check(len(in.L1ToL2Messages) <= len(messages), failure.ErrArrayFull,
		"%d l1 to l2 messages, capacity %d", len(in.L1ToL2Messages), len(messages)) {
		copy(messages, in.L1ToL2Messages)
	}
	var c *oracle.Claim
	pi.EndL1ToL2MessagesTreeSnapshot, c = insertSubtree(col, "l1 to l2 messages", cfg.L1ToL2MsgTreeHeight,
		in.StartL1ToL2MessagesTreeSnapshot, cfg.L1ToL2MsgSubtreeHeight(), messages, in.L1ToL2MessagesSubtreeSiblingPath)
	claim(c)
	pi.L1ToL2MessagesHash = new(calldata.Encoder).Fields(messages...).Digest()

	pi.EndHistoricNoteHashTreeRootsSnapshot, c = appendLeaf(col, "historic note hash roots", cfg.HistoricRootsTreeHeight,
		pi.StartHistoricNoteHashTreeRootsSnapshot, pi.EndNoteHashTreeSnapshot.Root, in.HistoricNoteHashRootsAppendPath)
	claim(c)
	pi.EndHistoricContractTreeRootsSnapshot, c = appendLeaf(col, "historic contract roots", cfg.HistoricRootsTreeHeight,
		pi.StartHistoricContractTreeRootsSnapshot, pi.EndContractTreeSnapshot.Root, in.HistoricContractRootsAppendPath)
	claim(c)
	pi.EndHistoricL1ToL2TreeRootsSnapshot, c = appendLeaf(col, "historic l1 to l2 roots", cfg.HistoricRootsTreeHeight,
		pi.StartHistoricL1ToL2TreeRootsSnapshot, pi.EndL1ToL2MessagesTreeSnapshot.Root, in.HistoricL1ToL2RootsAppendPath)
	claim(c)

	log.Debug().
		Int("l1ToL2Messages", len(in.L1ToL2Messages)).
		Uint32("historicRoots", pi.EndHistoricNoteHashTreeRootsSnapshot.NextAvailableLeafIndex).
		Bool("ok", col.OK()).
		Msg("root rollup")
	return out, col.Err()
}
