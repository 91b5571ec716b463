package rollup

import (
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/config"
	"github.com/vocdoni/private-rollup/failure"
	"github.com/vocdoni/private-rollup/hash/calldata"
)

// Merge joins two base or merge rollups of the same height covering
// consecutive ranges of every tree. The output spans from the left start
// snapshots to the right end snapshots, one level higher.
func Merge(ctx *config.Context, in *abis.MergeRollupInputs) (*Output, error) {
	log := ctx.Logger(abis.StageMergeRollup.String())
	col := failure.NewCollector(log)

	validatePair(ctx, col, &in.Rollups)
	left, right := &in.Rollups[0].PublicInputs, &in.Rollups[1].PublicInputs

	out := &Output{
		Stage: abis.StageMergeRollup,
		PublicInputs: abis.BaseOrMergeRollupPublicInputs{
			RollupType:          abis.RollupTypeMerge,
			RollupSubtreeHeight: left.RollupSubtreeHeight + 1,
			AggregationObject:   right.AggregationObject,
			Constants:           left.Constants,

			StartNoteHashTreeSnapshot:  left.StartNoteHashTreeSnapshot,
			EndNoteHashTreeSnapshot:    right.EndNoteHashTreeSnapshot,
			StartNullifierTreeSnapshot: left.StartNullifierTreeSnapshot,
			EndNullifierTreeSnapshot:   right.EndNullifierTreeSnapshot,
			StartContractTreeSnapshot:  left.StartContractTreeSnapshot,
			EndContractTreeSnapshot:    right.EndContractTreeSnapshot,

			CalldataHash: calldata.Pair(left.CalldataHash, right.CalldataHash),
		},
	}

	log.Debug().
		Uint32("height", out.PublicInputs.RollupSubtreeHeight).
		Bool("ok", col.OK()).
		Msg("merge rollup")
	return out, col.Err()
}
