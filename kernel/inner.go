package kernel

import (
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/config"
	"github.com/vocdoni/private-rollup/failure"
	"github.com/vocdoni/private-rollup/utils"
)

// InnerInputs are the previous kernel output and the call on top of its
// private call stack.
type InnerInputs struct {
	PreviousKernel abis.PreviousKernelData
	PrivateCall    abis.PrivateCallData
}

// Inner pops the next call off the accumulated private call stack, checks
// it is the call being executed and appends its siloed effects to the
// accumulated data of the previous kernel.
func Inner(ctx *config.Context, in *InnerInputs) (*Output, error) {
	log := ctx.Logger(abis.StageKernelInner.String())
	col := failure.NewCollector(log)

	prev := &in.PreviousKernel
	validatePreviousKernel(ctx, col, prev, abis.StageKernelInit, abis.StageKernelInner)

	out := &Output{
		Stage: abis.StageKernelInner,
		PublicInputs: abis.KernelPublicInputs{
			End:       prev.PublicInputs.End.Clone(),
			Constants: prev.PublicInputs.Constants,
			IsPrivate: true,
		},
	}
	end := &out.PublicInputs.End
	constants := &out.PublicInputs.Constants

	item := &in.PrivateCall.CallStackItem
	pi := &item.PublicInputs

	// the stack is LIFO: the last enqueued call runs first
	if popped, ok := end.PrivateCallStack.Pop(); col.Check(ok, failure.ErrCallStackEmpty, "") {
		col.Check(utils.Equal(popped, item.Hash()), failure.ErrCallStackPop, "popped %s", popped.String())
	}
	col.Check(!item.FunctionData.IsConstructor, failure.ErrConstructorNotFirst, "selector %d", item.FunctionData.Selector)
	col.Check(pi.HistoricTreeRoots.Equal(constants.HistoricTreeRoots), failure.ErrHistoricRoots, "")
	col.Check(utils.Equal(pi.ChainID, constants.TxContext.ChainID), failure.ErrChainID,
		"call %s, tx %s", pi.ChainID.String(), constants.TxContext.ChainID.String())
	col.Check(utils.Equal(pi.Version, constants.TxContext.Version), failure.ErrVersion,
		"call %s, tx %s", pi.Version.String(), constants.TxContext.Version.String())

	c := newCall(ctx.Config, col, &in.PrivateCall, end)
	if c.validateShape() {
		c.validateContext()
		c.validateCallStack()
		c.validateReadRequests()
		c.validateContractMembership()
		c.updateEnd()
	}
	out.Claims = c.claims

	log.Debug().
		Int("noteHashes", end.NewNoteHashes.Len()).
		Int("nullifiers", end.NewNullifiers.Len()).
		Int("privateCalls", end.PrivateCallStack.Len()).
		Bool("ok", col.OK()).
		Msg("kernel inner")
	return out, col.Err()
}
