package kernel

import (
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/config"
	"github.com/vocdoni/private-rollup/failure"
	"github.com/vocdoni/private-rollup/utils"
)

// InitInputs are the signed user intent and the first call it executes.
type InitInputs struct {
	TxRequest   abis.SignedTxRequest
	PrivateCall abis.PrivateCallData
}

// Init processes the first call of a transaction. It checks the call is the
// one the user signed, pushes the tx request hash as the first nullifier,
// and accumulates the siloed effects of the call.
func Init(ctx *config.Context, in *InitInputs) (*Output, error) {
	log := ctx.Logger(abis.StageKernelInit.String())
	col := failure.NewCollector(log)

	req := &in.TxRequest.TxRequest
	item := &in.PrivateCall.CallStackItem
	pi := &item.PublicInputs

	// user intent
	if err := in.TxRequest.VerifySignature(); err != nil {
		col.Add(failure.ErrTxRequestSignature, "%v", err)
	}
	col.Check(utils.Equal(req.Origin, item.ContractAddress), failure.ErrTxRequestContractAddress,
		"origin %s, contract %s", req.Origin.String(), item.ContractAddress.String())
	reqFD, callFD := req.FunctionData.Hash(), item.FunctionData.Hash()
	col.Check(reqFD.Equal(&callFD), failure.ErrTxRequestFunctionData, "selector %d, called %d",
		req.FunctionData.Selector, item.FunctionData.Selector)
	col.Check(utils.Equal(req.ArgsHash, pi.ArgsHash), failure.ErrTxRequestArgsHash, "")
	col.Check(!item.IsExecutionRequest, failure.ErrFirstCallRequest, "")
	col.Check(!pi.CallContext.IsStaticCall, failure.ErrStaticCall, "")
	col.Check(utils.Equal(pi.ChainID, req.TxContext.ChainID), failure.ErrChainID,
		"call %s, tx %s", pi.ChainID.String(), req.TxContext.ChainID.String())
	col.Check(utils.Equal(pi.Version, req.TxContext.Version), failure.ErrVersion,
		"call %s, tx %s", pi.Version.String(), req.TxContext.Version.String())

	out := &Output{
		Stage: abis.StageKernelInit,
		PublicInputs: abis.KernelPublicInputs{
			End: abis.NewAccumulatedData(ctx.Config),
			Constants: abis.CombinedConstantData{
				HistoricTreeRoots: pi.HistoricTreeRoots,
				TxContext:         req.TxContext,
			},
			IsPrivate: true,
		},
	}
	end := &out.PublicInputs.End

	c := newCall(ctx.Config, col, &in.PrivateCall, end)
	// replay protection, always the first nullifier of the tx
	c.push(end.NewNullifiers.Push(abis.Nullifier{
		Value:             req.Hash(),
		NullifiedNoteHash: abis.EmptyNullifiedNoteHash,
	}), "tx nullifier")

	if c.validateShape() {
		c.validateContext()
		c.validateCallStack()
		c.validateReadRequests()
		if req.TxContext.IsContractDeploymentTx {
			c.validateDeployment(&req.TxContext)
		} else {
			c.validateContractMembership()
		}
		c.updateEnd()
	}
	out.Claims = c.claims

	log.Debug().
		Int("noteHashes", end.NewNoteHashes.Len()).
		Int("nullifiers", end.NewNullifiers.Len()).
		Int("privateCalls", end.PrivateCallStack.Len()).
		Bool("ok", col.OK()).
		Msg("kernel init")
	return out, col.Err()
}
