package abis

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/private-rollup/array"
	"github.com/vocdoni/private-rollup/config"
	"github.com/vocdoni/private-rollup/hash/calldata"
)

// PrivateCircuitPublicInputs are the effects declared by one private
// function execution, before siloing.
type PrivateCircuitPublicInputs struct {
	CallContext         CallContext
	ArgsHash            fr.Element
	ReturnValues        array.Array[fr.Element]
	ReadRequests        array.Array[fr.Element]
	NewNoteHashes       array.Array[fr.Element]
	NewNullifiers       array.Array[fr.Element]
	NullifiedNoteHashes array.Array[fr.Element]
	PrivateCallStack    array.Array[fr.Element]
	PublicCallStack     array.Array[fr.Element]
	NewL2ToL1Msgs       array.Array[fr.Element]

	EncryptedLogsHash             calldata.Digest
	UnencryptedLogsHash           calldata.Digest
	EncryptedLogPreimagesLength   uint64
	UnencryptedLogPreimagesLength uint64

	HistoricTreeRoots      HistoricTreeRoots
	ContractDeploymentData ContractDeploymentData
	ChainID                fr.Element
	Version                fr.Element
}

// NewPrivateCircuitPublicInputs returns empty inputs with per call
// capacities.
func NewPrivateCircuitPublicInputs(cfg *config.Config) PrivateCircuitPublicInputs {
	return PrivateCircuitPublicInputs{
		ReturnValues:        array.New[fr.Element](cfg.MaxReturnValuesPerCall),
		ReadRequests:        array.New[fr.Element](cfg.MaxReadRequestsPerCall),
		NewNoteHashes:       array.New[fr.Element](cfg.MaxNewNoteHashesPerCall),
		NewNullifiers:       array.New[fr.Element](cfg.MaxNewNullifiersPerCall),
		NullifiedNoteHashes: array.New[fr.Element](cfg.MaxNewNullifiersPerCall),
		PrivateCallStack:    array.New[fr.Element](cfg.MaxPrivateCallStackPerCall),
		PublicCallStack:     array.New[fr.Element](cfg.MaxPublicCallStackPerCall),
		NewL2ToL1Msgs:       array.New[fr.Element](cfg.MaxNewL2ToL1MsgsPerCall),
	}
}

// Clone returns a copy sharing no array storage with p.
func (p PrivateCircuitPublicInputs) Clone() PrivateCircuitPublicInputs {
	c := p
	c.ReturnValues = p.ReturnValues.Clone()
	c.ReadRequests = p.ReadRequests.Clone()
	c.NewNoteHashes = p.NewNoteHashes.Clone()
	c.NewNullifiers = p.NewNullifiers.Clone()
	c.NullifiedNoteHashes = p.NullifiedNoteHashes.Clone()
	c.PrivateCallStack = p.PrivateCallStack.Clone()
	c.PublicCallStack = p.PublicCallStack.Clone()
	c.NewL2ToL1Msgs = p.NewL2ToL1Msgs.Clone()
	return c
}

func (p PrivateCircuitPublicInputs) Hash() fr.Element {
	var w fieldWriter
	w.add(p.CallContext.Hash(), p.ArgsHash)
	for _, a := range []array.Array[fr.Element]{
		p.ReturnValues, p.ReadRequests, p.NewNoteHashes, p.NewNullifiers,
		p.NullifiedNoteHashes, p.PrivateCallStack, p.PublicCallStack, p.NewL2ToL1Msgs,
	} {
		writeArray(&w, a, writeField)
	}
	w.digest(p.EncryptedLogsHash)
	w.digest(p.UnencryptedLogsHash)
	w.u64(p.EncryptedLogPreimagesLength)
	w.u64(p.UnencryptedLogPreimagesLength)
	w.add(p.HistoricTreeRoots.fields()...)
	w.add(p.ContractDeploymentData.Hash(), p.ChainID, p.Version)
	return w.hash(GeneratorPrivateCircuitPublicInputs)
}

// HasStateChanges reports whether the call creates notes, nullifiers or
// L2 to L1 messages.
func (p *PrivateCircuitPublicInputs) HasStateChanges() bool {
	return !p.NewNoteHashes.IsEmpty() || !p.NewNullifiers.IsEmpty() || !p.NewL2ToL1Msgs.IsEmpty()
}

// PrivateCallStackItem is one function invocation: the contract, the
// function and everything it declared.
type PrivateCallStackItem struct {
	ContractAddress    fr.Element
	FunctionData       FunctionData
	PublicInputs       PrivateCircuitPublicInputs
	IsExecutionRequest bool
}

// Hash is the value pushed on the caller's private call stack.
func (i PrivateCallStackItem) Hash() fr.Element {
	var w fieldWriter
	w.add(i.ContractAddress, i.FunctionData.Hash(), i.PublicInputs.Hash())
	w.bool(i.IsExecutionRequest)
	return w.hash(GeneratorCallStackItem)
}

// PrivateCallData is everything the kernel needs to process one call: the
// call itself, the preimages of the calls it enqueued and the membership
// witnesses of its function, its contract and its read requests.
type PrivateCallData struct {
	CallStackItem                  PrivateCallStackItem
	PrivateCallStackPreimages      []PrivateCallStackItem
	VKHash                         fr.Element
	ACIRHash                       fr.Element
	FunctionLeafMembershipWitness  MembershipWitness
	ContractLeafMembershipWitness  MembershipWitness
	ReadRequestMembershipWitnesses []ReadRequestMembershipWitness
	PortalContractAddress          common.Address
}
