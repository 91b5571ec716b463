// Package kernel implements the private kernel: Init processes the first
// call of a transaction, Inner every following one, and Ordering resolves
// transient state and makes note hashes unique once no call is left.
//
// Every stage is a pure function of the context and its inputs. It checks
// every assertion, records every failure, and always returns its output so
// callers can inspect it in simulation. The output is only usable when the
// returned error is nil.
package kernel

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/array"
	"github.com/vocdoni/private-rollup/circuits"
	"github.com/vocdoni/private-rollup/config"
	"github.com/vocdoni/private-rollup/failure"
	"github.com/vocdoni/private-rollup/hash/calldata"
	"github.com/vocdoni/private-rollup/oracle"
	"github.com/vocdoni/private-rollup/tree/merkle"
	"github.com/vocdoni/private-rollup/utils"
	"github.com/vocdoni/private-rollup/vktree"
)

// Output is the result of a kernel stage: its public inputs and the claims
// the proof oracle must check before finalizing its proof.
type Output struct {
	Stage        abis.Stage
	PublicInputs abis.KernelPublicInputs
	Claims       []oracle.Claim
}

// Prove checks the claims of the output and returns the kernel data the
// next stage consumes.
func (o *Output) Prove(orc oracle.Oracle, vks VerificationKeys) (abis.PreviousKernelData, error) {
	proof, err := oracle.Prove(orc, o.Stage, o.PublicInputs.Hash(), o.Claims)
	if err != nil {
		return abis.PreviousKernelData{}, err
	}
	vk, err := vks.Witness(o.Stage)
	if err != nil {
		return abis.PreviousKernelData{}, err
	}
	return abis.PreviousKernelData{PublicInputs: o.PublicInputs, Proof: proof, VK: vk}, nil
}

// VerificationKeys returns the key witness of a stage, as vktree.Tree does.
type VerificationKeys interface {
	Witness(stage abis.Stage) (abis.VerificationKeyWitness, error)
}

// call bundles what every call validation step needs.
type call struct {
	cfg  *config.Config
	col  *failure.Collector
	data *abis.PrivateCallData
	pi   *abis.PrivateCircuitPublicInputs
	end  *abis.AccumulatedData

	claims []oracle.Claim
}

func newCall(cfg *config.Config, col *failure.Collector, data *abis.PrivateCallData, end *abis.AccumulatedData) *call {
	return &call{cfg: cfg, col: col, data: data, pi: &data.CallStackItem.PublicInputs, end: end}
}

func (c *call) contract() fr.Element { return c.data.CallStackItem.ContractAddress }

func (c *call) storage() fr.Element { return c.pi.CallContext.StorageContractAddress }

// push records an array capacity failure when err is not nil.
func (c *call) push(err error, what string) {
	if err != nil {
		c.col.Add(failure.ErrArrayFull, "%s: %v", what, err)
	}
}

// validateShape checks the call arrays are padded and sized per call, and
// that the witnesses have the depth of the trees they prove against.
func (c *call) validateShape() bool {
	ok := true
	for _, a := range []struct {
		name string
		arr  *array.Array[fr.Element]
		cap  int
	}{
		{"return values", &c.pi.ReturnValues, c.cfg.MaxReturnValuesPerCall},
		{"read requests", &c.pi.ReadRequests, c.cfg.MaxReadRequestsPerCall},
		{"note hashes", &c.pi.NewNoteHashes, c.cfg.MaxNewNoteHashesPerCall},
		{"nullifiers", &c.pi.NewNullifiers, c.cfg.MaxNewNullifiersPerCall},
		{"nullified note hashes", &c.pi.NullifiedNoteHashes, c.cfg.MaxNewNullifiersPerCall},
		{"private call stack", &c.pi.PrivateCallStack, c.cfg.MaxPrivateCallStackPerCall},
		{"public call stack", &c.pi.PublicCallStack, c.cfg.MaxPublicCallStackPerCall},
		{"l2 to l1 messages", &c.pi.NewL2ToL1Msgs, c.cfg.MaxNewL2ToL1MsgsPerCall},
	} {
		if a.arr.Cap() != a.cap {
			ok = c.col.Check(false, failure.ErrWitnessShape, "%s: capacity %d, expected %d", a.name, a.arr.Cap(), a.cap)
			continue
		}
		if err := a.arr.Validate(); err != nil {
			ok = c.col.Check(false, failure.ErrArrayNotPadded, "%s: %v", a.name, err)
		}
	}
	for i, w := range c.data.ReadRequestMembershipWitnesses {
		if !w.IsTransient && len(w.SiblingPath) != c.cfg.NoteHashTreeHeight {
			ok = c.col.Check(false, failure.ErrWitnessShape, "read request %d: path length %d", i, len(w.SiblingPath))
		}
	}
	return ok
}

// validateContext applies the rules every private call obeys regardless of
// its position in the transaction.
func (c *call) validateContext() {
	item := &c.data.CallStackItem
	c.col.Check(item.FunctionData.IsPrivate, failure.ErrNonPrivateFunction, "selector %d", item.FunctionData.Selector)
	c.col.Check(!c.pi.CallContext.IsDelegateCall, failure.ErrDelegateCall, "")
	c.col.Check(!item.ContractAddress.IsZero(), failure.ErrContractAddressZero, "")
	storage, contract := c.storage(), c.contract()
	c.col.Check(utils.Equal(storage, contract), failure.ErrStorageAddress,
		"storage %s, contract %s", storage.String(), contract.String())
	if c.pi.CallContext.IsStaticCall {
		c.col.Check(!c.pi.HasStateChanges(), failure.ErrStaticCallStateChange,
			"%d note hashes, %d nullifiers, %d messages",
			c.pi.NewNoteHashes.Len(), c.pi.NewNullifiers.Len(), c.pi.NewL2ToL1Msgs.Len())
	}
}

// validateCallStack reconciles every enqueued call hash with its preimage
// and checks the callee sees this contract as its caller.
func (c *call) validateCallStack() {
	stack := c.pi.PrivateCallStack.Values()
	preimages := c.data.PrivateCallStackPreimages
	if len(preimages) != len(stack) {
		c.col.Add(failure.ErrCallStackPreimage, "%d hashes, %d preimages", len(stack), len(preimages))
		return
	}
	for i, hash := range stack {
		preimage := preimages[i]
		if !c.col.Check(utils.Equal(hash, preimage.Hash()), failure.ErrCallStackPreimage, "private call stack %d", i) {
			continue
		}
		ctx := preimage.PublicInputs.CallContext
		if ctx.IsDelegateCall {
			continue
		}
		caller := c.contract()
		c.col.Check(utils.Equal(ctx.MsgSender, caller), failure.ErrCallContext,
			"call %d msg sender %s, caller %s", i, ctx.MsgSender.String(), caller.String())
		c.col.Check(utils.Equal(ctx.StorageContractAddress, preimage.ContractAddress), failure.ErrCallContext,
			"call %d storage address differs from its contract", i)
	}
}

// validateReadRequests checks every non-transient read against the historic
// note hash root of the call. Transient reads are checked at ordering.
func (c *call) validateReadRequests() {
	requests := c.pi.ReadRequests.Values()
	witnesses := c.data.ReadRequestMembershipWitnesses
	if !c.col.Check(len(requests) == len(witnesses), failure.ErrReadRequestWitnessLength,
		"%d requests, %d witnesses", len(requests), len(witnesses)) {
		return
	}
	root := c.pi.HistoricTreeRoots.NoteHashTreeRoot
	for i, rr := range requests {
		w := witnesses[i]
		if w.IsTransient {
			continue
		}
		if c.col.Check(merkle.IsMember(root, rr, w.MembershipWitness), failure.ErrReadRequestRoot,
			"read request %d at leaf %d", i, w.LeafIndex) {
			c.claims = append(c.claims, circuits.MembershipClaim(root, rr, w.MembershipWitness))
		}
	}
}

// validateDeployment derives the address of the contract deployed by the
// transaction and records it, together with the nullifier that prevents
// deploying it twice.
func (c *call) validateDeployment(tx *abis.TxContext) {
	dd := tx.ContractDeploymentData
	callDD, txDD := c.pi.ContractDeploymentData.Hash(), dd.Hash()
	c.col.Check(callDD.Equal(&txDD), failure.ErrTxRequestContext, "")
	c.col.Check(dd.PortalContractAddress == c.data.PortalContractAddress, failure.ErrDeploymentPortal,
		"deployment %s, call %s", dd.PortalContractAddress.Hex(), c.data.PortalContractAddress.Hex())

	c.col.Check(utils.Equal(dd.ConstructorVKHash, c.data.VKHash), failure.ErrConstructorVKHash, "")
	constructor := abis.ConstructorHash(c.data.CallStackItem.FunctionData, c.pi.ArgsHash, c.data.VKHash)
	address := abis.ContractAddress(dd.DeployerPublicKey, dd.ContractAddressSalt, dd.FunctionTreeRoot, constructor)
	storage := c.storage()
	c.col.Check(utils.Equal(address, storage), failure.ErrDeployedAddress,
		"derived %s, declared %s", address.String(), storage.String())
	c.push(c.end.NewContracts.Push(abis.NewContractData{
		ContractAddress:       address,
		PortalContractAddress: c.data.PortalContractAddress,
		FunctionTreeRoot:      dd.FunctionTreeRoot,
	}), "new contracts")
	c.push(c.end.NewNullifiers.Push(abis.Nullifier{
		Value:             abis.SiloNullifier(address, address),
		NullifiedNoteHash: abis.EmptyNullifiedNoteHash,
	}), "contract address nullifier")
}

// validateContractMembership proves the called function belongs to a
// contract of the historic contract tree.
func (c *call) validateContractMembership() {
	storage := c.storage()
	if !c.col.Check(!storage.IsZero(), failure.ErrZeroStorageAddress, "") {
		return
	}
	fd := c.data.CallStackItem.FunctionData
	if fd.IsInternal {
		c.col.Check(utils.Equal(c.pi.CallContext.MsgSender, c.storage()), failure.ErrInternalCall,
			"msg sender %s", c.pi.CallContext.MsgSender.String())
	}
	fw, cw := c.data.FunctionLeafMembershipWitness, c.data.ContractLeafMembershipWitness
	if len(fw.SiblingPath) != c.cfg.FunctionTreeHeight || len(cw.SiblingPath) != c.cfg.ContractTreeHeight {
		c.col.Add(failure.ErrWitnessShape, "function path %d, contract path %d", len(fw.SiblingPath), len(cw.SiblingPath))
		return
	}
	functionLeaf := abis.FunctionLeaf(fd, c.data.VKHash, c.data.ACIRHash)
	functionRoot := merkle.RootFromPath(functionLeaf, fw.LeafIndex, fw.SiblingPath)
	contractLeaf := abis.ContractLeaf(c.storage(), c.data.PortalContractAddress, functionRoot)
	root := c.pi.HistoricTreeRoots.ContractTreeRoot
	if c.col.Check(merkle.IsMember(root, contractLeaf, cw), failure.ErrContractTreeRoot,
		"contract leaf %d, function leaf %d", cw.LeafIndex, fw.LeafIndex) {
		c.claims = append(c.claims,
			circuits.MembershipClaim(functionRoot, functionLeaf, fw),
			circuits.MembershipClaim(root, contractLeaf, cw))
	}
}

// updateEnd silos the call effects by its contract and appends them to the
// accumulated data.
func (c *call) updateEnd() {
	contract := c.storage()
	for i, rr := range c.pi.ReadRequests.Values() {
		if i >= len(c.data.ReadRequestMembershipWitnesses) {
			break
		}
		w := c.data.ReadRequestMembershipWitnesses[i]
		if !w.IsTransient {
			continue
		}
		c.push(c.end.ReadRequests.Push(abis.ReadRequest{Value: abis.SiloNoteHash(contract, rr), Witness: w}),
			"read requests")
	}

	for _, nh := range c.pi.NewNoteHashes.Values() {
		c.push(c.end.NewNoteHashes.Push(abis.SiloNoteHash(contract, nh)), "note hashes")
	}

	nullifiers, nullified := c.pi.NewNullifiers.Values(), c.pi.NullifiedNoteHashes.Values()
	if c.col.Check(len(nullifiers) == len(nullified), failure.ErrNullifiedHashLength,
		"%d nullifiers, %d nullified note hashes", len(nullifiers), len(nullified)) {
		for i, n := range nullifiers {
			if !c.col.Check(!n.IsZero(), failure.ErrZeroNullifier, "call nullifier %d", i) {
				continue
			}
			entry := abis.Nullifier{Value: abis.SiloNullifier(contract, n), NullifiedNoteHash: abis.EmptyNullifiedNoteHash}
			if (abis.Nullifier{NullifiedNoteHash: nullified[i]}).IsTransient() {
				entry.NullifiedNoteHash = abis.SiloNoteHash(contract, nullified[i])
			}
			c.push(c.end.NewNullifiers.Push(entry), "nullifiers")
		}
	}

	// item hashes commit to the callee address, so they are forwarded unsiloed
	c.push(c.end.PrivateCallStack.Extend(c.pi.PrivateCallStack), "private call stack")
	c.push(c.end.PublicCallStack.Extend(c.pi.PublicCallStack), "public call stack")
	for _, msg := range c.pi.NewL2ToL1Msgs.Values() {
		c.push(c.end.NewL2ToL1Msgs.Push(abis.L2ToL1Message(contract, c.data.PortalContractAddress,
			c.pi.ChainID, c.pi.Version, msg)), "l2 to l1 messages")
	}

	c.end.EncryptedLogsHash = calldata.Accumulate(c.end.EncryptedLogsHash, c.pi.EncryptedLogsHash)
	c.end.UnencryptedLogsHash = calldata.Accumulate(c.end.UnencryptedLogsHash, c.pi.UnencryptedLogsHash)
	c.end.EncryptedLogPreimagesLength += c.pi.EncryptedLogPreimagesLength
	c.end.UnencryptedLogPreimagesLength += c.pi.UnencryptedLogPreimagesLength
}

// validatePreviousKernel checks the key, the proof binding and the shape of
// a previous kernel output, accepting only keys of the given stages.
func validatePreviousKernel(ctx *config.Context, col *failure.Collector, prev *abis.PreviousKernelData, stages ...abis.Stage) {
	if err := vktree.Verify(ctx.VKRoot, ctx.Config.VerificationKeyTreeLevels, prev.VK); err != nil {
		col.Add(failure.ErrVerificationKeyMembership, "%v", err)
	}
	stage := prev.VK.Key.Stage
	expected := false
	for _, s := range stages {
		expected = expected || s == stage
	}
	col.Check(expected, failure.ErrVerificationKeyStage, "got %s, expected %v", stage, stages)
	col.Check(oracle.Bound(prev.Proof, stage, prev.PublicInputs.Hash()), failure.ErrProofBinding,
		"proof of %s", prev.Proof.Stage)
	col.Check(prev.PublicInputs.IsPrivate, failure.ErrVerificationKeyStage, "previous kernel is not private")

	end := &prev.PublicInputs.End
	if err := end.CheckShape(ctx.Config); err != nil {
		if errors.Is(err, array.ErrNotPadded) {
			col.Add(failure.ErrArrayNotPadded, "previous kernel %v", err)
		} else {
			col.Add(failure.ErrWitnessShape, "previous kernel %v", err)
		}
	}
	first, ok := end.NewNullifiers.Get(0)
	col.Check(ok && !first.Value.IsZero(), failure.ErrMissingTxNullifier, "previous kernel")
}
