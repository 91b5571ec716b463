package kernel

import (
	"crypto/ecdsa"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/array"
	"github.com/vocdoni/private-rollup/config"
	"github.com/vocdoni/private-rollup/failure"
	"github.com/vocdoni/private-rollup/oracle"
	"github.com/vocdoni/private-rollup/testutil"
	"github.com/vocdoni/private-rollup/tree/merkle"
	"github.com/vocdoni/private-rollup/vktree"
)

type fixture struct {
	cfg       *config.Config
	ctx       *config.Context
	vks       *vktree.Tree
	orc       oracle.Oracle
	key       *ecdsa.PrivateKey
	contracts *merkle.Tree
	notes     *merkle.Tree
	contract  *testutil.Contract
	// a settled note hash of the note hash tree, at leaf 0
	settled fr.Element
}

func newFixture(t *testing.T) *fixture {
	c := qt.New(t)
	f := &fixture{cfg: config.Small(), orc: oracle.Trusted{}, key: testutil.NewAccount(t)}
	f.ctx, f.vks = testutil.NewContext(t, f.cfg, f.orc)

	var err error
	f.contracts, err = merkle.New(f.cfg.ContractTreeHeight)
	c.Assert(err, qt.IsNil)
	f.contract = testutil.NewContract(t, f.cfg, 1, 2, 3)
	f.contract.AddFunction(t, abis.FunctionData{Selector: 4, IsPrivate: true, IsInternal: true})
	f.contract.Register(t, f.contracts)

	f.notes, err = merkle.New(f.cfg.NoteHashTreeHeight)
	c.Assert(err, qt.IsNil)
	f.settled = testutil.RandomElement(t)
	c.Assert(f.notes.Append(f.settled), qt.IsNil)
	return f
}

func (f *fixture) roots() abis.HistoricTreeRoots {
	return abis.HistoricTreeRoots{NoteHashTreeRoot: f.notes.Root(), ContractTreeRoot: f.contracts.Root()}
}

// call returns a call of selector on the fixture contract, letting edit
// fill its effects.
func (f *fixture) call(t *testing.T, selector uint32, edit func(pi *abis.PrivateCircuitPublicInputs)) abis.PrivateCallData {
	pi := f.contract.PublicInputs(f.cfg, f.contract.Address, f.roots())
	pi.ArgsHash = fr.NewElement(uint64(selector))
	if edit != nil {
		edit(&pi)
	}
	return f.contract.CallData(t, f.contracts, selector, pi)
}

func (f *fixture) initInputs(t *testing.T, call abis.PrivateCallData) *InitInputs {
	return &InitInputs{
		TxRequest:   testutil.SignedTxRequest(t, f.key, &call, testutil.TxContext()),
		PrivateCall: call,
	}
}

func (f *fixture) prove(t *testing.T, out *Output) abis.PreviousKernelData {
	prev, err := out.Prove(f.orc, f.vks)
	qt.Assert(t, err, qt.IsNil)
	return prev
}

func TestInitFirstNullifierIsTxHash(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)
	nh1, n := testutil.Note(t, 10, fr.NewElement(1))
	nh2, _ := testutil.Note(t, 20, fr.NewElement(1))
	call := f.call(t, 1, func(pi *abis.PrivateCircuitPublicInputs) {
		testutil.Push(t, &pi.NewNoteHashes, nh1, nh2)
		testutil.Push(t, &pi.NewNullifiers, n)
		testutil.Push(t, &pi.NullifiedNoteHashes, abis.EmptyNullifiedNoteHash)
	})
	in := f.initInputs(t, call)

	out, err := Init(f.ctx, in)
	c.Assert(err, qt.IsNil)
	end := out.PublicInputs.End
	c.Assert(end.CheckShape(f.cfg), qt.IsNil)

	nullifiers := end.NewNullifiers.Values()
	c.Assert(nullifiers, qt.HasLen, 2)
	c.Assert(nullifiers[0], qt.DeepEquals, abis.Nullifier{Value: in.TxRequest.TxRequest.Hash(), NullifiedNoteHash: abis.EmptyNullifiedNoteHash})
	c.Assert(nullifiers[1].Value, qt.DeepEquals, abis.SiloNullifier(f.contract.Address, n))
	c.Assert(end.NewNoteHashes.Values(), qt.DeepEquals, []fr.Element{
		abis.SiloNoteHash(f.contract.Address, nh1),
		abis.SiloNoteHash(f.contract.Address, nh2),
	})
	// function and contract membership
	c.Assert(out.Claims, qt.HasLen, 2)
	c.Assert(out.PublicInputs.Constants.HistoricTreeRoots, qt.DeepEquals, f.roots())
}

func TestInitUserIntent(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)

	in := f.initInputs(t, f.call(t, 1, nil))
	in.PrivateCall.CallStackItem.PublicInputs.ArgsHash = fr.NewElement(99)
	_, err := Init(f.ctx, in)
	c.Assert(err, qt.ErrorIs, failure.ErrTxRequestArgsHash)
	c.Assert(err, qt.ErrorIs, failure.KindUserIntent)

	in = f.initInputs(t, f.call(t, 1, nil))
	in.TxRequest.TxRequest.Signer = common.Address{1}
	_, err = Init(f.ctx, in)
	c.Assert(err, qt.ErrorIs, failure.ErrTxRequestSignature)

	// a signature by another key over the same request
	in = f.initInputs(t, f.call(t, 1, nil))
	other := testutil.NewAccount(t)
	c.Assert(in.TxRequest.Sign(other), qt.ErrorIs, abis.ErrSigner)
	in.TxRequest.Signature, err = crypto.Sign(in.TxRequest.SigningHash(), other)
	c.Assert(err, qt.IsNil)
	_, err = Init(f.ctx, in)
	c.Assert(err, qt.ErrorIs, failure.ErrTxRequestSignature)

	// the tx nullifier commits to the signer
	stolen := f.initInputs(t, f.call(t, 1, nil))
	original := stolen.TxRequest.TxRequest.Hash()
	stolen.TxRequest.TxRequest.Signer = common.Address{}
	c.Assert(stolen.TxRequest.Sign(other), qt.IsNil)
	out, err := Init(f.ctx, stolen)
	c.Assert(err, qt.IsNil)
	first, _ := out.PublicInputs.End.NewNullifiers.Get(0)
	c.Assert(first.Value, qt.DeepEquals, stolen.TxRequest.TxRequest.Hash())
	c.Assert(first.Value, qt.Not(qt.DeepEquals), original)

	in = f.initInputs(t, f.call(t, 1, nil))
	in.TxRequest.TxRequest.FunctionData.Selector = 2
	_, err = Init(f.ctx, in)
	c.Assert(err, qt.ErrorIs, failure.ErrTxRequestFunctionData)

	in = f.initInputs(t, f.call(t, 1, nil))
	in.TxRequest.TxRequest.Origin = fr.NewElement(5)
	_, err = Init(f.ctx, in)
	c.Assert(err, qt.ErrorIs, failure.ErrTxRequestContractAddress)
}

func TestInitChecksEverything(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)

	call := f.call(t, 1, func(pi *abis.PrivateCircuitPublicInputs) {
		pi.CallContext.IsDelegateCall = true
	})
	in := f.initInputs(t, call)
	in.PrivateCall.CallStackItem.PublicInputs.ArgsHash = fr.NewElement(99)
	out, err := Init(f.ctx, in)
	c.Assert(out, qt.IsNotNil)

	list, ok := failure.AsList(err)
	c.Assert(ok, qt.IsTrue)
	first, _ := list.First()
	c.Assert(first.Code, qt.Equals, failure.ErrTxRequestArgsHash)
	c.Assert(err, qt.ErrorIs, failure.ErrDelegateCall)
	c.Assert(list.Kinds(), qt.DeepEquals, []failure.Kind{failure.KindUserIntent, failure.KindUnsupportedOperation})
}

func TestInitCallContext(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)

	_, err := Init(f.ctx, f.initInputs(t, f.call(t, 1, func(pi *abis.PrivateCircuitPublicInputs) {
		pi.CallContext.IsStaticCall = true
	})))
	c.Assert(err, qt.ErrorIs, failure.ErrStaticCall)

	_, err = Init(f.ctx, f.initInputs(t, f.call(t, 1, func(pi *abis.PrivateCircuitPublicInputs) {
		pi.CallContext.StorageContractAddress = fr.NewElement(3)
	})))
	c.Assert(err, qt.ErrorIs, failure.ErrStorageAddress)
	c.Assert(err, qt.ErrorIs, failure.ErrContractTreeRoot)

	// internal functions are only callable by their own contract
	_, err = Init(f.ctx, f.initInputs(t, f.call(t, 4, nil)))
	c.Assert(err, qt.IsNil)
	_, err = Init(f.ctx, f.initInputs(t, f.call(t, 4, func(pi *abis.PrivateCircuitPublicInputs) {
		pi.CallContext.MsgSender = fr.NewElement(8)
	})))
	c.Assert(err, qt.ErrorIs, failure.ErrInternalCall)

	call := f.call(t, 1, nil)
	call.CallStackItem.FunctionData.IsPrivate = false
	_, err = Init(f.ctx, f.initInputs(t, call))
	c.Assert(err, qt.ErrorIs, failure.ErrNonPrivateFunction)

	call = f.call(t, 1, nil)
	call.CallStackItem.IsExecutionRequest = true
	_, err = Init(f.ctx, f.initInputs(t, call))
	c.Assert(err, qt.ErrorIs, failure.ErrFirstCallRequest)
}

func TestInitContractMembership(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)

	_, err := Init(f.ctx, f.initInputs(t, f.call(t, 1, func(pi *abis.PrivateCircuitPublicInputs) {
		pi.HistoricTreeRoots.ContractTreeRoot = fr.NewElement(1)
	})))
	c.Assert(err, qt.ErrorIs, failure.ErrContractTreeRoot)
	c.Assert(err, qt.ErrorIs, failure.KindContractAddress)

	call := f.call(t, 1, nil)
	call.ACIRHash = fr.NewElement(1)
	_, err = Init(f.ctx, f.initInputs(t, call))
	c.Assert(err, qt.ErrorIs, failure.ErrContractTreeRoot)

	call = f.call(t, 1, nil)
	call.FunctionLeafMembershipWitness.SiblingPath = nil
	_, err = Init(f.ctx, f.initInputs(t, call))
	c.Assert(err, qt.ErrorIs, failure.ErrWitnessShape)

	call = f.call(t, 1, func(pi *abis.PrivateCircuitPublicInputs) {
		pi.CallContext.StorageContractAddress = fr.Element{}
	})
	call.CallStackItem.ContractAddress = fr.Element{}
	_, err = Init(f.ctx, f.initInputs(t, call))
	c.Assert(err, qt.ErrorIs, failure.ErrZeroStorageAddress)
	c.Assert(err, qt.ErrorIs, failure.ErrContractAddressZero)
}

func TestInitReadRequests(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)
	w, err := f.notes.Witness(0)
	c.Assert(err, qt.IsNil)

	read := func(value fr.Element, witnesses ...abis.ReadRequestMembershipWitness) abis.PrivateCallData {
		call := f.call(t, 1, func(pi *abis.PrivateCircuitPublicInputs) {
			testutil.Push(t, &pi.ReadRequests, value)
		})
		call.ReadRequestMembershipWitnesses = witnesses
		return call
	}

	out, err := Init(f.ctx, f.initInputs(t, read(f.settled, abis.ReadRequestMembershipWitness{MembershipWitness: w})))
	c.Assert(err, qt.IsNil)
	c.Assert(out.Claims, qt.HasLen, 3)
	// settled reads are not forwarded
	c.Assert(out.PublicInputs.End.ReadRequests.IsEmpty(), qt.IsTrue)

	bad := w
	bad.LeafIndex = 1
	_, err = Init(f.ctx, f.initInputs(t, read(f.settled, abis.ReadRequestMembershipWitness{MembershipWitness: bad})))
	c.Assert(err, qt.ErrorIs, failure.ErrReadRequestRoot)

	_, err = Init(f.ctx, f.initInputs(t, read(f.settled)))
	c.Assert(err, qt.ErrorIs, failure.ErrReadRequestWitnessLength)

	short := abis.ReadRequestMembershipWitness{MembershipWitness: abis.MembershipWitness{SiblingPath: w.SiblingPath[:2]}}
	_, err = Init(f.ctx, f.initInputs(t, read(f.settled, short)))
	c.Assert(err, qt.ErrorIs, failure.ErrWitnessShape)

	// transient reads are siloed and forwarded to ordering
	pending := testutil.RandomElement(t)
	out, err = Init(f.ctx, f.initInputs(t, read(pending, abis.ReadRequestMembershipWitness{IsTransient: true, HintToNoteHash: 3})))
	c.Assert(err, qt.IsNil)
	reads := out.PublicInputs.End.ReadRequests.Values()
	c.Assert(reads, qt.HasLen, 1)
	c.Assert(reads[0].Value, qt.DeepEquals, abis.SiloNoteHash(f.contract.Address, pending))
	c.Assert(reads[0].Witness.HintToNoteHash, qt.Equals, uint32(3))
}

func TestInitDeployment(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)

	deployed := testutil.NewContract(t, f.cfg, 7)
	args := fr.NewElement(111)
	dd := deployed.Deploy(t, 7, args)

	deployWith := func(dd abis.ContractDeploymentData, edit func(call *abis.PrivateCallData)) *InitInputs {
		pi := deployed.PublicInputs(f.cfg, fr.Element{}, f.roots())
		pi.ContractDeploymentData = dd
		pi.CallContext.IsContractDeployment = true
		pi.ArgsHash = args
		call := deployed.CallData(t, f.contracts, 7, pi)
		if edit != nil {
			edit(&call)
		}
		txCtx := testutil.TxContext()
		txCtx.IsContractDeploymentTx = true
		txCtx.ContractDeploymentData = dd
		return &InitInputs{TxRequest: testutil.SignedTxRequest(t, f.key, &call, txCtx), PrivateCall: call}
	}
	deploy := func(edit func(call *abis.PrivateCallData)) *InitInputs { return deployWith(dd, edit) }

	out, err := Init(f.ctx, deploy(nil))
	c.Assert(err, qt.IsNil)
	end := out.PublicInputs.End
	c.Assert(end.NewContracts.Values(), qt.DeepEquals, []abis.NewContractData{{
		ContractAddress:       deployed.Address,
		PortalContractAddress: deployed.Portal,
		FunctionTreeRoot:      dd.FunctionTreeRoot,
	}})
	nullifiers := end.NewNullifiers.Values()
	c.Assert(nullifiers, qt.HasLen, 2)
	c.Assert(nullifiers[1].Value, qt.DeepEquals, abis.SiloNullifier(deployed.Address, deployed.Address))

	// the constructor key is bound to the address and the deployment data
	_, err = Init(f.ctx, deploy(func(call *abis.PrivateCallData) { call.VKHash = fr.NewElement(1) }))
	c.Assert(err, qt.ErrorIs, failure.ErrDeployedAddress)
	c.Assert(err, qt.ErrorIs, failure.ErrConstructorVKHash)

	forged := dd
	forged.ConstructorVKHash = fr.NewElement(1)
	_, err = Init(f.ctx, deployWith(forged, nil))
	list, ok := failure.AsList(err)
	c.Assert(ok, qt.IsTrue)
	first, _ := list.First()
	c.Assert(first.Code, qt.Equals, failure.ErrConstructorVKHash)

	// so are the constructor arguments
	_, err = Init(f.ctx, deploy(func(call *abis.PrivateCallData) {
		call.CallStackItem.PublicInputs.ArgsHash = fr.NewElement(222)
	}))
	c.Assert(err, qt.ErrorIs, failure.ErrDeployedAddress)

	_, err = Init(f.ctx, deploy(func(call *abis.PrivateCallData) { call.PortalContractAddress = common.Address{} }))
	c.Assert(err, qt.ErrorIs, failure.ErrDeploymentPortal)

	_, err = Init(f.ctx, deploy(func(call *abis.PrivateCallData) {
		call.CallStackItem.PublicInputs.ContractDeploymentData.ContractAddressSalt = fr.NewElement(1)
	}))
	c.Assert(err, qt.ErrorIs, failure.ErrTxRequestContext)
}

func TestInitArrayCapacity(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)
	f.cfg.MaxNewNullifiersPerTx = 2

	_, err := Init(f.ctx, f.initInputs(t, f.call(t, 1, func(pi *abis.PrivateCircuitPublicInputs) {
		testutil.Push(t, &pi.NewNullifiers, fr.NewElement(1), fr.NewElement(2))
		testutil.Push(t, &pi.NullifiedNoteHashes, abis.EmptyNullifiedNoteHash, abis.EmptyNullifiedNoteHash)
	})))
	c.Assert(err, qt.ErrorIs, failure.ErrArrayFull)

	f.cfg.MaxNewNullifiersPerTx = config.Small().MaxNewNullifiersPerTx
	_, err = Init(f.ctx, f.initInputs(t, f.call(t, 1, func(pi *abis.PrivateCircuitPublicInputs) {
		testutil.Push(t, &pi.NewNullifiers, fr.NewElement(1), fr.NewElement(2))
		testutil.Push(t, &pi.NullifiedNoteHashes, abis.EmptyNullifiedNoteHash)
	})))
	c.Assert(err, qt.ErrorIs, failure.ErrNullifiedHashLength)

	_, err = Init(f.ctx, f.initInputs(t, f.call(t, 1, func(pi *abis.PrivateCircuitPublicInputs) {
		pi.NewNoteHashes = array.FromSlots([]array.Slot[fr.Element]{{}, {Value: fr.NewElement(1), Occupied: true}})
	})))
	c.Assert(err, qt.ErrorIs, failure.ErrArrayNotPadded)
}

// nested returns the inputs of a tx whose first call enqueues the calls of
// selectors 2 and 3, in that order.
func (f *fixture) nested(t *testing.T) (*InitInputs, abis.PrivateCallData, abis.PrivateCallData) {
	a := f.call(t, 2, func(pi *abis.PrivateCircuitPublicInputs) {
		testutil.Push(t, &pi.NewNoteHashes, fr.NewElement(22))
	})
	b := f.call(t, 3, func(pi *abis.PrivateCircuitPublicInputs) {
		testutil.Push(t, &pi.NewNoteHashes, fr.NewElement(33))
	})
	first := f.call(t, 1, nil)
	testutil.Enqueue(t, &first, a.CallStackItem)
	testutil.Enqueue(t, &first, b.CallStackItem)
	return f.initInputs(t, first), a, b
}

func TestInnerPopsLastEnqueued(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)
	in, a, b := f.nested(t)

	out, err := Init(f.ctx, in)
	c.Assert(err, qt.IsNil)
	c.Assert(out.PublicInputs.End.PrivateCallStack.Len(), qt.Equals, 2)
	prev := f.prove(t, out)

	_, err = Inner(f.ctx, &InnerInputs{PreviousKernel: prev, PrivateCall: a})
	c.Assert(err, qt.ErrorIs, failure.ErrCallStackPop)

	out, err = Inner(f.ctx, &InnerInputs{PreviousKernel: prev, PrivateCall: b})
	c.Assert(err, qt.IsNil)
	// the previous kernel output is left untouched
	c.Assert(prev.PublicInputs.End.PrivateCallStack.Len(), qt.Equals, 2)

	out, err = Inner(f.ctx, &InnerInputs{PreviousKernel: f.prove(t, out), PrivateCall: a})
	c.Assert(err, qt.IsNil)
	end := out.PublicInputs.End
	c.Assert(end.PrivateCallStack.IsEmpty(), qt.IsTrue)
	c.Assert(end.NewNoteHashes.Values(), qt.DeepEquals, []fr.Element{
		abis.SiloNoteHash(f.contract.Address, fr.NewElement(33)),
		abis.SiloNoteHash(f.contract.Address, fr.NewElement(22)),
	})

	// nothing left to execute
	_, err = Inner(f.ctx, &InnerInputs{PreviousKernel: f.prove(t, out), PrivateCall: a})
	c.Assert(err, qt.ErrorIs, failure.ErrCallStackEmpty)
}

func TestInnerCallRules(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)

	run := func(edit func(pi *abis.PrivateCircuitPublicInputs), editCall func(call *abis.PrivateCallData)) error {
		callee := f.call(t, 2, edit)
		if editCall != nil {
			editCall(&callee)
		}
		first := f.call(t, 1, nil)
		testutil.Enqueue(t, &first, callee.CallStackItem)
		out, err := Init(f.ctx, f.initInputs(t, first))
		c.Assert(err, qt.IsNil)
		_, err = Inner(f.ctx, &InnerInputs{PreviousKernel: f.prove(t, out), PrivateCall: callee})
		return err
	}

	c.Assert(run(func(pi *abis.PrivateCircuitPublicInputs) { pi.CallContext.IsStaticCall = true }, nil), qt.IsNil)
	err := run(func(pi *abis.PrivateCircuitPublicInputs) {
		pi.CallContext.IsStaticCall = true
		testutil.Push(t, &pi.NewNoteHashes, fr.NewElement(1))
	}, nil)
	c.Assert(err, qt.ErrorIs, failure.ErrStaticCallStateChange)

	err = run(nil, func(call *abis.PrivateCallData) { call.CallStackItem.FunctionData.IsConstructor = true })
	c.Assert(err, qt.ErrorIs, failure.ErrConstructorNotFirst)

	err = run(func(pi *abis.PrivateCircuitPublicInputs) { pi.HistoricTreeRoots.NullifierTreeRoot = fr.NewElement(1) }, nil)
	c.Assert(err, qt.ErrorIs, failure.ErrHistoricRoots)

	err = run(func(pi *abis.PrivateCircuitPublicInputs) { pi.Version = fr.NewElement(2) }, nil)
	c.Assert(err, qt.ErrorIs, failure.ErrVersion)

	// the callee must see the caller contract as msg sender
	callee := f.call(t, 2, func(pi *abis.PrivateCircuitPublicInputs) { pi.CallContext.MsgSender = fr.NewElement(5) })
	first := f.call(t, 1, nil)
	testutil.Enqueue(t, &first, callee.CallStackItem)
	_, err = Init(f.ctx, f.initInputs(t, first))
	c.Assert(err, qt.ErrorIs, failure.ErrCallContext)

	// preimages must reconcile with the stack
	first = f.call(t, 1, nil)
	testutil.Enqueue(t, &first, callee.CallStackItem)
	first.PrivateCallStackPreimages[0].IsExecutionRequest = true
	_, err = Init(f.ctx, f.initInputs(t, first))
	c.Assert(err, qt.ErrorIs, failure.ErrCallStackPreimage)
}

func TestPreviousKernelChecks(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)
	in, _, b := f.nested(t)
	out, err := Init(f.ctx, in)
	c.Assert(err, qt.IsNil)

	prev := f.prove(t, out)
	prev.VK.Key.Data = []byte("forged")
	_, err = Inner(f.ctx, &InnerInputs{PreviousKernel: prev, PrivateCall: b})
	c.Assert(err, qt.ErrorIs, failure.ErrVerificationKeyMembership)

	prev = f.prove(t, out)
	prev.PublicInputs.End.EncryptedLogPreimagesLength = 1
	_, err = Inner(f.ctx, &InnerInputs{PreviousKernel: prev, PrivateCall: b})
	c.Assert(err, qt.ErrorIs, failure.ErrProofBinding)

	prev = f.prove(t, out)
	prev.PublicInputs.End.NewNoteHashes = array.FromSlots([]array.Slot[fr.Element]{
		{}, {Value: fr.NewElement(1), Occupied: true}, {}, {},
	})
	_, err = Inner(f.ctx, &InnerInputs{PreviousKernel: prev, PrivateCall: b})
	c.Assert(err, qt.ErrorIs, failure.ErrArrayNotPadded)

	// an ordered kernel cannot be extended
	single, err := Init(f.ctx, f.initInputs(t, f.call(t, 1, nil)))
	c.Assert(err, qt.IsNil)
	ordered, err := Ordering(f.ctx, &OrderingInputs{PreviousKernel: f.prove(t, single), NullifierHints: []uint32{0}})
	c.Assert(err, qt.IsNil)
	_, err = Inner(f.ctx, &InnerInputs{PreviousKernel: f.prove(t, ordered), PrivateCall: b})
	c.Assert(err, qt.ErrorIs, failure.ErrVerificationKeyStage)
}

// transient returns the inputs of a tx creating n1 and n2, nullifying n1
// and reading n2, all within its single call.
func (f *fixture) transient(t *testing.T, nullified ...fr.Element) (*InitInputs, fr.Element, fr.Element) {
	n1, spent := testutil.Note(t, 10, fr.NewElement(1))
	n2, _ := testutil.Note(t, 20, fr.NewElement(1))
	nullifiers := []fr.Element{spent}
	if len(nullified) == 0 {
		nullified = []fr.Element{n1}
	} else {
		nullifiers = nullifiers[:0]
		for i := range nullified {
			nullifiers = append(nullifiers, fr.NewElement(uint64(100+i)))
		}
	}
	call := f.call(t, 1, func(pi *abis.PrivateCircuitPublicInputs) {
		testutil.Push(t, &pi.NewNoteHashes, n1, n2)
		testutil.Push(t, &pi.ReadRequests, n2)
		for i, nh := range nullified {
			testutil.Push(t, &pi.NewNullifiers, nullifiers[i])
			testutil.Push(t, &pi.NullifiedNoteHashes, nh)
		}
	})
	call.ReadRequestMembershipWitnesses = []abis.ReadRequestMembershipWitness{{IsTransient: true, HintToNoteHash: 1}}
	return f.initInputs(t, call), n1, n2
}

func TestOrderingSquashesTransientNotes(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)
	in, _, n2 := f.transient(t)

	out, err := Init(f.ctx, in)
	c.Assert(err, qt.IsNil)
	c.Assert(out.PublicInputs.End.NewNoteHashes.Len(), qt.Equals, 2)
	c.Assert(out.PublicInputs.End.NewNullifiers.Len(), qt.Equals, 2)

	ordered, err := Ordering(f.ctx, &OrderingInputs{PreviousKernel: f.prove(t, out), NullifierHints: []uint32{0, 0}})
	c.Assert(err, qt.IsNil)
	c.Assert(ordered.Stage, qt.Equals, abis.StageKernelOrdering)
	end := ordered.PublicInputs.End
	c.Assert(end.CheckShape(f.cfg), qt.IsNil)
	c.Assert(end.ReadRequests.IsEmpty(), qt.IsTrue)

	txHash := in.TxRequest.TxRequest.Hash()
	c.Assert(end.NewNullifiers.Values(), qt.DeepEquals, []abis.Nullifier{{Value: txHash, NullifiedNoteHash: abis.EmptyNullifiedNoteHash}})
	siloed := abis.SiloNoteHash(f.contract.Address, n2)
	c.Assert(end.NewNoteHashes.Values(), qt.DeepEquals, []fr.Element{
		abis.UniqueNoteHash(abis.NoteHashNonce(txHash, 0), siloed),
	})
}

func TestOrderingNoncesFollowPosition(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)
	a, b := fr.NewElement(1), fr.NewElement(2)
	in := f.initInputs(t, f.call(t, 1, func(pi *abis.PrivateCircuitPublicInputs) {
		testutil.Push(t, &pi.NewNoteHashes, a, b)
	}))
	out, err := Init(f.ctx, in)
	c.Assert(err, qt.IsNil)
	ordered, err := Ordering(f.ctx, &OrderingInputs{PreviousKernel: f.prove(t, out), NullifierHints: []uint32{0}})
	c.Assert(err, qt.IsNil)

	txHash := in.TxRequest.TxRequest.Hash()
	hashes := ordered.PublicInputs.End.NewNoteHashes.Values()
	c.Assert(hashes, qt.DeepEquals, []fr.Element{
		abis.UniqueNoteHash(abis.NoteHashNonce(txHash, 0), abis.SiloNoteHash(f.contract.Address, a)),
		abis.UniqueNoteHash(abis.NoteHashNonce(txHash, 1), abis.SiloNoteHash(f.contract.Address, b)),
	})
}

func TestOrderingFailures(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)

	order := func(in *InitInputs, hints ...uint32) error {
		out, err := Init(f.ctx, in)
		c.Assert(err, qt.IsNil)
		_, err = Ordering(f.ctx, &OrderingInputs{PreviousKernel: f.prove(t, out), NullifierHints: hints})
		return err
	}

	in, _, _ := f.transient(t)
	c.Assert(order(in, 0, 1), qt.ErrorIs, failure.ErrTransientNullifier)

	in, _, _ = f.transient(t)
	c.Assert(order(in, 0), qt.ErrorIs, failure.ErrNullifierHintLength)

	in, _, _ = f.transient(t)
	in.PrivateCall.ReadRequestMembershipWitnesses[0].HintToNoteHash = 0
	in = f.initInputs(t, in.PrivateCall)
	c.Assert(order(in, 0, 0), qt.ErrorIs, failure.ErrTransientRead)

	n := testutil.RandomElement(t)
	in, _, _ = f.transient(t, n, n)
	err := order(in, 0, 0, 0)
	c.Assert(err, qt.ErrorIs, failure.ErrTransientNullifier)

	// the same note hash squashed twice
	double := f.call(t, 1, func(pi *abis.PrivateCircuitPublicInputs) {
		testutil.Push(t, &pi.NewNoteHashes, n)
		testutil.Push(t, &pi.NewNullifiers, fr.NewElement(1), fr.NewElement(2))
		testutil.Push(t, &pi.NullifiedNoteHashes, n, n)
	})
	c.Assert(order(f.initInputs(t, double), 0, 0, 0), qt.ErrorIs, failure.ErrNoteHashSquashed)

	nested, _, _ := f.nested(t)
	c.Assert(order(nested, 0), qt.ErrorIs, failure.ErrCallStackPending)
}

func TestEmptyKernel(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)
	constants := abis.CombinedConstantData{HistoricTreeRoots: f.roots(), TxContext: testutil.TxContext()}
	out := Empty(f.cfg, constants)
	c.Assert(out.Stage, qt.Equals, abis.StageEmptyKernel)
	c.Assert(out.PublicInputs.End.CheckShape(f.cfg), qt.IsNil)

	prev := f.prove(t, out)
	c.Assert(prev.VK.Key.Stage, qt.Equals, abis.StageEmptyKernel)
	c.Assert(vktree.Verify(f.ctx.VKRoot, f.cfg.VerificationKeyTreeLevels, prev.VK), qt.IsNil)
}
