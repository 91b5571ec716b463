package sequencer

import (
	"context"
	"crypto/ecdsa"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/config"
	"github.com/vocdoni/private-rollup/hash/calldata"
	"github.com/vocdoni/private-rollup/kernel"
	"github.com/vocdoni/private-rollup/oracle"
	"github.com/vocdoni/private-rollup/testutil"
	"github.com/vocdoni/private-rollup/tree/indexed"
	"github.com/vocdoni/private-rollup/vktree"
	"go.vocdoni.io/dvote/db"
)

type fixture struct {
	cfg *config.Config
	ctx *config.Context
	vks *vktree.Tree
	orc oracle.Oracle
	key *ecdsa.PrivateKey
	db  db.Database
	seq *Sequencer
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{cfg: config.Small(), orc: oracle.Trusted{}, key: testutil.NewAccount(t)}
	f.ctx, f.vks = testutil.NewContext(t, f.cfg, f.orc)
	f.db = testutil.NewDatabase(t)
	state, err := OpenWorldState(f.db, f.cfg)
	qt.Assert(t, err, qt.IsNil)
	f.seq = New(f.ctx, f.orc, f.vks, state, testutil.ChainID, testutil.Version)
	return f
}

// execute runs the kernel stages of a single call transaction and returns
// its ordered output.
func (f *fixture) execute(t *testing.T, in *kernel.InitInputs, hints ...uint32) abis.PreviousKernelData {
	c := qt.New(t)
	out, err := kernel.Init(f.ctx, in)
	c.Assert(err, qt.IsNil)
	prev, err := out.Prove(f.orc, f.vks)
	c.Assert(err, qt.IsNil)
	out, err = kernel.Ordering(f.ctx, &kernel.OrderingInputs{PreviousKernel: prev, NullifierHints: hints})
	c.Assert(err, qt.IsNil)
	prev, err = out.Prove(f.orc, f.vks)
	c.Assert(err, qt.IsNil)
	return prev
}

func TestBuildBlocks(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)
	bctx := context.Background()

	// block 1 deploys a contract whose constructor creates two notes,
	// reads the second and consumes the first
	deployed := testutil.NewContract(t, f.cfg, 7, 1)
	dd := deployed.Deploy(t, 7, fr.NewElement(7))

	slot := fr.NewElement(1)
	n1, spent := testutil.Note(t, 10, slot)
	n2, spentLater := testutil.Note(t, 20, slot)
	pi := deployed.PublicInputs(f.cfg, fr.Element{}, f.seq.Roots())
	pi.ContractDeploymentData = dd
	pi.CallContext.IsContractDeployment = true
	pi.ArgsHash = fr.NewElement(7)
	testutil.Push(t, &pi.NewNoteHashes, n1, n2)
	testutil.Push(t, &pi.ReadRequests, n2)
	testutil.Push(t, &pi.NewNullifiers, spent)
	testutil.Push(t, &pi.NullifiedNoteHashes, n1)
	call := deployed.CallData(t, f.seq.State().Contracts, 7, pi)
	call.ReadRequestMembershipWitnesses = []abis.ReadRequestMembershipWitness{{IsTransient: true, HintToNoteHash: 1}}
	txCtx := testutil.TxContext()
	txCtx.IsContractDeploymentTx = true
	txCtx.ContractDeploymentData = dd
	deploy := &kernel.InitInputs{TxRequest: testutil.SignedTxRequest(t, f.key, &call, txCtx), PrivateCall: call}
	deployTx := f.execute(t, deploy, 0, 0, 0)

	messages := []fr.Element{fr.NewElement(11), fr.NewElement(12)}
	block, err := f.seq.BuildBlock(bctx, []abis.PreviousKernelData{deployTx}, messages)
	c.Assert(err, qt.IsNil)
	c.Assert(block.Number, qt.Equals, uint64(1))
	c.Assert(oracle.Bound(block.Proof, abis.StageRootRollup, block.PublicInputs.Hash()), qt.IsTrue)
	c.Assert(block.PublicInputs.L1ToL2MessagesHash, qt.Equals,
		new(calldata.Encoder).Fields(messages[0], messages[1], fr.Element{}, fr.Element{}).Digest())

	state := f.seq.State()
	txHash := deploy.TxRequest.TxRequest.Hash()
	settled := abis.UniqueNoteHash(abis.NoteHashNonce(txHash, 0), abis.SiloNoteHash(deployed.Address, n2))
	leaf, err := state.NoteHashes.Leaf(0)
	c.Assert(err, qt.IsNil)
	c.Assert(leaf, qt.DeepEquals, settled)
	// the squashed note never reaches the trees
	leaf, err = state.NoteHashes.Leaf(1)
	c.Assert(err, qt.IsNil)
	c.Assert(leaf.IsZero(), qt.IsTrue)
	c.Assert(state.Nullifiers.Contains(txHash), qt.IsTrue)
	c.Assert(state.Nullifiers.Contains(abis.SiloNullifier(deployed.Address, deployed.Address)), qt.IsTrue)
	c.Assert(state.Nullifiers.Contains(abis.SiloNullifier(deployed.Address, spent)), qt.IsFalse)
	leaf, err = state.Contracts.Leaf(0)
	c.Assert(err, qt.IsNil)
	c.Assert(leaf, qt.DeepEquals, deployed.Leaf())
	leaf, err = state.L1ToL2Messages.Leaf(1)
	c.Assert(err, qt.IsNil)
	c.Assert(leaf, qt.DeepEquals, messages[1])
	c.Assert(state.HistoricNoteHashRoots.NextIndex(), qt.Equals, uint64(2))

	// block 2 calls the deployed contract, reading and nullifying the note
	// settled by block 1
	w, err := state.NoteHashes.Witness(0)
	c.Assert(err, qt.IsNil)
	pi = deployed.PublicInputs(f.cfg, deployed.Address, f.seq.Roots())
	pi.ArgsHash = fr.NewElement(1)
	testutil.Push(t, &pi.ReadRequests, settled)
	testutil.Push(t, &pi.NewNullifiers, spentLater)
	testutil.Push(t, &pi.NullifiedNoteHashes, abis.EmptyNullifiedNoteHash)
	call = deployed.CallData(t, state.Contracts, 1, pi)
	call.ReadRequestMembershipWitnesses = []abis.ReadRequestMembershipWitness{{MembershipWitness: w}}
	spend := f.execute(t, &kernel.InitInputs{
		TxRequest:   testutil.SignedTxRequest(t, f.key, &call, testutil.TxContext()),
		PrivateCall: call,
	}, 0, 0)

	block, err = f.seq.BuildBlock(bctx, []abis.PreviousKernelData{spend}, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(block.Number, qt.Equals, uint64(2))
	c.Assert(block.PublicInputs.StartNoteHashTreeSnapshot, qt.DeepEquals, state.NoteHashes.Snapshot())
	state = f.seq.State()
	c.Assert(state.Nullifiers.Contains(abis.SiloNullifier(deployed.Address, spentLater)), qt.IsTrue)
	c.Assert(state.HistoricNoteHashRoots.NextIndex(), qt.Equals, uint64(3))

	// the committed state survives a reload
	reopened, err := OpenWorldState(f.db, f.cfg)
	c.Assert(err, qt.IsNil)
	c.Assert(reopened.Roots(), qt.DeepEquals, state.Roots())
	c.Assert(reopened.Nullifiers.Snapshot(), qt.DeepEquals, state.Nullifiers.Snapshot())
	c.Assert(reopened.Constants(testutil.ChainID, testutil.Version), qt.DeepEquals,
		state.Constants(testutil.ChainID, testutil.Version))

	// spending twice leaves the state untouched
	roots := f.seq.Roots()
	_, err = f.seq.BuildBlock(bctx, []abis.PreviousKernelData{spend}, nil)
	c.Assert(err, qt.ErrorIs, indexed.ErrExists)
	c.Assert(f.seq.Roots(), qt.DeepEquals, roots)
}

func TestBuildBlockLimits(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)
	bctx := context.Background()

	empty := kernel.Empty(f.cfg, abis.CombinedConstantData{
		HistoricTreeRoots: f.seq.Roots(),
		TxContext:         testutil.TxContext(),
	})
	tx, err := empty.Prove(f.orc, f.vks)
	c.Assert(err, qt.IsNil)
	txs := make([]abis.PreviousKernelData, f.cfg.TxsPerBlock+1)
	for i := range txs {
		txs[i] = tx
	}
	_, err = f.seq.BuildBlock(bctx, txs, nil)
	c.Assert(err, qt.ErrorIs, ErrTooManyTxs)

	_, err = f.seq.BuildBlock(bctx, nil, make([]fr.Element, f.cfg.L1ToL2MsgsPerRollup+1))
	c.Assert(err, qt.IsNotNil)

	// a transaction executed against roots the chain never had
	bad := kernel.Empty(f.cfg, abis.CombinedConstantData{
		HistoricTreeRoots: abis.HistoricTreeRoots{NoteHashTreeRoot: fr.NewElement(1)},
		TxContext:         testutil.TxContext(),
	})
	tx, err = bad.Prove(f.orc, f.vks)
	c.Assert(err, qt.IsNil)
	_, err = f.seq.BuildBlock(bctx, []abis.PreviousKernelData{tx}, nil)
	c.Assert(err, qt.ErrorIs, ErrUnknownRoot)

	// an empty block still advances the historic trees
	block, err := f.seq.BuildBlock(bctx, nil, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(block.PublicInputs.EndHistoricNoteHashTreeRootsSnapshot.NextAvailableLeafIndex, qt.Equals, uint32(2))
	c.Assert(f.seq.State().NoteHashes.NextIndex(), qt.Equals, uint64(2*(1<<f.cfg.NoteHashSubtreeHeight())))
}

func TestPaddingSharesPartnerConstants(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)

	txCtx := testutil.TxContext()
	txCtx.IsContractDeploymentTx = true
	txCtx.ContractDeploymentData.ContractAddressSalt = fr.NewElement(3)
	tx, err := kernel.Empty(f.cfg, abis.CombinedConstantData{
		HistoricTreeRoots: f.seq.Roots(),
		TxContext:         txCtx,
	}).Prove(f.orc, f.vks)
	c.Assert(err, qt.IsNil)

	padded, err := f.seq.pad([]abis.PreviousKernelData{tx})
	c.Assert(err, qt.IsNil)
	c.Assert(padded, qt.HasLen, f.cfg.TxsPerBlock)
	c.Assert(padded[1].PublicInputs.Constants.Equal(tx.PublicInputs.Constants), qt.IsTrue)
	c.Assert(padded[2].PublicInputs.Constants.TxContext.IsContractDeploymentTx, qt.IsFalse)
	c.Assert(padded[3].PublicInputs.Constants.Equal(padded[2].PublicInputs.Constants), qt.IsTrue)

	block, err := f.seq.BuildBlock(context.Background(), []abis.PreviousKernelData{tx}, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(block.Number, qt.Equals, uint64(1))
}
