package testutil

import (
	"crypto/ecdsa"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/array"
	"github.com/vocdoni/private-rollup/config"
	"github.com/vocdoni/private-rollup/oracle"
	"github.com/vocdoni/private-rollup/tree/merkle"
	"github.com/vocdoni/private-rollup/vktree"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/pebbledb"
	"go.vocdoni.io/dvote/util"
)

var (
	// ChainID and Version are the chain every fixture targets.
	ChainID = fr.NewElement(1)
	Version = fr.NewElement(1)
)

// NewDatabase opens a pebble database in a directory removed when the test
// ends.
func NewDatabase(t testing.TB) db.Database {
	t.Helper()
	database, err := pebbledb.New(db.Options{Path: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

// NewContext builds the verification key tree of every stage of orc and
// returns a context accepting them, with the tree to produce witnesses.
func NewContext(t testing.TB, cfg *config.Config, orc oracle.Oracle) (*config.Context, *vktree.Tree) {
	t.Helper()
	var keys []abis.VerificationKey
	for _, s := range abis.Stages() {
		keys = append(keys, orc.VerificationKey(s))
	}
	tree, err := vktree.Build(NewDatabase(t), cfg.VerificationKeyTreeLevels, keys...)
	if err != nil {
		t.Fatal(err)
	}
	root, err := tree.Root()
	if err != nil {
		t.Fatal(err)
	}
	return config.NewContext(cfg, root), tree
}

// RandomElement returns a random field element.
func RandomElement(t testing.TB) fr.Element {
	t.Helper()
	var e fr.Element
	if _, err := e.SetRandom(); err != nil {
		t.Fatal(err)
	}
	return e
}

// Function is a private function of a fixture contract.
type Function struct {
	Data     abis.FunctionData
	VKHash   fr.Element
	ACIRHash fr.Element
	Index    uint64
}

// Contract is a contract whose functions are committed in a function tree
// and, once registered, whose leaf lives in a contract tree.
type Contract struct {
	Address      fr.Element
	Portal       common.Address
	Functions    map[uint32]Function
	FunctionTree *merkle.Tree
	LeafIndex    uint64
}

// NewContract returns a contract at a random address with one private
// function per selector.
func NewContract(t testing.TB, cfg *config.Config, selectors ...uint32) *Contract {
	t.Helper()
	tree, err := merkle.New(cfg.FunctionTreeHeight)
	if err != nil {
		t.Fatal(err)
	}
	c := &Contract{
		Address:      RandomElement(t),
		Portal:       common.BytesToAddress(util.RandomBytes(common.AddressLength)),
		Functions:    map[uint32]Function{},
		FunctionTree: tree,
	}
	for _, s := range selectors {
		c.AddFunction(t, abis.FunctionData{Selector: s, IsPrivate: true})
	}
	return c
}

// AddFunction commits fd in the function tree of the contract.
func (c *Contract) AddFunction(t testing.TB, fd abis.FunctionData) Function {
	t.Helper()
	f := Function{Data: fd, VKHash: RandomElement(t), ACIRHash: RandomElement(t), Index: c.FunctionTree.NextIndex()}
	if err := c.FunctionTree.Append(abis.FunctionLeaf(fd, f.VKHash, f.ACIRHash)); err != nil {
		t.Fatal(err)
	}
	c.Functions[fd.Selector] = f
	return f
}

// Leaf returns the contract tree leaf of the contract.
func (c *Contract) Leaf() fr.Element {
	return abis.ContractLeaf(c.Address, c.Portal, c.FunctionTree.Root())
}

// Deploy marks the function at selector as the constructor, moves the
// contract to the address derived from the returned deployment data and a
// constructor call with argsHash.
func (c *Contract) Deploy(t testing.TB, selector uint32, argsHash fr.Element) abis.ContractDeploymentData {
	t.Helper()
	f, ok := c.Functions[selector]
	if !ok {
		t.Fatalf("contract has no function %d", selector)
	}
	f.Data.IsConstructor = true
	c.Functions[selector] = f
	dd := abis.ContractDeploymentData{
		DeployerPublicKey:     abis.Point{X: RandomElement(t), Y: RandomElement(t)},
		ConstructorVKHash:     f.VKHash,
		FunctionTreeRoot:      c.FunctionTree.Root(),
		ContractAddressSalt:   RandomElement(t),
		PortalContractAddress: c.Portal,
	}
	c.Address = abis.ContractAddress(dd.DeployerPublicKey, dd.ContractAddressSalt, dd.FunctionTreeRoot,
		abis.ConstructorHash(f.Data, argsHash, f.VKHash))
	return dd
}

// Register appends the contract leaf to contracts.
func (c *Contract) Register(t testing.TB, contracts *merkle.Tree) {
	t.Helper()
	c.LeafIndex = contracts.NextIndex()
	if err := contracts.Append(c.Leaf()); err != nil {
		t.Fatal(err)
	}
}

// PublicInputs returns empty call inputs of the contract executing against
// the given historic roots. msgSender is the caller of the function.
func (c *Contract) PublicInputs(cfg *config.Config, msgSender fr.Element, roots abis.HistoricTreeRoots) abis.PrivateCircuitPublicInputs {
	pi := abis.NewPrivateCircuitPublicInputs(cfg)
	pi.CallContext = abis.CallContext{
		MsgSender:              msgSender,
		StorageContractAddress: c.Address,
		PortalContractAddress:  c.Portal,
	}
	pi.HistoricTreeRoots = roots
	pi.ChainID = ChainID
	pi.Version = Version
	return pi
}

// CallData returns the call of selector with pi, carrying the function and
// contract membership witnesses against contracts.
func (c *Contract) CallData(t testing.TB, contracts *merkle.Tree, selector uint32, pi abis.PrivateCircuitPublicInputs) abis.PrivateCallData {
	t.Helper()
	f, ok := c.Functions[selector]
	if !ok {
		t.Fatalf("contract has no function %d", selector)
	}
	fw, err := c.FunctionTree.Witness(f.Index)
	if err != nil {
		t.Fatal(err)
	}
	cw, err := contracts.Witness(c.LeafIndex)
	if err != nil {
		t.Fatal(err)
	}
	return abis.PrivateCallData{
		CallStackItem: abis.PrivateCallStackItem{
			ContractAddress: c.Address,
			FunctionData:    f.Data,
			PublicInputs:    pi,
		},
		VKHash:                        f.VKHash,
		ACIRHash:                      f.ACIRHash,
		FunctionLeafMembershipWitness: fw,
		ContractLeafMembershipWitness: cw,
		PortalContractAddress:         c.Portal,
	}
}

// Note returns the hash of a fresh value note stored at slot and the
// nullifier its owner consumes it with.
func Note(t testing.TB, value uint64, slot fr.Element) (hash, nullifier fr.Element) {
	t.Helper()
	note := abis.ValueNote{Value: value, Owner: RandomElement(t), Randomness: RandomElement(t)}
	hash, err := abis.NoteHash(slot, note)
	if err != nil {
		t.Fatal(err)
	}
	if nullifier, err = abis.NoteNullifier(note, hash, RandomElement(t)); err != nil {
		t.Fatal(err)
	}
	return hash, nullifier
}

// NewAccount generates a secp256k1 key to sign tx requests with.
func NewAccount(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// TxContext returns a context on the fixture chain.
func TxContext() abis.TxContext {
	return abis.TxContext{ChainID: ChainID, Version: Version}
}

// SignedTxRequest returns the request to execute call, signed with key.
func SignedTxRequest(t testing.TB, key *ecdsa.PrivateKey, call *abis.PrivateCallData, txCtx abis.TxContext) abis.SignedTxRequest {
	t.Helper()
	req := abis.SignedTxRequest{TxRequest: abis.TxRequest{
		Origin:       call.CallStackItem.ContractAddress,
		FunctionData: call.CallStackItem.FunctionData,
		ArgsHash:     call.CallStackItem.PublicInputs.ArgsHash,
		TxContext:    txCtx,
	}}
	if err := req.Sign(key); err != nil {
		t.Fatal(err)
	}
	return req
}

// Enqueue pushes the hash of callee on the private call stack of caller and
// records its preimage.
func Enqueue(t testing.TB, caller *abis.PrivateCallData, callee abis.PrivateCallStackItem) {
	t.Helper()
	if err := caller.CallStackItem.PublicInputs.PrivateCallStack.Push(callee.Hash()); err != nil {
		t.Fatal(err)
	}
	caller.PrivateCallStackPreimages = append(caller.PrivateCallStackPreimages, callee)
}

// Push appends v to a, failing the test when it is full.
func Push[T any](t testing.TB, a *array.Array[T], vs ...T) {
	t.Helper()
	for _, v := range vs {
		if err := a.Push(v); err != nil {
			t.Fatal(err)
		}
	}
}
