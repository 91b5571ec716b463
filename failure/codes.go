package failure

import "fmt"

// Code is a sentinel identifying one concrete assertion. Codes render as
// "<prefix><num>|<Name>: <message>".
type Code struct {
	Kind Kind
	Num  int
	Name string
	Msg  string
}

func newCode(kind Kind, num int, name, msg string) *Code {
	return &Code{Kind: kind, Num: num, Name: name, Msg: msg}
}

// ID returns the short identifier, e.g. "N1".
func (c *Code) ID() string { return fmt.Sprintf("%s%d", c.Kind.Prefix(), c.Num) }

func (c *Code) Error() string { return fmt.Sprintf("%s|%s: %s", c.ID(), c.Name, c.Msg) }

// User intent (U)
var (
	ErrTxRequestContractAddress = newCode(KindUserIntent, 1, "TxRequestContractAddress", "call contract address differs from the tx request origin.")
	ErrTxRequestFunctionData    = newCode(KindUserIntent, 2, "TxRequestFunctionData", "call function data differs from the tx request.")
	ErrTxRequestArgsHash        = newCode(KindUserIntent, 3, "TxRequestArgsHash", "call arguments hash differs from the tx request.")
	ErrTxRequestSignature       = newCode(KindUserIntent, 4, "TxRequestSignature", "tx request signature does not recover the declared signer.")
	ErrTxRequestContext         = newCode(KindUserIntent, 5, "TxRequestContext", "call deployment data differs from the tx request context.")
)

// Unsupported operation (O)
var (
	ErrDelegateCall          = newCode(KindUnsupportedOperation, 1, "DelegateCall", "delegate calls are not supported.")
	ErrStaticCall            = newCode(KindUnsupportedOperation, 2, "StaticCall", "the first call of a tx cannot be static.")
	ErrStaticCallStateChange = newCode(KindUnsupportedOperation, 3, "StaticCallStateChange", "a static call cannot modify state.")
	ErrConstructorNotFirst   = newCode(KindUnsupportedOperation, 4, "ConstructorNotFirst", "a constructor can only be the first call of a tx.")
	ErrInternalCall          = newCode(KindUnsupportedOperation, 5, "InternalCall", "internal functions can only be called by their own contract.")
	ErrNonPrivateFunction    = newCode(KindUnsupportedOperation, 6, "NonPrivateFunction", "the private kernel only executes private functions.")
)

// Contract address (C)
var (
	ErrDeployedAddress     = newCode(KindContractAddress, 1, "DeployedAddress", "derived contract address differs from the declared storage address.")
	ErrZeroStorageAddress  = newCode(KindContractAddress, 2, "ZeroStorageAddress", "storage contract address is zero.")
	ErrContractTreeRoot    = newCode(KindContractAddress, 3, "ContractTreeRoot", "function and contract leaves do not reconcile with the historic contract tree root.")
	ErrStorageAddress      = newCode(KindContractAddress, 4, "StorageAddress", "storage contract address differs from the contract address.")
	ErrDeploymentPortal    = newCode(KindContractAddress, 5, "DeploymentPortal", "deployment portal differs from the call portal.")
	ErrContractAddressZero = newCode(KindContractAddress, 6, "ContractAddressZero", "call stack item contract address is zero.")
	ErrConstructorVKHash   = newCode(KindContractAddress, 7, "ConstructorVKHash", "deployment constructor key differs from the called function key.")
)

// Read requests (R)
var (
	ErrReadRequestRoot          = newCode(KindReadRequest, 1, "ReadRequestRoot", "read request sibling path does not reconcile with the historic note hash root.")
	ErrReadRequestWitnessLength = newCode(KindReadRequest, 2, "ReadRequestWitnessLength", "read requests and membership witnesses differ in length.")
	ErrHistoricRootMembership   = newCode(KindReadRequest, 3, "HistoricRootMembership", "historic root is not a member of the historic roots tree.")
)

// Transient matching (T)
var (
	ErrTransientRead       = newCode(KindTransientMatch, 1, "TransientRead", "transient read request has no matching hinted note hash.")
	ErrTransientNullifier  = newCode(KindTransientMatch, 2, "TransientNullifier", "transient nullifier has no matching hinted note hash.")
	ErrNoteHashSquashed    = newCode(KindTransientMatch, 3, "NoteHashSquashed", "hinted note hash was already squashed by another nullifier.")
	ErrNullifierHintLength = newCode(KindTransientMatch, 4, "NullifierHintLength", "nullifier hints differ in length from the nullifiers.")
)

// Array capacity (A)
var (
	ErrArrayFull = newCode(KindArrayCapacity, 1, "ArrayFull", "fixed capacity exceeded.")
)

// Indexed tree non-membership (N)
var (
	ErrLowLeafBracket    = newCode(KindNonMembership, 1, "LowLeafBracket", "low leaf does not bracket the inserted value.")
	ErrLowLeafMembership = newCode(KindNonMembership, 2, "LowLeafMembership", "low leaf sibling path does not reconcile with the current root.")
	ErrLeafSlotNotEmpty  = newCode(KindNonMembership, 3, "LeafSlotNotEmpty", "new leaf sibling path does not prove an empty slot.")
	ErrLowLeafWitnesses  = newCode(KindNonMembership, 4, "LowLeafWitnesses", "low leaf witnesses differ in length from the values.")
	ErrTreeFull          = newCode(KindNonMembership, 5, "TreeFull", "no free leaf index left.")
)

// Tree chaining (X)
var (
	ErrSnapshotChaining = newCode(KindTreeChaining, 1, "SnapshotChaining", "left end snapshot differs from right start snapshot.")
	ErrSubtreeNotEmpty  = newCode(KindTreeChaining, 2, "SubtreeNotEmpty", "subtree sibling path does not prove an empty slot under the start root.")
	ErrSubtreeAlignment = newCode(KindTreeChaining, 3, "SubtreeAlignment", "next available leaf index is not aligned to the subtree size.")
	ErrHistoricAppend   = newCode(KindTreeChaining, 4, "HistoricAppend", "historic roots append path does not reconcile with the start snapshot.")
	ErrRollupHeight     = newCode(KindTreeChaining, 5, "RollupHeight", "merged rollups have different heights.")
	ErrRollupType       = newCode(KindTreeChaining, 6, "RollupType", "merged rollups are of different types.")
)

// Constant data (K)
var (
	ErrConstants     = newCode(KindConstantData, 1, "Constants", "constant data differs between merged halves.")
	ErrChainID       = newCode(KindConstantData, 2, "ChainID", "chain id differs from the rollup constants.")
	ErrVersion       = newCode(KindConstantData, 3, "Version", "version differs from the rollup constants.")
	ErrHistoricRoots = newCode(KindConstantData, 4, "HistoricRoots", "call historic roots differ from the tx constants.")
)

// Call stack (S)
var (
	ErrCallStackPreimage = newCode(KindCallStack, 1, "CallStackPreimage", "call stack hash does not reconcile with its preimage.")
	ErrCallStackPop      = newCode(KindCallStack, 2, "CallStackPop", "popped call stack hash differs from the executed call.")
	ErrCallStackEmpty    = newCode(KindCallStack, 3, "CallStackEmpty", "no private call left to execute.")
	ErrCallStackPending  = newCode(KindCallStack, 4, "CallStackPending", "private calls are still pending.")
	ErrCallContext       = newCode(KindCallStack, 5, "CallContext", "callee call context does not match its caller.")
	ErrFirstCallRequest  = newCode(KindCallStack, 6, "FirstCallRequest", "first call stack item must be an execution request of the tx request.")
)

// Verification keys (V)
var (
	ErrVerificationKeyMembership = newCode(KindVerificationKey, 1, "VerificationKeyMembership", "verification key is not a member of the key tree.")
	ErrVerificationKeyStage      = newCode(KindVerificationKey, 2, "VerificationKeyStage", "verification key belongs to an unexpected stage.")
	ErrProofBinding              = newCode(KindVerificationKey, 3, "ProofBinding", "proof is not bound to the presented public inputs.")
)

// Malformed input (M)
var (
	ErrArrayNotPadded      = newCode(KindMalformedInput, 1, "ArrayNotPadded", "occupied slot after an empty one.")
	ErrMissingTxNullifier  = newCode(KindMalformedInput, 2, "MissingTxNullifier", "first nullifier is not the tx request hash.")
	ErrNullifiedHashLength = newCode(KindMalformedInput, 3, "NullifiedHashLength", "nullified note hashes differ in length from the nullifiers.")
	ErrZeroNullifier       = newCode(KindMalformedInput, 4, "ZeroNullifier", "nullifier value is zero.")
	ErrWitnessShape        = newCode(KindMalformedInput, 5, "WitnessShape", "witness has an unexpected shape.")
)

// Codes lists every code, used to look them up by identifier.
var Codes = []*Code{
	ErrTxRequestContractAddress, ErrTxRequestFunctionData, ErrTxRequestArgsHash, ErrTxRequestSignature, ErrTxRequestContext,
	ErrDelegateCall, ErrStaticCall, ErrStaticCallStateChange, ErrConstructorNotFirst, ErrInternalCall, ErrNonPrivateFunction,
	ErrDeployedAddress, ErrZeroStorageAddress, ErrContractTreeRoot, ErrStorageAddress, ErrDeploymentPortal, ErrContractAddressZero, ErrConstructorVKHash,
	ErrReadRequestRoot, ErrReadRequestWitnessLength, ErrHistoricRootMembership,
	ErrTransientRead, ErrTransientNullifier, ErrNoteHashSquashed, ErrNullifierHintLength,
	ErrArrayFull,
	ErrLowLeafBracket, ErrLowLeafMembership, ErrLeafSlotNotEmpty, ErrLowLeafWitnesses, ErrTreeFull,
	ErrSnapshotChaining, ErrSubtreeNotEmpty, ErrSubtreeAlignment, ErrHistoricAppend, ErrRollupHeight, ErrRollupType,
	ErrConstants, ErrChainID, ErrVersion, ErrHistoricRoots,
	ErrCallStackPreimage, ErrCallStackPop, ErrCallStackEmpty, ErrCallStackPending, ErrCallContext, ErrFirstCallRequest,
	ErrVerificationKeyMembership, ErrVerificationKeyStage, ErrProofBinding,
	ErrArrayNotPadded, ErrMissingTxNullifier, ErrNullifiedHashLength, ErrZeroNullifier, ErrWitnessShape,
}

// Lookup returns the code with the given identifier (e.g. "N1").
func Lookup(id string) (*Code, bool) {
	for _, c := range Codes {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}
