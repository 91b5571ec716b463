package failure

// Kind classifies a failure. Kinds implement error so that callers can test
// a failure list by class: errors.Is(err, failure.KindNonMembership).
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindUserIntent: the declared tx request disagrees with the call
	// being executed.
	KindUserIntent
	// KindUnsupportedOperation: delegate calls, static call state changes,
	// constructors outside the first call.
	KindUnsupportedOperation
	// KindContractAddress: declared vs derived address, or failed
	// function/contract tree membership.
	KindContractAddress
	// KindReadRequest: a read request does not reconcile with the historic
	// root, or requests and witnesses disagree in length.
	KindReadRequest
	// KindTransientMatch: a transient read or nullifier has no matching
	// hinted note hash.
	KindTransientMatch
	// KindArrayCapacity: push or insert beyond a fixed capacity.
	KindArrayCapacity
	// KindNonMembership: invalid low leaf bracket or membership.
	KindNonMembership
	// KindTreeChaining: snapshot mismatch between stages or insertion paths
	// that do not reconcile with the start snapshot.
	KindTreeChaining
	// KindConstantData: constants differ between merged halves.
	KindConstantData
	// KindCallStack: call stack hash does not reconcile with its preimage.
	KindCallStack
	// KindVerificationKey: verification key not in the tree, unexpected
	// stage or proof not bound to the presented public inputs.
	KindVerificationKey
	// KindMalformedInput: structurally invalid inputs.
	KindMalformedInput
)

var kindNames = map[Kind]struct {
	prefix, name string
}{
	KindUnknown:              {"?", "unknown"},
	KindUserIntent:           {"U", "user intent mismatch"},
	KindUnsupportedOperation: {"O", "unsupported operation"},
	KindContractAddress:      {"C", "contract address mismatch"},
	KindReadRequest:          {"R", "read request root mismatch"},
	KindTransientMatch:       {"T", "transient match failure"},
	KindArrayCapacity:        {"A", "array capacity exceeded"},
	KindNonMembership:        {"N", "tree non-membership violation"},
	KindTreeChaining:         {"X", "tree chaining violation"},
	KindConstantData:         {"K", "constant data mismatch"},
	KindCallStack:            {"S", "call stack mismatch"},
	KindVerificationKey:      {"V", "verification key mismatch"},
	KindMalformedInput:       {"M", "malformed input"},
}

// Prefix returns the one-letter code prefix of the kind.
func (k Kind) Prefix() string {
	if n, ok := kindNames[k]; ok {
		return n.prefix
	}
	return kindNames[KindUnknown].prefix
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n.name
	}
	return kindNames[KindUnknown].name
}

func (k Kind) Error() string { return k.String() }
