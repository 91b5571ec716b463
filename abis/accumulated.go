package abis

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/private-rollup/array"
	"github.com/vocdoni/private-rollup/config"
	"github.com/vocdoni/private-rollup/hash/calldata"
)

// ReadRequest is a siloed transient read and the witness it came with.
type ReadRequest struct {
	Value   fr.Element
	Witness ReadRequestMembershipWitness
}

// Nullifier is a siloed nullifier and the siloed note hash it consumes when
// transient, EmptyNullifiedNoteHash otherwise.
type Nullifier struct {
	Value             fr.Element
	NullifiedNoteHash fr.Element
}

// IsTransient reports whether the nullifier consumes a note hash created in
// the same transaction.
func (n Nullifier) IsTransient() bool {
	return !n.NullifiedNoteHash.Equal(&EmptyNullifiedNoteHash) && !n.NullifiedNoteHash.IsZero()
}

// NewContractData is a contract deployed by a transaction.
type NewContractData struct {
	ContractAddress       fr.Element
	PortalContractAddress common.Address
	FunctionTreeRoot      fr.Element
}

// Hash is the contract tree leaf.
func (d NewContractData) Hash() fr.Element {
	return ContractLeaf(d.ContractAddress, d.PortalContractAddress, d.FunctionTreeRoot)
}

// AggregationObject stands for the recursive proof accumulator. It is
// passed through untouched, proof aggregation belongs to the prover.
type AggregationObject struct {
	P0, P1 Point
}

func (a AggregationObject) fields() []fr.Element {
	return []fr.Element{a.P0.X, a.P0.Y, a.P1.X, a.P1.Y}
}

// AccumulatedData is the running ledger of one transaction.
type AccumulatedData struct {
	AggregationObject AggregationObject

	ReadRequests     array.Array[ReadRequest]
	NewNoteHashes    array.Array[fr.Element]
	NewNullifiers    array.Array[Nullifier]
	PrivateCallStack array.Array[fr.Element]
	PublicCallStack  array.Array[fr.Element]
	NewL2ToL1Msgs    array.Array[fr.Element]
	NewContracts     array.Array[NewContractData]

	EncryptedLogsHash             calldata.Digest
	UnencryptedLogsHash           calldata.Digest
	EncryptedLogPreimagesLength   uint64
	UnencryptedLogPreimagesLength uint64
}

// NewAccumulatedData returns an empty ledger with per tx capacities.
func NewAccumulatedData(cfg *config.Config) AccumulatedData {
	return AccumulatedData{
		ReadRequests:     array.New[ReadRequest](cfg.MaxReadRequestsPerTx),
		NewNoteHashes:    array.New[fr.Element](cfg.MaxNewNoteHashesPerTx),
		NewNullifiers:    array.New[Nullifier](cfg.MaxNewNullifiersPerTx),
		PrivateCallStack: array.New[fr.Element](cfg.MaxPrivateCallStackPerTx),
		PublicCallStack:  array.New[fr.Element](cfg.MaxPublicCallStackPerTx),
		NewL2ToL1Msgs:    array.New[fr.Element](cfg.MaxNewL2ToL1MsgsPerTx),
		NewContracts:     array.New[NewContractData](cfg.MaxNewContractsPerTx),
	}
}

// Clone returns a copy sharing no array storage with d.
func (d AccumulatedData) Clone() AccumulatedData {
	c := d
	c.ReadRequests = d.ReadRequests.Clone()
	c.NewNoteHashes = d.NewNoteHashes.Clone()
	c.NewNullifiers = d.NewNullifiers.Clone()
	c.PrivateCallStack = d.PrivateCallStack.Clone()
	c.PublicCallStack = d.PublicCallStack.Clone()
	c.NewL2ToL1Msgs = d.NewL2ToL1Msgs.Clone()
	c.NewContracts = d.NewContracts.Clone()
	return c
}

// CheckShape verifies that every array has the capacity cfg expects and is
// padded on the right.
func (d *AccumulatedData) CheckShape(cfg *config.Config) error {
	type shaped interface {
		Cap() int
		Validate() error
	}
	for _, a := range []struct {
		name string
		arr  shaped
		cap  int
	}{
		{"read requests", &d.ReadRequests, cfg.MaxReadRequestsPerTx},
		{"note hashes", &d.NewNoteHashes, cfg.MaxNewNoteHashesPerTx},
		{"nullifiers", &d.NewNullifiers, cfg.MaxNewNullifiersPerTx},
		{"private call stack", &d.PrivateCallStack, cfg.MaxPrivateCallStackPerTx},
		{"public call stack", &d.PublicCallStack, cfg.MaxPublicCallStackPerTx},
		{"l2 to l1 messages", &d.NewL2ToL1Msgs, cfg.MaxNewL2ToL1MsgsPerTx},
		{"contracts", &d.NewContracts, cfg.MaxNewContractsPerTx},
	} {
		if a.arr.Cap() != a.cap {
			return fmt.Errorf("%s: capacity %d, expected %d", a.name, a.arr.Cap(), a.cap)
		}
		if err := a.arr.Validate(); err != nil {
			return fmt.Errorf("%s: %w", a.name, err)
		}
	}
	return nil
}

func (d AccumulatedData) write(w *fieldWriter) {
	w.add(d.AggregationObject.fields()...)
	writeArray(w, d.ReadRequests, func(w *fieldWriter, r ReadRequest) {
		w.add(r.Value)
		w.bool(r.Witness.IsTransient)
		w.u64(uint64(r.Witness.HintToNoteHash))
	})
	writeArray(w, d.NewNoteHashes, writeField)
	writeArray(w, d.NewNullifiers, func(w *fieldWriter, n Nullifier) {
		w.add(n.Value, n.NullifiedNoteHash)
	})
	writeArray(w, d.PrivateCallStack, writeField)
	writeArray(w, d.PublicCallStack, writeField)
	writeArray(w, d.NewL2ToL1Msgs, writeField)
	writeArray(w, d.NewContracts, func(w *fieldWriter, c NewContractData) {
		w.add(c.ContractAddress, c.FunctionTreeRoot)
		w.address(c.PortalContractAddress)
	})
	w.digest(d.EncryptedLogsHash)
	w.digest(d.UnencryptedLogsHash)
	w.u64(d.EncryptedLogPreimagesLength)
	w.u64(d.UnencryptedLogPreimagesLength)
}
