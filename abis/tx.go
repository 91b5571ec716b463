package abis

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/private-rollup/utils"
)

// ErrSigner is returned when a signature does not come from the signer the
// request names.
var ErrSigner = errors.New("abis: tx request signer mismatch")

// Point is an affine curve point, used for deployer public keys.
type Point struct {
	X, Y fr.Element
}

// FunctionData identifies the function being called.
type FunctionData struct {
	Selector      uint32
	IsInternal    bool
	IsPrivate     bool
	IsConstructor bool
}

func (f FunctionData) Hash() fr.Element {
	var w fieldWriter
	w.u64(uint64(f.Selector))
	w.bool(f.IsInternal)
	w.bool(f.IsPrivate)
	w.bool(f.IsConstructor)
	return w.hash(GeneratorFunctionData)
}

// ContractDeploymentData describes the contract deployed by a deployment tx.
type ContractDeploymentData struct {
	DeployerPublicKey     Point
	ConstructorVKHash     fr.Element
	FunctionTreeRoot      fr.Element
	ContractAddressSalt   fr.Element
	PortalContractAddress common.Address
}

func (d ContractDeploymentData) Hash() fr.Element {
	var w fieldWriter
	w.add(d.DeployerPublicKey.X, d.DeployerPublicKey.Y, d.ConstructorVKHash, d.FunctionTreeRoot, d.ContractAddressSalt)
	w.address(d.PortalContractAddress)
	return w.hash(GeneratorContractDeploymentData)
}

// TxContext holds the transaction-wide flags and the chain it targets.
type TxContext struct {
	IsFeePaymentTx         bool
	IsRebatePaymentTx      bool
	IsContractDeploymentTx bool
	ContractDeploymentData ContractDeploymentData
	ChainID                fr.Element
	Version                fr.Element
}

func (t TxContext) Hash() fr.Element {
	var w fieldWriter
	w.bool(t.IsFeePaymentTx)
	w.bool(t.IsRebatePaymentTx)
	w.bool(t.IsContractDeploymentTx)
	w.add(t.ContractDeploymentData.Hash(), t.ChainID, t.Version)
	return w.hash(GeneratorTxContext)
}

// Equal reports whether both contexts are identical.
func (t TxContext) Equal(o TxContext) bool {
	a, b := t.Hash(), o.Hash()
	return a.Equal(&b)
}

// TxRequest is the user intent: the first function to call, on which
// contract and with which arguments, authorized by Signer.
type TxRequest struct {
	Origin       fr.Element
	FunctionData FunctionData
	ArgsHash     fr.Element
	TxContext    TxContext
	Signer       common.Address
}

// Hash is the transaction hash, pushed as the first nullifier of the
// transaction for replay protection. It commits to the signer.
func (r TxRequest) Hash() fr.Element {
	return H(GeneratorTxRequest, r.Origin, r.FunctionData.Hash(), r.ArgsHash, r.TxContext.Hash(),
		utils.FromAddress(r.Signer))
}

// SignedTxRequest is a tx request signed by an L1 style secp256k1 key.
type SignedTxRequest struct {
	TxRequest TxRequest
	Signature []byte
}

// SigningHash is the digest signed by the user.
func (s *SignedTxRequest) SigningHash() []byte {
	h := H(GeneratorSignature, s.TxRequest.Hash())
	b := h.Bytes()
	return b[:]
}

// Sign signs the request with key. A request without signer is assigned
// the address of key; a request naming another signer is rejected.
func (s *SignedTxRequest) Sign(key *ecdsa.PrivateKey) error {
	addr := crypto.PubkeyToAddress(key.PublicKey)
	switch s.TxRequest.Signer {
	case common.Address{}:
		s.TxRequest.Signer = addr
	case addr:
	default:
		return fmt.Errorf("%w: key %s, request %s", ErrSigner, addr.Hex(), s.TxRequest.Signer.Hex())
	}
	sig, err := crypto.Sign(s.SigningHash(), key)
	if err != nil {
		return fmt.Errorf("sign tx request: %w", err)
	}
	s.Signature = sig
	return nil
}

// VerifySignature recovers the signer of the request and compares it with
// the one the request commits to.
func (s *SignedTxRequest) VerifySignature() error {
	if len(s.Signature) != crypto.SignatureLength {
		return fmt.Errorf("invalid signature length %d", len(s.Signature))
	}
	pub, err := crypto.SigToPub(s.SigningHash(), s.Signature)
	if err != nil {
		return fmt.Errorf("recover signer: %w", err)
	}
	if got := crypto.PubkeyToAddress(*pub); got != s.TxRequest.Signer {
		return fmt.Errorf("%w: recovered %s, request %s", ErrSigner, got.Hex(), s.TxRequest.Signer.Hex())
	}
	return nil
}

// CallContext describes who called a function and on which storage.
type CallContext struct {
	MsgSender              fr.Element
	StorageContractAddress fr.Element
	PortalContractAddress  common.Address
	IsDelegateCall         bool
	IsStaticCall           bool
	IsContractDeployment   bool
}

func (c CallContext) Hash() fr.Element {
	var w fieldWriter
	w.add(c.MsgSender, c.StorageContractAddress)
	w.address(c.PortalContractAddress)
	w.bool(c.IsDelegateCall)
	w.bool(c.IsStaticCall)
	w.bool(c.IsContractDeployment)
	return w.hash(GeneratorCallContext)
}

// HistoricTreeRoots are the tree roots a transaction executes against.
type HistoricTreeRoots struct {
	NoteHashTreeRoot       fr.Element
	NullifierTreeRoot      fr.Element
	ContractTreeRoot       fr.Element
	L1ToL2MessagesTreeRoot fr.Element
}

func (h HistoricTreeRoots) fields() []fr.Element {
	return []fr.Element{h.NoteHashTreeRoot, h.NullifierTreeRoot, h.ContractTreeRoot, h.L1ToL2MessagesTreeRoot}
}

// Equal reports whether all roots are equal.
func (h HistoricTreeRoots) Equal(o HistoricTreeRoots) bool {
	return h.NoteHashTreeRoot.Equal(&o.NoteHashTreeRoot) &&
		h.NullifierTreeRoot.Equal(&o.NullifierTreeRoot) &&
		h.ContractTreeRoot.Equal(&o.ContractTreeRoot) &&
		h.L1ToL2MessagesTreeRoot.Equal(&o.L1ToL2MessagesTreeRoot)
}
