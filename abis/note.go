package abis

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/private-rollup/utils"
)

// NoteKind enumerates the supported note variants.
type NoteKind uint8

const (
	NoteKindValue NoteKind = iota + 1
	NoteKindAddress
	NoteKindField
)

func (k NoteKind) String() string {
	switch k {
	case NoteKindValue:
		return "value"
	case NoteKindAddress:
		return "address"
	case NoteKindField:
		return "field"
	}
	return fmt.Sprintf("note-kind(%d)", uint8(k))
}

// Note is a closed union: only the types declared in this file implement it.
type Note interface {
	Kind() NoteKind
	sealed()
}

// ValueNote is an amount owned by an account.
type ValueNote struct {
	Value      uint64
	Owner      fr.Element
	Randomness fr.Element
}

// AddressNote stores an L1 address privately for its owner.
type AddressNote struct {
	Address    common.Address
	Owner      fr.Element
	Randomness fr.Element
}

// FieldNote is an ownerless single field value.
type FieldNote struct {
	Value fr.Element
}

func (ValueNote) Kind() NoteKind   { return NoteKindValue }
func (AddressNote) Kind() NoteKind { return NoteKindAddress }
func (FieldNote) Kind() NoteKind   { return NoteKindField }

func (ValueNote) sealed()   {}
func (AddressNote) sealed() {}
func (FieldNote) sealed()   {}

func notePreimage(n Note) ([]fr.Element, error) {
	switch n := n.(type) {
	case ValueNote:
		return []fr.Element{fr.NewElement(n.Value), n.Owner, n.Randomness}, nil
	case AddressNote:
		return []fr.Element{utils.FromAddress(n.Address), n.Owner, n.Randomness}, nil
	case FieldNote:
		return []fr.Element{n.Value}, nil
	case nil:
		return nil, fmt.Errorf("nil note")
	}
	return nil, fmt.Errorf("unsupported note %T", n)
}

// NoteHash is the raw (not yet siloed) note hash of n stored at slot.
func NoteHash(slot fr.Element, n Note) (fr.Element, error) {
	pre, err := notePreimage(n)
	if err != nil {
		return fr.Element{}, err
	}
	in := append([]fr.Element{fr.NewElement(uint64(n.Kind())), slot}, pre...)
	return H(GeneratorNoteHash, in...), nil
}

// NoteNullifier is the raw nullifier consuming the note with the given
// hash. Owned notes need the owner's secret, field notes are nullified by
// their hash alone.
func NoteNullifier(n Note, noteHash, secret fr.Element) (fr.Element, error) {
	switch n.(type) {
	case ValueNote, AddressNote:
		if secret.IsZero() {
			return fr.Element{}, fmt.Errorf("%s note needs a nullifier secret", n.Kind())
		}
		return H(GeneratorNullifier, noteHash, secret), nil
	case FieldNote:
		return H(GeneratorNullifier, noteHash), nil
	case nil:
		return fr.Element{}, fmt.Errorf("nil note")
	}
	return fr.Element{}, fmt.Errorf("unsupported note %T", n)
}
