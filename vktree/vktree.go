// Package vktree commits to the verification keys of every proving stage
// with an arbo tree keyed by stage. Kernels and rollups check that the key
// a previous proof claims to verify against belongs to the tree whose root
// is fixed in the pipeline context.
package vktree

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
	arbotree "github.com/vocdoni/arbo"
	"github.com/vocdoni/private-rollup/abis"
	"go.vocdoni.io/dvote/db"
)

// valueLen is the byte length of leaf values.
const valueLen = 32

// ErrNotMember is returned when a witness does not reconcile with the root.
var ErrNotMember = errors.New("vktree: verification key not in tree")

// HashKey returns the leaf value committing to vk:
//
//	poseidon(stage, poseidon_bytes(data))
func HashKey(vk abis.VerificationKey) (*big.Int, error) {
	data, err := poseidon.HashBytes(vk.Data)
	if err != nil {
		return nil, fmt.Errorf("hash key data: %w", err)
	}
	return poseidon.Hash([]*big.Int{big.NewInt(int64(vk.Stage)), data})
}

// Tree is the verification key tree.
type Tree struct {
	tree   *arbotree.Tree
	keyLen int
	keys   map[abis.Stage]abis.VerificationKey
}

// KeyLen returns the byte length of the leaf keys of a tree of the given
// levels. Arbo rejects keys longer than the path they select.
func KeyLen(levels int) int {
	return (levels + 7) / 8
}

// Build returns a tree over database holding keys. levels bounds the depth
// of the tree.
func Build(database db.Database, levels int, keys ...abis.VerificationKey) (*Tree, error) {
	tree, err := arbotree.NewTree(arbotree.Config{
		Database:     database,
		MaxLevels:    levels,
		HashFunction: arbotree.HashFunctionPoseidon,
	})
	if err != nil {
		return nil, err
	}
	t := &Tree{tree: tree, keyLen: KeyLen(levels), keys: map[abis.Stage]abis.VerificationKey{}}
	for _, vk := range keys {
		if t.keyLen < 8 && uint64(vk.Stage) >= 1<<(8*t.keyLen) {
			return nil, fmt.Errorf("stage %s does not fit a %d levels tree", vk.Stage, levels)
		}
		if _, ok := t.keys[vk.Stage]; ok {
			return nil, fmt.Errorf("duplicated key for stage %s", vk.Stage)
		}
		value, err := HashKey(vk)
		if err != nil {
			return nil, err
		}
		if err := tree.Add(leafKey(t.keyLen, vk.Stage), arbotree.BigIntToBytes(valueLen, value)); err != nil {
			return nil, fmt.Errorf("add %s key: %w", vk.Stage, err)
		}
		t.keys[vk.Stage] = vk
	}
	return t, nil
}

func leafKey(keyLen int, s abis.Stage) []byte {
	return arbotree.BigIntToBytes(keyLen, big.NewInt(int64(s)))
}

// Root returns the tree root.
func (t *Tree) Root() ([]byte, error) {
	return t.tree.Root()
}

// Witness returns the key of stage with its membership proof.
func (t *Tree) Witness(stage abis.Stage) (abis.VerificationKeyWitness, error) {
	vk, ok := t.keys[stage]
	if !ok {
		return abis.VerificationKeyWitness{}, fmt.Errorf("no key for stage %s", stage)
	}
	_, _, siblings, exist, err := t.tree.GenProof(leafKey(t.keyLen, stage))
	if err != nil {
		return abis.VerificationKeyWitness{}, err
	}
	if !exist {
		return abis.VerificationKeyWitness{}, fmt.Errorf("key for stage %s not found", stage)
	}
	return abis.VerificationKeyWitness{Key: vk, Index: uint64(stage), Siblings: siblings}, nil
}

// Verify checks that w proves its key under root, a tree of the given
// levels, at the index of the stage the key belongs to.
func Verify(root []byte, levels int, w abis.VerificationKeyWitness) error {
	if w.Index != uint64(w.Key.Stage) {
		return fmt.Errorf("%w: key of stage %s at index %d", ErrNotMember, w.Key.Stage, w.Index)
	}
	value, err := HashKey(w.Key)
	if err != nil {
		return err
	}
	ok, err := arbotree.CheckProof(arbotree.HashFunctionPoseidon, leafKey(KeyLen(levels), w.Key.Stage),
		arbotree.BigIntToBytes(valueLen, value), root, w.Siblings)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotMember, err)
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}
