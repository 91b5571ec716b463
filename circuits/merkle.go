// Package circuits holds the constraint systems behind the membership
// claims the kernel and rollup stages hand to the proof oracle. Every tree
// of the rollup hashes its nodes with the tagged Poseidon2 chain, so the
// gadgets here recompute roots exactly as tree/merkle does natively.
package circuits

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/oracle"
	"github.com/vocdoni/private-rollup/utils"
)

var nodeHasher = utils.Poseidon2Hasher(abis.GeneratorMerkleNode)

// parentNode hashes node with its sibling, ordered by the path bit:
//
//	l, r = bit == 1 ? sibling, node : node, sibling
func parentNode(api frontend.API, hFn utils.Hasher, bit, node, sibling frontend.Variable) (frontend.Variable, error) {
	l, r := api.Select(bit, sibling, node), api.Select(bit, node, sibling)
	return hFn(api, l, r)
}

// RootFromPath recomputes the root above leaf at index given its sibling
// path bottom-up. The index is decomposed into len(path) bits, so indexes
// beyond the tree capacity are unsatisfiable.
func RootFromPath(api frontend.API, hFn utils.Hasher, leaf, index frontend.Variable, path []frontend.Variable) (frontend.Variable, error) {
	bits := api.ToBinary(index, len(path))
	node := leaf
	for i, sibling := range path {
		var err error
		if node, err = parentNode(api, hFn, bits[i], node, sibling); err != nil {
			return 0, err
		}
	}
	return node, nil
}

// CheckMembership asserts that leaf sits at index under root.
func CheckMembership(api frontend.API, hFn utils.Hasher, root, leaf, index frontend.Variable, path []frontend.Variable) error {
	computed, err := RootFromPath(api, hFn, leaf, index, path)
	if err != nil {
		return err
	}
	api.AssertIsEqual(computed, root)
	return nil
}

// MembershipCircuit proves that Leaf sits at Index of the tree with Root.
type MembershipCircuit struct {
	Root  frontend.Variable `gnark:",public"`
	Leaf  frontend.Variable `gnark:",public"`
	Index frontend.Variable
	Path  []frontend.Variable
}

func (c *MembershipCircuit) Define(api frontend.API) error {
	return CheckMembership(api, nodeHasher, c.Root, c.Leaf, c.Index, c.Path)
}

// NewMembershipCircuit returns the empty shape for paths of depth levels.
func NewMembershipCircuit(depth int) *MembershipCircuit {
	return &MembershipCircuit{Path: make([]frontend.Variable, depth)}
}

// MembershipClaim binds a native membership witness to the circuit of its
// depth.
func MembershipClaim(root, leaf fr.Element, w abis.MembershipWitness) oracle.Claim {
	assignment := &MembershipCircuit{
		Root:  utils.BigInt(root),
		Leaf:  utils.BigInt(leaf),
		Index: w.LeafIndex,
		Path:  variables(w.SiblingPath),
	}
	return oracle.Claim{
		Key:        fmt.Sprintf("membership/%d", len(w.SiblingPath)),
		Circuit:    NewMembershipCircuit(len(w.SiblingPath)),
		Assignment: assignment,
	}
}

// EmptySlotClaim proves that the slot at index holds the zero leaf, which is
// how a subtree insertion and a historic root append show the target is
// free.
func EmptySlotClaim(root fr.Element, index uint64, path []fr.Element) oracle.Claim {
	return MembershipClaim(root, fr.Element{}, abis.MembershipWitness{LeafIndex: index, SiblingPath: path})
}

func variables(elems []fr.Element) []frontend.Variable {
	vars := make([]frontend.Variable, len(elems))
	for i := range elems {
		vars[i] = utils.BigInt(elems[i])
	}
	return vars
}
