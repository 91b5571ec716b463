package circuits

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/array"
	"github.com/vocdoni/private-rollup/oracle"
	"github.com/vocdoni/private-rollup/tree/merkle"
	"github.com/vocdoni/private-rollup/utils"
)

var leafHasher = utils.Poseidon2Hasher(abis.GeneratorNullifierLeaf)

// LowLeafCircuit proves one insertion into the indexed nullifier tree: the
// low leaf is a member of OldRoot and brackets Value, the slot at NewIndex
// is empty once the low leaf points to Value, and NewRoot is the tree with
// the new leaf in that slot.
type LowLeafCircuit struct {
	OldRoot  frontend.Variable `gnark:",public"`
	NewRoot  frontend.Variable `gnark:",public"`
	Value    frontend.Variable `gnark:",public"`
	NewIndex frontend.Variable `gnark:",public"`

	LowValue     frontend.Variable
	LowNextIndex frontend.Variable
	LowNextValue frontend.Variable
	LowIndex     frontend.Variable
	LowPath      []frontend.Variable
	NewLeafPath  []frontend.Variable
}

func (c *LowLeafCircuit) Define(api frontend.API) error {
	// low leaf membership
	low, err := leafHasher(api, c.LowValue, c.LowNextIndex, c.LowNextValue)
	if err != nil {
		return err
	}
	if err := CheckMembership(api, nodeHasher, c.OldRoot, low, c.LowIndex, c.LowPath); err != nil {
		return err
	}
	// low.value < value && (low.next_value == 0 || value < low.next_value)
	api.AssertIsEqual(utils.IsLess(api, c.LowValue, c.Value), 1)
	isLast := api.IsZero(c.LowNextValue)
	api.AssertIsEqual(api.Or(isLast, utils.IsLess(api, c.Value, c.LowNextValue)), 1)
	// point the low leaf to the new one
	updated, err := leafHasher(api, c.LowValue, c.NewIndex, c.Value)
	if err != nil {
		return err
	}
	mid, err := RootFromPath(api, nodeHasher, updated, c.LowIndex, c.LowPath)
	if err != nil {
		return err
	}
	// the receiving slot must be empty
	if err := CheckMembership(api, nodeHasher, mid, 0, c.NewIndex, c.NewLeafPath); err != nil {
		return err
	}
	leaf, err := leafHasher(api, c.Value, c.LowNextIndex, c.LowNextValue)
	if err != nil {
		return err
	}
	return CheckMembership(api, nodeHasher, c.NewRoot, leaf, c.NewIndex, c.NewLeafPath)
}

// NewLowLeafCircuit returns the empty shape for a tree of depth levels.
func NewLowLeafCircuit(depth int) *LowLeafCircuit {
	return &LowLeafCircuit{
		LowPath:     make([]frontend.Variable, depth),
		NewLeafPath: make([]frontend.Variable, depth),
	}
}

// LowLeafClaims replays the insertion of values into the tree described by
// start, one claim per occupied value. Empty slots consume a leaf index and
// produce no claim. It expects witnesses already accepted by
// indexed.VerifyInsert.
func LowLeafClaims(depth int, start abis.Snapshot, values []array.Slot[fr.Element], witnesses []abis.LowLeafWitness) ([]oracle.Claim, error) {
	var claims []oracle.Claim
	root, next := start.Root, uint64(start.NextAvailableLeafIndex)
	w := 0
	for _, v := range values {
		if !v.Occupied {
			next++
			continue
		}
		if w >= len(witnesses) {
			return nil, fmt.Errorf("missing low leaf witness for value %d", w)
		}
		lw := witnesses[w]
		w++
		leaf := abis.NullifierLeafPreimage{Value: v.Value, NextIndex: lw.LowLeaf.NextIndex, NextValue: lw.LowLeaf.NextValue}
		newRoot := merkle.RootFromPath(leaf.Hash(), next, lw.NewLeafPath)
		claims = append(claims, oracle.Claim{
			Key:     fmt.Sprintf("lowleaf/%d", depth),
			Circuit: NewLowLeafCircuit(depth),
			Assignment: &LowLeafCircuit{
				OldRoot:      utils.BigInt(root),
				NewRoot:      utils.BigInt(newRoot),
				Value:        utils.BigInt(v.Value),
				NewIndex:     next,
				LowValue:     utils.BigInt(lw.LowLeaf.Value),
				LowNextIndex: lw.LowLeaf.NextIndex,
				LowNextValue: utils.BigInt(lw.LowLeaf.NextValue),
				LowIndex:     lw.LowIndex,
				LowPath:      variables(lw.LowPath),
				NewLeafPath:  variables(lw.NewLeafPath),
			},
		})
		root = newRoot
		next++
	}
	return claims, nil
}
