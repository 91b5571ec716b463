package poseidon2

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/permutation/poseidon2"
)

// HashGnark is the in-circuit counterpart of Hash: the tag is absorbed as a
// constant first limb followed by every limb in order.
func HashGnark(api frontend.API, tag Tag, limbs ...frontend.Variable) (frontend.Variable, error) {
	// width-2 Poseidon-2 permutation (t=2, rF=6, rP=50)
	perm, err := poseidon2.NewPoseidon2FromParameters(api, 2, 6, 50)
	if err != nil {
		return 0, err
	}

	cv := frontend.Variable(0) // CV₀ := 0
	for _, m := range append([]frontend.Variable{uint64(tag)}, limbs...) {
		state := []frontend.Variable{cv, m} // absorb one limb
		if err := perm.Permutation(state); err != nil {
			return 0, err
		}
		cv = api.Add(state[1], m) // CVᵢ₊₁ = S₁ + mᵢ
	}
	return cv, nil
}
