package utils

import (
	"github.com/consensys/gnark/frontend"
	"github.com/vocdoni/private-rollup/hash/bn254/poseidon2"
)

type Hasher func(frontend.API, ...frontend.Variable) (frontend.Variable, error)

// Poseidon2Hasher returns the in-circuit H bound to the domain tag provided,
// the gadget behind every Merkle path recomputed inside a circuit.
func Poseidon2Hasher(tag poseidon2.Tag) Hasher {
	return func(api frontend.API, data ...frontend.Variable) (frontend.Variable, error) {
		return poseidon2.HashGnark(api, tag, data...)
	}
}
