package kernel

import (
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/config"
)

// Empty returns the output of a transaction with no effects, used to pad
// blocks to a full number of transactions. Its constants must still be
// accepted by the base rollup consuming it.
func Empty(cfg *config.Config, constants abis.CombinedConstantData) *Output {
	return &Output{
		Stage: abis.StageEmptyKernel,
		PublicInputs: abis.KernelPublicInputs{
			End:       abis.NewAccumulatedData(cfg),
			Constants: constants,
			IsPrivate: true,
		},
	}
}
