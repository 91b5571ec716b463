// Package sequencer builds blocks: it pads the ordered transactions with
// empty kernels, generates every rollup witness against its world state,
// runs the base and merge levels in parallel through the proof oracle, and
// only adopts the new state once the root rollup proves it.
package sequencer

import (
	"context"
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/rs/zerolog"
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/config"
	"github.com/vocdoni/private-rollup/kernel"
	"github.com/vocdoni/private-rollup/oracle"
	"github.com/vocdoni/private-rollup/rollup"
	"golang.org/x/sync/errgroup"
)

// Block is a proven block.
type Block struct {
	Number       uint64
	PublicInputs abis.RootRollupPublicInputs
	Proof        abis.Proof
}

// Sequencer owns the world state of one chain.
type Sequencer struct {
	ctx     *config.Context
	orc     oracle.Oracle
	vks     kernel.VerificationKeys
	chainID fr.Element
	version fr.Element
	log     zerolog.Logger

	mu     sync.Mutex
	state  *WorldState
	number uint64
}

// New returns a sequencer building blocks of chainID and version on top of
// state.
func New(ctx *config.Context, orc oracle.Oracle, vks kernel.VerificationKeys, state *WorldState,
	chainID, version fr.Element,
) *Sequencer {
	return &Sequencer{
		ctx:     ctx,
		orc:     orc,
		vks:     vks,
		chainID: chainID,
		version: version,
		log:     ctx.Logger("sequencer"),
		state:   state,
	}
}

// State returns the current world state. It must not be mutated.
func (s *Sequencer) State() *WorldState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Roots returns the roots the next transactions should execute against.
func (s *Sequencer) Roots() abis.HistoricTreeRoots {
	return s.State().Roots()
}

// pad fills txs up to the block size with empty kernels. Both kernels of a
// base rollup must share their constants, so a padding kernel paired with a
// transaction copies the transaction's.
func (s *Sequencer) pad(txs []abis.PreviousKernelData) ([]abis.PreviousKernelData, error) {
	cfg := s.ctx.Config
	padded := make([]abis.PreviousKernelData, cfg.TxsPerBlock)
	copy(padded, txs)
	var empty *abis.PreviousKernelData
	for i := len(txs); i < len(padded); i++ {
		if i%2 == 1 && i == len(txs) {
			partner, err := kernel.Empty(cfg, txs[i-1].PublicInputs.Constants).Prove(s.orc, s.vks)
			if err != nil {
				return nil, fmt.Errorf("empty kernel %d: %w", i, err)
			}
			padded[i] = partner
			continue
		}
		if empty == nil {
			k, err := kernel.Empty(cfg, abis.CombinedConstantData{
				HistoricTreeRoots: s.state.Roots(),
				TxContext:         abis.TxContext{ChainID: s.chainID, Version: s.version},
			}).Prove(s.orc, s.vks)
			if err != nil {
				return nil, fmt.Errorf("empty kernel: %w", err)
			}
			empty = &k
		}
		padded[i] = *empty
	}
	return padded, nil
}

// BuildBlock proves a block holding txs, ordered kernel outputs, and the
// L1 to L2 messages. The world state is only updated, and committed, when
// the block is proven.
func (s *Sequencer) BuildBlock(ctx context.Context, txs []abis.PreviousKernelData, messages []fr.Element) (*Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.ctx.Config
	if len(txs) > cfg.TxsPerBlock {
		return nil, fmt.Errorf("%w: %d, block holds %d", ErrTooManyTxs, len(txs), cfg.TxsPerBlock)
	}

	padded, err := s.pad(txs)
	if err != nil {
		return nil, err
	}

	fork := s.state.Clone()
	constants := fork.Constants(s.chainID, s.version)
	// witnesses depend on the previous insertions, generate them in order
	bases := make([]*abis.BaseRollupInputs, len(padded)/2)
	for i := range bases {
		in, err := fork.BaseInputs([2]abis.PreviousKernelData{padded[2*i], padded[2*i+1]}, constants)
		if err != nil {
			return nil, fmt.Errorf("base rollup %d: %w", i, err)
		}
		bases[i] = in
	}

	level := make([]abis.PreviousRollupData, len(bases))
	g, gctx := errgroup.WithContext(ctx)
	for i, in := range bases {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := rollup.Base(s.ctx, in)
			if err != nil {
				return fmt.Errorf("base rollup %d: %w", i, err)
			}
			if level[i], err = out.Prove(s.orc, s.vks); err != nil {
				return fmt.Errorf("base rollup %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for len(level) > 2 {
		next := make([]abis.PreviousRollupData, len(level)/2)
		g, gctx := errgroup.WithContext(ctx)
		for i := range next {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				out, err := rollup.Merge(s.ctx, &abis.MergeRollupInputs{
					Rollups: [2]abis.PreviousRollupData{level[2*i], level[2*i+1]},
				})
				if err != nil {
					return fmt.Errorf("merge rollup %d: %w", i, err)
				}
				if next[i], err = out.Prove(s.orc, s.vks); err != nil {
					return fmt.Errorf("merge rollup %d: %w", i, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		level = next
	}

	rootIn, err := fork.RootInputs([2]abis.PreviousRollupData{level[0], level[1]}, messages)
	if err != nil {
		return nil, fmt.Errorf("root rollup: %w", err)
	}
	out, err := rollup.Root(s.ctx, rootIn)
	if err != nil {
		return nil, fmt.Errorf("root rollup: %w", err)
	}
	if err := fork.matches(&out.PublicInputs); err != nil {
		return nil, err
	}
	proof, err := out.Prove(s.orc)
	if err != nil {
		return nil, fmt.Errorf("root rollup: %w", err)
	}
	if err := fork.Commit(); err != nil {
		return nil, fmt.Errorf("commit state: %w", err)
	}
	s.state = fork
	s.number++

	s.log.Info().
		Uint64("block", s.number).
		Int("txs", len(txs)).
		Int("l1ToL2Messages", len(messages)).
		Str("noteHashRoot", out.PublicInputs.EndNoteHashTreeSnapshot.Root.String()).
		Msg("block built")
	return &Block{Number: s.number, PublicInputs: out.PublicInputs, Proof: proof}, nil
}

// matches checks the root rollup output describes the state.
func (w *WorldState) matches(pi *abis.RootRollupPublicInputs) error {
	for _, t := range []struct {
		name      string
		got, want abis.Snapshot
	}{
		{"note hash", pi.EndNoteHashTreeSnapshot, w.NoteHashes.Snapshot()},
		{"nullifier", pi.EndNullifierTreeSnapshot, w.Nullifiers.Snapshot()},
		{"contract", pi.EndContractTreeSnapshot, w.Contracts.Snapshot()},
		{"l1 to l2", pi.EndL1ToL2MessagesTreeSnapshot, w.L1ToL2Messages.Snapshot()},
		{"historic note hash roots", pi.EndHistoricNoteHashTreeRootsSnapshot, w.HistoricNoteHashRoots.Snapshot()},
		{"historic contract roots", pi.EndHistoricContractTreeRootsSnapshot, w.HistoricContractRoots.Snapshot()},
		{"historic l1 to l2 roots", pi.EndHistoricL1ToL2TreeRootsSnapshot, w.HistoricL1ToL2Roots.Snapshot()},
	} {
		if !t.got.Equal(t.want) {
			return fmt.Errorf("root rollup %s tree %s, state %s", t.name, t.got, t.want)
		}
	}
	return nil
}
