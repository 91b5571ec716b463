package sequencer

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/tree/merkle"
)

var (
	// ErrUnknownRoot is returned when a transaction executed against roots
	// the chain never had.
	ErrUnknownRoot = errors.New("sequencer: unknown historic root")
	// ErrTooManyTxs is returned when a block is given more transactions
	// than it can hold.
	ErrTooManyTxs = errors.New("sequencer: too many transactions")
)

// BaseInputs generates the witnesses of a base rollup over pair and
// applies its effects to the state. Nullifier witnesses are taken one at a
// time, each after the previous insertion, as the base rollup replays
// them. On error the state must be discarded.
func (w *WorldState) BaseInputs(pair [2]abis.PreviousKernelData, constants abis.ConstantRollupData) (*abis.BaseRollupInputs, error) {
	cfg := w.cfg
	in := &abis.BaseRollupInputs{
		Kernels:                    pair,
		StartNoteHashTreeSnapshot:  w.NoteHashes.Snapshot(),
		StartNullifierTreeSnapshot: w.Nullifiers.Snapshot(),
		StartContractTreeSnapshot:  w.Contracts.Snapshot(),
		Constants:                  constants,
	}

	var err error
	for i := range pair {
		roots := pair[i].PublicInputs.Constants.HistoricTreeRoots
		if in.HistoricNoteHashRootWitnesses[i], err = historicWitness(w.HistoricNoteHashRoots, "note hash", roots.NoteHashTreeRoot); err != nil {
			return nil, err
		}
		if in.HistoricContractRootWitnesses[i], err = historicWitness(w.HistoricContractRoots, "contract", roots.ContractTreeRoot); err != nil {
			return nil, err
		}
		if in.HistoricL1ToL2RootWitnesses[i], err = historicWitness(w.HistoricL1ToL2Roots, "l1 to l2", roots.L1ToL2MessagesTreeRoot); err != nil {
			return nil, err
		}
	}

	var noteHashes, contracts []fr.Element
	for i := range pair {
		end := &pair[i].PublicInputs.End
		noteHashes = append(noteHashes, end.NewNoteHashes.Padded()...)
		for _, s := range end.NewContracts.Slots() {
			var leaf fr.Element
			if s.Occupied {
				leaf = s.Value.Hash()
			}
			contracts = append(contracts, leaf)
		}
	}
	if in.NoteHashSubtreeSiblingPath, err = w.NoteHashes.SubtreeSiblingPath(cfg.NoteHashSubtreeHeight()); err != nil {
		return nil, fmt.Errorf("note hash subtree: %w", err)
	}
	if err := w.NoteHashes.InsertSubtree(cfg.NoteHashSubtreeHeight(), noteHashes); err != nil {
		return nil, fmt.Errorf("note hash subtree: %w", err)
	}
	if in.ContractSubtreeSiblingPath, err = w.Contracts.SubtreeSiblingPath(cfg.ContractSubtreeHeight()); err != nil {
		return nil, fmt.Errorf("contract subtree: %w", err)
	}
	if err := w.Contracts.InsertSubtree(cfg.ContractSubtreeHeight(), contracts); err != nil {
		return nil, fmt.Errorf("contract subtree: %w", err)
	}

	batch := w.Nullifiers.Batch()
	defer batch.Close()
	for i := range pair {
		for j, s := range pair[i].PublicInputs.End.NewNullifiers.Slots() {
			if !s.Occupied {
				if err := batch.Skip(); err != nil {
					return nil, fmt.Errorf("kernel %d nullifier %d: %w", i, j, err)
				}
				continue
			}
			lw, err := batch.Insert(s.Value.Value)
			if err != nil {
				return nil, fmt.Errorf("kernel %d nullifier %d: %w", i, j, err)
			}
			in.LowNullifierWitnesses = append(in.LowNullifierWitnesses, lw)
		}
	}
	return in, nil
}

// RootInputs generates the witnesses of the root rollup over rollups,
// inserting messages and appending the new roots to the historic trees. The
// state must already hold the effects of every base rollup of the block.
func (w *WorldState) RootInputs(rollups [2]abis.PreviousRollupData, messages []fr.Element) (*abis.RootRollupInputs, error) {
	cfg := w.cfg
	if len(messages) > cfg.L1ToL2MsgsPerRollup {
		return nil, fmt.Errorf("%d l1 to l2 messages, capacity %d", len(messages), cfg.L1ToL2MsgsPerRollup)
	}
	in := &abis.RootRollupInputs{
		Rollups:                         rollups,
		L1ToL2Messages:                  messages,
		StartL1ToL2MessagesTreeSnapshot: w.L1ToL2Messages.Snapshot(),
	}

	var err error
	if in.L1ToL2MessagesSubtreeSiblingPath, err = w.L1ToL2Messages.SubtreeSiblingPath(cfg.L1ToL2MsgSubtreeHeight()); err != nil {
		return nil, fmt.Errorf("l1 to l2 subtree: %w", err)
	}
	if err := w.L1ToL2Messages.InsertSubtree(cfg.L1ToL2MsgSubtreeHeight(), messages); err != nil {
		return nil, fmt.Errorf("l1 to l2 subtree: %w", err)
	}

	roots := w.Roots()
	for _, h := range []struct {
		path *[]fr.Element
		tree *merkle.Tree
		root fr.Element
	}{
		{&in.HistoricNoteHashRootsAppendPath, w.HistoricNoteHashRoots, roots.NoteHashTreeRoot},
		{&in.HistoricContractRootsAppendPath, w.HistoricContractRoots, roots.ContractTreeRoot},
		{&in.HistoricL1ToL2RootsAppendPath, w.HistoricL1ToL2Roots, roots.L1ToL2MessagesTreeRoot},
	} {
		if *h.path, err = h.tree.SiblingPath(h.tree.NextIndex()); err != nil {
			return nil, fmt.Errorf("historic append: %w", err)
		}
		if err := h.tree.Append(h.root); err != nil {
			return nil, fmt.Errorf("historic append: %w", err)
		}
	}
	return in, nil
}
