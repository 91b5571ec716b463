package sequencer

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/config"
	"github.com/vocdoni/private-rollup/tree/indexed"
	"github.com/vocdoni/private-rollup/tree/merkle"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	noteHashPrefix         = []byte("nh/")
	nullifierPrefix        = []byte("nf/")
	contractPrefix         = []byte("ct/")
	l1ToL2Prefix           = []byte("l1/")
	historicNoteHashPrefix = []byte("hnh/")
	historicContractPrefix = []byte("hct/")
	historicL1ToL2Prefix   = []byte("hl1/")
)

// WorldState holds every tree of the rollup. It is not safe for concurrent
// use: the sequencer works on a clone and swaps it in once a block is
// proven.
type WorldState struct {
	cfg *config.Config

	NoteHashes     *merkle.Tree
	Nullifiers     *indexed.Tree
	Contracts      *merkle.Tree
	L1ToL2Messages *merkle.Tree

	HistoricNoteHashRoots *merkle.Tree
	HistoricContractRoots *merkle.Tree
	HistoricL1ToL2Roots   *merkle.Tree
}

// NewWorldState returns an in-memory genesis state.
func NewWorldState(cfg *config.Config) (*WorldState, error) {
	w := &WorldState{cfg: cfg}
	var err error
	for _, t := range []struct {
		tree  **merkle.Tree
		depth int
	}{
		{&w.NoteHashes, cfg.NoteHashTreeHeight},
		{&w.Contracts, cfg.ContractTreeHeight},
		{&w.L1ToL2Messages, cfg.L1ToL2MsgTreeHeight},
		{&w.HistoricNoteHashRoots, cfg.HistoricRootsTreeHeight},
		{&w.HistoricContractRoots, cfg.HistoricRootsTreeHeight},
		{&w.HistoricL1ToL2Roots, cfg.HistoricRootsTreeHeight},
	} {
		if *t.tree, err = merkle.New(t.depth); err != nil {
			return nil, err
		}
	}
	if w.Nullifiers, err = indexed.New(cfg.NullifierTreeHeight); err != nil {
		return nil, err
	}
	return w, w.genesis()
}

// OpenWorldState loads the state persisted in database, one prefixed
// keyspace per tree, or initializes the genesis state.
func OpenWorldState(database db.Database, cfg *config.Config) (*WorldState, error) {
	w := &WorldState{cfg: cfg}
	var err error
	for _, t := range []struct {
		tree   **merkle.Tree
		depth  int
		prefix []byte
	}{
		{&w.NoteHashes, cfg.NoteHashTreeHeight, noteHashPrefix},
		{&w.Contracts, cfg.ContractTreeHeight, contractPrefix},
		{&w.L1ToL2Messages, cfg.L1ToL2MsgTreeHeight, l1ToL2Prefix},
		{&w.HistoricNoteHashRoots, cfg.HistoricRootsTreeHeight, historicNoteHashPrefix},
		{&w.HistoricContractRoots, cfg.HistoricRootsTreeHeight, historicContractPrefix},
		{&w.HistoricL1ToL2Roots, cfg.HistoricRootsTreeHeight, historicL1ToL2Prefix},
	} {
		if *t.tree, err = merkle.Open(prefixeddb.NewPrefixedDatabase(database, t.prefix), t.depth); err != nil {
			return nil, fmt.Errorf("open tree %s: %w", t.prefix, err)
		}
	}
	if w.Nullifiers, err = indexed.Open(prefixeddb.NewPrefixedDatabase(database, nullifierPrefix),
		cfg.NullifierTreeHeight); err != nil {
		return nil, fmt.Errorf("open nullifier tree: %w", err)
	}
	if w.HistoricNoteHashRoots.NextIndex() > 0 {
		return w, nil
	}
	if err := w.genesis(); err != nil {
		return nil, err
	}
	return w, w.Commit()
}

// genesis records the roots of the empty trees in the historic trees, so
// transactions can execute against the genesis state.
func (w *WorldState) genesis() error {
	roots := w.Roots()
	for _, h := range []struct {
		tree *merkle.Tree
		root fr.Element
	}{
		{w.HistoricNoteHashRoots, roots.NoteHashTreeRoot},
		{w.HistoricContractRoots, roots.ContractTreeRoot},
		{w.HistoricL1ToL2Roots, roots.L1ToL2MessagesTreeRoot},
	} {
		if err := h.tree.Append(h.root); err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
	}
	return nil
}

// Roots returns the current roots, the historic roots new transactions
// execute against.
func (w *WorldState) Roots() abis.HistoricTreeRoots {
	return abis.HistoricTreeRoots{
		NoteHashTreeRoot:       w.NoteHashes.Root(),
		NullifierTreeRoot:      w.Nullifiers.Snapshot().Root,
		ContractTreeRoot:       w.Contracts.Root(),
		L1ToL2MessagesTreeRoot: w.L1ToL2Messages.Root(),
	}
}

// Constants returns the constants of a block built on top of the state.
func (w *WorldState) Constants(chainID, version fr.Element) abis.ConstantRollupData {
	return abis.ConstantRollupData{
		StartHistoricNoteHashTreeRootsSnapshot: w.HistoricNoteHashRoots.Snapshot(),
		StartHistoricContractTreeRootsSnapshot: w.HistoricContractRoots.Snapshot(),
		StartHistoricL1ToL2TreeRootsSnapshot:   w.HistoricL1ToL2Roots.Snapshot(),
		ChainID:                                chainID,
		Version:                                version,
	}
}

// Clone returns an independent copy of the state. Committing the copy
// persists it in the database of the original.
func (w *WorldState) Clone() *WorldState {
	return &WorldState{
		cfg:                   w.cfg,
		NoteHashes:            w.NoteHashes.Clone(),
		Nullifiers:            w.Nullifiers.Clone(),
		Contracts:             w.Contracts.Clone(),
		L1ToL2Messages:        w.L1ToL2Messages.Clone(),
		HistoricNoteHashRoots: w.HistoricNoteHashRoots.Clone(),
		HistoricContractRoots: w.HistoricContractRoots.Clone(),
		HistoricL1ToL2Roots:   w.HistoricL1ToL2Roots.Clone(),
	}
}

// Commit persists every tree. It is a no-op for in-memory states.
func (w *WorldState) Commit() error {
	for _, t := range []*merkle.Tree{
		w.NoteHashes, w.Contracts, w.L1ToL2Messages,
		w.HistoricNoteHashRoots, w.HistoricContractRoots, w.HistoricL1ToL2Roots,
	} {
		if err := t.Commit(); err != nil {
			return err
		}
	}
	return w.Nullifiers.Commit()
}

// indexOf returns the index of the most recent leaf equal to leaf.
func indexOf(t *merkle.Tree, leaf fr.Element) (uint64, bool) {
	for i := t.NextIndex(); i > 0; i-- {
		if l, err := t.Leaf(i - 1); err == nil && l.Equal(&leaf) {
			return i - 1, true
		}
	}
	return 0, false
}

// historicWitness proves root is a leaf of the historic tree t.
func historicWitness(t *merkle.Tree, name string, root fr.Element) (abis.MembershipWitness, error) {
	idx, ok := indexOf(t, root)
	if !ok {
		return abis.MembershipWitness{}, fmt.Errorf("%w: %s root %s", ErrUnknownRoot, name, root.String())
	}
	return t.Witness(idx)
}
