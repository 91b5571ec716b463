// Package indexed implements the nullifier tree: an append-only Merkle tree
// whose leaves form a linked list sorted by value, so that the absence of a
// value is proven by the leaf whose gap it falls into.
package indexed

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/tree/merkle"
	"github.com/vocdoni/private-rollup/utils"
)

var (
	// ErrExists is returned when inserting a value already in the tree.
	ErrExists = errors.New("indexed: value already exists")
	// ErrZero is returned when inserting zero, the value of the genesis leaf.
	ErrZero = errors.New("indexed: zero value")
	// ErrClosed is returned when using a batch after Close.
	ErrClosed = errors.New("indexed: batch closed")
)

// Tree is the arena of leaf preimages, addressed by leaf index, and the
// Merkle tree over their hashes. Mutations go through a Batch, which holds
// exclusive access to the whole arena until closed.
type Tree struct {
	mu     sync.Mutex
	tree   *merkle.Tree
	leaves []*abis.NullifierLeafPreimage // nil for slots skipped with zero leaves
	sorted []uint64                      // occupied leaf indexes sorted by value
	dirty  map[uint64]struct{}
	store  *leafStore
}

// New returns a tree of the given depth holding only the genesis leaf
// (0, 0, 0) at index 0.
func New(depth int) (*Tree, error) {
	mt, err := merkle.New(depth)
	if err != nil {
		return nil, err
	}
	t := &Tree{tree: mt, dirty: map[uint64]struct{}{}}
	if err := t.genesis(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) genesis() error {
	leaf := &abis.NullifierLeafPreimage{}
	if err := t.tree.Append(leaf.Hash()); err != nil {
		return err
	}
	t.leaves = []*abis.NullifierLeafPreimage{leaf}
	t.sorted = []uint64{0}
	t.dirty[0] = struct{}{}
	return nil
}

// Depth returns the height of the tree.
func (t *Tree) Depth() int { return t.tree.Depth() }

// Snapshot returns the current root and next free index.
func (t *Tree) Snapshot() abis.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tree.Snapshot()
}

// Leaf returns the preimage at index and whether the slot holds a leaf.
func (t *Tree) Leaf(index uint64) (abis.NullifierLeafPreimage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index >= uint64(len(t.leaves)) || t.leaves[index] == nil {
		return abis.NullifierLeafPreimage{}, false
	}
	return *t.leaves[index], true
}

// Contains reports whether v was inserted.
func (t *Tree) Contains(v fr.Element) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _, err := t.lowLeaf(v)
	return errors.Is(err, ErrExists)
}

// Leaves returns the preimages in value order, following next pointers
// from the genesis leaf.
func (t *Tree) Leaves() []abis.NullifierLeafPreimage {
	t.mu.Lock()
	defer t.mu.Unlock()
	var res []abis.NullifierLeafPreimage
	idx := uint64(0)
	for {
		leaf := t.leaves[idx]
		res = append(res, *leaf)
		if leaf.NextValue.IsZero() {
			return res
		}
		idx = leaf.NextIndex
	}
}

// LowLeaf returns the index and preimage of the leaf with the greatest
// value strictly lower than v.
func (t *Tree) LowLeaf(v fr.Element) (uint64, abis.NullifierLeafPreimage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx, _, err := t.lowLeaf(v)
	if err != nil {
		return 0, abis.NullifierLeafPreimage{}, err
	}
	return idx, *t.leaves[idx], nil
}

// lowLeaf returns the low leaf index of v and the position in t.sorted
// where v would be inserted.
func (t *Tree) lowLeaf(v fr.Element) (uint64, int, error) {
	if v.IsZero() {
		return 0, 0, ErrZero
	}
	pos := sort.Search(len(t.sorted), func(i int) bool {
		return !utils.Less(t.leaves[t.sorted[i]].Value, v)
	})
	if pos < len(t.sorted) && t.leaves[t.sorted[pos]].Value.Equal(&v) {
		return 0, pos, fmt.Errorf("%w: %s", ErrExists, v.String())
	}
	// the genesis leaf (value 0) is lower than any non-zero value
	return t.sorted[pos-1], pos, nil
}

// Batch grants exclusive access to the arena for a sequence of insertions.
// Each insertion sees the mutations of the previous ones, and the witnesses
// it returns are the post-mutation ones a verifier replays in order.
type Batch struct {
	t      *Tree
	closed bool
}

// Batch locks the tree until Close is called.
func (t *Tree) Batch() *Batch {
	t.mu.Lock()
	return &Batch{t: t}
}

// Close releases the tree.
func (b *Batch) Close() {
	if !b.closed {
		b.closed = true
		b.t.mu.Unlock()
	}
}

// Insert adds v and returns the witness proving the insertion.
func (b *Batch) Insert(v fr.Element) (abis.LowLeafWitness, error) {
	if b.closed {
		return abis.LowLeafWitness{}, ErrClosed
	}
	t := b.t
	lowIdx, pos, err := t.lowLeaf(v)
	if err != nil {
		return abis.LowLeafWitness{}, err
	}
	newIdx := t.tree.NextIndex()
	if newIdx >= t.tree.Capacity() {
		return abis.LowLeafWitness{}, fmt.Errorf("%w: %d", merkle.ErrFull, newIdx)
	}
	low := *t.leaves[lowIdx]
	lowPath, err := t.tree.SiblingPath(lowIdx)
	if err != nil {
		return abis.LowLeafWitness{}, err
	}

	updated := abis.NullifierLeafPreimage{Value: low.Value, NextIndex: newIdx, NextValue: v}
	if err := t.tree.Update(lowIdx, updated.Hash()); err != nil {
		return abis.LowLeafWitness{}, err
	}
	newPath, err := t.tree.SiblingPath(newIdx)
	if err != nil {
		return abis.LowLeafWitness{}, err
	}
	leaf := abis.NullifierLeafPreimage{Value: v, NextIndex: low.NextIndex, NextValue: low.NextValue}
	if err := t.tree.Append(leaf.Hash()); err != nil {
		return abis.LowLeafWitness{}, err
	}

	*t.leaves[lowIdx] = updated
	t.leaves = append(t.leaves, &leaf)
	t.sorted = append(t.sorted, 0)
	copy(t.sorted[pos+1:], t.sorted[pos:])
	t.sorted[pos] = newIdx
	t.dirty[lowIdx] = struct{}{}
	t.dirty[newIdx] = struct{}{}

	return abis.LowLeafWitness{
		LowLeaf:     low,
		LowIndex:    lowIdx,
		LowPath:     lowPath,
		NewLeafPath: newPath,
	}, nil
}

// Skip consumes the next leaf index with a zero leaf, which is how empty
// nullifier slots keep the tree layout fixed.
func (b *Batch) Skip() error {
	if b.closed {
		return ErrClosed
	}
	if err := b.t.tree.Append(fr.Element{}); err != nil {
		return err
	}
	b.t.leaves = append(b.t.leaves, nil)
	return nil
}

// Snapshot returns the snapshot as seen by the batch.
func (b *Batch) Snapshot() abis.Snapshot { return b.t.tree.Snapshot() }

// Insert adds every value in order within one batch.
func (t *Tree) Insert(values ...fr.Element) ([]abis.LowLeafWitness, error) {
	b := t.Batch()
	defer b.Close()
	ws := make([]abis.LowLeafWitness, 0, len(values))
	for _, v := range values {
		w, err := b.Insert(v)
		if err != nil {
			return nil, err
		}
		ws = append(ws, w)
	}
	return ws, nil
}

// Clone returns an independent copy of the tree.
func (t *Tree) Clone() *Tree {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := &Tree{
		tree:   t.tree.Clone(),
		leaves: make([]*abis.NullifierLeafPreimage, len(t.leaves)),
		sorted: append([]uint64(nil), t.sorted...),
		dirty:  make(map[uint64]struct{}, len(t.dirty)),
		store:  t.store,
	}
	for i, l := range t.leaves {
		if l != nil {
			cp := *l
			c.leaves[i] = &cp
		}
	}
	for k := range t.dirty {
		c.dirty[k] = struct{}{}
	}
	return c
}
