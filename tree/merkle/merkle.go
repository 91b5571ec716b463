// Package merkle implements the fixed-depth append-only Merkle trees of the
// rollup (note hashes, contracts, L1 to L2 messages and historic roots).
// Empty leaves are zero and inner nodes are H(left, right).
package merkle

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/private-rollup/abis"
)

var (
	// ErrFull is returned when appending beyond the tree capacity.
	ErrFull = errors.New("merkle: tree is full")
	// ErrIndex is returned for leaf indexes beyond the next free one.
	ErrIndex = errors.New("merkle: leaf index out of range")
	// ErrAlignment is returned when a subtree does not start at a multiple
	// of its size.
	ErrAlignment = errors.New("merkle: subtree not aligned")
)

// HashNode hashes two children.
func HashNode(left, right fr.Element) fr.Element {
	return abis.H(abis.GeneratorMerkleNode, left, right)
}

// ZeroHashes returns the roots of empty subtrees of height 0 to depth.
func ZeroHashes(depth int) []fr.Element {
	zeros := make([]fr.Element, depth+1)
	for i := 1; i <= depth; i++ {
		zeros[i] = HashNode(zeros[i-1], zeros[i-1])
	}
	return zeros
}

// EmptySubtreeRoot returns the root of an empty subtree of the given height.
func EmptySubtreeRoot(height int) fr.Element {
	return ZeroHashes(height)[height]
}

// ComputeRoot returns the root of the subtree holding leaves, padded with
// zero leaves to the next power of two (at least one leaf).
func ComputeRoot(leaves []fr.Element) fr.Element {
	n := 1
	for n < len(leaves) {
		n <<= 1
	}
	level := make([]fr.Element, n)
	copy(level, leaves)
	for len(level) > 1 {
		next := make([]fr.Element, len(level)/2)
		for i := range next {
			next[i] = HashNode(level[2*i], level[2*i+1])
		}
		level = next
	}
	return level[0]
}

// RootFromPath recomputes the root above leaf at index, given its sibling
// path bottom-up.
func RootFromPath(leaf fr.Element, index uint64, path []fr.Element) fr.Element {
	node := leaf
	for _, sibling := range path {
		if index&1 == 0 {
			node = HashNode(node, sibling)
		} else {
			node = HashNode(sibling, node)
		}
		index >>= 1
	}
	return node
}

// IsMember reports whether leaf at index reconciles with root.
func IsMember(root, leaf fr.Element, w abis.MembershipWitness) bool {
	got := RootFromPath(leaf, w.LeafIndex, w.SiblingPath)
	return got.Equal(&root)
}

// Tree is an append-only Merkle tree. Only nodes that differ from the empty
// tree are kept. A Tree is not safe for concurrent mutation.
type Tree struct {
	depth int
	zeros []fr.Element
	nodes map[nodeKey]fr.Element
	next  uint64
	store *store
}

type nodeKey struct {
	level int
	index uint64
}

// New returns an empty in-memory tree of the given depth.
func New(depth int) (*Tree, error) {
	if depth <= 0 || depth > 64 {
		return nil, fmt.Errorf("merkle: invalid depth %d", depth)
	}
	return &Tree{
		depth: depth,
		zeros: ZeroHashes(depth),
		nodes: map[nodeKey]fr.Element{},
	}, nil
}

// Depth returns the height of the tree.
func (t *Tree) Depth() int { return t.depth }

// NextIndex returns the index of the next free leaf.
func (t *Tree) NextIndex() uint64 { return t.next }

// Capacity returns the number of leaves the tree can hold.
func (t *Tree) Capacity() uint64 {
	if t.depth == 64 {
		return ^uint64(0)
	}
	return uint64(1) << t.depth
}

func (t *Tree) node(level int, index uint64) fr.Element {
	if v, ok := t.nodes[nodeKey{level, index}]; ok {
		return v
	}
	return t.zeros[level]
}

func (t *Tree) setNode(level int, index uint64, v fr.Element) {
	k := nodeKey{level, index}
	if v.Equal(&t.zeros[level]) {
		delete(t.nodes, k)
	} else {
		t.nodes[k] = v
	}
	if t.store != nil {
		t.store.dirty[k] = struct{}{}
	}
}

// Root returns the current root.
func (t *Tree) Root() fr.Element { return t.node(t.depth, 0) }

// Snapshot returns the current root and next free index.
func (t *Tree) Snapshot() abis.Snapshot {
	return abis.Snapshot{Root: t.Root(), NextAvailableLeafIndex: uint32(t.next)}
}

// Leaf returns the leaf at index, zero for free slots.
func (t *Tree) Leaf(index uint64) (fr.Element, error) {
	if index >= t.Capacity() {
		return fr.Element{}, fmt.Errorf("%w: %d", ErrIndex, index)
	}
	return t.node(0, index), nil
}

// update writes leaf at index and rehashes its path to the root.
func (t *Tree) update(index uint64, leaf fr.Element) {
	t.setNode(0, index, leaf)
	node := leaf
	for level := 0; level < t.depth; level++ {
		sibling := t.node(level, index^1)
		if index&1 == 0 {
			node = HashNode(node, sibling)
		} else {
			node = HashNode(sibling, node)
		}
		index >>= 1
		t.setNode(level+1, index, node)
	}
}

// Update overwrites an already appended leaf.
func (t *Tree) Update(index uint64, leaf fr.Element) error {
	if index >= t.next {
		return fmt.Errorf("%w: %d (next %d)", ErrIndex, index, t.next)
	}
	t.update(index, leaf)
	return nil
}

// Append adds leaves at the next free indexes.
func (t *Tree) Append(leaves ...fr.Element) error {
	if uint64(len(leaves)) > t.Capacity()-t.next {
		return fmt.Errorf("%w: %d leaves at %d", ErrFull, len(leaves), t.next)
	}
	for _, l := range leaves {
		t.update(t.next, l)
		t.next++
	}
	return nil
}

// InsertSubtree appends a whole subtree of the given height holding leaves,
// padded with zero leaves. The next free index must be a multiple of the
// subtree size.
func (t *Tree) InsertSubtree(height int, leaves []fr.Element) error {
	size := uint64(1) << height
	if height >= t.depth || uint64(len(leaves)) > size {
		return fmt.Errorf("merkle: %d leaves do not fit a subtree of height %d", len(leaves), height)
	}
	if t.next%size != 0 {
		return fmt.Errorf("%w: next %d, size %d", ErrAlignment, t.next, size)
	}
	padded := make([]fr.Element, size)
	copy(padded, leaves)
	return t.Append(padded...)
}

// SiblingPath returns the bottom-up sibling path of the leaf at index.
func (t *Tree) SiblingPath(index uint64) ([]fr.Element, error) {
	if index >= t.Capacity() {
		return nil, fmt.Errorf("%w: %d", ErrIndex, index)
	}
	path := make([]fr.Element, t.depth)
	for level := 0; level < t.depth; level++ {
		path[level] = t.node(level, index^1)
		index >>= 1
	}
	return path, nil
}

// Witness returns the membership witness of the leaf at index.
func (t *Tree) Witness(index uint64) (abis.MembershipWitness, error) {
	path, err := t.SiblingPath(index)
	if err != nil {
		return abis.MembershipWitness{}, err
	}
	return abis.MembershipWitness{LeafIndex: index, SiblingPath: path}, nil
}

// SubtreeSiblingPath returns the path, from the subtree root up, of the
// subtree of the given height starting at the next free index.
func (t *Tree) SubtreeSiblingPath(height int) ([]fr.Element, error) {
	size := uint64(1) << height
	if height >= t.depth {
		return nil, fmt.Errorf("merkle: subtree height %d too large", height)
	}
	if t.next%size != 0 {
		return nil, fmt.Errorf("%w: next %d, size %d", ErrAlignment, t.next, size)
	}
	path, err := t.SiblingPath(t.next)
	if err != nil {
		return nil, err
	}
	return path[height:], nil
}

// Clone returns an independent in-memory copy of the tree. Changes made to
// the clone are persisted by Commit on the clone, if the original tree was
// backed by a database.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		depth: t.depth,
		zeros: t.zeros,
		nodes: make(map[nodeKey]fr.Element, len(t.nodes)),
		next:  t.next,
	}
	for k, v := range t.nodes {
		c.nodes[k] = v
	}
	if t.store != nil {
		c.store = t.store.clone()
	}
	return c
}
