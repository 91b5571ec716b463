package indexed

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/tree/merkle"
	"github.com/vocdoni/private-rollup/utils"
	"go.vocdoni.io/dvote/db"
)

var leafPrefix = []byte("leaf/")

const leafSize = fr.Bytes + 8 + fr.Bytes

type leafStore struct {
	db db.Database
}

func encodeLeaf(l *abis.NullifierLeafPreimage) []byte {
	v, nv := l.Value.Bytes(), l.NextValue.Bytes()
	b := make([]byte, 0, leafSize)
	b = append(b, v[:]...)
	b = binary.BigEndian.AppendUint64(b, l.NextIndex)
	return append(b, nv[:]...)
}

func decodeLeaf(b []byte) (*abis.NullifierLeafPreimage, error) {
	if len(b) != leafSize {
		return nil, fmt.Errorf("indexed: leaf of %d bytes", len(b))
	}
	l := &abis.NullifierLeafPreimage{NextIndex: binary.BigEndian.Uint64(b[fr.Bytes : fr.Bytes+8])}
	if err := l.Value.SetBytesCanonical(b[:fr.Bytes]); err != nil {
		return nil, err
	}
	if err := l.NextValue.SetBytesCanonical(b[fr.Bytes+8:]); err != nil {
		return nil, err
	}
	return l, nil
}

func leafKey(index uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte(nil), leafPrefix...), index)
}

// Open loads a tree persisted in database, or initializes one with the
// genesis leaf. Mutations stay in memory until Commit.
func Open(database db.Database, depth int) (*Tree, error) {
	mt, err := merkle.Open(database, depth)
	if err != nil {
		return nil, err
	}
	t := &Tree{tree: mt, dirty: map[uint64]struct{}{}, store: &leafStore{db: database}}
	if mt.NextIndex() == 0 {
		if err := t.genesis(); err != nil {
			return nil, err
		}
		return t, nil
	}

	t.leaves = make([]*abis.NullifierLeafPreimage, mt.NextIndex())
	var loadErr error
	if err := database.Iterate(leafPrefix, func(k, v []byte) bool {
		if len(k) == len(leafPrefix)+8 {
			k = k[len(leafPrefix):]
		}
		if len(k) != 8 {
			loadErr = fmt.Errorf("indexed: corrupted leaf key %x", k)
			return false
		}
		idx := binary.BigEndian.Uint64(k)
		if idx >= uint64(len(t.leaves)) {
			loadErr = fmt.Errorf("indexed: leaf %d beyond next index", idx)
			return false
		}
		leaf, err := decodeLeaf(v)
		if err != nil {
			loadErr = err
			return false
		}
		t.leaves[idx] = leaf
		t.sorted = append(t.sorted, idx)
		return true
	}); err != nil {
		return nil, fmt.Errorf("indexed: iterate leaves: %w", err)
	}
	if loadErr != nil {
		return nil, loadErr
	}
	sort.Slice(t.sorted, func(i, j int) bool {
		return utils.Less(t.leaves[t.sorted[i]].Value, t.leaves[t.sorted[j]].Value)
	})
	return t, nil
}

// Commit persists the leaves and nodes changed since the last commit. It
// is a no-op for in-memory trees.
func (t *Tree) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.store == nil {
		return nil
	}
	if err := t.tree.Commit(); err != nil {
		return err
	}
	tx := t.store.db.WriteTx()
	defer tx.Discard()
	for idx := range t.dirty {
		if err := tx.Set(leafKey(idx), encodeLeaf(t.leaves[idx])); err != nil {
			return fmt.Errorf("indexed: set leaf: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("indexed: commit: %w", err)
	}
	t.dirty = map[uint64]struct{}{}
	return nil
}
