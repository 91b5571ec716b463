package merkle

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"go.vocdoni.io/dvote/db"
)

var (
	nodePrefix = []byte("node/")
	nextKey    = []byte("meta/next")
)

// store tracks the nodes changed since the last commit.
type store struct {
	db    db.Database
	dirty map[nodeKey]struct{}
}

func (s *store) clone() *store {
	c := &store{db: s.db, dirty: make(map[nodeKey]struct{}, len(s.dirty))}
	for k := range s.dirty {
		c.dirty[k] = struct{}{}
	}
	return c
}

func encodeNodeKey(k nodeKey) []byte {
	key := make([]byte, 0, len(nodePrefix)+9)
	key = append(key, nodePrefix...)
	key = append(key, byte(k.level))
	return binary.BigEndian.AppendUint64(key, k.index)
}

func decodeNodeKey(key []byte) (nodeKey, bool) {
	// iterators may or may not strip the prefix
	if len(key) == len(nodePrefix)+9 {
		key = key[len(nodePrefix):]
	}
	if len(key) != 9 {
		return nodeKey{}, false
	}
	return nodeKey{level: int(key[0]), index: binary.BigEndian.Uint64(key[1:])}, true
}

// Open loads a tree of the given depth persisted in database, or returns an
// empty one if nothing was committed yet. Mutations stay in memory until
// Commit.
func Open(database db.Database, depth int) (*Tree, error) {
	t, err := New(depth)
	if err != nil {
		return nil, err
	}
	t.store = &store{db: database, dirty: map[nodeKey]struct{}{}}

	next, err := database.Get(nextKey)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return t, nil
	case err != nil:
		return nil, fmt.Errorf("merkle: load next index: %w", err)
	}
	if len(next) != 8 {
		return nil, fmt.Errorf("merkle: corrupted next index")
	}
	t.next = binary.BigEndian.Uint64(next)

	var decodeErr error
	if err := database.Iterate(nodePrefix, func(k, v []byte) bool {
		key, ok := decodeNodeKey(k)
		if !ok || key.level > depth {
			decodeErr = fmt.Errorf("merkle: corrupted node key %x", k)
			return false
		}
		var e fr.Element
		if err := e.SetBytesCanonical(v); err != nil {
			decodeErr = fmt.Errorf("merkle: node %x: %w", k, err)
			return false
		}
		t.nodes[key] = e
		return true
	}); err != nil {
		return nil, fmt.Errorf("merkle: iterate nodes: %w", err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return t, nil
}

// Commit persists every change since the last commit. It is a no-op for
// in-memory trees.
func (t *Tree) Commit() error {
	if t.store == nil {
		return nil
	}
	tx := t.store.db.WriteTx()
	defer tx.Discard()
	for k := range t.store.dirty {
		key := encodeNodeKey(k)
		if v, ok := t.nodes[k]; ok {
			b := v.Bytes()
			if err := tx.Set(key, b[:]); err != nil {
				return fmt.Errorf("merkle: set node: %w", err)
			}
			continue
		}
		if err := tx.Delete(key); err != nil {
			return fmt.Errorf("merkle: delete node: %w", err)
		}
	}
	if err := tx.Set(nextKey, binary.BigEndian.AppendUint64(nil, t.next)); err != nil {
		return fmt.Errorf("merkle: set next index: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("merkle: commit: %w", err)
	}
	t.store.dirty = map[nodeKey]struct{}{}
	return nil
}
