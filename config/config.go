// Package config holds the immutable capacities and tree heights of the
// rollup, and the context threaded into every stage invocation.
package config

import (
	"fmt"

	"github.com/vocdoni/private-rollup/utils"
)

// Config names every fixed capacity and tree height. It is never mutated
// after construction.
type Config struct {
	// per private call
	MaxReadRequestsPerCall     int
	MaxNewNoteHashesPerCall    int
	MaxNewNullifiersPerCall    int
	MaxPrivateCallStackPerCall int
	MaxPublicCallStackPerCall  int
	MaxNewL2ToL1MsgsPerCall    int
	MaxReturnValuesPerCall     int
	// per transaction
	MaxReadRequestsPerTx       int
	MaxNewNoteHashesPerTx      int
	MaxNewNullifiersPerTx      int
	MaxPrivateCallStackPerTx   int
	MaxPublicCallStackPerTx    int
	MaxNewL2ToL1MsgsPerTx      int
	MaxNewContractsPerTx       int
	// tree heights
	NoteHashTreeHeight         int
	NullifierTreeHeight        int
	ContractTreeHeight         int
	L1ToL2MsgTreeHeight        int
	HistoricRootsTreeHeight    int
	FunctionTreeHeight         int
	VerificationKeyTreeLevels  int
	// per block
	L1ToL2MsgsPerRollup        int
	TxsPerBlock                int
}

// Default returns the production configuration.
func Default() *Config {
	return &Config{
		MaxReadRequestsPerCall:     4,
		MaxNewNoteHashesPerCall:    4,
		MaxNewNullifiersPerCall:    4,
		MaxPrivateCallStackPerCall: 4,
		MaxPublicCallStackPerCall:  4,
		MaxNewL2ToL1MsgsPerCall:    2,
		MaxReturnValuesPerCall:     4,
		MaxReadRequestsPerTx:       128,
		MaxNewNoteHashesPerTx:      64,
		MaxNewNullifiersPerTx:      64,
		MaxPrivateCallStackPerTx:   8,
		MaxPublicCallStackPerTx:    8,
		MaxNewL2ToL1MsgsPerTx:      2,
		MaxNewContractsPerTx:       1,
		NoteHashTreeHeight:         32,
		NullifierTreeHeight:        20,
		ContractTreeHeight:         16,
		L1ToL2MsgTreeHeight:        16,
		HistoricRootsTreeHeight:    16,
		FunctionTreeHeight:         4,
		VerificationKeyTreeLevels:  8,
		L1ToL2MsgsPerRollup:        16,
		TxsPerBlock:                4,
	}
}

// Small returns a reduced configuration, same shape as Default, used by
// tests so that trees and arrays stay small.
func Small() *Config {
	return &Config{
		MaxReadRequestsPerCall:     2,
		MaxNewNoteHashesPerCall:    2,
		MaxNewNullifiersPerCall:    2,
		MaxPrivateCallStackPerCall: 2,
		MaxPublicCallStackPerCall:  2,
		MaxNewL2ToL1MsgsPerCall:    1,
		MaxReturnValuesPerCall:     2,
		MaxReadRequestsPerTx:       4,
		MaxNewNoteHashesPerTx:      4,
		MaxNewNullifiersPerTx:      4,
		MaxPrivateCallStackPerTx:   4,
		MaxPublicCallStackPerTx:    2,
		MaxNewL2ToL1MsgsPerTx:      2,
		MaxNewContractsPerTx:       1,
		NoteHashTreeHeight:         8,
		NullifierTreeHeight:        8,
		ContractTreeHeight:         4,
		L1ToL2MsgTreeHeight:        6,
		HistoricRootsTreeHeight:    4,
		FunctionTreeHeight:         2,
		VerificationKeyTreeLevels:  8,
		L1ToL2MsgsPerRollup:        4,
		TxsPerBlock:                4,
	}
}

// NoteHashSubtreeHeight is the height of the subtree holding the note
// hashes of one base rollup (two transactions).
func (c *Config) NoteHashSubtreeHeight() int {
	h, _ := utils.Log2(2 * c.MaxNewNoteHashesPerTx)
	return h
}

// ContractSubtreeHeight is the height of the subtree holding the new
// contracts of one base rollup.
func (c *Config) ContractSubtreeHeight() int {
	h, _ := utils.Log2(2 * c.MaxNewContractsPerTx)
	return h
}

// L1ToL2MsgSubtreeHeight is the height of the subtree holding the L1 to L2
// messages of one block.
func (c *Config) L1ToL2MsgSubtreeHeight() int {
	h, _ := utils.Log2(c.L1ToL2MsgsPerRollup)
	return h
}

// MergeDepth is the number of merge levels below the root rollup.
func (c *Config) MergeDepth() int {
	h, _ := utils.Log2(c.TxsPerBlock)
	return h - 2
}

// Validate checks that batch sizes are powers of two and that every tree
// can hold at least one batch.
func (c *Config) Validate() error {
	positive := map[string]int{
		"MaxReadRequestsPerCall":     c.MaxReadRequestsPerCall,
		"MaxNewNoteHashesPerCall":    c.MaxNewNoteHashesPerCall,
		"MaxNewNullifiersPerCall":    c.MaxNewNullifiersPerCall,
		"MaxPrivateCallStackPerCall": c.MaxPrivateCallStackPerCall,
		"MaxPublicCallStackPerCall":  c.MaxPublicCallStackPerCall,
		"MaxNewL2ToL1MsgsPerCall":    c.MaxNewL2ToL1MsgsPerCall,
		"MaxReadRequestsPerTx":       c.MaxReadRequestsPerTx,
		"MaxNewNullifiersPerTx":      c.MaxNewNullifiersPerTx,
		"MaxPrivateCallStackPerTx":   c.MaxPrivateCallStackPerTx,
		"MaxPublicCallStackPerTx":    c.MaxPublicCallStackPerTx,
		"MaxNewL2ToL1MsgsPerTx":      c.MaxNewL2ToL1MsgsPerTx,
		"NullifierTreeHeight":        c.NullifierTreeHeight,
		"FunctionTreeHeight":         c.FunctionTreeHeight,
		"VerificationKeyTreeLevels":  c.VerificationKeyTreeLevels,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("config: %s must be positive, got %d", name, v)
		}
	}
	pow2 := map[string]int{
		"MaxNewNoteHashesPerTx": c.MaxNewNoteHashesPerTx,
		"MaxNewContractsPerTx":  c.MaxNewContractsPerTx,
		"L1ToL2MsgsPerRollup":   c.L1ToL2MsgsPerRollup,
		"TxsPerBlock":           c.TxsPerBlock,
	}
	for name, v := range pow2 {
		if _, ok := utils.Log2(v); !ok {
			return fmt.Errorf("config: %s must be a power of two, got %d", name, v)
		}
	}
	if c.TxsPerBlock < 4 {
		return fmt.Errorf("config: TxsPerBlock must be at least 4, got %d", c.TxsPerBlock)
	}
	if c.MaxReadRequestsPerCall > c.MaxReadRequestsPerTx ||
		c.MaxNewNoteHashesPerCall > c.MaxNewNoteHashesPerTx ||
		c.MaxNewNullifiersPerCall > c.MaxNewNullifiersPerTx {
		return fmt.Errorf("config: per call capacities exceed per tx capacities")
	}
	heights := []struct {
		name          string
		height, below int
	}{
		{"NoteHashTreeHeight", c.NoteHashTreeHeight, c.NoteHashSubtreeHeight()},
		{"ContractTreeHeight", c.ContractTreeHeight, c.ContractSubtreeHeight()},
		{"L1ToL2MsgTreeHeight", c.L1ToL2MsgTreeHeight, c.L1ToL2MsgSubtreeHeight()},
		{"HistoricRootsTreeHeight", c.HistoricRootsTreeHeight, 0},
	}
	for _, h := range heights {
		if h.height <= h.below || h.height > 64 {
			return fmt.Errorf("config: %s %d cannot hold a subtree of height %d", h.name, h.height, h.below)
		}
	}
	if c.NullifierTreeHeight > 64 {
		return fmt.Errorf("config: NullifierTreeHeight %d too large", c.NullifierTreeHeight)
	}
	return nil
}
