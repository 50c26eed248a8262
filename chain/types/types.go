// Copyright 2017 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package types holds the data model consumed by every chain-sync component:
// block headers, per-block metadata, operations, heads and peer state.
package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sync"
)

// HashLength is the number of bytes in a block or operation hash.
const HashLength = 32

// Hash identifies a block header or operation.
type Hash [HashLength]byte

// BytesToHash left-pads b with zeros into a Hash; if b is longer than
// HashLength, only its last HashLength bytes are kept.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

// IsZero reports whether h is the zero hash (used as "no predecessor"/"unset").
func (h Hash) IsZero() bool { return h == Hash{} }

// Level is a block height. The protocol defines it as a signed 32-bit
// integer; comparisons must stay correct near math.MaxInt32 (§8 boundary
// behavior).
type Level int32

// PassIndex identifies one of a block's validation passes (0..=3).
type PassIndex uint8

// MaxPassIndex is the highest validation pass index by convention.
const MaxPassIndex PassIndex = 3

// Fitness is an opaque, protocol-ordered byte vector. Greater fitness wins
// forks. The comparator below is a length-then-lexicographic placeholder:
// the real ordering is owned by the external protocol (spec Open Question,
// preserved rather than resolved here).
type Fitness []byte

// Dominates reports whether f strictly exceeds other under the placeholder
// total order: longer wins; equal length compares lexicographically.
func (f Fitness) Dominates(other Fitness) bool {
	if len(f) != len(other) {
		return len(f) > len(other)
	}
	return bytes.Compare(f, other) > 0
}

// BlockHeader is immutable once received.
type BlockHeader struct {
	Hash           Hash
	Level          Level
	Predecessor    Hash
	Fitness        Fitness
	OperationsRoot Hash
	ProtocolData   []byte
}

// OperationsKey names one validation-pass bundle for a block.
type OperationsKey struct {
	BlockHash Hash
	Pass      PassIndex
}

// Operation is a single mempool or block operation.
type Operation struct {
	Hash Hash
	Pass PassIndex
	Data []byte
}

// BlockMeta is the mutable per-block bookkeeping record. Exactly one exists
// per stored header. Successor is set at most once and never overwritten
// (see SetSuccessor for the tie-break rule).
type BlockMeta struct {
	mu                sync.Mutex
	Level             Level
	Predecessor       Hash
	applied           bool
	successor         *Hash
	operationsPresent [MaxPassIndex + 1]bool
}

// NewBlockMeta creates the meta record that must exist before any successor
// of the header can be recorded (data-model invariant).
func NewBlockMeta(level Level, predecessor Hash) *BlockMeta {
	return &BlockMeta{Level: level, Predecessor: predecessor}
}

func (m *BlockMeta) Applied() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applied
}

// MarkApplied is invoked only by Chain-Feeder.
func (m *BlockMeta) MarkApplied() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied = true
}

func (m *BlockMeta) Successor() (Hash, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.successor == nil {
		return Hash{}, false
	}
	return *m.successor, true
}

// SetSuccessor records child as this block's successor iff none is set yet.
// Returns true if this call won the race (first arrival wins, per the
// preserved source behavior).
func (m *BlockMeta) SetSuccessor(child Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.successor != nil {
		return false
	}
	c := child
	m.successor = &c
	return true
}

// MarkOperationsPresent records that pass p has been received; it returns
// whether this call transitioned OperationsComplete from false to true.
func (m *BlockMeta) MarkOperationsPresent(p PassIndex) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	wasComplete := m.operationsCompleteLocked()
	if int(p) < len(m.operationsPresent) {
		m.operationsPresent[p] = true
	}
	return !wasComplete && m.operationsCompleteLocked()
}

func (m *BlockMeta) OperationsComplete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.operationsCompleteLocked()
}

// OperationsPresent reports whether pass p specifically has been recorded,
// for callers (leveldbstore) that need to persist the per-pass bitmap
// rather than just its aggregate.
func (m *BlockMeta) OperationsPresent(p PassIndex) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(p) >= len(m.operationsPresent) {
		return false
	}
	return m.operationsPresent[p]
}

func (m *BlockMeta) operationsCompleteLocked() bool {
	for _, ok := range m.operationsPresent {
		if !ok {
			return false
		}
	}
	return true
}

// Head is the triple identifying a chain's tip.
type Head struct {
	Hash    Hash
	Level   Level
	Fitness Fitness
}

// Dominates reports whether h strictly dominates other.
func (h Head) Dominates(other Head) bool { return h.Fitness.Dominates(other.Fitness) }

func (h Head) String() string {
	return fmt.Sprintf("Head{%s level=%d}", h.Hash.Hex(), h.Level)
}

// PeerID identifies a connected peer; opaque to this package.
type PeerID string
