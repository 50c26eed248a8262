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

package types

import (
	"encoding/hex"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFitnessDominatesByLength(t *testing.T) {
	short := Fitness{0x01}
	long := Fitness{0x00, 0x00}
	require.True(t, long.Dominates(short))
	require.False(t, short.Dominates(long))
}

func TestFitnessDominatesLexicographic(t *testing.T) {
	a := Fitness{0x01, 0x02}
	b := Fitness{0x01, 0x03}
	require.True(t, b.Dominates(a))
	require.False(t, a.Dominates(b))
	require.False(t, a.Dominates(a))
}

func TestLevelNearMaxInt32(t *testing.T) {
	near := Level(math.MaxInt32 - 1)
	max := Level(math.MaxInt32)
	require.True(t, max > near)
}

func TestBlockMetaSuccessorFirstWins(t *testing.T) {
	m := NewBlockMeta(1, Hash{})
	child1 := BytesToHash([]byte{1})
	child2 := BytesToHash([]byte{2})

	require.True(t, m.SetSuccessor(child1))
	require.False(t, m.SetSuccessor(child2))

	got, ok := m.Successor()
	require.True(t, ok)
	require.Equal(t, child1, got)
}

func TestBlockMetaOperationsComplete(t *testing.T) {
	m := NewBlockMeta(1, Hash{})
	require.False(t, m.OperationsComplete())

	for p := PassIndex(0); p < MaxPassIndex; p++ {
		transitioned := m.MarkOperationsPresent(p)
		require.False(t, transitioned)
	}
	transitioned := m.MarkOperationsPresent(MaxPassIndex)
	require.True(t, transitioned)
	require.True(t, m.OperationsComplete())
}

func TestBlockMetaMarkApplied(t *testing.T) {
	m := NewBlockMeta(1, Hash{})
	require.False(t, m.Applied())
	m.MarkApplied()
	require.True(t, m.Applied())
}

func TestHashHexRoundTrip(t *testing.T) {
	h := BytesToHash([]byte{0xde, 0xad, 0xbe, 0xef})
	require.Equal(t, "0x"+hex.EncodeToString(h.Bytes()), h.Hex())
	require.Equal(t, byte(0xef), h[HashLength-1])
	require.Equal(t, byte(0xde), h[HashLength-4])
}
