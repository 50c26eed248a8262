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

package peer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abeychain/go-tezsync/chain/message"
	"github.com/abeychain/go-tezsync/chain/types"
)

type nopLink struct{ id types.PeerID }

func (l nopLink) ID() types.PeerID            { return l.id }
func (l nopLink) Send(message.Message) error  { return nil }
func (l nopLink) Close() error                 { return nil }

var limits = [numPipelines]int{2, 2, 2, 2}

func TestPipelineAdmissionCap(t *testing.T) {
	p := NewPipeline(2)
	require.True(t, p.TryAdmit("a"))
	require.True(t, p.TryAdmit("b"))
	require.False(t, p.TryAdmit("c")) // at cap
	require.False(t, p.TryAdmit("a")) // already in flight

	require.True(t, p.Complete("a"))
	require.True(t, p.TryAdmit("c")) // freed a slot
}

func TestPipelineCompleteUnknownKeyFails(t *testing.T) {
	p := NewPipeline(1)
	require.False(t, p.Complete("nope"))
}

func TestPipelineStaleReporting(t *testing.T) {
	p := NewPipeline(4)
	p.TryAdmit("a")
	require.Empty(t, p.Stale(time.Hour))
	require.ElementsMatch(t, []interface{}{"a"}, p.Stale(0))
}

func TestUpdateAdvertisedHeadMonotone(t *testing.T) {
	p := New(nopLink{"peerA"}, limits, false)
	require.True(t, p.UpdateAdvertisedHead(types.BytesToHash([]byte{1}), 5))
	require.False(t, p.UpdateAdvertisedHead(types.BytesToHash([]byte{2}), 5)) // equal level rejected
	require.False(t, p.UpdateAdvertisedHead(types.BytesToHash([]byte{2}), 4)) // lower level rejected
	require.True(t, p.UpdateAdvertisedHead(types.BytesToHash([]byte{2}), 6))

	hash, level := p.AdvertisedHead()
	require.Equal(t, types.BytesToHash([]byte{2}), hash)
	require.Equal(t, types.Level(6), level)
}

func TestStrikeLimitWithinWindow(t *testing.T) {
	p := New(nopLink{"peerA"}, limits, false)
	require.False(t, p.Strike(3, time.Minute))
	require.False(t, p.Strike(3, time.Minute))
	require.True(t, p.Strike(3, time.Minute))
}

func TestKnownBlockEviction(t *testing.T) {
	p := New(nopLink{"peerA"}, limits, false)
	hashes := make([]types.Hash, maxKnownBlocks+1)
	for i := range hashes {
		hashes[i] = types.BytesToHash([]byte{byte(i), byte(i >> 8)})
		p.MarkKnownBlock(hashes[i])
	}
	require.True(t, p.KnowsBlock(hashes[len(hashes)-1]))
	require.LessOrEqual(t, p.knownBlocks.Cardinality(), maxKnownBlocks)
}
