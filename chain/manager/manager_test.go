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

package manager

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abeychain/go-tezsync/chain/apply"
	"github.com/abeychain/go-tezsync/chain/message"
	"github.com/abeychain/go-tezsync/chain/peer"
	"github.com/abeychain/go-tezsync/chain/store/memstore"
	"github.com/abeychain/go-tezsync/chain/types"
	"github.com/abeychain/go-tezsync/config"
)

type recordingLink struct {
	id   types.PeerID
	sent []message.Message
}

func (l *recordingLink) ID() types.PeerID { return l.id }
func (l *recordingLink) Send(m message.Message) error {
	l.sent = append(l.sent, m)
	return nil
}
func (l *recordingLink) Close() error { return nil }

func newTestManager(t *testing.T) *Manager {
	st := memstore.New()
	m, err := New(config.Default, Deps{
		ChainID:     types.Hash{},
		LocalPeerID: "local",
		Headers:     st,
		Metas:       st,
		Operations:  st,
		Engine:      apply.NewStub(),
		StartCursor: types.Hash{},
		Mempool:     func() []types.Operation { return nil },
	})
	require.NoError(t, err)
	return m
}

// TestOnPeerInsertAsksCurrentBranch covers §4.1: a freshly registered peer
// is immediately sent GetCurrentBranch.
func TestOnPeerInsertAsksCurrentBranch(t *testing.T) {
	m := newTestManager(t)
	link := &recordingLink{id: "peerA"}
	limits := [4]int{8, 8, 8, 8}
	require.NoError(t, m.registry.Insert(peer.New(link, limits, false)))

	require.Len(t, link.sent, 1)
	require.Equal(t, message.GetCurrentBranchMsg, link.sent[0].Code())
}

// TestHandleCurrentBranchIgnoresWeakerAdvert exercises the manager's wiring
// of BranchResolver: a non-dominating advert produces no download requests.
func TestHandleCurrentBranchIgnoresWeakerAdvert(t *testing.T) {
	m := newTestManager(t)
	weaker := message.CurrentBranch{Head: types.BlockHeader{Hash: types.BytesToHash([]byte{1}), Level: 0, Fitness: types.Fitness{}}}
	// No local head set yet, so even a zero-fitness head "dominates"
	// (haveLocal is false); set one first so the weaker advert is ignored.
	m.onBlockApplied(types.BytesToHash([]byte{9}), 5, types.BlockHeader{Fitness: types.Fitness{0x01}})

	m.HandleCurrentBranch("peerA", weaker)
	_, haveRemote := m.tracker.Remote()
	require.False(t, haveRemote)
}

// TestHandleCurrentHeadAcceptsDominatingHead covers §4.5's AcceptBlock path:
// a dominating, multipass-clean head updates remote_head and schedules its
// header fetch.
func TestHandleCurrentHeadAcceptsDominatingHead(t *testing.T) {
	m := newTestManager(t)
	link := &recordingLink{id: "peerA"}
	require.NoError(t, m.registry.Insert(peer.New(link, [4]int{8, 8, 8, 8}, false)))

	hash := types.BytesToHash([]byte{2})
	msg := message.CurrentHead{
		ChainID: types.Hash{},
		Header: types.BlockHeader{
			Hash:           hash,
			Level:          2,
			Predecessor:    types.Hash{}, // zero predecessor: no ancestor lookup required
			Fitness:        types.Fitness{0x01},
			OperationsRoot: types.BytesToHash([]byte{0xee}),
		},
	}

	m.HandleCurrentHead("peerA", msg)

	remote, ok := m.tracker.Remote()
	require.True(t, ok)
	require.Equal(t, hash, remote.Hash)

	require.Len(t, link.sent, 2) // GetCurrentBranch (on insert) + GetBlockHeaders (on accept)
	require.Equal(t, message.GetBlockHeadersMsg, link.sent[1].Code())
}

// TestHandleCurrentHeadMultipassFailureBlacklistsPeer covers §4.5's
// MultipassValidationError path: a non-genesis head with no fitness fails
// the structural pre-check and the peer is dropped.
func TestHandleCurrentHeadMultipassFailureBlacklistsPeer(t *testing.T) {
	m := newTestManager(t)
	link := &recordingLink{id: "peerA"}
	require.NoError(t, m.registry.Insert(peer.New(link, [4]int{8, 8, 8, 8}, false)))

	msg := message.CurrentHead{
		ChainID: types.Hash{},
		Header:  types.BlockHeader{Hash: types.BytesToHash([]byte{3}), Level: 1},
	}

	m.HandleCurrentHead("peerA", msg)

	_, err := m.registry.Get("peerA")
	require.Error(t, err)
}

// TestHandleCurrentHeadUnknownBranchReAsksCurrentBranch covers §4.5's
// UnknownBranch path: a dominating head whose predecessor is unknown
// triggers a fresh GetCurrentBranch round-trip instead of a header fetch.
func TestHandleCurrentHeadUnknownBranchReAsksCurrentBranch(t *testing.T) {
	m := newTestManager(t)
	link := &recordingLink{id: "peerA"}
	require.NoError(t, m.registry.Insert(peer.New(link, [4]int{8, 8, 8, 8}, false)))

	msg := message.CurrentHead{
		ChainID: types.Hash{},
		Header: types.BlockHeader{
			Hash:           types.BytesToHash([]byte{4}),
			Level:          2,
			Predecessor:    types.BytesToHash([]byte{0xff}), // not in the header store
			Fitness:        types.Fitness{0x01},
			OperationsRoot: types.BytesToHash([]byte{0xee}),
		},
	}

	m.HandleCurrentHead("peerA", msg)

	require.Len(t, link.sent, 2)
	require.Equal(t, message.GetCurrentBranchMsg, link.sent[1].Code())
	_, haveRemote := m.tracker.Remote()
	require.False(t, haveRemote)
}

// TestDispatchRoutesCurrentHead covers the Dispatch entrypoint a PeerLink's
// receive loop is meant to call into.
func TestDispatchRoutesCurrentHead(t *testing.T) {
	m := newTestManager(t)
	link := &recordingLink{id: "peerA"}
	require.NoError(t, m.registry.Insert(peer.New(link, [4]int{8, 8, 8, 8}, false)))

	msg := message.CurrentHead{
		ChainID: types.Hash{},
		Header: types.BlockHeader{
			Hash:           types.BytesToHash([]byte{5}),
			Level:          1,
			Fitness:        types.Fitness{0x01},
			OperationsRoot: types.BytesToHash([]byte{0xee}),
		},
	}

	m.Dispatch("peerA", msg)

	remote, ok := m.tracker.Remote()
	require.True(t, ok)
	require.Equal(t, msg.Header.Hash, remote.Hash)
}

// TestReportSyncProgressOpensBootstrapGate covers §4.6: once enough peers
// have been caught up to, the bootstrap gate flips true and stays true.
func TestReportSyncProgressOpensBootstrapGate(t *testing.T) {
	cfg := config.Default
	cfg.BootstrapThresholdPeers = 1
	cfg.BootstrapLevelThreshold = 0

	st := memstore.New()
	m, err := New(cfg, Deps{
		ChainID:     types.Hash{},
		LocalPeerID: "local",
		Headers:     st,
		Metas:       st,
		Operations:  st,
		Engine:      apply.NewStub(),
		StartCursor: types.Hash{},
		Mempool:     func() []types.Operation { return nil },
	})
	require.NoError(t, err)

	link := &recordingLink{id: "peerA"}
	require.NoError(t, m.registry.Insert(peer.New(link, [4]int{8, 8, 8, 8}, false)))
	require.False(t, m.gate.IsBootstrapped())

	m.onBlockApplied(types.BytesToHash([]byte{1}), 1, types.BlockHeader{Fitness: types.Fitness{0x01}})

	require.True(t, m.gate.IsBootstrapped())
}
