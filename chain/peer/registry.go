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
	"errors"
	"sync"

	"github.com/abeychain/go-tezsync/chain/message"
	"github.com/abeychain/go-tezsync/chain/types"
)

var (
	// ErrAlreadyRegistered is returned by Insert on a duplicate peer id.
	ErrAlreadyRegistered = errors.New("peer: already registered")
	// ErrNotRegistered is returned by Remove/Get on an unknown peer id.
	ErrNotRegistered = errors.New("peer: not registered")
)

// OnInsert is called once per successful Insert, after the new Peer is
// visible in the registry; chain/manager wires this to send
// GetCurrentBranch(chain_id) to the freshly connected peer (§4.1).
type OnInsert func(p *Peer)

// OnRemove is called once per successful Remove, before the Peer is
// dropped. chain/manager's hook cancels nothing: in-flight downloads
// assigned to the peer stay tracked by the Downloader, whose Tick reassigns
// them to another peer once PerRequestTimeout elapses, and there is no
// per-peer branch-bootstrap worker to stop.
type OnRemove func(p *Peer)

// Registry tracks connected peers by id, grounded on abey/peer.go's
// peerSet (RWMutex-guarded map + Register/Unregister/Peer/Len/iteration).
type Registry struct {
	mu    sync.RWMutex
	peers map[types.PeerID]*Peer

	onInsert OnInsert
	onRemove OnRemove
}

// NewRegistry creates an empty registry. onInsert/onRemove may be nil.
func NewRegistry(onInsert OnInsert, onRemove OnRemove) *Registry {
	return &Registry{
		peers:    make(map[types.PeerID]*Peer),
		onInsert: onInsert,
		onRemove: onRemove,
	}
}

// Insert registers p, invoking onInsert after it becomes visible.
func (r *Registry) Insert(p *Peer) error {
	r.mu.Lock()
	if _, exists := r.peers[p.ID()]; exists {
		r.mu.Unlock()
		return ErrAlreadyRegistered
	}
	r.peers[p.ID()] = p
	r.mu.Unlock()

	if r.onInsert != nil {
		r.onInsert(p)
	}
	return nil
}

// Remove unregisters id, invoking onRemove before the Peer is dropped.
func (r *Registry) Remove(id types.PeerID) error {
	r.mu.Lock()
	p, exists := r.peers[id]
	if !exists {
		r.mu.Unlock()
		return ErrNotRegistered
	}
	if r.onRemove != nil {
		r.onRemove(p)
	}
	delete(r.peers, id)
	r.mu.Unlock()
	return nil
}

// Get returns the Peer for id, or ErrNotRegistered.
func (r *Registry) Get(id types.PeerID) (*Peer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, exists := r.peers[id]
	if !exists {
		return nil, ErrNotRegistered
	}
	return p, nil
}

// Len reports the number of registered peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Iter calls fn for every registered peer. fn must not call back into the
// registry (insert/remove) while iterating.
func (r *Registry) Iter(fn func(*Peer)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.peers {
		fn(p)
	}
}

// IDs returns a snapshot of currently registered peer ids.
func (r *Registry) IDs() []types.PeerID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]types.PeerID, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	return ids
}

// ClassifyBlacklist converts a protocol-misbehavior discovery on a peer's
// message into the §7 closed error kind, ready to place on the event bus.
func ClassifyBlacklist(component string, id types.PeerID, err error) *message.Error {
	return message.New(message.KindProtocolMisbehavior, component, errors.New(string(id)+": "+err.Error()))
}
