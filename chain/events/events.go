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

// Package events is the typed internal event bus (§6). It replaces the
// teacher's reflection-based event.Feed with a closed set of event structs
// dispatched over per-subscriber channels, since this repo's event set is
// small and fixed.
package events

import (
	"sync"

	"github.com/abeychain/go-tezsync/chain/message"
	"github.com/abeychain/go-tezsync/chain/types"
)

// BlockReceived is published on first header ingestion.
type BlockReceived struct {
	Hash  types.Hash
	Level types.Level
}

// AllBlockOperationsReceived is published when operations_complete
// transitions to true.
type AllBlockOperationsReceived struct {
	Hash  types.Hash
	Level types.Level
}

// BlockApplied is published on successful apply.
type BlockApplied struct {
	Hash   types.Hash
	Level  types.Level
	Header types.BlockHeader
}

// ApplyFailed is published when ApplyEngine rejects a block.
type ApplyFailed struct {
	Hash   types.Hash
	Reason string
}

// NewCurrentHead is published on local head change or rehydration.
type NewCurrentHead struct {
	ChainID         types.Hash
	Block           types.Head
	IsBootstrapped  bool
	BestRemoteLevel types.Level
}

// ChainStalled is published when a download exceeds its retry budget.
type ChainStalled struct {
	Hash types.Hash
}

// PeerBlacklisted is published when PeerDisciplinarian blacklists a peer.
type PeerBlacklisted struct {
	Peer   types.PeerID
	Reason string
}

// Err carries a classified, component-internal failure (§7.1); it is the
// only way a low-level error may cross a task boundary.
type Err struct {
	*message.Error
}

// Event is the closed union of everything the bus carries.
type Event interface{}

// subscriber is a bounded channel plus the policy for a full channel.
type subscriber struct {
	ch       chan Event
	blocking bool
}

// Bus fans out published events to every current subscriber. Critical
// subscribers (chain/manager's own internal consumers) block the publisher
// on a full channel; non-critical subscribers (monitor/) drop the oldest
// event instead, mirroring the teacher's best-effort broadcast queues in
// abey/peer.go.
type Bus struct {
	mu   sync.RWMutex
	subs []*subscriber
}

func New() *Bus { return &Bus{} }

// Subscribe returns a channel of capacity size. If blocking is false, a
// full channel causes the oldest buffered event to be dropped rather than
// stalling the publisher.
func (b *Bus) Subscribe(size int, blocking bool) <-chan Event {
	s := &subscriber{ch: make(chan Event, size), blocking: blocking}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
	return s.ch
}

// Publish fans ev out to every subscriber per its blocking policy.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.blocking {
			s.ch <- ev
			continue
		}
		select {
		case s.ch <- ev:
		default:
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- ev:
			default:
			}
		}
	}
}
