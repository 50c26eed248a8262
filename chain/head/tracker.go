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

// Package head implements Head-Tracker (§4.5): the local/remote head slots
// and the acceptance classification for an advertised head. Slots are
// tiny and CAS-updated rather than lock-guarded, grounded on abey/sync.go's
// atomic.CompareAndSwapInt32(&pm.synchronising, ...) idiom.
package head

import (
	"sync/atomic"

	"github.com/abeychain/go-tezsync/chain/types"
)

// Acceptance classifies an advertised head (§4.5).
type Acceptance int

const (
	AcceptBlock Acceptance = iota
	IgnoreBlock
	UnknownBranch
	MultipassValidationError
)

// Tracker holds local_head (written only by Chain-Feeder commit) and
// remote_head (best dominating head seen).
type Tracker struct {
	chainID types.Hash

	local atomic.Value // types.Head
	remote atomic.Value // *types.Head

	haveLocal  int32
	haveRemote int32
}

// New creates a Tracker for chainID with no local or remote head yet.
func New(chainID types.Hash) *Tracker {
	return &Tracker{chainID: chainID}
}

// SetLocal is called only by Chain-Feeder on commit.
func (t *Tracker) SetLocal(h types.Head) {
	t.local.Store(h)
	atomic.StoreInt32(&t.haveLocal, 1)
}

// Local returns the current local head, and whether one has been set.
func (t *Tracker) Local() (types.Head, bool) {
	if atomic.LoadInt32(&t.haveLocal) == 0 {
		return types.Head{}, false
	}
	return t.local.Load().(types.Head), true
}

// UpdateRemote is the CAS of §4.5: replaces remote_head iff h strictly
// dominates the current value (or none is set yet).
func (t *Tracker) UpdateRemote(h types.Head) bool {
	next := &h
	for {
		cur, _ := t.remote.Load().(*types.Head)
		if cur == nil {
			if t.remote.CompareAndSwap(nil, next) {
				return true
			}
			continue
		}
		if !h.Dominates(*cur) {
			return false
		}
		if t.remote.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// Remote returns the current remote head, and whether one has been set.
func (t *Tracker) Remote() (types.Head, bool) {
	cur, _ := t.remote.Load().(*types.Head)
	if cur == nil {
		return types.Head{}, false
	}
	return *cur, true
}

// HasHeader reports whether the store already knows hash; chain/manager
// supplies this closure-style to keep Tracker free of a direct store
// dependency (it only needs the predicate, not full store access).
type HasHeader func(types.Hash) bool

// Acceptance classifies an advertised head msg against chainID/local head
// and a multipass pre-check supplied by chain/manager.
func (t *Tracker) Acceptance(chainID types.Hash, candidate types.Head, predecessor types.Hash, hasHeader HasHeader, multipassOK bool) Acceptance {
	if chainID != t.chainID {
		return UnknownBranch
	}
	if !multipassOK {
		return MultipassValidationError
	}
	local, have := t.Local()
	if have && !candidate.Dominates(local) {
		return IgnoreBlock
	}
	if !predecessor.IsZero() && !hasHeader(predecessor) {
		return UnknownBranch
	}
	return AcceptBlock
}
