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

// Package branch implements BranchResolver (§4.2): given a peer's
// advertised branch plus history, compute the ordered set of missing
// ancestors to fetch.
package branch

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/abeychain/go-tezsync/chain/message"
	"github.com/abeychain/go-tezsync/chain/store"
	"github.com/abeychain/go-tezsync/chain/types"
)

// ErrUnknownChainID is fatal for the exchange, not the peer.
var ErrUnknownChainID = errors.New("branch: unknown chain id")

// Outcome classifies a CurrentBranch advert.
type Outcome int

const (
	Ignored Outcome = iota
	Accepted
)

// FetchPlan is the ordered (oldest-first) list of ancestor hashes to fetch.
type FetchPlan struct {
	Outcome Outcome
	Hashes  []types.Hash
}

// Resolver computes fetch plans from CurrentBranch adverts. It holds no
// goroutine of its own; chain/manager invokes Resolve synchronously on
// receipt of a CurrentBranch message.
type Resolver struct {
	chainID types.Hash
	headers store.HeaderStore

	cache *lru.Cache // (peerID,headHash) -> FetchPlan, avoids re-walking unchanged adverts
}

type cacheKey struct {
	peer types.PeerID
	head types.Hash
}

// New creates a Resolver for chainID, backed by headers for ancestor
// lookups. cacheSize bounds the memoized-plan LRU (0 disables the cache).
func New(chainID types.Hash, headers store.HeaderStore, cacheSize int) (*Resolver, error) {
	r := &Resolver{chainID: chainID, headers: headers}
	if cacheSize > 0 {
		c, err := lru.New(cacheSize)
		if err != nil {
			return nil, err
		}
		r.cache = c
	}
	return r, nil
}

// Resolve implements the §4.2 contract.
func (r *Resolver) Resolve(peerID types.PeerID, localHead types.Head, haveLocalHead bool, msg message.CurrentBranch) (FetchPlan, error) {
	head := msg.Head
	candidate := types.Head{Hash: head.Hash, Level: head.Level, Fitness: head.Fitness}

	dominates := !haveLocalHead || candidate.Dominates(localHead)
	if !dominates {
		return FetchPlan{Outcome: Ignored}, nil
	}
	// Empty history: accept the head only if its predecessor is locally
	// known (§8 boundary behavior).
	if len(msg.History) == 0 && !head.Predecessor.IsZero() && !r.headers.HasHeader(head.Predecessor) {
		return FetchPlan{Outcome: Ignored}, nil
	}

	key := cacheKey{peer: peerID, head: head.Hash}
	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			return cached.(FetchPlan), nil
		}
	}

	plan, err := r.walk(head, msg.History)
	if err != nil {
		return FetchPlan{}, err
	}
	if r.cache != nil {
		r.cache.Add(key, plan)
	}
	return plan, nil
}

// walk walks from head.Predecessor backward, using history as probes,
// stopping at the first ancestor already present in the header store (or
// at genesis — the zero hash).
func (r *Resolver) walk(head types.BlockHeader, history message.History) (FetchPlan, error) {
	var hashes []types.Hash

	cursor := head.Predecessor
	probeIdx := 0

	for !cursor.IsZero() {
		if r.headers.HasHeader(cursor) {
			break
		}
		hashes = append(hashes, cursor)

		next, ok := nextProbe(cursor, history, &probeIdx, r.headers)
		if !ok {
			break
		}
		cursor = next
	}

	// Oldest-first: hashes was accumulated newest-first during the
	// backward walk, so reverse it before returning.
	for i, j := 0, len(hashes)-1; i < j; i, j = i+1, j-1 {
		hashes[i], hashes[j] = hashes[j], hashes[i]
	}
	return FetchPlan{Outcome: Accepted, Hashes: hashes}, nil
}

// nextProbe picks the next ancestor to walk to. With an empty history the
// walk can only continue if the current hash's header is already known
// locally (Resolve has already ignored an empty-history advert whose
// predecessor is unknown); probes in `history` are consumed strictly in order so
// the walk makes forward progress even when none of the intermediate
// headers are stored yet (the usual case: that's exactly what's missing).
func nextProbe(cursor types.Hash, probes []types.Hash, probeIdx *int, headers store.HeaderStore) (types.Hash, bool) {
	if h, err := headers.GetHeader(cursor); err == nil {
		return h.Predecessor, true
	}
	if *probeIdx < len(probes) {
		next := probes[*probeIdx]
		*probeIdx++
		return next, true
	}
	return types.Hash{}, false
}

// Err wraps a causality failure (missing predecessor) for placement on the
// event bus, classified per §7.
func Err(detail string) *message.Error {
	return message.New(message.KindCausality, "branch", fmt.Errorf(detail))
}
