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

// Package peer implements the PeerLink collaborator contract, the
// Peer-State record (§3) and PeerRegistry (§4.1), grounded on abey/peer.go's
// peer/peerSet pair.
package peer

import (
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"

	"github.com/abeychain/go-tezsync/chain/message"
	"github.com/abeychain/go-tezsync/chain/types"
)

const (
	maxKnownBlocks     = 1024
	maxKnownOperations = 32768
)

// Link sends a typed message to a specific peer and is the collaborator
// surfacing inbound messages (spec §2's external PeerLink). Framing,
// versioning and authentication belong to the implementation.
type Link interface {
	ID() types.PeerID
	Send(msg message.Message) error
	Close() error
}

// PipelineKind names one of the four per-peer request pipelines (§3).
type PipelineKind int

const (
	PipelineBlockHeaders PipelineKind = iota
	PipelineBlockOperations
	PipelineMempoolOperations
	PipelineCurrentHead
	numPipelines
)

// inflight is one outstanding request, insertion-ordered within Pipeline.order.
type inflight struct {
	key     interface{}
	sentAt  time.Time
}

// Pipeline tracks one request/response channel's timing and bounded
// in-flight set, per §3's Peer-State.
type Pipeline struct {
	mu             sync.Mutex
	cap            int
	inflightByKey  map[interface{}]*inflight
	order          []interface{}
	lastRequestAt  time.Time
	lastResponseAt time.Time
}

// NewPipeline creates a pipeline admitting at most cap concurrent requests.
func NewPipeline(cap int) *Pipeline {
	return &Pipeline{cap: cap, inflightByKey: make(map[interface{}]*inflight)}
}

// TryAdmit admits key if the pipeline is below capacity; returns false if
// the cap is hit (admission refused, per the data-model invariant).
func (p *Pipeline) TryAdmit(key interface{}) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.order) >= p.cap {
		return false
	}
	if _, exists := p.inflightByKey[key]; exists {
		return false
	}
	p.inflightByKey[key] = &inflight{key: key, sentAt: time.Now()}
	p.order = append(p.order, key)
	p.lastRequestAt = time.Now()
	return true
}

// Len reports the current in-flight count.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

// Complete removes key from in-flight and records the response time.
// Returns false if key was not in-flight (an unsolicited response).
func (p *Pipeline) Complete(key interface{}) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inflightByKey[key]; !ok {
		return false
	}
	delete(p.inflightByKey, key)
	for i, k := range p.order {
		if k == key {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	p.lastResponseAt = time.Now()
	return true
}

// Stale returns the keys whose sentAt is older than timeout.
func (p *Pipeline) Stale(timeout time.Duration) []interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	var stale []interface{}
	for _, k := range p.order {
		if now.Sub(p.inflightByKey[k].sentAt) > timeout {
			stale = append(stale, k)
		}
	}
	return stale
}

// RequestResponseGap returns lastRequestAt minus lastResponseAt while a
// request is pending (lastRequestAt after lastResponseAt); before any
// response has been recorded it returns the time elapsed since
// lastRequestAt. Used by PeerDisciplinarian's current-head silence check
// (§4.8).
func (p *Pipeline) RequestResponseGap() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastRequestAt.IsZero() || !p.lastRequestAt.After(p.lastResponseAt) {
		return 0, false
	}
	if p.lastResponseAt.IsZero() {
		return time.Since(p.lastRequestAt), true
	}
	return p.lastRequestAt.Sub(p.lastResponseAt), true
}

// Peer is the full Peer-State record of §3.
type Peer struct {
	link Link
	id   types.PeerID

	mu                 sync.RWMutex
	currentHeadLevel   types.Level
	currentHeadHash    types.Hash
	mempoolEnabled     bool
	branchBootstrapOn  bool

	pipelines [numPipelines]*Pipeline

	knownBlocks mapset.Set
	knownOps    mapset.Set

	strikeMu sync.Mutex
	strikes  []time.Time
}

// New creates a Peer-State record for a freshly connected link.
func New(link Link, limits [numPipelines]int, mempoolEnabled bool) *Peer {
	p := &Peer{
		link:           link,
		id:             link.ID(),
		mempoolEnabled: mempoolEnabled,
		knownBlocks:    mapset.NewSet(),
		knownOps:       mapset.NewSet(),
	}
	for i := range p.pipelines {
		p.pipelines[i] = NewPipeline(limits[i])
	}
	return p
}

func (p *Peer) ID() types.PeerID { return p.id }

func (p *Peer) Link() Link { return p.link }

func (p *Peer) Pipeline(kind PipelineKind) *Pipeline { return p.pipelines[kind] }

func (p *Peer) MempoolEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mempoolEnabled
}

// AdvertisedHead returns the peer's last-known advertised head.
func (p *Peer) AdvertisedHead() (types.Hash, types.Level) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentHeadHash, p.currentHeadLevel
}

// UpdateAdvertisedHead applies the monotone-in-level invariant: updates
// with lower-or-equal level are discarded.
func (p *Peer) UpdateAdvertisedHead(hash types.Hash, level types.Level) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if level <= p.currentHeadLevel {
		return false
	}
	p.currentHeadHash, p.currentHeadLevel = hash, level
	return true
}

// MarkKnownBlock records hash as already delivered to/by this peer,
// first evicting an arbitrary entry (mapset.Set.Pop) while the set holds
// maxKnownBlocks (grounded on abey/peer.go's knownTxs eviction via
// Cardinality+Pop).
func (p *Peer) MarkKnownBlock(hash types.Hash) {
	for p.knownBlocks.Cardinality() >= maxKnownBlocks {
		p.knownBlocks.Pop()
	}
	p.knownBlocks.Add(hash)
}

func (p *Peer) KnowsBlock(hash types.Hash) bool { return p.knownBlocks.Contains(hash) }

func (p *Peer) MarkKnownOperation(hash types.Hash) {
	for p.knownOps.Cardinality() >= maxKnownOperations {
		p.knownOps.Pop()
	}
	p.knownOps.Add(hash)
}

func (p *Peer) KnowsOperation(hash types.Hash) bool { return p.knownOps.Contains(hash) }

// Strike records an unsolicited-response strike and reports whether the
// peer has now reached limit strikes within window (§4.3, §9).
func (p *Peer) Strike(limit int, window time.Duration) bool {
	p.strikeMu.Lock()
	defer p.strikeMu.Unlock()
	now := time.Now()
	p.strikes = append(p.strikes, now)
	cutoff := now.Add(-window)
	kept := p.strikes[:0]
	for _, t := range p.strikes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	p.strikes = kept
	return len(p.strikes) >= limit
}
