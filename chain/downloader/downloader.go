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

// Package downloader issues and tracks GetBlockHeader/GetOperations
// requests (§4.3), grounded on abey/fetcher/fetcher.go's fetch scheduler:
// a prque-ordered retry queue and per-peer strike counting for unsolicited
// responses. Unlike fetcher.go's single-goroutine-owns-everything loop,
// §5 allows a Downloader's callers (manager's dispatch loop and its own
// Tick timer) to run on separate tasks, so the retry queue and in-flight
// table are mutex-guarded rather than goroutine-confined.
package downloader

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/prque"

	"github.com/abeychain/go-tezsync/chain/events"
	"github.com/abeychain/go-tezsync/chain/peer"
	"github.com/abeychain/go-tezsync/chain/store"
	"github.com/abeychain/go-tezsync/chain/types"
	"github.com/abeychain/go-tezsync/config"
	"github.com/inconshreveable/log15"
)

// Key identifies one requestable item: a header by hash, or an
// operations-pass bundle by (block hash, pass).
type Key struct {
	Header *types.Hash
	Ops    *types.OperationsKey
}

func headerKey(h types.Hash) Key            { return Key{Header: &h} }
func opsKey(k types.OperationsKey) Key       { return Key{Ops: &k} }

type request struct {
	key     Key
	peer    types.PeerID
	sentAt  time.Time
	retries int
}

// PeerPicker chooses a peer (other than exclude, if possible) to (re)assign
// a request to. chain/manager supplies this from its Registry.
type PeerPicker func(exclude types.PeerID) (types.PeerID, bool)

// Sender issues the actual GetBlockHeaders/GetOperationsForBlocks message
// to a peer; chain/manager supplies this from the peer's Link.
type Sender func(p types.PeerID, k Key) error

// Downloader schedules and tracks the two §4.3 sub-pipelines.
type Downloader struct {
	cfg     config.Config
	bus     *events.Bus
	log     log15.Logger
	picker  PeerPicker
	send    Sender
	headers store.HeaderStore
	ops     store.OperationStore

	registry *peer.Registry

	mu       sync.Mutex
	inflight map[Key]*request
	retryQ   *prque.Prque
}

// New creates a Downloader. headers/ops are the stores it writes to on
// completion; bus is where BlockReceived, ChainStalled and PeerBlacklisted
// events are published. It publishes no AllBlockOperationsReceived event
// and does not create or update block meta records.
func New(cfg config.Config, bus *events.Bus, registry *peer.Registry, headers store.HeaderStore, ops store.OperationStore, picker PeerPicker, send Sender) *Downloader {
	return &Downloader{
		cfg:      cfg,
		bus:      bus,
		log:      log15.New("module", "downloader"),
		picker:   picker,
		send:     send,
		headers:  headers,
		ops:      ops,
		registry: registry,
		inflight: make(map[Key]*request),
		retryQ:   prque.New(nil),
	}
}

// ScheduleHeader requests hash from peerID, deferring if the peer's
// pipeline is at capacity.
func (d *Downloader) ScheduleHeader(peerID types.PeerID, hash types.Hash) {
	d.scheduleFrom(peerID, headerKey(hash), peer.PipelineBlockHeaders)
}

// ScheduleOperations requests key's operations bundle from peerID.
func (d *Downloader) ScheduleOperations(peerID types.PeerID, key types.OperationsKey) {
	d.scheduleFrom(peerID, opsKey(key), peer.PipelineBlockOperations)
}

func (d *Downloader) scheduleFrom(peerID types.PeerID, k Key, kind peer.PipelineKind) {
	p, err := d.registry.Get(peerID)
	if err != nil {
		return
	}
	if !p.Pipeline(kind).TryAdmit(k) {
		return // cap hit: admission refused per the data-model invariant
	}
	if err := d.send(peerID, k); err != nil {
		p.Pipeline(kind).Complete(k)
		return
	}
	d.mark(peerID, k)
}

func (d *Downloader) mark(peerID types.PeerID, k Key) {
	d.mu.Lock()
	defer d.mu.Unlock()
	req := &request{key: k, peer: peerID, sentAt: time.Now()}
	d.inflight[k] = req
	d.retryQ.Push(k, -req.sentAt.UnixNano())
}

// DeliverHeader is called by chain/manager when a BlockHeader response
// arrives from peerID.
func (d *Downloader) DeliverHeader(peerID types.PeerID, h *types.BlockHeader) {
	d.deliver(peerID, headerKey(h.Hash), peer.PipelineBlockHeaders, func() {
		d.headers.PutHeader(h)
		d.bus.Publish(events.BlockReceived{Hash: h.Hash, Level: h.Level})
	})
}

// DeliverOperations is called by chain/manager when an OperationsForBlocks
// response arrives from peerID.
func (d *Downloader) DeliverOperations(peerID types.PeerID, key types.OperationsKey, ops []types.Operation) {
	d.deliver(peerID, opsKey(key), peer.PipelineBlockOperations, func() {
		d.ops.PutOperations(key, ops)
	})
}

func (d *Downloader) deliver(peerID types.PeerID, k Key, kind peer.PipelineKind, onSuccess func()) {
	p, err := d.registry.Get(peerID)
	if err != nil {
		return
	}
	d.mu.Lock()
	req, known := d.inflight[k]
	var reqPeer types.PeerID
	if known {
		reqPeer = req.peer
	}
	d.mu.Unlock()
	if !known || reqPeer != peerID {
		// Unsolicited: discard and strike, per §4.3.
		if p.Strike(d.cfg.UnsolicitedStrikeLimit, d.cfg.UnsolicitedStrikeWindow) {
			d.bus.Publish(events.PeerBlacklisted{Peer: peerID, Reason: "unsolicited response strikes exceeded"})
		}
		return
	}
	// A request reassigned by Tick was never admitted to the new peer's
	// pipeline, so Complete may report false here; the response still
	// matches the in-flight entry and is accepted.
	p.Pipeline(kind).Complete(k)
	d.mu.Lock()
	delete(d.inflight, k)
	d.mu.Unlock()
	onSuccess()
}

// Tick drives retry/timeout processing; chain/manager calls it on a timer.
func (d *Downloader) Tick() {
	now := time.Now()
	for {
		k, req, due := d.nextDue(now)
		if !due {
			return
		}
		d.retryOne(k, req)
	}
}

// nextDue pops the oldest overdue entry (if any) off the retry queue under
// lock and hands it back for processing outside the lock.
func (d *Downloader) nextDue(now time.Time) (Key, *request, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for !d.retryQ.Empty() {
		item, priority := d.retryQ.Peek()
		sentAt := time.Unix(0, -priority)
		if now.Sub(sentAt) <= d.cfg.PerRequestTimeout {
			return Key{}, nil, false
		}
		d.retryQ.PopItem()

		k := item.(Key)
		req, ok := d.inflight[k]
		if !ok {
			continue // already delivered
		}
		return k, req, true
	}
	return Key{}, nil, false
}

func (d *Downloader) retryOne(k Key, req *request) {
	d.mu.Lock()
	retries, curPeer := req.retries, req.peer
	d.mu.Unlock()

	if retries >= d.cfg.MaxRetriesPerRequest {
		d.mu.Lock()
		delete(d.inflight, k)
		d.mu.Unlock()
		var hash types.Hash
		if k.Header != nil {
			hash = *k.Header
		} else if k.Ops != nil {
			hash = k.Ops.BlockHash
		}
		d.bus.Publish(events.ChainStalled{Hash: hash})
		return
	}
	next, ok := d.picker(curPeer)
	if !ok {
		next = curPeer // no alternative: keep retrying against the same peer
	}

	d.mu.Lock()
	req.peer = next
	req.sentAt = time.Now()
	req.retries++
	d.retryQ.Push(k, -req.sentAt.UnixNano())
	d.mu.Unlock()

	d.send(next, k)
}

// Close stops the downloader.
func (d *Downloader) Close() {}
