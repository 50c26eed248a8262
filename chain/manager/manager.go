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

// Package manager wires PeerRegistry, BranchResolver, Downloader,
// Chain-Feeder, Head-Tracker, Bootstrap-Gate, Advertiser and
// PeerDisciplinarian into a single run loop — the explicit-dependency
// orchestrator spec §9 calls for in place of a global-singleton actor.
// Grounded on original_source/shell/src/chain_manager.rs (the single actor
// the spec splits into these components) and abey/sync.go's syncer()
// lifecycle goroutine.
package manager

import (
	"context"
	"os"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"

	"github.com/abeychain/go-tezsync/chain/advertiser"
	"github.com/abeychain/go-tezsync/chain/apply"
	"github.com/abeychain/go-tezsync/chain/bootstrap"
	"github.com/abeychain/go-tezsync/chain/branch"
	"github.com/abeychain/go-tezsync/chain/discipline"
	"github.com/abeychain/go-tezsync/chain/downloader"
	"github.com/abeychain/go-tezsync/chain/events"
	"github.com/abeychain/go-tezsync/chain/feeder"
	"github.com/abeychain/go-tezsync/chain/head"
	"github.com/abeychain/go-tezsync/chain/message"
	"github.com/abeychain/go-tezsync/chain/peer"
	"github.com/abeychain/go-tezsync/chain/store"
	"github.com/abeychain/go-tezsync/chain/types"
	"github.com/abeychain/go-tezsync/config"
)

// Manager is the chain-synchronization orchestrator. It owns no business
// logic of its own beyond wiring: every rule in spec §4 lives in the
// component it names.
type Manager struct {
	cfg     config.Config
	chainID types.Hash
	log     log15.Logger

	bus      *events.Bus
	registry *peer.Registry
	resolver *branch.Resolver
	dl       *downloader.Downloader
	feed     *feeder.Feeder
	tracker  *head.Tracker
	gate     *bootstrap.Gate
	adv      *advertiser.Advertiser
	disc     *discipline.Disciplinarian

	headers store.HeaderStore

	localPeerID types.PeerID
}

// Deps bundles the external collaborators (§2) a Manager is constructed
// with; they are supplied explicitly, never reached via package-level
// state (spec §9: "the core never references process-wide state").
type Deps struct {
	ChainID     types.Hash
	LocalPeerID types.PeerID
	Headers     store.HeaderStore
	Metas       store.MetaStore
	Operations  store.OperationStore
	Engine      apply.Engine
	StartCursor types.Hash
	Mempool     func() []types.Operation
}

// New constructs a fully wired Manager.
func New(cfg config.Config, deps Deps) (*Manager, error) {
	cfg.ApplySandbox()

	m := &Manager{
		cfg:         cfg,
		chainID:     deps.ChainID,
		log:         log15.New("module", "manager"),
		bus:         events.New(),
		localPeerID: deps.LocalPeerID,
		gate:        bootstrap.New(cfg.BootstrapThresholdPeers, cfg.BootstrapLevelThreshold),
		tracker:     head.New(deps.ChainID),
		headers:     deps.Headers,
	}

	m.registry = peer.NewRegistry(m.onPeerInsert, m.onPeerRemove)

	resolver, err := branch.New(deps.ChainID, deps.Headers, 1024)
	if err != nil {
		return nil, errors.Wrap(err, "manager: constructing branch resolver")
	}
	m.resolver = resolver

	m.dl = downloader.New(cfg, m.bus, m.registry, deps.Headers, deps.Operations, m.pickPeer, m.sendRequest)

	m.feed = feeder.New(deps.ChainID, deps.StartCursor, deps.Headers, deps.Metas, deps.Operations, deps.Engine, m.bus, m.onBlockApplied)

	m.adv = advertiser.New(deps.ChainID, deps.LocalPeerID, m.registry, deps.Headers, m.gate, cfg.P2PDisableMempool, deps.Mempool)

	m.disc = discipline.New(cfg, m.registry, m.bus, m.peerLevelSource, m.onDisconnect)

	return m, nil
}

// Run starts the feeder and disciplinarian loops and blocks until ctx is
// cancelled, per the §5 cancellation policy (a single shutdown flag
// observed by every task).
func (m *Manager) Run(ctx context.Context) {
	go m.feed.Run(ctx)
	go m.disc.Run(ctx)

	ticker := time.NewTicker(m.cfg.AskCurrentHeadInterval)
	defer ticker.Stop()

	time.Sleep(m.cfg.AskCurrentHeadInitialDelay)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.dl.Tick()
			m.askCurrentHeads()
		}
	}
}

// Bus exposes the event bus for external subscribers (monitor/, logging).
func (m *Manager) Bus() *events.Bus { return m.bus }

func (m *Manager) onPeerInsert(p *peer.Peer) {
	p.Link().Send(message.GetCurrentBranch{ChainID: m.chainID})
}

func (m *Manager) onPeerRemove(p *peer.Peer) {
	// In-flight downloads assigned to p are not cancelled here: their
	// responses can no longer be delivered once the peer is gone from the
	// registry, and Downloader.Tick reassigns them to another peer once
	// PerRequestTimeout elapses (§4.1, §5).
}

func (m *Manager) onDisconnect(p *peer.Peer, reason string) {
	p.Link().Close()
	m.registry.Remove(p.ID())
	m.bus.Publish(events.PeerBlacklisted{Peer: p.ID(), Reason: reason})
}

func (m *Manager) onBlockApplied(hash types.Hash, level types.Level, header types.BlockHeader) {
	local := types.Head{Hash: hash, Level: level, Fitness: header.Fitness}
	m.tracker.SetLocal(local)

	remote, haveRemote := m.tracker.Remote()
	bestRemote := level
	if haveRemote {
		bestRemote = remote.Level
	}

	m.bus.Publish(events.NewCurrentHead{
		ChainID:         m.chainID,
		Block:           local,
		IsBootstrapped:  m.gate.IsBootstrapped(),
		BestRemoteLevel: bestRemote,
	})

	withMempool := m.gate.IsBootstrapped()
	for peerID, msg := range m.adv.AdvertiseCurrentHead(header, withMempool) {
		if p, err := m.registry.Get(peerID); err == nil {
			p.Link().Send(msg)
		}
	}
	for peerID, msg := range m.adv.AdvertiseCurrentBranch(header) {
		if p, err := m.registry.Get(peerID); err == nil {
			p.Link().Send(msg)
		}
	}

	m.reportSyncProgress(local.Level, bestRemote)
}

// reportSyncProgress reports PeerBranchSynchronizationDone (§4.6) for every
// peer whose last advertised head the local chain has now caught up to,
// evaluating the Bootstrap-Gate transition.
func (m *Manager) reportSyncProgress(localLevel, bestRemoteLevel types.Level) {
	if m.gate.IsBootstrapped() {
		return
	}
	m.registry.Iter(func(p *peer.Peer) {
		_, advertised := p.AdvertisedHead()
		if advertised > localLevel {
			return
		}
		m.gate.ReportSyncDone(p.ID(), localLevel, bestRemoteLevel)
	})
}

func (m *Manager) askCurrentHeads() {
	m.registry.Iter(func(p *peer.Peer) {
		p.Link().Send(message.GetCurrentHead{ChainID: m.chainID})
	})
}

func (m *Manager) pickPeer(exclude types.PeerID) (types.PeerID, bool) {
	for _, id := range m.registry.IDs() {
		if id != exclude {
			return id, true
		}
	}
	return "", false
}

func (m *Manager) sendRequest(peerID types.PeerID, k downloader.Key) error {
	p, err := m.registry.Get(peerID)
	if err != nil {
		return err
	}
	if k.Header != nil {
		return p.Link().Send(message.GetBlockHeaders{Hashes: []types.Hash{*k.Header}})
	}
	return p.Link().Send(message.GetOperationsForBlocks{Keys: []types.OperationsKey{*k.Ops}})
}

func (m *Manager) peerLevelSource(p *peer.Peer) (int64, bool, time.Time) {
	_, level := p.AdvertisedHead()
	local, have := m.tracker.Local()
	knownHigher := have && level < local.Level
	return int64(level), knownHigher, time.Time{}
}

// HandleCurrentBranch implements the BranchResolver invocation described in
// §4.2, dispatching the resulting fetch plan to the Downloader.
func (m *Manager) HandleCurrentBranch(peerID types.PeerID, msg message.CurrentBranch) {
	local, haveLocal := m.tracker.Local()
	plan, err := m.resolver.Resolve(peerID, local, haveLocal, msg)
	if err != nil {
		m.log.Warn("branch resolve failed", "peer", peerID, "err", errors.Wrap(err, "manager: resolving current branch"))
		return
	}
	if plan.Outcome == branch.Ignored {
		return
	}
	m.tracker.UpdateRemote(types.Head{Hash: msg.Head.Hash, Level: msg.Head.Level, Fitness: msg.Head.Fitness})
	for _, h := range plan.Hashes {
		if pid, ok := m.pickPeer(""); ok {
			m.dl.ScheduleHeader(pid, h)
		}
	}
}

// HandleCurrentHead implements the Head-Tracker invocation described in
// §4.5: classify an advertised head and act on the classification —
// accept and fetch it, re-ask on an unknown predecessor, or blacklist the
// peer on a failed multipass pre-check.
func (m *Manager) HandleCurrentHead(peerID types.PeerID, msg message.CurrentHead) {
	if msg.ChainID != m.chainID {
		return
	}
	p, err := m.registry.Get(peerID)
	if err != nil {
		return
	}
	p.UpdateAdvertisedHead(msg.Header.Hash, msg.Header.Level)

	candidate := types.Head{Hash: msg.Header.Hash, Level: msg.Header.Level, Fitness: msg.Header.Fitness}
	multipassOK := multipassPrecheck(msg.Header)

	switch m.tracker.Acceptance(m.chainID, candidate, msg.Header.Predecessor, m.headers.HasHeader, multipassOK) {
	case head.AcceptBlock:
		m.tracker.UpdateRemote(candidate)
		m.dl.ScheduleHeader(peerID, msg.Header.Hash)
	case head.UnknownBranch:
		p.Link().Send(message.GetCurrentBranch{ChainID: m.chainID})
	case head.MultipassValidationError:
		m.onDisconnect(p, "multipass validation failed on advertised current head")
	case head.IgnoreBlock:
	}
}

// multipassPrecheck is the protocol-level structural check §4.5 calls for
// before a candidate head is even considered against local fitness: a
// non-genesis header must carry fitness and an operations root, since a
// missing one can only mean a malformed or truncated message.
func multipassPrecheck(header types.BlockHeader) bool {
	if header.Level == 0 {
		return true
	}
	return len(header.Fitness) > 0 && !header.OperationsRoot.IsZero()
}

// HandleBlockHeader delivers an inbound BlockHeader response and, once
// ingested, schedules its operations-pass fetches.
func (m *Manager) HandleBlockHeader(peerID types.PeerID, header *types.BlockHeader) {
	m.dl.DeliverHeader(peerID, header)
	if !m.headers.HasHeader(header.Hash) {
		return // discarded as unsolicited: nothing was ingested
	}
	for pass := types.PassIndex(0); pass <= types.MaxPassIndex; pass++ {
		m.dl.ScheduleOperations(peerID, types.OperationsKey{BlockHash: header.Hash, Pass: pass})
	}
}

// HandleOperationsForBlocks delivers an inbound OperationsForBlocks
// response and then wakes the feeder, whether or not the block's operations
// are now complete.
func (m *Manager) HandleOperationsForBlocks(peerID types.PeerID, key types.OperationsKey, ops []types.Operation) {
	m.dl.DeliverOperations(peerID, key, ops)
	m.feed.Wake()
}

// Dispatch routes one inbound wire message from peerID to its handler. It
// is the single entrypoint a PeerLink implementation's receive loop calls
// into the core with — the wire transport itself (framing, versioning,
// authentication) stays the external collaborator's responsibility (§6).
func (m *Manager) Dispatch(peerID types.PeerID, msg message.Message) {
	switch v := msg.(type) {
	case message.CurrentBranch:
		m.HandleCurrentBranch(peerID, v)
	case message.CurrentHead:
		m.HandleCurrentHead(peerID, v)
	case message.BlockHeaderMessage:
		m.HandleBlockHeader(peerID, &v.Header)
	case message.OperationsForBlocks:
		m.HandleOperationsForBlocks(peerID, v.Key, v.Ops)
	default:
		// GetCurrentBranch/GetCurrentHead/GetBlockHeaders/
		// GetOperationsForBlocks/GetOperations/Advertise/Bootstrap are
		// messages this node only sends; serving peer-initiated requests
		// for our own chain state is outside this core's scope (§1).
	}
}

// InjectBlock is the baker path (scenario 6).
func (m *Manager) InjectBlock(header *types.BlockHeader, ops []types.Operation) error {
	return m.feed.InjectBlock(header, ops)
}

// Fatal logs msg at Crit and terminates the process — "abort process with
// structured panic" (§7), realized as a structured log plus an explicit
// exit rather than an unrecovered Go panic, since a panic would not
// cleanly unwind sibling goroutines the way a process exit does.
func Fatal(log log15.Logger, msg string, ctx ...interface{}) {
	log.Crit(msg, ctx...)
	os.Exit(2)
}
