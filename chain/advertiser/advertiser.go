// Package advertiser implements Advertiser (§4.7): on head change, diffuse
// current-head/current-branch messages subject to per-peer capability,
// grounded on chain_manager.rs's advertise_current_branch_to_p2p /
// advertise_current_head_to_p2p / resolve_mempool_to_send_to_peer.
package advertiser

import (
	"encoding/binary"
	"math/rand"

	"golang.org/x/crypto/blake2b"

	"github.com/abeychain/go-tezsync/chain/bootstrap"
	"github.com/abeychain/go-tezsync/chain/message"
	"github.com/abeychain/go-tezsync/chain/peer"
	"github.com/abeychain/go-tezsync/chain/store"
	"github.com/abeychain/go-tezsync/chain/types"
)

// HistoryDepth bounds the number of ancestor probes per CurrentBranch.
const HistoryDepth = 32

// Advertiser builds the per-peer messages diffused on BlockApplied; the
// caller (chain/manager) sends them.
type Advertiser struct {
	chainID     types.Hash
	localPeerID types.PeerID
	registry    *peer.Registry
	headers     store.HeaderStore
	gate        *bootstrap.Gate
	disableMempool bool
	mempool     func() []types.Operation
}

// New creates an Advertiser. mempool supplies the current mempool content
// to attach when a peer qualifies for it.
func New(chainID types.Hash, localPeerID types.PeerID, registry *peer.Registry, headers store.HeaderStore, gate *bootstrap.Gate, disableMempool bool, mempool func() []types.Operation) *Advertiser {
	return &Advertiser{
		chainID:        chainID,
		localPeerID:    localPeerID,
		registry:       registry,
		headers:        headers,
		gate:           gate,
		disableMempool: disableMempool,
		mempool:        mempool,
	}
}

// AdvertiseCurrentHead returns CurrentHead(header, mempool) for every peer,
// keyed by peer id; mempool is empty unless withMempool, the peer enables it, mempool
// diffusion is not globally disabled, and the bootstrap gate is open.
func (a *Advertiser) AdvertiseCurrentHead(header types.BlockHeader, withMempool bool) map[types.PeerID]message.CurrentHead {
	out := make(map[types.PeerID]message.CurrentHead)
	a.registry.Iter(func(p *peer.Peer) {
		var ops []types.Operation
		if withMempool && !a.disableMempool && p.MempoolEnabled() && a.gate.IsBootstrapped() {
			ops = a.mempool()
		}
		out[p.ID()] = message.CurrentHead{ChainID: a.chainID, Header: header, Mempool: ops}
	})
	return out
}

// AdvertiseCurrentBranch returns CurrentBranch(header, history) for every
// peer, keyed by peer id, with a history computed by a deterministic pseudo-random walk
// seeded by (local_peer_id, remote_peer_id) so repeat emissions to the same
// peer/head are identical (Testable Property 6).
func (a *Advertiser) AdvertiseCurrentBranch(header types.BlockHeader) map[types.PeerID]message.CurrentBranch {
	out := make(map[types.PeerID]message.CurrentBranch)
	a.registry.Iter(func(p *peer.Peer) {
		hist := a.history(p.ID(), header.Hash)
		out[p.ID()] = message.CurrentBranch{Head: header, History: hist}
	})
	return out
}

// history performs the seeded walk. The seed is blake2b_256(local||remote),
// folded into an int64 that deterministically drives math/rand — the same
// seed always yields the same probe sequence for that (local, remote) pair.
func (a *Advertiser) history(remote types.PeerID, head types.Hash) message.History {
	seed := blake2b.Sum256(append([]byte(a.localPeerID), []byte(remote)...))
	src := rand.New(rand.NewSource(int64(binary.BigEndian.Uint64(seed[:8]))))

	hist := make(message.History, 0, HistoryDepth)
	cursor := head
	for i := 0; i < HistoryDepth; i++ {
		h, err := a.headers.GetHeader(cursor)
		if err != nil || h.Predecessor.IsZero() {
			break
		}
		// stride diversifies which ancestors are probed per peer, without
		// affecting determinism since src is seeded deterministically above.
		stride := 1 + src.Intn(3)
		for s := 0; s < stride && !h.Predecessor.IsZero(); s++ {
			cursor = h.Predecessor
			h, err = a.headers.GetHeader(cursor)
			if err != nil {
				break
			}
		}
		hist = append(hist, cursor)
		if h == nil {
			break
		}
	}
	return hist
}
