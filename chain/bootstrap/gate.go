// Package bootstrap implements Bootstrap-Gate (§4.6): a monotone
// true-once predicate gating mempool propagation, grounded on
// chain_manager.rs's resolve_is_bootstrapped.
package bootstrap

import (
	"sync"
	"sync/atomic"

	"github.com/abeychain/go-tezsync/chain/types"
)

// Gate is is_bootstrapped(): once true, stays true for the process
// lifetime.
type Gate struct {
	thresholdPeers int
	levelThreshold types.Level

	mu    sync.Mutex
	done  map[types.PeerID]struct{}

	bootstrapped int32
}

// New creates a Gate requiring thresholdPeers distinct
// PeerBranchSynchronizationDone reports and a local head within
// levelThreshold of the remote best level.
func New(thresholdPeers int, levelThreshold types.Level) *Gate {
	return &Gate{
		thresholdPeers: thresholdPeers,
		levelThreshold: levelThreshold,
		done:           make(map[types.PeerID]struct{}),
	}
}

// IsBootstrapped reports the monotone predicate.
func (g *Gate) IsBootstrapped() bool { return atomic.LoadInt32(&g.bootstrapped) == 1 }

// ReportSyncDone records that peerID has independently reported
// PeerBranchSynchronizationDone, and evaluates the transition to true
// given the current local/remote levels.
func (g *Gate) ReportSyncDone(peerID types.PeerID, localLevel, remoteBestLevel types.Level) bool {
	if g.IsBootstrapped() {
		return true
	}
	g.mu.Lock()
	g.done[peerID] = struct{}{}
	n := len(g.done)
	g.mu.Unlock()

	if n < g.thresholdPeers {
		return false
	}
	if remoteBestLevel-localLevel > g.levelThreshold {
		return false
	}
	atomic.StoreInt32(&g.bootstrapped, 1)
	return true
}
