// Package discipline implements PeerDisciplinarian (§4.8): a periodic scan
// disconnecting peers that violate timeout or multipass-validation
// contracts, grounded on chain_manager.rs's DisconnectStalledPeers
// receiver and its literal timeout constants.
package discipline

import (
	"context"
	"time"

	"github.com/abeychain/go-tezsync/chain/events"
	"github.com/abeychain/go-tezsync/chain/peer"
	"github.com/abeychain/go-tezsync/config"
)

// LevelSource reports the peer's last advertised level and whether the node
// is aware of any higher head; chain/manager wires this to chain/head.
type LevelSource func(p *peer.Peer) (peerLevel int64, knownHigher bool, lastLevelChange time.Time)

// Disciplinarian periodically scans the registry and disconnects peers
// violating §4.8's contracts. State-machine transitions (Active →
// Disconnecting/Blacklisted) are realized as Registry.Remove plus a
// PeerBlacklisted/disconnect event; the registry itself holds only
// Connected/Active peers, so Closed is simply "not in the registry."
type Disciplinarian struct {
	cfg      config.Config
	registry *peer.Registry
	bus      *events.Bus
	levels   LevelSource
	disconnect func(p *peer.Peer, reason string)
}

// New creates a Disciplinarian. disconnect is invoked once per peer that
// should be dropped; chain/manager wires it to Link.Close + Registry.Remove.
func New(cfg config.Config, registry *peer.Registry, bus *events.Bus, levels LevelSource, disconnect func(*peer.Peer, string)) *Disciplinarian {
	return &Disciplinarian{cfg: cfg, registry: registry, bus: bus, levels: levels, disconnect: disconnect}
}

// Run scans on cfg.DisciplinarianScanInterval until ctx is cancelled. In
// sandbox mode SilentPeerTimeout is already set to an effectively infinite
// duration by config.Config.ApplySandbox, which alone disables the
// SilentPeerTimeout-based checks below; the advertised-level check uses
// CurrentHeadLevelUpdateTimeout and is not affected by sandbox mode.
func (d *Disciplinarian) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.DisciplinarianScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.scan()
		}
	}
}

type peerDrop struct {
	peer   *peer.Peer
	reason string
}

func (d *Disciplinarian) scan() {
	var toDrop []peerDrop
	d.registry.Iter(func(p *peer.Peer) {
		if reason, drop := d.evaluate(p); drop {
			toDrop = append(toDrop, peerDrop{peer: p, reason: reason})
		}
	})
	for _, pd := range toDrop {
		d.disconnect(pd.peer, pd.reason)
	}
}

func (d *Disciplinarian) evaluate(p *peer.Peer) (string, bool) {
	if stale := p.Pipeline(peer.PipelineBlockHeaders).Stale(d.cfg.SilentPeerTimeout); len(stale) > 0 {
		return "silent on block-header request", true
	}
	if stale := p.Pipeline(peer.PipelineBlockOperations).Stale(d.cfg.SilentPeerTimeout); len(stale) > 0 {
		return "silent on block-operations request", true
	}
	if gap, pending := p.Pipeline(peer.PipelineCurrentHead).RequestResponseGap(); pending && gap > d.cfg.SilentPeerTimeout {
		return "silent on current-head request", true
	}
	if stale := p.Pipeline(peer.PipelineMempoolOperations).Stale(d.cfg.SilentPeerTimeout); len(stale) > 0 {
		return "mempool operations not supplied in time", true
	}
	if d.levels != nil {
		_, knownHigher, lastChange := d.levels(p)
		if knownHigher && !lastChange.IsZero() && time.Since(lastChange) > d.cfg.CurrentHeadLevelUpdateTimeout {
			return "advertised level stalled", true
		}
	}
	return "", false
}
