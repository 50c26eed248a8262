// Package baker is the supplemented injected-block client (scenario 6),
// grounded on original_source/apps/baker/src/client.rs and
// .../machine/state.rs. Forging and signing operations is out of scope
// (Non-goal: pluggable application logic); this package only exercises the
// chain-sync-facing half of the baker: injecting a locally produced block
// and observing the result.
package baker

import (
	"time"

	"github.com/abeychain/go-tezsync/chain/feeder"
	"github.com/abeychain/go-tezsync/chain/types"
)

// StateKind mirrors machine/state.rs's State enum, trimmed to the
// transitions the chain-sync-facing client needs to track.
type StateKind int

const (
	Initial StateKind = iota
	Ready
)

// Config mirrors machine/state.rs::Config field-for-field.
type Config struct {
	ChainID                types.Hash
	QuorumSize             int
	MinimalBlockDelay      time.Duration
	DelayIncrementPerRound time.Duration
}

// LevelState/RoundState are opaque to the chain-sync core (they drive
// forging decisions, which are out of scope); the client only needs to
// know it has reached Ready before it may inject blocks.
type LevelState struct{ Level types.Level }
type RoundState struct{ Round int }

// State is the client's current machine state.
type State struct {
	Kind  StateKind
	Cfg   Config
	Level LevelState
	Round RoundState
}

// Injector is the chain-sync surface the baker client drives: InjectBlock
// implements scenario 6 (manager.InjectBlock), returning feeder.ErrAlreadyKnown
// on a duplicate injection.
type Injector interface {
	InjectBlock(header *types.BlockHeader, ops []types.Operation) error
}

// Client wraps an Injector with the minimal state machine needed to gate
// injection on chain_id/quorum readiness, per machine/state.rs.
type Client struct {
	state    State
	injector Injector
}

// New creates a Client in the Initial state.
func New(injector Injector) *Client {
	return &Client{injector: injector}
}

// BecomeReady transitions the client to Ready once chain constants and the
// initial level/round state are known, mirroring client.rs's constant
// bootstrap sequence collapsed into a single call (the RPC calls that
// produce those constants are out of scope here).
func (c *Client) BecomeReady(cfg Config, level LevelState, round RoundState) {
	c.state = State{Kind: Ready, Cfg: cfg, Level: level, Round: round}
}

// Propose injects a locally forged block. It is a no-op error path
// (ErrNotReady) until BecomeReady has run once.
func (c *Client) Propose(header *types.BlockHeader, ops []types.Operation) error {
	if c.state.Kind != Ready {
		return ErrNotReady
	}
	return c.injector.InjectBlock(header, ops)
}

// ErrAlreadyKnown re-exports feeder's duplicate-injection error so callers
// of this package don't need to import chain/feeder directly.
var ErrAlreadyKnown = feeder.ErrAlreadyKnown

// ErrNotReady is returned by Propose before BecomeReady has run.
var ErrNotReady = stateErr("baker: client not ready")

type stateErr string

func (e stateErr) Error() string { return string(e) }
