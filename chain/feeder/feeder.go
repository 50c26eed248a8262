// Package feeder implements Chain-Feeder (§4.4): a strictly single-threaded
// cursor walk through the predecessor graph, invoking ApplyEngine on blocks
// whose operations are complete, in order.
//
// Grounded on original_source/shell/src/chain_feeder.rs's
// feed_chain_to_protocol, but with thread::park()/unpark() replaced by a
// capacity-1 wake channel drained at the top of each loop iteration, per
// the explicit re-architecture note in spec §9: the channel's empty state
// is the parking condition.
package feeder

import (
	"context"
	"errors"

	"github.com/abeychain/go-tezsync/chain/apply"
	"github.com/abeychain/go-tezsync/chain/events"
	"github.com/abeychain/go-tezsync/chain/message"
	"github.com/abeychain/go-tezsync/chain/store"
	"github.com/abeychain/go-tezsync/chain/types"
	"github.com/inconshreveable/log15"
)

// ErrAlreadyKnown is returned by InjectBlock when the hash is already
// stored (scenario 6: duplicate injection yields no second apply).
var ErrAlreadyKnown = errors.New("feeder: block already known")

// Feeder owns the cursor and the "applied" commit point. No other
// component mutates meta.applied or the local head.
type Feeder struct {
	chainID types.Hash
	headers store.HeaderStore
	metas   store.MetaStore
	ops     store.OperationStore
	engine  apply.Engine
	bus     *events.Bus
	log     log15.Logger

	cursor types.Hash
	wake   chan struct{}

	onApplied func(hash types.Hash, level types.Level, header types.BlockHeader)
}

// New creates a Feeder starting from the persisted "last applied" hash.
// onApplied is invoked synchronously after each successful apply, before
// the loop advances the cursor; chain/manager wires it to chain/head's
// commit and chain/advertiser's diffusion.
func New(chainID types.Hash, start types.Hash, headers store.HeaderStore, metas store.MetaStore, ops store.OperationStore, engine apply.Engine, bus *events.Bus, onApplied func(types.Hash, types.Level, types.BlockHeader)) *Feeder {
	return &Feeder{
		chainID:   chainID,
		headers:   headers,
		metas:     metas,
		ops:       ops,
		engine:    engine,
		bus:       bus,
		log:       log15.New("module", "feeder"),
		cursor:    start,
		wake:      make(chan struct{}, 1),
		onApplied: onApplied,
	}
}

// Wake signals the feeder to re-examine its cursor; non-blocking, so a
// burst of arrivals collapses to a single wake-up, matching an unpark()
// call that arrives while already running.
func (f *Feeder) Wake() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Run drives the cursor loop until ctx is cancelled. On cancellation, the
// feeder finishes at most the currently-running apply invocation and then
// exits; partial meta updates from that apply are already flushed by the
// time Apply returns (§5 cancellation policy).
func (f *Feeder) Run(ctx context.Context) {
	for {
		progressed, err := f.step()
		if err != nil {
			f.log.Error("feeder step failed", "err", err)
		}
		if progressed {
			continue // more to do without parking
		}

		select {
		case <-ctx.Done():
			return
		case <-f.wake:
			continue
		}
	}
}

// step performs at most one iteration of the §4.4 loop body, returning
// whether it advanced (so Run can avoid parking when there is more work).
func (f *Feeder) step() (bool, error) {
	meta, err := f.metas.GetMeta(f.cursor)
	if err != nil {
		return false, nil // no meta yet for the cursor: park
	}

	if meta.Applied() {
		if succ, ok := meta.Successor(); ok {
			f.cursor = succ
			return true, nil
		}
		return false, nil // park: no successor recorded yet
	}

	header, err := f.headers.GetHeader(f.cursor)
	if err != nil {
		return false, nil // header not yet present: park
	}
	if !meta.OperationsComplete() {
		return false, nil // operations incomplete: park
	}

	ops := f.collectOperations(header.Hash)
	result, err := f.engine.Apply(f.chainID, header, ops)
	if err != nil {
		f.bus.Publish(events.Err{Error: message.New(message.KindTransientIO, "feeder", err)})
		return false, err
	}
	if !result.Accepted {
		f.bus.Publish(events.ApplyFailed{Hash: header.Hash, Reason: result.Reason})
		return false, nil // halt on this branch until a dominating branch re-resolves it
	}

	meta.MarkApplied()
	f.metas.PutMeta(header.Hash, meta)
	f.bus.Publish(events.BlockApplied{Hash: header.Hash, Level: header.Level, Header: *header})
	if f.onApplied != nil {
		f.onApplied(header.Hash, header.Level, *header)
	}
	return true, nil
}

func (f *Feeder) collectOperations(hash types.Hash) []types.Operation {
	var all []types.Operation
	for p := types.PassIndex(0); p <= types.MaxPassIndex; p++ {
		ops, err := f.ops.GetOperations(types.OperationsKey{BlockHash: hash, Pass: p})
		if err != nil {
			continue
		}
		all = append(all, ops...)
	}
	return all
}

// InjectBlock implements the baker path (scenario 6): a locally produced
// block with full operations is stored, marked complete, and woken into the
// cursor loop. Duplicate injection is reported as AlreadyKnown without a
// second apply.
func (f *Feeder) InjectBlock(header *types.BlockHeader, ops []types.Operation) error {
	if f.headers.HasHeader(header.Hash) {
		return ErrAlreadyKnown
	}
	if err := f.headers.PutHeader(header); err != nil {
		return err
	}
	meta := types.NewBlockMeta(header.Level, header.Predecessor)
	for _, op := range ops {
		meta.MarkOperationsPresent(op.Pass)
	}
	byPass := make(map[types.PassIndex][]types.Operation)
	for _, op := range ops {
		byPass[op.Pass] = append(byPass[op.Pass], op)
	}
	for pass, bundle := range byPass {
		f.ops.PutOperations(types.OperationsKey{BlockHash: header.Hash, Pass: pass}, bundle)
	}
	if err := f.metas.PutMeta(header.Hash, meta); err != nil {
		return err
	}
	if pred, err := f.metas.GetMeta(header.Predecessor); err == nil {
		pred.SetSuccessor(header.Hash)
		f.metas.PutMeta(header.Predecessor, pred)
	}
	f.Wake()
	return nil
}
