package feeder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abeychain/go-tezsync/chain/apply"
	"github.com/abeychain/go-tezsync/chain/events"
	"github.com/abeychain/go-tezsync/chain/store/memstore"
	"github.com/abeychain/go-tezsync/chain/types"
)

func chainOf(n int) (*memstore.Store, []types.Hash) {
	st := memstore.New()
	hashes := make([]types.Hash, n+1) // hashes[0] is genesis, pre-applied
	genesisMeta := types.NewBlockMeta(0, types.Hash{})
	genesisMeta.MarkOperationsPresent(0)
	genesisMeta.MarkOperationsPresent(1)
	genesisMeta.MarkOperationsPresent(2)
	genesisMeta.MarkOperationsPresent(3)
	genesisMeta.MarkApplied()
	st.PutMeta(hashes[0], genesisMeta)

	pred := hashes[0]
	for i := 1; i <= n; i++ {
		h := types.BytesToHash([]byte{byte(i)})
		hashes[i] = h
		header := &types.BlockHeader{Hash: h, Level: types.Level(i), Predecessor: pred, Fitness: types.Fitness{byte(i)}}
		st.PutHeader(header)
		meta := types.NewBlockMeta(header.Level, pred)
		for p := types.PassIndex(0); p <= types.MaxPassIndex; p++ {
			meta.MarkOperationsPresent(p)
		}
		st.PutMeta(h, meta)
		if predMeta, err := st.GetMeta(pred); err == nil {
			predMeta.SetSuccessor(h)
		}
		pred = h
	}
	return st, hashes
}

// TestFeederAppliesInCausalOrder covers scenario 1 (cold start, single
// peer) and invariants 1-3: a complete 5-block chain applies in strict
// predecessor order and emits BlockApplied for each.
func TestFeederAppliesInCausalOrder(t *testing.T) {
	st, hashes := chainOf(5)
	bus := events.New()
	var applied []types.Hash
	onApplied := func(hash types.Hash, level types.Level, header types.BlockHeader) {
		applied = append(applied, hash)
	}

	f := New(types.Hash{}, hashes[0], st, st, st, apply.NewStub(), bus, onApplied)
	// Each block needs two step()s: one that applies it, one that advances
	// the cursor onto its successor once recorded; cap the loop generously.
	for i := 0; i < 32 && len(applied) < 5; i++ {
		if _, err := f.step(); err != nil {
			require.NoError(t, err)
		}
	}

	require.Equal(t, hashes[1:], applied)
	for i := 1; i <= 5; i++ {
		meta, err := st.GetMeta(hashes[i])
		require.NoError(t, err)
		require.True(t, meta.Applied())
	}
}

func TestFeederParksWithoutOperations(t *testing.T) {
	st := memstore.New()
	genesis := types.Hash{}
	meta := types.NewBlockMeta(0, types.Hash{})
	meta.MarkApplied()
	for p := types.PassIndex(0); p <= types.MaxPassIndex; p++ {
		meta.MarkOperationsPresent(p)
	}
	st.PutMeta(genesis, meta)

	child := types.BytesToHash([]byte{1})
	st.PutHeader(&types.BlockHeader{Hash: child, Level: 1, Predecessor: genesis})
	childMeta := types.NewBlockMeta(1, genesis)
	st.PutMeta(child, childMeta)
	meta.SetSuccessor(child)

	bus := events.New()
	f := New(types.Hash{}, genesis, st, st, st, apply.NewStub(), bus, nil)

	progressed, err := f.step() // advances cursor to child
	require.NoError(t, err)
	require.True(t, progressed)

	progressed, err = f.step() // child's operations are incomplete: park
	require.NoError(t, err)
	require.False(t, progressed)
	require.False(t, childMeta.Applied())
}

// TestInjectBlockDuplicate covers scenario 6: duplicate injection yields
// AlreadyKnown and no second apply.
func TestInjectBlockDuplicate(t *testing.T) {
	st := memstore.New()
	genesis := types.Hash{}
	genesisMeta := types.NewBlockMeta(0, types.Hash{})
	genesisMeta.MarkApplied()
	st.PutMeta(genesis, genesisMeta)

	bus := events.New()
	f := New(types.Hash{}, genesis, st, st, st, apply.NewStub(), bus, nil)

	header := &types.BlockHeader{Hash: types.BytesToHash([]byte{6}), Level: 1, Predecessor: genesis}
	ops := []types.Operation{
		{Hash: types.BytesToHash([]byte{0xa0}), Pass: 0},
		{Hash: types.BytesToHash([]byte{0xa1}), Pass: 1},
		{Hash: types.BytesToHash([]byte{0xa2}), Pass: 2},
		{Hash: types.BytesToHash([]byte{0xa3}), Pass: 3},
	}

	require.NoError(t, f.InjectBlock(header, ops))
	require.ErrorIs(t, f.InjectBlock(header, ops), ErrAlreadyKnown)

	meta, err := st.GetMeta(header.Hash)
	require.NoError(t, err)
	require.True(t, meta.OperationsComplete())
	require.False(t, meta.Applied()) // apply happens via the cursor loop, not injection itself
}
