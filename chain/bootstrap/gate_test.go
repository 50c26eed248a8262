package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abeychain/go-tezsync/chain/types"
)

// TestGateScenario covers scenario 5: with threshold=2, the first sync-done
// report does not open the gate; the second, with local within threshold
// of remote best, does.
func TestGateScenario(t *testing.T) {
	g := New(2, 0)
	require.False(t, g.IsBootstrapped())

	require.False(t, g.ReportSyncDone("peerA", 10, 10))
	require.False(t, g.IsBootstrapped())

	require.True(t, g.ReportSyncDone("peerB", 10, 10))
	require.True(t, g.IsBootstrapped())
}

// TestGateStaysTrue covers invariant 5: once true, always true.
func TestGateStaysTrue(t *testing.T) {
	g := New(1, 5)
	require.True(t, g.ReportSyncDone("peerA", 100, 100))
	require.True(t, g.ReportSyncDone("peerA", 0, 1000)) // level regression doesn't matter anymore
	require.True(t, g.IsBootstrapped())
}

func TestGateRequiresWithinThreshold(t *testing.T) {
	g := New(1, types.Level(2))
	require.False(t, g.ReportSyncDone("peerA", 0, 10)) // gap of 10 exceeds threshold of 2
	require.True(t, g.ReportSyncDone("peerA", 9, 10))  // same peer reporting again, now within threshold
}
