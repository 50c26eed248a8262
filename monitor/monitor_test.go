package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abeychain/go-tezsync/chain/events"
)

func TestCheckAlertsMemoryThreshold(t *testing.T) {
	bus := events.New()
	alerts := bus.Subscribe(8, true)
	s := New(t.TempDir(), time.Second, Thresholds{MaxMemoryBytes: 100}, bus)

	s.checkAlerts(&Sample{MemoryBytes: 200})

	select {
	case ev := <-alerts:
		ra, ok := ev.(ResourceAlert)
		require.True(t, ok)
		require.Equal(t, "memory", ra.Kind)
	default:
		t.Fatal("expected a memory ResourceAlert")
	}
}

func TestCheckAlertsStuckHead(t *testing.T) {
	bus := events.New()
	alerts := bus.Subscribe(8, true)
	s := New(t.TempDir(), time.Second, Thresholds{StuckHeadTimeout: time.Millisecond}, bus)

	s.onHead(1)
	time.Sleep(5 * time.Millisecond)
	s.checkAlerts(&Sample{})

	select {
	case ev := <-alerts:
		ra, ok := ev.(ResourceAlert)
		require.True(t, ok)
		require.Equal(t, "stuck-head", ra.Kind)
	default:
		t.Fatal("expected a stuck-head ResourceAlert")
	}
}

func TestHistoryBoundedByCapacity(t *testing.T) {
	bus := events.New()
	s := New(t.TempDir(), time.Second, Thresholds{}, bus)
	for i := 0; i < HistoryCapacity+10; i++ {
		s.history.Value = &Sample{MemoryBytes: uint64(i)}
		s.history = s.history.Next()
	}
	require.LessOrEqual(t, len(s.History()), HistoryCapacity)
}
