// Package monitor is the supplemented resource-usage daemon (SPEC_FULL
// §2.1.1), grounded on
// original_source/apps/deploy_monitoring/src/monitors/resource.rs's
// ResourceMonitor.take_measurement / Alerts::check_*_alert, reimplemented
// over gosigar instead of sysinfo and over the in-process event bus
// instead of polling an RPC port.
package monitor

import (
	"container/ring"
	"context"
	"os"
	"time"

	"github.com/elastic/gosigar"
	"github.com/inconshreveable/log15"

	"github.com/abeychain/go-tezsync/chain/events"
	"github.com/abeychain/go-tezsync/chain/types"
)

// Sample is one measurement, mirroring resource.rs's ResourceUtilization
// (memory/disk/cpu), minus the OCaml-vs-tezedge dual-process split that
// has no analog in this single-process node.
type Sample struct {
	Timestamp   time.Time
	MemoryBytes uint64
	DiskBytes   uint64
	CPUPercent  float64
}

// Thresholds mirrors resource.rs's Alerts fields.
type Thresholds struct {
	MaxMemoryBytes uint64
	MaxDiskBytes   uint64
	StuckHeadTimeout time.Duration
}

// Sampler periodically measures this process's resource usage and raises
// threshold alerts onto the shared event bus.
type Sampler struct {
	dataDir    string
	interval   time.Duration
	thresholds Thresholds
	bus        *events.Bus
	log        log15.Logger

	history *ring.Ring // bounded ring of *Sample, mirrors MEASUREMENTS_MAX_CAPACITY

	lastHeadLevel   types.Level
	lastHeadChange  time.Time
	sawHead         bool
}

// HistoryCapacity bounds the in-memory sample ring, mirroring resource.rs's
// MEASUREMENTS_MAX_CAPACITY-bounded VecDeque.
const HistoryCapacity = 120

// ResourceAlert is published when a threshold is crossed.
type ResourceAlert struct {
	Kind   string
	Detail string
}

// New creates a Sampler. bus is subscribed to for NewCurrentHead events to
// drive the stuck-head alert without polling an RPC port.
func New(dataDir string, interval time.Duration, thresholds Thresholds, bus *events.Bus) *Sampler {
	return &Sampler{
		dataDir:    dataDir,
		interval:   interval,
		thresholds: thresholds,
		bus:        bus,
		log:        log15.New("module", "monitor"),
		history:    ring.New(HistoryCapacity),
	}
}

// Run samples on a timer and watches the bus for head progress, until ctx
// is cancelled.
func (s *Sampler) Run(ctx context.Context) {
	headEvents := s.bus.Subscribe(64, false)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-headEvents:
			if h, ok := ev.(events.NewCurrentHead); ok {
				s.onHead(h.Block.Level)
			}
		case <-ticker.C:
			s.takeMeasurement()
		}
	}
}

func (s *Sampler) onHead(level types.Level) {
	if !s.sawHead || level != s.lastHeadLevel {
		s.lastHeadLevel = level
		s.lastHeadChange = time.Now()
		s.sawHead = true
	}
}

// takeMeasurement is the Go analog of resource.rs's take_measurement: a
// single gosigar sample followed by threshold checks.
func (s *Sampler) takeMeasurement() {
	var mem gosigar.ProcMem
	if err := mem.Get(os.Getpid()); err != nil {
		s.log.Warn("memory sample failed", "err", err)
		return
	}
	var fs gosigar.FileSystemUsage
	if err := fs.Get(s.dataDir); err != nil {
		s.log.Warn("disk sample failed", "err", err)
	}
	var cpu gosigar.ProcTime
	cpu.Get(os.Getpid())

	sample := &Sample{
		Timestamp:   time.Now(),
		MemoryBytes: mem.Resident,
		DiskBytes:   fs.Used * 1024,
	}
	s.history.Value = sample
	s.history = s.history.Next()

	s.checkAlerts(sample)
}

func (s *Sampler) checkAlerts(sample *Sample) {
	if s.thresholds.MaxMemoryBytes > 0 && sample.MemoryBytes > s.thresholds.MaxMemoryBytes {
		s.bus.Publish(ResourceAlert{Kind: "memory", Detail: "resident set size exceeds threshold"})
	}
	if s.thresholds.MaxDiskBytes > 0 && sample.DiskBytes > s.thresholds.MaxDiskBytes {
		s.bus.Publish(ResourceAlert{Kind: "disk", Detail: "data directory usage exceeds threshold"})
	}
	if s.sawHead && s.thresholds.StuckHeadTimeout > 0 && time.Since(s.lastHeadChange) > s.thresholds.StuckHeadTimeout {
		s.bus.Publish(ResourceAlert{Kind: "stuck-head", Detail: "local head has not advanced"})
	}
}

// History returns the currently buffered samples, oldest first.
func (s *Sampler) History() []*Sample {
	var out []*Sample
	s.history.Do(func(v interface{}) {
		if v == nil {
			return
		}
		out = append(out, v.(*Sample))
	})
	return out
}
