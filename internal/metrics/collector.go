// Package metrics samples system load and parse throughput while a
// pbftool command runs.
package metrics

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Snapshot is one metrics sample.
type Snapshot struct {
	CPUPercent        float64
	ProcessCPUPercent float64
	IOWaitPercent     float64
	MemoryUsedGB      float64
	MemoryPercent     float64
	Entities          int64
	EntityRate        float64
	Timestamp         time.Time
}

// Collector periodically samples system metrics and the entity
// counter and logs them. Commands bump the counter from their sinks.
type Collector struct {
	interval time.Duration
	logger   *zap.Logger
	proc     *process.Process

	entities atomic.Int64

	lastCPUTimes cpu.TimesStat
	hasCPUTimes  bool
	lastEntities int64
	lastSample   time.Time

	mu   sync.RWMutex
	last *Snapshot
}

// NewCollector returns a collector logging one sample per interval.
func NewCollector(interval time.Duration, logger *zap.Logger) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Collector{
		interval: interval,
		logger:   logger,
		proc:     proc,
	}
}

// AddEntities bumps the throughput counter. Safe to call from several
// worker goroutines.
func (c *Collector) AddEntities(n int64) {
	c.entities.Add(n)
}

// Start runs the sampling loop until the context is cancelled.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// First sample establishes the CPU-times baseline.
	c.collect()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("metrics collection stopped")
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

// Last returns the most recent sample, or nil before the first one.
func (c *Collector) Last() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func (c *Collector) collect() {
	now := time.Now()
	s := &Snapshot{
		Timestamp: now,
		Entities:  c.entities.Load(),
	}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	if c.proc != nil {
		if procCPU, err := c.proc.Percent(0); err == nil {
			s.ProcessCPUPercent = procCPU
		}
	}
	s.IOWaitPercent = c.ioWait()

	if vmem, err := mem.VirtualMemory(); err == nil {
		s.MemoryPercent = vmem.UsedPercent
		s.MemoryUsedGB = float64(vmem.Used) / (1024 * 1024 * 1024)
	}

	if !c.lastSample.IsZero() {
		elapsed := now.Sub(c.lastSample).Seconds()
		if elapsed > 0 {
			s.EntityRate = float64(s.Entities-c.lastEntities) / elapsed
		}
	}
	c.lastEntities = s.Entities
	c.lastSample = now

	c.mu.Lock()
	c.last = s
	c.mu.Unlock()

	c.logger.Info("system metrics",
		zap.Float64("sys_cpu", s.CPUPercent),
		zap.Float64("proc_cpu", s.ProcessCPUPercent),
		zap.Float64("iowait", s.IOWaitPercent),
		zap.Float64("mem_pct", s.MemoryPercent),
		zap.Float64("mem_used_gb", s.MemoryUsedGB),
		zap.Int64("entities", s.Entities),
		zap.Float64("entities_per_sec", s.EntityRate),
	)
}

func (c *Collector) ioWait() float64 {
	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		return 0
	}
	current := times[0]

	if !c.hasCPUTimes {
		c.lastCPUTimes = current
		c.hasCPUTimes = true
		return 0
	}

	last := c.lastCPUTimes
	totalDelta := (current.User - last.User) +
		(current.System - last.System) +
		(current.Idle - last.Idle) +
		(current.Iowait - last.Iowait) +
		(current.Irq - last.Irq) +
		(current.Softirq - last.Softirq) +
		(current.Steal - last.Steal)
	iowaitDelta := current.Iowait - last.Iowait
	c.lastCPUTimes = current

	if totalDelta <= 0 {
		return 0
	}
	return (iowaitDelta / totalDelta) * 100
}
