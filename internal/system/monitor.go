// Package system reports resource usage and identity of the host the store
// manages.
package system

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// DefaultInterval is how often the collector samples the host.
const DefaultInterval = 2 * time.Second

// Stats represents system resource usage (percentages as integers)
type Stats struct {
	CPU    int `json:"cpu"`
	Memory int `json:"memory"`
	Disk   int `json:"disk"`
}

// HostInfo identifies the machine.
type HostInfo struct {
	Hostname      string `json:"hostname"`
	Platform      string `json:"platform"`
	KernelVersion string `json:"kernelVersion"`
	Uptime        uint64 `json:"uptime"`
}

// SampleFunc takes one reading of the host.
type SampleFunc func(ctx context.Context) Stats

// Collector samples host usage in the background so readers get the last
// snapshot without blocking on a CPU measurement.
type Collector struct {
	sample   SampleFunc
	interval time.Duration
	logger   *slog.Logger

	mu    sync.RWMutex
	stats Stats
	once  sync.Once
}

// NewCollector creates a collector backed by gopsutil.
func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{
		sample:   Sample,
		interval: DefaultInterval,
		logger:   logger,
	}
}

// NewCollectorWith creates a collector with a custom sampler and interval.
func NewCollectorWith(sample SampleFunc, interval time.Duration, logger *slog.Logger) *Collector {
	return &Collector{sample: sample, interval: interval, logger: logger}
}

// Start begins background collection until ctx is done. Later calls are
// no-ops.
func (c *Collector) Start(ctx context.Context) {
	c.once.Do(func() {
		go c.loop(ctx)
	})
}

func (c *Collector) loop(ctx context.Context) {
	c.collect(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("stats collector stopped")
			return
		case <-ticker.C:
			c.collect(ctx)
		}
	}
}

func (c *Collector) collect(ctx context.Context) {
	stats := c.sample(ctx)

	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()
}

// Stats returns the last snapshot; all zero before the first sample.
func (c *Collector) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Sample reads CPU, memory and root filesystem usage. The CPU reading
// blocks for one second. Failed readings stay zero.
func Sample(ctx context.Context) Stats {
	var stats Stats

	cpuPercent, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err == nil && len(cpuPercent) > 0 {
		stats.CPU = int(math.Round(cpuPercent[0]))
	}

	memStats, err := mem.VirtualMemoryWithContext(ctx)
	if err == nil {
		stats.Memory = int(math.Round(memStats.UsedPercent))
	}

	diskStats, err := disk.UsageWithContext(ctx, "/")
	if err == nil {
		stats.Disk = int(math.Round(diskStats.UsedPercent))
	}

	return stats
}

// Info returns the host identity, or an empty value when it cannot be read.
func Info(ctx context.Context) HostInfo {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return HostInfo{}
	}
	return HostInfo{
		Hostname:      info.Hostname,
		Platform:      info.Platform,
		KernelVersion: info.KernelVersion,
		Uptime:        info.Uptime,
	}
}
