// Package runtime samples the daemon's own Go runtime stats plus host CPU/RAM usage.
package runtime

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/vshulcz/pgstatsd/internal/domain"
	"github.com/vshulcz/pgstatsd/internal/ports"
)

// Sample names, relative to the collector prefix.
const (
	MHeapAlloc     = "runtime.heap_alloc"
	MHeapInuse     = "runtime.heap_inuse"
	MSys           = "runtime.sys"
	MNumGC         = "runtime.num_gc"
	MGoroutines    = "runtime.goroutines"
	TotalMemory    = "host.memory.total"
	FreeMemory     = "host.memory.free"
	CPUutilization = "host.cpu.utilization"
)

// Collector reads runtime and host gauges on demand.
type Collector struct {
	prefix  string
	vmem    func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	percent func(ctx context.Context) ([]float64, error)
}

var _ ports.SelfSampler = (*Collector)(nil)

// New creates a Collector whose sample names start with prefix.
func New(prefix string) *Collector {
	return &Collector{
		prefix: prefix,
		vmem:   mem.VirtualMemoryWithContext,
		percent: func(ctx context.Context) ([]float64, error) {
			return cpu.PercentWithContext(ctx, 0, false)
		},
	}
}

// Sample returns one gauge per stat. Host stats that cannot be read are left
// out; the error names the first failure.
func (c *Collector) Sample(ctx context.Context) ([]domain.MetricSample, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	out := []domain.MetricSample{
		c.gauge(MHeapAlloc, float64(ms.HeapAlloc)),
		c.gauge(MHeapInuse, float64(ms.HeapInuse)),
		c.gauge(MSys, float64(ms.Sys)),
		c.gauge(MNumGC, float64(ms.NumGC)),
		c.gauge(MGoroutines, float64(runtime.NumGoroutine())),
	}

	var firstErr error
	if vm, err := c.vmem(ctx); err == nil && vm != nil {
		out = append(out,
			c.gauge(TotalMemory, float64(vm.Total)),
			c.gauge(FreeMemory, float64(vm.Free)))
	} else if err != nil {
		firstErr = fmt.Errorf("virtual memory: %w", err)
	}
	if pct, err := c.percent(ctx); err == nil && len(pct) > 0 {
		out = append(out, c.gauge(CPUutilization, pct[0]))
	} else if err != nil && firstErr == nil {
		firstErr = fmt.Errorf("cpu percent: %w", err)
	}
	return out, firstErr
}

func (c *Collector) gauge(name string, v float64) domain.MetricSample {
	if c.prefix != "" {
		name = c.prefix + domain.KeyDelimiter + name
	}
	return domain.MetricSample{Name: name, Kind: domain.KindGauge, Value: v}
}
