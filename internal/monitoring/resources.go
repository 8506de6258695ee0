package monitoring

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

var (
	memoryUsageBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "exchange_rate_ws_memory_bytes",
		Help: "Resident memory usage of the process, in bytes",
	})

	goroutinesActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "exchange_rate_ws_goroutines_active",
		Help: "Current number of goroutines",
	})
)

func init() {
	prometheus.MustRegister(memoryUsageBytes, goroutinesActive)
}

// ResourceSampler periodically samples process memory and goroutine
// counts via gopsutil and publishes them as Prometheus gauges.
type ResourceSampler struct {
	interval time.Duration
	logger   zerolog.Logger
	proc     *process.Process
}

// NewResourceSampler builds a sampler for the current process.
// Failure to resolve the process handle is logged, not fatal: sampling
// simply reports zero values in that case.
func NewResourceSampler(interval time.Duration, logger zerolog.Logger) *ResourceSampler {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn().Err(err).Msg("failed to resolve process handle, resource sampling disabled")
	}
	return &ResourceSampler{interval: interval, logger: logger, proc: proc}
}

// Run samples at the configured interval until ctx is canceled.
func (r *ResourceSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sample()
		}
	}
}

func (r *ResourceSampler) sample() {
	goroutinesActive.Set(float64(runtime.NumGoroutine()))

	if r.proc == nil {
		return
	}
	memInfo, err := r.proc.MemoryInfo()
	if err != nil {
		r.logger.Debug().Err(err).Msg("failed to read process memory info")
		return
	}
	memoryUsageBytes.Set(float64(memInfo.RSS))
}

// Snapshot is a point-in-time read used by the health endpoint.
type Snapshot struct {
	MemoryBytes uint64 `json:"memory_bytes"`
	Goroutines  int    `json:"goroutines"`
}

// Sample returns a Snapshot for immediate use, independent of the
// periodic Run loop's cached gauges.
func (r *ResourceSampler) Sample() Snapshot {
	snap := Snapshot{Goroutines: runtime.NumGoroutine()}
	if r.proc == nil {
		return snap
	}
	if memInfo, err := r.proc.MemoryInfo(); err == nil {
		snap.MemoryBytes = memInfo.RSS
	}
	return snap
}
