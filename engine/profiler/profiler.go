package profiler

import (
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/diag"
)

// passStat accumulates the time spent in one render pass since the last report.
type passStat struct {
	total time.Duration
	worst time.Duration
	count int
}

// Profiler tracks frame rate, memory statistics, and per-pass CPU time for
// performance monitoring. Stats are written to the diagnostic logger at a
// configurable interval.
type Profiler struct {
	mu *sync.Mutex

	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	passes map[string]*passStat
	order  []string
}

// ProfilerBuilderOption configures a Profiler created by NewProfiler.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often Tick logs. Zero logs on every tick.
//
// Parameters:
//   - d: the report interval
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d >= 0 {
			p.updateInterval = d
		}
	}
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		mu:             &sync.Mutex{},
		lastTime:       time.Now(),
		updateInterval: time.Second,
		passes:         make(map[string]*passStat),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Record adds one measurement of pass. Its signature matches
// renderer.PassTimer so it can be handed to renderer.WithPassTimer.
//
// Parameters:
//   - pass: the pass name
//   - elapsed: the CPU time the pass took
func (p *Profiler) Record(pass string, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.passes[pass]
	if !ok {
		s = &passStat{}
		p.passes[pass] = s
		p.order = append(p.order, pass)
	}
	s.total += elapsed
	s.worst = max(s.worst, elapsed)
	s.count++
}

// PassAverage returns the mean time of pass since the last report, or zero
// if the pass was not recorded.
func (p *Profiler) PassAverage(pass string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.passes[pass]
	if !ok || s.count == 0 {
		return 0
	}
	return s.total / time.Duration(s.count)
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times,
// total memory, and the mean and worst time of every recorded pass.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := 0.0
	if s := elapsed.Seconds(); s > 0 {
		fps = float64(p.frameCount) / s
	}

	runtime.ReadMemStats(&p.memStats)
	// Alloc: live heap bytes. TotalAlloc: cumulative heap bytes, tracks churn.
	// Sys: bytes obtained from the OS.
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocRateMB := 0.0
	if s := elapsed.Seconds(); s > 0 {
		allocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / s
	}

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	log := diag.Logger()
	log.Info("frame stats",
		slog.Float64("fps", fps),
		slog.Float64("heap_mb", allocMB),
		slog.Float64("alloc_mb_per_s", allocRateMB),
		slog.Uint64("gc", uint64(gcCount)),
		slog.Uint64("gc_last_us", lastPauseUs),
		slog.Uint64("gc_max_us", maxPauseUs),
		slog.Float64("sys_mb", sysMB),
	)
	for _, name := range slices.Sorted(slices.Values(p.order)) {
		s := p.passes[name]
		if s.count == 0 {
			continue
		}
		log.Debug("pass stats",
			slog.String("pass", name),
			slog.Duration("mean", s.total/time.Duration(s.count)),
			slog.Duration("worst", s.worst),
			slog.Int("samples", s.count),
		)
		*s = passStat{}
	}

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
