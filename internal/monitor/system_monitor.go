// Package monitor samples process and host resources and raises warnings
// when clip storage or memory runs low.
package monitor

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/tphakala/replayclip/internal/events"
	"github.com/tphakala/replayclip/internal/logger"
	"github.com/tphakala/replayclip/internal/observability/metrics"
)

// ResourceType represents the type of system resource being monitored
type ResourceType string

const (
	ResourceMemory ResourceType = "memory"
	ResourceDisk   ResourceType = "disk"
)

const defaultHysteresisPercent = 5.0

// Config controls the monitor.
type Config struct {
	Enabled           bool
	Interval          time.Duration
	MemoryWarning     float64 // host memory used percent
	DiskWarning       float64 // used percent of the filesystem holding DiskPath
	DiskPath          string
	HysteresisPercent float64
}

// Sample is one resource reading.
type Sample struct {
	ResidentMemory uint64
	CPUPercent     float64
	MemoryPercent  float64
	DiskPercent    float64
}

// Sampler reads resource usage.
type Sampler interface {
	Sample(ctx context.Context) (Sample, error)
}

// Publisher receives resource warnings. *events.EventBus satisfies it.
type Publisher interface {
	TryPublish(event events.Event) bool
}

// SystemMonitor periodically samples resources and publishes a warning
// event when a threshold is crossed.
type SystemMonitor struct {
	cfg       Config
	sampler   Sampler
	publisher Publisher
	metrics   *metrics.SystemMetrics

	mu        sync.Mutex
	inWarning map[ResourceType]bool
	last      Sample

	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    logger.Logger
}

// NewSystemMonitor creates a monitor. sampler defaults to the gopsutil
// sampler; publisher and m may be nil.
func NewSystemMonitor(cfg Config, sampler Sampler, publisher Publisher, m *metrics.SystemMetrics) *SystemMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.HysteresisPercent <= 0 {
		cfg.HysteresisPercent = defaultHysteresisPercent
	}
	if cfg.DiskPath == "" {
		cfg.DiskPath = "."
	}
	if sampler == nil {
		sampler = NewProcessSampler(cfg.DiskPath)
	}
	return &SystemMonitor{
		cfg:       cfg,
		sampler:   sampler,
		publisher: publisher,
		metrics:   m,
		inWarning: make(map[ResourceType]bool),
		log:       logger.Global().Module("monitor"),
	}
}

// Start begins monitoring system resources
func (m *SystemMonitor) Start() {
	if !m.cfg.Enabled {
		m.log.Debug("system monitoring is disabled")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.log.Info("starting resource monitoring",
		logger.Duration("interval", m.cfg.Interval),
		logger.Float64("memory_warning", m.cfg.MemoryWarning),
		logger.Float64("disk_warning", m.cfg.DiskWarning),
		logger.String("disk_path", m.cfg.DiskPath))

	m.wg.Go(func() { m.monitorLoop(ctx) })
}

// Stop stops the system monitor
func (m *SystemMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *SystemMonitor) monitorLoop(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Check takes one sample, updates gauges and evaluates thresholds.
func (m *SystemMonitor) Check(ctx context.Context) {
	s, err := m.sampler.Sample(ctx)
	if err != nil {
		m.log.Warn("failed to sample resources", logger.Error(err))
		return
	}

	m.mu.Lock()
	m.last = s
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ResidentMemory.Set(float64(s.ResidentMemory))
		m.metrics.CPUPercent.Set(s.CPUPercent)
		m.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))
	}

	if m.cfg.MemoryWarning > 0 {
		m.checkThreshold(ResourceMemory, s.MemoryPercent, m.cfg.MemoryWarning, s)
	}
	if m.cfg.DiskWarning > 0 {
		m.checkThreshold(ResourceDisk, s.DiskPercent, m.cfg.DiskWarning, s)
	}
}

// checkThreshold publishes once on entering the warning state and clears
// it when usage drops below the threshold minus hysteresis.
func (m *SystemMonitor) checkThreshold(resource ResourceType, current, threshold float64, s Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case current >= threshold:
		if m.inWarning[resource] {
			return
		}
		m.inWarning[resource] = true
		m.log.Warn("warning threshold exceeded",
			logger.String("resource", string(resource)),
			logger.String("current", fmt.Sprintf("%.2f%%", current)),
			logger.String("threshold", fmt.Sprintf("%.2f%%", threshold)))
		if m.publisher != nil {
			ev := events.New(events.KindResourceWarning, "monitor",
				fmt.Sprintf("%s usage %.1f%% exceeds %.1f%%", resource, current, threshold)).
				WithField("resource", string(resource)).
				WithField(events.FieldMemoryBytes, s.ResidentMemory)
			if !m.publisher.TryPublish(ev) {
				m.log.Debug("resource warning dropped by event bus")
			}
		}
	case m.inWarning[resource] && current < threshold-m.cfg.HysteresisPercent:
		m.inWarning[resource] = false
		m.log.Info("resource usage recovered",
			logger.String("resource", string(resource)),
			logger.String("current", fmt.Sprintf("%.2f%%", current)))
	}
}

// InWarning reports whether resource is currently above its threshold.
func (m *SystemMonitor) InWarning(resource ResourceType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inWarning[resource]
}

// LastSample returns the most recent reading.
func (m *SystemMonitor) LastSample() Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// ProcessSampler reads usage of the current process with gopsutil.
type ProcessSampler struct {
	diskPath string
	once     sync.Once
	proc     *process.Process
	procErr  error
}

// NewProcessSampler samples this process and the filesystem holding diskPath.
func NewProcessSampler(diskPath string) *ProcessSampler {
	return &ProcessSampler{diskPath: diskPath}
}

// Sample implements Sampler.
func (p *ProcessSampler) Sample(ctx context.Context) (Sample, error) {
	p.once.Do(func() {
		p.proc, p.procErr = process.NewProcessWithContext(ctx, int32(os.Getpid()))
	})
	if p.procErr != nil {
		return Sample{}, fmt.Errorf("failed to open process: %w", p.procErr)
	}

	var s Sample
	memInfo, err := p.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to read process memory: %w", err)
	}
	s.ResidentMemory = memInfo.RSS

	if cpuPercent, err := p.proc.PercentWithContext(ctx, 0); err == nil {
		s.CPUPercent = cpuPercent
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to read host memory: %w", err)
	}
	s.MemoryPercent = vm.UsedPercent

	usage, err := disk.UsageWithContext(ctx, p.diskPath)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to read disk usage of %s: %w", p.diskPath, err)
	}
	s.DiskPercent = usage.UsedPercent

	return s, nil
}
