package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SystemMetrics reports resource usage of the process.
type SystemMetrics struct {
	ResidentMemory prometheus.Gauge
	CPUPercent     prometheus.Gauge
	Goroutines     prometheus.Gauge

	registry *prometheus.Registry
}

// NewSystemMetrics creates and registers the process metrics.
func NewSystemMetrics(registry *prometheus.Registry) (*SystemMetrics, error) {
	m := &SystemMetrics{registry: registry}
	m.ResidentMemory = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "replay_process_resident_memory_bytes",
		Help: "Resident set size of the process",
	})
	m.CPUPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "replay_process_cpu_percent",
		Help: "CPU usage of the process in percent of one core",
	})
	m.Goroutines = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "replay_goroutines",
		Help: "Number of running goroutines",
	})
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register system metrics: %w", err)
	}
	return m, nil
}

// Describe implements the prometheus.Collector interface.
func (m *SystemMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ResidentMemory.Describe(ch)
	m.CPUPercent.Describe(ch)
	m.Goroutines.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *SystemMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.ResidentMemory
	ch <- m.CPUPercent
	ch <- m.Goroutines
}
