package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics covers event publishing to the broker.
type MQTTMetrics struct {
	Connected       prometheus.Gauge       // 1 while the broker session is up
	Publishes       *prometheus.CounterVec // by topic and status
	PublishDuration prometheus.Histogram
	PayloadBytes    prometheus.Histogram
	ConnectFailures prometheus.Counter // initial connects and lost sessions
	Reconnects      prometheus.Counter

	registry *prometheus.Registry
}

// NewMQTTMetrics creates and registers the MQTT metrics.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

func (m *MQTTMetrics) initMetrics() {
	m.Connected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "replayclip_mqtt_connected",
		Help: "Whether the event publisher is connected to the broker",
	})

	m.Publishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replayclip_mqtt_publishes_total",
			Help: "Event publish attempts by topic and status",
		},
		[]string{"topic", "status"},
	)

	m.PublishDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "replayclip_mqtt_publish_duration_seconds",
		Help:    "Time until the broker acknowledged a publish",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	m.PayloadBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "replayclip_mqtt_payload_bytes",
		Help:    "Size of published event payloads",
		Buckets: prometheus.ExponentialBuckets(128, 2, 8),
	})

	m.ConnectFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "replayclip_mqtt_connect_failures_total",
		Help: "Failed connects and lost broker sessions",
	})

	m.Reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "replayclip_mqtt_reconnects_total",
		Help: "Reconnect attempts after a lost session",
	})
}

// SetConnected records the broker session state.
func (m *MQTTMetrics) SetConnected(connected bool) {
	if connected {
		m.Connected.Set(1)
		return
	}
	m.Connected.Set(0)
}

// RecordPublish records one publish attempt to topic.
func (m *MQTTMetrics) RecordPublish(topic string, payloadBytes int, err error, elapsed time.Duration) {
	if err != nil {
		m.Publishes.WithLabelValues(topic, OutcomeError).Inc()
		return
	}
	m.Publishes.WithLabelValues(topic, OutcomeSuccess).Inc()
	m.PublishDuration.Observe(elapsed.Seconds())
	m.PayloadBytes.Observe(float64(payloadBytes))
}

// Describe implements the prometheus.Collector interface.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Connected.Describe(ch)
	m.Publishes.Describe(ch)
	m.PublishDuration.Describe(ch)
	m.PayloadBytes.Describe(ch)
	m.ConnectFailures.Describe(ch)
	m.Reconnects.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.Connected
	m.Publishes.Collect(ch)
	ch <- m.PublishDuration
	ch <- m.PayloadBytes
	ch <- m.ConnectFailures
	ch <- m.Reconnects
}
