// Package observability provides Prometheus metrics and the endpoint serving them.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/replayclip/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry     *prometheus.Registry
	Replay       *metrics.ReplayMetrics
	MQTT         *metrics.MQTTMetrics
	Notification *metrics.NotificationMetrics
	System       *metrics.SystemMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
// Each call uses its own registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	replayMetrics, err := metrics.NewReplayMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create replay metrics: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	notificationMetrics, err := metrics.NewNotificationMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification metrics: %w", err)
	}

	systemMetrics, err := metrics.NewSystemMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create system metrics: %w", err)
	}

	return &Metrics{
		registry:     registry,
		Replay:       replayMetrics,
		MQTT:         mqttMetrics,
		Notification: notificationMetrics,
		System:       systemMetrics,
	}, nil
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
}
