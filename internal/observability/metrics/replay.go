// Package metrics provides custom Prometheus metrics for the replay clipper.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ReplayMetrics covers capture, triggers and clip extraction.
type ReplayMetrics struct {
	BufferUsage      *prometheus.GaugeVec   // fill fraction by stream
	SamplesPushed    *prometheus.CounterVec // samples pushed into ring buffers by stream
	SinkDropped      *prometheus.CounterVec // recording sink drops by stream
	SyncDrift        prometheus.Gauge       // last measured drift in seconds
	FrameTimingIssue prometheus.Counter     // irregular frame gaps
	DeviceFailures   *prometheus.CounterVec // by stream and kind
	CaptureActive    prometheus.Gauge

	TriggersAccepted *prometheus.CounterVec // by kind
	TriggersRejected *prometheus.CounterVec // by kind and reason

	ClipsTotal     *prometheus.CounterVec // by outcome
	ClipDuration   prometheus.Histogram   // clip length in seconds
	EncodeDuration prometheus.Histogram   // encoder run time in seconds

	RecordingsTotal *prometheus.CounterVec // by outcome

	registry *prometheus.Registry
}

// NewReplayMetrics creates and registers the replay metrics.
func NewReplayMetrics(registry *prometheus.Registry) (*ReplayMetrics, error) {
	m := &ReplayMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register replay metrics: %w", err)
	}
	return m, nil
}

func (m *ReplayMetrics) initMetrics() {
	m.BufferUsage = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "replay_buffer_usage_ratio",
		Help: "Ring buffer fill level between 0 and 1",
	}, []string{"stream"})

	m.SamplesPushed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replay_samples_pushed_total",
		Help: "Samples pushed into the replay ring buffers",
	}, []string{"stream"})

	m.SinkDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replay_recording_sink_dropped_total",
		Help: "Samples the recording sink could not accept",
	}, []string{"stream"})

	m.SyncDrift = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "replay_av_drift_seconds",
		Help: "Most recent video minus audio drift",
	})

	m.FrameTimingIssue = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "replay_frame_timing_issues_total",
		Help: "Frames arriving more than half an interval off schedule",
	})

	m.DeviceFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replay_device_failures_total",
		Help: "Capture device failures by stream and kind",
	}, []string{"stream", "kind"})

	m.CaptureActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "replay_capture_active",
		Help: "1 while a capture session is running",
	})

	m.TriggersAccepted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replay_triggers_accepted_total",
		Help: "Accepted clip triggers by kind",
	}, []string{"kind"})

	m.TriggersRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replay_triggers_rejected_total",
		Help: "Rejected clip triggers by kind and reason",
	}, []string{"kind", "reason"})

	m.ClipsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replay_clips_total",
		Help: "Clip extractions by outcome",
	}, []string{"outcome"})

	m.ClipDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "replay_clip_duration_seconds",
		Help:    "Length of saved clips",
		Buckets: []float64{5, 10, 15, 30, 45, 60, 120, 300},
	})

	m.EncodeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "replay_encode_duration_seconds",
		Help:    "Time spent in the encoder per clip",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	m.RecordingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replay_recordings_total",
		Help: "Finished full-session recordings by outcome",
	}, []string{"outcome"})
}

func (m *ReplayMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.BufferUsage, m.SamplesPushed, m.SinkDropped,
		m.SyncDrift, m.FrameTimingIssue, m.DeviceFailures, m.CaptureActive,
		m.TriggersAccepted, m.TriggersRejected,
		m.ClipsTotal, m.ClipDuration, m.EncodeDuration, m.RecordingsTotal,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *ReplayMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *ReplayMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

// RecordTrigger counts a trigger decision.
func (m *ReplayMetrics) RecordTrigger(kind string, accepted bool, reason string) {
	if accepted {
		m.TriggersAccepted.WithLabelValues(kind).Inc()
		return
	}
	m.TriggersRejected.WithLabelValues(kind, reason).Inc()
}

// RecordClip counts a clip outcome. outcome is "success" or an error kind.
func (m *ReplayMetrics) RecordClip(outcome string, clipSeconds, encodeSeconds float64) {
	m.ClipsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess {
		m.ClipDuration.Observe(clipSeconds)
	}
	if encodeSeconds > 0 {
		m.EncodeDuration.Observe(encodeSeconds)
	}
}

// RecordDeviceFailure counts a device failure.
func (m *ReplayMetrics) RecordDeviceFailure(stream, kind string) {
	m.DeviceFailures.WithLabelValues(stream, kind).Inc()
}

// SetCaptureActive reports whether capture is running.
func (m *ReplayMetrics) SetCaptureActive(active bool) {
	if active {
		m.CaptureActive.Set(1)
	} else {
		m.CaptureActive.Set(0)
	}
}
