package capture

import (
	"context"
	"time"

	"github.com/tphakala/replayclip/internal/errors"
	"github.com/tphakala/replayclip/internal/events"
	"github.com/tphakala/replayclip/internal/logger"
	"github.com/tphakala/replayclip/internal/observability/metrics"
	"github.com/tphakala/replayclip/internal/recording"
)

// IsRecording reports whether a full-session recording is active.
func (c *Controller) IsRecording() bool {
	return c.sink.Load() != nil
}

// StartRecording begins a full-session recording into outputDir, or into
// the configured directory when outputDir is empty. Samples are offered to
// the recording without blocking the replay buffers.
func (c *Controller) StartRecording(outputDir string) error {
	if c.recEncoder == nil {
		return errors.Newf("recording encoder not configured").
			Component(component).
			Category(errors.CategoryRecording).
			Build()
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.session.State != SessionCapturing {
		return ErrNotCapturing
	}

	c.recMu.Lock()
	defer c.recMu.Unlock()
	if c.sink.Load() != nil {
		return ErrRecordingActive
	}

	capCfg := c.cfg
	cfg := c.recConfig
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	cfg.FrameRate = capCfg.Video.FrameRate
	cfg.AudioFormat = recordingAudioFormat(capCfg)

	sink, err := recording.Start(cfg, c.recEncoder)
	if err != nil {
		return err
	}
	c.sink.Store(sink)
	return nil
}

// StopRecording detaches the recording from the capture path and encodes it.
func (c *Controller) StopRecording(ctx context.Context) (recording.Result, error) {
	c.recMu.Lock()
	defer c.recMu.Unlock()

	sink := c.sink.Swap(nil)
	if sink == nil {
		return recording.Result{}, ErrNoRecording
	}

	start := time.Now()
	result, err := sink.Stop(ctx)
	c.recordRecording(result, err, time.Since(start))
	return result, err
}

func (c *Controller) recordRecording(result recording.Result, err error, elapsed time.Duration) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		c.log.Error("recording failed", logger.Error(err))
	}
	if c.metrics != nil {
		c.metrics.RecordingsTotal.WithLabelValues(outcome).Inc()
		if err == nil {
			c.metrics.EncodeDuration.Observe(elapsed.Seconds())
		}
	}
	if c.publisher == nil {
		return
	}

	message := "recording finished"
	if err != nil {
		message = "recording failed"
	}
	c.publisher.TryPublish(events.New(events.KindRecordingFinished, component, message).
		WithError(err).
		WithField(events.FieldOutputPath, result.OutputPath).
		WithField(events.FieldDuration, result.Duration))
}
