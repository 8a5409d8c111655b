// Package capture owns the capture session: it starts the frame and audio
// sources together and fans their samples out to the replay buffers, the
// sync coordinator and an optional full-session recording.
package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/replayclip/internal/encoder"
	"github.com/tphakala/replayclip/internal/errors"
	"github.com/tphakala/replayclip/internal/events"
	"github.com/tphakala/replayclip/internal/logger"
	"github.com/tphakala/replayclip/internal/mediacore"
	"github.com/tphakala/replayclip/internal/mediacore/avsync"
	"github.com/tphakala/replayclip/internal/mediacore/ringbuffer"
	"github.com/tphakala/replayclip/internal/observability/metrics"
	"github.com/tphakala/replayclip/internal/recording"
)

const component = "capture"

// Sentinel errors for controller state.
var (
	ErrAlreadyCapturing = errors.NewStd("capture already running")
	ErrNotCapturing     = errors.NewStd("capture not running")
	ErrRecordingActive  = errors.NewStd("recording already active")
	ErrNoRecording      = errors.NewStd("no recording active")
)

// Config selects the devices and the replay window.
type Config struct {
	Video          mediacore.VideoConfig
	Audio          mediacore.AudioConfig
	BufferDuration time.Duration
}

// Validate checks both device configs and the buffer duration.
func (c Config) Validate() error {
	var errs []error
	if err := c.Video.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Audio.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.BufferDuration <= 0 {
		errs = append(errs, errors.New(fmt.Errorf("%w: buffer duration must be positive, got %s",
			mediacore.ErrInvalidConfig, c.BufferDuration)).
			Component(component).
			Category(errors.CategoryValidation).
			Build())
	}
	return errors.Join(errs...)
}

func (c Config) videoCapacity() int {
	return ringbuffer.CapacityFor(c.BufferDuration, c.Video.FrameRate)
}

func (c Config) audioCapacity() int {
	if !c.Audio.Enabled {
		return 1
	}
	return ringbuffer.CapacityFor(c.BufferDuration, c.Audio.ChunksPerSecond())
}

// Publisher receives controller events. *events.EventBus satisfies it.
type Publisher interface {
	TryPublish(event events.Event) bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithPublisher sets the event sink for device failures and recordings.
func WithPublisher(p Publisher) Option {
	return func(c *Controller) { c.publisher = p }
}

// WithMetrics enables buffer and device metrics.
func WithMetrics(m *metrics.ReplayMetrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithRecording sets the encoder and output settings used by StartRecording.
// FrameRate and AudioFormat are filled in from the capture config.
func WithRecording(enc encoder.Encoder, cfg recording.Config) Option {
	return func(c *Controller) {
		c.recEncoder = enc
		c.recConfig = cfg
	}
}

// streamMetrics caches the labeled children used on the sample path.
type streamMetrics struct {
	pushed      prometheus.Counter
	usage       prometheus.Gauge
	sinkDropped prometheus.Counter
}

func newStreamMetrics(m *metrics.ReplayMetrics, stream string) *streamMetrics {
	if m == nil {
		return nil
	}
	return &streamMetrics{
		pushed:      m.SamplesPushed.WithLabelValues(stream),
		usage:       m.BufferUsage.WithLabelValues(stream),
		sinkDropped: m.SinkDropped.WithLabelValues(stream),
	}
}

// Controller owns the capture session. The ring buffers and the sync
// coordinator live as long as the controller and are cleared for every
// session, so readers may hold on to them.
type Controller struct {
	factory   SourceFactory
	publisher Publisher
	metrics   *metrics.ReplayMetrics
	log       logger.Logger

	videoBuf *ringbuffer.RingBuffer[mediacore.FrameSample]
	audioBuf *ringbuffer.RingBuffer[mediacore.AudioSample]
	sync     *avsync.Coordinator

	videoMetrics *streamMetrics
	audioMetrics *streamMetrics

	lifecycle sync.Mutex // serializes Start, Stop and Reconfigure
	cfg       Config
	session   Session
	video     mediacore.FrameSource
	audio     mediacore.AudioSource
	pumps     sync.WaitGroup
	capturing atomic.Bool

	recEncoder encoder.Encoder
	recConfig  recording.Config
	recMu      sync.Mutex
	sink       atomic.Pointer[recording.Sink]
}

// NewController validates cfg and allocates the replay buffers.
func NewController(cfg Config, factory SourceFactory, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, errors.Newf("source factory is required").
			Component(component).
			Category(errors.CategoryValidation).
			Build()
	}

	c := &Controller{
		factory:  factory,
		cfg:      cfg,
		log:      logger.Global().Module(component),
		videoBuf: ringbuffer.New[mediacore.FrameSample](cfg.videoCapacity()),
		audioBuf: ringbuffer.New[mediacore.AudioSample](cfg.audioCapacity()),
		sync:     avsync.NewCoordinator(cfg.Video.Interval()),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.videoMetrics = newStreamMetrics(c.metrics, metrics.StreamVideo)
	c.audioMetrics = newStreamMetrics(c.metrics, metrics.StreamAudio)
	return c, nil
}

// VideoBuffer returns the frame ring buffer.
func (c *Controller) VideoBuffer() *ringbuffer.RingBuffer[mediacore.FrameSample] {
	return c.videoBuf
}

// AudioBuffer returns the audio ring buffer. It stays empty while audio is disabled.
func (c *Controller) AudioBuffer() *ringbuffer.RingBuffer[mediacore.AudioSample] {
	return c.audioBuf
}

// Sync returns the drift coordinator of the current session.
func (c *Controller) Sync() *avsync.Coordinator {
	return c.sync
}

// Config returns the active configuration.
func (c *Controller) Config() Config {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	return c.cfg
}

// Session returns a copy of the current session.
func (c *Controller) Session() Session {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	return c.session
}

// IsCapturing reports whether a session is running.
func (c *Controller) IsCapturing() bool {
	return c.capturing.Load()
}

// BufferUsage returns the current fill level of both buffers.
func (c *Controller) BufferUsage() BufferUsage {
	return BufferUsage{
		VideoFrames:   c.videoBuf.Len(),
		VideoCapacity: c.videoBuf.Cap(),
		AudioChunks:   c.audioBuf.Len(),
		AudioCapacity: c.audioBuf.Cap(),
	}
}

// Start applies cfg and starts a new session. Both sources are started
// concurrently; if a required source fails the others are stopped and the
// device error is returned. Buffers are cleared before the first sample of
// the new session arrives.
func (c *Controller) Start(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.session.State != SessionIdle {
		return ErrAlreadyCapturing
	}
	c.applyConfig(cfg)
	return c.startLocked(ctx)
}

// applyConfig resizes or clears the buffers for cfg. Contents are never
// carried across sessions.
func (c *Controller) applyConfig(cfg Config) {
	if n := cfg.videoCapacity(); n != c.videoBuf.Cap() {
		c.videoBuf.Resize(n)
	} else {
		c.videoBuf.Clear()
	}
	if n := cfg.audioCapacity(); n != c.audioBuf.Cap() {
		c.audioBuf.Resize(n)
	} else {
		c.audioBuf.Clear()
	}
	c.cfg = cfg
}

func (c *Controller) startLocked(ctx context.Context) error {
	cfg := c.cfg

	video, err := c.factory.NewFrameSource(cfg.Video)
	if err != nil {
		return err
	}
	var audio mediacore.AudioSource
	if cfg.Audio.Enabled {
		if audio, err = c.factory.NewAudioSource(cfg.Audio); err != nil {
			return err
		}
	}

	// Sources outlive ctx; they are stopped only by stopLocked or a device error.
	runCtx := context.WithoutCancel(ctx)

	var videoStarted, audioStarted atomic.Bool
	var failedMu sync.Mutex
	failedStream := ""
	startSource := func(stream string, start func(context.Context) error, ok *atomic.Bool) func() error {
		return func() error {
			if err := start(runCtx); err != nil {
				failedMu.Lock()
				if failedStream == "" {
					failedStream = stream
				}
				failedMu.Unlock()
				return err
			}
			ok.Store(true)
			return nil
		}
	}

	var g errgroup.Group
	g.Go(startSource(metrics.StreamVideo, video.Start, &videoStarted))
	if audio != nil {
		g.Go(startSource(metrics.StreamAudio, audio.Start, &audioStarted))
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if videoStarted.Load() {
			c.stopSource(video)
		}
		if audioStarted.Load() {
			c.stopSource(audio)
		}
		c.log.Error("capture start failed",
			logger.String("stream", failedStream),
			logger.String("kind", mediacore.DeviceErrorKind(err)),
			logger.Error(err))
		if failedStream != "" {
			c.recordDeviceFailure(failedStream, err)
		}
		return err
	}

	now := time.Now()
	c.sync.Reset(now, cfg.Video.Interval())
	c.video, c.audio = video, audio
	c.session = Session{
		ID:        uuid.NewString(),
		State:     SessionCapturing,
		StartedAt: now,
		VideoID:   video.ID(),
	}
	if audio != nil {
		c.session.AudioID = audio.ID()
	}

	c.pumps.Go(func() { pump(c, video, metrics.StreamVideo, c.handleFrame) })
	if audio != nil {
		c.pumps.Go(func() { pump(c, audio, metrics.StreamAudio, c.handleAudio) })
	}

	c.capturing.Store(true)
	if c.metrics != nil {
		c.metrics.SetCaptureActive(true)
	}
	c.log.Info("capture started",
		logger.String("session_id", c.session.ID),
		logger.String("video_device", c.session.VideoID),
		logger.String("audio_device", c.session.AudioID),
		logger.Int("video_capacity", c.videoBuf.Cap()),
		logger.Int("audio_capacity", c.audioBuf.Cap()),
		logger.Duration("buffer_duration", cfg.BufferDuration))
	return nil
}

func (c *Controller) stopSource(src interface{ Stop() error }) {
	if err := src.Stop(); err != nil {
		c.log.Warn("failed to stop source", logger.Error(err))
	}
}

// Stop ends the session. An active recording is finalized first. Stop
// returns after every capture goroutine has exited.
func (c *Controller) Stop() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	return c.stopLocked()
}

func (c *Controller) stopLocked() error {
	if c.session.State != SessionCapturing {
		return nil
	}
	c.session.State = SessionStopping

	var errs []error
	if c.sink.Load() != nil {
		if _, err := c.StopRecording(context.Background()); err != nil && !errors.Is(err, ErrNoRecording) {
			errs = append(errs, err)
		}
	}

	if err := c.video.Stop(); err != nil {
		errs = append(errs, err)
	}
	if c.audio != nil {
		if err := c.audio.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	c.pumps.Wait()

	c.capturing.Store(false)
	if c.metrics != nil {
		c.metrics.SetCaptureActive(false)
	}
	c.log.Info("capture stopped",
		logger.String("session_id", c.session.ID),
		logger.Duration("uptime", time.Since(c.session.StartedAt)))

	c.video, c.audio = nil, nil
	c.session = Session{State: SessionIdle}
	return errors.Join(errs...)
}

// Reconfigure applies cfg. A running session is stopped, the buffers are
// resized and a new session is started; buffered content is discarded.
func (c *Controller) Reconfigure(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	wasCapturing := c.session.State == SessionCapturing
	if err := c.stopLocked(); err != nil {
		c.log.Warn("errors while stopping for reconfiguration", logger.Error(err))
	}
	c.applyConfig(cfg)
	c.log.Info("capture reconfigured",
		logger.Int("width", cfg.Video.Width),
		logger.Int("height", cfg.Video.Height),
		logger.Float64("frame_rate", cfg.Video.FrameRate),
		logger.Bool("audio", cfg.Audio.Enabled),
		logger.Duration("buffer_duration", cfg.BufferDuration))

	if !wasCapturing {
		return nil
	}
	return c.startLocked(ctx)
}

// pump delivers samples of src until its channel closes. A device error
// stops only src; samples still queued behind the error are discarded.
func pump[T any](c *Controller, src mediacore.Source[T], stream string, handle func(mediacore.TimestampedSample[T])) {
	samples := src.Samples()
	errs := src.Errors()
	failed := false
	for samples != nil {
		select {
		case s, ok := <-samples:
			if !ok {
				samples = nil
				continue
			}
			if !failed {
				handle(s)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if !failed {
				failed = true
				c.handleDeviceFailure(src, stream, err)
			}
		}
	}
}

func (c *Controller) handleFrame(s mediacore.FrameSample) {
	c.videoBuf.Push(s)
	irregular := c.sync.RecordVideoTimestamp(s.CapturedAt)

	if sink := c.sink.Load(); sink != nil && !sink.WriteFrame(s) {
		if c.videoMetrics != nil {
			c.videoMetrics.sinkDropped.Inc()
		}
	}

	if m := c.videoMetrics; m != nil {
		m.pushed.Inc()
		m.usage.Set(c.videoBuf.Usage())
		c.metrics.SyncDrift.Set(c.sync.CurrentDrift().Seconds())
		if irregular {
			c.metrics.FrameTimingIssue.Inc()
		}
	}
}

func (c *Controller) handleAudio(s mediacore.AudioSample) {
	c.audioBuf.Push(s)
	c.sync.RecordAudioTimestamp(s.CapturedAt)

	if sink := c.sink.Load(); sink != nil && !sink.WriteAudio(s) {
		if c.audioMetrics != nil {
			c.audioMetrics.sinkDropped.Inc()
		}
	}

	if m := c.audioMetrics; m != nil {
		m.pushed.Inc()
		m.usage.Set(c.audioBuf.Usage())
	}
}

// handleDeviceFailure stops the failed source and reports it. Buffered
// audio is discarded after an audio failure so clips fall back to video
// only instead of ending at the moment the device was lost.
func (c *Controller) handleDeviceFailure(src interface {
	ID() string
	Stop() error
}, stream string, err error) {
	c.log.Error("capture device failed, stopping source",
		logger.String("stream", stream),
		logger.String("device_id", src.ID()),
		logger.Error(err))

	c.stopSource(src)
	if stream == metrics.StreamAudio {
		c.audioBuf.Clear()
	}
	c.recordDeviceFailure(stream, err)
}

func (c *Controller) recordDeviceFailure(stream string, err error) {
	if c.metrics != nil {
		c.metrics.RecordDeviceFailure(stream, mediacore.DeviceErrorKind(err))
	}
	if c.publisher != nil {
		c.publisher.TryPublish(events.New(events.KindDeviceFailure, component, stream+" capture device failed").
			WithError(err).
			WithField(events.FieldStream, stream).
			WithField(events.FieldErrorKind, mediacore.DeviceErrorKind(err)))
	}
}

func recordingAudioFormat(cfg Config) mediacore.AudioFormat {
	if !cfg.Audio.Enabled {
		return mediacore.AudioFormat{}
	}
	return cfg.Audio.Format()
}
