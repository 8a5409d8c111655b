// Package replay wires capture, trigger detection and clip extraction into
// one service. Every accepted trigger is extracted on its own worker
// goroutine and its outcome is published on the event bus.
package replay

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/replayclip/internal/capture"
	"github.com/tphakala/replayclip/internal/clipper"
	"github.com/tphakala/replayclip/internal/encoder"
	"github.com/tphakala/replayclip/internal/errors"
	"github.com/tphakala/replayclip/internal/events"
	"github.com/tphakala/replayclip/internal/logger"
	"github.com/tphakala/replayclip/internal/mediacore"
	"github.com/tphakala/replayclip/internal/observability/metrics"
	"github.com/tphakala/replayclip/internal/recording"
	"github.com/tphakala/replayclip/internal/trigger"
)

const component = "replay"

// Config groups the settings of every owned component.
type Config struct {
	Capture capture.Config
	Clip    clipper.Config // FrameRate and AudioFormat are derived from Capture
	Trigger trigger.Config
}

// Publisher receives service events. *events.EventBus satisfies it.
type Publisher interface {
	TryPublish(event events.Event) bool
}

// Dependencies are the collaborators injected into the service.
type Dependencies struct {
	Sources   capture.SourceFactory
	Encoder   encoder.Encoder
	Publisher Publisher              // optional
	Metrics   *metrics.ReplayMetrics // optional
	Recording *recording.Config      // optional, enables StartRecording
	OnResult  func(r clipper.Result) // optional, called by the clip worker
}

// Service owns the capture controller, the trigger detector and the clip
// extractor.
type Service struct {
	controller *capture.Controller
	detector   *trigger.Detector
	extractor  *clipper.Extractor
	deps       Dependencies
	log        logger.Logger

	cfgMu sync.RWMutex
	cfg   Config

	runMu     sync.Mutex
	running   bool
	loopStop  context.CancelFunc
	loopDone  chan struct{}
	workCtx   context.Context
	workStop  context.CancelFunc
	workers   sync.WaitGroup
	startedAt time.Time
}

// New validates cfg and builds the owned components.
func New(cfg Config, deps Dependencies) (*Service, error) {
	if deps.Sources == nil || deps.Encoder == nil {
		return nil, errors.Newf("source factory and encoder are required").
			Component(component).
			Category(errors.CategoryValidation).
			Build()
	}
	if err := cfg.Trigger.Validate(); err != nil {
		return nil, err
	}
	if cfg.Clip.Profile.Container != "" {
		if err := cfg.Clip.Profile.Validate(); err != nil {
			return nil, err
		}
	}

	s := &Service{deps: deps, log: logger.Global().Module(component)}

	opts := []capture.Option{capture.WithMetrics(deps.Metrics)}
	if deps.Publisher != nil {
		opts = append(opts, capture.WithPublisher(deps.Publisher))
	}
	if deps.Recording != nil {
		opts = append(opts, capture.WithRecording(deps.Encoder, *deps.Recording))
	}
	controller, err := capture.NewController(cfg.Capture, deps.Sources, opts...)
	if err != nil {
		return nil, err
	}
	s.controller = controller

	cfg = normalize(cfg)
	s.cfg = cfg
	s.detector = trigger.NewDetector(cfg.Trigger,
		trigger.WithOutcomeHandler(s.observeTrigger),
		trigger.WithWarningHandler(s.recognizerWarning))
	s.extractor = clipper.NewExtractor(clipper.Buffers{
		Video: controller.VideoBuffer(),
		Audio: controller.AudioBuffer(),
		Sync:  controller.Sync(),
	}, deps.Encoder, cfg.Clip)
	return s, nil
}

// normalize derives the clip settings that follow from the capture config.
func normalize(cfg Config) Config {
	cfg.Clip.FrameRate = cfg.Capture.Video.FrameRate
	cfg.Clip.AudioFormat = mediacore.AudioFormat{}
	if cfg.Capture.Audio.Enabled {
		cfg.Clip.AudioFormat = cfg.Capture.Audio.Format()
	}
	if cfg.Clip.DefaultDuration <= 0 {
		cfg.Clip.DefaultDuration = cfg.Trigger.DefaultDuration
	}
	if cfg.Trigger.MaxDuration <= 0 || cfg.Trigger.MaxDuration > cfg.Capture.BufferDuration {
		cfg.Trigger.MaxDuration = cfg.Capture.BufferDuration
	}
	return cfg
}

// Controller returns the capture controller.
func (s *Service) Controller() *capture.Controller { return s.controller }

// Config returns the effective configuration.
func (s *Service) Config() Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// Start begins capturing and dispatching clip requests.
func (s *Service) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return capture.ErrAlreadyCapturing
	}

	if err := s.controller.Start(ctx, s.Config().Capture); err != nil {
		return err
	}

	loopCtx, loopStop := context.WithCancel(context.Background())
	s.workCtx, s.workStop = context.WithCancel(context.Background())
	s.loopStop = loopStop
	s.loopDone = make(chan struct{})
	s.running = true
	s.startedAt = time.Now()

	go s.dispatchLoop(loopCtx, s.workCtx, s.loopDone)
	s.log.Info("replay service started", logger.String("session_id", s.controller.Session().ID))
	return nil
}

// Stop stops accepting requests, waits for in-flight clips until ctx is
// done, then cancels the remaining encoder runs and stops capture.
func (s *Service) Stop(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if !s.running {
		return nil
	}

	s.loopStop()
	<-s.loopDone

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("cancelling in-flight clips on shutdown")
	}
	s.workStop()
	<-done

	s.running = false
	err := s.controller.Stop()
	s.log.Info("replay service stopped", logger.Duration("uptime", time.Since(s.startedAt)))
	return err
}

// dispatchLoop hands every request to its own worker.
func (s *Service) dispatchLoop(ctx, workCtx context.Context, done chan<- struct{}) {
	defer close(done)
	requests := s.detector.Requests()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-requests:
			s.workers.Go(func() { s.runClip(workCtx, req) })
		}
	}
}

// Clip requests the last duration of capture. A non-positive duration
// selects the default.
func (s *Service) Clip(duration time.Duration) trigger.Outcome {
	return s.detector.Manual(duration)
}

// Hotkey handles a clip hotkey press.
func (s *Service) Hotkey() trigger.Outcome {
	return s.detector.Hotkey()
}

// Phrase evaluates recognized speech.
func (s *Service) Phrase(text string) trigger.Outcome {
	return s.detector.Phrase(text)
}

// FeedRecognizer evaluates one line of recognizer output.
func (s *Service) FeedRecognizer(line []byte) trigger.Outcome {
	return s.detector.Feed(line)
}

// RunRecognizer consumes recognizer output from r until EOF or ctx ends.
func (s *Service) RunRecognizer(ctx context.Context, r io.Reader) error {
	return s.detector.RunFeed(ctx, r)
}

// StartRecording begins a full-session recording next to the replay buffer.
func (s *Service) StartRecording(outputDir string) error {
	return s.controller.StartRecording(outputDir)
}

// StopRecording finishes the full-session recording.
func (s *Service) StopRecording(ctx context.Context) (recording.Result, error) {
	return s.controller.StopRecording(ctx)
}

// ExtractNow runs an extraction synchronously, bypassing trigger
// detection. It returns ErrClipBusy when another clip is being extracted.
func (s *Service) ExtractNow(ctx context.Context, duration time.Duration) clipper.Result {
	req := trigger.Request{ID: uuid.New(), RequestedAt: time.Now(), Duration: duration, Reason: "direct", Kind: trigger.KindManual}
	return s.runClip(ctx, req)
}

func (s *Service) runClip(ctx context.Context, req trigger.Request) clipper.Result {
	result := s.extractor.Extract(ctx, clipper.Request{
		ID:          req.ID,
		RequestedAt: req.RequestedAt,
		Duration:    req.Duration,
		Reason:      req.Reason,
	})
	s.report(req, result)
	if s.deps.OnResult != nil {
		s.deps.OnResult(result)
	}
	return result
}

func (s *Service) report(req trigger.Request, r clipper.Result) {
	if m := s.deps.Metrics; m != nil {
		outcome := metrics.OutcomeSuccess
		if !r.Success {
			outcome = mediacore.ClipErrorKind(r.Err)
		}
		m.RecordClip(outcome, r.ActualDuration.Seconds(), r.EncodeTime.Seconds())
	}

	pub := s.deps.Publisher
	if pub == nil {
		return
	}
	if r.SyncWarning != nil {
		pub.TryPublish(events.New(events.KindSyncWarning, component, "audio and video drifted apart").
			WithError(r.SyncWarning).
			WithField(events.FieldRequestID, req.ID.String()))
	}

	var ev events.Event
	if r.Success {
		ev = events.New(events.KindClipCompleted, component, "clip saved").
			WithField(events.FieldOutputPath, r.OutputPath).
			WithField(events.FieldDuration, r.ActualDuration).
			WithField(events.FieldFrameCount, r.FrameCount)
	} else {
		ev = events.New(events.KindClipFailed, component, "clip failed").
			WithError(r.Err).
			WithField(events.FieldErrorKind, mediacore.ClipErrorKind(r.Err))
	}
	ev = ev.WithField(events.FieldRequestID, req.ID.String()).
		WithField(events.FieldTriggerKind, req.Kind.String()).
		WithField(events.FieldReason, req.Reason)
	if !pub.TryPublish(ev) {
		s.log.Warn("clip event dropped by event bus", logger.String("kind", string(ev.Kind)))
	}
}

func (s *Service) observeTrigger(o trigger.Outcome) {
	if m := s.deps.Metrics; m != nil {
		m.RecordTrigger(o.Kind.String(), o.Accepted, string(o.Reason))
	}
	if o.Accepted && s.deps.Publisher != nil {
		s.deps.Publisher.TryPublish(events.New(events.KindTriggerAccepted, "trigger", o.Request.Reason).
			WithField(events.FieldRequestID, o.Request.ID.String()).
			WithField(events.FieldTriggerKind, o.Kind.String()).
			WithField(events.FieldDuration, o.Request.Duration))
	}
}

func (s *Service) recognizerWarning(err error) {
	s.log.Warn("recognizer warning, hotkey and manual triggers remain available", logger.Error(err))
}

// UpdateSettings applies new settings. Trigger and clip settings take effect
// immediately; a changed capture config restarts the session with empty
// buffers.
func (s *Service) UpdateSettings(ctx context.Context, cfg Config) error {
	if err := cfg.Capture.Validate(); err != nil {
		return err
	}
	if err := cfg.Trigger.Validate(); err != nil {
		return err
	}
	if cfg.Clip.Profile.Container != "" {
		if err := cfg.Clip.Profile.Validate(); err != nil {
			return err
		}
	}
	cfg = normalize(cfg)

	s.cfgMu.Lock()
	previous := s.cfg
	s.cfg = cfg
	s.cfgMu.Unlock()

	s.detector.Reconfigure(cfg.Trigger)
	s.extractor.SetConfig(cfg.Clip)

	if cfg.Capture == previous.Capture {
		return nil
	}
	s.log.Info("capture settings changed, restarting capture")
	return s.controller.Reconfigure(ctx, cfg.Capture)
}

// Statistics summarizes the service state.
type Statistics struct {
	Clips     clipper.Statistics
	Buffers   capture.BufferUsage
	Session   capture.Session
	Recording bool
	Drift     time.Duration
}

// Statistics returns a snapshot of the service state.
func (s *Service) Statistics() Statistics {
	return Statistics{
		Clips:     s.extractor.Statistics(),
		Buffers:   s.controller.BufferUsage(),
		Session:   s.controller.Session(),
		Recording: s.controller.IsRecording(),
		Drift:     s.controller.Sync().CurrentDrift(),
	}
}
