// Package screen implements a FrameSource that grabs the primary display.
package screen

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"sync"
	"time"

	"github.com/vova616/screenshot"

	"github.com/tphakala/replayclip/internal/logger"
	"github.com/tphakala/replayclip/internal/mediacore"
)

const component = "screen"

// maxConsecutiveFailures is how many failed grabs in a row are tolerated
// before the display is reported as lost.
const maxConsecutiveFailures = 30

// Grabber captures a region of the display.
type Grabber interface {
	// Bounds returns the rectangle of the capturable display
	Bounds() (image.Rectangle, error)
	// Grab captures rect
	Grab(rect image.Rectangle) (*image.RGBA, error)
}

// ScreenshotGrabber grabs the primary display through github.com/vova616/screenshot.
type ScreenshotGrabber struct{}

// Bounds returns the primary display rectangle.
func (ScreenshotGrabber) Bounds() (image.Rectangle, error) {
	return screenshot.ScreenRect()
}

// Grab captures rect from the primary display.
func (ScreenshotGrabber) Grab(rect image.Rectangle) (*image.RGBA, error) {
	return screenshot.CaptureRect(rect)
}

// Source captures frames from a display region at a fixed rate.
type Source struct {
	cfg     mediacore.VideoConfig
	grabber Grabber
	log     logger.Logger

	state mediacore.StateMachine

	lifecycle sync.Mutex // serializes Start and Stop
	emitter   *mediacore.Emitter[mediacore.Frame]
	loop      *mediacore.CaptureLoop
	failures  int // owned by the capture goroutine
}

// New creates a screen source. A nil grabber uses ScreenshotGrabber.
func New(cfg mediacore.VideoConfig, grabber Grabber) *Source {
	if grabber == nil {
		grabber = ScreenshotGrabber{}
	}
	return &Source{
		cfg:     cfg,
		grabber: grabber,
		log:     logger.Global().Module("capture").Module(component),
	}
}

// ID returns the display identifier.
func (s *Source) ID() string {
	if s.cfg.DeviceID == "" {
		return "0"
	}
	return s.cfg.DeviceID
}

// FrameRate returns the target rate.
func (s *Source) FrameRate() float64 {
	return s.cfg.FrameRate
}

// State returns the current life-cycle state.
func (s *Source) State() mediacore.SourceState {
	return s.state.Load()
}

// Start validates the capture region against the display and starts grabbing.
func (s *Source) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.state.Transition(mediacore.StateStopped, mediacore.StateStarting) {
		return mediacore.NewDeviceError(mediacore.ErrDeviceBusy, component, s.ID(), nil)
	}

	rect, err := s.region()
	if err != nil {
		s.state.Transition(mediacore.StateStarting, mediacore.StateStopped)
		return err
	}

	s.emitter = mediacore.NewEmitter[mediacore.Frame](mediacore.DefaultSampleBuffer)
	s.failures = 0
	emitter := s.emitter
	s.loop = mediacore.StartCaptureLoop(ctx, s.cfg.Interval(), func(time.Time) {
		s.grab(rect, emitter)
	})

	s.state.Transition(mediacore.StateStarting, mediacore.StateRunning)
	s.log.Info("screen capture started",
		logger.String("display", s.ID()),
		logger.String("region", rect.String()),
		logger.Float64("frame_rate", s.cfg.FrameRate))
	return nil
}

// region resolves the configured capture rectangle and checks it lies on the display.
func (s *Source) region() (image.Rectangle, error) {
	if err := s.cfg.Validate(); err != nil {
		return image.Rectangle{}, err
	}

	if s.cfg.DeviceID != "" {
		if idx, err := strconv.Atoi(s.cfg.DeviceID); err != nil || idx != 0 {
			return image.Rectangle{}, mediacore.NewDeviceError(mediacore.ErrDeviceNotFound, component, s.cfg.DeviceID,
				fmt.Errorf("only the primary display (0) can be captured"))
		}
	}

	bounds, err := s.grabber.Bounds()
	if err != nil {
		return image.Rectangle{}, mediacore.NewDeviceError(mediacore.ErrDeviceNotFound, component, s.ID(), err)
	}

	rect := image.Rect(s.cfg.OffsetX, s.cfg.OffsetY, s.cfg.OffsetX+s.cfg.Width, s.cfg.OffsetY+s.cfg.Height).
		Add(bounds.Min)
	if !rect.In(bounds) {
		return image.Rectangle{}, mediacore.NewDeviceError(mediacore.ErrDeviceNotFound, component, s.ID(),
			fmt.Errorf("capture region %v outside display %v", rect, bounds))
	}
	return rect, nil
}

// grab runs on the capture goroutine.
func (s *Source) grab(rect image.Rectangle, emitter *mediacore.Emitter[mediacore.Frame]) {
	img, err := s.grabber.Grab(rect)
	capturedAt := time.Now()
	if err != nil {
		s.failures++
		if s.failures == maxConsecutiveFailures {
			s.log.Error("screen capture failing repeatedly", logger.Error(err), logger.Int("failures", s.failures))
			emitter.ReportError(mediacore.NewDeviceError(mediacore.ErrDeviceNotFound, component, s.ID(), err))
		}
		return
	}
	s.failures = 0

	frame := mediacore.Frame{
		Width:  img.Rect.Dx(),
		Height: img.Rect.Dy(),
		Stride: img.Stride,
		Format: mediacore.PixelFormatRGBA,
		Pix:    img.Pix,
	}
	if !emitter.Emit(frame, capturedAt) {
		s.log.Trace("frame dropped, consumer behind", logger.Uint64("dropped", emitter.Dropped()))
	}
}

// Stop ends the capture loop and waits for it to exit.
func (s *Source) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.state.Transition(mediacore.StateRunning, mediacore.StateStopping) {
		return nil
	}

	s.loop.Stop()
	s.emitter.Close()
	s.state.Transition(mediacore.StateStopping, mediacore.StateStopped)

	s.log.Info("screen capture stopped",
		logger.Uint64("frames", s.emitter.Delivered()),
		logger.Uint64("dropped", s.emitter.Dropped()))
	return nil
}

// Samples returns the frame channel of the current run.
func (s *Source) Samples() <-chan mediacore.FrameSample {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.emitter == nil {
		return nil
	}
	return s.emitter.Samples()
}

// Errors returns the error channel of the current run.
func (s *Source) Errors() <-chan error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.emitter == nil {
		return nil
	}
	return s.emitter.Errors()
}

var _ mediacore.FrameSource = (*Source)(nil)
