// Package synthetic provides generated frame and audio sources for headless
// runs and tests.
package synthetic

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/tphakala/replayclip/internal/logger"
	"github.com/tphakala/replayclip/internal/mediacore"
)

const component = "synthetic"

// source holds the life-cycle shared by both generators.
type source[T any] struct {
	id        string
	state     mediacore.StateMachine
	lifecycle sync.Mutex
	emitter   *mediacore.Emitter[T]
	loop      *mediacore.CaptureLoop
	log       logger.Logger
}

func (s *source[T]) start(ctx context.Context, interval time.Duration, validate func() error, produce func(now time.Time, e *mediacore.Emitter[T])) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.state.Transition(mediacore.StateStopped, mediacore.StateStarting) {
		return mediacore.NewDeviceError(mediacore.ErrDeviceBusy, component, s.id, nil)
	}
	if err := validate(); err != nil {
		s.state.Transition(mediacore.StateStarting, mediacore.StateStopped)
		return err
	}

	s.emitter = mediacore.NewEmitter[T](mediacore.DefaultSampleBuffer)
	emitter := s.emitter
	s.loop = mediacore.StartCaptureLoop(ctx, interval, func(now time.Time) {
		produce(now, emitter)
	})
	s.state.Transition(mediacore.StateStarting, mediacore.StateRunning)
	s.log.Debug("synthetic source started", logger.String("id", s.id), logger.Duration("interval", interval))
	return nil
}

func (s *source[T]) stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.state.Transition(mediacore.StateRunning, mediacore.StateStopping) {
		return nil
	}
	s.loop.Stop()
	s.emitter.Close()
	s.state.Transition(mediacore.StateStopping, mediacore.StateStopped)
	return nil
}

func (s *source[T]) samples() <-chan mediacore.TimestampedSample[T] {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.emitter == nil {
		return nil
	}
	return s.emitter.Samples()
}

func (s *source[T]) errors() <-chan error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.emitter == nil {
		return nil
	}
	return s.emitter.Errors()
}

// Fail injects a mid-capture error as if the device had gone away.
func (s *source[T]) Fail(err error) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.emitter != nil && s.state.Load() == mediacore.StateRunning {
		s.emitter.ReportError(err)
	}
}

// FrameSource renders a moving gradient at the configured rate.
type FrameSource struct {
	source[mediacore.Frame]
	cfg   mediacore.VideoConfig
	count uint32
}

// NewFrameSource creates a generator producing frames of the configured size.
func NewFrameSource(cfg mediacore.VideoConfig) *FrameSource {
	id := cfg.DeviceID
	if id == "" {
		id = "synthetic-video"
	}
	return &FrameSource{
		source: source[mediacore.Frame]{id: id, log: logger.Global().Module("capture").Module(component)},
		cfg:    cfg,
	}
}

func (f *FrameSource) ID() string                            { return f.id }
func (f *FrameSource) FrameRate() float64                    { return f.cfg.FrameRate }
func (f *FrameSource) State() mediacore.SourceState          { return f.state.Load() }
func (f *FrameSource) Stop() error                           { return f.stop() }
func (f *FrameSource) Samples() <-chan mediacore.FrameSample { return f.samples() }
func (f *FrameSource) Errors() <-chan error                  { return f.errors() }

// Start begins generating frames.
func (f *FrameSource) Start(ctx context.Context) error {
	f.count = 0
	return f.start(ctx, f.cfg.Interval(), f.cfg.Validate, f.render)
}

func (f *FrameSource) render(now time.Time, e *mediacore.Emitter[mediacore.Frame]) {
	f.count++
	e.Emit(RenderFrame(f.cfg.Width, f.cfg.Height, f.count), now)
}

// RenderFrame returns an RGBA frame whose first pixel encodes n. The rest of
// the image is a diagonal gradient shifted by n.
func RenderFrame(width, height int, n uint32) mediacore.Frame {
	stride := width * 4
	pix := make([]byte, stride*height)
	for y := range height {
		row := pix[y*stride:]
		for x := range width {
			v := byte(uint32(x+y) + n)
			row[x*4] = v
			row[x*4+1] = byte(y)
			row[x*4+2] = byte(x)
			row[x*4+3] = 0xff
		}
	}
	if len(pix) >= 4 {
		binary.BigEndian.PutUint32(pix[:4], n)
	}
	return mediacore.Frame{Width: width, Height: height, Stride: stride, Format: mediacore.PixelFormatRGBA, Pix: pix}
}

// ToneSource generates a sine tone as 16 bit PCM.
type ToneSource struct {
	source[mediacore.AudioChunk]
	cfg       mediacore.AudioConfig
	frequency float64
	phase     float64
}

// NewToneSource creates a tone generator. A non-positive frequency defaults to 440 Hz.
func NewToneSource(cfg mediacore.AudioConfig, frequency float64) *ToneSource {
	if frequency <= 0 {
		frequency = 440
	}
	id := cfg.DeviceID
	if id == "" {
		id = "synthetic-audio"
	}
	return &ToneSource{
		source:    source[mediacore.AudioChunk]{id: id, log: logger.Global().Module("capture").Module(component)},
		cfg:       cfg,
		frequency: frequency,
	}
}

func (t *ToneSource) ID() string                            { return t.id }
func (t *ToneSource) Format() mediacore.AudioFormat         { return t.cfg.Format() }
func (t *ToneSource) ChunkDuration() time.Duration          { return t.cfg.ChunkDuration() }
func (t *ToneSource) State() mediacore.SourceState          { return t.state.Load() }
func (t *ToneSource) Stop() error                           { return t.stop() }
func (t *ToneSource) Samples() <-chan mediacore.AudioSample { return t.samples() }
func (t *ToneSource) Errors() <-chan error                  { return t.errors() }

// Start begins generating chunks, one per chunk duration.
func (t *ToneSource) Start(ctx context.Context) error {
	t.phase = 0
	return t.start(ctx, t.cfg.ChunkDuration(), t.validate, t.generate)
}

func (t *ToneSource) validate() error {
	if err := t.cfg.Validate(); err != nil {
		return err
	}
	if !t.cfg.Enabled {
		return mediacore.NewDeviceError(mediacore.ErrDeviceNotFound, component, t.id, nil)
	}
	return nil
}

func (t *ToneSource) generate(now time.Time, e *mediacore.Emitter[mediacore.AudioChunk]) {
	e.Emit(t.next(), now)
}

// next renders one chunk continuing the phase of the previous one.
func (t *ToneSource) next() mediacore.AudioChunk {
	format := t.cfg.Format()
	frames := t.cfg.ChunkFrames
	data := make([]byte, frames*format.BytesPerFrame())
	step := 2 * math.Pi * t.frequency / float64(format.SampleRate)

	off := 0
	for range frames {
		v := int16(math.Sin(t.phase) * 0.25 * math.MaxInt16)
		for range format.Channels {
			binary.LittleEndian.PutUint16(data[off:], uint16(v))
			off += 2
		}
		t.phase += step
		if t.phase > 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
	return mediacore.AudioChunk{Data: data, Frames: frames}
}

var (
	_ mediacore.FrameSource = (*FrameSource)(nil)
	_ mediacore.AudioSource = (*ToneSource)(nil)
)
