// Package recording writes an unbounded full-session recording alongside the
// replay buffers.
package recording

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/replayclip/internal/encoder"
	"github.com/tphakala/replayclip/internal/errors"
	"github.com/tphakala/replayclip/internal/logger"
	"github.com/tphakala/replayclip/internal/mediacore"
	"github.com/tphakala/replayclip/internal/mediacore/interchange"
)

// ErrNoFrames is returned by Stop when nothing was recorded.
var ErrNoFrames = errors.NewStd("recording contains no frames")

// sinkCounter keeps temp names unique within the process.
var sinkCounter atomic.Uint64

const (
	defaultFrameQueue  = 120
	defaultAudioBuffer = 1 << 20
	audioReadSize      = 32 * 1024
)

// Config selects the output of a recording.
type Config struct {
	OutputDir        string
	TempDir          string
	Profile          encoder.Profile
	FrameRate        float64
	AudioFormat      mediacore.AudioFormat // zero SampleRate records video only
	FrameQueue       int                   // frames held while the writer is behind
	AudioBufferBytes int                   // PCM bytes held while the writer is behind
}

// Stats counts written and dropped data.
type Stats struct {
	FramesWritten     uint64
	FramesDropped     uint64
	AudioBytesWritten uint64
	AudioBytesDropped uint64
}

// Result describes a finished recording.
type Result struct {
	OutputPath string
	Duration   time.Duration
	StartedAt  time.Time
	Stats      Stats
}

// Sink accepts samples without blocking and streams them to interchange
// files on its own goroutine. Samples that do not fit are dropped.
type Sink struct {
	cfg Config
	enc encoder.Encoder
	log logger.Logger

	frames chan mediacore.FrameSample
	audio  *ringbuffer.RingBuffer
	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}

	videoPath string
	audioPath string
	videoW    *interchange.RawVideoWriter
	audioW    *interchange.WAVWriter

	firstFrame time.Time
	lastFrame  time.Time
	writeErr   error

	framesWritten atomic.Uint64
	framesDropped atomic.Uint64
	audioWritten  atomic.Uint64
	audioDropped  atomic.Uint64

	startedAt time.Time
	stopOnce  sync.Once
}

// Start creates the interchange files and launches the writer.
func Start(cfg Config, enc encoder.Encoder) (*Sink, error) {
	if cfg.FrameQueue <= 0 {
		cfg.FrameQueue = defaultFrameQueue
	}
	if cfg.AudioBufferBytes <= 0 {
		cfg.AudioBufferBytes = defaultAudioBuffer
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, recordingError("create_temp_dir", err)
	}

	s := &Sink{
		cfg:       cfg,
		enc:       enc,
		log:       logger.Global().Module("recording"),
		frames:    make(chan mediacore.FrameSample, cfg.FrameQueue),
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}

	stamp := s.startedAt.Format("20060102_150405")
	id := sinkCounter.Add(1)
	s.videoPath = filepath.Join(cfg.TempDir, fmt.Sprintf("recording_video_%s_%d.raw", stamp, id))
	vw, err := interchange.CreateRawVideo(s.videoPath)
	if err != nil {
		return nil, recordingError("create_video", err)
	}
	s.videoW = vw

	if cfg.AudioFormat.SampleRate > 0 {
		s.audio = ringbuffer.New(cfg.AudioBufferBytes)
		s.audioPath = filepath.Join(cfg.TempDir, fmt.Sprintf("recording_audio_%s_%d.wav", stamp, id))
		aw, err := interchange.CreateWAV(s.audioPath, cfg.AudioFormat)
		if err != nil {
			_ = vw.Close()
			_ = os.Remove(s.videoPath)
			return nil, recordingError("create_audio", err)
		}
		s.audioW = aw
	}

	go s.run()
	s.log.Info("recording started", logger.String("output_dir", cfg.OutputDir))
	return s, nil
}

// WriteFrame queues a frame. It reports false when the frame was dropped.
func (s *Sink) WriteFrame(sample mediacore.FrameSample) bool {
	select {
	case s.frames <- sample:
		return true
	default:
		s.framesDropped.Add(1)
		return false
	}
}

// WriteAudio queues a chunk. Chunks are kept whole: a chunk that does not
// fit is dropped entirely.
func (s *Sink) WriteAudio(sample mediacore.AudioSample) bool {
	if s.audio == nil {
		return false
	}
	data := sample.Payload.Data
	if s.audio.Free() < len(data) {
		s.audioDropped.Add(uint64(len(data)))
		return false
	}
	if _, err := s.audio.Write(data); err != nil {
		if !errors.Is(err, ringbuffer.ErrIsFull) {
			s.log.Debug("audio queue write failed", logger.Error(err))
		}
		s.audioDropped.Add(uint64(len(data)))
		return false
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Stats returns the current counters.
func (s *Sink) Stats() Stats {
	return Stats{
		FramesWritten:     s.framesWritten.Load(),
		FramesDropped:     s.framesDropped.Load(),
		AudioBytesWritten: s.audioWritten.Load(),
		AudioBytesDropped: s.audioDropped.Load(),
	}
}

func (s *Sink) run() {
	defer close(s.done)
	buf := make([]byte, audioReadSize)

	for {
		select {
		case f := <-s.frames:
			s.writeFrame(f)
		case <-s.wake:
			s.drainAudio(buf)
		case <-s.stop:
			s.drainFrames()
			s.drainAudio(buf)
			return
		}
	}
}

func (s *Sink) drainFrames() {
	for {
		select {
		case f := <-s.frames:
			s.writeFrame(f)
		default:
			return
		}
	}
}

func (s *Sink) writeFrame(f mediacore.FrameSample) {
	if s.writeErr != nil {
		s.framesDropped.Add(1)
		return
	}
	if err := s.videoW.WriteFrame(&f.Payload); err != nil {
		s.framesDropped.Add(1)
		if errors.Is(err, interchange.ErrFrameGeometry) {
			return
		}
		s.writeErr = err
		s.log.Error("recording video write failed, dropping further frames", logger.Error(err))
		return
	}
	if s.firstFrame.IsZero() {
		s.firstFrame = f.CapturedAt
	}
	s.lastFrame = f.CapturedAt
	s.framesWritten.Add(1)
}

func (s *Sink) drainAudio(buf []byte) {
	if s.audio == nil {
		return
	}
	for {
		n, err := s.audio.Read(buf)
		if n > 0 {
			if _, werr := s.audioW.Write(buf[:n]); werr != nil {
				s.audioDropped.Add(uint64(n))
				s.log.Warn("recording audio write failed", logger.Error(werr))
			} else {
				s.audioWritten.Add(uint64(n))
			}
		}
		if err != nil || n == 0 {
			return
		}
	}
}

// Stop drains the queues, closes the interchange files and encodes them to
// recording_{timestamp}.{ext}. Temporary files are always removed. Calling
// Stop more than once returns an error.
func (s *Sink) Stop(ctx context.Context) (Result, error) {
	first := false
	s.stopOnce.Do(func() { first = true })
	if !first {
		return Result{}, recordingError("stop", fmt.Errorf("recording already stopped"))
	}

	close(s.stop)
	<-s.done

	defer s.removeTemps()

	result := Result{StartedAt: s.startedAt, Stats: s.Stats()}
	closeErr := s.videoW.Close()
	if s.audioW != nil {
		closeErr = errors.Join(closeErr, s.audioW.Close())
	}
	if closeErr != nil {
		return result, recordingError("close", closeErr)
	}
	if s.videoW.Frames() == 0 {
		return result, errors.New(ErrNoFrames).Component("recording").Category(errors.CategoryRecording).Build()
	}

	width, height, format := s.videoW.Geometry()
	frameRate := s.cfg.FrameRate
	if span := s.lastFrame.Sub(s.firstFrame); s.videoW.Frames() > 1 && span > 0 {
		frameRate = float64(s.videoW.Frames()-1) / span.Seconds()
	}
	result.Duration = time.Duration(float64(s.videoW.Frames()) / frameRate * float64(time.Second))

	profile := s.cfg.Profile
	if profile.Container == "" {
		profile = encoder.DefaultProfile()
	}
	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		return result, recordingError("create_output_dir", err)
	}

	job := encoder.Job{
		Video: encoder.VideoInput{Path: s.videoPath, Width: width, Height: height, PixelFormat: format, FrameRate: frameRate},
		Output: encoder.OutputSpec{
			Path:    filepath.Join(s.cfg.OutputDir, fmt.Sprintf("recording_%s.%s", s.startedAt.Format("20060102_150405"), profile.Extension())),
			Profile: profile,
		},
	}
	if s.audioW != nil && s.audioW.Bytes() > 0 {
		job.Audio = &encoder.AudioInput{
			Path:         s.audioPath,
			Channels:     s.cfg.AudioFormat.Channels,
			SampleRate:   s.cfg.AudioFormat.SampleRate,
			SampleFormat: "s16le",
		}
	}

	if _, err := s.enc.Encode(ctx, job); err != nil {
		return result, err
	}
	result.OutputPath = job.Output.Path

	s.log.Info("recording saved",
		logger.String("path", result.OutputPath),
		logger.Duration("duration", result.Duration),
		logger.Uint64("frames_dropped", result.Stats.FramesDropped),
		logger.Uint64("audio_bytes_dropped", result.Stats.AudioBytesDropped))
	return result, nil
}

func (s *Sink) removeTemps() {
	for _, p := range []string{s.videoPath, s.audioPath} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.log.Warn("failed to remove temporary file", logger.String("path", p), logger.Error(err))
		}
	}
}

func recordingError(op string, err error) error {
	return errors.New(err).
		Component("recording").
		Category(errors.CategoryRecording).
		Context("operation", op).
		Build()
}
