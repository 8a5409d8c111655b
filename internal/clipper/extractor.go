// Package clipper extracts the recent contents of the capture ring buffers
// into finished clips.
package clipper

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/replayclip/internal/encoder"
	"github.com/tphakala/replayclip/internal/errors"
	"github.com/tphakala/replayclip/internal/logger"
	"github.com/tphakala/replayclip/internal/mediacore"
	"github.com/tphakala/replayclip/internal/mediacore/avsync"
	"github.com/tphakala/replayclip/internal/mediacore/interchange"
	"github.com/tphakala/replayclip/internal/mediacore/ringbuffer"
)

// Request asks for the last Duration of capture. A non-positive duration
// selects the configured default.
type Request struct {
	ID          uuid.UUID
	RequestedAt time.Time
	Duration    time.Duration
	Reason      string
}

// Result is the inspectable outcome of one extraction.
type Result struct {
	RequestID      uuid.UUID
	OutputPath     string
	ActualDuration time.Duration
	FrameCount     int
	AudioByteCount int64
	FrameRate      float64
	Success        bool
	Err            error
	Fallback       bool          // produced by the fallback profile
	SyncWarning    error         // drift beyond tolerance, advisory
	EncodeTime     time.Duration // total time spent in the encoder
	FinishedAt     time.Time
}

// Config controls where and how clips are written.
type Config struct {
	OutputDir       string
	TempDir         string // interchange files, defaults to os.TempDir()
	Profile         encoder.Profile
	FrameRate       float64 // configured capture rate
	AudioFormat     mediacore.AudioFormat
	DefaultDuration time.Duration
	DriftTolerance  time.Duration
}

// Buffers is the ring buffer pair read by an extractor. Audio and Sync may be
// nil when audio capture is disabled.
type Buffers struct {
	Video *ringbuffer.RingBuffer[mediacore.FrameSample]
	Audio *ringbuffer.RingBuffer[mediacore.AudioSample]
	Sync  *avsync.Coordinator
}

// Extractor serializes extractions over one buffer pair.
type Extractor struct {
	buffers Buffers
	enc     encoder.Encoder

	busy sync.Mutex // held for the whole extraction

	cfgMu sync.RWMutex
	cfg   Config

	names namer
	stats statsTracker
	now   func() time.Time
	log   logger.Logger
}

// NewExtractor creates an extractor reading buffers and encoding with enc.
func NewExtractor(buffers Buffers, enc encoder.Encoder, cfg Config) *Extractor {
	return &Extractor{
		buffers: buffers,
		enc:     enc,
		cfg:     cfg,
		now:     time.Now,
		log:     logger.Global().Module("clipper"),
	}
}

// SetConfig replaces the configuration for subsequent extractions.
func (e *Extractor) SetConfig(cfg Config) {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()
	e.cfg = cfg
}

func (e *Extractor) config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// Statistics returns counters since the extractor was created.
func (e *Extractor) Statistics() Statistics {
	return e.stats.snapshot()
}

// Extract saves the last req.Duration of buffered capture. A request arriving
// while another extraction runs is dropped with a busy clip error. Extraction
// reads snapshots only, so capture keeps running and the buffers are never
// modified. ctx bounds the encoder subprocess.
func (e *Extractor) Extract(ctx context.Context, req Request) Result {
	if !e.busy.TryLock() {
		r := Result{RequestID: req.ID, Err: mediacore.NewClipError(mediacore.ErrClipBusy, "extract", nil), FinishedAt: e.now()}
		e.log.Warn("clip request dropped, extraction in progress", logger.String("request_id", req.ID.String()))
		e.stats.record(r)
		return r
	}
	defer e.busy.Unlock()

	r := e.extract(ctx, req)
	r.RequestID = req.ID
	r.FinishedAt = e.now()
	e.stats.record(r)

	if r.Success {
		e.log.Info("clip saved",
			logger.String("path", r.OutputPath),
			logger.Int("frames", r.FrameCount),
			logger.Int64("audio_bytes", r.AudioByteCount),
			logger.Duration("duration", r.ActualDuration),
			logger.Bool("fallback", r.Fallback))
	} else {
		e.log.Error("clip failed",
			logger.String("request_id", req.ID.String()),
			logger.String("kind", mediacore.ClipErrorKind(r.Err)),
			logger.Error(r.Err))
	}
	return r
}

func (e *Extractor) extract(ctx context.Context, req Request) Result {
	cfg := e.config()
	duration := req.Duration
	if duration <= 0 {
		duration = cfg.DefaultDuration
	}

	video := e.buffers.Video.Snapshot()
	var audio []mediacore.AudioSample
	if e.buffers.Audio != nil {
		audio = e.buffers.Audio.Snapshot()
	}

	w := trimWindow(video, audio, duration)
	if len(w.video) == 0 {
		return Result{Err: mediacore.NewClipError(mediacore.ErrInsufficientData, "trim",
			fmt.Errorf("no video frames in the last %s", duration))}
	}

	var result Result
	if e.buffers.Sync != nil && len(w.audio) > 0 && cfg.DriftTolerance > 0 {
		if warn := e.buffers.Sync.CheckDrift(cfg.DriftTolerance); warn != nil {
			e.log.Warn("audio/video drift beyond tolerance", logger.Error(warn))
			result.SyncWarning = warn
		}
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		result.Err = mediacore.NewClipError(mediacore.ErrClipIO, "create_output_dir", err)
		return result
	}
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		result.Err = mediacore.NewClipError(mediacore.ErrClipIO, "create_temp_dir", err)
		return result
	}

	stamp := e.now()
	videoPath, audioPath := e.names.tempPaths(tempDir, stamp)
	defer removeTemp(videoPath, e.log)
	defer removeTemp(audioPath, e.log)

	frame := w.video[len(w.video)-1].Payload
	frameRate := effectiveFrameRate(w.video, cfg.FrameRate)
	job := encoder.Job{
		Video: encoder.VideoInput{
			Path:        videoPath,
			Width:       frame.Width,
			Height:      frame.Height,
			PixelFormat: frame.Format,
			FrameRate:   frameRate,
		},
	}

	if err := writeVideo(videoPath, w.video); err != nil {
		result.Err = mediacore.NewClipError(mediacore.ErrClipIO, "write_video", err)
		return result
	}
	result.FrameCount = len(w.video)
	result.FrameRate = frameRate
	result.ActualDuration = time.Duration(float64(len(w.video)) / frameRate * float64(time.Second))

	if len(w.audio) > 0 {
		n, err := writeAudio(audioPath, w.audio, cfg.AudioFormat)
		if err != nil {
			result.Err = mediacore.NewClipError(mediacore.ErrClipIO, "write_audio", err)
			return result
		}
		result.AudioByteCount = n
		job.Audio = &encoder.AudioInput{
			Path:         audioPath,
			Channels:     cfg.AudioFormat.Channels,
			SampleRate:   cfg.AudioFormat.SampleRate,
			SampleFormat: "s16le",
		}
	}

	profile := cfg.Profile
	if profile.Container == "" {
		profile = encoder.DefaultProfile()
	}
	job.Output = encoder.OutputSpec{Path: e.names.outputPath(cfg.OutputDir, stamp, profile.Extension()), Profile: profile}

	start := time.Now()
	_, err := e.enc.Encode(ctx, job)
	if err != nil && profile != encoder.DefaultProfile() && ctx.Err() == nil {
		e.log.Warn("encode failed, retrying with default profile",
			logger.String("container", profile.Container),
			logger.Error(err))
		fallback := encoder.DefaultProfile()
		job.Output = encoder.OutputSpec{Path: e.names.outputPath(cfg.OutputDir, stamp, fallback.Extension()), Profile: fallback}
		_, err = e.enc.Encode(ctx, job)
		result.Fallback = true
	}
	result.EncodeTime = time.Since(start)

	if err != nil {
		if !errors.Is(err, mediacore.ErrEncodingFailed) {
			err = mediacore.NewClipError(mediacore.ErrEncodingFailed, "encode", err)
		}
		result.Err = err
		return result
	}

	result.OutputPath = job.Output.Path
	result.Success = true
	return result
}

func writeVideo(path string, frames []mediacore.FrameSample) (err error) {
	w, err := interchange.CreateRawVideo(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	for i := range frames {
		if err := w.WriteFrame(&frames[i].Payload); err != nil {
			return err
		}
	}
	return nil
}

func writeAudio(path string, chunks []mediacore.AudioSample, format mediacore.AudioFormat) (n int64, err error) {
	w, err := interchange.CreateWAV(path, format)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	for i := range chunks {
		if _, err := w.Write(chunks[i].Payload.Data); err != nil {
			return 0, err
		}
	}
	return w.Bytes(), nil
}

func removeTemp(path string, log logger.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove temporary file", logger.String("path", path), logger.Error(err))
	}
}
