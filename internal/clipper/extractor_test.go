package clipper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/replayclip/internal/encoder"
	"github.com/tphakala/replayclip/internal/mediacore"
	"github.com/tphakala/replayclip/internal/mediacore/avsync"
	"github.com/tphakala/replayclip/internal/mediacore/ringbuffer"
)

// fakeEncoder records jobs and writes a placeholder output file.
type fakeEncoder struct {
	mu      sync.Mutex
	jobs    []encoder.Job
	failFor map[string]bool // container -> fail
	started chan struct{}
	release chan struct{}
	sawTemp atomic.Bool
}

func (f *fakeEncoder) Encode(_ context.Context, job encoder.Job) (*encoder.Result, error) {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	fail := f.failFor[job.Output.Container]
	f.mu.Unlock()

	if _, err := os.Stat(job.Video.Path); err == nil {
		f.sawTemp.Store(true)
	}
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	if fail {
		res := &encoder.Result{ExitCode: 1, Stderr: "boom"}
		return res, mediacore.NewClipError(mediacore.ErrEncodingFailed, "encode", errors.New("exit status 1"))
	}
	if err := os.WriteFile(job.Output.Path, []byte("clip"), 0o644); err != nil {
		return nil, err
	}
	return &encoder.Result{OutputPath: job.Output.Path}, nil
}

func (f *fakeEncoder) Jobs() []encoder.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]encoder.Job(nil), f.jobs...)
}

type fixture struct {
	video   *ringbuffer.RingBuffer[mediacore.FrameSample]
	audio   *ringbuffer.RingBuffer[mediacore.AudioSample]
	sync    *avsync.Coordinator
	enc     *fakeEncoder
	ex      *Extractor
	outDir  string
	tempDir string
	base    time.Time
}

func newFixture(t *testing.T, profile encoder.Profile) *fixture {
	t.Helper()
	f := &fixture{
		video:   ringbuffer.New[mediacore.FrameSample](300),
		audio:   ringbuffer.New[mediacore.AudioSample](1000),
		sync:    avsync.NewCoordinator(0),
		enc:     &fakeEncoder{},
		outDir:  filepath.Join(t.TempDir(), "clips"),
		tempDir: t.TempDir(),
		base:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.ex = NewExtractor(Buffers{Video: f.video, Audio: f.audio, Sync: f.sync}, f.enc, Config{
		OutputDir:       f.outDir,
		TempDir:         f.tempDir,
		Profile:         profile,
		FrameRate:       10,
		AudioFormat:     mediacore.AudioFormat{SampleRate: 1000, Channels: 1, BitDepth: 16},
		DefaultDuration: 5 * time.Second,
		DriftTolerance:  100 * time.Millisecond,
	})
	f.ex.now = func() time.Time { return f.base }
	return f
}

// fill pushes seconds of 10 fps video and 10 chunks per second of audio.
func (f *fixture) fill(seconds int) {
	for i := range seconds * 10 {
		at := f.base.Add(time.Duration(i) * 100 * time.Millisecond)
		f.video.Push(mediacore.FrameSample{
			Payload:    mediacore.Frame{Width: 4, Height: 2, Stride: 16, Format: mediacore.PixelFormatRGBA, Pix: make([]byte, 32)},
			CapturedAt: at,
			Sequence:   uint64(i + 1),
		})
		f.audio.Push(mediacore.AudioSample{
			Payload:    mediacore.AudioChunk{Data: make([]byte, 200), Frames: 100},
			CapturedAt: at,
			Sequence:   uint64(i + 1),
		})
		f.sync.RecordVideoTimestamp(at)
		f.sync.RecordAudioTimestamp(at)
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary interchange files left behind")
}

func request(d time.Duration) Request {
	return Request{ID: uuid.New(), RequestedAt: time.Now(), Duration: d, Reason: "test"}
}

func TestExtractSuccess(t *testing.T) {
	t.Parallel()

	f := newFixture(t, encoder.DefaultProfile())
	f.fill(10)

	res := f.ex.Extract(t.Context(), request(3*time.Second))
	require.True(t, res.Success, "unexpected error: %v", res.Err)
	assert.NoError(t, res.Err)
	assert.Equal(t, 31, res.FrameCount, "window [end-3s, end] at 10 fps is inclusive")
	assert.Equal(t, int64(31*200), res.AudioByteCount)
	assert.InDelta(t, 10.0, res.FrameRate, 0.001)
	assert.Equal(t, f.outDir, filepath.Dir(res.OutputPath))
	assert.Regexp(t, `^clip_20240501_120000_\d+\.mp4$`, filepath.Base(res.OutputPath))
	assert.FileExists(t, res.OutputPath)
	assert.True(t, f.enc.sawTemp.Load(), "encoder sees the interchange file")
	assertNoTempFiles(t, f.tempDir)

	jobs := f.enc.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, 4, jobs[0].Video.Width)
	require.NotNil(t, jobs[0].Audio)
	assert.Equal(t, 1000, jobs[0].Audio.SampleRate)

	stats := f.ex.Statistics()
	assert.Equal(t, 1, stats.ClipsCreated)
	assert.Equal(t, res.OutputPath, stats.LastClipPath)
}

func TestExtractInsufficientData(t *testing.T) {
	t.Parallel()

	f := newFixture(t, encoder.DefaultProfile())
	res := f.ex.Extract(t.Context(), request(time.Second))
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, mediacore.ErrInsufficientData)
	assert.Empty(t, f.enc.Jobs(), "no clip is written without video")
	assertNoTempFiles(t, f.tempDir)
	assert.NoDirExists(t, f.outDir)
}

func TestExtractEncoderFailureWithFallback(t *testing.T) {
	t.Parallel()

	profile := encoder.DefaultProfile()
	profile.Container = "mkv"
	f := newFixture(t, profile)
	f.enc.failFor = map[string]bool{"mkv": true}
	f.fill(2)

	res := f.ex.Extract(t.Context(), request(time.Second))
	require.True(t, res.Success)
	assert.True(t, res.Fallback)
	assert.Equal(t, ".mp4", filepath.Ext(res.OutputPath))
	assert.Len(t, f.enc.Jobs(), 2)
	assertNoTempFiles(t, f.tempDir)
	assert.Equal(t, 1, f.ex.Statistics().FallbackEncodes)
}

func TestExtractEncoderFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, encoder.DefaultProfile())
	f.enc.failFor = map[string]bool{"mp4": true}
	f.fill(2)
	before := f.video.Snapshot()

	res := f.ex.Extract(t.Context(), request(time.Second))
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, mediacore.ErrEncodingFailed)
	assert.Len(t, f.enc.Jobs(), 1, "default profile has no further fallback")
	assertNoTempFiles(t, f.tempDir)

	// buffers unaffected and immediately usable again
	assert.Equal(t, before, f.video.Snapshot())
	f.enc.failFor = nil
	res = f.ex.Extract(t.Context(), request(time.Second))
	assert.True(t, res.Success)
	assert.Equal(t, 1, f.ex.Statistics().ClipsFailed)
}

func TestExtractBusy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, encoder.DefaultProfile())
	f.enc.started = make(chan struct{})
	f.enc.release = make(chan struct{})
	f.fill(2)

	first := make(chan Result, 1)
	go func() { first <- f.ex.Extract(t.Context(), request(time.Second)) }()
	<-f.enc.started

	second := f.ex.Extract(t.Context(), request(time.Second))
	assert.False(t, second.Success)
	assert.ErrorIs(t, second.Err, mediacore.ErrClipBusy)

	close(f.enc.release)
	res := <-first
	assert.True(t, res.Success)
	assertNoTempFiles(t, f.tempDir)
}

func TestExtractionIsolation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, encoder.DefaultProfile())
	f.enc.started = make(chan struct{})
	f.enc.release = make(chan struct{})
	f.fill(2)
	pushedBefore := f.video.Pushed()

	done := make(chan Result, 1)
	go func() { done <- f.ex.Extract(t.Context(), request(time.Second)) }()
	<-f.enc.started

	// capture keeps pushing while the encoder runs
	for i := range 50 {
		f.video.Push(mediacore.FrameSample{CapturedAt: f.base.Add(time.Hour + time.Duration(i)), Sequence: uint64(1000 + i)})
	}
	assert.Equal(t, pushedBefore+50, f.video.Pushed())

	close(f.enc.release)
	res := <-done
	assert.True(t, res.Success)
	assert.Equal(t, 11, res.FrameCount, "extraction works on its snapshot only")
}

func TestExtractSyncWarning(t *testing.T) {
	t.Parallel()

	f := newFixture(t, encoder.DefaultProfile())
	f.fill(2)
	f.sync.RecordVideoTimestamp(f.base.Add(5 * time.Second))

	res := f.ex.Extract(t.Context(), request(time.Second))
	assert.True(t, res.Success)
	assert.ErrorIs(t, res.SyncWarning, mediacore.ErrSyncDrift)
}

func TestExtractVideoOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t, encoder.DefaultProfile())
	f.ex.buffers.Audio = nil
	f.fill(2)

	res := f.ex.Extract(t.Context(), request(0))
	require.True(t, res.Success)
	assert.Equal(t, 20, res.FrameCount, "default duration covers the whole buffer")
	assert.Nil(t, f.enc.Jobs()[0].Audio)
}

func TestOutputNamesAreUnique(t *testing.T) {
	t.Parallel()

	// separate extractors share the counters
	var first, second namer
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	a := first.outputPath("/clips", at, "mp4")
	b := second.outputPath("/clips", at, "mp4")
	assert.Regexp(t, `^/clips/clip_20240102_030405_\d+\.mp4$`, filepath.ToSlash(a))
	assert.NotEqual(t, a, b)

	v1, w1 := first.tempPaths("/tmp", at)
	v2, w2 := second.tempPaths("/tmp", at)
	assert.Regexp(t, `^/tmp/temp_video_20240102_030405_\d+\.raw$`, filepath.ToSlash(v1))
	assert.Regexp(t, `^/tmp/temp_audio_20240102_030405_\d+\.wav$`, filepath.ToSlash(w1))
	assert.NotEqual(t, v1, v2)
	assert.NotEqual(t, w1, w2)
}
