package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/replayclip/internal/encoder"
	"github.com/tphakala/replayclip/internal/events"
	"github.com/tphakala/replayclip/internal/mediacore"
	"github.com/tphakala/replayclip/internal/mediacore/sources/synthetic"
	"github.com/tphakala/replayclip/internal/observability/metrics"
	"github.com/tphakala/replayclip/internal/recording"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() Config {
	return Config{
		Video: mediacore.VideoConfig{Width: 16, Height: 8, FrameRate: 50},
		Audio: mediacore.AudioConfig{
			Enabled:     true,
			SampleRate:  8000,
			Channels:    1,
			ChunkFrames: 400,
		},
		BufferDuration: time.Second,
	}
}

// trackingFactory builds synthetic sources and keeps the last pair.
type trackingFactory struct {
	mu        sync.Mutex
	video     *synthetic.FrameSource
	audio     *synthetic.ToneSource
	failAudio bool
}

func (f *trackingFactory) NewFrameSource(cfg mediacore.VideoConfig) (mediacore.FrameSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.video = synthetic.NewFrameSource(cfg)
	return f.video, nil
}

func (f *trackingFactory) NewAudioSource(cfg mediacore.AudioConfig) (mediacore.AudioSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAudio {
		// a disabled tone source reports the device as missing
		cfg.Enabled = false
	}
	f.audio = synthetic.NewToneSource(cfg, 440)
	return f.audio, nil
}

func (f *trackingFactory) sources() (*synthetic.FrameSource, *synthetic.ToneSource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.video, f.audio
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) TryPublish(e events.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return true
}

func (r *eventRecorder) ofKind(kind events.Kind) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type fileEncoder struct {
	mu   sync.Mutex
	jobs []encoder.Job
}

func (f *fileEncoder) Encode(_ context.Context, job encoder.Job) (*encoder.Result, error) {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()
	if err := os.WriteFile(job.Output.Path, []byte("media"), 0o644); err != nil {
		return nil, err
	}
	return &encoder.Result{OutputPath: job.Output.Path}, nil
}

func TestNewController_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewController(Config{}, SyntheticFactory{})
	require.Error(t, err)
	assert.ErrorIs(t, err, mediacore.ErrInvalidConfig)

	_, err = NewController(testConfig(), nil)
	require.Error(t, err)

	c, err := NewController(testConfig(), SyntheticFactory{})
	require.NoError(t, err)
	usage := c.BufferUsage()
	assert.Equal(t, 50, usage.VideoCapacity)
	assert.Equal(t, 20, usage.AudioCapacity)
	assert.False(t, c.IsCapturing())
	assert.Equal(t, SessionIdle, c.Session().State)
}

func TestController_StartStop(t *testing.T) {
	t.Parallel()

	m, err := metrics.NewReplayMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	c, err := NewController(testConfig(), SyntheticFactory{}, WithMetrics(m))
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background(), testConfig()))
	assert.True(t, c.IsCapturing())
	session := c.Session()
	assert.Equal(t, SessionCapturing, session.State)
	assert.NotEmpty(t, session.ID)
	assert.NotEmpty(t, session.AudioID)

	require.Eventually(t, func() bool {
		u := c.BufferUsage()
		return u.VideoFrames >= 5 && u.AudioChunks >= 2
	}, 2*time.Second, 5*time.Millisecond)

	require.ErrorIs(t, c.Start(context.Background(), testConfig()), ErrAlreadyCapturing)

	require.NoError(t, c.Stop())
	assert.False(t, c.IsCapturing())
	assert.Equal(t, SessionIdle, c.Session().State)

	pushed := c.VideoBuffer().Pushed()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, pushed, c.VideoBuffer().Pushed(), "no samples after Stop returns")

	assert.Positive(t, testutil.ToFloat64(m.SamplesPushed.WithLabelValues(metrics.StreamVideo)))
	assert.InDelta(t, 0, testutil.ToFloat64(m.CaptureActive), 0)

	require.NoError(t, c.Stop(), "stop is idempotent")
}

func TestController_SamplesOrderedPerStream(t *testing.T) {
	t.Parallel()

	c, err := NewController(testConfig(), SyntheticFactory{})
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background(), testConfig()))
	require.Eventually(t, func() bool { return c.VideoBuffer().Len() >= 10 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop())

	frames := c.VideoBuffer().Snapshot()
	for i := 1; i < len(frames); i++ {
		assert.Equal(t, frames[i-1].Sequence+1, frames[i].Sequence)
		assert.False(t, frames[i].CapturedAt.Before(frames[i-1].CapturedAt))
	}
}

func TestController_CaptureOutlivesStartContext(t *testing.T) {
	t.Parallel()

	c, err := NewController(testConfig(), SyntheticFactory{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx, testConfig()))
	require.Eventually(t, func() bool { return c.VideoBuffer().Pushed() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	before := c.VideoBuffer().Pushed()
	require.Eventually(t, func() bool { return c.VideoBuffer().Pushed() >= before+5 }, 2*time.Second, 5*time.Millisecond,
		"frames stopped once the start context ended")
	assert.True(t, c.IsCapturing())

	// Reconfigure with a context that ends right after the restart
	reCtx, reCancel := context.WithCancel(context.Background())
	require.NoError(t, c.Reconfigure(reCtx, testConfig()))
	reCancel()
	before = c.VideoBuffer().Pushed()
	require.Eventually(t, func() bool { return c.VideoBuffer().Pushed() >= before+5 }, 2*time.Second, 5*time.Millisecond)
	audioBefore := c.AudioBuffer().Pushed()
	require.Eventually(t, func() bool { return c.AudioBuffer().Pushed() > audioBefore }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Stop())
	assert.False(t, c.IsCapturing())
}

func TestController_FailClosed(t *testing.T) {
	t.Parallel()

	factory := &trackingFactory{failAudio: true}
	rec := &eventRecorder{}
	c, err := NewController(testConfig(), factory, WithPublisher(rec))
	require.NoError(t, err)

	err = c.Start(context.Background(), testConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, mediacore.ErrDeviceNotFound)
	assert.False(t, c.IsCapturing())

	video, _ := factory.sources()
	assert.Equal(t, mediacore.StateStopped, video.State(), "video source must not keep running")

	failures := rec.ofKind(events.KindDeviceFailure)
	require.Len(t, failures, 1)
	assert.Equal(t, metrics.StreamAudio, failures[0].Field(events.FieldStream))
	assert.Equal(t, "not_found", failures[0].Field(events.FieldErrorKind))

	// a later start with a working device succeeds
	factory.mu.Lock()
	factory.failAudio = false
	factory.mu.Unlock()
	require.NoError(t, c.Start(context.Background(), testConfig()))
	require.NoError(t, c.Stop())
}

func TestController_MidCaptureFailureStopsOnlyThatSource(t *testing.T) {
	t.Parallel()

	factory := &trackingFactory{}
	rec := &eventRecorder{}
	c, err := NewController(testConfig(), factory, WithPublisher(rec))
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background(), testConfig()))
	defer func() { require.NoError(t, c.Stop()) }()

	require.Eventually(t, func() bool { return c.AudioBuffer().Len() >= 2 }, 2*time.Second, 5*time.Millisecond)

	video, audio := factory.sources()
	audio.Fail(mediacore.NewDeviceError(mediacore.ErrDeviceNotFound, "synthetic", audio.ID(), errors.New("unplugged")))

	require.Eventually(t, func() bool {
		return audio.State() == mediacore.StateStopped && len(rec.ofKind(events.KindDeviceFailure)) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, c.AudioBuffer().Len(), "audio is discarded after the device is lost")

	pushed := c.VideoBuffer().Pushed()
	require.Eventually(t, func() bool { return c.VideoBuffer().Pushed() > pushed+3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, mediacore.StateRunning, video.State())
	assert.True(t, c.IsCapturing())
}

func TestController_Reconfigure(t *testing.T) {
	t.Parallel()

	c, err := NewController(testConfig(), SyntheticFactory{})
	require.NoError(t, err)

	// idle reconfigure only resizes
	idle := testConfig()
	idle.BufferDuration = 2 * time.Second
	require.NoError(t, c.Reconfigure(context.Background(), idle))
	assert.False(t, c.IsCapturing())
	assert.Equal(t, 100, c.BufferUsage().VideoCapacity)

	require.NoError(t, c.Start(context.Background(), testConfig()))
	first := c.Session().ID
	require.Eventually(t, func() bool { return c.VideoBuffer().Len() >= 3 }, 2*time.Second, 5*time.Millisecond)

	next := testConfig()
	next.Video.Width, next.Video.Height = 32, 16
	next.BufferDuration = 500 * time.Millisecond
	require.NoError(t, c.Reconfigure(context.Background(), next))

	assert.True(t, c.IsCapturing())
	assert.NotEqual(t, first, c.Session().ID)
	assert.Equal(t, 25, c.BufferUsage().VideoCapacity)

	require.Eventually(t, func() bool { return c.VideoBuffer().Len() >= 1 }, 2*time.Second, 5*time.Millisecond)
	for _, f := range c.VideoBuffer().Snapshot() {
		assert.Equal(t, 32, f.Payload.Width, "no frames from the old session")
	}
	require.NoError(t, c.Stop())

	invalid := testConfig()
	invalid.Video.FrameRate = 0
	require.Error(t, c.Reconfigure(context.Background(), invalid))
}

func TestController_VideoOnly(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Audio.Enabled = false
	c, err := NewController(cfg, SyntheticFactory{})
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background(), cfg))
	assert.Empty(t, c.Session().AudioID)

	require.Eventually(t, func() bool { return c.VideoBuffer().Len() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop())
	assert.Equal(t, 0, c.AudioBuffer().Len())
}

func TestController_Recording(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	enc := &fileEncoder{}
	rec := &eventRecorder{}
	c, err := NewController(testConfig(), SyntheticFactory{},
		WithPublisher(rec),
		WithRecording(enc, recording.Config{TempDir: t.TempDir()}))
	require.NoError(t, err)

	require.ErrorIs(t, c.StartRecording(out), ErrNotCapturing)

	require.NoError(t, c.Start(context.Background(), testConfig()))
	require.NoError(t, c.StartRecording(out))
	assert.True(t, c.IsRecording())
	require.ErrorIs(t, c.StartRecording(out), ErrRecordingActive)

	videoStart, audioStart := c.VideoBuffer().Pushed(), c.AudioBuffer().Pushed()
	require.Eventually(t, func() bool {
		return c.VideoBuffer().Pushed() > videoStart+5 && c.AudioBuffer().Pushed() > audioStart+2
	}, 2*time.Second, 5*time.Millisecond)

	result, err := c.StopRecording(context.Background())
	require.NoError(t, err)
	assert.False(t, c.IsRecording())
	assert.Equal(t, out, filepath.Dir(result.OutputPath))
	assert.FileExists(t, result.OutputPath)
	assert.Positive(t, result.Stats.FramesWritten)

	enc.mu.Lock()
	require.Len(t, enc.jobs, 1)
	assert.NotNil(t, enc.jobs[0].Audio)
	assert.Equal(t, 16, enc.jobs[0].Video.Width)
	enc.mu.Unlock()

	_, err = c.StopRecording(context.Background())
	require.ErrorIs(t, err, ErrNoRecording)

	// replay buffers keep filling after the recording ends
	after := c.VideoBuffer().Pushed()
	require.Eventually(t, func() bool { return c.VideoBuffer().Pushed() > after }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop())

	finished := rec.ofKind(events.KindRecordingFinished)
	require.Len(t, finished, 1)
	assert.NoError(t, finished[0].Err)
	assert.Equal(t, result.OutputPath, finished[0].Field(events.FieldOutputPath))
}

func TestController_StopFinalizesRecording(t *testing.T) {
	t.Parallel()

	rec := &eventRecorder{}
	c, err := NewController(testConfig(), SyntheticFactory{},
		WithPublisher(rec),
		WithRecording(&fileEncoder{}, recording.Config{OutputDir: t.TempDir(), TempDir: t.TempDir()}))
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background(), testConfig()))
	require.NoError(t, c.StartRecording(""))
	start := c.VideoBuffer().Pushed()
	require.Eventually(t, func() bool { return c.VideoBuffer().Pushed() > start+3 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Stop())
	assert.False(t, c.IsRecording())
	assert.Len(t, rec.ofKind(events.KindRecordingFinished), 1)
}

func TestSessionState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle", SessionIdle.String())
	assert.Equal(t, "capturing", SessionCapturing.String())
	assert.Equal(t, "stopping", SessionStopping.String())
	assert.Equal(t, "unknown", SessionState(9).String())
}
