package recording

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/replayclip/internal/encoder"
	"github.com/tphakala/replayclip/internal/mediacore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingEncoder struct {
	jobs     []encoder.Job
	videoLen int64
	audioLen int64
}

func (r *recordingEncoder) Encode(_ context.Context, job encoder.Job) (*encoder.Result, error) {
	r.jobs = append(r.jobs, job)
	if fi, err := os.Stat(job.Video.Path); err == nil {
		r.videoLen = fi.Size()
	}
	if job.Audio != nil {
		if fi, err := os.Stat(job.Audio.Path); err == nil {
			r.audioLen = fi.Size()
		}
	}
	return &encoder.Result{OutputPath: job.Output.Path}, os.WriteFile(job.Output.Path, []byte("rec"), 0o644)
}

func frameSample(i int, base time.Time) mediacore.FrameSample {
	return mediacore.FrameSample{
		Payload:    mediacore.Frame{Width: 2, Height: 2, Stride: 8, Format: mediacore.PixelFormatRGBA, Pix: make([]byte, 16)},
		CapturedAt: base.Add(time.Duration(i) * 50 * time.Millisecond),
		Sequence:   uint64(i + 1),
	}
}

func TestRecordingWritesAndEncodes(t *testing.T) {
	t.Parallel()

	enc := &recordingEncoder{}
	tempDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	sink, err := Start(Config{
		OutputDir:   outDir,
		TempDir:     tempDir,
		FrameRate:   20,
		AudioFormat: mediacore.AudioFormat{SampleRate: 8000, Channels: 1, BitDepth: 16},
		FrameQueue:  1000,
	}, enc)
	require.NoError(t, err)

	base := time.Now()
	for i := range 40 {
		require.True(t, sink.WriteFrame(frameSample(i, base)))
		require.True(t, sink.WriteAudio(mediacore.AudioSample{Payload: mediacore.AudioChunk{Data: make([]byte, 800), Frames: 400}}))
	}

	res, err := sink.Stop(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(40), res.Stats.FramesWritten)
	assert.Equal(t, uint64(40*800), res.Stats.AudioBytesWritten)
	assert.Zero(t, res.Stats.FramesDropped)
	assert.InDelta(t, 2.0, res.Duration.Seconds(), 0.01)
	assert.FileExists(t, res.OutputPath)
	assert.Contains(t, filepath.Base(res.OutputPath), "recording_")

	require.Len(t, enc.jobs, 1)
	assert.Equal(t, int64(40*16), enc.videoLen)
	assert.Equal(t, int64(40*800+44), enc.audioLen, "PCM plus the canonical header")
	assert.InDelta(t, 20.0, enc.jobs[0].Video.FrameRate, 0.01)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = sink.Stop(t.Context())
	assert.Error(t, err, "second stop")
}

func TestRecordingDropsWhenFull(t *testing.T) {
	t.Parallel()

	sink, err := Start(Config{
		OutputDir:        t.TempDir(),
		TempDir:          t.TempDir(),
		FrameRate:        10,
		AudioFormat:      mediacore.AudioFormat{SampleRate: 8000, Channels: 1, BitDepth: 16},
		AudioBufferBytes: 1024,
	}, &recordingEncoder{})
	require.NoError(t, err)

	big := mediacore.AudioSample{Payload: mediacore.AudioChunk{Data: make([]byte, 4096)}}
	assert.False(t, sink.WriteAudio(big), "chunk larger than the queue is dropped whole")
	assert.Equal(t, uint64(4096), sink.Stats().AudioBytesDropped)

	_, err = sink.Stop(t.Context())
	assert.ErrorIs(t, err, ErrNoFrames)
}

func TestRecordingVideoOnly(t *testing.T) {
	t.Parallel()

	enc := &recordingEncoder{}
	sink, err := Start(Config{OutputDir: t.TempDir(), TempDir: t.TempDir(), FrameRate: 10}, enc)
	require.NoError(t, err)

	assert.False(t, sink.WriteAudio(mediacore.AudioSample{Payload: mediacore.AudioChunk{Data: make([]byte, 2)}}))
	sink.WriteFrame(frameSample(0, time.Now()))

	res, err := sink.Stop(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Stats.FramesWritten)
	require.Len(t, enc.jobs, 1)
	assert.Nil(t, enc.jobs[0].Audio)
	assert.Equal(t, 10.0, enc.jobs[0].Video.FrameRate, "single frame uses the configured rate")
}
