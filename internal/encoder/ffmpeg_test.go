package encoder

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/replayclip/internal/mediacore"
)

// fakeFFmpeg writes a shell script standing in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script encoder stub requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func testJob(dir string, audio bool) Job {
	job := Job{
		Video: VideoInput{
			Path:        filepath.Join(dir, "in.raw"),
			Width:       640,
			Height:      360,
			PixelFormat: mediacore.PixelFormatRGBA,
			FrameRate:   29.97,
		},
		Output: OutputSpec{Path: filepath.Join(dir, "out", "clip.mp4"), Profile: DefaultProfile()},
	}
	if audio {
		job.Audio = &AudioInput{Path: filepath.Join(dir, "in.wav"), Channels: 2, SampleRate: 48000, SampleFormat: "s16le"}
	}
	return job
}

func TestBuildArgs(t *testing.T) {
	t.Parallel()

	job := testJob("/tmp", true)
	args := BuildArgs(job, "/tmp/out.temp")
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-f rawvideo -pix_fmt rgba -s 640x360 -framerate 29.97 -i /tmp/in.raw")
	assert.Contains(t, joined, "-i /tmp/in.wav")
	assert.Contains(t, joined, "-c:v libx264 -preset veryfast -crf 23 -pix_fmt yuv420p")
	assert.Contains(t, joined, "-c:a aac -b:a 192k -shortest")
	assert.Equal(t, []string{"-f", "mp4", "-y", "/tmp/out.temp"}, args[len(args)-4:])

	job = testJob("/tmp", false)
	job.Output.Profile.Container = "mkv"
	joined = strings.Join(BuildArgs(job, "/tmp/out.temp"), " ")
	assert.NotContains(t, joined, "-shortest")
	assert.NotContains(t, joined, "-c:a")
	assert.Contains(t, joined, "-f matroska -y")
}

func TestEncodeSuccessRenamesOutput(t *testing.T) {
	t.Parallel()

	// write to the last argument like ffmpeg does
	bin := fakeFFmpeg(t, `for a; do last="$a"; done; echo encoded > "$last"`)
	dir := t.TempDir()
	job := testJob(dir, true)

	res, err := NewFFmpeg(bin).Encode(t.Context(), job)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.FileExists(t, job.Output.Path)
	assert.NoFileExists(t, job.Output.Path+tempExt)
}

func TestEncodeNonZeroExit(t *testing.T) {
	t.Parallel()

	bin := fakeFFmpeg(t, `echo "Unknown encoder 'libx264'" >&2; exit 3`)
	dir := t.TempDir()
	job := testJob(dir, false)

	res, err := NewFFmpeg(bin).Encode(t.Context(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, mediacore.ErrEncodingFailed)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Stderr, "Unknown encoder")
	assert.Contains(t, err.Error(), "code 3")
	assert.NoFileExists(t, job.Output.Path)
}

func TestEncodeCancelKillsProcess(t *testing.T) {
	t.Parallel()

	bin := fakeFFmpeg(t, `exec sleep 10`)
	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewFFmpeg(bin).Encode(ctx, testJob(t.TempDir(), false))
	require.Error(t, err)
	assert.ErrorIs(t, err, mediacore.ErrEncodingFailed)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestEncodeMissingBinary(t *testing.T) {
	t.Parallel()

	_, err := NewFFmpeg(filepath.Join(t.TempDir(), "nope")).Encode(t.Context(), testJob(t.TempDir(), false))
	require.Error(t, err)
	assert.ErrorIs(t, err, mediacore.ErrEncodingFailed)
}
