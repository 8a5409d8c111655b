// Package encoder muxes raw interchange files into finished media files.
package encoder

import (
	"context"
	"time"

	"github.com/tphakala/replayclip/internal/mediacore"
)

// VideoInput describes a raw video interchange file: frames packed back to
// back without padding.
type VideoInput struct {
	Path        string
	Width       int
	Height      int
	PixelFormat mediacore.PixelFormat
	FrameRate   float64
}

// AudioInput describes a PCM or WAV interchange file.
type AudioInput struct {
	Path         string
	Channels     int
	SampleRate   int
	SampleFormat string // s16le
}

// OutputSpec selects the finished file and its encoding.
type OutputSpec struct {
	Path string
	Profile
}

// Job is one encode invocation. Audio is optional.
type Job struct {
	Video  VideoInput
	Audio  *AudioInput
	Output OutputSpec
}

// Result reports a finished or failed encoder run.
type Result struct {
	OutputPath string
	ExitCode   int
	Stderr     string
	Elapsed    time.Duration
}

// Encoder runs a job synchronously. On failure the returned Result, when
// non-nil, carries the exit code and diagnostic output.
type Encoder interface {
	Encode(ctx context.Context, job Job) (*Result, error)
}
