package mediacore

import (
	"context"
	"time"
)

// TimestampedSample is an immutable captured item. CapturedAt is taken at
// acquisition and carries a monotonic clock reading.
type TimestampedSample[T any] struct {
	Payload    T
	CapturedAt time.Time
	Sequence   uint64
}

// PixelFormat names a raw pixel layout understood by the encoder.
type PixelFormat string

const (
	PixelFormatRGBA  PixelFormat = "rgba"
	PixelFormatRGB24 PixelFormat = "rgb24"
)

// BytesPerPixel returns the packed size of one pixel.
func (p PixelFormat) BytesPerPixel() int {
	switch p {
	case PixelFormatRGB24:
		return 3
	default:
		return 4
	}
}

// Frame is one captured video frame. Pix holds Height rows of Stride bytes.
type Frame struct {
	Width  int
	Height int
	Stride int
	Format PixelFormat
	Pix    []byte
}

// PackedSize is the size of the frame with rows written back to back.
func (f *Frame) PackedSize() int {
	return f.Width * f.Height * f.Format.BytesPerPixel()
}

// AudioChunk is a fixed-size block of interleaved signed 16-bit little-endian PCM.
type AudioChunk struct {
	Data   []byte
	Frames int
}

// AudioFormat describes the PCM layout produced by an AudioSource.
type AudioFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// BytesPerFrame returns the size of one interleaved sample frame.
func (f AudioFormat) BytesPerFrame() int {
	return f.Channels * f.BitDepth / 8
}

// FrameSample and AudioSample are the payloads held by the ring buffers.
type (
	FrameSample = TimestampedSample[Frame]
	AudioSample = TimestampedSample[AudioChunk]
)

// Source is the capability shared by frame and audio producers.
type Source[T any] interface {
	// ID returns the device identifier this source captures from
	ID() string

	// Start opens the device and launches the capture goroutine.
	// It fails with a device error wrapping ErrDeviceNotFound or ErrDeviceBusy.
	Start(ctx context.Context) error

	// Stop signals the capture goroutine and waits for it to exit.
	// Safe to call from any goroutine and more than once.
	Stop() error

	// Samples returns the delivery channel of the current run. It is closed
	// after Stop returns.
	Samples() <-chan TimestampedSample[T]

	// Errors reports mid-capture failures such as an unplugged device.
	Errors() <-chan error

	// State returns the current life-cycle state
	State() SourceState
}

// FrameSource produces timestamped video frames at a target rate.
type FrameSource interface {
	Source[Frame]
	FrameRate() float64
}

// AudioSource produces timestamped fixed-size audio chunks.
type AudioSource interface {
	Source[AudioChunk]
	Format() AudioFormat
	// ChunkDuration is the playback length of one chunk
	ChunkDuration() time.Duration
}
