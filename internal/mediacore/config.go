package mediacore

import (
	"fmt"
	"time"

	"github.com/tphakala/replayclip/internal/errors"
)

// VideoConfig selects and shapes the frame source.
type VideoConfig struct {
	DeviceID  string  // display index for screen capture
	OffsetX   int     // capture region origin
	OffsetY   int     // capture region origin
	Width     int     // capture region width
	Height    int     // capture region height
	FrameRate float64 // target frames per second
}

// Interval is the capture period derived from FrameRate.
func (c VideoConfig) Interval() time.Duration {
	if c.FrameRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.FrameRate)
}

// Validate rejects non-positive dimensions and rates.
func (c VideoConfig) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("resolution must be positive, got %dx%d", c.Width, c.Height))
	}
	if c.OffsetX < 0 || c.OffsetY < 0 {
		errs = append(errs, fmt.Errorf("capture offset must not be negative, got %d,%d", c.OffsetX, c.OffsetY))
	}
	if c.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("frame rate must be positive, got %g", c.FrameRate))
	}
	return invalidConfig("video", errs)
}

// AudioConfig selects and shapes the audio source.
type AudioConfig struct {
	Enabled     bool
	DeviceID    string // device name or ID substring, empty for the system default
	SampleRate  int
	Channels    int
	ChunkFrames int // sample frames per delivered chunk
}

// Format returns the PCM layout delivered for this configuration.
func (c AudioConfig) Format() AudioFormat {
	return AudioFormat{SampleRate: c.SampleRate, Channels: c.Channels, BitDepth: 16}
}

// ChunksPerSecond is the audio ring buffer rate.
func (c AudioConfig) ChunksPerSecond() float64 {
	if c.ChunkFrames <= 0 {
		return 0
	}
	return float64(c.SampleRate) / float64(c.ChunkFrames)
}

// ChunkDuration is the playback length of one chunk.
func (c AudioConfig) ChunkDuration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(c.ChunkFrames) * int64(time.Second) / int64(c.SampleRate))
}

// Validate rejects non-positive rates when audio is enabled.
func (c AudioConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", c.SampleRate))
	}
	if c.Channels <= 0 {
		errs = append(errs, fmt.Errorf("channel count must be positive, got %d", c.Channels))
	}
	if c.ChunkFrames <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive, got %d", c.ChunkFrames))
	}
	return invalidConfig("audio", errs)
}

func invalidConfig(section string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New(fmt.Errorf("%w: %s: %w", ErrInvalidConfig, section, errors.Join(errs...))).
		Component(ComponentMediaCore).
		Category(errors.CategoryValidation).
		Context("section", section).
		Build()
}
