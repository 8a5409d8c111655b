package capture

import (
	"github.com/tphakala/replayclip/internal/mediacore"
	"github.com/tphakala/replayclip/internal/mediacore/sources/malgo"
	"github.com/tphakala/replayclip/internal/mediacore/sources/screen"
	"github.com/tphakala/replayclip/internal/mediacore/sources/synthetic"
)

// SourceFactory builds the sources of a capture session. A new pair is
// built for every session.
type SourceFactory interface {
	NewFrameSource(cfg mediacore.VideoConfig) (mediacore.FrameSource, error)
	NewAudioSource(cfg mediacore.AudioConfig) (mediacore.AudioSource, error)
}

// DeviceFactory captures the screen and an audio input device.
type DeviceFactory struct {
	// Grabber overrides the screen grabber, nil uses the primary display.
	Grabber screen.Grabber
}

func (f DeviceFactory) NewFrameSource(cfg mediacore.VideoConfig) (mediacore.FrameSource, error) {
	return screen.New(cfg, f.Grabber), nil
}

func (f DeviceFactory) NewAudioSource(cfg mediacore.AudioConfig) (mediacore.AudioSource, error) {
	return malgo.New(cfg), nil
}

// SyntheticFactory generates test patterns and a sine tone. It needs no
// devices and is used for dry runs and tests.
type SyntheticFactory struct {
	ToneFrequency float64
}

func (f SyntheticFactory) NewFrameSource(cfg mediacore.VideoConfig) (mediacore.FrameSource, error) {
	return synthetic.NewFrameSource(cfg), nil
}

func (f SyntheticFactory) NewAudioSource(cfg mediacore.AudioConfig) (mediacore.AudioSource, error) {
	return synthetic.NewToneSource(cfg, f.ToneFrequency), nil
}
