package encoder

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tphakala/replayclip/internal/errors"
)

// Profile is an output container and codec selection.
type Profile struct {
	Container    string `yaml:"container" mapstructure:"container"`       // mp4, mov, mkv, webm, avi
	VideoCodec   string `yaml:"videocodec" mapstructure:"videocodec"`     // e.g. libx264
	AudioCodec   string `yaml:"audiocodec" mapstructure:"audiocodec"`     // e.g. aac
	Preset       string `yaml:"preset" mapstructure:"preset"`             // x264 speed preset
	CRF          int    `yaml:"crf" mapstructure:"crf"`                   // constant rate factor, 0-51
	AudioBitrate string `yaml:"audiobitrate" mapstructure:"audiobitrate"` // e.g. 192k
}

// Presets lists the accepted speed presets, fastest first.
var Presets = []string{"ultrafast", "superfast", "veryfast", "faster", "fast", "medium"}

// muxers maps a container to the FFmpeg output format name.
var muxers = map[string]string{
	"mp4":  "mp4",
	"mov":  "mov",
	"mkv":  "matroska",
	"webm": "webm",
	"avi":  "avi",
}

// DefaultProfile is the conservative H.264/AAC MP4 profile used as the
// fallback when a configured profile fails.
func DefaultProfile() Profile {
	return Profile{
		Container:    "mp4",
		VideoCodec:   "libx264",
		AudioCodec:   "aac",
		Preset:       "veryfast",
		CRF:          23,
		AudioBitrate: "192k",
	}
}

// Extension returns the file extension without the dot.
func (p Profile) Extension() string {
	return strings.ToLower(p.Container)
}

// Muxer returns the FFmpeg muxer name for the container.
func (p Profile) Muxer() string {
	if m, ok := muxers[p.Extension()]; ok {
		return m
	}
	return p.Extension()
}

// Validate checks the profile against the supported containers and presets.
func (p Profile) Validate() error {
	var errs []error
	if _, ok := muxers[p.Extension()]; !ok {
		errs = append(errs, fmt.Errorf("unsupported container %q", p.Container))
	}
	if p.VideoCodec == "" {
		errs = append(errs, fmt.Errorf("video codec is required"))
	}
	if p.Preset != "" && !slices.Contains(Presets, p.Preset) {
		errs = append(errs, fmt.Errorf("unsupported preset %q, expected one of %s", p.Preset, strings.Join(Presets, ", ")))
	}
	if p.CRF < 0 || p.CRF > 51 {
		errs = append(errs, fmt.Errorf("crf must be within 0-51, got %d", p.CRF))
	}
	if p.Extension() == "webm" && strings.Contains(p.VideoCodec, "264") {
		errs = append(errs, fmt.Errorf("webm cannot carry %s", p.VideoCodec))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.New(errors.Join(errs...)).
		Component("encoder").
		Category(errors.CategoryValidation).
		Context("container", p.Container).
		Build()
}
