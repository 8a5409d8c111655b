package mediacore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/replayclip/internal/errors"
)

func TestVideoConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     VideoConfig
		wantErr bool
	}{
		{"valid", VideoConfig{Width: 1920, Height: 1080, FrameRate: 30}, false},
		{"zero width", VideoConfig{Width: 0, Height: 1080, FrameRate: 30}, true},
		{"negative height", VideoConfig{Width: 1920, Height: -1, FrameRate: 30}, true},
		{"zero rate", VideoConfig{Width: 1920, Height: 1080}, true},
		{"negative offset", VideoConfig{Width: 10, Height: 10, FrameRate: 1, OffsetX: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestAudioConfig(t *testing.T) {
	t.Parallel()

	cfg := AudioConfig{Enabled: true, SampleRate: 48000, Channels: 2, ChunkFrames: 1024}
	require.NoError(t, cfg.Validate())
	assert.InDelta(t, 46.875, cfg.ChunksPerSecond(), 1e-9)
	assert.Equal(t, 21333333*time.Nanosecond, cfg.ChunkDuration())
	assert.Equal(t, 4, cfg.Format().BytesPerFrame())

	disabled := AudioConfig{}
	require.NoError(t, disabled.Validate(), "disabled audio is not validated")

	bad := AudioConfig{Enabled: true, SampleRate: 0, Channels: 1, ChunkFrames: 512}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}

func TestVideoConfigInterval(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 40*time.Millisecond, VideoConfig{FrameRate: 25}.Interval())
	assert.Equal(t, time.Duration(0), VideoConfig{}.Interval())
}
