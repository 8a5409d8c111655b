package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfile(t *testing.T) {
	t.Parallel()

	p := DefaultProfile()
	require.NoError(t, p.Validate())
	assert.Equal(t, "mp4", p.Extension())
	assert.Equal(t, "mp4", p.Muxer())
}

func TestProfileValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Profile)
		wantErr bool
	}{
		{"mkv ok", func(p *Profile) { p.Container = "mkv" }, false},
		{"upper case container", func(p *Profile) { p.Container = "MOV" }, false},
		{"unknown container", func(p *Profile) { p.Container = "flv" }, true},
		{"slow preset", func(p *Profile) { p.Preset = "veryslow" }, true},
		{"crf range", func(p *Profile) { p.CRF = 60 }, true},
		{"missing codec", func(p *Profile) { p.VideoCodec = "" }, true},
		{"webm with h264", func(p *Profile) { p.Container = "webm" }, true},
		{"webm with vp9", func(p *Profile) { p.Container = "webm"; p.VideoCodec = "libvpx-vp9"; p.AudioCodec = "libopus" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := DefaultProfile()
			tt.mutate(&p)
			if tt.wantErr {
				assert.Error(t, p.Validate())
			} else {
				assert.NoError(t, p.Validate())
			}
		})
	}
}
