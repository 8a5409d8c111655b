package clipper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tphakala/replayclip/internal/mediacore"
)

func frames(base time.Time, n int, interval time.Duration, w, h int) []mediacore.FrameSample {
	out := make([]mediacore.FrameSample, n)
	for i := range out {
		out[i] = mediacore.FrameSample{
			Payload:    mediacore.Frame{Width: w, Height: h, Format: mediacore.PixelFormatRGBA},
			CapturedAt: base.Add(time.Duration(i) * interval),
			Sequence:   uint64(i + 1),
		}
	}
	return out
}

func TestTrimUsesNewestCommonTimestamp(t *testing.T) {
	t.Parallel()

	base := time.Now()
	video := frames(base, 100, 100*time.Millisecond, 2, 2) // 0 .. 9.9s
	audio := []mediacore.AudioSample{
		{CapturedAt: base.Add(4 * time.Second)},
		{CapturedAt: base.Add(8 * time.Second)},
	}

	w := trimWindow(video, audio, 2*time.Second)
	assert.Equal(t, base.Add(8*time.Second), w.end, "audio lags, so it bounds the window")
	assert.Len(t, w.video, 21)
	assert.Equal(t, base.Add(6*time.Second), w.video[0].CapturedAt)
	assert.Len(t, w.audio, 1)
}

func TestTrimDropsMismatchedGeometry(t *testing.T) {
	t.Parallel()

	base := time.Now()
	video := append(frames(base, 5, time.Second, 2, 2), frames(base.Add(5*time.Second), 5, time.Second, 4, 4)...)
	w := trimWindow(video, nil, time.Minute)
	assert.Len(t, w.video, 5)
	for _, f := range w.video {
		assert.Equal(t, 4, f.Payload.Width)
	}
}

func TestTrimEmpty(t *testing.T) {
	t.Parallel()

	w := trimWindow(nil, []mediacore.AudioSample{{CapturedAt: time.Now()}}, time.Second)
	assert.Empty(t, w.video)
	assert.Empty(t, w.audio)
}

func TestEffectiveFrameRate(t *testing.T) {
	t.Parallel()

	base := time.Now()
	assert.InDelta(t, 25.0, effectiveFrameRate(frames(base, 26, 40*time.Millisecond, 1, 1), 30), 0.0001)
	assert.Equal(t, 30.0, effectiveFrameRate(frames(base, 1, 0, 1, 1), 30))
}
