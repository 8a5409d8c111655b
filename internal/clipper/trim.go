package clipper

import (
	"time"

	"github.com/tphakala/replayclip/internal/mediacore"
)

// window is the trimmed content of one extraction.
type window struct {
	video []mediacore.FrameSample
	audio []mediacore.AudioSample
}

// trimWindow keeps the samples inside [end-d, end] where end is the newest
// timestamp both streams reached. Without audio, end is the newest frame.
// Frames whose geometry differs from the newest frame are dropped so that a
// reconfiguration mid-buffer cannot corrupt the raw stream.
func trimWindow(video []mediacore.FrameSample, audio []mediacore.AudioSample, d time.Duration) window {
	if len(video) == 0 {
		return window{}
	}

	end := video[len(video)-1].CapturedAt
	if len(audio) > 0 {
		if lastAudio := audio[len(audio)-1].CapturedAt; lastAudio.Before(end) {
			end = lastAudio
		}
	}
	start := end.Add(-d)

	newest := video[len(video)-1].Payload
	var w window
	for _, s := range video {
		if inWindow(s.CapturedAt, start, end) &&
			s.Payload.Width == newest.Width && s.Payload.Height == newest.Height && s.Payload.Format == newest.Format {
			w.video = append(w.video, s)
		}
	}
	for _, s := range audio {
		if inWindow(s.CapturedAt, start, end) {
			w.audio = append(w.audio, s)
		}
	}
	return w
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// effectiveFrameRate derives the rate from the trimmed frame timestamps,
// falling back to configured when there are fewer than two frames.
func effectiveFrameRate(frames []mediacore.FrameSample, configured float64) float64 {
	if len(frames) < 2 {
		return configured
	}
	span := frames[len(frames)-1].CapturedAt.Sub(frames[0].CapturedAt)
	if span <= 0 {
		return configured
	}
	return float64(len(frames)-1) / span.Seconds()
}
