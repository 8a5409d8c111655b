// Package avsync tracks the offset between independently clocked audio and
// video capture streams.
package avsync

import (
	"sync"
	"time"

	"github.com/tphakala/replayclip/internal/mediacore"
)

// Coordinator records the latest timestamp of each stream relative to a
// shared reference taken when a capture session starts.
type Coordinator struct {
	mu        sync.Mutex
	reference time.Time
	lastVideo time.Time
	lastAudio time.Time
	hasVideo  bool
	hasAudio  bool

	frameInterval time.Duration
	timingIssues  uint64
}

// NewCoordinator creates a coordinator. frameInterval enables the frame
// timing check; zero disables it.
func NewCoordinator(frameInterval time.Duration) *Coordinator {
	return &Coordinator{frameInterval: frameInterval}
}

// Reset starts a new measurement against reference. Values from a previous
// session are discarded.
func (c *Coordinator) Reset(reference time.Time, frameInterval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reference = reference
	c.lastVideo = time.Time{}
	c.lastAudio = time.Time{}
	c.hasVideo = false
	c.hasAudio = false
	c.frameInterval = frameInterval
	c.timingIssues = 0
}

// RecordVideoTimestamp records a frame capture time. It returns true when the
// gap to the previous frame deviates from the frame interval by more than
// half an interval.
func (c *Coordinator) RecordVideoTimestamp(t time.Time) (irregular bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasVideo && c.frameInterval > 0 {
		gap := t.Sub(c.lastVideo)
		if absDuration(gap-c.frameInterval) > c.frameInterval/2 {
			irregular = true
			c.timingIssues++
		}
	}
	c.lastVideo = t
	c.hasVideo = true
	return irregular
}

// RecordAudioTimestamp records an audio chunk capture time.
func (c *Coordinator) RecordAudioTimestamp(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastAudio = t
	c.hasAudio = true
}

// CurrentDrift returns (lastVideo - ref) - (lastAudio - ref). Positive drift
// means video is ahead of audio. It is zero until both streams have produced
// a sample.
func (c *Coordinator) CurrentDrift() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasVideo || !c.hasAudio {
		return 0
	}
	return c.lastVideo.Sub(c.reference) - c.lastAudio.Sub(c.reference)
}

// CheckDrift returns a sync warning when |drift| exceeds tolerance.
func (c *Coordinator) CheckDrift(tolerance time.Duration) error {
	drift := c.CurrentDrift()
	if absDuration(drift) <= tolerance {
		return nil
	}
	return mediacore.NewSyncWarning(drift, tolerance)
}

// TimingIssues returns the number of irregular frame gaps seen this session.
func (c *Coordinator) TimingIssues() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timingIssues
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
