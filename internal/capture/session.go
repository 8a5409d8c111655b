package capture

import (
	"time"
)

// SessionState is the state of a capture session.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionCapturing
	SessionStopping
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionCapturing:
		return "capturing"
	case SessionStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Session describes one run between Start and Stop.
type Session struct {
	ID        string
	State     SessionState
	StartedAt time.Time
	VideoID   string
	AudioID   string // empty when audio is disabled
}

// BufferUsage reports the fill level of the replay buffers.
type BufferUsage struct {
	VideoFrames   int
	VideoCapacity int
	AudioChunks   int
	AudioCapacity int
}

// VideoRatio returns the video fill fraction.
func (u BufferUsage) VideoRatio() float64 {
	if u.VideoCapacity == 0 {
		return 0
	}
	return float64(u.VideoFrames) / float64(u.VideoCapacity)
}

// AudioRatio returns the audio fill fraction.
func (u BufferUsage) AudioRatio() float64 {
	if u.AudioCapacity == 0 {
		return 0
	}
	return float64(u.AudioChunks) / float64(u.AudioCapacity)
}
