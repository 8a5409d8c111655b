package clipper

import (
	"sync"
	"time"
)

// Statistics summarizes extractions since start.
type Statistics struct {
	ClipsCreated    int           `json:"clips_created"`
	ClipsFailed     int           `json:"clips_failed"`
	FallbackEncodes int           `json:"fallback_encodes"`
	TotalDuration   time.Duration `json:"total_duration"`
	AverageDuration time.Duration `json:"average_duration"`
	LastClipTime    time.Time     `json:"last_clip_time"`
	LastClipPath    string        `json:"last_clip_path"`
}

type statsTracker struct {
	mu sync.Mutex
	s  Statistics
}

func (t *statsTracker) record(r Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !r.Success {
		t.s.ClipsFailed++
		return
	}
	t.s.ClipsCreated++
	if r.Fallback {
		t.s.FallbackEncodes++
	}
	t.s.TotalDuration += r.ActualDuration
	t.s.AverageDuration = t.s.TotalDuration / time.Duration(t.s.ClipsCreated)
	t.s.LastClipTime = r.FinishedAt
	t.s.LastClipPath = r.OutputPath
}

func (t *statsTracker) snapshot() Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}
