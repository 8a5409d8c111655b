package avsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/replayclip/internal/mediacore"
)

func TestDriftZeroUntilBothStreams(t *testing.T) {
	t.Parallel()

	ref := time.Now()
	c := NewCoordinator(0)
	c.Reset(ref, 0)

	assert.Zero(t, c.CurrentDrift())
	c.RecordVideoTimestamp(ref.Add(100 * time.Millisecond))
	assert.Zero(t, c.CurrentDrift(), "audio has not produced a sample")

	c.RecordAudioTimestamp(ref.Add(60 * time.Millisecond))
	assert.Equal(t, 40*time.Millisecond, c.CurrentDrift())

	c.RecordAudioTimestamp(ref.Add(150 * time.Millisecond))
	assert.Equal(t, -50*time.Millisecond, c.CurrentDrift())
}

func TestResetDiscardsPreviousSession(t *testing.T) {
	t.Parallel()

	ref := time.Now()
	c := NewCoordinator(0)
	c.Reset(ref, 0)
	c.RecordVideoTimestamp(ref.Add(time.Second))
	c.RecordAudioTimestamp(ref)
	require.Equal(t, time.Second, c.CurrentDrift())

	c.Reset(ref.Add(time.Minute), 0)
	assert.Zero(t, c.CurrentDrift())
}

func TestCheckDrift(t *testing.T) {
	t.Parallel()

	ref := time.Now()
	c := NewCoordinator(0)
	c.Reset(ref, 0)
	c.RecordVideoTimestamp(ref.Add(200 * time.Millisecond))
	c.RecordAudioTimestamp(ref.Add(100 * time.Millisecond))

	require.NoError(t, c.CheckDrift(100*time.Millisecond), "drift equal to tolerance is accepted")
	err := c.CheckDrift(50 * time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, mediacore.ErrSyncDrift)
}

func TestFrameTimingIrregularity(t *testing.T) {
	t.Parallel()

	interval := 33 * time.Millisecond
	ref := time.Now()
	c := NewCoordinator(interval)
	c.Reset(ref, interval)

	assert.False(t, c.RecordVideoTimestamp(ref))
	assert.False(t, c.RecordVideoTimestamp(ref.Add(33*time.Millisecond)))
	assert.False(t, c.RecordVideoTimestamp(ref.Add(70*time.Millisecond)), "4ms late is within half an interval")
	assert.True(t, c.RecordVideoTimestamp(ref.Add(150*time.Millisecond)), "stalled frame")
	assert.Equal(t, uint64(1), c.TimingIssues())
}
