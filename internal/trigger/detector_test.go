package trigger

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestDetector(t *testing.T, mutate func(*Config)) (*Detector, *fakeClock) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.QueueSize = 16
	if mutate != nil {
		mutate(&cfg)
	}
	clock := newFakeClock()
	return NewDetector(cfg, WithClock(clock.Now)), clock
}

func drain(d *Detector) []Request {
	var out []Request
	for {
		select {
		case r := <-d.Requests():
			out = append(out, r)
		default:
			return out
		}
	}
}

func TestDirectMatchPhrase(t *testing.T) {
	t.Parallel()

	d, _ := newTestDetector(t, nil)
	out := d.Phrase("please clip that moment")
	require.True(t, out.Accepted)
	assert.Equal(t, KindVoice, out.Kind)
	assert.Zero(t, out.Similarity, "direct match skips the fuzzy path")
	assert.Equal(t, "voice: clip that moment", out.Request.Reason)

	reqs := drain(d)
	require.Len(t, reqs, 1)
	assert.Equal(t, out.Request.ID, reqs[0].ID)
}

func TestCooldown(t *testing.T) {
	t.Parallel()

	d, clock := newTestDetector(t, nil)

	assert.True(t, d.Phrase("clip it").Accepted)
	clock.Advance(1500 * time.Millisecond)
	out := d.Phrase("save that")
	assert.False(t, out.Accepted)
	assert.Equal(t, RejectCooldown, out.Reason)
	assert.Len(t, drain(d), 1, "exactly one request inside the cooldown window")

	clock.Advance(500 * time.Millisecond)
	assert.True(t, d.Phrase("save that").Accepted)
	assert.Len(t, drain(d), 1)
}

func TestCooldownSharedAcrossKinds(t *testing.T) {
	t.Parallel()

	d, clock := newTestDetector(t, nil)
	require.True(t, d.Hotkey().Accepted)
	assert.Equal(t, RejectCooldown, d.Manual(0).Reason)
	clock.Advance(2 * time.Second)
	assert.True(t, d.Manual(10*time.Second).Accepted)
}

func TestFuzzyBoundary(t *testing.T) {
	t.Parallel()

	require.Equal(t, 75, Similarity("clip", "clap"))

	tests := []struct {
		name      string
		threshold int
		accepted  bool
	}{
		{"at threshold accepts", 75, true},
		{"one above rejects", 76, false},
		{"lower threshold accepts", 60, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, _ := newTestDetector(t, func(c *Config) { c.Threshold = tt.threshold })
			out := d.Phrase("clap")
			assert.Equal(t, tt.accepted, out.Accepted)
			assert.Equal(t, 75, out.Similarity)
			if !tt.accepted {
				assert.Equal(t, RejectNoMatch, out.Reason)
			}
		})
	}
}

func TestDuplicateRejection(t *testing.T) {
	t.Parallel()

	d, clock := newTestDetector(t, func(c *Config) { c.DedupeSize = 2 })

	require.True(t, d.Phrase("Clip that!").Accepted)
	clock.Advance(3 * time.Second)
	out := d.Phrase("clip that")
	assert.Equal(t, RejectDuplicate, out.Reason, "normalized repeat is a duplicate")

	clock.Advance(3 * time.Second)
	require.True(t, d.Phrase("clip 10").Accepted)
	clock.Advance(3 * time.Second)
	require.True(t, d.Phrase("clip 12").Accepted)
	clock.Advance(3 * time.Second)
	assert.True(t, d.Phrase("clip that").Accepted, "evicted from the history of two")
}

func TestNoMatch(t *testing.T) {
	t.Parallel()

	d, _ := newTestDetector(t, nil)
	assert.Equal(t, RejectNoMatch, d.Phrase("what a great game").Reason)
	assert.Equal(t, RejectNoMatch, d.Phrase("total eclipse").Reason, "keywords start at a token boundary")
	assert.Equal(t, RejectEmpty, d.Phrase("  ?! ").Reason)
	assert.Empty(t, drain(d))
}

func TestSpokenDuration(t *testing.T) {
	t.Parallel()

	d, clock := newTestDetector(t, func(c *Config) {
		c.DefaultDuration = 20 * time.Second
		c.MaxDuration = 30 * time.Second
	})

	out := d.Phrase("clip 15")
	require.True(t, out.Accepted)
	assert.Equal(t, 15*time.Second, out.Request.Duration)

	clock.Advance(3 * time.Second)
	out = d.Phrase("clip the last 90")
	require.True(t, out.Accepted)
	assert.Equal(t, 30*time.Second, out.Request.Duration, "clamped to the buffer")

	clock.Advance(3 * time.Second)
	out = d.Phrase("clip that")
	require.True(t, out.Accepted)
	assert.Equal(t, 20*time.Second, out.Request.Duration)
}

func TestQueueFull(t *testing.T) {
	t.Parallel()

	d, clock := newTestDetector(t, func(c *Config) { c.QueueSize = 1 })
	require.True(t, d.Hotkey().Accepted)
	clock.Advance(3 * time.Second)
	assert.Equal(t, RejectQueueFull, d.Manual(0).Reason)

	// a request that never queued does not start the cooldown
	require.Len(t, drain(d), 1)
	clock.Advance(100 * time.Millisecond)
	out := d.Manual(0)
	assert.True(t, out.Accepted, "rejected with %q", out.Reason)
	assert.Len(t, drain(d), 1)

	// the accepted request does
	assert.Equal(t, RejectCooldown, d.Hotkey().Reason)
}

func TestFeed(t *testing.T) {
	t.Parallel()

	var warnings []error
	cfg := DefaultConfig()
	clock := newFakeClock()
	d := NewDetector(cfg, WithClock(clock.Now), WithWarningHandler(func(err error) {
		warnings = append(warnings, err)
	}))

	assert.Equal(t, RejectEmpty, d.Feed([]byte(`{"text": `)).Reason, "malformed JSON ignored")
	assert.Equal(t, RejectEmpty, d.Feed([]byte(`{"text": ""}`)).Reason)
	assert.Equal(t, RejectEmpty, d.Feed([]byte(`{"partial": "clip"}`)).Reason)
	assert.Equal(t, RejectEmpty, d.Feed([]byte(`{"error": "model crashed"}`)).Reason)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Error(), "model crashed")

	// hotkeys keep working after a recognizer failure
	assert.True(t, d.Hotkey().Accepted)
	clock.Advance(3 * time.Second)
	assert.True(t, d.Feed([]byte(`{"text": "save that"}`)).Accepted)
}

type failingReader struct{ data *strings.Reader }

func (r failingReader) Read(p []byte) (int, error) {
	if r.data.Len() == 0 {
		return 0, errors.New("pipe closed")
	}
	return r.data.Read(p)
}

func TestRunFeed(t *testing.T) {
	t.Parallel()

	var warned int
	d := NewDetector(DefaultConfig(), WithWarningHandler(func(error) { warned++ }))

	err := d.RunFeed(t.Context(), strings.NewReader("{\"text\": \"clip that\"}\ngarbage {\n"))
	require.NoError(t, err)
	assert.Len(t, drain(d), 1)

	err = d.RunFeed(t.Context(), failingReader{data: strings.NewReader("nothing\n")})
	require.Error(t, err)
	assert.Equal(t, 1, warned)
}

func TestReconfigureResetsHistory(t *testing.T) {
	t.Parallel()

	d, _ := newTestDetector(t, nil)
	require.True(t, d.Phrase("clip that").Accepted)

	cfg := DefaultConfig()
	cfg.QueueSize = 16
	d.Reconfigure(cfg)
	assert.True(t, d.Phrase("clip that").Accepted)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.Threshold = 101
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Keywords = nil
	assert.Error(t, bad.Validate())
}

func TestOutcomeHandler(t *testing.T) {
	t.Parallel()

	var seen []Outcome
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.QueueSize = 8
	d := NewDetector(cfg, WithClock(clock.Now), WithOutcomeHandler(func(o Outcome) {
		seen = append(seen, o)
	}))

	d.Phrase("the weather is nice")
	d.Hotkey()
	d.Manual(0)
	clock.Advance(3 * time.Second)
	d.Feed([]byte(`{"text": "clip that"}`))

	require.Len(t, seen, 4)
	assert.Equal(t, RejectNoMatch, seen[0].Reason)
	assert.True(t, seen[1].Accepted)
	assert.Equal(t, KindManual, seen[2].Kind)
	assert.Equal(t, RejectCooldown, seen[2].Reason)
	assert.True(t, seen[3].Accepted)
	assert.Equal(t, KindVoice, seen[3].Kind)
}
