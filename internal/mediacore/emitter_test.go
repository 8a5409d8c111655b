package mediacore

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterSequenceAndDrop(t *testing.T) {
	t.Parallel()

	e := NewEmitter[int](2)
	now := time.Now()

	assert.True(t, e.Emit(1, now))
	assert.True(t, e.Emit(2, now.Add(time.Millisecond)))
	assert.False(t, e.Emit(3, now.Add(2*time.Millisecond)), "channel full")

	first := <-e.Samples()
	second := <-e.Samples()
	assert.Equal(t, uint64(1), first.Sequence)
	assert.Equal(t, uint64(2), second.Sequence)
	assert.Equal(t, now, first.CapturedAt)

	assert.True(t, e.Emit(4, now.Add(3*time.Millisecond)))
	next := <-e.Samples()
	assert.Equal(t, uint64(3), next.Sequence, "dropped samples do not consume sequence numbers")
	assert.Equal(t, 4, next.Payload)

	assert.Equal(t, uint64(3), e.Delivered())
	assert.Equal(t, uint64(1), e.Dropped())

	e.Close()
	e.Close()
	_, ok := <-e.Samples()
	assert.False(t, ok)
}

func TestEmitterReportErrorNonBlocking(t *testing.T) {
	t.Parallel()

	e := NewEmitter[int](1)
	for range 10 {
		e.ReportError(ErrDeviceNotFound)
	}
	require.ErrorIs(t, <-e.Errors(), ErrDeviceNotFound)
}

func TestCaptureLoopStopJoins(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	loop := StartCaptureLoop(context.Background(), time.Millisecond, func(time.Time) {
		calls.Add(1)
	})

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	loop.Stop()

	after := calls.Load()
	select {
	case <-loop.Done():
	default:
		t.Fatal("loop goroutine still running after Stop")
	}
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no captures after Stop returns")
}

func TestCaptureLoopObservesContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	loop := StartCaptureLoop(ctx, 10*time.Millisecond, func(time.Time) {})
	cancel()

	select {
	case <-loop.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after context cancellation")
	}
	loop.Stop()
}
