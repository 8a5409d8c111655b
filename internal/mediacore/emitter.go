package mediacore

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSampleBuffer is the delivery channel depth used by the sources.
const DefaultSampleBuffer = 64

// Emitter delivers samples from a single producer goroutine. It assigns
// sequence numbers starting at 1 and never blocks: a sample that does not fit
// in the channel is dropped and counted.
type Emitter[T any] struct {
	out     chan TimestampedSample[T]
	errs    chan error
	seq     atomic.Uint64 // written only by the producer goroutine
	dropped atomic.Uint64
	closed  sync.Once
}

// NewEmitter creates an emitter with the given channel depth.
func NewEmitter[T any](buffer int) *Emitter[T] {
	if buffer <= 0 {
		buffer = DefaultSampleBuffer
	}
	return &Emitter[T]{
		out:  make(chan TimestampedSample[T], buffer),
		errs: make(chan error, 4),
	}
}

// Emit delivers payload tagged with capturedAt. It reports whether the sample
// was accepted.
func (e *Emitter[T]) Emit(payload T, capturedAt time.Time) bool {
	sample := TimestampedSample[T]{
		Payload:    payload,
		CapturedAt: capturedAt,
		Sequence:   e.seq.Load() + 1,
	}
	select {
	case e.out <- sample:
		e.seq.Store(sample.Sequence)
		return true
	default:
		e.dropped.Add(1)
		return false
	}
}

// ReportError queues a mid-capture error; extra errors are discarded while
// the consumer has not drained the previous ones.
func (e *Emitter[T]) ReportError(err error) {
	select {
	case e.errs <- err:
	default:
	}
}

// Samples returns the delivery channel.
func (e *Emitter[T]) Samples() <-chan TimestampedSample[T] {
	return e.out
}

// Errors returns the error channel.
func (e *Emitter[T]) Errors() <-chan error {
	return e.errs
}

// Delivered returns the number of samples accepted so far.
func (e *Emitter[T]) Delivered() uint64 {
	return e.seq.Load()
}

// Dropped returns the number of samples discarded because the channel was full.
func (e *Emitter[T]) Dropped() uint64 {
	return e.dropped.Load()
}

// Close closes both channels. Only call once the producer has exited.
func (e *Emitter[T]) Close() {
	e.closed.Do(func() {
		close(e.out)
		close(e.errs)
	})
}
