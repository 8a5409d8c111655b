package mediacore

import (
	"context"
	"time"
)

// CaptureLoop runs a capture function on a fixed interval in its own goroutine.
type CaptureLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartCaptureLoop calls capture once per interval until Stop is called or
// ctx is cancelled. capture receives the tick time and must return within
// roughly one interval so cancellation is observed promptly.
func StartCaptureLoop(ctx context.Context, interval time.Duration, capture func(now time.Time)) *CaptureLoop {
	ctx, cancel := context.WithCancel(ctx)
	l := &CaptureLoop{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(l.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				capture(now)
			}
		}
	}()

	return l
}

// Stop cancels the loop and waits for the goroutine to exit.
func (l *CaptureLoop) Stop() {
	l.cancel()
	<-l.done
}

// Done is closed when the loop goroutine has returned.
func (l *CaptureLoop) Done() <-chan struct{} {
	return l.done
}
