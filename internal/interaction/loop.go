package interaction

import (
	"context"
	"sync"
	"time"
)

// Loop runs a step on a fixed interval until stopped, then runs a cleanup
// step exactly once, whatever made it stop.
type Loop struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// StartLoop starts a loop calling step every interval. The loop stops when
// Stop is called or ctx is done. The stop signal is checked before every step.
// cleanup may be nil.
func StartLoop(ctx context.Context, interval time.Duration, step func(), cleanup func()) *Loop {
	l := &Loop{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go l.run(ctx, interval, step, cleanup)
	return l
}

func (l *Loop) run(ctx context.Context, interval time.Duration, step func(), cleanup func()) {
	defer close(l.done)
	if cleanup != nil {
		defer cleanup()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// A stop that raced with the tick wins.
		select {
		case <-l.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		step()
	}
}

// Stop signals the loop to exit. It is safe to call more than once and does
// not wait for cleanup; use Wait or Done for that.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Done is closed after cleanup has run.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until cleanup has run.
func (l *Loop) Wait() {
	<-l.done
}
