package reactor

import (
	"context"
	"time"
)

// Reactor executes posted tasks on a single goroutine. All sensor state
// is owned by that goroutine; "asynchronous" operations complete by
// posting their completion handler back onto the reactor, so handlers
// for different sensors interleave but never run concurrently.
type Reactor struct {
	tasks chan func()
}

func New() *Reactor {
	return &Reactor{
		tasks: make(chan func(), 256),
	}
}

// Post queues fn for execution on the reactor goroutine.
// Safe to call from any goroutine.
func (r *Reactor) Post(fn func()) {
	r.tasks <- fn
}

// Run processes tasks until ctx is cancelled. Tasks are executed in the
// order they were posted.
func (r *Reactor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-r.tasks:
			fn()
		}
	}
}

// Timer is a single-shot timer whose callback runs on the reactor.
type Timer struct {
	reactor   *Reactor
	timer     *time.Timer
	cancelled bool
}

// PostDelayed schedules fn to run on the reactor after the given delay.
// The returned timer may be cancelled; cancellation is idempotent.
func (r *Reactor) PostDelayed(delay time.Duration, fn func()) *Timer {
	t := &Timer{reactor: r}
	t.timer = time.AfterFunc(delay, func() {
		r.Post(func() {
			// cancelled is only written on the reactor goroutine, so this
			// read observes any Cancel() that happened before the callback
			if t.cancelled {
				return
			}
			fn()
		})
	})
	return t
}

// Cancel prevents the timer callback from running. Must be called on the
// reactor goroutine. A callback already executing is never interrupted.
func (t *Timer) Cancel() {
	if t.cancelled {
		return
	}
	t.cancelled = true
	t.timer.Stop()
}
