package reactor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func runReactor(t *testing.T) (*Reactor, context.CancelFunc) {
	t.Helper()
	r := New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = r.Run(ctx)
	}()
	return r, cancel
}

func TestPostPreservesOrder(t *testing.T) {
	// GIVEN
	r, cancel := runReactor(t)
	defer cancel()
	done := make(chan []int, 1)

	// WHEN
	var order []int
	for i := 0; i < 10; i++ {
		i := i
		r.Post(func() {
			order = append(order, i)
		})
	}
	r.Post(func() {
		done <- order
	})

	// THEN
	result := <-done
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, result)
}

func TestPostDelayedFires(t *testing.T) {
	// GIVEN
	r, cancel := runReactor(t)
	defer cancel()
	fired := make(chan struct{})

	// WHEN
	r.PostDelayed(5*time.Millisecond, func() {
		close(fired)
	})

	// THEN
	select {
	case <-fired:
	case <-time.After(time.Second):
		assert.Fail(t, "timer did not fire")
	}
}

func TestCancelledTimerDoesNotFire(t *testing.T) {
	// GIVEN
	r, cancel := runReactor(t)
	defer cancel()
	fired := false

	// WHEN
	var timer *Timer
	synced := make(chan struct{})
	r.Post(func() {
		timer = r.PostDelayed(10*time.Millisecond, func() {
			fired = true
		})
		timer.Cancel()
		// cancelling twice must be harmless
		timer.Cancel()
		close(synced)
	})
	<-synced
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	r.Post(func() { close(done) })
	<-done

	// THEN
	assert.False(t, fired)
}
