package scheduler

import (
	"sync/atomic"
	"time"

	"github.com/asecurityteam/rolling"
	"github.com/markusressel/sensormon/internal/poll"
	"github.com/markusressel/sensormon/internal/reactor"
	"github.com/markusressel/sensormon/internal/ui"
	"github.com/markusressel/sensormon/internal/util"
)

// Pollable is one unit the scheduler drives on every tick.
type Pollable interface {
	Prepare() poll.Disposition
}

const tickWindowSize = 60

// Scheduler polls all pollables of the active generation in lockstep on
// a shared deadline. Reads triggered by one tick land before the next
// one; a read still pending at its next tick is abandoned by Prepare.
//
// The deadline advances by exactly one interval per tick, so processing
// jitter does not accumulate. When a tick is detected as anomalous (the
// tick handler ran longer than the interval, or the measured distance to
// the previous tick is more than twice the interval, f.ex. after system
// suspend) the deadline is re-anchored to the current time instead.
type Scheduler struct {
	rtr      *reactor.Reactor
	interval time.Duration
	source   func() []Pollable

	// now is replaceable for tests
	now func() time.Time

	ticks     atomic.Uint64
	slowTicks atomic.Uint64
	anomalies atomic.Uint64

	tickDurations *rolling.PointPolicy

	// reactor goroutine only
	deadline time.Time
	prior    time.Time
	timer    *reactor.Timer
	stopped  bool
}

// New creates a scheduler ticking every interval. source returns the
// pollables of the currently active generation and is consulted on every
// tick, so generation swaps take effect at the next tick.
func New(rtr *reactor.Reactor, interval time.Duration, source func() []Pollable) *Scheduler {
	return &Scheduler{
		rtr:           rtr,
		interval:      interval,
		source:        source,
		now:           time.Now,
		tickDurations: util.CreateRollingWindow(tickWindowSize),
	}
}

// Start arms the first tick. Safe to call from any goroutine.
func (s *Scheduler) Start() {
	s.rtr.Post(func() {
		start := s.now()
		s.prior = start
		s.deadline = start.Add(s.interval)
		s.timer = s.rtr.PostDelayed(s.interval, s.tick)
	})
}

// Stop cancels future ticks. Safe to call from any goroutine.
func (s *Scheduler) Stop() {
	s.rtr.Post(func() {
		s.stopped = true
		if s.timer != nil {
			s.timer.Cancel()
			s.timer = nil
		}
	})
}

func (s *Scheduler) tick() {
	if s.stopped {
		return
	}

	start := s.now()
	measured := start.Sub(s.prior)
	s.prior = start

	slow := 0
	for _, p := range s.source() {
		if p.Prepare() == poll.DispositionSlow {
			slow++
		}
	}
	if slow > 0 {
		s.slowTicks.Add(1)
	}
	s.ticks.Add(1)

	procTime := s.now().Sub(start)
	s.tickDurations.Append(procTime.Seconds())

	if procTime > s.interval || measured > 2*s.interval {
		s.anomalies.Add(1)
		ui.Warning("Scheduler anomaly: tick took %v, previous tick %v ago (interval %v)",
			procTime, measured, s.interval)
		s.deadline = s.now().Add(s.interval)
	} else {
		s.deadline = s.deadline.Add(s.interval)
	}

	delay := s.deadline.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	s.timer = s.rtr.PostDelayed(delay, s.tick)
}

// Counters, safe from any goroutine.
func (s *Scheduler) Ticks() uint64     { return s.ticks.Load() }
func (s *Scheduler) SlowTicks() uint64 { return s.slowTicks.Load() }
func (s *Scheduler) Anomalies() uint64 { return s.anomalies.Load() }

// AvgTickDuration returns the average tick processing time over the last
// sixty ticks, in seconds.
func (s *Scheduler) AvgTickDuration() float64 {
	return util.GetWindowAvg(s.tickDurations)
}
