package poll

import (
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/asecurityteam/rolling"
	"github.com/markusressel/sensormon/internal/reactor"
	"github.com/markusressel/sensormon/internal/sensors"
	"github.com/markusressel/sensormon/internal/ui"
	"github.com/markusressel/sensormon/internal/util"
)

// Disposition is the outcome of a cycle's most recent poll.
type Disposition int

const (
	// DispositionNew means no poll has completed yet
	DispositionNew Disposition = iota
	// DispositionSlow means the previous read had to be abandoned
	DispositionSlow
	// DispositionGood means the previous read produced a usable value
	DispositionGood
	// DispositionBad means the previous read failed
	DispositionBad
)

func (d Disposition) String() string {
	switch d {
	case DispositionSlow:
		return "slow"
	case DispositionGood:
		return "good"
	case DispositionBad:
		return "bad"
	default:
		return "new"
	}
}

// Config tunes one poll cycle.
type Config struct {
	// Interval between polls in self-scheduling mode
	Interval time.Duration
	// Scale and Offset turn a raw reading into the published value:
	// (raw + Offset) * Scale. Zero Scale means 1.
	Scale  float64
	Offset float64
	// RollingWindowSize > 1 smooths published values over the last N reads
	RollingWindowSize int
}

// Cycle drives one sensor's read/evaluate/sleep loop on the reactor.
//
// All fields below the counters are owned by the reactor goroutine.
// Reads are performed on short-lived helper goroutines; their results
// come back as posted handlers, tagged with an operation sequence number
// so that results belonging to a cancelled read are discarded without
// touching the cycle.
type Cycle struct {
	sensor *sensors.Sensor
	read   sensors.ReadFunc
	rtr    *reactor.Reactor
	config Config
	window *rolling.PointPolicy

	readCount atomic.Uint64
	goodCount atomic.Uint64
	slowCount atomic.Uint64

	disposition     Disposition
	pendingRead     bool
	pendingTimer    *reactor.Timer
	selfScheduling  bool
	stopped         bool
	deleteRequested bool
	deleteQuiescent bool
	currentOp       uint64
}

func NewCycle(sensor *sensors.Sensor, read sensors.ReadFunc, config Config, rtr *reactor.Reactor) *Cycle {
	if config.Scale == 0 {
		config.Scale = 1
	}
	c := &Cycle{
		sensor: sensor,
		read:   read,
		rtr:    rtr,
		config: config,
	}
	if config.RollingWindowSize > 1 {
		c.window = util.CreateRollingWindow(config.RollingWindowSize)
	}
	return c
}

func (c *Cycle) Sensor() *sensors.Sensor {
	return c.sensor
}

// Start begins self-scheduled polling: each completed read arms a timer
// for the next one. Safe to call from any goroutine.
func (c *Cycle) Start() {
	c.rtr.Post(func() {
		if c.deleteRequested || c.stopped {
			return
		}
		c.selfScheduling = true
		c.setupRead()
	})
}

// Prepare starts the next read on behalf of an external scheduler and
// returns the disposition of the previous one. A read still pending from
// the previous tick is abandoned first. Reactor goroutine only.
func (c *Cycle) Prepare() Disposition {
	if c.deleteRequested || c.stopped {
		return c.disposition
	}

	if c.pendingRead {
		// invalidate the outstanding read, its result will be dropped
		c.currentOp++
		c.pendingRead = false
		c.disposition = DispositionSlow

		slow := c.slowCount.Add(1)
		if slow == sensors.ErrorThreshold {
			ui.Warning("Sensor %s is missing readings", c.sensor.Name)
		}
	}

	c.setupRead()
	return c.disposition
}

func (c *Cycle) setupRead() {
	if !c.sensor.ReadingStateGood() {
		c.sensor.MarkAvailable(false)
		c.sensor.UpdateValue(math.NaN())
		c.restartRead()
		return
	}

	c.currentOp++
	op := c.currentOp
	c.pendingRead = true

	go func() {
		value, err := c.read()
		c.rtr.Post(func() {
			c.handleResponse(op, value, err)
		})
	}()
}

func (c *Cycle) handleResponse(op uint64, value float64, err error) {
	if op != c.currentOp {
		// abandoned read, a newer one is already in flight
		return
	}
	c.pendingRead = false

	if c.deleteRequested {
		c.maybeQuiesce()
		return
	}

	c.readCount.Add(1)
	c.disposition = DispositionBad

	switch {
	case errors.Is(err, sensors.ErrSourceRemoved):
		ui.Error("Sensor %s: %v, polling aborted", c.sensor.Name, err)
		c.sensor.MarkFunctional(false)
		c.sensor.MarkAvailable(false)
		c.stopped = true
		return
	case err != nil:
		c.sensor.IncrementError()
	default:
		c.disposition = DispositionGood
		c.goodCount.Add(1)

		scaled := (value + c.config.Offset) * c.config.Scale
		if c.window != nil {
			c.window.Append(scaled)
			scaled = util.GetWindowAvg(c.window)
		}
		c.sensor.SetRaw(value)
		c.sensor.UpdateValue(scaled)
	}

	c.restartRead()
}

// restartRead arms the inter-poll timer in self-scheduling mode. Under an
// external scheduler the next tick calls Prepare instead.
func (c *Cycle) restartRead() {
	if !c.selfScheduling || c.deleteRequested || c.stopped {
		return
	}
	c.pendingTimer = c.rtr.PostDelayed(c.config.Interval, func() {
		c.pendingTimer = nil
		if c.deleteRequested || c.stopped {
			return
		}
		c.setupRead()
	})
}

// RequestDelete begins retirement. The cycle stops scheduling new work;
// an in-flight read is allowed to land and is then discarded. Reactor
// goroutine only.
func (c *Cycle) RequestDelete() {
	c.deleteRequested = true
	if c.pendingTimer != nil {
		c.pendingTimer.Cancel()
		c.pendingTimer = nil
	}
	c.maybeQuiesce()
}

func (c *Cycle) maybeQuiesce() {
	if !c.pendingRead {
		c.deleteQuiescent = true
	}
}

// DeleteQuiescent reports whether the cycle has no outstanding work left.
// Monotonic: once true it stays true. Reactor goroutine only.
func (c *Cycle) DeleteQuiescent() bool {
	return c.deleteQuiescent
}

// Close releases the underlying sensor's resources. Called by the
// lifecycle manager after quiescence.
func (c *Cycle) Close() {
	c.sensor.Close()
}

// Stopped reports whether polling aborted on a terminal error.
// Reactor goroutine only.
func (c *Cycle) Stopped() bool {
	return c.stopped
}

func (c *Cycle) Disposition() Disposition {
	return c.disposition
}

// Counters, safe from any goroutine.
func (c *Cycle) ReadCount() uint64 { return c.readCount.Load() }
func (c *Cycle) GoodCount() uint64 { return c.goodCount.Load() }
func (c *Cycle) SlowCount() uint64 { return c.slowCount.Load() }
