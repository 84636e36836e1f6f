package poll

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/markusressel/sensormon/internal/properties"
	"github.com/markusressel/sensormon/internal/reactor"
	"github.com/markusressel/sensormon/internal/sensors"
	"github.com/markusressel/sensormon/internal/thresholds"
	"github.com/stretchr/testify/assert"
)

func startReactor(t *testing.T) *reactor.Reactor {
	rtr := reactor.New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = rtr.Run(ctx)
	}()
	return rtr
}

// onReactor runs fn on the reactor goroutine and waits for it.
func onReactor(rtr *reactor.Reactor, fn func()) {
	done := make(chan struct{})
	rtr.Post(func() {
		fn()
		close(done)
	})
	<-done
}

func createTestSensor(t *testing.T) *sensors.Sensor {
	sensor, err := sensors.New(sensors.Config{
		Name:       "test_temp",
		ObjectType: "temperature",
		Unit:       "DegreesC",
		Min:        -128,
		Max:        127,
		Thresholds: []thresholds.Threshold{
			{Level: thresholds.Critical, Direction: thresholds.High, Value: 100, Hysteresis: math.NaN()},
		},
	}, nil, properties.NewRegistry(), nil)
	assert.NoError(t, err)
	return sensor
}

func TestCycleSelfScheduledPolling(t *testing.T) {
	// GIVEN
	rtr := startReactor(t)
	sensor := createTestSensor(t)
	cycle := NewCycle(sensor, func() (float64, error) {
		return 42, nil
	}, Config{Interval: time.Millisecond}, rtr)

	// WHEN
	cycle.Start()

	// THEN: polling repeats on its own
	assert.Eventually(t, func() bool {
		return cycle.ReadCount() >= 3
	}, time.Second, time.Millisecond)
	assert.Equal(t, 42.0, sensor.Snapshot().Value)
	assert.Equal(t, cycle.ReadCount(), cycle.GoodCount())
}

func TestCycleScaleAndOffset(t *testing.T) {
	// GIVEN: a raw millidegree reading
	rtr := startReactor(t)
	sensor := createTestSensor(t)
	cycle := NewCycle(sensor, func() (float64, error) {
		return 21000, nil
	}, Config{Scale: 0.001, Offset: 500}, rtr)

	// WHEN
	onReactor(rtr, func() { cycle.Prepare() })

	// THEN: (raw + offset) * scale
	assert.Eventually(t, func() bool {
		return cycle.GoodCount() == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 21.5, sensor.Snapshot().Value)
	assert.Equal(t, 21000.0, sensor.Snapshot().RawValue)
}

func TestCycleRollingWindow(t *testing.T) {
	// GIVEN
	rtr := startReactor(t)
	sensor := createTestSensor(t)
	readings := make(chan float64, 2)
	readings <- 10
	readings <- 20
	cycle := NewCycle(sensor, func() (float64, error) {
		return <-readings, nil
	}, Config{RollingWindowSize: 2}, rtr)

	// WHEN
	onReactor(rtr, func() { cycle.Prepare() })
	assert.Eventually(t, func() bool { return cycle.GoodCount() == 1 }, time.Second, time.Millisecond)
	onReactor(rtr, func() { cycle.Prepare() })
	assert.Eventually(t, func() bool { return cycle.GoodCount() == 2 }, time.Second, time.Millisecond)

	// THEN: the published value is smoothed over the window
	assert.Equal(t, 15.0, sensor.Snapshot().Value)
}

func TestCycleSlowReadAbandoned(t *testing.T) {
	// GIVEN: a first read that never completes
	rtr := startReactor(t)
	sensor := createTestSensor(t)
	block := make(chan struct{})
	calls := make(chan int, 2)
	calls <- 1
	calls <- 2
	cycle := NewCycle(sensor, func() (float64, error) {
		if <-calls == 1 {
			<-block
			return 1, nil
		}
		return 42, nil
	}, Config{}, rtr)
	defer close(block)

	onReactor(rtr, func() { cycle.Prepare() })

	// WHEN: the next tick arrives while the read is still pending
	var disposition Disposition
	onReactor(rtr, func() { disposition = cycle.Prepare() })

	// THEN: the stuck read is abandoned and counted
	assert.Equal(t, DispositionSlow, disposition)
	assert.Equal(t, uint64(1), cycle.SlowCount())

	// AND: the replacement read lands normally
	assert.Eventually(t, func() bool {
		return cycle.GoodCount() == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 42.0, sensor.Snapshot().Value)
}

func TestCycleAbandonedResultIsDiscarded(t *testing.T) {
	// GIVEN: a slow first read delivering a stale value
	rtr := startReactor(t)
	sensor := createTestSensor(t)
	block := make(chan struct{})
	calls := make(chan int, 2)
	calls <- 1
	calls <- 2
	cycle := NewCycle(sensor, func() (float64, error) {
		if <-calls == 1 {
			<-block
			return 1, nil
		}
		return 42, nil
	}, Config{}, rtr)

	onReactor(rtr, func() { cycle.Prepare() })
	onReactor(rtr, func() { cycle.Prepare() })
	assert.Eventually(t, func() bool { return cycle.GoodCount() == 1 }, time.Second, time.Millisecond)

	// WHEN: the abandoned read finally completes
	close(block)
	time.Sleep(50 * time.Millisecond)

	// THEN: its stale value never reaches the sensor
	var value float64
	onReactor(rtr, func() { value = sensor.Value })
	assert.Equal(t, 42.0, value)
	assert.Equal(t, uint64(1), cycle.ReadCount())
}

func TestCycleTransientErrorsLatchNotFunctional(t *testing.T) {
	// GIVEN: a reader that keeps failing
	rtr := startReactor(t)
	sensor := createTestSensor(t)
	cycle := NewCycle(sensor, func() (float64, error) {
		return math.NaN(), fmt.Errorf("parse error")
	}, Config{}, rtr)

	// WHEN: enough ticks to exhaust the error budget
	for i := 0; i < sensors.ErrorThreshold; i++ {
		onReactor(rtr, func() { cycle.Prepare() })
		expected := uint64(i + 1)
		assert.Eventually(t, func() bool { return cycle.ReadCount() == expected }, time.Second, time.Millisecond)
	}

	// THEN: the sensor is latched not-functional, the cycle keeps polling
	var functional, stopped bool
	onReactor(rtr, func() {
		functional = sensor.Functional
		stopped = cycle.Stopped()
	})
	assert.False(t, functional)
	assert.False(t, stopped)
	assert.Equal(t, DispositionBad, cycle.Disposition())
}

func TestCycleTerminalErrorAbortsPolling(t *testing.T) {
	// GIVEN: the data source disappears
	rtr := startReactor(t)
	sensor := createTestSensor(t)
	cycle := NewCycle(sensor, func() (float64, error) {
		return math.NaN(), fmt.Errorf("open: %w", sensors.ErrSourceRemoved)
	}, Config{}, rtr)

	onReactor(rtr, func() { cycle.Prepare() })
	assert.Eventually(t, func() bool { return cycle.ReadCount() == 1 }, time.Second, time.Millisecond)

	// THEN: polling is aborted for good
	var stopped, functional, available bool
	onReactor(rtr, func() {
		stopped = cycle.Stopped()
		functional = sensor.Functional
		available = sensor.Available
	})
	assert.True(t, stopped)
	assert.False(t, functional)
	assert.False(t, available)

	// WHEN: further ticks arrive
	onReactor(rtr, func() { cycle.Prepare() })
	time.Sleep(20 * time.Millisecond)

	// THEN: no new read is started
	assert.Equal(t, uint64(1), cycle.ReadCount())
}

func TestCycleQuiescence(t *testing.T) {
	// GIVEN: a read in flight
	rtr := startReactor(t)
	sensor := createTestSensor(t)
	block := make(chan struct{})
	cycle := NewCycle(sensor, func() (float64, error) {
		<-block
		return 42, nil
	}, Config{}, rtr)
	onReactor(rtr, func() { cycle.Prepare() })

	// WHEN: deletion is requested while the read is pending
	var quiescent bool
	onReactor(rtr, func() {
		cycle.RequestDelete()
		quiescent = cycle.DeleteQuiescent()
	})

	// THEN: not yet quiescent
	assert.False(t, quiescent)

	// WHEN: the read lands
	close(block)
	assert.Eventually(t, func() bool {
		var q bool
		onReactor(rtr, func() { q = cycle.DeleteQuiescent() })
		return q
	}, time.Second, time.Millisecond)

	// THEN: the late result was discarded, not published
	assert.Equal(t, uint64(0), cycle.ReadCount())
	var value float64
	onReactor(rtr, func() { value = sensor.Value })
	assert.True(t, math.IsNaN(value))
}

func TestCycleIdleDeleteIsImmediatelyQuiescent(t *testing.T) {
	// GIVEN
	rtr := startReactor(t)
	sensor := createTestSensor(t)
	cycle := NewCycle(sensor, func() (float64, error) { return 42, nil }, Config{}, rtr)

	// WHEN
	var quiescent bool
	onReactor(rtr, func() {
		cycle.RequestDelete()
		quiescent = cycle.DeleteQuiescent()
	})

	// THEN
	assert.True(t, quiescent)
}
