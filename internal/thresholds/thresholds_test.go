package thresholds

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// feed runs a value sequence through one threshold and counts transitions
func feed(t *Threshold, values []float64) (asserts int, clears int) {
	for _, value := range values {
		asserted, changed := Evaluate(*t, value)
		if changed {
			if asserted {
				asserts++
			} else {
				clears++
			}
		}
		t.Asserted = asserted
	}
	return asserts, clears
}

func TestHysteresisMonotonicityHighDirection(t *testing.T) {
	// GIVEN
	trip := 100.0
	hysteresis := 2.0
	threshold := Threshold{
		Level:      Critical,
		Direction:  High,
		Value:      trip,
		Hysteresis: hysteresis,
	}

	// WHEN
	asserts, clears := feed(&threshold, []float64{
		trip - 2*hysteresis, // below band, no alarm
		trip + 0.1,          // crosses trip, assert
		trip - 0.1,          // inside band, keep alarm
		trip + 2*hysteresis, // still asserted
		trip - 0.5*hysteresis,
		trip - 1.5*hysteresis, // below trip-hysteresis, clear
	})

	// THEN
	assert.Equal(t, 1, asserts)
	assert.Equal(t, 1, clears)
	assert.False(t, threshold.Asserted)
}

func TestHysteresisLowDirection(t *testing.T) {
	// GIVEN
	threshold := Threshold{
		Level:      Warning,
		Direction:  Low,
		Value:      10.0,
		Hysteresis: 1.0,
	}

	// WHEN
	asserts, clears := feed(&threshold, []float64{12, 9.9, 10.5, 11.5})

	// THEN
	assert.Equal(t, 1, asserts)
	assert.Equal(t, 1, clears)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	// GIVEN
	threshold := Threshold{
		Level:      Critical,
		Direction:  High,
		Value:      50.0,
		Hysteresis: 1.0,
		Asserted:   true,
	}

	// WHEN evaluating the same asserting value again
	asserted, changed := Evaluate(threshold, 60.0)

	// THEN
	assert.True(t, asserted)
	assert.False(t, changed)
}

func TestEvaluateIgnoresNaN(t *testing.T) {
	// GIVEN
	threshold := Threshold{
		Level:      Critical,
		Direction:  High,
		Value:      50.0,
		Hysteresis: 1.0,
		Asserted:   true,
	}

	// WHEN
	asserted, changed := Evaluate(threshold, math.NaN())

	// THEN alarm state persists through unknown readings
	assert.True(t, asserted)
	assert.False(t, changed)
}

func TestSortBySeverity(t *testing.T) {
	// GIVEN
	thresholds := []Threshold{
		{Level: HardShutdown, Direction: Low},
		{Level: Warning, Direction: Low},
		{Level: Critical, Direction: High},
		{Level: Warning, Direction: High},
	}

	// WHEN
	SortBySeverity(thresholds)

	// THEN
	assert.Equal(t, Warning, thresholds[0].Level)
	assert.Equal(t, High, thresholds[0].Direction)
	assert.Equal(t, Warning, thresholds[1].Level)
	assert.Equal(t, Low, thresholds[1].Direction)
	assert.Equal(t, Critical, thresholds[2].Level)
	assert.Equal(t, HardShutdown, thresholds[3].Level)
}

func TestFindProperty(t *testing.T) {
	// GIVEN / WHEN
	property, ok := FindProperty(Critical, High)

	// THEN
	assert.True(t, ok)
	assert.Equal(t, "CriticalHigh", property.LevelProperty)
	assert.Equal(t, "CriticalAlarmHigh", property.AlarmProperty)
}
