package thresholds

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Level is the severity of a threshold.
type Level int

const (
	Warning Level = iota
	Critical
	SoftShutdown
	HardShutdown
)

func (l Level) String() string {
	switch l {
	case Warning:
		return "Warning"
	case Critical:
		return "Critical"
	case SoftShutdown:
		return "SoftShutdown"
	case HardShutdown:
		return "HardShutdown"
	}
	return "Unknown"
}

// Direction selects which side of the trip point raises the alarm.
type Direction int

const (
	High Direction = iota
	Low
)

func (d Direction) String() string {
	if d == Low {
		return "Low"
	}
	return "High"
}

// Threshold is one configured alarm boundary of a sensor.
// Hysteresis NaN means "use the sensor's auto-derived trigger hysteresis".
type Threshold struct {
	Level      Level
	Direction  Direction
	Value      float64
	Hysteresis float64
	Asserted   bool
}

// Property describes the externally visible names of one (level, direction)
// combination, in severity order.
type Property struct {
	Level         Level
	Direction     Direction
	SevOrder      int
	LevelProperty string
	AlarmProperty string
	DirWord       string
}

// Table lists all supported threshold properties, ordered by severity.
var Table = []Property{
	{Warning, High, 0, "WarningHigh", "WarningAlarmHigh", "greater than"},
	{Warning, Low, 0, "WarningLow", "WarningAlarmLow", "less than"},
	{Critical, High, 1, "CriticalHigh", "CriticalAlarmHigh", "greater than"},
	{Critical, Low, 1, "CriticalLow", "CriticalAlarmLow", "less than"},
	{SoftShutdown, High, 2, "SoftShutdownHigh", "SoftShutdownAlarmHigh", "greater than"},
	{SoftShutdown, Low, 2, "SoftShutdownLow", "SoftShutdownAlarmLow", "less than"},
	{HardShutdown, High, 3, "HardShutdownHigh", "HardShutdownAlarmHigh", "greater than"},
	{HardShutdown, Low, 3, "HardShutdownLow", "HardShutdownAlarmLow", "less than"},
}

// FindProperty returns the table entry for the given level and direction.
func FindProperty(level Level, direction Direction) (Property, bool) {
	for _, property := range Table {
		if property.Level == level && property.Direction == direction {
			return property, true
		}
	}
	return Property{}, false
}

// SortBySeverity orders thresholds Warning first, HardShutdown last,
// High before Low within one severity.
func SortBySeverity(thresholds []Threshold) {
	sort.SliceStable(thresholds, func(i, j int) bool {
		a, _ := FindProperty(thresholds[i].Level, thresholds[i].Direction)
		b, _ := FindProperty(thresholds[j].Level, thresholds[j].Direction)
		if a.SevOrder != b.SevOrder {
			return a.SevOrder < b.SevOrder
		}
		return thresholds[i].Direction < thresholds[j].Direction
	})
}

// Evaluate decides the new asserted state of a threshold for the given
// value. The alarm enters at the trip point and clears only after the
// value has moved back across trip -/+ hysteresis, so a value resting at
// the boundary cannot make the alarm flap. NaN values leave the state
// untouched.
func Evaluate(t Threshold, value float64) (asserted bool, changed bool) {
	if math.IsNaN(value) {
		return t.Asserted, false
	}

	asserted = t.Asserted
	switch t.Direction {
	case High:
		if !t.Asserted && value > t.Value {
			asserted = true
		} else if t.Asserted && value < (t.Value-t.Hysteresis) {
			asserted = false
		}
	case Low:
		if !t.Asserted && value < t.Value {
			asserted = true
		} else if t.Asserted && value > (t.Value+t.Hysteresis) {
			asserted = false
		}
	}

	return asserted, asserted != t.Asserted
}

// ParseLevel converts the configuration spelling of a severity.
func ParseLevel(raw string) (Level, error) {
	switch {
	case strings.EqualFold(raw, "warning"):
		return Warning, nil
	case strings.EqualFold(raw, "critical"):
		return Critical, nil
	case strings.EqualFold(raw, "softShutdown"):
		return SoftShutdown, nil
	case strings.EqualFold(raw, "hardShutdown"):
		return HardShutdown, nil
	}
	return Warning, fmt.Errorf("unknown threshold severity: %q", raw)
}

// ParseDirection converts the configuration spelling of a direction.
func ParseDirection(raw string) (Direction, error) {
	switch {
	case strings.EqualFold(raw, "high"):
		return High, nil
	case strings.EqualFold(raw, "low"):
		return Low, nil
	}
	return High, fmt.Errorf("unknown threshold direction: %q", raw)
}
