package sensors

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"github.com/markusressel/sensormon/internal/persistence"
	"github.com/markusressel/sensormon/internal/power"
	"github.com/markusressel/sensormon/internal/properties"
	"github.com/markusressel/sensormon/internal/thresholds"
	"github.com/markusressel/sensormon/internal/ui"
)

// ErrorThreshold is the number of consecutive failed reads after which a
// sensor is latched not-functional.
const ErrorThreshold = 5

// Hysteresis bands are auto-derived from the configured value range.
// The two ratios are tunable heuristics, kept at these values for
// compatibility with existing setups.
const (
	HysteresisTriggerRatio = 0.01
	HysteresisPublishRatio = 0.0001
)

// Config carries everything needed to construct a Sensor.
type Config struct {
	Name       string
	ConfigPath string
	ObjectType string
	Unit       string
	Min        float64
	Max        float64
	Thresholds []thresholds.Threshold
	ReadState  power.State

	// Dispatch routes external property writes onto the goroutine owning
	// the sensor. Defaults to direct invocation.
	Dispatch func(func())
}

// Sensor is the per-sensor data record. All mutating methods must be
// called on the owning reactor goroutine; concurrent readers use
// Snapshot().
type Sensor struct {
	Name       string
	ConfigPath string
	ObjectType string
	Unit       string

	MinValue float64
	MaxValue float64

	Thresholds []thresholds.Threshold

	HysteresisTrigger float64
	HysteresisPublish float64

	// Value is the last externally published reading, NaN while unknown
	Value    float64
	RawValue float64

	ReadState  power.State
	Overridden bool
	ErrCount   int
	Available  bool
	Functional bool

	gate     *power.Gate
	registry *properties.Registry
	store    persistence.Persistence
	dispatch func(func())

	valueProp      *properties.Property
	availableProp  *properties.Property
	functionalProp *properties.Property
	alarmProps     map[string]*properties.Property

	registered []string

	snapshot atomic.Pointer[Snapshot]
}

// ThresholdSnapshot is the externally visible state of one threshold.
type ThresholdSnapshot struct {
	Level     string  `json:"level"`
	Direction string  `json:"direction"`
	Value     float64 `json:"value"`
	Asserted  bool    `json:"asserted"`
}

// Snapshot is an immutable copy of the externally relevant sensor state,
// safe to read from any goroutine.
type Snapshot struct {
	Name       string              `json:"name"`
	ObjectType string              `json:"objectType"`
	Unit       string              `json:"unit"`
	Value      float64             `json:"-"`
	RawValue   float64             `json:"-"`
	MinValue   float64             `json:"minValue"`
	MaxValue   float64             `json:"maxValue"`
	Available  bool                `json:"available"`
	Functional bool                `json:"functional"`
	Overridden bool                `json:"overridden"`
	ErrCount   int                 `json:"errCount"`
	Thresholds []ThresholdSnapshot `json:"thresholds"`
}

// New validates the configuration, registers the sensor's properties and
// returns the ready-to-poll sensor.
func New(
	config Config,
	gate *power.Gate,
	registry *properties.Registry,
	store persistence.Persistence,
) (*Sensor, error) {
	if !(config.Min < config.Max) {
		return nil, fmt.Errorf("sensor %s: minValue (%v) must be less than maxValue (%v)",
			config.Name, config.Min, config.Max)
	}

	valueRange := config.Max - config.Min
	dispatch := config.Dispatch
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}

	s := &Sensor{
		Name:              strings.ReplaceAll(config.Name, " ", "_"),
		ConfigPath:        config.ConfigPath,
		ObjectType:        config.ObjectType,
		Unit:              config.Unit,
		MinValue:          config.Min,
		MaxValue:          config.Max,
		Thresholds:        append([]thresholds.Threshold{}, config.Thresholds...),
		HysteresisTrigger: valueRange * HysteresisTriggerRatio,
		HysteresisPublish: valueRange * HysteresisPublishRatio,
		Value:             math.NaN(),
		RawValue:          math.NaN(),
		ReadState:         config.ReadState,
		Available:         true,
		Functional:        true,
		gate:              gate,
		registry:          registry,
		store:             store,
		dispatch:          dispatch,
		alarmProps:        map[string]*properties.Property{},
	}

	for i := range s.Thresholds {
		if _, ok := thresholds.FindProperty(s.Thresholds[i].Level, s.Thresholds[i].Direction); !ok {
			return nil, fmt.Errorf("sensor %s: unknown threshold level/direction combination", s.Name)
		}
		if math.IsNaN(s.Thresholds[i].Hysteresis) {
			s.Thresholds[i].Hysteresis = s.HysteresisTrigger
		}
	}
	thresholds.SortBySeverity(s.Thresholds)

	s.applyPersistedThresholds()
	s.setupProperties()
	s.publishSnapshot()

	return s, nil
}

func (s *Sensor) GetId() string {
	return s.Name
}

// PropertyName returns the registry name of one of the sensor's
// properties.
func (s *Sensor) PropertyName(property string) string {
	return fmt.Sprintf("sensors.%s.%s.%s", s.ObjectType, s.Name, property)
}

func (s *Sensor) applyPersistedThresholds() {
	if s.store == nil {
		return
	}
	overrides, err := s.store.LoadThresholdOverrides(s.Name)
	if err != nil {
		return
	}
	for i := range s.Thresholds {
		property, _ := thresholds.FindProperty(s.Thresholds[i].Level, s.Thresholds[i].Direction)
		if value, ok := overrides[property.LevelProperty]; ok {
			ui.Debug("Sensor %s: restoring persisted %s threshold: %v", s.Name, property.LevelProperty, value)
			s.Thresholds[i].Value = value
		}
	}
}

func (s *Sensor) register(property string, initial interface{}, setter properties.Setter) *properties.Property {
	name := s.PropertyName(property)
	s.registered = append(s.registered, name)
	return s.registry.Register(name, initial, setter)
}

func (s *Sensor) setupProperties() {
	s.valueProp = s.register("Value", math.NaN(), func(request interface{}) error {
		value, ok := request.(float64)
		if !ok {
			return fmt.Errorf("sensor %s: Value accepts numbers only", s.Name)
		}
		s.dispatch(func() {
			s.SetValueExternal(value)
		})
		return nil
	})

	s.register("Unit", s.Unit, nil)
	s.register("MaxValue", s.MaxValue, nil)
	s.register("MinValue", s.MinValue, nil)

	for i := range s.Thresholds {
		i := i
		property, _ := thresholds.FindProperty(s.Thresholds[i].Level, s.Thresholds[i].Direction)

		s.register(property.LevelProperty, s.Thresholds[i].Value, func(request interface{}) error {
			value, ok := request.(float64)
			if !ok {
				return fmt.Errorf("sensor %s: %s accepts numbers only", s.Name, property.LevelProperty)
			}
			s.dispatch(func() {
				s.SetThreshold(i, value)
			})
			return nil
		})
		s.alarmProps[property.AlarmProperty] = s.register(property.AlarmProperty, false, nil)
	}

	s.availableProp = s.register("Available", true, func(request interface{}) error {
		available, ok := request.(bool)
		if !ok {
			return fmt.Errorf("sensor %s: Available accepts booleans only", s.Name)
		}
		s.dispatch(func() {
			if !available {
				s.UpdateValue(math.NaN())
			}
		})
		return nil
	})
	s.functionalProp = s.register("Functional", true, nil)
}

// Close unregisters all of the sensor's properties. Only called after the
// sensor reached quiescence in the retired generation.
func (s *Sensor) Close() {
	for _, name := range s.registered {
		s.registry.Unregister(name)
	}
}

// ReadingStateGood reports whether a reading taken right now would be
// meaningful, given the sensor's power-gating mode.
func (s *Sensor) ReadingStateGood() bool {
	if s.gate == nil {
		// no gate collaborator wired up, fail closed for gated modes
		return s.ReadState == power.Always
	}
	return s.gate.ReadingStateGood(s.ReadState)
}

// SetValueExternal pins the sensor to an externally written value.
// Normal updates are suspended until ClearOverride.
func (s *Sensor) SetValueExternal(value float64) {
	s.Overridden = true
	s.Value = value
	s.valueProp.Set(value)
	s.CheckThresholds()
	s.publishSnapshot()
}

// ClearOverride resumes normal value updates.
func (s *Sensor) ClearOverride() {
	s.Overridden = false
	s.publishSnapshot()
}

// DispatchClearOverride routes ClearOverride onto the goroutine owning
// the sensor. Safe to call from any goroutine.
func (s *Sensor) DispatchClearOverride() {
	s.dispatch(func() {
		s.ClearOverride()
	})
}

// SetThreshold changes a trip point at runtime, persists it and
// invalidates the remembered value, so the new trip point is evaluated
// on the next poll even if the reading is unchanged.
func (s *Sensor) SetThreshold(index int, value float64) {
	if index < 0 || index >= len(s.Thresholds) {
		return
	}
	s.Thresholds[index].Value = value
	property, _ := thresholds.FindProperty(s.Thresholds[index].Level, s.Thresholds[index].Direction)
	ui.Info("Sensor %s: %s threshold changed to %v", s.Name, property.LevelProperty, value)

	if s.store != nil {
		if err := s.store.SaveThresholdOverride(s.Name, property.LevelProperty, value); err != nil {
			ui.Warning("Sensor %s: unable to persist threshold: %v", s.Name, err)
		}
	}

	// Do not check thresholds here. The regular poll calls UpdateValue,
	// which also honors power gating before raising any alarm.
	s.Value = math.NaN()
	s.publishSnapshot()
}

// SetRaw records the pre-scaling reading for diagnostics.
func (s *Sensor) SetRaw(value float64) {
	s.RawValue = value
}

// UpdateValue applies a new scaled reading to the sensor.
func (s *Sensor) UpdateValue(newValue float64) {
	// ignore while an external write pins the value
	if s.Overridden {
		return
	}

	if !s.ReadingStateGood() {
		s.MarkAvailable(false)
		s.publishValue(math.NaN())
		s.publishSnapshot()
		return
	}

	s.publishValue(newValue)

	// threshold state is stateful on its own, check it even when the
	// published value did not move
	s.CheckThresholds()

	if !math.IsNaN(newValue) {
		s.MarkFunctional(true)
		s.MarkAvailable(true)
	}
	s.publishSnapshot()
}

// IncrementError counts one failed read attempt. After ErrorThreshold
// consecutive failures the sensor is latched not-functional.
func (s *Sensor) IncrementError() {
	if !s.ReadingStateGood() {
		s.MarkAvailable(false)
		s.publishSnapshot()
		return
	}

	if s.ErrCount >= ErrorThreshold {
		return
	}

	s.ErrCount++
	if s.ErrCount == ErrorThreshold {
		ui.Warning("Sensor %s reading error!", s.Name)
		s.MarkFunctional(false)
	}
	s.publishSnapshot()
}

func (s *Sensor) MarkFunctional(functional bool) {
	s.Functional = functional
	s.functionalProp.Set(functional)
	if functional {
		s.ErrCount = 0
	} else {
		s.UpdateValue(math.NaN())
	}
}

func (s *Sensor) MarkAvailable(available bool) {
	s.Available = available
	s.availableProp.Set(available)
	s.ErrCount = 0
}

// CheckThresholds evaluates all thresholds against the current value, in
// severity order. Transitions update the alarm properties and are logged
// once; re-evaluation without a state change emits nothing.
func (s *Sensor) CheckThresholds() {
	for i := range s.Thresholds {
		t := &s.Thresholds[i]
		asserted, changed := thresholds.Evaluate(*t, s.Value)
		if !changed {
			continue
		}
		t.Asserted = asserted

		property, _ := thresholds.FindProperty(t.Level, t.Direction)
		if asserted {
			ui.Warning("Sensor %s: value %v %s %s threshold %v, alarm asserted",
				s.Name, s.Value, property.DirWord, t.Level, t.Value)
		} else {
			ui.Info("Sensor %s: value %v no longer %s %s threshold %v, alarm cleared",
				s.Name, s.Value, property.DirWord, t.Level, t.Value)
		}
		if alarm, ok := s.alarmProps[property.AlarmProperty]; ok {
			alarm.Set(asserted)
		}
	}
}

// publishValue writes the value property, suppressing noise-level deltas
// below the publish hysteresis band.
func (s *Sensor) publishValue(newValue float64) {
	if !s.requiresUpdate(s.Value, newValue) {
		return
	}
	s.Value = newValue
	s.valueProp.Set(newValue)
}

func (s *Sensor) requiresUpdate(oldValue, newValue float64) bool {
	if math.IsNaN(oldValue) || math.IsNaN(newValue) {
		return true
	}
	return math.Abs(oldValue-newValue) > s.HysteresisPublish
}

func (s *Sensor) publishSnapshot() {
	snapshot := &Snapshot{
		Name:       s.Name,
		ObjectType: s.ObjectType,
		Unit:       s.Unit,
		Value:      s.Value,
		RawValue:   s.RawValue,
		MinValue:   s.MinValue,
		MaxValue:   s.MaxValue,
		Available:  s.Available,
		Functional: s.Functional,
		Overridden: s.Overridden,
		ErrCount:   s.ErrCount,
	}
	for _, t := range s.Thresholds {
		snapshot.Thresholds = append(snapshot.Thresholds, ThresholdSnapshot{
			Level:     t.Level.String(),
			Direction: t.Direction.String(),
			Value:     t.Value,
			Asserted:  t.Asserted,
		})
	}
	s.snapshot.Store(snapshot)
}

// Snapshot returns the last published state. Safe from any goroutine.
func (s *Sensor) Snapshot() *Snapshot {
	return s.snapshot.Load()
}
