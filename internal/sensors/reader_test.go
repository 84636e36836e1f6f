package sensors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/markusressel/sensormon/internal/configuration"
	"github.com/markusressel/sensormon/internal/properties"
	"github.com/stretchr/testify/assert"
)

func registerSensorWithValue(t *testing.T, id string, value float64) *Sensor {
	config := tempSensorConfig()
	config.Name = id
	sensor, _ := createSensor(t, config, nil, nil)
	sensor.UpdateValue(value)
	SensorMap.Set(sensor.GetId(), sensor)
	t.Cleanup(func() {
		SensorMap.Remove(id)
	})
	return sensor
}

func TestSysfsReader(t *testing.T) {
	// GIVEN
	path := filepath.Join(t.TempDir(), "temp1_input")
	assert.NoError(t, os.WriteFile(path, []byte("42000\nignored"), 0644))
	read := NewSysfsReader(path)

	// WHEN
	value, err := read()

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, 42000.0, value)
}

func TestSysfsReaderSourceRemoved(t *testing.T) {
	// GIVEN
	path := filepath.Join(t.TempDir(), "temp1_input")
	assert.NoError(t, os.WriteFile(path, []byte("42000\n"), 0644))
	read := NewSysfsReader(path)
	_, err := read()
	assert.NoError(t, err)

	// WHEN: the source disappears between reads
	assert.NoError(t, os.Remove(path))
	_, err = read()

	// THEN
	assert.ErrorIs(t, err, ErrSourceRemoved)
}

func TestSysfsReaderParseError(t *testing.T) {
	// GIVEN
	path := filepath.Join(t.TempDir(), "temp1_input")
	assert.NoError(t, os.WriteFile(path, []byte("not a number\n"), 0644))
	read := NewSysfsReader(path)

	// WHEN
	_, err := read()

	// THEN: transient, not terminal
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSourceRemoved)
}

func TestAggregateReader(t *testing.T) {
	// GIVEN
	registerSensorWithValue(t, "a", 10)
	registerSensorWithValue(t, "b", 20)

	// WHEN / THEN
	value, err := NewAggregateReader(configuration.AggregateFunctionAverage, []string{"a", "b"})()
	assert.NoError(t, err)
	assert.Equal(t, 15.0, value)

	value, err = NewAggregateReader(configuration.AggregateFunctionMinimum, []string{"a", "b"})()
	assert.NoError(t, err)
	assert.Equal(t, 10.0, value)

	value, err = NewAggregateReader(configuration.AggregateFunctionMaximum, []string{"a", "b"})()
	assert.NoError(t, err)
	assert.Equal(t, 20.0, value)
}

func TestAggregateReaderMissingInput(t *testing.T) {
	// GIVEN
	registerSensorWithValue(t, "a", 10)

	// WHEN
	_, err := NewAggregateReader(configuration.AggregateFunctionAverage, []string{"a", "nope"})()

	// THEN: transient, the referenced sensor might come back
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSourceRemoved)
}

func TestNewReaderPicksSubConfiguration(t *testing.T) {
	// GIVEN
	path := filepath.Join(t.TempDir(), "in0_input")
	assert.NoError(t, os.WriteFile(path, []byte("12000\n"), 0644))

	config := configuration.SensorConfig{
		ID:    "psu_vout",
		HwMon: &configuration.HwMonSensorConfig{Platform: "psu", Index: 1, Input: path},
	}

	// WHEN
	read, err := NewReader(config)

	// THEN
	assert.NoError(t, err)
	value, err := read()
	assert.NoError(t, err)
	assert.Equal(t, 12000.0, value)
}

func TestNewReaderRejectsEmptyConfig(t *testing.T) {
	// WHEN
	_, err := NewReader(configuration.SensorConfig{ID: "empty"})

	// THEN
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	// GIVEN
	hysteresis := 1.5
	config := configuration.SensorConfig{
		ID:   "inlet temp",
		Type: "temperature",
		Min:  -128,
		Max:  127,
		Thresholds: []configuration.ThresholdConfig{
			{Severity: "critical", Direction: "high", Value: 100, Hysteresis: &hysteresis},
			{Severity: "warning", Direction: "high", Value: 80},
		},
	}

	// WHEN
	sensor, err := FromConfig(config, "/etc/sensormon/sensormon.yaml", nil, properties.NewRegistry(), nil, nil)

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, "inlet_temp", sensor.Name)
	assert.Equal(t, "DegreesC", sensor.Unit)
	// severity ordering: warning first
	assert.Equal(t, 80.0, sensor.Thresholds[0].Value)
	assert.Equal(t, 100.0, sensor.Thresholds[1].Value)
	assert.Equal(t, 1.5, sensor.Thresholds[1].Hysteresis)
}

func TestFromConfigRejectsUnknownType(t *testing.T) {
	// GIVEN
	config := configuration.SensorConfig{ID: "mystery", Type: "flux", Min: 0, Max: 1}

	// WHEN
	_, err := FromConfig(config, "", nil, properties.NewRegistry(), nil, nil)

	// THEN
	assert.Error(t, err)
}
