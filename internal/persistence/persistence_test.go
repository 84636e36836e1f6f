package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestPersistence(t *testing.T) Persistence {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "sensormon.db")
	p := NewPersistence(dbPath)
	assert.NoError(t, p.Init())
	return p
}

func TestSaveAndLoadThresholdOverride(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)

	// WHEN
	err := p.SaveThresholdOverride("CPU1_Temp", "CriticalHigh", 95.0)
	assert.NoError(t, err)
	err = p.SaveThresholdOverride("CPU1_Temp", "WarningHigh", 85.0)
	assert.NoError(t, err)

	overrides, err := p.LoadThresholdOverrides("CPU1_Temp")

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, map[string]float64{
		"CriticalHigh": 95.0,
		"WarningHigh":  85.0,
	}, overrides)
}

func TestLoadUnknownSensorReturnsError(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)

	// WHEN
	_, err := p.LoadThresholdOverrides("does_not_exist")

	// THEN
	assert.Error(t, err)
}

func TestDeleteThresholdOverrides(t *testing.T) {
	// GIVEN
	p := newTestPersistence(t)
	assert.NoError(t, p.SaveThresholdOverride("PSU1_Voltage", "CriticalLow", 10.8))

	// WHEN
	err := p.DeleteThresholdOverrides("PSU1_Voltage")

	// THEN
	assert.NoError(t, err)
	_, err = p.LoadThresholdOverrides("PSU1_Voltage")
	assert.Error(t, err)

	// deleting again must be harmless
	assert.NoError(t, p.DeleteThresholdOverrides("PSU1_Voltage"))
}
