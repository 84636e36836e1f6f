package power

import (
	"testing"

	"github.com/markusressel/sensormon/internal/properties"
	"github.com/stretchr/testify/assert"
)

func TestUnboundGateFailsClosed(t *testing.T) {
	// GIVEN
	gate := NewGate()

	// THEN
	assert.True(t, gate.ReadingStateGood(Always))
	assert.False(t, gate.ReadingStateGood(On))
	assert.False(t, gate.ReadingStateGood(BiosPost))
}

func TestGateFollowsHostProperties(t *testing.T) {
	// GIVEN
	registry := properties.NewRegistry()
	powerProp, postProp := RegisterHostProperties(registry)
	gate := NewGate()
	assert.True(t, gate.Bind(registry))

	// WHEN power comes up
	powerProp.Set(true)

	// THEN
	assert.True(t, gate.ReadingStateGood(On))
	assert.False(t, gate.ReadingStateGood(BiosPost))

	// WHEN POST completes
	postProp.Set(true)

	// THEN
	assert.True(t, gate.ReadingStateGood(BiosPost))

	// WHEN power drops again
	powerProp.Set(false)

	// THEN
	assert.False(t, gate.ReadingStateGood(On))
	assert.False(t, gate.ReadingStateGood(BiosPost))
}

func TestBindPicksUpCurrentState(t *testing.T) {
	// GIVEN
	registry := properties.NewRegistry()
	powerProp, _ := RegisterHostProperties(registry)
	powerProp.Set(true)

	// WHEN
	gate := NewGate()
	assert.True(t, gate.Bind(registry))

	// THEN
	assert.True(t, gate.ReadingStateGood(On))
}

func TestExternalSetValidatesType(t *testing.T) {
	// GIVEN
	registry := properties.NewRegistry()
	powerProp, _ := RegisterHostProperties(registry)

	// WHEN
	err := powerProp.ExternalSet("on")

	// THEN
	assert.ErrorIs(t, err, ErrInvalidState)
}
