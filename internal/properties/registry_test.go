package properties

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetNotifiesOnChange(t *testing.T) {
	// GIVEN
	registry := NewRegistry()
	property := registry.Register("Value", 0.0, nil)
	var received []interface{}
	registry.Subscribe("Value", func(value interface{}) {
		received = append(received, value)
	})

	// WHEN
	property.Set(1.0)
	property.Set(1.0)
	property.Set(2.0)

	// THEN
	assert.Equal(t, []interface{}{1.0, 2.0}, received)
	assert.Equal(t, uint64(2), property.Writes())
}

func TestSetAlwaysDeliversNaNTransitions(t *testing.T) {
	// GIVEN
	registry := NewRegistry()
	property := registry.Register("Value", math.NaN(), nil)
	notified := 0
	property.AddListener(func(value interface{}) {
		notified++
	})

	// WHEN
	property.Set(math.NaN())

	// THEN
	assert.Equal(t, 1, notified)
}

func TestExternalSetWithoutSetterIsRejected(t *testing.T) {
	// GIVEN
	registry := NewRegistry()
	property := registry.Register("Unit", "DegreesC", nil)

	// WHEN
	err := property.ExternalSet("Volts")

	// THEN
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.Equal(t, "DegreesC", property.Value())
}

func TestExternalSetRoutesThroughSetter(t *testing.T) {
	// GIVEN
	registry := NewRegistry()
	var requested interface{}
	property := registry.Register("Value", 0.0, func(request interface{}) error {
		requested = request
		return nil
	})

	// WHEN
	err := property.ExternalSet(42.0)

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, 42.0, requested)
	// the setter decides whether the stored value changes
	assert.Equal(t, 0.0, property.Value())
}
