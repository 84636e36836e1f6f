package events

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/markusressel/sensormon/internal/properties"
	"github.com/markusressel/sensormon/internal/reactor"
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

func onReactor(rtr *reactor.Reactor, fn func()) {
	done := make(chan struct{})
	rtr.Post(func() {
		fn()
		close(done)
	})
	<-done
}

func writeFault(t *testing.T, path string, asserted bool) {
	content := "0\n"
	if asserted {
		content = "1\n"
	}
	assert.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func functionalValue(t *testing.T, registry *properties.Registry, name string) bool {
	prop, ok := registry.Get("events." + name + ".Functional")
	assert.True(t, ok)
	value, ok := prop.Value().(bool)
	assert.True(t, ok)
	return value
}

func TestCombinedEventAssertsOnAnyFault(t *testing.T) {
	// GIVEN: two fault sources in one group, both clear
	dir := t.TempDir()
	a := filepath.Join(dir, "power1_alarm")
	b := filepath.Join(dir, "power2_alarm")
	writeFault(t, a, false)
	writeFault(t, b, false)

	rtr := startReactor(t)
	registry := properties.NewRegistry()
	event := NewCombinedEvent("psu0_failure", map[string][]string{
		"power_alarm": {a, b},
	}, time.Millisecond, registry, rtr)
	event.Start()

	// THEN: functional while everything is clear
	time.Sleep(20 * time.Millisecond)
	assert.True(t, functionalValue(t, registry, "psu0_failure"))

	// WHEN: one source asserts
	writeFault(t, a, true)

	// THEN
	assert.Eventually(t, func() bool {
		return !functionalValue(t, registry, "psu0_failure")
	}, time.Second, time.Millisecond)
}

func TestCombinedEventClearsOnlyWhenAllClear(t *testing.T) {
	// GIVEN: both sources asserted
	dir := t.TempDir()
	a := filepath.Join(dir, "power1_alarm")
	b := filepath.Join(dir, "power2_alarm")
	writeFault(t, a, true)
	writeFault(t, b, true)

	rtr := startReactor(t)
	registry := properties.NewRegistry()
	event := NewCombinedEvent("psu0_failure", map[string][]string{
		"power_alarm": {a, b},
	}, time.Millisecond, registry, rtr)
	event.Start()

	assert.Eventually(t, func() bool {
		return !functionalValue(t, registry, "psu0_failure")
	}, time.Second, time.Millisecond)

	// WHEN: only one source clears
	writeFault(t, a, false)
	time.Sleep(20 * time.Millisecond)

	// THEN: still not functional
	assert.False(t, functionalValue(t, registry, "psu0_failure"))

	// WHEN: the last source clears
	writeFault(t, b, false)

	// THEN
	assert.Eventually(t, func() bool {
		return functionalValue(t, registry, "psu0_failure")
	}, time.Second, time.Millisecond)
}

func TestCombinedEventFunctionalFlipsOnce(t *testing.T) {
	// GIVEN
	dir := t.TempDir()
	a := filepath.Join(dir, "power1_alarm")
	b := filepath.Join(dir, "power2_alarm")
	writeFault(t, a, false)
	writeFault(t, b, false)

	rtr := startReactor(t)
	registry := properties.NewRegistry()
	event := NewCombinedEvent("psu0_failure", map[string][]string{
		"power_alarm": {a},
		"temp_alarm":  {b},
	}, time.Millisecond, registry, rtr)
	event.Start()
	time.Sleep(20 * time.Millisecond)

	prop, _ := registry.Get("events.psu0_failure.Functional")
	writesBefore := prop.Writes()

	// WHEN: faults in both groups assert
	writeFault(t, a, true)
	writeFault(t, b, true)

	assert.Eventually(t, func() bool {
		return !functionalValue(t, registry, "psu0_failure")
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	// THEN: the property changed exactly once
	assert.Equal(t, writesBefore+1, prop.Writes())
}

func TestCombinedEventRetirement(t *testing.T) {
	// GIVEN
	dir := t.TempDir()
	a := filepath.Join(dir, "power1_alarm")
	writeFault(t, a, false)

	rtr := startReactor(t)
	registry := properties.NewRegistry()
	event := NewCombinedEvent("psu0_failure", map[string][]string{
		"power_alarm": {a},
	}, time.Millisecond, registry, rtr)
	event.Start()
	time.Sleep(10 * time.Millisecond)

	// WHEN
	onReactor(rtr, event.RequestDelete)

	// THEN: the event drains and can be released
	assert.Eventually(t, func() bool {
		var quiescent bool
		onReactor(rtr, func() { quiescent = event.DeleteQuiescent() })
		return quiescent
	}, time.Second, time.Millisecond)

	// AND: closing removes the property
	event.Close()
	_, ok := registry.Get("events.psu0_failure.Functional")
	assert.False(t, ok)
}

func TestCombinedEventSourceRemoved(t *testing.T) {
	// GIVEN: an asserted source that disappears
	dir := t.TempDir()
	a := filepath.Join(dir, "power1_alarm")
	writeFault(t, a, true)

	rtr := startReactor(t)
	registry := properties.NewRegistry()
	event := NewCombinedEvent("psu0_failure", map[string][]string{
		"power_alarm": {a},
	}, time.Millisecond, registry, rtr)
	event.Start()

	assert.Eventually(t, func() bool {
		return !functionalValue(t, registry, "psu0_failure")
	}, time.Second, time.Millisecond)

	// WHEN
	assert.NoError(t, os.Remove(a))
	time.Sleep(50 * time.Millisecond)

	// THEN: polling stopped, the last known state is retained
	assert.False(t, functionalValue(t, registry, "psu0_failure"))
}
