package events

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/markusressel/sensormon/internal/properties"
	"github.com/markusressel/sensormon/internal/reactor"
	"github.com/markusressel/sensormon/internal/sensors"
	"github.com/markusressel/sensormon/internal/ui"
)

// CombinedEvent aggregates boolean fault sources into a single Functional
// property. Sources are organized in named groups; each source polls its
// own fault file. The combined event is non-functional while at least one
// source in any group asserts, and flips back only when the last one
// clears.
//
// All mutating methods run on the reactor goroutine.
type CombinedEvent struct {
	Name string

	registry       *properties.Registry
	rtr            *reactor.Reactor
	functionalProp *properties.Property
	propName       string

	// asserted fault source paths, per group
	asserted map[string]map[string]struct{}
	subs     []*SubEvent

	functional atomic.Bool

	deleteRequested bool
}

// NewCombinedEvent registers the event's Functional property and creates
// one polling sub-event per fault source. Groups map a group name to the
// files it watches.
func NewCombinedEvent(
	name string,
	groups map[string][]string,
	interval time.Duration,
	registry *properties.Registry,
	rtr *reactor.Reactor,
) *CombinedEvent {
	e := &CombinedEvent{
		Name:     name,
		registry: registry,
		rtr:      rtr,
		propName: "events." + name + ".Functional",
		asserted: map[string]map[string]struct{}{},
	}
	e.functionalProp = registry.Register(e.propName, true, nil)
	e.functional.Store(true)

	for groupName, paths := range groups {
		e.asserted[groupName] = map[string]struct{}{}
		for _, path := range paths {
			sub := newSubEvent(e, groupName, path, sensors.NewSysfsReader(path), interval, rtr)
			e.subs = append(e.subs, sub)
		}
	}
	return e
}

// Start begins polling all fault sources.
func (e *CombinedEvent) Start() {
	for _, sub := range e.subs {
		sub.start()
	}
}

func (e *CombinedEvent) totalAsserted() int {
	total := 0
	for _, group := range e.asserted {
		total += len(group)
	}
	return total
}

func (e *CombinedEvent) assert(groupName string, path string) {
	group := e.asserted[groupName]
	if _, ok := group[path]; ok {
		return
	}
	before := e.totalAsserted()
	group[path] = struct{}{}

	ui.Warning("Event %s: %s asserted (%s)", e.Name, groupName, path)
	if before == 0 {
		e.functional.Store(false)
		e.functionalProp.Set(false)
	}
}

func (e *CombinedEvent) deassert(groupName string, path string) {
	group := e.asserted[groupName]
	if _, ok := group[path]; !ok {
		return
	}
	delete(group, path)

	ui.Info("Event %s: %s cleared (%s)", e.Name, groupName, path)
	if e.totalAsserted() == 0 {
		e.functional.Store(true)
		e.functionalProp.Set(true)
	}
}

// Functional reports the combined state. Safe from any goroutine.
func (e *CombinedEvent) Functional() bool {
	return e.functional.Load()
}

// RequestDelete retires the event and all of its fault sources.
func (e *CombinedEvent) RequestDelete() {
	e.deleteRequested = true
	for _, sub := range e.subs {
		sub.requestDelete()
	}
}

// DeleteQuiescent reports whether all fault sources have drained.
func (e *CombinedEvent) DeleteQuiescent() bool {
	for _, sub := range e.subs {
		if !sub.deleteQuiescent() {
			return false
		}
	}
	return true
}

// Close unregisters the event's property.
func (e *CombinedEvent) Close() {
	e.registry.Unregister(e.propName)
}

// SubEvent polls one fault file. Any non-zero reading asserts the fault,
// zero clears it. Follows the same read/timer discipline as a sensor
// poll cycle.
type SubEvent struct {
	parent    *CombinedEvent
	groupName string
	path      string
	read      sensors.ReadFunc
	interval  time.Duration
	rtr       *reactor.Reactor

	pendingRead  bool
	pendingTimer *reactor.Timer
	stopped      bool
	retired      bool
	quiescent    bool
	currentOp    uint64
}

func newSubEvent(
	parent *CombinedEvent,
	groupName string,
	path string,
	read sensors.ReadFunc,
	interval time.Duration,
	rtr *reactor.Reactor,
) *SubEvent {
	return &SubEvent{
		parent:    parent,
		groupName: groupName,
		path:      path,
		read:      read,
		interval:  interval,
		rtr:       rtr,
	}
}

func (s *SubEvent) start() {
	s.rtr.Post(s.setupRead)
}

func (s *SubEvent) setupRead() {
	if s.retired || s.stopped {
		return
	}
	s.currentOp++
	op := s.currentOp
	s.pendingRead = true

	go func() {
		value, err := s.read()
		s.rtr.Post(func() {
			s.handleResponse(op, value, err)
		})
	}()
}

func (s *SubEvent) handleResponse(op uint64, value float64, err error) {
	if op != s.currentOp {
		return
	}
	s.pendingRead = false

	if s.retired {
		s.maybeQuiesce()
		return
	}

	switch {
	case errors.Is(err, sensors.ErrSourceRemoved):
		ui.Error("Event %s: %v, polling aborted", s.parent.Name, err)
		s.stopped = true
		return
	case err != nil:
		// transient, keep the last known assertion state
	case value != 0:
		s.parent.assert(s.groupName, s.path)
	default:
		s.parent.deassert(s.groupName, s.path)
	}

	s.pendingTimer = s.rtr.PostDelayed(s.interval, func() {
		s.pendingTimer = nil
		s.setupRead()
	})
}

func (s *SubEvent) requestDelete() {
	s.retired = true
	if s.pendingTimer != nil {
		s.pendingTimer.Cancel()
		s.pendingTimer = nil
	}
	s.maybeQuiesce()
}

func (s *SubEvent) maybeQuiesce() {
	if !s.pendingRead {
		s.quiescent = true
	}
}

func (s *SubEvent) deleteQuiescent() bool {
	return s.quiescent
}
