package power

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/markusressel/sensormon/internal/properties"
)

// State selects when a sensor reading is meaningful.
type State int

const (
	// Always reads regardless of host power state
	Always State = iota
	// On reads only while host power is good
	On
	// BiosPost reads only after BIOS POST completed (implies power good)
	BiosPost
)

func (s State) String() string {
	switch s {
	case On:
		return "on"
	case BiosPost:
		return "biosPost"
	default:
		return "always"
	}
}

// Property names published by the external host-state collaborator.
const (
	PropertyPowerOn  = "host.PowerOn"
	PropertyBiosPost = "host.BiosPost"
)

// Gate caches the host power/POST state. Until Bind has attached it to
// the property registry, gated modes fail closed and report not-good.
type Gate struct {
	bound    atomic.Bool
	powerOn  atomic.Bool
	biosPost atomic.Bool
}

func NewGate() *Gate {
	return &Gate{}
}

// Bind subscribes the gate to the host power properties and performs a
// one-time synchronous query of their current values.
func (g *Gate) Bind(registry *properties.Registry) bool {
	powerProp, powerOk := registry.Get(PropertyPowerOn)
	postProp, postOk := registry.Get(PropertyBiosPost)
	if !powerOk || !postOk {
		return false
	}

	registry.Subscribe(PropertyPowerOn, func(value interface{}) {
		if on, ok := value.(bool); ok {
			g.powerOn.Store(on)
		}
	})
	registry.Subscribe(PropertyBiosPost, func(value interface{}) {
		if post, ok := value.(bool); ok {
			g.biosPost.Store(post)
		}
	})

	// best-effort initial query, overwritten by the first notification
	if on, ok := powerProp.Value().(bool); ok {
		g.powerOn.Store(on)
	}
	if post, ok := postProp.Value().(bool); ok {
		g.biosPost.Store(post)
	}

	g.bound.Store(true)
	return true
}

func (g *Gate) IsPowerOn() bool {
	return g.bound.Load() && g.powerOn.Load()
}

func (g *Gate) HasBiosPost() bool {
	return g.bound.Load() && g.biosPost.Load()
}

// ReadingStateGood reports whether a reading taken in the given state
// would be meaningful right now.
func (g *Gate) ReadingStateGood(state State) bool {
	switch state {
	case On:
		return g.IsPowerOn()
	case BiosPost:
		return g.IsPowerOn() && g.HasBiosPost()
	default:
		return true
	}
}

// RegisterHostProperties creates the externally writable host power
// properties on the given registry and returns them.
func RegisterHostProperties(registry *properties.Registry) (*properties.Property, *properties.Property) {
	var powerProp *properties.Property
	var postProp *properties.Property
	powerProp = registry.Register(PropertyPowerOn, false, func(request interface{}) error {
		on, ok := request.(bool)
		if !ok {
			return ErrInvalidState
		}
		powerProp.Set(on)
		return nil
	})
	postProp = registry.Register(PropertyBiosPost, false, func(request interface{}) error {
		post, ok := request.(bool)
		if !ok {
			return ErrInvalidState
		}
		postProp.Set(post)
		return nil
	})
	return powerProp, postProp
}

// ParseState converts the configuration spelling of a power-gating mode.
func ParseState(raw string) (State, error) {
	switch {
	case raw == "" || strings.EqualFold(raw, "always"):
		return Always, nil
	case strings.EqualFold(raw, "on") || strings.EqualFold(raw, "powerOn"):
		return On, nil
	case strings.EqualFold(raw, "biosPost") || strings.EqualFold(raw, "post"):
		return BiosPost, nil
	}
	return Always, fmt.Errorf("unknown power state: %q", raw)
}
