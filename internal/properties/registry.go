package properties

import (
	"math"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Setter is invoked when a property is written from outside the engine.
// Returning an error rejects the write; the stored value stays unchanged.
type Setter func(request interface{}) error

// Listener is invoked after a property value changed.
type Listener func(value interface{})

// Property is a single named value exposed to external subscribers,
// optionally writable through its Setter.
type Property struct {
	Name string

	mu        sync.Mutex
	value     interface{}
	setter    Setter
	listeners []Listener
	writes    uint64
}

// Registry holds all properties a daemon instance exposes.
type Registry struct {
	props cmap.ConcurrentMap[string, *Property]
}

func NewRegistry() *Registry {
	return &Registry{
		props: cmap.New[*Property](),
	}
}

// Register creates a property with the given initial value. A nil setter
// makes the property read-only for external writers.
func (r *Registry) Register(name string, initial interface{}, setter Setter) *Property {
	p := &Property{
		Name:   name,
		value:  initial,
		setter: setter,
	}
	r.props.Set(name, p)
	return p
}

// Unregister removes the property with the given name.
func (r *Registry) Unregister(name string) {
	r.props.Remove(name)
}

func (r *Registry) Get(name string) (*Property, bool) {
	return r.props.Get(name)
}

// Names returns the names of all registered properties.
func (r *Registry) Names() []string {
	return r.props.Keys()
}

// Subscribe attaches a listener to the named property.
// Returns false if no such property exists.
func (r *Registry) Subscribe(name string, listener Listener) bool {
	p, ok := r.props.Get(name)
	if !ok {
		return false
	}
	p.AddListener(listener)
	return true
}

func (p *Property) AddListener(listener Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, listener)
}

func (p *Property) Value() interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Writes returns how many times the stored value actually changed.
func (p *Property) Writes() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

// Set stores a new value from inside the engine and notifies listeners
// if the value changed. NaN is never considered equal to anything, so
// NaN transitions are always delivered.
func (p *Property) Set(value interface{}) {
	p.mu.Lock()
	if sameValue(p.value, value) {
		p.mu.Unlock()
		return
	}
	p.value = value
	p.writes++
	listeners := make([]Listener, len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	for _, listener := range listeners {
		listener(value)
	}
}

// ExternalSet routes a write from an external collaborator through the
// property's setter.
func (p *Property) ExternalSet(request interface{}) error {
	p.mu.Lock()
	setter := p.setter
	p.mu.Unlock()

	if setter == nil {
		return ErrReadOnly
	}
	return setter(request)
}

func sameValue(a, b interface{}) bool {
	af, aIsFloat := a.(float64)
	bf, bIsFloat := b.(float64)
	if aIsFloat && bIsFloat {
		if math.IsNaN(af) || math.IsNaN(bf) {
			return false
		}
		return af == bf
	}
	return a == b
}
