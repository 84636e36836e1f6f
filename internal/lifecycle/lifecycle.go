package lifecycle

import (
	"time"

	"github.com/markusressel/sensormon/internal/reactor"
	"github.com/markusressel/sensormon/internal/ui"
)

// Retirable is one unit of a generation that must wind down outstanding
// work before its resources may be released.
type Retirable interface {
	// RequestDelete stops new work. Reactor goroutine only.
	RequestDelete()
	// DeleteQuiescent reports whether all outstanding work has drained.
	// Monotonic. Reactor goroutine only.
	DeleteQuiescent() bool
}

// Closer is implemented by retirables holding releasable resources.
type Closer interface {
	Close()
}

// Config tunes the manager.
type Config struct {
	// RebuildDebounce coalesces bursts of reconfiguration triggers
	RebuildDebounce time.Duration
	// SweepInterval is how often retired generations are checked for
	// quiescence
	SweepInterval time.Duration
}

// Manager swaps whole generations of retirables atomically. A rebuild
// retires the active generation into a holding list and installs a
// freshly built one; retired units are closed only once every unit of
// every retired generation reports quiescence. Until then external
// writes may still land on them without harm.
type Manager struct {
	rtr    *reactor.Reactor
	config Config

	// build constructs and starts the next generation
	build func() []Retirable

	// reactor goroutine only
	active       []Retirable
	trash        []Retirable
	rebuildTimer *reactor.Timer
	sweepTimer   *reactor.Timer
}

func NewManager(rtr *reactor.Reactor, config Config, build func() []Retirable) *Manager {
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Second
	}
	return &Manager{
		rtr:    rtr,
		config: config,
		build:  build,
	}
}

// InstallInitial builds and installs the first generation without
// debounce. Safe to call from any goroutine.
func (m *Manager) InstallInitial() {
	m.rtr.Post(func() {
		m.active = m.build()
	})
}

// RequestRebuild schedules a debounced rebuild. Triggers arriving while
// the debounce timer runs re-arm it, so a burst of configuration changes
// produces a single rebuild. Safe to call from any goroutine.
func (m *Manager) RequestRebuild() {
	m.rtr.Post(func() {
		if m.rebuildTimer != nil {
			m.rebuildTimer.Cancel()
		}
		m.rebuildTimer = m.rtr.PostDelayed(m.config.RebuildDebounce, func() {
			m.rebuildTimer = nil
			m.performRebuild()
		})
	})
}

func (m *Manager) performRebuild() {
	ui.Info("Rebuilding sensor generation (%d retired, %d in trash)", len(m.active), len(m.trash))

	for _, r := range m.active {
		r.RequestDelete()
	}
	m.trash = append(m.trash, m.active...)
	m.active = m.build()

	m.armSweep()
	// some units may already be idle
	m.sweep()
}

func (m *Manager) armSweep() {
	if m.sweepTimer != nil || len(m.trash) == 0 {
		return
	}
	m.sweepTimer = m.rtr.PostDelayed(m.config.SweepInterval, func() {
		m.sweepTimer = nil
		m.sweep()
		m.armSweep()
	})
}

// sweep releases the trash only when every retired unit is quiescent.
// Freeing a subset is not safe: retired units may still reference each
// other until the whole generation has drained.
func (m *Manager) sweep() {
	if len(m.trash) == 0 {
		return
	}
	for _, r := range m.trash {
		if !r.DeleteQuiescent() {
			return
		}
	}

	ui.Debug("Retired generation quiescent, releasing %d units", len(m.trash))
	for _, r := range m.trash {
		if closer, ok := r.(Closer); ok {
			closer.Close()
		}
	}
	m.trash = nil
}

// RetireAll retires the active generation without building a new one.
// Used on daemon shutdown. Safe to call from any goroutine.
func (m *Manager) RetireAll() {
	m.rtr.Post(func() {
		for _, r := range m.active {
			r.RequestDelete()
		}
		m.trash = append(m.trash, m.active...)
		m.active = nil
		m.armSweep()
		m.sweep()
	})
}

// Active returns the currently installed generation. Reactor goroutine
// only.
func (m *Manager) Active() []Retirable {
	return m.active
}

// TrashSize returns the number of retired, not yet released units.
// Reactor goroutine only.
func (m *Manager) TrashSize() int {
	return len(m.trash)
}
