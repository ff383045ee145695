package circuitbreaker

import (
	"sync"
)

// Registry hands out exactly one breaker per dependency name.
type Registry struct {
	mutex    sync.RWMutex
	breakers map[string]*CircuitBreaker
	settings Settings
}

// NewRegistry creates a registry whose breakers share settings; the Name
// field is replaced with the dependency name on creation.
func NewRegistry(settings Settings) *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		settings: settings,
	}
}

func (r *Registry) Get(name string) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[name]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[name]; exists {
		return cb
	}

	settings := r.settings
	settings.Name = name
	cb = NewCircuitBreaker(settings)
	r.breakers[name] = cb
	return cb
}

// Reset returns every breaker to CLOSED. Existing references stay valid.
func (r *Registry) Reset() {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, cb := range r.breakers {
		cb.Reset()
	}
}

func (r *Registry) Stats() map[string]State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]State, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = cb.State()
	}
	return stats
}
