package quote

import (
	"sync"

	"quotebridge/internal/types"
)

// Registry maps exchange ids to venue adapters. It is built explicitly at
// process start by static Register calls and passed by reference to the
// components that need it.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its name, replacing any previous one.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	r.adapters[a.Name()] = a
	r.mu.Unlock()
}

// Resolve returns the adapter for an exchange id.
func (r *Registry) Resolve(exchange string) (Adapter, error) {
	r.mu.RLock()
	a, ok := r.adapters[exchange]
	r.mu.RUnlock()
	if !ok {
		return nil, types.Errorf(types.ErrKindCapability, "no adapter registered for exchange %q", exchange)
	}
	return a, nil
}
