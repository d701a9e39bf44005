package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

// Built-in strategy kinds.
const (
	KindFixed    = "fixed"
	KindAdaptive = "adaptive"
	KindSpread   = "spread"
	KindTiered   = "tiered"
	KindMomentum = "momentum"
)

// Factory builds a fresh strategy instance from per-pool parameters.
type Factory func(params map[string]float64) (domain.Strategy, error)

// Registry maps strategy kinds to factories. It is safe for concurrent use.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// DefaultRegistry returns a registry with every built-in kind registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for kind, factory := range map[string]Factory{
		KindFixed:    NewFixed,
		KindAdaptive: NewAdaptive,
		KindSpread:   NewSpread,
		KindTiered:   NewTiered,
		KindMomentum: NewMomentum,
	} {
		r.factories[kind] = factory
	}
	return r
}

// Register adds a factory under the given kind. Registering a kind twice is
// an error so built-ins cannot be silently shadowed.
func (r *Registry) Register(kind string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[kind]; ok {
		return fmt.Errorf("strategy: register %q: %w", kind, domain.ErrAlreadyExists)
	}
	r.factories[kind] = factory
	return nil
}

// Create builds a new instance of the given kind.
func (r *Registry) Create(kind string, params map[string]float64) (domain.Strategy, error) {
	r.mu.RLock()
	factory, ok := r.factories[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("strategy: create %q: %w", kind, domain.ErrNotFound)
	}
	return factory(params)
}

// List returns the registered kinds in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
