package arch

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/devs-sim/devs-sim/sim"
)

// AtomicFactory creates an atomic model of a registered kind. rng is private
// to the model and derived from the run seed.
type AtomicFactory func(id string, unit sim.TimeUnit, params Params, rng *rand.Rand) (*sim.Atomic, error)

// Registry maps kind names to atomic factories and converter names to
// event converters.
//
// Thread-safety: safe for concurrent use; registration normally happens in init().
type Registry struct {
	mu         sync.RWMutex
	kinds      map[string]AtomicFactory
	converters map[string]sim.EventConverter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds:      make(map[string]AtomicFactory),
		converters: make(map[string]sim.EventConverter),
	}
}

// Default is the registry populated by model packages via init(), e.g.
// sim/models. Import such a package for its side effect before building.
var Default = NewRegistry()

// RegisterKind adds a factory. Registering the same kind twice panics.
func (r *Registry) RegisterKind(kind string, f AtomicFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.kinds[kind]; dup {
		panic(fmt.Sprintf("arch: atomic kind %q registered twice", kind))
	}
	r.kinds[kind] = f
}

// RegisterConverter adds a named converter. Registering the same name twice panics.
func (r *Registry) RegisterConverter(name string, c sim.EventConverter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.converters[name]; dup {
		panic(fmt.Sprintf("arch: converter %q registered twice", name))
	}
	r.converters[name] = c
}

// Kind returns the factory registered under kind.
func (r *Registry) Kind(kind string) (AtomicFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown atomic kind %q; valid: %v", kind, r.sortedKinds())
	}
	return f, nil
}

// Converter returns the converter registered under name. The empty name is
// the identity converter.
func (r *Registry) Converter(name string) (sim.EventConverter, error) {
	if name == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.converters[name]
	if !ok {
		return nil, fmt.Errorf("unknown converter %q", name)
	}
	return c, nil
}

// Kinds returns the registered kind names, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedKinds()
}

func (r *Registry) sortedKinds() []string {
	out := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Params are the free-form parameters of an atomic descriptor.
type Params map[string]any

// Float returns the numeric parameter name, or def when absent.
func (p Params) Float(name string, def float64) (float64, error) {
	v, ok := p[name]
	if !ok {
		return def, nil
	}
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case float64:
		return x, nil
	}
	return 0, fmt.Errorf("param %q: expected a number, got %T", name, v)
}

// Int returns the integer parameter name, or def when absent.
func (p Params) Int(name string, def int) (int, error) {
	v, ok := p[name]
	if !ok {
		return def, nil
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	}
	return 0, fmt.Errorf("param %q: expected an integer, got %T", name, v)
}

// String returns the string parameter name, or def when absent.
func (p Params) String(name, def string) (string, error) {
	v, ok := p[name]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("param %q: expected a string, got %T", name, v)
	}
	return s, nil
}

// Bool returns the boolean parameter name, or def when absent.
func (p Params) Bool(name string, def bool) (bool, error) {
	v, ok := p[name]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("param %q: expected a boolean, got %T", name, v)
	}
	return b, nil
}
