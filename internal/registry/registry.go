// Package registry provides a small generic factory registry, the
// compile-time replacement for the reflection-based connector lookup
// in the source system. Each registry-backed connector family (source,
// chunker, embedder, sink) gets its own Registry[T] seeded at init
// time by the connectors that implement it; loaders are chosen by file
// extension instead.
package registry

import (
	"sync"

	"github.com/ragscale/ingestor/internal/model"
)

// Factory constructs a connector instance of type T from a raw
// settings map.
type Factory[T any] func(settings map[string]interface{}) (T, error)

// Registry is a thread-safe name -> Factory map for one connector
// family. The zero value is not usable; construct with New.
type Registry[T any] struct {
	family string

	mu       sync.RWMutex
	factories map[string]Factory[T]
}

// New creates an empty Registry for the named connector family (used
// only in error messages, e.g. "source", "loader", "chunker").
func New[T any](family string) *Registry[T] {
	return &Registry[T]{
		family:    family,
		factories: make(map[string]Factory[T]),
	}
}

// Register adds a named constructor to the registry. Intended to be
// called from package init() functions so that every built-in
// connector is available without further wiring.
func (r *Registry[T]) Register(name string, factory Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create instantiates the named connector. Unknown names fail with
// model.InvalidConnector listing the currently registered names.
func (r *Registry[T]) Create(name string, settings map[string]interface{}) (T, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	available := r.names()
	r.mu.RUnlock()

	if !ok {
		var zero T
		return zero, &model.InvalidConnector{Family: r.family, Name: name, Available: available}
	}
	return factory(settings)
}

// Names returns every registered connector name, for diagnostics.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry[T]) names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
