// Package source defines the uniform capability contract each audio backend
// implements, plus the backend implementations themselves. Sources compose the
// process supervisor, the service supervisor, and the event feed client as
// each backend requires.
package source

import (
	"context"
	"fmt"
	"sync"

	"git.home.luguber.info/inful/audiohub/internal/foundation"
	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
)

// Source is the capability set the coordinator drives. Start and Stop are
// idempotent: invoking either when already in the target condition returns
// success without side effects.
type Source interface {
	// Name returns the source name used as its state tag and event key.
	Name() string

	// Start activates the backend. Params carry backend-specific settings
	// (e.g. a stream URL for the radio source).
	Start(ctx context.Context, params map[string]any) error

	// Stop deactivates the backend. Stopping a source that owns an event
	// feed must not return before the feed has terminated.
	Stop(ctx context.Context) error

	// Status returns a diagnostic snapshot of the backend.
	Status() map[string]any
}

// Registry resolves state tags to source instances. It is populated once at
// startup; the coordinator never inspects concrete types at runtime.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds a source to the registry.
func (r *Registry) Register(s Source) foundation.Result[struct{}, error] {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if name == "" {
		return foundation.Err[struct{}, error](
			ferrors.ValidationError("source name cannot be empty").Build(),
		)
	}
	if _, exists := r.sources[name]; exists {
		return foundation.Err[struct{}, error](
			ferrors.ValidationError(fmt.Sprintf("source %s already registered", name)).Build(),
		)
	}

	r.sources[name] = s
	return foundation.Ok[struct{}, error](struct{}{})
}

// Get looks up a source by name.
func (r *Registry) Get(name string) foundation.Option[Source] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.sources[name]; ok {
		return foundation.Some(s)
	}
	return foundation.None[Source]()
}

// Names returns all registered source names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	return names
}
