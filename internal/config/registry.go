package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/talandis/cadenza/pkg/live"
	"github.com/talandis/cadenza/pkg/synth"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	synthesis map[string]func(ProviderEntry) (synth.Provider, error)
	liveDial  map[string]func(ProviderEntry) (live.Dialer, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		synthesis: make(map[string]func(ProviderEntry) (synth.Provider, error)),
		liveDial:  make(map[string]func(ProviderEntry) (live.Dialer, error)),
	}
}

// RegisterSynthesis registers a synthesis provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSynthesis(name string, factory func(ProviderEntry) (synth.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synthesis[name] = factory
}

// RegisterLive registers a live session dialer factory under name.
func (r *Registry) RegisterLive(name string, factory func(ProviderEntry) (live.Dialer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.liveDial[name] = factory
}

// CreateSynthesis instantiates a synthesis provider using the factory
// registered under entry.Name. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateSynthesis(entry ProviderEntry) (synth.Provider, error) {
	r.mu.RLock()
	factory, ok := r.synthesis[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: synthesis/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateLive instantiates a live session dialer using the factory registered
// under entry.Name.
func (r *Registry) CreateLive(entry ProviderEntry) (live.Dialer, error) {
	r.mu.RLock()
	factory, ok := r.liveDial[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: live/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
