package provider

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// Factory builds a provider handle on first use. Registered only for
// providers that have a credential configured; an unregistered name resolves
// to absent, which the pipeline treats as "skip", not as a failed attempt.
type Factory func(ctx context.Context) (Provider, error)

// Registry lazily instantiates and memoizes one handle per provider name.
// It is constructed once at startup and passed by reference to the dispatch
// pipeline; there is no package-level state.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	handles   map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		handles:   make(map[string]Provider),
	}
}

func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Resolve returns the memoized handle for name, constructing it on first
// call. It reports false when no credential is configured for the name or
// its construction failed; both mean the fallback loop moves on.
func (r *Registry) Resolve(ctx context.Context, name string) (Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.handles[name]; ok {
		return p, true
	}

	factory, ok := r.factories[name]
	if !ok {
		return nil, false
	}

	p, err := factory(ctx)
	if err != nil {
		slog.Error("failed to construct provider", "provider", name, "error", err)
		return nil, false
	}

	r.handles[name] = p
	return p, true
}

// Names lists the registered provider names, sorted for stable output.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
