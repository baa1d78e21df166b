// Package plugin defines the Plugin contract and the registry that
// instantiates, sets up, and tears down configured plugin instances,
// injecting their clients into each flow's Context.
package plugin

import (
	"context"
	"fmt"
	"sync"
)

// Plugin is the contract every reference adapter (cache/redis,
// store/sqlite, broadcast/websocket, auth/jwt) implements (§4.4).
type Plugin interface {
	Name() string
	Setup(ctx context.Context, config map[string]any) error
	Teardown(ctx context.Context) error
	GetClient() any
}

// Factory builds a fresh, un-set-up Plugin instance for a logical key.
type Factory func() Plugin

// key identifies a registered plugin type by its logical name (e.g.
// "cache") and its concrete type discriminator (e.g. "redis").
type key struct {
	logicalKey string
	pluginType string
}

// Registry is the set of available plugin factories plus the live,
// set-up instances created from configuration.
type Registry struct {
	mu        sync.RWMutex
	factories map[key]Factory
	instances map[string]Plugin // logicalKey -> live instance
}

// NewRegistry returns an empty registry ready for factory registration.
func NewRegistry() *Registry {
	return &Registry{
		factories: map[key]Factory{},
		instances: map[string]Plugin{},
	}
}

// Register makes a concrete plugin implementation available under
// (logicalKey, pluginType). Call during program init, before Configure.
func (r *Registry) Register(logicalKey, pluginType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key{logicalKey, pluginType}] = factory
}

// Entry is one configured plugin instantiation request.
type Entry struct {
	LogicalKey string
	Type       string
	Config     map[string]any
}

// Configure instantiates and sets up one plugin per Entry. Any setup
// failure aborts startup with the error surfaced (§4.4 lifecycle step 2).
func (r *Registry) Configure(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		r.mu.RLock()
		factory, ok := r.factories[key{e.LogicalKey, e.Type}]
		r.mu.RUnlock()
		if !ok {
			return fmt.Errorf("plugin: no factory registered for %s/%s", e.LogicalKey, e.Type)
		}
		p := factory()
		if err := p.Setup(ctx, e.Config); err != nil {
			return fmt.Errorf("plugin: setup failed for %s/%s: %w", e.LogicalKey, e.Type, err)
		}
		r.mu.Lock()
		r.instances[e.LogicalKey] = p
		r.mu.Unlock()
	}
	return nil
}

// Inject copies logicalKey -> GetClient() into the supplied map, for the
// executor to attach to a flow's Context.Plugins before walking it.
func (r *Registry) Inject(into map[string]any) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k, p := range r.instances {
		into[k] = p.GetClient()
	}
}

// Snapshot returns a shallow copy of the live, set-up plugin instances
// keyed by logical key, for callers (e.g. the health handler) that need
// to inspect each plugin's concrete client without a dependency on the
// registry's internal locking.
func (r *Registry) Snapshot() map[string]Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Plugin, len(r.instances))
	for k, p := range r.instances {
		out[k] = p
	}
	return out
}

// TeardownAll calls Teardown once per live instance. Errors are
// collected for logging by the caller, never re-thrown (§4.4 step 4).
func (r *Registry) TeardownAll(ctx context.Context) []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for logicalKey, p := range r.instances {
		if err := p.Teardown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("plugin: teardown failed for %s: %w", logicalKey, err))
		}
	}
	r.instances = map[string]Plugin{}
	return errs
}

// NotSetUpError is returned by a plugin's GetClient when called before a
// successful Setup (§4.4: "getClient must throw/fail loudly").
type NotSetUpError struct {
	LogicalKey string
}

func (e *NotSetUpError) Error() string {
	return fmt.Sprintf("plugin %q: getClient called before setup", e.LogicalKey)
}
