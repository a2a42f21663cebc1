// registry.go: Name-to-plugin registry with registration modes
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package golifecycle

import (
	"slices"
	"sync"
)

// FallbackResolver discovers a plugin for a name the registry does not
// know, for example by constructing it from an external catalog. A plugin
// it returns is registered transiently, so a later explicit registration
// under the same name displaces it silently.
type FallbackResolver interface {
	Discover(name string) (*Plugin, error)
}

// RegistryConfig configures a registry.
type RegistryConfig struct {
	// Logger receives structured registry logs. Defaults to a silent
	// logger.
	Logger Logger

	// Settings provides the engine settings consulted on lookups and
	// default-mode registrations. Defaults to the GO_LIFECYCLE_*
	// environment with engine defaults.
	Settings SettingsSource

	// Fallback resolves names that are not registered. Optional; only
	// consulted when the lookup_fallback setting is on.
	Fallback FallbackResolver
}

// Registry maps unique names to plugins and acts as the default Resolver
// for named requirements.
//
// Unlike plugin lifecycle calls, registry operations are safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*Plugin
	order     []string
	transient map[string]bool

	logger   Logger
	settings SettingsSource
	fallback FallbackResolver
}

// NewRegistry constructs an empty registry.
func NewRegistry(config RegistryConfig) (*Registry, error) {
	logger := config.Logger
	if logger == nil {
		logger = DefaultLogger()
	}
	settings := config.Settings
	if settings == nil {
		envSettings, err := SettingsFromEnv()
		if err != nil {
			return nil, err
		}
		settings = Static(envSettings)
	}
	return &Registry{
		entries:   make(map[string]*Plugin),
		transient: make(map[string]bool),
		logger:    logger,
		settings:  settings,
		fallback:  config.Fallback,
	}, nil
}

// Register adds a plugin under its name. The mode settles a collision
// with an existing registration:
//
//   - eager (default): error on a duplicate name, unless the existing
//     registration is transient, which is displaced silently.
//   - replace: displace the existing registration.
//   - transient: like eager, but marks this registration as displaceable
//     by any later registration under the same name.
//   - replace-transient: both behaviors combined.
//
// Displacing a registration whose plugin is currently loaded is refused
// in every mode: unload or unregister it first.
func (r *Registry) Register(p *Plugin, mode RegistrationMode) error {
	if p == nil {
		return NewInvalidPluginError("cannot register a nil plugin")
	}
	if mode == "" {
		mode = r.settings.Current().RegisterMode
	}
	if !ValidRegistrationMode(mode) {
		return NewRegisterConflictError(p.Name(), "unknown registration mode "+string(mode))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(p, mode)
}

func (r *Registry) registerLocked(p *Plugin, mode RegistrationMode) error {
	name := p.Name()

	if existing, ok := r.entries[name]; ok {
		if existing == p {
			return nil
		}
		displaceable := r.transient[name] ||
			mode == RegisterReplace || mode == RegisterReplaceTransient
		if !displaceable {
			return NewDuplicateNameError(name)
		}
		if existing.IsLoaded() {
			return NewRegisterConflictError(name, "existing plugin is loaded")
		}
		r.logger.Debug("displacing registration", "plugin", name)
		r.removeLocked(name)
	}

	r.entries[name] = p
	r.order = append(r.order, name)
	if mode == RegisterTransient || mode == RegisterReplaceTransient {
		r.transient[name] = true
	}
	r.logger.Debug("plugin registered", "plugin", name, "mode", string(mode))
	return nil
}

// Unregister removes the registration under name. The strategy settles a
// missing name: ignore (default) or error. A loaded plugin is refused;
// unload it first. The plugin itself is unaffected beyond losing its
// registry entry.
func (r *Registry) Unregister(name string, strategy ConflictStrategy) error {
	if strategy == "" {
		strategy = ConflictIgnore
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.entries[name]
	if !ok {
		if strategy == ConflictError {
			return NewPluginNotFoundError(name)
		}
		return nil
	}
	if p.IsLoaded() {
		return NewRegisterConflictError(name, "plugin is loaded")
	}
	r.removeLocked(name)
	r.logger.Debug("plugin unregistered", "plugin", name)
	return nil
}

func (r *Registry) removeLocked(name string) {
	delete(r.entries, name)
	delete(r.transient, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
}

// Lookup returns the plugin registered under name. When the name is not
// registered, the lookup_fallback setting is on, and a fallback resolver
// is configured, the fallback is consulted and its result registered
// transiently.
func (r *Registry) Lookup(name string) (*Plugin, error) {
	r.mu.RLock()
	p, ok := r.entries[name]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	if r.fallback == nil || !r.settings.Current().LookupFallback {
		return nil, NewPluginNotFoundError(name)
	}

	discovered, err := r.fallback.Discover(name)
	if err != nil {
		return nil, NewResolutionError(name, err)
	}
	if discovered == nil {
		return nil, NewPluginNotFoundError(name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// A concurrent registration may have won the race.
	if existing, ok := r.entries[name]; ok {
		return existing, nil
	}
	if err := r.registerLocked(discovered, RegisterTransient); err != nil {
		return nil, err
	}
	r.logger.Info("plugin discovered via fallback", "plugin", name)
	return discovered, nil
}

// Resolve implements Resolver.
func (r *Registry) Resolve(name string) (*Plugin, error) {
	return r.Lookup(name)
}

// Get returns the plugin registered under name without consulting the
// fallback.
func (r *Registry) Get(name string) (*Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.entries[name]
	return p, ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Plugins returns the registered plugins in registration order.
func (r *Registry) Plugins() []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Plugin, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
