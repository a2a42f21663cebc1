// registry_test.go: registration modes, lookup fallback and unregistration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package golifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBarePlugin(t *testing.T, name string) *Plugin {
	t.Helper()
	p, err := NewPlugin(PluginConfig{
		Name:     name,
		Load:     func(ctx context.Context, args Args, kwargs KwArgs) (any, error) { return name, nil },
		Settings: Static(DefaultSettings()),
	})
	require.NoError(t, err)
	return p
}

func TestRegisterEagerRejectsDuplicates(t *testing.T) {
	registry := newTestRegistry(t)
	first := newBarePlugin(t, "svc")
	second := newBarePlugin(t, "svc")

	require.NoError(t, registry.Register(first, RegisterEager))

	err := registry.Register(second, RegisterEager)
	require.Error(t, err)
	assert.Equal(t, ErrCodeDuplicateName, CodeOf(err))

	// Re-registering the same plugin is a no-op.
	require.NoError(t, registry.Register(first, RegisterEager))
	assert.Equal(t, 1, registry.Len())
}

func TestRegisterReplaceDisplaces(t *testing.T) {
	registry := newTestRegistry(t)
	first := newBarePlugin(t, "svc")
	second := newBarePlugin(t, "svc")

	require.NoError(t, registry.Register(first, RegisterEager))
	require.NoError(t, registry.Register(second, RegisterReplace))

	got, ok := registry.Get("svc")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, registry.Len())
}

func TestRegisterRefusesDisplacingLoadedPlugin(t *testing.T) {
	registry := newTestRegistry(t)
	first := newBarePlugin(t, "svc")
	second := newBarePlugin(t, "svc")

	require.NoError(t, registry.Register(first, RegisterEager))
	_, err := first.Load(context.Background(), nil, nil)
	require.NoError(t, err)

	err = registry.Register(second, RegisterReplace)
	require.Error(t, err)
	assert.Equal(t, ErrCodeRegisterConflict, CodeOf(err))

	got, _ := registry.Get("svc")
	assert.Same(t, first, got)
}

func TestTransientRegistrationIsDisplaceable(t *testing.T) {
	registry := newTestRegistry(t)
	placeholder := newBarePlugin(t, "svc")
	real := newBarePlugin(t, "svc")

	require.NoError(t, registry.Register(placeholder, RegisterTransient))

	// An eager registration displaces a transient entry silently.
	require.NoError(t, registry.Register(real, RegisterEager))

	got, _ := registry.Get("svc")
	assert.Same(t, real, got)

	// The displacing registration was eager, so it is protected again.
	err := registry.Register(newBarePlugin(t, "svc"), RegisterEager)
	require.Error(t, err)
	assert.Equal(t, ErrCodeDuplicateName, CodeOf(err))
}

func TestRegisterUnknownMode(t *testing.T) {
	registry := newTestRegistry(t)
	err := registry.Register(newBarePlugin(t, "svc"), RegistrationMode("lazy"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeRegisterConflict, CodeOf(err))
}

func TestUnregister(t *testing.T) {
	registry := newTestRegistry(t)
	p := newBarePlugin(t, "svc")
	require.NoError(t, registry.Register(p, RegisterEager))

	require.NoError(t, registry.Unregister("svc", ""))
	_, ok := registry.Get("svc")
	assert.False(t, ok)

	// Missing name: ignored by default, error on request.
	require.NoError(t, registry.Unregister("svc", ConflictIgnore))
	err := registry.Unregister("svc", ConflictError)
	require.Error(t, err)
	assert.Equal(t, ErrCodePluginNotFound, CodeOf(err))
}

func TestUnregisterRefusesLoadedPlugin(t *testing.T) {
	registry := newTestRegistry(t)
	p := newBarePlugin(t, "svc")
	require.NoError(t, registry.Register(p, RegisterEager))
	_, err := p.Load(context.Background(), nil, nil)
	require.NoError(t, err)

	err = registry.Unregister("svc", "")
	require.Error(t, err)
	assert.Equal(t, ErrCodeRegisterConflict, CodeOf(err))
}

type stubFallback struct {
	built map[string]*Plugin
}

func (f *stubFallback) Discover(name string) (*Plugin, error) {
	p, ok := f.built[name]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func TestLookupFallbackRegistersTransiently(t *testing.T) {
	discovered := newBarePlugin(t, "late")
	registry, err := NewRegistry(RegistryConfig{
		Settings: Static(DefaultSettings()),
		Fallback: &stubFallback{built: map[string]*Plugin{"late": discovered}},
	})
	require.NoError(t, err)

	got, err := registry.Lookup("late")
	require.NoError(t, err)
	assert.Same(t, discovered, got)
	assert.Equal(t, 1, registry.Len())

	// The fallback registration is transient: an explicit registration
	// displaces it.
	explicit := newBarePlugin(t, "late")
	require.NoError(t, registry.Register(explicit, RegisterEager))
	got, _ = registry.Get("late")
	assert.Same(t, explicit, got)
}

func TestLookupFallbackMiss(t *testing.T) {
	registry, err := NewRegistry(RegistryConfig{
		Settings: Static(DefaultSettings()),
		Fallback: &stubFallback{built: map[string]*Plugin{}},
	})
	require.NoError(t, err)

	_, err = registry.Lookup("ghost")
	require.Error(t, err)
	assert.Equal(t, ErrCodePluginNotFound, CodeOf(err))
}

func TestLookupFallbackDisabledBySettings(t *testing.T) {
	settings := DefaultSettings()
	settings.LookupFallback = false

	discovered := newBarePlugin(t, "late")
	registry, err := NewRegistry(RegistryConfig{
		Settings: Static(settings),
		Fallback: &stubFallback{built: map[string]*Plugin{"late": discovered}},
	})
	require.NoError(t, err)

	_, err = registry.Lookup("late")
	require.Error(t, err)
	assert.Equal(t, ErrCodePluginNotFound, CodeOf(err))
}

func TestNamesPreserveRegistrationOrder(t *testing.T) {
	registry := newTestRegistry(t)
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, registry.Register(newBarePlugin(t, name), RegisterEager))
	}
	assert.Equal(t, []string{"c", "a", "b"}, registry.Names())

	plugins := registry.Plugins()
	require.Len(t, plugins, 3)
	assert.Equal(t, "c", plugins[0].Name())
}

func TestNewPluginAutoRegisters(t *testing.T) {
	registry := newTestRegistry(t)
	p, err := NewPlugin(PluginConfig{
		Name:     "auto",
		Load:     func(ctx context.Context, args Args, kwargs KwArgs) (any, error) { return 1, nil },
		Registry: registry,
		Settings: Static(DefaultSettings()),
	})
	require.NoError(t, err)

	got, ok := registry.Get("auto")
	require.True(t, ok)
	assert.Same(t, p, got)

	// The registry doubles as the resolver for named requirements.
	resolved, err := registry.Resolve("auto")
	require.NoError(t, err)
	assert.Same(t, p, resolved)
}
