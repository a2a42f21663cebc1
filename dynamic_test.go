// dynamic_test.go: adoption of plugins loaded from within load units
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package golifecycle

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDynamicRequirementAdoption(t *testing.T) {
	registry := newTestRegistry(t)

	childLoads := 0
	child, err := NewPlugin(PluginConfig{
		Name: "child",
		Load: func(ctx context.Context, args Args, kwargs KwArgs) (any, error) {
			childLoads++
			return fmt.Sprintf("child#%d", childLoads), nil
		},
		Registry: registry,
		Settings: Static(DefaultSettings()),
	})
	require.NoError(t, err)

	var parentSaw []any
	parent, err := NewPlugin(PluginConfig{
		Name: "parent",
		Load: func(ctx context.Context, args Args, kwargs KwArgs) (any, error) {
			// Dependencies discovered at runtime are loaded with the
			// unit's context so the engine can attribute them.
			instance, err := child.Load(ctx, nil, nil)
			if err != nil {
				return nil, err
			}
			parentSaw = append(parentSaw, instance)
			return "parent", nil
		},
		Registry: registry,
		Settings: Static(DefaultSettings()),
	})
	require.NoError(t, err)

	_, err = parent.Load(context.Background(), nil, nil)
	require.NoError(t, err)

	// The nested load became a requirement with full edges.
	require.Len(t, parent.Requirements(), 1)
	assert.Equal(t, "child", parent.Requirements()[0].Dest())
	assert.Same(t, child, parent.Dependencies()["child"])
	require.Len(t, child.Dependents(), 1)
	assert.Same(t, parent, child.Dependents()[0])

	// Reloading the child now propagates to the parent like any static
	// dependency.
	_, err = child.LoadWithOptions(context.Background(), LoadOptions{OnConflict: ConflictForce})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), parent.Stats().Loads)
}

func TestDynamicRequirementsDisabled(t *testing.T) {
	settings := DefaultSettings()
	settings.DynamicRequirements = false
	registry, err := NewRegistry(RegistryConfig{Settings: Static(settings)})
	require.NoError(t, err)

	child, err := NewPlugin(PluginConfig{
		Name:     "child",
		Load:     func(ctx context.Context, args Args, kwargs KwArgs) (any, error) { return "c", nil },
		Registry: registry,
		Settings: Static(settings),
	})
	require.NoError(t, err)

	parent, err := NewPlugin(PluginConfig{
		Name: "parent",
		Load: func(ctx context.Context, args Args, kwargs KwArgs) (any, error) {
			if _, err := child.Load(ctx, nil, nil); err != nil {
				return nil, err
			}
			return "p", nil
		},
		Registry: registry,
		Settings: Static(settings),
	})
	require.NoError(t, err)

	_, err = parent.Load(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.True(t, child.IsLoaded())
	assert.Empty(t, parent.Requirements())
	assert.Empty(t, parent.Dependencies())
	assert.Empty(t, child.Dependents())
}

func TestEngineInternalLoadsAreNotAdopted(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := NewPlugin(PluginConfig{
		Name:     "dep",
		Load:     func(ctx context.Context, args Args, kwargs KwArgs) (any, error) { return "d", nil },
		Registry: registry,
		Settings: Static(DefaultSettings()),
	})
	require.NoError(t, err)

	parent, err := NewPlugin(PluginConfig{
		Name:         "parent",
		Requirements: []Requirement{RequireNamed("dep", "")},
		Load: func(ctx context.Context, args Args, kwargs KwArgs) (any, error) {
			return "p", nil
		},
		Registry: registry,
		Settings: Static(DefaultSettings()),
	})
	require.NoError(t, err)

	_, err = parent.Load(context.Background(), nil, nil)
	require.NoError(t, err)

	// The engine's own dependency load did not create a duplicate
	// requirement.
	assert.Len(t, parent.Requirements(), 1)
	assert.Len(t, parent.Dependencies(), 1)
}

func TestDynamicCycleTerminates(t *testing.T) {
	registry := newTestRegistry(t)

	var p1, p2 *Plugin

	p1, err := NewPlugin(PluginConfig{
		Name: "p1",
		Load: func(ctx context.Context, args Args, kwargs KwArgs) (any, error) {
			if _, err := p2.Load(ctx, nil, nil); err != nil {
				return nil, err
			}
			return "p1", nil
		},
		Registry: registry,
		Settings: Static(DefaultSettings()),
	})
	require.NoError(t, err)

	p2, err = NewPlugin(PluginConfig{
		Name: "p2",
		Load: func(ctx context.Context, args Args, kwargs KwArgs) (any, error) {
			// Re-enters p1 while p1's unit is executing: a guarded no-op.
			if _, err := p1.Load(ctx, nil, nil); err != nil {
				return nil, err
			}
			return "p2", nil
		},
		Registry: registry,
		Settings: Static(DefaultSettings()),
	})
	require.NoError(t, err)

	_, err = p1.Load(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, p1.IsLoaded())
	assert.True(t, p2.IsLoaded())
	assert.Same(t, p2, p1.Dependencies()["p2"])

	// Forcing a reload across the now-cyclic graph must terminate: the
	// propagation wave refuses to revisit plugins it already refreshed.
	_, err = p2.LoadWithOptions(context.Background(), LoadOptions{OnConflict: ConflictForce})
	require.NoError(t, err)
	assert.True(t, p1.IsLoaded())
	assert.True(t, p2.IsLoaded())
}
