// group.go: Ordered batch lifecycle over a set of plugins
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package golifecycle

import (
	"context"
	"slices"
)

// GroupHook runs around a group batch operation.
type GroupHook func(ctx context.Context) error

// GroupConfig describes a plugin group at construction time.
type GroupConfig struct {
	// Name identifies the group in logs and errors. Required.
	Name string

	// Members are the initial members, loaded in this order and unloaded
	// in reverse.
	Members []*Plugin

	// Requirements are shared across every member: each member that does
	// not already declare the destination receives the requirement.
	// Member-declared requirements win destination collisions.
	Requirements []Requirement

	// Hooks around the batch operations. A failing pre hook aborts the
	// batch before any member is touched; a failing post hook surfaces
	// after the batch completed.
	PreLoad    GroupHook
	PostLoad   GroupHook
	PreUnload  GroupHook
	PostUnload GroupHook

	// Logger receives structured group logs. Defaults to a silent logger.
	Logger Logger
}

// PluginGroup batches lifecycle operations over an ordered set of
// plugins. Group membership is an iteration order, not a graph edge:
// loading or unloading a member individually never cascades through the
// group.
type PluginGroup struct {
	name    string
	members []*Plugin
	shared  []Requirement

	// loaded tracks the last completed batch operation; lastArgs and
	// lastKwArgs are the arguments of the last LoadAll, replayed by
	// SafeAdd when it reloads the grown group.
	loaded     bool
	lastArgs   Args
	lastKwArgs KwArgs

	preLoad    GroupHook
	postLoad   GroupHook
	preUnload  GroupHook
	postUnload GroupHook

	logger Logger
}

// NewPluginGroup constructs a group from its configuration.
func NewPluginGroup(config GroupConfig) (*PluginGroup, error) {
	if config.Name == "" {
		return nil, NewInvalidPluginError("group name is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = DefaultLogger()
	}
	g := &PluginGroup{
		name:       config.Name,
		shared:     slices.Clone(config.Requirements),
		preLoad:    config.PreLoad,
		postLoad:   config.PostLoad,
		preUnload:  config.PreUnload,
		postUnload: config.PostUnload,
		logger:     logger,
	}
	for _, p := range config.Members {
		if err := g.Add(p); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Name returns the group's name.
func (g *PluginGroup) Name() string { return g.name }

// IsLoaded reports whether the last completed batch operation left the
// group loaded.
func (g *PluginGroup) IsLoaded() bool { return g.loaded }

// Members returns the members in iteration order.
func (g *PluginGroup) Members() []*Plugin { return slices.Clone(g.members) }

// Instances returns the current instance of every member, in member
// order; unloaded members contribute nil.
func (g *PluginGroup) Instances() []any {
	out := make([]any, 0, len(g.members))
	for _, p := range g.members {
		out = append(out, p.Instance())
	}
	return out
}

// Add appends a plugin to the group.
func (g *PluginGroup) Add(p *Plugin) error {
	return g.Insert(len(g.members), p)
}

// Insert places a plugin at the given position in the iteration order.
func (g *PluginGroup) Insert(index int, p *Plugin) error {
	if p == nil {
		return NewInvalidPluginError("cannot add a nil plugin to group " + g.name)
	}
	if index < 0 || index > len(g.members) {
		return NewInvalidPluginError("group insert index out of range")
	}
	for _, member := range g.members {
		if member.Name() == p.Name() {
			return NewDuplicateNameError(p.Name())
		}
	}
	g.members = slices.Insert(g.members, index, p)
	return nil
}

// SafeAdd appends a plugin while preserving the group's load state: a
// loaded group is unloaded first, grown, and reloaded with the arguments
// of its last LoadAll, so the new member comes up wired like the rest.
// On an unloaded group it is a plain Add. A failed insert leaves a
// previously loaded group unloaded.
func (g *PluginGroup) SafeAdd(ctx context.Context, p *Plugin) error {
	wasLoaded := g.loaded
	if wasLoaded {
		if err := g.UnloadAll(ctx); err != nil {
			return err
		}
	}
	if err := g.Add(p); err != nil {
		return err
	}
	if !wasLoaded {
		return nil
	}
	_, err := g.LoadAll(ctx, g.lastArgs, g.lastKwArgs)
	return err
}

// Remove drops the named member from the group. The plugin itself is
// unaffected.
func (g *PluginGroup) Remove(name string) error {
	for i, member := range g.members {
		if member.Name() == name {
			g.members = slices.Delete(g.members, i, i+1)
			return nil
		}
	}
	return NewPluginNotFoundError(name)
}

// LoadAll loads every member in order with the given arguments, keeping
// already-loaded members as they are, and returns their instances in
// member order. Shared requirements are merged into each unloaded member
// first. A member failure aborts the batch; members already loaded stay
// loaded.
func (g *PluginGroup) LoadAll(ctx context.Context, args Args, kwargs KwArgs) ([]any, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := g.runHook(ctx, "pre_load", g.preLoad); err != nil {
		return nil, err
	}

	for _, member := range g.members {
		member.mergeSharedRequirements(g.shared)
	}

	instances := make([]any, 0, len(g.members))
	for _, member := range g.members {
		opts := LoadOptions{Args: args, KwArgs: kwargs, OnConflict: ConflictKeepExisting}
		instance, err := member.LoadWithOptions(ctx, opts)
		if err != nil {
			return nil, NewGroupLoadError(g.name, member.Name(), err)
		}
		instances = append(instances, instance)
	}
	g.loaded = true
	g.lastArgs = slices.Clone(args)
	g.lastKwArgs = kwargs.clone()
	g.logger.Info("group loaded", "group", g.name, "members", len(g.members))

	if err := g.runHook(ctx, "post_load", g.postLoad); err != nil {
		return instances, err
	}
	return instances, nil
}

// UnloadAll unloads every member in reverse order, ignoring members that
// are already unloaded. A member failure aborts the batch; members
// already unloaded stay unloaded.
func (g *PluginGroup) UnloadAll(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := g.runHook(ctx, "pre_unload", g.preUnload); err != nil {
		return err
	}

	for i := len(g.members) - 1; i >= 0; i-- {
		member := g.members[i]
		if _, err := member.Unload(ctx); err != nil {
			return NewGroupUnloadError(g.name, member.Name(), err)
		}
	}
	g.loaded = false
	g.logger.Info("group unloaded", "group", g.name, "members", len(g.members))

	return g.runHook(ctx, "post_unload", g.postUnload)
}

func (g *PluginGroup) runHook(ctx context.Context, name string, hook GroupHook) error {
	if hook == nil {
		return nil
	}
	if err := hook(ctx); err != nil {
		return NewGroupHookError(g.name, name, err)
	}
	return nil
}
