// plugin.go: Plugin lifecycle state machine and dependency graph
//
// A Plugin owns its half of the bidirectional dependency graph: the
// dependencies map (destination keyword -> resolved plugin) and the
// dependents set (plugins that were loaded with this plugin's instance
// bound into their arguments). Load and Unload keep the two sides
// consistent across every transition, including partial failures.
//
// The engine is single-threaded-consistent: lifecycle calls are sequences
// of synchronous steps with no internal locking. Concurrent lifecycle
// calls on plugins sharing an edge require external mutual exclusion.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package golifecycle

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/agilira/go-timecache"
	"github.com/google/uuid"
)

// LoadFunc is the unit of work performing a plugin's activation. It
// receives the positional and keyword arguments of the load call, with
// resolved requirement instances injected under their destination keys.
//
// A unit that loads other plugins must do so with the provided context;
// that is how the engine attributes nested loads for dynamic requirement
// discovery.
type LoadFunc func(ctx context.Context, args Args, kwargs KwArgs) (any, error)

// UnloadFunc is the unit of work performing a plugin's deactivation. It
// receives the instance produced by the last successful load.
type UnloadFunc func(ctx context.Context, instance any) error

// Resolver resolves a plugin name to a concrete plugin. A Registry is the
// usual implementation.
type Resolver interface {
	Resolve(name string) (*Plugin, error)
}

// PluginConfig describes a plugin at construction time.
type PluginConfig struct {
	// Name uniquely identifies the plugin within a registry. Required.
	Name string

	// Load is the activation unit. Required.
	Load LoadFunc

	// Unload is the deactivation unit. Optional; when nil, unloading only
	// clears the engine's state.
	Unload UnloadFunc

	// Requirements are the statically declared dependencies, resolved in
	// declaration order at load time.
	Requirements []Requirement

	// BindSelf prepends the plugin itself to the positional arguments
	// passed into the load unit. The recorded load arguments never
	// include the bound receiver.
	BindSelf bool

	// Type optionally declares the result type produced by the load
	// unit. When nil and type inference is enabled, the type is recorded
	// from the first successful load.
	Type reflect.Type

	// Resolver resolves named requirements. Defaults to Registry when a
	// registry is given.
	Resolver Resolver

	// Registry, when set, registers the plugin on construction using the
	// settings' default registration mode.
	Registry *Registry

	// Logger receives structured lifecycle logs. Defaults to a silent
	// logger. A logger attached to the call context with
	// ContextWithLogger takes precedence for that call.
	Logger Logger

	// Settings provides the engine settings consulted on each lifecycle
	// call. Defaults to the GO_LIFECYCLE_* environment with engine
	// defaults.
	Settings SettingsSource
}

// Plugin is a named, stateful, lifecycle-managed unit of work.
//
// A plugin is constructed once and persists for the process lifetime (or
// until explicitly unregistered); its state, edges and instance mutate
// across many load/unload cycles.
type Plugin struct {
	name       string
	loadFunc   LoadFunc
	unloadFunc UnloadFunc
	bindSelf   bool

	logger   Logger
	settings SettingsSource
	resolver Resolver

	locked    bool
	loading   bool
	unloading bool

	state      LoadState
	instance   any
	lastArgs   Args
	lastKwArgs KwArgs

	resultType reflect.Type

	requirements []Requirement

	// lastFrame is the discovery frame of the most recent unit invocation,
	// consumed by dynamic requirement adoption right after commit.
	lastFrame *loadFrame

	// dependencies maps destination keywords to resolved plugins;
	// depOrder preserves resolution order for deterministic traversal.
	dependencies map[string]*Plugin
	depOrder     []string

	// dependents holds back-references from plugins that depend on this
	// one, keyed by name, with insertion order preserved.
	dependents     map[string]*Plugin
	dependentOrder []string

	stats PluginStats
}

// NewPlugin constructs a plugin from its configuration, optionally
// registering it.
func NewPlugin(config PluginConfig) (*Plugin, error) {
	if config.Name == "" {
		return nil, NewInvalidPluginError("plugin name is required")
	}
	if config.Load == nil {
		return nil, NewInvalidPluginError("load unit is required")
	}

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

	resolver := config.Resolver
	if resolver == nil && config.Registry != nil {
		resolver = config.Registry
	}

	p := &Plugin{
		name:         config.Name,
		loadFunc:     config.Load,
		unloadFunc:   config.Unload,
		bindSelf:     config.BindSelf,
		logger:       logger,
		settings:     settings,
		resolver:     resolver,
		resultType:   config.Type,
		dependencies: make(map[string]*Plugin),
		dependents:   make(map[string]*Plugin),
	}

	for _, req := range config.Requirements {
		if err := p.AddRequirement(req, ConflictError); err != nil {
			return nil, err
		}
	}

	if config.Registry != nil {
		mode := settings.Current().RegisterMode
		if err := config.Registry.Register(p, mode); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Name returns the plugin's unique name.
func (p *Plugin) Name() string { return p.name }

// State returns the plugin's current lifecycle state.
func (p *Plugin) State() LoadState { return p.state }

// IsLoaded reports whether the plugin currently holds an instance.
func (p *Plugin) IsLoaded() bool { return p.state == StateLoaded }

// Instance returns the value produced by the last successful load, or nil
// when unloaded.
func (p *Plugin) Instance() any { return p.instance }

// ResultType returns the declared or inferred result type, or nil when
// unknown.
func (p *Plugin) ResultType() reflect.Type { return p.resultType }

// LastLoadArgs returns the positional arguments of the most recent
// successful load.
func (p *Plugin) LastLoadArgs() Args { return slices.Clone(p.lastArgs) }

// LastLoadKwArgs returns the keyword arguments of the most recent
// successful load, including injected dependency instances.
func (p *Plugin) LastLoadKwArgs() KwArgs { return p.lastKwArgs.clone() }

// Stats returns the plugin's lifecycle counters.
func (p *Plugin) Stats() PluginStats { return p.stats }

// Requirements returns the declared requirements in declaration order.
func (p *Plugin) Requirements() []Requirement { return slices.Clone(p.requirements) }

// Dependencies returns the resolved dependency edges keyed by destination.
func (p *Plugin) Dependencies() map[string]*Plugin {
	out := make(map[string]*Plugin, len(p.dependencies))
	for dest, dep := range p.dependencies {
		out[dest] = dep
	}
	return out
}

// Dependents returns the plugins that currently depend on this one, in
// the order the back-edges were recorded.
func (p *Plugin) Dependents() []*Plugin {
	out := make([]*Plugin, 0, len(p.dependentOrder))
	for _, name := range p.dependentOrder {
		out = append(out, p.dependents[name])
	}
	return out
}

// Lock prevents the plugin from being loaded or unloaded.
func (p *Plugin) Lock() { p.locked = true }

// Unlock allows the plugin to be loaded or unloaded again.
func (p *Plugin) Unlock() { p.locked = false }

// IsLocked reports whether the plugin is locked.
func (p *Plugin) IsLocked() bool { return p.locked }

// Copy returns an unloaded, unregistered copy of the plugin sharing its
// units, requirements and configuration. An empty dest keeps the name.
func (p *Plugin) Copy(dest string) *Plugin {
	if dest == "" {
		dest = p.name
	}
	return &Plugin{
		name:         dest,
		loadFunc:     p.loadFunc,
		unloadFunc:   p.unloadFunc,
		bindSelf:     p.bindSelf,
		logger:       p.logger,
		settings:     p.settings,
		resolver:     p.resolver,
		locked:       p.locked,
		resultType:   p.resultType,
		requirements: slices.Clone(p.requirements),
		dependencies: make(map[string]*Plugin),
		dependents:   make(map[string]*Plugin),
	}
}

// AddRequirement declares an additional requirement. The strategy settles
// a destination collision with an existing requirement: replace,
// keep_existing, or error (the default for the empty strategy).
// Requirements cannot be added to a loaded plugin.
func (p *Plugin) AddRequirement(req Requirement, strategy ConflictStrategy) error {
	if p.state == StateLoaded {
		return NewRequirementOnLoadedError(p.name)
	}
	if req.Dest() == "" {
		return NewInvalidPluginError("requirement has an empty destination")
	}
	for i, existing := range p.requirements {
		if existing.Dest() != req.Dest() {
			continue
		}
		if existing == req {
			return nil
		}
		switch strategy {
		case ConflictReplace:
			p.requirements[i] = req
			return nil
		case ConflictKeepExisting:
			return nil
		default:
			return NewRequirementConflictError(p.name, req.Dest())
		}
	}
	p.requirements = append(p.requirements, req)
	return nil
}

// mergeSharedRequirements prepends group-shared requirements that the
// plugin does not already declare, so they resolve first but lose
// destination collisions. Loaded plugins keep their existing wiring.
func (p *Plugin) mergeSharedRequirements(shared []Requirement) {
	if p.state == StateLoaded {
		return
	}
	var missing []Requirement
	for _, req := range shared {
		found := false
		for _, existing := range p.requirements {
			if existing.Dest() == req.Dest() {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, req)
		}
	}
	if len(missing) == 0 {
		return
	}
	p.requirements = append(missing, p.requirements...)
}

// LoadOptions parameterizes a load request. The zero value loads with no
// arguments, the replace strategy, and dependent reload propagation on.
type LoadOptions struct {
	Args   Args
	KwArgs KwArgs

	// OnConflict settles a load request against an already loaded
	// plugin. Defaults to ConflictReplace.
	OnConflict ConflictStrategy

	// NoPropagate suppresses the dependent reload cascade after a
	// successful load.
	NoPropagate bool
}

// UnloadOptions parameterizes an unload request. The zero value ignores
// an unload of an already unloaded plugin.
type UnloadOptions struct {
	// OnConflict settles an unload request against an already unloaded
	// plugin: ignore (default) or error.
	OnConflict ConflictStrategy
}

// Load activates the plugin with the given arguments using default
// options: replace on conflict, propagate dependent reloads.
func (p *Plugin) Load(ctx context.Context, args Args, kwargs KwArgs) (any, error) {
	return p.LoadWithOptions(ctx, LoadOptions{Args: args, KwArgs: kwargs})
}

// LoadWithOptions activates the plugin:
//
//  1. Resolve declared requirements not satisfied by explicit keyword
//     arguments, recording dependency and dependent edges.
//  2. Load unloaded dependencies recursively and inject their instances
//     into the keyword arguments.
//  3. Settle a conflict when already loaded (see ResolveLoadConflict).
//  4. Invoke the load unit.
//  5. Commit: record state, instance, and the load arguments; check the
//     result type contract when enforcement is on.
//  6. Adopt plugins the unit loaded as dynamic requirements.
//  7. Reload already-loaded dependents so they observe the new instance.
//
// Edges recorded in steps 1-2 survive a failure in later steps: they
// reflect structural requirements, not instance results.
func (p *Plugin) LoadWithOptions(ctx context.Context, opts LoadOptions) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.OnConflict == "" {
		opts.OnConflict = ConflictReplace
	}

	if p.locked {
		return nil, NewPluginLockedError(p.name)
	}

	// Re-entering a plugin whose unit is currently executing would recurse
	// forever; the revisit is a no-op returning the current (possibly nil)
	// instance.
	if p.loading {
		p.operationLogger(ctx).Debug("load re-entered while unit executing; returning current instance",
			"plugin", p.name)
		return p.instance, nil
	}

	ctx, opID := ensureOperationID(ctx)
	log := p.operationLogger(ctx).With("plugin", p.name, "op_id", opID)

	kwargs := opts.KwArgs.clone()

	if err := p.populateDependencies(kwargs, nil); err != nil {
		return nil, err
	}

	// Snapshot before any replace-unload: these are the dependents whose
	// bindings must be refreshed in step 7.
	loadedDependents := p.loadedDependents()

	if err := p.loadDependencies(ctx, kwargs); err != nil {
		return nil, err
	}

	settings := p.settings.Current()

	argsMatch := p.state == StateLoaded &&
		argsEqual(p.lastArgs, opts.Args) &&
		kwargsEqual(p.lastKwArgs, kwargs)

	action := ResolveLoadConflict(p.state, argsMatch, opts.OnConflict)
	switch action {
	case ActionNoop:
		log.Debug("load settled as no-op",
			"strategy", string(opts.OnConflict), "args_match", argsMatch)
		p.recordInFrame(ctx)
		return p.instance, nil
	case ActionError:
		return nil, NewLoadConflictError(p.name,
			fmt.Sprintf("%v %v", p.lastArgs, p.lastKwArgs),
			fmt.Sprintf("%v %v", opts.Args, kwargs))
	case ActionUnloadThenLoad:
		if _, err := p.unload(ctx, UnloadOptions{}, true); err != nil {
			return nil, err
		}
	}

	instance, err := p.invokeLoadUnit(ctx, opts.Args, kwargs)
	if err != nil {
		p.stats.LoadFailures++
		log.Error("load unit failed", "error", err)
		return nil, NewLoadUnitError(p.name, err)
	}

	// Type contract runs after the unit: a mismatch fails the load, but
	// the unit's side effects are not rolled back.
	if err := p.checkResultType(instance, settings); err != nil {
		p.stats.LoadFailures++
		return nil, err
	}

	p.state = StateLoaded
	p.instance = instance
	p.lastArgs = slices.Clone(opts.Args)
	p.lastKwArgs = kwargs
	p.stats.Loads++
	p.stats.LastLoadedAt = timecache.CachedTime()
	log.Info("plugin loaded", "strategy", string(opts.OnConflict))

	p.recordInFrame(ctx)

	if settings.DynamicRequirements {
		p.adoptDynamicRequirements(p.lastFrame)
	}
	p.lastFrame = nil

	if !opts.NoPropagate {
		if err := p.reloadDependents(ctx, loadedDependents); err != nil {
			return nil, err
		}
	}

	return p.instance, nil
}

// Unload deactivates the plugin with default options: unloading an
// unloaded plugin is ignored.
func (p *Plugin) Unload(ctx context.Context) (any, error) {
	return p.UnloadWithOptions(ctx, UnloadOptions{})
}

// UnloadWithOptions deactivates the plugin. Loaded dependents are
// unloaded first, depth-first, so no loaded plugin ever references a
// torn-down instance. Dependency edges are cleared afterwards; declared
// requirements are permanent metadata and survive. The instance that was
// torn down is returned.
func (p *Plugin) UnloadWithOptions(ctx context.Context, opts UnloadOptions) (any, error) {
	return p.unload(ctx, opts, false)
}

// unload implements both the public unload and the internal replace
// unload. forReload skips the dependent cascade and keeps the graph edges
// intact: the plugin is about to reload with its already-resolved edges,
// and its dependents are refreshed afterwards by the caller.
func (p *Plugin) unload(ctx context.Context, opts UnloadOptions, forReload bool) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.OnConflict == "" {
		opts.OnConflict = ConflictIgnore
	}

	if p.locked {
		return nil, NewPluginLockedError(p.name)
	}
	if p.loading || p.unloading {
		p.operationLogger(ctx).Debug("unload re-entered while unit executing; ignoring", "plugin", p.name)
		return nil, nil
	}

	switch ResolveUnloadConflict(p.state, opts.OnConflict) {
	case ActionNoop:
		return nil, nil
	case ActionError:
		return nil, NewUnloadConflictError(p.name)
	}

	ctx, opID := ensureOperationID(ctx)
	log := p.operationLogger(ctx).With("plugin", p.name, "op_id", opID)

	if !forReload {
		for _, dependent := range p.loadedDependents() {
			if _, err := dependent.unload(ctx, UnloadOptions{}, false); err != nil {
				return nil, err
			}
		}
	}

	if p.unloadFunc != nil {
		p.unloading = true
		err := p.unloadFunc(suppressLoadFrame(ctx), p.instance)
		p.unloading = false
		if err != nil {
			p.stats.UnloadFailures++
			log.Error("unload unit failed", "error", err)
			return nil, NewUnloadUnitError(p.name, err)
		}
	}

	old := p.instance
	p.state = StateUnloaded
	p.instance = nil
	p.lastArgs = nil
	p.lastKwArgs = nil
	p.stats.Unloads++
	p.stats.LastUnloadedAt = timecache.CachedTime()

	if !forReload {
		for _, dest := range p.depOrder {
			p.dependencies[dest].removeDependent(p)
		}
		p.dependencies = make(map[string]*Plugin)
		p.depOrder = nil
	}

	log.Info("plugin unloaded", "for_reload", forReload)
	return old, nil
}

// populateDependencies resolves declared requirements into dependency
// edges, recursively, detecting structural cycles along the resolution
// chain. Destinations already satisfied by explicit keyword arguments are
// skipped; the first requirement wins on a duplicate destination.
func (p *Plugin) populateDependencies(kwargs KwArgs, seen []*Plugin) error {
	for _, q := range seen {
		if q == p {
			chain := make([]string, 0, len(seen)+1)
			for _, s := range seen {
				chain = append(chain, s.name)
			}
			return NewDependencyCycleError(append(chain, p.name))
		}
	}

	for _, req := range p.requirements {
		dest := req.Dest()
		if kwargs != nil {
			if _, ok := kwargs[dest]; ok {
				continue
			}
		}

		dep, name := req.Source()
		if dep == nil {
			resolved, err := p.resolve(name)
			if err != nil {
				return err
			}
			dep = resolved
		}

		if err := dep.populateDependencies(nil, append(seen, p)); err != nil {
			return err
		}

		if _, exists := p.dependencies[dest]; !exists {
			p.dependencies[dest] = dep
			p.depOrder = append(p.depOrder, dest)
		}
		dep.addDependent(p)
	}
	return nil
}

// loadDependencies loads unloaded dependencies and injects every
// dependency instance into the keyword arguments, except destinations the
// caller supplied explicitly. Already-loaded dependencies are reused.
func (p *Plugin) loadDependencies(ctx context.Context, kwargs KwArgs) error {
	for _, dest := range p.depOrder {
		dep := p.dependencies[dest]
		if _, ok := kwargs[dest]; ok {
			continue
		}
		if !dep.IsLoaded() {
			opts := LoadOptions{OnConflict: ConflictKeepExisting}
			if _, err := dep.LoadWithOptions(suppressLoadFrame(ctx), opts); err != nil {
				return err
			}
		}
		kwargs[dest] = dep.instance
	}
	return nil
}

// invokeLoadUnit runs the load unit under a fresh discovery frame,
// keeping the frame for dynamic requirement adoption after commit.
func (p *Plugin) invokeLoadUnit(ctx context.Context, args Args, kwargs KwArgs) (any, error) {
	frameCtx, frame := pushLoadFrame(ctx, p)
	callArgs := args
	if p.bindSelf {
		callArgs = append(Args{p}, args...)
	}
	p.loading = true
	instance, err := p.loadFunc(frameCtx, callArgs, kwargs)
	p.loading = false
	p.lastFrame = frame
	return instance, err
}

// recordInFrame attributes this load to the unit that performed it, if
// any, so the owner can adopt it as a dynamic requirement.
func (p *Plugin) recordInFrame(ctx context.Context) {
	if frame := activeLoadFrame(ctx); frame != nil && frame.owner != p {
		frame.record(p)
	}
}

// adoptDynamicRequirements turns plugins loaded by this plugin's unit
// into requirements, exactly as if they had been declared statically.
// They did not receive this plugin's instance on the pass that discovered
// them; subsequent loads inject them like any other dependency.
func (p *Plugin) adoptDynamicRequirements(frame *loadFrame) {
	if frame == nil {
		return
	}
	for _, dep := range frame.loaded {
		if dep == p {
			continue
		}
		dest := dep.name
		if _, exists := p.dependencies[dest]; exists {
			continue
		}
		already := false
		for _, existing := range p.dependencies {
			if existing == dep {
				already = true
				break
			}
		}
		if already {
			continue
		}
		p.requirements = append(p.requirements, Require(dep, dest))
		p.dependencies[dest] = dep
		p.depOrder = append(p.depOrder, dest)
		dep.addDependent(p)
		p.logger.Debug("adopted dynamic requirement",
			"plugin", p.name, "requirement", dep.name)
	}
}

// reloadDependents refreshes the given dependents, depth-first, so their
// bindings reflect this plugin's new instance. A per-wave visited set
// keeps the cascade from re-entering a plugin already refreshed in the
// same wave. A failed reload aborts the remaining cascade and surfaces,
// leaving later dependents stale.
func (p *Plugin) reloadDependents(ctx context.Context, dependents []*Plugin) error {
	if len(dependents) == 0 {
		return nil
	}
	ctx, wave := ensureWave(ctx)
	wave.visit(p)
	for _, dependent := range dependents {
		if wave.seen(dependent) || !dependent.IsLoaded() {
			continue
		}
		wave.visit(dependent)
		if err := dependent.reloadFor(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// reloadFor re-invokes this plugin's load with its previous arguments,
// rebinding every destination that maps to dep to dep's fresh instance.
func (p *Plugin) reloadFor(ctx context.Context, dep *Plugin) error {
	kwargs := p.lastKwArgs.clone()
	found := false
	for dest, q := range p.dependencies {
		if q == dep {
			kwargs[dest] = dep.instance
			found = true
		}
	}
	if !found {
		return NewInconsistentDependencyError(p.name, dep.name)
	}
	opts := LoadOptions{
		Args:       p.lastArgs,
		KwArgs:     kwargs,
		OnConflict: ConflictForce,
	}
	_, err := p.LoadWithOptions(suppressLoadFrame(ctx), opts)
	return err
}

// checkResultType enforces or infers the plugin's result type.
func (p *Plugin) checkResultType(instance any, settings Settings) error {
	actual := reflect.TypeOf(instance)
	if p.resultType == nil {
		if settings.InferType && actual != nil {
			p.resultType = actual
		}
		return nil
	}
	if !settings.EnforceType {
		return nil
	}
	if actual == nil || !(actual == p.resultType || actual.AssignableTo(p.resultType)) {
		actualName := "<nil>"
		if actual != nil {
			actualName = actual.String()
		}
		return NewTypeMismatchError(p.name, p.resultType.String(), actualName)
	}
	return nil
}

// operationLogger prefers a logger carried on the context over the
// plugin's own, so a caller can route one lifecycle call's logs, cascade
// included, to a sink of its choice.
func (p *Plugin) operationLogger(ctx context.Context) Logger {
	if logger, ok := contextLogger(ctx); ok {
		return logger
	}
	return p.logger
}

// resolve turns a requirement name into a plugin through the configured
// resolver.
func (p *Plugin) resolve(name string) (*Plugin, error) {
	if p.resolver == nil {
		return nil, NewResolutionError(name, nil).
			WithContext("reason", "no resolver configured").
			WithContext("dependent", p.name)
	}
	dep, err := p.resolver.Resolve(name)
	if err != nil {
		return nil, err
	}
	return dep, nil
}

// loadedDependents returns the dependents currently loaded, in recorded
// order.
func (p *Plugin) loadedDependents() []*Plugin {
	var out []*Plugin
	for _, name := range p.dependentOrder {
		if dependent := p.dependents[name]; dependent.IsLoaded() {
			out = append(out, dependent)
		}
	}
	return out
}

func (p *Plugin) addDependent(dependent *Plugin) {
	if _, ok := p.dependents[dependent.name]; ok {
		return
	}
	p.dependents[dependent.name] = dependent
	p.dependentOrder = append(p.dependentOrder, dependent.name)
}

func (p *Plugin) removeDependent(dependent *Plugin) {
	if _, ok := p.dependents[dependent.name]; !ok {
		return
	}
	delete(p.dependents, dependent.name)
	p.dependentOrder = slices.DeleteFunc(p.dependentOrder, func(name string) bool {
		return name == dependent.name
	})
}

type operationContextKey struct{}

// ensureOperationID attaches a correlation id to the context of a
// top-level lifecycle call so every log line of the resulting cascade can
// be tied together.
func ensureOperationID(ctx context.Context) (context.Context, string) {
	if id, ok := ctx.Value(operationContextKey{}).(string); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return context.WithValue(ctx, operationContextKey{}, id), id
}
