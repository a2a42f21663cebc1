// types.go: Common data types for the lifecycle engine
//
// This file holds the shared enumerations and small value types used by the
// plugin lifecycle state machine: load states, conflict strategies, conflict
// actions, registration modes and the positional/keyword argument model.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package golifecycle

import (
	"reflect"
	"time"
)

// LoadState represents the lifecycle state of a plugin.
//
// A plugin is either unloaded (no instance, no recorded load arguments) or
// loaded (the last load produced an instance that is still current). There
// are no intermediate public states; a plugin whose load unit is currently
// executing still reports StateUnloaded until the load commits.
type LoadState int

const (
	StateUnloaded LoadState = iota
	StateLoaded
)

// String returns a human-readable representation of the load state.
func (s LoadState) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

// ConflictStrategy governs what happens when a load or unload request
// contradicts the plugin's current state.
//
// Load strategies:
//   - ConflictKeepExisting: keep the current instance, ignore the request
//   - ConflictReplace: unload first, then load with the new arguments
//   - ConflictForce: like replace, but applies even when the requested
//     arguments match the previous load
//   - ConflictError: fail with a load-conflict error
//
// Unload strategies:
//   - ConflictIgnore: unloading an unloaded plugin is a no-op
//   - ConflictError: fail with an unload-conflict error
type ConflictStrategy string

const (
	ConflictKeepExisting ConflictStrategy = "keep_existing"
	ConflictReplace      ConflictStrategy = "replace"
	ConflictForce        ConflictStrategy = "force"
	ConflictError        ConflictStrategy = "error"
	ConflictIgnore       ConflictStrategy = "ignore"
)

// Action is the outcome of conflict resolution: the single step the engine
// takes next for the requested operation.
type Action int

const (
	ActionLoad Action = iota
	ActionNoop
	ActionUnloadThenLoad
	ActionUnload
	ActionError
)

// String returns a human-readable representation of the action.
func (a Action) String() string {
	switch a {
	case ActionLoad:
		return "load"
	case ActionNoop:
		return "noop"
	case ActionUnloadThenLoad:
		return "unload_then_load"
	case ActionUnload:
		return "unload"
	default:
		return "error"
	}
}

// RegistrationMode controls how a Registry settles name collisions when a
// plugin is registered.
//
//   - RegisterEager: reject duplicate names
//   - RegisterReplace: displace the existing entry (refused while the
//     existing plugin is loaded)
//   - RegisterTransient: register normally, but mark the entry as
//     displaceable so a later registration under the same name silently
//     replaces it
//   - RegisterReplaceTransient: both tolerances combined
type RegistrationMode string

const (
	RegisterEager            RegistrationMode = "eager"
	RegisterReplace          RegistrationMode = "replace"
	RegisterTransient        RegistrationMode = "transient"
	RegisterReplaceTransient RegistrationMode = "replace+transient"
)

// ValidRegistrationMode reports whether mode is one of the supported
// registration modes.
func ValidRegistrationMode(mode RegistrationMode) bool {
	switch mode {
	case RegisterEager, RegisterReplace, RegisterTransient, RegisterReplaceTransient:
		return true
	}
	return false
}

// Args holds the positional arguments of a load call.
type Args []any

// KwArgs holds the keyword arguments of a load call. Resolved requirement
// instances are injected under their destination keys before the load unit
// runs.
type KwArgs map[string]any

// clone returns a shallow copy so the engine never mutates a caller's map
// when injecting dependency instances.
func (k KwArgs) clone() KwArgs {
	out := make(KwArgs, len(k)+2)
	for key, value := range k {
		out[key] = value
	}
	return out
}

// argsEqual compares two positional argument lists by deep equality.
// Nil and empty are equivalent.
func argsEqual(a, b Args) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// kwargsEqual compares two keyword argument maps by deep equality.
// Nil and empty are equivalent.
func kwargsEqual(a, b KwArgs) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// PluginStats carries per-plugin lifecycle counters and the timestamps of
// the most recent state transitions. Timestamps come from the cached time
// source to keep the load path cheap.
type PluginStats struct {
	Loads          uint64    `json:"loads"`
	Unloads        uint64    `json:"unloads"`
	LoadFailures   uint64    `json:"load_failures"`
	UnloadFailures uint64    `json:"unload_failures"`
	LastLoadedAt   time.Time `json:"last_loaded_at"`
	LastUnloadedAt time.Time `json:"last_unloaded_at"`
}
