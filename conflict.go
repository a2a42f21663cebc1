// conflict.go: Pure conflict resolution for lifecycle requests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package golifecycle

// ResolveLoadConflict maps the plugin's current state, whether the
// requested arguments match the previous load, and the requested strategy
// to the action the engine takes.
//
// Decision table:
//
//	state     | args match | strategy                    | action
//	----------+------------+-----------------------------+-----------------
//	unloaded  | -          | any                         | load
//	loaded    | true       | keep_existing/replace/error | noop
//	loaded    | true       | force                       | unload_then_load
//	loaded    | false      | keep_existing               | noop
//	loaded    | false      | replace/force               | unload_then_load
//	loaded    | false      | error                       | error
//
// An idempotent request (matching arguments) wins over the error strategy:
// reloading with the same arguments is a no-op, never a conflict.
func ResolveLoadConflict(state LoadState, argsMatch bool, strategy ConflictStrategy) Action {
	if state == StateUnloaded {
		return ActionLoad
	}
	if argsMatch {
		if strategy == ConflictForce {
			return ActionUnloadThenLoad
		}
		return ActionNoop
	}
	switch strategy {
	case ConflictKeepExisting:
		return ActionNoop
	case ConflictReplace, ConflictForce:
		return ActionUnloadThenLoad
	default:
		return ActionError
	}
}

// ResolveUnloadConflict maps the plugin's current state and the requested
// strategy to the action the engine takes for an unload request.
func ResolveUnloadConflict(state LoadState, strategy ConflictStrategy) Action {
	if state == StateLoaded {
		return ActionUnload
	}
	if strategy == ConflictError {
		return ActionError
	}
	return ActionNoop
}
