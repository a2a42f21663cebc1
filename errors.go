// errors.go: structured error definitions for the lifecycle engine
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package golifecycle

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/agilira/go-errors"
)

// Error codes for the lifecycle engine
const (
	// Lifecycle errors (1000-1099)
	ErrCodeLoadConflict           = "LIFECYCLE_1001"
	ErrCodeUnloadConflict         = "LIFECYCLE_1002"
	ErrCodeDependencyCycle        = "LIFECYCLE_1003"
	ErrCodeTypeMismatch           = "LIFECYCLE_1004"
	ErrCodeUnitFailure            = "LIFECYCLE_1005"
	ErrCodePluginLocked           = "LIFECYCLE_1006"
	ErrCodeRequirementConflict    = "LIFECYCLE_1007"
	ErrCodeInvalidPlugin          = "LIFECYCLE_1008"
	ErrCodeInconsistentDependency = "LIFECYCLE_1009"

	// Registry errors (1100-1199)
	ErrCodePluginNotFound   = "REGISTRY_1101"
	ErrCodeDuplicateName    = "REGISTRY_1102"
	ErrCodeRegisterConflict = "REGISTRY_1103"
	ErrCodeResolutionFailed = "REGISTRY_1104"

	// Group errors (1200-1299)
	ErrCodeGroupLoadFailed   = "GROUP_1201"
	ErrCodeGroupUnloadFailed = "GROUP_1202"
	ErrCodeGroupHookFailed   = "GROUP_1203"

	// Settings errors (1300-1399)
	ErrCodeInvalidSetting  = "SETTINGS_1301"
	ErrCodeSettingsFile    = "SETTINGS_1302"
	ErrCodeSettingsWatcher = "SETTINGS_1303"
)

// Lifecycle error constructors

func NewLoadConflictError(name string, oldArgs, newArgs string) *errors.Error {
	return errors.New(ErrCodeLoadConflict, "Load conflict").
		WithUserMessage("Plugin is already loaded with conflicting arguments").
		WithContext("plugin_name", name).
		WithContext("old_args", oldArgs).
		WithContext("new_args", newArgs).
		WithSeverity("error")
}

func NewUnloadConflictError(name string) *errors.Error {
	return errors.New(ErrCodeUnloadConflict, "Unload conflict").
		WithUserMessage("Plugin is not loaded").
		WithContext("plugin_name", name).
		WithSeverity("warning")
}

func NewDependencyCycleError(chain []string) *errors.Error {
	return errors.New(ErrCodeDependencyCycle, "Dependency cycle detected").
		WithUserMessage("Plugin requirements form a cycle").
		WithContext("cycle", strings.Join(chain, " -> ")).
		WithSeverity("error")
}

func NewGraphValidationError(cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeDependencyCycle, "Dependency graph validation failed").
		WithUserMessage("The registered plugins do not form an acyclic dependency graph").
		WithSeverity("error")
}

func NewTypeMismatchError(name, expected, actual string) *errors.Error {
	return errors.New(ErrCodeTypeMismatch, "Mismatched result type").
		WithUserMessage("The load unit returned an instance of an unexpected type").
		WithContext("plugin_name", name).
		WithContext("expected_type", expected).
		WithContext("actual_type", actual).
		WithSeverity("error")
}

func NewLoadUnitError(name string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeUnitFailure, "Load unit failed").
		WithUserMessage("The plugin's load unit returned an error").
		WithContext("plugin_name", name).
		WithContext("phase", "load").
		WithSeverity("error")
}

func NewUnloadUnitError(name string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeUnitFailure, "Unload unit failed").
		WithUserMessage("The plugin's unload unit returned an error").
		WithContext("plugin_name", name).
		WithContext("phase", "unload").
		WithSeverity("error")
}

func NewPluginLockedError(name string) *errors.Error {
	return errors.New(ErrCodePluginLocked, "Plugin locked").
		WithUserMessage("The plugin is locked and cannot be loaded or unloaded").
		WithContext("plugin_name", name).
		WithSeverity("warning")
}

func NewRequirementConflictError(name, dest string) *errors.Error {
	return errors.New(ErrCodeRequirementConflict, "Requirement conflict").
		WithUserMessage("A requirement with the same destination is already declared").
		WithContext("plugin_name", name).
		WithContext("dest", dest).
		WithSeverity("error")
}

func NewRequirementOnLoadedError(name string) *errors.Error {
	return errors.New(ErrCodeRequirementConflict, "Requirement rejected").
		WithUserMessage("Requirements cannot be added to an already loaded plugin").
		WithContext("plugin_name", name).
		WithSeverity("error")
}

func NewInvalidPluginError(reason string) *errors.Error {
	return errors.New(ErrCodeInvalidPlugin, "Invalid plugin configuration: "+reason).
		WithUserMessage("The plugin configuration is incomplete or inconsistent").
		WithSeverity("error")
}

func NewInconsistentDependencyError(dependent, dependency string) *errors.Error {
	return errors.New(ErrCodeInconsistentDependency, "Inconsistent dependency graph").
		WithUserMessage("A dependent plugin does not reference this plugin in its dependencies").
		WithContext("dependent", dependent).
		WithContext("dependency", dependency).
		WithSeverity("error")
}

// Registry error constructors

func NewPluginNotFoundError(name string) *errors.Error {
	return errors.New(ErrCodePluginNotFound, "Plugin not found").
		WithUserMessage("No plugin is registered under the requested name").
		WithContext("plugin_name", name).
		WithSeverity("error")
}

func NewDuplicateNameError(name string) *errors.Error {
	return errors.New(ErrCodeDuplicateName, "Duplicate plugin name").
		WithUserMessage("A plugin is already registered under this name").
		WithContext("plugin_name", name).
		WithSeverity("error")
}

func NewRegisterConflictError(name, reason string) *errors.Error {
	return errors.New(ErrCodeRegisterConflict, "Registration conflict: "+reason).
		WithUserMessage("The registry refused the registration request").
		WithContext("plugin_name", name).
		WithSeverity("error")
}

func NewResolutionError(name string, cause error) *errors.Error {
	if cause == nil {
		return errors.New(ErrCodeResolutionFailed, "Resolution failed").
			WithUserMessage("The plugin name could not be resolved").
			WithContext("plugin_name", name).
			WithSeverity("error")
	}
	return errors.Wrap(cause, ErrCodeResolutionFailed, "Resolution failed").
		WithUserMessage("The plugin name could not be resolved").
		WithContext("plugin_name", name).
		WithSeverity("error")
}

// Group error constructors

func NewGroupLoadError(group, member string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeGroupLoadFailed, "Group load failed").
		WithUserMessage("A group member failed to load; remaining members were not loaded").
		WithContext("group_name", group).
		WithContext("member_name", member).
		WithSeverity("error")
}

func NewGroupUnloadError(group, member string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeGroupUnloadFailed, "Group unload failed").
		WithUserMessage("A group member failed to unload; remaining members were not unloaded").
		WithContext("group_name", group).
		WithContext("member_name", member).
		WithSeverity("error")
}

func NewGroupHookError(group, hook string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeGroupHookFailed, "Group hook failed: "+hook).
		WithUserMessage("A group lifecycle hook returned an error").
		WithContext("group_name", group).
		WithContext("hook", hook).
		WithSeverity("error")
}

// Settings error constructors

func NewInvalidSettingError(key, value string) *errors.Error {
	return errors.New(ErrCodeInvalidSetting, fmt.Sprintf("Invalid setting %s=%q", key, value)).
		WithUserMessage("A setting has an unsupported value").
		WithContext("setting", key).
		WithContext("value", value).
		WithSeverity("error")
}

func NewSettingsFileError(path, message string, cause error) *errors.Error {
	if cause != nil {
		return errors.Wrap(cause, ErrCodeSettingsFile, "Settings file error: "+message).
			WithUserMessage("The settings file could not be read or parsed").
			WithContext("settings_path", path).
			WithSeverity("error")
	}
	return errors.New(ErrCodeSettingsFile, "Settings file error: "+message).
		WithUserMessage("The settings file could not be read or parsed").
		WithContext("settings_path", path).
		WithSeverity("error")
}

func NewSettingsWatcherError(message string, cause error) *errors.Error {
	if cause != nil {
		return errors.Wrap(cause, ErrCodeSettingsWatcher, "Settings watcher error: "+message).
			WithUserMessage("Settings hot reload failed").
			WithSeverity("error")
	}
	return errors.New(ErrCodeSettingsWatcher, "Settings watcher error: "+message).
		WithUserMessage("Settings hot reload failed").
		WithSeverity("error")
}

// CodeOf extracts the structured error code from err, or returns the empty
// string when err carries none.
func CodeOf(err error) string {
	var structured *errors.Error
	if stderrors.As(err, &structured) {
		return string(structured.ErrorCode())
	}
	return ""
}
