// settings.go: Process-wide engine settings with environment overrides
//
// Settings gate the engine's optional behaviors: result type inference and
// enforcement, name-resolution fallback, dynamic requirement adoption and
// the default registration mode. Values come from defaults, the
// GO_LIFECYCLE_* environment variables, or a hot-reloaded settings file
// (see settings_watcher.go).
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package golifecycle

import (
	"os"
	"strconv"
)

// Environment variable names for engine settings.
const (
	EnvInferType           = "GO_LIFECYCLE_INFER_TYPE"
	EnvEnforceType         = "GO_LIFECYCLE_ENFORCE_TYPE"
	EnvLookupFallback      = "GO_LIFECYCLE_LOOKUP_FALLBACK"
	EnvDynamicRequirements = "GO_LIFECYCLE_DYNAMIC_REQUIREMENTS"
	EnvRegisterMode        = "GO_LIFECYCLE_REGISTER_MODE"
)

// Settings holds the engine's behavioral flags.
type Settings struct {
	// InferType records the result type of a plugin from its first
	// successful load when no type was declared.
	InferType bool `json:"infer_type" yaml:"infer_type"`

	// EnforceType fails a load whose result does not match the plugin's
	// declared or inferred result type. The check runs after the load
	// unit; its side effects are not rolled back.
	EnforceType bool `json:"enforce_type" yaml:"enforce_type"`

	// LookupFallback enables the registry's fallback resolver when a name
	// is not registered.
	LookupFallback bool `json:"lookup_fallback" yaml:"lookup_fallback"`

	// DynamicRequirements adopts plugins loaded from within another
	// plugin's load unit as requirements of that plugin.
	DynamicRequirements bool `json:"dynamic_requirements" yaml:"dynamic_requirements"`

	// RegisterMode is the default registration mode applied when a plugin
	// registers without an explicit mode.
	RegisterMode RegistrationMode `json:"register_mode" yaml:"register_mode"`
}

// DefaultSettings returns the engine defaults.
func DefaultSettings() Settings {
	return Settings{
		InferType:           true,
		EnforceType:         false,
		LookupFallback:      true,
		DynamicRequirements: true,
		RegisterMode:        RegisterEager,
	}
}

// SettingsFromEnv returns DefaultSettings overridden by any GO_LIFECYCLE_*
// environment variables that are set. An unparseable value fails with an
// invalid-setting error rather than being silently ignored.
func SettingsFromEnv() (Settings, error) {
	s := DefaultSettings()

	bools := []struct {
		env    string
		target *bool
	}{
		{EnvInferType, &s.InferType},
		{EnvEnforceType, &s.EnforceType},
		{EnvLookupFallback, &s.LookupFallback},
		{EnvDynamicRequirements, &s.DynamicRequirements},
	}
	for _, b := range bools {
		raw, ok := os.LookupEnv(b.env)
		if !ok {
			continue
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return s, NewInvalidSettingError(b.env, raw)
		}
		*b.target = value
	}

	if raw, ok := os.LookupEnv(EnvRegisterMode); ok {
		mode := RegistrationMode(raw)
		if !ValidRegistrationMode(mode) {
			return s, NewInvalidSettingError(EnvRegisterMode, raw)
		}
		s.RegisterMode = mode
	}

	return s, nil
}

// Validate checks that the settings values are within the supported range.
func (s Settings) Validate() error {
	if !ValidRegistrationMode(s.RegisterMode) {
		return NewInvalidSettingError("register_mode", string(s.RegisterMode))
	}
	return nil
}

// SettingsSource provides the current engine settings. A source backed by
// the settings watcher reflects hot reloads; a static source never changes.
type SettingsSource interface {
	Current() Settings
}

type staticSettings struct {
	settings Settings
}

// Static wraps fixed settings in a SettingsSource.
func Static(s Settings) SettingsSource {
	return staticSettings{settings: s}
}

// Current implements SettingsSource.
func (s staticSettings) Current() Settings {
	return s.settings
}
