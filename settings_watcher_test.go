// settings_watcher_test.go: settings file parsing and watcher lifecycle
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package golifecycle

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempSettings(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSettingsFromJSONFile(t *testing.T) {
	path := writeTempSettings(t, "settings.json",
		`{"enforce_type": true, "dynamic_requirements": false}`)

	s, err := loadSettingsFromFile(path)
	require.NoError(t, err)

	// Unset keys keep the engine defaults.
	assert.True(t, s.InferType)
	assert.True(t, s.EnforceType)
	assert.True(t, s.LookupFallback)
	assert.False(t, s.DynamicRequirements)
	assert.Equal(t, RegisterEager, s.RegisterMode)
}

func TestLoadSettingsFromYAMLFile(t *testing.T) {
	path := writeTempSettings(t, "settings.yaml",
		"infer_type: false\nregister_mode: transient\n")

	s, err := loadSettingsFromFile(path)
	require.NoError(t, err)
	assert.False(t, s.InferType)
	assert.Equal(t, RegisterTransient, s.RegisterMode)
}

func TestLoadSettingsMissingFile(t *testing.T) {
	_, err := loadSettingsFromFile(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeSettingsFile, CodeOf(err))
}

func TestLoadSettingsInvalidJSON(t *testing.T) {
	path := writeTempSettings(t, "settings.json", `{"enforce_type": `)

	_, err := loadSettingsFromFile(path)
	require.Error(t, err)
	assert.Equal(t, ErrCodeSettingsFile, CodeOf(err))
}

func TestLoadSettingsInvalidMode(t *testing.T) {
	path := writeTempSettings(t, "settings.json", `{"register_mode": "lazy"}`)

	_, err := loadSettingsFromFile(path)
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidSetting, CodeOf(err))
}

func TestSettingsWatcherStartStop(t *testing.T) {
	path := writeTempSettings(t, "settings.json", `{"enforce_type": true}`)
	logger := NewTestLogger()

	sw := NewSettingsWatcher(path, SettingsWatcherOptions{
		PollInterval: 50 * time.Millisecond,
	}, logger)

	// Before Start the watcher serves the engine defaults.
	assert.Equal(t, DefaultSettings(), sw.Current())
	assert.False(t, sw.IsRunning())

	require.NoError(t, sw.Start())
	assert.True(t, sw.IsRunning())
	assert.True(t, sw.Current().EnforceType)

	// Double start is refused.
	err := sw.Start()
	require.Error(t, err)
	assert.Equal(t, ErrCodeSettingsWatcher, CodeOf(err))

	require.NoError(t, sw.Stop())
	assert.False(t, sw.IsRunning())

	// The last good settings remain available after stopping.
	assert.True(t, sw.Current().EnforceType)

	// A stopped watcher cannot be restarted.
	err = sw.Start()
	require.Error(t, err)
	assert.Equal(t, ErrCodeSettingsWatcher, CodeOf(err))

	err = sw.Stop()
	require.Error(t, err)
	assert.Equal(t, ErrCodeSettingsWatcher, CodeOf(err))
}

func TestSettingsWatcherStartFailsOnBadFile(t *testing.T) {
	path := writeTempSettings(t, "settings.json", `not json at all`)

	sw := NewSettingsWatcher(path, SettingsWatcherOptions{}, NewTestLogger())
	err := sw.Start()
	require.Error(t, err)
	assert.Equal(t, ErrCodeSettingsFile, CodeOf(err))
	assert.False(t, sw.IsRunning())

	// A failed start leaves the watcher restartable once the file is
	// fixed.
	require.NoError(t, os.WriteFile(path, []byte(`{"infer_type": false}`), 0o600))
	require.NoError(t, sw.Start())
	assert.False(t, sw.Current().InferType)
	require.NoError(t, sw.Stop())
}
