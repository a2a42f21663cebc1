// settings_watcher.go: Hot reload of engine settings from a file
//
// The watcher is a SettingsSource backed by a JSON or YAML file, polled
// through Argus. A change swaps the current settings atomically; lifecycle
// calls in flight keep the snapshot they started with, the next call
// observes the new values. An invalid or deleted file keeps the last good
// settings.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package golifecycle

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/argus"
	"gopkg.in/yaml.v3"
)

// SettingsWatcherOptions tunes the file watcher.
type SettingsWatcherOptions struct {
	// PollInterval is how often the file is checked for changes.
	// Defaults to 2 seconds.
	PollInterval time.Duration

	// CacheTTL is the stat-cache lifetime. Defaults to half the poll
	// interval.
	CacheTTL time.Duration

	// ErrorHandler receives file-watching errors. Defaults to logging
	// them.
	ErrorHandler func(err error, path string)
}

// SettingsWatcher watches a settings file and serves the most recent
// valid settings. It implements SettingsSource.
type SettingsWatcher struct {
	watcher *argus.Watcher
	path    string
	logger  Logger

	current atomic.Pointer[Settings]

	enabled  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
	mu       sync.Mutex
}

// NewSettingsWatcher constructs a watcher for the settings file at path.
// Call Start to load the file and begin watching.
func NewSettingsWatcher(path string, options SettingsWatcherOptions, logger Logger) *SettingsWatcher {
	if logger == nil {
		logger = DefaultLogger()
	}
	if options.PollInterval <= 0 {
		options.PollInterval = 2 * time.Second
	}
	if options.CacheTTL <= 0 {
		options.CacheTTL = options.PollInterval / 2
	}

	sw := &SettingsWatcher{
		path:   path,
		logger: logger,
	}

	argusConfig := argus.Config{
		PollInterval:         options.PollInterval,
		CacheTTL:             options.CacheTTL,
		MaxWatchedFiles:      5,
		OptimizationStrategy: argus.OptimizationSingleEvent,
		ErrorHandler: func(err error, filepath string) {
			if options.ErrorHandler != nil {
				options.ErrorHandler(err, filepath)
			} else {
				logger.Error("settings file watching error", "error", err, "file", filepath)
			}
		},
	}
	sw.watcher = argus.New(argusConfig)

	return sw
}

// Start loads the initial settings and begins watching the file. A
// watcher that has been stopped cannot be restarted.
func (sw *SettingsWatcher) Start() error {
	if sw.stopped.Load() {
		return NewSettingsWatcherError("settings watcher has been stopped and cannot be restarted", nil)
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	if !sw.enabled.CompareAndSwap(false, true) {
		return NewSettingsWatcherError("settings watcher is already running", nil)
	}

	initial, err := loadSettingsFromFile(sw.path)
	if err != nil {
		sw.enabled.Store(false)
		return err
	}
	sw.current.Store(&initial)

	if err := sw.watcher.Watch(sw.path, sw.handleChange); err != nil {
		sw.enabled.Store(false)
		return NewSettingsWatcherError("failed to watch settings file", err)
	}
	if err := sw.watcher.Start(); err != nil {
		sw.enabled.Store(false)
		return NewSettingsWatcherError("failed to start settings watcher", err)
	}

	sw.logger.Info("settings watcher started", "path", sw.path)
	return nil
}

// Stop stops watching permanently. The last good settings remain served.
func (sw *SettingsWatcher) Stop() error {
	if sw.stopped.Load() {
		return NewSettingsWatcherError("settings watcher is already stopped", nil)
	}

	var stopErr error
	sw.stopOnce.Do(func() {
		sw.mu.Lock()
		defer sw.mu.Unlock()

		if !sw.enabled.CompareAndSwap(true, false) {
			stopErr = NewSettingsWatcherError("settings watcher is not running", nil)
			return
		}
		sw.stopped.Store(true)

		if err := sw.watcher.Stop(); err != nil {
			stopErr = NewSettingsWatcherError("failed to stop settings watcher", err)
			return
		}
		sw.logger.Info("settings watcher stopped", "path", sw.path)
	})
	return stopErr
}

// IsRunning reports whether the watcher is active.
func (sw *SettingsWatcher) IsRunning() bool {
	return sw.enabled.Load() && !sw.stopped.Load()
}

// Current implements SettingsSource. Before a successful Start it returns
// the engine defaults.
func (sw *SettingsWatcher) Current() Settings {
	if s := sw.current.Load(); s != nil {
		return *s
	}
	return DefaultSettings()
}

func (sw *SettingsWatcher) handleChange(event argus.ChangeEvent) {
	if event.IsDelete {
		sw.logger.Warn("settings file deleted, keeping last good settings", "path", event.Path)
		return
	}

	next, err := loadSettingsFromFile(event.Path)
	if err != nil {
		sw.logger.Error("settings reload failed, keeping last good settings",
			"path", event.Path, "error", err)
		return
	}

	sw.current.Store(&next)
	sw.logger.Info("settings reloaded", "path", event.Path)
}

// loadSettingsFromFile reads and parses a JSON or YAML settings file over
// the engine defaults, then validates the result.
func loadSettingsFromFile(path string) (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		return s, NewSettingsFileError(path, "failed to read settings file", err)
	}

	switch format := argus.DetectFormat(path); format {
	case argus.FormatJSON:
		if err := json.Unmarshal(data, &s); err != nil {
			return s, NewSettingsFileError(path, "invalid JSON settings", err)
		}
	case argus.FormatYAML:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, NewSettingsFileError(path, "invalid YAML settings", err)
		}
	default:
		return s, NewSettingsFileError(path, "unsupported settings format", nil)
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}
