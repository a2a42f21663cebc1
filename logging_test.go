// logging_test.go: logger adapters and context plumbing
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

func TestNewLoggerAcceptsLoggerAndNil(t *testing.T) {
	custom := NewTestLogger()
	assert.Same(t, Logger(custom), NewLogger(custom))

	fromNil := NewLogger(nil)
	_, ok := fromNil.(*NoOpLogger)
	assert.True(t, ok)
}

func TestNewLoggerPanicsOnUnsupportedType(t *testing.T) {
	assert.Panics(t, func() { NewLogger("not a logger") })
}

func TestTestLoggerCapture(t *testing.T) {
	logger := NewTestLogger()
	logger.Debug("debug msg", "k", 1)
	logger.Info("info msg")
	logger.Warn("warn msg")
	logger.Error("error msg")

	assert.True(t, logger.HasMessage("DEBUG", "debug msg"))
	assert.True(t, logger.HasMessage("INFO", "info msg"))
	assert.True(t, logger.HasMessage("WARN", "warn msg"))
	assert.True(t, logger.HasMessage("ERROR", "error msg"))
	assert.False(t, logger.HasMessage("INFO", "never logged"))
	assert.Len(t, logger.Messages, 4)

	logger.Clear()
	assert.Empty(t, logger.Messages)
}

func TestTestLoggerWithReturnsSameSink(t *testing.T) {
	logger := NewTestLogger()
	logger.With("plugin", "svc").Info("hello")
	assert.True(t, logger.HasMessage("INFO", "hello"))
}

func TestLoggerContextRoundTrip(t *testing.T) {
	logger := NewTestLogger()
	ctx := ContextWithLogger(context.Background(), logger)
	assert.Same(t, Logger(logger), LoggerFromContext(ctx))

	fallback := LoggerFromContext(context.Background())
	_, ok := fallback.(*NoOpLogger)
	assert.True(t, ok)
}

func TestContextLoggerRoutesLifecycleLogs(t *testing.T) {
	own := NewTestLogger()
	routed := NewTestLogger()

	p, err := NewPlugin(PluginConfig{
		Name:     "routed",
		Load:     func(ctx context.Context, args Args, kwargs KwArgs) (any, error) { return 1, nil },
		Logger:   own,
		Settings: Static(DefaultSettings()),
	})
	require.NoError(t, err)

	ctx := ContextWithLogger(context.Background(), routed)
	_, err = p.Load(ctx, nil, nil)
	require.NoError(t, err)
	assert.True(t, routed.HasMessage("INFO", "plugin loaded"))
	assert.False(t, own.HasMessage("INFO", "plugin loaded"))

	_, err = p.Unload(ctx)
	require.NoError(t, err)
	assert.True(t, routed.HasMessage("INFO", "plugin unloaded"))
	assert.Empty(t, own.Messages)
}

func TestLifecycleLogsCarryPluginName(t *testing.T) {
	logger := NewTestLogger()
	p, err := NewPlugin(PluginConfig{
		Name:     "logged",
		Load:     func(ctx context.Context, args Args, kwargs KwArgs) (any, error) { return 1, nil },
		Logger:   logger,
		Settings: Static(DefaultSettings()),
	})
	require.NoError(t, err)

	_, err = p.Load(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, logger.HasMessage("INFO", "plugin loaded"))

	_, err = p.Unload(context.Background())
	require.NoError(t, err)
	assert.True(t, logger.HasMessage("INFO", "plugin unloaded"))
}
