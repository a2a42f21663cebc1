// requirement_test.go: requirement descriptor behavior
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

func TestRequireDefaultsDestToPluginName(t *testing.T) {
	p, err := NewPlugin(PluginConfig{
		Name:     "cache",
		Load:     func(ctx context.Context, args Args, kwargs KwArgs) (any, error) { return 1, nil },
		Settings: Static(DefaultSettings()),
	})
	require.NoError(t, err)

	req := Require(p, "")
	assert.Equal(t, "cache", req.Dest())
	assert.Equal(t, "cache", req.SourceName())

	source, name := req.Source()
	assert.Same(t, p, source)
	assert.Empty(t, name)
}

func TestRequireNamedDefaultsDestToName(t *testing.T) {
	req := RequireNamed("db_client", "")
	assert.Equal(t, "db_client", req.Dest())
	assert.Equal(t, "db_client", req.SourceName())

	source, name := req.Source()
	assert.Nil(t, source)
	assert.Equal(t, "db_client", name)
}

func TestRequireNamedExplicitDest(t *testing.T) {
	req := RequireNamed("db_client", "db")
	assert.Equal(t, "db", req.Dest())
	assert.Equal(t, "db_client -> db", req.String())
}
