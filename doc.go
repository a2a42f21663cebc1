// Package golifecycle manages the runtime lifecycle of named, swappable
// units of work ("plugins") that declare dependencies on one another.
//
// The engine guarantees well-ordered activation and deactivation even as
// the dependency graph mutates at runtime:
//   - Loading a plugin resolves and loads its transitive requirements
//     first, injects their instances as keyword arguments, and reloads
//     any already-loaded dependents so they observe the fresh instance.
//   - Unloading a plugin tears down its loaded dependents depth-first
//     before the plugin's own unload unit runs.
//   - Conflicting requests (loading a loaded plugin, unloading an
//     unloaded one) are settled by an explicit conflict strategy.
//   - Plugins loaded from within another plugin's load unit can be
//     adopted retroactively as requirements (dynamic discovery).
//
// Basic Usage:
//
//	registry, _ := golifecycle.NewRegistry(golifecycle.RegistryConfig{})
//
//	dbClient, _ := golifecycle.NewPlugin(golifecycle.PluginConfig{
//		Name: "db_client",
//		Load: func(ctx context.Context, args golifecycle.Args, kwargs golifecycle.KwArgs) (any, error) {
//			return openClient(kwargs["uri"].(string))
//		},
//		Unload: func(ctx context.Context, instance any) error {
//			return instance.(*Client).Close()
//		},
//		Registry: registry,
//	})
//
//	dbWriter, _ := golifecycle.NewPlugin(golifecycle.PluginConfig{
//		Name:         "db_writer",
//		Requirements: []golifecycle.Requirement{golifecycle.RequireNamed("db_client", "db_client")},
//		Load: func(ctx context.Context, args golifecycle.Args, kwargs golifecycle.KwArgs) (any, error) {
//			return newWriter(kwargs["db_client"].(*Client)), nil
//		},
//		Registry: registry,
//	})
//
//	_, err := dbWriter.Load(context.Background(), nil, nil) // loads db_client first
//
// Concurrency:
// The engine is single-threaded-consistent. Each Load/Unload is a sequence
// of synchronous steps; the dependency graph is shared mutable state with
// no built-in locking. Concurrent lifecycle calls on plugins sharing an
// edge require an external mutual-exclusion layer.
//
// Copyright (c) 2025 AGILira - A. Giordano
// SPDX-License-Identifier: MPL-2.0
package golifecycle
