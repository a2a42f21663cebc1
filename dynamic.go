// dynamic.go: Call-scoped tracking of dynamically discovered requirements
//
// A plugin may load other plugins from inside its load unit. The engine
// attributes those loads to the unit that performed them by carrying a
// frame on the context passed into the unit. After the unit's own load
// commits, the recorded plugins are adopted as requirements exactly as if
// they had been declared statically.
//
// The same file carries the propagation wave: the per-call visited set
// that keeps a dependent-reload cascade from re-entering a plugin already
// refreshed in the same wave, converting would-be infinite recursion over
// a dynamically introduced cycle into a no-op on revisit.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package golifecycle

import "context"

type frameContextKey struct{}

// loadFrame collects the plugins loaded while a particular plugin's load
// unit is executing.
type loadFrame struct {
	owner  *Plugin
	loaded []*Plugin
}

// record attributes a committed load to this frame, deduplicated.
func (f *loadFrame) record(p *Plugin) {
	for _, q := range f.loaded {
		if q == p {
			return
		}
	}
	f.loaded = append(f.loaded, p)
}

// pushLoadFrame returns a context carrying a fresh frame owned by p. The
// engine passes the returned context into p's load unit; loads the unit
// performs with it are attributed to p.
func pushLoadFrame(ctx context.Context, p *Plugin) (context.Context, *loadFrame) {
	frame := &loadFrame{owner: p}
	return context.WithValue(ctx, frameContextKey{}, frame), frame
}

// suppressLoadFrame masks any active frame. Engine-internal loads
// (requirement loading, dependent reloads) run under a suppressed frame so
// only loads performed directly by a unit are discovered as dynamic
// requirements.
func suppressLoadFrame(ctx context.Context) context.Context {
	if activeLoadFrame(ctx) == nil {
		return ctx
	}
	return context.WithValue(ctx, frameContextKey{}, (*loadFrame)(nil))
}

// activeLoadFrame returns the innermost frame, or nil outside any unit.
func activeLoadFrame(ctx context.Context) *loadFrame {
	frame, _ := ctx.Value(frameContextKey{}).(*loadFrame)
	return frame
}

type waveContextKey struct{}

// propagationWave is the visited set of a single dependent-reload cascade.
type propagationWave struct {
	visited map[*Plugin]bool
}

func (w *propagationWave) visit(p *Plugin) {
	w.visited[p] = true
}

func (w *propagationWave) seen(p *Plugin) bool {
	return w.visited[p]
}

// ensureWave returns the wave active on ctx, creating and attaching one
// when the cascade is just starting.
func ensureWave(ctx context.Context) (context.Context, *propagationWave) {
	if wave, ok := ctx.Value(waveContextKey{}).(*propagationWave); ok {
		return ctx, wave
	}
	wave := &propagationWave{visited: make(map[*Plugin]bool)}
	return context.WithValue(ctx, waveContextKey{}, wave), wave
}
