// graph.go: Whole-registry dependency graph validation and ordered batch
// lifecycle, built on a directed acyclic graph walk.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package golifecycle

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/silas/dag"
)

// graphRoot is the sentinel vertex plugins without dependencies hang off,
// so the graph always has a single entry point.
type graphRoot struct{}

// buildGraph assembles the dependency graph of every registered plugin
// from declared requirements and resolved runtime edges. Named
// requirements that are not registered are skipped: they may still
// resolve through the fallback at load time.
func (r *Registry) buildGraph() *dag.AcyclicGraph {
	graph := &dag.AcyclicGraph{}

	root := graphRoot{}
	graph.Add(root)

	plugins := r.Plugins()
	for _, p := range plugins {
		graph.Add(p)
	}

	for _, p := range plugins {
		deps := map[*Plugin]bool{}

		for _, req := range p.Requirements() {
			dep, name := req.Source()
			if dep == nil {
				registered, ok := r.Get(name)
				if !ok {
					r.logger.Debug("graph: skipping unregistered requirement",
						"plugin", p.Name(), "requirement", name)
					continue
				}
				dep = registered
			}
			deps[dep] = true
		}
		for _, dep := range p.Dependencies() {
			deps[dep] = true
		}

		if len(deps) == 0 {
			graph.Connect(dag.BasicEdge(root, p))
			continue
		}
		for dep := range deps {
			if _, ok := r.Get(dep.Name()); !ok {
				graph.Add(dep)
			}
			graph.Connect(dag.BasicEdge(dep, p))
		}
	}

	return graph
}

// ValidateGraph checks that the registered plugins and their requirements
// form an acyclic dependency graph.
func (r *Registry) ValidateGraph() error {
	graph := r.buildGraph()
	graph.TransitiveReduction()
	if err := graph.Validate(); err != nil {
		return NewGraphValidationError(err)
	}
	return nil
}

// LoadOrder returns a valid load order of the registered plugins: every
// dependency precedes its dependents. Among independent plugins the order
// is unspecified.
func (r *Registry) LoadOrder() ([]string, error) {
	var mu sync.Mutex
	var order []string

	err := r.walkGraph(func(p *Plugin) error {
		mu.Lock()
		order = append(order, p.Name())
		mu.Unlock()
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// LoadAll loads every registered plugin in dependency order. Already
// loaded plugins are kept as they are. The walk stops at the first
// failure.
func (r *Registry) LoadAll(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var mu sync.Mutex
	return r.walkGraph(func(p *Plugin) error {
		// Lifecycle calls are not safe for concurrent use; the walker may
		// visit independent vertices in parallel.
		mu.Lock()
		defer mu.Unlock()
		_, err := p.LoadWithOptions(ctx, LoadOptions{OnConflict: ConflictKeepExisting})
		return err
	}, false)
}

// UnloadAll unloads every registered plugin in reverse dependency order.
// Already unloaded plugins are ignored. The walk stops at the first
// failure.
func (r *Registry) UnloadAll(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var mu sync.Mutex
	return r.walkGraph(func(p *Plugin) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := p.UnloadWithOptions(ctx, UnloadOptions{OnConflict: ConflictIgnore})
		return err
	}, true)
}

// walkGraph validates the graph and walks it, calling fn for every plugin
// vertex. An error from fn stops further callbacks and surfaces.
func (r *Registry) walkGraph(fn func(*Plugin) error, reverse bool) error {
	graph := r.buildGraph()
	graph.TransitiveReduction()
	if err := graph.Validate(); err != nil {
		return NewGraphValidationError(err)
	}

	// The walker keeps visiting vertices after a diagnostic; the flag
	// stops further callbacks once a callback has failed.
	hasError := atomic.Bool{}
	var mu sync.Mutex
	var firstErr error

	w := dag.Walker{
		Callback: func(v dag.Vertex) (diags dag.Diagnostics) {
			p, ok := v.(*Plugin)
			if !ok {
				return nil
			}
			if hasError.Load() {
				return nil
			}
			if err := fn(p); err != nil {
				hasError.Store(true)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return diags.Append(err)
			}
			return nil
		},
		Reverse: reverse,
	}
	w.Update(graph)
	walkDiags := w.Wait()

	mu.Lock()
	defer mu.Unlock()
	if firstErr == nil && walkDiags.HasErrors() {
		firstErr = walkDiags.Err()
	}
	return firstErr
}
