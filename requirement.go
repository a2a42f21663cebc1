// requirement.go: Declared dependency edges between plugins
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package golifecycle

import "fmt"

// Requirement is an immutable descriptor binding a dependency source to the
// keyword destination it fills on the dependent plugin.
//
// The source is either a direct *Plugin reference or a name resolved lazily
// through the dependent's resolver at load time. The destination is the
// keyword argument that receives the resolved plugin's instance.
type Requirement struct {
	plugin *Plugin
	name   string
	dest   string
}

// Require declares a requirement on a plugin by direct reference. An empty
// dest defaults to the plugin's name.
func Require(p *Plugin, dest string) Requirement {
	if dest == "" && p != nil {
		dest = p.Name()
	}
	return Requirement{plugin: p, dest: dest}
}

// RequireNamed declares a requirement on a plugin by name, resolved lazily
// at load time. An empty dest defaults to the name itself.
func RequireNamed(name, dest string) Requirement {
	if dest == "" {
		dest = name
	}
	return Requirement{name: name, dest: dest}
}

// Dest returns the keyword destination the resolved instance is bound to.
func (r Requirement) Dest() string {
	return r.dest
}

// Source returns the requirement's source: a direct plugin reference, or
// the name to resolve when the reference is nil.
func (r Requirement) Source() (*Plugin, string) {
	return r.plugin, r.name
}

// SourceName returns the name of the requirement's source, whichever form
// it was declared in.
func (r Requirement) SourceName() string {
	if r.plugin != nil {
		return r.plugin.Name()
	}
	return r.name
}

// String returns a human-readable representation of the requirement.
func (r Requirement) String() string {
	return fmt.Sprintf("%s -> %s", r.SourceName(), r.dest)
}
