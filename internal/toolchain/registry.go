// Package toolchain resolves and caches filesystem paths of installed
// compilers, interpreters, assemblers and linkers, keyed by logical name.
// The registry is populated once during startup autoconfiguration and is
// read-only afterwards, so concurrent readers need no locking.
package toolchain

import (
	"os/exec"
)

// Registry maps logical toolchain names to on-disk binary paths. Seed
// entries come from operator configuration; everything else is discovered
// with a PATH lookup during Autoconfig.
type Registry struct {
	paths    map[string]string
	lookPath func(string) (string, error)
}

// NewRegistry creates a registry seeded from configuration. A nil seed map
// is treated as empty.
func NewRegistry(seed map[string]string) *Registry {
	paths := make(map[string]string, len(seed))
	for name, path := range seed {
		if name == "" || path == "" {
			continue
		}
		paths[name] = path
	}
	return &Registry{paths: paths, lookPath: exec.LookPath}
}

// Resolve returns the cached path for a logical name.
func (r *Registry) Resolve(name string) (string, bool) {
	path, ok := r.paths[name]
	return path, ok
}

// FindFirst returns the path of the first candidate binary that resolves,
// preferring seeded entries over PATH lookup, in candidate order.
func (r *Registry) FindFirst(candidates []string) (string, bool) {
	for _, name := range candidates {
		if path, ok := r.paths[name]; ok {
			return path, true
		}
		if path, err := r.lookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}

// Autoconfig discovers toolchain binaries for every logical name in the
// mapping that is not already seeded, caching the first candidate that
// resolves. Must complete before the registry is shared; the cache is
// immutable afterwards.
func (r *Registry) Autoconfig(mapping map[string][]string) {
	for logical, candidates := range mapping {
		if _, ok := r.paths[logical]; ok {
			continue
		}
		if path, ok := r.FindFirst(candidates); ok {
			r.paths[logical] = path
		}
	}
}
