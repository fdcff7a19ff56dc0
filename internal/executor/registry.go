package executor

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"gavel/pkg/utils/contextkey"
	"gavel/pkg/utils/logger"
)

// Factory constructs one adapter from the shared dependencies. Factories
// are registered in explicit lists by the langs and asm packages; there is
// no reflective discovery.
type Factory func(deps Deps) Runtime

// Set is the immutable lookup of probed adapters. Built once at startup,
// then shared by all workers without locking.
type Set struct {
	available map[string]Runtime
	disabled  map[string]DisableReason
}

// Init constructs every adapter, feeds their find-first mappings to
// toolchain autoconfiguration, probes each one and partitions the outcome.
// Probe failures are absorbed here: they are logged for operators and
// recorded with a reason, never surfaced to submissions.
func Init(ctx context.Context, deps Deps, factories []Factory, selfTest bool) *Set {
	set := &Set{
		available: make(map[string]Runtime),
		disabled:  make(map[string]DisableReason),
	}

	runtimes := make([]Runtime, 0, len(factories))
	for _, factory := range factories {
		if rt := factory(deps); rt != nil {
			runtimes = append(runtimes, rt)
		}
	}

	for _, rt := range runtimes {
		if mapping := rt.FindFirstMapping(); mapping != nil {
			deps.Registry.Autoconfig(mapping)
		}
	}

	for _, rt := range runtimes {
		name := rt.Spec().Name
		probeCtx := context.WithValue(ctx, contextkey.RuntimeName, name)
		if rt.Probe(probeCtx, selfTest) {
			set.available[name] = rt
			logger.Info(probeCtx, "runtime available")
			continue
		}
		reason := DisableToolchainMissing
		if u, ok := rt.(Unavailability); ok && u.DisableReason() != "" {
			reason = u.DisableReason()
		}
		set.disabled[name] = reason
		logger.Warn(probeCtx, "runtime disabled", zap.String("reason", string(reason)))
	}
	return set
}

// Get returns an available adapter by name.
func (s *Set) Get(name string) (Runtime, bool) {
	rt, ok := s.available[name]
	return rt, ok
}

// Names lists available adapters in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.available))
	for name := range s.available {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Disabled returns a copy of the unavailable adapters with their reasons.
func (s *Set) Disabled() map[string]DisableReason {
	out := make(map[string]DisableReason, len(s.disabled))
	for name, reason := range s.disabled {
		out[name] = reason
	}
	return out
}
