// Package policy models the security policy a runtime adapter declares for
// its sandboxed processes: a deny-by-default syscall allowlist, a
// deny-by-default filesystem allowlist, and an address-space grace margin.
package policy

import (
	"fmt"
	"regexp"
)

// CompareOp is the comparison applied to a raw syscall argument.
type CompareOp int

const (
	CompareEqual CompareOp = iota
	CompareNotEqual
	CompareMaskedEqual
)

// ArgCondition narrows a syscall rule to calls whose argument at index Arg
// satisfies the comparison against Value. Mask is only used by
// CompareMaskedEqual.
type ArgCondition struct {
	Arg   uint
	Op    CompareOp
	Value uint64
	Mask  uint64
}

// Match reports whether the raw argument array satisfies the condition.
func (c ArgCondition) Match(args [6]uint64) bool {
	if c.Arg >= uint(len(args)) {
		return false
	}
	got := args[c.Arg]
	switch c.Op {
	case CompareEqual:
		return got == c.Value
	case CompareNotEqual:
		return got != c.Value
	case CompareMaskedEqual:
		return got&c.Mask == c.Value
	}
	return false
}

// SyscallRule is one entry of a syscall allowlist. A rule is either
// unconditional (Cond is nil) or conditional on the call's raw arguments,
// evaluated by the sandbox engine at trap time.
type SyscallRule struct {
	Name string
	Cond *ArgCondition
}

// Allow builds an unconditional allowlist entry.
func Allow(name string) SyscallRule {
	return SyscallRule{Name: name}
}

// AllowWhen builds a conditional allowlist entry.
func AllowWhen(name string, cond ArgCondition) SyscallRule {
	return SyscallRule{Name: name, Cond: &cond}
}

// Permits reports whether this rule allows the named call with the given
// raw arguments.
func (r SyscallRule) Permits(name string, args [6]uint64) bool {
	if r.Name != name {
		return false
	}
	if r.Cond == nil {
		return true
	}
	return r.Cond.Match(args)
}

// Policy is the full security envelope an adapter hands to the sandbox
// engine. Syscalls extend the engine's baseline allowlist; FS is an ordered
// list of regexp patterns matched against paths the process opens; anything
// not matched is denied. AddressGrace is extra virtual memory in bytes the
// engine tolerates above the declared memory limit. NProc is a static
// process-count hint for the engine (-1 means unlimited).
type Policy struct {
	Syscalls     []SyscallRule
	FS           []string
	AddressGrace int64
	NProc        int
}

// Clone returns a deep copy so per-instance adjustments (emulation widening)
// never touch the shared descriptor.
func (p Policy) Clone() Policy {
	out := Policy{
		AddressGrace: p.AddressGrace,
		NProc:        p.NProc,
	}
	if len(p.Syscalls) > 0 {
		out.Syscalls = make([]SyscallRule, len(p.Syscalls))
		copy(out.Syscalls, p.Syscalls)
		for i, r := range p.Syscalls {
			if r.Cond != nil {
				cond := *r.Cond
				out.Syscalls[i].Cond = &cond
			}
		}
	}
	if len(p.FS) > 0 {
		out.FS = make([]string, len(p.FS))
		copy(out.FS, p.FS)
	}
	return out
}

// Allows reports whether any rule in the allowlist permits the call.
func (p Policy) Allows(name string, args [6]uint64) bool {
	for _, r := range p.Syscalls {
		if r.Permits(name, args) {
			return true
		}
	}
	return false
}

// CompileFS compiles the filesystem allowlist patterns, preserving order.
func (p Policy) CompileFS() ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(p.FS))
	for _, pattern := range p.FS {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile fs pattern %q: %w", pattern, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// AllowsPath reports whether any compiled pattern matches the path.
func AllowsPath(patterns []*regexp.Regexp, path string) bool {
	for _, re := range patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
