// Package executor implements the per-language runtime adapter framework:
// the contract every language plugs into (capability probing, security
// policy declaration, compile/execute lifecycle) and the two standard
// lifecycle shapes, interpreted and compiled. Concrete adapters live in the
// langs and asm subpackages.
package executor

import (
	"context"
	"time"

	"gavel/internal/policy"
	"gavel/internal/sandbox"
	"gavel/internal/toolchain"
)

// Deps carries the collaborators every adapter needs. One value is shared
// by all adapters; everything referenced is immutable after startup.
type Deps struct {
	Registry      *toolchain.Registry
	Engine        sandbox.Engine
	Runner        sandbox.TimedRunner
	WorkRoot      string
	CompileBudget time.Duration
}

// Runtime is the per-language adapter. Implementations are shared across
// concurrent submissions and hold no per-submission state; that lives in
// the Job a call to Open creates.
type Runtime interface {
	// Spec returns the adapter's immutable descriptor.
	Spec() *Spec

	// FindFirstMapping declares, per logical toolchain name, the ordered
	// binary names autoconfiguration should try. Adapters without declared
	// alternates map each logical name to itself so bare commands are still
	// discovered on PATH.
	FindFirstMapping() map[string][]string

	// Probe reports whether this adapter is usable on this host. The first
	// call decides permanently; repeat calls return the memoized result.
	// When sandboxed is set the probe includes a self-test through the full
	// sandboxed pipeline. Absence of a toolchain is a normal false, never
	// an error.
	Probe(ctx context.Context, sandboxed bool) bool

	// Open creates the per-submission instance: a fresh exclusive working
	// directory holding the written source.
	Open(problemID, source string) (Job, error)
}

// Job is one submission's compile/execute state. It is exclusively owned
// by the worker handling that submission.
type Job interface {
	// Compile builds the artifact, or returns *CompileError with captured
	// diagnostics.
	Compile(ctx context.Context) error

	// CommandLine is the argv the sandbox engine should launch. For
	// emulated execution it is prefixed with the emulator binary.
	CommandLine() []string

	// Executable is the path of the binary that will actually run.
	Executable() string

	// Dir is the submission's private working directory.
	Dir() string

	// Policy returns this instance's security policy. The value is a copy;
	// instance-level widening never reaches the shared descriptor.
	Policy() policy.Policy

	// Warnings returns non-fatal build diagnostics, if any.
	Warnings() string

	// Close removes the working directory and all artifacts.
	Close() error
}

// DisableReason says why a probe marked an adapter unusable.
type DisableReason string

const (
	DisableToolchainMissing DisableReason = "toolchain missing"
	DisableSelfTestFailed   DisableReason = "self-test failed"
	DisableNoNativeDebug    DisableReason = "unable to natively debug"
)

// Unavailability is implemented by adapters that can report why their
// probe failed.
type Unavailability interface {
	DisableReason() DisableReason
}

// CompileError carries verbatim build diagnostics for display to the
// submitter. TimedOut marks builds killed for exceeding the compile budget.
type CompileError struct {
	Output   string
	TimedOut bool
}

func (e *CompileError) Error() string {
	if e.TimedOut {
		return "compilation time limit exceeded"
	}
	return "compilation failed"
}
