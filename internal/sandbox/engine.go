// Package sandbox defines the contracts between runtime adapters and the
// engines that execute untrusted processes: the policy-enforcing Engine used
// for submissions and self-tests, and the TimedRunner used for untrusted
// build steps where only wall time must be bounded. A reference Linux engine
// backed by seccomp and rlimits is provided; the syscall-interception detail
// of a full tracing engine stays behind the Engine interface.
package sandbox

import (
	"context"
	"time"

	"gavel/internal/policy"
)

// Status classifies how a sandboxed process ended.
type Status int

const (
	// StatusExited means the process ran to completion; ExitCode is valid.
	StatusExited Status = iota
	// StatusPolicyViolation means the process was killed for a syscall or
	// file access outside its allowlist.
	StatusPolicyViolation
	// StatusTimeLimit means the process exceeded its CPU or wall budget.
	StatusTimeLimit
	// StatusMemoryLimit means the process exceeded memory plus grace.
	StatusMemoryLimit
	// StatusOutputLimit means the process exceeded its output budget.
	StatusOutputLimit
)

// Request describes one sandboxed execution.
type Request struct {
	Argv        []string
	Dir         string
	Stdin       []byte
	Policy      policy.Policy
	TimeLimit   time.Duration
	MemoryLimit int64 // bytes; 0 means unlimited
}

// Result reports the outcome of a sandboxed execution. DeniedSyscall and
// DeniedPath are operator-facing detail only and must never reach the
// submitter.
type Result struct {
	Status        Status
	ExitCode      int
	Stdout        []byte
	Stderr        []byte
	WallTimeMs    int64
	MemoryKB      int64
	DeniedSyscall string
	DeniedPath    string
}

// Engine executes a process under a security policy, killing on violation.
type Engine interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// TimedRequest describes one unconfined but time-bounded subprocess, used
// for compile, assemble and link steps. FileSizeLimit bounds files the step
// may emit (enough to produce the output binary); 0 means unlimited.
type TimedRequest struct {
	Argv          []string
	Dir           string
	TimeLimit     time.Duration
	FileSizeLimit int64
}

// TimedResult reports a build step's outcome. Killed is set when the
// process was forcibly terminated for exceeding its time budget; Cancelled
// when it was terminated because the caller's context ended. The two never
// overlap, so callers can tell a slow build from an abandoned submission.
type TimedResult struct {
	ExitCode  int
	Stderr    []byte
	Killed    bool
	Cancelled bool
}

// TimedRunner runs a subprocess with a wall-clock budget, capturing stderr.
type TimedRunner interface {
	Run(ctx context.Context, req TimedRequest) (TimedResult, error)
}
