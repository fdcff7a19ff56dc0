package executor

import (
	"gavel/internal/policy"
)

// SelfTestInput is the canonical echo line fed to every self-test; the
// adapter is usable only if the sandboxed test program echoes it back.
const SelfTestInput = "echo: Hello, World!"

// Spec is a runtime adapter's class-level descriptor: identity, toolchain
// naming and the security policy shared by every instance. Specs are built
// once at startup and read-only afterwards.
type Spec struct {
	// Name uniquely tags the adapter, e.g. "nasm64".
	Name string
	// Ext is the source file extension including the dot.
	Ext string
	// Command is the logical name of the primary toolchain binary.
	Command string
	// CommandPaths are ordered alternate binary names for autoconfiguration;
	// empty means Command resolves as itself.
	CommandPaths []string
	// TestProgram is the known-good echo program for the self-test; empty
	// skips the self-test.
	TestProgram string

	// Syscalls extends the engine's baseline allowlist.
	Syscalls []policy.SyscallRule
	// FS extends the default filesystem allowlist.
	FS []string
	// AddressGrace is extra virtual memory in bytes tolerated above the
	// memory limit, absorbing interpreter and runtime overhead.
	AddressGrace int64
	// NProc caps process count; 0 means use the default of -1 (unlimited).
	NProc int
}

// defaultFS is the filesystem allowlist every adapter starts from: shared
// libraries, the loader cache and the few device files language runtimes
// touch on startup. The instance's working directory is prepended per job.
var defaultFS = []string{
	`.*\.so(?:\.\d+)*$`,
	`/etc/ld\.so\.(?:nohwcap|preload|cache)$`,
	`/dev/(?:null|tty|zero|u?random)$`,
	`/usr/lib/locale/`,
	`/proc/self/maps$`,
}
