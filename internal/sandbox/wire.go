package sandbox

import (
	"gavel/internal/policy"
)

// InitRequest is the JSON handshake between the reference engine and the
// gavel-init trampoline: the trampoline reads it on stdin, applies rlimits,
// wires stdio, installs the seccomp filter and execs the target.
type InitRequest struct {
	Argv       []string `json:"argv"`
	Dir        string   `json:"dir"`
	StdinPath  string   `json:"stdinPath"`
	StdoutPath string   `json:"stdoutPath"`
	StderrPath string   `json:"stderrPath"`

	CPUSeconds   uint64 `json:"cpuSeconds"`   // 0 = unlimited
	AddressSpace uint64 `json:"addressSpace"` // bytes including grace; 0 = unlimited
	FileSize     uint64 `json:"fileSize"`     // bytes; 0 = unlimited
	NProc        uint64 `json:"nproc"`        // 0 = unlimited

	Syscalls []policy.SyscallRule `json:"syscalls"`
}
