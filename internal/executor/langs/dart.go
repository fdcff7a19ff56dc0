package langs

import (
	"gavel/internal/executor"
	"gavel/internal/policy"
)

const dartTestProgram = `void main() {
    print("echo: Hello, World!");
}
`

// NewDart builds the Dart VM adapter. The VM spawns a sizeable thread pool
// and drives it through epoll, hence the process-count headroom and the
// extra syscalls.
func NewDart(deps executor.Deps) *executor.Interpreted {
	return executor.NewInterpreted(&executor.Spec{
		Name:        "dart",
		Ext:         ".dart",
		Command:     "dart",
		TestProgram: dartTestProgram,
		Syscalls: []policy.SyscallRule{
			policy.Allow("epoll_create"),
			policy.Allow("epoll_ctl"),
		},
		FS: []string{
			`.*\.(so|dart)`,
			`/proc/meminfo$`,
			`/dev/urandom$`,
		},
		AddressGrace: 786432,
		NProc:        50,
	}, deps)
}
