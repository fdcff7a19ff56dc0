package langs

import (
	"runtime"

	"gavel/internal/executor"
	"gavel/internal/policy"
)

const goTestProgram = `package main

import "os"
import "fmt"
import "bufio"

func main() {
	bio := bufio.NewReader(os.Stdin)
	text, _ := bio.ReadString(0)
	fmt.Print(text)
}
`

// NewGo builds the Go toolchain adapter. The runtime allocates a large
// arena up front, hence the address grace; modify_ldt shows up in the
// scheduler's TLS setup on some hosts.
func NewGo(deps executor.Deps, extraFlags []string) *executor.Compiled {
	return executor.NewCompiled(&executor.Spec{
		Name:         "go",
		Ext:          ".go",
		Command:      "go",
		TestProgram:  goTestProgram,
		Syscalls:     []policy.SyscallRule{policy.Allow("modify_ldt")},
		AddressGrace: 786432,
		NProc:        goNProc(runtime.GOOS),
	}, deps, executor.CompiledOpts{
		CompileArgs: func(tool, source, target string, flags []string) []string {
			argv := append([]string{tool, "build"}, flags...)
			return append(argv, source)
		},
		ExtraFlags: extraFlags,
	})
}

// goNProc caps the process count on hosts where compiled Go programs
// cannot fork runtime workers safely; elsewhere the default (unlimited)
// applies.
func goNProc(goos string) int {
	if goos == "windows" {
		return 1
	}
	return 0
}
