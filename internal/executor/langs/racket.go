package langs

import (
	"gavel/internal/executor"
	"gavel/internal/policy"
)

const racketTestProgram = `#lang racket
(displayln (read-line))
`

// prSetName is the prctl operation the Racket runtime uses to label its
// threads; nothing else on prctl is allowed.
const prSetName = 15

// NewRacket builds the Racket adapter. raco compiles the module to a
// bytecode cache next to the source and racket then runs the source file,
// picking the cache up.
func NewRacket(deps executor.Deps, extraFlags []string) *executor.Compiled {
	return executor.NewCompiled(&executor.Spec{
		Name:        "racket",
		Ext:         ".rkt",
		Command:     "racket",
		TestProgram: racketTestProgram,
		Syscalls: []policy.SyscallRule{
			policy.Allow("epoll_create"),
			policy.Allow("epoll_wait"),
			policy.Allow("poll"),
			policy.AllowWhen("prctl", policy.ArgCondition{Arg: 0, Op: policy.CompareEqual, Value: prSetName}),
		},
		FS: []string{
			`.*\.(?:rkt?$|zo$)`,
			`.*racket.*`,
			`/etc/nsswitch\.conf$`,
			`/etc/passwd$`,
		},
		AddressGrace: 131072,
	}, deps, executor.CompiledOpts{
		CompileCommand: "raco",
		CompileArgs: func(tool, source, target string, flags []string) []string {
			argv := append([]string{tool, "make"}, flags...)
			return append(argv, source)
		},
		RunsSource: true,
		ExtraFlags: extraFlags,
	})
}
