package langs

import "gavel/internal/executor"

// NewPython builds the CPython adapter. The filesystem allowlist covers
// the standard library tree and the bytecode cache files the interpreter
// writes as a side effect of imports.
func NewPython(deps executor.Deps) *executor.Interpreted {
	return executor.NewInterpreted(&executor.Spec{
		Name:         "python",
		Ext:          ".py",
		Command:      "python",
		CommandPaths: []string{"python3", "python3.12", "python3.11", "python"},
		TestProgram:  "print(__import__('sys').stdin.read())",
		FS: []string{
			`.*\.(?:py[co]?$)`,
			`.*/lib(?:32|64)?/python[\d.]+/.*`,
			`.*/lib/locale/`,
		},
	}, deps)
}
