package langs

import "gavel/internal/executor"

// NewOCaml builds the OCaml adapter. The logical "ocaml" name resolves to
// the native-code compiler; the output binary runs standalone.
func NewOCaml(deps executor.Deps, extraFlags []string) *executor.Compiled {
	return executor.NewCompiled(&executor.Spec{
		Name:         "ocaml",
		Ext:          ".ml",
		Command:      "ocaml",
		CommandPaths: []string{"ocamlopt"},
		TestProgram:  "print_endline (input_line stdin)",
	}, deps, executor.CompiledOpts{
		CompileArgs: func(tool, source, target string, flags []string) []string {
			argv := append([]string{tool}, flags...)
			return append(argv, source, "-o", target)
		},
		ExtraFlags: extraFlags,
	})
}
