package langs

import "gavel/internal/executor"

// NewRuby builds the Ruby adapter. The versioned binary names are tried in
// order during autoconfiguration; whichever resolves first wins.
func NewRuby(deps executor.Deps) *executor.Interpreted {
	return executor.NewInterpreted(&executor.Spec{
		Name:         "ruby",
		Ext:          ".rb",
		Command:      "ruby",
		CommandPaths: []string{"ruby3.2", "ruby3.0", "ruby2.7", "ruby"},
		TestProgram:  "puts gets",
		FS: []string{
			`.*\.rb$`,
			`/usr/lib/ruby/gems/`,
		},
		AddressGrace: 65536,
	}, deps)
}
