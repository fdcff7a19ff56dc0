// Package langs holds the concrete high-level language adapters. Each
// constructor bakes the language's descriptor and hands the lifecycle to
// the interpreted or compiled variant in the parent package.
package langs

import "gavel/internal/executor"

// Factories lists every adapter constructor. flags carries operator-supplied
// extra compiler flags keyed by adapter name; a missing key means none.
func Factories(flags map[string][]string) []executor.Factory {
	return []executor.Factory{
		func(deps executor.Deps) executor.Runtime { return NewPython(deps) },
		func(deps executor.Deps) executor.Runtime { return NewRuby(deps) },
		func(deps executor.Deps) executor.Runtime { return NewDart(deps) },
		func(deps executor.Deps) executor.Runtime { return NewGo(deps, flags["go"]) },
		func(deps executor.Deps) executor.Runtime { return NewOCaml(deps, flags["ocaml"]) },
		func(deps executor.Deps) executor.Runtime { return NewRacket(deps, flags["racket"]) },
	}
}
