package langs

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"gavel/internal/executor"
	"gavel/internal/policy"
	"gavel/internal/sandbox"
	"gavel/internal/toolchain"
)

type captureRunner struct {
	argv [][]string
	res  sandbox.TimedResult
}

func (r *captureRunner) Run(ctx context.Context, req sandbox.TimedRequest) (sandbox.TimedResult, error) {
	r.argv = append(r.argv, req.Argv)
	return r.res, nil
}

func testDeps(t *testing.T, runner sandbox.TimedRunner, seed map[string]string) executor.Deps {
	t.Helper()
	return executor.Deps{
		Registry:      toolchain.NewRegistry(seed),
		Runner:        runner,
		WorkRoot:      t.TempDir(),
		CompileBudget: 10 * time.Second,
	}
}

func TestRubyFindFirstMapping(t *testing.T) {
	rt := NewRuby(executor.Deps{})
	want := map[string][]string{"ruby": {"ruby3.2", "ruby3.0", "ruby2.7", "ruby"}}
	if got := rt.FindFirstMapping(); !reflect.DeepEqual(got, want) {
		t.Errorf("FindFirstMapping() = %v, want %v", got, want)
	}
}

func TestPythonCommandLine(t *testing.T) {
	deps := testDeps(t, nil, map[string]string{"python": "/usr/bin/python3"})
	rt := NewPython(deps)
	job, err := rt.Open("aplusb", "print(input())\n")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer job.Close()

	if err := job.Compile(context.Background()); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	cmdline := job.CommandLine()
	if len(cmdline) != 2 || cmdline[0] != "/usr/bin/python3" {
		t.Errorf("CommandLine() = %v, want interpreter then source", cmdline)
	}
}

func TestGoCompileArgs(t *testing.T) {
	runner := &captureRunner{}
	deps := testDeps(t, runner, map[string]string{"go": "/usr/local/go/bin/go"})
	rt := NewGo(deps, []string{"-gcflags=-m"})
	job, err := rt.Open("aplusb", "package main\n\nfunc main() {}\n")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer job.Close()

	if err := job.Compile(context.Background()); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(runner.argv) != 1 {
		t.Fatalf("compiler ran %d times, want 1", len(runner.argv))
	}
	argv := runner.argv[0]
	want := []string{"/usr/local/go/bin/go", "build", "-gcflags=-m", filepath.Join(job.Dir(), "aplusb.go")}
	if !reflect.DeepEqual(argv, want) {
		t.Errorf("compile argv = %v, want flags before the source file", argv)
	}
}

func TestGoNProc(t *testing.T) {
	if got := goNProc("windows"); got != 1 {
		t.Errorf("goNProc(windows) = %d, want 1", got)
	}
	if got := goNProc("linux"); got != 0 {
		t.Errorf("goNProc(linux) = %d, want 0", got)
	}
}

func TestRacketRunsSource(t *testing.T) {
	runner := &captureRunner{}
	deps := testDeps(t, runner, map[string]string{
		"racket": "/usr/bin/racket",
		"raco":   "/usr/bin/raco",
	})
	rt := NewRacket(deps, nil)
	job, err := rt.Open("aplusb", "#lang racket\n(displayln (read-line))\n")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer job.Close()

	if err := job.Compile(context.Background()); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if got := runner.argv[0][:2]; !reflect.DeepEqual(got, []string{"/usr/bin/raco", "make"}) {
		t.Errorf("compile argv = %v, want raco make prefix", runner.argv[0])
	}
	cmdline := job.CommandLine()
	if len(cmdline) != 2 || cmdline[0] != "/usr/bin/racket" {
		t.Errorf("CommandLine() = %v, want racket then source", cmdline)
	}
	if job.Executable() != "/usr/bin/racket" {
		t.Errorf("Executable() = %q, want the interpreter", job.Executable())
	}
}

func TestRacketMissingRaco(t *testing.T) {
	deps := testDeps(t, nil, map[string]string{"racket": "/usr/bin/racket"})
	rt := NewRacket(deps, nil)
	if _, err := rt.Open("aplusb", "#lang racket\n"); err == nil {
		t.Fatal("Open() succeeded with no raco resolvable")
	}
}

func TestRacketPrctlPolicy(t *testing.T) {
	spec := NewRacket(executor.Deps{}, nil).Spec()
	var prctl *policy.SyscallRule
	for i := range spec.Syscalls {
		if spec.Syscalls[i].Name == "prctl" {
			prctl = &spec.Syscalls[i]
		}
	}
	if prctl == nil {
		t.Fatal("no prctl rule declared")
	}
	if !prctl.Permits("prctl", [6]uint64{15}) {
		t.Error("prctl(PR_SET_NAME) denied, want allowed")
	}
	if prctl.Permits("prctl", [6]uint64{4}) {
		t.Error("prctl(4) allowed, want denied")
	}
}

func TestDartDescriptor(t *testing.T) {
	spec := NewDart(executor.Deps{}).Spec()
	if spec.NProc != 50 {
		t.Errorf("NProc = %d, want 50", spec.NProc)
	}
	if spec.AddressGrace != 786432 {
		t.Errorf("AddressGrace = %d, want 786432", spec.AddressGrace)
	}
}

func TestFactoriesConstructAll(t *testing.T) {
	deps := executor.Deps{Registry: toolchain.NewRegistry(nil)}
	factories := Factories(map[string][]string{"go": {"-trimpath"}})
	names := make(map[string]bool)
	for _, factory := range factories {
		rt := factory(deps)
		if rt == nil {
			t.Fatal("factory returned nil runtime")
		}
		names[rt.Spec().Name] = true
	}
	for _, want := range []string{"python", "ruby", "dart", "go", "ocaml", "racket"} {
		if !names[want] {
			t.Errorf("missing adapter %q", want)
		}
	}
}
