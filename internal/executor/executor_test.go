package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gavel/internal/policy"
	"gavel/internal/sandbox"
	"gavel/internal/toolchain"
)

type fakeEngine struct {
	runs int
	res  sandbox.Result
	err  error
}

func (e *fakeEngine) Run(ctx context.Context, req sandbox.Request) (sandbox.Result, error) {
	e.runs++
	return e.res, e.err
}

type fakeRunner struct {
	runs int
	res  sandbox.TimedResult
}

func (r *fakeRunner) Run(ctx context.Context, req sandbox.TimedRequest) (sandbox.TimedResult, error) {
	r.runs++
	return r.res, nil
}

// echoEngine pretends the program echoed the self-test line back.
func echoEngine() *fakeEngine {
	return &fakeEngine{res: sandbox.Result{
		Status: sandbox.StatusExited,
		Stdout: []byte(SelfTestInput + "\n"),
	}}
}

// shPath returns an executable that exists on disk; the engine itself is
// faked, the probe only stats the path.
func shPath(t *testing.T) string {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh on this host")
	}
	return "/bin/sh"
}

func testSpec() *Spec {
	return &Spec{
		Name:        "fake",
		Ext:         ".txt",
		Command:     "fakelang",
		TestProgram: "irrelevant",
		FS:          []string{`/usr/share/fakelang/`},
	}
}

func testDeps(t *testing.T, engine sandbox.Engine, runner sandbox.TimedRunner, seed map[string]string) Deps {
	t.Helper()
	return Deps{
		Registry:      toolchain.NewRegistry(seed),
		Engine:        engine,
		Runner:        runner,
		WorkRoot:      t.TempDir(),
		CompileBudget: 10 * time.Second,
	}
}

func TestProbeIsIdempotent(t *testing.T) {
	engine := echoEngine()
	deps := testDeps(t, engine, nil, map[string]string{"fakelang": shPath(t)})
	rt := NewInterpreted(testSpec(), deps)

	first := rt.Probe(context.Background(), true)
	if !first {
		t.Fatal("Probe() = false with a resolvable command and clean echo")
	}
	runsAfterFirst := engine.runs
	if runsAfterFirst != 1 {
		t.Fatalf("self-test ran %d times, want 1", runsAfterFirst)
	}
	if second := rt.Probe(context.Background(), true); second != first {
		t.Error("second Probe() disagrees with the first")
	}
	if engine.runs != runsAfterFirst {
		t.Errorf("self-test ran again on a repeat probe: %d runs", engine.runs)
	}
}

func TestProbeMissingCommand(t *testing.T) {
	engine := echoEngine()
	deps := testDeps(t, engine, nil, nil)
	rt := NewInterpreted(testSpec(), deps)

	if rt.Probe(context.Background(), true) {
		t.Fatal("Probe() = true with no command resolvable")
	}
	if got := rt.DisableReason(); got != DisableToolchainMissing {
		t.Errorf("DisableReason() = %q, want %q", got, DisableToolchainMissing)
	}
	if engine.runs != 0 {
		t.Errorf("self-test ran %d times, want 0", engine.runs)
	}
}

func TestProbeSelfTestMismatch(t *testing.T) {
	engine := &fakeEngine{res: sandbox.Result{Status: sandbox.StatusExited, Stdout: []byte("wrong\n")}}
	deps := testDeps(t, engine, nil, map[string]string{"fakelang": shPath(t)})
	rt := NewInterpreted(testSpec(), deps)

	if rt.Probe(context.Background(), true) {
		t.Fatal("Probe() = true on a self-test mismatch")
	}
	if got := rt.DisableReason(); got != DisableSelfTestFailed {
		t.Errorf("DisableReason() = %q, want %q", got, DisableSelfTestFailed)
	}
}

func TestOpenRejectsBadProblemID(t *testing.T) {
	deps := testDeps(t, nil, nil, map[string]string{"fakelang": shPath(t)})
	rt := NewInterpreted(testSpec(), deps)

	for _, id := range []string{"", "../escape", "a b", "x/y"} {
		if _, err := rt.Open(id, "src"); err == nil {
			t.Errorf("Open(%q) succeeded, want error", id)
		}
	}
}

func TestJobLifecycle(t *testing.T) {
	deps := testDeps(t, nil, nil, map[string]string{"fakelang": "/opt/fakelang"})
	rt := NewInterpreted(testSpec(), deps)

	job, err := rt.Open("aplusb", "hello source\n")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	dir := job.Dir()
	src := filepath.Join(dir, "aplusb.txt")
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("source not written: %v", err)
	}
	if string(data) != "hello source\n" {
		t.Errorf("source = %q, want the submitted text", data)
	}

	cmdline := job.CommandLine()
	if len(cmdline) != 2 || cmdline[0] != "/opt/fakelang" || cmdline[1] != src {
		t.Errorf("CommandLine() = %v, want interpreter then source path", cmdline)
	}

	if err := job.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("working directory survives Close: %v", err)
	}
}

func TestJobDirsAreExclusive(t *testing.T) {
	deps := testDeps(t, nil, nil, map[string]string{"fakelang": "/opt/fakelang"})
	rt := NewInterpreted(testSpec(), deps)

	a, err := rt.Open("aplusb", "x")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := rt.Open("aplusb", "y")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if a.Dir() == b.Dir() {
		t.Errorf("two submissions share working directory %q", a.Dir())
	}
}

func TestPolicyIsACopy(t *testing.T) {
	spec := testSpec()
	spec.Syscalls = []policy.SyscallRule{policy.Allow("epoll_create")}
	deps := testDeps(t, nil, nil, map[string]string{"fakelang": "/opt/fakelang"})
	rt := NewInterpreted(spec, deps)

	job, err := rt.Open("aplusb", "x")
	if err != nil {
		t.Fatal(err)
	}
	defer job.Close()

	p := job.Policy()
	p.FS = append(p.FS, "/tmp/private")
	p.Syscalls[0].Name = "mutated"

	again := job.Policy()
	for _, pattern := range again.FS {
		if pattern == "/tmp/private" {
			t.Error("instance mutation leaked into a later Policy() call")
		}
	}
	if spec.Syscalls[0].Name != "epoll_create" {
		t.Errorf("descriptor syscall mutated to %q", spec.Syscalls[0].Name)
	}
}

func TestPolicyIncludesWorkDirAndDefaults(t *testing.T) {
	deps := testDeps(t, nil, nil, map[string]string{"fakelang": "/opt/fakelang"})
	rt := NewInterpreted(testSpec(), deps)

	job, err := rt.Open("aplusb", "x")
	if err != nil {
		t.Fatal(err)
	}
	defer job.Close()

	p := job.Policy()
	patterns, err := p.CompileFS()
	if err != nil {
		t.Fatalf("CompileFS() error = %v", err)
	}
	if !policy.AllowsPath(patterns, filepath.Join(job.Dir(), "aplusb.txt")) {
		t.Error("working directory not allowed")
	}
	if !policy.AllowsPath(patterns, "/lib/x86_64-linux-gnu/libc.so.6") {
		t.Error("shared libraries not allowed by defaults")
	}
	if !policy.AllowsPath(patterns, "/usr/share/fakelang/prelude") {
		t.Error("descriptor filesystem entries not honored")
	}
	if policy.AllowsPath(patterns, "/etc/shadow") {
		t.Error("unrelated path allowed")
	}
}

func TestCompileTimeoutDiagnostic(t *testing.T) {
	runner := &fakeRunner{res: sandbox.TimedResult{Killed: true, Stderr: []byte("...")}}
	deps := testDeps(t, nil, runner, map[string]string{"cc": "/usr/bin/cc"})
	rt := NewCompiled(&Spec{Name: "cc", Ext: ".c", Command: "cc"}, deps, CompiledOpts{
		CompileArgs: func(tool, source, target string, flags []string) []string {
			return append(append([]string{tool}, flags...), source, "-o", target)
		},
	})

	job, err := rt.Open("aplusb", "int main(){}")
	if err != nil {
		t.Fatal(err)
	}
	defer job.Close()

	err = job.Compile(context.Background())
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("Compile() error = %v, want *CompileError", err)
	}
	if !ce.TimedOut {
		t.Error("TimedOut = false for a killed compiler")
	}
	if !strings.Contains(ce.Output, "time budget") {
		t.Errorf("Output = %q, want a time-based diagnostic", ce.Output)
	}
}

func TestCompileFailureDiagnostic(t *testing.T) {
	runner := &fakeRunner{res: sandbox.TimedResult{ExitCode: 1, Stderr: []byte("main.c:1: error: expected ';'\n")}}
	deps := testDeps(t, nil, runner, map[string]string{"cc": "/usr/bin/cc"})
	rt := NewCompiled(&Spec{Name: "cc", Ext: ".c", Command: "cc"}, deps, CompiledOpts{
		CompileArgs: func(tool, source, target string, flags []string) []string {
			return append(append([]string{tool}, flags...), source, "-o", target)
		},
	})

	job, err := rt.Open("aplusb", "int main({}")
	if err != nil {
		t.Fatal(err)
	}
	defer job.Close()

	err = job.Compile(context.Background())
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("Compile() error = %v, want *CompileError", err)
	}
	if ce.TimedOut {
		t.Error("TimedOut = true for a plain diagnostic failure")
	}
	if !strings.Contains(ce.Output, "expected ';'") {
		t.Errorf("Output = %q, want the captured diagnostic", ce.Output)
	}
}

func TestCompileCancelled(t *testing.T) {
	runner := &fakeRunner{res: sandbox.TimedResult{Cancelled: true}}
	deps := testDeps(t, nil, runner, map[string]string{"cc": "/usr/bin/cc"})
	rt := NewCompiled(&Spec{Name: "cc", Ext: ".c", Command: "cc"}, deps, CompiledOpts{
		CompileArgs: func(tool, source, target string, flags []string) []string {
			return append(append([]string{tool}, flags...), source, "-o", target)
		},
	})

	job, err := rt.Open("aplusb", "int main(){}")
	if err != nil {
		t.Fatal(err)
	}
	defer job.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = job.Compile(ctx)
	if err == nil {
		t.Fatal("Compile() = nil for a cancelled submission")
	}
	var ce *CompileError
	if errors.As(err, &ce) {
		t.Errorf("Compile() error = %v, cancellation reported as a compile error", err)
	}
}

func TestCompiledMappingIncludesCompileCommand(t *testing.T) {
	deps := testDeps(t, nil, nil, nil)
	rt := NewCompiled(&Spec{Name: "rkt", Ext: ".rkt", Command: "racket"}, deps, CompiledOpts{
		CompileCommand: "raco",
		CompileArgs: func(tool, source, target string, flags []string) []string {
			return []string{tool, "make", source}
		},
	})

	mapping := rt.FindFirstMapping()
	for _, logical := range []string{"racket", "raco"} {
		candidates, ok := mapping[logical]
		if !ok {
			t.Fatalf("mapping lacks %q", logical)
		}
		if len(candidates) != 1 || candidates[0] != logical {
			t.Errorf("candidates for %q = %v, want the name itself", logical, candidates)
		}
	}
}

func TestInitPartitionsAdapters(t *testing.T) {
	engine := echoEngine()
	deps := testDeps(t, engine, nil, map[string]string{"fakelang": shPath(t)})

	good := func(d Deps) Runtime { return NewInterpreted(testSpec(), d) }
	missing := func(d Deps) Runtime {
		return NewInterpreted(&Spec{Name: "ghost", Ext: ".gh", Command: "ghostlang"}, d)
	}

	set := Init(context.Background(), deps, []Factory{good, missing}, true)
	if _, ok := set.Get("fake"); !ok {
		t.Error("probed adapter not available")
	}
	if _, ok := set.Get("ghost"); ok {
		t.Error("unresolvable adapter reported available")
	}
	if reason := set.Disabled()["ghost"]; reason != DisableToolchainMissing {
		t.Errorf("disabled reason = %q, want %q", reason, DisableToolchainMissing)
	}
	if names := set.Names(); len(names) != 1 || names[0] != "fake" {
		t.Errorf("Names() = %v, want [fake]", names)
	}
}

func TestInitResolvesBareCommandFromPath(t *testing.T) {
	shPath(t)
	engine := echoEngine()
	deps := testDeps(t, engine, nil, nil)

	shell := func(d Deps) Runtime {
		return NewInterpreted(&Spec{Name: "shell", Ext: ".sh", Command: "sh"}, d)
	}

	set := Init(context.Background(), deps, []Factory{shell}, true)
	if _, ok := set.Get("shell"); !ok {
		t.Fatalf("adapter with a bare command not discovered on PATH, disabled: %v", set.Disabled())
	}
	if path, ok := deps.Registry.Resolve("sh"); !ok || path == "" {
		t.Errorf("Resolve(sh) = %q, %v after autoconfiguration", path, ok)
	}
}
