package executor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gavel/internal/policy"
	"gavel/internal/sandbox"
	"gavel/pkg/utils/logger"
	appErr "gavel/pkg/errors"
)

const (
	selfTestTimeLimit   = 10 * time.Second
	selfTestMemoryLimit = 256 << 20
)

var problemIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Common carries the descriptor, dependencies and memoized probe state
// shared by the lifecycle variants.
type Common struct {
	spec *Spec
	deps Deps

	probeOnce sync.Once
	probeOK   bool
	reason    DisableReason
}

// NewCommon wires a descriptor to its dependencies.
func NewCommon(spec *Spec, deps Deps) Common {
	return Common{spec: spec, deps: deps}
}

func (c *Common) Spec() *Spec {
	return c.spec
}

// Deps exposes the shared collaborators to embedding adapters.
func (c *Common) Deps() Deps {
	return c.deps
}

// FindFirstMapping maps the primary command to its ordered alternate
// names. Without declared alternates the logical name is its own sole
// candidate, so autoconfiguration still discovers bare commands on PATH.
func (c *Common) FindFirstMapping() map[string][]string {
	if len(c.spec.CommandPaths) == 0 {
		return map[string][]string{c.spec.Command: {c.spec.Command}}
	}
	return map[string][]string{c.spec.Command: c.spec.CommandPaths}
}

// DisableReason reports why the probe failed, once it has run.
func (c *Common) DisableReason() DisableReason {
	return c.reason
}

// SetReason records why the adapter is unusable; meaningful only from
// inside a probe.
func (c *Common) SetReason(reason DisableReason) {
	c.reason = reason
}

// CommandPath resolves the primary toolchain binary.
func (c *Common) CommandPath() (string, bool) {
	return c.deps.Registry.Resolve(c.spec.Command)
}

// ProbeWith memoizes the probe outcome; the first call decides permanently.
// check runs first and may veto with its own reason; then the primary
// command must resolve to an executable file, and when sandboxed is set the
// self-test must echo cleanly through the full pipeline.
func (c *Common) ProbeWith(ctx context.Context, rt Runtime, sandboxed bool, check func() bool) bool {
	c.probeOnce.Do(func() {
		if check != nil && !check() {
			return
		}
		path, ok := c.CommandPath()
		if !ok || !IsExecutable(path) {
			c.reason = DisableToolchainMissing
			return
		}
		if sandboxed && !c.selfTest(ctx, rt) {
			if c.reason == "" {
				c.reason = DisableSelfTestFailed
			}
			return
		}
		c.probeOK = true
	})
	return c.probeOK
}

// selfTest compiles and runs the descriptor's test program through the full
// sandboxed pipeline and checks the echoed output.
func (c *Common) selfTest(ctx context.Context, rt Runtime) bool {
	if c.spec.TestProgram == "" {
		return true
	}
	job, err := rt.Open("selftest", c.spec.TestProgram)
	if err != nil {
		logger.Warn(ctx, "self-test setup failed", zap.String("runtime", c.spec.Name), zap.Error(err))
		return false
	}
	defer job.Close()

	if err := job.Compile(ctx); err != nil {
		logger.Warn(ctx, "self-test compile failed", zap.String("runtime", c.spec.Name), zap.Error(err))
		return false
	}
	res, err := c.deps.Engine.Run(ctx, sandbox.Request{
		Argv:        job.CommandLine(),
		Dir:         job.Dir(),
		Stdin:       []byte(SelfTestInput + "\n"),
		Policy:      job.Policy(),
		TimeLimit:   selfTestTimeLimit,
		MemoryLimit: selfTestMemoryLimit,
	})
	if err != nil {
		logger.Warn(ctx, "self-test run failed", zap.String("runtime", c.spec.Name), zap.Error(err))
		return false
	}
	if res.Status != sandbox.StatusExited || res.ExitCode != 0 {
		logger.Warn(ctx, "self-test did not exit cleanly",
			zap.String("runtime", c.spec.Name), zap.Int("exit", res.ExitCode))
		return false
	}
	if !bytes.Equal(bytes.TrimSpace(res.Stdout), []byte(SelfTestInput)) {
		logger.Warn(ctx, "self-test output mismatch",
			zap.String("runtime", c.spec.Name), zap.ByteString("got", res.Stdout))
		return false
	}
	return true
}

// IsExecutable reports whether path is a regular file with an execute bit.
func IsExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0111 != 0
}

// BaseJob is the shared per-submission state: the exclusive working
// directory and the written source file, named after the problem
// identifier. Adapter families embed it and add their own pipeline.
type BaseJob struct {
	spec     *Spec
	deps     Deps
	problem  string
	dir      string
	warnings string
}

// NewJob creates the submission's private working directory (problem id
// plus a fresh uuid, so no two submissions ever share one) and writes the
// source into it.
func NewJob(spec *Spec, deps Deps, problemID, source string) (*BaseJob, error) {
	if problemID == "" {
		return nil, appErr.ValidationError("problem_id", "required")
	}
	if !problemIDPattern.MatchString(problemID) {
		return nil, appErr.Newf(appErr.InvalidParams, "invalid problem id: %q", problemID)
	}
	if deps.WorkRoot == "" {
		return nil, appErr.ValidationError("work_root", "required")
	}
	if err := os.MkdirAll(deps.WorkRoot, 0755); err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "create work root failed")
	}
	dir := filepath.Join(deps.WorkRoot, problemID+"-"+uuid.NewString())
	if err := os.Mkdir(dir, 0755); err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "create submission workdir failed")
	}
	j := &BaseJob{spec: spec, deps: deps, problem: problemID, dir: dir}
	if err := os.WriteFile(j.SourcePath(), []byte(source), 0644); err != nil {
		_ = os.RemoveAll(dir)
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "write source failed")
	}
	return j, nil
}

// File returns the path of a file inside the working directory.
func (j *BaseJob) File(name string) string {
	return filepath.Join(j.dir, name)
}

// SourcePath is the written source file, <problem><ext>.
func (j *BaseJob) SourcePath() string {
	return j.File(j.problem + j.spec.Ext)
}

// Problem returns the submission's problem identifier.
func (j *BaseJob) Problem() string {
	return j.problem
}

func (j *BaseJob) Dir() string {
	return j.dir
}

func (j *BaseJob) Warnings() string {
	return j.warnings
}

// SetWarnings records non-fatal build diagnostics.
func (j *BaseJob) SetWarnings(w string) {
	j.warnings = w
}

func (j *BaseJob) Close() error {
	return os.RemoveAll(j.dir)
}

// BasePolicy assembles the instance policy from the descriptor: the
// exclusive working directory, the shared defaults, then the adapter's own
// entries, all as fresh copies.
func (j *BaseJob) BasePolicy() policy.Policy {
	p := policy.Policy{
		AddressGrace: j.spec.AddressGrace,
		NProc:        j.spec.NProc,
	}
	if p.NProc == 0 {
		p.NProc = -1
	}
	p.FS = append(p.FS, regexp.QuoteMeta(j.dir)+"/")
	p.FS = append(p.FS, defaultFS...)
	p.FS = append(p.FS, j.spec.FS...)
	if len(j.spec.Syscalls) > 0 {
		src := policy.Policy{Syscalls: j.spec.Syscalls}.Clone()
		p.Syscalls = src.Syscalls
	}
	return p
}

// SanitizeDiagnostics normalizes captured compiler output for display:
// trailing newlines stripped, invalid UTF-8 dropped.
func SanitizeDiagnostics(out []byte) string {
	return strings.ToValidUTF8(strings.TrimRight(string(out), "\n"), "")
}
