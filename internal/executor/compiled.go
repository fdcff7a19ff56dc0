package executor

import (
	"context"
	"fmt"

	"gavel/internal/policy"
	"gavel/internal/sandbox"
	appErr "gavel/pkg/errors"
)

// artifactSizeLimit bounds files a build step may emit: enough to produce
// the output binary.
const artifactSizeLimit = 256 << 20

// CompiledOpts parameterizes the compiled lifecycle for a concrete
// language.
type CompiledOpts struct {
	// CompileCommand is the logical name of the build tool when it differs
	// from the run command (e.g. raco vs racket).
	CompileCommand string
	// CompileArgs builds the compiler argv from the resolved tool path, the
	// source path, the target artifact path and the operator flags. Flag
	// placement is the adapter's call; the go tool, for one, rejects flags
	// after file arguments.
	CompileArgs func(tool, source, target string, flags []string) []string
	// RunsSource makes CommandLine invoke the run command with the source
	// path instead of the artifact, for toolchains that compile to a cache
	// the interpreter picks up.
	RunsSource bool
	// ExtraFlags are operator-supplied flags handed to CompileArgs.
	ExtraFlags []string
}

// Compiled is the lifecycle variant for ahead-of-time compiled languages:
// compile runs the build tool under the compile budget via the timed
// runner, and the produced artifact is launched directly.
type Compiled struct {
	Common
	opts CompiledOpts
}

// NewCompiled builds a compiled-language adapter. CompileArgs is required.
func NewCompiled(spec *Spec, deps Deps, opts CompiledOpts) *Compiled {
	return &Compiled{Common: NewCommon(spec, deps), opts: opts}
}

// FindFirstMapping also covers the build tool when it differs from the
// run command, so autoconfiguration discovers both.
func (c *Compiled) FindFirstMapping() map[string][]string {
	mapping := c.Common.FindFirstMapping()
	if c.opts.CompileCommand != "" && c.opts.CompileCommand != c.spec.Command {
		mapping[c.opts.CompileCommand] = []string{c.opts.CompileCommand}
	}
	return mapping
}

func (c *Compiled) Probe(ctx context.Context, sandboxed bool) bool {
	return c.ProbeWith(ctx, c, sandboxed, func() bool {
		if c.opts.CompileCommand == "" || c.opts.CompileCommand == c.spec.Command {
			return true
		}
		path, ok := c.deps.Registry.Resolve(c.opts.CompileCommand)
		if !ok || !IsExecutable(path) {
			c.SetReason(DisableToolchainMissing)
			return false
		}
		return true
	})
}

func (c *Compiled) Open(problemID, source string) (Job, error) {
	command, ok := c.CommandPath()
	if !ok {
		return nil, appErr.Newf(appErr.ToolchainMissing, "toolchain %q is not installed", c.spec.Command)
	}
	tool := command
	if c.opts.CompileCommand != "" && c.opts.CompileCommand != c.spec.Command {
		tool, ok = c.deps.Registry.Resolve(c.opts.CompileCommand)
		if !ok {
			return nil, appErr.Newf(appErr.ToolchainMissing, "build tool %q is not installed", c.opts.CompileCommand)
		}
	}
	if c.opts.CompileArgs == nil {
		return nil, appErr.Newf(appErr.ConfigInvalid, "adapter %s declares no compile arguments", c.spec.Name)
	}
	base, err := NewJob(c.spec, c.deps, problemID, source)
	if err != nil {
		return nil, err
	}
	return &compiledJob{BaseJob: base, command: command, tool: tool, opts: c.opts}, nil
}

type compiledJob struct {
	*BaseJob
	command  string
	tool     string
	opts     CompiledOpts
	artifact string
}

func (j *compiledJob) Compile(ctx context.Context) error {
	target := j.File(j.Problem())
	argv := j.opts.CompileArgs(j.tool, j.SourcePath(), target, j.opts.ExtraFlags)

	res, err := j.deps.Runner.Run(ctx, sandbox.TimedRequest{
		Argv:          argv,
		Dir:           j.Dir(),
		TimeLimit:     j.deps.CompileBudget,
		FileSizeLimit: artifactSizeLimit,
	})
	if err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "run compiler failed")
	}
	if res.Cancelled {
		return appErr.Wrapf(ctx.Err(), appErr.JudgeSystemError, "compile cancelled")
	}
	diagnostics := SanitizeDiagnostics(res.Stderr)
	if res.Killed {
		return &CompileError{
			Output:   AppendDiagnostic(diagnostics, fmt.Sprintf("compiler killed after exceeding the %s time budget", j.deps.CompileBudget)),
			TimedOut: true,
		}
	}
	if res.ExitCode != 0 {
		return &CompileError{Output: diagnostics}
	}
	j.SetWarnings(diagnostics)
	j.artifact = target
	return nil
}

func (j *compiledJob) CommandLine() []string {
	if j.opts.RunsSource {
		return []string{j.command, j.SourcePath()}
	}
	return []string{j.artifact}
}

func (j *compiledJob) Executable() string {
	if j.opts.RunsSource {
		return j.command
	}
	return j.artifact
}

func (j *compiledJob) Policy() policy.Policy {
	return j.BasePolicy()
}

// AppendDiagnostic joins diagnostic fragments on one newline, skipping
// empty parts.
func AppendDiagnostic(existing, line string) string {
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}
