package executor

import (
	"context"

	"gavel/internal/policy"
	appErr "gavel/pkg/errors"
)

// Interpreted is the lifecycle variant for languages with no compile step:
// the artifact is the source file itself and the interpreter runs it
// directly. The descriptor's FS list must include the interpreter's
// standard-library search paths and any bytecode-cache patterns it writes,
// or execution dies on a denied file access instead of a language error.
type Interpreted struct {
	Common
}

// NewInterpreted builds an interpreted-language adapter from its descriptor.
func NewInterpreted(spec *Spec, deps Deps) *Interpreted {
	return &Interpreted{Common: NewCommon(spec, deps)}
}

func (i *Interpreted) Probe(ctx context.Context, sandboxed bool) bool {
	return i.ProbeWith(ctx, i, sandboxed, nil)
}

func (i *Interpreted) Open(problemID, source string) (Job, error) {
	command, ok := i.CommandPath()
	if !ok {
		return nil, appErr.Newf(appErr.ToolchainMissing, "interpreter %q is not installed", i.spec.Command)
	}
	base, err := NewJob(i.spec, i.deps, problemID, source)
	if err != nil {
		return nil, err
	}
	return &interpretedJob{BaseJob: base, command: command}, nil
}

type interpretedJob struct {
	*BaseJob
	command string
}

// Compile is a no-op; the source path is the artifact.
func (j *interpretedJob) Compile(ctx context.Context) error {
	return nil
}

func (j *interpretedJob) CommandLine() []string {
	return []string{j.command, j.SourcePath()}
}

func (j *interpretedJob) Executable() string {
	return j.command
}

func (j *interpretedJob) Policy() policy.Policy {
	return j.BasePolicy()
}
