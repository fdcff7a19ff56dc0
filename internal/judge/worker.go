// Package judge runs one submission end to end: adapter lookup, compile,
// sandboxed execution and verdict mapping. Workers are stateless; run as
// many concurrently as the host allows.
package judge

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"gavel/internal/executor"
	"gavel/internal/result"
	"gavel/internal/sandbox"
	appErr "gavel/pkg/errors"
	"gavel/pkg/utils/contextkey"
	"gavel/pkg/utils/logger"
)

// Submission is one judging request.
type Submission struct {
	ID          string
	Language    string
	ProblemID   string
	Source      string
	Stdin       []byte
	TimeLimit   time.Duration
	MemoryLimit int64
}

// Lookup resolves an available adapter by name. *executor.Set satisfies it.
type Lookup interface {
	Get(name string) (executor.Runtime, bool)
}

// Worker judges submissions one at a time.
type Worker struct {
	runtimes Lookup
	engine   sandbox.Engine
}

func NewWorker(runtimes Lookup, engine sandbox.Engine) *Worker {
	return &Worker{runtimes: runtimes, engine: engine}
}

// Judge runs the full pipeline for one submission. Submission outcomes,
// compile errors included, come back as a result with the matching
// verdict; the error return is reserved for faults of the judge itself.
func (w *Worker) Judge(ctx context.Context, sub Submission) (result.ExecutionResult, error) {
	ctx = context.WithValue(ctx, contextkey.SubmissionID, sub.ID)
	out := result.ExecutionResult{SubmissionID: sub.ID}

	rt, ok := w.runtimes.Get(sub.Language)
	if !ok {
		return out, appErr.Newf(appErr.LanguageNotSupported, "language %q is not available", sub.Language)
	}
	ctx = context.WithValue(ctx, contextkey.RuntimeName, rt.Spec().Name)

	job, err := rt.Open(sub.ProblemID, sub.Source)
	if err != nil {
		return out, appErr.Wrapf(err, appErr.JudgeSystemError, "open submission failed")
	}
	defer job.Close()

	if err := ctx.Err(); err != nil {
		return out, appErr.Wrapf(err, appErr.JudgeSystemError, "submission cancelled")
	}

	if err := job.Compile(ctx); err != nil {
		var ce *executor.CompileError
		if errors.As(err, &ce) {
			out.Verdict = result.VerdictCE
			out.CompileLog = ce.Output
			return out, nil
		}
		return out, appErr.Wrapf(err, appErr.CompileFailed, "compile step failed")
	}
	out.CompileLog = job.Warnings()

	if err := ctx.Err(); err != nil {
		return out, appErr.Wrapf(err, appErr.JudgeSystemError, "submission cancelled")
	}

	res, err := w.engine.Run(ctx, sandbox.Request{
		Argv:        job.CommandLine(),
		Dir:         job.Dir(),
		Stdin:       sub.Stdin,
		Policy:      job.Policy(),
		TimeLimit:   sub.TimeLimit,
		MemoryLimit: sub.MemoryLimit,
	})
	if err != nil {
		return out, appErr.Wrapf(err, appErr.SandboxError, "sandboxed run failed")
	}

	out.Verdict = result.FromRun(res)
	out.ExitCode = res.ExitCode
	out.WallTimeMs = res.WallTimeMs
	out.MemoryKB = res.MemoryKB
	out.Stdout = string(res.Stdout)
	out.Stderr = string(res.Stderr)
	if out.Verdict == result.VerdictRF {
		// Full detail stays in the operator log; the submitter only sees
		// the verdict.
		logger.Warn(ctx, "restricted operation",
			zap.String("syscall", res.DeniedSyscall),
			zap.String("path", res.DeniedPath))
	}
	return out, nil
}
