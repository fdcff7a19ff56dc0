// Package result defines submission outcomes and verdict mapping.
package result

import (
	"gavel/internal/sandbox"
)

// Verdict represents the final outcome of a submission.
type Verdict string

const (
	VerdictAC  Verdict = "AC"
	VerdictCE  Verdict = "CE"
	VerdictRE  Verdict = "RE"
	VerdictRF  Verdict = "RF" // restricted function: security policy violation
	VerdictTLE Verdict = "TLE"
	VerdictMLE Verdict = "MLE"
	VerdictOLE Verdict = "OLE"
	VerdictSE  Verdict = "SE"
)

// ExecutionResult is the unified per-submission outcome.
type ExecutionResult struct {
	SubmissionID string
	Verdict      Verdict
	ExitCode     int
	WallTimeMs   int64
	MemoryKB     int64
	Stdout       string
	Stderr       string
	// CompileLog carries verbatim build diagnostics; only populated for CE
	// and for successful builds that emitted warnings.
	CompileLog string
}

// FromRun maps a sandbox result to a verdict. Policy violations map to RF
// without carrying the denied syscall or path; that detail stays in the
// operator log.
func FromRun(res sandbox.Result) Verdict {
	switch res.Status {
	case sandbox.StatusPolicyViolation:
		return VerdictRF
	case sandbox.StatusTimeLimit:
		return VerdictTLE
	case sandbox.StatusMemoryLimit:
		return VerdictMLE
	case sandbox.StatusOutputLimit:
		return VerdictOLE
	}
	if res.ExitCode != 0 {
		return VerdictRE
	}
	return VerdictAC
}
