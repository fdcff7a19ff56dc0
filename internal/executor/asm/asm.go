// Package asm implements the assembly adapter family. One Runtime covers
// one (syntax, architecture) pair; the syntax decides how the assembler is
// invoked and the injected Arch profile decides everything else, so the
// pipeline itself is architecture-agnostic: extract features, assemble to
// one object file, link, then run natively or under qemu user-mode
// emulation.
package asm

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gavel/internal/executor"
	"gavel/internal/policy"
	"gavel/internal/sandbox"
	appErr "gavel/pkg/errors"
)

// qemuAddressGrace is the extra address-space margin the emulator itself
// needs on top of the submission's limit.
const qemuAddressGrace = 65536

const artifactSizeLimit = 256 << 20

var (
	featureDirective = regexp.MustCompile(`(?m)^[#;@|!][ \t]*features[ \t]*:[ \t]*([\w \t,]+)`)
	featureSplit     = regexp.MustCompile(`[\s,]+`)
)

// syntax is the per-assembler variation point: argument shape, the
// autoconfiguration mapping and any source convention that implies a
// feature beyond the explicit directive.
type syntax struct {
	assembleArgs  func(asPath, source, object string) []string
	mapping       func(a Arch) map[string][]string
	extraFeatures func(source string) []string
}

// Runtime is one assembler/architecture adapter.
type Runtime struct {
	executor.Common
	arch Arch
	syn  syntax

	// canDebug is swapped out in tests to simulate foreign hosts.
	canDebug func(ISA) bool
}

func newRuntime(spec *executor.Spec, arch Arch, syn syntax, deps executor.Deps) *Runtime {
	return &Runtime{
		Common:   executor.NewCommon(spec, deps),
		arch:     arch,
		syn:      syn,
		canDebug: CanDebug,
	}
}

// Arch returns the injected architecture profile.
func (r *Runtime) Arch() Arch {
	return r.arch
}

func (r *Runtime) useQEMU() bool {
	return r.arch.QEMUPath != "" && isFile(r.arch.QEMUPath)
}

func (r *Runtime) FindFirstMapping() map[string][]string {
	return r.syn.mapping(r.arch)
}

// Probe checks host capability and profile completeness before the shared
// toolchain-and-self-test path. A host that can neither natively trace the
// target architecture nor emulate it fails immediately with a distinct
// reason, skipping the guaranteed-failing self-test.
func (r *Runtime) Probe(ctx context.Context, sandboxed bool) bool {
	return r.ProbeWith(ctx, r, sandboxed, r.hostCheck)
}

func (r *Runtime) hostCheck() bool {
	if !r.useQEMU() && !r.canDebug(r.arch.ISA) {
		r.SetReason(executor.DisableNoNativeDebug)
		return false
	}
	ld, ok := r.Deps().Registry.Resolve(r.arch.LDName)
	if !ok || !executor.IsExecutable(ld) {
		r.SetReason(executor.DisableToolchainMissing)
		return false
	}
	if r.arch.DynamicLinker == "" || len(r.arch.CRTPre) == 0 || len(r.arch.CRTPost) == 0 {
		r.SetReason(executor.DisableToolchainMissing)
		return false
	}
	if !isFile(r.arch.DynamicLinker) {
		r.SetReason(executor.DisableToolchainMissing)
		return false
	}
	for _, crt := range r.arch.CRTPre {
		if !isFile(crt) {
			r.SetReason(executor.DisableToolchainMissing)
			return false
		}
	}
	for _, crt := range r.arch.CRTPost {
		if !isFile(crt) {
			r.SetReason(executor.DisableToolchainMissing)
			return false
		}
	}
	return true
}

func (r *Runtime) Open(problemID, source string) (executor.Job, error) {
	asPath, ok := r.CommandPath()
	if !ok {
		return nil, appErr.Newf(appErr.ToolchainMissing, "assembler %q is not installed", r.Spec().Command)
	}
	ldPath, ok := r.Deps().Registry.Resolve(r.arch.LDName)
	if !ok {
		return nil, appErr.Newf(appErr.ToolchainMissing, "linker %q is not installed", r.arch.LDName)
	}
	features := findFeatures(source, r.syn.extraFeatures)
	base, err := executor.NewJob(r.Spec(), r.Deps(), problemID, source+"\n")
	if err != nil {
		return nil, err
	}
	return &asmJob{
		BaseJob:  base,
		rt:       r,
		asPath:   asPath,
		ldPath:   ldPath,
		features: features,
	}, nil
}

// findFeatures collects the token set from the first feature directive
// line, plus any tokens the syntax convention implies.
func findFeatures(source string, extra func(string) []string) map[string]struct{} {
	features := make(map[string]struct{})
	if m := featureDirective.FindStringSubmatch(source); m != nil {
		for _, tok := range featureSplit.Split(m[1], -1) {
			if tok != "" {
				features[tok] = struct{}{}
			}
		}
	}
	if extra != nil {
		for _, tok := range extra(source) {
			features[tok] = struct{}{}
		}
	}
	return features
}

// linkArgv builds the full link command. With libc the object list is
// wrapped with the dynamic-linker flag, the pre-runtime objects and -lc in
// front and the post-runtime objects behind, in that relative order.
func linkArgv(a Arch, ldPath, target string, objects []string, libc bool) []string {
	toLink := objects
	if libc {
		aug := []string{"-dynamic-linker", a.DynamicLinker}
		aug = append(aug, a.CRTPre...)
		aug = append(aug, "-lc")
		aug = append(aug, objects...)
		toLink = append(aug, a.CRTPost...)
	}
	return append([]string{ldPath, "-s", "-o", target}, toLink...)
}

type asmJob struct {
	*executor.BaseJob
	rt       *Runtime
	asPath   string
	ldPath   string
	features map[string]struct{}
	artifact string
}

func (j *asmJob) Compile(ctx context.Context) error {
	deps := j.rt.Deps()
	object := j.File(j.Problem() + ".o")

	res, err := deps.Runner.Run(ctx, sandbox.TimedRequest{
		Argv:          j.rt.syn.assembleArgs(j.asPath, j.SourcePath(), object),
		Dir:           j.Dir(),
		TimeLimit:     deps.CompileBudget,
		FileSizeLimit: artifactSizeLimit,
	})
	if err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "run assembler failed")
	}
	if res.Cancelled {
		return appErr.Wrapf(ctx.Err(), appErr.JudgeSystemError, "assemble cancelled")
	}
	asOut := executor.SanitizeDiagnostics(res.Stderr)
	if res.Killed {
		return &executor.CompileError{
			Output:   executor.AppendDiagnostic(asOut, fmt.Sprintf("assembler killed after exceeding the %s time budget", deps.CompileBudget)),
			TimedOut: true,
		}
	}
	if res.ExitCode != 0 {
		return &executor.CompileError{Output: asOut}
	}

	_, libc := j.features["libc"]
	target := j.File(j.Problem())
	res, err = deps.Runner.Run(ctx, sandbox.TimedRequest{
		Argv:          linkArgv(j.rt.arch, j.ldPath, target, []string{object}, libc),
		Dir:           j.Dir(),
		TimeLimit:     deps.CompileBudget,
		FileSizeLimit: artifactSizeLimit,
	})
	if err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "run linker failed")
	}
	if res.Cancelled {
		return appErr.Wrapf(ctx.Err(), appErr.JudgeSystemError, "link cancelled")
	}
	ldOut := executor.SanitizeDiagnostics(res.Stderr)
	diagnostics := strings.TrimSpace(executor.AppendDiagnostic(asOut, ldOut))
	if res.Killed {
		return &executor.CompileError{
			Output:   executor.AppendDiagnostic(diagnostics, fmt.Sprintf("linker killed after exceeding the %s time budget", deps.CompileBudget)),
			TimedOut: true,
		}
	}
	if res.ExitCode != 0 {
		return &executor.CompileError{Output: diagnostics}
	}

	j.SetWarnings(diagnostics)
	j.artifact = target
	return nil
}

func (j *asmJob) CommandLine() []string {
	if j.rt.useQEMU() {
		return []string{j.rt.arch.QEMUPath, j.artifact}
	}
	return []string{j.artifact}
}

func (j *asmJob) Executable() string {
	if j.rt.useQEMU() {
		return j.rt.arch.QEMUPath
	}
	return j.artifact
}

// Policy widens the base policy for emulated execution: qemu needs its
// shared libraries, the proc filesystem and read access to the guest
// binary, plus extra address space for itself.
func (j *asmJob) Policy() policy.Policy {
	p := j.BasePolicy()
	if j.rt.useQEMU() {
		p.FS = append(p.FS, "/usr/lib", "/proc", regexp.QuoteMeta(j.artifact))
		p.AddressGrace += qemuAddressGrace
	}
	return p
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
