//go:build linux

package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gavel/pkg/utils/logger"
	appErr "gavel/pkg/errors"
)

const (
	defaultStdoutMaxBytes int64 = 64 * 1024

	// outputFileLimit caps what a submission may write to any one file,
	// stdout and stderr included. Exceeding it raises SIGXFSZ, reported as
	// an output-limit status.
	outputFileLimit = 64 << 20

	// wallGrace is added on top of the CPU budget before the wall timer
	// fires, absorbing interpreter startup and scheduling noise.
	wallGrace = 2 * time.Second

	// helperSetupExitCode is how gavel-init reports a failure before exec.
	helperSetupExitCode = 127
)

// Config holds reference engine settings.
type Config struct {
	HelperPath     string `json:",default=gavel-init"`
	StdoutMaxBytes int64  `json:",optional"`
}

type linuxEngine struct {
	cfg Config
}

// NewEngine creates the reference Linux sandbox engine. It confines the
// process with the policy's syscall allowlist (via seccomp in the gavel-init
// trampoline) and rlimits derived from the request; filesystem-pattern
// interception is the province of a tracing engine and is validated, not
// enforced, here.
func NewEngine(cfg Config) (Engine, error) {
	if cfg.HelperPath == "" {
		cfg.HelperPath = "gavel-init"
	}
	if cfg.StdoutMaxBytes <= 0 {
		cfg.StdoutMaxBytes = defaultStdoutMaxBytes
	}
	return &linuxEngine{cfg: cfg}, nil
}

func (e *linuxEngine) Run(ctx context.Context, req Request) (Result, error) {
	if len(req.Argv) == 0 {
		return Result{}, appErr.ValidationError("argv", "required")
	}
	if req.Dir == "" {
		return Result{}, appErr.ValidationError("dir", "required")
	}
	if _, err := req.Policy.CompileFS(); err != nil {
		return Result{}, appErr.Wrapf(err, appErr.ConfigInvalid, "invalid filesystem allowlist")
	}

	stdinPath := "/dev/null"
	if len(req.Stdin) > 0 {
		stdinPath = filepath.Join(req.Dir, ".stdin")
		if err := os.WriteFile(stdinPath, req.Stdin, 0644); err != nil {
			return Result{}, appErr.Wrapf(err, appErr.SandboxError, "write stdin file failed")
		}
	}
	stdoutPath := filepath.Join(req.Dir, ".stdout")
	stderrPath := filepath.Join(req.Dir, ".stderr")

	initReq := InitRequest{
		Argv:       req.Argv,
		Dir:        req.Dir,
		StdinPath:  stdinPath,
		StdoutPath: stdoutPath,
		StderrPath: stderrPath,
		FileSize:   outputFileLimit,
		Syscalls:   req.Policy.Syscalls,
	}
	if req.TimeLimit > 0 {
		initReq.CPUSeconds = uint64(math.Ceil(req.TimeLimit.Seconds()))
	}
	if req.MemoryLimit > 0 {
		initReq.AddressSpace = uint64(req.MemoryLimit + req.Policy.AddressGrace)
	}
	if req.Policy.NProc > 0 {
		initReq.NProc = uint64(req.Policy.NProc)
	}

	stdinPipe, err := jsonToPipe(initReq)
	if err != nil {
		return Result{}, appErr.Wrapf(err, appErr.SandboxError, "encode init request failed")
	}
	defer stdinPipe.Close()

	cmd := exec.Command(e.cfg.HelperPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	cmd.Stdin = stdinPipe

	var helperStderr bytes.Buffer
	cmd.Stderr = &helperStderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, appErr.Wrapf(err, appErr.SandboxError, "start sandbox helper failed")
	}

	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		var wallTimer <-chan time.Time
		if req.TimeLimit > 0 {
			wallTimer = time.After(req.TimeLimit + wallGrace)
		}
		select {
		case <-ctx.Done():
			killProcessGroup(cmd.Process.Pid)
		case <-wallTimer:
			timedOut.Store(true)
			killProcessGroup(cmd.Process.Pid)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)

	res := Result{
		ExitCode:   exitCode(waitErr, cmd),
		WallTimeMs: time.Since(start).Milliseconds(),
		Stdout:     readLimitedFile(stdoutPath, e.cfg.StdoutMaxBytes),
		Stderr:     readLimitedFile(stderrPath, e.cfg.StdoutMaxBytes),
		MemoryKB:   memoryPeakKB(cmd),
	}

	if res.ExitCode == helperSetupExitCode && helperStderr.Len() > 0 {
		return Result{}, appErr.Newf(appErr.SandboxError, "sandbox setup failed: %s",
			bytes.TrimSpace(helperStderr.Bytes()))
	}

	res.Status = classify(req, res, cmd, timedOut.Load())
	if res.Status == StatusPolicyViolation {
		logger.Warn(ctx, "sandboxed process killed for policy violation",
			zap.Strings("argv", req.Argv), zap.Int64("wall_ms", res.WallTimeMs))
	}
	return res, nil
}

func classify(req Request, res Result, cmd *exec.Cmd, timedOut bool) Status {
	if timedOut {
		return StatusTimeLimit
	}
	if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		switch ws.Signal() {
		case syscall.SIGSYS:
			return StatusPolicyViolation
		case syscall.SIGXCPU:
			return StatusTimeLimit
		case syscall.SIGXFSZ:
			return StatusOutputLimit
		}
	}
	if req.MemoryLimit > 0 && res.MemoryKB*1024 > req.MemoryLimit+req.Policy.AddressGrace {
		return StatusMemoryLimit
	}
	return StatusExited
}

func memoryPeakKB(cmd *exec.Cmd) int64 {
	if cmd.ProcessState == nil {
		return 0
	}
	if rusage, ok := cmd.ProcessState.SysUsage().(*syscall.Rusage); ok {
		return rusage.Maxrss
	}
	return 0
}

func readLimitedFile(path string, limit int64) []byte {
	if path == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, limit))
	if err != nil {
		return nil
	}
	return data
}

func jsonToPipe(req InitRequest) (io.ReadCloser, error) {
	reader, writer := io.Pipe()
	go func() {
		enc := json.NewEncoder(writer)
		err := enc.Encode(req)
		_ = writer.CloseWithError(err)
	}()
	return reader, nil
}
