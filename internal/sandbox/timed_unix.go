//go:build unix

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	appErr "gavel/pkg/errors"
)

const stderrMaxBytes = 64 * 1024

// ProcessRunner is the default TimedRunner. It runs the subprocess in its
// own process group and kills the whole group on budget expiry or context
// cancellation.
type ProcessRunner struct{}

func (ProcessRunner) Run(ctx context.Context, req TimedRequest) (TimedResult, error) {
	if len(req.Argv) == 0 {
		return TimedResult{}, appErr.ValidationError("argv", "required")
	}
	if req.Dir == "" {
		return TimedResult{}, appErr.ValidationError("dir", "required")
	}

	cmd := exec.Command(req.Argv[0], req.Argv[1:]...)
	cmd.Dir = req.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stderr limitedBuffer
	stderr.max = stderrMaxBytes
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return TimedResult{}, appErr.Wrapf(err, appErr.InternalServerError, "start build step failed")
	}
	if req.FileSizeLimit > 0 {
		// Applied after start; the window before the limit lands is accepted.
		_ = setFileSizeLimit(cmd.Process.Pid, req.FileSizeLimit)
	}

	var killed, cancelled atomic.Bool
	done := make(chan struct{})
	go func() {
		var timer <-chan time.Time
		if req.TimeLimit > 0 {
			timer = time.After(req.TimeLimit)
		}
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			killProcessGroup(cmd.Process.Pid)
		case <-timer:
			killed.Store(true)
			killProcessGroup(cmd.Process.Pid)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)

	res := TimedResult{
		ExitCode:  exitCode(waitErr, cmd),
		Stderr:    stderr.Bytes(),
		Killed:    killed.Load(),
		Cancelled: cancelled.Load(),
	}
	return res, nil
}

func exitCode(err error, cmd *exec.Cmd) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

// limitedBuffer keeps only the first max bytes written to it.
type limitedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	remaining := b.max - b.buf.Len()
	if remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}
