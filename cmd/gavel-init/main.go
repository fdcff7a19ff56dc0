//go:build linux

// gavel-init is the in-sandbox trampoline. The engine launches it with an
// InitRequest on stdin; it applies resource limits, redirects stdio to the
// prepared files, loads the seccomp filter and execs the submission. Any
// setup failure exits 127 with the reason on stderr, which the engine
// reports as a sandbox fault rather than a submission outcome.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"gavel/internal/sandbox"
)

const setupExitCode = 127

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(setupExitCode)
	}
}

func run() error {
	var req sandbox.InitRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	if len(req.Argv) == 0 {
		return fmt.Errorf("argv is required")
	}
	if req.Dir == "" {
		return fmt.Errorf("dir is required")
	}
	if err := os.Chdir(req.Dir); err != nil {
		return fmt.Errorf("chdir: %w", err)
	}
	if err := applyRlimits(req); err != nil {
		return err
	}
	if err := redirectIO(req); err != nil {
		return err
	}
	// The filter must go in last: after it loads, this process can only
	// make the calls the submission itself is allowed.
	if err := sandbox.InstallFilter(req.Syscalls); err != nil {
		return fmt.Errorf("install seccomp filter: %w", err)
	}
	return unix.Exec(req.Argv[0], req.Argv, os.Environ())
}

func applyRlimits(req sandbox.InitRequest) error {
	limits := []struct {
		resource int
		value    uint64
		name     string
	}{
		{unix.RLIMIT_CPU, req.CPUSeconds, "cpu"},
		{unix.RLIMIT_AS, req.AddressSpace, "address space"},
		{unix.RLIMIT_FSIZE, req.FileSize, "file size"},
		{unix.RLIMIT_NPROC, req.NProc, "nproc"},
	}
	for _, l := range limits {
		if l.value == 0 {
			continue
		}
		rl := unix.Rlimit{Cur: l.value, Max: l.value}
		if err := unix.Setrlimit(l.resource, &rl); err != nil {
			return fmt.Errorf("set %s limit: %w", l.name, err)
		}
	}
	return nil
}

func redirectIO(req sandbox.InitRequest) error {
	redirect := func(path string, flags int, fd int, name string) error {
		if path == "" {
			path = os.DevNull
			if fd != 0 {
				flags = os.O_WRONLY
			}
		}
		f, err := os.OpenFile(path, flags, 0o644)
		if err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		if err := unix.Dup2(int(f.Fd()), fd); err != nil {
			return fmt.Errorf("redirect %s: %w", name, err)
		}
		return f.Close()
	}
	if err := redirect(req.StdinPath, os.O_RDONLY, 0, "stdin"); err != nil {
		return err
	}
	if err := redirect(req.StdoutPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 1, "stdout"); err != nil {
		return err
	}
	return redirect(req.StderrPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 2, "stderr")
}
