//go:build linux

package sandbox

import (
	"fmt"

	seccomp "github.com/seccomp/libseccomp-golang"
	"golang.org/x/sys/unix"

	"gavel/internal/policy"
)

// baselineSyscalls are always permitted: the minimum a statically linked
// program needs to start, do stdio and exit. Adapter allowlists extend this
// set, never replace it.
var baselineSyscalls = []string{
	"read", "write", "readv", "writev", "close", "fstat", "lseek",
	"mmap", "munmap", "mremap", "mprotect", "brk",
	"rt_sigaction", "rt_sigprocmask", "rt_sigreturn", "sigaltstack",
	"exit", "exit_group",
	"arch_prctl", "set_tid_address", "set_robust_list", "rseq",
	"getuid", "getgid", "geteuid", "getegid", "getpid", "gettid",
	"clock_gettime", "clock_getres", "gettimeofday", "time",
	"access", "faccessat", "open", "openat", "stat", "lstat", "newfstatat",
	"getrandom", "futex", "getcwd", "readlink", "readlinkat",
	"uname", "getrlimit", "prlimit64", "ioctl", "fcntl", "dup", "dup2",
	"pread64", "execve",
}

// InstallFilter compiles the baseline plus adapter allowlist into a loaded
// seccomp filter. Unlisted syscalls kill the process; conditional entries
// become argument-compare rules evaluated by the kernel at trap time.
func InstallFilter(rules []policy.SyscallRule) error {
	filter, err := seccomp.NewFilter(seccomp.ActKillProcess)
	if err != nil {
		return fmt.Errorf("create seccomp filter: %w", err)
	}
	defer filter.Release()

	for _, name := range baselineSyscalls {
		call, err := seccomp.GetSyscallFromName(name)
		if err != nil {
			// Baseline names not known on this kernel are skipped.
			continue
		}
		if err := filter.AddRule(call, seccomp.ActAllow); err != nil {
			return fmt.Errorf("add baseline rule %s: %w", name, err)
		}
	}

	for _, rule := range rules {
		call, err := seccomp.GetSyscallFromName(rule.Name)
		if err != nil {
			return fmt.Errorf("unknown syscall %q in allowlist: %w", rule.Name, err)
		}
		if rule.Cond == nil {
			if err := filter.AddRule(call, seccomp.ActAllow); err != nil {
				return fmt.Errorf("add rule %s: %w", rule.Name, err)
			}
			continue
		}
		cond, err := makeCondition(*rule.Cond)
		if err != nil {
			return fmt.Errorf("condition for %s: %w", rule.Name, err)
		}
		if err := filter.AddRuleConditional(call, seccomp.ActAllow, []seccomp.ScmpCondition{cond}); err != nil {
			return fmt.Errorf("add conditional rule %s: %w", rule.Name, err)
		}
	}

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("set no new privs: %w", err)
	}
	if err := filter.Load(); err != nil {
		return fmt.Errorf("load seccomp filter: %w", err)
	}
	return nil
}

func makeCondition(cond policy.ArgCondition) (seccomp.ScmpCondition, error) {
	switch cond.Op {
	case policy.CompareEqual:
		return seccomp.MakeCondition(cond.Arg, seccomp.CompareEqual, cond.Value)
	case policy.CompareNotEqual:
		return seccomp.MakeCondition(cond.Arg, seccomp.CompareNotEqual, cond.Value)
	case policy.CompareMaskedEqual:
		return seccomp.MakeCondition(cond.Arg, seccomp.CompareMaskedEqual, cond.Mask, cond.Value)
	default:
		return seccomp.ScmpCondition{}, fmt.Errorf("unsupported compare op %d", cond.Op)
	}
}
