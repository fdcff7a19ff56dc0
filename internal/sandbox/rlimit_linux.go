//go:build linux

package sandbox

import (
	"golang.org/x/sys/unix"
)

// setFileSizeLimit caps files the running process may create, via prlimit on
// the already-started child.
func setFileSizeLimit(pid int, limit int64) error {
	rl := unix.Rlimit{Cur: uint64(limit), Max: uint64(limit)}
	return unix.Prlimit(pid, unix.RLIMIT_FSIZE, &rl, nil)
}
