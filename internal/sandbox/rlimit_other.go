//go:build unix && !linux

package sandbox

// setFileSizeLimit needs prlimit; outside Linux the cap is not applied.
func setFileSizeLimit(pid int, limit int64) error {
	return nil
}
