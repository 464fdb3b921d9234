//go:build !windows

package proc

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Alive reports whether pid refers to a live process. Signal 0 probes the
// process table without delivering anything; EPERM still means the process
// exists, it just belongs to someone else.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}
