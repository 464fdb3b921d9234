//go:build !windows

package rmanexec

import (
	"errors"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// configureCommand prepares the engine subprocess on Unix-like systems.
// The engine runs in its own process group (PGRP) with the command as the
// session leader, so cancellation can signal the entire group and take any
// children down with it.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return os.ErrProcessDone
		}
		// The negative pid addresses the whole process group.
		err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		if errors.Is(err, unix.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
}
