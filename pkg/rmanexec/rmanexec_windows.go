//go:build windows

package rmanexec

import (
	"os/exec"

	"golang.org/x/sys/windows"
)

// configureCommand prepares the engine subprocess on Windows.
// A new process group ensures that when the context is canceled, the entire
// process tree is terminated, not just the immediate child.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &windows.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
}
