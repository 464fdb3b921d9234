//go:build windows

package proc

import (
	"golang.org/x/sys/windows"
)

// Alive reports whether pid refers to a live process. A process that can be
// opened but has already exited reports its exit code, so both checks are
// needed.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(handle)

	var code uint32
	if err := windows.GetExitCodeProcess(handle, &code); err != nil {
		return false
	}
	return code == windows.STILL_ACTIVE
}
