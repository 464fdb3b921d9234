//go:build linux

package proc

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// commLen is the kernel's TASK_COMM_LEN minus the trailing NUL. Command
// names longer than this show up truncated in /proc/<pid>/comm.
const commLen = 15

// Scanner finds processes by command name from the proc filesystem.
// Root is overridable so tests can point it at a fixture tree.
type Scanner struct {
	Root string
}

// NewScanner returns a Scanner over the host's /proc.
func NewScanner() *Scanner {
	return &Scanner{Root: "/proc"}
}

// FindByComm returns the pid of the first process whose command name equals
// comm, or ErrNoProcess. Truncated comm values are re-checked against the
// process's argv[0], which long-named daemons rewrite to their full name.
func (s *Scanner) FindByComm(comm string) (int, error) {
	dirEntries, err := os.ReadDir(s.Root)
	if err != nil {
		return 0, fmt.Errorf("could not read process table %s: %w", s.Root, err)
	}

	for _, entry := range dirEntries {
		pid, convErr := strconv.Atoi(entry.Name())
		if convErr != nil {
			continue // not a process directory
		}

		got, readErr := os.ReadFile(filepath.Join(s.Root, entry.Name(), "comm"))
		if readErr != nil {
			continue // process vanished or is off limits; keep scanning
		}
		name := strings.TrimSpace(string(got))

		if name == comm {
			return pid, nil
		}
		if len(name) == commLen && strings.HasPrefix(comm, name) && s.cmdlineMatches(entry.Name(), comm) {
			return pid, nil
		}
	}

	return 0, fmt.Errorf("%w: %s", ErrNoProcess, comm)
}

// cmdlineMatches checks the untruncated argv[0] against the wanted name.
func (s *Scanner) cmdlineMatches(pidDir, comm string) bool {
	raw, err := os.ReadFile(filepath.Join(s.Root, pidDir, "cmdline"))
	if err != nil {
		return false
	}
	argv0, _, _ := bytes.Cut(raw, []byte{0})
	return string(argv0) == comm
}
