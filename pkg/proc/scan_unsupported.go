//go:build !linux

package proc

import "fmt"

// Scanner finds processes by command name. Only the Linux proc filesystem
// backend is implemented; the managed instances run on Linux hosts.
type Scanner struct {
	Root string
}

// NewScanner returns a Scanner that reports scanning as unsupported.
func NewScanner() *Scanner {
	return &Scanner{}
}

// FindByComm always fails on this platform.
func (s *Scanner) FindByComm(comm string) (int, error) {
	return 0, fmt.Errorf("process scan for %s is not supported on this platform", comm)
}
