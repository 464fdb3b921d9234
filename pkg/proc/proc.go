// Package proc answers two narrow questions about the host's process table:
// whether a given pid is still alive, and whether a process with a given
// command name is running. Both are needed before touching an instance,
// and neither should ever spawn a subprocess just to find out.
package proc

import "errors"

// ErrNoProcess is returned when no process matches the requested name.
var ErrNoProcess = errors.New("no matching process")
