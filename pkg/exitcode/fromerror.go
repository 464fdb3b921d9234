package exitcode

import (
	"errors"

	"github.com/oraops/backup-run/pkg/engine"
	"github.com/oraops/backup-run/pkg/lockfile"
	"github.com/oraops/backup-run/pkg/oratab"
	"github.com/oraops/backup-run/pkg/preflight"
)

// FromError maps a run error onto the exit code contract. Wrapping is
// transparent: the deepest recognizable cause wins, anything unrecognized
// is reported as a usage or configuration problem.
func FromError(err error) Code {
	if err == nil {
		return Success
	}

	var lockErr *lockfile.ErrLockActive
	if errors.As(err, &lockErr) {
		return Locked
	}

	var backupErr *engine.BackupFailedError
	if errors.As(err, &backupErr) {
		return BackupFailed
	}

	var retentionErr *engine.RetentionFailedError
	if errors.As(err, &retentionErr) {
		return RetentionFailed
	}

	var envErr *engine.EnvironmentError
	switch {
	case errors.As(err, &envErr), errors.Is(err, oratab.ErrNotFound):
		return Environment
	case errors.Is(err, preflight.ErrInstanceNotRunning):
		return NotRunning
	case errors.Is(err, preflight.ErrRoleNotPrimary), errors.Is(err, preflight.ErrRoleIndeterminate):
		return NotPrimary
	}

	return Usage
}
