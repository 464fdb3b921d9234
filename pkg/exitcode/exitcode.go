// Package exitcode defines the process exit codes reported to callers.
//
// Wrapper scripts and monitoring jobs key off these values, so they are
// part of the CLI contract and must stay stable across releases.
package exitcode

// Code represents the application's exit codes.
type Code int

const (
	// Success - run completed and the primary backup log classified clean.
	Success Code = 0

	// Usage - invalid invocation or unusable configuration.
	Usage Code = 1

	// Environment - the instance could not be resolved to a usable home directory.
	Environment Code = 2

	// NotRunning - the target instance has no live control process.
	NotRunning Code = 3

	// NotPrimary - the instance role is not PRIMARY, or could not be determined.
	NotPrimary Code = 4

	// BackupFailed - the backup engine log classified with errors.
	BackupFailed Code = 5

	// RetentionFailed - backup clean, but the retention pass classified with errors.
	RetentionFailed Code = 6

	// Locked - another run holds the instance lock.
	Locked Code = 7
)

// String returns a human-readable description of the exit code.
func (c Code) String() string {
	switch c {
	case Success:
		return "success"
	case Usage:
		return "usage or configuration error"
	case Environment:
		return "environment resolution error"
	case NotRunning:
		return "instance not running"
	case NotPrimary:
		return "instance role not primary"
	case BackupFailed:
		return "backup completed with errors"
	case RetentionFailed:
		return "completed with cleanup warnings"
	case Locked:
		return "another run is active"
	default:
		return "unknown error"
	}
}

// Int returns the exit code as a plain integer for os.Exit.
func (c Code) Int() int {
	return int(c)
}
