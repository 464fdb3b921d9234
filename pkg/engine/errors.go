package engine

import (
	"fmt"

	"github.com/oraops/backup-run/pkg/classify"
)

// EnvironmentError marks failures that happen before anything ran: a
// missing engine or query binary, an unusable artifact directory. The
// lock is never held when one of these is returned.
type EnvironmentError struct {
	Err error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("environment error: %v", e.Err)
}

func (e *EnvironmentError) Unwrap() error { return e.Err }

// BackupFailedError is the terminal verdict of a failed backup run. It
// carries the classified records when the log decided the verdict, or the
// underlying error when the run never got that far (hook failure, engine
// could not start, cut short).
type BackupFailedError struct {
	Records  []classify.Record
	ExitCode int
	Err      error
}

func (e *BackupFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backup run failed: %v", e.Err)
	}
	return fmt.Sprintf("backup log classified %d distinct error code(s), engine exit %d", len(e.Records), e.ExitCode)
}

func (e *BackupFailedError) Unwrap() error { return e.Err }

// RetentionFailedError reports a backup that succeeded but whose cleanup
// did not. Operationally this is disk growth, not data loss, so it maps
// to its own exit status.
type RetentionFailedError struct {
	Records  []classify.Record
	ExitCode int
	Err      error
}

func (e *RetentionFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("retention pass failed: %v", e.Err)
	}
	return fmt.Sprintf("retention log classified %d distinct error code(s), engine exit %d", len(e.Records), e.ExitCode)
}

func (e *RetentionFailedError) Unwrap() error { return e.Err }
