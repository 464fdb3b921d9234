// Package hints marks errors that signal a skipped step rather than a failure.
//
// Several stages of a run can legitimately decline to do anything: log
// rotation with a disabled horizon, a hook list that is empty, a sweep that
// found no candidates. Reporting those as hard errors would force every
// caller to know each producer's sentinel values. Instead producers label
// such errors as hints and callers probe for the behavior, not the type.
package hints

import "errors"

type hintErr struct {
	err error
}

func (h *hintErr) Error() string {
	if h == nil || h.err == nil {
		return "unknown hint"
	}
	return h.err.Error()
}
func (h *hintErr) IsHint() bool  { return true }
func (h *hintErr) Unwrap() error { return h.err }

// New creates a hint from a string.
func New(msg string) error {
	return &hintErr{err: errors.New(msg)}
}

// Wrap promotes an existing error to a hint.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return &hintErr{err: err}
}

// IsHint reports whether any error in the chain behaves like a hint.
func IsHint(err error) bool {
	var h interface{ IsHint() bool }
	return errors.As(err, &h) && h.IsHint()
}
